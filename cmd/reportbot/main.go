package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/reportline/reportbot/internal/alert"
	"github.com/reportline/reportbot/internal/bot"
	"github.com/reportline/reportbot/internal/report"
	"github.com/reportline/reportbot/internal/server"
	"github.com/reportline/reportbot/internal/store"
	"github.com/reportline/reportbot/internal/telegram"
)

func main() {
	// .env is a development convenience; the environment wins.
	_ = godotenv.Load()

	listenAddr := flag.String("listen", envOr("REPORTBOT_LISTEN", ":8080"), "HTTP listen address")
	dbPath := flag.String("db", envOr("REPORTBOT_DB_PATH", "./reportbot.db"), "SQLite database path")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	token := os.Getenv("BOT_TOKEN")
	if token == "" {
		log.Fatal("BOT_TOKEN must be set")
	}
	moderatorID := envInt64("MODERATOR_ID")
	if moderatorID == 0 {
		log.Println("WARNING: MODERATOR_ID is not set -- moderation surfaces are disabled")
	}
	moderatorUsername := os.Getenv("MODERATOR_USERNAME")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := store.NewSQLiteStore(ctx, *dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	client := telegram.NewClient(nil, os.Getenv("REPORTBOT_API_BASE_URL"), token)
	me, err := client.GetMe(ctx)
	if err != nil {
		log.Fatalf("Failed to reach the bot API: %v", err)
	}
	logger.Info("authorized", "bot_id", me.ID, "bot_username", me.Username)

	reports := report.NewManager(db, client, moderatorID, moderatorUsername, logger)
	if key := os.Getenv("REPORTBOT_SENDGRID_KEY"); key != "" {
		reports.SetAlerter(alert.NewEmailAlerter(alert.EmailConfig{
			FromAddress: envOr("REPORTBOT_FROM_EMAIL", "bot@reportline.net"),
			FromName:    envOr("REPORTBOT_FROM_NAME", "Reportline"),
			ToAddress:   os.Getenv("REPORTBOT_ALERT_EMAIL"),
		}, key, nil))
		log.Println("Email alerts enabled")
	}

	router := bot.NewRouter(db, client, reports, moderatorID, logger)

	webhookSecret := os.Getenv("REPORTBOT_WEBHOOK_SECRET")
	srv := server.NewServer(server.Config{
		WebhookSecret: webhookSecret,
	}, router, logger)

	httpSrv := &http.Server{
		Addr:    *listenAddr,
		Handler: srv.Handler(),
	}

	g, ctx := errgroup.WithContext(ctx)

	// Updates arrive over exactly one ingress: the webhook when a secret
	// is configured, long polling otherwise. Polling while a webhook is
	// registered would be rejected by the API on every fetch.
	if usePolling(webhookSecret) {
		g.Go(func() error {
			logger.Info("polling for updates")
			return telegram.NewPoller(client, router, logger).Run(ctx)
		})
	} else {
		logger.Info("webhook ingress enabled, long polling disabled")
	}

	g.Go(func() error {
		logger.Info("listening", "addr", *listenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Fatal: %v", err)
	}
	log.Println("Shut down cleanly")
}

func usePolling(webhookSecret string) bool {
	return webhookSecret == ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string) int64 {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Fatalf("%s must be an integer, got %q", key, v)
	}
	return n
}
