// Package server exposes the bot's HTTP surface: a health endpoint and
// an optional webhook ingress as an alternative to long polling.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/reportline/reportbot/internal/telegram"
)

// Config holds server configuration. The listener itself belongs to the
// caller; the server only builds the handler.
type Config struct {
	// WebhookSecret is the unguessable path segment the bot platform is
	// told to deliver updates to. Empty disables the webhook route.
	WebhookSecret string
}

// Dispatcher consumes decoded updates. The bot router satisfies it.
type Dispatcher interface {
	HandleUpdate(ctx context.Context, upd telegram.Update)
}

// Server is the bot's HTTP server.
type Server struct {
	config     Config
	dispatcher Dispatcher
	logger     *slog.Logger
	router     chi.Router
}

// NewServer creates a new Server delivering webhook updates to d.
func NewServer(cfg Config, d Dispatcher, logger *slog.Logger) *Server {
	srv := &Server{config: cfg, dispatcher: d, logger: logger}
	srv.router = srv.routes()
	return srv
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(s.logger))
	r.Use(RecoveryMiddleware(s.logger))

	r.Get("/healthz", s.handleHealthz)
	if s.config.WebhookSecret != "" {
		r.Post("/telegram/webhook/{secret}", s.handleWebhook)
	}

	return r
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleWebhook decodes one update and dispatches it before responding.
// A wrong secret gets the same 404 as an unknown path.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	secret := chi.URLParam(r, "secret")
	if subtle.ConstantTimeCompare([]byte(secret), []byte(s.config.WebhookSecret)) != 1 {
		http.NotFound(w, r)
		return
	}

	var upd telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	s.dispatcher.HandleUpdate(r.Context(), upd)
	w.WriteHeader(http.StatusOK)
}
