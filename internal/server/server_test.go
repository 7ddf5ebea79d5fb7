package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/reportline/reportbot/internal/telegram"
)

type recordingDispatcher struct {
	updates []telegram.Update
}

func (d *recordingDispatcher) HandleUpdate(_ context.Context, upd telegram.Update) {
	d.updates = append(d.updates, upd)
}

func newTestServer(t *testing.T, secret string) (*Server, *recordingDispatcher) {
	t.Helper()
	d := &recordingDispatcher{}
	srv := NewServer(Config{WebhookSecret: secret}, d, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return srv, d
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, "")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Errorf("body = %q, want ok", rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}

func TestWebhook(t *testing.T) {
	srv, d := newTestServer(t, "s3cret")

	body := `{"update_id":9,"message":{"message_id":1,"from":{"id":10},"chat":{"id":10},"text":"/start"}}`
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/telegram/webhook/s3cret", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(d.updates) != 1 {
		t.Fatalf("dispatched = %d updates, want 1", len(d.updates))
	}
	if d.updates[0].UpdateID != 9 || d.updates[0].Message == nil || d.updates[0].Message.Text != "/start" {
		t.Errorf("dispatched update = %+v", d.updates[0])
	}
}

func TestWebhook_WrongSecretIs404(t *testing.T) {
	srv, d := newTestServer(t, "s3cret")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/telegram/webhook/guess", strings.NewReader("{}")))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if len(d.updates) != 0 {
		t.Errorf("dispatched = %d updates, want none", len(d.updates))
	}
}

func TestWebhook_DisabledWithoutSecret(t *testing.T) {
	srv, d := newTestServer(t, "")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/telegram/webhook/", strings.NewReader("{}")))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 when the webhook is disabled", rec.Code)
	}
	if len(d.updates) != 0 {
		t.Errorf("dispatched = %d updates, want none", len(d.updates))
	}
}

func TestWebhook_BadBody(t *testing.T) {
	srv, d := newTestServer(t, "s3cret")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/telegram/webhook/s3cret", strings.NewReader("{not json")))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if len(d.updates) != 0 {
		t.Errorf("dispatched = %d updates, want none", len(d.updates))
	}
}
