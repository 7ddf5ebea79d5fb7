package telegram

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Dispatcher consumes updates fetched by the poller.
type Dispatcher interface {
	HandleUpdate(ctx context.Context, upd Update)
}

const (
	// pollTimeout is the long-poll hold time requested from the API.
	pollTimeout = 30 * time.Second
	// retryDelay is the pause after a failed fetch before retrying.
	retryDelay = 3 * time.Second
)

// Poller fetches updates over long polling and hands each one to the
// dispatcher. Dispatch happens on a fresh goroutine per update; ordering
// per user is the dispatcher's concern.
type Poller struct {
	client     *Client
	dispatcher Dispatcher
	logger     *slog.Logger
}

func NewPoller(c *Client, d Dispatcher, logger *slog.Logger) *Poller {
	return &Poller{client: c, dispatcher: d, logger: logger}
}

// Run polls until ctx is cancelled, then returns ctx.Err().
func (p *Poller) Run(ctx context.Context) error {
	var offset int64
	for {
		updates, next, err := p.client.GetUpdates(ctx, offset, pollTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Warn("fetch updates failed", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay):
			}
			continue
		}
		offset = next

		for _, upd := range updates {
			go p.dispatcher.HandleUpdate(ctx, upd)
		}
	}
}
