package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/reportline/reportbot/internal/model"
	"github.com/reportline/reportbot/internal/store"
	"github.com/reportline/reportbot/internal/telegram"
)

// Messenger is the outbound capability the ban lifecycle consumes: it
// must deliver ban notices and retract them again on unban.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, keyboard *telegram.InlineKeyboardMarkup) (int64, error)
	DeleteMessage(ctx context.Context, chatID, messageID int64) error
}

// Bans applies and reverses bans, keeping the persisted ban-notice
// message reference consistent with what was actually delivered.
type Bans struct {
	store       store.Store
	messenger   Messenger
	moderatorID int64
	logger      *slog.Logger
}

func NewBans(s store.Store, m Messenger, moderatorID int64, logger *slog.Logger) *Bans {
	return &Bans{store: s, messenger: m, moderatorID: moderatorID, logger: logger}
}

func (b *Bans) authorize(callerID int64) error {
	if b.moderatorID == 0 || callerID != b.moderatorID {
		return ErrForbidden
	}
	return nil
}

// Ban delivers a ban notice to the target, then sets the ban flag with
// the delivered notice's message id. The notice must be delivered first
// because its id is part of the committed state; a delivery failure
// therefore aborts the ban. Banning an already-banned user returns
// store.ErrInvalidState.
func (b *Bans) Ban(ctx context.Context, callerID, targetID int64) (*model.User, error) {
	if err := b.authorize(callerID); err != nil {
		return nil, err
	}
	u, err := b.store.GetUser(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if u.Banned {
		return nil, store.ErrInvalidState
	}

	mention := telegram.Mention(u.ID, u.Username, u.FirstName)
	notice := fmt.Sprintf("🛑 <b>%s</b>, you have been banned!\n❌ The bot will no longer respond to you, no matter how many times you try.", mention)
	msgID, err := b.messenger.SendMessage(ctx, targetID, notice, nil)
	if err != nil {
		return nil, fmt.Errorf("deliver ban notice: %w", err)
	}

	if err := b.store.BanUser(ctx, targetID, msgID); err != nil {
		if errors.Is(err, store.ErrInvalidState) {
			// Lost a race against a concurrent ban; retract the extra notice.
			if delErr := b.messenger.DeleteMessage(ctx, targetID, msgID); delErr != nil {
				b.logger.Warn("retract duplicate ban notice failed", "user_id", targetID, "error", delErr)
			}
		}
		return nil, err
	}

	b.logger.Info("user banned", "user_id", targetID, "ban_message_id", msgID)
	return b.store.GetUser(ctx, targetID)
}

// Unban clears the ban flag, retracts the recorded ban notice
// best-effort, and sends an unban confirmation best-effort. Unbanning a
// user who is not banned returns store.ErrInvalidState.
func (b *Bans) Unban(ctx context.Context, callerID, targetID int64) (*model.User, error) {
	if err := b.authorize(callerID); err != nil {
		return nil, err
	}
	u, err := b.store.GetUser(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if !u.Banned {
		return nil, store.ErrInvalidState
	}

	if err := b.store.UnbanUser(ctx, targetID); err != nil {
		return nil, err
	}

	if u.BanMessageID != 0 {
		if err := b.messenger.DeleteMessage(ctx, targetID, u.BanMessageID); err != nil {
			b.logger.Warn("retract ban notice failed",
				"user_id", targetID, "ban_message_id", u.BanMessageID, "error", err)
		}
	}

	mention := telegram.Mention(u.ID, u.Username, u.FirstName)
	confirmation := fmt.Sprintf("✅ <b>%s</b>, you have been unbanned!", mention)
	if _, err := b.messenger.SendMessage(ctx, targetID, confirmation, nil); err != nil {
		b.logger.Warn("unban confirmation failed", "user_id", targetID, "error", err)
	}

	b.logger.Info("user unbanned", "user_id", targetID)
	return b.store.GetUser(ctx, targetID)
}
