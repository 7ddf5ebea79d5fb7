// Package bot dispatches incoming chat updates: it registers the user,
// applies the ban gate, and routes messages through the conversation
// state machine and button presses through the decoded Action variants.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/reportline/reportbot/internal/conversation"
	"github.com/reportline/reportbot/internal/model"
	"github.com/reportline/reportbot/internal/moderation"
	"github.com/reportline/reportbot/internal/report"
	"github.com/reportline/reportbot/internal/store"
	"github.com/reportline/reportbot/internal/telegram"
)

// Messenger is the full outbound surface the router needs. The bot API
// client satisfies it.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, keyboard *telegram.InlineKeyboardMarkup) (int64, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, text string, keyboard *telegram.InlineKeyboardMarkup) error
	DeleteMessage(ctx context.Context, chatID, messageID int64) error
	PinChatMessage(ctx context.Context, chatID, messageID int64) error
	AnswerCallbackQuery(ctx context.Context, callbackID, text string, showAlert bool) error
}

// Router owns update dispatch. Updates from the same user are handled
// one at a time; updates from different users proceed concurrently.
type Router struct {
	store       store.Store
	msgr        Messenger
	conv        *conversation.Manager
	reports     *report.Manager
	queue       *moderation.Queue
	bans        *moderation.Bans
	moderatorID int64
	logger      *slog.Logger

	mu        sync.Mutex
	userLocks map[int64]*sync.Mutex
}

func NewRouter(s store.Store, m Messenger, reports *report.Manager, moderatorID int64, logger *slog.Logger) *Router {
	return &Router{
		store:       s,
		msgr:        m,
		conv:        conversation.NewManager(),
		reports:     reports,
		queue:       moderation.NewQueue(s, moderatorID),
		bans:        moderation.NewBans(s, m, moderatorID, logger),
		moderatorID: moderatorID,
		logger:      logger,
		userLocks:   make(map[int64]*sync.Mutex),
	}
}

// lockFor returns the mutex guarding one user's updates. Entries are
// kept for the life of the process, like conversation flows: one mutex
// per user ever seen, never evicted.
func (r *Router) lockFor(userID int64) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		r.userLocks[userID] = l
	}
	return l
}

// HandleUpdate routes a single update. It never returns an error: every
// failure is logged and, where a user is waiting, answered with a
// fallback message.
func (r *Router) HandleUpdate(ctx context.Context, upd telegram.Update) {
	corr := uuid.NewString()

	switch {
	case upd.Message != nil:
		msg := upd.Message
		if msg.From == nil || msg.From.IsBot || msg.Chat == nil {
			return
		}
		l := r.lockFor(msg.From.ID)
		l.Lock()
		defer l.Unlock()
		r.handleMessage(ctx, corr, msg)
	case upd.CallbackQuery != nil:
		cb := upd.CallbackQuery
		if cb.From == nil {
			return
		}
		l := r.lockFor(cb.From.ID)
		l.Lock()
		defer l.Unlock()
		r.handleCallback(ctx, corr, cb)
	}
}

func (r *Router) isModerator(userID int64) bool {
	return r.moderatorID != 0 && userID == r.moderatorID
}

// register upserts the sender, enforcing the ban gate: for a banned
// user it emits the refusal (via refuse) and reports false so the
// caller stops routing. A persistence failure is reported to the actor
// through fail before the event is dropped.
func (r *Router) register(ctx context.Context, corr string, from *telegram.User, refuse func(mention string), fail func()) bool {
	if err := r.store.UpsertUser(ctx, from.ID, from.Username, from.FirstName); err != nil {
		r.logger.Error("upsert user failed", "correlation_id", corr, "user_id", from.ID, "error", err)
		fail()
		return false
	}
	rec, err := r.store.GetUser(ctx, from.ID)
	if err != nil {
		r.logger.Error("load user failed", "correlation_id", corr, "user_id", from.ID, "error", err)
		fail()
		return false
	}
	if rec.Banned {
		refuse(telegram.Mention(rec.ID, rec.Username, rec.FirstName))
		return false
	}
	return true
}

func (r *Router) handleMessage(ctx context.Context, corr string, msg *telegram.Message) {
	from := msg.From
	chatID := msg.Chat.ID

	if !r.register(ctx, corr, from, func(mention string) {
		r.send(ctx, corr, chatID, bannedRefusalText(mention), nil)
	}, func() {
		r.send(ctx, corr, chatID, genericFailureText, nil)
	}) {
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "/start" {
		r.handleStart(ctx, corr, from, chatID)
		return
	}

	switch r.conv.StateOf(from.ID) {
	case conversation.AwaitingCustomReason:
		if err := r.conv.SetCustomReason(from.ID, text); err != nil {
			r.send(ctx, corr, chatID, reasonTooLongText, nil)
			return
		}
		r.send(ctx, corr, chatID, targetPromptText, nil)

	case conversation.AwaitingTarget:
		r.handleTarget(ctx, corr, msg)

	default:
		r.send(ctx, corr, chatID, useButtonsText, nil)
	}
}

func (r *Router) handleStart(ctx context.Context, corr string, from *telegram.User, chatID int64) {
	r.conv.Reset(from.ID)
	msgID, err := r.msgr.SendMessage(ctx, chatID, welcomeText, welcomeKeyboard(r.isModerator(from.ID)))
	if err != nil {
		r.logger.Warn("welcome failed", "correlation_id", corr, "chat_id", chatID, "error", err)
		return
	}
	// Pinning keeps the menu reachable; losing the pin is harmless.
	if err := r.msgr.PinChatMessage(ctx, chatID, msgID); err != nil {
		r.logger.Warn("pin welcome failed", "correlation_id", corr, "chat_id", chatID, "error", err)
	}
}

func (r *Router) handleTarget(ctx context.Context, corr string, msg *telegram.Message) {
	from := msg.From
	chatID := msg.Chat.ID

	var targetID int64
	var targetUsername string
	if msg.ReplyTo != nil && msg.ReplyTo.From != nil {
		targetID = msg.ReplyTo.From.ID
		targetUsername = msg.ReplyTo.From.Username
	} else {
		target, err := conversation.ParseTarget(msg.Text)
		if err != nil {
			r.send(ctx, corr, chatID, targetUnresolvedText, nil)
			return
		}
		targetID = target.ID
		targetUsername = target.Username
	}

	reason, ok := r.conv.Complete(from.ID)
	if !ok {
		r.send(ctx, corr, chatID, useButtonsText, nil)
		return
	}

	_, err := r.reports.Submit(ctx, report.Submission{
		SenderID:        from.ID,
		SenderUsername:  from.Username,
		SenderFirstName: from.FirstName,
		Reason:          reason,
		TargetID:        targetID,
		TargetUsername:  targetUsername,
	})
	if err != nil {
		// Re-arm the flow so the user can resend the target instead of
		// starting over.
		r.conv.StartPreset(from.ID, reason)
		r.logger.Error("submit report failed", "correlation_id", corr, "sender_id", from.ID, "error", err)
		r.send(ctx, corr, chatID, genericFailureText, nil)
	}
}

func (r *Router) handleCallback(ctx context.Context, corr string, cb *telegram.CallbackQuery) {
	from := cb.From

	if !r.register(ctx, corr, from, func(string) {
		r.answer(ctx, corr, cb.ID, bannedAlertText, true)
	}, func() {
		r.answer(ctx, corr, cb.ID, genericFailureText, true)
	}) {
		return
	}

	act := ParseAction(cb.Data)
	r.logger.Debug("callback action",
		"correlation_id", corr, "user_id", from.ID, "action", fmt.Sprintf("%T", act))

	if cb.Message == nil || cb.Message.Chat == nil {
		// Nothing to edit; the press is acknowledged and dropped.
		r.answer(ctx, corr, cb.ID, "", false)
		return
	}
	chatID := cb.Message.Chat.ID
	msgID := cb.Message.MessageID

	switch a := act.(type) {
	case MainMenuAction:
		r.conv.Reset(from.ID)
		r.edit(ctx, corr, chatID, msgID, welcomeText, welcomeKeyboard(r.isModerator(from.ID)))
		r.answer(ctx, corr, cb.ID, "", false)

	case StartReportAction:
		r.edit(ctx, corr, chatID, msgID, reasonPromptText, reasonKeyboard())
		r.answer(ctx, corr, cb.ID, "", false)

	case PresetReasonAction:
		r.conv.StartPreset(from.ID, a.Reason)
		r.edit(ctx, corr, chatID, msgID, targetPromptText, nil)
		r.answer(ctx, corr, cb.ID, "", false)

	case CustomReasonAction:
		r.conv.StartCustom(from.ID)
		r.edit(ctx, corr, chatID, msgID, customReasonPromptText, nil)
		r.answer(ctx, corr, cb.ID, "", false)

	case AdminPanelAction:
		if !r.isModerator(from.ID) {
			r.answer(ctx, corr, cb.ID, noAccessText, true)
			return
		}
		r.edit(ctx, corr, chatID, msgID, "⚙️ Admin panel", adminPanelKeyboard())
		r.answer(ctx, corr, cb.ID, "", false)

	case ListPageAction:
		p, err := r.queue.ListPage(ctx, from.ID, a.Kind, a.Page)
		if err != nil {
			r.callbackError(ctx, corr, cb.ID, err)
			return
		}
		r.edit(ctx, corr, chatID, msgID, listTitle(a.Kind), listKeyboard(p))
		r.answer(ctx, corr, cb.ID, "", false)

	case ViewReportAction:
		rep, err := r.queue.ReportDetail(ctx, from.ID, a.ReportID)
		if errors.Is(err, store.ErrNotFound) {
			r.edit(ctx, corr, chatID, msgID, reportNotFoundText, backToReportsKeyboard())
			r.answer(ctx, corr, cb.ID, "", false)
			return
		}
		if err != nil {
			r.callbackError(ctx, corr, cb.ID, err)
			return
		}
		r.edit(ctx, corr, chatID, msgID, reportDetailText(rep, r.senderMention(ctx, rep)), reportActionsKeyboard(rep.ID))
		r.answer(ctx, corr, cb.ID, "", false)

	case DecideReportAction:
		if !r.isModerator(from.ID) {
			r.answer(ctx, corr, cb.ID, noAccessText, true)
			return
		}
		rep, err := r.reports.Decide(ctx, a.ReportID, a.Outcome)
		switch {
		case errors.Is(err, store.ErrAlreadyDecided):
			r.answer(ctx, corr, cb.ID, fmt.Sprintf("Report #%d has already been decided.", a.ReportID), true)
		case errors.Is(err, store.ErrNotFound):
			r.edit(ctx, corr, chatID, msgID, reportNotFoundText, backToReportsKeyboard())
			r.answer(ctx, corr, cb.ID, "", false)
		case err != nil:
			r.callbackError(ctx, corr, cb.ID, err)
		default:
			r.edit(ctx, corr, chatID, msgID, reportDetailText(rep, r.senderMention(ctx, rep)), backToReportsKeyboard())
			r.answer(ctx, corr, cb.ID, "", false)
		}

	case ViewUserAction:
		u, err := r.queue.UserDetail(ctx, from.ID, a.UserID)
		if errors.Is(err, store.ErrNotFound) {
			r.edit(ctx, corr, chatID, msgID, userNotFoundText, adminPanelKeyboard())
			r.answer(ctx, corr, cb.ID, "", false)
			return
		}
		if err != nil {
			r.callbackError(ctx, corr, cb.ID, err)
			return
		}
		r.edit(ctx, corr, chatID, msgID, userProfileText(u), userProfileKeyboard(u.ID, u.Banned, a.FromBanlist))
		r.answer(ctx, corr, cb.ID, "", false)

	case BanUserAction:
		r.handleBan(ctx, corr, cb, a, chatID, msgID)

	case FastApproveAction:
		if !r.isModerator(from.ID) {
			r.answer(ctx, corr, cb.ID, noAccessText, true)
			return
		}
		r.answer(ctx, corr, cb.ID, fastApproveStubText, true)

	case NoopAction:
		r.answer(ctx, corr, cb.ID, "", false)

	default:
		r.logger.Warn("unrecognized callback data", "correlation_id", corr, "data", cb.Data)
		r.answer(ctx, corr, cb.ID, "", false)
	}
}

func (r *Router) handleBan(ctx context.Context, corr string, cb *telegram.CallbackQuery, a BanUserAction, chatID, msgID int64) {
	var u *model.User
	var err error
	if a.Unban {
		u, err = r.bans.Unban(ctx, cb.From.ID, a.UserID)
	} else {
		u, err = r.bans.Ban(ctx, cb.From.ID, a.UserID)
	}

	switch {
	case errors.Is(err, store.ErrInvalidState):
		text := "User is already banned."
		if a.Unban {
			text = "User is not banned."
		}
		r.answer(ctx, corr, cb.ID, text, true)
	case errors.Is(err, store.ErrNotFound):
		r.edit(ctx, corr, chatID, msgID, userNotFoundText, adminPanelKeyboard())
		r.answer(ctx, corr, cb.ID, "", false)
	case err != nil:
		r.callbackError(ctx, corr, cb.ID, err)
	default:
		r.edit(ctx, corr, chatID, msgID, userProfileText(u), userProfileKeyboard(u.ID, u.Banned, a.FromBanlist))
		r.answer(ctx, corr, cb.ID, "", false)
	}
}

// senderMention resolves the sender's display mention for a report
// detail, preferring the stored first name over the bare id.
func (r *Router) senderMention(ctx context.Context, rep *model.Report) string {
	if u, err := r.store.GetUser(ctx, rep.SenderID); err == nil {
		return telegram.Mention(u.ID, u.Username, u.FirstName)
	}
	return telegram.Mention(rep.SenderID, rep.SenderUsername, "")
}

// callbackError handles unexpected failures behind a button press:
// ErrForbidden becomes an access alert, everything else a generic one.
func (r *Router) callbackError(ctx context.Context, corr, callbackID string, err error) {
	if errors.Is(err, moderation.ErrForbidden) {
		r.answer(ctx, corr, callbackID, noAccessText, true)
		return
	}
	r.logger.Error("callback handling failed", "correlation_id", corr, "error", err)
	r.answer(ctx, corr, callbackID, genericFailureText, true)
}

func (r *Router) send(ctx context.Context, corr string, chatID int64, text string, kb *telegram.InlineKeyboardMarkup) {
	if _, err := r.msgr.SendMessage(ctx, chatID, text, kb); err != nil {
		r.logger.Warn("send failed", "correlation_id", corr, "chat_id", chatID, "error", err)
	}
}

func (r *Router) edit(ctx context.Context, corr string, chatID, messageID int64, text string, kb *telegram.InlineKeyboardMarkup) {
	if err := r.msgr.EditMessageText(ctx, chatID, messageID, text, kb); err != nil {
		r.logger.Warn("edit failed", "correlation_id", corr, "chat_id", chatID, "message_id", messageID, "error", err)
	}
}

func (r *Router) answer(ctx context.Context, corr, callbackID, text string, showAlert bool) {
	if err := r.msgr.AnswerCallbackQuery(ctx, callbackID, text, showAlert); err != nil {
		r.logger.Warn("answer callback failed", "correlation_id", corr, "callback_id", callbackID, "error", err)
	}
}
