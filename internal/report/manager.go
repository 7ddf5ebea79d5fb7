// Package report implements the report lifecycle: submission of new
// reports and the single-shot pending -> approved/rejected decision.
package report

import (
	"context"
	"fmt"
	"html"
	"log/slog"

	"github.com/reportline/reportbot/internal/model"
	"github.com/reportline/reportbot/internal/store"
	"github.com/reportline/reportbot/internal/telegram"
)

// Messenger is the outbound delivery capability the manager consumes.
// Delivery failures never unwind a committed state transition.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, keyboard *telegram.InlineKeyboardMarkup) (int64, error)
}

// Alerter receives a best-effort side-channel notification when a
// report is filed.
type Alerter interface {
	ReportFiled(ctx context.Context, r *model.Report) error
}

// Manager creates reports and applies moderation decisions.
type Manager struct {
	store             store.Store
	messenger         Messenger
	moderatorID       int64
	moderatorUsername string
	alerter           Alerter
	logger            *slog.Logger
}

// NewManager creates a Manager. moderatorID may be zero, in which case
// no moderator detail notifications are sent.
func NewManager(s store.Store, m Messenger, moderatorID int64, moderatorUsername string, logger *slog.Logger) *Manager {
	return &Manager{
		store:             s,
		messenger:         m,
		moderatorID:       moderatorID,
		moderatorUsername: moderatorUsername,
		logger:            logger,
	}
}

// SetAlerter configures an optional side-channel alert for new reports.
func (m *Manager) SetAlerter(a Alerter) {
	m.alerter = a
}

// Submission carries everything needed to file a report.
type Submission struct {
	SenderID        int64
	SenderUsername  string
	SenderFirstName string
	Reason          string
	TargetID        int64
	TargetUsername  string
}

// Submit sends the sender their confirmation message, inserts the
// pending report with the confirmation's message id, increments the
// sender's cumulative count, and notifies the moderator. Only the
// insert is load-bearing; every notification after it is best-effort.
func (m *Manager) Submit(ctx context.Context, sub Submission) (*model.Report, error) {
	senderMention := telegram.Mention(sub.SenderID, sub.SenderUsername, sub.SenderFirstName)

	// The reason is user-typed and the message is HTML parse mode.
	reason := html.EscapeString(sub.Reason)
	confirmation := fmt.Sprintf("Filed by: %s\nReason: %s\nStatus: 🟡 Awaiting review..", senderMention, reason)
	msgID, err := m.messenger.SendMessage(ctx, sub.SenderID, confirmation, m.confirmationKeyboard())
	if err != nil {
		// Without a delivered confirmation there is no message id to
		// record; the user retries from an unchanged state.
		return nil, fmt.Errorf("send confirmation: %w", err)
	}

	r := &model.Report{
		SenderID:       sub.SenderID,
		SenderUsername: sub.SenderUsername,
		Reason:         sub.Reason,
		TargetID:       sub.TargetID,
		TargetUsername: sub.TargetUsername,
		MessageID:      msgID,
	}
	if err := m.store.CreateReport(ctx, r); err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}
	if err := m.store.IncrementUserReports(ctx, sub.SenderID); err != nil {
		return nil, fmt.Errorf("increment report count: %w", err)
	}

	if m.moderatorID != 0 {
		targetMention := telegram.Mention(r.TargetID, r.TargetUsername, "Unknown")
		notice := fmt.Sprintf(
			"📩 <b>New report!</b>\n👤 From: %s\n🆔 ID: %d\n📄 Reason: %s\n🎯 Target: %s\n⏳ Filed: %s",
			senderMention, r.SenderID, reason, targetMention,
			r.CreatedAt.Format("02.01.2006 | 15:04:05"))
		if _, err := m.messenger.SendMessage(ctx, m.moderatorID, notice, nil); err != nil {
			m.logger.Warn("moderator notification failed", "report_id", r.ID, "error", err)
		}
	}

	if m.alerter != nil {
		if err := m.alerter.ReportFiled(ctx, r); err != nil {
			m.logger.Warn("report alert failed", "report_id", r.ID, "error", err)
		}
	}

	m.logger.Info("report filed",
		"report_id", r.ID,
		"sender_id", r.SenderID,
		"target_id", r.TargetID,
		"target_username", r.TargetUsername)
	return r, nil
}

// Outcome is a moderation decision on a pending report.
type Outcome string

const (
	OutcomeApprove Outcome = "approve"
	OutcomeReject  Outcome = "reject"
)

// Status returns the terminal report status for the outcome.
func (o Outcome) Status() model.ReportStatus {
	if o == OutcomeApprove {
		return model.StatusApproved
	}
	return model.StatusRejected
}

// Decide applies a terminal decision to a pending report and returns
// the updated report. A missing report yields store.ErrNotFound; a
// repeated decision yields store.ErrAlreadyDecided and leaves the
// status untouched. The sender is notified best-effort after the
// decision commits.
func (m *Manager) Decide(ctx context.Context, reportID int64, outcome Outcome) (*model.Report, error) {
	if err := m.store.DecideReport(ctx, reportID, outcome.Status()); err != nil {
		return nil, err
	}
	r, err := m.store.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}

	var notice string
	if outcome == OutcomeApprove {
		notice = fmt.Sprintf("🟢 Report #%d approved!", reportID)
	} else {
		notice = fmt.Sprintf("🔴 Report #%d rejected!", reportID)
	}
	if _, err := m.messenger.SendMessage(ctx, r.SenderID, notice, nil); err != nil {
		m.logger.Warn("decision notification failed",
			"report_id", reportID, "sender_id", r.SenderID, "error", err)
	}

	m.logger.Info("report decided", "report_id", reportID, "status", r.Status)
	return r, nil
}

// confirmationKeyboard builds the keyboard attached to the sender's
// confirmation: a deep link to the moderator plus a way back to the
// main menu.
func (m *Manager) confirmationKeyboard() *telegram.InlineKeyboardMarkup {
	kb := &telegram.InlineKeyboardMarkup{}
	if m.moderatorUsername != "" {
		kb.InlineKeyboard = append(kb.InlineKeyboard, telegram.Row(telegram.InlineKeyboardButton{
			Text: "Instant approval 🟢",
			URL:  "https://t.me/" + m.moderatorUsername,
		}))
	}
	kb.InlineKeyboard = append(kb.InlineKeyboard, telegram.Row(telegram.InlineKeyboardButton{
		Text:         "Back to menu",
		CallbackData: "back_to_main",
	}))
	return kb
}
