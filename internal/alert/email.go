// Package alert delivers side-channel notifications about newly filed
// reports, so a moderator who is away from the chat still hears about
// them. Delivery is best-effort by contract: the report manager logs
// and continues when an alert fails.
package alert

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/reportline/reportbot/internal/model"
)

// SendGridSender is the interface for sending emails via SendGrid.
// This abstraction allows for easy mocking in tests.
type SendGridSender interface {
	Send(email *mail.SGMailV3) (*SendResult, error)
}

// SendResult contains the result of sending an email.
type SendResult struct {
	StatusCode int
}

// RealSendGridSender sends emails via the SendGrid API.
type RealSendGridSender struct {
	APIKey string
}

func (s *RealSendGridSender) Send(email *mail.SGMailV3) (*SendResult, error) {
	client := sendgrid.NewSendClient(s.APIKey)
	resp, err := client.Send(email)
	if err != nil {
		return nil, fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("sendgrid returned status %d: %s", resp.StatusCode, resp.Body)
	}
	return &SendResult{StatusCode: resp.StatusCode}, nil
}

// EmailConfig holds settings for composing report alert emails.
type EmailConfig struct {
	FromAddress string
	FromName    string
	ToAddress   string
}

// EmailAlerter emails the moderator a summary of each filed report.
type EmailAlerter struct {
	config EmailConfig
	sender SendGridSender
}

// NewEmailAlerter creates an alerter using the given sender. Passing a
// nil sender sends through the live SendGrid API with apiKey.
func NewEmailAlerter(cfg EmailConfig, apiKey string, sender SendGridSender) *EmailAlerter {
	if sender == nil {
		sender = &RealSendGridSender{APIKey: apiKey}
	}
	return &EmailAlerter{config: cfg, sender: sender}
}

// ReportFiled emails a plain-text summary of the report.
func (a *EmailAlerter) ReportFiled(_ context.Context, r *model.Report) error {
	subject := fmt.Sprintf("New report #%d: %s", r.ID, r.Reason)

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Report #%d\n\n", r.ID))
	b.WriteString(fmt.Sprintf("Reason: %s\n", r.Reason))
	b.WriteString(fmt.Sprintf("Sender: %s (ID %d)\n", senderLabel(r), r.SenderID))
	b.WriteString(fmt.Sprintf("Target: %s\n", targetLabel(r)))
	b.WriteString(fmt.Sprintf("Filed:  %s\n", r.CreatedAt.Format(time.RFC1123)))

	from := mail.NewEmail(a.config.FromName, a.config.FromAddress)
	to := mail.NewEmail("", a.config.ToAddress)
	msg := mail.NewSingleEmail(from, subject, to, b.String(), "")

	_, err := a.sender.Send(msg)
	return err
}

func senderLabel(r *model.Report) string {
	if r.SenderUsername != "" {
		return "@" + r.SenderUsername
	}
	return "unknown handle"
}

func targetLabel(r *model.Report) string {
	if r.TargetUsername != "" {
		return "@" + r.TargetUsername
	}
	return fmt.Sprintf("ID %d", r.TargetID)
}
