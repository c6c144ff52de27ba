package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/draly94/SW/internal/events"
	"github.com/draly94/SW/pkg/logging"
)

// InvitationMailer delivers invitation.email outbox entries.
type InvitationMailer struct {
	sender EmailSender
	appURL string
	logger *logging.Logger
}

func NewInvitationMailer(sender EmailSender, appURL string, logger *logging.Logger) *InvitationMailer {
	if logger == nil {
		logger = logging.Default()
	}
	return &InvitationMailer{
		sender: sender,
		appURL: strings.TrimRight(appURL, "/"),
		logger: logger,
	}
}

// SignInLink points the invitee at the app with their email prefilled.
func (m *InvitationMailer) SignInLink(email string) string {
	return m.appURL + "/login?email=" + url.QueryEscape(email)
}

// Handle implements events.DeliveryHandler. Malformed payloads are dropped.
func (m *InvitationMailer) Handle(ctx context.Context, entry events.OutboxEntry) error {
	var payload events.InvitationEmail
	if err := json.Unmarshal(entry.Payload, &payload); err != nil {
		m.logger.Warn("dropping malformed invitation payload", "event_id", entry.ID, "error", err)
		return nil
	}
	if strings.TrimSpace(payload.Email) == "" {
		m.logger.Warn("dropping invitation without email", "event_id", entry.ID)
		return nil
	}
	if err := m.sender.Send(ctx, m.Message(payload)); err != nil {
		return fmt.Errorf("notify: invitation email: %w", err)
	}
	m.logger.Info("invitation email sent", "event_id", entry.ID, "branch_id", entry.BranchID, "resend", payload.Resend)
	return nil
}

// Message renders the invitation email.
func (m *InvitationMailer) Message(p events.InvitationEmail) EmailMessage {
	branch := p.BranchName
	if branch == "" {
		branch = DefaultFromName
	}
	subject := fmt.Sprintf("You're invited to %s", branch)
	if p.Resend {
		subject = fmt.Sprintf("Reminder: you're invited to %s", branch)
	}
	greeting := "Hello"
	if p.Name != "" {
		greeting = "Hello " + p.Name
	}
	link := m.SignInLink(p.Email)

	body := fmt.Sprintf("%s,\n\nYou have been invited to join %s as %s.\nSign in here: %s\n", greeting, branch, p.Role, link)
	htmlBody := fmt.Sprintf(
		"<p>%s,</p><p>You have been invited to join <strong>%s</strong> as %s.</p><p><a href=\"%s\">Sign in</a></p>",
		html.EscapeString(greeting), html.EscapeString(branch), html.EscapeString(p.Role), html.EscapeString(link),
	)
	return EmailMessage{
		To:      p.Email,
		ToName:  p.Name,
		Subject: subject,
		Body:    body,
		HTML:    htmlBody,
	}
}

var _ events.DeliveryHandler = (*InvitationMailer)(nil)
