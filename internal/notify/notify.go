// Package notify mails the operator a digest when a bulk action issued from
// the console leaves some items unchanged.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/lostfound/admin-console/internal/model"
)

// Config holds SendGrid settings.
type Config struct {
	APIKey      string
	FromAddress string
	FromName    string
	// To is the operator address digests go to.
	To string
	// SandboxMode when true validates requests without delivering mail.
	SandboxMode bool
}

// SendGridSender is the interface for sending emails via SendGrid.
type SendGridSender interface {
	Send(email *mail.SGMailV3) (*SendResult, error)
}

// SendResult contains the result of sending an email.
type SendResult struct {
	StatusCode int
	MessageID  string
}

// RealSendGridSender sends emails via the SendGrid API.
type RealSendGridSender struct {
	APIKey string
}

// Send dispatches an email through the SendGrid API.
func (s *RealSendGridSender) Send(email *mail.SGMailV3) (*SendResult, error) {
	client := sendgrid.NewSendClient(s.APIKey)
	resp, err := client.Send(email)
	if err != nil {
		return nil, fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("sendgrid returned status %d: %s", resp.StatusCode, resp.Body)
	}
	messageID := ""
	if ids, ok := resp.Headers["X-Message-Id"]; ok && len(ids) > 0 {
		messageID = ids[0]
	}
	return &SendResult{StatusCode: resp.StatusCode, MessageID: messageID}, nil
}

// Notifier sends bulk failure digests. A Notifier without an API key or
// recipient is disabled and every call is a no-op.
type Notifier struct {
	cfg    Config
	sender SendGridSender
	logger *slog.Logger
}

// New returns a Notifier using the real SendGrid client.
func New(cfg Config, logger *slog.Logger) *Notifier {
	return NewWithSender(cfg, &RealSendGridSender{APIKey: cfg.APIKey}, logger)
}

// NewWithSender returns a Notifier using sender.
func NewWithSender(cfg Config, sender SendGridSender, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{cfg: cfg, sender: sender, logger: logger}
}

// Enabled reports whether digests will be sent.
func (n *Notifier) Enabled() bool {
	return n != nil && n.cfg.APIKey != "" && n.cfg.To != ""
}

// BulkFailures mails a digest for a journaled bulk action that had failed
// items. Actions without failures are ignored.
func (n *Notifier) BulkFailures(ctx context.Context, action *model.ConsoleAction) error {
	if !n.Enabled() || !action.Failed() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	subject, body := ComposeDigest(action)
	from := mail.NewEmail(n.cfg.FromName, n.cfg.FromAddress)
	to := mail.NewEmail("", n.cfg.To)
	message := mail.NewSingleEmail(from, subject, to, body, "")
	if n.cfg.SandboxMode {
		settings := mail.NewMailSettings()
		settings.SetSandboxMode(mail.NewSetting(true))
		message.SetMailSettings(settings)
	}

	res, err := n.sender.Send(message)
	if err != nil {
		return fmt.Errorf("send bulk digest: %w", err)
	}
	n.logger.Info("bulk failure digest sent",
		"screen", action.Screen, "action", action.Action,
		"failed", len(action.FailedIDs), "message_id", res.MessageID)
	return nil
}

// ComposeDigest builds the subject and plain-text body for a failed bulk
// action.
func ComposeDigest(a *model.ConsoleAction) (subject, body string) {
	subject = fmt.Sprintf("[Lost & Found admin] %d of %d %s items failed: %s",
		len(a.FailedIDs), len(a.TargetIDs), a.Screen, a.Action)

	var b strings.Builder
	fmt.Fprintf(&b, "A bulk action on the %s screen did not complete for every item.\n\n", a.Screen)
	fmt.Fprintf(&b, "Action:    %s\n", a.Action)
	fmt.Fprintf(&b, "Issued at: %s\n", a.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "Selected:  %d\n", len(a.TargetIDs))
	fmt.Fprintf(&b, "Failed:    %d\n\n", len(a.FailedIDs))
	b.WriteString("Failed items:\n")
	for _, id := range a.FailedIDs {
		fmt.Fprintf(&b, "  - %s\n", id)
	}
	if a.Error != "" {
		b.WriteString("\nErrors:\n")
		for _, line := range strings.Split(a.Error, "\n") {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}
	b.WriteString("\nThe list was refreshed after the action; re-run it from the console for the failed items.\n")
	return subject, b.String()
}
