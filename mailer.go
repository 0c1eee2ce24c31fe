package accounts

import (
	"context"
	"fmt"
)

// SetPasswordEmail carries everything the mail layer needs to render a
// set-password message. Subject and body templates are an external concern.
type SetPasswordEmail struct {
	To        string
	FromEmail string
	Domain    string
	UseHTTPS  bool
	ResetID   string
}

// Link builds the absolute set-password URL the message points at.
func (m SetPasswordEmail) Link() string {
	scheme := "http"
	if m.UseHTTPS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/password-reset/%s", scheme, m.Domain, m.ResetID)
}

// Mailer delivers set-password messages. Implementations should treat
// delivery as best effort; the caller swallows errors.
type Mailer interface {
	SendSetPassword(ctx context.Context, msg SetPasswordEmail) error
}

// LogMailer writes the notification to the logger instead of delivering
// it. Useful default for development and tests.
type LogMailer struct {
	Logger Logger
}

func (m LogMailer) SendSetPassword(ctx context.Context, msg SetPasswordEmail) error {
	logger := m.Logger
	if logger == nil {
		logger = defLogger{}
	}
	logger.Info("set-password email", "to", msg.To, "from", msg.FromEmail, "link", msg.Link())
	return nil
}
