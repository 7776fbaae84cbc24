package identity

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_mailer.go -package=mocks notehub/internal/identity Mailer

import (
	"context"

	"notehub/internal/contextutil"
)

// Mailer delivers account emails: verification links and password resets.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogMailer writes outgoing mail to the request logger instead of sending it.
type LogMailer struct{}

// Send logs the message.
func (LogMailer) Send(ctx context.Context, to, subject, body string) error {
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "outgoing mail",
		"to", to,
		"subject", subject,
		"body", body,
	)
	return nil
}
