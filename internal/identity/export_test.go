package identity

import (
	"time"

	"notehub/internal/storage"
)

// NewWithClock builds a service with a controllable clock.
func NewWithClock(cfg Config, accounts storage.AccountStore, sessions storage.SessionStore, docs storage.DocumentStore, mailer Mailer, now func() time.Time) Service {
	return newService(cfg, accounts, sessions, docs, mailer, now)
}
