package storage

import "time"

// Document is one stored record: an id, its fields, and the server-assigned
// creation time (zero when the record predates server timestamps).
type Document struct {
	ID        string
	Fields    map[string]any
	CreatedAt time.Time
}

// Account is an identity known to the sign-in layer.
type Account struct {
	ID              string
	Email           string
	PasswordHash    string // empty for federated-only accounts
	DisplayName     string
	PhotoURL        string
	EmailVerified   bool
	Provider        string // "password", "google", "facebook", "github"
	ProviderSubject string
	CreatedAt       time.Time
}

// Session backs one issued token.
type Session struct {
	ID        string
	AccountID string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt time.Time // zero while active
}
