package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SessionStore defines the interface for session storage operations.
type SessionStore interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Revoke(ctx context.Context, id string, at time.Time) error
	RevokeAll(ctx context.Context, accountID string, at time.Time) error
}

// SessionRepo implements SessionStore using SQLite.
type SessionRepo struct {
	db *sql.DB
}

// NewSessionRepo creates a new session repository.
func NewSessionRepo(db *sql.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Create inserts a new session.
func (r *SessionRepo) Create(ctx context.Context, s *Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, account_id, created_at, expires_at, revoked_at) VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.AccountID, s.CreatedAt.UnixMilli(), s.ExpiresAt.UnixMilli(), toMillis(s.RevokedAt))
	if err != nil {
		return classify("create session", err)
	}
	return nil
}

// Get retrieves a session by id, revoked or not.
func (r *SessionRepo) Get(ctx context.Context, id string) (*Session, error) {
	var (
		s                    Session
		createdAt, expiresAt int64
		revokedAt            sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, account_id, created_at, expires_at, revoked_at FROM sessions WHERE id = ?`, id,
	).Scan(&s.ID, &s.AccountID, &createdAt, &expiresAt, &revokedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, classify("get session", err)
	}
	s.CreatedAt = time.UnixMilli(createdAt)
	s.ExpiresAt = time.UnixMilli(expiresAt)
	s.RevokedAt = fromMillis(revokedAt)
	return &s, nil
}

// Revoke marks one session revoked. Revoking twice keeps the first time.
func (r *SessionRepo) Revoke(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = COALESCE(revoked_at, ?) WHERE id = ?`, at.UnixMilli(), id)
	if err != nil {
		return classify("revoke session", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return classify("revoke session", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RevokeAll revokes every active session of an account.
func (r *SessionRepo) RevokeAll(ctx context.Context, accountID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = ? WHERE account_id = ? AND revoked_at IS NULL`,
		at.UnixMilli(), accountID)
	if err != nil {
		return classify("revoke sessions", err)
	}
	return nil
}

// Active reports whether the session can still authenticate at now.
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt.IsZero() && now.Before(s.ExpiresAt)
}
