package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AccountStore defines the interface for account storage operations.
type AccountStore interface {
	Create(ctx context.Context, a *Account) error
	Get(ctx context.Context, id string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByProvider(ctx context.Context, provider, subject string) (*Account, error)
	Update(ctx context.Context, a *Account) error
}

// AccountRepo implements AccountStore using SQLite.
type AccountRepo struct {
	db *sql.DB
}

// NewAccountRepo creates a new account repository.
func NewAccountRepo(db *sql.DB) *AccountRepo {
	return &AccountRepo{db: db}
}

const accountColumns = `id, email, password_hash, display_name, photo_url, email_verified, provider, provider_subject, created_at`

// Create inserts a new account. The email is stored lowercased; an id and
// creation time are assigned when missing.
func (r *AccountRepo) Create(ctx context.Context, a *Account) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.UnixMilli(time.Now().UnixMilli())
	}
	a.Email = normalizeEmail(a.Email)
	if a.Provider == "" {
		a.Provider = "password"
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Email, a.PasswordHash, a.DisplayName, a.PhotoURL, a.EmailVerified,
		a.Provider, a.ProviderSubject, a.CreatedAt.UnixMilli())
	if err != nil {
		return classify("create account", err)
	}
	return nil
}

// Get retrieves an account by id.
func (r *AccountRepo) Get(ctx context.Context, id string) (*Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	return scanAccount("get account", row)
}

// GetByEmail retrieves an account by email, ignoring case.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = ?`, normalizeEmail(email))
	return scanAccount("get account by email", row)
}

// GetByProvider retrieves a federated account by provider subject.
func (r *AccountRepo) GetByProvider(ctx context.Context, provider, subject string) (*Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE provider = ? AND provider_subject = ?`,
		provider, subject)
	return scanAccount("get account by provider", row)
}

// Update saves every mutable column of a.
func (r *AccountRepo) Update(ctx context.Context, a *Account) error {
	a.Email = normalizeEmail(a.Email)
	result, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET email = ?, password_hash = ?, display_name = ?, photo_url = ?,
			email_verified = ?, provider = ?, provider_subject = ?
		WHERE id = ?`,
		a.Email, a.PasswordHash, a.DisplayName, a.PhotoURL, a.EmailVerified,
		a.Provider, a.ProviderSubject, a.ID)
	if err != nil {
		return classify("update account", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return classify("update account", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAccount(op string, row rowScanner) (*Account, error) {
	var (
		a         Account
		createdAt int64
	)
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.DisplayName, &a.PhotoURL,
		&a.EmailVerified, &a.Provider, &a.ProviderSubject, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, classify(op, fmt.Errorf("failed to scan account: %w", err))
	}
	a.CreatedAt = time.UnixMilli(createdAt)
	return &a, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
