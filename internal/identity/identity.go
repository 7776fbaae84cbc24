// Package identity signs actors in and out and resolves session tokens to actors.
package identity

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_service.go -package=mocks notehub/internal/identity Service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"notehub/internal/contextutil"
	"notehub/internal/storage"
)

const (
	// UsersCollection holds per-user role records keyed by account id.
	UsersCollection = "users"

	minPasswordLength = 6
	resetTokenTTL     = time.Hour
	verifyTokenTTL    = 72 * time.Hour
)

// Service is the identity collaborator consumed by handlers and the CLI.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*Actor, error)
	SignInPassword(ctx context.Context, email, password string) (string, *Actor, error)
	SignInFederated(ctx context.Context, provider, assertion string) (string, *Actor, error)
	SignInAdmin(ctx context.Context, email, password string) (string, *Actor, error)
	SignOut(ctx context.Context, token string) error
	SendPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
	ChangePassword(ctx context.Context, actor *Actor, oldPassword, newPassword string) error
	UpdateProfile(ctx context.Context, actor *Actor, displayName, photoURL string) (*Actor, error)
	VerifyEmail(ctx context.Context, token string) error
	MarkVerified(ctx context.Context, email string) error
	SetRole(ctx context.Context, email, role string) error
	Actor(ctx context.Context, token string) (*Actor, error)
}

// RegisterRequest carries a password registration.
type RegisterRequest struct {
	Email       string
	Password    string
	DisplayName string
	// Role is written to the user's role record when non-empty.
	Role string
}

// Config holds the signing secrets and lifetimes.
type Config struct {
	Secret     []byte
	SessionTTL time.Duration
	// FederationSecret verifies identity assertions from the upstream
	// federated sign-in proxy. Federated sign-in is disabled when empty.
	FederationSecret []byte
}

type service struct {
	accounts storage.AccountStore
	sessions storage.SessionStore
	docs     storage.DocumentStore
	mailer   Mailer
	tokens   tokenIssuer
	fed      tokenIssuer
	ttl      time.Duration
	now      func() time.Time

	mu     sync.RWMutex
	actors map[string]cachedActor // by session id
}

// Role and verification changes made by another process reach this one once
// its cached actor ages out.
const actorCacheTTL = 30 * time.Second

type cachedActor struct {
	actor    *Actor
	loadedAt time.Time
}

// New creates an identity service.
func New(cfg Config, accounts storage.AccountStore, sessions storage.SessionStore, docs storage.DocumentStore, mailer Mailer) Service {
	return newService(cfg, accounts, sessions, docs, mailer, time.Now)
}

func newService(cfg Config, accounts storage.AccountStore, sessions storage.SessionStore, docs storage.DocumentStore, mailer Mailer, now func() time.Time) *service {
	if mailer == nil {
		mailer = LogMailer{}
	}
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &service{
		accounts: accounts,
		sessions: sessions,
		docs:     docs,
		mailer:   mailer,
		tokens:   tokenIssuer{secret: cfg.Secret, now: now},
		fed:      tokenIssuer{secret: cfg.FederationSecret, now: now},
		ttl:      ttl,
		now:      now,
		actors:   make(map[string]cachedActor),
	}
}

// Register creates a password account and sends a verification email.
// It does not sign the new account in.
func (s *service) Register(ctx context.Context, req RegisterRequest) (*Actor, error) {
	email, err := validEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if len(req.Password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &storage.Account{
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  strings.TrimSpace(req.DisplayName),
		Provider:     "password",
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, ErrEmailInUse
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	if req.Role != "" {
		if err := s.writeRole(ctx, account.ID, account.Email, req.Role); err != nil {
			return nil, err
		}
	}

	if err := s.sendVerification(ctx, account); err != nil {
		// The account exists; verification can be resent by the operator.
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "failed to send verification email",
			"account_id", account.ID,
			"error", err,
		)
	}

	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "account registered", "account_id", account.ID)
	return s.toActor(ctx, account, "")
}

// SignInPassword checks the credential and opens a session.
func (s *service) SignInPassword(ctx context.Context, email, password string) (string, *Actor, error) {
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", nil, ErrWrongCredential
		}
		return "", nil, fmt.Errorf("failed to load account: %w", err)
	}
	if account.PasswordHash == "" {
		return "", nil, ErrWrongCredential
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrWrongCredential
	}
	return s.openSession(ctx, account)
}

// SignInAdmin signs in with a password and then requires a verified email and
// the admin role. On either failure the new session is revoked before returning.
func (s *service) SignInAdmin(ctx context.Context, email, password string) (string, *Actor, error) {
	token, actor, err := s.SignInPassword(ctx, email, password)
	if err != nil {
		return "", nil, err
	}

	var denied error
	switch {
	case !actor.EmailVerified:
		denied = ErrEmailNotVerified
	case !actor.IsAdmin():
		denied = ErrNotAdmin
	}
	if denied != nil {
		if err := s.revoke(ctx, actor.SessionID); err != nil {
			return "", nil, err
		}
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "admin sign-in denied",
			"account_id", actor.ID,
			"reason", denied.Error(),
		)
		return "", nil, denied
	}
	return token, actor, nil
}

// SignOut revokes the session behind token.
func (s *service) SignOut(ctx context.Context, token string) error {
	c, err := s.tokens.parse(token, purposeSession)
	if err != nil {
		return ErrSessionInvalid
	}
	return s.revoke(ctx, c.ID)
}

// SendPasswordReset mails a short-lived reset token.
func (s *service) SendPasswordReset(ctx context.Context, email string) error {
	addr, err := validEmail(email)
	if err != nil {
		return err
	}
	account, err := s.accounts.GetByEmail(ctx, addr)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to load account: %w", err)
	}

	token, err := s.tokens.issue(purposeReset, account.ID, uuid.New().String(), passwordFingerprint(account.PasswordHash), resetTokenTTL)
	if err != nil {
		return err
	}
	body := "Use this code to reset your password: " + token
	if err := s.mailer.Send(ctx, account.Email, "Reset your password", body); err != nil {
		return fmt.Errorf("failed to send reset email: %w", err)
	}
	return nil
}

// ConfirmPasswordReset sets a new password using a reset token. Every open
// session of the account is revoked.
func (s *service) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	c, err := s.tokens.parse(token, purposeReset)
	if err != nil {
		return ErrSessionInvalid
	}
	if len(newPassword) < minPasswordLength {
		return ErrWeakPassword
	}

	account, err := s.accounts.Get(ctx, c.Subject)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to load account: %w", err)
	}
	if c.Fingerprint != passwordFingerprint(account.PasswordHash) {
		return ErrSessionInvalid
	}

	if err := s.setPassword(ctx, account, newPassword); err != nil {
		return err
	}
	if err := s.sessions.RevokeAll(ctx, account.ID, s.now()); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}
	s.forgetAccount(account.ID)
	return nil
}

// ChangePassword reauthenticates with the old password before setting the new one.
func (s *service) ChangePassword(ctx context.Context, actor *Actor, oldPassword, newPassword string) error {
	if actor == nil {
		return ErrSessionInvalid
	}
	if len(newPassword) < minPasswordLength {
		return ErrWeakPassword
	}
	account, err := s.accounts.Get(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrSessionInvalid
		}
		return fmt.Errorf("failed to load account: %w", err)
	}
	if account.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(oldPassword)) != nil {
		return ErrWrongCredential
	}
	return s.setPassword(ctx, account, newPassword)
}

// UpdateProfile changes the display name and photo URL. Empty values keep the
// current ones. The cached actor for this session is patched in place.
func (s *service) UpdateProfile(ctx context.Context, actor *Actor, displayName, photoURL string) (*Actor, error) {
	if actor == nil {
		return nil, ErrSessionInvalid
	}
	account, err := s.accounts.Get(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrSessionInvalid
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	if v := strings.TrimSpace(displayName); v != "" {
		account.DisplayName = v
	}
	if v := strings.TrimSpace(photoURL); v != "" {
		account.PhotoURL = v
	}
	if err := s.accounts.Update(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	patched := *actor
	patched.DisplayName = account.DisplayName
	patched.PhotoURL = account.PhotoURL

	s.mu.Lock()
	if cached, ok := s.actors[actor.SessionID]; ok {
		cached.actor.DisplayName = patched.DisplayName
		cached.actor.PhotoURL = patched.PhotoURL
	}
	s.mu.Unlock()

	return &patched, nil
}

// VerifyEmail marks the account behind a verification token as verified.
func (s *service) VerifyEmail(ctx context.Context, token string) error {
	c, err := s.tokens.parse(token, purposeVerify)
	if err != nil {
		return ErrSessionInvalid
	}
	account, err := s.accounts.Get(ctx, c.Subject)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to load account: %w", err)
	}
	return s.markVerified(ctx, account)
}

// MarkVerified verifies an email without a token. Operator use only.
func (s *service) MarkVerified(ctx context.Context, email string) error {
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to load account: %w", err)
	}
	return s.markVerified(ctx, account)
}

// SetRole writes the role record for the account with the given email.
func (s *service) SetRole(ctx context.Context, email, role string) error {
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to load account: %w", err)
	}
	if err := s.writeRole(ctx, account.ID, account.Email, strings.TrimSpace(role)); err != nil {
		return err
	}
	s.forgetAccount(account.ID)
	return nil
}

// Actor resolves a session token to the signed-in actor.
func (s *service) Actor(ctx context.Context, token string) (*Actor, error) {
	c, err := s.tokens.parse(token, purposeSession)
	if err != nil {
		return nil, ErrSessionInvalid
	}

	session, err := s.sessions.Get(ctx, c.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrSessionInvalid
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	now := s.now()
	if session.AccountID != c.Subject || !session.Active(now) {
		s.forgetSession(session.ID)
		return nil, ErrSessionInvalid
	}

	s.mu.RLock()
	cached, ok := s.actors[session.ID]
	var out Actor
	if ok && now.Sub(cached.loadedAt) < actorCacheTTL {
		out = *cached.actor
	} else {
		ok = false
	}
	s.mu.RUnlock()
	if ok {
		return &out, nil
	}

	account, err := s.accounts.Get(ctx, session.AccountID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrSessionInvalid
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	actor, err := s.toActor(ctx, account, session.ID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.actors[session.ID] = cachedActor{actor: actor, loadedAt: now}
	s.mu.Unlock()

	copied := *actor
	return &copied, nil
}

func (s *service) openSession(ctx context.Context, account *storage.Account) (string, *Actor, error) {
	now := s.now()
	session := &storage.Session{
		ID:        uuid.New().String(),
		AccountID: account.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return "", nil, fmt.Errorf("failed to create session: %w", err)
	}

	token, err := s.tokens.issue(purposeSession, account.ID, session.ID, "", s.ttl)
	if err != nil {
		return "", nil, err
	}
	actor, err := s.toActor(ctx, account, session.ID)
	if err != nil {
		return "", nil, err
	}

	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "signed in",
		"account_id", account.ID,
		"provider", account.Provider,
	)
	return token, actor, nil
}

func (s *service) revoke(ctx context.Context, sessionID string) error {
	if err := s.sessions.Revoke(ctx, sessionID, s.now()); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	s.forgetSession(sessionID)
	return nil
}

func (s *service) setPassword(ctx context.Context, account *storage.Account, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	account.PasswordHash = string(hash)
	if err := s.accounts.Update(ctx, account); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

func (s *service) markVerified(ctx context.Context, account *storage.Account) error {
	if account.EmailVerified {
		return nil
	}
	account.EmailVerified = true
	if err := s.accounts.Update(ctx, account); err != nil {
		return fmt.Errorf("failed to verify email: %w", err)
	}
	s.forgetAccount(account.ID)
	return nil
}

func (s *service) sendVerification(ctx context.Context, account *storage.Account) error {
	token, err := s.tokens.issue(purposeVerify, account.ID, uuid.New().String(), "", verifyTokenTTL)
	if err != nil {
		return err
	}
	body := "Confirm your email with this code: " + token
	return s.mailer.Send(ctx, account.Email, "Verify your email", body)
}

// role is a side read of the user's role record. A missing record means no role.
func (s *service) role(ctx context.Context, accountID string) (string, error) {
	doc, err := s.docs.Get(ctx, UsersCollection, accountID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to load role: %w", err)
	}
	role, _ := doc.Fields["role"].(string)
	return role, nil
}

func (s *service) writeRole(ctx context.Context, accountID, email, role string) error {
	err := s.docs.Update(ctx, UsersCollection, accountID, map[string]any{"email": email, "role": role})
	if errors.Is(err, storage.ErrNotFound) {
		err = s.docs.Put(ctx, UsersCollection, storage.Document{
			ID:        accountID,
			Fields:    map[string]any{"email": email, "role": role},
			CreatedAt: s.now(),
		})
	}
	if err != nil {
		return fmt.Errorf("failed to write role: %w", err)
	}
	return nil
}

func (s *service) toActor(ctx context.Context, account *storage.Account, sessionID string) (*Actor, error) {
	role, err := s.role(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	return &Actor{
		ID:            account.ID,
		Email:         account.Email,
		DisplayName:   account.DisplayName,
		PhotoURL:      account.PhotoURL,
		EmailVerified: account.EmailVerified,
		Role:          role,
		SessionID:     sessionID,
	}, nil
}

func (s *service) forgetSession(sessionID string) {
	s.mu.Lock()
	delete(s.actors, sessionID)
	s.mu.Unlock()
}

func (s *service) forgetAccount(accountID string) {
	s.mu.Lock()
	for id, cached := range s.actors {
		if cached.actor.ID == accountID {
			delete(s.actors, id)
		}
	}
	s.mu.Unlock()
}

func validEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil || addr.Name != "" {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(addr.Address), nil
}
