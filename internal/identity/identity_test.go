package identity_test

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/mock/gomock"

	"notehub/internal/identity"
	"notehub/internal/identity/mocks"
	"notehub/internal/storage"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

var fedSecret = []byte("federation-secret")

type fixture struct {
	svc   identity.Service
	db    *sql.DB
	clock *time.Time
	mu    sync.Mutex
	mail  map[string]string // last body by subject
}

func (f *fixture) lastCode(t *testing.T, subject string) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.mail[subject]
	if !ok {
		t.Fatalf("no mail with subject %q", subject)
	}
	return body[strings.LastIndex(body, " ")+1:]
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	ctrl := gomock.NewController(t)
	mailer := mocks.NewMockMailer(ctrl)

	now := time.Unix(1_700_000_000, 0)
	f := &fixture{db: db, clock: &now, mail: map[string]string{}}
	mailer.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _, subject, body string) error {
			f.mu.Lock()
			f.mail[subject] = body
			f.mu.Unlock()
			return nil
		}).AnyTimes()

	f.svc = identity.NewWithClock(
		identity.Config{Secret: []byte("test-secret"), SessionTTL: time.Hour, FederationSecret: fedSecret},
		storage.NewAccountRepo(db),
		storage.NewSessionRepo(db),
		storage.NewDocumentRepo(db, nil),
		mailer,
		func() time.Time { return *f.clock },
	)
	return f
}

func register(t *testing.T, f *fixture, email, password string) *identity.Actor {
	t.Helper()
	a, err := f.svc.Register(context.Background(), identity.RegisterRequest{Email: email, Password: password})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return a
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	register(t, f, "taken@uni.edu", "secret1")

	tests := []struct {
		name    string
		req     identity.RegisterRequest
		wantErr error
	}{
		{"invalid email", identity.RegisterRequest{Email: "not-an-email", Password: "secret1"}, identity.ErrInvalidEmail},
		{"weak password", identity.RegisterRequest{Email: "a@uni.edu", Password: "12345"}, identity.ErrWeakPassword},
		{"email in use", identity.RegisterRequest{Email: "TAKEN@uni.edu", Password: "secret1"}, identity.ErrEmailInUse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(ctx, tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Register() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSignInPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	registered := register(t, f, "student@uni.edu", "secret1")
	if registered.EmailVerified {
		t.Error("new account should not be verified")
	}

	token, actor, err := f.svc.SignInPassword(ctx, "Student@uni.edu", "secret1")
	if err != nil {
		t.Fatalf("SignInPassword() error = %v", err)
	}
	if actor.ID != registered.ID || actor.SessionID == "" {
		t.Errorf("actor = %+v", actor)
	}

	resolved, err := f.svc.Actor(ctx, token)
	if err != nil {
		t.Fatalf("Actor() error = %v", err)
	}
	if resolved.Email != "student@uni.edu" {
		t.Errorf("Actor().Email = %q", resolved.Email)
	}

	for _, tc := range []struct{ email, password string }{
		{"student@uni.edu", "wrong-password"},
		{"nobody@uni.edu", "secret1"},
	} {
		if _, _, err := f.svc.SignInPassword(ctx, tc.email, tc.password); !errors.Is(err, identity.ErrWrongCredential) {
			t.Errorf("SignInPassword(%s) error = %v, want ErrWrongCredential", tc.email, err)
		}
	}
}

func TestSignOutAndExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	register(t, f, "a@uni.edu", "secret1")

	token, _, err := f.svc.SignInPassword(ctx, "a@uni.edu", "secret1")
	if err != nil {
		t.Fatalf("SignInPassword() error = %v", err)
	}
	if err := f.svc.SignOut(ctx, token); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	if _, err := f.svc.Actor(ctx, token); !errors.Is(err, identity.ErrSessionInvalid) {
		t.Errorf("Actor() after sign out error = %v, want ErrSessionInvalid", err)
	}

	token, _, _ = f.svc.SignInPassword(ctx, "a@uni.edu", "secret1")
	*f.clock = f.clock.Add(2 * time.Hour)
	if _, err := f.svc.Actor(ctx, token); !errors.Is(err, identity.ErrSessionInvalid) {
		t.Errorf("Actor() after expiry error = %v, want ErrSessionInvalid", err)
	}

	if _, err := f.svc.Actor(ctx, "garbage"); !errors.Is(err, identity.ErrSessionInvalid) {
		t.Errorf("Actor(garbage) error = %v, want ErrSessionInvalid", err)
	}
}

func activeSessions(t *testing.T, f *fixture) int {
	t.Helper()
	var n int
	if err := f.db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE revoked_at IS NULL`).Scan(&n); err != nil {
		t.Fatalf("count sessions: %v", err)
	}
	return n
}

func TestSignInAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	register(t, f, "admin@uni.edu", "secret1")

	_, _, err := f.svc.SignInAdmin(ctx, "admin@uni.edu", "secret1")
	if !errors.Is(err, identity.ErrEmailNotVerified) {
		t.Fatalf("SignInAdmin(unverified) error = %v, want ErrEmailNotVerified", err)
	}
	if n := activeSessions(t, f); n != 0 {
		t.Errorf("active sessions after denial = %d, want 0", n)
	}

	if err := f.svc.VerifyEmail(ctx, f.lastCode(t, "Verify your email")); err != nil {
		t.Fatalf("VerifyEmail() error = %v", err)
	}
	_, _, err = f.svc.SignInAdmin(ctx, "admin@uni.edu", "secret1")
	if !errors.Is(err, identity.ErrNotAdmin) {
		t.Fatalf("SignInAdmin(no role) error = %v, want ErrNotAdmin", err)
	}
	if n := activeSessions(t, f); n != 0 {
		t.Errorf("active sessions after denial = %d, want 0", n)
	}

	if err := f.svc.SetRole(ctx, "admin@uni.edu", identity.RoleAdmin); err != nil {
		t.Fatalf("SetRole() error = %v", err)
	}
	token, actor, err := f.svc.SignInAdmin(ctx, "admin@uni.edu", "secret1")
	if err != nil {
		t.Fatalf("SignInAdmin() error = %v", err)
	}
	if !actor.IsAdmin() || token == "" {
		t.Errorf("SignInAdmin() actor = %+v", actor)
	}
}

func TestRegister_WithRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, identity.RegisterRequest{Email: "boss@uni.edu", Password: "secret1", Role: identity.RoleAdmin})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := f.svc.MarkVerified(ctx, "boss@uni.edu"); err != nil {
		t.Fatalf("MarkVerified() error = %v", err)
	}
	if _, actor, err := f.svc.SignInAdmin(ctx, "boss@uni.edu", "secret1"); err != nil || !actor.IsAdmin() {
		t.Errorf("SignInAdmin() = %+v, %v", actor, err)
	}
}

func TestPasswordReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	register(t, f, "a@uni.edu", "secret1")
	oldToken, _, _ := f.svc.SignInPassword(ctx, "a@uni.edu", "secret1")

	if err := f.svc.SendPasswordReset(ctx, "nobody@uni.edu"); !errors.Is(err, identity.ErrUserNotFound) {
		t.Errorf("SendPasswordReset(unknown) error = %v, want ErrUserNotFound", err)
	}
	if err := f.svc.SendPasswordReset(ctx, "bad"); !errors.Is(err, identity.ErrInvalidEmail) {
		t.Errorf("SendPasswordReset(bad) error = %v, want ErrInvalidEmail", err)
	}
	if err := f.svc.SendPasswordReset(ctx, "a@uni.edu"); err != nil {
		t.Fatalf("SendPasswordReset() error = %v", err)
	}
	code := f.lastCode(t, "Reset your password")

	if err := f.svc.ConfirmPasswordReset(ctx, code, "123"); !errors.Is(err, identity.ErrWeakPassword) {
		t.Errorf("ConfirmPasswordReset(weak) error = %v, want ErrWeakPassword", err)
	}
	if err := f.svc.ConfirmPasswordReset(ctx, code, "brand-new"); err != nil {
		t.Fatalf("ConfirmPasswordReset() error = %v", err)
	}
	if _, _, err := f.svc.SignInPassword(ctx, "a@uni.edu", "brand-new"); err != nil {
		t.Errorf("SignInPassword(new) error = %v", err)
	}
	if _, err := f.svc.Actor(ctx, oldToken); !errors.Is(err, identity.ErrSessionInvalid) {
		t.Errorf("old session should be revoked, got %v", err)
	}
	if err := f.svc.ConfirmPasswordReset(ctx, code, "another1"); !errors.Is(err, identity.ErrSessionInvalid) {
		t.Errorf("reused reset code error = %v, want ErrSessionInvalid", err)
	}
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	register(t, f, "a@uni.edu", "secret1")
	_, actor, _ := f.svc.SignInPassword(ctx, "a@uni.edu", "secret1")

	if err := f.svc.ChangePassword(ctx, actor, "wrong", "newpass"); !errors.Is(err, identity.ErrWrongCredential) {
		t.Errorf("ChangePassword(wrong old) error = %v, want ErrWrongCredential", err)
	}
	if err := f.svc.ChangePassword(ctx, actor, "secret1", "short"); !errors.Is(err, identity.ErrWeakPassword) {
		t.Errorf("ChangePassword(weak) error = %v, want ErrWeakPassword", err)
	}
	if err := f.svc.ChangePassword(ctx, actor, "secret1", "newpass"); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}
	if _, _, err := f.svc.SignInPassword(ctx, "a@uni.edu", "newpass"); err != nil {
		t.Errorf("SignInPassword(new) error = %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	register(t, f, "a@uni.edu", "secret1")
	token, _, _ := f.svc.SignInPassword(ctx, "a@uni.edu", "secret1")

	// Prime the cache
	actor, err := f.svc.Actor(ctx, token)
	if err != nil {
		t.Fatalf("Actor() error = %v", err)
	}

	updated, err := f.svc.UpdateProfile(ctx, actor, "  Nadia  ", "")
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if updated.DisplayName != "Nadia" || updated.PhotoURL != "" {
		t.Errorf("UpdateProfile() = %+v", updated)
	}

	updated, err = f.svc.UpdateProfile(ctx, updated, "", "https://img.example/p.png")
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if updated.DisplayName != "Nadia" {
		t.Errorf("empty display name should keep current, got %q", updated.DisplayName)
	}

	cached, _ := f.svc.Actor(ctx, token)
	if cached.DisplayName != "Nadia" || cached.PhotoURL != "https://img.example/p.png" {
		t.Errorf("cached actor not patched: %+v", cached)
	}
}

func TestActor_SeesRoleChangeFromAnotherProcess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	register(t, f, "a@uni.edu", "secret1")
	token, _, err := f.svc.SignInPassword(ctx, "a@uni.edu", "secret1")
	if err != nil {
		t.Fatalf("SignInPassword() error = %v", err)
	}

	actor, err := f.svc.Actor(ctx, token)
	if err != nil {
		t.Fatalf("Actor() error = %v", err)
	}
	if actor.IsAdmin() {
		t.Fatal("new account should not be admin")
	}

	// Operator CLI: same database, separate service and cache
	cli := identity.NewWithClock(
		identity.Config{Secret: []byte("test-secret"), SessionTTL: time.Hour},
		storage.NewAccountRepo(f.db),
		storage.NewSessionRepo(f.db),
		storage.NewDocumentRepo(f.db, nil),
		identity.LogMailer{},
		func() time.Time { return *f.clock },
	)
	if err := cli.SetRole(ctx, "a@uni.edu", identity.RoleAdmin); err != nil {
		t.Fatalf("SetRole() error = %v", err)
	}
	if err := cli.MarkVerified(ctx, "a@uni.edu"); err != nil {
		t.Fatalf("MarkVerified() error = %v", err)
	}

	*f.clock = f.clock.Add(time.Minute)
	actor, err = f.svc.Actor(ctx, token)
	if err != nil {
		t.Fatalf("Actor() after role change error = %v", err)
	}
	if !actor.IsAdmin() || !actor.EmailVerified {
		t.Errorf("Actor() = %+v, want admin and verified", actor)
	}
}

func assertion(t *testing.T, issuer, subject, email string, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"iss":   issuer,
		"sub":   subject,
		"email": email,
		"name":  "Fed User",
		"exp":   exp.Unix(),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(fedSecret)
	if err != nil {
		t.Fatalf("sign assertion: %v", err)
	}
	return s
}

func TestSignInFederated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exp := f.clock.Add(time.Minute)

	token, actor, err := f.svc.SignInFederated(ctx, "google", assertion(t, "google", "g-1", "fed@uni.edu", exp))
	if err != nil {
		t.Fatalf("SignInFederated() error = %v", err)
	}
	if !actor.EmailVerified || actor.DisplayName != "Fed User" || token == "" {
		t.Errorf("federated actor = %+v", actor)
	}

	// Same subject links to the same account
	_, again, err := f.svc.SignInFederated(ctx, "google", assertion(t, "google", "g-1", "fed@uni.edu", exp))
	if err != nil || again.ID != actor.ID {
		t.Errorf("second sign in = %+v, %v", again, err)
	}

	register(t, f, "pw@uni.edu", "secret1")

	tests := []struct {
		name      string
		provider  string
		assertion string
		wantErr   error
	}{
		{"unsupported", "myspace", assertion(t, "myspace", "x", "x@uni.edu", exp), identity.ErrUnsupportedProvider},
		{"issuer mismatch", "github", assertion(t, "google", "x", "x@uni.edu", exp), identity.ErrWrongCredential},
		{"expired", "github", assertion(t, "github", "x", "x@uni.edu", f.clock.Add(-time.Minute)), identity.ErrWrongCredential},
		{"email registered with password", "github", assertion(t, "github", "gh-1", "pw@uni.edu", exp), identity.ErrProviderConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.svc.SignInFederated(ctx, tt.provider, tt.assertion)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("SignInFederated() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
