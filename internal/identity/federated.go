package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"notehub/internal/storage"
)

var federatedProviders = map[string]bool{
	"google":   true,
	"facebook": true,
	"github":   true,
}

// assertionClaims is the identity statement minted by the federated sign-in
// proxy after it completed the provider's OAuth flow.
type assertionClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	jwt.RegisteredClaims
}

// SignInFederated verifies an upstream identity assertion for provider, links
// or creates the matching account, and opens a session. Federated accounts
// are treated as verified.
func (s *service) SignInFederated(ctx context.Context, provider, assertion string) (string, *Actor, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if !federatedProviders[provider] || len(s.fed.secret) == 0 {
		return "", nil, ErrUnsupportedProvider
	}

	var c assertionClaims
	_, err := jwt.ParseWithClaims(assertion, &c, func(*jwt.Token) (any, error) {
		return s.fed.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(provider),
	)
	if err != nil || c.Subject == "" {
		return "", nil, ErrWrongCredential
	}

	account, err := s.accounts.GetByProvider(ctx, provider, c.Subject)
	switch {
	case err == nil:
		return s.openSession(ctx, account)
	case !errors.Is(err, storage.ErrNotFound):
		return "", nil, fmt.Errorf("failed to load account: %w", err)
	}

	email, err := validEmail(c.Email)
	if err != nil {
		return "", nil, err
	}
	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		return "", nil, ErrProviderConflict
	} else if !errors.Is(err, storage.ErrNotFound) {
		return "", nil, fmt.Errorf("failed to load account: %w", err)
	}

	account = &storage.Account{
		Email:           email,
		DisplayName:     strings.TrimSpace(c.Name),
		PhotoURL:        strings.TrimSpace(c.Picture),
		EmailVerified:   true,
		Provider:        provider,
		ProviderSubject: c.Subject,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return "", nil, ErrProviderConflict
		}
		return "", nil, fmt.Errorf("failed to create account: %w", err)
	}
	return s.openSession(ctx, account)
}
