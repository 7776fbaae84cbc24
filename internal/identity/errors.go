package identity

import "errors"

// Failure reasons returned by the identity service. Callers match them with errors.Is.
var (
	ErrWrongCredential     = errors.New("invalid email or password")
	ErrEmailNotVerified    = errors.New("email not verified")
	ErrNotAdmin            = errors.New("account is not an admin")
	ErrWeakPassword        = errors.New("password must be at least 6 characters")
	ErrInvalidEmail        = errors.New("invalid email address")
	ErrEmailInUse          = errors.New("email already in use")
	ErrUserNotFound        = errors.New("no user with that email")
	ErrSessionInvalid      = errors.New("session is invalid or expired")
	ErrUnsupportedProvider = errors.New("unsupported sign-in provider")
	// ErrProviderConflict means the email is already registered with another sign-in method.
	ErrProviderConflict = errors.New("account exists with a different sign-in method")
)
