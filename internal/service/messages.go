package service

import (
	"errors"

	"notehub/internal/identity"
	"notehub/internal/notes"
	"notehub/internal/storage"
)

var identityMessages = []struct {
	err error
	msg string
}{
	{identity.ErrWrongCredential, "Invalid email or password. Please try again."},
	{identity.ErrEmailNotVerified, "Please verify your email before logging in."},
	{identity.ErrNotAdmin, "Access denied: this account is not an admin."},
	{identity.ErrWeakPassword, "Password must be at least 6 characters long."},
	{identity.ErrInvalidEmail, "Invalid email address."},
	{identity.ErrEmailInUse, "An account with this email already exists."},
	{identity.ErrUserNotFound, "No user found with that email."},
	{identity.ErrSessionInvalid, "Your session has expired. Please log in again."},
	{identity.ErrUnsupportedProvider, "This sign-in method is not available."},
	{identity.ErrProviderConflict, "An account already exists with a different login method. Try a different one."},
}

// UserMessage turns any error from the service, identity or storage layers
// into the message shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	for _, m := range identityMessages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}

	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "Please log in again."
	case errors.Is(err, ErrForbidden):
		return "Access denied: this account is not an admin."
	case errors.Is(err, ErrConfirmationRequired):
		return "Confirm to delete this note permanently."
	case errors.Is(err, ErrSaveInProgress):
		return "A save is already in progress."
	case errors.Is(err, ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return "Note not found."
	case errors.Is(err, notes.ErrUnsupportedScope):
		return "Choose a term before filtering by batch."
	case storage.IsConfiguration(err):
		return "Query failed: the note store is not set up for these filters. An administrator must provision it."
	case storage.IsUnavailable(err):
		return "The note store is busy. Please try again."
	}
	return "Something went wrong. Please try again."
}
