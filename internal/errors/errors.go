package errors

import (
	"errors"
	"fmt"
)

// Common error types for the QR login client
var (
	// Generation errors
	ErrGenerateFailed     = errors.New("qr session generation failed")
	ErrMalformedResponse  = errors.New("malformed backend response")
	ErrUnexpectedStatus   = errors.New("unexpected http status")
	ErrAuthRequired       = errors.New("authentication required on another device")
	ErrNoSession          = errors.New("no active qr session")
	ErrSessionStale       = errors.New("qr session superseded")
	ErrSessionTerminal    = errors.New("qr session already finished")
	ErrInvalidTransition  = errors.New("invalid qr status transition")
	ErrInvalidSessionData = errors.New("invalid qr session data")

	// Token errors
	ErrMissingAccessToken = errors.New("missing access token")
	ErrAlreadyPersisted   = errors.New("credentials already persisted for session")
	ErrNotFound           = errors.New("not found")

	// Redirect errors
	ErrUnsafeRedirect = errors.New("unsafe redirect target")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
