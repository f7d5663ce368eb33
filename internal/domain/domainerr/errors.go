// Package domainerr holds the error taxonomy shared by the domain, application
// and infrastructure layers. HTTP handlers map these to status codes.
package domainerr

import (
	"errors"
	"fmt"
)

var (
	// Auth
	ErrCredentials  = errors.New("could not validate credentials")
	ErrTokenExpired = errors.New("token expired")
	ErrLoggedOut    = errors.New("logged out")

	// Users
	ErrUserDoesNotExist        = errors.New("user does not exist")
	ErrUserAlreadyExists       = errors.New("user already exists")
	ErrUserIntegrity           = errors.New("user integrity error")
	ErrUserValue               = errors.New("invalid user value")
	ErrActionNotAllowedForRole = errors.New("action not allowed for role")
	ErrStaleData               = errors.New("stale data")
)

// IntegrityError is a store constraint violation other than uniqueness.
// The driver error is kept for diagnostics.
type IntegrityError struct {
	Cause error
}

func NewIntegrityError(cause error) *IntegrityError {
	return &IntegrityError{Cause: cause}
}

func (e *IntegrityError) Error() string {
	if e.Cause == nil {
		return ErrUserIntegrity.Error()
	}
	return fmt.Sprintf("%s: %v", ErrUserIntegrity.Error(), e.Cause)
}

func (e *IntegrityError) Is(target error) bool { return target == ErrUserIntegrity }

func (e *IntegrityError) Unwrap() error { return e.Cause }

// Value wraps ErrUserValue with a human readable reason.
func Value(reason string) error {
	return fmt.Errorf("%w: %s", ErrUserValue, reason)
}

// NotAllowed wraps ErrActionNotAllowedForRole with a reason.
func NotAllowed(reason string) error {
	return fmt.Errorf("%w: %s", ErrActionNotAllowedForRole, reason)
}

// Reason strips the sentinel prefix from a wrapped domain error, returning
// the detail message only. Errors without a detail return their own text.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, s := range []error{
		ErrCredentials, ErrTokenExpired, ErrLoggedOut, ErrUserDoesNotExist,
		ErrUserAlreadyExists, ErrUserValue, ErrActionNotAllowedForRole, ErrStaleData,
	} {
		prefix := s.Error() + ": "
		if errors.Is(err, s) && len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
			return msg[len(prefix):]
		}
	}
	return msg
}
