// Package common defines shared constants and sentinel errors used across
// the service layers. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrInternal        = errors.New("internal error")
	ErrUnauthenticated = errors.New("unauthenticated")

	// Credential errors. The same value is returned for an unknown email
	// and a wrong password so responses do not leak account existence.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// Registration errors.
	ErrInvalidEmail     = errors.New("email does not match the allowed domain")
	ErrEmailTaken       = errors.New("email already in use")
	ErrDisplayNameTaken = errors.New("display name already in use")

	// Second-factor lifecycle errors.
	ErrTOTPAlreadyEnabled = errors.New("two-factor authentication already enabled")
	ErrTOTPNotPending     = errors.New("no two-factor setup in progress")
	ErrTOTPNotEnabled     = errors.New("two-factor authentication not enabled")
	ErrInvalidCode        = errors.New("invalid one-time code")

	// Sharing errors.
	ErrSelfShare         = errors.New("cannot share a file with yourself")
	ErrRecipientNotFound = errors.New("recipient user not found")
)

// LockedError reports a temporarily locked account. RetryAfter is the number
// of whole seconds until login attempts are accepted again, never negative.
type LockedError struct {
	RetryAfter int64
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked, retry in %d seconds", e.RetryAfter)
}

// Is makes errors.Is(err, &LockedError{}) match any lock regardless of the
// remaining time.
func (e *LockedError) Is(target error) bool {
	_, ok := target.(*LockedError)
	return ok
}

// ForbiddenError reports a denied file operation along with the permission
// that was missing.
type ForbiddenError struct {
	Permission string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("missing %s permission", e.Permission)
}

func (e *ForbiddenError) Is(target error) bool {
	_, ok := target.(*ForbiddenError)
	return ok
}
