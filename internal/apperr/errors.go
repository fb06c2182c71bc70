// Package apperr holds the domain error taxonomy shared by services and handlers.
// Match with errors.Is / errors.As.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrValidation          = errors.New("validation error")
	ErrDuplicateEmail      = errors.New("user already exists")
	ErrUserNotFound        = errors.New("user not found")
	ErrIncorrectPassword   = errors.New("incorrect password")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrEmailNotVerified    = errors.New("email not verified")
	ErrInvalidOrExpired    = errors.New("invalid or expired token")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrAlreadyVerified     = errors.New("email already verified")
	ErrTooManyRequests     = errors.New("too many requests")
	ErrDeliveryFailure     = errors.New("email delivery failed")
	ErrConfiguration       = errors.New("configuration error")
)

// ThrottleError reports a rejected attempt together with a retry hint.
type ThrottleError struct {
	RetryAfter time.Duration
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("%s: retry after %s", ErrTooManyRequests, e.RetryAfter)
}

func (e *ThrottleError) Unwrap() error { return ErrTooManyRequests }

// Validation wraps a field error map so callers can match ErrValidation
// while still reaching the per-field details.
type Validation struct {
	Fields error
}

func (e *Validation) Error() string {
	return fmt.Sprintf("%s: %v", ErrValidation, e.Fields)
}

func (e *Validation) Unwrap() error { return ErrValidation }
