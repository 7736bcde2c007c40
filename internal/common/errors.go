// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Storage errors.
	ErrNotFound        = errors.New("not found")
	ErrCacheCorruption = errors.New("cache entry corrupted")

	// Fetch errors.
	ErrTransientFetch     = errors.New("transient fetch failure")
	ErrCredentialRejected = errors.New("credential rejected")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry. Credential
// rejections are fatal and never retried without explicit user action.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrCredentialRejected) {
		return false
	}
	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrTransientFetch) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
