// Package common holds the error vocabulary, retry helper and logging setup
// shared by every toro package.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors. Wrap them with %w and test with errors.Is.
var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")
	// ErrStoreBusy marks SQLite lock contention; the failed batch was rolled back.
	ErrStoreBusy = errors.New("store busy")

	ErrInvalidInput  = errors.New("invalid input")
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError carries a message meant for the operator next to the underlying cause.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err == nil {
		return e.UserMessage
	}
	return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError wraps err with an operator-facing message.
func NewUserError(userMessage string, err error) error {
	return &UserError{UserMessage: userMessage, Err: err}
}

// IsRetryable reports whether a failed operation may be run again. A
// RetryableError decides explicitly; otherwise only a busy store or an
// expired deadline qualify. Cancellation never does.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}

	var retryable *RetryableError
	if errors.As(err, &retryable) {
		return retryable.Retryable
	}

	return errors.Is(err, ErrStoreBusy) || errors.Is(err, context.DeadlineExceeded)
}
