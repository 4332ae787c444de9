// Package apperr defines the error kinds shared across the bot and maps them
// to user-facing message templates
package apperr

import (
	"context"
	"errors"
	"fmt"
)

// Error kinds. Wrap concrete failures with Wrap so callers can match on them
// with errors.Is
var (
	ErrTransport   = errors.New("transport error")
	ErrAuth        = errors.New("auth error")
	ErrRateLimit   = errors.New("rate limit exceeded")
	ErrValidation  = errors.New("validation error")
	ErrNotFound    = errors.New("not found")
	ErrPersistence = errors.New("persistence error")
)

// Error carries the kind of a failure together with the operation that failed
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Wrap tags err with kind. A nil err yields nil
func Wrap(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// New creates an error of the given kind without an underlying cause
func New(kind error, op string) error {
	return &Error{Kind: kind, Op: op}
}

// Message template keys for user-visible failures
const (
	MsgError            = "error"
	MsgPersistenceError = "persistence_error"
	MsgServiceError     = "service_unavailable"
	MsgRateLimited      = "rate_limited"
)

// UserMessageKey picks the message template that should be shown to the user
// for err. Internal details never leave the process
func UserMessageKey(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPersistence):
		return MsgPersistenceError
	case errors.Is(err, ErrRateLimit):
		return MsgRateLimited
	case errors.Is(err, ErrTransport), errors.Is(err, ErrAuth),
		errors.Is(err, context.DeadlineExceeded):
		return MsgServiceError
	default:
		return MsgError
	}
}
