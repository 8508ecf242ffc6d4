package domain

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned when the bearer credential is missing or
// cannot be resolved to a user.
var ErrUnauthorized = errors.New("unauthorized")

// ErrNotFound is returned when a tenant-scoped row does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError marks a client error in the request body. It maps to
// HTTP 400 and its message names the offending field.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError with a formatted message.
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// UpstreamError wraps a failure talking to the model provider. It is
// fatal for the request and maps to HTTP 500 with a generic message;
// the wrapped detail is only logged server-side.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string { return "model provider error: " + e.Err.Error() }
func (e *UpstreamError) Unwrap() error { return e.Err }

// IsUpstream reports whether err is an UpstreamError.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}
