// Package apperr gives the core a uniform, machine-readable error
// shape to log and branch on, trimmed from an HTTP error-response type
// down to what a daemon with no API surface actually needs.
package apperr

import "fmt"

// Kind classifies what went wrong, matching the error taxonomy the
// handler and logger branch on.
type Kind string

const (
	KindParse       Kind = "parse"
	KindStorage     Kind = "storage"
	KindPlugin      Kind = "plugin"
	KindTransport   Kind = "transport"
	KindSanitiser   Kind = "sanitiser"
	KindFatal       Kind = "fatal"
)

// AppError wraps an underlying error with a machine-readable Kind and
// a human-readable Message.
type AppError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped error to errors.Is/errors.As.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New builds an AppError without a wrapped cause.
func New(kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

// Wrap builds an AppError around an existing error.
func Wrap(kind Kind, message string, err error) *AppError {
	return &AppError{Kind: kind, Message: message, Err: err}
}
