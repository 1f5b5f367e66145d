// Package common defines the sentinel errors shared by the server and the
// client. Callers match them with errors.Is; services attach a message that is
// safe to show to API callers by wrapping a sentinel in an Error.
package common

import "errors"

var (
	// ErrValidation marks malformed input (HTTP 400).
	ErrValidation = errors.New("validation error")
	// ErrAlreadyExists marks a uniqueness conflict such as a taken email.
	ErrAlreadyExists = errors.New("already exists")
	// ErrUnauthorized marks bad credentials or a missing/invalid token (HTTP 401).
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden marks an identity that may not touch a project (HTTP 403).
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is returned by repositories when a record does not exist (HTTP 404).
	ErrNotFound = errors.New("not found")
	// ErrInvalidToken is returned when a bearer token cannot be verified.
	ErrInvalidToken = errors.New("invalid token")
)

// Error pairs a sentinel Kind with a human-readable message.
type Error struct {
	Kind    error
	Message string
}

// NewError wraps kind with a caller-facing message.
func NewError(kind error, message string) error {
	return &Error{Kind: kind, Message: message}
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}
