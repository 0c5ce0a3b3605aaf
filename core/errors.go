package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// ShutdownError reports a failure the process cannot recover from while serving.
// The API answers with a 503 and stops gracefully when it catches one.
type ShutdownError struct {
	Reason string
	Err    error
}

func NewShutdownError(err error, reason string) error {
	return &ShutdownError{Reason: reason, Err: err}
}

func (s *ShutdownError) Error() string {
	if s.Err == nil {
		return s.Reason
	}
	return s.Reason + ": " + s.Err.Error()
}

// Unwrap exposes the failure to the standard errors package.
// No Cause method: errors.Cause must stop on a ShutdownError.
func (s *ShutdownError) Unwrap() error {
	return s.Err
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*ShutdownError)
	return ok
}
