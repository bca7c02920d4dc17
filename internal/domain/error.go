package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrLimitExceeded      = errors.New("limit exceeded")
	ErrInvalidExecContext = errors.New("invalid execution context")
)

// ValidationError reports a malformed input field. Reason must never carry
// stored values (PIN hashes, phone numbers of existing contacts, ...).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidArgument }

// NewValidationError is a small helper for call sites that build errors inline.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}
