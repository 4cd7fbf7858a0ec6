package contact

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("already exists")
	ErrNotFound   = errors.New("user not found")
	ErrStore      = errors.New("store failure")
)

// ValidationError names the offending field and the client-facing reason.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func missingField(field string) *ValidationError {
	return &ValidationError{Field: field, Reason: field + " is required"}
}

// ConflictError reports the first colliding field, nickname > phone > email.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string { return e.Field + " already exists" }

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// StoreError wraps an I/O or persistence failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store %s: %v", e.Op, e.Err) }

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStore }

// duplicateError is returned by the repository when an insert hits a unique
// constraint. Field is empty when the driver did not say which column.
type duplicateError struct {
	Field string
	Err   error
}

func (e *duplicateError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("unique constraint violated: %v", e.Err)
	}
	return fmt.Sprintf("unique constraint on %s violated: %v", e.Field, e.Err)
}

func (e *duplicateError) Unwrap() error { return e.Err }
