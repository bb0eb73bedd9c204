package errorwrapper

import (
	"errors"
	"fmt"
)

// Common error types used across the engine
var (
	// ErrNotFound indicates a target, snapshot or alert was not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidConfiguration indicates invalid target or engine configuration
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrOutOfOrder indicates a snapshot append older than the stored latest
	ErrOutOfOrder = errors.New("snapshot out of order")
	// ErrStorageUnavailable indicates the persistent store failed
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// WrapError wraps an error with additional context information
func WrapError(err error, message string) error {
	if err == nil {
		return fmt.Errorf("%s: <nil>", message)
	}
	return fmt.Errorf("%s: %w", message, err)
}

// NewError creates a new error with a formatted message
func NewError(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

// ValidationError represents validation errors with field-specific information
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field '%s' with value '%v': %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfiguration
}

// NewValidationError creates a new validation error
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// NotFoundError identifies a missing entity by kind and id.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NewNotFoundError creates a new not-found error
func NewNotFoundError(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

// StorageError marks infrastructure failures in the persistent store, kept
// distinct from compliance findings so the pipeline can abort the affected
// run without raising a website-facing alert.
type StorageError struct {
	Op      string
	Wrapped error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Wrapped)
}

func (e *StorageError) Unwrap() error {
	return ErrStorageUnavailable
}

// NewStorageError creates a new storage error
func NewStorageError(op string, wrapped error) *StorageError {
	return &StorageError{Op: op, Wrapped: wrapped}
}
