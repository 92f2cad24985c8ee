// Package errors defines application-specific error types and sentinel errors.
package errors

import (
	"errors"
	"fmt"

	"github.com/jittakal/logavro/pkg/event"
)

// Sentinel errors for common conditions.
var (
	ErrUnknownCategory = errors.New("unknown log entry type")
	ErrMalformedLine   = errors.New("malformed log entry")
	ErrInvalidField    = errors.New("invalid record field")
	ErrMissingColumn   = errors.New("missing csv column")
	ErrSchemaMismatch  = errors.New("schema does not match category")
	ErrWriterClosed    = errors.New("record writer is closed")
	ErrPublisherClosed = errors.New("publisher is closed")
	ErrConnectionLost  = errors.New("connection lost")
	ErrBufferFull      = errors.New("buffer is full")
)

// ParseError reports a log line that does not match its category's format.
// Structural mismatches and malformed sub-fields are the same failure class.
type ParseError struct {
	Category event.Category
	Line     string
	Reason   string
	Err      error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("parse error: category=%s: %s: %q", e.Category, e.Reason, e.Line)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns ErrMalformedLine so callers can match the class with errors.Is,
// along with the underlying cause if any.
func (e *ParseError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrMalformedLine, e.Err}
	}
	return []error{ErrMalformedLine}
}

// UnknownCategoryError reports a row whose type tag is not a known category.
type UnknownCategoryError struct {
	Tag string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown log entry type: %q", e.Tag)
}

func (e *UnknownCategoryError) Unwrap() error {
	return ErrUnknownCategory
}

// ValidationError represents a parsed record that violates a field constraint.
type ValidationError struct {
	Category event.Category
	Field    string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: category=%s field=%s: %s",
		e.Category, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidField
}

// SchemaError represents a schema file that cannot be used for its category.
type SchemaError struct {
	Category event.Category
	Path     string
	Err      error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error: category=%s path=%s: %v",
		e.Category, e.Path, e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// StorageError represents a storage operation failure.
type StorageError struct {
	Operation string
	Path      string
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: operation=%s path=%s: %v",
		e.Operation, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Retryable defines an interface for errors that can indicate if they are retryable.
type Retryable interface {
	error
	IsRetryable() bool
}

// IsRetryable checks if an error is retryable.
// It first checks if the error implements the Retryable interface,
// then falls back to checking sentinel errors.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var retryable Retryable
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}

	return errors.Is(err, ErrConnectionLost)
}

// IsRetryable determines if a StorageError is retryable based on the operation type.
func (e *StorageError) IsRetryable() bool {
	return e.Operation == "upload" || e.Operation == "download"
}

// Reason returns a short label describing why a row was skipped.
// It is used as a metric label and in reject records.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownCategory):
		return "unknown_type"
	case errors.Is(err, ErrMalformedLine):
		return "malformed"
	case errors.Is(err, ErrInvalidField):
		return "invalid_field"
	default:
		return "encode_failed"
	}
}
