package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jittakal/logavro/pkg/event"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrUnknownCategory", ErrUnknownCategory},
		{"ErrMalformedLine", ErrMalformedLine},
		{"ErrInvalidField", ErrInvalidField},
		{"ErrMissingColumn", ErrMissingColumn},
		{"ErrSchemaMismatch", ErrSchemaMismatch},
		{"ErrWriterClosed", ErrWriterClosed},
		{"ErrPublisherClosed", ErrPublisherClosed},
		{"ErrConnectionLost", ErrConnectionLost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Fatalf("%s should not be nil", tt.name)
			}
			if tt.err.Error() == "" {
				t.Errorf("%s should have an error message", tt.name)
			}
		})
	}
}

func TestParseError(t *testing.T) {
	cause := errors.New("strconv: value out of range")
	err := &ParseError{
		Category: event.CategoryMovie,
		Line:     "garbage line",
		Reason:   "line does not match pattern",
		Err:      cause,
	}

	if !errors.Is(err, ErrMalformedLine) {
		t.Error("ParseError should match ErrMalformedLine")
	}
	if !errors.Is(err, cause) {
		t.Error("ParseError should wrap its cause")
	}
	if !strings.Contains(err.Error(), "garbage line") {
		t.Errorf("Error() = %q, should contain the offending line", err.Error())
	}

	wrapped := fmt.Errorf("row 3: %w", err)
	var pe *ParseError
	if !errors.As(wrapped, &pe) || pe.Category != event.CategoryMovie {
		t.Error("errors.As should find the ParseError")
	}
}

func TestParseError_NoCause(t *testing.T) {
	err := &ParseError{Category: event.CategoryRating, Line: "x", Reason: "missing '='"}
	if !errors.Is(err, ErrMalformedLine) {
		t.Error("ParseError should match ErrMalformedLine")
	}
}

func TestUnknownCategoryError(t *testing.T) {
	err := &UnknownCategoryError{Tag: "Purchase"}
	if !errors.Is(err, ErrUnknownCategory) {
		t.Error("UnknownCategoryError should match ErrUnknownCategory")
	}
	if !strings.Contains(err.Error(), "Purchase") {
		t.Errorf("Error() = %q, should contain the tag", err.Error())
	}
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{Category: event.CategoryRating, Field: "rating", Reason: "not a number"}
	if !errors.Is(err, ErrInvalidField) {
		t.Error("ValidationError should match ErrInvalidField")
	}
	if err.Error() == "" {
		t.Error("ValidationError should have an error message")
	}
}

func TestSchemaError(t *testing.T) {
	err := &SchemaError{Category: event.CategoryMovie, Path: "movie.avsc", Err: ErrSchemaMismatch}
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Error("SchemaError should wrap its cause")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"upload", &StorageError{Operation: "upload", Path: "k", Err: errors.New("503")}, true},
		{"download", &StorageError{Operation: "download", Path: "k", Err: errors.New("503")}, true},
		{"open", &StorageError{Operation: "open", Path: "k", Err: errors.New("enoent")}, false},
		{"wrapped upload", fmt.Errorf("publish: %w", &StorageError{Operation: "upload"}), true},
		{"connection lost", fmt.Errorf("send: %w", ErrConnectionLost), true},
		{"parse error", &ParseError{Line: "x"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&UnknownCategoryError{Tag: "x"}, "unknown_type"},
		{&ParseError{Line: "x"}, "malformed"},
		{&ValidationError{Field: "rating"}, "invalid_field"},
		{errors.New("avro: boom"), "encode_failed"},
	}

	for _, tt := range tests {
		if got := Reason(tt.err); got != tt.want {
			t.Errorf("Reason(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
