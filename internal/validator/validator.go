// Package validator checks parsed records against their field constraints.
package validator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jittakal/logavro/internal/errors"
	"github.com/jittakal/logavro/pkg/event"
)

// Ensure implementation satisfies interface at compile time.
var _ event.Validator = (*RecordValidator)(nil)

// RecordValidator validates records before they are encoded.
type RecordValidator struct{}

// NewRecordValidator creates a new record validator.
func NewRecordValidator() *RecordValidator {
	return &RecordValidator{}
}

// Validate validates a record.
func (v *RecordValidator) Validate(rec event.Record) error {
	switch r := rec.(type) {
	case *event.RecommendationRequest:
		return validateRecommendation(r)
	case *event.MovieWatchEvent:
		return validateMovieWatch(r)
	case *event.MovieRatingEvent:
		return validateRating(r)
	default:
		return &errors.ValidationError{Field: "record", Reason: fmt.Sprintf("unsupported record type %T", rec)}
	}
}

func validateRecommendation(r *event.RecommendationRequest) error {
	c := event.CategoryRecommendation
	if err := required(c, "time", r.Time); err != nil {
		return err
	}
	if err := userID(c, r.UserID); err != nil {
		return err
	}
	if err := required(c, "server", r.Server); err != nil {
		return err
	}
	if len(r.Recommendations) == 0 {
		return &errors.ValidationError{Category: c, Field: "recommendations", Reason: "required field is missing"}
	}
	for i, id := range r.Recommendations {
		if id == "" {
			return &errors.ValidationError{Category: c, Field: "recommendations", Reason: fmt.Sprintf("empty movie id at position %d", i)}
		}
	}
	if !strings.HasSuffix(r.ResponseTime, " ms") {
		return &errors.ValidationError{Category: c, Field: "responsetime", Reason: "missing ms unit"}
	}
	return nil
}

func validateMovieWatch(r *event.MovieWatchEvent) error {
	c := event.CategoryMovie
	if err := required(c, "time", r.Time); err != nil {
		return err
	}
	if err := userID(c, r.UserID); err != nil {
		return err
	}
	if err := required(c, "movieid", r.MovieID); err != nil {
		return err
	}
	if _, err := strconv.Atoi(r.Minute); err != nil {
		return &errors.ValidationError{Category: c, Field: "minute", Reason: "not an integer"}
	}
	return nil
}

func validateRating(r *event.MovieRatingEvent) error {
	c := event.CategoryRating
	if err := required(c, "time", r.Time); err != nil {
		return err
	}
	if err := userID(c, r.UserID); err != nil {
		return err
	}
	if err := required(c, "movieid", r.MovieID); err != nil {
		return err
	}
	if _, err := strconv.ParseFloat(strings.TrimSpace(r.Rating), 64); err != nil {
		return &errors.ValidationError{Category: c, Field: "rating", Reason: fmt.Sprintf("not a number: %q", r.Rating)}
	}
	return nil
}

func required(c event.Category, field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &errors.ValidationError{Category: c, Field: field, Reason: "required field is missing"}
	}
	return nil
}

func userID(c event.Category, id int64) error {
	if id < 0 {
		return &errors.ValidationError{Category: c, Field: "userid", Reason: "negative user id"}
	}
	return nil
}
