// Package parser turns raw log lines into typed event records.
//
// Every parser either returns a fully populated record or a
// *errors.ParseError carrying the category and the offending line. Parsers
// never panic on malformed input.
package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jittakal/logavro/internal/errors"
	"github.com/jittakal/logavro/pkg/event"
)

var (
	recommendationPattern = regexp.MustCompile(
		`(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d+),(\d+),recommendation request (.*?), status (.*?), result: (.*?), (\d+) ms`)

	movieWatchPattern = regexp.MustCompile(
		`(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}),(\d+),GET /data/m/(.+?)/(\d+)\.mpg`)
)

const (
	responseTimeSuffix = " ms"
	recommendationSep  = ", "
)

// Parse dispatches a line to the parser of its category.
func Parse(c event.Category, line string) (event.Record, error) {
	var (
		rec event.Record
		err error
	)
	switch c {
	case event.CategoryRecommendation:
		var r *event.RecommendationRequest
		if r, err = ParseRecommendation(line); err == nil {
			rec = r
		}
	case event.CategoryMovie:
		var r *event.MovieWatchEvent
		if r, err = ParseMovieWatch(line); err == nil {
			rec = r
		}
	case event.CategoryRating:
		var r *event.MovieRatingEvent
		if r, err = ParseRating(line); err == nil {
			rec = r
		}
	default:
		err = &errors.UnknownCategoryError{Tag: c.String()}
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ParseRecommendation parses a recommendation request line:
//
//	<ts.fraction>,<userid>,recommendation request <server>, status <status>, result: <id>, <id>, <n> ms
func ParseRecommendation(line string) (*event.RecommendationRequest, error) {
	m := recommendationPattern.FindStringSubmatch(line)
	if m == nil {
		return nil, malformed(event.CategoryRecommendation, line, "line does not match recommendation request pattern", nil)
	}

	userID, err := parseUserID(m[2])
	if err != nil {
		return nil, malformed(event.CategoryRecommendation, line, "invalid userid", err)
	}

	status, err := strconv.ParseInt(strings.TrimSpace(m[4]), 10, 32)
	if err != nil {
		return nil, malformed(event.CategoryRecommendation, line, "invalid status", err)
	}

	return &event.RecommendationRequest{
		Time:            m[1],
		UserID:          userID,
		Server:          m[3],
		Status:          int32(status),
		Recommendations: strings.Split(m[5], recommendationSep),
		ResponseTime:    m[6] + responseTimeSuffix,
	}, nil
}

// ParseMovieWatch parses a movie stream fetch line:
//
//	<ts>,<userid>,GET /data/m/<movieid>/<minute>.mpg
//
// Spaces encoded as "+" in the movie id are decoded.
func ParseMovieWatch(line string) (*event.MovieWatchEvent, error) {
	m := movieWatchPattern.FindStringSubmatch(line)
	if m == nil {
		return nil, malformed(event.CategoryMovie, line, "line does not match movie watch pattern", nil)
	}

	userID, err := parseUserID(m[2])
	if err != nil {
		return nil, malformed(event.CategoryMovie, line, "invalid userid", err)
	}

	return &event.MovieWatchEvent{
		Time:    m[1],
		UserID:  userID,
		MovieID: strings.ReplaceAll(m[3], "+", " "),
		Minute:  m[4],
	}, nil
}

// ParseRating parses a movie rating line:
//
//	<ts>,<userid>,<path>/<movieid>=<rating>
func ParseRating(line string) (*event.MovieRatingEvent, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 3 {
		return nil, malformed(event.CategoryRating, line,
			fmt.Sprintf("expected 3 comma separated parts, got %d", len(parts)), nil)
	}

	userID, err := parseUserID(parts[1])
	if err != nil {
		return nil, malformed(event.CategoryRating, line, "invalid userid", err)
	}

	left, rating, ok := strings.Cut(parts[2], "=")
	if !ok {
		return nil, malformed(event.CategoryRating, line, "missing '=' in rating expression", nil)
	}

	movieID := left[strings.LastIndex(left, "/")+1:]
	if movieID == "" {
		return nil, malformed(event.CategoryRating, line, "empty movieid", nil)
	}
	if rating == "" {
		return nil, malformed(event.CategoryRating, line, "empty rating", nil)
	}

	return &event.MovieRatingEvent{
		Time:    parts[0],
		UserID:  userID,
		MovieID: movieID,
		Rating:  rating,
	}, nil
}

func parseUserID(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}

func malformed(c event.Category, line, reason string, err error) *errors.ParseError {
	return &errors.ParseError{Category: c, Line: line, Reason: reason, Err: err}
}
