// Package event defines the log categories and the typed records parsed from them.
//
// This package contains the public API shared by the parsers, encoders and
// readers. Records are flat and fully populated; their Avro field names are
// the lower-case json tags.
package event

import (
	"fmt"
	"strconv"
	"strings"
)

// Category is one of the fixed log entry kinds found in the "Type" column.
type Category int

const (
	CategoryRecommendation Category = iota + 1
	CategoryMovie
	CategoryRating
)

// Categories lists every known category in output order.
func Categories() []Category {
	return []Category{CategoryRecommendation, CategoryMovie, CategoryRating}
}

// ParseCategory maps a CSV type tag to its category.
// Tags are matched exactly after trimming surrounding whitespace.
func ParseCategory(tag string) (Category, bool) {
	switch strings.TrimSpace(tag) {
	case "Recommendation":
		return CategoryRecommendation, true
	case "Movie":
		return CategoryMovie, true
	case "Rating":
		return CategoryRating, true
	default:
		return 0, false
	}
}

// String returns the CSV type tag of the category.
func (c Category) String() string {
	switch c {
	case CategoryRecommendation:
		return "Recommendation"
	case CategoryMovie:
		return "Movie"
	case CategoryRating:
		return "Rating"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

// Slug returns the lower-case identifier used in config keys, metric labels and paths.
func (c Category) Slug() string {
	switch c {
	case CategoryRecommendation:
		return "recommendation"
	case CategoryMovie:
		return "movie"
	case CategoryRating:
		return "rating"
	default:
		return "unknown"
	}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	return c >= CategoryRecommendation && c <= CategoryRating
}

// Row is one input CSV row.
type Row struct {
	// Number is the 1-based data row number, header excluded.
	Number   int
	Type     string
	LogEntry string
}

// Record is a successfully parsed log line.
// The set of implementations is closed to the three record types below.
type Record interface {
	// Category returns the category the record belongs to.
	Category() Category

	// Native returns the goavro native form of the record.
	Native() map[string]interface{}

	isRecord()
}

// RecommendationRequest is a recommendation service request log entry.
type RecommendationRequest struct {
	Time            string   `json:"time"`
	UserID          int64    `json:"userid"`
	Server          string   `json:"server"`
	Status          int32    `json:"status"`
	Recommendations []string `json:"recommendations"`
	ResponseTime    string   `json:"responsetime"`
}

// MovieWatchEvent is a movie stream fetch log entry.
type MovieWatchEvent struct {
	Time    string `json:"time"`
	UserID  int64  `json:"userid"`
	MovieID string `json:"movieid"`
	Minute  string `json:"minute"`
}

// MovieRatingEvent is a movie rating log entry.
type MovieRatingEvent struct {
	Time    string `json:"time"`
	UserID  int64  `json:"userid"`
	MovieID string `json:"movieid"`
	Rating  string `json:"rating"`
}

// Ensure implementations satisfy interface at compile time.
var (
	_ Record = (*RecommendationRequest)(nil)
	_ Record = (*MovieWatchEvent)(nil)
	_ Record = (*MovieRatingEvent)(nil)
)

func (*RecommendationRequest) Category() Category { return CategoryRecommendation }
func (*MovieWatchEvent) Category() Category       { return CategoryMovie }
func (*MovieRatingEvent) Category() Category      { return CategoryRating }

func (*RecommendationRequest) isRecord() {}
func (*MovieWatchEvent) isRecord()       {}
func (*MovieRatingEvent) isRecord()      {}

// Native returns the goavro native form of the record.
func (r *RecommendationRequest) Native() map[string]interface{} {
	recs := make([]interface{}, len(r.Recommendations))
	for i, id := range r.Recommendations {
		recs[i] = id
	}
	return map[string]interface{}{
		"time":            r.Time,
		"userid":          r.UserID,
		"server":          r.Server,
		"status":          r.Status,
		"recommendations": recs,
		"responsetime":    r.ResponseTime,
	}
}

// Native returns the goavro native form of the record.
func (r *MovieWatchEvent) Native() map[string]interface{} {
	return map[string]interface{}{
		"time":    r.Time,
		"userid":  r.UserID,
		"movieid": r.MovieID,
		"minute":  r.Minute,
	}
}

// Native returns the goavro native form of the record.
func (r *MovieRatingEvent) Native() map[string]interface{} {
	return map[string]interface{}{
		"time":    r.Time,
		"userid":  r.UserID,
		"movieid": r.MovieID,
		"rating":  r.Rating,
	}
}

// FromNative rebuilds a record of the given category from a decoded goavro datum.
func FromNative(category Category, datum interface{}) (Record, error) {
	m, ok := datum.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("decoded %s datum is %T, want map", category, datum)
	}
	f := nativeFields{m: m}

	var rec Record
	switch category {
	case CategoryRecommendation:
		rec = &RecommendationRequest{
			Time:            f.str("time"),
			UserID:          f.long("userid"),
			Server:          f.str("server"),
			Status:          int32(f.long("status")),
			Recommendations: f.strs("recommendations"),
			ResponseTime:    f.str("responsetime"),
		}
	case CategoryMovie:
		rec = &MovieWatchEvent{
			Time:    f.str("time"),
			UserID:  f.long("userid"),
			MovieID: f.str("movieid"),
			Minute:  f.str("minute"),
		}
	case CategoryRating:
		rec = &MovieRatingEvent{
			Time:    f.str("time"),
			UserID:  f.long("userid"),
			MovieID: f.str("movieid"),
			Rating:  f.str("rating"),
		}
	default:
		return nil, fmt.Errorf("unknown category %s", category)
	}

	if f.err != nil {
		return nil, fmt.Errorf("decoded %s datum: %w", category, f.err)
	}
	return rec, nil
}

// nativeFields extracts typed values from a goavro native map, keeping the first error.
type nativeFields struct {
	m   map[string]interface{}
	err error
}

func (f *nativeFields) fail(name string, v interface{}, want string) {
	if f.err == nil {
		f.err = fmt.Errorf("field %q is %T, want %s", name, v, want)
	}
}

func (f *nativeFields) str(name string) string {
	v := f.m[name]
	s, ok := v.(string)
	if !ok {
		f.fail(name, v, "string")
	}
	return s
}

func (f *nativeFields) long(name string) int64 {
	switch v := f.m[name].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	default:
		f.fail(name, v, "integer")
		return 0
	}
}

func (f *nativeFields) strs(name string) []string {
	v := f.m[name]
	switch items := v.(type) {
	case []interface{}:
		out := make([]string, 0, len(items))
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				f.fail(name, item, "string item")
				return nil
			}
			out = append(out, s)
		}
		return out
	case []string:
		return append([]string(nil), items...)
	default:
		f.fail(name, v, "array")
		return nil
	}
}

// Validator validates parsed records before encoding.
type Validator interface {
	// Validate checks that every field of the record satisfies its constraints.
	Validate(rec Record) error
}

// FileStats contains statistics about a written category file.
type FileStats struct {
	RecordCount int
	SizeBytes   int64
}

// FileFormat represents the output file format.
type FileFormat string

const (
	// FormatBinary is a bare concatenation of Avro binary records.
	FormatBinary  FileFormat = "binary"
	FormatOCF     FileFormat = "ocf"
	FormatParquet FileFormat = "parquet"
)

// ParseFileFormat validates a configured format name.
func ParseFileFormat(name string) (FileFormat, error) {
	switch f := FileFormat(strings.ToLower(name)); f {
	case FormatBinary, FormatOCF, FormatParquet:
		return f, nil
	case "":
		return FormatBinary, nil
	default:
		return "", fmt.Errorf("unsupported file format: %s", name)
	}
}

// UserKey returns the record's userid as a decimal string, used as the Kafka message key.
func UserKey(rec Record) string {
	switch r := rec.(type) {
	case *RecommendationRequest:
		return strconv.FormatInt(r.UserID, 10)
	case *MovieWatchEvent:
		return strconv.FormatInt(r.UserID, 10)
	case *MovieRatingEvent:
		return strconv.FormatInt(r.UserID, 10)
	default:
		return ""
	}
}

// Message is an encoded record bound for its category topic.
type Message struct {
	Category Category
	Key      string
	Value    []byte
}

// Rejection describes a row that was skipped.
type Rejection struct {
	Row    Row
	Reason string
	Err    error
}
