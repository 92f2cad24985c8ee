// Package schema loads the Avro schema of each log category.
package schema

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path"

	"github.com/linkedin/goavro/v2"

	"github.com/jittakal/logavro/internal/errors"
	"github.com/jittakal/logavro/pkg/event"
)

//go:embed avsc/*.avsc
var defaults embed.FS

// defaultFiles maps each category to its embedded schema file.
var defaultFiles = map[event.Category]string{
	event.CategoryRecommendation: "avsc/recommendation_request_schema.avsc",
	event.CategoryMovie:          "avsc/movie_watch_schema.avsc",
	event.CategoryRating:         "avsc/movie_rating_schema.avsc",
}

// requiredFields lists the fields each category's parser populates.
var requiredFields = map[event.Category][]string{
	event.CategoryRecommendation: {"time", "userid", "server", "status", "recommendations", "responsetime"},
	event.CategoryMovie:          {"time", "userid", "movieid", "minute"},
	event.CategoryRating:         {"time", "userid", "movieid", "rating"},
}

// Schema is a loaded Avro schema bound to one category.
type Schema struct {
	category event.Category
	source   string
	codec    *goavro.Codec
}

// Category returns the category the schema encodes.
func (s *Schema) Category() event.Category { return s.category }

// Source returns the file the schema was loaded from.
func (s *Schema) Source() string { return s.source }

// Codec returns the goavro codec for the schema.
func (s *Schema) Codec() *goavro.Codec { return s.codec }

// Paths holds the schema file of each category.
// An empty path selects the embedded default schema.
type Paths struct {
	Recommendation string
	Movie          string
	Rating         string
}

func (p Paths) forCategory(c event.Category) string {
	switch c {
	case event.CategoryRecommendation:
		return p.Recommendation
	case event.CategoryMovie:
		return p.Movie
	case event.CategoryRating:
		return p.Rating
	default:
		return ""
	}
}

// Set holds one schema per category.
type Set struct {
	recommendation *Schema
	movie          *Schema
	rating         *Schema
}

// Load reads and checks the schema of every category.
func Load(paths Paths) (*Set, error) {
	set := &Set{}
	for _, c := range event.Categories() {
		s, err := loadCategory(c, paths.forCategory(c))
		if err != nil {
			return nil, err
		}
		switch c {
		case event.CategoryRecommendation:
			set.recommendation = s
		case event.CategoryMovie:
			set.movie = s
		case event.CategoryRating:
			set.rating = s
		}
	}
	return set, nil
}

// Default returns the embedded schemas.
func Default() (*Set, error) {
	return Load(Paths{})
}

// For returns the schema of a category.
func (s *Set) For(c event.Category) (*Schema, error) {
	var sch *Schema
	switch c {
	case event.CategoryRecommendation:
		sch = s.recommendation
	case event.CategoryMovie:
		sch = s.movie
	case event.CategoryRating:
		sch = s.rating
	}
	if sch == nil {
		return nil, &errors.UnknownCategoryError{Tag: c.String()}
	}
	return sch, nil
}

func loadCategory(c event.Category, file string) (*Schema, error) {
	var (
		data   []byte
		err    error
		source = file
	)
	if file == "" {
		source = "embedded:" + path.Base(defaultFiles[c])
		data, err = defaults.ReadFile(defaultFiles[c])
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return nil, &errors.SchemaError{Category: c, Path: source, Err: err}
	}
	return Parse(c, source, data)
}

// Parse builds a category schema from Avro schema JSON.
// The schema must be a record declaring every field the category's parser
// produces; any extra field must carry a default.
func Parse(c event.Category, source string, data []byte) (*Schema, error) {
	codec, err := goavro.NewCodec(string(data))
	if err != nil {
		return nil, &errors.SchemaError{Category: c, Path: source, Err: fmt.Errorf("failed to create avro codec: %w", err)}
	}

	if err := checkFields(c, data); err != nil {
		return nil, &errors.SchemaError{Category: c, Path: source, Err: err}
	}

	return &Schema{category: c, source: source, codec: codec}, nil
}

type recordSchema struct {
	Type   string                       `json:"type"`
	Name   string                       `json:"name"`
	Fields []map[string]json.RawMessage `json:"fields"`
}

func checkFields(c event.Category, data []byte) error {
	var rs recordSchema
	if err := json.Unmarshal(data, &rs); err != nil {
		return fmt.Errorf("%w: schema is not a JSON object: %v", errors.ErrSchemaMismatch, err)
	}
	if rs.Type != "record" {
		return fmt.Errorf("%w: top-level type is %q, want record", errors.ErrSchemaMismatch, rs.Type)
	}

	required := make(map[string]bool, len(requiredFields[c]))
	for _, name := range requiredFields[c] {
		required[name] = true
	}

	seen := make(map[string]bool, len(rs.Fields))
	for _, field := range rs.Fields {
		var name string
		if err := json.Unmarshal(field["name"], &name); err != nil {
			return fmt.Errorf("%w: field without a name", errors.ErrSchemaMismatch)
		}
		seen[name] = true
		if _, hasDefault := field["default"]; !required[name] && !hasDefault {
			return fmt.Errorf("%w: field %q is not produced for %s and has no default",
				errors.ErrSchemaMismatch, name, c)
		}
	}

	for _, name := range requiredFields[c] {
		if !seen[name] {
			return fmt.Errorf("%w: missing field %q", errors.ErrSchemaMismatch, name)
		}
	}
	return nil
}
