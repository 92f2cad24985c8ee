package schema

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "github.com/jittakal/logavro/internal/errors"
	"github.com/jittakal/logavro/pkg/event"
)

func TestDefault(t *testing.T) {
	set, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}

	for _, c := range event.Categories() {
		s, err := set.For(c)
		if err != nil {
			t.Fatalf("For(%s) error = %v", c, err)
		}
		if s.Category() != c {
			t.Errorf("Category() = %v, want %v", s.Category(), c)
		}
		if s.Codec() == nil {
			t.Errorf("%s: nil codec", c)
		}
		if !strings.HasPrefix(s.Source(), "embedded:") {
			t.Errorf("Source() = %q, want embedded prefix", s.Source())
		}
	}
}

func TestSet_ForUnknown(t *testing.T) {
	set, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if _, err := set.For(event.Category(42)); !errors.Is(err, apperrors.ErrUnknownCategory) {
		t.Errorf("For(42) error = %v, want ErrUnknownCategory", err)
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "rating.avsc")
	content := `{
		"type": "record",
		"name": "MovieRating",
		"fields": [
			{"name": "time", "type": "string"},
			{"name": "userid", "type": "int"},
			{"name": "movieid", "type": "string"},
			{"name": "rating", "type": "string"},
			{"name": "source", "type": "string", "default": "log"}
		]
	}`
	if err := os.WriteFile(file, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write schema: %v", err)
	}

	set, err := Load(Paths{Rating: file})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	s, _ := set.For(event.CategoryRating)
	if s.Source() != file {
		t.Errorf("Source() = %q, want %q", s.Source(), file)
	}

	movie, _ := set.For(event.CategoryMovie)
	if !strings.HasPrefix(movie.Source(), "embedded:") {
		t.Errorf("movie schema should fall back to embedded default, got %q", movie.Source())
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(Paths{Movie: "/nonexistent/movie.avsc"})
	if err == nil {
		t.Fatal("expected error for missing schema file")
	}
	var se *apperrors.SchemaError
	if !errors.As(err, &se) || se.Category != event.CategoryMovie {
		t.Errorf("error = %v, want SchemaError for Movie", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, should wrap os.ErrNotExist", err)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		category event.Category
		schema   string
	}{
		{
			name:     "not avro",
			category: event.CategoryMovie,
			schema:   `{"type": "nope"}`,
		},
		{
			name:     "not a record",
			category: event.CategoryMovie,
			schema:   `"string"`,
		},
		{
			name:     "missing field",
			category: event.CategoryMovie,
			schema: `{"type": "record", "name": "W", "fields": [
				{"name": "time", "type": "string"},
				{"name": "userid", "type": "long"},
				{"name": "movieid", "type": "string"}
			]}`,
		},
		{
			name:     "extra field without default",
			category: event.CategoryRating,
			schema: `{"type": "record", "name": "R", "fields": [
				{"name": "time", "type": "string"},
				{"name": "userid", "type": "long"},
				{"name": "movieid", "type": "string"},
				{"name": "rating", "type": "string"},
				{"name": "comment", "type": "string"}
			]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.category, "test.avsc", []byte(tt.schema))
			if err == nil {
				t.Fatal("expected error")
			}
			var se *apperrors.SchemaError
			if !errors.As(err, &se) {
				t.Errorf("error = %T, want *SchemaError", err)
			}
		})
	}
}

func TestParse_WrongCategorySchema(t *testing.T) {
	data, err := defaults.ReadFile(defaultFiles[event.CategoryMovie])
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	_, err = Parse(event.CategoryRecommendation, "movie.avsc", data)
	if !errors.Is(err, apperrors.ErrSchemaMismatch) {
		t.Errorf("error = %v, want ErrSchemaMismatch", err)
	}
}
