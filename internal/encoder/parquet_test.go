package encoder

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/parquet-go/parquet-go"

	apperrors "github.com/jittakal/logavro/internal/errors"
	"github.com/jittakal/logavro/pkg/event"
)

func TestParquetWriter_RoundTrip(t *testing.T) {
	compressions := []string{"snappy", "gzip", "zstd", "lz4", "uncompressed"}

	for _, compression := range compressions {
		for category, records := range sampleRecords() {
			t.Run(compression+"/"+category.Slug(), func(t *testing.T) {
				var buf bytes.Buffer

				w, err := NewParquetWriter(&buf, category, compression)
				if err != nil {
					t.Fatalf("NewParquetWriter() error = %v", err)
				}
				for _, rec := range records {
					if err := w.Write(rec); err != nil {
						t.Fatalf("Write() error = %v", err)
					}
				}
				if err := w.Close(); err != nil {
					t.Fatalf("Close() error = %v", err)
				}

				stats := w.Stats()
				if stats.RecordCount != len(records) {
					t.Errorf("RecordCount = %d, want %d", stats.RecordCount, len(records))
				}
				if stats.SizeBytes != int64(buf.Len()) {
					t.Errorf("SizeBytes = %d, want %d", stats.SizeBytes, buf.Len())
				}

				var got []event.Record
				for rec, err := range NewParquetReader(category).Records(&buf) {
					if err != nil {
						t.Fatalf("Records() error = %v", err)
					}
					got = append(got, rec)
				}
				if !reflect.DeepEqual(got, records) {
					t.Errorf("decoded %+v, want %+v", got, records)
				}
			})
		}
	}
}

func TestParquetWriter_ColumnNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "movie_watches.parquet")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}

	w, err := NewParquetWriter(f, event.CategoryMovie, "snappy")
	if err != nil {
		t.Fatal(err)
	}
	for _, rec := range sampleRecords()[event.CategoryMovie] {
		if err := w.Write(rec); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	rows, err := parquet.ReadFile[MovieWatchParquet](path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(rows) != 2 || rows[0].MovieID != "The Matrix" {
		t.Errorf("rows = %+v", rows)
	}

	wantColumns := []string{"time", "userid", "movieid", "minute"}
	fields := parquet.SchemaOf(new(MovieWatchParquet)).Fields()
	if len(fields) != len(wantColumns) {
		t.Fatalf("schema has %d fields, want %d", len(fields), len(wantColumns))
	}
	for i, field := range fields {
		if field.Name() != wantColumns[i] {
			t.Errorf("field %d = %q, want %q", i, field.Name(), wantColumns[i])
		}
	}
}

func TestParquetWriter_SchemaMismatch(t *testing.T) {
	w, err := NewParquetWriter(&bytes.Buffer{}, event.CategoryRating, "snappy")
	if err != nil {
		t.Fatal(err)
	}
	err = w.Write(&event.MovieWatchEvent{Time: "t", UserID: 1, MovieID: "m", Minute: "1"})
	if !errors.Is(err, apperrors.ErrSchemaMismatch) {
		t.Errorf("Write() error = %v, want ErrSchemaMismatch", err)
	}
}

func TestParquetWriter_WriteAfterClose(t *testing.T) {
	w, err := NewParquetWriter(&bytes.Buffer{}, event.CategoryRating, "snappy")
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	err = w.Write(&event.MovieRatingEvent{Time: "t", UserID: 1, MovieID: "m", Rating: "1"})
	if !errors.Is(err, apperrors.ErrWriterClosed) {
		t.Errorf("Write() error = %v, want ErrWriterClosed", err)
	}
}

func TestNewParquetWriter_Errors(t *testing.T) {
	if _, err := NewParquetWriter(&bytes.Buffer{}, event.CategoryMovie, "brotli"); err == nil {
		t.Error("expected error for unsupported compression")
	}
	if _, err := NewParquetWriter(&bytes.Buffer{}, event.Category(0), "snappy"); !errors.Is(err, apperrors.ErrUnknownCategory) {
		t.Errorf("error = %v, want ErrUnknownCategory", err)
	}
}
