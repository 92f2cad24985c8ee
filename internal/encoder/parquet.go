package encoder

import (
	"bytes"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/jittakal/logavro/internal/errors"
	"github.com/jittakal/logavro/pkg/encoder"
	"github.com/jittakal/logavro/pkg/event"
)

// RecommendationParquet is the Parquet row for a recommendation request.
type RecommendationParquet struct {
	Time            string   `parquet:"time"`
	UserID          int64    `parquet:"userid"`
	Server          string   `parquet:"server,dict"`
	Status          int32    `parquet:"status"`
	Recommendations []string `parquet:"recommendations,list"`
	ResponseTime    string   `parquet:"responsetime"`
}

// MovieWatchParquet is the Parquet row for a movie watch event.
type MovieWatchParquet struct {
	Time    string `parquet:"time"`
	UserID  int64  `parquet:"userid"`
	MovieID string `parquet:"movieid,dict"`
	Minute  string `parquet:"minute"`
}

// MovieRatingParquet is the Parquet row for a movie rating event.
type MovieRatingParquet struct {
	Time    string `parquet:"time"`
	UserID  int64  `parquet:"userid"`
	MovieID string `parquet:"movieid,dict"`
	Rating  string `parquet:"rating,dict"`
}

// parquetRow converts between a category record and its Parquet row.
type parquetRow[T any] struct {
	category event.Category
	from     func(event.Record) (T, bool)
	to       func(T) event.Record
}

var (
	recommendationRows = parquetRow[RecommendationParquet]{
		category: event.CategoryRecommendation,
		from: func(rec event.Record) (RecommendationParquet, bool) {
			r, ok := rec.(*event.RecommendationRequest)
			if !ok {
				return RecommendationParquet{}, false
			}
			return RecommendationParquet{
				Time: r.Time, UserID: r.UserID, Server: r.Server, Status: r.Status,
				Recommendations: r.Recommendations, ResponseTime: r.ResponseTime,
			}, true
		},
		to: func(p RecommendationParquet) event.Record {
			return &event.RecommendationRequest{
				Time: p.Time, UserID: p.UserID, Server: p.Server, Status: p.Status,
				Recommendations: p.Recommendations, ResponseTime: p.ResponseTime,
			}
		},
	}

	watchRows = parquetRow[MovieWatchParquet]{
		category: event.CategoryMovie,
		from: func(rec event.Record) (MovieWatchParquet, bool) {
			r, ok := rec.(*event.MovieWatchEvent)
			if !ok {
				return MovieWatchParquet{}, false
			}
			return MovieWatchParquet{Time: r.Time, UserID: r.UserID, MovieID: r.MovieID, Minute: r.Minute}, true
		},
		to: func(p MovieWatchParquet) event.Record {
			return &event.MovieWatchEvent{Time: p.Time, UserID: p.UserID, MovieID: p.MovieID, Minute: p.Minute}
		},
	}

	ratingRows = parquetRow[MovieRatingParquet]{
		category: event.CategoryRating,
		from: func(rec event.Record) (MovieRatingParquet, bool) {
			r, ok := rec.(*event.MovieRatingEvent)
			if !ok {
				return MovieRatingParquet{}, false
			}
			return MovieRatingParquet{Time: r.Time, UserID: r.UserID, MovieID: r.MovieID, Rating: r.Rating}, true
		},
		to: func(p MovieRatingParquet) event.Record {
			return &event.MovieRatingEvent{Time: p.Time, UserID: p.UserID, MovieID: p.MovieID, Rating: p.Rating}
		},
	}
)

// compressionCodec converts a compression name to a parquet WriterOption.
func compressionCodec(compression string) (parquet.WriterOption, error) {
	switch compression {
	case "", "snappy", "SNAPPY":
		return parquet.Compression(&parquet.Snappy), nil
	case "gzip", "GZIP":
		return parquet.Compression(&parquet.Gzip), nil
	case "lz4", "LZ4":
		return parquet.Compression(&parquet.Lz4Raw), nil
	case "zstd", "ZSTD":
		return parquet.Compression(&parquet.Zstd), nil
	case "uncompressed", "UNCOMPRESSED", "none", "NONE":
		return parquet.Compression(&parquet.Uncompressed), nil
	default:
		return nil, fmt.Errorf("unsupported parquet compression: %s", compression)
	}
}

// ParquetWriter writes records of one category as Parquet rows.
// Rows are buffered by the parquet writer and flushed as row groups.
type ParquetWriter[T any] struct {
	writer  *parquet.GenericWriter[T]
	counter *countingWriter
	rows    parquetRow[T]
	row     []T
	records int
	closed  bool
}

func newParquetWriter[T any](w io.Writer, rows parquetRow[T], compression string) (*ParquetWriter[T], error) {
	codec, err := compressionCodec(compression)
	if err != nil {
		return nil, err
	}

	counter := &countingWriter{w: w}
	writer := parquet.NewGenericWriter[T](
		counter,
		parquet.SchemaOf(new(T)),
		codec,
		parquet.CreatedBy("logavro", "1.0", "0"),
	)

	return &ParquetWriter[T]{
		writer:  writer,
		counter: counter,
		rows:    rows,
		row:     make([]T, 1),
	}, nil
}

// Write converts and appends one record.
func (p *ParquetWriter[T]) Write(rec event.Record) error {
	if p.closed {
		return errors.ErrWriterClosed
	}

	row, ok := p.rows.from(rec)
	if !ok {
		return fmt.Errorf("%w: %s record against %s schema",
			errors.ErrSchemaMismatch, rec.Category(), p.rows.category)
	}

	p.row[0] = row
	if _, err := p.writer.Write(p.row); err != nil {
		return &errors.StorageError{Operation: "write", Path: p.rows.category.Slug(), Err: err}
	}
	p.records++
	return nil
}

// Close flushes buffered rows and writes the file footer.
func (p *ParquetWriter[T]) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	if err := p.writer.Close(); err != nil {
		return &errors.StorageError{Operation: "write", Path: p.rows.category.Slug(), Err: err}
	}
	return nil
}

// Stats returns the records written and bytes flushed so far.
func (p *ParquetWriter[T]) Stats() event.FileStats {
	return event.FileStats{RecordCount: p.records, SizeBytes: p.counter.n}
}

// NewParquetWriter creates a Parquet writer for a category.
func NewParquetWriter(w io.Writer, c event.Category, compression string) (encoder.RecordWriter, error) {
	switch c {
	case event.CategoryRecommendation:
		return asRecordWriter(newParquetWriter(w, recommendationRows, compression))
	case event.CategoryMovie:
		return asRecordWriter(newParquetWriter(w, watchRows, compression))
	case event.CategoryRating:
		return asRecordWriter(newParquetWriter(w, ratingRows, compression))
	default:
		return nil, &errors.UnknownCategoryError{Tag: c.String()}
	}
}

func asRecordWriter[T any](w *ParquetWriter[T], err error) (encoder.RecordWriter, error) {
	if err != nil {
		return nil, err
	}
	return w, nil
}

// ParquetReader decodes Parquet rows of one category.
type ParquetReader struct {
	category event.Category
}

// NewParquetReader creates a Parquet reader for a category.
func NewParquetReader(c event.Category) *ParquetReader {
	return &ParquetReader{category: c}
}

// Records decodes all rows of the file. Parquet needs random access, so
// streams that are not files are read into memory first.
func (p *ParquetReader) Records(r io.Reader) iter.Seq2[event.Record, error] {
	switch p.category {
	case event.CategoryRecommendation:
		return readParquet(r, recommendationRows)
	case event.CategoryMovie:
		return readParquet(r, watchRows)
	case event.CategoryRating:
		return readParquet(r, ratingRows)
	default:
		return func(yield func(event.Record, error) bool) {
			yield(nil, &errors.UnknownCategoryError{Tag: p.category.String()})
		}
	}
}

func readParquet[T any](r io.Reader, rows parquetRow[T]) iter.Seq2[event.Record, error] {
	return func(yield func(event.Record, error) bool) {
		ra, size, err := readerAt(r)
		if err != nil {
			yield(nil, err)
			return
		}

		decoded, err := parquet.Read[T](ra, size)
		if err != nil {
			yield(nil, fmt.Errorf("failed to read %s parquet rows: %w", rows.category, err))
			return
		}

		for _, row := range decoded {
			if !yield(rows.to(row), nil) {
				return
			}
		}
	}
}

func readerAt(r io.Reader) (io.ReaderAt, int64, error) {
	if f, ok := r.(*os.File); ok {
		info, err := f.Stat()
		if err != nil {
			return nil, 0, fmt.Errorf("failed to stat file: %w", err)
		}
		return f, info.Size(), nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read stream: %w", err)
	}
	return bytes.NewReader(data), int64(len(data)), nil
}
