package pipeline

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jittakal/logavro/internal/encoder"
	"github.com/jittakal/logavro/internal/schema"
	"github.com/jittakal/logavro/pkg/event"
	"github.com/jittakal/logavro/pkg/storage"
)

// DecodeMetrics receives batch reader measurements.
type DecodeMetrics interface {
	IncRecordsDecoded(category string)
	ObserveBatchDuration(operation string, seconds float64, success bool)
}

// BatchReader decodes per-category record streams.
type BatchReader struct {
	schemas *schema.Set
	factory *encoder.Factory
	metrics DecodeMetrics
	logger  *slog.Logger
}

// NewBatchReader creates a reader for files written by a BatchWriter with the same format.
func NewBatchReader(schemas *schema.Set, factory *encoder.Factory, metrics DecodeMetrics, logger *slog.Logger) *BatchReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchReader{
		schemas: schemas,
		factory: factory,
		metrics: metrics,
		logger:  logger.With("component", "batch_reader"),
	}
}

// Read decodes every record of category c from in, lazily.
// Iteration stops after the first error.
func (r *BatchReader) Read(ctx context.Context, c event.Category, in io.Reader) iter.Seq2[event.Record, error] {
	return func(yield func(event.Record, error) bool) {
		sch, err := r.schemas.For(c)
		if err != nil {
			yield(nil, err)
			return
		}
		rr, err := r.factory.CreateReader(sch)
		if err != nil {
			yield(nil, err)
			return
		}

		for rec, err := range rr.Records(in) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				yield(nil, ctxErr)
				return
			}
			if err != nil {
				yield(nil, fmt.Errorf("failed to decode %s stream: %w", c.Slug(), err))
				return
			}
			if r.metrics != nil {
				r.metrics.IncRecordsDecoded(c.Slug())
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// ReadFile decodes the file at path. The file is opened when iteration
// starts and closed when it ends.
func (r *BatchReader) ReadFile(ctx context.Context, c event.Category, path string) iter.Seq2[event.Record, error] {
	return func(yield func(event.Record, error) bool) {
		f, err := os.Open(path)
		if err != nil {
			yield(nil, fmt.Errorf("failed to open %s: %w", path, err))
			return
		}
		defer f.Close()

		for rec, err := range r.Read(ctx, c, f) {
			if !yield(rec, err) {
				return
			}
		}
	}
}

// ReadDir decodes every category file in dir, in category order, calling fn
// for each record. It returns the number of records decoded per category.
func (r *BatchReader) ReadDir(ctx context.Context, dir string, router storage.Router, fn func(event.Category, event.Record) error) (counts map[event.Category]int, err error) {
	start := time.Now()
	counts = make(map[event.Category]int)
	defer func() {
		if r.metrics != nil {
			r.metrics.ObserveBatchDuration("read", time.Since(start).Seconds(), err == nil)
		}
	}()

	for _, c := range event.Categories() {
		path := filepath.Join(dir, router.FileName(c))
		for rec, err := range r.ReadFile(ctx, c, path) {
			if err != nil {
				return counts, err
			}
			if err := fn(c, rec); err != nil {
				return counts, err
			}
			counts[c]++
		}
		r.logger.Info("decoded category file", "category", c.Slug(), "path", path, "records", counts[c])
	}
	return counts, nil
}
