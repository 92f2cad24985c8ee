// Package pipeline runs the batch conversion of a CSV log into per-category
// record files and reads those files back.
package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jittakal/logavro/internal/dispatch"
	"github.com/jittakal/logavro/internal/encoder"
	"github.com/jittakal/logavro/internal/errors"
	"github.com/jittakal/logavro/internal/schema"
	"github.com/jittakal/logavro/internal/source"
	"github.com/jittakal/logavro/internal/validator"
	pkgencoder "github.com/jittakal/logavro/pkg/encoder"
	"github.com/jittakal/logavro/pkg/event"
	"github.com/jittakal/logavro/pkg/publisher"
	"github.com/jittakal/logavro/pkg/storage"
)

// Metrics receives batch writer measurements.
type Metrics interface {
	IncRowsRead()
	IncRecordsWritten(category, format string)
	IncRowsSkipped(category, reason string)
	SetFileSize(category, format string, size int64)
	ObserveBatchDuration(operation string, seconds float64, success bool)
}

// ProgressReporter is told how many rows have been read so far.
type ProgressReporter interface {
	SetRows(n int)
}

// Summary describes a finished batch.
type Summary struct {
	RowsRead int
	Written  map[event.Category]int
	// Skipped counts skipped rows by reason.
	Skipped map[string]int
	// SkippedByCategory counts skipped rows by category slug; unknown tags count under "unknown".
	SkippedByCategory map[string]int
	Files             map[event.Category]event.FileStats
	Duration          time.Duration
}

func newSummary() Summary {
	return Summary{
		Written:           make(map[event.Category]int),
		Skipped:           make(map[string]int),
		SkippedByCategory: make(map[string]int),
		Files:             make(map[event.Category]event.FileStats),
	}
}

// TotalWritten returns the number of records written across categories.
func (s Summary) TotalWritten() int {
	total := 0
	for _, n := range s.Written {
		total += n
	}
	return total
}

// TotalSkipped returns the number of skipped rows.
func (s Summary) TotalSkipped() int {
	total := 0
	for _, n := range s.Skipped {
		total += n
	}
	return total
}

// Option configures a BatchWriter.
type Option func(*BatchWriter)

// WithColumns sets the CSV column names.
func WithColumns(cols source.Columns) Option {
	return func(w *BatchWriter) { w.columns = cols }
}

// WithValidator replaces the record validator. A nil validator disables validation.
func WithValidator(v event.Validator) Option {
	return func(w *BatchWriter) { w.validator = v }
}

// WithRejectSink adds a sink that receives every skipped row.
func WithRejectSink(sink publisher.RejectSink) Option {
	return func(w *BatchWriter) {
		if sink != nil {
			w.rejects = append(w.rejects, sink)
		}
	}
}

// WithPublisher publishes every written record in Avro binary form.
func WithPublisher(p publisher.RecordPublisher) Option {
	return func(w *BatchWriter) { w.publisher = p }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m Metrics) Option {
	return func(w *BatchWriter) { w.metrics = m }
}

// WithProgress sets the progress reporter.
func WithProgress(p ProgressReporter) Option {
	return func(w *BatchWriter) { w.progress = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *BatchWriter) { w.logger = l }
}

// BatchWriter converts CSV rows into one record stream per category.
// Rows are processed one at a time in input order.
type BatchWriter struct {
	schemas   *schema.Set
	factory   *encoder.Factory
	columns   source.Columns
	validator event.Validator
	rejects   []publisher.RejectSink
	publisher publisher.RecordPublisher
	metrics   Metrics
	progress  ProgressReporter
	logger    *slog.Logger
}

// NewBatchWriter creates a batch writer for the given schemas and output format.
func NewBatchWriter(schemas *schema.Set, factory *encoder.Factory, opts ...Option) *BatchWriter {
	w := &BatchWriter{
		schemas:   schemas,
		factory:   factory,
		columns:   source.DefaultColumns(),
		validator: validator.NewRecordValidator(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("component", "batch_writer")
	return w
}

// Run reads CSV rows from input and writes each parsed record to the output
// of its category. Rows that cannot be parsed, validated or encoded are skipped.
//
// Run returns an error only when the batch cannot continue: the CSV header or
// body cannot be read, an output stream fails, a publish fails or ctx is done.
// The returned summary covers the rows handled before the error.
func (w *BatchWriter) Run(ctx context.Context, input io.Reader, outputs map[event.Category]io.Writer) (summary Summary, err error) {
	start := time.Now()
	summary = newSummary()
	defer func() {
		summary.Duration = time.Since(start)
		if w.metrics != nil {
			w.metrics.ObserveBatchDuration("write", summary.Duration.Seconds(), err == nil)
		}
	}()

	rows, err := source.NewReader(input, w.columns)
	if err != nil {
		return summary, err
	}

	writers := make(map[event.Category]pkgencoder.RecordWriter, len(outputs))
	closeWriters := func() error {
		var errs []error
		for _, c := range event.Categories() {
			rw, ok := writers[c]
			if !ok {
				continue
			}
			if err := rw.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close %s writer: %w", c.Slug(), err))
			}
			summary.Files[c] = rw.Stats()
			delete(writers, c)
		}
		return stderrors.Join(errs...)
	}
	defer func() {
		if closeErr := closeWriters(); err == nil {
			err = closeErr
		}
	}()

	for _, c := range event.Categories() {
		out, ok := outputs[c]
		if !ok || out == nil {
			return summary, fmt.Errorf("no output stream for category %s", c.Slug())
		}
		sch, err := w.schemas.For(c)
		if err != nil {
			return summary, err
		}
		rw, err := w.factory.CreateWriter(out, sch)
		if err != nil {
			return summary, fmt.Errorf("failed to create %s writer: %w", c.Slug(), err)
		}
		writers[c] = rw
	}

	d := dispatch.New(w.schemas, w.validator)

	for row, err := range rows.Rows() {
		if ctxErr := ctx.Err(); ctxErr != nil {
			w.logger.Warn("batch interrupted", "rows_read", summary.RowsRead, "error", ctxErr)
			return summary, ctxErr
		}
		if err != nil {
			return summary, fmt.Errorf("failed to read input: %w", err)
		}

		summary.RowsRead++
		if w.metrics != nil {
			w.metrics.IncRowsRead()
		}
		if w.progress != nil {
			w.progress.SetRows(summary.RowsRead)
		}

		parsed, err := d.Dispatch(row.Type, row.LogEntry)
		if err != nil {
			w.skip(ctx, &summary, row, err)
			continue
		}

		c := parsed.Record.Category()
		if err := writers[c].Write(parsed.Record); err != nil {
			var storageErr *errors.StorageError
			if stderrors.As(err, &storageErr) {
				return summary, fmt.Errorf("failed to write %s output: %w", c.Slug(), err)
			}
			w.skip(ctx, &summary, row, err)
			continue
		}

		summary.Written[c]++
		if w.metrics != nil {
			w.metrics.IncRecordsWritten(c.Slug(), string(w.factory.Format()))
		}

		if w.publisher != nil {
			if err := w.publish(ctx, parsed); err != nil {
				return summary, err
			}
		}
	}

	if err := closeWriters(); err != nil {
		return summary, err
	}

	if w.publisher != nil {
		if err := w.publisher.Flush(ctx); err != nil {
			return summary, fmt.Errorf("failed to flush publisher: %w", err)
		}
	}

	if w.metrics != nil {
		for c, stats := range summary.Files {
			w.metrics.SetFileSize(c.Slug(), string(w.factory.Format()), stats.SizeBytes)
		}
	}

	w.logger.Info("processing completed",
		"rows_read", summary.RowsRead,
		"written_recommendation", summary.Written[event.CategoryRecommendation],
		"written_movie", summary.Written[event.CategoryMovie],
		"written_rating", summary.Written[event.CategoryRating],
		"skipped", summary.TotalSkipped(),
		"skipped_by_reason", summary.Skipped,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return summary, nil
}

func (w *BatchWriter) publish(ctx context.Context, parsed dispatch.Parsed) error {
	value, err := encoder.EncodeBinary(parsed.Schema, parsed.Record)
	if err != nil {
		return fmt.Errorf("failed to encode record for publishing: %w", err)
	}
	msg := event.Message{
		Category: parsed.Record.Category(),
		Key:      event.UserKey(parsed.Record),
		Value:    value,
	}
	if err := w.publisher.Publish(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish record: %w", err)
	}
	return nil
}

// skip records a rejected row in the summary, the log, the metrics and every reject sink.
func (w *BatchWriter) skip(ctx context.Context, summary *Summary, row event.Row, cause error) {
	reason := errors.Reason(cause)
	category := "unknown"
	if c, ok := event.ParseCategory(row.Type); ok {
		category = c.Slug()
	}

	summary.Skipped[reason]++
	summary.SkippedByCategory[category]++
	if w.metrics != nil {
		w.metrics.IncRowsSkipped(category, reason)
	}

	w.logger.Warn("skipping row",
		"row", row.Number,
		"category", category,
		"reason", reason,
		"line", row.LogEntry,
		"error", cause,
	)

	rej := event.Rejection{Row: row, Reason: reason, Err: cause}
	for _, sink := range w.rejects {
		if err := sink.Reject(ctx, rej); err != nil {
			w.logger.Error("failed to record rejected row", "row", row.Number, "error", err)
		}
	}
}

// WriteFiles converts the CSV file at inputPath into one file per category in
// outputDir, named by router. Existing output files are truncated.
func (w *BatchWriter) WriteFiles(ctx context.Context, inputPath, outputDir string, router storage.Router) (Summary, error) {
	in, err := os.Open(inputPath)
	if err != nil {
		return newSummary(), fmt.Errorf("failed to open input: %w", err)
	}
	defer in.Close()

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return newSummary(), fmt.Errorf("failed to create output directory: %w", err)
	}

	files := make([]*os.File, 0, len(event.Categories()))
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()

	outputs := make(map[event.Category]io.Writer, len(event.Categories()))
	for _, c := range event.Categories() {
		path := filepath.Join(outputDir, router.FileName(c))
		f, err := os.Create(path)
		if err != nil {
			return newSummary(), fmt.Errorf("failed to create output %s: %w", path, err)
		}
		files = append(files, f)
		outputs[c] = f
	}

	summary, err := w.Run(ctx, in, outputs)
	if err != nil {
		return summary, err
	}

	for _, f := range files {
		if err := f.Close(); err != nil {
			return summary, fmt.Errorf("failed to close output %s: %w", f.Name(), err)
		}
	}
	files = nil
	return summary, nil
}
