package pipeline

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/jittakal/logavro/internal/errors"
	"github.com/jittakal/logavro/pkg/event"
	"github.com/jittakal/logavro/pkg/publisher"
)

// Ensure implementation satisfies interface at compile time.
var _ publisher.RejectSink = (*CSVRejectSink)(nil)

// RejectHeader is the header row of a reject file.
var RejectHeader = []string{"row", "type", "reason", "log entry"}

// RejectCounter receives reject sink outcomes.
type RejectCounter interface {
	IncRejects(sink, status string)
}

// CSVRejectSink writes skipped rows to a CSV file.
type CSVRejectSink struct {
	w       *csv.Writer
	closer  io.Closer
	metrics RejectCounter
	mu      sync.Mutex
	closed  bool
}

// NewCSVRejectSink writes rejects to w. The header is written immediately.
// If w is an io.Closer it is closed by Close.
func NewCSVRejectSink(w io.Writer, metrics RejectCounter) (*CSVRejectSink, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(RejectHeader); err != nil {
		return nil, fmt.Errorf("failed to write reject header: %w", err)
	}

	sink := &CSVRejectSink{w: cw, metrics: metrics}
	if c, ok := w.(io.Closer); ok {
		sink.closer = c
	}
	return sink, nil
}

// CreateCSVRejectFile creates (or truncates) a reject file at path.
func CreateCSVRejectFile(path string, metrics RejectCounter) (*CSVRejectSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create reject directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create reject file: %w", err)
	}
	sink, err := NewCSVRejectSink(f, metrics)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return sink, nil
}

// Reject appends one row to the reject file.
func (s *CSVRejectSink) Reject(_ context.Context, rej event.Rejection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.ErrPublisherClosed
	}

	err := s.w.Write([]string{strconv.Itoa(rej.Row.Number), rej.Row.Type, rej.Reason, rej.Row.LogEntry})
	if err == nil {
		s.w.Flush()
		err = s.w.Error()
	}
	if s.metrics != nil {
		status := "success"
		if err != nil {
			status = "failure"
		}
		s.metrics.IncRejects("csv", status)
	}
	if err != nil {
		return &errors.StorageError{Operation: "write", Path: "rejects", Err: err}
	}
	return nil
}

// Close flushes the writer and closes the underlying file.
func (s *CSVRejectSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	s.w.Flush()
	err := s.w.Error()
	if s.closer != nil {
		if closeErr := s.closer.Close(); err == nil {
			err = closeErr
		}
	}
	return err
}
