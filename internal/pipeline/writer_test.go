package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/jittakal/logavro/internal/encoder"
	apperrors "github.com/jittakal/logavro/internal/errors"
	"github.com/jittakal/logavro/internal/schema"
	"github.com/jittakal/logavro/internal/source"
	"github.com/jittakal/logavro/internal/storage"
	"github.com/jittakal/logavro/pkg/event"
)

const sampleCSV = `Type,Log Entry
Recommendation,"2023-08-01T10:15:30.123,42,recommendation request srv1, status 200, result: tt001, tt002, 150 ms"
Movie,"2023-08-01T10:16:00,42,GET /data/m/The+Matrix/5.mpg"
Rating,"2023-08-01T10:17:00,42,/data/m/Inception=4"
Movie,garbage line
Search,"2023-08-01T10:18:00,42,GET /search?q=heat"
Rating,"2023-08-01T10:19:00,7,/data/m/Heat"
Movie,"2023-08-01T10:20:00,43,GET /data/m/Heat+1995/12.mpg"
`

var (
	scenarioRecommendation = &event.RecommendationRequest{
		Time: "2023-08-01T10:15:30.123", UserID: 42, Server: "srv1", Status: 200,
		Recommendations: []string{"tt001", "tt002"}, ResponseTime: "150 ms",
	}
	scenarioMovie  = &event.MovieWatchEvent{Time: "2023-08-01T10:16:00", UserID: 42, MovieID: "The Matrix", Minute: "5"}
	secondMovie    = &event.MovieWatchEvent{Time: "2023-08-01T10:20:00", UserID: 43, MovieID: "Heat 1995", Minute: "12"}
	scenarioRating = &event.MovieRatingEvent{Time: "2023-08-01T10:17:00", UserID: 42, MovieID: "Inception", Rating: "4"}
)

type recordingMetrics struct {
	mu        sync.Mutex
	rowsRead  int
	written   map[string]int
	skipped   map[string]int
	decoded   map[string]int
	sizes     map[string]int64
	durations map[string]bool
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		written:   make(map[string]int),
		skipped:   make(map[string]int),
		decoded:   make(map[string]int),
		sizes:     make(map[string]int64),
		durations: make(map[string]bool),
	}
}

func (m *recordingMetrics) IncRowsRead() { m.mu.Lock(); m.rowsRead++; m.mu.Unlock() }
func (m *recordingMetrics) IncRecordsWritten(category, format string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written[category+"/"+format]++
}
func (m *recordingMetrics) IncRowsSkipped(category, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skipped[category+"/"+reason]++
}
func (m *recordingMetrics) SetFileSize(category, format string, size int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sizes[category] = size
}
func (m *recordingMetrics) ObserveBatchDuration(operation string, seconds float64, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.durations[operation] = success
}
func (m *recordingMetrics) IncRecordsDecoded(category string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decoded[category]++
}

type memorySink struct {
	rejected []event.Rejection
	err      error
	closed   bool
}

func (s *memorySink) Reject(_ context.Context, rej event.Rejection) error {
	s.rejected = append(s.rejected, rej)
	return s.err
}

func (s *memorySink) Close() error {
	s.closed = true
	return nil
}

type memoryPublisher struct {
	messages []event.Message
	flushed  int
	err      error
}

func (p *memoryPublisher) Publish(_ context.Context, msg event.Message) error {
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msg)
	return nil
}

func (p *memoryPublisher) Flush(context.Context) error {
	p.flushed++
	return nil
}

func (p *memoryPublisher) Close() error { return nil }

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSchemas(t *testing.T) *schema.Set {
	t.Helper()
	set, err := schema.Default()
	if err != nil {
		t.Fatalf("schema.Default() error = %v", err)
	}
	return set
}

func testFactory(t *testing.T, format event.FileFormat) *encoder.Factory {
	t.Helper()
	f, err := encoder.NewFactory(format, "")
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func memoryOutputs() (map[event.Category]io.Writer, map[event.Category]*bytes.Buffer) {
	buffers := make(map[event.Category]*bytes.Buffer)
	outputs := make(map[event.Category]io.Writer)
	for _, c := range event.Categories() {
		buffers[c] = &bytes.Buffer{}
		outputs[c] = buffers[c]
	}
	return outputs, buffers
}

func decodeAll(t *testing.T, r *BatchReader, c event.Category, data []byte) []event.Record {
	t.Helper()
	var out []event.Record
	for rec, err := range r.Read(context.Background(), c, bytes.NewReader(data)) {
		if err != nil {
			t.Fatalf("Read(%s) error = %v", c.Slug(), err)
		}
		out = append(out, rec)
	}
	return out
}

func TestBatchWriter_Run(t *testing.T) {
	for _, format := range encoder.SupportedFormats() {
		t.Run(string(format), func(t *testing.T) {
			schemas := testSchemas(t)
			factory := testFactory(t, format)
			metrics := newRecordingMetrics()
			sink := &memorySink{}

			w := NewBatchWriter(schemas, factory,
				WithRejectSink(sink),
				WithMetrics(metrics),
				WithLogger(testLogger()),
			)

			outputs, buffers := memoryOutputs()
			summary, err := w.Run(context.Background(), strings.NewReader(sampleCSV), outputs)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			if summary.RowsRead != 7 {
				t.Errorf("RowsRead = %d, want 7", summary.RowsRead)
			}
			wantWritten := map[event.Category]int{
				event.CategoryRecommendation: 1,
				event.CategoryMovie:          2,
				event.CategoryRating:         1,
			}
			if !reflect.DeepEqual(summary.Written, wantWritten) {
				t.Errorf("Written = %v, want %v", summary.Written, wantWritten)
			}
			wantSkipped := map[string]int{"malformed": 2, "unknown_type": 1}
			if !reflect.DeepEqual(summary.Skipped, wantSkipped) {
				t.Errorf("Skipped = %v, want %v", summary.Skipped, wantSkipped)
			}
			if summary.SkippedByCategory["movie"] != 1 || summary.SkippedByCategory["rating"] != 1 || summary.SkippedByCategory["unknown"] != 1 {
				t.Errorf("SkippedByCategory = %v", summary.SkippedByCategory)
			}
			if summary.TotalWritten()+summary.TotalSkipped() != summary.RowsRead {
				t.Errorf("written %d + skipped %d != read %d", summary.TotalWritten(), summary.TotalSkipped(), summary.RowsRead)
			}

			for _, c := range event.Categories() {
				if got := summary.Files[c]; got.RecordCount != wantWritten[c] || got.SizeBytes != int64(buffers[c].Len()) {
					t.Errorf("Files[%s] = %+v, buffer has %d bytes", c.Slug(), got, buffers[c].Len())
				}
			}

			r := NewBatchReader(schemas, factory, metrics, testLogger())
			if got := decodeAll(t, r, event.CategoryRecommendation, buffers[event.CategoryRecommendation].Bytes()); !reflect.DeepEqual(got, []event.Record{scenarioRecommendation}) {
				t.Errorf("recommendations = %+v", got)
			}
			if got := decodeAll(t, r, event.CategoryMovie, buffers[event.CategoryMovie].Bytes()); !reflect.DeepEqual(got, []event.Record{scenarioMovie, secondMovie}) {
				t.Errorf("movies = %+v", got)
			}
			if got := decodeAll(t, r, event.CategoryRating, buffers[event.CategoryRating].Bytes()); !reflect.DeepEqual(got, []event.Record{scenarioRating}) {
				t.Errorf("ratings = %+v", got)
			}

			if len(sink.rejected) != 3 {
				t.Fatalf("rejected %d rows, want 3", len(sink.rejected))
			}
			if rej := sink.rejected[0]; rej.Row.Number != 4 || rej.Reason != "malformed" || !errors.Is(rej.Err, apperrors.ErrMalformedLine) {
				t.Errorf("first reject = %+v", rej)
			}
			if rej := sink.rejected[1]; rej.Row.Type != "Search" || !errors.Is(rej.Err, apperrors.ErrUnknownCategory) {
				t.Errorf("second reject = %+v", rej)
			}

			if metrics.rowsRead != 7 || metrics.written["movie/"+string(format)] != 2 || metrics.skipped["unknown/unknown_type"] != 1 {
				t.Errorf("metrics = %+v", metrics)
			}
			if success, ok := metrics.durations["write"]; !ok || !success {
				t.Errorf("write duration not observed as success: %v", metrics.durations)
			}
			if metrics.decoded["movie"] != 2 {
				t.Errorf("decoded = %v", metrics.decoded)
			}
		})
	}
}

func TestBatchWriter_Publish(t *testing.T) {
	schemas := testSchemas(t)
	pub := &memoryPublisher{}
	w := NewBatchWriter(schemas, testFactory(t, event.FormatOCF), WithPublisher(pub), WithLogger(testLogger()))

	outputs, _ := memoryOutputs()
	if _, err := w.Run(context.Background(), strings.NewReader(sampleCSV), outputs); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(pub.messages) != 4 {
		t.Fatalf("published %d messages, want 4", len(pub.messages))
	}
	if pub.flushed != 1 {
		t.Errorf("flushed %d times, want 1", pub.flushed)
	}

	msg := pub.messages[1]
	if msg.Category != event.CategoryMovie || msg.Key != "42" {
		t.Errorf("message = %+v", msg)
	}
	sch, _ := schemas.For(event.CategoryMovie)
	got, err := encoder.DecodeBinary(sch, msg.Value)
	if err != nil {
		t.Fatalf("DecodeBinary() error = %v", err)
	}
	if !reflect.DeepEqual(got, scenarioMovie) {
		t.Errorf("published record = %+v", got)
	}
}

func TestBatchWriter_PublishFailureIsFatal(t *testing.T) {
	pub := &memoryPublisher{err: errors.New("broker down")}
	w := NewBatchWriter(testSchemas(t), testFactory(t, event.FormatBinary), WithPublisher(pub), WithLogger(testLogger()))

	outputs, _ := memoryOutputs()
	summary, err := w.Run(context.Background(), strings.NewReader(sampleCSV), outputs)
	if err == nil {
		t.Fatal("expected publish error")
	}
	if summary.RowsRead != 1 {
		t.Errorf("RowsRead = %d, want 1", summary.RowsRead)
	}
}

func TestBatchWriter_RejectSinkErrorDoesNotStopBatch(t *testing.T) {
	sink := &memorySink{err: errors.New("dlq unavailable")}
	w := NewBatchWriter(testSchemas(t), testFactory(t, event.FormatBinary), WithRejectSink(sink), WithLogger(testLogger()))

	outputs, _ := memoryOutputs()
	summary, err := w.Run(context.Background(), strings.NewReader(sampleCSV), outputs)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.RowsRead != 7 || len(sink.rejected) != 3 {
		t.Errorf("RowsRead = %d, rejected = %d", summary.RowsRead, len(sink.rejected))
	}
}

func TestBatchWriter_FatalErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		outputs func() map[event.Category]io.Writer
		wantIs  error
	}{
		{
			name:  "missing log entry column",
			input: "Type,Entry\nMovie,x\n",
			outputs: func() map[event.Category]io.Writer {
				o, _ := memoryOutputs()
				return o
			},
			wantIs: apperrors.ErrMissingColumn,
		},
		{
			name:  "missing output",
			input: sampleCSV,
			outputs: func() map[event.Category]io.Writer {
				o, _ := memoryOutputs()
				delete(o, event.CategoryRating)
				return o
			},
		},
		{
			name:  "output write failure",
			input: sampleCSV,
			outputs: func() map[event.Category]io.Writer {
				o, _ := memoryOutputs()
				o[event.CategoryRecommendation] = failingWriter{}
				return o
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := newRecordingMetrics()
			w := NewBatchWriter(testSchemas(t), testFactory(t, event.FormatBinary), WithMetrics(metrics), WithLogger(testLogger()))
			_, err := w.Run(context.Background(), strings.NewReader(tt.input), tt.outputs())
			if err == nil {
				t.Fatal("expected fatal error")
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("error = %v, want %v", err, tt.wantIs)
			}
			if success := metrics.durations["write"]; success {
				t.Error("failed batch observed as success")
			}
		})
	}
}

func TestBatchWriter_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := NewBatchWriter(testSchemas(t), testFactory(t, event.FormatOCF), WithLogger(testLogger()))
	outputs, buffers := memoryOutputs()

	summary, err := w.Run(ctx, strings.NewReader(sampleCSV), outputs)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if summary.RowsRead != 0 {
		t.Errorf("RowsRead = %d, want 0", summary.RowsRead)
	}
	// Streams are closed: every OCF output still carries its header.
	for _, c := range event.Categories() {
		if buffers[c].Len() == 0 {
			t.Errorf("%s output not closed", c.Slug())
		}
	}
}

func TestBatchWriter_CustomColumns(t *testing.T) {
	input := "entry,kind\n\"2023-08-01T10:17:00,42,/data/m/Inception=4\",Rating\n"

	w := NewBatchWriter(testSchemas(t), testFactory(t, event.FormatBinary),
		WithColumns(source.Columns{Type: "kind", LogEntry: "entry"}),
		WithLogger(testLogger()),
	)
	outputs, _ := memoryOutputs()
	summary, err := w.Run(context.Background(), strings.NewReader(input), outputs)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Written[event.CategoryRating] != 1 {
		t.Errorf("Written = %v", summary.Written)
	}
}

func TestBatchWriter_WithoutValidator(t *testing.T) {
	input := "Type,Log Entry\nRating,\"2023-08-01T10:17:00,42,/data/m/Inception=great\"\n"

	tests := []struct {
		name        string
		opts        []Option
		wantWritten int
	}{
		{"default validator rejects non-numeric rating", nil, 0},
		{"validation disabled", []Option{WithValidator(nil)}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := append([]Option{WithLogger(testLogger())}, tt.opts...)
			w := NewBatchWriter(testSchemas(t), testFactory(t, event.FormatBinary), opts...)
			outputs, _ := memoryOutputs()
			summary, err := w.Run(context.Background(), strings.NewReader(input), outputs)
			if err != nil {
				t.Fatal(err)
			}
			if summary.Written[event.CategoryRating] != tt.wantWritten {
				t.Errorf("Written = %v, want %d ratings", summary.Written, tt.wantWritten)
			}
		})
	}
}

func TestBatchWriter_WriteFiles(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "logs.csv")
	if err := os.WriteFile(input, []byte(sampleCSV), 0o644); err != nil {
		t.Fatal(err)
	}

	factory := testFactory(t, event.FormatBinary)
	router := storage.NewRouter("", factory.FileExtension(), nil)
	w := NewBatchWriter(testSchemas(t), factory, WithLogger(testLogger()))

	outDir := filepath.Join(dir, "out")
	summary, err := w.WriteFiles(context.Background(), input, outDir, router)
	if err != nil {
		t.Fatalf("WriteFiles() error = %v", err)
	}

	for _, name := range []string{"recommendation_requests.avro", "movie_watches.avro", "movie_ratings.avro"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("missing output %s: %v", name, err)
		}
	}
	info, _ := os.Stat(filepath.Join(outDir, "movie_watches.avro"))
	if info.Size() != summary.Files[event.CategoryMovie].SizeBytes {
		t.Errorf("movie file size = %d, stats = %d", info.Size(), summary.Files[event.CategoryMovie].SizeBytes)
	}

	if _, err := w.WriteFiles(context.Background(), filepath.Join(dir, "missing.csv"), outDir, router); err == nil {
		t.Error("expected error for missing input")
	}
}
