package encoder

import (
	"fmt"
	"io"
	"iter"

	"github.com/linkedin/goavro/v2"

	"github.com/jittakal/logavro/internal/errors"
	"github.com/jittakal/logavro/internal/schema"
	"github.com/jittakal/logavro/pkg/encoder"
	"github.com/jittakal/logavro/pkg/event"
)

// Ensure implementations satisfy interfaces at compile time.
var (
	_ encoder.RecordWriter = (*BinaryWriter)(nil)
	_ encoder.RecordWriter = (*OCFWriter)(nil)
	_ encoder.RecordReader = (*BinaryReader)(nil)
	_ encoder.RecordReader = (*OCFReader)(nil)
)

// EncodeBinary encodes a record into Avro binary against its category schema.
func EncodeBinary(s *schema.Schema, rec event.Record) ([]byte, error) {
	return appendBinary(nil, s, rec)
}

func appendBinary(buf []byte, s *schema.Schema, rec event.Record) ([]byte, error) {
	if rec.Category() != s.Category() {
		return nil, fmt.Errorf("%w: %s record against %s schema",
			errors.ErrSchemaMismatch, rec.Category(), s.Category())
	}
	out, err := s.Codec().BinaryFromNative(buf, rec.Native())
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s record: %w", rec.Category(), err)
	}
	return out, nil
}

// BinaryWriter writes records as a bare concatenation of Avro binary datums.
// There is no header, length prefix or separator; readers need the schema
// to delimit records.
type BinaryWriter struct {
	w      io.Writer
	schema *schema.Schema
	buf    []byte
	stats  event.FileStats
	closed bool
}

// NewBinaryWriter creates a binary writer for the schema's category.
func NewBinaryWriter(w io.Writer, s *schema.Schema) *BinaryWriter {
	return &BinaryWriter{w: w, schema: s}
}

// Write encodes and appends one record.
func (b *BinaryWriter) Write(rec event.Record) error {
	if b.closed {
		return errors.ErrWriterClosed
	}

	buf, err := appendBinary(b.buf[:0], b.schema, rec)
	if err != nil {
		return err
	}
	b.buf = buf

	n, err := b.w.Write(buf)
	b.stats.SizeBytes += int64(n)
	if err != nil {
		return &errors.StorageError{Operation: "write", Path: b.schema.Category().Slug(), Err: err}
	}
	b.stats.RecordCount++
	return nil
}

// Close marks the writer closed.
func (b *BinaryWriter) Close() error {
	b.closed = true
	return nil
}

// Stats returns the records and bytes written so far.
func (b *BinaryWriter) Stats() event.FileStats {
	return b.stats
}

// BinaryReader decodes a bare concatenation of Avro binary datums.
type BinaryReader struct {
	schema *schema.Schema
}

// NewBinaryReader creates a binary reader for the schema's category.
func NewBinaryReader(s *schema.Schema) *BinaryReader {
	return &BinaryReader{schema: s}
}

// Records decodes records until the stream is exhausted.
// Trailing bytes that do not form a full record are reported as an error.
func (b *BinaryReader) Records(r io.Reader) iter.Seq2[event.Record, error] {
	return func(yield func(event.Record, error) bool) {
		data, err := io.ReadAll(r)
		if err != nil {
			yield(nil, fmt.Errorf("failed to read stream: %w", err))
			return
		}

		codec := b.schema.Codec()
		for offset := 0; len(data) > 0; {
			datum, rest, err := codec.NativeFromBinary(data)
			if err != nil {
				yield(nil, fmt.Errorf("failed to decode %s record at byte %d: %w", b.schema.Category(), offset, err))
				return
			}
			offset += len(data) - len(rest)
			data = rest

			rec, err := event.FromNative(b.schema.Category(), datum)
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

// OCFWriter writes records into an Avro Object Container File.
// Records are appended in blocks of blockSize.
type OCFWriter struct {
	ocf       *goavro.OCFWriter
	counter   *countingWriter
	schema    *schema.Schema
	scratch   []byte
	pending   []interface{}
	blockSize int
	records   int
	closed    bool
}

// ocfCompression maps a configured codec name to the goavro codec label.
func ocfCompression(compression string) (string, error) {
	switch compression {
	case "", "null", "none", "uncompressed", "NONE", "UNCOMPRESSED":
		return goavro.CompressionNullLabel, nil
	case "deflate", "DEFLATE":
		return goavro.CompressionDeflateLabel, nil
	case "snappy", "SNAPPY":
		return goavro.CompressionSnappyLabel, nil
	default:
		return "", fmt.Errorf("unsupported ocf compression: %s", compression)
	}
}

// NewOCFWriter creates an OCF writer. The container header is written immediately.
func NewOCFWriter(w io.Writer, s *schema.Schema, compression string, blockSize int) (*OCFWriter, error) {
	codecName, err := ocfCompression(compression)
	if err != nil {
		return nil, err
	}
	if blockSize < 1 {
		blockSize = 1
	}

	counter := &countingWriter{w: w}
	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               counter,
		Codec:           s.Codec(),
		CompressionName: codecName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create OCF writer: %w", err)
	}

	return &OCFWriter{
		ocf:       ocf,
		counter:   counter,
		schema:    s,
		pending:   make([]interface{}, 0, blockSize),
		blockSize: blockSize,
	}, nil
}

// Write buffers one record, flushing a block when it is full.
func (o *OCFWriter) Write(rec event.Record) error {
	if o.closed {
		return errors.ErrWriterClosed
	}
	if rec.Category() != o.schema.Category() {
		return fmt.Errorf("%w: %s record against %s schema",
			errors.ErrSchemaMismatch, rec.Category(), o.schema.Category())
	}

	// Encode up front so one bad record cannot fail a whole block.
	native := rec.Native()
	scratch, err := o.schema.Codec().BinaryFromNative(o.scratch[:0], native)
	if err != nil {
		return fmt.Errorf("failed to encode %s record: %w", rec.Category(), err)
	}
	o.scratch = scratch

	o.pending = append(o.pending, native)
	if len(o.pending) >= o.blockSize {
		return o.flush()
	}
	return nil
}

func (o *OCFWriter) flush() error {
	if len(o.pending) == 0 {
		return nil
	}
	if err := o.ocf.Append(o.pending); err != nil {
		o.pending = o.pending[:0]
		return &errors.StorageError{Operation: "write", Path: o.schema.Category().Slug(), Err: err}
	}
	o.records += len(o.pending)
	o.pending = o.pending[:0]
	return nil
}

// Close flushes the last block.
func (o *OCFWriter) Close() error {
	if o.closed {
		return nil
	}
	o.closed = true
	return o.flush()
}

// Stats returns the records flushed and bytes written so far.
func (o *OCFWriter) Stats() event.FileStats {
	return event.FileStats{RecordCount: o.records, SizeBytes: o.counter.n}
}

// OCFReader decodes an Avro Object Container File.
type OCFReader struct {
	category event.Category
}

// NewOCFReader creates an OCF reader. The writer schema embedded in the
// file is used for decoding.
func NewOCFReader(c event.Category) *OCFReader {
	return &OCFReader{category: c}
}

// Records decodes records until the container is exhausted.
func (o *OCFReader) Records(r io.Reader) iter.Seq2[event.Record, error] {
	return func(yield func(event.Record, error) bool) {
		ocf, err := goavro.NewOCFReader(r)
		if err != nil {
			yield(nil, fmt.Errorf("failed to open OCF stream: %w", err))
			return
		}

		for ocf.Scan() {
			datum, err := ocf.Read()
			if err != nil {
				yield(nil, fmt.Errorf("failed to decode %s record: %w", o.category, err))
				return
			}
			rec, err := event.FromNative(o.category, datum)
			if !yield(rec, err) || err != nil {
				return
			}
		}

		if err := ocf.Err(); err != nil {
			yield(nil, fmt.Errorf("failed to read OCF stream: %w", err))
		}
	}
}

// countingWriter counts bytes written through it.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// DecodeBinary decodes a single Avro binary datum, as published to Kafka.
func DecodeBinary(s *schema.Schema, data []byte) (event.Record, error) {
	datum, rest, err := s.Codec().NativeFromBinary(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s record: %w", s.Category(), err)
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("%d trailing bytes after %s record", len(rest), s.Category())
	}
	return event.FromNative(s.Category(), datum)
}
