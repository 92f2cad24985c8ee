// Package encoder defines interfaces for encoding and decoding category records.
package encoder

import (
	"io"
	"iter"

	"github.com/jittakal/logavro/pkg/event"
)

// RecordWriter appends records of a single category to an output stream.
type RecordWriter interface {
	// Write encodes one record and appends it to the stream.
	Write(rec event.Record) error

	// Close flushes buffered data. It does not close the underlying stream.
	Close() error

	// Stats returns the number of records and bytes written so far.
	Stats() event.FileStats
}

// RecordReader decodes the records of a single category from a stream.
type RecordReader interface {
	// Records returns a finite sequence of decoded records. The sequence
	// consumes r and cannot be restarted without reopening the stream.
	Records(r io.Reader) iter.Seq2[event.Record, error]
}

// Format describes an output file format.
type Format interface {
	// Format returns the file format this encoder produces.
	Format() event.FileFormat

	// FileExtension returns the file extension (e.g., ".avro", ".parquet").
	FileExtension() string
}
