package encoder

import (
	"fmt"
	"io"

	"github.com/jittakal/logavro/internal/schema"
	"github.com/jittakal/logavro/pkg/encoder"
	"github.com/jittakal/logavro/pkg/event"
)

// DefaultBlockSize is the number of records per OCF block.
const DefaultBlockSize = 100

// Ensure Factory satisfies interface at compile time.
var _ encoder.Format = (*Factory)(nil)

// Factory creates writers and readers for one output format.
type Factory struct {
	format      event.FileFormat
	compression string
	blockSize   int
}

// NewFactory creates a new encoder factory. The compression is validated
// against the format.
func NewFactory(format event.FileFormat, compression string) (*Factory, error) {
	if compression == "" {
		compression = DefaultCompression(format)
	}
	if !supports(format, compression) {
		return nil, fmt.Errorf("unsupported compression %q for format %s", compression, format)
	}
	return &Factory{format: format, compression: compression, blockSize: DefaultBlockSize}, nil
}

// WithBlockSize sets the number of records per OCF block.
func (f *Factory) WithBlockSize(n int) *Factory {
	if n > 0 {
		f.blockSize = n
	}
	return f
}

// CreateWriter creates a writer appending records of the schema's category to w.
func (f *Factory) CreateWriter(w io.Writer, s *schema.Schema) (encoder.RecordWriter, error) {
	switch f.format {
	case event.FormatBinary:
		return NewBinaryWriter(w, s), nil
	case event.FormatOCF:
		ocf, err := NewOCFWriter(w, s, f.compression, f.blockSize)
		if err != nil {
			return nil, err
		}
		return ocf, nil
	case event.FormatParquet:
		return NewParquetWriter(w, s.Category(), f.compression)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", f.format)
	}
}

// CreateReader creates a reader decoding records of the schema's category.
func (f *Factory) CreateReader(s *schema.Schema) (encoder.RecordReader, error) {
	switch f.format {
	case event.FormatBinary:
		return NewBinaryReader(s), nil
	case event.FormatOCF:
		return NewOCFReader(s.Category()), nil
	case event.FormatParquet:
		return NewParquetReader(s.Category()), nil
	default:
		return nil, fmt.Errorf("unsupported file format: %s", f.format)
	}
}

// Format returns the file format.
func (f *Factory) Format() event.FileFormat {
	return f.format
}

// Compression returns the effective compression codec.
func (f *Factory) Compression() string {
	return f.compression
}

// FileExtension returns the file extension for the format.
func (f *Factory) FileExtension() string {
	return FileExtension(f.format)
}

// FileExtension returns the file extension for a format.
func FileExtension(format event.FileFormat) string {
	switch format {
	case event.FormatOCF:
		return ".ocf.avro"
	case event.FormatParquet:
		return ".parquet"
	default:
		return ".avro"
	}
}

// SupportedFormats returns a list of supported file formats.
func SupportedFormats() []event.FileFormat {
	return []event.FileFormat{
		event.FormatBinary,
		event.FormatOCF,
		event.FormatParquet,
	}
}

// SupportedCompressions returns supported compression codecs for a given format.
func SupportedCompressions(format event.FileFormat) []string {
	switch format {
	case event.FormatBinary:
		return []string{"uncompressed"}
	case event.FormatOCF:
		return []string{"null", "deflate", "snappy"}
	case event.FormatParquet:
		return []string{"uncompressed", "snappy", "gzip", "lz4", "zstd"}
	default:
		return []string{}
	}
}

// DefaultCompression returns the default compression for a format.
func DefaultCompression(format event.FileFormat) string {
	switch format {
	case event.FormatOCF:
		return "null"
	case event.FormatParquet:
		return "snappy"
	default:
		return "uncompressed"
	}
}

func supports(format event.FileFormat, compression string) bool {
	for _, c := range SupportedCompressions(format) {
		if c == compression {
			return true
		}
	}
	if compression == "none" {
		return format == event.FormatBinary || format == event.FormatOCF || format == event.FormatParquet
	}
	return false
}
