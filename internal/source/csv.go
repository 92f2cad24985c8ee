// Package source reads tagged log rows from the input CSV.
package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/jittakal/logavro/internal/errors"
	"github.com/jittakal/logavro/pkg/event"
)

// Default column names of the input CSV.
const (
	DefaultTypeColumn     = "Type"
	DefaultLogEntryColumn = "Log Entry"
)

// Columns names the header columns holding the category tag and the raw line.
type Columns struct {
	Type     string
	LogEntry string
}

// DefaultColumns returns the standard "Type" and "Log Entry" columns.
func DefaultColumns() Columns {
	return Columns{Type: DefaultTypeColumn, LogEntry: DefaultLogEntryColumn}
}

// Reader yields rows of a CSV file with a header line.
type Reader struct {
	csv      *csv.Reader
	typeIdx  int
	entryIdx int
	width    int
}

// NewReader reads the header and locates the configured columns.
// A header without either column returns an error wrapping errors.ErrMissingColumn.
func NewReader(r io.Reader, cols Columns) (*Reader, error) {
	if cols.Type == "" {
		cols.Type = DefaultTypeColumn
	}
	if cols.LogEntry == "" {
		cols.LogEntry = DefaultLogEntryColumn
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: input has no header", errors.ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		name = strings.TrimSpace(name)
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	typeIdx, ok := index[cols.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errors.ErrMissingColumn, cols.Type)
	}
	entryIdx, ok := index[cols.LogEntry]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errors.ErrMissingColumn, cols.LogEntry)
	}

	return &Reader{
		csv:      cr,
		typeIdx:  typeIdx,
		entryIdx: entryIdx,
		width:    max(typeIdx, entryIdx) + 1,
	}, nil
}

// Rows yields data rows in file order. Rows shorter than the header are
// yielded with the missing cells empty. A CSV syntax error ends the sequence.
func (r *Reader) Rows() iter.Seq2[event.Row, error] {
	return func(yield func(event.Row, error) bool) {
		for n := 1; ; n++ {
			record, err := r.csv.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(event.Row{Number: n}, fmt.Errorf("failed to read csv row %d: %w", n, err))
				return
			}

			row := event.Row{Number: n}
			if r.typeIdx < len(record) {
				row.Type = record[r.typeIdx]
			}
			if r.entryIdx < len(record) {
				row.LogEntry = record[r.entryIdx]
			}
			if !yield(row, nil) {
				return
			}
		}
	}
}
