package source

import (
	"errors"
	"strings"
	"testing"

	apperrors "github.com/jittakal/logavro/internal/errors"
	"github.com/jittakal/logavro/pkg/event"
)

func collect(t *testing.T, r *Reader) []event.Row {
	t.Helper()
	var rows []event.Row
	for row, err := range r.Rows() {
		if err != nil {
			t.Fatalf("Rows() error = %v", err)
		}
		rows = append(rows, row)
	}
	return rows
}

func TestReader_Rows(t *testing.T) {
	input := "Type,Log Entry\n" +
		"Movie,\"2023-08-01T10:16:00,42,GET /data/m/The+Matrix/5.mpg\"\n" +
		"Rating,\"2023-08-01T10:17:00,42,/data/m/Inception=4\"\n"

	r, err := NewReader(strings.NewReader(input), DefaultColumns())
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}

	want := []event.Row{
		{Number: 1, Type: "Movie", LogEntry: "2023-08-01T10:16:00,42,GET /data/m/The+Matrix/5.mpg"},
		{Number: 2, Type: "Rating", LogEntry: "2023-08-01T10:17:00,42,/data/m/Inception=4"},
	}
	got := collect(t, r)
	if len(got) != len(want) {
		t.Fatalf("got %d rows, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestReader_ColumnOrderAndExtras(t *testing.T) {
	input := "\ufeffid, Log Entry ,Type,extra\n" +
		"1,line one,Movie,x\n" +
		"2,line two\n"

	r, err := NewReader(strings.NewReader(input), Columns{})
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}

	got := collect(t, r)
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2", len(got))
	}
	if got[0].Type != "Movie" || got[0].LogEntry != "line one" {
		t.Errorf("row 1 = %+v", got[0])
	}
	if got[1].Type != "" || got[1].LogEntry != "line two" {
		t.Errorf("short row = %+v, want empty type", got[1])
	}
}

func TestReader_CustomColumns(t *testing.T) {
	input := "kind,raw\nRating,abc\n"

	r, err := NewReader(strings.NewReader(input), Columns{Type: "kind", LogEntry: "raw"})
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	got := collect(t, r)
	if len(got) != 1 || got[0].Type != "Rating" || got[0].LogEntry != "abc" {
		t.Errorf("rows = %+v", got)
	}
}

func TestNewReader_MissingColumn(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty input", ""},
		{"no type column", "Kind,Log Entry\n"},
		{"no log entry column", "Type,Entry\n"},
		{"case sensitive", "type,log entry\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReader(strings.NewReader(tt.input), DefaultColumns())
			if !errors.Is(err, apperrors.ErrMissingColumn) {
				t.Errorf("NewReader() error = %v, want ErrMissingColumn", err)
			}
		})
	}
}
