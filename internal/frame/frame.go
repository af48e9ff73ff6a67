// Package frame holds a small column-ordered, in-memory table.
//
// A Frame is what the transformer produces and what every sink consumes. It
// carries plain Go values ([]any rows) so sinks can map cells to
// their own wire types: strings, float64, int64, time.Time and nil (missing).
package frame

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Kind is the inferred type of a column.
type Kind int

const (
	KindUnknown Kind = iota
	KindText
	KindFloat
	KindInt
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	case KindTime:
		return "time"
	default:
		return "unknown"
	}
}

// Frame is a table with named columns and positional rows.
//
// Invariant: every row has exactly len(Columns) cells.
type Frame struct {
	Columns []string
	Rows    [][]any
}

// New returns an empty frame with the given columns.
func New(columns []string) *Frame {
	cols := append([]string(nil), columns...)
	return &Frame{Columns: cols, Rows: [][]any{}}
}

// Append adds a row. It returns an error when the row width does not match.
func (f *Frame) Append(row []any) error {
	if len(row) != len(f.Columns) {
		return fmt.Errorf("frame: row has %d cells, want %d", len(row), len(f.Columns))
	}
	f.Rows = append(f.Rows, row)
	return nil
}

// Len is the number of rows.
func (f *Frame) Len() int { return len(f.Rows) }

// Width is the number of columns.
func (f *Frame) Width() int { return len(f.Columns) }

// Empty reports whether the frame has no rows.
func (f *Frame) Empty() bool { return len(f.Rows) == 0 }

// Index returns the position of column name.
func (f *Frame) Index(name string) (int, error) {
	for i, c := range f.Columns {
		if c == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("frame: missing column %q", name)
}

// Filter returns a new frame holding the rows for which keep returns true.
// Rows are shared, not copied.
func (f *Frame) Filter(keep func(row []any) bool) *Frame {
	out := New(f.Columns)
	for _, r := range f.Rows {
		if keep(r) {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

// ColumnKind infers a column's type from its non-nil cells.
//
// A column whose non-nil cells disagree, or that holds only nils, is
// KindUnknown. Sinks treat unknown columns as text.
func (f *Frame) ColumnKind(i int) Kind {
	k := KindUnknown
	for _, r := range f.Rows {
		var ck Kind
		switch r[i].(type) {
		case nil:
			continue
		case string:
			ck = KindText
		case float32, float64:
			ck = KindFloat
		case int, int32, int64:
			ck = KindInt
		case time.Time:
			ck = KindTime
		default:
			return KindUnknown
		}
		if k == KindUnknown {
			k = ck
			continue
		}
		if k != ck {
			return KindUnknown
		}
	}
	return k
}

// Kinds returns ColumnKind for every column.
func (f *Frame) Kinds() []Kind {
	out := make([]Kind, len(f.Columns))
	for i := range f.Columns {
		out[i] = f.ColumnKind(i)
	}
	return out
}

// Strings renders the header row followed by every data row as text.
// nil renders as "" and floats use the shortest exact representation.
func (f *Frame) Strings() [][]string {
	out := make([][]string, 0, len(f.Rows)+1)
	out = append(out, append([]string(nil), f.Columns...))
	for _, r := range f.Rows {
		rec := make([]string, len(r))
		for i, v := range r {
			rec[i] = FormatCell(v)
		}
		out = append(out, rec)
	}
	return out
}

// FormatCell renders a single cell as text.
func FormatCell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(t)
	}
}

// Preview writes the first n rows as a boxed table followed by the shape.
// n <= 0 prints every row.
func (f *Frame) Preview(w io.Writer, n int) {
	t := table.NewWriter()
	t.SetOutputMirror(w)

	header := make(table.Row, len(f.Columns))
	for i, c := range f.Columns {
		header[i] = c
	}
	t.AppendHeader(header)

	rows := f.Rows
	if n > 0 && len(rows) > n {
		rows = rows[:n]
	}
	for _, r := range rows {
		tr := make(table.Row, len(r))
		for i, v := range r {
			tr[i] = FormatCell(v)
		}
		t.AppendRow(tr)
	}
	t.SetStyle(table.StyleRounded)
	t.Render()

	fmt.Fprintf(w, "[%d rows x %d columns]\n", f.Len(), f.Width())
}
