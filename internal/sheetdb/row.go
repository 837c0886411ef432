package sheetdb

import (
	"errors"
	"slices"
	"strings"
)

var (
	// ErrRowTooShort is returned when a row has fewer cells than the schema.
	ErrRowTooShort = errors.New("row has fewer cells than the schema")
	// ErrRowWidth is returned when a row to write is not exactly schema-wide.
	ErrRowWidth = errors.New("row width does not match the schema")
)

// Row is the raw content of one sheet row, one string per cell.
//
// Rows returned by a [Store] may be shorter than the schema. A missing cell
// and an empty cell are indistinguishable once read.
type Row []string

// WellFormed reports whether the row has at least one cell per column.
func (r Row) WellFormed() bool {
	return len(r) >= Width
}

// FullWidth reports whether the row has exactly one cell per column, as
// required to write it back with [Store.BatchUpdate].
func (r Row) FullWidth() bool {
	return len(r) == Width
}

// Cell returns the value of the column and whether it is non-empty.
func (r Row) Cell(col Column) (string, bool) {
	return r.At(col.Index())
}

// At returns the cell at position i and whether it is non-empty.
func (r Row) At(i int) (string, bool) {
	if i < 0 || i >= len(r) || r[i] == "" {
		return "", false
	}
	return r[i], true
}

// Tags returns the lowercased comma-separated tags of the row, or nil when
// the Tags cell is empty.
func (r Row) Tags() []string {
	s, ok := r.Cell(ColTags)
	if !ok {
		return nil
	}
	return strings.Split(strings.ToLower(s), ",")
}

// Clone returns a copy of the row that can be modified independently.
func (r Row) Clone() Row {
	return slices.Clone(r)
}

// Pad returns the row extended with empty cells up to the schema width.
func (r Row) Pad() Row {
	if len(r) >= Width {
		return r
	}
	out := make(Row, Width)
	copy(out, r)
	return out
}
