package sheetdb

import (
	"cmp"
	"context"
	"errors"
	"slices"
)

// ErrLengthMismatch is returned when positions and rows differ in length.
var ErrLengthMismatch = errors.New("positions and rows must have the same length")

// DefaultFirstRow is the first data row; row 1 holds the column headers.
const DefaultFirstRow = 2

// Sheet is the content of the data range as fetched from a Store.
type Sheet struct {
	// FirstRow is the 1-based remote row number of Rows[0].
	FirstRow int
	Rows     []Row
}

// Position returns the remote row number of Rows[i].
func (s *Sheet) Position(i int) int {
	return s.FirstRow + i
}

// Store is the authoritative remote storage of item rows.
//
// Positions are 1-based remote row numbers.
type Store interface {
	// FetchAll returns every row of the data range. Rows may be shorter than
	// the schema.
	FetchAll(ctx context.Context) (*Sheet, error)
	// Append adds row after the last row of the data range. It fails when the
	// row has more cells than the schema.
	Append(ctx context.Context, row Row) error
	// BatchUpdate overwrites the row at each position with the matching
	// full-width row. Rows of the wrong width are skipped; the others are
	// written.
	BatchUpdate(ctx context.Context, positions []int, rows []Row) error
	// DeleteRows removes the rows at positions, highest position first so
	// that earlier deletions do not shift the rows still to delete.
	DeleteRows(ctx context.Context, positions []int) error
}

// DeletionOrder returns positions deduplicated and sorted from highest to
// lowest.
func DeletionOrder(positions []int) []int {
	out := slices.Clone(positions)
	slices.SortFunc(out, func(a, b int) int { return cmp.Compare(b, a) })
	return slices.Compact(out)
}
