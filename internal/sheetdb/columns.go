// Defines the fixed column schema of the item sheet.

package sheetdb

import (
	"errors"
	"fmt"
)

// Column is the header name of a sheet column.
type Column string

// Columns of the item sheet, in storage order.
const (
	ColID          Column = "Id"
	ColLink        Column = "Link"
	ColType        Column = "Type"
	ColName        Column = "Name"
	ColTags        Column = "Tags"
	ColDescription Column = "Description"
)

// Columns is the schema: the position of each column in a row.
var Columns = []Column{ColID, ColLink, ColType, ColName, ColTags, ColDescription}

// Width is the number of cells in a full-width row.
var Width = len(Columns)

// ErrUnknownColumn is returned when a column name is not part of the schema.
var ErrUnknownColumn = errors.New("unknown column")

// Index returns the position of the column in a row, or -1.
func (c Column) Index() int {
	for i, col := range Columns {
		if col == c {
			return i
		}
	}
	return -1
}

// ColumnIndex resolves a column name to its position in a row.
func ColumnIndex(name string) (int, error) {
	if i := Column(name).Index(); i >= 0 {
		return i, nil
	}
	return -1, fmt.Errorf("%w %q", ErrUnknownColumn, name)
}
