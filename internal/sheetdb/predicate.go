// Provides the cell predicates used to select rows.

package sheetdb

import (
	"fmt"
	"strings"
)

// Predicate reports whether a cell value matches.
type Predicate func(value string) bool

// Mutator returns the new content of a matched row. It receives a copy.
type Mutator func(row Row) Row

// Op is a comparison operator for Match.
type Op string

// Supported operators. String comparisons other than equality are
// case-insensitive.
const (
	OpEquals      Op = "equals"
	OpNotEquals   Op = "not_equals"
	OpContains    Op = "contains"
	OpNotContains Op = "not_contains"
	OpStartsWith  Op = "starts_with"
	OpEndsWith    Op = "ends_with"
	OpIsEmpty     Op = "is_empty"
	OpIsNotEmpty  Op = "is_not_empty"
)

// Any matches every value.
func Any(string) bool { return true }

// Equals matches values equal to want.
func Equals(want string) Predicate {
	return func(v string) bool { return v == want }
}

// Match returns the predicate for op applied against operand.
func Match(op Op, operand string) (Predicate, error) {
	lower := strings.ToLower(operand)
	switch op {
	case OpEquals:
		return Equals(operand), nil
	case OpNotEquals:
		return func(v string) bool { return v != operand }, nil
	case OpContains:
		return func(v string) bool { return strings.Contains(strings.ToLower(v), lower) }, nil
	case OpNotContains:
		return func(v string) bool { return !strings.Contains(strings.ToLower(v), lower) }, nil
	case OpStartsWith:
		return func(v string) bool { return strings.HasPrefix(strings.ToLower(v), lower) }, nil
	case OpEndsWith:
		return func(v string) bool { return strings.HasSuffix(strings.ToLower(v), lower) }, nil
	case OpIsEmpty:
		return func(v string) bool { return v == "" }, nil
	case OpIsNotEmpty:
		return func(v string) bool { return v != "" }, nil
	default:
		return nil, fmt.Errorf("unknown operator %q", op)
	}
}

// Set returns a Mutator that overwrites the given columns.
//
// The row is padded to the schema width first.
func Set(values map[Column]string) (Mutator, error) {
	idx := make(map[int]string, len(values))
	for col, v := range values {
		i := col.Index()
		if i < 0 {
			return nil, fmt.Errorf("%w %q", ErrUnknownColumn, col)
		}
		idx[i] = v
	}
	return func(row Row) Row {
		row = row.Pad()
		for i, v := range idx {
			row[i] = v
		}
		return row
	}, nil
}
