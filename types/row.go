package types

import (
	"fmt"
	"strings"
)

// Row is a positional sequence of cells. A row may be shorter than
// its table's column list - readers treat missing trailing cells as
// Empty. A row is never treated as longer than the column list for
// indexed access; excess cells are ignored until a resize truncates
// them.
type Row []Value

// Get reads the cell at idx, padding with Empty past the end of the
// row. Callers are responsible for not passing an index beyond the
// owning table's column count.
func (self Row) Get(idx int) Value {
	if idx < 0 || idx >= len(self) {
		return Empty()
	}
	return self[idx]
}

// Resize pads with Empty or truncates so the row has exactly width
// cells, returning the adjusted row.
func (self Row) Resize(width int) Row {
	if len(self) == width {
		return self
	}
	if len(self) > width {
		return self[:width]
	}
	result := make(Row, width)
	copy(result, self)
	for i := len(self); i < width; i++ {
		result[i] = Empty()
	}
	return result
}

// Equal compares two rows structurally cell by cell at the given
// width, padding both with Empty. Structural comparison (Same, not
// Equal) so rows carrying Invalid cells still compare as themselves.
func (self Row) Equal(other Row, width int) bool {
	for i := 0; i < width; i++ {
		if !self.Get(i).Same(other.Get(i)) {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (self Row) Clone() Row {
	result := make(Row, len(self))
	copy(result, self)
	return result
}

// RowKey encodes the row at the given width into a string consistent
// with structural row equality, for use as a hash key (distinct,
// grouping).
func RowKey(row Row, width int) string {
	var b strings.Builder
	for i := 0; i < width; i++ {
		k := row.Get(i).Key()
		fmt.Fprintf(&b, "%d:%v:%v:%q|", k.kind, k.num, k.b, k.s)
	}
	return b.String()
}

// MakeRow builds a row of count Empty cells.
func MakeRow(count int) Row {
	result := make(Row, count)
	for i := range result {
		result[i] = Empty()
	}
	return result
}
