// The mutable in-memory table. A Raster owns an ordered row list and
// an ordered, unique column list behind one table wide lock. Every
// read and write takes the lock so multi step updates (removing a
// column across all rows, say) are observed fully applied or not at
// all.
//
// Mutating a read only Raster is a caller bug and panics rather than
// returning an error. Transformation results are always read only; a
// caller wanting a mutable sink constructs one with NewRaster.

package tabular

import (
	"fmt"
	"sort"
	"sync"

	"www.velocidex.com/golang/tabular/types"
)

type Raster struct {
	mu       sync.Mutex
	columns  []types.Column
	rows     []types.Row
	readOnly bool
}

// NewRaster builds a mutable table with the given column names.
// Duplicate names are dropped, first occurrence wins.
func NewRaster(columnNames ...string) *Raster {
	result := &Raster{}
	for _, name := range columnNames {
		if result.indexOfColumn(name) < 0 {
			result.columns = append(result.columns, types.NewColumn(name))
		}
	}
	return result
}

// newResultRaster builds the read only table a transformation emits.
func newResultRaster(columns []types.Column, rows []types.Row) *Raster {
	return &Raster{
		columns:  append([]types.Column{}, columns...),
		rows:     rows,
		readOnly: true,
	}
}

func (self *Raster) assertWritable() {
	if self.readOnly {
		panic("tabular: mutation of a read only raster")
	}
}

func (self *Raster) ReadOnly() bool {
	self.mu.Lock()
	defer self.mu.Unlock()

	return self.readOnly
}

func (self *Raster) RowCount() int {
	self.mu.Lock()
	defer self.mu.Unlock()

	return len(self.rows)
}

func (self *Raster) ColumnCount() int {
	self.mu.Lock()
	defer self.mu.Unlock()

	return len(self.columns)
}

func (self *Raster) ColumnNames() []string {
	self.mu.Lock()
	defer self.mu.Unlock()

	return types.ColumnNames(self.columns)
}

func (self *Raster) Columns() []types.Column {
	self.mu.Lock()
	defer self.mu.Unlock()

	return append([]types.Column{}, self.columns...)
}

func (self *Raster) indexOfColumn(name string) int {
	for i, c := range self.columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// IndexOfColumnWithName returns the column position, or false when no
// column carries that name.
func (self *Raster) IndexOfColumnWithName(name string) (int, bool) {
	self.mu.Lock()
	defer self.mu.Unlock()

	idx := self.indexOfColumn(name)
	if idx < 0 {
		return 0, false
	}
	return idx, true
}

// Row returns a copy of the row at idx padded to the column count.
// Out of bounds indices are a caller bug.
func (self *Raster) Row(idx int) types.Row {
	self.mu.Lock()
	defer self.mu.Unlock()

	if idx < 0 || idx >= len(self.rows) {
		panic(fmt.Sprintf("tabular: row index %d out of bounds (%d rows)",
			idx, len(self.rows)))
	}
	return self.rows[idx].Clone().Resize(len(self.columns))
}

// Value reads one cell by row index and column name. A missing column
// is a caller bug.
func (self *Raster) Value(row int, column string) types.Value {
	self.mu.Lock()
	defer self.mu.Unlock()

	if row < 0 || row >= len(self.rows) {
		panic(fmt.Sprintf("tabular: row index %d out of bounds (%d rows)",
			row, len(self.rows)))
	}
	idx := self.indexOfColumn(column)
	if idx < 0 {
		panic(fmt.Sprintf("tabular: no column %q", column))
	}
	return self.rows[row].Get(idx)
}

// NamedValue is the option returning lookup: false when the row or
// column does not exist.
func (self *Raster) NamedValue(row int, column string) (types.Value, bool) {
	self.mu.Lock()
	defer self.mu.Unlock()

	if row < 0 || row >= len(self.rows) {
		return types.Empty(), false
	}
	idx := self.indexOfColumn(column)
	if idx < 0 {
		return types.Empty(), false
	}
	return self.rows[row].Get(idx), true
}

func (self *Raster) AddRows(rows ...types.Row) {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.assertWritable()
	for _, row := range rows {
		self.rows = append(self.rows, row.Clone())
	}
}

// AddRow appends one row of Empty cells sized to the current column
// count.
func (self *Raster) AddRow() {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.assertWritable()
	self.rows = append(self.rows, types.MakeRow(len(self.columns)))
}

// AddColumns appends the names not already present. Every existing
// row is first reconciled to the old width (padding or truncating any
// drift from partial prior writes), then extended with Empty cells
// for the new columns.
func (self *Raster) AddColumns(names ...string) {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.assertWritable()

	oldWidth := len(self.columns)
	added := 0
	for _, name := range names {
		if self.indexOfColumn(name) < 0 {
			self.columns = append(self.columns, types.NewColumn(name))
			added++
		}
	}
	if added == 0 {
		return
	}

	for i, row := range self.rows {
		self.rows[i] = row.Resize(oldWidth).Resize(len(self.columns))
	}
}

// RemoveRows removes the rows whose indices appear in the set.
// Unknown indices are ignored.
func (self *Raster) RemoveRows(indexSet map[int]bool) {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.assertWritable()

	result := self.rows[:0]
	for i, row := range self.rows {
		if !indexSet[i] {
			result = append(result, row)
		}
	}
	self.rows = result
}

// RemoveColumns removes the columns whose indices appear in the set
// and strips the corresponding cell from every row.
func (self *Raster) RemoveColumns(indexSet map[int]bool) {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.assertWritable()

	keep := []int{}
	columns := []types.Column{}
	for i, c := range self.columns {
		if !indexSet[i] {
			keep = append(keep, i)
			columns = append(columns, c)
		}
	}

	for r, row := range self.rows {
		newRow := make(types.Row, 0, len(keep))
		for _, i := range keep {
			newRow = append(newRow, row.Get(i))
		}
		self.rows[r] = newRow
	}
	self.columns = columns
}

// SetValue is a conditional single cell compare and swap. When
// ifMatches is non nil the write only happens if the current cell
// equals it. Returns whether the write occurred. A missing column is
// a caller bug.
func (self *Raster) SetValue(value types.Value, column string, row int,
	ifMatches *types.Value) bool {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.assertWritable()

	idx := self.indexOfColumn(column)
	if idx < 0 {
		panic(fmt.Sprintf("tabular: no column %q", column))
	}
	if row < 0 || row >= len(self.rows) {
		panic(fmt.Sprintf("tabular: row index %d out of bounds (%d rows)",
			row, len(self.rows)))
	}

	current := self.rows[row].Get(idx)
	if ifMatches != nil && !current.Same(*ifMatches) {
		return false
	}

	self.rows[row] = self.rows[row].Resize(len(self.columns))
	self.rows[row][idx] = value
	return true
}

// Update scans all rows; for each row whose cells match every
// key/value pair, the named column is conditionally replaced when it
// currently equals old. Returns the number of rows changed.
func (self *Raster) Update(key map[string]types.Value, column string,
	old, replacement types.Value) int {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.assertWritable()

	colIdx := self.indexOfColumn(column)
	if colIdx < 0 {
		panic(fmt.Sprintf("tabular: no column %q", column))
	}

	keyIdx := make(map[int]types.Value)
	for name, value := range key {
		idx := self.indexOfColumn(name)
		if idx < 0 {
			panic(fmt.Sprintf("tabular: no column %q", name))
		}
		keyIdx[idx] = value
	}

	changed := 0
	for r, row := range self.rows {
		matches := true
		for idx, want := range keyIdx {
			if !row.Get(idx).Same(want) {
				matches = false
				break
			}
		}
		if !matches || !row.Get(colIdx).Same(old) {
			continue
		}

		self.rows[r] = row.Resize(len(self.columns))
		self.rows[r][colIdx] = replacement
		changed++
	}
	return changed
}

// Truncate drops all rows, keeping the column set.
func (self *Raster) Truncate() {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.assertWritable()
	self.rows = nil
}

// Compare is structural equality: same row count, same columns by
// name and order, every cell structurally equal.
func (self *Raster) Compare(other *Raster) bool {
	rows, columns := self.snapshot()
	otherRows, otherColumns := other.snapshot()

	if len(rows) != len(otherRows) ||
		len(columns) != len(otherColumns) {
		return false
	}
	for i := range columns {
		if !columns[i].Equal(otherColumns[i]) {
			return false
		}
	}
	for i := range rows {
		if !rows[i].Equal(otherRows[i], len(columns)) {
			return false
		}
	}
	return true
}

// CommonalitiesOf inspects the indicated rows and returns the subset
// of the given columns whose value is identical across all of them,
// with that common value. Used to infer that a selection falls
// entirely within one group.
func (self *Raster) CommonalitiesOf(rowIndexSet map[int]bool,
	columns []string) map[string]types.Value {
	self.mu.Lock()
	defer self.mu.Unlock()

	result := make(map[string]types.Value)

	// Deterministic row visit order.
	indices := make([]int, 0, len(rowIndexSet))
	for idx := range rowIndexSet {
		if idx >= 0 && idx < len(self.rows) {
			indices = append(indices, idx)
		}
	}
	if len(indices) == 0 {
		return result
	}
	sort.Ints(indices)

	for _, name := range columns {
		colIdx := self.indexOfColumn(name)
		if colIdx < 0 {
			continue
		}

		common := self.rows[indices[0]].Get(colIdx)
		identical := true
		for _, r := range indices[1:] {
			if !self.rows[r].Get(colIdx).Same(common) {
				identical = false
				break
			}
		}
		if identical {
			result[name] = common
		}
	}
	return result
}

// snapshot copies rows and columns out under the lock so long scans
// (joins, compares) can work on a stable view.
func (self *Raster) snapshot() ([]types.Row, []types.Column) {
	self.mu.Lock()
	defer self.mu.Unlock()

	rows := make([]types.Row, len(self.rows))
	for i, row := range self.rows {
		rows[i] = row.Clone().Resize(len(self.columns))
	}
	return rows, append([]types.Column{}, self.columns...)
}
