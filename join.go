// The join engine. An equality predicate whose sides each touch only
// one table runs as a hash join: one materialization of the right
// side builds a key to row-indices map, then the left rows probe it
// in parallel chunks. Any other predicate falls back to a nested loop
// over every row pair, also chunked.
//
// Either way the output columns are the left columns followed by the
// right columns not already named on the left; a name collision drops
// the right column rather than renaming it. Chunk results are reduced
// by concatenation and no output row order is guaranteed - callers
// wanting an order must sort afterwards.

package tabular

import (
	"runtime"
	"sync"

	"www.velocidex.com/golang/tabular/types"
)

type joinShape struct {
	leftColumns  []types.Column
	rightColumns []types.Column
	outColumns   []types.Column

	// Positions in the right rows contributing new output columns.
	rightNew []int

	leftIndex  map[string]int
	rightIndex map[string]int
}

func makeJoinShape(left, right []types.Column) *joinShape {
	shape := &joinShape{
		leftColumns:  left,
		rightColumns: right,
		outColumns:   append([]types.Column{}, left...),
		leftIndex:    columnIndex(left),
		rightIndex:   columnIndex(right),
	}
	for i, c := range right {
		_, collision := shape.leftIndex[c.Name]
		if !collision {
			shape.outColumns = append(shape.outColumns, c)
			shape.rightNew = append(shape.rightNew, i)
		}
	}
	return shape
}

func (self *joinShape) merge(left, right types.Row) types.Row {
	result := make(types.Row, 0, len(self.outColumns))
	for i := range self.leftColumns {
		result = append(result, left.Get(i))
	}
	for _, idx := range self.rightNew {
		result = append(result, right.Get(idx))
	}
	return result
}

func (self *joinShape) mergeUnmatched(left types.Row) types.Row {
	result := make(types.Row, 0, len(self.outColumns))
	for i := range self.leftColumns {
		result = append(result, left.Get(i))
	}
	for range self.rightNew {
		result = append(result, types.Empty())
	}
	return result
}

func (self *operation) applyJoin(job *Job, id string,
	left, right *Raster) (*Raster, error) {

	leftRows, leftColumns := left.snapshot()
	rightRows, rightColumns := right.snapshot()

	shape := makeJoinShape(leftColumns, rightColumns)

	// When the right side contributes no new columns the join cannot
	// change the output shape, so it degenerates to the left side
	// unchanged.
	if len(shape.rightNew) == 0 {
		return left, nil
	}

	localExpr, foreignExpr, isEquiJoin := self.expr.EquiJoinSides()

	var emit func(chunk []types.Row, offset int, out *[]types.Row)

	if isEquiJoin {
		// Build phase: hash every right row by its key expression.
		// Invalid keys never match anything and stay out of the map.
		table := make(map[types.Key][]int, len(rightRows))
		for i, row := range rightRows {
			if checkScan(job, id, i) {
				return cancelledRaster(shape.outColumns), nil
			}
			key := foreignExpr.Eval(foreignBinding{
				index: shape.rightIndex, row: row})
			if key.IsInvalid() {
				continue
			}
			table[key.Key()] = append(table[key.Key()], i)
		}

		emit = func(chunk []types.Row, offset int, out *[]types.Row) {
			for i, leftRow := range chunk {
				if checkScan(job, id, offset+i) {
					return
				}
				key := localExpr.Eval(rowBinding{
					index: shape.leftIndex, row: leftRow})

				matches := []int{}
				if !key.IsInvalid() {
					matches = table[key.Key()]
				}
				for _, r := range matches {
					*out = append(*out, shape.merge(leftRow, rightRows[r]))
				}
				if len(matches) == 0 && self.joinType == LeftJoin {
					*out = append(*out, shape.mergeUnmatched(leftRow))
				}
			}
		}
	} else {
		// General predicate: evaluate every pair.
		emit = func(chunk []types.Row, offset int, out *[]types.Row) {
			for i, leftRow := range chunk {
				if checkScan(job, id, offset+i) {
					return
				}
				matched := false
				for _, rightRow := range rightRows {
					match := self.expr.Eval(pairBinding{
						shape:    shape,
						leftRow:  leftRow,
						rightRow: rightRow,
					})
					if match.IsTrue() {
						matched = true
						*out = append(*out, shape.merge(leftRow, rightRow))
					}
				}
				if !matched && self.joinType == LeftJoin {
					*out = append(*out, shape.mergeUnmatched(leftRow))
				}
			}
		}
	}

	chunks := splitRows(leftRows, runtime.NumCPU())
	results := make([][]types.Row, len(chunks))

	wg := &sync.WaitGroup{}
	offset := 0
	for c, chunk := range chunks {
		wg.Add(1)
		go func(c int, chunk []types.Row, offset int) {
			defer wg.Done()

			out := []types.Row{}
			emit(chunk, offset, &out)
			results[c] = out
		}(c, chunk, offset)
		offset += len(chunk)
	}
	wg.Wait()

	if job.Cancelled() {
		return cancelledRaster(shape.outColumns), nil
	}

	// Reduce by concatenation. Chunk outputs are disjoint freshly
	// allocated buffers so no locking is needed here.
	result := []types.Row{}
	for _, part := range results {
		result = append(result, part...)
	}
	return newResultRaster(shape.outColumns, result), nil
}

// splitRows cuts the row list into at most n contiguous chunks of
// near equal size.
func splitRows(rows []types.Row, n int) [][]types.Row {
	if n < 1 {
		n = 1
	}
	if len(rows) == 0 {
		return nil
	}

	size := (len(rows) + n - 1) / n
	chunks := [][]types.Row{}
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		chunks = append(chunks, rows[start:end])
	}
	return chunks
}

// foreignBinding reads one right table row through foreign
// references. Sibling references have no meaning on this side.
type foreignBinding struct {
	index map[string]int
	row   types.Row
}

func (self foreignBinding) Sibling(name string) types.Value {
	return types.Invalid()
}

func (self foreignBinding) Foreign(name string) types.Value {
	idx, pres := self.index[name]
	if !pres {
		return types.Invalid()
	}
	return self.row.Get(idx)
}

func (self foreignBinding) Current() types.Value {
	return types.Empty()
}

// pairBinding evaluates a general join predicate over one left/right
// row pair.
type pairBinding struct {
	shape    *joinShape
	leftRow  types.Row
	rightRow types.Row
}

func (self pairBinding) Sibling(name string) types.Value {
	idx, pres := self.shape.leftIndex[name]
	if !pres {
		return types.Invalid()
	}
	return self.leftRow.Get(idx)
}

func (self pairBinding) Foreign(name string) types.Value {
	idx, pres := self.shape.rightIndex[name]
	if !pres {
		return types.Invalid()
	}
	return self.rightRow.Get(idx)
}

func (self pairBinding) Current() types.Value {
	return types.Empty()
}
