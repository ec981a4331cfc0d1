// In memory sort over a materialized upstream.

package tabular

import (
	"sort"

	"www.velocidex.com/golang/tabular/types"
)

func (self *operation) applySort(job *Job, id string,
	rows []types.Row, columns []types.Column) (*Raster, error) {

	index := columnIndex(columns)

	ctx := &sorterCtx{
		items: make([]sortItem, 0, len(rows)),
		desc:  self.desc,
	}
	for i, row := range rows {
		if checkScan(job, id, i) {
			return cancelledRaster(columns), nil
		}
		ctx.items = append(ctx.items, sortItem{
			key: self.expr.Eval(rowBinding{index: index, row: row}),
			row: row,
		})
	}

	sort.Stable(ctx)

	result := make([]types.Row, 0, len(ctx.items))
	for _, item := range ctx.items {
		result = append(result, item.row)
	}
	return newResultRaster(columns, result), nil
}

type sortItem struct {
	key types.Value
	row types.Row
}

// Empty and Invalid keys sort below everything, so their relative
// input order survives a stable sort.
type sorterCtx struct {
	items []sortItem
	desc  bool
}

func (self *sorterCtx) Len() int {
	return len(self.items)
}

func (self *sorterCtx) Less(i, j int) bool {
	if self.desc {
		return self.items[j].key.Less(self.items[i].key)
	}
	return self.items[i].key.Less(self.items[j].key)
}

func (self *sorterCtx) Swap(i, j int) {
	element := self.items[i]
	self.items[i] = self.items[j]
	self.items[j] = element
}
