// Pivot: one output row per distinct row expression value, one output
// column per distinct column expression value, each cell the reduced
// bag of value expression results landing in that (row, column) pair.

package tabular

import (
	"github.com/Velocidex/ordereddict"
	"www.velocidex.com/golang/tabular/formula"
	"www.velocidex.com/golang/tabular/types"
)

type pivotSpec struct {
	rowExpr    *formula.Expression
	columnExpr *formula.Expression
	valueExpr  *formula.Expression
	reduce     Reducer
}

// Pivot cross tabulates the upstream. Output columns are named by the
// display form of the column expression values, in first seen order,
// after a leading group column. Row order follows bin insertion order
// and is not guaranteed.
func (self *Data) Pivot(rowExpr, columnExpr, valueExpr *formula.Expression,
	reduce Reducer) *Data {
	if reduce == nil {
		panic("tabular: pivot needs a reducer")
	}
	return self.transform(&operation{
		kind: opPivot,
		pivot: &pivotSpec{
			rowExpr:    rowExpr,
			columnExpr: columnExpr,
			valueExpr:  valueExpr,
			reduce:     reduce,
		},
	})
}

type pivotBin struct {
	value types.Value
	cells *ordereddict.Dict // column name -> []types.Value bag
}

func (self *operation) applyPivot(job *Job, id string,
	rows []types.Row, columns []types.Column) (*Raster, error) {

	shape := self.pivot
	index := columnIndex(columns)

	// Distinct pivot column names in first seen order, plus per row
	// group bins.
	columnNames := []string{}
	haveColumn := make(map[string]bool)
	bins := ordereddict.NewDict()

	for i, row := range rows {
		if checkScan(job, id, i) {
			return cancelledRaster(types.MakeColumns(
				append([]string{"Group"}, columnNames...))), nil
		}
		binding := rowBinding{index: index, row: row}

		rowValue := shape.rowExpr.Eval(binding)
		columnName := shape.columnExpr.Eval(binding).Display()
		cell := shape.valueExpr.Eval(binding)

		if !haveColumn[columnName] {
			haveColumn[columnName] = true
			columnNames = append(columnNames, columnName)
		}

		key := types.RowKey(types.Row{rowValue}, 1)
		bin_any, pres := bins.Get(key)
		var bin *pivotBin
		if !pres {
			bin = &pivotBin{value: rowValue, cells: ordereddict.NewDict()}
			bins.Set(key, bin)
		} else {
			bin = bin_any.(*pivotBin)
		}

		bag_any, _ := bin.cells.Get(columnName)
		bag, _ := bag_any.([]types.Value)
		bin.cells.Set(columnName, append(bag, cell))
	}

	outColumns := types.MakeColumns(append([]string{"Group"}, columnNames...))

	result := []types.Row{}
	for _, key := range bins.Keys() {
		bin_any, _ := bins.Get(key)
		bin := bin_any.(*pivotBin)

		row := types.Row{bin.value}
		for _, name := range columnNames {
			bag_any, pres := bin.cells.Get(name)
			if !pres {
				row = append(row, types.Empty())
				continue
			}
			row = append(row, shape.reduce(bag_any.([]types.Value)))
		}
		result = append(result, row)
	}
	return newResultRaster(outColumns, result), nil
}
