// Union stacks two tables. The output columns are the left columns
// followed by the right-only columns; rows from either side map their
// cells by column name and read Empty for columns they do not carry.

package tabular

import (
	"www.velocidex.com/golang/tabular/types"
)

func (self *operation) applyUnion(job *Job, id string,
	left, right *Raster) (*Raster, error) {

	leftRows, leftColumns := left.snapshot()
	rightRows, rightColumns := right.snapshot()

	outNames := mergeColumnNames(
		types.ColumnNames(leftColumns), types.ColumnNames(rightColumns))
	outColumns := types.MakeColumns(outNames)
	rightIndex := columnIndex(rightColumns)

	result := make([]types.Row, 0, len(leftRows)+len(rightRows))

	// Left rows already lead the output column order - pad only.
	for i, row := range leftRows {
		if checkScan(job, id, i) {
			return cancelledRaster(outColumns), nil
		}
		result = append(result, row.Resize(len(outColumns)))
	}

	for i, row := range rightRows {
		if checkScan(job, id, len(leftRows)+i) {
			return cancelledRaster(outColumns), nil
		}
		newRow := make(types.Row, 0, len(outColumns))
		for _, name := range outNames {
			idx, pres := rightIndex[name]
			if !pres {
				newRow = append(newRow, types.Empty())
				continue
			}
			newRow = append(newRow, row.Get(idx))
		}
		result = append(result, newRow)
	}
	return newResultRaster(outColumns, result), nil
}
