// The closed set of transformation operations a Data node can carry.
// Dispatch is a switch over the operation kind - the operation set is
// fixed, so there is no open ended subclassing here.

package tabular

import (
	"math/rand"
	"sort"
	"strconv"

	"github.com/Velocidex/ordereddict"
	"github.com/pkg/errors"
	"www.velocidex.com/golang/tabular/formula"
	"www.velocidex.com/golang/tabular/types"
)

type opKind int

const (
	opSelectColumns opKind = iota
	opFilter
	opSort
	opLimit
	opOffset
	opTranspose
	opDistinct
	opRandom
	opPivot
	opAggregate
	opUnion
	opJoin
)

func (self opKind) String() string {
	switch self {
	case opSelectColumns:
		return "select"
	case opFilter:
		return "filter"
	case opSort:
		return "sort"
	case opLimit:
		return "limit"
	case opOffset:
		return "offset"
	case opTranspose:
		return "transpose"
	case opDistinct:
		return "distinct"
	case opRandom:
		return "random"
	case opPivot:
		return "pivot"
	case opAggregate:
		return "aggregate"
	case opUnion:
		return "union"
	case opJoin:
		return "join"
	}
	return "unknown"
}

type JoinType int

const (
	InnerJoin JoinType = iota
	LeftJoin
)

type operation struct {
	kind opKind

	columns  []string            // select
	expr     *formula.Expression // filter predicate, sort key, join predicate
	desc     bool                // sort
	n        int                 // limit, offset, random
	rnd      *rand.Rand          // random, injected for determinism
	groups   *ordereddict.Dict   // aggregate: output column -> *formula.Expression
	values   *ordereddict.Dict   // aggregate: output column -> Aggregation
	joinType JoinType
	pivot    *pivotSpec
}

// The operator surface. Each call is cheap - it only wraps the
// receiver in a new node.

func (self *Data) SelectColumns(names ...string) *Data {
	return self.transform(&operation{kind: opSelectColumns, columns: names})
}

func (self *Data) Filter(predicate *formula.Expression) *Data {
	return self.transform(&operation{kind: opFilter, expr: predicate})
}

func (self *Data) Sort(key *formula.Expression, desc bool) *Data {
	return self.transform(&operation{kind: opSort, expr: key, desc: desc})
}

func (self *Data) Limit(n int) *Data {
	return self.transform(&operation{kind: opLimit, n: n})
}

func (self *Data) Offset(n int) *Data {
	return self.transform(&operation{kind: opOffset, n: n})
}

func (self *Data) Transpose() *Data {
	return self.transform(&operation{kind: opTranspose})
}

func (self *Data) Distinct() *Data {
	return self.transform(&operation{kind: opDistinct})
}

// Random samples n rows by assigning each row a random key, sorting
// by it and taking the first n. The random source is injected so
// sampling is reproducible.
func (self *Data) Random(n int, rnd *rand.Rand) *Data {
	return self.transform(&operation{kind: opRandom, n: n, rnd: rnd})
}

func (self *Data) Union(other *Data) *Data {
	return self.binary(&operation{kind: opUnion}, other)
}

func (self *Data) Join(other *Data, joinType JoinType,
	predicate *formula.Expression) *Data {
	return self.binary(&operation{
		kind:     opJoin,
		joinType: joinType,
		expr:     predicate,
	}, other)
}

func (self *operation) apply(job *Job, id string, upstream *Raster) (
	*Raster, error) {
	rows, columns := upstream.snapshot()

	switch self.kind {
	case opSelectColumns:
		return self.applySelect(job, id, rows, columns)
	case opFilter:
		return self.applyFilter(job, id, rows, columns)
	case opSort:
		return self.applySort(job, id, rows, columns)
	case opLimit:
		return self.applyLimit(rows, columns)
	case opOffset:
		return self.applyOffset(rows, columns)
	case opTranspose:
		return self.applyTranspose(job, id, rows, columns)
	case opDistinct:
		return self.applyDistinct(job, id, rows, columns)
	case opRandom:
		return self.applyRandom(job, id, rows, columns)
	case opPivot:
		return self.applyPivot(job, id, rows, columns)
	case opAggregate:
		return self.applyAggregate(job, id, rows, columns)
	}
	return nil, errors.Errorf("tabular: %s is not a unary operation", self.kind)
}

func (self *operation) applyBinary(job *Job, id string,
	left, right *Raster) (*Raster, error) {
	switch self.kind {
	case opUnion:
		return self.applyUnion(job, id, left, right)
	case opJoin:
		return self.applyJoin(job, id, left, right)
	}
	return nil, errors.Errorf("tabular: %s is not a binary operation", self.kind)
}

// outputColumns reports the output column names when they are
// structurally known without materializing.
func (self *operation) outputColumns() ([]string, bool) {
	switch self.kind {
	case opSelectColumns:
		return self.columns, true

	case opAggregate:
		return append(append([]string{}, self.groups.Keys()...),
			self.values.Keys()...), true
	}
	return nil, false
}

// preservesColumns reports whether the operation passes the upstream
// column set through unchanged.
func (self *operation) preservesColumns() bool {
	switch self.kind {
	case opFilter, opSort, opLimit, opOffset, opDistinct, opRandom:
		return true
	}
	return false
}

// checkScan is called every scanCheckInterval rows by scanning loops:
// it reports progress keyed by the node identity and returns whether
// the job was cancelled.
func checkScan(job *Job, id string, row int) bool {
	if row%scanCheckInterval != 0 {
		return false
	}
	job.ReportProgress(id, row)
	return job.Cancelled()
}

// cancelledRaster is the documented shape of a cancelled scan: an
// empty read only table still carrying the expected column names,
// returned as a success.
func cancelledRaster(columns []types.Column) *Raster {
	return newResultRaster(columns, nil)
}

func (self *operation) applySelect(job *Job, id string,
	rows []types.Row, columns []types.Column) (*Raster, error) {

	indices := make([]int, 0, len(self.columns))
	outColumns := types.MakeColumns(self.columns)
	for _, name := range self.columns {
		found := -1
		for i, c := range columns {
			if c.Name == name {
				found = i
				break
			}
		}
		if found < 0 {
			return nil, errors.Errorf("tabular: no column %q to select", name)
		}
		indices = append(indices, found)
	}

	result := make([]types.Row, 0, len(rows))
	for i, row := range rows {
		if checkScan(job, id, i) {
			return cancelledRaster(outColumns), nil
		}
		newRow := make(types.Row, 0, len(indices))
		for _, idx := range indices {
			newRow = append(newRow, row.Get(idx))
		}
		result = append(result, newRow)
	}
	return newResultRaster(outColumns, result), nil
}

func (self *operation) applyFilter(job *Job, id string,
	rows []types.Row, columns []types.Column) (*Raster, error) {

	index := columnIndex(columns)
	result := []types.Row{}
	for i, row := range rows {
		if checkScan(job, id, i) {
			return cancelledRaster(columns), nil
		}
		match := self.expr.Eval(rowBinding{index: index, row: row})
		if match.IsTrue() {
			result = append(result, row)
		}
	}
	return newResultRaster(columns, result), nil
}

func (self *operation) applyLimit(rows []types.Row,
	columns []types.Column) (*Raster, error) {
	n := self.n
	if n > len(rows) {
		n = len(rows)
	}
	if n < 0 {
		n = 0
	}
	return newResultRaster(columns, rows[:n]), nil
}

func (self *operation) applyOffset(rows []types.Row,
	columns []types.Column) (*Raster, error) {
	n := self.n
	if n > len(rows) {
		n = len(rows)
	}
	if n < 0 {
		n = 0
	}
	return newResultRaster(columns, rows[n:]), nil
}

// applyTranspose flips the table: one output row per input column.
// The first output column carries the original column names, then one
// column per input row, numbered from 1.
func (self *operation) applyTranspose(job *Job, id string,
	rows []types.Row, columns []types.Column) (*Raster, error) {

	outColumns := []types.Column{types.NewColumn("Column")}
	for i := range rows {
		outColumns = append(outColumns,
			types.NewColumn("Row "+strconv.Itoa(i+1)))
	}

	result := make([]types.Row, 0, len(columns))
	for c, column := range columns {
		if checkScan(job, id, c) {
			return cancelledRaster(outColumns), nil
		}
		newRow := make(types.Row, 0, len(rows)+1)
		newRow = append(newRow, types.String(column.Name))
		for _, row := range rows {
			newRow = append(newRow, row.Get(c))
		}
		result = append(result, newRow)
	}
	return newResultRaster(outColumns, result), nil
}

func (self *operation) applyDistinct(job *Job, id string,
	rows []types.Row, columns []types.Column) (*Raster, error) {

	seen := make(map[string]bool, len(rows))
	result := []types.Row{}
	for i, row := range rows {
		if checkScan(job, id, i) {
			return cancelledRaster(columns), nil
		}
		key := types.RowKey(row, len(columns))
		if !seen[key] {
			seen[key] = true
			result = append(result, row)
		}
	}
	return newResultRaster(columns, result), nil
}

func (self *operation) applyRandom(job *Job, id string,
	rows []types.Row, columns []types.Column) (*Raster, error) {

	rnd := self.rnd
	if rnd == nil {
		return nil, errors.New("tabular: random sampling needs a random source")
	}

	type keyed struct {
		key float64
		row types.Row
	}
	keyedRows := make([]keyed, 0, len(rows))
	for i, row := range rows {
		if checkScan(job, id, i) {
			return cancelledRaster(columns), nil
		}
		keyedRows = append(keyedRows, keyed{key: rnd.Float64(), row: row})
	}
	sort.Slice(keyedRows, func(i, j int) bool {
		return keyedRows[i].key < keyedRows[j].key
	})

	n := self.n
	if n > len(keyedRows) {
		n = len(keyedRows)
	}
	if n < 0 {
		n = 0
	}
	result := make([]types.Row, 0, n)
	for _, k := range keyedRows[:n] {
		result = append(result, k.row)
	}
	return newResultRaster(columns, result), nil
}

// columnIndex maps column names to positions for row bindings.
func columnIndex(columns []types.Column) map[string]int {
	result := make(map[string]int, len(columns))
	for i, c := range columns {
		result[c.Name] = i
	}
	return result
}

// rowBinding evaluates formulas against one row: sibling references
// read this row, foreign references have no meaning here.
type rowBinding struct {
	index map[string]int
	row   types.Row
}

func (self rowBinding) Sibling(name string) types.Value {
	idx, pres := self.index[name]
	if !pres {
		return types.Invalid()
	}
	return self.row.Get(idx)
}

func (self rowBinding) Foreign(name string) types.Value {
	return types.Invalid()
}

func (self rowBinding) Current() types.Value {
	return types.Empty()
}
