// The aggregation engine: rows are binned through a multi level index
// tree, one level per group expression, in the iteration order of the
// supplied group set. Each leaf accumulates, per output column, the
// bag of mapped values seen for rows reaching it; after the scan the
// tree is walked and each bag collapsed by its reducer.
//
// Output row order follows bin insertion order and is not part of the
// contract - callers wanting a deterministic order sort afterwards.

package tabular

import (
	"github.com/Velocidex/ordereddict"
	"www.velocidex.com/golang/tabular/formula"
	"www.velocidex.com/golang/tabular/types"
)

// Reducer collapses the bag of values accumulated for one group into
// a single aggregate value.
type Reducer func(values []types.Value) types.Value

// Aggregation maps each row to a scalar and names the reducer that
// collapses the per group bag.
type Aggregation struct {
	Map    *formula.Expression
	Reduce Reducer
}

// Aggregate groups rows by the group expressions (output column ->
// expression) and reduces the value aggregations (output column ->
// Aggregation). The iteration order of groups fixes the nesting depth
// order, so callers supplying a deterministic order get deterministic
// nesting. Duplicate output names are a caller bug and panic before
// any row is scanned.
func (self *Data) Aggregate(groups, values *ordereddict.Dict) *Data {
	if groups == nil {
		groups = ordereddict.NewDict()
	}
	if values == nil {
		values = ordereddict.NewDict()
	}

	for _, name := range values.Keys() {
		_, pres := groups.Get(name)
		if pres {
			panic("tabular: duplicate aggregate output column " + name)
		}
		agg_any, _ := values.Get(name)
		agg, ok := agg_any.(Aggregation)
		if !ok || agg.Reduce == nil {
			panic("tabular: aggregation " + name + " needs a reducer")
		}
	}
	for _, name := range groups.Keys() {
		expr_any, _ := groups.Get(name)
		_, ok := expr_any.(*formula.Expression)
		if !ok {
			panic("tabular: group " + name + " needs an expression")
		}
	}

	return self.transform(&operation{
		kind:   opAggregate,
		groups: groups,
		values: values,
	})
}

// groupNode is one level of the index tree. Interior nodes hold
// children keyed by the group value at their level; leaves hold one
// bag per value aggregation.
type groupNode struct {
	value    types.Value
	children *ordereddict.Dict
	bags     [][]types.Value
}

func newGroupNode(value types.Value, aggCount int) *groupNode {
	return &groupNode{
		value:    value,
		children: ordereddict.NewDict(),
		bags:     make([][]types.Value, aggCount),
	}
}

func (self *operation) applyAggregate(job *Job, id string,
	rows []types.Row, columns []types.Column) (*Raster, error) {

	groupNames := self.groups.Keys()
	groupExprs := make([]*formula.Expression, 0, len(groupNames))
	for _, name := range groupNames {
		expr_any, _ := self.groups.Get(name)
		groupExprs = append(groupExprs, expr_any.(*formula.Expression))
	}

	valueNames := self.values.Keys()
	aggs := make([]Aggregation, 0, len(valueNames))
	for _, name := range valueNames {
		agg_any, _ := self.values.Get(name)
		aggs = append(aggs, agg_any.(Aggregation))
	}

	outColumns := types.MakeColumns(append(
		append([]string{}, groupNames...), valueNames...))

	index := columnIndex(columns)
	root := newGroupNode(types.Empty(), len(aggs))

	for i, row := range rows {
		if checkScan(job, id, i) {
			return cancelledRaster(outColumns), nil
		}
		binding := rowBinding{index: index, row: row}

		// Descend one tree level per group expression.
		node := root
		for _, expr := range groupExprs {
			value := expr.Eval(binding)
			key := types.RowKey(types.Row{value}, 1)

			child_any, pres := node.children.Get(key)
			if !pres {
				child := newGroupNode(value, len(aggs))
				node.children.Set(key, child)
				node = child
			} else {
				node = child_any.(*groupNode)
			}
		}

		for a, agg := range aggs {
			node.bags[a] = append(node.bags[a], agg.Map.Eval(binding))
		}
	}

	result := []types.Row{}
	emitGroups(root, len(groupExprs), nil, aggs, &result)
	return newResultRaster(outColumns, result), nil
}

// emitGroups walks the tree; at each leaf it emits one row of the
// group values along the path followed by the reduced bags.
func emitGroups(node *groupNode, depth int, prefix types.Row,
	aggs []Aggregation, out *[]types.Row) {

	if depth == 0 {
		row := append(types.Row{}, prefix...)
		for a, agg := range aggs {
			row = append(row, agg.Reduce(node.bags[a]))
		}
		*out = append(*out, row)
		return
	}

	for _, key := range node.children.Keys() {
		child_any, _ := node.children.Get(key)
		child := child_any.(*groupNode)
		emitGroups(child, depth-1, append(prefix, child.value), aggs, out)
	}
}

// The stock reducers.

func ReduceCount(values []types.Value) types.Value {
	return types.Int(int64(len(values)))
}

func ReduceSum(values []types.Value) types.Value {
	total := types.Int(0)
	for _, v := range values {
		if v.IsEmpty() {
			continue
		}
		total = types.Add(total, v)
	}
	return total
}

func ReduceAverage(values []types.Value) types.Value {
	count := 0
	total := types.Int(0)
	for _, v := range values {
		if v.IsEmpty() {
			continue
		}
		total = types.Add(total, v)
		count++
	}
	if count == 0 {
		return types.Empty()
	}
	return types.Div(total, types.Int(int64(count)))
}

func ReduceMin(values []types.Value) types.Value {
	return reducePick(values, true)
}

func ReduceMax(values []types.Value) types.Value {
	return reducePick(values, false)
}

func ReduceFirst(values []types.Value) types.Value {
	if len(values) == 0 {
		return types.Empty()
	}
	return values[0]
}

func ReduceLast(values []types.Value) types.Value {
	if len(values) == 0 {
		return types.Empty()
	}
	return values[len(values)-1]
}

// ReduceConcat joins the display forms with a separator.
func ReduceConcat(separator string) Reducer {
	return func(values []types.Value) types.Value {
		result := ""
		for i, v := range values {
			if v.IsInvalid() {
				return types.Invalid()
			}
			if i > 0 {
				result += separator
			}
			result += v.Display()
		}
		return types.String(result)
	}
}

func reducePick(values []types.Value, wantLess bool) types.Value {
	var best types.Value
	found := false
	for _, v := range values {
		if v.IsInvalid() {
			return types.Invalid()
		}
		if v.IsEmpty() {
			continue
		}
		if !found || (wantLess && v.Less(best)) ||
			(!wantLess && best.Less(v)) {
			best = v
			found = true
		}
	}
	if !found {
		return types.Empty()
	}
	return best
}
