// Explain renders a Data graph as an indented tree, one line per
// node, leaves last. Intended for logs and debugging output; the
// format is stable enough to golden test against.

package tabular

import (
	"fmt"
	"strings"

	"www.velocidex.com/golang/tabular/formula"
)

// Explain describes the deferred computation behind a Data without
// running any of it.
func Explain(data *Data) string {
	result := &strings.Builder{}
	explainNode(result, data, 0)
	return result.String()
}

func explainNode(out *strings.Builder, data *Data, depth int) {
	indent := strings.Repeat("  ", depth)

	switch data.kind {
	case dataMaterialized:
		fmt.Fprintf(out, "%sraster (%d columns, %d rows)\n",
			indent, data.raster.ColumnCount(), data.raster.RowCount())

	case dataForeign:
		fmt.Fprintf(out, "%sforeign source\n", indent)

	case dataTransform:
		fmt.Fprintf(out, "%s%s\n", indent, data.op.describe())
		explainNode(out, data.source, depth+1)

	case dataBinary:
		fmt.Fprintf(out, "%s%s\n", indent, data.op.describe())
		explainNode(out, data.source, depth+1)
		explainNode(out, data.second, depth+1)
	}
}

// describe is one line summarizing the operation and its parameters,
// with formulas rendered in canonical form.
func (self *operation) describe() string {
	switch self.kind {
	case opSelectColumns:
		return "select " + strings.Join(self.columns, ", ")

	case opFilter:
		return "filter " + self.expr.String()

	case opSort:
		direction := "ascending"
		if self.desc {
			direction = "descending"
		}
		return fmt.Sprintf("sort %s %s", self.expr.String(), direction)

	case opLimit:
		return fmt.Sprintf("limit %d", self.n)

	case opOffset:
		return fmt.Sprintf("offset %d", self.n)

	case opRandom:
		return fmt.Sprintf("random %d", self.n)

	case opPivot:
		return fmt.Sprintf("pivot rows %s columns %s values %s",
			self.pivot.rowExpr.String(),
			self.pivot.columnExpr.String(),
			self.pivot.valueExpr.String())

	case opAggregate:
		parts := []string{}
		for _, name := range self.groups.Keys() {
			expr, _ := self.groups.Get(name)
			parts = append(parts, fmt.Sprintf("%s=%s",
				name, expr.(*formula.Expression).String()))
		}
		desc := "aggregate " + strings.Join(self.values.Keys(), ", ")
		if len(parts) > 0 {
			desc += " by " + strings.Join(parts, ", ")
		}
		return desc

	case opJoin:
		mode := "inner"
		if self.joinType == LeftJoin {
			mode = "left"
		}
		kind := "nested loop"
		if _, _, ok := self.expr.EquiJoinSides(); ok {
			kind = "hash"
		}
		return fmt.Sprintf("%s join (%s) on %s", mode, kind, self.expr.String())
	}
	return self.kind.String()
}
