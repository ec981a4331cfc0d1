package tabular

import (
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"www.velocidex.com/golang/tabular/types"
)

func joinFixtures() (*Raster, *Raster) {
	left := makeRaster([]string{"K", "V"},
		types.Row{types.Int(1), types.String("a")},
		types.Row{types.Int(2), types.String("b")},
		types.Row{types.Int(2), types.String("c")},
		types.Row{types.Int(3), types.String("d")},
	)
	right := makeRaster([]string{"K", "W"},
		types.Row{types.Int(2), types.String("x")},
		types.Row{types.Int(2), types.String("y")},
		types.Row{types.Int(3), types.String("z")},
		types.Row{types.Int(4), types.String("unmatched")},
	)
	return left, right
}

// rowKeys encodes every row of a table so joins can be compared as
// multisets regardless of output order.
func rowKeys(raster *Raster) []string {
	result := []string{}
	width := raster.ColumnCount()
	for i := 0; i < raster.RowCount(); i++ {
		result = append(result, types.RowKey(raster.Row(i), width))
	}
	sort.Strings(result)
	return result
}

func TestInnerHashJoin(t *testing.T) {
	left, right := joinFixtures()

	result := materialize(t, NewJob(), FromRaster(left).Join(
		FromRaster(right), InnerJoin, mustFormula(t, "=[@K] = [#K]")))

	assert.Equal(t, []string{"K", "V", "W"}, result.ColumnNames())

	// K=1 has no partner, K=2 pairs 2x2, K=3 pairs 1x1.
	assert.Equal(t, 5, result.RowCount())

	expected := makeRaster([]string{"K", "V", "W"},
		types.Row{types.Int(2), types.String("b"), types.String("x")},
		types.Row{types.Int(2), types.String("b"), types.String("y")},
		types.Row{types.Int(2), types.String("c"), types.String("x")},
		types.Row{types.Int(2), types.String("c"), types.String("y")},
		types.Row{types.Int(3), types.String("d"), types.String("z")},
	)
	assert.Equal(t, rowKeys(expected), rowKeys(result))
}

func TestLeftJoinPadsUnmatched(t *testing.T) {
	left, right := joinFixtures()

	result := materialize(t, NewJob(), FromRaster(left).Join(
		FromRaster(right), LeftJoin, mustFormula(t, "=[@K] = [#K]")))

	// The inner pairs plus the unmatched K=1 row padded with Empty.
	assert.Equal(t, 6, result.RowCount())

	padded := makeRaster([]string{"K", "V", "W"},
		types.Row{types.Int(1), types.String("a"), types.Empty()},
	)
	keys := rowKeys(result)
	idx := sort.SearchStrings(keys, rowKeys(padded)[0])
	assert.True(t, idx < len(keys) && keys[idx] == rowKeys(padded)[0],
		"missing padded row for K=1")
}

func TestInnerJoinIsSubsetOfLeftJoin(t *testing.T) {
	left, right := joinFixtures()

	inner := materialize(t, NewJob(), FromRaster(left).Join(
		FromRaster(right), InnerJoin, mustFormula(t, "=[@K] = [#K]")))
	outer := materialize(t, NewJob(), FromRaster(left).Join(
		FromRaster(right), LeftJoin, mustFormula(t, "=[@K] = [#K]")))

	outerKeys := map[string]int{}
	for _, key := range rowKeys(outer) {
		outerKeys[key]++
	}
	for _, key := range rowKeys(inner) {
		if outerKeys[key] == 0 {
			t.Fatalf("inner row missing from left join: %v", key)
		}
		outerKeys[key]--
	}
}

func TestHashAndNestedLoopAgree(t *testing.T) {
	left, right := joinFixtures()

	// The plain equality runs as a hash join. Wrapping it so one side
	// touches both tables forces the nested loop, without changing
	// which pairs match.
	hash := materialize(t, NewJob(), FromRaster(left).Join(
		FromRaster(right), InnerJoin, mustFormula(t, "=[@K] = [#K]")))
	loop := materialize(t, NewJob(), FromRaster(left).Join(
		FromRaster(right), InnerJoin,
		mustFormula(t, "=([@K] = [#K]) = TRUE")))

	assert.Equal(t, rowKeys(hash), rowKeys(loop))
}

func TestNestedLoopPredicate(t *testing.T) {
	left, right := joinFixtures()

	result := materialize(t, NewJob(), FromRaster(left).Join(
		FromRaster(right), InnerJoin, mustFormula(t, "=[@K] < [#K]")))

	// Every (left, right) pair with a strictly smaller left key.
	count := 0
	for _, l := range []int{1, 2, 2, 3} {
		for _, r := range []int{2, 2, 3, 4} {
			if l < r {
				count++
			}
		}
	}
	assert.Equal(t, count, result.RowCount())
}

func TestJoinDropsCollidingRightColumns(t *testing.T) {
	left, right := joinFixtures()

	result := materialize(t, NewJob(), FromRaster(left).Join(
		FromRaster(right), InnerJoin, mustFormula(t, "=[@K] = [#K]")))

	// The right table's K never appears twice.
	assert.Equal(t, []string{"K", "V", "W"}, result.ColumnNames())
	assert.True(t, result.Value(0, "K").Same(types.Int(2)))
}

func TestJoinWithNoNewColumnsIsIdentity(t *testing.T) {
	left, _ := joinFixtures()
	right := makeRaster([]string{"K"},
		types.Row{types.Int(2)},
	)

	result := materialize(t, NewJob(), FromRaster(left).Join(
		FromRaster(right), InnerJoin, mustFormula(t, "=[@K] = [#K]")))

	// The right side cannot contribute columns, so the join cannot
	// change the output and the left side passes through whole.
	assert.True(t, result.Compare(left))
}

func TestJoinInvalidKeysNeverMatch(t *testing.T) {
	left := makeRaster([]string{"K", "V"},
		types.Row{types.Invalid(), types.String("a")},
		types.Row{types.Int(1), types.String("b")},
	)
	right := makeRaster([]string{"K", "W"},
		types.Row{types.Invalid(), types.String("x")},
		types.Row{types.Int(1), types.String("y")},
	)

	result := materialize(t, NewJob(), FromRaster(left).Join(
		FromRaster(right), InnerJoin, mustFormula(t, "=[@K] = [#K]")))

	// Only the K=1 pair; Invalid = Invalid is not a match.
	assert.Equal(t, 1, result.RowCount())
	assert.True(t, result.Value(0, "V").Same(types.String("b")))
}

func TestJoinScalesAcrossChunks(t *testing.T) {
	left := NewRaster("K", "N")
	right := NewRaster("K", "M")
	for i := 0; i < 5000; i++ {
		left.AddRows(types.Row{types.Int(int64(i % 100)), types.Int(int64(i))})
	}
	for i := 0; i < 100; i++ {
		right.AddRows(types.Row{types.Int(int64(i)),
			types.String(fmt.Sprintf("m%d", i))})
	}

	result := materialize(t, NewJob(), FromRaster(left).Join(
		FromRaster(right), InnerJoin, mustFormula(t, "=[@K] = [#K]")))

	// Every left row matches exactly one right row.
	assert.Equal(t, 5000, result.RowCount())
}

func TestSplitRows(t *testing.T) {
	rows := make([]types.Row, 10)
	chunks := splitRows(rows, 3)

	total := 0
	for _, chunk := range chunks {
		total += len(chunk)
	}
	assert.Equal(t, 10, total)
	assert.True(t, len(chunks) <= 3)

	assert.Nil(t, splitRows(nil, 4))
	assert.Equal(t, 1, len(splitRows(rows, 0)))
}
