package tabular

import (
	"testing"

	"github.com/go-test/deep"
	"github.com/stretchr/testify/assert"
	"www.velocidex.com/golang/tabular/types"
)

func TestRasterShape(t *testing.T) {
	raster := NewRaster("A", "B", "A") // duplicate dropped

	assert.Equal(t, []string{"A", "B"}, raster.ColumnNames())
	assert.Equal(t, 0, raster.RowCount())
	assert.False(t, raster.ReadOnly())

	idx, pres := raster.IndexOfColumnWithName("B")
	assert.True(t, pres)
	assert.Equal(t, 1, idx)

	_, pres = raster.IndexOfColumnWithName("C")
	assert.False(t, pres)
}

func TestRasterRowPadding(t *testing.T) {
	raster := NewRaster("A", "B", "C")
	raster.AddRows(types.Row{types.Int(1)}) // short row

	row := raster.Row(0)
	assert.Equal(t, 3, len(row))
	assert.True(t, row.Get(0).Same(types.Int(1)))
	assert.True(t, row.Get(2).Same(types.Empty()))

	// Rows are copied in and out: mutating the returned row does not
	// touch the table.
	row[0] = types.Int(99)
	assert.True(t, raster.Value(0, "A").Same(types.Int(1)))
}

func TestAddRemoveColumns(t *testing.T) {
	raster := NewRaster("A")
	raster.AddRows(types.Row{types.Int(1)}, types.Row{types.Int(2)})

	raster.AddColumns("B", "A", "C")
	assert.Equal(t, []string{"A", "B", "C"}, raster.ColumnNames())
	assert.True(t, raster.Value(0, "B").Same(types.Empty()))

	raster.SetValue(types.Int(10), "B", 0, nil)
	raster.RemoveColumns(map[int]bool{0: true}) // drop A
	assert.Equal(t, []string{"B", "C"}, raster.ColumnNames())
	assert.True(t, raster.Value(0, "B").Same(types.Int(10)))
	assert.True(t, raster.Value(1, "B").Same(types.Empty()))
}

func TestRemoveRows(t *testing.T) {
	raster := makeRaster([]string{"A"},
		types.Row{types.Int(1)},
		types.Row{types.Int(2)},
		types.Row{types.Int(3)},
	)

	raster.RemoveRows(map[int]bool{0: true, 2: true, 99: true})
	assert.Equal(t, 1, raster.RowCount())
	assert.True(t, raster.Value(0, "A").Same(types.Int(2)))
}

func TestSetValueCompareAndSwap(t *testing.T) {
	raster := makeRaster([]string{"A"}, types.Row{types.Int(1)})

	// Unconditional write.
	assert.True(t, raster.SetValue(types.Int(2), "A", 0, nil))

	// Guard does not match the current cell.
	stale := types.Int(1)
	assert.False(t, raster.SetValue(types.Int(3), "A", 0, &stale))
	assert.True(t, raster.Value(0, "A").Same(types.Int(2)))

	// Guard matches.
	current := types.Int(2)
	assert.True(t, raster.SetValue(types.Int(3), "A", 0, &current))
	assert.True(t, raster.Value(0, "A").Same(types.Int(3)))
}

func TestUpdate(t *testing.T) {
	raster := makeRaster([]string{"K", "V"},
		types.Row{types.String("a"), types.Int(1)},
		types.Row{types.String("b"), types.Int(1)},
		types.Row{types.String("a"), types.Int(2)},
	)

	changed := raster.Update(
		map[string]types.Value{"K": types.String("a")},
		"V", types.Int(1), types.Int(10))

	// Only the row matching both the key and the old value changes.
	assert.Equal(t, 1, changed)
	assert.True(t, raster.Value(0, "V").Same(types.Int(10)))
	assert.True(t, raster.Value(1, "V").Same(types.Int(1)))
	assert.True(t, raster.Value(2, "V").Same(types.Int(2)))
}

func TestCompare(t *testing.T) {
	a := makeRaster([]string{"A"},
		types.Row{types.Int(1)}, types.Row{types.Invalid()})
	b := makeRaster([]string{"A"},
		types.Row{types.Int(1)}, types.Row{types.Invalid()})

	// Structural comparison treats Invalid cells as identical.
	assert.True(t, a.Compare(b))

	// Structural comparison distinguishes the Int and Double variants
	// even when they are numerically equal.
	c := makeRaster([]string{"A"},
		types.Row{types.Double(1)}, types.Row{types.Invalid()})
	assert.False(t, a.Compare(c))

	d := makeRaster([]string{"B"},
		types.Row{types.Int(1)}, types.Row{types.Invalid()})
	assert.False(t, a.Compare(d))

	if diff := deep.Equal(a.ColumnNames(), b.ColumnNames()); diff != nil {
		t.Fatal(diff)
	}
}

func TestCommonalitiesOf(t *testing.T) {
	raster := makeRaster([]string{"G", "H", "V"},
		types.Row{types.String("x"), types.Int(1), types.Int(10)},
		types.Row{types.String("x"), types.Int(2), types.Int(20)},
		types.Row{types.String("y"), types.Int(1), types.Int(30)},
	)

	common := raster.CommonalitiesOf(
		map[int]bool{0: true, 1: true}, []string{"G", "H", "Nope"})

	assert.Equal(t, 1, len(common))
	assert.True(t, common["G"].Same(types.String("x")))

	// Empty selection has nothing in common.
	assert.Equal(t, 0, len(raster.CommonalitiesOf(nil, []string{"G"})))
}

func TestTruncate(t *testing.T) {
	raster := makeRaster([]string{"A"}, types.Row{types.Int(1)})
	raster.Truncate()

	assert.Equal(t, 0, raster.RowCount())
	assert.Equal(t, []string{"A"}, raster.ColumnNames())
}

func TestNamedValue(t *testing.T) {
	raster := makeRaster([]string{"A"}, types.Row{types.Int(1)})

	value, pres := raster.NamedValue(0, "A")
	assert.True(t, pres)
	assert.True(t, value.Same(types.Int(1)))

	_, pres = raster.NamedValue(0, "B")
	assert.False(t, pres)
	_, pres = raster.NamedValue(5, "A")
	assert.False(t, pres)
}

func TestReadOnlyMutationPanics(t *testing.T) {
	result := materialize(t, NewJob(),
		FromRaster(sampleTable()).Limit(1))
	assert.True(t, result.ReadOnly())

	assert.Panics(t, func() { result.AddRow() })
	assert.Panics(t, func() { result.Truncate() })
	assert.Panics(t, func() {
		result.SetValue(types.Int(0), "A", 0, nil)
	})
}

func TestProgrammerErrorPanics(t *testing.T) {
	raster := makeRaster([]string{"A"}, types.Row{types.Int(1)})

	assert.Panics(t, func() { raster.Row(5) })
	assert.Panics(t, func() { raster.Value(0, "Nope") })
	assert.Panics(t, func() { raster.SetValue(types.Int(0), "Nope", 0, nil) })
	assert.Panics(t, func() {
		raster.Update(map[string]types.Value{"Nope": types.Int(1)},
			"A", types.Int(1), types.Int(2))
	})
}
