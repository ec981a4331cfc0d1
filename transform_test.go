package tabular

import (
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"www.velocidex.com/golang/tabular/formula"
	"www.velocidex.com/golang/tabular/types"
)

// makeRaster builds a writable test table from a column list and cell
// rows.
func makeRaster(names []string, rows ...types.Row) *Raster {
	result := NewRaster(names...)
	result.AddRows(rows...)
	return result
}

// materialize runs the graph to completion and fails the test on
// error. Completion callbacks fire on a background goroutine, so the
// result crosses back over a channel.
func materialize(t *testing.T, job *Job, data *Data) *Raster {
	t.Helper()

	type outcome struct {
		raster *Raster
		err    error
	}
	done := make(chan outcome, 1)
	data.Raster(job, func(raster *Raster, err error) {
		done <- outcome{raster, err}
	})

	result := <-done
	if result.err != nil {
		t.Fatalf("materialize: %v", result.err)
	}
	return result.raster
}

func materializeErr(t *testing.T, job *Job, data *Data) error {
	t.Helper()

	done := make(chan error, 1)
	data.Raster(job, func(raster *Raster, err error) {
		done <- err
	})
	return <-done
}

func columnNames(t *testing.T, job *Job, data *Data) []string {
	t.Helper()

	type outcome struct {
		names []string
		err   error
	}
	done := make(chan outcome, 1)
	data.ColumnNames(job, func(names []string, err error) {
		done <- outcome{names, err}
	})

	result := <-done
	if result.err != nil {
		t.Fatalf("column names: %v", result.err)
	}
	return result.names
}

func mustFormula(t *testing.T, text string) *formula.Expression {
	t.Helper()

	expr := formula.Parse(text, formula.DefaultLocale())
	if expr == nil {
		t.Fatalf("Failed to parse %v", text)
	}
	return expr
}

func sampleTable() *Raster {
	return makeRaster([]string{"A", "B"},
		types.Row{types.Int(1), types.String("one")},
		types.Row{types.Int(2), types.String("two")},
		types.Row{types.Int(3), types.String("three")},
		types.Row{types.Int(4), types.String("four")},
	)
}

func TestFilter(t *testing.T) {
	data := FromRaster(sampleTable()).Filter(mustFormula(t, "=[@A] > 2"))
	result := materialize(t, NewJob(), data)

	expected := makeRaster([]string{"A", "B"},
		types.Row{types.Int(3), types.String("three")},
		types.Row{types.Int(4), types.String("four")},
	)
	if !result.Compare(expected) {
		t.Fatalf("unexpected filter result: %v rows", result.RowCount())
	}
	assert.True(t, result.ReadOnly())
}

func TestFilterInvalidPredicateDropsRow(t *testing.T) {
	// A reference to a missing column evaluates Invalid, which is not
	// a match.
	data := FromRaster(sampleTable()).Filter(mustFormula(t, "=[@Nope] > 0"))
	result := materialize(t, NewJob(), data)
	assert.Equal(t, 0, result.RowCount())
}

func TestSelectColumns(t *testing.T) {
	data := FromRaster(sampleTable()).SelectColumns("B")
	result := materialize(t, NewJob(), data)

	assert.Equal(t, []string{"B"}, result.ColumnNames())
	assert.Equal(t, 4, result.RowCount())
	assert.True(t, result.Value(0, "B").Same(types.String("one")))
}

func TestSelectMissingColumnFails(t *testing.T) {
	data := FromRaster(sampleTable()).SelectColumns("Nope")
	err := materializeErr(t, NewJob(), data)
	assert.Error(t, err)
}

func TestSortAscendingAndDescending(t *testing.T) {
	table := makeRaster([]string{"A"},
		types.Row{types.Int(3)},
		types.Row{types.Int(1)},
		types.Row{types.Int(2)},
	)

	asc := materialize(t, NewJob(),
		FromRaster(table).Sort(mustFormula(t, "=[@A]"), false))
	assert.True(t, asc.Value(0, "A").Same(types.Int(1)))
	assert.True(t, asc.Value(2, "A").Same(types.Int(3)))

	desc := materialize(t, NewJob(),
		FromRaster(table).Sort(mustFormula(t, "=[@A]"), true))
	assert.True(t, desc.Value(0, "A").Same(types.Int(3)))
	assert.True(t, desc.Value(2, "A").Same(types.Int(1)))
}

func TestSortIsStable(t *testing.T) {
	table := makeRaster([]string{"K", "N"},
		types.Row{types.Int(1), types.Int(1)},
		types.Row{types.Int(0), types.Int(2)},
		types.Row{types.Int(1), types.Int(3)},
		types.Row{types.Int(0), types.Int(4)},
	)

	result := materialize(t, NewJob(),
		FromRaster(table).Sort(mustFormula(t, "=[@K]"), false))

	// Equal keys keep their input order.
	assert.True(t, result.Value(0, "N").Same(types.Int(2)))
	assert.True(t, result.Value(1, "N").Same(types.Int(4)))
	assert.True(t, result.Value(2, "N").Same(types.Int(1)))
	assert.True(t, result.Value(3, "N").Same(types.Int(3)))
}

func TestLimitOffset(t *testing.T) {
	data := FromRaster(sampleTable())

	assert.Equal(t, 2, materialize(t, NewJob(), data.Limit(2)).RowCount())
	assert.Equal(t, 4, materialize(t, NewJob(), data.Clone().Limit(100)).RowCount())
	assert.Equal(t, 0, materialize(t, NewJob(), data.Clone().Limit(-1)).RowCount())

	offset := materialize(t, NewJob(), data.Clone().Offset(3))
	assert.Equal(t, 1, offset.RowCount())
	assert.True(t, offset.Value(0, "A").Same(types.Int(4)))
	assert.Equal(t, 0,
		materialize(t, NewJob(), data.Clone().Offset(100)).RowCount())
}

func TestTranspose(t *testing.T) {
	table := makeRaster([]string{"A", "B"},
		types.Row{types.Int(1), types.Int(2)},
		types.Row{types.Int(3), types.Int(4)},
	)

	result := materialize(t, NewJob(), FromRaster(table).Transpose())
	assert.Equal(t, []string{"Column", "Row 1", "Row 2"}, result.ColumnNames())
	assert.Equal(t, 2, result.RowCount())
	assert.True(t, result.Value(0, "Column").Same(types.String("A")))
	assert.True(t, result.Value(0, "Row 2").Same(types.Int(3)))
	assert.True(t, result.Value(1, "Row 1").Same(types.Int(2)))
}

func TestDistinct(t *testing.T) {
	table := makeRaster([]string{"A"},
		types.Row{types.Int(2)},
		types.Row{types.Double(2)}, // numerically equal to Int(2)
		types.Row{types.Int(3)},
		types.Row{types.Int(2)},
		types.Row{types.Invalid()},
		types.Row{types.Invalid()},
	)

	result := materialize(t, NewJob(), FromRaster(table).Distinct())

	// Int(2)/Double(2) collapse, and the Invalid rows collapse too -
	// distinctness is structural, not comparison based.
	assert.Equal(t, 3, result.RowCount())
	assert.True(t, result.Value(0, "A").Same(types.Int(2)))
	assert.True(t, result.Value(1, "A").Same(types.Int(3)))
	assert.True(t, result.Value(2, "A").Same(types.Invalid()))
}

func TestRandomSample(t *testing.T) {
	data := FromRaster(sampleTable())

	first := materialize(t, NewJob(),
		data.Random(2, rand.New(rand.NewSource(42))))
	assert.Equal(t, 2, first.RowCount())
	assert.Equal(t, []string{"A", "B"}, first.ColumnNames())

	// Same seed, same sample.
	second := materialize(t, NewJob(),
		data.Clone().Random(2, rand.New(rand.NewSource(42))))
	assert.True(t, first.Compare(second))

	// Oversampling returns everything.
	all := materialize(t, NewJob(),
		data.Clone().Random(100, rand.New(rand.NewSource(1))))
	assert.Equal(t, 4, all.RowCount())

	// No random source is a recoverable error.
	err := materializeErr(t, NewJob(), data.Clone().Random(2, nil))
	assert.Error(t, err)
}

func TestUnion(t *testing.T) {
	left := makeRaster([]string{"A", "B"},
		types.Row{types.Int(1), types.Int(2)},
	)
	right := makeRaster([]string{"B", "C"},
		types.Row{types.Int(3), types.Int(4)},
	)

	result := materialize(t, NewJob(),
		FromRaster(left).Union(FromRaster(right)))

	assert.Equal(t, []string{"A", "B", "C"}, result.ColumnNames())
	assert.Equal(t, 2, result.RowCount())

	// Left row padded with Empty for C.
	assert.True(t, result.Value(0, "A").Same(types.Int(1)))
	assert.True(t, result.Value(0, "C").Same(types.Empty()))

	// Right row mapped by name, Empty for A.
	assert.True(t, result.Value(1, "A").Same(types.Empty()))
	assert.True(t, result.Value(1, "B").Same(types.Int(3)))
	assert.True(t, result.Value(1, "C").Same(types.Int(4)))
}

func TestCancelledScanReturnsShapedEmpty(t *testing.T) {
	job := NewJob()
	job.Cancel()

	data := FromRaster(sampleTable()).Filter(mustFormula(t, "=[@A] > 0"))
	result := materialize(t, job, data)

	// Cancellation is a success carrying an empty table of the
	// expected shape, never an error.
	assert.Equal(t, []string{"A", "B"}, result.ColumnNames())
	assert.Equal(t, 0, result.RowCount())
}

func TestCancelledRandomSampleReturnsShapedEmpty(t *testing.T) {
	job := NewJob()
	job.Cancel()

	data := FromRaster(numberTable(5000)).
		Random(100, rand.New(rand.NewSource(42)))
	result := materialize(t, job, data)

	assert.Equal(t, []string{"N"}, result.ColumnNames())
	assert.Equal(t, 0, result.RowCount())
}

// failingSource errors on materialization but still names its
// columns.
type failingSource struct {
	names     []string
	rasterGot int
}

func (self *failingSource) ColumnNames(job *Job, cb func([]string, error)) {
	cb(self.names, nil)
}

func (self *failingSource) Raster(job *Job, cb func(*Raster, error)) {
	self.rasterGot++
	cb(nil, errors.New("source down"))
}

func TestColumnNamesShortCircuit(t *testing.T) {
	source := &failingSource{names: []string{"A", "B"}}

	// Structural operations answer without materializing, even over a
	// source that cannot deliver rows.
	data := FromSource(source).
		Filter(mustFormula(t, "=[@A] > 0")).
		SelectColumns("A")
	assert.Equal(t, []string{"A"}, columnNames(t, NewJob(), data))

	preserving := FromSource(source).Sort(mustFormula(t, "=[@A]"), false)
	assert.Equal(t, []string{"A", "B"}, columnNames(t, NewJob(), preserving))

	assert.Equal(t, 0, source.rasterGot)
}

// countingSource counts materializations to observe memoization.
type countingSource struct {
	table *Raster
	calls int
}

func (self *countingSource) ColumnNames(job *Job, cb func([]string, error)) {
	cb(self.table.ColumnNames(), nil)
}

func (self *countingSource) Raster(job *Job, cb func(*Raster, error)) {
	self.calls++
	cb(self.table, nil)
}

func TestMaterializationIsMemoized(t *testing.T) {
	source := &countingSource{table: sampleTable()}
	data := FromSource(source).Filter(mustFormula(t, "=[@A] > 1"))

	job := NewJob()
	first := materialize(t, job, data)
	second := materialize(t, job, data)

	assert.Equal(t, 1, source.calls)
	assert.True(t, first.Compare(second))

	// A clone recomputes from scratch.
	materialize(t, NewJob(), data.Clone())
	assert.Equal(t, 2, source.calls)
}

func TestForeignSourceError(t *testing.T) {
	data := FromSource(&failingSource{names: []string{"A"}})
	err := materializeErr(t, NewJob(), data)
	assert.Error(t, err)
}
