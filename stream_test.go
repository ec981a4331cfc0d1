package tabular

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"www.velocidex.com/golang/tabular/types"
)

// nextBatch pulls one batch synchronously for tests.
func nextBatch(t *testing.T, job *Job, stream *Stream) ([]types.Row, bool) {
	t.Helper()

	type outcome struct {
		batch []types.Row
		done  bool
		err   error
	}
	ch := make(chan outcome, 1)
	stream.Next(job, func(batch []types.Row, done bool, err error) {
		ch <- outcome{batch, done, err}
	})

	result := <-ch
	if result.err != nil {
		t.Fatalf("stream: %v", result.err)
	}
	return result.batch, result.done
}

func numberTable(n int) *Raster {
	result := NewRaster("N")
	for i := 0; i < n; i++ {
		result.AddRows(types.Row{types.Int(int64(i))})
	}
	return result
}

func TestStreamBatches(t *testing.T) {
	job := NewJob()
	stream := NewStream(FromRaster(numberTable(5)), 2)

	batch, done := nextBatch(t, job, stream)
	assert.Equal(t, 2, len(batch))
	assert.False(t, done)
	assert.True(t, batch[0].Get(0).Same(types.Int(0)))

	batch, done = nextBatch(t, job, stream)
	assert.Equal(t, 2, len(batch))
	assert.False(t, done)

	batch, done = nextBatch(t, job, stream)
	assert.Equal(t, 1, len(batch))
	assert.True(t, done)
	assert.True(t, batch[0].Get(0).Same(types.Int(4)))

	// Draining past the end stays done.
	batch, done = nextBatch(t, job, stream)
	assert.Equal(t, 0, len(batch))
	assert.True(t, done)
}

func TestStreamCloneAndRewind(t *testing.T) {
	job := NewJob()
	stream := NewStream(FromRaster(numberTable(4)), 3)

	batch, _ := nextBatch(t, job, stream)
	assert.True(t, batch[0].Get(0).Same(types.Int(0)))

	// A clone starts over; the original keeps its position.
	clone := stream.Clone()
	batch, _ = nextBatch(t, job, clone)
	assert.True(t, batch[0].Get(0).Same(types.Int(0)))

	batch, done := nextBatch(t, job, stream)
	assert.True(t, batch[0].Get(0).Same(types.Int(3)))
	assert.True(t, done)

	stream.Rewind()
	batch, _ = nextBatch(t, job, stream)
	assert.True(t, batch[0].Get(0).Same(types.Int(0)))
}

func TestStreamOverPipeline(t *testing.T) {
	job := NewJob()
	data := FromRaster(numberTable(10)).Filter(mustFormula(t, "=[@N] >= 5"))
	stream := data.Stream()

	type outcome struct {
		names []string
		err   error
	}
	ch := make(chan outcome, 1)
	stream.Columns(job, func(names []string, err error) {
		ch <- outcome{names, err}
	})
	result := <-ch
	assert.NoError(t, result.err)
	assert.Equal(t, []string{"N"}, result.names)

	batch, done := nextBatch(t, job, stream)
	assert.Equal(t, 5, len(batch))
	assert.True(t, done)
	assert.True(t, batch[0].Get(0).Same(types.Int(5)))
}

func TestFlattenCursor(t *testing.T) {
	cursor := NewRasterCursor(numberTable(7))

	raster, err := Flatten(NewJob(), cursor, 3)
	assert.NoError(t, err)
	assert.Equal(t, 7, raster.RowCount())
	assert.True(t, raster.Compare(
		materialize(t, NewJob(), FromRaster(numberTable(7)).Limit(7))))
}

func TestFlattenCancelled(t *testing.T) {
	job := NewJob()
	job.Cancel()

	raster, err := Flatten(job, NewRasterCursor(numberTable(7)), 3)
	assert.NoError(t, err)
	assert.Equal(t, 0, raster.RowCount())
	assert.Equal(t, []string{"N"}, raster.ColumnNames())
}

func TestCalculate(t *testing.T) {
	cursor := NewRasterCursor(numberTable(6))

	raster, err := Calculate(NewJob(), cursor, 4, []string{"N", "Doubled"},
		func(row types.Row) (types.Row, bool) {
			n := row.Get(0)
			if !n.IsTrue() { // drop zero
				return nil, false
			}
			return types.Row{n, types.Add(n, n)}, true
		})

	assert.NoError(t, err)
	assert.Equal(t, []string{"N", "Doubled"}, raster.ColumnNames())
	assert.Equal(t, 5, raster.RowCount())
	assert.True(t, raster.Value(0, "Doubled").Same(types.Int(2)))
}

func TestSourceFromCursor(t *testing.T) {
	source := SourceFromCursor(NewRasterCursor(numberTable(3)), 2)
	result := materialize(t, NewJob(), FromSource(source))
	assert.Equal(t, 3, result.RowCount())
}
