// Stream is a pull based cursor over a Data graph: successive calls
// return bounded row batches until the cursor is exhausted. Distinct
// streams over the same Data are independent - Clone() returns a
// fresh cursor, not a shared one.

package tabular

import (
	"sync"

	"www.velocidex.com/golang/tabular/types"
)

// DefaultFetchSize bounds a batch when the caller does not say
// otherwise.
const DefaultFetchSize = 1000

type Stream struct {
	data      *Data
	fetchSize int

	mu  sync.Mutex
	pos int
}

// Stream opens a cursor over the receiver with the default fetch
// size.
func (self *Data) Stream() *Stream {
	return NewStream(self, DefaultFetchSize)
}

func NewStream(data *Data, fetchSize int) *Stream {
	if fetchSize < 1 {
		fetchSize = DefaultFetchSize
	}
	return &Stream{data: data, fetchSize: fetchSize}
}

// Clone returns an independent cursor over the same graph, positioned
// at the start.
func (self *Stream) Clone() *Stream {
	return NewStream(self.data, self.fetchSize)
}

func (self *Stream) Rewind() {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.pos = 0
}

// Columns reports the column names of the batches to come.
func (self *Stream) Columns(job *Job, cb func([]string, error)) {
	self.data.ColumnNames(job, cb)
}

// Next delivers the next batch. done reports that the cursor is
// exhausted; the final batch may be shorter than the fetch size and a
// done batch may be empty. The backing materialization is memoized on
// the Data node, so only the first call pays for it.
func (self *Stream) Next(job *Job, cb func(batch []types.Row, done bool, err error)) {
	self.data.Raster(job, func(raster *Raster, err error) {
		if err != nil {
			cb(nil, true, err)
			return
		}

		rows, columns := raster.snapshot()

		self.mu.Lock()
		start := self.pos
		end := start + self.fetchSize
		if end > len(rows) {
			end = len(rows)
		}
		self.pos = end
		self.mu.Unlock()

		if start >= len(rows) {
			cb(nil, true, nil)
			return
		}

		batch := make([]types.Row, 0, end-start)
		for _, row := range rows[start:end] {
			batch = append(batch, row.Resize(len(columns)))
		}
		cb(batch, end == len(rows), nil)
	})
}

// Cursor is the pull contract an out of core or foreign source
// provides: bounded batches until done.
type Cursor interface {
	Columns() []string
	Next(job *Job, max int) (batch []types.Row, done bool, err error)
}

// Flatten drains a cursor into a read only raster. This is the
// generic materialization path for sources without a bespoke raster
// implementation; it pulls batches directly, so it never re-enters
// the pipeline. Cancellation mid drain yields the empty, correctly
// shaped table.
func Flatten(job *Job, cursor Cursor, fetchSize int) (*Raster, error) {
	columns := types.MakeColumns(cursor.Columns())

	rows := []types.Row{}
	for {
		if job.Cancelled() {
			return cancelledRaster(columns), nil
		}
		batch, done, err := cursor.Next(job, fetchSize)
		if err != nil {
			return nil, err
		}
		rows = append(rows, batch...)
		if done {
			break
		}
	}
	return newResultRaster(columns, rows), nil
}

// Calculate maps every row pulled from a cursor through fn, dropping
// rows fn rejects, and flattens the result. Together with Flatten it
// is the building block for transformations with no bespoke
// implementation.
func Calculate(job *Job, cursor Cursor, fetchSize int,
	columns []string, fn func(types.Row) (types.Row, bool)) (*Raster, error) {

	outColumns := types.MakeColumns(columns)

	rows := []types.Row{}
	for {
		if job.Cancelled() {
			return cancelledRaster(outColumns), nil
		}
		batch, done, err := cursor.Next(job, fetchSize)
		if err != nil {
			return nil, err
		}
		for _, row := range batch {
			newRow, keep := fn(row)
			if keep {
				rows = append(rows, newRow)
			}
		}
		if done {
			break
		}
	}
	return newResultRaster(outColumns, rows), nil
}

// rasterCursor adapts a materialized raster to the Cursor contract,
// mostly so sinks and tests can stream from in memory tables.
type rasterCursor struct {
	rows    []types.Row
	columns []types.Column
	pos     int
}

func NewRasterCursor(raster *Raster) Cursor {
	rows, columns := raster.snapshot()
	return &rasterCursor{rows: rows, columns: columns}
}

func (self *rasterCursor) Columns() []string {
	return types.ColumnNames(self.columns)
}

func (self *rasterCursor) Next(job *Job, max int) ([]types.Row, bool, error) {
	if max < 1 {
		max = DefaultFetchSize
	}
	start := self.pos
	end := start + max
	if end > len(self.rows) {
		end = len(self.rows)
	}
	self.pos = end

	if start >= len(self.rows) {
		return nil, true, nil
	}
	return self.rows[start:end], end == len(self.rows), nil
}
