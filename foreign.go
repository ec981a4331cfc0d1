// The foreign data source contract. Anything able to name its columns
// and deliver a table (a SQL connection, a file reader, another in
// memory table) can stand at the head of a pipeline; the engine
// assumes nothing about its representation beyond this interface.

package tabular

type Source interface {
	ColumnNames(job *Job, cb func([]string, error))
	Raster(job *Job, cb func(*Raster, error))
}

// cursorSource lifts a batch Cursor into a full Source by flattening
// on demand.
type cursorSource struct {
	cursor    Cursor
	fetchSize int
}

func SourceFromCursor(cursor Cursor, fetchSize int) Source {
	if fetchSize < 1 {
		fetchSize = DefaultFetchSize
	}
	return &cursorSource{cursor: cursor, fetchSize: fetchSize}
}

func (self *cursorSource) ColumnNames(job *Job, cb func([]string, error)) {
	cb(self.cursor.Columns(), nil)
}

func (self *cursorSource) Raster(job *Job, cb func(*Raster, error)) {
	raster, err := Flatten(job, self.cursor, self.fetchSize)
	cb(raster, err)
}
