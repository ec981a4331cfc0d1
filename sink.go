// The mutable sink contract: a destination able to receive inserts
// and updates. The in memory Raster is the reference implementation,
// which also makes it a convenient test double for external sinks.

package tabular

import (
	"github.com/pkg/errors"
	"www.velocidex.com/golang/tabular/types"
)

type MutationKind int

const (
	MutationTruncate MutationKind = iota
	MutationAlter
	MutationInsert
	MutationEdit
	MutationUpdate
	MutationDrop
)

func (self MutationKind) String() string {
	switch self {
	case MutationTruncate:
		return "truncate"
	case MutationAlter:
		return "alter"
	case MutationInsert:
		return "insert"
	case MutationEdit:
		return "edit"
	case MutationUpdate:
		return "update"
	case MutationDrop:
		return "drop"
	}
	return "unknown"
}

// Mutation describes one requested change. Only the fields relevant
// to the Kind are read.
type Mutation struct {
	Kind MutationKind

	// Alter: the new column set.
	Columns []string

	// Insert: the source graph and the source to destination column
	// name mapping. A nil mapping maps columns by identical name.
	Source  *Data
	Mapping map[string]string

	// Edit and Update.
	Row    int
	Column string
	Old    types.Value
	New    types.Value

	// Update: every key column/value pair must match.
	Key map[string]types.Value
}

type Sink interface {
	CanPerformMutation(kind MutationKind) bool
	PerformMutation(mutation Mutation, job *Job, cb func(error))
}

// The Raster sink implementation. A read only raster accepts no
// mutation at all.

func (self *Raster) CanPerformMutation(kind MutationKind) bool {
	return !self.ReadOnly()
}

func (self *Raster) PerformMutation(mutation Mutation, job *Job, cb func(error)) {
	if self.ReadOnly() {
		cb(errors.Errorf("raster sink: cannot %s a read only table",
			mutation.Kind))
		return
	}

	switch mutation.Kind {
	case MutationTruncate:
		self.Truncate()
		cb(nil)

	case MutationAlter:
		self.alterColumns(mutation.Columns)
		cb(nil)

	case MutationInsert:
		self.performInsert(mutation, job, cb)

	case MutationEdit:
		_, pres := self.IndexOfColumnWithName(mutation.Column)
		if !pres {
			cb(errors.Errorf("raster sink: no column %q", mutation.Column))
			return
		}
		if mutation.Row < 0 || mutation.Row >= self.RowCount() {
			cb(errors.Errorf("raster sink: no row %d", mutation.Row))
			return
		}
		old := mutation.Old
		if !self.SetValue(mutation.New, mutation.Column, mutation.Row, &old) {
			cb(errors.New("raster sink: conditional edit did not match"))
			return
		}
		cb(nil)

	case MutationUpdate:
		for name := range mutation.Key {
			_, pres := self.IndexOfColumnWithName(name)
			if !pres {
				cb(errors.Errorf("raster sink: no column %q", name))
				return
			}
		}
		_, pres := self.IndexOfColumnWithName(mutation.Column)
		if !pres {
			cb(errors.Errorf("raster sink: no column %q", mutation.Column))
			return
		}
		self.Update(mutation.Key, mutation.Column, mutation.Old, mutation.New)
		cb(nil)

	case MutationDrop:
		self.drop()
		cb(nil)

	default:
		cb(errors.Errorf("raster sink: unknown mutation %d", mutation.Kind))
	}
}

// alterColumns reshapes the table to exactly the requested column
// set: missing columns are added, columns not named are removed.
func (self *Raster) alterColumns(names []string) {
	want := make(map[string]bool, len(names))
	for _, name := range names {
		want[name] = true
	}

	remove := make(map[int]bool)
	for i, name := range self.ColumnNames() {
		if !want[name] {
			remove[i] = true
		}
	}
	if len(remove) > 0 {
		self.RemoveColumns(remove)
	}
	self.AddColumns(names...)
}

func (self *Raster) drop() {
	self.Truncate()

	remove := make(map[int]bool)
	for i := range self.ColumnNames() {
		remove[i] = true
	}
	self.RemoveColumns(remove)
}

// performInsert is the streaming insert: batches are pulled from the
// source's stream (no bound on total size), source columns map to
// destination columns by name via the mapping, and destination
// columns with no mapped source receive Empty.
func (self *Raster) performInsert(mutation Mutation, job *Job, cb func(error)) {
	stream := mutation.Source.Stream()

	stream.Columns(job, func(srcNames []string, err error) {
		if err != nil {
			cb(err)
			return
		}

		// For each destination column, the source cell index feeding
		// it, or -1.
		dstNames := self.ColumnNames()
		srcFor := make([]int, len(dstNames))
		for d, dstName := range dstNames {
			srcFor[d] = -1
			for s, srcName := range srcNames {
				mapped := srcName
				if mutation.Mapping != nil {
					mapped = mutation.Mapping[srcName]
				}
				if mapped == dstName {
					srcFor[d] = s
					break
				}
			}
		}

		var pull func()
		pull = func() {
			stream.Next(job, func(batch []types.Row, done bool, err error) {
				if err != nil {
					cb(err)
					return
				}

				for _, srcRow := range batch {
					newRow := make(types.Row, 0, len(dstNames))
					for _, s := range srcFor {
						if s < 0 {
							newRow = append(newRow, types.Empty())
							continue
						}
						newRow = append(newRow, srcRow.Get(s))
					}
					self.AddRows(newRow)
				}

				if done {
					cb(nil)
					return
				}
				// Dispatch the next pull instead of recursing so a
				// long stream cannot grow the stack.
				job.Go(pull)
			})
		}
		pull()
	})
}
