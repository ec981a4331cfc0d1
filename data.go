// Data is an immutable description of a deferred table computation:
// it either wraps a concrete Raster, applies one transformation to an
// upstream Data, combines two upstream graphs (union, join), or
// fronts a foreign source. Building a graph is cheap; nothing runs
// until Raster() walks the chain, and each node materializes at most
// once through a memoized Future.

package tabular

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

type dataKind int

const (
	dataMaterialized dataKind = iota
	dataTransform
	dataBinary
	dataForeign
)

var nodeSerial int64

func nextNodeId(kind string) string {
	return fmt.Sprintf("%s-%d", kind, atomic.AddInt64(&nodeSerial, 1))
}

type Data struct {
	kind    dataKind
	raster  *Raster
	source  *Data
	second  *Data
	op      *operation
	foreign Source

	// Opaque identity used to key progress reports for this node.
	id string

	mu     sync.Mutex
	future *Future
}

// FromRaster wraps a concrete table as a pipeline leaf.
func FromRaster(raster *Raster) *Data {
	return &Data{
		kind:   dataMaterialized,
		raster: raster,
		id:     nextNodeId("raster"),
	}
}

// FromSource wraps a foreign data source as a pipeline leaf.
func FromSource(source Source) *Data {
	return &Data{
		kind:    dataForeign,
		foreign: source,
		id:      nextNodeId("foreign"),
	}
}

func (self *Data) transform(op *operation) *Data {
	return &Data{
		kind:   dataTransform,
		source: self,
		op:     op,
		id:     nextNodeId(op.kind.String()),
	}
}

func (self *Data) binary(op *operation, second *Data) *Data {
	return &Data{
		kind:   dataBinary,
		source: self,
		second: second,
		op:     op,
		id:     nextNodeId(op.kind.String()),
	}
}

// Clone returns a new Data describing the identical computation. Only
// the deferred binding is copied - never a cached result, so the
// clone materializes independently.
func (self *Data) Clone() *Data {
	return &Data{
		kind:    self.kind,
		raster:  self.raster,
		source:  self.source,
		second:  self.second,
		op:      self.op,
		foreign: self.foreign,
		id:      self.id,
	}
}

// Raster materializes the graph. The callback receives the resulting
// read only table, or the failure of whichever node failed first.
// Repeated calls on the same Data reuse the memoized result.
func (self *Data) Raster(job *Job, cb func(*Raster, error)) {
	self.materializer().Get(job, func(value interface{}, err error) {
		if err != nil {
			cb(nil, err)
			return
		}
		cb(value.(*Raster), nil)
	})
}

func (self *Data) materializer() *Future {
	self.mu.Lock()
	defer self.mu.Unlock()

	if self.future == nil {
		self.future = NewFuture(self.produce)
	}
	return self.future
}

func (self *Data) produce(job *Job, resolve func(interface{}, error)) {
	switch self.kind {
	case dataMaterialized:
		resolve(self.raster, nil)

	case dataForeign:
		self.foreign.Raster(job, func(raster *Raster, err error) {
			if err != nil {
				resolve(nil, errors.Wrap(err, "foreign source"))
				return
			}
			resolve(raster, nil)
		})

	case dataTransform:
		self.source.Raster(job, func(upstream *Raster, err error) {
			if err != nil {
				resolve(nil, err)
				return
			}
			result, err := self.op.apply(job, self.id, upstream)
			resolve(result, err)
		})

	case dataBinary:
		// The second graph materializes only once the first side
		// succeeds; a failure on either side short circuits the whole
		// operation with that side's message.
		self.source.Raster(job, func(left *Raster, err error) {
			if err != nil {
				resolve(nil, err)
				return
			}
			self.second.Raster(job, func(right *Raster, err error) {
				if err != nil {
					resolve(nil, err)
					return
				}
				result, err := self.op.applyBinary(job, self.id, left, right)
				resolve(result, err)
			})
		})

	default:
		resolve(nil, errors.New("tabular: unknown data node"))
	}
}

// ColumnNames reports the output column names, short circuiting
// without a full materialization wherever the operation determines
// its columns structurally.
func (self *Data) ColumnNames(job *Job, cb func([]string, error)) {
	switch self.kind {
	case dataMaterialized:
		cb(self.raster.ColumnNames(), nil)
		return

	case dataForeign:
		self.foreign.ColumnNames(job, cb)
		return

	case dataTransform:
		names, ok := self.op.outputColumns()
		if ok {
			cb(names, nil)
			return
		}
		if self.op.preservesColumns() {
			self.source.ColumnNames(job, cb)
			return
		}

	case dataBinary:
		self.source.ColumnNames(job, func(left []string, err error) {
			if err != nil {
				cb(nil, err)
				return
			}
			self.second.ColumnNames(job, func(right []string, err error) {
				if err != nil {
					cb(nil, err)
					return
				}
				cb(mergeColumnNames(left, right), nil)
			})
		})
		return
	}

	// No structural answer - materialize.
	self.Raster(job, func(raster *Raster, err error) {
		if err != nil {
			cb(nil, err)
			return
		}
		cb(raster.ColumnNames(), nil)
	})
}

// mergeColumnNames is the column rule shared by union and join
// outputs: left columns, then right columns not already named on the
// left.
func mergeColumnNames(left, right []string) []string {
	seen := make(map[string]bool, len(left))
	result := append([]string{}, left...)
	for _, name := range left {
		seen[name] = true
	}
	for _, name := range right {
		if !seen[name] {
			seen[name] = true
			result = append(result, name)
		}
	}
	return result
}
