// Future is a single flight memoized computation: the first caller
// triggers the producer, every caller (including concurrent ones)
// receives the same result once it resolves. Memoization is keyed by
// the Future's identity, not by input value.

package tabular

import (
	"sync"
	"sync/atomic"
)

type futureResult struct {
	value interface{}
	err   error
}

// Future is an explicit {pending(waiters), resolved(value)} state
// machine behind a lock.
type Future struct {
	mu       sync.Mutex
	produce  func(job *Job, resolve func(interface{}, error))
	started  bool
	resolved bool
	result   futureResult
	waiters  []func(interface{}, error)
}

func NewFuture(produce func(job *Job, resolve func(interface{}, error))) *Future {
	return &Future{produce: produce}
}

// Get schedules the producer on its first call and queues the
// callback as a waiter. Once resolved, all waiters fire and later
// callers get the memoized result immediately.
func (self *Future) Get(job *Job, cb func(interface{}, error)) {
	self.mu.Lock()
	if self.resolved {
		result := self.result
		self.mu.Unlock()
		cb(result.value, result.err)
		return
	}

	self.waiters = append(self.waiters, cb)
	if self.started {
		self.mu.Unlock()
		return
	}
	self.started = true
	self.mu.Unlock()

	job.Go(func() {
		self.produce(job, self.resolve)
	})
}

func (self *Future) resolve(value interface{}, err error) {
	self.mu.Lock()
	if self.resolved {
		// Producers must resolve exactly once.
		self.mu.Unlock()
		return
	}
	self.resolved = true
	self.result = futureResult{value, err}
	waiters := self.waiters
	self.waiters = nil
	self.mu.Unlock()

	for _, w := range waiters {
		w(value, err)
	}
}

// IsResolved is mostly useful to tests.
func (self *Future) IsResolved() bool {
	self.mu.Lock()
	defer self.mu.Unlock()

	return self.resolved
}

// Job is the per operation handle every transformation receives: a
// cooperative cancellation token, a progress sink and the async
// dispatcher heavy scans run on.
type Job struct {
	cancelled int32

	mu       sync.Mutex
	progress func(id string, rows int)
}

func NewJob() *Job {
	return &Job{}
}

// NewJobWithProgress attaches a progress sink. Reports arrive keyed
// by an opaque per node identity so concurrent scans report
// independently.
func NewJobWithProgress(progress func(id string, rows int)) *Job {
	return &Job{progress: progress}
}

func (self *Job) Cancel() {
	atomic.StoreInt32(&self.cancelled, 1)
}

func (self *Job) Cancelled() bool {
	return atomic.LoadInt32(&self.cancelled) == 1
}

func (self *Job) ReportProgress(id string, rows int) {
	self.mu.Lock()
	progress := self.progress
	self.mu.Unlock()

	if progress != nil {
		progress(id, rows)
	}
}

// Go dispatches work onto a background goroutine. The engine makes no
// thread affinity promises beyond this: heavy scans run off the
// caller's goroutine and completion callbacks fire wherever the
// producer resolves.
func (self *Job) Go(f func()) {
	go f()
}

// Rows between progress reports and cancellation checks during scans.
const scanCheckInterval = 512
