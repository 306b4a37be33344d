// Package barrier provides a countdown barrier task and a task waiting for a
// barrier shared through group storage.
package barrier

import (
	"context"
	"sync"

	"github.com/viant/tasktree/model/graph"
	"github.com/viant/tasktree/model/types"
)

// Barrier completes with success after Advance was called Limit times, or
// with the result passed to Stop. It is safe for concurrent use.
type Barrier struct {
	mu       sync.Mutex
	limit    int
	current  int
	running  bool
	done     bool
	result   types.DoneResult
	watchers []func(types.DoneResult)
}

// New returns a barrier requiring limit advances.
func New(limit int) *Barrier {
	if limit < 1 {
		limit = 1
	}
	return &Barrier{limit: limit}
}

// SetLimit changes the required advance count; it is ignored once started.
func (b *Barrier) SetLimit(limit int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running || b.done || limit < 1 {
		return
	}
	b.limit = limit
}

func (b *Barrier) Limit() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.limit
}

func (b *Barrier) Current() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

func (b *Barrier) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// Result returns the outcome and whether the barrier is done.
func (b *Barrier) Result() (types.DoneResult, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.result, b.done
}

// Start arms the barrier; advances before Start are ignored.
func (b *Barrier) Start() {
	b.mu.Lock()
	if b.running || b.done {
		b.mu.Unlock()
		return
	}
	b.running = true
	b.current = 0
	b.mu.Unlock()
}

// Advance counts one arrival.
func (b *Barrier) Advance() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.current++
	if b.current < b.limit {
		b.mu.Unlock()
		return
	}
	b.finish(types.DoneSuccess)
}

// Stop finishes a running barrier with result.
func (b *Barrier) Stop(result types.DoneResult) {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.finish(result)
}

// finish is called with b.mu held and releases it.
func (b *Barrier) finish(result types.DoneResult) {
	b.running = false
	b.done = true
	b.result = result
	watchers := b.watchers
	b.watchers = nil
	b.mu.Unlock()
	for _, watcher := range watchers {
		watcher(result)
	}
}

// OnDone calls fn once the barrier is done, immediately if it already is.
func (b *Barrier) OnDone(fn func(types.DoneResult)) {
	b.mu.Lock()
	if b.done {
		result := b.result
		b.mu.Unlock()
		fn(result)
		return
	}
	b.watchers = append(b.watchers, fn)
	b.mu.Unlock()
}

// Adapter runs a Barrier as a task that finishes with the barrier.
type Adapter struct {
	limit int
}

func (a Adapter) Construct() *Barrier { return New(a.limit) }

func (a Adapter) Start(_ context.Context, b *Barrier, sink types.Sink) {
	b.Start()
	b.OnDone(sink.ReportDone)
}

func (a Adapter) Destroy(*Barrier) {}

// Task is a barrier leaf needing limit advances; setup handlers usually hand
// the barrier to its producers.
func Task(limit int, options ...graph.TaskOption) graph.TaskItem {
	return graph.NewTask[*Barrier](Adapter{limit: limit}, options...)
}

// Shared declares storage holding a barrier armed when its group starts.
func Shared(limit int) graph.Storage[Barrier] {
	return graph.NewStorage[Barrier](func() *Barrier {
		b := New(limit)
		b.Start()
		return b
	})
}

type waiter struct{}

type waitAdapter struct {
	shared graph.Storage[Barrier]
}

func (a waitAdapter) Construct() *waiter { return &waiter{} }

// Start runs with the storage bound, so the shared barrier of the enclosing
// group activation is visible.
func (a waitAdapter) Start(_ context.Context, _ *waiter, sink types.Sink) {
	b := a.shared.Value()
	if b == nil {
		sink.ReportDone(types.DoneError)
		return
	}
	b.OnDone(sink.ReportDone)
}

func (a waitAdapter) Destroy(*waiter) {}

// WaitFor finishes with the result of the barrier held in shared.
func WaitFor(shared graph.Storage[Barrier], options ...graph.TaskOption) graph.TaskItem {
	return graph.NewTask[*waiter](waitAdapter{shared: shared}, options...)
}
