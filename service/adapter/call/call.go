// Package call runs Go functions as leaf tasks on their own goroutine.
package call

import (
	"context"
	"fmt"
	"time"

	"github.com/viant/tasktree/internal/clock"
	"github.com/viant/tasktree/logger"
	"github.com/viant/tasktree/model/graph"
	"github.com/viant/tasktree/model/types"
	"github.com/viant/tasktree/runtime/loop"
)

// Func is the unit of work; a nil error reports success.
type Func func(ctx context.Context) error

// Call is the task object handed to setup and done handlers.
type Call struct {
	Fn Func
	// Sync runs Fn inside Start on the loop goroutine.
	Sync    bool
	Err     error
	Elapsed time.Duration
}

// Adapter starts Call tasks.
type Adapter struct {
	fn   Func
	sync bool
}

// Construct returns a call preset with the adapter function.
func (a Adapter) Construct() *Call {
	return &Call{Fn: a.fn, Sync: a.sync}
}

// Start runs the call and reports its result once. An asynchronous call
// computes its outcome on a worker goroutine; the outcome is copied into c on
// the run loop, so handlers never race the worker.
func (a Adapter) Start(ctx context.Context, c *Call, sink types.Sink) {
	if c.Fn == nil {
		c.Err = fmt.Errorf("call: function was not set")
		sink.ReportDone(types.DoneError)
		return
	}
	if c.Sync {
		result := invoke(ctx, c.Fn)
		c.apply(result)
		sink.ReportDone(result.done)
		return
	}
	fn := c.Fn
	go func() {
		result := invoke(ctx, fn)
		loop.Deliver(ctx, func() {
			c.apply(result)
			sink.ReportDone(result.done)
		})
	}()
}

// Destroy is a no-op; the function observes ctx cancellation instead.
func (a Adapter) Destroy(*Call) {}

type outcome struct {
	err     error
	elapsed time.Duration
	done    types.DoneResult
}

func (c *Call) apply(result outcome) {
	c.Err = result.err
	c.Elapsed = result.elapsed
}

func invoke(ctx context.Context, fn Func) (result outcome) {
	started := clock.Now()
	defer func() {
		result.elapsed = clock.Since(started)
		if r := recover(); r != nil {
			result.err = fmt.Errorf("call panicked: %v", r)
			logger.FromContext(ctx).Error("call panicked", "error", result.err)
			result.done = types.DoneError
		}
	}()
	if result.err = fn(ctx); result.err != nil {
		logger.FromContext(ctx).Debug("call failed", "error", result.err)
		result.done = types.DoneError
		return result
	}
	result.done = types.DoneSuccess
	return result
}

// Task runs fn on its own goroutine.
func Task(fn Func, options ...graph.TaskOption) graph.TaskItem {
	return graph.NewTask[*Call](Adapter{fn: fn}, options...)
}

// SyncTask runs fn inside Start; fn must not block.
func SyncTask(fn func() error, options ...graph.TaskOption) graph.TaskItem {
	var wrapped Func
	if fn != nil {
		wrapped = func(context.Context) error { return fn() }
	}
	return graph.NewTask[*Call](Adapter{fn: wrapped, sync: true}, options...)
}

// Sleep succeeds after d unless cancelled first.
func Sleep(d time.Duration, options ...graph.TaskOption) graph.TaskItem {
	return Task(func(ctx context.Context) error {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}, options...)
}
