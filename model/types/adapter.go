package types

import "context"

// Sink receives the single completion report of a started task.
//
// ReportDone must be invoked exactly once per Start, from any goroutine.
// Reporting twice, never reporting, or reporting before Start was called are
// precondition violations: the engine neither detects nor reconciles them and
// the resulting behaviour is undefined.
type Sink interface {
	ReportDone(result DoneResult)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(result DoneResult)

// ReportDone calls f(result).
func (f SinkFunc) ReportDone(result DoneResult) { f(result) }

// Adapter bridges an external asynchronous primitive into the engine.
//
// Construct creates the task object when the owning node starts it; the
// setup handler receives it before Start. Start issues the real work and
// arranges for exactly one sink.ReportDone call. ctx is cancelled when the
// engine cancels the task; the adapter is expected to stop promptly, although
// a report issued after cancellation is ignored. Destroy runs right after the
// done handler returns, or right after setup when the task never started.
type Adapter[T any] interface {
	Construct() T
	Start(ctx context.Context, task T, sink Sink)
	Destroy(task T)
}
