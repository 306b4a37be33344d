// Package loop provides the single goroutine event loop driving task trees.
//
// Callbacks may be posted from any goroutine; they run one at a time, in
// posting order, on whichever goroutine calls Run or ProcessEvent. Posting
// never blocks, so a loop that is not being spun accumulates callbacks.
package loop

import (
	"context"

	"github.com/viant/tasktree/internal/idgen"
	"github.com/viant/tasktree/service/messaging/memory"
)

// Loop serialises callbacks onto one logical thread.
type Loop struct {
	id    string
	queue *memory.Queue[func()]
}

// New creates an idle loop.
func New() *Loop {
	config := memory.DefaultConfig()
	config.MaxRetries = 0
	config.DeadLetter = false
	return &Loop{id: idgen.Short(), queue: memory.NewQueue[func()](config)}
}

// ID returns the loop identifier used in logs.
func (l *Loop) ID() string { return l.id }

// Post enqueues fn; it is safe for concurrent use and never blocks.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	_ = l.queue.Publish(context.Background(), &fn)
}

// Pending returns the number of queued callbacks.
func (l *Loop) Pending() int {
	return l.queue.Size()
}

// ProcessEvent waits for the next callback and runs it on the calling goroutine.
func (l *Loop) ProcessEvent(ctx context.Context) error {
	message, err := l.queue.Consume(ctx)
	if err != nil {
		return err
	}
	_ = message.Ack()
	(*message.T())()
	return nil
}

// ProcessPending runs queued callbacks, including ones they post, until the
// queue is empty, and returns how many ran.
func (l *Loop) ProcessPending() int {
	count := 0
	for {
		message, ok := l.queue.TryConsume()
		if !ok {
			return count
		}
		_ = message.Ack()
		(*message.T())()
		count++
	}
}

// Run processes callbacks until ctx is done and returns its error.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if err := l.ProcessEvent(ctx); err != nil {
			return err
		}
	}
}

type contextKey struct{}

// WithLoop attaches l to ctx; adapters use it to post back onto the loop.
func WithLoop(ctx context.Context, l *Loop) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext returns the loop attached to ctx.
func FromContext(ctx context.Context) (*Loop, bool) {
	l, ok := ctx.Value(contextKey{}).(*Loop)
	return l, ok && l != nil
}

// Deliver posts fn to the loop attached to ctx, or runs it on the calling
// goroutine when ctx carries no loop.
func Deliver(ctx context.Context, fn func()) {
	if l, ok := FromContext(ctx); ok {
		l.Post(fn)
		return
	}
	fn()
}
