package progress

import (
	"context"
	"sync"
	"time"

	"github.com/viant/tasktree/internal/clock"
)

// Delta represents an incremental counter change emitted by the runtime.
type Delta struct {
	// Started counts leaf tasks whose adapter was started.
	Started int
	// Running is +1 on start and -1 when a started task finishes.
	Running   int
	Succeeded int
	Failed    int
	Cancelled int
	// Skipped counts leaves that never started: stopped by their setup
	// handler, by a parent setup handler or by a stopping parent.
	Skipped int
}

// Progress keeps aggregated leaf task counters for one tree run. It is safe
// for concurrent use.
type Progress struct {
	RunID     string
	Recipe    string
	StartedAt time.Time

	// TaskCount is the static leaf count of the recipe.
	TaskCount int
	// AsyncCount is the number of leaf tasks started so far.
	AsyncCount int
	Running    int
	Succeeded  int
	Failed     int
	Cancelled  int
	Skipped    int

	mu       sync.Mutex
	onChange func(previous, current Progress)
}

// New creates a tracker for a run of a recipe with taskCount leaves.
func New(runID, recipe string, taskCount int, onChange func(previous, current Progress)) *Progress {
	return &Progress{
		RunID:     runID,
		Recipe:    recipe,
		StartedAt: clock.Now(),
		TaskCount: taskCount,
		onChange:  onChange,
	}
}

// Value returns the number of leaf tasks finished, skipped or stopped.
func (p *Progress) Value() int {
	if p == nil {
		return 0
	}
	return p.Succeeded + p.Failed + p.Cancelled + p.Skipped
}

// Update applies d and invokes the change callback outside the critical
// section with copies taken before and after the change.
func (p *Progress) Update(d Delta) {
	if p == nil {
		return
	}
	p.mu.Lock()
	previous := p.copy()
	p.AsyncCount += d.Started
	p.Running += d.Running
	p.Succeeded += d.Succeeded
	p.Failed += d.Failed
	p.Cancelled += d.Cancelled
	p.Skipped += d.Skipped
	current := p.copy()
	cb := p.onChange
	p.mu.Unlock()

	if cb != nil {
		cb(previous, current)
	}
}

// Snapshot returns a copy suitable for read-only inspection.
func (p *Progress) Snapshot() Progress {
	if p == nil {
		return Progress{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.copy()
}

// OnChange replaces the change callback; nil disables it.
func (p *Progress) OnChange(cb func(previous, current Progress)) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.onChange = cb
	p.mu.Unlock()
}

func (p *Progress) copy() Progress {
	return Progress{
		RunID:      p.RunID,
		Recipe:     p.Recipe,
		StartedAt:  p.StartedAt,
		TaskCount:  p.TaskCount,
		AsyncCount: p.AsyncCount,
		Running:    p.Running,
		Succeeded:  p.Succeeded,
		Failed:     p.Failed,
		Cancelled:  p.Cancelled,
		Skipped:    p.Skipped,
	}
}

type trackerKey struct{}

// WithTracker embeds p in a derived context.
func WithTracker(ctx context.Context, p *Progress) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, trackerKey{}, p)
}

// FromContext extracts the tracker from ctx.
func FromContext(ctx context.Context) (*Progress, bool) {
	if ctx == nil {
		return nil, false
	}
	p, ok := ctx.Value(trackerKey{}).(*Progress)
	return p, ok && p != nil
}

// GetSnapshot combines FromContext and Snapshot.
func GetSnapshot(ctx context.Context) (Progress, bool) {
	if p, ok := FromContext(ctx); ok {
		return p.Snapshot(), true
	}
	return Progress{}, false
}
