package tasktree

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/viant/tasktree/internal/idgen"
	"github.com/viant/tasktree/logger"
	"github.com/viant/tasktree/metrics"
	"github.com/viant/tasktree/model/graph"
	"github.com/viant/tasktree/model/types"
	"github.com/viant/tasktree/progress"
	"github.com/viant/tasktree/runtime/execution"
	"github.com/viant/tasktree/runtime/loop"
	"github.com/viant/tasktree/service/event"
	"github.com/viant/tasktree/tracing"
)

type storageListener struct {
	storage graph.StorageBase
	fn      execution.StorageListener
}

// TaskTree runs a recipe on a loop. Apart from IsRunning, AsyncCount,
// TaskCount and ProgressValue, every method must be called on the goroutine
// spinning the loop.
type TaskTree struct {
	name      string
	recipe    *graph.Group
	loop      *loop.Loop
	log       logger.Logger
	logSet    bool
	tracer    *tracing.Tracer
	metrics   *metrics.Service
	events    *event.Service
	observers []execution.Observer

	run       *execution.Run
	progress  atomic.Pointer[progress.Progress]
	taskCount atomic.Int64
	running   atomic.Bool
	cancelled bool
	result    types.DoneWith

	onStarted       []func()
	onDone          []func(with types.DoneWith)
	onceDone        []func(with types.DoneWith)
	onAsyncCount    []func(count int)
	onProgressValue []func(value int)
	storageSetup    []storageListener
	storageDone     []storageListener
}

// New creates a tree for recipe.
func New(recipe graph.Group, options ...Option) *TaskTree {
	ret := newTree(options...)
	ret.setRecipe(recipe)
	return ret
}

func newTree(options ...Option) *TaskTree {
	ret := &TaskTree{log: logger.Nop()}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Loop returns the loop the tree runs on, creating one when none was set.
func (t *TaskTree) Loop() *loop.Loop {
	if t.loop == nil {
		t.loop = loop.New()
	}
	return t.loop
}

// Metrics returns the metrics service, nil unless configured.
func (t *TaskTree) Metrics() *metrics.Service { return t.metrics }

// Events returns the event service node events are published to, nil unless configured.
func (t *TaskTree) Events() *event.Service { return t.events }

// SetRecipe replaces the recipe used by the next Start.
func (t *TaskTree) SetRecipe(recipe graph.Group) error {
	if t.running.Load() {
		return ErrRunning
	}
	t.setRecipe(recipe)
	return nil
}

func (t *TaskTree) setRecipe(recipe graph.Group) {
	t.recipe = &recipe
	t.taskCount.Store(int64(graph.CountTasks(recipe)))
}

// Start validates the recipe and starts its root group. Started listeners run
// before any child starts; the tree may finish before Start returns.
// Cancelling ctx does not cancel the tree, use Cancel.
func (t *TaskTree) Start(ctx context.Context) error {
	if t.running.Load() {
		return ErrRunning
	}
	if t.recipe == nil {
		return ErrNoRecipe
	}
	recipe := *t.recipe
	if errs := graph.Validate(recipe); len(errs) > 0 {
		return fmt.Errorf("invalid recipe %v: %w", recipe, errors.Join(errs...))
	}
	ctx = context.WithoutCancel(ctx)

	runID := idgen.New()
	name := t.runName(recipe)
	tracker := progress.New(runID, name, graph.CountTasks(recipe), t.progressChanged)
	options := []execution.Option{
		execution.WithID(runID),
		execution.WithName(name),
		execution.WithLogger(t.log),
		execution.WithTracer(t.tracer),
		execution.WithMetrics(t.metrics),
		execution.WithProgress(tracker),
		execution.WithObservers(t.observers...),
	}
	if t.events != nil {
		observer, err := event.NewObserver(ctx, t.events)
		if err != nil {
			return fmt.Errorf("failed to create event observer: %w", err)
		}
		options = append(options, execution.WithObservers(observer))
	}

	t.progress.Store(tracker)
	t.run = nil
	t.cancelled = false
	t.running.Store(true)
	for _, fn := range t.onStarted {
		fn()
	}
	if !t.running.Load() {
		return nil
	}
	if t.cancelled {
		t.log.Debug("run cancelled by a started listener", "name", name)
		tracker.Update(progress.Delta{Skipped: graph.CountTasks(recipe)})
		t.finish(types.WithCancel)
		return nil
	}
	for _, listener := range t.storageSetup {
		options = append(options, execution.WithStorageSetup(listener.storage, listener.fn))
	}
	for _, listener := range t.storageDone {
		options = append(options, execution.WithStorageDone(listener.storage, listener.fn))
	}
	run := execution.NewRun(recipe, t.Loop(), t.finish, options...)
	t.run = run
	run.Start(ctx)
	return nil
}

func (t *TaskTree) runName(recipe graph.Group) string {
	if t.name != "" {
		return t.name
	}
	if name := recipe.Name(); name != "" {
		return name
	}
	return "tasktree"
}

// Cancel stops a running tree; it finishes with WithCancel before Cancel
// returns. It is a no-op when the tree is not running.
func (t *TaskTree) Cancel() {
	if !t.running.Load() {
		return
	}
	if t.run == nil {
		t.cancelled = true
		return
	}
	t.run.Cancel()
}

// IsRunning reports whether the tree was started and has not finished yet.
func (t *TaskTree) IsRunning() bool {
	return t.running.Load()
}

// Result returns the outcome of the last finished run.
func (t *TaskTree) Result() types.DoneWith {
	return t.result
}

// TaskCount returns the number of leaf tasks declared by the recipe.
func (t *TaskTree) TaskCount() int {
	return int(t.taskCount.Load())
}

// AsyncCount returns the number of leaf tasks started by the current or last run.
func (t *TaskTree) AsyncCount() int {
	return t.progress.Load().Snapshot().AsyncCount
}

// ProgressValue returns the number of leaf tasks finished, skipped or stopped
// by the current or last run.
func (t *TaskTree) ProgressValue() int {
	snapshot := t.progress.Load().Snapshot()
	return snapshot.Value()
}

// Progress returns a copy of the counters of the current or last run.
func (t *TaskTree) Progress() progress.Progress {
	return t.progress.Load().Snapshot()
}

// OnStarted registers fn to run synchronously in Start before any child starts.
func (t *TaskTree) OnStarted(fn func()) {
	t.onStarted = append(t.onStarted, fn)
}

// OnDone registers fn to run when the tree finishes; IsRunning already
// reports false so fn may start the tree again.
func (t *TaskTree) OnDone(fn func(with types.DoneWith)) {
	t.onDone = append(t.onDone, fn)
}

// OnAsyncCountChanged registers fn to run whenever a leaf task starts.
func (t *TaskTree) OnAsyncCountChanged(fn func(count int)) {
	t.onAsyncCount = append(t.onAsyncCount, fn)
}

// OnProgressValueChanged registers fn to run whenever the progress value changes.
func (t *TaskTree) OnProgressValueChanged(fn func(value int)) {
	t.onProgressValue = append(t.onProgressValue, fn)
}

// OnStorageSetup registers fn to receive every instance of storage right after
// it is constructed. Registrations made in a started listener apply to the
// run being started.
func OnStorageSetup[T any](t *TaskTree, storage graph.Storage[T], fn func(value *T)) {
	t.storageSetup = append(t.storageSetup, storageListener{storage: storage.StorageBase, fn: typed(fn)})
}

// OnStorageDone registers fn to receive every instance of storage right before
// it is destroyed.
func OnStorageDone[T any](t *TaskTree, storage graph.Storage[T], fn func(value *T)) {
	t.storageDone = append(t.storageDone, storageListener{storage: storage.StorageBase, fn: typed(fn)})
}

func typed[T any](fn func(value *T)) execution.StorageListener {
	return func(instance any) {
		value, _ := instance.(*T)
		fn(value)
	}
}

func (t *TaskTree) progressChanged(previous, current progress.Progress) {
	if previous.AsyncCount != current.AsyncCount {
		for _, fn := range t.onAsyncCount {
			fn(current.AsyncCount)
		}
	}
	if before, after := previous.Value(), current.Value(); before != after {
		for _, fn := range t.onProgressValue {
			fn(after)
		}
	}
}

func (t *TaskTree) finish(with types.DoneWith) {
	t.result = with
	t.running.Store(false)
	once := t.onceDone
	t.onceDone = nil
	for _, fn := range t.onDone {
		fn(with)
	}
	for _, fn := range once {
		fn(with)
	}
}

// RunBlocking starts the tree and spins its loop on the calling goroutine
// until the tree finishes. Cancelling ctx cancels the tree. It must not be
// called from a callback running on the same loop.
func (t *TaskTree) RunBlocking(ctx context.Context) (types.DoneWith, error) {
	finished := false
	result := types.WithCancel
	t.onceDone = append(t.onceDone, func(with types.DoneWith) {
		finished = true
		result = with
	})
	if err := t.Start(ctx); err != nil {
		t.onceDone = nil
		return types.WithError, err
	}
	wait := ctx
	for !finished {
		if err := t.Loop().ProcessEvent(wait); err != nil {
			t.log.Info("task tree interrupted", "err", err)
			wait = context.Background()
			t.Cancel()
		}
	}
	return result, nil
}

// RunBlocking runs recipe on a new tree until it finishes.
func RunBlocking(ctx context.Context, recipe graph.Group, options ...Option) (types.DoneWith, error) {
	return New(recipe, options...).RunBlocking(ctx)
}
