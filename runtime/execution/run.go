package execution

import (
	"context"
	"time"

	"github.com/viant/tasktree/internal/clock"
	"github.com/viant/tasktree/internal/idgen"
	"github.com/viant/tasktree/logger"
	"github.com/viant/tasktree/metrics"
	"github.com/viant/tasktree/model/graph"
	"github.com/viant/tasktree/model/types"
	"github.com/viant/tasktree/progress"
	"github.com/viant/tasktree/runtime/loop"
	"github.com/viant/tasktree/tracing"
)

// Observer receives node lifecycle notifications on the loop goroutine.
type Observer interface {
	NodeStarted(info NodeInfo)
	NodeDone(info NodeInfo, with types.DoneWith)
}

// StorageListener receives a storage instance right after construction or
// right before destruction.
type StorageListener func(instance any)

// Run is one execution of a recipe. Every method must be called on the
// goroutine spinning the run loop.
type Run struct {
	id        string
	name      string
	recipe    graph.Group
	loop      *loop.Loop
	log       logger.Logger
	tracer    *tracing.Tracer
	metrics   *metrics.Service
	progress  *progress.Progress
	observers []Observer
	setup     map[any][]StorageListener
	done      map[any][]StorageListener

	ctx       context.Context
	span      *tracing.Span
	root      *groupNode
	onDone    func(with types.DoneWith)
	startedAt time.Time
	state     State
	result    types.DoneWith
}

// Option configures a Run.
type Option func(r *Run)

// WithLogger sets the run logger.
func WithLogger(log logger.Logger) Option {
	return func(r *Run) {
		if log != nil {
			r.log = log
		}
	}
}

// WithTracer sets the tracer used for run and node spans.
func WithTracer(tracer *tracing.Tracer) Option {
	return func(r *Run) { r.tracer = tracer }
}

// WithMetrics records task and run counters.
func WithMetrics(service *metrics.Service) Option {
	return func(r *Run) { r.metrics = service }
}

// WithProgress sets the leaf counter tracker.
func WithProgress(p *progress.Progress) Option {
	return func(r *Run) { r.progress = p }
}

// WithObservers adds node lifecycle observers.
func WithObservers(observers ...Observer) Option {
	return func(r *Run) { r.observers = append(r.observers, observers...) }
}

// WithStorageSetup registers listener for every instance of storage.
func WithStorageSetup(storage graph.StorageBase, listener StorageListener) Option {
	return func(r *Run) { r.setup[storage.Key()] = append(r.setup[storage.Key()], listener) }
}

// WithStorageDone registers listener for every instance of storage.
func WithStorageDone(storage graph.StorageBase, listener StorageListener) Option {
	return func(r *Run) { r.done[storage.Key()] = append(r.done[storage.Key()], listener) }
}

// WithID sets the run identifier; a new uuid is used otherwise.
func WithID(id string) Option {
	return func(r *Run) {
		if id != "" {
			r.id = id
		}
	}
}

// WithName names the run for logs and metrics; the recipe name is used otherwise.
func WithName(name string) Option {
	return func(r *Run) { r.name = name }
}

// NewRun prepares a run of recipe on l. onDone is called exactly once, on the
// loop goroutine, with the final outcome.
func NewRun(recipe graph.Group, l *loop.Loop, onDone func(with types.DoneWith), options ...Option) *Run {
	r := &Run{
		id:     idgen.New(),
		name:   recipe.Name(),
		recipe: recipe,
		loop:   l,
		log:    logger.Nop(),
		setup:  map[any][]StorageListener{},
		done:   map[any][]StorageListener{},
		onDone: onDone,
		state:  StateIdle,
	}
	for _, option := range options {
		option(r)
	}
	if r.name == "" {
		r.name = "tasktree"
	}
	r.log = r.log.With("run", r.id, "recipe", r.name)
	return r
}

// ID returns the run identifier.
func (r *Run) ID() string { return r.id }

// Name returns the run name.
func (r *Run) Name() string { return r.name }

// State returns the run state.
func (r *Run) State() State { return r.state }

// Result returns the final outcome once the run finished.
func (r *Run) Result() types.DoneWith { return r.result }

// Start instantiates the root group and starts it. It may finish the run
// before returning, for example for an empty recipe.
func (r *Run) Start(ctx context.Context) {
	if r.state != StateIdle {
		return
	}
	r.state = StateRunning
	r.startedAt = clock.Now()
	ctx = loop.WithLoop(ctx, r.loop)
	ctx = logger.WithLogger(ctx, r.log)
	if r.progress != nil {
		ctx = progress.WithTracker(ctx, r.progress)
	}
	ctx, r.span = r.tracer.StartSpan(ctx, "tasktree.run", "INTERNAL")
	r.span.WithAttributes(map[string]string{"run.id": r.id, "recipe": r.name})
	r.ctx = ctx
	r.log.Info("run started", "tasks", graph.CountTasks(r.recipe))
	r.root = newGroupNode(r, ctx, r.recipe, nil, r.name, r.finish)
	r.root.start()
}

// Cancel cancels the running recipe; the run finishes with WithCancel before
// Cancel returns unless it already finished.
func (r *Run) Cancel() {
	if r.state != StateRunning || r.root == nil {
		return
	}
	r.log.Debug("run cancel requested")
	r.root.cancel()
}

func (r *Run) finish(with types.DoneWith) {
	if r.state == StateFinished {
		return
	}
	r.state = StateFinished
	r.result = with
	elapsed := clock.Since(r.startedAt)
	r.metrics.RunDone(r.name, with.String(), elapsed)
	r.span.WithAttributes(map[string]string{"result": with.String()})
	tracing.EndSpan(r.span, outcomeError(with))
	if with == types.WithSuccess {
		r.log.Info("run finished", "result", with, "elapsed", elapsed)
	} else {
		r.log.Warn("run finished", "result", with, "elapsed", elapsed)
	}
	if r.onDone != nil {
		r.onDone(with)
	}
}

// invoke runs fn with the storages and iterator positions of f made current.
func (r *Run) invoke(ctx context.Context, f *frame, fn func()) {
	release := graph.Activate(r.loop, ctx, f.chain()...)
	defer release()
	fn()
}

func (r *Run) notifyStorage(listeners map[any][]StorageListener, ctx context.Context, f *frame, inst instance) {
	registered := listeners[inst.storage.Key()]
	if len(registered) == 0 {
		return
	}
	r.invoke(ctx, f, func() {
		for _, listener := range registered {
			listener(inst.value)
		}
	})
}

func (r *Run) nodeStarted(info NodeInfo) {
	for _, observer := range r.observers {
		observer.NodeStarted(info)
	}
}

func (r *Run) nodeDone(info NodeInfo, with types.DoneWith) {
	for _, observer := range r.observers {
		observer.NodeDone(info, with)
	}
}

func (r *Run) skipped(count int) {
	if count <= 0 {
		return
	}
	r.progress.Update(progress.Delta{Skipped: count})
	r.metrics.TasksSkipped(r.name, count)
}

// newNode instantiates a child recipe element.
func (r *Run) newNode(ctx context.Context, item graph.Executable, parent *frame, path string, onDone func(types.DoneWith)) node {
	switch actual := item.(type) {
	case graph.Group:
		return newGroupNode(r, ctx, actual, parent, path, onDone)
	case graph.TaskItem:
		return newTaskNode(r, ctx, actual, parent, path, onDone)
	}
	return nil
}

// node is a runtime instantiation of a recipe element. start and cancel may
// report completion synchronously; a node reports exactly once.
type node interface {
	start()
	cancel()
}

type outcome string

func (o outcome) Error() string { return string(o) }

func outcomeError(with types.DoneWith) error {
	if with == types.WithSuccess {
		return nil
	}
	return outcome(with.String())
}
