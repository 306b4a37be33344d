package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/viant/tasktree/model/types"
)

// TaskHandler is the type-erased, canonical form of a leaf task.
type TaskHandler struct {
	Name      string
	Construct func() any
	Start     func(ctx context.Context, task any, sink types.Sink)
	Destroy   func(task any)
	// Setup is never nil; it defaults to continue.
	Setup func(task any) types.SetupResult
	// Done is never nil; it defaults to mirroring the outcome.
	Done     func(task any, with types.DoneWith) types.DoneResult
	CallDone types.CallDone
}

// TaskItem is an immutable leaf task recipe.
type TaskItem struct {
	handler *TaskHandler
	errs    []error
}

func (t TaskItem) apply(b *builder) {
	b.children = append(b.children, t)
}

func (t TaskItem) executable() {}

// Handler returns a copy of the task handler.
func (t TaskItem) Handler() TaskHandler {
	if t.handler == nil {
		return TaskHandler{}
	}
	return *t.handler
}

// Name returns the task name, if any.
func (t TaskItem) Name() string {
	if t.handler == nil {
		return ""
	}
	return t.handler.Name
}

// Errors returns problems recorded while the task was built.
func (t TaskItem) Errors() []error {
	errs := append([]error(nil), t.errs...)
	if t.handler == nil {
		errs = append(errs, errors.New("task has no adapter"))
	}
	return errs
}

func (t TaskItem) String() string {
	if name := t.Name(); name != "" {
		return name
	}
	return "task"
}

type taskConfig struct {
	name     string
	setup    any
	done     any
	callDone types.CallDone
	seen     map[string]bool
	errs     []error
}

func (c *taskConfig) mark(name string) bool {
	if c.seen[name] {
		c.errs = append(c.errs, fmt.Errorf("task %v set more than once", name))
		return false
	}
	c.seen[name] = true
	return true
}

// TaskOption configures a task built by NewTask.
type TaskOption func(c *taskConfig)

// TaskName names the task for logs, traces and metrics.
func TaskName(name string) TaskOption {
	return func(c *taskConfig) {
		if c.mark("name") {
			c.name = name
		}
	}
}

func defaultTaskName(name string) TaskOption {
	return func(c *taskConfig) {
		if !c.seen["name"] {
			c.name = name
		}
	}
}

// OnTaskSetup declares the task setup handler, called with the constructed
// task before it starts. Accepted shapes: func(T) SetupResult, func(T),
// func() SetupResult, func() or a constant SetupResult.
func OnTaskSetup(handler any) TaskOption {
	return func(c *taskConfig) {
		if c.mark("setup handler") {
			c.setup = handler
		}
	}
}

// OnTaskDone declares the task done handler, called for outcomes matching
// callDone (CallDoneAlways by default). Accepted shapes:
// func(T, DoneWith) DoneResult, func(T, DoneWith), func(T) DoneResult, func(T),
// func(DoneWith) DoneResult, func(DoneWith), func() DoneResult, func(),
// a constant DoneResult or bool.
func OnTaskDone(handler any, callDone ...types.CallDone) TaskOption {
	return func(c *taskConfig) {
		if c.mark("done handler") {
			c.done = handler
			if len(callDone) > 0 {
				c.callDone = callDone[0]
			}
		}
	}
}

// NewTask builds a leaf task driving adapter. Handlers passed with options are
// normalised against the adapter task type T.
func NewTask[T any](adapter types.Adapter[T], options ...TaskOption) TaskItem {
	if adapter == nil {
		return TaskItem{errs: []error{errors.New("nil task adapter")}}
	}
	config := &taskConfig{callDone: types.CallDoneAlways, seen: map[string]bool{}}
	for _, option := range options {
		if option != nil {
			option(config)
		}
	}
	errs := config.errs
	setup, err := taskSetup[T](config.setup)
	if err != nil {
		errs = append(errs, err)
	}
	done, err := taskDone[T](config.done)
	if err != nil {
		errs = append(errs, err)
	}
	handler := &TaskHandler{
		Name:      config.name,
		CallDone:  config.callDone,
		Construct: func() any { return adapter.Construct() },
		Start: func(ctx context.Context, task any, sink types.Sink) {
			adapter.Start(ctx, as[T](task), sink)
		},
		Destroy: func(task any) { adapter.Destroy(as[T](task)) },
		Setup:   func(any) types.SetupResult { return types.SetupContinue },
		Done:    func(_ any, with types.DoneWith) types.DoneResult { return mirror(with) },
	}
	if setup != nil {
		handler.Setup = func(task any) types.SetupResult { return setup(as[T](task)) }
	}
	if done != nil {
		handler.Done = func(task any, with types.DoneWith) types.DoneResult { return done(as[T](task), with) }
	}
	return TaskItem{handler: handler, errs: errs}
}

// as converts a type-erased task back, tolerating nil interface tasks.
func as[T any](task any) T {
	value, _ := task.(T)
	return value
}
