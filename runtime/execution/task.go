package execution

import (
	"context"

	"github.com/viant/tasktree/model/graph"
	"github.com/viant/tasktree/model/types"
	"github.com/viant/tasktree/progress"
	"github.com/viant/tasktree/tracing"
)

// taskNode executes one activation of a leaf task.
type taskNode struct {
	run     *Run
	handler graph.TaskHandler
	info    NodeInfo
	frame   *frame
	ctx     context.Context
	cancelF context.CancelFunc
	span    *tracing.Span
	task    any
	onDone  func(with types.DoneWith)
	state   State
	started bool
}

func newTaskNode(r *Run, ctx context.Context, item graph.TaskItem, parent *frame, path string, onDone func(types.DoneWith)) *taskNode {
	return &taskNode{
		run:     r,
		handler: item.Handler(),
		info:    NodeInfo{RunID: r.id, Path: path, Name: item.Name(), Kind: KindTask, Iteration: parent.currentIteration()},
		frame:   parent,
		ctx:     ctx,
		onDone:  onDone,
		state:   StateIdle,
	}
}

// sink posts adapter reports to the run loop.
type sink struct {
	node *taskNode
}

func (s sink) ReportDone(result types.DoneResult) {
	s.node.run.loop.Post(func() { s.node.reported(result) })
}

func (t *taskNode) start() {
	if t.state != StateIdle {
		return
	}
	t.state = StateRunning
	t.run.nodeStarted(t.info)
	t.task = t.handler.Construct()
	result := types.SetupContinue
	t.run.invoke(t.ctx, t.frame, func() { result = t.handler.Setup(t.task) })
	if t.state != StateRunning {
		return
	}
	if result != types.SetupContinue {
		with := result.DoneWith()
		t.state = StateFinished
		t.handler.Destroy(t.task)
		t.run.log.Debug("task skipped by setup", "path", t.info.Path, "result", result)
		t.run.skipped(1)
		t.run.nodeDone(t.info, with)
		t.onDone(with)
		return
	}

	t.ctx, t.cancelF = context.WithCancel(t.ctx)
	t.ctx, t.span = t.run.tracer.StartSpan(t.ctx, "tasktree.task", "INTERNAL")
	t.span.WithAttributes(map[string]string{"node.path": t.info.Path, "task": t.info.Name})
	t.started = true
	t.run.progress.Update(progress.Delta{Started: 1, Running: 1})
	t.run.metrics.TaskStarted(t.run.name)
	t.run.log.Debug("task started", "path", t.info.Path)
	t.run.invoke(t.ctx, t.frame, func() { t.handler.Start(t.ctx, t.task, sink{node: t}) })
}

func (t *taskNode) reported(result types.DoneResult) {
	if t.state != StateRunning {
		return
	}
	t.finish(types.ToDoneWith(result))
}

func (t *taskNode) cancel() {
	if t.state != StateRunning {
		return
	}
	t.run.log.Debug("task cancelled", "path", t.info.Path)
	t.finish(types.WithCancel)
}

func (t *taskNode) finish(with types.DoneWith) {
	t.state = StateFinished
	if t.cancelF != nil {
		t.cancelF()
	}
	if t.handler.CallDone.Matches(with) {
		result := types.ToDoneResult(with)
		t.run.invoke(t.ctx, t.frame, func() { result = t.handler.Done(t.task, with) })
		if with != types.WithCancel {
			with = types.ToDoneWith(result)
		}
	}
	if t.started {
		delta := progress.Delta{Running: -1}
		switch with {
		case types.WithSuccess:
			delta.Succeeded = 1
		case types.WithError:
			delta.Failed = 1
		default:
			delta.Cancelled = 1
		}
		t.run.progress.Update(delta)
		t.run.metrics.TaskDone(t.run.name, with.String())
	} else {
		t.run.skipped(1)
	}
	t.handler.Destroy(t.task)
	t.span.WithAttributes(map[string]string{"result": with.String()})
	tracing.EndSpan(t.span, outcomeError(with))
	t.run.log.Debug("task done", "path", t.info.Path, "result", with)
	t.run.nodeDone(t.info, with)
	t.onDone(with)
}
