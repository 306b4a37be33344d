package execution

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/tasktree/model/graph"
	"github.com/viant/tasktree/model/types"
	"github.com/viant/tasktree/policy"
	"github.com/viant/tasktree/progress"
	"github.com/viant/tasktree/runtime/loop"
	"github.com/viant/tasktree/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type job struct {
	name     string
	ctx      context.Context
	sink     types.Sink
	reported bool
}

type jobAdapter struct {
	h      *harness
	name   string
	report *types.DoneResult
}

func (a jobAdapter) Construct() *job { return &job{name: a.name} }

func (a jobAdapter) Start(ctx context.Context, j *job, sink types.Sink) {
	j.ctx, j.sink = ctx, sink
	a.h.jobs = append(a.h.jobs, j)
	a.h.events = append(a.h.events, "start "+a.name)
	a.h.running++
	if a.h.running > a.h.maxRunning {
		a.h.maxRunning = a.h.running
	}
	if a.report != nil {
		j.reported = true
		sink.ReportDone(*a.report)
	}
}

func (a jobAdapter) Destroy(*job) {}

// harness drives runs on a loop spun by the test goroutine.
type harness struct {
	t          *testing.T
	loop       *loop.Loop
	events     []string
	started    []NodeInfo
	jobs       []*job
	result     []types.DoneWith
	running    int
	maxRunning int
}

func newHarness(t *testing.T) *harness {
	return &harness{t: t, loop: loop.New()}
}

func (h *harness) NodeStarted(info NodeInfo) {
	h.started = append(h.started, info)
}

func (h *harness) NodeDone(info NodeInfo, with types.DoneWith) {
	if info.Kind != KindTask {
		return
	}
	h.events = append(h.events, "done "+info.Name+" "+with.String())
	if info.Name != "timeout" {
		h.running--
	}
}

// task builds a task from "name" (reports when told) or "name:result"
// (reports from Start).
func (h *harness) task(spec string, options ...graph.TaskOption) graph.TaskItem {
	name, outcome, immediate := strings.Cut(spec, ":")
	adapter := jobAdapter{h: h, name: name}
	if immediate {
		result, err := types.ParseDoneResult(outcome)
		require.NoError(h.t, err)
		adapter.report = &result
	}
	return graph.NewTask[*job](adapter, append([]graph.TaskOption{graph.TaskName(name)}, options...)...)
}

func (h *harness) tasks(specs ...string) graph.Item {
	var items []graph.Item
	for _, spec := range specs {
		items = append(items, h.task(spec))
	}
	return graph.Items(items...)
}

func (h *harness) start(recipe graph.Group, options ...Option) *Run {
	options = append([]Option{WithObservers(h)}, options...)
	r := NewRun(recipe, h.loop, func(with types.DoneWith) { h.result = append(h.result, with) }, options...)
	r.Start(context.Background())
	h.loop.ProcessPending()
	return r
}

func (h *harness) report(name string, result types.DoneResult) {
	for _, j := range h.jobs {
		if j.name == name && !j.reported {
			j.reported = true
			j.sink.ReportDone(result)
			h.loop.ProcessPending()
			return
		}
	}
	h.t.Fatalf("no pending job %v", name)
}

func (h *harness) job(name string) *job {
	for _, j := range h.jobs {
		if j.name == name {
			return j
		}
	}
	h.t.Fatalf("job %v was not started", name)
	return nil
}

func (h *harness) wait(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for len(h.result) == 0 {
		require.NoError(h.t, h.loop.ProcessEvent(ctx))
	}
}

func TestRun_EmptyGroup(t *testing.T) {
	for _, p := range policy.All() {
		t.Run(p.String(), func(t *testing.T) {
			h := newHarness(t)
			r := NewRun(graph.NewGroup(graph.Policy(p)), h.loop, func(with types.DoneWith) { h.result = append(h.result, with) })
			r.Start(context.Background())
			assert.Equal(t, []types.DoneWith{types.WithSuccess}, h.result, "completes synchronously")
			assert.Equal(t, StateFinished, r.State())
		})
	}

	t.Run("zero iterations", func(t *testing.T) {
		h := newHarness(t)
		h.start(graph.NewGroup(graph.Loop(graph.Until(func(int) bool { return false })), h.task("a")))
		assert.Equal(t, []types.DoneWith{types.WithSuccess}, h.result)
		assert.Empty(t, h.events)
	})
}

func TestRun_Policies(t *testing.T) {
	type report struct {
		name   string
		result types.DoneResult
	}
	testCases := []struct {
		description string
		items       []graph.Item
		tasks       []string
		reports     []report
		expect      []string
		result      types.DoneWith
	}{
		{
			description: "stop on error cancels in-flight children in start order",
			items:       []graph.Item{graph.Parallel, graph.StopOnError},
			tasks:       []string{"a", "b:error", "c"},
			expect:      []string{"start a", "start b", "start c", "done b error", "done a cancel", "done c cancel"},
			result:      types.WithError,
		},
		{
			description: "stop on error never starts later siblings",
			items:       []graph.Item{graph.Sequential, graph.StopOnError},
			tasks:       []string{"a:error", "b"},
			expect:      []string{"start a", "done a error"},
			result:      types.WithError,
		},
		{
			description: "continue on error starts every child",
			items:       []graph.Item{graph.Sequential, graph.ContinueOnError},
			tasks:       []string{"a:error", "b:success"},
			expect:      []string{"start a", "done a error", "start b", "done b success"},
			result:      types.WithError,
		},
		{
			description: "continue on error succeeds when all succeed",
			items:       []graph.Item{graph.Sequential, graph.ContinueOnError},
			tasks:       []string{"a:success", "b:success"},
			expect:      []string{"start a", "done a success", "start b", "done b success"},
			result:      types.WithSuccess,
		},
		{
			description: "stop on success cancels the slow child",
			items:       []graph.Item{graph.Parallel, graph.StopOnSuccess},
			tasks:       []string{"a", "b:success"},
			expect:      []string{"start a", "start b", "done b success", "done a cancel"},
			result:      types.WithSuccess,
		},
		{
			description: "stop on success fails when every child fails",
			items:       []graph.Item{graph.Sequential, graph.StopOnSuccess},
			tasks:       []string{"a:error", "b:error"},
			expect:      []string{"start a", "done a error", "start b", "done b error"},
			result:      types.WithError,
		},
		{
			description: "continue on success waits for every child",
			items:       []graph.Item{graph.Parallel, graph.ContinueOnSuccess},
			tasks:       []string{"a", "b:success"},
			reports:     []report{{"a", types.DoneError}},
			expect:      []string{"start a", "start b", "done b success", "done a error"},
			result:      types.WithSuccess,
		},
		{
			description: "stop on success or error takes the first report in declaration order",
			items:       []graph.Item{graph.Parallel, graph.StopOnSuccessOrError},
			tasks:       []string{"a:error", "b:success"},
			expect:      []string{"start a", "start b", "done a error", "done b cancel"},
			result:      types.WithError,
		},
		{
			description: "finish all and success fails on any error",
			items:       []graph.Item{graph.Parallel, graph.FinishAllAndSuccess},
			tasks:       []string{"a:success", "b:error"},
			expect:      []string{"start a", "start b", "done a success", "done b error"},
			result:      types.WithError,
		},
		{
			description: "finish all and error succeeds without errors",
			items:       []graph.Item{graph.Parallel, graph.FinishAllAndError},
			tasks:       []string{"a:success", "b:success"},
			expect:      []string{"start a", "start b", "done a success", "done b success"},
			result:      types.WithSuccess,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			h := newHarness(t)
			items := append(append([]graph.Item{}, testCase.items...), h.tasks(testCase.tasks...))
			h.start(graph.NewGroup(items...))
			for _, r := range testCase.reports {
				h.report(r.name, r.result)
			}
			assert.Equal(t, testCase.expect, h.events)
			assert.Equal(t, []types.DoneWith{testCase.result}, h.result)
		})
	}
}

func TestRun_FinishAllAndErrorWaitsForSlowest(t *testing.T) {
	h := newHarness(t)
	h.start(graph.NewGroup(graph.FinishAllAndError, h.tasks("a", "b", "c")))
	h.report("b", types.DoneSuccess)
	h.report("a", types.DoneError)
	assert.Empty(t, h.result)
	h.report("c", types.DoneSuccess)
	assert.Equal(t, []types.DoneWith{types.WithError}, h.result)
	assert.Equal(t, []string{"start a", "start b", "start c", "done b success", "done a error", "done c success"}, h.events)
}

func TestRun_ParallelLimit(t *testing.T) {
	h := newHarness(t)
	h.start(graph.NewGroup(graph.ParallelLimit(2), h.tasks("a", "b", "c", "d", "e")))
	assert.Equal(t, []string{"start a", "start b"}, h.events)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		h.report(name, types.DoneSuccess)
		assert.LessOrEqual(t, h.running, 2)
	}
	assert.Equal(t, 2, h.maxRunning)
	assert.Equal(t, []types.DoneWith{types.WithSuccess}, h.result)
}

func TestRun_Storage(t *testing.T) {
	t.Run("sequential round trip", func(t *testing.T) {
		h := newHarness(t)
		counter := graph.NewStorage[int]()
		it := graph.Repeat(3)
		var seen []int
		setups, dones := 0, 0
		recipe := graph.For(it, counter,
			h.task("write:success", graph.OnTaskSetup(func(*job) { *counter.Value() = it.Iteration() * 10 })),
			h.task("read:success", graph.OnTaskDone(func() { seen = append(seen, *counter.Value()) })),
		)
		h.start(recipe,
			WithStorageSetup(counter.StorageBase, func(any) { setups++ }),
			WithStorageDone(counter.StorageBase, func(any) { dones++ }),
		)
		assert.Equal(t, []int{0, 10, 20}, seen)
		assert.Equal(t, 3, setups)
		assert.Equal(t, 3, dones)
		assert.Equal(t, []types.DoneWith{types.WithSuccess}, h.result)
	})

	t.Run("concurrent iterations use distinct instances", func(t *testing.T) {
		h := newHarness(t)
		counter := graph.NewStorage[int]()
		var setups, dones []*int
		recipe := graph.NewGroup(graph.Loop(graph.Repeat(3)), graph.Parallel, counter, h.task("w"))
		h.start(recipe,
			WithStorageSetup(counter.StorageBase, func(instance any) { setups = append(setups, instance.(*int)) }),
			WithStorageDone(counter.StorageBase, func(instance any) { dones = append(dones, instance.(*int)) }),
		)
		require.Len(t, setups, 3)
		assert.Empty(t, dones)
		assert.NotSame(t, setups[0], setups[1])
		assert.NotSame(t, setups[1], setups[2])
		assert.NotSame(t, setups[0], setups[2])
		for i := 0; i < 3; i++ {
			h.report("w", types.DoneSuccess)
		}
		assert.ElementsMatch(t, setups, dones)
		assert.Equal(t, []types.DoneWith{types.WithSuccess}, h.result)
	})

	t.Run("group storage outlives the done handler", func(t *testing.T) {
		h := newHarness(t)
		name := graph.NewStorageWithDestroy(func() *string { value := "init"; return &value }, func(value *string) { h.events = append(h.events, "destroy "+*value) })
		recipe := graph.NewGroup(name,
			graph.OnGroupSetup(func() { *name.Value() = "set" }),
			h.task("a:success"),
			graph.OnGroupDone(func() { h.events = append(h.events, "group done "+*name.Value()) }),
		)
		h.start(recipe)
		assert.Equal(t, []string{"start a", "done a success", "group done set", "destroy set"}, h.events)
	})

	t.Run("looped group handlers see a group-scope instance", func(t *testing.T) {
		h := newHarness(t)
		total := graph.NewStorage[int]()
		setups := 0
		var seen []int
		recipe := graph.NewGroup(graph.Loop(graph.Repeat(2)), total,
			graph.OnGroupSetup(func() { *total.Value() = 7 }),
			h.task("a:success", graph.OnTaskSetup(func() { seen = append(seen, *total.Value()) })),
			graph.OnGroupDone(func() { seen = append(seen, *total.Value()) }),
		)
		h.start(recipe, WithStorageSetup(total.StorageBase, func(any) { setups++ }))
		assert.Equal(t, []int{0, 0, 7}, seen)
		assert.Equal(t, 2, setups)
		assert.Equal(t, []types.DoneWith{types.WithSuccess}, h.result)
	})
}

// Reporting twice through one sink breaks the adapter contract and the
// outcome is undefined. Today the second report is dropped, so the task and
// the run each finish once.
func TestRun_DoubleReportIsUndefined(t *testing.T) {
	h := newHarness(t)
	h.start(graph.NewGroup(graph.Sequential, graph.ContinueOnError, h.tasks("a", "b")))
	sink := h.job("a").sink
	sink.ReportDone(types.DoneError)
	sink.ReportDone(types.DoneSuccess)
	h.loop.ProcessPending()
	assert.Equal(t, []string{"start a", "done a error", "start b"}, h.events)

	h.report("b", types.DoneSuccess)
	assert.Equal(t, []string{"start a", "done a error", "start b", "done b success"}, h.events)
	assert.Equal(t, []types.DoneWith{types.WithError}, h.result)
}

func TestRun_IteratorPosition(t *testing.T) {
	h := newHarness(t)
	it := graph.List("x", "y")
	var values []string
	h.start(graph.For(it, h.task("t:success", graph.OnTaskSetup(func() {
		values = append(values, fmt.Sprint(it.Iteration(), it.Value()))
	}))))
	assert.Equal(t, []string{"0 x", "1 y"}, values)
	assert.Equal(t, -1, it.Iteration())
}

func TestRun_Cancel(t *testing.T) {
	t.Run("idempotent", func(t *testing.T) {
		h := newHarness(t)
		r := h.start(graph.NewGroup(h.tasks("a", "b")))
		r.Cancel()
		r.Cancel()
		assert.Equal(t, []types.DoneWith{types.WithCancel}, h.result)
		assert.Equal(t, []string{"start a", "start b", "done a cancel", "done b cancel"}, h.events)
		assert.Error(t, h.job("a").ctx.Err())

		h.report("a", types.DoneSuccess)
		assert.Equal(t, []types.DoneWith{types.WithCancel}, h.result)
		assert.Len(t, h.events, 4)
	})

	t.Run("after done", func(t *testing.T) {
		h := newHarness(t)
		r := h.start(graph.NewGroup(h.task("a:success")))
		require.Equal(t, []types.DoneWith{types.WithSuccess}, h.result)
		r.Cancel()
		assert.Equal(t, []types.DoneWith{types.WithSuccess}, h.result)
	})

	t.Run("cancel keeps cancel over done handler", func(t *testing.T) {
		h := newHarness(t)
		var handled []types.DoneWith
		r := h.start(graph.NewGroup(h.task("a"), graph.OnGroupDone(func(with types.DoneWith) types.DoneResult {
			handled = append(handled, with)
			return types.DoneSuccess
		})))
		r.Cancel()
		assert.Equal(t, []types.DoneWith{types.WithCancel}, handled)
		assert.Equal(t, []types.DoneWith{types.WithCancel}, h.result)
	})
}

func TestRun_Handlers(t *testing.T) {
	t.Run("group setup stop", func(t *testing.T) {
		h := newHarness(t)
		tracker := progress.New("run", "recipe", 1, nil)
		var handled []types.DoneWith
		h.start(graph.NewGroup(
			graph.OnGroupSetup(types.SetupStopWithError),
			graph.OnGroupDone(func(with types.DoneWith) { handled = append(handled, with) }),
			h.task("a"),
		), WithProgress(tracker))
		assert.Empty(t, h.events)
		assert.Equal(t, []types.DoneWith{types.WithError}, handled)
		assert.Equal(t, []types.DoneWith{types.WithError}, h.result)
		assert.Equal(t, 1, tracker.Snapshot().Skipped)
	})

	t.Run("group done overrides result", func(t *testing.T) {
		h := newHarness(t)
		h.start(graph.NewGroup(h.task("a:error"), graph.OnGroupDone(types.DoneSuccess)))
		assert.Equal(t, []types.DoneWith{types.WithSuccess}, h.result)
	})

	t.Run("group done call flags", func(t *testing.T) {
		h := newHarness(t)
		called := false
		h.start(graph.NewGroup(h.task("a:success"), graph.OnGroupDone(func() types.DoneResult {
			called = true
			return types.DoneError
		}, types.CallDoneOnError)))
		assert.False(t, called)
		assert.Equal(t, []types.DoneWith{types.WithSuccess}, h.result)
	})

	t.Run("task setup stop skips the task", func(t *testing.T) {
		h := newHarness(t)
		tracker := progress.New("run", "recipe", 2, nil)
		called := false
		h.start(graph.NewGroup(graph.Sequential,
			h.task("a", graph.OnTaskSetup(types.SetupStopWithSuccess), graph.OnTaskDone(func() { called = true })),
			h.task("b:success"),
		), WithProgress(tracker))
		assert.False(t, called)
		assert.Equal(t, []string{"done a success", "start b", "done b success"}, h.events)
		assert.Equal(t, []types.DoneWith{types.WithSuccess}, h.result)
		snapshot := tracker.Snapshot()
		assert.Equal(t, 1, snapshot.Skipped)
		assert.Equal(t, 1, snapshot.AsyncCount)
		assert.Equal(t, 1, snapshot.Succeeded)
	})

	t.Run("task done overrides result", func(t *testing.T) {
		h := newHarness(t)
		h.start(graph.NewGroup(h.task("a:error", graph.OnTaskDone(true))))
		assert.Equal(t, []string{"start a", "done a success"}, h.events)
		assert.Equal(t, []types.DoneWith{types.WithSuccess}, h.result)
	})

	t.Run("handler context", func(t *testing.T) {
		h := newHarness(t)
		var found bool
		scoped := graph.NewStorage[int]()
		h.start(graph.NewGroup(scoped, h.task("a:success", graph.OnTaskSetup(func() {
			_, found = loop.FromContext(scoped.Context())
		}))))
		assert.True(t, found)
	})
}

func TestRun_Compose(t *testing.T) {
	testCases := []struct {
		description string
		recipe      func(h *harness) graph.Group
		expect      []string
		result      types.DoneWith
	}{
		{
			description: "not inverts success",
			recipe:      func(h *harness) graph.Group { return graph.NewGroup(graph.Not(h.task("a:success"))) },
			expect:      []string{"start a", "done a success"},
			result:      types.WithError,
		},
		{
			description: "not inverts error",
			recipe:      func(h *harness) graph.Group { return graph.NewGroup(graph.Not(h.task("a:error"))) },
			expect:      []string{"start a", "done a error"},
			result:      types.WithSuccess,
		},
		{
			description: "when skips body",
			recipe:      func(h *harness) graph.Group { return graph.When(h.task("c:error"), h.task("b")) },
			expect:      []string{"start c", "done c error"},
			result:      types.WithSuccess,
		},
		{
			description: "when runs body",
			recipe:      func(h *harness) graph.Group { return graph.When(h.task("c:success"), h.task("b:error")) },
			expect:      []string{"start c", "done c success", "start b", "done b error"},
			result:      types.WithError,
		},
		{
			description: "and stops on first error",
			recipe: func(h *harness) graph.Group {
				return graph.And(h.task("a:success"), h.task("b:error"), h.task("c"))
			},
			expect: []string{"start a", "done a success", "start b", "done b error"},
			result: types.WithError,
		},
		{
			description: "or stops on first success",
			recipe: func(h *harness) graph.Group {
				return graph.Or(h.task("a:error"), h.task("b:success"), h.task("c"))
			},
			expect: []string{"start a", "done a error", "start b", "done b success"},
			result: types.WithSuccess,
		},
		{
			description: "timeout loses to a fast item",
			recipe: func(h *harness) graph.Group {
				return graph.NewGroup(graph.WithTimeout(h.task("a:success"), time.Hour))
			},
			expect: []string{"start a", "done a success", "done timeout cancel"},
			result: types.WithSuccess,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			h := newHarness(t)
			h.start(testCase.recipe(h))
			assert.Equal(t, testCase.expect, h.events)
			assert.Equal(t, []types.DoneWith{testCase.result}, h.result)
		})
	}
}

func TestRun_Timeout(t *testing.T) {
	h := newHarness(t)
	timedOut := false
	h.start(graph.NewGroup(graph.WithTimeout(h.task("a"), 10*time.Millisecond, func() { timedOut = true })))
	h.wait(5 * time.Second)
	assert.True(t, timedOut)
	assert.Equal(t, []string{"start a", "done timeout error", "done a cancel"}, h.events)
	assert.Equal(t, []types.DoneWith{types.WithError}, h.result)
	assert.Error(t, h.job("a").ctx.Err())
}

func TestRun_NodeInfo(t *testing.T) {
	h := newHarness(t)
	h.start(graph.NewGroup(graph.Named("root"),
		h.task("a:success"),
		graph.NewGroup(graph.Named("loop"), graph.Loop(graph.Repeat(2)), graph.Sequential, h.task("t:success")),
	))
	var paths []string
	for _, info := range h.started {
		paths = append(paths, fmt.Sprintf("%v %v %d", info.Kind, info.Path, info.Iteration))
	}
	assert.Equal(t, []string{
		"group root -1",
		"task root/a -1",
		"group root/loop -1",
		"task root/loop#0/t 0",
		"task root/loop#1/t 1",
	}, paths)
}

func TestRun_Progress(t *testing.T) {
	h := newHarness(t)
	recipe := graph.NewGroup(graph.Sequential, h.tasks("a:error", "b", "c"))
	tracker := progress.New("run", "recipe", graph.CountTasks(recipe), nil)
	h.start(recipe, WithProgress(tracker))
	snapshot := tracker.Snapshot()
	assert.Equal(t, 3, snapshot.TaskCount)
	assert.Equal(t, 1, snapshot.AsyncCount)
	assert.Equal(t, 1, snapshot.Failed)
	assert.Equal(t, 2, snapshot.Skipped)
	assert.Equal(t, 0, snapshot.Running)
	assert.Equal(t, 3, tracker.Value())
}

func TestRun_Spans(t *testing.T) {
	h := newHarness(t)
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	h.start(graph.NewGroup(graph.Named("root"), h.task("a:success")), WithTracer(tracing.NewTracer(provider)))
	var names []string
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}
	assert.Equal(t, []string{"tasktree.task", "tasktree.group", "tasktree.run"}, names)
}
