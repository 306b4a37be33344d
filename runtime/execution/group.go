package execution

import (
	"context"
	"fmt"

	"github.com/viant/tasktree/model/graph"
	"github.com/viant/tasktree/model/types"
	"github.com/viant/tasktree/tracing"
)

// iteration is one pass over the group children.
type iteration struct {
	index     int
	frame     *frame
	instances []instance
	// next is the index of the next child to start.
	next int
	// active counts started children that have not reported yet.
	active int
}

type child struct {
	node     node
	iter     *iteration
	detached bool
}

// groupNode executes one activation of a Group.
type groupNode struct {
	run       *Run
	recipe    graph.Group
	data      graph.GroupData
	children  []graph.Executable
	info      NodeInfo
	parent    *frame
	frame     *frame
	instances []instance
	ctx       context.Context
	span      *tracing.Span
	onDone    func(with types.DoneWith)

	state         State
	stopping      bool
	scheduling    bool
	exhausted     bool
	nextIteration int
	iterations    []*iteration
	inflight      []*child
	successes     int
	errors        int
	first         types.DoneWith
	hasFirst      bool
}

func newGroupNode(r *Run, ctx context.Context, recipe graph.Group, parent *frame, path string, onDone func(types.DoneWith)) *groupNode {
	return &groupNode{
		run:      r,
		recipe:   recipe,
		data:     recipe.Data(),
		children: recipe.Children(),
		info:     NodeInfo{RunID: r.id, Path: path, Name: recipe.Name(), Kind: KindGroup, Iteration: parent.currentIteration()},
		parent:   parent,
		ctx:      ctx,
		onDone:   onDone,
		state:    StateIdle,
	}
}

func (g *groupNode) looped() bool {
	return !g.data.Loop.IsZero()
}

func (g *groupNode) start() {
	if g.state != StateIdle {
		return
	}
	g.state = StateRunning
	g.ctx, g.span = g.run.tracer.StartSpan(g.ctx, "tasktree.group", "INTERNAL")
	g.span.WithAttributes(map[string]string{"node.path": g.info.Path, "policy": g.data.Policy.String()}).
		WithInt("children", len(g.children)).
		WithInt("parallelLimit", g.data.ParallelLimit)
	g.run.log.Debug("group started", "path", g.info.Path, "policy", g.data.Policy, "children", len(g.children))
	g.run.nodeStarted(g.info)

	// A looped group also gets a group-scope instance of each storage, bound
	// while its setup, done and loop condition run; storage listeners only
	// see the per-iteration instances its children use.
	g.instances = g.construct()
	g.frame = newFrame(g.parent, g.parent.currentIteration(), bindingsOf(g.instances))
	if !g.looped() {
		g.setupStorages(g.frame, g.instances)
		if g.state != StateRunning {
			return
		}
	}
	if g.data.Setup != nil {
		result := types.SetupContinue
		g.run.invoke(g.ctx, g.frame, func() { result = g.data.Setup() })
		if g.state != StateRunning {
			return
		}
		if result != types.SetupContinue {
			g.run.log.Debug("group stopped by setup", "path", g.info.Path, "result", result)
			g.stopping = true
			g.run.skipped(graph.CountTasks(g.recipe))
			g.finish(result.DoneWith())
			return
		}
	}
	if len(g.children) == 0 {
		g.finish(types.WithSuccess)
		return
	}
	g.schedule()
}

// schedule starts children while the parallel limit allows. Completions
// reported synchronously while it runs are only recorded; the loop picks up
// the freed slots.
func (g *groupNode) schedule() {
	if g.scheduling || g.state != StateRunning || g.stopping {
		return
	}
	g.scheduling = true
	for g.state == StateRunning && !g.stopping {
		if limit := g.data.ParallelLimit; limit > 0 && len(g.inflight) >= limit {
			break
		}
		it := g.nextSlot()
		if it == nil {
			break
		}
		g.startChild(it)
	}
	g.scheduling = false
	if g.state == StateRunning && !g.stopping && len(g.inflight) == 0 && len(g.iterations) == 0 && g.exhausted {
		g.finish(g.data.Policy.Result(g.successes, g.errors, g.first))
	}
}

// nextSlot returns the oldest open iteration with unstarted children, opening
// a new iteration when all open ones are fully started.
func (g *groupNode) nextSlot() *iteration {
	for _, it := range g.iterations {
		if it.next < len(g.children) {
			return it
		}
	}
	if g.exhausted {
		return nil
	}
	var value any
	ok := g.nextIteration == 0
	if g.looped() {
		g.run.invoke(g.ctx, g.frame, func() { value, ok = g.data.Loop.Next(g.nextIteration) })
		if g.state != StateRunning {
			return nil
		}
	}
	if !ok {
		g.exhausted = true
		return nil
	}
	it := &iteration{index: g.nextIteration, frame: g.frame}
	g.nextIteration++
	if g.looped() {
		it.instances = g.construct()
		bindings := append(bindingsOf(it.instances), g.data.Loop.Bind(it.index, value))
		it.frame = newFrame(g.frame, it.index, bindings)
		g.run.log.Debug("iteration started", "path", g.info.Path, "iteration", it.index)
	}
	g.iterations = append(g.iterations, it)
	g.setupStorages(it.frame, it.instances)
	if g.state != StateRunning {
		return nil
	}
	return it
}

func (g *groupNode) startChild(it *iteration) {
	index := it.next
	it.next++
	it.active++
	c := &child{iter: it}
	g.inflight = append(g.inflight, c)
	c.node = g.run.newNode(g.ctx, g.children[index], it.frame, g.childPath(it, index), func(with types.DoneWith) {
		g.childDone(c, with)
	})
	c.node.start()
}

func (g *groupNode) childPath(it *iteration, index int) string {
	name := fmt.Sprint(index)
	switch actual := g.children[index].(type) {
	case graph.Group:
		if actual.Name() != "" {
			name = actual.Name()
		}
	case graph.TaskItem:
		if actual.Name() != "" {
			name = actual.Name()
		}
	}
	if g.looped() {
		return fmt.Sprintf("%s#%d/%s", g.info.Path, it.index, name)
	}
	return g.info.Path + "/" + name
}

func (g *groupNode) childDone(c *child, with types.DoneWith) {
	if c.detached || g.state != StateRunning {
		return
	}
	c.detached = true
	g.removeInflight(c)
	c.iter.active--
	switch with {
	case types.WithSuccess:
		g.successes++
	case types.WithError:
		g.errors++
	}
	if !g.hasFirst {
		g.first, g.hasFirst = with, true
	}
	if g.data.Policy.ShouldStop(with) {
		g.run.log.Debug("group stopping", "path", g.info.Path, "policy", g.data.Policy, "trigger", with)
		g.stopping = true
		g.cancelInflight()
		g.run.skipped(g.unstartedLeaves())
		g.closeIterations()
		g.finish(g.data.Policy.Result(g.successes, g.errors, g.first))
		return
	}
	if c.iter.next == len(g.children) && c.iter.active == 0 {
		g.closeIteration(c.iter)
	}
	g.schedule()
}

// cancel cancels in-flight children in start order and reports WithCancel
// before returning.
func (g *groupNode) cancel() {
	if g.state != StateRunning {
		return
	}
	g.run.log.Debug("group cancelled", "path", g.info.Path)
	g.stopping = true
	g.cancelInflight()
	g.run.skipped(g.unstartedLeaves())
	g.closeIterations()
	g.finish(types.WithCancel)
}

func (g *groupNode) cancelInflight() {
	inflight := g.inflight
	g.inflight = nil
	for _, c := range inflight {
		c.detached = true
		c.iter.active--
	}
	for _, c := range inflight {
		c.node.cancel()
	}
}

func (g *groupNode) removeInflight(c *child) {
	for i, candidate := range g.inflight {
		if candidate == c {
			g.inflight = append(g.inflight[:i], g.inflight[i+1:]...)
			return
		}
	}
}

// unstartedLeaves counts leaves that will never start once the group stops.
func (g *groupNode) unstartedLeaves() int {
	count := 0
	for _, it := range g.iterations {
		for i := it.next; i < len(g.children); i++ {
			count += graph.CountTasks(g.children[i])
		}
	}
	if g.exhausted {
		return count
	}
	remaining := 0
	switch {
	case !g.looped():
		if g.nextIteration == 0 {
			remaining = 1
		}
	case g.data.Loop.Bounded():
		remaining = g.data.Loop.Len() - g.nextIteration
	}
	if remaining > 0 {
		count += remaining * graph.CountTasks(g.recipe)
	}
	return count
}

func (g *groupNode) closeIteration(it *iteration) {
	for i, candidate := range g.iterations {
		if candidate == it {
			g.iterations = append(g.iterations[:i], g.iterations[i+1:]...)
			break
		}
	}
	g.destroy(it.frame, it.instances, true)
	if g.looped() {
		g.run.log.Debug("iteration finished", "path", g.info.Path, "iteration", it.index)
	}
}

func (g *groupNode) closeIterations() {
	for len(g.iterations) > 0 {
		g.closeIteration(g.iterations[len(g.iterations)-1])
	}
}

func (g *groupNode) finish(with types.DoneWith) {
	if g.state == StateFinished {
		return
	}
	g.state = StateFinished
	g.stopping = true
	g.closeIterations()
	if g.data.Done != nil && g.data.CallDone.Matches(with) {
		result := types.ToDoneResult(with)
		g.run.invoke(g.ctx, g.frame, func() { result = g.data.Done(with) })
		if with != types.WithCancel {
			with = types.ToDoneWith(result)
		}
	}
	g.destroy(g.frame, g.instances, !g.looped())
	g.instances = nil
	g.span.WithAttributes(map[string]string{"result": with.String()})
	tracing.EndSpan(g.span, outcomeError(with))
	g.run.log.Debug("group done", "path", g.info.Path, "result", with)
	g.run.nodeDone(g.info, with)
	g.onDone(with)
}

func (g *groupNode) construct() []instance {
	storages := g.recipe.Storages()
	if len(storages) == 0 {
		return nil
	}
	result := make([]instance, 0, len(storages))
	for _, storage := range storages {
		result = append(result, instance{storage: storage, value: storage.Construct()})
	}
	return result
}

func (g *groupNode) setupStorages(f *frame, instances []instance) {
	for _, inst := range instances {
		g.run.notifyStorage(g.run.setup, g.ctx, f, inst)
	}
}

// destroy releases instances in reverse construction order, notifying
// listeners first when notify is set.
func (g *groupNode) destroy(f *frame, instances []instance, notify bool) {
	for i := len(instances) - 1; i >= 0; i-- {
		if notify {
			g.run.notifyStorage(g.run.done, g.ctx, f, instances[i])
		}
		instances[i].storage.Destruct(instances[i].value)
	}
}

func bindingsOf(instances []instance) []graph.Binding {
	if len(instances) == 0 {
		return nil
	}
	result := make([]graph.Binding, 0, len(instances)+1)
	for _, inst := range instances {
		result = append(result, inst.storage.Bind(inst.value))
	}
	return result
}
