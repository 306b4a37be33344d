package tasktree

import (
	"context"

	"github.com/viant/tasktree/logger"
	"github.com/viant/tasktree/model/graph"
	"github.com/viant/tasktree/model/types"
	"github.com/viant/tasktree/runtime/loop"
)

// TreeTaskAdapter runs a nested TaskTree as a leaf task. The nested tree
// shares the loop of the enclosing run and reports its own outcome as the
// task result; a nested cancel reports an error.
type TreeTaskAdapter struct {
	recipe  *graph.Group
	options []Option
}

// Construct creates the nested tree; it has no recipe unless the adapter was
// created with one, so the setup handler may call SetRecipe.
func (a TreeTaskAdapter) Construct() *TaskTree {
	tree := newTree(a.options...)
	if a.recipe != nil {
		tree.setRecipe(*a.recipe)
	}
	return tree
}

func (a TreeTaskAdapter) Start(ctx context.Context, tree *TaskTree, sink types.Sink) {
	if l, ok := loop.FromContext(ctx); ok {
		tree.loop = l
	}
	if !tree.logSet {
		tree.log = logger.FromContext(ctx)
	}
	tree.OnDone(func(with types.DoneWith) {
		sink.ReportDone(types.ToDoneResult(with))
	})
	if err := tree.Start(ctx); err != nil {
		tree.log.Warn("nested task tree failed to start", "err", err)
		sink.ReportDone(types.DoneError)
	}
}

// Destroy cancels the nested tree when the task is stopped before it finished.
func (a TreeTaskAdapter) Destroy(tree *TaskTree) {
	tree.Cancel()
}

// TreeTask returns a task running recipe as a nested tree.
func TreeTask(recipe graph.Group, options ...graph.TaskOption) graph.TaskItem {
	return graph.NewTask[*TaskTree](TreeTaskAdapter{recipe: &recipe}, options...)
}

// TreeTaskWith returns a task whose nested tree is configured by treeOptions;
// its recipe is expected to be set by an OnTaskSetup handler.
func TreeTaskWith(treeOptions []Option, options ...graph.TaskOption) graph.TaskItem {
	return graph.NewTask[*TaskTree](TreeTaskAdapter{options: treeOptions}, options...)
}
