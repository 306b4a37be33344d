package execution

import (
	"github.com/viant/tasktree/model/graph"
)

// frame is one level of storage instances and iterator position visible to
// handlers; frames chain from the root group inwards.
type frame struct {
	parent    *frame
	bindings  []graph.Binding
	iteration int
}

func newFrame(parent *frame, iteration int, bindings []graph.Binding) *frame {
	if len(bindings) == 0 && parent != nil && parent.iteration == iteration {
		return parent
	}
	return &frame{parent: parent, bindings: bindings, iteration: iteration}
}

// chain returns all bindings, outermost first.
func (f *frame) chain() []graph.Binding {
	var levels []*frame
	for current := f; current != nil; current = current.parent {
		levels = append(levels, current)
	}
	var result []graph.Binding
	for i := len(levels) - 1; i >= 0; i-- {
		result = append(result, levels[i].bindings...)
	}
	return result
}

func (f *frame) currentIteration() int {
	if f == nil {
		return -1
	}
	return f.iteration
}

// instance is a constructed storage value owned by a group activation.
type instance struct {
	storage graph.StorageBase
	value   any
}
