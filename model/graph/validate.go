package graph

import (
	"errors"
	"fmt"
)

// Validate walks a recipe and reports build problems: unsupported handler
// shapes, duplicated modifiers or storages, tasks without adapters, and
// unbounded loops without a parallel limit. An empty result means the recipe
// can be started.
func Validate(item Item) []error {
	var issues []error
	var walk func(path string, e Executable)
	walk = func(path string, e Executable) {
		switch actual := e.(type) {
		case Group:
			path = pathOf(path, actual.Name(), "group")
			for _, err := range actual.Errors() {
				issues = append(issues, fmt.Errorf("%v: %w", path, err))
			}
			data := actual.Data()
			if !data.Loop.IsZero() && !data.Loop.Bounded() && data.ParallelLimit <= 0 {
				issues = append(issues, fmt.Errorf("%v: unbounded loop requires a parallel limit", path))
			}
			for i, child := range actual.Children() {
				walk(fmt.Sprintf("%v[%d]", path, i), child)
			}
		case TaskItem:
			path = pathOf(path, actual.Name(), "task")
			for _, err := range actual.Errors() {
				issues = append(issues, fmt.Errorf("%v: %w", path, err))
			}
		case nil:
			issues = append(issues, errors.New("nil recipe item"))
		}
	}
	walk("", asExecutable(item))
	return issues
}

// CountTasks returns the number of leaf tasks in a recipe; looped bodies are
// counted once.
func CountTasks(item Item) int {
	var count func(e Executable) int
	count = func(e Executable) int {
		switch actual := e.(type) {
		case Group:
			total := 0
			for _, child := range actual.Children() {
				total += count(child)
			}
			return total
		case TaskItem:
			return 1
		}
		return 0
	}
	return count(asExecutable(item))
}

func asExecutable(item Item) Executable {
	if item == nil {
		return nil
	}
	if e, ok := item.(Executable); ok {
		return e
	}
	return NewGroup(item)
}

func pathOf(parent, name, kind string) string {
	if name == "" {
		name = kind
	}
	if parent == "" {
		return name
	}
	return parent + "/" + name
}
