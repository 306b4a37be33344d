package tasktree

import "errors"

var (
	// ErrRunning is returned when the tree is modified or started while running.
	ErrRunning = errors.New("task tree is running")
	// ErrNoRecipe is returned by Start when no recipe was set.
	ErrNoRecipe = errors.New("task tree has no recipe")
)
