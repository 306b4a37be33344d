// Package graph defines the immutable recipe a task tree executes.
//
// A recipe is built from Items: leaf tasks (TaskItem), groups (Group),
// storage declarations (Storage), group modifiers (policy, parallel limit,
// loop, setup and done handlers) and item lists. Building never mutates an
// item; copying a Group or TaskItem copies a pointer to shared, immutable
// data, so the same recipe can be started many times, concurrently or
// nested in itself.
//
//	recipe := graph.NewGroup(
//		graph.Sequential,
//		graph.StopOnError,
//		call.Task(call.WithFunc(fetch)),
//		call.Task(call.WithFunc(store)),
//	)
package graph
