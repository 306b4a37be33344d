// Package tasktree runs declarative task recipes.
//
// A recipe is a graph.Group composed of leaf tasks, nested groups, storages,
// loops and handlers. A TaskTree instantiates the recipe on a single loop
// goroutine: children start in declaration order within the group's parallel
// limit, the group's workflow policy decides when it stops and how it
// finishes, and every asynchronous completion is delivered back through the
// loop.
//
//	recipe := graph.NewGroup(
//		graph.Policy(policy.StopOnError),
//		graph.ParallelLimit(2),
//		call.Task(fetch),
//		call.Task(parse),
//	)
//	result, err := tasktree.RunBlocking(ctx, recipe)
//
// Trees may also be driven by an externally spun loop with Start and OnDone,
// or loaded from YAML with the recipe loader in service/dao/recipe.
package tasktree
