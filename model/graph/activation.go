package graph

import (
	"context"
	"sync"
)

// Binding makes one storage instance or iterator position current while
// handlers run.
type Binding struct {
	target binder
	value  any
}

type binder interface {
	ownership() *ownership
	swap(value any) (previous any)
}

// ownership records the owner (event loop) currently binding a block and the
// context of the handler it runs. An owner may bind a block it already holds.
type ownership struct {
	owner any
	depth int
	ctx   context.Context
}

// claims guards ownership of every block; it is only held while claiming or
// releasing, never while a handler runs.
var claims = struct {
	sync.Mutex
	released *sync.Cond
}{}

func init() {
	claims.released = sync.NewCond(&claims.Mutex)
}

// Activate binds storages and iterator positions for the duration of a
// handler call made on behalf of owner, and makes ctx the context of every
// bound storage. Bindings are applied in order (outermost first); release
// restores the previous values in reverse order.
//
// Only the blocks named by bindings are claimed. An owner binding a block held
// by another owner waits until it is released; owners running recipes that
// share no storage or iterator never wait for each other.
func Activate(owner any, ctx context.Context, bindings ...Binding) (release func()) {
	if len(bindings) == 0 {
		return func() {}
	}
	claims.Lock()
	for !claimable(owner, bindings) {
		claims.released.Wait()
	}
	contexts := make([]context.Context, len(bindings))
	for i, binding := range bindings {
		held := binding.target.ownership()
		held.owner = owner
		held.depth++
		contexts[i] = held.ctx
		if ctx != nil {
			held.ctx = ctx
		}
	}
	claims.Unlock()

	previous := make([]any, len(bindings))
	for i, binding := range bindings {
		previous[i] = binding.target.swap(binding.value)
	}
	return func() {
		for i := len(bindings) - 1; i >= 0; i-- {
			bindings[i].target.swap(previous[i])
		}
		claims.Lock()
		freed := false
		for i := len(bindings) - 1; i >= 0; i-- {
			held := bindings[i].target.ownership()
			held.ctx = contexts[i]
			held.depth--
			if held.depth == 0 {
				held.owner = nil
				freed = true
			}
		}
		if freed {
			claims.released.Broadcast()
		}
		claims.Unlock()
	}
}

func claimable(owner any, bindings []Binding) bool {
	for _, binding := range bindings {
		if held := binding.target.ownership(); held.owner != nil && held.owner != owner {
			return false
		}
	}
	return true
}
