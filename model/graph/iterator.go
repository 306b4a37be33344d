package graph

import "math"

type iteratorKind int

const (
	foreverIterator iteratorKind = iota + 1
	repeatIterator
	untilIterator
	listIterator
)

// Position is the iteration currently bound by the runtime.
type Position struct {
	Iteration int
	Value     any
}

type iteratorBlock struct {
	kind      iteratorKind
	count     int
	condition func(iteration int) bool
	values    []any
	current   *Position
	held      ownership
}

func (b *iteratorBlock) ownership() *ownership { return &b.held }

func (b *iteratorBlock) swap(value any) any {
	previous := b.current
	b.current, _ = value.(*Position)
	return previous
}

// Iterator drives a looped group.
type Iterator struct {
	block *iteratorBlock
}

// Forever never exhausts.
func Forever() Iterator {
	return Iterator{&iteratorBlock{kind: foreverIterator}}
}

// Repeat runs n iterations.
func Repeat(n int) Iterator {
	if n < 0 {
		n = 0
	}
	return Iterator{&iteratorBlock{kind: repeatIterator, count: n}}
}

// Until queries condition before each iteration and exhausts on the first false.
func Until(condition func(iteration int) bool) Iterator {
	return Iterator{&iteratorBlock{kind: untilIterator, condition: condition}}
}

// List runs one iteration per value, exposing it through Value.
func List(values ...any) Iterator {
	return Iterator{&iteratorBlock{kind: listIterator, values: append([]any(nil), values...)}}
}

// IsZero reports whether the iterator was never constructed.
func (it Iterator) IsZero() bool { return it.block == nil }

// Bounded reports whether the iterator produces a known, finite number of iterations.
func (it Iterator) Bounded() bool {
	return it.block != nil && (it.block.kind == repeatIterator || it.block.kind == listIterator)
}

// Len returns the known iteration count, math.MaxInt when unbounded.
func (it Iterator) Len() int {
	switch {
	case it.block == nil:
		return 1
	case it.block.kind == repeatIterator:
		return it.block.count
	case it.block.kind == listIterator:
		return len(it.block.values)
	}
	return math.MaxInt
}

// Next reports whether iteration exists and returns its value. For Until it
// evaluates the condition; callers ask once per iteration, in order.
func (it Iterator) Next(iteration int) (value any, ok bool) {
	if it.block == nil {
		return nil, iteration == 0
	}
	switch it.block.kind {
	case foreverIterator:
		return nil, true
	case repeatIterator:
		return nil, iteration < it.block.count
	case untilIterator:
		return nil, it.block.condition != nil && it.block.condition(iteration)
	case listIterator:
		if iteration < len(it.block.values) {
			return it.block.values[iteration], true
		}
	}
	return nil, false
}

// Bind returns a binding making the given position current.
func (it Iterator) Bind(iteration int, value any) Binding {
	return Binding{target: it.block, value: &Position{Iteration: iteration, Value: value}}
}

// Iteration returns the current iteration index, valid only inside handlers
// of an active iteration; otherwise -1.
func (it Iterator) Iteration() int {
	if it.block == nil || it.block.current == nil {
		return -1
	}
	return it.block.current.Iteration
}

// Value returns the current list element, valid only inside handlers of an
// active iteration; nil for iterators without values.
func (it Iterator) Value() any {
	if it.block == nil || it.block.current == nil {
		return nil
	}
	return it.block.current.Value
}
