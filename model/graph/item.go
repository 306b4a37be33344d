package graph

import "fmt"

// Item is any element that may appear inside a group declaration.
type Item interface {
	apply(b *builder)
}

// Executable is an Item the runtime can start: a Group or a TaskItem.
type Executable interface {
	Item
	executable()
}

// itemList is flattened into the enclosing group.
type itemList []Item

func (l itemList) apply(b *builder) {
	for _, item := range l {
		if item != nil {
			item.apply(b)
		}
	}
}

// Items groups several items into one; the list is flattened into the group
// that eventually contains it.
func Items(items ...Item) Item {
	return itemList(append([]Item(nil), items...))
}

// NullItem has no effect when placed in a group.
var NullItem = Items()

// modifier sets one aspect of the enclosing group.
type modifier struct {
	name string
	set  func(data *GroupData)
	err  error
}

func (m modifier) apply(b *builder) {
	if m.err != nil {
		b.errs = append(b.errs, m.err)
		return
	}
	if b.seen[m.name] {
		b.errs = append(b.errs, fmt.Errorf("%v set more than once", m.name))
		return
	}
	b.seen[m.name] = true
	m.set(&b.data)
}

type builder struct {
	data     GroupData
	children []Executable
	storages []StorageBase
	errs     []error
	seen     map[string]bool
}

func newBuilder() *builder {
	return &builder{data: defaultGroupData(), seen: map[string]bool{}}
}

func (b *builder) addStorage(storage StorageBase) {
	for _, candidate := range b.storages {
		if candidate.Equal(storage) {
			b.errs = append(b.errs, fmt.Errorf("storage %v declared more than once", storage.ID()))
			return
		}
	}
	b.storages = append(b.storages, storage)
}
