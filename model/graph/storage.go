package graph

import (
	"context"

	"github.com/viant/tasktree/internal/idgen"
)

type storageBlock struct {
	id        string
	construct func() any
	destruct  func(instance any)
	current   any
	held      ownership
}

func (b *storageBlock) ownership() *ownership { return &b.held }

func (b *storageBlock) swap(value any) any {
	previous := b.current
	b.current = value
	return previous
}

// StorageBase is the type-erased storage handle. Handles compare equal when
// they share the same block, whatever their type parameter.
type StorageBase struct {
	block *storageBlock
}

func (s StorageBase) apply(b *builder) {
	if s.block == nil {
		return
	}
	b.addStorage(s)
}

// IsValid reports whether the handle was created by NewStorage.
func (s StorageBase) IsValid() bool { return s.block != nil }

// ID returns the storage identifier.
func (s StorageBase) ID() string {
	if s.block == nil {
		return ""
	}
	return s.block.id
}

// Key returns a comparable identity usable as a map key.
func (s StorageBase) Key() any { return s.block }

// Equal reports whether both handles address the same storage.
func (s StorageBase) Equal(other StorageBase) bool { return s.block == other.block }

// Construct creates a new instance backing the storage.
func (s StorageBase) Construct() any { return s.block.construct() }

// Destruct releases an instance created by Construct.
func (s StorageBase) Destruct(instance any) {
	if s.block.destruct != nil {
		s.block.destruct(instance)
	}
}

// Context returns the context of the run whose handler currently binds the
// storage, or context.Background outside handlers.
func (s StorageBase) Context() context.Context {
	if s.block == nil || s.block.held.ctx == nil {
		return context.Background()
	}
	return s.block.held.ctx
}

// Bind returns a binding making instance current.
func (s StorageBase) Bind(instance any) Binding {
	return Binding{target: s.block, value: instance}
}

// Storage is a typed handle to a data block scoped to one activation of the
// group declaring it.
type Storage[T any] struct {
	StorageBase
}

// NewStorage creates a storage handle; init, when given, creates each instance.
func NewStorage[T any](init ...func() *T) Storage[T] {
	construct := func() any { return new(T) }
	if len(init) > 0 && init[0] != nil {
		fn := init[0]
		construct = func() any { return fn() }
	}
	return Storage[T]{StorageBase{block: &storageBlock{id: idgen.Short(), construct: construct}}}
}

// NewStorageWithDestroy creates a storage handle whose instances are passed to
// destroy when their activation ends.
func NewStorageWithDestroy[T any](init func() *T, destroy func(*T)) Storage[T] {
	storage := NewStorage[T](init)
	if destroy != nil {
		storage.block.destruct = func(instance any) {
			value, _ := instance.(*T)
			destroy(value)
		}
	}
	return storage
}

// Value returns the instance of the innermost active activation. It is only
// valid inside handlers run by the engine; elsewhere it returns nil.
func (s Storage[T]) Value() *T {
	if s.block == nil {
		return nil
	}
	value, _ := s.block.current.(*T)
	return value
}
