package extension

import (
	"fmt"
	"sort"
	"sync"

	"github.com/viant/tasktree/model/graph"
	"gopkg.in/yaml.v3"
)

// Spec describes a declared task: its name and raw input document.
type Spec struct {
	Name  string
	Input *yaml.Node
}

// Decode decodes the input into target; a missing input leaves target as is.
func (s *Spec) Decode(target interface{}) error {
	if s.Input == nil {
		return nil
	}
	if err := s.Input.Decode(target); err != nil {
		return fmt.Errorf("invalid input of task %v: %w", s.Name, err)
	}
	return nil
}

// Options returns the task options implied by the spec.
func (s *Spec) Options() []graph.TaskOption {
	if s.Name == "" {
		return nil
	}
	return []graph.TaskOption{graph.TaskName(s.Name)}
}

// Factory creates leaf tasks for declarative recipes
type Factory interface {
	Name() string
	New(spec *Spec) (graph.TaskItem, error)
}

type factory struct {
	name string
	fn   func(spec *Spec) (graph.TaskItem, error)
}

func (f *factory) Name() string { return f.name }

func (f *factory) New(spec *Spec) (graph.TaskItem, error) { return f.fn(spec) }

// NewFactory adapts fn to Factory.
func NewFactory(name string, fn func(spec *Spec) (graph.TaskItem, error)) Factory {
	return &factory{name: name, fn: fn}
}

// Factories is a concurrent-safe registry of task factories
type Factories struct {
	factories map[string]Factory
	mux       sync.RWMutex
}

// Lookup returns a factory by name
func (s *Factories) Lookup(name string) (Factory, bool) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	ret, ok := s.factories[name]
	return ret, ok
}

// Register registers a factory, replacing one with the same name
func (s *Factories) Register(factories ...Factory) {
	s.mux.Lock()
	defer s.mux.Unlock()
	for _, f := range factories {
		s.factories[f.Name()] = f
	}
}

// Names returns registered factory names in order.
func (s *Factories) Names() []string {
	s.mux.RLock()
	defer s.mux.RUnlock()
	result := make([]string, 0, len(s.factories))
	for name := range s.factories {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// New builds a task with the named factory.
func (s *Factories) New(factoryName string, spec *Spec) (graph.TaskItem, error) {
	f, ok := s.Lookup(factoryName)
	if !ok {
		return graph.TaskItem{}, fmt.Errorf("unknown task %q", factoryName)
	}
	return f.New(spec)
}

// NewFactories creates a registry holding factories
func NewFactories(factories ...Factory) *Factories {
	ret := &Factories{factories: make(map[string]Factory)}
	ret.Register(factories...)
	return ret
}

// Default returns a registry with the built-in factories.
func Default() *Factories {
	return NewFactories(Builtins()...)
}
