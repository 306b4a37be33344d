package graph

import (
	"fmt"

	"github.com/viant/tasktree/model/types"
)

// mirror is the default done behaviour.
func mirror(with types.DoneWith) types.DoneResult {
	return types.ToDoneResult(with)
}

func fromBool(ok bool) types.DoneResult {
	if ok {
		return types.DoneSuccess
	}
	return types.DoneError
}

func groupSetup(handler any) (GroupSetupHandler, error) {
	switch fn := handler.(type) {
	case nil:
		return nil, nil
	case GroupSetupHandler:
		return fn, nil
	case func() types.SetupResult:
		return fn, nil
	case func():
		return func() types.SetupResult {
			fn()
			return types.SetupContinue
		}, nil
	case types.SetupResult:
		return func() types.SetupResult { return fn }, nil
	}
	return nil, fmt.Errorf("unsupported group setup handler: %T", handler)
}

func groupDone(handler any) (GroupDoneHandler, error) {
	switch fn := handler.(type) {
	case nil:
		return nil, nil
	case GroupDoneHandler:
		return fn, nil
	case func(types.DoneWith) types.DoneResult:
		return fn, nil
	case func(types.DoneWith):
		return func(with types.DoneWith) types.DoneResult {
			fn(with)
			return mirror(with)
		}, nil
	case func() types.DoneResult:
		return func(types.DoneWith) types.DoneResult { return fn() }, nil
	case func():
		return func(with types.DoneWith) types.DoneResult {
			fn()
			return mirror(with)
		}, nil
	case types.DoneResult:
		return func(types.DoneWith) types.DoneResult { return fn }, nil
	case bool:
		return func(types.DoneWith) types.DoneResult { return fromBool(fn) }, nil
	}
	return nil, fmt.Errorf("unsupported group done handler: %T", handler)
}

func taskSetup[T any](handler any) (func(task T) types.SetupResult, error) {
	switch fn := handler.(type) {
	case nil:
		return nil, nil
	case func(T) types.SetupResult:
		return fn, nil
	case func(T):
		return func(task T) types.SetupResult {
			fn(task)
			return types.SetupContinue
		}, nil
	case func() types.SetupResult:
		return func(T) types.SetupResult { return fn() }, nil
	case func():
		return func(T) types.SetupResult {
			fn()
			return types.SetupContinue
		}, nil
	case types.SetupResult:
		return func(T) types.SetupResult { return fn }, nil
	}
	var zero T
	return nil, fmt.Errorf("unsupported setup handler %T for task %T", handler, zero)
}

func taskDone[T any](handler any) (func(task T, with types.DoneWith) types.DoneResult, error) {
	switch fn := handler.(type) {
	case nil:
		return nil, nil
	case func(T, types.DoneWith) types.DoneResult:
		return fn, nil
	case func(T, types.DoneWith):
		return func(task T, with types.DoneWith) types.DoneResult {
			fn(task, with)
			return mirror(with)
		}, nil
	case func(T) types.DoneResult:
		return func(task T, _ types.DoneWith) types.DoneResult { return fn(task) }, nil
	case func(T):
		return func(task T, with types.DoneWith) types.DoneResult {
			fn(task)
			return mirror(with)
		}, nil
	case func(types.DoneWith) types.DoneResult:
		return func(_ T, with types.DoneWith) types.DoneResult { return fn(with) }, nil
	case func(types.DoneWith):
		return func(_ T, with types.DoneWith) types.DoneResult {
			fn(with)
			return mirror(with)
		}, nil
	case func() types.DoneResult:
		return func(T, types.DoneWith) types.DoneResult { return fn() }, nil
	case func():
		return func(_ T, with types.DoneWith) types.DoneResult {
			fn()
			return mirror(with)
		}, nil
	case types.DoneResult:
		return func(T, types.DoneWith) types.DoneResult { return fn }, nil
	case bool:
		return func(T, types.DoneWith) types.DoneResult { return fromBool(fn) }, nil
	}
	var zero T
	return nil, fmt.Errorf("unsupported done handler %T for task %T", handler, zero)
}
