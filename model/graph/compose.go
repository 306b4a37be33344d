package graph

import (
	"time"

	"github.com/viant/tasktree/internal/clock"
	"github.com/viant/tasktree/logger"
	"github.com/viant/tasktree/model/types"
)

// And runs items one after another and succeeds when all of them succeed.
func And(items ...Executable) Group {
	return NewGroup(Named("and"), Sequential, StopOnError, executables(items))
}

// Or runs items one after another until one succeeds.
func Or(items ...Executable) Group {
	return NewGroup(Named("or"), Sequential, StopOnSuccess, executables(items))
}

// Not inverts the success or error of item; cancellation is kept.
func Not(item Executable) Group {
	return NewGroup(Named("not"), item, OnGroupDone(func(with types.DoneWith) types.DoneResult {
		if with == types.WithSuccess {
			return types.DoneError
		}
		return types.DoneSuccess
	}))
}

// For runs items once per iteration of it. Iterations run one at a time
// unless items set a parallel limit.
func For(it Iterator, items ...Item) Group {
	return buildGroup(func(data *GroupData) { data.ParallelLimit = 1 }, append([]Item{Loop(it)}, items...))
}

// Do groups items into a sequential body.
func Do(items ...Item) Group {
	return buildGroup(func(data *GroupData) { data.ParallelLimit = 1 }, items)
}

// When runs body only when condition succeeds. The result is the body result,
// or success when condition fails.
func When(condition Executable, body ...Item) Group {
	passed := NewStorage[bool]()
	check := NewGroup(Named("condition"), condition, OnGroupDone(func(with types.DoneWith) types.DoneResult {
		*passed.Value() = with == types.WithSuccess
		return types.DoneSuccess
	}))
	then := Do(append([]Item{OnGroupSetup(func() types.SetupResult {
		if *passed.Value() {
			return types.SetupContinue
		}
		return types.SetupStopWithSuccess
	})}, body...)...)
	return NewGroup(Named("when"), Sequential, StopOnError, passed, check, then)
}

// WithTimeout races item against a timer; when the timer wins item is
// cancelled, onTimeout handlers run and the group reports an error.
func WithTimeout(item Executable, d time.Duration, onTimeout ...func()) Group {
	timer := TimeoutTask(d, types.DoneError, OnTaskDone(func(with types.DoneWith) types.DoneResult {
		if with == types.WithError {
			for _, fn := range onTimeout {
				fn()
			}
		}
		return types.ToDoneResult(with)
	}))
	return NewGroup(Named("timeout"), Parallel, StopOnSuccessOrError, timer, item)
}

// WithLog logs when item starts and finishes, using the run logger.
func WithLog(item Executable, description string) Group {
	started := NewStorage[time.Time]()
	return NewGroup(Named(description), started,
		OnGroupSetup(func() {
			*started.Value() = clock.Now()
			logger.FromContext(started.Context()).Info("started", "item", description)
		}),
		item,
		OnGroupDone(func(with types.DoneWith) {
			elapsed := clock.Since(*started.Value())
			log := logger.FromContext(started.Context())
			if with == types.WithSuccess {
				log.Info("finished", "item", description, "result", with, "elapsed", elapsed)
				return
			}
			log.Warn("finished", "item", description, "result", with, "elapsed", elapsed)
		}),
	)
}

func executables(items []Executable) Item {
	list := make(itemList, 0, len(items))
	for _, item := range items {
		list = append(list, item)
	}
	return list
}
