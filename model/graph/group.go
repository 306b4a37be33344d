package graph

import (
	"fmt"
	goruntime "runtime"

	"github.com/viant/tasktree/model/types"
	"github.com/viant/tasktree/policy"
)

type (
	// GroupSetupHandler is the canonical group setup handler.
	GroupSetupHandler func() types.SetupResult
	// GroupDoneHandler is the canonical group done handler.
	GroupDoneHandler func(with types.DoneWith) types.DoneResult

	// GroupData holds the group level settings.
	GroupData struct {
		Name string
		// Setup is nil when no setup handler was declared.
		Setup GroupSetupHandler
		// Done is nil when no done handler was declared.
		Done     GroupDoneHandler
		CallDone types.CallDone
		// ParallelLimit caps concurrently running children; 0 or less means unlimited.
		ParallelLimit int
		Policy        policy.WorkflowPolicy
		// Loop is the zero Iterator for a single shot group.
		Loop Iterator
	}

	// Group is an immutable group recipe. The zero value is an empty group.
	Group struct {
		data *groupData
	}

	groupData struct {
		GroupData
		children []Executable
		storages []StorageBase
		errs     []error
	}
)

func defaultGroupData() GroupData {
	return GroupData{CallDone: types.CallDoneAlways, Policy: policy.Default}
}

// NewGroup builds a group from items. Lists are flattened, modifiers configure
// the group, storages are declared at this level and executables become
// children in declaration order.
func NewGroup(items ...Item) Group {
	return buildGroup(nil, items)
}

func buildGroup(seed func(data *GroupData), items []Item) Group {
	b := newBuilder()
	if seed != nil {
		seed(&b.data)
	}
	itemList(items).apply(b)
	return Group{data: &groupData{GroupData: b.data, children: b.children, storages: b.storages, errs: b.errs}}
}

func (g Group) apply(b *builder) {
	b.children = append(b.children, g)
}

func (g Group) executable() {}

// Data returns a copy of the group settings.
func (g Group) Data() GroupData {
	if g.data == nil {
		return defaultGroupData()
	}
	return g.data.GroupData
}

// Name returns the group name, if any.
func (g Group) Name() string {
	if g.data == nil {
		return ""
	}
	return g.data.Name
}

// Children returns a copy of the group children.
func (g Group) Children() []Executable {
	if g.data == nil {
		return nil
	}
	return append([]Executable(nil), g.data.children...)
}

// Storages returns a copy of the storages declared by the group.
func (g Group) Storages() []StorageBase {
	if g.data == nil {
		return nil
	}
	return append([]StorageBase(nil), g.data.storages...)
}

// Errors returns problems recorded while the group itself was built.
func (g Group) Errors() []error {
	if g.data == nil {
		return nil
	}
	return append([]error(nil), g.data.errs...)
}

// String returns a short description used in logs.
func (g Group) String() string {
	name := g.Name()
	if name == "" {
		name = "group"
	}
	return fmt.Sprintf("%v(%v, %d children)", name, g.Data().Policy, len(g.Children()))
}

// Named sets the group name used by logs, traces and metrics.
func Named(name string) Item {
	return modifier{name: "name", set: func(data *GroupData) { data.Name = name }}
}

// ParallelLimit caps concurrently running children; 0 or less means unlimited.
func ParallelLimit(limit int) Item {
	if limit < 0 {
		limit = 0
	}
	return modifier{name: "parallel limit", set: func(data *GroupData) { data.ParallelLimit = limit }}
}

// Policy sets the group workflow policy.
func Policy(p policy.WorkflowPolicy) Item {
	if !p.IsValid() {
		return modifier{name: "workflow policy", err: fmt.Errorf("invalid workflow policy: %v", p)}
	}
	return modifier{name: "workflow policy", set: func(data *GroupData) { data.Policy = p }}
}

// Loop drives the group children once per iteration of it.
func Loop(it Iterator) Item {
	if it.IsZero() {
		return modifier{name: "loop", err: fmt.Errorf("loop: zero iterator")}
	}
	return modifier{name: "loop", set: func(data *GroupData) { data.Loop = it }}
}

var (
	Sequential                    = ParallelLimit(1)
	Parallel                      = ParallelLimit(0)
	ParallelIdealThreadCountLimit = ParallelLimit(IdealThreadCount())

	StopOnError          = Policy(policy.StopOnError)
	ContinueOnError      = Policy(policy.ContinueOnError)
	StopOnSuccess        = Policy(policy.StopOnSuccess)
	ContinueOnSuccess    = Policy(policy.ContinueOnSuccess)
	StopOnSuccessOrError = Policy(policy.StopOnSuccessOrError)
	FinishAllAndSuccess  = Policy(policy.FinishAllAndSuccess)
	FinishAllAndError    = Policy(policy.FinishAllAndError)
)

// IdealThreadCount returns the parallel limit used by ParallelIdealThreadCountLimit.
func IdealThreadCount() int {
	return goruntime.NumCPU()
}

// SuccessItem is an executable that finishes with success without doing anything.
var SuccessItem = NewGroup(Named("success"), OnGroupSetup(types.SetupStopWithSuccess))

// ErrorItem is an executable that finishes with an error without doing anything.
var ErrorItem = NewGroup(Named("error"), OnGroupSetup(types.SetupStopWithError))

// OnGroupSetup declares the group setup handler. Accepted shapes:
// func() SetupResult, func() or a constant SetupResult.
func OnGroupSetup(handler any) Item {
	setup, err := groupSetup(handler)
	if err != nil {
		return modifier{name: "group setup handler", err: err}
	}
	return modifier{name: "group setup handler", set: func(data *GroupData) { data.Setup = setup }}
}

// OnGroupDone declares the group done handler, invoked for outcomes matching
// callDone (CallDoneAlways by default). Accepted shapes:
// func(DoneWith) DoneResult, func(DoneWith), func() DoneResult, func(),
// a constant DoneResult or bool.
func OnGroupDone(handler any, callDone ...types.CallDone) Item {
	done, err := groupDone(handler)
	if err != nil {
		return modifier{name: "group done handler", err: err}
	}
	flags := types.CallDoneAlways
	if len(callDone) > 0 {
		flags = callDone[0]
	}
	return modifier{name: "group done handler", set: func(data *GroupData) {
		data.Done = done
		data.CallDone = flags
	}}
}
