package policy

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/viant/tasktree/model/types"
	"gopkg.in/yaml.v3"
)

// WorkflowPolicy is the closed set of group semantics.
type WorkflowPolicy int

const (
	// StopOnError stops on the first child error; succeeds when all started children succeeded.
	StopOnError WorkflowPolicy = iota
	// ContinueOnError never stops; succeeds when all children succeeded.
	ContinueOnError
	// StopOnSuccess stops on the first child success; succeeds when any child succeeded.
	StopOnSuccess
	// ContinueOnSuccess never stops; succeeds when any child succeeded.
	ContinueOnSuccess
	// StopOnSuccessOrError stops on the first finished child and takes over its result.
	StopOnSuccessOrError
	// FinishAllAndSuccess waits for all children; succeeds when all children succeeded.
	FinishAllAndSuccess
	// FinishAllAndError waits for all children; reports an error if any child failed.
	FinishAllAndError
)

// Default is the policy of a group that does not declare one.
const Default = StopOnError

var names = map[WorkflowPolicy]string{
	StopOnError:          "stopOnError",
	ContinueOnError:      "continueOnError",
	StopOnSuccess:        "stopOnSuccess",
	ContinueOnSuccess:    "continueOnSuccess",
	StopOnSuccessOrError: "stopOnSuccessOrError",
	FinishAllAndSuccess:  "finishAllAndSuccess",
	FinishAllAndError:    "finishAllAndError",
}

// All returns every policy in declaration order.
func All() []WorkflowPolicy {
	return []WorkflowPolicy{StopOnError, ContinueOnError, StopOnSuccess, ContinueOnSuccess,
		StopOnSuccessOrError, FinishAllAndSuccess, FinishAllAndError}
}

func (p WorkflowPolicy) String() string {
	if name, ok := names[p]; ok {
		return name
	}
	return fmt.Sprintf("WorkflowPolicy(%d)", int(p))
}

// IsValid reports whether p is one of the seven policies.
func (p WorkflowPolicy) IsValid() bool {
	_, ok := names[p]
	return ok
}

// Parse matches a policy name case-insensitively, ignoring '-' and '_'.
func Parse(text string) (WorkflowPolicy, error) {
	normalized := strings.ToLower(strings.NewReplacer("-", "", "_", "", " ", "").Replace(text))
	for p, name := range names {
		if strings.ToLower(name) == normalized {
			return p, nil
		}
	}
	return Default, fmt.Errorf("unknown workflow policy: %q", text)
}

// ShouldStop reports whether a group stops starting (and cancels) remaining
// children once a child finished with the given outcome.
func (p WorkflowPolicy) ShouldStop(child types.DoneWith) bool {
	switch p {
	case StopOnError:
		return child == types.WithError
	case StopOnSuccess:
		return child == types.WithSuccess
	case StopOnSuccessOrError:
		return child != types.WithCancel
	}
	return false
}

// Result derives the group result once it stops or runs out of children.
// first is the outcome of the first finished child; only StopOnSuccessOrError
// consults it.
func (p WorkflowPolicy) Result(successes, errors int, first types.DoneWith) types.DoneWith {
	if successes+errors == 0 {
		return types.WithSuccess
	}
	switch p {
	case StopOnSuccess, ContinueOnSuccess:
		if successes > 0 {
			return types.WithSuccess
		}
		return types.WithError
	case StopOnSuccessOrError:
		return first
	default:
		if errors > 0 {
			return types.WithError
		}
		return types.WithSuccess
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p WorkflowPolicy) MarshalText() ([]byte, error) {
	if !p.IsValid() {
		return nil, fmt.Errorf("invalid workflow policy: %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *WorkflowPolicy) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p WorkflowPolicy) MarshalJSON() ([]byte, error) {
	text, err := p.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *WorkflowPolicy) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return err
	}
	return p.UnmarshalText([]byte(text))
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *WorkflowPolicy) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("workflow policy: expected scalar, got %v at line %d", node.Tag, node.Line)
	}
	return p.UnmarshalText([]byte(node.Value))
}

// MarshalYAML implements yaml.Marshaler.
func (p WorkflowPolicy) MarshalYAML() (interface{}, error) {
	return p.String(), nil
}
