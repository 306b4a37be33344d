package extension

import (
	"errors"
	"time"

	"github.com/viant/tasktree/model/graph"
	"github.com/viant/tasktree/model/types"
	"github.com/viant/tasktree/service/adapter/call"
	"github.com/viant/tasktree/service/adapter/command"
)

// Builtins returns the built-in factories.
func Builtins() []Factory {
	return []Factory{
		NewFactory("delay", newDelay),
		NewFactory("success", func(spec *Spec) (graph.TaskItem, error) {
			return call.SyncTask(func() error { return nil }, spec.Options()...), nil
		}),
		NewFactory("error", newError),
		NewFactory("command", newCommand),
	}
}

type delayInput struct {
	Duration time.Duration `yaml:"duration"`
	Result   string        `yaml:"result"`
}

// newDelay finishes with result after duration.
func newDelay(spec *Spec) (graph.TaskItem, error) {
	input := &delayInput{}
	if err := spec.Decode(input); err != nil {
		return graph.TaskItem{}, err
	}
	result, err := types.ParseDoneResult(input.Result)
	if err != nil {
		return graph.TaskItem{}, err
	}
	options := spec.Options()
	if len(options) == 0 {
		options = []graph.TaskOption{graph.TaskName("delay")}
	}
	return graph.TimeoutTask(input.Duration, result, options...), nil
}

type errorInput struct {
	Message string `yaml:"message"`
}

func newError(spec *Spec) (graph.TaskItem, error) {
	input := &errorInput{Message: "error task"}
	if err := spec.Decode(input); err != nil {
		return graph.TaskItem{}, err
	}
	return call.SyncTask(func() error { return errors.New(input.Message) }, spec.Options()...), nil
}

func newCommand(spec *Spec) (graph.TaskItem, error) {
	template := command.Command{}
	if err := spec.Decode(&template); err != nil {
		return graph.TaskItem{}, err
	}
	if len(template.Commands) == 0 {
		return graph.TaskItem{}, errors.New("command task requires commands")
	}
	return command.TaskWith(template, spec.Options()...), nil
}
