// Package command runs shell commands as leaf tasks through viant/gosh.
package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/viant/gosh"
	"github.com/viant/gosh/runner"
	"github.com/viant/gosh/runner/local"
	"github.com/viant/tasktree/logger"
	"github.com/viant/tasktree/model/graph"
	"github.com/viant/tasktree/model/types"
	"github.com/viant/tasktree/runtime/loop"
)

// DefaultTimeout bounds each command when Command.Timeout is not set.
const DefaultTimeout = time.Minute

// Executed is the outcome of one command.
type Executed struct {
	Command string `json:"command"`
	Stdout  string `json:"stdout,omitempty"`
	Stderr  string `json:"stderr,omitempty"`
	Status  int    `json:"status"`
}

// Command is the task object: inputs are set before start, typically by a
// setup handler, outputs are read by the done handler.
type Command struct {
	Commands     []string          `json:"commands" yaml:"commands"`
	Directory    string            `json:"directory,omitempty" yaml:"directory,omitempty"`
	Env          map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	AbortOnError *bool             `json:"abortOnError,omitempty" yaml:"abortOnError,omitempty"`
	Timeout      time.Duration     `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	Executed []*Executed `json:"executed,omitempty" yaml:"-"`
	Stdout   string      `json:"stdout,omitempty" yaml:"-"`
	Stderr   string      `json:"stderr,omitempty" yaml:"-"`
	Status   int         `json:"status" yaml:"-"`
	Err      error       `json:"-" yaml:"-"`
}

func (c *Command) abortOnError() bool {
	return c.AbortOnError == nil || *c.AbortOnError
}

func (c *Command) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

// Failed reports whether the command run should be reported as an error.
func (c *Command) Failed() bool {
	return c.Err != nil || c.Status != 0
}

// Adapter starts Command tasks on a dedicated gosh session.
type Adapter struct {
	defaults Command
}

// Construct copies the adapter defaults into a new task.
func (a Adapter) Construct() *Command {
	c := a.defaults
	c.Commands = append([]string(nil), a.defaults.Commands...)
	if a.defaults.Env != nil {
		c.Env = make(map[string]string, len(a.defaults.Env))
		for k, v := range a.defaults.Env {
			c.Env[k] = v
		}
	}
	return &c
}

// Start executes the commands on a new goroutine. The worker runs on a copy
// of c; outputs are copied back on the run loop before the report.
func (a Adapter) Start(ctx context.Context, c *Command, sink types.Sink) {
	if len(c.Commands) == 0 {
		c.Err = fmt.Errorf("command: no commands to run")
		sink.ReportDone(types.DoneError)
		return
	}
	request := c.request()
	go func() {
		request.Err = execute(ctx, request)
		loop.Deliver(ctx, func() {
			c.apply(request)
			if c.Failed() {
				logger.FromContext(ctx).Warn("command failed", "status", c.Status, "stderr", c.Stderr, "error", c.Err)
				sink.ReportDone(types.DoneError)
				return
			}
			sink.ReportDone(types.DoneSuccess)
		})
	}()
}

// Destroy is a no-op; sessions are closed when the run ends.
func (a Adapter) Destroy(*Command) {}

// request copies the inputs of c.
func (c *Command) request() *Command {
	ret := &Command{
		Commands:     append([]string(nil), c.Commands...),
		Directory:    c.Directory,
		AbortOnError: c.AbortOnError,
		Timeout:      c.Timeout,
	}
	if c.Env != nil {
		ret.Env = make(map[string]string, len(c.Env))
		for k, v := range c.Env {
			ret.Env[k] = v
		}
	}
	return ret
}

func (c *Command) apply(executed *Command) {
	c.Executed = executed.Executed
	c.Stdout = executed.Stdout
	c.Stderr = executed.Stderr
	c.Status = executed.Status
	c.Err = executed.Err
}

func execute(ctx context.Context, c *Command) error {
	var options []runner.Option
	if len(c.Env) > 0 {
		options = append(options, runner.WithEnvironment(c.Env))
	}
	session, err := gosh.New(ctx, local.New(options...))
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	if c.Directory != "" {
		if _, status, err := session.Run(ctx, "cd "+quote(c.Directory)); err != nil || status != 0 {
			if err == nil {
				err = fmt.Errorf("exit status %d", status)
			}
			return fmt.Errorf("failed to change directory to %v: %w", c.Directory, err)
		}
	}
	var stdout, stderr strings.Builder
	for _, cmd := range c.Commands {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		executed := run(ctx, session, cmd, c.timeout())
		c.Executed = append(c.Executed, executed)
		if executed.Stdout != "" {
			stdout.WriteString(executed.Stdout)
			stdout.WriteString("\n")
		}
		if executed.Stderr != "" {
			stderr.WriteString(executed.Stderr)
			stderr.WriteString("\n")
		}
		c.Status = executed.Status
		if c.abortOnError() && executed.Status != 0 {
			break
		}
	}
	c.Stdout = strings.TrimSpace(stdout.String())
	c.Stderr = strings.TrimSpace(stderr.String())
	return nil
}

// quote wraps s in single quotes for the shell.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func run(ctx context.Context, session *gosh.Service, command string, timeout time.Duration) *Executed {
	result := &Executed{Command: command}
	started := time.Now()
	stdout, status, err := session.Run(ctx, command, runner.WithTimeout(int(timeout.Milliseconds())))
	if elapsed := time.Since(started); elapsed > timeout && err == nil {
		err = fmt.Errorf("command %v timed out after: %s", command, elapsed)
	}
	if err != nil && status == 0 {
		status = -1
	}
	result.Status = status
	if status == 0 {
		result.Stdout = stdout
		return result
	}
	if stdout == "" && err != nil {
		stdout = err.Error()
	}
	result.Stderr = stdout
	return result
}

// Task builds a command task; commands may be set by a setup handler instead.
func Task(commands []string, options ...graph.TaskOption) graph.TaskItem {
	return graph.NewTask[*Command](Adapter{defaults: Command{Commands: commands}}, options...)
}

// TaskWith builds a command task from a fully configured template.
func TaskWith(template Command, options ...graph.TaskOption) graph.TaskItem {
	return graph.NewTask[*Command](Adapter{defaults: template}, options...)
}
