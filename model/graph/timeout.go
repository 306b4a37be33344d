package graph

import (
	"context"
	"time"

	"github.com/viant/tasktree/model/types"
)

// Timer is the task object of a timeout task.
type Timer struct {
	Duration time.Duration
	Result   types.DoneResult
	timer    *time.Timer
}

type timeoutAdapter struct {
	duration time.Duration
	result   types.DoneResult
}

func (a timeoutAdapter) Construct() *Timer {
	return &Timer{Duration: a.duration, Result: a.result}
}

func (a timeoutAdapter) Start(_ context.Context, task *Timer, sink types.Sink) {
	result := task.Result
	task.timer = time.AfterFunc(task.Duration, func() { sink.ReportDone(result) })
}

func (a timeoutAdapter) Destroy(task *Timer) {
	if task != nil && task.timer != nil {
		task.timer.Stop()
	}
}

// TimeoutTask is a leaf that finishes after d with result (success by default).
func TimeoutTask(d time.Duration, result types.DoneResult, options ...TaskOption) TaskItem {
	options = append(options, defaultTaskName("timeout"))
	return NewTask[*Timer](timeoutAdapter{duration: d, result: result}, options...)
}
