package call

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/tasktree/model/types"
	"github.com/viant/tasktree/runtime/loop"
)

type recorder chan types.DoneResult

func (r recorder) ReportDone(result types.DoneResult) { r <- result }

func TestAdapter_Start(t *testing.T) {
	testCases := []struct {
		description string
		call        *Call
		expect      types.DoneResult
		expectErr   bool
	}{
		{
			description: "success",
			call:        &Call{Fn: func(context.Context) error { return nil }},
			expect:      types.DoneSuccess,
		},
		{
			description: "error",
			call:        &Call{Fn: func(context.Context) error { return errors.New("boom") }},
			expect:      types.DoneError,
			expectErr:   true,
		},
		{
			description: "panic",
			call:        &Call{Fn: func(context.Context) error { panic("boom") }},
			expect:      types.DoneError,
			expectErr:   true,
		},
		{
			description: "sync",
			call:        &Call{Fn: func(context.Context) error { return nil }, Sync: true},
			expect:      types.DoneSuccess,
		},
		{
			description: "missing function",
			call:        &Call{},
			expect:      types.DoneError,
			expectErr:   true,
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			sink := make(recorder, 1)
			Adapter{}.Start(context.Background(), testCase.call, sink)
			select {
			case result := <-sink:
				assert.Equal(t, testCase.expect, result)
			case <-time.After(5 * time.Second):
				t.Fatal("no report")
			}
			assert.Equal(t, testCase.expectErr, testCase.call.Err != nil)
		})
	}
}

func TestSleep_Cancel(t *testing.T) {
	item := Sleep(time.Hour)
	handler := item.Handler()
	task := handler.Construct()
	ctx, cancel := context.WithCancel(context.Background())
	sink := make(recorder, 1)
	handler.Start(ctx, task, sink)
	cancel()
	select {
	case result := <-sink:
		assert.Equal(t, types.DoneError, result)
	case <-time.After(5 * time.Second):
		t.Fatal("sleep ignored cancellation")
	}
	require.ErrorIs(t, task.(*Call).Err, context.Canceled)
}

func TestSyncTask(t *testing.T) {
	calls := 0
	item := SyncTask(func() error { calls++; return nil })
	handler := item.Handler()
	sink := make(recorder, 1)
	handler.Start(context.Background(), handler.Construct(), sink)
	assert.Equal(t, types.DoneSuccess, <-sink)
	assert.Equal(t, 1, calls)
}

func TestAdapter_AppliesOnLoop(t *testing.T) {
	l := loop.New()
	ctx := loop.WithLoop(context.Background(), l)
	c := &Call{Fn: func(context.Context) error { return errors.New("boom") }}
	sink := make(recorder, 1)
	Adapter{}.Start(ctx, c, sink)
	assert.NoError(t, c.Err, "outcome is applied by the loop only")

	waitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, l.ProcessEvent(waitCtx))
	assert.Equal(t, types.DoneError, <-sink)
	assert.EqualError(t, c.Err, "boom")
}
