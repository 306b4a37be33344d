package logger

import (
	"bytes"
	"context"
	"testing"

	charmlog "github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevel_ToCharmLevel(t *testing.T) {
	testCases := []struct {
		level    Level
		expected charmlog.Level
	}{
		{level: DebugLevel, expected: charmlog.DebugLevel},
		{level: InfoLevel, expected: charmlog.InfoLevel},
		{level: WarnLevel, expected: charmlog.WarnLevel},
		{level: ErrorLevel, expected: charmlog.ErrorLevel},
		{level: DisabledLevel, expected: disabled},
		{level: Level("verbose"), expected: charmlog.InfoLevel},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, tc.level.ToCharmLevel(), tc.level.String())
	}
}

func TestNew(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		log := New(&Config{Level: InfoLevel, Output: &buf})
		log.Debug("hidden")
		log.With("component", "tree").Info("started", "tasks", 3)
		output := buf.String()
		assert.NotContains(t, output, "hidden")
		assert.Contains(t, output, "started")
		assert.Contains(t, output, "component=tree")
		assert.Contains(t, output, "tasks=3")
	})
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		log := New(&Config{Level: DebugLevel, Output: &buf, JSON: true})
		log.Debug("node done", "result", "success")
		assert.Contains(t, buf.String(), `"msg":"node done"`)
		assert.Contains(t, buf.String(), `"result":"success"`)
	})
	t.Run("disabled", func(t *testing.T) {
		var buf bytes.Buffer
		log := New(&Config{Level: DisabledLevel, Output: &buf})
		log.Error("dropped")
		assert.Empty(t, buf.String())
	})
}

func TestFromContext(t *testing.T) {
	expected := Nop()
	ctx := WithLogger(context.Background(), expected)
	assert.Same(t, expected, FromContext(ctx))

	fallback := FromContext(context.Background())
	require.NotNil(t, fallback)

	ctx = context.WithValue(context.Background(), contextKey{}, "not a logger")
	require.NotNil(t, FromContext(ctx))
}
