package tasktree

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/tasktree/model/graph"
	"github.com/viant/tasktree/model/types"
	"github.com/viant/tasktree/service/adapter/call"
	"github.com/viant/tasktree/service/event"
)

func TestConfig_Validate(t *testing.T) {
	testCases := []struct {
		description string
		mutate      func(c *Config)
		expectErr   bool
	}{
		{description: "default", mutate: func(c *Config) {}},
		{description: "debug level", mutate: func(c *Config) { c.Logging.Level = "DEBUG" }},
		{description: "unknown level", mutate: func(c *Config) { c.Logging.Level = "verbose" }, expectErr: true},
		{description: "memory events", mutate: func(c *Config) { c.Events.Vendor = "memory" }},
		{description: "fs events without base", mutate: func(c *Config) { c.Events.Vendor = "fs" }, expectErr: true},
		{description: "unknown vendor", mutate: func(c *Config) { c.Events.Vendor = "kafka" }, expectErr: true},
		{description: "negative limit", mutate: func(c *Config) { c.Recipe.ParallelLimit = -1 }, expectErr: true},
		{description: "metrics without namespace", mutate: func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Namespace = ""
		}, expectErr: true},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			cfg := DefaultConfig()
			testCase.mutate(cfg)
			err := cfg.Validate()
			if testCase.expectErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
	var cfg *Config
	assert.Error(t, cfg.Validate())
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("TASKTREE_TEST_LIMIT", "4")
	dir := t.TempDir()
	location := filepath.Join(dir, "config.yaml")
	content := `logging:
  level: debug
  json: true
metrics:
  enabled: true
  address: ":9191"
recipe:
  baseURL: file:///recipes
  parallelLimit: ${env.TASKTREE_TEST_LIMIT}
`
	require.NoError(t, os.WriteFile(location, []byte(content), 0o644))

	cfg, err := LoadConfig(context.Background(), "file://"+location)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.JSON)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "tasktree", cfg.Metrics.Namespace)
	assert.Equal(t, ":9191", cfg.Metrics.Address)
	assert.Equal(t, 4, cfg.Recipe.ParallelLimit)
	assert.Equal(t, "file:///recipes", cfg.Recipe.BaseURL)

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("events:\n  vendor: kafka\n"), 0o644))
	_, err = LoadConfig(context.Background(), "file://"+invalid)
	assert.Error(t, err)

	_, err = LoadConfig(context.Background(), "file://"+filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestNewFromConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "disabled"
	cfg.Metrics.Enabled = true
	cfg.Events.Vendor = "memory"

	tree, err := NewFromConfig(graph.NewGroup(graph.Named("configured"), call.SyncTask(succeed)), cfg)
	require.NoError(t, err)
	require.NotNil(t, tree.metrics)
	require.NotNil(t, tree.events)
	defer tree.events.Close()

	received := make(chan *event.Event[event.Node], 4)
	require.NoError(t, event.SetListenerOf[event.Node](tree.Events(), func(e *event.Event[event.Node]) { received <- e }))

	actual, err := tree.RunBlocking(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.WithSuccess, actual)

	select {
	case first := <-received:
		assert.Equal(t, event.TypeStarted, first.Context.EventType)
		assert.Equal(t, "configured", first.Context.Name)
	case <-time.After(5 * time.Second):
		t.Fatal("no node event")
	}

	cfg.Events.Vendor = "kafka"
	_, err = NewFromConfig(graph.NewGroup(), cfg)
	assert.Error(t, err)
}
