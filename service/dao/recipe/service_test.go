package recipe

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
	"github.com/viant/tasktree/policy"
	"github.com/viant/tasktree/runtime/execution"
	"github.com/viant/tasktree/runtime/loop"
	"github.com/viant/tasktree/service/meta"
)

const buildRecipe = `
policy: continueOnError
parallelLimit: sequential
tasks:
  - task: success
    name: prepare
  - group:
      name: matrix
      policy: finishAllAndError
      loop: {repeat: 3}
      tasks:
        - task: delay
          input: {duration: 1ms}
  - task: error
    name: expected
    not: true
  - task: delay
    name: slow
    input: {duration: 1h}
    timeout: 5ms
    log: bounded
`

func run(t *testing.T, recipe graph.Group) types.DoneWith {
	l := loop.New()
	var result []types.DoneWith
	execution.NewRun(recipe, l, func(with types.DoneWith) { result = append(result, with) }).Start(context.Background())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for len(result) == 0 {
		require.NoError(t, l.ProcessEvent(ctx))
	}
	return result[0]
}

func TestService_Load(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "build.yaml"), []byte(buildRecipe), 0o644))
	srv := New(WithMetaService(meta.New(nil, "file://"+dir)))

	recipe, err := srv.Load(context.Background(), "build")
	require.NoError(t, err)
	data := recipe.Data()
	assert.Equal(t, "build", data.Name)
	assert.Equal(t, policy.ContinueOnError, data.Policy)
	assert.Equal(t, 1, data.ParallelLimit)
	require.Len(t, recipe.Children(), 4)

	matrix, ok := recipe.Children()[1].(graph.Group)
	require.True(t, ok)
	assert.Equal(t, "matrix", matrix.Name())
	assert.Equal(t, 3, matrix.Data().Loop.Len())
	assert.Equal(t, policy.FinishAllAndError, matrix.Data().Policy)
	assert.Equal(t, 5, graph.CountTasks(recipe))

	assert.Equal(t, types.WithError, run(t, recipe), "timeout fails the last item")

	_, err = srv.Load(context.Background(), "missing.yaml")
	assert.Error(t, err)
}

func TestService_DecodeYAML(t *testing.T) {
	testCases := []struct {
		description string
		yaml        string
		limit       int
		expectErr   bool
		expectName  string
		expectLimit int
		expect      types.DoneWith
	}{
		{
			description: "anonymous recipe",
			yaml:        "tasks:\n  - task: success\n",
			expectName:  "anonymous-",
			expect:      types.WithSuccess,
		},
		{
			description: "default parallel limit",
			yaml:        "name: x\ntasks:\n  - task: success\n  - task: success\n",
			limit:       2,
			expectName:  "x",
			expectLimit: 2,
			expect:      types.WithSuccess,
		},
		{
			description: "or over list loop",
			yaml:        "name: any\npolicy: stopOnSuccess\nparallelLimit: 1\nloop: {list: [a, b]}\ntasks:\n  - task: error\n",
			expectName:  "any",
			expectLimit: 1,
			expect:      types.WithError,
		},
		{description: "unknown factory", yaml: "tasks:\n  - task: teleport\n", expectErr: true},
		{description: "unknown key", yaml: "retries: 3\n", expectErr: true},
		{description: "unknown task key", yaml: "tasks:\n  - task: success\n    retries: 3\n", expectErr: true},
		{description: "task and group", yaml: "tasks:\n  - task: success\n    group: {}\n", expectErr: true},
		{description: "empty item", yaml: "tasks:\n  - name: x\n", expectErr: true},
		{description: "bad policy", yaml: "policy: sometimes\n", expectErr: true},
		{description: "bad loop", yaml: "loop: {repeat: 1, forever: true}\n", expectErr: true},
		{
			description: "timeout and log modifiers on an entry",
			yaml:        "tasks:\n  - task: success\n    timeout: 1s\n    log: step\n",
			expect:      types.WithSuccess,
		},
		{description: "standalone timeout entry", yaml: "tasks:\n  - timeout: 1s\n", expectErr: true},
		{description: "bad timeout", yaml: "tasks:\n  - task: success\n    timeout: soon\n", expectErr: true},
		{description: "unbounded loop without limit", yaml: "loop: {forever: true}\ntasks:\n  - task: success\n", expectErr: true},
		{description: "not a mapping", yaml: "- task: success\n", expectErr: true},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			srv := New(WithParallelLimit(testCase.limit))
			recipe, err := srv.DecodeYAML([]byte(testCase.yaml))
			if testCase.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, recipe.Name(), testCase.expectName)
			assert.Equal(t, testCase.expectLimit, recipe.Data().ParallelLimit)
			assert.Equal(t, testCase.expect, run(t, recipe))
		})
	}
}
