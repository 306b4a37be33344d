package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService(t *testing.T) {
	service, err := New(nil)
	require.NoError(t, err)

	service.TaskStarted("build")
	service.TaskStarted("build")
	service.TaskDone("build", "success")
	service.TasksSkipped("build", 3)
	service.TasksSkipped("build", 0)
	service.RunDone("build", "error", 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(service.tasksStarted.WithLabelValues("build")))
	assert.Equal(t, 1.0, testutil.ToFloat64(service.running.WithLabelValues("build")))
	assert.Equal(t, 1.0, testutil.ToFloat64(service.tasksDone.WithLabelValues("build", "success")))
	assert.Equal(t, 3.0, testutil.ToFloat64(service.tasksSkipped.WithLabelValues("build")))
	assert.Equal(t, 1.0, testutil.ToFloat64(service.runs.WithLabelValues("build", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(service.runDuration))

	recorder := httptest.NewRecorder()
	service.Handler().ServeHTTP(recorder, httptest.NewRequest("GET", "/metrics", nil))
	body := recorder.Body.String()
	assert.True(t, strings.Contains(body, "tasktree_tasks_started_total"), body)
}

func TestService_Nil(t *testing.T) {
	var service *Service
	service.TaskStarted("x")
	service.TaskDone("x", "success")
	service.TasksSkipped("x", 1)
	service.RunDone("x", "success", time.Second)
}

func TestNew_ConstLabels(t *testing.T) {
	service, err := New(&Config{Namespace: "custom", ConstLabels: map[string]string{"env": "test"}})
	require.NoError(t, err)
	service.TaskStarted("r")
	families, err := service.Registry().Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
	assert.True(t, strings.HasPrefix(families[0].GetName(), "custom_"))
}
