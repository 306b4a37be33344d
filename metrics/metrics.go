// Package metrics exposes task tree activity as Prometheus collectors.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config controls collector naming.
type Config struct {
	Namespace   string            `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	ConstLabels map[string]string `json:"constLabels,omitempty" yaml:"constLabels,omitempty"`
}

// DefaultConfig uses the "tasktree" namespace.
func DefaultConfig() *Config {
	return &Config{Namespace: "tasktree"}
}

// Service owns a registry and the engine collectors.
type Service struct {
	registry     *prometheus.Registry
	runs         *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	tasksStarted *prometheus.CounterVec
	tasksDone    *prometheus.CounterVec
	tasksSkipped *prometheus.CounterVec
	running      *prometheus.GaugeVec
}

// New registers the collectors on a dedicated registry.
func New(cfg *Config) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	labels := prometheus.Labels(cfg.ConstLabels)
	s := &Service{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Name: "runs_total", ConstLabels: labels,
			Help: "Finished task tree runs by recipe and result.",
		}, []string{"recipe", "result"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace, Name: "run_duration_seconds", ConstLabels: labels,
			Help:    "Task tree run duration.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"recipe"}),
		tasksStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Name: "tasks_started_total", ConstLabels: labels,
			Help: "Leaf tasks whose adapter was started.",
		}, []string{"recipe"}),
		tasksDone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Name: "tasks_done_total", ConstLabels: labels,
			Help: "Started leaf tasks by result.",
		}, []string{"recipe", "result"}),
		tasksSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Name: "tasks_skipped_total", ConstLabels: labels,
			Help: "Leaf tasks that never started.",
		}, []string{"recipe"}),
		running: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace, Name: "running_tasks", ConstLabels: labels,
			Help: "Leaf tasks currently in flight.",
		}, []string{"recipe"}),
	}
	for _, collector := range []prometheus.Collector{s.runs, s.runDuration, s.tasksStarted, s.tasksDone, s.tasksSkipped, s.running} {
		if err := s.registry.Register(collector); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}
	return s, nil
}

// Registry returns the registry holding the collectors.
func (s *Service) Registry() *prometheus.Registry { return s.registry }

// Handler serves the registry in the Prometheus exposition format.
func (s *Service) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// TaskStarted records a started leaf task.
func (s *Service) TaskStarted(recipe string) {
	if s == nil {
		return
	}
	s.tasksStarted.WithLabelValues(recipe).Inc()
	s.running.WithLabelValues(recipe).Inc()
}

// TaskDone records a started leaf task finishing with result.
func (s *Service) TaskDone(recipe, result string) {
	if s == nil {
		return
	}
	s.tasksDone.WithLabelValues(recipe, result).Inc()
	s.running.WithLabelValues(recipe).Dec()
}

// TasksSkipped records leaves that never started.
func (s *Service) TasksSkipped(recipe string, count int) {
	if s == nil || count <= 0 {
		return
	}
	s.tasksSkipped.WithLabelValues(recipe).Add(float64(count))
}

// RunDone records a finished run.
func (s *Service) RunDone(recipe, result string, elapsed time.Duration) {
	if s == nil {
		return
	}
	s.runs.WithLabelValues(recipe, result).Inc()
	s.runDuration.WithLabelValues(recipe).Observe(elapsed.Seconds())
}
