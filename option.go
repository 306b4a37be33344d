package tasktree

import (
	"github.com/viant/tasktree/logger"
	"github.com/viant/tasktree/metrics"
	"github.com/viant/tasktree/runtime/execution"
	"github.com/viant/tasktree/runtime/loop"
	"github.com/viant/tasktree/service/event"
	"github.com/viant/tasktree/tracing"
	"go.opentelemetry.io/otel/trace"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option configures a TaskTree.
type Option func(t *TaskTree)

// WithLoop runs the tree on l; by default every tree owns a new loop.
func WithLoop(l *loop.Loop) Option {
	return func(t *TaskTree) {
		if l != nil {
			t.loop = l
		}
	}
}

// WithName sets the run name used in logs, spans and metrics labels.
func WithName(name string) Option {
	return func(t *TaskTree) { t.name = name }
}

// WithLogger sets the logger
func WithLogger(log logger.Logger) Option {
	return func(t *TaskTree) {
		if log != nil {
			t.log = log
			t.logSet = true
		}
	}
}

// WithMetrics records run and task counters on service.
func WithMetrics(service *metrics.Service) Option {
	return func(t *TaskTree) { t.metrics = service }
}

// WithObservers registers node lifecycle observers.
func WithObservers(observers ...execution.Observer) Option {
	return func(t *TaskTree) {
		t.observers = append(t.observers, observers...)
	}
}

// WithEventService publishes node started/done events to service.
func WithEventService(service *event.Service) Option {
	return func(t *TaskTree) { t.events = service }
}

// WithTracer uses provider for run and node spans instead of the global one.
func WithTracer(provider trace.TracerProvider) Option {
	return func(t *TaskTree) { t.tracer = tracing.NewTracer(provider) }
}

// WithTracing configures OpenTelemetry tracing. If outputFile is empty the
// stdout exporter is used; otherwise traces are written to the supplied file
// path. The first successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(t *TaskTree) {
		if err := tracing.Init(serviceName, serviceVersion, outputFile); err != nil {
			t.log.Warn("tracing init failed", "err", err)
		}
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom
// SpanExporter, for example OTLP, Jaeger or Zipkin.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(t *TaskTree) {
		if err := tracing.InitWithExporter(serviceName, serviceVersion, exporter); err != nil {
			t.log.Warn("tracing init failed", "err", err)
		}
	}
}
