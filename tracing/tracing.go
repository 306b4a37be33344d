package tracing

import (
	"context"
	"io"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentation = "github.com/viant/tasktree"

// Init configures the global provider with the stdout exporter writing to
// outputFile, or os.Stdout when empty. The first successful call wins.
func Init(serviceName, serviceVersion, outputFile string) error {
	var w io.Writer = os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return err
		}
		w = f
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return err
	}
	return installProvider(serviceName, serviceVersion, exporter)
}

// InitWithExporter configures the global provider with exporter. The first
// successful call wins.
func InitWithExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) error {
	return installProvider(serviceName, serviceVersion, exporter)
}

var (
	providerOnce sync.Once
	providerErr  error
)

func installProvider(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) error {
	if exporter == nil {
		return nil
	}
	providerOnce.Do(func() {
		provider, err := NewProvider(serviceName, serviceVersion, exporter)
		if err != nil {
			providerErr = err
			return
		}
		otel.SetTracerProvider(provider)
	})
	return providerErr
}

// NewProvider builds a provider exporting synchronously to exporter.
func NewProvider(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
		sdktrace.WithResource(res),
	), nil
}

// Tracer starts spans from a specific provider.
type Tracer struct {
	provider trace.TracerProvider
}

// NewTracer returns a tracer using provider; nil means the global provider,
// resolved at each span start.
func NewTracer(provider trace.TracerProvider) *Tracer {
	return &Tracer{provider: provider}
}

func (t *Tracer) tracer() trace.Tracer {
	if t == nil || t.provider == nil {
		return otel.Tracer(instrumentation)
	}
	return t.provider.Tracer(instrumentation)
}

// StartSpan starts a child span of the span carried by ctx.
func (t *Tracer) StartSpan(ctx context.Context, name, kind string) (context.Context, *Span) {
	ctx, span := t.tracer().Start(ctx, name, trace.WithSpanKind(spanKind(kind)))
	return ctx, &Span{span: span}
}

// StartSpan starts a span from the global provider.
func StartSpan(ctx context.Context, name, kind string) (context.Context, *Span) {
	return (*Tracer)(nil).StartSpan(ctx, name, kind)
}

func spanKind(kind string) trace.SpanKind {
	switch kind {
	case "SERVER":
		return trace.SpanKindServer
	case "CLIENT":
		return trace.SpanKindClient
	case "PRODUCER":
		return trace.SpanKindProducer
	case "CONSUMER":
		return trace.SpanKindConsumer
	}
	return trace.SpanKindInternal
}

// Span wraps an OpenTelemetry span.
type Span struct {
	span trace.Span
}

// WithAttributes attaches string attributes to the span.
func (s *Span) WithAttributes(attrs map[string]string) *Span {
	if s == nil || len(attrs) == 0 {
		return s
	}
	otelAttrs := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		otelAttrs = append(otelAttrs, attribute.String(k, v))
	}
	s.span.SetAttributes(otelAttrs...)
	return s
}

// WithInt attaches an integer attribute to the span.
func (s *Span) WithInt(key string, value int) *Span {
	if s == nil {
		return s
	}
	s.span.SetAttributes(attribute.Int(key, value))
	return s
}

// AddEvent records a named event on the span.
func (s *Span) AddEvent(name string, attrs map[string]string) {
	if s == nil {
		return
	}
	otelAttrs := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		otelAttrs = append(otelAttrs, attribute.String(k, v))
	}
	s.span.AddEvent(name, trace.WithAttributes(otelAttrs...))
}

// SetStatus records an error status on the span, or OK when err is nil.
func (s *Span) SetStatus(err error) {
	if s == nil {
		return
	}
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
		return
	}
	s.span.SetStatus(codes.Ok, "")
}

// EndSpan records the status and finishes the span.
func EndSpan(sp *Span, err error) {
	if sp == nil {
		return
	}
	sp.SetStatus(err)
	sp.span.End()
}

// WithSpan attaches the span to ctx.
func WithSpan(ctx context.Context, sp *Span) context.Context {
	if sp == nil {
		return ctx
	}
	return trace.ContextWithSpan(ctx, sp.span)
}

// SpanFromContext returns the span carried by ctx, if it is recording.
func SpanFromContext(ctx context.Context) (*Span, bool) {
	sp := trace.SpanFromContext(ctx)
	if sp == nil || !sp.SpanContext().IsValid() {
		return nil, false
	}
	return &Span{span: sp}, true
}
