// Package tracing wraps OpenTelemetry so that the engine can open one span per
// tree run and per node without importing the SDK everywhere. Spans are no-ops
// until a provider is installed with Init, InitWithExporter or NewTracer.
package tracing
