// Package tracer provides distributed tracing for Discovery.
//
// This package holds the tracing API without an OpenTelemetry backend:
//
//   - otel.go: Provider, whose New and Shutdown do nothing, and
//     StartSpan, which returns a no-op span
//
// Features (planned):
//
//   - Span creation and propagation
//   - Context injection/extraction
//   - Multiple exporter support (Jaeger, OTLP)
//   - Sampling configuration
//
// Note: This package is currently a placeholder for future implementation.
package tracer
