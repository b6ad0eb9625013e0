// Package observability wires OpenTelemetry tracing and metrics for warden.
//
// InitTracer and InitMeter install OTLP/HTTP exporters as the global
// providers; Init does both from a single Config and returns a combined
// shutdown function. Metrics bundles the instruments the toolkit records:
// retry attempts, exhausted retries, supervised slot restarts and
// failures, and cache hits and misses.
package observability
