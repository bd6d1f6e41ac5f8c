// Package observability wires the harness into OpenTelemetry: OTLP meter
// and tracer providers, connection lifecycle metric instruments, and an
// observer that records connection events as metrics.
package observability
