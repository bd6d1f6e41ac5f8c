// Package connection implements the harness connection layer: a typed
// provider registry, a pool of live connections keyed by (service type,
// connection id), and a manager that coordinates both while fanning out
// lifecycle events to attached observers.
//
// The manager is the single authoritative event path. The pool reports
// whether an operation actually created or closed a connection and the
// manager converts that into exactly one event, delivered to observers in
// attachment order.
//
// Providers are opaque factories registered per service type. The manager
// never retries or health-probes a provider; a provider that wants retry or
// circuit breaking wraps it internally (see the resilience package).
package connection
