// Package resilience provides retry and circuit breaker primitives used
// inside service providers. The connection manager itself never retries;
// providers decide how hard to try before reporting a creation failure.
package resilience
