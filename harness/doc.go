// Package harness assembles the full connection stack from configuration:
// logger, provider registry, connection manager, built-in observers, and the
// service providers for every enabled service block. It is the entry point
// embedding applications use; the lower-level packages remain usable on
// their own.
package harness
