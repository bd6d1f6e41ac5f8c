// Package logger provides structured logging for the harness on top of
// zerolog. It supports console and JSON output, component-tagged sub-loggers,
// and a package-level global logger for code that has no logger injected.
package logger
