// Package errors provides unified error handling for the harness with
// machine-readable codes and retryable detection.
package errors
