package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is the unified harness error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// CodeOf extracts the error code from err, or ErrCodeInternal if err carries none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether err is an AppError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Code == code
}

// --- Common Error Constructors ---

// NotConfigured creates an AppError for a service type with no registered provider.
func NotConfigured(serviceType string) *AppError {
	return &AppError{
		Code: ErrCodeNotConfigured, Message: fmt.Sprintf("no provider registered for service type %q", serviceType),
		Retryable: false,
		Details:   map[string]any{"service_type": serviceType},
	}
}

// CreationFailed creates an AppError for a provider that failed to create a connection.
// The provider failure message is preserved in the cause.
func CreationFailed(serviceType, connectionID string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeCreationFailed, Message: fmt.Sprintf("creating connection %q for service type %q failed", connectionID, serviceType),
		Retryable: true, Cause: cause,
		Details: map[string]any{"service_type": serviceType, "connection_id": connectionID},
	}
}

// ConnectionFailed creates an AppError for a failed connection to a remote service.
func ConnectionFailed(service string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeConnectionFailed, Message: fmt.Sprintf("unable to connect to %s", service),
		Retryable: true, Cause: cause,
		Details: map[string]any{"service": service},
	}
}

// NotConnected creates an AppError for an operation on an unestablished connection.
func NotConnected(service string) *AppError {
	return &AppError{
		Code: ErrCodeNotConnected, Message: fmt.Sprintf("%s is not connected", service),
		Retryable: false,
		Details:   map[string]any{"service": service},
	}
}

// Timeout creates an AppError for an operation that timed out.
func Timeout(operation string) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: fmt.Sprintf("operation %q timed out", operation),
		Retryable: true,
		Details:   map[string]any{"operation": operation},
	}
}

// NotFound creates an AppError for a resource that was not found.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("%s not found", resource),
		Retryable: false, Details: details,
	}
}

// InvalidInput creates an AppError for invalid input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("invalid input: %s", reason),
		Retryable: false, Details: details,
	}
}

// QueryFailed creates an AppError for a failed database query.
func QueryFailed(cause error) *AppError {
	return &AppError{
		Code: ErrCodeQueryFailed, Message: "query execution failed",
		Retryable: true, Cause: cause,
	}
}

// Unauthorized creates an AppError for unauthorized access.
func Unauthorized(reason string) *AppError {
	if reason == "" {
		reason = "authentication required"
	}
	return &AppError{
		Code: ErrCodeUnauthorized, Message: reason,
		Retryable: false,
	}
}

// Internal creates an AppError for an unexpected internal error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "an unexpected error occurred",
		Retryable: false, Cause: cause,
	}
}
