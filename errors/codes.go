package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Connection lifecycle errors.
const (
	// ErrCodeNotConfigured indicates no provider is registered for a service type.
	ErrCodeNotConfigured ErrorCode = "NOT_CONFIGURED"
	// ErrCodeCreationFailed indicates a provider failed to create a connection.
	ErrCodeCreationFailed ErrorCode = "CREATION_FAILED"
	// ErrCodeConnectionFailed indicates a failed connection to a remote service.
	ErrCodeConnectionFailed ErrorCode = "CONNECTION_FAILED"
	// ErrCodeNotConnected indicates an operation on a connection that is not established.
	ErrCodeNotConnected ErrorCode = "NOT_CONNECTED"
	// ErrCodeTimeout indicates the operation timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
)

// Resource and input errors.
const (
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeQueryFailed indicates a database query failed.
	ErrCodeQueryFailed ErrorCode = "QUERY_FAILED"
	// ErrCodeUnauthorized indicates the request is unauthorized.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeConnectionFailed: true,
	ErrCodeCreationFailed:   true,
	ErrCodeTimeout:          true,
	ErrCodeQueryFailed:      true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
