package connection

import "context"

// Provider creates live connections for exactly one service type. Providers
// are black boxes to the manager: retry, backoff, and health probing are the
// provider's own business.
type Provider interface {
	// ServiceType returns the service type this provider serves.
	ServiceType() string

	// CreateConnection establishes a new connection with the given id.
	// Settings may be nil, in which case the provider falls back to its own
	// configuration for the id.
	CreateConnection(ctx context.Context, connectionID string, settings Settings) (Connection, error)
}

// Closeable is optionally implemented by providers that hold resources
// beyond their pooled connections.
type Closeable interface {
	Shutdown(ctx context.Context) error
}
