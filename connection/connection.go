package connection

import "context"

// Settings carries provider-specific connection configuration. The manager
// and pool pass it through to providers unchanged.
type Settings map[string]any

// String returns the string value of a setting, or def when absent.
func (s Settings) String(key, def string) string {
	if v, ok := s[key].(string); ok {
		return v
	}
	return def
}

// Int returns the integer value of a setting, or def when absent.
func (s Settings) Int(key string, def int) int {
	switch v := s[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// Bool returns the boolean value of a setting, or def when absent.
func (s Settings) Bool(key string, def bool) bool {
	if v, ok := s[key].(bool); ok {
		return v
	}
	return def
}

// Connection is an opaque handle to a live remote session. A connection is
// identified by a caller-supplied id plus the service type of the provider
// that created it, and is owned by the pool once registered.
type Connection interface {
	// ID returns the caller-supplied connection id.
	ID() string

	// ServiceType returns the service type tag of the owning provider.
	ServiceType() string

	// IsConnected reports whether the underlying session is established.
	IsConnected() bool

	// Close terminates the underlying session and releases resources.
	Close(ctx context.Context) error
}

// HealthChecker is optionally implemented by connections that can probe the
// remote end.
type HealthChecker interface {
	Healthy(ctx context.Context) bool
}

// Key identifies a pooled connection.
type Key struct {
	ServiceType  string
	ConnectionID string
}

func (k Key) String() string {
	return k.ServiceType + "/" + k.ConnectionID
}
