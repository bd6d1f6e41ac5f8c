package observability

// HealthStatus is the reported health state of a connection or the whole
// harness.
type HealthStatus string

const (
	HealthStatusUp       HealthStatus = "up"
	HealthStatusDown     HealthStatus = "down"
	HealthStatusDegraded HealthStatus = "degraded"
)

// Health describes the state of a single connection, keyed by
// "serviceType/connectionID".
type Health struct {
	Name    string            `json:"name"`
	Status  HealthStatus      `json:"status"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// ConnectionUp reports a healthy connection.
func ConnectionUp(name string) Health {
	return Health{Name: name, Status: HealthStatusUp}
}

// ConnectionDown reports an unhealthy connection with an optional reason.
func ConnectionDown(name, message string) Health {
	return Health{Name: name, Status: HealthStatusDown, Message: message}
}

// ServiceHealth aggregates per-connection health into an overall harness
// status.
type ServiceHealth struct {
	Service    string       `json:"service"`
	Status     HealthStatus `json:"status"`
	Version    string       `json:"version,omitempty"`
	Components []Health     `json:"components,omitempty"`
}

// NewServiceHealth creates a ServiceHealth that starts up and degrades as
// components are added.
func NewServiceHealth(service, version string) *ServiceHealth {
	return &ServiceHealth{
		Service: service,
		Status:  HealthStatusUp,
		Version: version,
	}
}

// AddComponent records a connection's health. A down connection takes the
// whole harness down; degraded only lowers an otherwise-up status.
func (sh *ServiceHealth) AddComponent(ch Health) {
	sh.Components = append(sh.Components, ch)

	switch ch.Status {
	case HealthStatusDown:
		sh.Status = HealthStatusDown
	case HealthStatusDegraded:
		if sh.Status != HealthStatusDown {
			sh.Status = HealthStatusDegraded
		}
	}
}

// Down reports whether any component dragged the harness down.
func (sh *ServiceHealth) Down() bool {
	return sh.Status == HealthStatusDown
}
