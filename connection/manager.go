package connection

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/skillsenselab/harnesskit/errors"
	"github.com/skillsenselab/harnesskit/logger"
)

// Manager coordinates the provider registry and the connection pool and is
// the single source of connection lifecycle events.
//
// All methods are safe for concurrent use. Creation of a given (service
// type, connection id) pair is single-flighted so concurrent callers share
// one provider call and one created event.
type Manager struct {
	registry *Registry
	pool     *Pool
	log      *logger.Logger
	flight   singleflight.Group

	mu        sync.RWMutex
	observers []Observer
	ready     bool
}

// NewManager creates a manager around the given registry. A nil registry
// gets a fresh empty one.
func NewManager(registry *Registry) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Manager{
		registry: registry,
		pool:     NewPool(registry),
		log:      logger.WithComponent("connection.manager"),
	}
}

// Registry returns the injected provider registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Pool returns the managed connection pool.
func (m *Manager) Pool() *Pool {
	return m.pool
}

// Initialize marks the manager ready. Calling it again is a no-op.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ready {
		return nil
	}
	m.ready = true
	m.log.Info("connection manager initialized", logger.Fields("providers", m.registry.Len()))
	return nil
}

// Shutdown closes all pooled connections, emits their closed events, and
// clears the ready flag. The manager can be initialized again afterwards.
func (m *Manager) Shutdown(ctx context.Context) error {
	err := m.CloseAllConnections(ctx)

	m.mu.Lock()
	m.ready = false
	m.mu.Unlock()

	m.log.Info("connection manager shut down")
	return err
}

// Ready reports whether Initialize has run since the last Shutdown.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ready
}

// AttachObserver appends the observer to the notification list. Observers
// are notified in attachment order.
func (m *Manager) AttachObserver(o Observer) {
	if o == nil {
		return
	}
	m.mu.Lock()
	m.observers = append(m.observers, o)
	m.mu.Unlock()
}

// DetachObserver removes the first attached occurrence of the observer and
// reports whether anything was removed. Comparison is by identity, so
// ObserverFunc values are never detached and always return false.
func (m *Manager) DetachObserver(o Observer) bool {
	if o == nil {
		return false
	}
	if _, isFunc := o.(ObserverFunc); isFunc {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, attached := range m.observers {
		if _, isFunc := attached.(ObserverFunc); isFunc {
			continue
		}
		if attached == o {
			m.observers = append(m.observers[:i], m.observers[i+1:]...)
			return true
		}
	}
	return false
}

// ObserverCount returns the number of attached observers.
func (m *Manager) ObserverCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.observers)
}

// NotifyObservers delivers the event to every attached observer in
// attachment order. The first observer error aborts delivery to the
// remaining observers and is returned.
func (m *Manager) NotifyObservers(ctx context.Context, event Event) error {
	m.mu.RLock()
	observers := make([]Observer, len(m.observers))
	copy(observers, m.observers)
	m.mu.RUnlock()

	for _, o := range observers {
		if err := o.OnConnectionEvent(ctx, event); err != nil {
			m.log.Error("observer rejected event", logger.ErrorFields("notify", err), logger.Fields(
				logger.FieldEvent, string(event.Type),
				logger.FieldServiceType, event.ServiceType,
				logger.FieldConnectionID, event.ConnectionID,
			))
			return err
		}
	}
	return nil
}

// RegisterProvider registers the provider with the injected registry,
// replacing any previous provider for the same service type.
func (m *Manager) RegisterProvider(p Provider) {
	m.registry.Register(p)
	m.log.Info("provider registered", logger.Fields(logger.FieldServiceType, p.ServiceType()))
}

// Provider returns the registered provider for the service type, if any.
func (m *Manager) Provider(serviceType string) (Provider, bool) {
	return m.registry.Get(serviceType)
}

// CreateConnection creates a connection through the registered provider and
// pools it. An existing connection for the same key is returned as is.
//
// A service type with no registered provider yields errors.NotConfigured; a
// provider failure yields errors.CreationFailed wrapping the cause. Neither
// outcome emits an event or touches the pool. On success exactly one created
// event is delivered; an observer error is logged but does not fail the
// creation.
func (m *Manager) CreateConnection(ctx context.Context, serviceType, connectionID string, settings Settings) (Connection, error) {
	if connectionID == "" {
		connectionID = "default"
	}
	key := Key{ServiceType: serviceType, ConnectionID: connectionID}

	result, err, _ := m.flight.Do(key.String(), func() (interface{}, error) {
		conn, created, err := m.pool.GetOrCreate(ctx, serviceType, connectionID, settings)
		if err != nil {
			return nil, err
		}
		if created {
			m.emit(ctx, NewEvent(EventCreated, serviceType, connectionID))
		}
		return conn, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(Connection), nil
}

// GetConnection returns the pooled connection for the key, creating it when
// absent. It is CreateConnection under a name that reads better at call
// sites that expect the connection to exist already.
func (m *Manager) GetConnection(ctx context.Context, serviceType, connectionID string) (Connection, error) {
	return m.CreateConnection(ctx, serviceType, connectionID, nil)
}

// CloseConnection closes and removes the keyed connection. Closing an
// unknown key is a no-op. A successful close emits one closed event; a
// failed close emits one error event and returns the close error.
func (m *Manager) CloseConnection(ctx context.Context, serviceType, connectionID string) error {
	removed, err := m.pool.Close(ctx, serviceType, connectionID)
	if !removed {
		return nil
	}
	if err != nil {
		m.emit(ctx, NewErrorEvent(serviceType, connectionID, err))
		return err
	}
	m.emit(ctx, NewEvent(EventClosed, serviceType, connectionID))
	return nil
}

// CloseAllConnections closes every pooled connection, emitting one closed
// event per removed connection. It returns the first close error, if any.
func (m *Manager) CloseAllConnections(ctx context.Context) error {
	keys, err := m.pool.CloseAll(ctx)
	for _, key := range keys {
		m.emit(ctx, NewEvent(EventClosed, key.ServiceType, key.ConnectionID))
	}
	return err
}

// Healthy probes the keyed connection. Connections that do not implement
// HealthChecker report their IsConnected flag.
func (m *Manager) Healthy(ctx context.Context, serviceType, connectionID string) (bool, error) {
	conn, ok := m.pool.Get(serviceType, connectionID)
	if !ok {
		return false, errors.NotFound("connection", Key{ServiceType: serviceType, ConnectionID: connectionID}.String())
	}
	if hc, ok := conn.(HealthChecker); ok {
		return hc.Healthy(ctx), nil
	}
	return conn.IsConnected(), nil
}

// emit delivers the event, logging but otherwise swallowing observer
// errors. Lifecycle transitions have already happened when events go out,
// so an observer failure must not roll them back.
func (m *Manager) emit(ctx context.Context, event Event) {
	_ = m.NotifyObservers(ctx, event)
}
