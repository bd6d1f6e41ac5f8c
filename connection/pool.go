package connection

import (
	"context"
	"sync"

	"github.com/skillsenselab/harnesskit/errors"
	"github.com/skillsenselab/harnesskit/logger"
)

// Pool stores live connections keyed by (service type, connection id) and
// creates missing ones through an injected provider registry.
//
// The pool does not notify observers. GetOrCreate and Close report whether
// they actually created or removed a connection so the caller (the manager)
// can emit the corresponding event exactly once.
type Pool struct {
	registry *Registry
	log      *logger.Logger

	mu    sync.RWMutex
	conns map[Key]Connection
}

// NewPool creates an empty pool backed by the given registry.
func NewPool(registry *Registry) *Pool {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Pool{
		registry: registry,
		log:      logger.WithComponent("connection.pool"),
		conns:    make(map[Key]Connection),
	}
}

// Get returns the pooled connection for the key, if present.
func (p *Pool) Get(serviceType, connectionID string) (Connection, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	conn, ok := p.conns[Key{ServiceType: serviceType, ConnectionID: connectionID}]
	return conn, ok
}

// GetOrCreate returns the pooled connection for the key, creating it through
// the registered provider when absent. The created flag reports whether this
// call built a new connection.
//
// A missing provider yields errors.NotConfigured; a provider failure yields
// errors.CreationFailed wrapping the cause. Neither outcome changes the pool.
func (p *Pool) GetOrCreate(ctx context.Context, serviceType, connectionID string, settings Settings) (Connection, bool, error) {
	key := Key{ServiceType: serviceType, ConnectionID: connectionID}

	p.mu.RLock()
	conn, ok := p.conns[key]
	p.mu.RUnlock()
	if ok {
		return conn, false, nil
	}

	provider, ok := p.registry.Get(serviceType)
	if !ok {
		p.log.Warn("no provider registered", logger.ConnFields(serviceType, connectionID))
		return nil, false, errors.NotConfigured(serviceType)
	}

	created, err := provider.CreateConnection(ctx, connectionID, settings)
	if err != nil {
		p.log.Error("connection creation failed", logger.ErrorFields("create", err), logger.ConnFields(serviceType, connectionID))
		return nil, false, errors.CreationFailed(serviceType, connectionID, err)
	}

	p.mu.Lock()
	if existing, ok := p.conns[key]; ok {
		// Lost the race to a concurrent creator. Keep the pooled one.
		p.mu.Unlock()
		_ = created.Close(ctx)
		return existing, false, nil
	}
	p.conns[key] = created
	p.mu.Unlock()

	p.log.Debug("connection pooled", logger.ConnFields(serviceType, connectionID))
	return created, true, nil
}

// Add registers an externally created connection, replacing any existing
// entry for the same key.
func (p *Pool) Add(conn Connection) {
	key := Key{ServiceType: conn.ServiceType(), ConnectionID: conn.ID()}
	p.mu.Lock()
	p.conns[key] = conn
	p.mu.Unlock()
}

// Close removes the keyed connection from the pool and closes it. The
// removed flag reports whether a connection was present; closing an absent
// key is a no-op.
func (p *Pool) Close(ctx context.Context, serviceType, connectionID string) (bool, error) {
	key := Key{ServiceType: serviceType, ConnectionID: connectionID}

	p.mu.Lock()
	conn, ok := p.conns[key]
	if ok {
		delete(p.conns, key)
	}
	p.mu.Unlock()
	if !ok {
		return false, nil
	}

	if err := conn.Close(ctx); err != nil {
		p.log.Error("connection close failed", logger.ErrorFields("close", err), logger.ConnFields(serviceType, connectionID))
		return true, err
	}
	return true, nil
}

// CloseAll closes every pooled connection and empties the pool. It returns
// the keys that were removed and the first close error encountered, if any.
// Close errors do not stop the sweep.
func (p *Pool) CloseAll(ctx context.Context) ([]Key, error) {
	p.mu.Lock()
	conns := p.conns
	p.conns = make(map[Key]Connection)
	p.mu.Unlock()

	keys := make([]Key, 0, len(conns))
	var firstErr error
	for key, conn := range conns {
		if err := conn.Close(ctx); err != nil {
			p.log.Error("connection close failed", logger.ErrorFields("close", err), logger.ConnFields(key.ServiceType, key.ConnectionID))
			if firstErr == nil {
				firstErr = err
			}
		}
		keys = append(keys, key)
	}
	return keys, firstErr
}

// Len returns the number of pooled connections.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.conns)
}

// Keys returns a snapshot of the pooled connection keys.
func (p *Pool) Keys() []Key {
	p.mu.RLock()
	defer p.mu.RUnlock()
	keys := make([]Key, 0, len(p.conns))
	for key := range p.conns {
		keys = append(keys, key)
	}
	return keys
}

// All returns a snapshot of the pooled connections by key.
func (p *Pool) All() map[Key]Connection {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[Key]Connection, len(p.conns))
	for key, conn := range p.conns {
		out[key] = conn
	}
	return out
}
