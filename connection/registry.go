package connection

import (
	"sort"
	"sync"
)

// Registry holds connection providers keyed by service type. Registries are
// plain values injected into the manager; there is no process-wide registry.
//
// Registering a provider for a service type that already has one replaces
// the previous provider.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register stores the provider under its service type, replacing any
// previous registration for that type.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ServiceType()] = p
}

// Get returns the provider for the service type, if one is registered.
func (r *Registry) Get(serviceType string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[serviceType]
	return p, ok
}

// ServiceTypes returns the registered service types in sorted order.
func (r *Registry) ServiceTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.providers))
	for st := range r.providers {
		types = append(types, st)
	}
	sort.Strings(types)
	return types
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}
