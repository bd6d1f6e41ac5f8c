package testutil

import (
	"context"
	"sync"

	"github.com/skillsenselab/harnesskit/connection"
)

// FakeConnection is a scriptable in-memory connection.
type FakeConnection struct {
	ConnID   string
	Service  string
	CloseErr error

	mu        sync.Mutex
	connected bool
	closes    int
}

// NewFakeConnection creates a connected fake.
func NewFakeConnection(serviceType, id string) *FakeConnection {
	return &FakeConnection{ConnID: id, Service: serviceType, connected: true}
}

func (c *FakeConnection) ID() string          { return c.ConnID }
func (c *FakeConnection) ServiceType() string { return c.Service }

func (c *FakeConnection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *FakeConnection) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.closes++
	return c.CloseErr
}

// Closes returns how many times Close was called.
func (c *FakeConnection) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// FakeProvider creates FakeConnections. CreateErr, when set, fails every
// creation; FailFor fails only the named connection id.
type FakeProvider struct {
	Service   string
	CreateErr error
	FailFor   string

	mu       sync.Mutex
	calls    int
	shutdown int
	created  []*FakeConnection
}

// NewFakeProvider creates a provider for the given service type.
func NewFakeProvider(serviceType string) *FakeProvider {
	return &FakeProvider{Service: serviceType}
}

func (p *FakeProvider) ServiceType() string { return p.Service }

func (p *FakeProvider) CreateConnection(ctx context.Context, id string, settings connection.Settings) (connection.Connection, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	if p.CreateErr != nil {
		return nil, p.CreateErr
	}
	if p.FailFor != "" && id == p.FailFor {
		return nil, &failError{id: id}
	}

	conn := NewFakeConnection(p.Service, id)
	p.mu.Lock()
	p.created = append(p.created, conn)
	p.mu.Unlock()
	return conn, nil
}

// Shutdown records the call so tests can assert provider teardown.
func (p *FakeProvider) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shutdown++
	return nil
}

// Calls returns how many creations were attempted.
func (p *FakeProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Shutdowns returns how many times Shutdown was called.
func (p *FakeProvider) Shutdowns() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shutdown
}

// Created returns the connections this provider handed out.
func (p *FakeProvider) Created() []*FakeConnection {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*FakeConnection, len(p.created))
	copy(out, p.created)
	return out
}

type failError struct {
	id string
}

func (e *failError) Error() string {
	return "fake provider refused connection " + e.id
}

// EventRecorder captures delivered events in order.
type EventRecorder struct {
	// Err, when set, is returned from every delivery.
	Err error

	mu     sync.Mutex
	events []connection.Event
}

func (r *EventRecorder) OnConnectionEvent(ctx context.Context, event connection.Event) error {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	return r.Err
}

// Events returns a snapshot of the recorded events.
func (r *EventRecorder) Events() []connection.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]connection.Event, len(r.events))
	copy(out, r.events)
	return out
}

// CountByType tallies recorded events of the given type.
func (r *EventRecorder) CountByType(eventType connection.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

var _ connection.Connection = (*FakeConnection)(nil)
var _ connection.Provider = (*FakeProvider)(nil)
var _ connection.Closeable = (*FakeProvider)(nil)
var _ connection.Observer = (*EventRecorder)(nil)
