package connection

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType classifies a connection lifecycle event.
type EventType string

const (
	// EventCreated is emitted once when a connection is created and pooled.
	EventCreated EventType = "created"

	// EventClosed is emitted once when a pooled connection is closed and
	// removed.
	EventClosed EventType = "closed"

	// EventError is emitted when an operation on an existing connection
	// fails, for example a close that returned an error.
	EventError EventType = "error"
)

// Event describes a single connection lifecycle transition. Events are
// emitted by the manager only; no other component notifies observers.
type Event struct {
	// ID uniquely identifies this event instance.
	ID string

	// Type is the lifecycle transition that occurred.
	Type EventType

	// ServiceType is the service type of the connection's provider.
	ServiceType string

	// ConnectionID is the id of the affected connection.
	ConnectionID string

	// Err holds the error message for EventError events, empty otherwise.
	Err string

	// Timestamp is when the event was emitted.
	Timestamp time.Time
}

// NewEvent builds an event for the given connection key.
func NewEvent(eventType EventType, serviceType, connectionID string) Event {
	return Event{
		ID:           uuid.NewString(),
		Type:         eventType,
		ServiceType:  serviceType,
		ConnectionID: connectionID,
		Timestamp:    time.Now().UTC(),
	}
}

// NewErrorEvent builds an EventError event carrying the error message.
func NewErrorEvent(serviceType, connectionID string, err error) Event {
	e := NewEvent(EventError, serviceType, connectionID)
	if err != nil {
		e.Err = err.Error()
	}
	return e
}

// Key returns the pool key of the affected connection.
func (e Event) Key() Key {
	return Key{ServiceType: e.ServiceType, ConnectionID: e.ConnectionID}
}

// Observer receives connection lifecycle events. Observers are invoked
// sequentially in attachment order; an observer returning an error aborts
// delivery to the observers after it.
type Observer interface {
	OnConnectionEvent(ctx context.Context, event Event) error
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, event Event) error

func (f ObserverFunc) OnConnectionEvent(ctx context.Context, event Event) error {
	return f(ctx, event)
}
