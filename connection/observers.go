package connection

import (
	"context"
	"sync"

	"github.com/skillsenselab/harnesskit/logger"
)

// LoggingObserver writes every lifecycle event to the structured log.
type LoggingObserver struct {
	log *logger.Logger
}

// NewLoggingObserver creates a logging observer. A nil logger uses the
// global one.
func NewLoggingObserver(log *logger.Logger) *LoggingObserver {
	if log == nil {
		log = logger.WithComponent("connection.events")
	}
	return &LoggingObserver{log: log}
}

func (o *LoggingObserver) OnConnectionEvent(ctx context.Context, event Event) error {
	fields := logger.Fields(
		logger.FieldEvent, string(event.Type),
		logger.FieldServiceType, event.ServiceType,
		logger.FieldConnectionID, event.ConnectionID,
	)
	switch event.Type {
	case EventError:
		fields[logger.FieldError] = event.Err
		o.log.Error("connection error", fields)
	case EventClosed:
		o.log.Info("connection closed", fields)
	default:
		o.log.Info("connection created", fields)
	}
	return nil
}

// CountingObserver tallies events per connection key and event type. It is
// the in-memory counterpart of the OpenTelemetry-backed observer in the
// observability package and is handy in tests and health endpoints.
type CountingObserver struct {
	mu     sync.Mutex
	counts map[Key]map[EventType]int
}

// NewCountingObserver creates an observer with zeroed counters.
func NewCountingObserver() *CountingObserver {
	return &CountingObserver{counts: make(map[Key]map[EventType]int)}
}

func (o *CountingObserver) OnConnectionEvent(ctx context.Context, event Event) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	key := event.Key()
	if o.counts[key] == nil {
		o.counts[key] = make(map[EventType]int)
	}
	o.counts[key][event.Type]++
	return nil
}

// Count returns how many events of the given type were seen for the key.
func (o *CountingObserver) Count(serviceType, connectionID string, eventType EventType) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.counts[Key{ServiceType: serviceType, ConnectionID: connectionID}][eventType]
}

// Total returns how many events of the given type were seen across all keys.
func (o *CountingObserver) Total(eventType EventType) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	total := 0
	for _, byType := range o.counts {
		total += byType[eventType]
	}
	return total
}

// HealthObserver tracks which connections are currently believed live,
// derived purely from the event stream: created marks a key up, closed and
// error mark it down.
type HealthObserver struct {
	mu    sync.RWMutex
	state map[Key]bool
}

// NewHealthObserver creates an observer with no tracked connections.
func NewHealthObserver() *HealthObserver {
	return &HealthObserver{state: make(map[Key]bool)}
}

func (o *HealthObserver) OnConnectionEvent(ctx context.Context, event Event) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch event.Type {
	case EventCreated:
		o.state[event.Key()] = true
	case EventClosed:
		delete(o.state, event.Key())
	case EventError:
		o.state[event.Key()] = false
	}
	return nil
}

// Healthy reports the tracked state for the key. The second result is false
// when the key has never produced a created event or was since closed.
func (o *HealthObserver) Healthy(serviceType, connectionID string) (bool, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	up, tracked := o.state[Key{ServiceType: serviceType, ConnectionID: connectionID}]
	return up, tracked
}

// Snapshot returns a copy of the tracked connection states.
func (o *HealthObserver) Snapshot() map[Key]bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	snap := make(map[Key]bool, len(o.state))
	for key, up := range o.state {
		snap[key] = up
	}
	return snap
}
