package canvas

import (
	"context"
	"sync"
)

// EventLog is the durable backing for a room's event history. Implementations
// must retain at most the configured number of most recent events.
type EventLog interface {
	// Append stores one event, discarding the oldest events beyond the
	// retention limit.
	Append(ctx context.Context, event Event) error
	// Load returns all retained events in append order.
	Load(ctx context.Context) ([]Event, error)
	// Clear discards the whole log.
	Clear(ctx context.Context) error
	Close() error
}

// MemoryLog keeps the event history in process memory. Used when no Redis
// URL is configured; history then lives exactly as long as the actor.
type MemoryLog struct {
	mu        sync.Mutex
	events    []Event
	retention int
}

var _ EventLog = (*MemoryLog)(nil)

func NewMemoryLog(retention int) *MemoryLog {
	return &MemoryLog{retention: retention}
}

func (l *MemoryLog) Append(_ context.Context, event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, event)
	if excess := len(l.events) - l.retention; excess > 0 {
		l.events = append(l.events[:0:0], l.events[excess:]...)
	}
	return nil
}

func (l *MemoryLog) Load(_ context.Context) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out, nil
}

func (l *MemoryLog) Clear(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = nil
	return nil
}

func (l *MemoryLog) Close() error {
	return nil
}
