// Package sink provides audit sink implementations behind the single
// "write one audit record" contract the pipeline depends on.
package sink

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"usergate/internal/audit"
)

// Memory keeps audit records in process. It backs tests and single-instance
// development deployments where durability is not required.
type Memory struct {
	mu     sync.RWMutex
	events []storedEvent
}

type storedEvent struct {
	id    string
	event audit.Event
}

func NewMemory() *Memory {
	return &Memory{}
}

// Write appends the event and returns its generated id.
func (m *Memory) Write(_ context.Context, event audit.Event) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	m.events = append(m.events, storedEvent{id: id, event: event})
	return id, nil
}

// BySubject returns all recorded events for one subject, oldest first.
func (m *Memory) BySubject(subject string) []audit.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []audit.Event
	for _, se := range m.events {
		if se.event.Subject == subject {
			out = append(out, se.event)
		}
	}
	return out
}

// Len reports the number of stored events.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}
