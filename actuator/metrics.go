// Package actuator exposes operational views of the service: health, build info and counters.
package actuator

import (
	"context"
	"sync/atomic"

	"task-lifecycle-api/events"
)

// Metrics counts task events. It is registered on the event bus as a listener.
type Metrics struct {
	created   atomic.Uint64
	assigned  atomic.Uint64
	completed atomic.Uint64
	deleted   atomic.Uint64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) Handle(_ context.Context, e events.Event) error {
	switch e.Type {
	case events.TaskCreated:
		m.created.Add(1)
	case events.TaskAssigned:
		m.assigned.Add(1)
	case events.TaskCompleted:
		m.completed.Add(1)
	case events.TaskDeleted:
		m.deleted.Add(1)
	}
	return nil
}

type Counters struct {
	TasksCreated   uint64 `json:"tasks.created"`
	TasksAssigned  uint64 `json:"tasks.assigned"`
	TasksCompleted uint64 `json:"tasks.completed"`
	TasksDeleted   uint64 `json:"tasks.deleted"`
}

func (m *Metrics) Snapshot() Counters {
	return Counters{
		TasksCreated:   m.created.Load(),
		TasksAssigned:  m.assigned.Load(),
		TasksCompleted: m.completed.Load(),
		TasksDeleted:   m.deleted.Load(),
	}
}
