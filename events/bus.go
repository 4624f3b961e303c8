package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// Listener reacts to one event. Returned errors are logged by the bus and go no further.
type Listener interface {
	Handle(ctx context.Context, e Event) error
}

type ListenerFunc func(ctx context.Context, e Event) error

func (f ListenerFunc) Handle(ctx context.Context, e Event) error { return f(ctx, e) }

// Publisher is the side of the bus the service sees.
type Publisher interface {
	Publish(e Event) bool
}

type subscription struct {
	name     string
	listener Listener
}

// Bus queues events on a buffered channel and hands them to listeners from a single goroutine,
// so every listener sees events in publish order and in registration order.
type Bus struct {
	queue chan Event
	done  chan struct{}

	mu        sync.RWMutex
	listeners []subscription
	closed    bool

	published atomic.Uint64
	dropped   atomic.Uint64
	failures  atomic.Uint64
}

var _ Publisher = (*Bus)(nil)

func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 1
	}
	b := &Bus{
		queue: make(chan Event, buffer),
		done:  make(chan struct{}),
	}
	go b.dispatch()
	return b
}

func (b *Bus) Subscribe(name string, l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, subscription{name: name, listener: l})
}

// Publish enqueues without blocking. It reports false when the event was dropped
// because the queue is full or the bus is closed.
func (b *Bus) Publish(e Event) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.dropped.Add(1)
		return false
	}
	select {
	case b.queue <- e:
		b.published.Add(1)
		return true
	default:
		b.dropped.Add(1)
		log.WithFields(log.Fields{"event_type": e.Type, "task_id": e.TaskID}).Warn("Event queue full, dropping event")
		return false
	}
}

// Close stops intake and waits until queued events have been delivered or ctx expires.
func (b *Bus) Close(ctx context.Context) error {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.queue)
	}
	b.mu.Unlock()

	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event bus did not drain: %w", ctx.Err())
	}
}

type BusStats struct {
	Published uint64 `json:"published"`
	Dropped   uint64 `json:"dropped"`
	Failures  uint64 `json:"listenerFailures"`
	Queued    int    `json:"queued"`
}

func (b *Bus) Stats() BusStats {
	return BusStats{
		Published: b.published.Load(),
		Dropped:   b.dropped.Load(),
		Failures:  b.failures.Load(),
		Queued:    len(b.queue),
	}
}

func (b *Bus) dispatch() {
	defer close(b.done)
	for e := range b.queue {
		b.mu.RLock()
		subs := b.listeners
		b.mu.RUnlock()

		for _, sub := range subs {
			b.deliver(sub, e)
		}
	}
}

func (b *Bus) deliver(sub subscription, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.failures.Add(1)
			log.WithFields(log.Fields{
				"listener":   sub.name,
				"event_type": e.Type,
				"task_id":    e.TaskID,
			}).Errorf("Event listener panicked: %v", r)
		}
	}()

	if err := sub.listener.Handle(context.Background(), e); err != nil {
		b.failures.Add(1)
		log.WithError(err).WithFields(log.Fields{
			"listener":   sub.name,
			"event_type": e.Type,
			"task_id":    e.TaskID,
		}).Warn("Event listener failed")
	}
}
