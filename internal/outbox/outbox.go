// Package outbox decouples persistence commits from broker delivery: callers
// enqueue outbound events without blocking and a single drain goroutine
// forwards them to the broker best-effort. A transaction therefore never
// waits on, or fails because of, the broker.
package outbox

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/comandago/comanda/pkg/events"
)

// DefaultCapacity bounds the queue when no capacity is given.
const DefaultCapacity = 1024

// Notifier is the outbound broker call the drainer performs per event.
type Notifier interface {
	Notify(ctx context.Context, evt events.Event)
}

// Queue is a bounded outbound event queue with a single drain goroutine.
// Enqueue never blocks; when the queue is full the oldest pending event is
// dropped to admit the new one.
type Queue struct {
	notifier Notifier
	logger   zerolog.Logger
	ch       chan events.Event

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewQueue creates a queue draining into the given notifier.
// Non-positive capacities fall back to DefaultCapacity.
func NewQueue(notifier Notifier, capacity int, logger zerolog.Logger) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{
		notifier: notifier,
		logger:   logger.With().Str("component", "outbox").Logger(),
		ch:       make(chan events.Event, capacity),
	}
}

// Start launches the drain goroutine. Idempotent.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started {
		return nil
	}

	drainCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.done = make(chan struct{})
	q.started = true

	go q.drain(drainCtx)
	return nil
}

// Stop terminates the drain goroutine. Events still queued are abandoned;
// delivery is best-effort by contract. Idempotent.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.started = false
	cancel, done := q.cancel, q.done
	q.mu.Unlock()

	cancel()
	<-done
}

// Enqueue adds an event for delivery without blocking. When the queue is
// full the oldest pending event is evicted.
func (q *Queue) Enqueue(evt events.Event) {
	for {
		select {
		case q.ch <- evt:
			return
		default:
		}
		// Full: evict the oldest and retry.
		select {
		case dropped := <-q.ch:
			q.logger.Warn().Str("event_type", dropped.Type).Msg("outbox full; oldest event dropped")
		default:
		}
	}
}

// Pending returns the number of queued events.
func (q *Queue) Pending() int {
	return len(q.ch)
}

func (q *Queue) drain(ctx context.Context) {
	defer close(q.done)

	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-q.ch:
			q.notifier.Notify(ctx, evt)
		}
	}
}
