package events

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/comandago/comanda/pkg/events"
)

// registration pairs a caller-chosen id with its handler. The id gives
// handlers an identity, which Go function values do not have on their own.
type registration struct {
	id      string
	handler events.Handler
}

// InMemoryDispatcher implements events.Dispatcher with per-type registration
// buckets plus a wildcard bucket. It is safe for concurrent use.
type InMemoryDispatcher struct {
	mu      sync.RWMutex
	byType  map[string][]registration // event type -> ordered registrations
	logger  zerolog.Logger
	metrics *Metrics
}

// NewInMemoryDispatcher creates an empty dispatcher. The metrics may be nil,
// in which case no counters are recorded.
func NewInMemoryDispatcher(logger zerolog.Logger, metrics *Metrics) *InMemoryDispatcher {
	return &InMemoryDispatcher{
		byType:  make(map[string][]registration),
		logger:  logger.With().Str("component", "dispatcher").Logger(),
		metrics: metrics,
	}
}

// Register adds a handler under (eventType, id). Registering the same pair
// again is a no-op, so a handler appears at most once per type.
func (d *InMemoryDispatcher) Register(eventType, id string, h events.Handler) {
	if eventType == "" || h == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, reg := range d.byType[eventType] {
		if reg.id == id {
			return
		}
	}
	d.byType[eventType] = append(d.byType[eventType], registration{id: id, handler: h})
}

// Unregister removes the handler registered under (eventType, id).
// It is a no-op if no such registration exists.
func (d *InMemoryDispatcher) Unregister(eventType, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	regs := d.byType[eventType]
	for i, reg := range regs {
		if reg.id == id {
			d.byType[eventType] = append(regs[:i:i], regs[i+1:]...)
			if len(d.byType[eventType]) == 0 {
				delete(d.byType, eventType)
			}
			return
		}
	}
}

// Dispatch delivers the event to every wildcard handler, then every handler
// registered for the event's type, in registration order within each group.
// Each handler runs isolated: a panic is logged and counted, and delivery
// continues with the remaining handlers.
func (d *InMemoryDispatcher) Dispatch(evt events.Event) error {
	if evt.Type == "" {
		return events.ErrMissingType
	}

	// Snapshot the matching registrations so handlers can register or
	// unregister (including themselves) without deadlocking.
	d.mu.RLock()
	matched := make([]registration, 0, len(d.byType[events.Wildcard])+len(d.byType[evt.Type]))
	matched = append(matched, d.byType[events.Wildcard]...)
	if evt.Type != events.Wildcard {
		matched = append(matched, d.byType[evt.Type]...)
	}
	d.mu.RUnlock()

	for _, reg := range matched {
		d.invoke(reg, evt)
	}

	if d.metrics != nil {
		d.metrics.Dispatched.Inc()
	}
	return nil
}

// invoke runs a single handler behind a recover so one failing handler never
// aborts delivery to the rest nor propagates to the dispatching caller.
func (d *InMemoryDispatcher) invoke(reg registration, evt events.Event) {
	defer func() {
		if r := recover(); r != nil {
			if d.metrics != nil {
				d.metrics.HandlerPanics.Inc()
			}
			d.logger.Warn().
				Str("event_type", evt.Type).
				Str("handler_id", reg.id).
				Interface("panic", r).
				Msg("event handler panicked; delivery continues")
		}
	}()
	reg.handler(evt)
}

// HandlerCount returns the number of handlers registered for a type.
// Useful for tests and the health endpoint.
func (d *InMemoryDispatcher) HandlerCount(eventType string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byType[eventType])
}

// Verify that InMemoryDispatcher implements the Dispatcher interface at compile time
var _ events.Dispatcher = (*InMemoryDispatcher)(nil)
