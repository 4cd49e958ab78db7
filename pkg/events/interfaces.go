package events

// Handler is a callback invoked for each dispatched event. Handlers are
// invoked synchronously from whichever goroutine dispatched the event, so
// handler code must be safe to call from any goroutine.
type Handler func(Event)

// Dispatcher fans dispatched events out to registered handlers.
//
// Delivery order within a dispatch is: every handler registered for the
// Wildcard type, then every handler registered for the event's own type,
// each group in registration order. The ordering is best-effort and is not
// a cross-component contract. A handler failure (panic) is isolated: it
// never prevents delivery to the remaining handlers and never propagates
// to the dispatching caller.
type Dispatcher interface {
	// Register adds a handler for an event type under a caller-chosen id.
	// Registering the same (type, id) pair again is a no-op, which keeps a
	// handler from appearing more than once per type.
	Register(eventType, id string, h Handler)

	// Unregister removes the handler registered under (type, id).
	// It is a no-op if no such registration exists.
	Unregister(eventType, id string)

	// Dispatch delivers the event to all matching handlers. It returns
	// ErrMissingType when the event carries no type; handler failures are
	// never surfaced.
	Dispatch(evt Event) error
}

// Log retains a bounded window of recent events, newest first.
type Log interface {
	// Append records an event, silently evicting the oldest entry once the
	// log is at capacity.
	Append(evt Event)

	// Recent returns up to limit events, newest first, without mutating
	// the log.
	Recent(limit int) []Event
}
