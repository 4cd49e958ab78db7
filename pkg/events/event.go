package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Wildcard is the event type that matches every dispatched event.
const Wildcard = "*"

// ErrMissingType is returned when an event or wire frame carries no type.
var ErrMissingType = errors.New("event must carry a non-empty type")

// Event is a single realtime event. It is ephemeral: events are never
// persisted beyond the bounded in-memory log.
type Event struct {
	// Type identifies the kind of event ("mensaje_nuevo", "typing", ...).
	Type string

	// Data holds the payload fields. May be nil for events with no payload.
	Data map[string]any

	// Timestamp is when the event was created.
	Timestamp time.Time
}

// New creates an Event of the given type, stamped with the current time.
func New(eventType string, data map[string]any) Event {
	return Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// String returns a Data field as a string, or "" when absent or not a string.
func (e Event) String(key string) string {
	s, _ := e.Data[key].(string)
	return s
}

// Float64 returns a numeric Data field. JSON numbers arrive as float64;
// numeric strings are accepted too since some producers quote them.
func (e Event) Float64(key string) (float64, error) {
	switch v := e.Data[key].(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("field %q is not numeric: %w", key, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("field %q is not numeric", key)
	}
}

// Int64 returns an integer Data field, accepting the same forms as Float64.
func (e Event) Int64(key string) (int64, error) {
	f, err := e.Float64(key)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

// MarshalWire serializes the event to its wire form: a flat JSON object with
// the type folded in as the "type" field alongside the payload fields.
func (e Event) MarshalWire() ([]byte, error) {
	if e.Type == "" {
		return nil, ErrMissingType
	}
	flat := make(map[string]any, len(e.Data)+1)
	for k, v := range e.Data {
		flat[k] = v
	}
	flat["type"] = e.Type
	return json.Marshal(flat)
}

// ParseWire parses a wire frame into an Event. The frame must be a JSON
// object with a non-empty "type" string field; all remaining fields become
// payload data. Unknown fields are kept, never rejected.
func ParseWire(frame []byte) (Event, error) {
	var flat map[string]any
	if err := json.Unmarshal(frame, &flat); err != nil {
		return Event{}, err
	}
	eventType, _ := flat["type"].(string)
	if eventType == "" {
		return Event{}, ErrMissingType
	}
	delete(flat, "type")
	return Event{
		Type:      eventType,
		Data:      flat,
		Timestamp: time.Now().UTC(),
	}, nil
}
