package events

import (
	"sync"

	"github.com/comandago/comanda/pkg/events"
)

// DefaultLogCapacity bounds the ring log when no capacity is given.
const DefaultLogCapacity = 500

// RingLog implements events.Log as a fixed-capacity ring buffer.
// Appending beyond capacity silently evicts the oldest entry.
// It is safe for concurrent use.
type RingLog struct {
	mu       sync.RWMutex
	buf      []events.Event
	head     int // index of the newest entry
	size     int
	capacity int
}

// NewRingLog creates a ring log with the given capacity.
// Non-positive capacities fall back to DefaultLogCapacity.
func NewRingLog(capacity int) *RingLog {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &RingLog{
		buf:      make([]events.Event, capacity),
		head:     -1,
		capacity: capacity,
	}
}

// Append records an event as the newest entry, evicting the oldest entry
// once the log is full.
func (l *RingLog) Append(evt events.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.head = (l.head + 1) % l.capacity
	l.buf[l.head] = evt
	if l.size < l.capacity {
		l.size++
	}
}

// Recent returns up to limit events, newest first. The returned slice is a
// copy; the log is never mutated by reads.
func (l *RingLog) Recent(limit int) []events.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if limit < 0 {
		limit = 0
	}
	n := limit
	if n > l.size {
		n = l.size
	}

	out := make([]events.Event, 0, n)
	for i := 0; i < n; i++ {
		idx := (l.head - i + l.capacity) % l.capacity
		out = append(out, l.buf[idx])
	}
	return out
}

// Len returns the number of events currently retained.
func (l *RingLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

// Capacity returns the fixed capacity of the log.
func (l *RingLog) Capacity() int {
	return l.capacity
}

// Verify that RingLog implements the Log interface at compile time
var _ events.Log = (*RingLog)(nil)
