package events

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/comandago/comanda/pkg/events"
)

func newTestDispatcher() *InMemoryDispatcher {
	return NewInMemoryDispatcher(zerolog.Nop(), nil)
}

// TestDispatch_TypedAndWildcardDelivery verifies that a dispatch reaches every
// handler for the event's type plus every wildcard handler, and no handler
// registered only for a different type.
func TestDispatch_TypedAndWildcardDelivery(t *testing.T) {
	d := newTestDispatcher()

	var got []string
	record := func(name string) events.Handler {
		return func(events.Event) { got = append(got, name) }
	}

	d.Register("mensaje_nuevo", "h1", record("h1"))
	d.Register("mensaje_nuevo", "h2", record("h2"))
	d.Register("typing", "other", record("other"))
	d.Register(events.Wildcard, "w1", record("w1"))

	if err := d.Dispatch(events.New("mensaje_nuevo", nil)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	// Wildcard bucket runs first, then typed bucket in registration order.
	want := []string{"w1", "h1", "h2"}
	if len(got) != len(want) {
		t.Fatalf("expected handlers %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delivery order: expected %v, got %v", want, got)
			break
		}
	}
}

func TestDispatch_MissingType(t *testing.T) {
	d := newTestDispatcher()
	if err := d.Dispatch(events.Event{}); err != events.ErrMissingType {
		t.Errorf("expected ErrMissingType, got %v", err)
	}
}

// TestRegister_Idempotent verifies that registering the same (type, id) pair
// twice results in a single invocation per dispatch.
func TestRegister_Idempotent(t *testing.T) {
	d := newTestDispatcher()

	calls := 0
	h := func(events.Event) { calls++ }
	d.Register("typing", "t1", h)
	d.Register("typing", "t1", h)

	if err := d.Dispatch(events.New("typing", nil)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call for duplicate registration, got %d", calls)
	}
}

func TestUnregister_AbsentIsNoOp(t *testing.T) {
	d := newTestDispatcher()
	// Must not panic or affect other registrations.
	d.Unregister("typing", "missing")

	called := false
	d.Register("typing", "t1", func(events.Event) { called = true })
	d.Unregister("typing", "t2")

	if err := d.Dispatch(events.New("typing", nil)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !called {
		t.Error("unrelated unregister must not remove existing handler")
	}
}

func TestUnregister_RemovesHandler(t *testing.T) {
	d := newTestDispatcher()

	called := false
	d.Register("typing", "t1", func(events.Event) { called = true })
	d.Unregister("typing", "t1")

	if err := d.Dispatch(events.New("typing", nil)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if called {
		t.Error("unregistered handler must not be invoked")
	}
	if d.HandlerCount("typing") != 0 {
		t.Errorf("expected 0 handlers, got %d", d.HandlerCount("typing"))
	}
}

// TestDispatch_PanicIsolation verifies that a panicking handler neither stops
// delivery to later handlers nor propagates to the caller.
func TestDispatch_PanicIsolation(t *testing.T) {
	d := newTestDispatcher()

	var after bool
	d.Register("pago", "boom", func(events.Event) { panic("handler failure") })
	d.Register("pago", "after", func(events.Event) { after = true })

	if err := d.Dispatch(events.New("pago", nil)); err != nil {
		t.Fatalf("Dispatch must swallow handler panics, got %v", err)
	}
	if !after {
		t.Error("handlers after a panicking handler must still run")
	}
}

// TestDispatch_HandlerCanUnregisterItself guards the snapshot-before-invoke
// behavior: handlers may mutate registrations mid-dispatch.
func TestDispatch_HandlerCanUnregisterItself(t *testing.T) {
	d := newTestDispatcher()

	calls := 0
	d.Register("gps", "once", func(events.Event) {
		calls++
		d.Unregister("gps", "once")
	})

	if err := d.Dispatch(events.New("gps", nil)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if err := d.Dispatch(events.New("gps", nil)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 call, got %d", calls)
	}
}

func TestDispatch_ConcurrentUse(t *testing.T) {
	d := newTestDispatcher()

	var mu sync.Mutex
	calls := 0
	d.Register(events.Wildcard, "w", func(events.Event) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = d.Dispatch(events.New("carga", nil))
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if calls != 16*50 {
		t.Errorf("expected %d calls, got %d", 16*50, calls)
	}
}
