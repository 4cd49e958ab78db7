package broker

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalevents "github.com/comandago/comanda/internal/events"
	"github.com/comandago/comanda/pkg/events"
)

// recordingDispatcher captures dispatched events for assertions.
type recordingDispatcher struct {
	mu   sync.Mutex
	got  []events.Event
	seen chan events.Event
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{seen: make(chan events.Event, 64)}
}

func (d *recordingDispatcher) Register(string, string, events.Handler) {}
func (d *recordingDispatcher) Unregister(string, string)               {}
func (d *recordingDispatcher) Dispatch(evt events.Event) error {
	d.mu.Lock()
	d.got = append(d.got, evt)
	d.mu.Unlock()
	d.seen <- evt
	return nil
}

func (d *recordingDispatcher) events() []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]events.Event(nil), d.got...)
}

// sleepRecorder replaces the backoff sleep so tests can observe the schedule
// without waiting wall-clock time. Once limit sleeps are recorded it aborts
// the loop and closes filled so the test can synchronize before asserting.
type sleepRecorder struct {
	mu     sync.Mutex
	slept  []time.Duration
	limit  int
	filled chan struct{}
}

func newSleepRecorder(limit int) *sleepRecorder {
	return &sleepRecorder{limit: limit, filled: make(chan struct{})}
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) bool {
	s.mu.Lock()
	s.slept = append(s.slept, d)
	done := len(s.slept) >= s.limit
	s.mu.Unlock()
	if done {
		close(s.filled)
		return false
	}
	return ctx.Err() == nil
}

// wait blocks until the recorder has seen limit sleeps.
func (s *sleepRecorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-s.filled:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the backoff schedule to fill")
	}
}

func (s *sleepRecorder) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.slept...)
}

func newTestIngress(url string, dispatcher events.Dispatcher) *IngressClient {
	return NewIngressClient(IngressConfig{
		URL:            url,
		BackoffUnit:    1 * time.Second,
		BackoffCeiling: 60 * time.Second,
	}, dispatcher, internalevents.NewRingLog(16), zerolog.Nop(), nil)
}

// TestIngress_BackoffDoublesToCeiling drives the reconnect loop against a
// refused connection and asserts the backoff schedule strictly doubles from
// one unit up to the 60-unit ceiling.
func TestIngress_BackoffDoublesToCeiling(t *testing.T) {
	// A closed server yields connection-refused on every attempt.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	recorder := newSleepRecorder(9)

	c := newTestIngress(server.URL, newRecordingDispatcher())
	c.sleep = recorder.sleep

	require.NoError(t, c.Start(context.Background()))
	recorder.wait(t)
	c.Stop()

	want := []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 32 * time.Second, 60 * time.Second, 60 * time.Second,
		60 * time.Second,
	}
	assert.Equal(t, want, recorder.recorded())
}

// TestIngress_ForwardsFramesInOrder verifies a valid frame is appended to the
// event log and dispatched, and that malformed frames are dropped without
// killing the stream.
func TestIngress_ForwardsFramesInOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "data: {\"type\":\"mensaje_nuevo\",\"pedido_id\":\"9\"}\n\n")
		fmt.Fprint(w, "data: {not json}\n\n")
		fmt.Fprint(w, ": keepalive\n\n")
		fmt.Fprint(w, "data: {\"type\":\"typing\",\"usuario_id\":\"u2\"}\n\n")
		flusher.Flush()
	}))
	defer server.Close()

	dispatcher := newRecordingDispatcher()
	eventLog := internalevents.NewRingLog(16)
	// A long backoff unit keeps the loop from reconnecting and re-reading
	// the same frames while assertions run.
	c := NewIngressClient(IngressConfig{URL: server.URL, BackoffUnit: time.Minute},
		dispatcher, eventLog, zerolog.Nop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Start(ctx))
	defer c.Stop()

	// Wait for both valid frames to arrive.
	for i := 0; i < 2; i++ {
		select {
		case <-dispatcher.seen:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for dispatched frames")
		}
	}

	got := dispatcher.events()
	require.Len(t, got, 2)
	assert.Equal(t, "mensaje_nuevo", got[0].Type)
	assert.Equal(t, "9", got[0].String("pedido_id"))
	assert.Equal(t, "typing", got[1].Type)

	recent := eventLog.Recent(16)
	require.Len(t, recent, 2)
	assert.Equal(t, "typing", recent[0].Type, "event log is newest-first")
}

// TestIngress_BackoffResetsAfterSuccessfulConnect alternates a successful
// short-lived stream with refused connections and asserts the schedule
// restarts at one unit after the success.
func TestIngress_BackoffResetsAfterSuccessfulConnect(t *testing.T) {
	var mu sync.Mutex
	attempt := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempt++
		n := attempt
		mu.Unlock()
		if n <= 2 {
			// Simulate a broker that is up but refusing the stream.
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		// Successful connect; stream ends immediately afterwards.
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
	}))
	defer server.Close()

	recorder := newSleepRecorder(4)

	c := newTestIngress(server.URL, newRecordingDispatcher())
	c.sleep = recorder.sleep

	require.NoError(t, c.Start(context.Background()))
	recorder.wait(t)
	c.Stop()

	// Two failures (1, 2), then a successful connect resets to 1.
	want := []time.Duration{1 * time.Second, 2 * time.Second, 1 * time.Second, 1 * time.Second}
	assert.Equal(t, want, recorder.recorded())
}

// TestIngress_StopAbortsBackoffSleep issues Stop while the loop is inside a
// real backoff sleep and requires prompt termination.
func TestIngress_StopAbortsBackoffSleep(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	c := NewIngressClient(IngressConfig{
		URL:         server.URL,
		BackoffUnit: 10 * time.Minute, // Stop must not wait this out.
	}, newRecordingDispatcher(), internalevents.NewRingLog(16), zerolog.Nop(), nil)

	require.NoError(t, c.Start(context.Background()))

	stopped := make(chan struct{})
	go func() {
		c.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not abort the backoff sleep")
	}
	assert.Equal(t, StateDisconnected, c.State())
}

func TestIngress_StartIsIdempotent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	c := newTestIngress(server.URL, newRecordingDispatcher())
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	require.NoError(t, c.Start(ctx))
	c.Stop()
	c.Stop()
}
