package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/comandago/comanda/pkg/events"
	"github.com/comandago/comanda/pkg/store"
)

type fakeMessageStore struct {
	mu       sync.Mutex
	messages map[string]store.Message
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{messages: make(map[string]store.Message)}
}

func (f *fakeMessageStore) Insert(_ context.Context, msg store.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[msg.ID] = msg
	return nil
}

func (f *fakeMessageStore) Get(_ context.Context, id string) (store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[id]
	if !ok {
		return store.Message{}, store.ErrNotFound
	}
	return msg, nil
}

func (f *fakeMessageStore) UpdateStatus(_ context.Context, id, status string, readAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[id]
	if !ok {
		return store.ErrNotFound
	}
	msg.Status = status
	if readAt != nil {
		msg.ReadAt = readAt
	}
	f.messages[id] = msg
	return nil
}

func (f *fakeMessageStore) ListByOrder(_ context.Context, orderID int64) ([]store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Message
	for _, msg := range f.messages {
		if msg.OrderID == orderID {
			out = append(out, msg)
		}
	}
	return out, nil
}

type staticAccess bool

func (a staticAccess) CanAccessOrder(context.Context, string, int64) (bool, error) {
	return bool(a), nil
}

type recordingDispatcher struct {
	mu  sync.Mutex
	got []events.Event
}

func (d *recordingDispatcher) Register(string, string, events.Handler) {}
func (d *recordingDispatcher) Unregister(string, string)               {}
func (d *recordingDispatcher) Dispatch(evt events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.got = append(d.got, evt)
	return nil
}

func (d *recordingDispatcher) ofType(eventType string) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []events.Event
	for _, evt := range d.got {
		if evt.Type == eventType {
			out = append(out, evt)
		}
	}
	return out
}

type recordingOutbox struct {
	mu  sync.Mutex
	got []events.Event
}

func (o *recordingOutbox) Enqueue(evt events.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.got = append(o.got, evt)
}

func (o *recordingOutbox) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.got)
}

type chatHarness struct {
	manager    *Manager
	messages   *fakeMessageStore
	dispatcher *recordingDispatcher
	outbox     *recordingOutbox
}

func newChatHarness(access AccessChecker, now func() time.Time) *chatHarness {
	h := &chatHarness{
		messages:   newFakeMessageStore(),
		dispatcher: &recordingDispatcher{},
		outbox:     &recordingOutbox{},
	}
	h.manager = NewManager(h.messages, access, h.dispatcher, h.outbox, zerolog.Nop(), now)
	return h
}

// eventually polls until check passes or the deadline hits.
func eventually(t *testing.T, what string, check func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSendMessage_PersistsAndBroadcasts(t *testing.T) {
	h := newChatHarness(staticAccess(true), nil)

	result := h.manager.SendMessage(context.Background(), 10, "cust-1", "hola", "")
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Message)
	}
	if result.ID == "" || result.Hash == "" {
		t.Error("result must carry id and hash")
	}
	if result.Status != store.MessageSent {
		t.Errorf("send returns status SENT, got %s", result.Status)
	}

	msg, err := h.messages.Get(context.Background(), result.ID)
	if err != nil {
		t.Fatalf("message not persisted: %v", err)
	}
	if msg.Type != DefaultMessageType {
		t.Errorf("empty type defaults to %s, got %s", DefaultMessageType, msg.Type)
	}

	if got := h.dispatcher.ofType(EventNewMessage); len(got) != 1 {
		t.Fatalf("expected 1 new-message broadcast, got %d", len(got))
	}
	if h.outbox.count() == 0 {
		t.Error("broadcast must also be queued for the broker")
	}

	// The DELIVERED flip happens on a background goroutine shortly after.
	eventually(t, "delivered flip", func() bool {
		msg, err := h.messages.Get(context.Background(), result.ID)
		return err == nil && msg.Status == store.MessageDelivered
	})
	if got := h.dispatcher.ofType(EventStatusUpdated); len(got) == 0 {
		t.Error("delivered flip must broadcast a status update")
	}
}

func TestSendMessage_DeniedShortCircuits(t *testing.T) {
	h := newChatHarness(staticAccess(false), nil)

	result := h.manager.SendMessage(context.Background(), 10, "cust-2", "hola", "text")
	if result.Success {
		t.Fatal("denied send must fail")
	}
	if result.Message != "acceso denegado" {
		t.Errorf("denial must be generic, got %q", result.Message)
	}
	if len(h.messages.messages) != 0 {
		t.Error("denied send must not persist anything")
	}
	if len(h.dispatcher.got) != 0 || h.outbox.count() != 0 {
		t.Error("denied send must not broadcast anything")
	}
}

// TestContentHash_Deterministic pins the hash contract: identical inputs
// produce identical hashes, any changed input changes the hash.
func TestContentHash_Deterministic(t *testing.T) {
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	base := ContentHash("hola", "cust-1", ts)
	if base != ContentHash("hola", "cust-1", ts) {
		t.Error("identical inputs must hash identically")
	}
	if base == ContentHash("hola!", "cust-1", ts) {
		t.Error("changed body must change the hash")
	}
	if base == ContentHash("hola", "cust-2", ts) {
		t.Error("changed sender must change the hash")
	}
	if base == ContentHash("hola", "cust-1", ts.Add(time.Nanosecond)) {
		t.Error("changed timestamp must change the hash")
	}
}

func TestMarkRead_SetsStatusAndBroadcasts(t *testing.T) {
	h := newChatHarness(staticAccess(true), nil)
	result := h.manager.SendMessage(context.Background(), 10, "cust-1", "hola", "text")

	if err := h.manager.MarkRead(context.Background(), result.ID, "staff-1"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	msg, _ := h.messages.Get(context.Background(), result.ID)
	if msg.Status != store.MessageRead {
		t.Errorf("expected READ, got %s", msg.Status)
	}
	if msg.ReadAt == nil {
		t.Error("read time must be stamped")
	}
	if got := h.dispatcher.ofType(EventStatusUpdated); len(got) == 0 {
		t.Error("read receipt must broadcast a status update")
	}
}

// TestMarkRead_AuthorIsNoOp: the author reading their own message mutates
// nothing and broadcasts nothing.
func TestMarkRead_AuthorIsNoOp(t *testing.T) {
	h := newChatHarness(staticAccess(true), nil)
	result := h.manager.SendMessage(context.Background(), 10, "cust-1", "hola", "text")

	// Wait out the delivered flip so broadcast counting below is stable.
	eventually(t, "delivered flip", func() bool {
		msg, err := h.messages.Get(context.Background(), result.ID)
		return err == nil && msg.Status == store.MessageDelivered
	})
	before := len(h.dispatcher.ofType(EventStatusUpdated))

	if err := h.manager.MarkRead(context.Background(), result.ID, "cust-1"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	msg, _ := h.messages.Get(context.Background(), result.ID)
	if msg.Status == store.MessageRead || msg.ReadAt != nil {
		t.Error("author read must not mutate the message")
	}
	if got := len(h.dispatcher.ofType(EventStatusUpdated)); got != before {
		t.Error("author read must not broadcast")
	}
}

func TestMarkRead_MissingMessageIsNoOp(t *testing.T) {
	h := newChatHarness(staticAccess(true), nil)
	if err := h.manager.MarkRead(context.Background(), "missing", "staff-1"); err != nil {
		t.Errorf("missing message must be a silent no-op, got %v", err)
	}
}

// TestTyping_ExpiresAfterTTL drives the presence clock: a user typing at T
// is present at T+4s and gone at T+6s without a refresh.
func TestTyping_ExpiresAfterTTL(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	h := newChatHarness(staticAccess(true), clock)

	h.manager.NotifyTyping(10, "cust-1", true)

	now = now.Add(4 * time.Second)
	if got := h.manager.TypingUsers(10); len(got) != 1 || got[0] != "cust-1" {
		t.Errorf("expected cust-1 typing at T+4s, got %v", got)
	}

	now = now.Add(2 * time.Second)
	if got := h.manager.TypingUsers(10); len(got) != 0 {
		t.Errorf("expected nobody typing at T+6s, got %v", got)
	}
}

func TestTyping_FalseRemovesImmediately(t *testing.T) {
	h := newChatHarness(staticAccess(true), nil)

	h.manager.NotifyTyping(10, "cust-1", true)
	h.manager.NotifyTyping(10, "cust-1", false)

	if got := h.manager.TypingUsers(10); len(got) != 0 {
		t.Errorf("expected empty presence, got %v", got)
	}

	// Both transitions broadcast unconditionally.
	if got := h.dispatcher.ofType(EventTyping); len(got) != 2 {
		t.Errorf("expected 2 typing broadcasts, got %d", len(got))
	}
}

func TestTyping_PerOrderIsolation(t *testing.T) {
	h := newChatHarness(staticAccess(true), nil)

	h.manager.NotifyTyping(10, "cust-1", true)
	h.manager.NotifyTyping(11, "cust-2", true)

	if got := h.manager.TypingUsers(10); len(got) != 1 || got[0] != "cust-1" {
		t.Errorf("order 10: expected [cust-1], got %v", got)
	}
	if got := h.manager.TypingUsers(11); len(got) != 1 || got[0] != "cust-2" {
		t.Errorf("order 11: expected [cust-2], got %v", got)
	}
}
