// Package chat implements the order-chat message lifecycle: permission-gated
// sending, delivery and read receipts, and typing presence.
package chat

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/comandago/comanda/pkg/events"
	"github.com/comandago/comanda/pkg/store"
)

// Event types broadcast by the chat manager.
const (
	EventNewMessage    = "mensaje_nuevo"
	EventStatusUpdated = "estado_actualizado"
	EventTyping        = "typing"
)

// DefaultMessageType is used when a send carries no explicit type.
const DefaultMessageType = "text"

// AccessChecker gates chat participation. Implemented by perm.Policy.
type AccessChecker interface {
	CanAccessOrder(ctx context.Context, userID string, orderID int64) (bool, error)
}

// Outbox queues events for best-effort broker delivery.
type Outbox interface {
	Enqueue(evt events.Event)
}

// SendResult is the structured outcome of a send attempt. A denial is an
// inline failure, never an error. The refusal stays generic so it does not
// confirm or deny that the order exists.
type SendResult struct {
	Success bool
	Message string

	// Set only on success.
	ID     string
	Hash   string
	Status string
}

// Manager drives the chat message lifecycle and typing presence.
type Manager struct {
	messages   store.MessageStore
	access     AccessChecker
	dispatcher events.Dispatcher
	outbox     Outbox
	logger     zerolog.Logger
	now        func() time.Time
	newID      func() string

	presence *presence
}

// NewManager creates the chat manager. A nil now defaults to time.Now.
func NewManager(messages store.MessageStore, access AccessChecker, dispatcher events.Dispatcher, out Outbox, logger zerolog.Logger, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{
		messages:   messages,
		access:     access,
		dispatcher: dispatcher,
		outbox:     out,
		logger:     logger.With().Str("component", "chat").Logger(),
		now:        now,
		newID:      func() string { return uuid.NewString() },
		presence:   newPresence(now),
	}
}

// ContentHash computes the deterministic message content hash from the body,
// the sender and the creation timestamp.
func ContentHash(body, userID string, ts time.Time) string {
	h := sha256.New()
	h.Write([]byte(body))
	h.Write([]byte{0})
	h.Write([]byte(userID))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(ts.UnixNano(), 10)))
	return hex.EncodeToString(h.Sum(nil))
}

// SendMessage persists and broadcasts a new message on an order.
//
// The permission check runs first; a denial short-circuits with a generic
// refusal and nothing is persisted. On success the message is stored with
// status SENT, broadcast to the order's participants, and flipped to
// DELIVERED shortly after on a background goroutine (best-effort).
func (m *Manager) SendMessage(ctx context.Context, orderID int64, userID, body, msgType string) SendResult {
	allowed, err := m.access.CanAccessOrder(ctx, userID, orderID)
	if err != nil || !allowed {
		if err != nil {
			m.logger.Warn().Err(err).Str("user_id", userID).Msg("chat access check failed")
		}
		return SendResult{Success: false, Message: "acceso denegado"}
	}

	if msgType == "" {
		msgType = DefaultMessageType
	}
	createdAt := m.now()
	msg := store.Message{
		ID:        m.newID(),
		OrderID:   orderID,
		SenderID:  userID,
		Body:      body,
		Type:      msgType,
		Status:    store.MessageSent,
		Hash:      ContentHash(body, userID, createdAt),
		CreatedAt: createdAt,
	}

	if err := m.messages.Insert(ctx, msg); err != nil {
		m.logger.Error().Err(err).Int64("order_id", orderID).Msg("message insert failed")
		return SendResult{Success: false, Message: "no se pudo guardar el mensaje"}
	}

	m.broadcast(events.New(EventNewMessage, map[string]any{
		"mensaje_id": msg.ID,
		"pedido_id":  strconv.FormatInt(orderID, 10),
		"usuario_id": userID,
		"cuerpo":     body,
		"tipo":       msgType,
		"estado":     msg.Status,
		"hash":       msg.Hash,
	}))

	go m.markDelivered(msg.ID, orderID)

	return SendResult{Success: true, ID: msg.ID, Hash: msg.Hash, Status: msg.Status}
}

// markDelivered flips a just-sent message to DELIVERED. Best-effort: a
// failure is logged and the message simply stays SENT.
func (m *Manager) markDelivered(messageID string, orderID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.messages.UpdateStatus(ctx, messageID, store.MessageDelivered, nil); err != nil {
		m.logger.Warn().Err(err).Str("message_id", messageID).Msg("delivered flip failed")
		return
	}
	m.broadcast(events.New(EventStatusUpdated, map[string]any{
		"mensaje_id": messageID,
		"pedido_id":  strconv.FormatInt(orderID, 10),
		"estado":     store.MessageDelivered,
	}))
}

// MarkRead marks a message read by readerID. It is a no-op when the message
// is missing or the reader is its author.
func (m *Manager) MarkRead(ctx context.Context, messageID, readerID string) error {
	msg, err := m.messages.Get(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("fetch message %s: %w", messageID, err)
	}
	if msg.SenderID == readerID {
		return nil
	}

	readAt := m.now()
	if err := m.messages.UpdateStatus(ctx, messageID, store.MessageRead, &readAt); err != nil {
		return fmt.Errorf("mark message %s read: %w", messageID, err)
	}

	m.broadcast(events.New(EventStatusUpdated, map[string]any{
		"mensaje_id": messageID,
		"pedido_id":  strconv.FormatInt(msg.OrderID, 10),
		"estado":     store.MessageRead,
		"leido_por":  readerID,
	}))
	return nil
}

// NotifyTyping updates the typing presence for a user on an order and
// unconditionally broadcasts a typing event.
func (m *Manager) NotifyTyping(orderID int64, userID string, isTyping bool) {
	m.presence.set(orderID, userID, isTyping)

	m.broadcast(events.New(EventTyping, map[string]any{
		"pedido_id":   strconv.FormatInt(orderID, 10),
		"usuario_id":  userID,
		"escribiendo": isTyping,
	}))
}

// TypingUsers returns the users currently typing on an order. Entries older
// than the presence TTL are lazily evicted.
func (m *Manager) TypingUsers(orderID int64) []string {
	return m.presence.active(orderID)
}

// broadcast fans an event out in-process and queues it for the broker.
func (m *Manager) broadcast(evt events.Event) {
	if err := m.dispatcher.Dispatch(evt); err != nil {
		m.logger.Warn().Err(err).Str("event_type", evt.Type).Msg("chat broadcast failed")
	}
	if m.outbox != nil {
		m.outbox.Enqueue(evt)
	}
}
