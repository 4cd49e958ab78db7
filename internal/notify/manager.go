// Package notify persists notifications and fans them out to live
// subscribers and to the broker via the outbox.
package notify

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/comandago/comanda/pkg/events"
	"github.com/comandago/comanda/pkg/store"
)

// Notification categories.
const (
	CategoryOrder    = "pedido"
	CategoryPayment  = "pago"
	CategoryDelivery = "entrega"
	CategoryChat     = "chat"
	CategoryGPS      = "gps"
	CategoryRefill   = "recarga"
	CategorySystem   = "sistema"
)

// Outbox queues events for best-effort broker delivery.
type Outbox interface {
	Enqueue(evt events.Event)
}

// Subscriber receives notifications live, in-process.
type Subscriber func(store.Notification)

// Manager persists notification records and fans them out to per-user and
// per-category subscribers plus the broker.
type Manager struct {
	notifications store.NotificationStore
	outbox        Outbox
	logger        zerolog.Logger
	now           func() time.Time
	newID         func() string

	mu         sync.RWMutex
	byUser     map[string]map[string]Subscriber // user id -> subscriber id -> fn
	byCategory map[string]map[string]Subscriber // category -> subscriber id -> fn
}

// NewManager creates the notification manager. A nil now defaults to
// time.Now.
func NewManager(notifications store.NotificationStore, out Outbox, logger zerolog.Logger, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{
		notifications: notifications,
		outbox:        out,
		logger:        logger.With().Str("component", "notify").Logger(),
		now:           now,
		newID:         func() string { return uuid.NewString() },
		byUser:        make(map[string]map[string]Subscriber),
		byCategory:    make(map[string]map[string]Subscriber),
	}
}

// SubscribeUser registers a live subscriber for one user's notifications
// under a caller-chosen id. Re-registering the same id replaces it.
func (m *Manager) SubscribeUser(userID, id string, fn Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byUser[userID] == nil {
		m.byUser[userID] = make(map[string]Subscriber)
	}
	m.byUser[userID][id] = fn
}

// UnsubscribeUser removes a per-user subscriber. No-op if absent.
func (m *Manager) UnsubscribeUser(userID, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byUser[userID], id)
}

// SubscribeCategory registers a live subscriber for a whole category.
func (m *Manager) SubscribeCategory(category, id string, fn Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byCategory[category] == nil {
		m.byCategory[category] = make(map[string]Subscriber)
	}
	m.byCategory[category][id] = fn
}

// UnsubscribeCategory removes a per-category subscriber. No-op if absent.
func (m *Manager) UnsubscribeCategory(category, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byCategory[category], id)
}

// Send persists a notification and fans it out: once to the broker via the
// outbox, once to each of the recipient's subscribers and once to each of
// the category's subscribers.
func (m *Manager) Send(ctx context.Context, userID, title, body, category string, extra map[string]any) (store.Notification, error) {
	n := store.Notification{
		ID:        m.newID(),
		UserID:    userID,
		Title:     title,
		Body:      body,
		Category:  category,
		Extra:     extra,
		Read:      false,
		CreatedAt: m.now(),
	}

	if err := m.notifications.Insert(ctx, n); err != nil {
		return store.Notification{}, fmt.Errorf("persist notification: %w", err)
	}

	if m.outbox != nil {
		data := map[string]any{
			"notificacion_id": n.ID,
			"usuario_id":      userID,
			"titulo":          title,
			"cuerpo":          body,
			"categoria":       category,
		}
		for k, v := range extra {
			data[k] = v
		}
		m.outbox.Enqueue(events.New("notificacion", data))
	}

	m.fanOut(n)
	return n, nil
}

// fanOut invokes the live subscribers. Each callback is isolated so one
// failing subscriber cannot starve the rest.
func (m *Manager) fanOut(n store.Notification) {
	m.mu.RLock()
	subscribers := make([]Subscriber, 0, len(m.byUser[n.UserID])+len(m.byCategory[n.Category]))
	for _, fn := range m.byUser[n.UserID] {
		subscribers = append(subscribers, fn)
	}
	for _, fn := range m.byCategory[n.Category] {
		subscribers = append(subscribers, fn)
	}
	m.mu.RUnlock()

	for _, fn := range subscribers {
		m.invoke(fn, n)
	}
}

func (m *Manager) invoke(fn Subscriber, n store.Notification) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Warn().
				Str("notification_id", n.ID).
				Interface("panic", r).
				Msg("notification subscriber panicked")
		}
	}()
	fn(n)
}

// BroadcastCategory invokes a category's subscribers without persisting
// anything. Used for high-volume transient traffic such as courier GPS pings.
func (m *Manager) BroadcastCategory(category string, n store.Notification) {
	m.mu.RLock()
	subscribers := make([]Subscriber, 0, len(m.byCategory[category]))
	for _, fn := range m.byCategory[category] {
		subscribers = append(subscribers, fn)
	}
	m.mu.RUnlock()

	for _, fn := range subscribers {
		m.invoke(fn, n)
	}
}

// Unread returns a user's unread notifications, newest first.
func (m *Manager) Unread(ctx context.Context, userID string) ([]store.Notification, error) {
	return m.notifications.Unread(ctx, userID)
}

// MarkRead flips one notification's read flag. No fan-out side effects.
func (m *Manager) MarkRead(ctx context.Context, id string) error {
	return m.notifications.MarkRead(ctx, id)
}

// Known order-status transitions with canned notification text.
var orderTransitions = map[string]struct{ title, body string }{
	"pendiente>confirmado":  {"Pedido confirmado", "Tu pedido fue confirmado y está en preparación"},
	"confirmado>preparando": {"Pedido en preparación", "La cocina comenzó a preparar tu pedido"},
	"preparando>en_camino":  {"Pedido en camino", "Tu pedido salió hacia tu dirección"},
	"en_camino>entregado":   {"Pedido entregado", "Tu pedido fue entregado. ¡Buen provecho!"},
	"pendiente>cancelado":   {"Pedido cancelado", "Tu pedido fue cancelado"},
	"confirmado>cancelado":  {"Pedido cancelado", "Tu pedido fue cancelado"},
}

// SendOrderStatusChange maps a known order transition to its canned text and
// sends it under the order category. Unknown transitions fall back to a
// generic message.
func (m *Manager) SendOrderStatusChange(ctx context.Context, userID string, orderID int64, from, to string) (store.Notification, error) {
	text, ok := orderTransitions[from+">"+to]
	if !ok {
		text.title = "Pedido actualizado"
		text.body = fmt.Sprintf("Tu pedido cambió de estado a %s", to)
	}
	return m.Send(ctx, userID, text.title, text.body, CategoryOrder, map[string]any{
		"pedido_id":     strconv.FormatInt(orderID, 10),
		"estado_previo": from,
		"estado_nuevo":  to,
	})
}

// SendRefillRequest notifies staff that a table asked for a refill.
func (m *Manager) SendRefillRequest(ctx context.Context, staffID string, tableID int64, product string) (store.Notification, error) {
	return m.Send(ctx, staffID, "Solicitud de recarga",
		fmt.Sprintf("La mesa %d solicitó recarga de %s", tableID, product),
		CategoryRefill, map[string]any{
			"mesa_id":  strconv.FormatInt(tableID, 10),
			"producto": product,
		})
}
