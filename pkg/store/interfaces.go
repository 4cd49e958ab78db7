package store

import (
	"context"
	"time"
)

// VoucherPage is one page of a filtered voucher query.
type VoucherPage struct {
	Items   []Voucher
	Total   int
	HasMore bool
}

// VoucherStore persists payment vouchers.
type VoucherStore interface {
	// Get returns the voucher by id, or ErrNotFound.
	Get(ctx context.Context, id int64) (Voucher, error)

	// List returns one page of vouchers with the given status, newest
	// first. branchID filters by branch when non-nil.
	List(ctx context.Context, status string, offset, limit int, branchID *int64) (VoucherPage, error)

	// Decide applies a status transition with its decision metadata.
	// reason is nil except for rejections.
	Decide(ctx context.Context, id int64, status, actorID string, reason *string) error

	// Stats returns per-status counts.
	Stats(ctx context.Context) (VoucherStats, error)
}

// MessageStore persists chat messages.
type MessageStore interface {
	// Insert stores a new message.
	Insert(ctx context.Context, msg Message) error

	// Get returns the message by id, or ErrNotFound.
	Get(ctx context.Context, id string) (Message, error)

	// UpdateStatus moves a message through its delivery lifecycle.
	// readAt is non-nil only for the READ transition.
	UpdateStatus(ctx context.Context, id, status string, readAt *time.Time) error

	// ListByOrder returns all messages on an order, oldest first.
	ListByOrder(ctx context.Context, orderID int64) ([]Message, error)
}

// NotificationStore persists notification records.
type NotificationStore interface {
	// Insert stores a new notification.
	Insert(ctx context.Context, n Notification) error

	// Unread returns a user's unread notifications, newest first.
	Unread(ctx context.Context, userID string) ([]Notification, error)

	// MarkRead flips the read flag. No-op if already read; ErrNotFound if
	// the notification does not exist.
	MarkRead(ctx context.Context, id string) error
}

// GPSStore persists courier position reports.
type GPSStore interface {
	// Insert stores a ping.
	Insert(ctx context.Context, ping GPSPing) error

	// Latest returns the most recent ping for an order, or ErrNotFound.
	Latest(ctx context.Context, orderID int64) (GPSPing, error)
}

// OrderStore exposes the order facts the chat permission gate needs.
type OrderStore interface {
	// Parties returns who owns and who delivers an order, or ErrNotFound.
	Parties(ctx context.Context, orderID int64) (OrderParties, error)
}

// ConfigStore is the live key/value configuration collaborator.
// Implementations cache reads process-locally and invalidate on write.
type ConfigStore interface {
	// GetValue returns the value for key, or def when the key is absent.
	GetValue(ctx context.Context, key, def string) (string, error)

	// SetValue writes the value and invalidates any local cache for key.
	SetValue(ctx context.Context, key, value string) error
}

// RoleLookup resolves a user id to its role-tag set.
type RoleLookup interface {
	Roles(ctx context.Context, userID string) ([]string, error)
}
