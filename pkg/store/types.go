package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Voucher statuses. Stored and compared as-is; transporte values match the
// mobile clients, so they stay in Spanish.
const (
	VoucherPending  = "PENDIENTE"
	VoucherApproved = "APROBADO"
	VoucherRejected = "RECHAZADO"
)

// Voucher is a payment voucher awaiting validation.
type Voucher struct {
	ID            int64
	OrderID       int64
	SubmittedBy   string
	Amount        float64
	PaymentMethod string
	ImageRef      string
	Status        string
	CreatedAt     time.Time

	// BranchID is nil for orders placed outside a physical branch.
	BranchID *int64

	// Decision fields are nil until the voucher leaves PENDIENTE.
	DecidedAt *time.Time
	DecidedBy *string

	// RejectReason is nil unless the voucher was rejected.
	RejectReason *string
}

// Message statuses over the delivery lifecycle.
const (
	MessageSending   = "SENDING"
	MessageSent      = "SENT"
	MessageDelivered = "DELIVERED"
	MessageRead      = "READ"
	MessageError     = "ERROR"
)

// Message is a persisted chat message on an order.
type Message struct {
	ID        string
	OrderID   int64
	SenderID  string
	Body      string
	Type      string
	Status    string
	Hash      string
	CreatedAt time.Time

	// ReadAt is nil until a non-author marks the message read.
	ReadAt *time.Time
}

// Notification is a persisted notification record for one recipient.
type Notification struct {
	ID        string
	UserID    string
	Title     string
	Body      string
	Category  string
	Extra     map[string]any
	Read      bool
	CreatedAt time.Time
}

// GPSPing is a courier position report attached to an order.
type GPSPing struct {
	ID        int64
	OrderID   int64
	CourierID string
	Lat       float64
	Lng       float64
	CreatedAt time.Time
}

// OrderParties identifies who may see an order's chat besides staff.
type OrderParties struct {
	OrderID    int64
	CustomerID string

	// CourierID is nil until a courier is assigned.
	CourierID *string
}

// VoucherStats holds per-status voucher counts.
type VoucherStats struct {
	Pending  int
	Approved int
	Rejected int
}
