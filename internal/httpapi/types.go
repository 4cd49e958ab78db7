package httpapi

import (
	"time"

	"github.com/comandago/comanda/pkg/store"
)

// Request/response types for the HTTP API.

// LoginRequest asks for a token. Credential verification lives in the main
// backend; this service only mints tokens for the realtime surface.
type LoginRequest struct {
	UserID string   `json:"userId"`
	Roles  []string `json:"roles"`
}

// LoginResponse carries the minted token.
type LoginResponse struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SendMessageRequest posts a chat message on an order.
type SendMessageRequest struct {
	Body string `json:"body"`
	Type string `json:"type,omitempty"`
}

// SendMessageResponse mirrors the chat manager's send result.
type SendMessageResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	Hash      string `json:"hash,omitempty"`
	Status    string `json:"status,omitempty"`
}

// TypingRequest reports a typing start or stop.
type TypingRequest struct {
	IsTyping bool `json:"isTyping"`
}

// TypingResponse lists who is currently typing on an order.
type TypingResponse struct {
	Users []string `json:"users"`
}

// RejectRequest carries the mandatory rejection reason.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// DecisionResponse reports the outcome of an approve or reject.
type DecisionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// VoucherPageResponse is one page of vouchers.
type VoucherPageResponse struct {
	Items   []store.Voucher `json:"items"`
	Total   int             `json:"total"`
	HasMore bool            `json:"hasMore"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
