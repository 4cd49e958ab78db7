package httpclient

import (
	"time"

	"github.com/comandago/comanda/pkg/store"
)

// Config configures the API client.
type Config struct {
	// ServerURL is the base URL of the service.
	ServerURL string

	// UserID identifies the caller when authenticating.
	UserID string

	// Roles are the role tags requested at login.
	Roles []string

	// Timeout for individual requests. Default: 30s.
	Timeout time.Duration
}

// SetDefaults fills in zero-valued fields.
func (c *Config) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
}

// AuthResponse is the login response.
type AuthResponse struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SendMessageResponse reports the outcome of a chat send.
type SendMessageResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	Hash      string `json:"hash,omitempty"`
	Status    string `json:"status,omitempty"`
}

// TypingResponse lists who is typing on an order.
type TypingResponse struct {
	Users []string `json:"users"`
}

// DecisionResponse reports a voucher approve or reject outcome.
type DecisionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// VoucherPage is one page of vouchers.
type VoucherPage struct {
	Items   []store.Voucher `json:"items"`
	Total   int             `json:"total"`
	HasMore bool            `json:"hasMore"`
}

// HealthResponse is the health endpoint body.
type HealthResponse struct {
	Status     string         `json:"status"`
	Components map[string]any `json:"components,omitempty"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
