// Package httpclient is the Go client for the service's HTTP API, used by
// the CLI and usable by other backend services.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/comandago/comanda/pkg/store"
)

// Client talks to the service's HTTP API.
type Client struct {
	config     Config
	httpClient *http.Client
	token      string
	baseURL    *url.URL
}

// NewClient creates an API client. Call Authenticate before any
// authenticated method, or install a token with SetToken.
func NewClient(config Config) (*Client, error) {
	config.SetDefaults()

	if config.ServerURL == "" {
		return nil, fmt.Errorf("ServerURL is required")
	}
	baseURL, err := url.Parse(config.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ServerURL: %w", err)
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		baseURL:    baseURL,
	}, nil
}

// Authenticate logs in and stores the token for subsequent calls.
func (c *Client) Authenticate(ctx context.Context) error {
	if c.config.UserID == "" {
		return fmt.Errorf("UserID is required to authenticate")
	}

	req := map[string]any{
		"userId": c.config.UserID,
		"roles":  c.config.Roles,
	}
	var resp AuthResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/login", req, &resp, false); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	c.token = resp.Token
	return nil
}

// IsAuthenticated reports whether the client holds a token.
func (c *Client) IsAuthenticated() bool { return c.token != "" }

// GetToken returns the current token.
func (c *Client) GetToken() string { return c.token }

// SetToken installs a previously obtained token.
func (c *Client) SetToken(token string) { c.token = token }

// SendMessage posts a chat message on an order.
func (c *Client) SendMessage(ctx context.Context, orderID int64, body, msgType string) (*SendMessageResponse, error) {
	req := map[string]string{"body": body}
	if msgType != "" {
		req["type"] = msgType
	}

	var resp SendMessageResponse
	path := fmt.Sprintf("/api/v1/orders/%d/messages", orderID)
	if err := c.doRequest(ctx, http.MethodPost, path, req, &resp, true); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	return &resp, nil
}

// ListMessages returns an order's chat history, oldest first.
func (c *Client) ListMessages(ctx context.Context, orderID int64) ([]store.Message, error) {
	var msgs []store.Message
	path := fmt.Sprintf("/api/v1/orders/%d/messages", orderID)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &msgs, true); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, nil
}

// MarkMessageRead records a read receipt.
func (c *Client) MarkMessageRead(ctx context.Context, messageID string) error {
	path := fmt.Sprintf("/api/v1/messages/%s/read", url.PathEscape(messageID))
	if err := c.doRequest(ctx, http.MethodPost, path, nil, nil, true); err != nil {
		return fmt.Errorf("failed to mark message read: %w", err)
	}
	return nil
}

// NotifyTyping reports a typing start or stop on an order.
func (c *Client) NotifyTyping(ctx context.Context, orderID int64, isTyping bool) error {
	req := map[string]bool{"isTyping": isTyping}
	path := fmt.Sprintf("/api/v1/orders/%d/typing", orderID)
	if err := c.doRequest(ctx, http.MethodPost, path, req, nil, true); err != nil {
		return fmt.Errorf("failed to notify typing: %w", err)
	}
	return nil
}

// TypingUsers returns who is currently typing on an order.
func (c *Client) TypingUsers(ctx context.Context, orderID int64) ([]string, error) {
	var resp TypingResponse
	path := fmt.Sprintf("/api/v1/orders/%d/typing", orderID)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp, true); err != nil {
		return nil, fmt.Errorf("failed to get typing users: %w", err)
	}
	return resp.Users, nil
}

// ListVouchers returns one page of vouchers with the given status.
func (c *Client) ListVouchers(ctx context.Context, status string, offset, limit int) (*VoucherPage, error) {
	params := url.Values{}
	if status != "" {
		params.Set("status", status)
	}
	if offset > 0 {
		params.Set("offset", strconv.Itoa(offset))
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var page VoucherPage
	if err := c.doRequestWithQuery(ctx, http.MethodGet, "/api/v1/vouchers", params, nil, &page, true); err != nil {
		return nil, fmt.Errorf("failed to list vouchers: %w", err)
	}
	return &page, nil
}

// ApproveVoucher approves a pending voucher.
func (c *Client) ApproveVoucher(ctx context.Context, voucherID int64) (*DecisionResponse, error) {
	var resp DecisionResponse
	path := fmt.Sprintf("/api/v1/vouchers/%d/approve", voucherID)
	err := c.doRequest(ctx, http.MethodPost, path, nil, &resp, true)
	if err != nil {
		return nil, fmt.Errorf("failed to approve voucher: %w", err)
	}
	return &resp, nil
}

// RejectVoucher rejects a voucher with a reason.
func (c *Client) RejectVoucher(ctx context.Context, voucherID int64, reason string) (*DecisionResponse, error) {
	req := map[string]string{"reason": reason}
	var resp DecisionResponse
	path := fmt.Sprintf("/api/v1/vouchers/%d/reject", voucherID)
	err := c.doRequest(ctx, http.MethodPost, path, req, &resp, true)
	if err != nil {
		return nil, fmt.Errorf("failed to reject voucher: %w", err)
	}
	return &resp, nil
}

// VoucherStats returns per-status voucher counts.
func (c *Client) VoucherStats(ctx context.Context) (*store.VoucherStats, error) {
	var stats store.VoucherStats
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/vouchers/stats", nil, &stats, true); err != nil {
		return nil, fmt.Errorf("failed to get voucher stats: %w", err)
	}
	return &stats, nil
}

// UnreadNotifications returns the caller's unread notifications.
func (c *Client) UnreadNotifications(ctx context.Context) ([]store.Notification, error) {
	var items []store.Notification
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/notifications", nil, &items, true); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return items, nil
}

// MarkNotificationRead flips one notification's read flag.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	path := fmt.Sprintf("/api/v1/notifications/%s/read", url.PathEscape(id))
	if err := c.doRequest(ctx, http.MethodPost, path, nil, nil, true); err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

// GetHealth returns the service health.
func (c *Client) GetHealth(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doRequest(ctx, http.MethodGet, "/healthz", nil, &resp, false); err != nil {
		return nil, fmt.Errorf("failed to get health status: %w", err)
	}
	return &resp, nil
}

// doRequestWithQuery performs an HTTP request with query parameters and
// optional bearer authentication.
func (c *Client) doRequestWithQuery(ctx context.Context, method, path string, queryParams url.Values, reqBody, respBody any, requireAuth bool) error {
	if requireAuth && c.token == "" {
		return fmt.Errorf("client not authenticated - call Authenticate() first")
	}

	u := &url.URL{Path: path}
	if len(queryParams) > 0 {
		u.RawQuery = queryParams.Encode()
	}
	fullURL := c.baseURL.ResolveReference(u)

	var bodyReader io.Reader
	if reqBody != nil {
		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL.String(), bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if requireAuth {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp ErrorResponse
		if err := json.Unmarshal(bodyBytes, &errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("API error (%d): %s", resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("API error (%d): %s", resp.StatusCode, string(bodyBytes))
	}

	if respBody != nil && len(bodyBytes) > 0 {
		if err := json.Unmarshal(bodyBytes, respBody); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, reqBody, respBody any, requireAuth bool) error {
	return c.doRequestWithQuery(ctx, method, path, nil, reqBody, respBody, requireAuth)
}
