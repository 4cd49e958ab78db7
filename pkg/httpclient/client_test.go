package httpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comandago/comanda/pkg/store"
)

func newFakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req["userId"] == "" {
			http.Error(w, `{"error":"userId is required"}`, http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(AuthResponse{Token: "test-token", UserID: req["userId"].(string)})
	})

	requireAuth := func(w http.ResponseWriter, r *http.Request) bool {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			http.Error(w, `{"error":"authorization required"}`, http.StatusUnauthorized)
			return false
		}
		return true
	}

	mux.HandleFunc("/api/v1/orders/10/messages", func(w http.ResponseWriter, r *http.Request) {
		if !requireAuth(w, r) {
			return
		}
		switch r.Method {
		case http.MethodPost:
			json.NewEncoder(w).Encode(SendMessageResponse{
				Success: true, MessageID: "m1", Status: store.MessageSent,
			})
		case http.MethodGet:
			json.NewEncoder(w).Encode([]store.Message{{ID: "m1", OrderID: 10, Body: "hola"}})
		}
	})

	mux.HandleFunc("/api/v1/vouchers", func(w http.ResponseWriter, r *http.Request) {
		if !requireAuth(w, r) {
			return
		}
		assert.Equal(t, store.VoucherPending, r.URL.Query().Get("status"))
		json.NewEncoder(w).Encode(VoucherPage{
			Items: []store.Voucher{{ID: 1, Status: store.VoucherPending}},
			Total: 1,
		})
	})

	mux.HandleFunc("/api/v1/vouchers/1/approve", func(w http.ResponseWriter, r *http.Request) {
		if !requireAuth(w, r) {
			return
		}
		json.NewEncoder(w).Encode(DecisionResponse{Success: true, Message: "comprobante aprobado"})
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func newAuthedClient(t *testing.T, ts *httptest.Server) *Client {
	t.Helper()
	client, err := NewClient(Config{ServerURL: ts.URL, UserID: "admin-1", Roles: []string{"admin"}})
	require.NoError(t, err)
	require.NoError(t, client.Authenticate(context.Background()))
	return client
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)

	client, err := NewClient(Config{ServerURL: "http://localhost:8080"})
	require.NoError(t, err)
	assert.False(t, client.IsAuthenticated())
}

func TestAuthenticate(t *testing.T) {
	ts := newFakeServer(t)
	client := newAuthedClient(t, ts)

	assert.True(t, client.IsAuthenticated())
	assert.Equal(t, "test-token", client.GetToken())
}

func TestAuthenticatedMethodsRequireToken(t *testing.T) {
	ts := newFakeServer(t)
	client, err := NewClient(Config{ServerURL: ts.URL, UserID: "admin-1"})
	require.NoError(t, err)

	_, err = client.SendMessage(context.Background(), 10, "hola", "")
	assert.ErrorContains(t, err, "not authenticated")

	_, err = client.ListVouchers(context.Background(), store.VoucherPending, 0, 20)
	assert.ErrorContains(t, err, "not authenticated")
}

func TestSendAndListMessages(t *testing.T) {
	ts := newFakeServer(t)
	client := newAuthedClient(t, ts)

	resp, err := client.SendMessage(context.Background(), 10, "hola", "")
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "m1", resp.MessageID)

	msgs, err := client.ListMessages(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hola", msgs[0].Body)
}

func TestVouchers(t *testing.T) {
	ts := newFakeServer(t)
	client := newAuthedClient(t, ts)

	page, err := client.ListVouchers(context.Background(), store.VoucherPending, 0, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	decision, err := client.ApproveVoucher(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, decision.Success)
}

func TestGetHealth(t *testing.T) {
	ts := newFakeServer(t)
	client, err := NewClient(Config{ServerURL: ts.URL})
	require.NoError(t, err)

	health, err := client.GetHealth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)
}

func TestAPIErrorSurfaced(t *testing.T) {
	ts := newFakeServer(t)
	client, err := NewClient(Config{ServerURL: ts.URL})
	require.NoError(t, err)

	err = client.Authenticate(context.Background())
	assert.ErrorContains(t, err, "UserID is required")
}
