package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comandago/comanda/pkg/httpclient"
)

func TestClientIntegration(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/auth/login":
			json.NewEncoder(w).Encode(httpclient.AuthResponse{
				Token: "test-token-123", UserID: "admin-1",
			})
		case "/healthz":
			json.NewEncoder(w).Encode(httpclient.HealthResponse{
				Status: "ok",
				Components: map[string]any{
					"ingress": "CONNECTED",
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	c, err := httpclient.NewClient(httpclient.Config{
		ServerURL: server.URL,
		UserID:    "admin-1",
		Roles:     []string{"admin"},
	})
	require.NoError(t, err)

	require.NoError(t, c.Authenticate(context.Background()))
	assert.Equal(t, "test-token-123", c.GetToken())

	health, err := c.GetHealth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "CONNECTED", health.Components["ingress"])
}

func TestInitializeClient(t *testing.T) {
	serverURL = "http://localhost:8080"
	userID = "admin-1"
	roles = []string{"admin"}
	token = "preset-token"
	t.Cleanup(func() {
		serverURL, userID, roles, token, client = "", "", nil, "", nil
	})

	cmd := newHealthCommand()
	parent := newVouchersCommand()
	parent.AddCommand(cmd)

	require.NoError(t, initializeClient(cmd, nil))
	require.NotNil(t, client)
	assert.True(t, client.IsAuthenticated())
	assert.Equal(t, "preset-token", client.GetToken())
}
