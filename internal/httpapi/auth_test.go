package httpapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTAuth_RoundTrip(t *testing.T) {
	auth := NewJWTAuth("test-secret")

	token, expiresAt, err := auth.GenerateToken("user-7", []string{"admin"})
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(TokenTTL), expiresAt, time.Minute)

	claims, err := auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-7", claims.UserID)
	assert.True(t, claims.HasRole("admin"))
	assert.False(t, claims.HasRole("cliente"))
}

func TestJWTAuth_BearerPrefix(t *testing.T) {
	auth := NewJWTAuth("test-secret")
	token, _, err := auth.GenerateToken("user-7", nil)
	require.NoError(t, err)

	claims, err := auth.ValidateToken("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "user-7", claims.UserID)
}

func TestJWTAuth_EmptyUserID(t *testing.T) {
	auth := NewJWTAuth("test-secret")
	_, _, err := auth.GenerateToken("", nil)
	assert.Error(t, err)
}

func TestJWTAuth_WrongSecret(t *testing.T) {
	token, _, err := NewJWTAuth("secret-a").GenerateToken("user-7", nil)
	require.NoError(t, err)

	_, err = NewJWTAuth("secret-b").ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTAuth_Expired(t *testing.T) {
	auth := NewJWTAuth("test-secret")
	auth.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }

	token, _, err := auth.GenerateToken("user-7", nil)
	require.NoError(t, err)

	_, err = auth.ValidateToken(token)
	assert.Error(t, err)
}
