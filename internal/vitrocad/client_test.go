package vitrocad

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexuschat/config"
	nexus_errors "nexuschat/pkg/errors"
	"nexuschat/pkg/logger"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		VitroCADBaseURL: srv.URL,
		VitroCADAPIPath: "/api",
		VitroCADTimeout: 2 * time.Second,
	}
	return NewClient(cfg, logger.NewNop()), srv
}

func TestClientLogin(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/security/login", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "marina", body["login"])

		json.NewEncoder(w).Encode(Account{
			ID:    "acc-1",
			Login: "marina",
			Token: "session-token",
			FieldValueMap: map[string]string{
				"NAME":  "Marina K",
				"EMAIL": "Marina@Example.Com",
			},
		})
	}))

	acc, err := client.Login(context.Background(), "marina", "secret")
	require.NoError(t, err)
	assert.Equal(t, "acc-1", acc.ID)
	assert.Equal(t, "session-token", acc.Token)
	assert.Equal(t, "Marina K", acc.Name())
	assert.Equal(t, "marina@example.com", acc.Email())
}

func TestClientSendsRawTokenHeader(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok-123", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(Account{ID: "acc-1"})
	}))

	_, err := client.GetCurrentUser(context.Background(), "tok-123")
	require.NoError(t, err)
}

func TestClientUnauthorized(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.GetCurrentUser(context.Background(), "expired")
	assert.ErrorIs(t, err, nexus_errors.ErrUnauthorized)
}

func TestClientNotFound(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.GetItem(context.Background(), "tok", "missing-id")
	assert.ErrorIs(t, err, nexus_errors.ErrNotFound)
}

func TestClientServerErrorIsUnavailable(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.GetList(context.Background(), "tok", "list-1")
	assert.ErrorIs(t, err, nexus_errors.ErrServiceUnavailable)
}

func TestClientTimeoutIsUnavailable(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	client.httpClient.Timeout = 20 * time.Millisecond

	_, err := client.GetItemPermissions(context.Background(), "tok", "item-1")
	assert.ErrorIs(t, err, nexus_errors.ErrServiceUnavailable)
}

func TestItemNameFallsBackToID(t *testing.T) {
	it := &Item{ID: "item-9", FieldValueMap: map[string]string{}}
	assert.Equal(t, "item-9", it.Name())

	it.FieldValueMap["NAME"] = "drawing.dwg"
	assert.Equal(t, "drawing.dwg", it.Name())
}

func TestAccountDecodesProfileFlags(t *testing.T) {
	var acc Account
	require.NoError(t, json.Unmarshal([]byte(`{"id":"u1","isAdmin":true,"isActive":false}`), &acc))
	assert.True(t, acc.IsAdmin)
	assert.False(t, acc.Active())

	// Accounts that omit the flag count as active.
	assert.True(t, (&Account{ID: "u2"}).Active())
}
