package sentinel_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sentinel "github.com/perimetra/sentinel/sdk/go/sentinel"
)

func TestClient_LogEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/security/events", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))

		var input sentinel.EventInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&input))
		assert.Equal(t, "failed-login", input.Type)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(sentinel.Event{
			ID:          "evt_1700000000000_abcd1234",
			Type:        input.Type,
			Severity:    input.Severity,
			Source:      input.Source,
			Description: input.Description,
			Timestamp:   time.Now().UTC(),
		})
	}))
	defer server.Close()

	client := sentinel.New(server.URL, "sk_test")
	event, err := client.LogEvent(context.Background(), sentinel.EventInput{
		Type:        "failed-login",
		Severity:    "medium",
		Source:      "auth-service",
		Description: "3 failed attempts",
	})
	require.NoError(t, err)
	assert.Equal(t, "evt_1700000000000_abcd1234", event.ID)
	assert.Equal(t, "failed-login", event.Type)
}

func TestClient_ListEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "critical", r.URL.Query().Get("severity"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Equal(t, "false", r.URL.Query().Get("resolved"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"events": []sentinel.Event{
				{ID: "evt_2", Severity: "critical"},
				{ID: "evt_1", Severity: "critical"},
			},
			"count": 2,
		})
	}))
	defer server.Close()

	resolved := false
	client := sentinel.New(server.URL, "sk_test")
	events, err := client.ListEvents(context.Background(), sentinel.ListFilter{
		Severity: "critical",
		Resolved: &resolved,
		Limit:    10,
	})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "evt_2", events[0].ID)
}

func TestClient_ResolveEvent(t *testing.T) {
	t.Run("resolved", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/security/events/evt_1/resolve", r.URL.Path)
			json.NewEncoder(w).Encode(map[string]bool{"resolved": true})
		}))
		defer server.Close()

		client := sentinel.New(server.URL, "sk_test")
		assert.NoError(t, client.ResolveEvent(context.Background(), "evt_1"))
	})

	t.Run("unknown id maps to ErrNotFound", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{
				"error":             "not_found",
				"error_description": "event not found",
			})
		}))
		defer server.Close()

		client := sentinel.New(server.URL, "sk_test")
		assert.ErrorIs(t, client.ResolveEvent(context.Background(), "evt_missing"), sentinel.ErrNotFound)
	})
}

func TestClient_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "42")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{
			"error":             "rate_limit_exceeded",
			"error_description": "Rate limit exceeded",
		})
	}))
	defer server.Close()

	client := sentinel.New(server.URL, "sk_test")
	_, err := client.LogEvent(context.Background(), sentinel.EventInput{Type: "failed-login"})

	var rateErr *sentinel.RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, 42*time.Second, rateErr.RetryAfter)
}

func TestClient_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{
			"error":             "unauthorized",
			"error_description": "Invalid API key",
		})
	}))
	defer server.Close()

	client := sentinel.New(server.URL, "bad_key")
	_, err := client.LogEvent(context.Background(), sentinel.EventInput{Type: "failed-login"})

	var apiErr *sentinel.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "unauthorized", apiErr.Code)
	assert.Equal(t, "Invalid API key", apiErr.Description)
}
