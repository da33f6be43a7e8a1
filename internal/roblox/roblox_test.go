package roblox

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	config "github.com/neverhome/neverhome-bot/internal/config"
)

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()

	cfg := &config.RobloxConfig{
		APIKey:             "test-key",
		UniverseID:         "42",
		UsersURL:           url,
		CloudURL:           url,
		LookupTimeout:      5 * time.Second,
		RestrictionTimeout: 5 * time.Second,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return New(&http.Client{}, cfg, logger)
}

func TestResolveUserID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/usernames/users", r.URL.Path)

		var request struct {
			Usernames          []string `json:"usernames"`
			ExcludeBannedUsers bool     `json:"excludeBannedUsers"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		require.Equal(t, []string{"alice"}, request.Usernames)
		require.False(t, request.ExcludeBannedUsers)

		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"id": 12345, "name": "alice"}},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	userID, ok := client.ResolveUserID(context.Background(), "alice")
	require.True(t, ok)
	require.Equal(t, int64(12345), userID)
}

func TestResolveUserIDNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{}})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, ok := client.ResolveUserID(context.Background(), "ghost")
	require.False(t, ok)
}

func TestResolveUserIDServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, ok := client.ResolveUserID(context.Background(), "alice")
	require.False(t, ok)
}

func TestResolveUserIDTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close() // refuse connections

	client := newTestClient(t, server.URL)

	_, ok := client.ResolveUserID(context.Background(), "alice")
	require.False(t, ok)
}

func TestApplyRestrictionPermanent(t *testing.T) {
	var body map[string]map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "/cloud/v2/universes/42/user-restrictions/12345", r.URL.Path)
		require.Equal(t, "gameJoinRestriction", r.URL.Query().Get("updateMask"))
		require.Equal(t, "test-key", r.Header.Get("x-api-key"))
		require.NotEmpty(t, r.Header.Get("x-idempotency-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"path":"ok"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	status, response := client.ApplyRestriction(context.Background(), 12345, -1, "display", "private", true)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, `{"path":"ok"}`, response)

	restriction := body["gameJoinRestriction"]
	require.Equal(t, true, restriction["active"])
	require.Equal(t, "display", restriction["displayReason"])
	require.Equal(t, "private", restriction["privateReason"])
	require.Equal(t, true, restriction["excludeAltAccounts"])
	_, hasDuration := restriction["duration"]
	require.False(t, hasDuration, "permanent restrictions must omit the duration field")
}

func TestApplyRestrictionTimedDuration(t *testing.T) {
	var body map[string]map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	status, _ := client.ApplyRestriction(context.Background(), 1, 3600, "d", "p", false)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "3600s", body["gameJoinRestriction"]["duration"])
}

func TestApplyRestrictionInvalidDuration(t *testing.T) {
	var calls atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	for _, duration := range []int64{0, -2, -100} {
		status, message := client.ApplyRestriction(context.Background(), 1, duration, "d", "p", false)
		require.Equal(t, http.StatusBadRequest, status)
		require.Contains(t, message, "duration")
	}

	require.Zero(t, calls.Load(), "invalid durations must not reach the network")
}

func TestApplyRestrictionIdempotencyKeyUniquePerCall(t *testing.T) {
	var keys []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys = append(keys, r.Header.Get("x-idempotency-key"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	client.ApplyRestriction(context.Background(), 1, -1, "d", "p", false)
	client.ApplyRestriction(context.Background(), 1, -1, "d", "p", false)

	require.Len(t, keys, 2)
	require.NotEmpty(t, keys[0])
	require.NotEqual(t, keys[0], keys[1])
}

func TestApplyRestrictionRemoteRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"invalid api key"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	status, response := client.ApplyRestriction(context.Background(), 1, -1, "d", "p", false)
	require.Equal(t, http.StatusForbidden, status)
	require.Contains(t, response, "invalid api key")
}

func TestApplyRestrictionTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	client := newTestClient(t, server.URL)

	status, message := client.ApplyRestriction(context.Background(), 1, -1, "d", "p", false)
	require.Equal(t, 0, status)
	require.Contains(t, message, "Network error")
}

func TestWithCredentials(t *testing.T) {
	client := newTestClient(t, "http://example.invalid")

	override := client.WithCredentials(Credentials{APIKey: "guild-key", UniverseID: "99"})
	require.Equal(t, "99", override.UniverseID())
	require.Equal(t, "42", client.UniverseID(), "base client must be untouched")

	partial := client.WithCredentials(Credentials{})
	require.Equal(t, "42", partial.UniverseID())
}

func TestBuildDurationString(t *testing.T) {
	testcases := []struct {
		Name     string
		Seconds  int64
		Expected string
		Valid    bool
	}{
		{Name: "permanent", Seconds: -1, Expected: "", Valid: true},
		{Name: "one hour", Seconds: 3600, Expected: "3600s", Valid: true},
		{Name: "one second", Seconds: 1, Expected: "1s", Valid: true},
		{Name: "zero rejected", Seconds: 0, Valid: false},
		{Name: "negative rejected", Seconds: -2, Valid: false},
	}

	for _, testcase := range testcases {
		t.Run(testcase.Name, func(t *testing.T) {
			actual, err := buildDurationString(testcase.Seconds)
			if testcase.Valid {
				require.NoError(t, err)
				require.Equal(t, testcase.Expected, actual)
			} else {
				require.ErrorIs(t, err, errInvalidDuration)
			}
		})
	}
}
