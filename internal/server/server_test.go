package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	config "github.com/neverhome/neverhome-bot/internal/config"
	"github.com/neverhome/neverhome-bot/internal/model"
	"github.com/neverhome/neverhome-bot/internal/storage"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T) (*Server, *storage.Storage) {
	t.Helper()

	cfg := &config.Config{
		Secret: testSecret,
		Database: config.DatabaseConfig{
			Driver:     "sqlite3",
			Connection: ":memory:",
		},
		API: config.APIConfig{
			Host:         "localhost",
			Port:         0,
			Timeout:      5 * time.Second,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			IdleTimeout:  5 * time.Second,
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := storage.New(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return New(cfg, logger, db), db
}

func do(t *testing.T, srv *Server, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	srv.router.ServeHTTP(recorder, req)

	return recorder
}

func TestPing(t *testing.T) {
	srv, _ := newTestServer(t)

	recorder := do(t, srv, http.MethodGet, "/ping", "", "")
	require.Equal(t, http.StatusOK, recorder.Code)
}

func TestHealthCheck(t *testing.T) {
	srv, _ := newTestServer(t)

	srv.AddHealthCheck(func() (bool, map[string]string) {
		return true, map[string]string{"gateway": "testbot"}
	})

	recorder := do(t, srv, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, recorder.Code)

	var payload struct {
		Status string `json:"status"`
		Data   struct {
			Status map[string]string `json:"status"`
			Uptime string            `json:"uptime"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	require.Equal(t, "ok", payload.Status)
	require.Equal(t, "testbot", payload.Data.Status["gateway"])
	require.NotEmpty(t, payload.Data.Uptime)
}

func TestHealthCheckUnhealthy(t *testing.T) {
	srv, _ := newTestServer(t)

	srv.AddHealthCheck(func() (bool, map[string]string) {
		return false, map[string]string{"gateway": "not connected"}
	})

	recorder := do(t, srv, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusInternalServerError, recorder.Code)
}

func TestAdminRequiresToken(t *testing.T) {
	srv, _ := newTestServer(t)

	testcases := []struct {
		Name  string
		Token string
	}{
		{"missing token", ""},
		{"wrong token", "not-the-secret"},
	}

	for _, testcase := range testcases {
		t.Run(testcase.Name, func(t *testing.T) {
			recorder := do(t, srv, http.MethodGet, "/admin/bans?guild=g1", testcase.Token, "")
			require.Equal(t, http.StatusUnauthorized, recorder.Code)
		})
	}
}

func TestBansRoute(t *testing.T) {
	srv, db := newTestServer(t)

	require.NoError(t, db.LogBan(&model.BanRecord{
		GuildID:         "g-bans-route",
		Username:        "alice",
		Reason:          "spam",
		Platform:        "both",
		Moderator:       "mod",
		DurationSeconds: -1,
	}))

	recorder := do(t, srv, http.MethodGet, "/admin/bans?guild=g-bans-route", testSecret, "")
	require.Equal(t, http.StatusOK, recorder.Code)

	var payload struct {
		Data struct {
			Guild string            `json:"guild"`
			Bans  []model.BanRecord `json:"bans"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	require.Equal(t, "g-bans-route", payload.Data.Guild)
	require.Len(t, payload.Data.Bans, 1)
	require.Equal(t, "alice", payload.Data.Bans[0].Username)
}

func TestBansRouteRequiresGuild(t *testing.T) {
	srv, _ := newTestServer(t)

	recorder := do(t, srv, http.MethodGet, "/admin/bans", testSecret, "")
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestBansRouteRejectsBadLimit(t *testing.T) {
	srv, _ := newTestServer(t)

	recorder := do(t, srv, http.MethodGet, "/admin/bans?guild=g1&limit=nope", testSecret, "")
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestCredentialsRoute(t *testing.T) {
	srv, db := newTestServer(t)

	body := `{"guild_id":"g-credentials-route","api_key":"key","universe_id":"1234","is_active":true}`
	recorder := do(t, srv, http.MethodPut, "/admin/credentials", testSecret, body)
	require.Equal(t, http.StatusOK, recorder.Code)

	credential, err := db.GuildCredentials("g-credentials-route")
	require.NoError(t, err)
	require.Equal(t, "key", credential.APIKey)
	require.Equal(t, "1234", credential.UniverseID)
}

func TestCredentialsRouteValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	recorder := do(t, srv, http.MethodPut, "/admin/credentials", testSecret, `{"guild_id":"g1"}`)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}
