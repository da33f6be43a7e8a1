// Roblox Open Cloud v2 user-restrictions and legacy Users API client.
// https://create.roblox.com/docs/cloud/reference/UserRestriction

package roblox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	config "github.com/neverhome/neverhome-bot/internal/config"
)

var errInvalidDuration = errors.New("duration must be -1 (forever) or a positive number of seconds")

// Client talks to the Roblox platform for one universe. Credentials is the
// per-guild override surface: a zero Credentials falls back to the config.
type Client struct {
	httpClient         *http.Client
	logger             *slog.Logger
	apiKey             string
	universeID         string
	usersURL           string
	cloudURL           string
	lookupTimeout      time.Duration
	restrictionTimeout time.Duration
}

// Credentials overrides the universe and API key for one guild.
type Credentials struct {
	APIKey     string
	UniverseID string
}

func New(httpClient *http.Client, cfg *config.RobloxConfig, logger *slog.Logger) *Client {
	return &Client{
		httpClient:         httpClient,
		logger:             logger,
		apiKey:             cfg.APIKey,
		universeID:         cfg.UniverseID,
		usersURL:           cfg.UsersURL,
		cloudURL:           cfg.CloudURL,
		lookupTimeout:      cfg.LookupTimeout,
		restrictionTimeout: cfg.RestrictionTimeout,
	}
}

// WithCredentials returns a client targeting a different universe with a
// different API key, sharing the transport and timeouts.
func (c *Client) WithCredentials(credentials Credentials) *Client {
	clone := *c
	if credentials.APIKey != "" {
		clone.apiKey = credentials.APIKey
	}
	if credentials.UniverseID != "" {
		clone.universeID = credentials.UniverseID
	}

	return &clone
}

// UniverseID - the universe this client applies restrictions to.
func (c *Client) UniverseID() string {
	return c.universeID
}

// ResolveUserID looks up the numeric user ID for an exact username. All
// failure modes alike (network error, non-200, no match) yield (0, false);
// the reason is logged, never surfaced.
func (c *Client) ResolveUserID(ctx context.Context, username string) (int64, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.lookupTimeout)
	defer cancel()

	payload, err := json.Marshal(map[string]any{
		"usernames":          []string{username},
		"excludeBannedUsers": false,
	})
	if err != nil {
		return 0, false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.usersURL+"/v1/usernames/users", bytes.NewReader(payload))
	if err != nil {
		return 0, false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Roblox username lookup error",
			slog.String("username", username),
			slog.String("error", err.Error()))
		return 0, false
	}
	defer resp.Body.Close()

	var lookup struct {
		Data []struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"data"`
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.logger.Warn("Roblox username lookup failed",
			slog.String("username", username),
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(body)))
		return 0, false
	}

	if err := json.NewDecoder(resp.Body).Decode(&lookup); err != nil {
		c.logger.Error("Roblox username lookup decode error",
			slog.String("username", username),
			slog.String("error", err.Error()))
		return 0, false
	}

	if len(lookup.Data) == 0 {
		c.logger.Info("Roblox username not found", slog.String("username", username))
		return 0, false
	}

	userID := lookup.Data[0].ID
	c.logger.Info("Resolved Roblox username",
		slog.String("username", username),
		slog.Int64("user_id", userID))

	return userID, true
}

// gameJoinRestriction is the Cloud v2 restriction payload. Duration is
// omitted entirely for permanent restrictions.
type gameJoinRestriction struct {
	Active             bool   `json:"active"`
	DisplayReason      string `json:"displayReason"`
	PrivateReason      string `json:"privateReason"`
	ExcludeAltAccounts bool   `json:"excludeAltAccounts"`
	Duration           string `json:"duration,omitempty"`
}

// ApplyRestriction PATCHes an active game-join restriction for the user.
// Returns the HTTP status and the response body; status 0 means the request
// never reached the platform (transport failure), 400 with no network call
// means the duration failed validation. Re-issuing overwrites the active
// restriction, it does not append; the per-call idempotency key only guards
// against double-applied retries of the same request.
func (c *Client) ApplyRestriction(
	ctx context.Context,
	userID int64,
	durationSeconds int64,
	displayReason string,
	privateReason string,
	excludeAltAccounts bool,
) (int, string) {
	durationStr, err := buildDurationString(durationSeconds)
	if err != nil {
		return http.StatusBadRequest, err.Error()
	}

	body, err := json.Marshal(map[string]any{
		"gameJoinRestriction": gameJoinRestriction{
			Active:             true,
			DisplayReason:      displayReason,
			PrivateReason:      privateReason,
			ExcludeAltAccounts: excludeAltAccounts,
			Duration:           durationStr,
		},
	})
	if err != nil {
		return http.StatusBadRequest, err.Error()
	}

	endpoint := fmt.Sprintf(
		"%s/cloud/v2/universes/%s/user-restrictions/%d?updateMask=%s",
		c.cloudURL,
		url.PathEscape(c.universeID),
		userID,
		url.QueryEscape("gameJoinRestriction"),
	)

	ctx, cancel := context.WithTimeout(ctx, c.restrictionTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Sprintf("Network error: %v", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-idempotency-key", uuid.NewString())

	c.logger.Debug("Applying Roblox game-join restriction",
		slog.Int64("user_id", userID),
		slog.String("duration", durationLabelOrPermanent(durationStr)),
		slog.String("display_reason", displayReason),
		slog.Bool("exclude_alts", excludeAltAccounts))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Roblox restriction network error",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()))
		return 0, fmt.Sprintf("Network error: %v", err)
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.logger.Debug("Roblox restriction applied",
			slog.Int64("user_id", userID),
			slog.String("display_reason", displayReason))
	} else {
		c.logger.Warn("Roblox restriction failed",
			slog.Int64("user_id", userID),
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(payload)))
	}

	return resp.StatusCode, string(payload)
}

// buildDurationString encodes the restriction duration: -1 means permanent
// (no duration field at all), positive seconds become "<n>s", everything
// else is invalid. Zero is deliberately rejected.
func buildDurationString(seconds int64) (string, error) {
	if seconds == -1 {
		return "", nil
	}
	if seconds <= 0 {
		return "", errInvalidDuration
	}

	return strconv.FormatInt(seconds, 10) + "s", nil
}

func durationLabelOrPermanent(durationStr string) string {
	if durationStr == "" {
		return "PERMANENT"
	}

	return durationStr
}
