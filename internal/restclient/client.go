// Package restclient is the REST collaborator the gateway core falls back
// to when its cached gateway_url stops working: GET /gateway/bot returns a
// fresh wss:// URL to dial.
package restclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	discordAPIBase = "https://discord.com/api/v10"
	gatewayCacheTTL = 5 * time.Minute
)

// Client fetches and caches the recommended Gateway URL, grounded on the
// same cache-entry/TTL/mutex shape the Discord REST handler uses for
// guild/channel lookups.
type Client struct {
	token  string
	http   *http.Client
	logger *slog.Logger

	mu        sync.RWMutex
	cachedURL string
	expiresAt time.Time
}

// New creates a REST client authenticated with token.
func New(token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		token:  token,
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: logger.With("component", "restclient"),
	}
}

type gatewayBotResponse struct {
	URL               string `json:"url"`
	Shards            int    `json:"shards"`
	SessionStartLimit struct {
		Total      int `json:"total"`
		Remaining  int `json:"remaining"`
		ResetAfter int `json:"reset_after"`
	} `json:"session_start_limit"`
}

// FetchGateway implements gateway.GatewayURLFetcher: it returns a cached URL
// when still fresh, otherwise calls GET /gateway/bot and caches the result.
// This is the last-resort URL refresh gateway.Connection's reconnect
// policy falls back to once its cached-URL attempts are exhausted.
func (c *Client) FetchGateway(ctx context.Context) (string, error) {
	if url, ok := c.cached(); ok {
		return url, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, discordAPIBase+"/gateway/bot", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bot "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("restclient: GET /gateway/bot returned status %d", resp.StatusCode)
	}

	var body gatewayBotResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("restclient: decoding gateway/bot response: %w", err)
	}
	if body.URL == "" {
		return "", fmt.Errorf("restclient: gateway/bot response carried no url")
	}

	c.setCached(body.URL)
	c.logger.Debug("refreshed gateway url", "url", body.URL, "shards", body.Shards)
	return body.URL, nil
}

func (c *Client) cached() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cachedURL != "" && time.Now().Before(c.expiresAt) {
		return c.cachedURL, true
	}
	return "", false
}

func (c *Client) setCached(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cachedURL = url
	c.expiresAt = time.Now().Add(gatewayCacheTTL)
}

// Invalidate drops the cached URL, forcing the next FetchGateway call to
// hit the REST API again. The core calls this when a REST-refreshed URL
// itself fails to dial, so a stale cache entry can't wedge recovery.
func (c *Client) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cachedURL = ""
}
