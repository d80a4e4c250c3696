package restclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchGatewayReturnsURL(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if auth := r.Header.Get("Authorization"); auth != "Bot test-token" {
			t.Errorf("expected Authorization header 'Bot test-token', got %q", auth)
		}
		_ = json.NewEncoder(w).Encode(gatewayBotResponse{URL: "wss://gateway.example.com", Shards: 1})
	}))
	defer server.Close()

	c := New("test-token", nil)

	url, err := fetchFrom(c, server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "wss://gateway.example.com" {
		t.Errorf("expected wss://gateway.example.com, got %q", url)
	}
	if calls != 1 {
		t.Errorf("expected exactly one request, got %d", calls)
	}
}

func TestFetchGatewayCachesResult(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(gatewayBotResponse{URL: "wss://gateway.example.com"})
	}))
	defer server.Close()

	c := New("test-token", nil)

	if _, err := fetchFrom(c, server.URL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.FetchGateway(context.Background()); err != nil {
		t.Fatalf("unexpected error on cached fetch: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected the second call to be served from cache, got %d requests", calls)
	}
}

func TestFetchGatewayErrorsOnNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := New("test-token", nil)

	if _, err := fetchFrom(c, server.URL); err == nil {
		t.Fatal("expected an error on a non-200 response")
	}
}

func TestInvalidateForcesRefetch(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(gatewayBotResponse{URL: "wss://gateway.example.com"})
	}))
	defer server.Close()

	c := New("test-token", nil)

	if _, err := fetchFrom(c, server.URL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.Invalidate()
	if _, err := fetchFrom(c, server.URL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected Invalidate to force a second request, got %d", calls)
	}
}

// fetchFrom exercises FetchGateway against an arbitrary base URL (rather
// than the real Discord API), keeping the request path the production code
// calls. The rewriting transport stays installed on c afterwards.
func fetchFrom(c *Client, base string) (string, error) {
	// FetchGateway itself only ever talks to discordAPIBase, so the test
	// server is wired in through c.http's transport, which rewrites the
	// request URL's host to the test server.
	c.http.Transport = rewriteHostTransport{base: base}
	return c.FetchGateway(context.Background())
}

type rewriteHostTransport struct{ base string }

func (t rewriteHostTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	target, err := http.NewRequest(req.Method, t.base+req.URL.Path, req.Body)
	if err != nil {
		return nil, err
	}
	target.Header = req.Header
	return http.DefaultTransport.RoundTrip(target)
}
