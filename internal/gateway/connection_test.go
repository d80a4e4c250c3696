package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
)

const testToken = "test-token"

// mockGatewayServer simulates a Discord Gateway endpoint: it greets every
// connection with HELLO, answers IDENTIFY/RESUME with READY/RESUMED, and
// lets a test script server-initiated frames (Reconnect, InvalidSession,
// close codes) to drive the recovery paths in RecvEvent.
type mockGatewayServer struct {
	server *httptest.Server

	mu             sync.Mutex
	conn           *websocket.Conn
	heartbeatCount int
	identifyCount  int
	sessionID      string
	helloInterval  int

	onIdentify func(data json.RawMessage)
	onFrame    func(env envelope)
}

func newMockGatewayServer(t *testing.T) *mockGatewayServer {
	t.Helper()
	mock := &mockGatewayServer{sessionID: "test-session-123", helloInterval: 100}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
		if err != nil {
			return
		}

		mock.mu.Lock()
		mock.conn = conn
		interval := mock.helloInterval
		mock.mu.Unlock()

		hello := map[string]any{"op": OpHello, "d": map[string]any{"heartbeat_interval": interval}}
		data, _ := json.Marshal(hello)
		if err := conn.Write(r.Context(), websocket.MessageText, data); err != nil {
			return
		}

		for {
			_, raw, err := conn.Read(r.Context())
			if err != nil {
				return
			}
			mock.handle(r.Context(), raw)
		}
	})

	mock.server = httptest.NewServer(handler)
	return mock
}

func (m *mockGatewayServer) url() string {
	return "ws" + strings.TrimPrefix(m.server.URL, "http")
}

func (m *mockGatewayServer) close() {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "test server closing")
	}
	m.server.Close()
}

func (m *mockGatewayServer) heartbeats() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.heartbeatCount
}

func (m *mockGatewayServer) handle(ctx context.Context, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return
	}

	m.mu.Lock()
	cb := m.onFrame
	m.mu.Unlock()
	if cb != nil {
		cb(env)
	}

	switch env.Op {
	case OpIdentify:
		m.mu.Lock()
		m.identifyCount++
		conn := m.conn
		sessionID := m.sessionID
		if cb := m.onIdentify; cb != nil {
			m.mu.Unlock()
			cb(env.Data)
			m.mu.Lock()
		}
		m.mu.Unlock()

		ready := map[string]any{
			"op": OpDispatch, "t": "READY", "s": 1,
			"d": map[string]any{"v": GatewayVersion, "session_id": sessionID, "resume_gateway_url": m.url()},
		}
		data, _ := json.Marshal(ready)
		_ = conn.Write(ctx, websocket.MessageText, data)

	case OpResume:
		m.mu.Lock()
		conn := m.conn
		m.mu.Unlock()
		resumed := map[string]any{"op": OpDispatch, "t": "RESUMED", "s": 2, "d": map[string]any{}}
		data, _ := json.Marshal(resumed)
		_ = conn.Write(ctx, websocket.MessageText, data)

	case OpHeartbeat:
		m.mu.Lock()
		m.heartbeatCount++
		conn := m.conn
		m.mu.Unlock()
		ack := map[string]any{"op": OpHeartbeatAck}
		data, _ := json.Marshal(ack)
		_ = conn.Write(ctx, websocket.MessageText, data)
	}
}

func TestConnectPerformsHandshake(t *testing.T) {
	mock := newMockGatewayServer(t)
	defer mock.close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, snapshot, err := Connect(ctx, mock.url(), testToken, nil, nil)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer conn.Shutdown()

	if snapshot.SessionID != "test-session-123" {
		t.Errorf("expected session id test-session-123, got %q", snapshot.SessionID)
	}
	if snapshot.HeartbeatInterval != 100*time.Millisecond {
		t.Errorf("expected 100ms heartbeat interval, got %v", snapshot.HeartbeatInterval)
	}
	if conn.SessionID() != "test-session-123" {
		t.Errorf("Connection.SessionID() = %q", conn.SessionID())
	}
}

func TestKeepaliveSendsHeartbeatsOnSchedule(t *testing.T) {
	mock := newMockGatewayServer(t)
	mock.helloInterval = 50
	defer mock.close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := Connect(ctx, mock.url(), testToken, nil, nil)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer conn.Shutdown()

	deadline := time.After(2 * time.Second)
	for {
		if mock.heartbeats() >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected at least 2 heartbeats, got %d", mock.heartbeats())
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestRecvEventDeliversDispatch(t *testing.T) {
	mock := newMockGatewayServer(t)
	defer mock.close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := Connect(ctx, mock.url(), testToken, nil, nil)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer conn.Shutdown()

	mock.mu.Lock()
	serverConn := mock.conn
	mock.mu.Unlock()

	voice := map[string]any{"op": OpDispatch, "t": "VOICE_STATE_UPDATE", "s": 3, "d": map[string]any{"guild_id": "g1", "user_id": "u1", "session_id": "vs1"}}
	data, _ := json.Marshal(voice)
	if err := serverConn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("failed to send voice state update: %v", err)
	}

	event, err := conn.RecvEvent(ctx)
	if err != nil {
		t.Fatalf("RecvEvent failed: %v", err)
	}
	if event.EventType() != "VOICE_STATE_UPDATE" {
		t.Errorf("expected VOICE_STATE_UPDATE, got %s", event.EventType())
	}
	if conn.LastSequence() != 3 {
		t.Errorf("expected last sequence 3, got %d", conn.LastSequence())
	}
}

func TestRecvEventAnswersServerHeartbeatRequest(t *testing.T) {
	mock := newMockGatewayServer(t)
	// Long enough that the keepalive worker's own periodic heartbeat can't
	// fire during this test, so any heartbeat the mock sees must have come
	// from RecvEvent answering the injected request below.
	mock.helloInterval = 10000
	defer mock.close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := Connect(ctx, mock.url(), testToken, nil, nil)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer conn.Shutdown()

	// RecvEvent owns the read loop; a server Heartbeat request only gets
	// answered while something is actually calling it. It never returns on
	// a Heartbeat or Ack by itself, only on a dispatch, Reconnect, or
	// error, so drive it from a background goroutine for the life of the
	// test.
	go func() {
		for {
			if _, err := conn.RecvEvent(ctx); err != nil {
				return
			}
		}
	}()

	mock.mu.Lock()
	serverConn := mock.conn
	before := mock.heartbeatCount
	mock.mu.Unlock()

	req := map[string]any{"op": OpHeartbeat, "d": nil}
	data, _ := json.Marshal(req)
	if err := serverConn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("failed to send heartbeat request: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		if mock.heartbeats() > before {
			return
		}
		select {
		case <-deadline:
			t.Fatal("expected heartbeat reply to server-initiated heartbeat request")
		case <-time.After(20 * time.Millisecond):
		}
	}
}

// fakeFetcher is a GatewayURLFetcher whose FetchGateway always returns a
// URL that cannot be dialed, so reconnect's REST-fallback attempt fails and
// this records whether Invalidate was called in response.
type fakeFetcher struct {
	mu         sync.Mutex
	url        string
	invalidate int
}

func (f *fakeFetcher) FetchGateway(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.url, nil
}

func (f *fakeFetcher) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidate++
}

func (f *fakeFetcher) invalidateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.invalidate
}

func TestReconnectInvalidatesURLWhenRESTFallbackFailsToDial(t *testing.T) {
	fetcher := &fakeFetcher{url: "ws://127.0.0.1:1/does-not-exist"}

	conn := &Connection{
		gatewayURL: "ws://127.0.0.1:1/does-not-exist",
		token:      testToken,
		fetcher:    fetcher,
		logger:     slog.Default(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := conn.reconnect(ctx); err == nil {
		t.Fatal("expected reconnect to fail when no gateway endpoint is reachable")
	}
	if fetcher.invalidateCount() != 1 {
		t.Errorf("expected Invalidate to be called once, got %d", fetcher.invalidateCount())
	}
}

func TestInvalidateSessionDuringOpenReidentifies(t *testing.T) {
	mock := newMockGatewayServer(t)
	defer mock.close()

	// Swap the handler to send InvalidSession on the first IDENTIFY only.
	var once sync.Once
	mock.onIdentify = func(data json.RawMessage) {
		once.Do(func() {
			mock.mu.Lock()
			conn := mock.conn
			mock.mu.Unlock()
			invalid := map[string]any{"op": OpInvalidSession, "d": false}
			raw, _ := json.Marshal(invalid)
			_ = conn.Write(context.Background(), websocket.MessageText, raw)
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, snapshot, err := Connect(ctx, mock.url(), testToken, nil, nil)
	if err != nil {
		t.Fatalf("Connect failed despite reidentify-on-invalidate: %v", err)
	}
	defer conn.Shutdown()

	if snapshot.SessionID == "" {
		t.Error("expected a session id after successful reidentify")
	}
	mock.mu.Lock()
	count := mock.identifyCount
	mock.mu.Unlock()
	if count < 2 {
		t.Errorf("expected at least 2 IDENTIFY frames (original + reidentify), got %d", count)
	}
}

func TestResumeAfterTransportDrop(t *testing.T) {
	mock := newMockGatewayServer(t)
	defer mock.close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, snapshot, err := Connect(ctx, mock.url(), testToken, nil, nil)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer conn.Shutdown()
	if snapshot.SessionID == "" {
		t.Fatal("expected a session id before simulating a drop")
	}

	event, err := conn.resume(ctx, snapshot.SessionID)
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if event.EventType() != "RESUMED" {
		t.Errorf("expected RESUMED dispatch, got %s", event.EventType())
	}
}

func TestCloseCodeGatesResume(t *testing.T) {
	if IsResumableClose(CloseNormal) {
		t.Error("1000 (clean close) must not be resumable")
	}
	if IsResumableClose(CloseInvalidSession) {
		t.Error("4006 (session gone) must not be resumable")
	}
	if !IsResumableClose(CloseUnknownError) {
		t.Error("an ordinary unknown-error close should be resumable")
	}
}

func TestSetGameSendsPresenceUpdate(t *testing.T) {
	mock := newMockGatewayServer(t)
	defer mock.close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := Connect(ctx, mock.url(), testToken, nil, nil)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer conn.Shutdown()

	received := make(chan envelope, 1)
	mock.mu.Lock()
	mock.onFrame = func(env envelope) {
		if env.Op == OpPresenceUpdate {
			select {
			case received <- env:
			default:
			}
		}
	}
	mock.mu.Unlock()

	conn.SetGame("testing")

	select {
	case env := <-received:
		if env.Op != OpPresenceUpdate {
			t.Errorf("expected OpPresenceUpdate (%d), got %d", OpPresenceUpdate, env.Op)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected to observe a presence update frame")
	}
}
