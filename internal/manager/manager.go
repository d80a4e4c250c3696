// Package manager provides session management for Discord Gateway connections.
package manager

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/arcwing/gatecore/internal/config"
	"github.com/arcwing/gatecore/internal/gateway"
	"github.com/arcwing/gatecore/internal/model"
	"github.com/arcwing/gatecore/internal/restclient"
	"github.com/arcwing/gatecore/internal/webhook"
)

// defaultGatewayURL is the well-known Discord Gateway endpoint used for the
// very first connect attempt, before any resume_gateway_url has been
// observed. gateway.Connection.reconnect refreshes this via m.rest once
// its own cached-URL attempts are exhausted.
const defaultGatewayURL = "wss://gateway.discord.gg"

// Common errors
var (
	ErrServerNotFound     = errors.New("server not found")
	ErrTooManyConnections = errors.New("maximum 15 connections allowed")
	ErrTOSNotAcknowledged = errors.New("TOS not acknowledged")
	ErrAlreadyConnected   = errors.New("already connected")
	ErrNotConnected       = errors.New("not connected")
)

// SessionManager manages multiple Gateway connections, one per configured
// server entry. Each session owns its own *gateway.Connection; the
// manager's job is the outer connect/retry loop and status bookkeeping
// around it, distinct from the core's own fixed mid-session recovery
// policy.
type SessionManager struct {
	token    string
	store    config.ConfigStore
	rest     *restclient.Client
	notifier *webhook.Notifier
	logger   *slog.Logger

	sessions map[string]*Session
	mu       sync.RWMutex

	// OnStatusChange notifies the WebSocket hub of a session's status.
	OnStatusChange func(serverID string, status ConnectionStatus, message string)

	ctx    context.Context
	cancel context.CancelFunc
}

// Session represents a single Gateway connection.
type Session struct {
	serverEntry config.ServerEntry
	state       *SessionState
	conn        *gateway.Connection

	ctx    context.Context
	cancel context.CancelFunc

	stopReconnect chan struct{}
	stopped       bool
	mu            sync.Mutex
}

// NewSessionManager creates a new session manager.
func NewSessionManager(token string, store config.ConfigStore, logger *slog.Logger) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SessionManager{
		token:    token,
		store:    store,
		rest:     restclient.New(token, logger),
		logger:   logger.With("component", "manager"),
		sessions: make(map[string]*Session),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SetNotifier attaches a webhook notifier for connection status changes. A
// nil notifier (or never calling this) simply means no webhook is sent; the
// webhook package itself already treats a nil *Notifier as a no-op.
func (m *SessionManager) SetNotifier(n *webhook.Notifier) {
	m.notifier = n
}

// Start initializes the session manager and auto-connects configured servers.
func (m *SessionManager) Start() error {
	cfg, err := m.store.Load()
	if err != nil {
		return err
	}

	if !cfg.TOSAcknowledged {
		m.logger.Warn("TOS not acknowledged, skipping auto-connect")
		return nil
	}

	var toConnect []config.ServerEntry
	for _, server := range cfg.Servers {
		if server.ConnectOnStart {
			toConnect = append(toConnect, server)
		}
	}

	// Auto-connect with staggered delays to avoid Discord rate limits:
	// IDENTIFY is limited to roughly 1 per 5 seconds per token. The initial
	// delay gives an old container's sessions time to close during a
	// rolling deploy before this one starts identifying too.
	if len(toConnect) > 0 {
		go func() {
			time.Sleep(5 * time.Second)

			for i, s := range toConnect {
				if i > 0 {
					time.Sleep(5 * time.Second)
				}
				if err := m.Join(s.ID); err != nil {
					m.logger.Error("failed to auto-connect", "server_id", s.ID, "error", err)
				}
			}
		}()
	}

	return nil
}

// Stop gracefully closes all connections.
func (m *SessionManager) Stop() {
	m.cancel()

	m.mu.Lock()
	defer m.mu.Unlock()

	for id, session := range m.sessions {
		m.logger.Info("stopping session", "server_id", id)
		session.cancel()
		session.shutdown()
	}
}

// Join starts a connection for a server entry.
func (m *SessionManager) Join(serverID string) error {
	cfg, err := m.store.Load()
	if err != nil {
		return err
	}
	if !cfg.TOSAcknowledged {
		return ErrTOSNotAcknowledged
	}

	var serverEntry *config.ServerEntry
	for i := range cfg.Servers {
		if cfg.Servers[i].ID == serverID {
			serverEntry = &cfg.Servers[i]
			break
		}
	}
	if serverEntry == nil {
		return ErrServerNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if session, exists := m.sessions[serverID]; exists {
		if session.state.ConnectionStatus == StatusConnected ||
			session.state.ConnectionStatus == StatusConnecting {
			return ErrAlreadyConnected
		}
	}

	activeCount := 0
	for _, s := range m.sessions {
		if s.state.ConnectionStatus == StatusConnected ||
			s.state.ConnectionStatus == StatusConnecting {
			activeCount++
		}
	}
	if activeCount >= config.MaxServerEntries {
		return ErrTooManyConnections
	}

	ctx, cancel := context.WithCancel(m.ctx)
	session := &Session{
		serverEntry:   *serverEntry,
		state:         NewSessionState(serverID),
		ctx:           ctx,
		cancel:        cancel,
		stopReconnect: make(chan struct{}),
	}

	m.sessions[serverID] = session

	go m.runSession(session)

	return nil
}

// Rejoin closes the existing connection and reconnects from scratch.
func (m *SessionManager) Rejoin(serverID string) error {
	m.mu.Lock()
	session, exists := m.sessions[serverID]
	m.mu.Unlock()

	if !exists {
		return m.Join(serverID)
	}

	session.stop()
	session.cancel()

	m.mu.Lock()
	delete(m.sessions, serverID)
	m.mu.Unlock()

	// Let the session's goroutine observe cancellation before starting a
	// new one for the same server id.
	time.Sleep(100 * time.Millisecond)

	return m.Join(serverID)
}

// Exit closes a connection and stops reconnection.
func (m *SessionManager) Exit(serverID string) error {
	m.mu.Lock()
	session, exists := m.sessions[serverID]
	if !exists {
		m.mu.Unlock()
		return ErrNotConnected
	}
	session.state.MarkDisconnected()
	m.mu.Unlock()

	m.notifyStatusChange(serverID, StatusDisconnected, "user requested exit")

	session.stop()
	session.cancel()

	m.mu.Lock()
	delete(m.sessions, serverID)
	m.mu.Unlock()

	m.logger.Info("session exited", "server_id", serverID)
	return nil
}

// GetStatus returns the current status of a session.
func (m *SessionManager) GetStatus(serverID string) (ConnectionStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[serverID]
	if !exists {
		return StatusDisconnected, nil
	}
	return session.state.ConnectionStatus, nil
}

// GetAllStatuses returns status for all sessions.
func (m *SessionManager) GetAllStatuses() map[string]ConnectionStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	statuses := make(map[string]ConnectionStatus)
	for id, session := range m.sessions {
		statuses[id] = session.state.ConnectionStatus
	}
	return statuses
}

// runSession drives one server's Gateway lifecycle: outer connect-with-backoff,
// then RecvEvent in a loop until it returns a non-recoverable error (at
// which point a fresh outer connect attempt is made).
func (m *SessionManager) runSession(session *Session) {
	serverID := session.serverEntry.ID
	m.logger.Info("starting session", "server_id", serverID)

	retrier := gateway.NewOuterRetrier(0, m.logger)
	retrier.OnRetry = func(attempt int, delay time.Duration) {
		m.notifier.NotifyReconnecting(serverID, attempt, delay)
	}

	for {
		select {
		case <-session.ctx.Done():
			return
		case <-session.stopReconnect:
			return
		default:
		}

		session.state.MarkConnecting()
		m.notifyStatusChange(serverID, StatusConnecting, "connecting...")

		connectFn := func(ctx context.Context) (*gateway.Connection, gateway.ReadySnapshot, error) {
			return gateway.Connect(ctx, defaultGatewayURL, m.token, m.rest, m.logger)
		}

		conn, snapshot, err := retrier.Run(session.ctx, connectFn)
		if err != nil {
			session.state.MarkError(err.Error())
			m.notifyStatusChange(serverID, StatusError, err.Error())
			m.notifier.NotifyDown(serverID, session.serverEntry.GuildID, session.serverEntry.ChannelID, err.Error())
			return
		}

		session.mu.Lock()
		session.conn = conn
		session.mu.Unlock()

		session.state.MarkConnected(snapshot.SessionID)
		m.notifyStatusChange(serverID, StatusConnected, "connected")
		m.notifier.NotifyUp(serverID, session.serverEntry.GuildID, session.serverEntry.ChannelID)

		if session.serverEntry.ChannelID != "" {
			// Voice returns nil without a bridge, so attach one first.
			conn.AttachVoice(gateway.NewVoiceBridge(nil))
			voice := conn.Voice(session.serverEntry.GuildID)
			voice.Join(session.serverEntry.ChannelID, false, false)
		}

		m.drainEvents(session, conn)

		select {
		case <-session.ctx.Done():
			return
		case <-session.stopReconnect:
			return
		default:
		}
	}
}

// drainEvents calls RecvEvent until the Connection reports an error it
// cannot recover from internally, updating session state for every
// dispatch that arrives in between.
func (m *SessionManager) drainEvents(session *Session, conn *gateway.Connection) {
	serverID := session.serverEntry.ID

	for {
		event, err := conn.RecvEvent(session.ctx)
		if err != nil {
			session.state.MarkError(err.Error())
			m.notifyStatusChange(serverID, StatusError, err.Error())
			m.notifier.NotifyDown(serverID, session.serverEntry.GuildID, session.serverEntry.ChannelID, err.Error())

			if gerr, ok := gateway.AsGatewayError(err); ok && gerr.Kind == gateway.KindClosed && gateway.IsFatalCloseCode(gerr.Code) {
				m.logger.Error("fatal close code, stopping reconnection", "server_id", serverID, "error", err)
				session.stop()
			}
			return
		}

		if ready, ok := event.(model.Ready); ok {
			session.state.SessionID = ready.SessionID
		}
		session.state.UpdateSequence(conn.LastSequence())
	}
}

func (s *Session) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.stopReconnect)
}

func (s *Session) shutdown() {
	s.stop()
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		_ = conn.Shutdown()
	}
}

// notifyStatusChange calls the status change callback.
func (m *SessionManager) notifyStatusChange(serverID string, status ConnectionStatus, message string) {
	if m.OnStatusChange != nil {
		m.OnStatusChange(serverID, status, message)
	}
}
