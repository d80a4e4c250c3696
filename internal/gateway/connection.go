package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/arcwing/gatecore/internal/model"
	"github.com/coder/websocket"
)

// reconnectCachedAttempts and reconnectPause implement the fixed recovery
// policy: up to two attempts against the cached gateway_url with a flat 1s
// pause between them, no backoff growth.
const (
	reconnectCachedAttempts = 2
	reconnectPause          = 1 * time.Second
)

// GatewayURLFetcher is the REST collaborator: FetchGateway is invoked only
// as a last-resort URL refresh when both cached-URL reconnect attempts
// fail. Invalidate drops whatever URL it had cached, so that if the
// REST-refreshed URL itself fails to dial, the next fetch doesn't just
// hand back the same bad entry.
type GatewayURLFetcher interface {
	FetchGateway(ctx context.Context) (string, error)
	Invalidate()
}

// ReadySnapshot is the state handed back to the caller of Connect: the
// first READY the handshake observed, plus the derived fields the core
// tracks.
type ReadySnapshot struct {
	SessionID         string
	HeartbeatInterval time.Duration
	Ready             model.Ready
}

// Connection is the stable handle callers hold across reconnects.
// Internally, reconnect swaps the session fields (gatewayURL, sessionID,
// lastSeq, conn, commands) in place; callers never see a new handle.
type Connection struct {
	mu sync.Mutex

	gatewayURL string
	token      string
	sessionID  string
	lastSeq    int

	conn     *websocket.Conn
	commands *commandChannel

	voice   *VoiceBridge
	fetcher GatewayURLFetcher
	logger  *slog.Logger

	shuttingDown bool
}

// Connect establishes a connection to the Gateway: dial, await HELLO, send
// IDENTIFY, await READY. fetcher may be nil; it is only used by the
// reconnect policy's last-resort REST fallback.
func Connect(ctx context.Context, gatewayURL, token string, fetcher GatewayURLFetcher, logger *slog.Logger) (*Connection, ReadySnapshot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "gateway")

	conn, interval, ready, seq, err := openFresh(ctx, gatewayURL, token)
	if err != nil {
		return nil, ReadySnapshot{}, err
	}

	commands := newCommandChannel()
	kl := newKeepalive(conn, interval, commands, logger.With("subcomponent", "keepalive"))
	go kl.run(ctx)

	c := &Connection{
		gatewayURL: gatewayURL,
		token:      token,
		sessionID:  ready.SessionID,
		lastSeq:    seq,
		conn:       conn,
		commands:   commands,
		fetcher:    fetcher,
		logger:     logger,
	}

	snapshot := ReadySnapshot{
		SessionID:         ready.SessionID,
		HeartbeatInterval: interval,
		Ready:             ready,
	}
	return c, snapshot, nil
}

// openFresh performs one full dial+HELLO+IDENTIFY+READY handshake against
// url without touching any Connection state, so it can be reused by both
// Connect and reconnect's cached-URL attempts.
func openFresh(ctx context.Context, gatewayURL, token string) (*websocket.Conn, time.Duration, model.Ready, int, error) {
	conn, err := dial(ctx, gatewayURL)
	if err != nil {
		return nil, 0, model.Ready{}, 0, err
	}

	interval, err := awaitHello(ctx, conn)
	if err != nil {
		_ = conn.Close(websocket.StatusProtocolError, "handshake failed")
		return nil, 0, model.Ready{}, 0, err
	}

	if err := sendIdentify(ctx, conn, token); err != nil {
		_ = conn.Close(websocket.StatusProtocolError, "handshake failed")
		return nil, 0, model.Ready{}, 0, err
	}

	ready, seq, err := awaitReady(ctx, conn, token)
	if err != nil {
		_ = conn.Close(websocket.StatusProtocolError, "handshake failed")
		return nil, 0, model.Ready{}, 0, err
	}
	ready = model.NewHelloInterval(ready, int(interval/time.Millisecond))

	return conn, interval, ready, seq, nil
}

// AttachVoice installs the voice bridge. A nil bridge (the default)
// makes voice routing in RecvEvent a no-op, preserving optionality.
func (c *Connection) AttachVoice(bridge *VoiceBridge) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.voice = bridge
}

// SessionID returns the currently held session id, or "" if none: an
// empty session id means the next recovery must IDENTIFY, not RESUME.
func (c *Connection) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// LastSequence returns the last dispatch sequence observed.
func (c *Connection) LastSequence() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeq
}

// SetGame sends a presence update carrying a game name, or clears it when
// name is empty. This is a non-blocking control operation; it goes through
// the keepalive worker's command channel like every other outbound frame,
// since the Connection orchestrator itself never writes directly.
func (c *Connection) SetGame(name string) {
	data := presenceData{IdleSince: nil}
	if name != "" {
		data.Game = &gameData{Name: name}
	}
	frame := presenceFrame{Op: OpPresenceUpdate, Data: data}
	c.commandsSnapshot().send(sendMessageCmd{payload: frame})
}

// DownloadMembers issues an op-8 REQUEST GUILD MEMBERS frame.
func (c *Connection) DownloadMembers(guildIDs []string) {
	frame := requestMembersFrame{
		Op: OpRequestMembers,
		Data: requestMembersData{
			GuildID: guildIDs,
			Query:   "",
			Limit:   0,
		},
	}
	c.commandsSnapshot().send(sendMessageCmd{payload: frame})
}

// Voice returns the voice handle for a server, lazily creating one via the
// attached bridge. It returns nil if no bridge is attached.
func (c *Connection) Voice(serverID string) *VoiceHandle {
	c.mu.Lock()
	bridge := c.voice
	cmds := c.commands
	c.mu.Unlock()
	if bridge == nil {
		return nil
	}
	return bridge.handle(serverID, cmds)
}

// DropVoice removes the voice handle for a server, if a bridge is attached.
func (c *Connection) DropVoice(serverID string) {
	c.mu.Lock()
	bridge := c.voice
	c.mu.Unlock()
	if bridge != nil {
		bridge.drop(serverID)
	}
}

func (c *Connection) commandsSnapshot() *commandChannel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commands
}

// RecvEvent blocks until the next application event is available. It
// loops, rather than recursing, on Heartbeat requests, Ack, and
// InvalidateSession, and drives resume/reconnect recovery on transport
// errors and closes.
func (c *Connection) RecvEvent(ctx context.Context) (model.Event, error) {
	for {
		c.mu.Lock()
		conn := c.conn
		token := c.token
		sessionID := c.sessionID
		c.mu.Unlock()

		ev, err := recvJSON(ctx, conn, model.Decode)
		if err != nil {
			return c.recoverFrom(ctx, err)
		}

		switch {
		case ev.IsDispatch():
			event := ev.Event()
			c.mu.Lock()
			c.lastSeq = ev.Sequence()
			c.mu.Unlock()
			c.commandsSnapshot().send(sequenceCmd{seq: ev.Sequence()})

			if resumed, ok := event.(model.Resumed); ok && resumed.HeartbeatInterval > 0 {
				c.commandsSnapshot().send(changeIntervalCmd{ms: resumed.HeartbeatInterval})
			}
			c.routeVoice(event)
			return event, nil

		case ev.IsHeartbeat():
			seq := ev.Sequence()
			frame := heartbeatFrame{Op: OpHeartbeat, Data: &seq}
			c.commandsSnapshot().send(sendMessageCmd{payload: frame})
			continue

		case ev.IsAck():
			// The server answers every client heartbeat with one of these;
			// nothing to do but keep reading.
			continue

		case ev.IsReconnect():
			ready, err := c.reconnect(ctx)
			if err != nil {
				return nil, err
			}
			return ready, nil

		case ev.IsInvalidateSession():
			c.mu.Lock()
			c.sessionID = ""
			c.mu.Unlock()
			c.commandsSnapshot().send(sendMessageCmd{payload: identifyFrame{
				Op:   OpIdentify,
				Data: identifyData{Token: token, Properties: clientProperties},
			}})
			_ = sessionID
			continue

		default:
			return nil, newProtocolErr("unrecognized gateway event")
		}
	}
}

// routeVoice forwards voice-related dispatches to the attached bridge, if
// any.
func (c *Connection) routeVoice(event model.Event) {
	c.mu.Lock()
	bridge := c.voice
	cmds := c.commands
	c.mu.Unlock()
	if bridge == nil {
		return
	}
	switch e := event.(type) {
	case model.VoiceStateUpdate:
		bridge.handle(e.GuildID, cmds).updateState(e)
	case model.VoiceServerUpdate:
		bridge.handle(e.GuildID, cmds).updateServer(e)
	}
}

// recoverFrom implements the error-recovery table: transport errors
// and closes try resume first (when a session_id is held and the close
// code is resumable), falling through to reconnect otherwise. Any other
// error is propagated to the caller unchanged.
func (c *Connection) recoverFrom(ctx context.Context, err error) (model.Event, error) {
	gerr, ok := AsGatewayError(err)
	if !ok {
		return nil, err
	}

	switch gerr.Kind {
	case KindTransport:
		c.logger.Warn("transport error, attempting recovery", "error", gerr)
		if sessionID := c.SessionID(); sessionID != "" {
			if event, err := c.resume(ctx, sessionID); err == nil {
				return event, nil
			} else {
				c.logger.Debug("resume failed, falling back to reconnect", "error", err)
			}
		}
		ready, err := c.reconnect(ctx)
		if err != nil {
			return nil, err
		}
		return ready, nil

	case KindClosed:
		if IsFatalCloseCode(gerr.Code) {
			c.logger.Error("fatal close code, not attempting recovery", "code", gerr.Code)
			return nil, fmt.Errorf("%w: %w", ErrFatalClose, err)
		}
		c.logger.Warn("connection closed, attempting recovery", "code", gerr.Code)
		sessionID := c.SessionID()
		if IsResumableClose(gerr.Code) && sessionID != "" {
			if event, err := c.resume(ctx, sessionID); err == nil {
				return event, nil
			} else {
				c.logger.Debug("resume failed, falling back to reconnect", "error", err)
			}
		}
		ready, err := c.reconnect(ctx)
		if err != nil {
			return nil, err
		}
		return ready, nil

	default:
		return nil, err
	}
}

// resume shuts down the current transport, opens a fresh one to the same
// URL, sends RESUME, and hands the new writer to the keepalive worker via
// ChangeSender.
func (c *Connection) resume(ctx context.Context, sessionID string) (model.Event, error) {
	c.logger.Info("resuming session", "session_id", sessionID)

	c.mu.Lock()
	oldConn := c.conn
	gatewayURL := c.gatewayURL
	token := c.token
	seq := c.lastSeq
	c.mu.Unlock()

	if oldConn != nil {
		_ = oldConn.Close(websocket.StatusGoingAway, "resuming")
	}

	newConn, err := dial(ctx, gatewayURL)
	if err != nil {
		return nil, err
	}

	// A fresh transport still opens with HELLO before anything else: read
	// and discard it for its interval, which we will adopt via
	// ChangeInterval once resume has been acknowledged, and which takes
	// effect for the *next* heartbeat cadence even if the RESUMED dispatch
	// itself carries none.
	interval, err := awaitHello(ctx, newConn)
	if err != nil {
		_ = newConn.Close(websocket.StatusProtocolError, "resume handshake failed")
		return nil, err
	}

	if err := sendResume(ctx, newConn, token, sessionID, seq); err != nil {
		_ = newConn.Close(websocket.StatusProtocolError, "resume handshake failed")
		return nil, err
	}

	event, newSeq, err := awaitResumed(ctx, newConn, token)
	if err != nil {
		_ = newConn.Close(websocket.StatusProtocolError, "resume handshake failed")
		return nil, err
	}

	c.mu.Lock()
	if ready, ok := event.(model.Ready); ok {
		c.sessionID = ready.SessionID
	}
	c.lastSeq = newSeq
	c.conn = newConn
	cmds := c.commands
	c.mu.Unlock()

	cmds.send(changeSenderCmd{conn: newConn})
	cmds.send(changeIntervalCmd{ms: int(interval / time.Millisecond)})

	return event, nil
}

// reconnect attempts up to two fresh connects against the cached
// gateway_url with a flat pause between them, then one attempt against a
// REST-refreshed URL. On success the Connection's internals are swapped in
// place and the old transport is shut down.
func (c *Connection) reconnect(ctx context.Context) (model.Event, error) {
	c.logger.Info("reconnecting")

	c.mu.Lock()
	gatewayURL := c.gatewayURL
	token := c.token
	oldConn := c.conn
	fetcher := c.fetcher
	c.mu.Unlock()

	for attempt := 0; attempt < reconnectCachedAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(reconnectPause):
			}
		}

		newConn, interval, ready, seq, err := openFresh(ctx, gatewayURL, token)
		if err == nil {
			c.swapIn(newConn, gatewayURL, ready.SessionID, seq, interval)
			if oldConn != nil {
				_ = oldConn.Close(websocket.StatusGoingAway, "reconnected")
			}
			return ready, nil
		}
		c.logger.Debug("cached-url reconnect attempt failed", "attempt", attempt+1, "error", err)
	}

	if fetcher == nil {
		return nil, newProtocolErr("cached-url reconnect attempts exhausted and no gateway URL fetcher is configured")
	}

	freshURL, err := fetcher.FetchGateway(ctx)
	if err != nil {
		return nil, err
	}

	newConn, interval, ready, seq, err := openFresh(ctx, freshURL, token)
	if err != nil {
		// The REST-refreshed URL is itself undialable; drop it rather than
		// let the next reconnect attempt hand back the same stale entry.
		fetcher.Invalidate()
		return nil, err
	}
	c.swapIn(newConn, freshURL, ready.SessionID, seq, interval)
	if oldConn != nil {
		_ = oldConn.Close(websocket.StatusGoingAway, "reconnected")
	}
	return ready, nil
}

// swapIn atomically replaces this Connection's live fields with a newly
// opened session, restarting the keepalive worker against the new writer.
func (c *Connection) swapIn(conn *websocket.Conn, gatewayURL, sessionID string, seq int, interval time.Duration) {
	commands := newCommandChannel()

	c.mu.Lock()
	c.gatewayURL = gatewayURL
	c.sessionID = sessionID
	c.lastSeq = seq
	c.conn = conn
	oldCommands := c.commands
	c.commands = commands
	logger := c.logger
	c.mu.Unlock()

	if oldCommands != nil {
		oldCommands.close()
	}

	kl := newKeepalive(conn, interval, commands, logger.With("subcomponent", "keepalive"))
	go kl.run(context.Background())
}

// Shutdown closes the transport and drops the command channel, causing the
// keepalive worker to exit. It is idempotent.
func (c *Connection) Shutdown() error {
	c.mu.Lock()
	if c.shuttingDown {
		c.mu.Unlock()
		return nil
	}
	c.shuttingDown = true
	conn := c.conn
	commands := c.commands
	c.mu.Unlock()

	if commands != nil {
		commands.close()
	}
	if conn != nil {
		if err := conn.Close(websocket.StatusNormalClosure, "client shutdown"); err != nil {
			return newTransportErr(err)
		}
	}
	return nil
}
