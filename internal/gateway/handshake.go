package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/arcwing/gatecore/internal/model"
	"github.com/coder/websocket"
)

// readLimitBytes bounds frame size to handle large READY payloads (guild
// lists on bot accounts can be sizeable), well above the library's
// conservative default.
const readLimitBytes = 1024 * 1024

// clientProperties is the IDENTIFY properties block this client reports.
// A single fixed identity; rotating properties to dodge Discord's own
// per-token IDENTIFY rate limit is not part of this state machine.
var clientProperties = identifyProperties{
	OS:              "linux",
	Browser:         "gatecore",
	Device:          "gatecore",
	ReferringDomain: "",
	Referrer:        "",
}

// composeURL appends ?v=<GatewayVersion> to base.
func composeURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", newInvalidURLErr(fmt.Errorf("invalid gateway url %q", base))
	}
	q := u.Query()
	q.Set("v", fmt.Sprintf("%d", GatewayVersion))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// dial opens a fresh transport to url and validates the handshake,
// returning the connection with its read limit raised.
func dial(ctx context.Context, rawURL string) (*websocket.Conn, error) {
	composed, err := composeURL(rawURL)
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.Dial(ctx, composed, &websocket.DialOptions{
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		return nil, newTransportErr(err)
	}
	conn.SetReadLimit(readLimitBytes)
	return conn, nil
}

// awaitHello reads frames until HELLO (op-10) arrives, returning its
// heartbeat interval. HELLO precedes READY and is where the interval is
// read from; a zero interval is treated as a protocol violation rather
// than silently producing no heartbeat ticks.
func awaitHello(ctx context.Context, conn *websocket.Conn) (time.Duration, error) {
	env, err := recvJSON(ctx, conn, decodeEnvelope)
	if err != nil {
		return 0, err
	}
	if env.Op != OpHello {
		return 0, newProtocolErr("expected HELLO as first frame")
	}
	var hello helloPayload
	if err := json.Unmarshal(env.Data, &hello); err != nil {
		return 0, newDecodingErr(err)
	}
	if hello.HeartbeatInterval <= 0 {
		return 0, newProtocolErr("HELLO carried a non-positive heartbeat_interval")
	}
	return time.Duration(hello.HeartbeatInterval) * time.Millisecond, nil
}

// sendIdentify writes the op-2 IDENTIFY frame.
func sendIdentify(ctx context.Context, conn *websocket.Conn, token string) error {
	frame := identifyFrame{
		Op: OpIdentify,
		Data: identifyData{
			Token:      token,
			Properties: clientProperties,
		},
	}
	return sendJSON(ctx, conn, frame)
}

// sendResume writes the op-6 RESUME frame.
func sendResume(ctx context.Context, conn *websocket.Conn, token, sessionID string, seq int) error {
	frame := resumeFrame{
		Op: OpResume,
		Data: resumeData{
			Seq:       seq,
			Token:     token,
			SessionID: sessionID,
		},
	}
	return sendJSON(ctx, conn, frame)
}

// awaitReady drains frames after IDENTIFY until a READY dispatch arrives,
// reidentifying on every InvalidateSession in between. Any other frame is
// a protocol violation.
func awaitReady(ctx context.Context, conn *websocket.Conn, token string) (model.Ready, int, error) {
	for {
		ev, err := recvJSON(ctx, conn, model.Decode)
		if err != nil {
			return model.Ready{}, 0, err
		}

		if ev.IsInvalidateSession() {
			if err := sendIdentify(ctx, conn, token); err != nil {
				return model.Ready{}, 0, err
			}
			continue
		}

		if ev.IsDispatch() {
			if ready, ok := ev.Event().(model.Ready); ok {
				return ready, ev.Sequence(), nil
			}
		}

		return model.Ready{}, 0, newProtocolErr("unexpected event during connection open")
	}
}

// awaitResumed drains frames after RESUME until the first post-resume
// dispatch arrives, reidentifying on InvalidateSession. Unlike awaitReady,
// any dispatch (not just READY) ends the loop,
// since resume's first dispatch need not be a Ready.
func awaitResumed(ctx context.Context, conn *websocket.Conn, token string) (model.Event, int, error) {
	for {
		ev, err := recvJSON(ctx, conn, model.Decode)
		if err != nil {
			return nil, 0, err
		}

		if ev.IsInvalidateSession() {
			if err := sendIdentify(ctx, conn, token); err != nil {
				return nil, 0, err
			}
			continue
		}

		if ev.IsDispatch() {
			return ev.Event(), ev.Sequence(), nil
		}

		return nil, 0, newProtocolErr("unexpected event during resume")
	}
}
