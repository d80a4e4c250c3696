package gateway

import (
	"context"
	"encoding/json"

	"github.com/coder/websocket"
)

// sendJSON encodes value as a single text frame and writes it to conn.
// Fails with Kind=KindTransport on I/O, Kind=KindEncoding on serialization.
func sendJSON(ctx context.Context, conn *websocket.Conn, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return newEncodingErr(err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return newTransportErr(err)
	}
	return nil
}

// recvJSON reads one frame from conn, strips framing, and applies decode to
// the payload. Fails with KindTransport on I/O, KindClosed(code?, payload)
// if the peer sent a close frame, KindDecoding if decode rejects the bytes.
func recvJSON[T any](ctx context.Context, conn *websocket.Conn, decode func([]byte) (T, error)) (T, error) {
	var zero T

	_, data, err := conn.Read(ctx)
	if err != nil {
		if code := websocket.CloseStatus(err); code != -1 {
			return zero, newClosedErr(int(code), err.Error())
		}
		return zero, newTransportErr(err)
	}

	value, err := decode(data)
	if err != nil {
		return zero, newDecodingErr(err)
	}
	return value, nil
}

// decodeEnvelope is the raw-envelope decoder used for the one frame outside
// the model package's GatewayEvent sum type: HELLO, which awaitHello
// inspects itself. The model decoder produces
// Dispatch/Heartbeat/Reconnect/InvalidateSession/Ack and rejects op-10.
func decodeEnvelope(data []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return envelope{}, err
	}
	return env, nil
}
