// Package model provides the Gateway event decoder: the pure function that
// turns a raw Gateway frame into a typed GatewayEvent, kept separate from
// the gateway package so decode can be a self-contained collaborator the
// core treats as externally supplied.
package model

import "encoding/json"

// GatewayEvent is the sum type Decode produces: exactly one of Dispatch,
// Heartbeat, Reconnect, InvalidateSession, or Ack.
type GatewayEvent struct {
	kind              gatewayEventKind
	sequence          int
	event             Event
}

type gatewayEventKind int

const (
	kindDispatch gatewayEventKind = iota
	kindHeartbeat
	kindReconnect
	kindInvalidateSession
	kindAck
)

// IsDispatch reports whether this is a Dispatch(seq, event) variant.
func (g GatewayEvent) IsDispatch() bool { return g.kind == kindDispatch }

// IsHeartbeat reports whether this is a server-initiated Heartbeat(seq)
// request.
func (g GatewayEvent) IsHeartbeat() bool { return g.kind == kindHeartbeat }

// IsReconnect reports whether this is a Reconnect (op-7) notification.
func (g GatewayEvent) IsReconnect() bool { return g.kind == kindReconnect }

// IsInvalidateSession reports whether this is an InvalidateSession (op-9)
// notification.
func (g GatewayEvent) IsInvalidateSession() bool { return g.kind == kindInvalidateSession }

// IsAck reports whether this is a HEARTBEAT_ACK (op-11) reply. Callers
// read this purely to drop it; it carries no payload and requires no
// response.
func (g GatewayEvent) IsAck() bool { return g.kind == kindAck }

// Sequence returns the sequence number carried by Dispatch or Heartbeat
// variants; 0 for Reconnect/InvalidateSession.
func (g GatewayEvent) Sequence() int { return g.sequence }

// Event returns the decoded event payload of a Dispatch variant. Callers
// must check IsDispatch first.
func (g GatewayEvent) Event() Event { return g.event }

// Event is the decoded payload of a Dispatch frame.
type Event interface {
	// EventType returns the Gateway "t" field this event was dispatched
	// under, e.g. "READY".
	EventType() string
}

// Ready is the READY dispatch: the core reads SessionID from it at
// handshake open time. HeartbeatInterval is not decoded from READY; the
// core fills it in from the preceding HELLO via NewHelloInterval.
type Ready struct {
	Version           int    `json:"v"`
	SessionID         string `json:"session_id"`
	ResumeGatewayURL  string `json:"resume_gateway_url"`
	HeartbeatInterval int    `json:"-"` // populated from the preceding HELLO, not this payload
}

func (Ready) EventType() string { return "READY" }

// Resumed is the RESUMED dispatch sent after a successful op-6 RESUME.
type Resumed struct {
	HeartbeatInterval int `json:"heartbeat_interval,omitempty"`
}

func (Resumed) EventType() string { return "RESUMED" }

// VoiceStateUpdate is routed to the voice bridge by the core when one is
// attached.
type VoiceStateUpdate struct {
	GuildID   string  `json:"guild_id"`
	ChannelID *string `json:"channel_id"`
	UserID    string  `json:"user_id"`
	SessionID string  `json:"session_id"`
}

func (VoiceStateUpdate) EventType() string { return "VOICE_STATE_UPDATE" }

// VoiceServerUpdate is routed to the voice bridge alongside
// VoiceStateUpdate.
type VoiceServerUpdate struct {
	Token    string `json:"token"`
	GuildID  string `json:"guild_id"`
	Endpoint string `json:"endpoint"`
}

func (VoiceServerUpdate) EventType() string { return "VOICE_SERVER_UPDATE" }

// Raw is the fallback for any dispatch type this core does not specially
// recognize; it carries the undecoded payload for application-level
// handling.
type Raw struct {
	Type    string          `json:"-"`
	Payload json.RawMessage `json:"-"`
}

func (r Raw) EventType() string { return r.Type }

// wireEnvelope mirrors the Gateway's `{op, d, s?, t?}` frame shape.
// Duplicated here, rather than imported from gateway, so this package has
// no dependency on the core: Decode is meant to be a free-standing
// collaborator.
type wireEnvelope struct {
	Op       int             `json:"op"`
	Data     json.RawMessage `json:"d"`
	Sequence *int            `json:"s,omitempty"`
	Type     string          `json:"t,omitempty"`
}

// Decode turns one raw Gateway frame into a GatewayEvent. It returns five
// variants: op-0 dispatches become Dispatch, op-1 becomes a server
// Heartbeat request, op-7 becomes Reconnect, op-9 becomes
// InvalidateSession, op-11 becomes Ack. The server answers every client
// heartbeat with an op-11 HEARTBEAT_ACK in steady state, so Decode must
// recognize it rather than error on it. HELLO (op-10) is the only frame
// still handled outside this decoder, read directly by the handshake
// before the steady-state read loop begins. Any opcode not named above
// is rejected rather than guessed at.
func Decode(data []byte) (GatewayEvent, error) {
	var env wireEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return GatewayEvent{}, err
	}

	switch env.Op {
	case 0: // OpDispatch
		seq := 0
		if env.Sequence != nil {
			seq = *env.Sequence
		}
		event, err := decodeDispatch(env.Type, env.Data)
		if err != nil {
			return GatewayEvent{}, err
		}
		return GatewayEvent{kind: kindDispatch, sequence: seq, event: event}, nil
	case 1: // OpHeartbeat (server-requested)
		seq := 0
		_ = json.Unmarshal(env.Data, &seq)
		return GatewayEvent{kind: kindHeartbeat, sequence: seq}, nil
	case 7: // OpReconnect
		return GatewayEvent{kind: kindReconnect}, nil
	case 9: // OpInvalidSession
		return GatewayEvent{kind: kindInvalidateSession}, nil
	case 11: // OpHeartbeatAck
		return GatewayEvent{kind: kindAck}, nil
	default:
		return GatewayEvent{}, &DecodeError{Op: env.Op}
	}
}

// DecodeError is returned when Decode is handed an opcode it doesn't
// recognize as one of the five GatewayEvent variants.
type DecodeError struct {
	Op int
}

func (e *DecodeError) Error() string {
	return "model: unrecognized opcode for GatewayEvent"
}

func decodeDispatch(eventType string, data json.RawMessage) (Event, error) {
	switch eventType {
	case "READY":
		var ready Ready
		if err := json.Unmarshal(data, &ready); err != nil {
			return nil, err
		}
		return ready, nil
	case "RESUMED":
		var resumed Resumed
		if err := json.Unmarshal(data, &resumed); err != nil {
			return nil, err
		}
		return resumed, nil
	case "VOICE_STATE_UPDATE":
		var vs VoiceStateUpdate
		if err := json.Unmarshal(data, &vs); err != nil {
			return nil, err
		}
		return vs, nil
	case "VOICE_SERVER_UPDATE":
		var vsu VoiceServerUpdate
		if err := json.Unmarshal(data, &vsu); err != nil {
			return nil, err
		}
		return vsu, nil
	default:
		return Raw{Type: eventType, Payload: data}, nil
	}
}

// NewHelloInterval attaches a heartbeat interval observed on a preceding
// HELLO frame to a Ready event, since READY itself carries none. The core
// calls this after decoding HELLO and before returning the first Ready to
// its caller.
func NewHelloInterval(r Ready, intervalMS int) Ready {
	r.HeartbeatInterval = intervalMS
	return r
}
