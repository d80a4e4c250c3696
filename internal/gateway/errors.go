package gateway

import (
	"errors"
	"fmt"
)

// Kind classifies a gateway Error so the recovery state machine can branch
// on semantics instead of string content.
type Kind int

const (
	// KindTransport is an I/O failure on the socket.
	KindTransport Kind = iota
	// KindClosed is a peer-initiated close frame.
	KindClosed
	// KindProtocol is an unexpected frame during a handshake.
	KindProtocol
	// KindInvalidURL is a malformed configured gateway URL.
	KindInvalidURL
	// KindDecoding is a frame the model decoder rejected.
	KindDecoding
	// KindEncoding is a value that could not be serialized.
	KindEncoding
	// KindOther is a catch-all for programmer/unexpected errors.
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindClosed:
		return "closed"
	case KindProtocol:
		return "protocol"
	case KindInvalidURL:
		return "invalid_url"
	case KindDecoding:
		return "decoding"
	case KindEncoding:
		return "encoding"
	default:
		return "other"
	}
}

// Error is the typed error this package returns from any operation whose
// caller needs to distinguish recovery paths.
type Error struct {
	Kind    Kind
	Code    int // close code, when Kind == KindClosed; 0 otherwise
	Payload string
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindClosed:
		if e.Payload != "" {
			return fmt.Sprintf("gateway: closed (code=%d): %s", e.Code, e.Payload)
		}
		return fmt.Sprintf("gateway: closed (code=%d)", e.Code)
	default:
		if e.Err != nil {
			return fmt.Sprintf("gateway: %s: %v", e.Kind, e.Err)
		}
		return fmt.Sprintf("gateway: %s", e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func newTransportErr(err error) *Error {
	return &Error{Kind: KindTransport, Err: err}
}

func newClosedErr(code int, payload string) *Error {
	return &Error{Kind: KindClosed, Code: code, Payload: payload}
}

func newProtocolErr(msg string) *Error {
	return &Error{Kind: KindProtocol, Err: errors.New(msg)}
}

func newInvalidURLErr(err error) *Error {
	return &Error{Kind: KindInvalidURL, Err: err}
}

func newDecodingErr(err error) *Error {
	return &Error{Kind: KindDecoding, Err: err}
}

func newEncodingErr(err error) *Error {
	return &Error{Kind: KindEncoding, Err: err}
}

// AsGatewayError extracts a *Error from err, if any is present in its chain.
func AsGatewayError(err error) (*Error, bool) {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr, true
	}
	return nil, false
}

// Sentinel conditions that aren't part of the Kind taxonomy but are useful
// for callers to test with errors.Is.
var (
	// ErrNotConnected names the condition of having no transport writer
	// yet. The outbound operations of this package (SetGame,
	// DownloadMembers, voice Join/Leave) return no error and do not report
	// it.
	ErrNotConnected = errors.New("gateway: not connected")
	// ErrFatalClose is wrapped around the closed error RecvEvent returns
	// when a close code is known to be non-recoverable (e.g. bad auth,
	// disallowed intents).
	ErrFatalClose = errors.New("gateway: fatal close code")
	// ErrShuttingDown is returned by OuterRetrier.Run once Stop has been
	// called.
	ErrShuttingDown = errors.New("gateway: connection is shutting down")
)
