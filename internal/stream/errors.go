package stream

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionClosed is returned by Send after the session was closed.
	ErrSessionClosed = errors.New("stream session closed")

	// ErrInvalidState is returned when Enable is called outside the Disabled state.
	ErrInvalidState = errors.New("invalid streaming state")
)

// EncodingError reports an update that cannot be represented on the wire.
// It is a caller bug and never retried.
type EncodingError struct {
	LightID int
	Channel int // 1..3, 0 when the light ID itself is invalid
	Value   float64
	Reason  string
}

func (e *EncodingError) Error() string {
	if e.Channel == 0 {
		return fmt.Sprintf("encode light %d: %s", e.LightID, e.Reason)
	}
	return fmt.Sprintf("encode light %d channel %d (%v): %s", e.LightID, e.Channel, e.Value, e.Reason)
}

// HandshakeError reports a failed DTLS negotiation (bad key, no shared cipher, timeout).
type HandshakeError struct {
	Addr string
	Err  error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("dtls handshake with %s failed: %v", e.Addr, e.Err)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// TransportError reports a socket-level failure while opening a session.
type TransportError struct {
	Addr string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport to %s failed: %v", e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// SendError reports a failed datagram write on an open session.
type SendError struct {
	Err error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send frame: %v", e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }
