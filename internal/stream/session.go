package stream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/pion/dtls/v2"
	"github.com/rs/zerolog/log"
)

// EntertainmentPort is the fixed UDP port of the bridge's streaming endpoint.
const EntertainmentPort = 2100

// DefaultHandshakeTimeout bounds OpenSession when the caller context has no deadline.
const DefaultHandshakeTimeout = 10 * time.Second

// DefaultCipherSuites are the PSK AEAD suites offered to the bridge.
var DefaultCipherSuites = []dtls.CipherSuiteID{
	dtls.TLS_PSK_WITH_AES_128_GCM_SHA256,
}

// SessionConfig describes the DTLS-PSK peer.
type SessionConfig struct {
	Address          string
	Port             int // defaults to EntertainmentPort
	Identity         string
	PSK              []byte
	CipherSuites     []dtls.CipherSuiteID
	HandshakeTimeout time.Duration
}

func (c SessionConfig) addr() string {
	port := c.Port
	if port == 0 {
		port = EntertainmentPort
	}
	return net.JoinHostPort(c.Address, strconv.Itoa(port))
}

// Conn is an open datagram session frames are written to.
type Conn interface {
	Send(frame []byte) error
	Close() error
}

// Dialer opens a Conn. OpenSession is the production implementation.
type Dialer func(ctx context.Context, cfg SessionConfig) (Conn, error)

// Session is a DTLS-PSK secured datagram connection to the bridge.
// Frames are fire-and-forget: nothing is acknowledged or retried.
type Session struct {
	addr string
	conn net.Conn

	sendMu sync.Mutex
	closed atomic.Bool
}

// OpenSession dials the peer over UDP and performs the PSK handshake.
//
// Socket failures are reported as *TransportError, negotiation failures and timeouts as
// *HandshakeError. The handshake never outlives ctx or cfg.HandshakeTimeout.
func OpenSession(ctx context.Context, cfg SessionConfig) (*Session, error) {
	addr := cfg.addr()

	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, &TransportError{Addr: addr, Err: err}
	}
	udp, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, &TransportError{Addr: addr, Err: err}
	}

	timeout := cfg.HandshakeTimeout
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	hctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	suites := cfg.CipherSuites
	if len(suites) == 0 {
		suites = DefaultCipherSuites
	}
	psk := cfg.PSK
	dtlsConfig := &dtls.Config{
		PSK: func(hint []byte) ([]byte, error) {
			return psk, nil
		},
		PSKIdentityHint: []byte(cfg.Identity),
		CipherSuites:    suites,
	}

	log.Debug().Str("addr", addr).Str("identity", cfg.Identity).Msg("Starting DTLS handshake")

	conn, err := dtls.ClientWithContext(hctx, udp, dtlsConfig)
	if err != nil {
		udp.Close()
		if errors.Is(err, syscall.ECONNREFUSED) {
			return nil, &TransportError{Addr: addr, Err: err}
		}
		return nil, &HandshakeError{Addr: addr, Err: err}
	}

	log.Info().Str("addr", addr).Msg("DTLS session established")
	return &Session{addr: addr, conn: conn}, nil
}

// DialSession adapts OpenSession to the Dialer signature.
func DialSession(ctx context.Context, cfg SessionConfig) (Conn, error) {
	s, err := OpenSession(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Send writes one encrypted datagram containing frame.
// Concurrent calls are serialized. A Send racing Close fails with *SendError.
func (s *Session) Send(frame []byte) error {
	if s == nil || s.closed.Load() {
		return &SendError{Err: ErrSessionClosed}
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if _, err := s.conn.Write(frame); err != nil {
		if s.closed.Load() {
			return &SendError{Err: ErrSessionClosed}
		}
		return &SendError{Err: err}
	}
	return nil
}

// Close releases the DTLS context and the socket. Closing twice, or closing a nil
// session, is a no-op.
func (s *Session) Close() error {
	if s == nil || !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	// Not under sendMu: an in-flight Send must not hold up Close.
	err := s.conn.Close()
	log.Debug().Str("addr", s.addr).Msg("DTLS session closed")
	return err
}

// RemoteAddr returns the peer address as host:port.
func (s *Session) RemoteAddr() string {
	return s.addr
}

var cipherSuitesByName = map[string]dtls.CipherSuiteID{
	"TLS_PSK_WITH_AES_128_GCM_SHA256": dtls.TLS_PSK_WITH_AES_128_GCM_SHA256,
	"TLS_PSK_WITH_AES_128_CCM":        dtls.TLS_PSK_WITH_AES_128_CCM,
	"TLS_PSK_WITH_AES_128_CCM_8":      dtls.TLS_PSK_WITH_AES_128_CCM_8,
}

// ParseCipherSuites maps IANA suite names to DTLS suite IDs. An empty list yields nil,
// which OpenSession replaces with DefaultCipherSuites.
func ParseCipherSuites(names []string) ([]dtls.CipherSuiteID, error) {
	var ids []dtls.CipherSuiteID
	for _, name := range names {
		id, ok := cipherSuitesByName[name]
		if !ok {
			return nil, fmt.Errorf("unsupported cipher suite %q", name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
