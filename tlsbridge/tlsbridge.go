// Package tlsbridge presents TLS to the rest of the daemon through a
// small, opaque vtable, per §4.F / §9 ("TLS as vtable"). The core never
// touches crypto/tls types directly outside this package: everywhere else
// a connection's TLS state is just a Session satisfying this interface,
// so swapping the underlying TLS implementation only touches this file.
package tlsbridge

import (
	"crypto/tls"
	"io"
	"net"

	"github.com/arlonet/httpd/status"
)

// Session is the 8-function vtable §4.F and §9 call for: init, handshake,
// recv, send, shutdown, deinit, plus two accessors (negotiated protocol
// and peer certificate state) the response engine and request
// introspection API need without reaching into crypto/tls themselves.
type Session interface {
	Init(conn net.Conn, config *tls.Config, isServer bool) status.Code
	Handshake() status.Code
	Recv(buf []byte) (n int, code status.Code)
	Send(buf []byte) (n int, code status.Code)
	Shutdown() status.Code // sends close_notify
	Deinit() status.Code   // releases session resources
	NegotiatedProtocol() string
	ConnectionState() tls.ConnectionState
}

// session is the stdlib-backed implementation of Session.
type session struct {
	conn *tls.Conn
}

// New constructs a Session backed by crypto/tls. crypto/tls is itself the
// "opaque TLS primitive library" §1 places out of scope: the core talks
// to it exclusively through this vtable and never imports crypto/tls
// anywhere else.
func New() Session {
	return &session{}
}

func (s *session) Init(conn net.Conn, config *tls.Config, isServer bool) status.Code {
	if isServer {
		s.conn = tls.Server(conn, config)
	} else {
		s.conn = tls.Client(conn, config)
	}
	return status.OK
}

func (s *session) Handshake() status.Code {
	if s.conn == nil {
		return status.ErrSocketNotConnected
	}
	if err := s.conn.Handshake(); err != nil {
		return classify(err)
	}
	return status.OK
}

func (s *session) Recv(buf []byte) (int, status.Code) {
	if s.conn == nil {
		return 0, status.ErrSocketNotConnected
	}
	n, err := s.conn.Read(buf)
	if err == io.EOF {
		return n, status.OK
	}
	if err != nil {
		return n, classify(err)
	}
	return n, status.OK
}

func (s *session) Send(buf []byte) (int, status.Code) {
	if s.conn == nil {
		return 0, status.ErrSocketNotConnected
	}
	n, err := s.conn.Write(buf)
	if err != nil {
		return n, classify(err)
	}
	return n, status.OK
}

func (s *session) Shutdown() status.Code {
	if s.conn == nil {
		return status.OK
	}
	if err := s.conn.CloseWrite(); err != nil {
		return classify(err)
	}
	return status.OK
}

func (s *session) Deinit() status.Code {
	if s.conn == nil {
		return status.OK
	}
	err := s.conn.Close()
	s.conn = nil
	if err != nil {
		return classify(err)
	}
	return status.OK
}

func (s *session) NegotiatedProtocol() string {
	if s.conn == nil {
		return ""
	}
	return s.conn.ConnectionState().NegotiatedProtocol
}

func (s *session) ConnectionState() tls.ConnectionState {
	if s.conn == nil {
		return tls.ConnectionState{}
	}
	return s.conn.ConnectionState()
}

func classify(err error) status.Code {
	if err == nil {
		return status.OK
	}
	return status.ErrSocketTLS
}
