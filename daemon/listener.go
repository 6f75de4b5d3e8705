package daemon

import (
	"net"

	"github.com/arlonet/httpd/sock"
	"github.com/arlonet/httpd/status"
)

// acceptedConn is one freshly-accepted socket handed from the listener
// goroutine to whichever worker (or per-connection goroutine) will own
// it next.
type acceptedConn struct {
	conn net.Conn
	fd   int
}

// openListener binds cfg's network/address, matching the teacher's
// Server.Serve. SO_REUSEADDR is left to net.Listen's own default
// behavior (already set before bind by the runtime on every platform
// this daemon targets); sock.SetReuseAddr exists for callers building a
// raw socket by hand before bind, which net.Listen makes unnecessary
// here.
func openListener(network, addr string) (net.Listener, status.Code) {
	l, err := net.Listen(network, addr)
	if err != nil {
		return nil, status.ErrFDOutOfRange
	}
	return l, status.OK
}

// runAcceptLoop calls l.Accept in a blocking loop, exactly as the
// teacher's Server.Serve does, handing each accepted connection to
// handle. It returns once l.Accept fails (normally because Close was
// called on l during shutdown).
func runAcceptLoop(l net.Listener, handle func(acceptedConn)) {
	for {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		fd := -1
		if sc, ok := conn.(sock.Syscaller); ok {
			if f, code := sock.FD(sc); code.Ok() {
				fd = f
			}
		}
		if tc, ok := conn.(interface{ SetNoDelay(bool) error }); ok {
			_ = tc.SetNoDelay(true)
		}
		handle(acceptedConn{conn: conn, fd: fd})
	}
}

func remoteAddrOf(conn net.Conn) string {
	if a := conn.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}
