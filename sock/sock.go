// Package sock wraps the raw socket operations the stage machine needs
// that net.Conn does not expose: non-blocking mode toggling, shutdown of
// just the write half, and a hard close that ignores further errors. It
// is the component C collaborator — everything above it talks to a plain
// net.Conn plus these few extra calls.
package sock

import (
	"errors"
	"net"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/arlonet/httpd/status"
)

// Syscaller is implemented by net.TCPConn and net.UnixConn: anything that
// can hand back its raw file descriptor for the syscalls below.
type Syscaller interface {
	SyscallConn() (syscall.RawConn, error)
}

// SetNonblocking puts conn's underlying fd in non-blocking mode. Required
// before registering a connection with the epoll backend (§4.I).
func SetNonblocking(conn Syscaller) status.Code {
	return controlFD(conn, func(fd int) error {
		return unix.SetNonblock(fd, true)
	})
}

// SetNoDelay disables Nagle's algorithm, matching the latency-sensitive
// defaults most embeddable HTTP servers want for small request/response
// exchanges.
func SetNoDelay(conn Syscaller) status.Code {
	return controlFD(conn, func(fd int) error {
		return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	})
}

// SetReuseAddr sets SO_REUSEADDR on a not-yet-bound listening socket so a
// restarted daemon can rebind its address immediately.
func SetReuseAddr(conn Syscaller) status.Code {
	return controlFD(conn, func(fd int) error {
		return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
}

// ShutdownWrite half-closes conn for writing (TCP FIN), letting the peer
// observe end-of-stream while this side can still drain any unread bytes.
func ShutdownWrite(conn Syscaller) status.Code {
	return controlFD(conn, func(fd int) error {
		return unix.Shutdown(fd, unix.SHUT_WR)
	})
}

// HardClose closes conn's underlying fd unconditionally. Any error is
// swallowed: by the time a hard close is issued the connection is already
// considered gone and there is nothing a caller could usefully do with the
// error.
func HardClose(conn net.Conn) {
	_ = conn.Close()
}

// FD returns the raw file descriptor backing conn, for registration with
// an event-loop backend. The returned fd is only valid until conn is
// closed or garbage collected; callers that retain it beyond a single
// epoll_ctl/poll call must keep conn alive themselves.
func FD(conn Syscaller) (int, status.Code) {
	var fd int
	found := false
	raw, err := conn.SyscallConn()
	if err != nil {
		return -1, status.ErrFDOutOfRange
	}
	ctlErr := raw.Control(func(f uintptr) {
		fd = int(f)
		found = true
	})
	if ctlErr != nil || !found {
		return -1, status.ErrFDOutOfRange
	}
	return fd, status.OK
}

func controlFD(conn Syscaller, f func(fd int) error) status.Code {
	raw, err := conn.SyscallConn()
	if err != nil {
		return classify(err)
	}
	var opErr error
	ctlErr := raw.Control(func(fd uintptr) {
		opErr = f(int(fd))
	})
	if ctlErr != nil {
		return classify(ctlErr)
	}
	return classify(opErr)
}

// classify maps a raw syscall error into the socket StatusCode subkinds
// named in §4.H's close-reason enum.
func classify(err error) status.Code {
	if err == nil {
		return status.OK
	}
	switch {
	case errors.Is(err, unix.ECONNRESET):
		return status.ErrSocketConnReset
	case errors.Is(err, unix.ENOTCONN):
		return status.ErrSocketNotConnected
	case errors.Is(err, unix.EPIPE):
		return status.ErrSocketPipe
	case errors.Is(err, unix.ENOMEM), errors.Is(err, unix.ENOBUFS):
		return status.ErrSocketNoMem
	case errors.Is(err, unix.ECONNABORTED), errors.Is(err, unix.ESHUTDOWN):
		return status.ErrSocketConnBroken
	default:
		return status.ErrSocketOther
	}
}
