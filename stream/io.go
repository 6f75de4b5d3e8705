package stream

import (
	"errors"

	"golang.org/x/sys/unix"

	"github.com/arlonet/httpd/status"
	"github.com/arlonet/httpd/tlsbridge"
)

// IO is Recv/Send via either a raw non-blocking socket or a TLS session,
// letting the processor treat both uniformly for the "recv/send through
// TLS-or-socket" step of §4.H.
//
// A negative n with status.OK means "no progress this tick" (the
// underlying call would have blocked); callers must not treat that as
// end-of-stream. n == 0 with status.OK is a genuine remote half-close.
type IO interface {
	Recv(buf []byte) (n int, code status.Code)
	Send(buf []byte) (n int, code status.Code)
}

// rawIO reads and writes a socket fd directly via unix syscalls rather
// than through net.Conn, so a tick never parks the calling goroutine in
// Go's runtime netpoller waiting for readiness: readiness is established
// up front by an eventloop.Backend registration (§4.I), and Recv/Send are
// only ever called once that backend has reported the fd ready.
type rawIO struct{ fd int }

// NewRawIO wraps a raw, already-non-blocking socket fd.
func NewRawIO(fd int) IO { return &rawIO{fd: fd} }

func (r *rawIO) Recv(buf []byte) (int, status.Code) {
	n, err := unix.Read(r.fd, buf)
	if err == nil {
		return n, status.OK
	}
	if isRecoverable(err) {
		return -1, status.OK
	}
	return -1, classifyIOErr(err)
}

func (r *rawIO) Send(buf []byte) (int, status.Code) {
	n, err := unix.Write(r.fd, buf)
	if err == nil {
		return n, status.OK
	}
	if isRecoverable(err) {
		return -1, status.OK
	}
	return -1, classifyIOErr(err)
}

// tlsIO adapts a tlsbridge.Session, which already returns status.Code
// directly, to the IO interface. crypto/tls does not expose a
// non-blocking read/write mode over a raw fd the way rawIO does, so the
// TLS path is less strictly non-blocking than the plain path; this
// mirrors §4.F's "TLS as vtable" boundary, which deliberately keeps TLS's
// own I/O model out of the stage machine's concern.
type tlsIO struct{ sess tlsbridge.Session }

// NewTLSIO wraps an already-initialized tlsbridge.Session.
func NewTLSIO(sess tlsbridge.Session) IO { return &tlsIO{sess: sess} }

func (t *tlsIO) Recv(buf []byte) (int, status.Code) { return t.sess.Recv(buf) }
func (t *tlsIO) Send(buf []byte) (int, status.Code) { return t.sess.Send(buf) }

func isRecoverable(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EINTR)
}

func classifyIOErr(err error) status.Code {
	switch {
	case errors.Is(err, unix.ECONNRESET):
		return status.ErrSocketConnReset
	case errors.Is(err, unix.EPIPE):
		return status.ErrSocketPipe
	case errors.Is(err, unix.ENOTCONN):
		return status.ErrSocketNotConnected
	case errors.Is(err, unix.ENOMEM), errors.Is(err, unix.ENOBUFS):
		return status.ErrSocketNoMem
	case errors.Is(err, unix.ECONNABORTED), errors.Is(err, unix.ESHUTDOWN):
		return status.ErrSocketConnBroken
	default:
		return status.ErrSocketOther
	}
}
