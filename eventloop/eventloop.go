// Package eventloop implements the four interchangeable I/O backends of
// §4.I behind one interface: select, poll, epoll, and an externally
// driven mode for applications that pump their own event sources.
package eventloop

import "github.com/arlonet/httpd/status"

// Readiness is a per-connection bitset: recv-ready, send-ready, and the
// three error/shutdown conditions §4.I calls out. A connection belongs
// in the "process ready" set iff some bit is set AND the connection's
// Want() asks for that direction.
type Readiness uint8

const (
	RecvReady Readiness = 1 << iota
	SendReady
	RecvError
	SendError
	RemoteShutWr
)

func (r Readiness) Has(bit Readiness) bool { return r&bit != 0 }

// Want is what a registered fd is currently interested in: recv
// readiness, send readiness, or both. A backend only reports a fd as
// ready when the readiness it observed intersects Want.
type Want struct {
	Recv bool
	Send bool
}

// ReadyEvent is one fd's observed readiness from a single Wait call.
type ReadyEvent struct {
	FD        int
	Readiness Readiness
}

// Backend is the four-mode interface of §4.I: register/deregister/modify
// maintain the watched-fd set, and Wait blocks (up to timeoutMs, or
// indefinitely if timeoutMs < 0) until at least one registered fd is
// ready or the backend is woken via its ITC registration.
type Backend interface {
	// Register begins watching fd for the directions in want.
	Register(fd int, want Want) status.Code
	// Modify updates which directions fd is watched for.
	Modify(fd int, want Want) status.Code
	// Deregister stops watching fd entirely.
	Deregister(fd int) status.Code
	// Wait blocks until some registered fd is ready (or timeoutMs
	// elapses, or an error occurs) and returns the ready set.
	Wait(timeoutMs int) ([]ReadyEvent, status.Code)
	// Close releases any backend-owned resources (e.g. an epoll fd).
	Close() status.Code
}
