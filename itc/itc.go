// Package itc implements the inter-thread channel: a one-byte wake signal
// used to pull a blocked select/poll/epoll_wait call out of its wait early
// when another thread needs the owning worker to re-evaluate state (new
// connection, shutdown, resume). See §4.J.
package itc

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/arlonet/httpd/status"
)

// Channel is a unidirectional wake pipe: any thread may call Signal, but
// only the owning event loop should call FD/Drain.
type Channel struct {
	r, w *os.File
}

// New creates a Channel backed by a non-blocking pipe.
func New() (*Channel, status.Code) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, status.ErrThreadLaunch
	}
	for _, f := range []*os.File{r, w} {
		raw, err := f.SyscallConn()
		if err != nil {
			_ = r.Close()
			_ = w.Close()
			return nil, status.ErrThreadLaunch
		}
		var setErr error
		_ = raw.Control(func(fd uintptr) {
			setErr = unix.SetNonblock(int(fd), true)
		})
		if setErr != nil {
			_ = r.Close()
			_ = w.Close()
			return nil, status.ErrThreadLaunch
		}
	}
	return &Channel{r: r, w: w}, status.OK
}

// Signal wakes the owning event loop. It is safe to call concurrently
// from any thread and is idempotent in effect: multiple signals before
// the loop drains collapse into "wake up at least once," which is all the
// reader side ever needs.
func (c *Channel) Signal() {
	var b [1]byte
	_, _ = c.w.Write(b[:])
}

// FD returns the read end's file descriptor, for registration with the
// event-loop backend's readiness set alongside the listen socket and
// connection fds.
func (c *Channel) FD() (int, status.Code) {
	raw, err := c.r.SyscallConn()
	if err != nil {
		return -1, status.ErrFDOutOfRange
	}
	var fd int
	ctlErr := raw.Control(func(f uintptr) { fd = int(f) })
	if ctlErr != nil {
		return -1, status.ErrFDOutOfRange
	}
	return fd, status.OK
}

// Drain reads and discards every byte currently pending on the wake pipe.
// Called once per event-loop tick after the read end reports readable, so
// a burst of Signal calls only wakes the loop once per tick instead of
// once per signal.
func (c *Channel) Drain() {
	var buf [64]byte
	for {
		n, err := c.r.Read(buf[:])
		if n == 0 || err != nil {
			return
		}
	}
}

// Close releases both ends of the pipe. The Channel must not be used
// afterward.
func (c *Channel) Close() error {
	werr := c.w.Close()
	rerr := c.r.Close()
	if werr != nil {
		return werr
	}
	return rerr
}
