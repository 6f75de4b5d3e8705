package eventloop

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/arlonet/httpd/status"
)

// SelectBackend rebuilds its fd-sets from scratch on every Wait call, per
// §4.I's select/poll description. It is the simplest and most portable
// backend, suitable for the single-thread and worker threading modes
// when a connection count is small enough that select's FD_SETSIZE limit
// and O(n) rebuild cost don't matter.
type SelectBackend struct {
	mu    sync.Mutex
	wants map[int]Want
}

// NewSelectBackend returns an empty SelectBackend.
func NewSelectBackend() *SelectBackend {
	return &SelectBackend{wants: make(map[int]Want)}
}

func (b *SelectBackend) Register(fd int, want Want) status.Code {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wants[fd] = want
	return status.OK
}

func (b *SelectBackend) Modify(fd int, want Want) status.Code {
	return b.Register(fd, want)
}

func (b *SelectBackend) Deregister(fd int) status.Code {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.wants, fd)
	return status.OK
}

func (b *SelectBackend) Wait(timeoutMs int) ([]ReadyEvent, status.Code) {
	b.mu.Lock()
	var rfds, wfds unix.FdSet
	maxFD := 0
	for fd, w := range b.wants {
		if fd >= len(rfds.Bits)*64 {
			b.mu.Unlock()
			return nil, status.ErrFDOutOfRange
		}
		if w.Recv {
			fdSet(&rfds, fd)
		}
		if w.Send {
			fdSet(&wfds, fd)
		}
		if fd > maxFD {
			maxFD = fd
		}
	}
	b.mu.Unlock()

	var timeout *unix.Timeval
	if timeoutMs >= 0 {
		tv := unix.NsecToTimeval(int64(timeoutMs) * int64(1e6))
		timeout = &tv
	}

	n, err := unix.Select(maxFD+1, &rfds, &wfds, nil, timeout)
	if err != nil {
		return nil, classify(err)
	}
	if n == 0 {
		return nil, status.OK
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	var out []ReadyEvent
	for fd, w := range b.wants {
		var r Readiness
		if w.Recv && fdIsSet(&rfds, fd) {
			r |= RecvReady
		}
		if w.Send && fdIsSet(&wfds, fd) {
			r |= SendReady
		}
		if r != 0 {
			out = append(out, ReadyEvent{FD: fd, Readiness: r})
		}
	}
	return out, status.OK
}

func (b *SelectBackend) Close() status.Code { return status.OK }

func fdSet(set *unix.FdSet, fd int) {
	set.Bits[fd/64] |= 1 << (uint(fd) % 64)
}

func fdIsSet(set *unix.FdSet, fd int) bool {
	return set.Bits[fd/64]&(1<<(uint(fd)%64)) != 0
}
