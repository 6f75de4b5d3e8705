package eventloop

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/arlonet/httpd/status"
)

// PollBackend maintains a dense []unix.PollFd slice and a parallel index
// map, avoiding select's FD_SETSIZE ceiling while still rebuilding nothing
// between calls: Register/Modify/Deregister mutate the slice directly so
// Wait just calls unix.Poll on the live slice.
type PollBackend struct {
	mu      sync.Mutex
	fds     []unix.PollFd
	indexOf map[int]int
}

// NewPollBackend returns an empty PollBackend.
func NewPollBackend() *PollBackend {
	return &PollBackend{indexOf: make(map[int]int)}
}

func pollEvents(want Want) int16 {
	var ev int16
	if want.Recv {
		ev |= unix.POLLIN
	}
	if want.Send {
		ev |= unix.POLLOUT
	}
	return ev
}

func (b *PollBackend) Register(fd int, want Want) status.Code {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i, ok := b.indexOf[fd]; ok {
		b.fds[i].Events = pollEvents(want)
		return status.OK
	}
	b.indexOf[fd] = len(b.fds)
	b.fds = append(b.fds, unix.PollFd{Fd: int32(fd), Events: pollEvents(want)})
	return status.OK
}

func (b *PollBackend) Modify(fd int, want Want) status.Code {
	return b.Register(fd, want)
}

func (b *PollBackend) Deregister(fd int) status.Code {
	b.mu.Lock()
	defer b.mu.Unlock()
	i, ok := b.indexOf[fd]
	if !ok {
		return status.OK
	}
	last := len(b.fds) - 1
	b.fds[i] = b.fds[last]
	b.fds = b.fds[:last]
	delete(b.indexOf, fd)
	if i != last {
		b.indexOf[int(b.fds[i].Fd)] = i
	}
	return status.OK
}

func (b *PollBackend) Wait(timeoutMs int) ([]ReadyEvent, status.Code) {
	b.mu.Lock()
	fds := make([]unix.PollFd, len(b.fds))
	copy(fds, b.fds)
	b.mu.Unlock()

	n, err := unix.Poll(fds, timeoutMs)
	if err != nil {
		return nil, classify(err)
	}
	if n == 0 {
		return nil, status.OK
	}

	out := make([]ReadyEvent, 0, n)
	for _, pfd := range fds {
		var r Readiness
		if pfd.Revents&(unix.POLLIN|unix.POLLHUP) != 0 {
			r |= RecvReady
		}
		if pfd.Revents&unix.POLLOUT != 0 {
			r |= SendReady
		}
		if pfd.Revents&unix.POLLERR != 0 {
			r |= RecvError | SendError
		}
		if pfd.Revents&unix.POLLHUP != 0 {
			r |= RemoteShutWr
		}
		if r != 0 {
			out = append(out, ReadyEvent{FD: int(pfd.Fd), Readiness: r})
		}
	}
	return out, status.OK
}

func (b *PollBackend) Close() status.Code { return status.OK }
