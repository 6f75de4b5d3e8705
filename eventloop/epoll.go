package eventloop

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/arlonet/httpd/status"
)

// EpollBackend is the Linux backend of §4.I, registering every watched fd
// edge-triggered (EPOLLET) so a connection's readiness is reported exactly
// once per state transition: the stream processor must drain a socket to
// EAGAIN before epoll will report it ready again for that direction.
// Grounded on the epoll_create1/epoll_ctl/epoll_wait usage pattern of
// docker-compose's process monitor, generalized from one fixed EPOLLHUP
// watch to per-fd Recv/Send interest.
type EpollBackend struct {
	epfd int

	mu    sync.Mutex
	wants map[int]Want
}

// NewEpollBackend creates a fresh epoll instance.
func NewEpollBackend() (*EpollBackend, status.Code) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, classify(err)
	}
	return &EpollBackend{epfd: fd, wants: make(map[int]Want)}, status.OK
}

func epollEvents(want Want) uint32 {
	ev := uint32(unix.EPOLLET)
	if want.Recv {
		ev |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if want.Send {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func (b *EpollBackend) Register(fd int, want Want) status.Code {
	event := unix.EpollEvent{Fd: int32(fd), Events: epollEvents(want)}
	if err := unix.EpollCtl(b.epfd, unix.EPOLL_CTL_ADD, fd, &event); err != nil {
		return classify(err)
	}
	b.mu.Lock()
	b.wants[fd] = want
	b.mu.Unlock()
	return status.OK
}

func (b *EpollBackend) Modify(fd int, want Want) status.Code {
	event := unix.EpollEvent{Fd: int32(fd), Events: epollEvents(want)}
	if err := unix.EpollCtl(b.epfd, unix.EPOLL_CTL_MOD, fd, &event); err != nil {
		return classify(err)
	}
	b.mu.Lock()
	b.wants[fd] = want
	b.mu.Unlock()
	return status.OK
}

func (b *EpollBackend) Deregister(fd int) status.Code {
	// event arg is ignored by the kernel for EPOLL_CTL_DEL on modern
	// Linux, but older kernels require a non-nil pointer.
	err := unix.EpollCtl(b.epfd, unix.EPOLL_CTL_DEL, fd, &unix.EpollEvent{})
	b.mu.Lock()
	delete(b.wants, fd)
	b.mu.Unlock()
	if err != nil {
		return classify(err)
	}
	return status.OK
}

func (b *EpollBackend) Wait(timeoutMs int) ([]ReadyEvent, status.Code) {
	var events [256]unix.EpollEvent
	n, err := unix.EpollWait(b.epfd, events[:], timeoutMs)
	if err != nil {
		return nil, classify(err)
	}
	if n == 0 {
		return nil, status.OK
	}

	out := make([]ReadyEvent, 0, n)
	for i := 0; i < n; i++ {
		fd := int(events[i].Fd)
		e := events[i].Events
		var r Readiness
		if e&unix.EPOLLIN != 0 {
			r |= RecvReady
		}
		if e&unix.EPOLLOUT != 0 {
			r |= SendReady
		}
		if e&unix.EPOLLERR != 0 {
			r |= RecvError | SendError
		}
		if e&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
			r |= RemoteShutWr
		}
		if r != 0 {
			out = append(out, ReadyEvent{FD: fd, Readiness: r})
		}
	}
	return out, status.OK
}

func (b *EpollBackend) Close() status.Code {
	if err := unix.Close(b.epfd); err != nil {
		return classify(err)
	}
	return status.OK
}
