package eventloop

import (
	"sync"

	"github.com/arlonet/httpd/status"
)

// ExternalBackend supports the fourth threading mode of §4.I, where the
// embedding application drives its own event source (e.g. a GUI message
// loop, or another library's reactor) and pushes readiness into the
// daemon instead of the daemon blocking in its own Wait call. Register
// and Deregister just track interest for bookkeeping; Wait never blocks
// on a syscall and instead drains whatever the application has reported
// via Notify since the last call.
type ExternalBackend struct {
	mu      sync.Mutex
	wants   map[int]Want
	pending []ReadyEvent
}

// NewExternalBackend returns an ExternalBackend with no registered fds.
func NewExternalBackend() *ExternalBackend {
	return &ExternalBackend{wants: make(map[int]Want)}
}

func (b *ExternalBackend) Register(fd int, want Want) status.Code {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wants[fd] = want
	return status.OK
}

func (b *ExternalBackend) Modify(fd int, want Want) status.Code {
	return b.Register(fd, want)
}

func (b *ExternalBackend) Deregister(fd int) status.Code {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.wants, fd)
	return status.OK
}

// Notify is called by the embedding application when it has observed fd
// become ready in its own event source. Readiness not currently wanted
// for fd is dropped rather than queued.
func (b *ExternalBackend) Notify(fd int, r Readiness) status.Code {
	b.mu.Lock()
	defer b.mu.Unlock()
	want, ok := b.wants[fd]
	if !ok {
		return status.OK
	}
	var filtered Readiness
	if want.Recv && r.Has(RecvReady) {
		filtered |= RecvReady
	}
	if want.Send && r.Has(SendReady) {
		filtered |= SendReady
	}
	filtered |= r & (RecvError | SendError | RemoteShutWr)
	if filtered != 0 {
		b.pending = append(b.pending, ReadyEvent{FD: fd, Readiness: filtered})
	}
	return status.OK
}

// Wait never blocks: it returns whatever has accumulated via Notify since
// the previous call. timeoutMs is accepted for interface compatibility
// and ignored.
func (b *ExternalBackend) Wait(timeoutMs int) ([]ReadyEvent, status.Code) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) == 0 {
		return nil, status.OK
	}
	out := b.pending
	b.pending = nil
	return out, status.OK
}

func (b *ExternalBackend) Close() status.Code { return status.OK }
