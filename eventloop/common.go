package eventloop

import (
	"errors"

	"golang.org/x/sys/unix"

	"github.com/arlonet/httpd/status"
)

// classify maps a syscall-layer error from select/poll/epoll into the
// shared status.Code space. EINTR is not an error condition here: callers
// retry Wait themselves, so it is folded into status.OK with zero events.
func classify(err error) status.Code {
	if err == nil {
		return status.OK
	}
	if errors.Is(err, unix.EINTR) {
		return status.OK
	}
	switch {
	case errors.Is(err, unix.ENOMEM):
		return status.ErrSocketNoMem
	case errors.Is(err, unix.EBADF):
		return status.ErrFDOutOfRange
	default:
		return status.ErrSocketOther
	}
}
