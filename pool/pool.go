// Package pool implements the per-connection memory pool described in
// §4.A: a fixed-capacity bump arena serving exactly one connection at a
// time, with dual-ended allocation (most allocations grow from the front;
// the connection's read/write buffers grow from the back so they can be
// resized in place without disturbing front allocations).
//
// There is no free list. Memory is only reclaimed by Reset or by
// discarding the Pool entirely; this is what makes keep-alive reuse O(1)
// and caps worst-case per-request memory.
package pool

import "github.com/arlonet/httpd/status"

// origin records which end of the arena an allocation came from, so
// Reallocate and Deallocate can verify they're only ever asked to resize
// or free the most recent allocation on that end.
type origin uint8

const (
	originNone origin = iota
	originFront
	originTail
)

// Pool is a fixed-capacity bump arena. The zero value is not usable; call
// New to create one.
type Pool struct {
	buf []byte

	head int // first free byte counting from the front
	tail int // first free byte counting backward from the back (i.e. buf[tail:] is the tail region in use)

	lastOrigin origin
	lastOffset int // start offset of the most recent allocation (front: buf[lastOffset:head]; tail: buf[tail:lastOffset])
}

// New creates a Pool with the given fixed capacity. capacity bytes are
// allocated once, up front; no further heap growth ever occurs for this
// Pool's lifetime.
func New(capacity int) *Pool {
	return &Pool{
		buf:  make([]byte, capacity),
		head: 0,
		tail: capacity,
	}
}

// Capacity returns the total number of bytes this Pool was created with.
func (p *Pool) Capacity() int { return len(p.buf) }

// Used returns the number of bytes currently allocated (front + tail
// regions combined).
func (p *Pool) Used() int { return p.head + (len(p.buf) - p.tail) }

// Free returns the number of bytes available for a new allocation.
func (p *Pool) Free() int { return p.tail - p.head }

// Allocate carves size bytes from the front of the arena. If zero is true
// the returned slice is zeroed; otherwise it may still hold bytes from an
// earlier allocation, since neither Reset nor Deallocate clears memory.
func (p *Pool) Allocate(size int, zero bool) ([]byte, status.Code) {
	if size < 0 {
		return nil, status.ErrPoolExhausted
	}
	if size > p.Free() {
		return nil, status.ErrPoolExhausted
	}
	start := p.head
	p.head += size
	p.lastOrigin = originFront
	p.lastOffset = start
	b := p.buf[start:p.head:p.head]
	if zero {
		for i := range b {
			b[i] = 0
		}
	}
	return b, status.OK
}

// AllocateTail carves size bytes from the back of the arena. Used for the
// connection's read and write buffers, which need to be resizable
// in-place without colliding with front allocations made earlier in the
// request's processing.
func (p *Pool) AllocateTail(size int, zero bool) ([]byte, status.Code) {
	if size < 0 {
		return nil, status.ErrPoolExhausted
	}
	if size > p.Free() {
		return nil, status.ErrPoolExhausted
	}
	start := p.tail - size
	p.tail = start
	p.lastOrigin = originTail
	p.lastOffset = p.tail + size
	b := p.buf[start : start+size : start+size]
	if zero {
		for i := range b {
			b[i] = 0
		}
	}
	return b, status.OK
}

// TryAllocate reports whether size bytes are available without allocating
// them, and if not, how many additional bytes would be needed.
func (p *Pool) TryAllocate(size int) (ok bool, shortBy int) {
	free := p.Free()
	if size <= free {
		return true, 0
	}
	return false, size - free
}

// IsResizableInPlace reports whether b is the most recent allocation made
// from this Pool (front or tail) and can therefore be grown or shrunk via
// Reallocate without copying.
func (p *Pool) IsResizableInPlace(b []byte) bool {
	if p.lastOrigin == originNone || len(b) == 0 && cap(b) == 0 {
		return false
	}
	switch p.lastOrigin {
	case originFront:
		return p.lastOffset <= len(p.buf) && sameBacking(p.buf[p.lastOffset:p.head], b)
	case originTail:
		return sameBacking(p.buf[p.tail:p.lastOffset], b)
	default:
		return false
	}
}

func sameBacking(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	return &a[0] == &b[0]
}

// Reallocate grows or shrinks b in place. It only succeeds if b is the
// most recent allocation on its origin end (front or tail); any other
// pointer is rejected with status.ErrPoolExhausted since resizing it would
// require copying into a fresh region this arena design does not provide
// (no free list means a mid-arena "hole" could never be reused).
func (p *Pool) Reallocate(b []byte, newSize int) ([]byte, status.Code) {
	if !p.IsResizableInPlace(b) {
		return nil, status.ErrPoolExhausted
	}
	switch p.lastOrigin {
	case originFront:
		delta := newSize - len(b)
		if delta > 0 && delta > p.Free() {
			return nil, status.ErrPoolExhausted
		}
		p.head = p.lastOffset + newSize
		return p.buf[p.lastOffset:p.head:p.head], status.OK
	case originTail:
		delta := newSize - len(b)
		if delta > 0 && delta > p.Free() {
			return nil, status.ErrPoolExhausted
		}
		newStart := p.lastOffset - newSize
		p.tail = newStart
		return p.buf[newStart:p.lastOffset:p.lastOffset], status.OK
	default:
		return nil, status.ErrPoolExhausted
	}
}

// Deallocate frees b, but only if it is the most recent allocation on its
// origin end; otherwise it is a silent no-op, matching the arena's "only
// the last allocation can be released early" contract (anything else
// waits for Reset).
func (p *Pool) Deallocate(b []byte) {
	if !p.IsResizableInPlace(b) {
		return
	}
	switch p.lastOrigin {
	case originFront:
		p.head = p.lastOffset
	case originTail:
		p.tail = p.lastOffset
	}
	p.lastOrigin = originNone
}

// Reset reclaims the whole arena except for keepPrefix bytes at the front
// (used on keep-alive to preserve pipelined bytes already read into the
// buffer), and re-establishes the pool capacity as newSize bytes if
// newSize > 0 (allowing the embedder to shrink/grow the arena between
// requests; 0 keeps the existing capacity).
func (p *Pool) Reset(keepPrefix int, newSize int) {
	if newSize > 0 && newSize != len(p.buf) {
		nb := make([]byte, newSize)
		n := copy(nb, p.buf[:min(keepPrefix, len(p.buf))])
		p.buf = nb
		keepPrefix = n
	}
	p.head = keepPrefix
	p.tail = len(p.buf)
	p.lastOrigin = originNone
	p.lastOffset = 0
}
