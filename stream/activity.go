package stream

import "github.com/arlonet/httpd/list"

// timeoutEntry links a Connection into whichever timeout DLL currently
// owns it (default or custom — per §4.H these are separate lists, but a
// connection belongs to at most one at a time, so one link suffices).
type timeoutEntry struct {
	list.Elem[timeoutEntry]
	conn *Connection
}

// allConnEntry links a Connection into the daemon's all-connections list,
// independent of (and concurrent with) its timeout list membership.
type allConnEntry struct {
	list.Elem[allConnEntry]
	conn *Connection
}

// Tracker owns the default and custom timeout DLLs described in §4.H.
// Each successful I/O on a connection moves it to the front of whichever
// list it belongs to; a background sweep walks from the tail (oldest
// activity) closing everything past its deadline.
type Tracker struct {
	defaultList *list.List[timeoutEntry]
	customList  *list.List[timeoutEntry]
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		defaultList: &list.List[timeoutEntry]{},
		customList:  &list.List[timeoutEntry]{},
	}
}

// TouchDefault records activity on c and (re)links it at the front of the
// default timeout list.
func (t *Tracker) TouchDefault(c *Connection) {
	c.timeoutLink.conn = c
	list.MoveToFront(t.defaultList, &c.timeoutLink)
}

// TouchCustom is the same as TouchDefault but for connections configured
// with a non-default timeout.
func (t *Tracker) TouchCustom(c *Connection) {
	c.timeoutLink.conn = c
	list.MoveToFront(t.customList, &c.timeoutLink)
}

// Untrack removes c from whichever timeout list currently owns it (a
// no-op on the list that doesn't).
func (t *Tracker) Untrack(c *Connection) {
	list.Remove(t.defaultList, &c.timeoutLink)
	list.Remove(t.customList, &c.timeoutLink)
}

// SweepExpired walks the tail of both timeout lists, closing every
// connection whose time since last activity exceeds its list's timeout.
// Lists are MRU-ordered front-to-back, so the walk stops at the first
// entry still within its deadline. closeFn performs the actual close
// procedure; SweepExpired only identifies candidates.
func (t *Tracker) SweepExpired(nowMs, defaultTimeoutMs, customTimeoutMs int64, closeFn func(c *Connection)) {
	sweepList(t.defaultList, nowMs, defaultTimeoutMs, closeFn)
	sweepList(t.customList, nowMs, customTimeoutMs, closeFn)
}

func sweepList(l *list.List[timeoutEntry], nowMs, timeoutMs int64, closeFn func(c *Connection)) {
	if timeoutMs <= 0 {
		return
	}
	for e := l.Back(); e != nil; {
		prev := list.Prev(e)
		if nowMs-e.conn.lastActivityMs < timeoutMs {
			break
		}
		closeFn(e.conn)
		e = prev
	}
}

// Registry is the daemon's all-connections list, used for shutdown
// broadcast and diagnostics independent of timeout tracking.
type Registry struct {
	all *list.List[allConnEntry]
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{all: &list.List[allConnEntry]{}}
}

// Add links c into the registry.
func (r *Registry) Add(c *Connection) {
	c.allLink.conn = c
	list.PushBack(r.all, &c.allLink)
}

// Remove unlinks c from the registry.
func (r *Registry) Remove(c *Connection) {
	list.Remove(r.all, &c.allLink)
}

// Len reports how many connections are currently registered.
func (r *Registry) Len() int { return r.all.Len() }

// Each calls fn once per registered connection, front to back.
func (r *Registry) Each(fn func(c *Connection)) {
	for e := r.all.Front(); e != nil; e = list.Next(e) {
		fn(e.conn)
	}
}
