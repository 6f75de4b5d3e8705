// Package admission implements the per-daemon and per-IP connection
// ceilings described in SPEC_FULL §4.O: a semaphore-backed cheap
// rejection path that runs before a socket is ever handed to stream.New,
// so a connection over the limit never pays for a Connection or its pool.
package admission

import (
	"sync"

	"golang.org/x/sync/semaphore"
)

// Controller admits or rejects a newly-accepted connection against a
// total ceiling and, optionally, a per-IP ceiling.
type Controller struct {
	total *semaphore.Weighted

	perIPLimit int64
	mu         sync.Mutex
	perIP      map[string]*semaphore.Weighted
}

// New returns a Controller. totalLimit <= 0 means unlimited total
// connections; perIPLimit <= 0 means no per-IP ceiling.
func New(totalLimit, perIPLimit int64) *Controller {
	c := &Controller{perIPLimit: perIPLimit}
	if totalLimit > 0 {
		c.total = semaphore.NewWeighted(totalLimit)
	}
	if perIPLimit > 0 {
		c.perIP = make(map[string]*semaphore.Weighted)
	}
	return c
}

// TryAcquire attempts to admit one connection from ip. It never blocks:
// a ceiling already at capacity is reported immediately so the accept
// loop can close the socket without delay. The returned release func
// must be called exactly once, when the connection closes — never, if
// admission was refused.
func (c *Controller) TryAcquire(ip string) (release func(), admitted bool) {
	if c.total != nil && !c.total.TryAcquire(1) {
		return nil, false
	}
	var ipSem *semaphore.Weighted
	if c.perIP != nil {
		ipSem = c.ipSemaphore(ip)
		if !ipSem.TryAcquire(1) {
			if c.total != nil {
				c.total.Release(1)
			}
			return nil, false
		}
	}
	return func() {
		if ipSem != nil {
			ipSem.Release(1)
		}
		if c.total != nil {
			c.total.Release(1)
		}
	}, true
}

func (c *Controller) ipSemaphore(ip string) *semaphore.Weighted {
	c.mu.Lock()
	defer c.mu.Unlock()
	sem, ok := c.perIP[ip]
	if !ok {
		sem = semaphore.NewWeighted(c.perIPLimit)
		c.perIP[ip] = sem
	}
	return sem
}
