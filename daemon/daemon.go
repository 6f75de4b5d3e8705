package daemon

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/arlonet/httpd/admission"
	"github.com/arlonet/httpd/eventloop"
	"github.com/arlonet/httpd/itc"
	"github.com/arlonet/httpd/status"
)

// Daemon is the top-level handle an embedder holds: it owns the listener,
// the admission controller, and whichever goroutine layout cfg.Mode
// selects (§4.J). Build one with New and start it with Start.
type Daemon struct {
	cfg       Config
	admission *admission.Controller
	logger    logrus.FieldLogger

	listener net.Listener
	group    *errgroup.Group
	groupCtx context.Context

	// ModeWorkerInternal / ModeListenerWorkerPool / ModeExternalEvents
	// share the worker type; only their goroutine wiring differs.
	workers []*worker

	// ModeThreadPerConnection has no workers slice; each connection's own
	// goroutine is tracked only via shutdownBC so Shutdown can wake it.
	shutdownBC *shutdownBroadcast

	started int32
}

// New builds a Daemon from defaultConfig() plus opts. The handler option
// is required; every other knob has a usable default.
func New(opts ...Option) (*Daemon, status.Code) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Handler == nil {
		return nil, status.ErrInvalidArgument
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	d := &Daemon{
		cfg:        cfg,
		admission:  newAdmissionController(cfg),
		logger:     cfg.Logger,
		shutdownBC: newShutdownBroadcast(),
	}
	return d, status.OK
}

// Start binds the listen socket (for every mode but ModeExternalEvents,
// which has none) and spawns whatever goroutines cfg.Mode calls for. It
// returns once setup completes; goroutines run until Shutdown or Wait
// observes a fatal error.
func (d *Daemon) Start() status.Code {
	if !atomic.CompareAndSwapInt32(&d.started, 0, 1) {
		return status.ErrInvalidArgument
	}

	group, ctx := errgroup.WithContext(context.Background())
	d.group = group
	d.groupCtx = ctx

	if d.cfg.Mode == ModeExternalEvents {
		w, err := newExternalWorker(0, d.cfg, d.admission)
		if err != nil {
			return status.ErrPoolExhausted
		}
		d.workers = []*worker{w}
		return status.OK
	}

	l, code := openListener(d.cfg.Network, d.cfg.Addr)
	if !code.Ok() {
		return code
	}
	d.listener = l

	switch d.cfg.Mode {
	case ModeWorkerInternal:
		w, err := newWorker(0, d.cfg, d.admission)
		if err != nil {
			_ = l.Close()
			return status.ErrPoolExhausted
		}
		d.workers = []*worker{w}
		group.Go(func() error { return w.run() })
		group.Go(func() error {
			runAcceptLoop(l, func(ac acceptedConn) { w.submit(ac) })
			return nil
		})

	case ModeListenerWorkerPool:
		poolSize := d.cfg.PoolSize
		if poolSize < 1 {
			poolSize = 1
		}
		d.workers = make([]*worker, poolSize)
		for i := 0; i < poolSize; i++ {
			w, err := newWorker(i, d.cfg, d.admission)
			if err != nil {
				_ = l.Close()
				return status.ErrPoolExhausted
			}
			d.workers[i] = w
			group.Go(func() error { return w.run() })
		}
		group.Go(func() error {
			runAcceptLoop(l, func(ac acceptedConn) {
				d.workers[dispatchIndex(ac.fd, len(d.workers))].submit(ac)
			})
			return nil
		})

	case ModeThreadPerConnection:
		group.Go(func() error {
			runAcceptLoop(l, func(ac acceptedConn) {
				group.Go(func() error {
					serveOneConnection(d.cfg, d.admission, ac, d.shutdownBC)
					return nil
				})
			})
			return nil
		})

	default:
		_ = l.Close()
		return status.ErrInvalidArgument
	}

	return status.OK
}

// dispatchIndex picks a worker for an accepted fd in ModeListenerWorkerPool,
// spreading connections across the pool without needing per-connection
// affinity (any worker can own any fd for this mode).
func dispatchIndex(fd, poolSize int) int {
	if fd < 0 {
		fd = -fd
	}
	return fd % poolSize
}

// Shutdown asks every running goroutine to close its connections and
// return, then waits for them (bounded by ctx) before returning.
func (d *Daemon) Shutdown(ctx context.Context) error {
	if d.listener != nil {
		_ = d.listener.Close()
	}
	for _, w := range d.workers {
		w.requestShutdown()
	}
	d.shutdownBC.broadcast()

	done := make(chan error, 1)
	go func() { done <- d.group.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Addr reports the bound listen address, useful when Start was configured
// with an ephemeral port (":0"). Returns nil under ModeExternalEvents,
// which binds no listener.
func (d *Daemon) Addr() net.Addr {
	if d.listener == nil {
		return nil
	}
	return d.listener.Addr()
}

// Wait blocks until every goroutine Start spawned has returned, surfacing
// the first non-nil error any of them returned. A panic in one of them is
// not recovered by the errgroup and is not turned into an error here.
func (d *Daemon) Wait() error {
	if d.group == nil {
		return nil
	}
	return d.group.Wait()
}

// AddConn registers an externally-accepted connection under
// ModeExternalEvents. The embedder owns accept(); this just folds fd/conn
// into the daemon's single worker.
func (d *Daemon) AddConn(conn net.Conn, fd int) status.Code {
	if d.cfg.Mode != ModeExternalEvents || len(d.workers) == 0 {
		return status.ErrInvalidArgument
	}
	d.workers[0].addConnSync(acceptedConn{conn: conn, fd: fd})
	return status.OK
}

// ProcessEvents performs one dispatch tick under ModeExternalEvents: the
// embedder calls this from its own event loop after it has forwarded
// whatever readiness it observed via Notify.
func (d *Daemon) ProcessEvents(timeoutMs int) status.Code {
	if d.cfg.Mode != ModeExternalEvents || len(d.workers) == 0 {
		return status.ErrInvalidArgument
	}
	d.workers[0].pumpOnce(timeoutMs)
	return status.OK
}

// Notify forwards readiness the embedder observed on fd via its own event
// source into the daemon's external backend, for ModeExternalEvents.
func (d *Daemon) Notify(fd int, r eventloop.Readiness) status.Code {
	if d.cfg.Mode != ModeExternalEvents || len(d.workers) == 0 {
		return status.ErrInvalidArgument
	}
	eb, ok := d.workers[0].backend.(*eventloop.ExternalBackend)
	if !ok {
		return status.ErrInvalidArgument
	}
	return eb.Notify(fd, r)
}

// GetTimeout reports the timeout in milliseconds the embedder should pass
// to its own event source's wait call, mirroring the internal workers'
// own computeTimeoutMs policy.
func (d *Daemon) GetTimeout() int {
	if len(d.workers) == 0 {
		return -1
	}
	return d.workers[0].computeTimeoutMs()
}

// shutdownBroadcast lets ModeThreadPerConnection's independent per-goroutine
// event loops learn about a daemon-wide shutdown: each goroutine registers
// its wake channel on entry and checks isShutdown once per tick; broadcast
// signals every registered channel so a blocked Wait returns immediately.
type shutdownBroadcast struct {
	mu       sync.Mutex
	channels map[*itc.Channel]struct{}
	flag     atomic.Bool
}

func newShutdownBroadcast() *shutdownBroadcast {
	return &shutdownBroadcast{channels: make(map[*itc.Channel]struct{})}
}

func (b *shutdownBroadcast) register(ch *itc.Channel) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channels[ch] = struct{}{}
}

func (b *shutdownBroadcast) unregister(ch *itc.Channel) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.channels, ch)
}

func (b *shutdownBroadcast) isShutdown() bool { return b.flag.Load() }

func (b *shutdownBroadcast) broadcast() {
	b.flag.Store(true)
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.channels {
		ch.Signal()
	}
}
