package daemon

import (
	"net"

	"github.com/sirupsen/logrus"

	"github.com/arlonet/httpd/admission"
	"github.com/arlonet/httpd/eventloop"
	"github.com/arlonet/httpd/itc"
	"github.com/arlonet/httpd/metrics"
	"github.com/arlonet/httpd/pool"
	"github.com/arlonet/httpd/sock"
	"github.com/arlonet/httpd/stream"
	"github.com/arlonet/httpd/tlsbridge"
)

// worker owns one event loop, the connections registered on it, and the
// timeout/registry bookkeeping for that subset — the unit the Listener +
// worker-pool mode (and, with a pool of one, the single-internal-worker
// mode) replicates N times, per §4.J.
type worker struct {
	id int

	cfg      Config
	backend  eventloop.Backend
	wake     *itc.Channel
	wakeFD   int
	proc     *stream.Processor
	registry *stream.Registry
	conns    map[int]*stream.Connection

	admission *admission.Controller
	metrics   *metrics.Registry
	logger    logrus.FieldLogger

	incoming chan acceptedConn
	shutdown chan struct{}
	done     chan struct{}
}

func newWorker(id int, cfg Config, adm *admission.Controller) (*worker, error) {
	backend, err := newBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}
	return newWorkerFromBackend(id, cfg, adm, backend)
}

// newExternalWorker builds a worker around an eventloop.ExternalBackend for
// ModeExternalEvents, where the embedder drives readiness itself rather
// than this package choosing an epoll/poll/select backend.
func newExternalWorker(id int, cfg Config, adm *admission.Controller) (*worker, error) {
	return newWorkerFromBackend(id, cfg, adm, eventloop.NewExternalBackend())
}

func newWorkerFromBackend(id int, cfg Config, adm *admission.Controller, backend eventloop.Backend) (*worker, error) {
	wake, code := itc.New()
	if !code.Ok() {
		backend.Close()
		return nil, code
	}
	wakeFD, code := wake.FD()
	if !code.Ok() {
		backend.Close()
		_ = wake.Close()
		return nil, code
	}
	if code := backend.Register(wakeFD, eventloop.Want{Recv: true}); !code.Ok() {
		backend.Close()
		_ = wake.Close()
		return nil, code
	}

	w := &worker{
		id:        id,
		cfg:       cfg,
		backend:   backend,
		wake:      wake,
		wakeFD:    wakeFD,
		proc:      stream.NewProcessor(cfg.Handler),
		registry:  stream.NewRegistry(),
		conns:     make(map[int]*stream.Connection),
		admission: adm,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		incoming:  make(chan acceptedConn, 64),
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	return w, nil
}

// submit hands an accepted connection to this worker from another
// goroutine (the listener, or the daemon on external-mode AddConn) and
// wakes its event loop to pick it up.
func (w *worker) submit(ac acceptedConn) {
	w.incoming <- ac
	w.wake.Signal()
}

// requestShutdown asks the worker's run loop to close every connection
// and return. Safe to call once from any goroutine.
func (w *worker) requestShutdown() {
	close(w.shutdown)
	w.wake.Signal()
}

// run is the worker's event loop, per §4.J "each worker has its own
// event loop and own conns list." It returns once requestShutdown has
// been called and every connection has been closed. Used by
// ModeWorkerInternal and ModeListenerWorkerPool, which own their
// worker(s)' goroutines; ModeExternalEvents instead calls pumpOnce
// directly from the embedder's own thread, never running this loop.
func (w *worker) run() error {
	defer close(w.done)
	for {
		select {
		case <-w.shutdown:
			w.closeAll(stream.ReasonDaemonShutdown)
			return nil
		default:
		}
		w.pumpOnce(w.computeTimeoutMs())
	}
}

// pumpOnce performs exactly one Wait call's worth of dispatch: new
// connections, ready connections, and a timeout sweep. It is the unit
// both run's internal loop and the external-events Daemon.ProcessEvents
// entry point are built from.
func (w *worker) pumpOnce(timeoutMs int) {
	events, code := w.backend.Wait(timeoutMs)
	if !code.Ok() {
		w.logger.WithField("worker", w.id).WithError(code).Warn("event loop wait failed")
		return
	}
	for _, ev := range events {
		if ev.FD == w.wakeFD {
			w.wake.Drain()
			w.drainIncoming()
			continue
		}
		w.handleReady(ev)
	}
	w.sweepTimeouts()
}

func (w *worker) drainIncoming() {
	for {
		select {
		case ac := <-w.incoming:
			w.addConn(ac)
		default:
			return
		}
	}
}

// addConnSync is addConn's external-mode entry point: Daemon.AddConn calls
// this directly from the embedder's own goroutine since ModeExternalEvents
// has no background goroutine draining w.incoming to pick it up.
func (w *worker) addConnSync(ac acceptedConn) { w.addConn(ac) }

func (w *worker) addConn(ac acceptedConn) {
	remoteAddr := remoteAddrOf(ac.conn)
	release, admitted := w.admission.TryAcquire(hostOf(remoteAddr))
	if !admitted {
		_ = ac.conn.Close()
		return
	}

	var io stream.IO
	var tls tlsbridge.Session
	if w.cfg.TLSConfig != nil {
		tls = tlsbridge.New()
		if code := tls.Init(ac.conn, w.cfg.TLSConfig, true); !code.Ok() {
			release()
			_ = ac.conn.Close()
			return
		}
		if code := tls.Handshake(); !code.Ok() {
			release()
			_ = ac.conn.Close()
			return
		}
		io = stream.NewTLSIO(tls)
	} else {
		if sc, ok := ac.conn.(sock.Syscaller); ok {
			_ = sock.SetNonblocking(sc)
		}
		io = stream.NewRawIO(ac.fd)
	}

	p := pool.New(w.cfg.ConnBudget)
	conn, code := stream.New(p, io, tls, w.cfg.Strictness)
	if !code.Ok() {
		release()
		_ = ac.conn.Close()
		return
	}
	conn.RemoteAddr = remoteAddr
	conn.ReleaseAdmission = release
	conn.RawConn = ac.conn

	if ac.fd < 0 {
		release()
		_ = ac.conn.Close()
		return
	}
	if code := w.backend.Register(ac.fd, conn.Want()); !code.Ok() {
		release()
		_ = ac.conn.Close()
		return
	}

	w.conns[ac.fd] = conn
	w.registry.Add(conn)
	if w.metrics != nil {
		w.metrics.ConnOpened()
	}
}

func (w *worker) handleReady(ev eventloop.ReadyEvent) {
	conn, ok := w.conns[ev.FD]
	if !ok {
		return
	}
	recvReady := ev.Readiness.Has(eventloop.RecvReady) ||
		ev.Readiness.Has(eventloop.RemoteShutWr) ||
		ev.Readiness.Has(eventloop.RecvError)
	sendReady := ev.Readiness.Has(eventloop.SendReady) || ev.Readiness.Has(eventloop.SendError)

	reason := w.proc.Tick(conn, recvReady, sendReady)
	if reason != stream.ReasonNone {
		w.teardown(ev.FD, conn, reason)
		return
	}
	w.backend.Modify(ev.FD, conn.Want())
}

// teardown runs the rest of the close procedure after Tick has already
// called StartClosing for conn (PreClean, Dispose, deregistration,
// accounting release).
func (w *worker) teardown(fd int, conn *stream.Connection, reason stream.CloseReason) {
	w.backend.Deregister(fd)
	w.registry.Remove(conn)
	delete(w.conns, fd)
	conn.PreClean()
	conn.Dispose()
	if conn.RawConn != nil {
		sock.HardClose(conn.RawConn.(net.Conn))
	}
	if conn.ReleaseAdmission != nil {
		conn.ReleaseAdmission()
	}
	if w.metrics != nil {
		w.metrics.ConnClosed(reason.String())
	}
	w.logger.WithField("worker", w.id).
		WithField("remote_addr", conn.RemoteAddr).
		WithField("reason", reason.String()).
		Debug("connection closed")
}

func (w *worker) closeAll(reason stream.CloseReason) {
	for fd, conn := range w.conns {
		if !conn.Closing() {
			w.proc.StartClosing(conn, reason, "daemon shutdown")
		}
		w.backend.Deregister(fd)
		conn.PreClean()
		conn.Dispose()
		if conn.RawConn != nil {
			sock.HardClose(conn.RawConn.(net.Conn))
		}
		if conn.ReleaseAdmission != nil {
			conn.ReleaseAdmission()
		}
		if w.metrics != nil {
			w.metrics.ConnClosed(reason.String())
		}
	}
	w.conns = make(map[int]*stream.Connection)
}

func (w *worker) sweepTimeouts() {
	nowMs, _ := w.proc.Clock.NowMillis()
	w.proc.Tracker.SweepExpired(nowMs, w.cfg.DefaultTimeoutMs, w.cfg.CustomTimeoutMs, func(c *stream.Connection) {
		fd := fdOfRawConn(c)
		reason := w.proc.StartClosing(c, stream.ReasonTimeout, "idle timeout")
		if fd >= 0 {
			w.teardown(fd, c, reason)
		}
	})
}

// computeTimeoutMs picks the event loop's max wait: indefinite (-1) when
// no timeout tracking applies, otherwise a small fixed poll interval so
// SweepExpired runs often enough to notice expired connections promptly
// without busy-looping, per §5's "min of nearest timeout ... nothing ->
// indefinite" rule, approximated here rather than computed exactly from
// the tracker's head entries.
func (w *worker) computeTimeoutMs() int {
	if w.cfg.DefaultTimeoutMs <= 0 {
		return -1
	}
	const pollIntervalMs = 1000
	return pollIntervalMs
}

func hostOf(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}

func fdOfRawConn(c *stream.Connection) int {
	if c.RawConn == nil {
		return -1
	}
	if sc, ok := c.RawConn.(sock.Syscaller); ok {
		if fd, code := sock.FD(sc); code.Ok() {
			return fd
		}
	}
	return -1
}
