package daemon

import (
	"github.com/arlonet/httpd/admission"
	"github.com/arlonet/httpd/eventloop"
	"github.com/arlonet/httpd/itc"
	"github.com/arlonet/httpd/pool"
	"github.com/arlonet/httpd/sock"
	"github.com/arlonet/httpd/stream"
	"github.com/arlonet/httpd/tlsbridge"
)

// serveOneConnection implements ModeThreadPerConnection: the listener
// goroutine spawns one of these per accepted socket. It owns a tiny
// event loop watching exactly two fds — its connection and its own ITC
// wake pipe — and runs until the connection closes or shutdown broadcasts,
// per §4.J mode 4 ("that thread runs a blocking select/poll loop over
// just its own socket and ITC").
func serveOneConnection(cfg Config, adm *admission.Controller, ac acceptedConn, shutdown *shutdownBroadcast) {
	remoteAddr := remoteAddrOf(ac.conn)
	release, admitted := adm.TryAcquire(hostOf(remoteAddr))
	if !admitted {
		_ = ac.conn.Close()
		return
	}
	defer release()

	backend, err := newBackend(cfg.Backend)
	if err != nil {
		_ = ac.conn.Close()
		return
	}
	defer backend.Close()

	wake, code := itc.New()
	if !code.Ok() {
		_ = ac.conn.Close()
		return
	}
	defer wake.Close()
	wakeFD, code := wake.FD()
	if !code.Ok() {
		_ = ac.conn.Close()
		return
	}
	shutdown.register(wake)
	defer shutdown.unregister(wake)

	if code := backend.Register(wakeFD, eventloop.Want{Recv: true}); !code.Ok() {
		_ = ac.conn.Close()
		return
	}

	var io stream.IO
	var tlsSess tlsbridge.Session
	if cfg.TLSConfig != nil {
		tlsSess = tlsbridge.New()
		if code := tlsSess.Init(ac.conn, cfg.TLSConfig, true); !code.Ok() {
			_ = ac.conn.Close()
			return
		}
		if code := tlsSess.Handshake(); !code.Ok() {
			_ = ac.conn.Close()
			return
		}
		io = stream.NewTLSIO(tlsSess)
	} else {
		if sc, ok := ac.conn.(sock.Syscaller); ok {
			_ = sock.SetNonblocking(sc)
		}
		io = stream.NewRawIO(ac.fd)
	}

	p := pool.New(cfg.ConnBudget)
	conn, code := stream.New(p, io, tlsSess, cfg.Strictness)
	if !code.Ok() {
		_ = ac.conn.Close()
		return
	}
	conn.RemoteAddr = remoteAddr

	if code := backend.Register(ac.fd, conn.Want()); !code.Ok() {
		_ = ac.conn.Close()
		return
	}
	if cfg.Metrics != nil {
		cfg.Metrics.ConnOpened()
	}

	proc := stream.NewProcessor(cfg.Handler)
	for {
		events, code := backend.Wait(1000)
		if !code.Ok() {
			break
		}
		closed := false
		for _, ev := range events {
			if ev.FD == wakeFD {
				wake.Drain()
				continue
			}
			recvReady := ev.Readiness.Has(eventloop.RecvReady) ||
				ev.Readiness.Has(eventloop.RemoteShutWr) ||
				ev.Readiness.Has(eventloop.RecvError)
			sendReady := ev.Readiness.Has(eventloop.SendReady) || ev.Readiness.Has(eventloop.SendError)
			reason := proc.Tick(conn, recvReady, sendReady)
			if reason != stream.ReasonNone {
				closed = true
				break
			}
			backend.Modify(ac.fd, conn.Want())
		}
		if closed || shutdown.isShutdown() {
			if !conn.Closing() {
				proc.StartClosing(conn, stream.ReasonDaemonShutdown, "daemon shutdown")
			}
			break
		}
		nowMs, _ := proc.Clock.NowMillis()
		proc.Tracker.SweepExpired(nowMs, cfg.DefaultTimeoutMs, cfg.CustomTimeoutMs, func(c *stream.Connection) {
			proc.StartClosing(c, stream.ReasonTimeout, "idle timeout")
		})
		if conn.Closing() {
			break
		}
	}

	backend.Deregister(ac.fd)
	conn.PreClean()
	conn.Dispose()
	sock.HardClose(ac.conn)
	if cfg.Metrics != nil {
		cfg.Metrics.ConnClosed(conn.CloseReason().String())
	}
}
