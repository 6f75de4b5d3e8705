// Package stream implements the per-connection stage-machine processor
// of §4.H: it drives one connection's bytes through the parser and
// response engine on every ready tick, tracks activity for timeout
// sweeps, and runs the close procedure when a request ends or the
// connection is deemed unsalvageable.
package stream

// CloseReason is the tagged enum of §4.H naming why a connection is being
// closed. Exactly one value is recorded per connection lifetime.
type CloseReason int

const (
	ReasonNone CloseReason = iota
	ReasonClientHTTPError
	ReasonNoPoolMemory
	ReasonClientShutdownEarly
	ReasonAppError
	ReasonFileReadError
	ReasonFileTooShort
	ReasonNonceError
	ReasonIntError
	ReasonExtEventRegFailed
	ReasonNoSysResources
	ReasonSocketError
	ReasonDaemonShutdown
	ReasonTimeout
	ReasonErrReplySent
	ReasonUpgrade
	ReasonHTTPCompleted
)

func (r CloseReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonClientHTTPError:
		return "client-http-error"
	case ReasonNoPoolMemory:
		return "no-pool-memory"
	case ReasonClientShutdownEarly:
		return "client-shutdown-early"
	case ReasonAppError:
		return "app-error"
	case ReasonFileReadError:
		return "file-read-error"
	case ReasonFileTooShort:
		return "file-too-short"
	case ReasonNonceError:
		return "nonce-error"
	case ReasonIntError:
		return "int-error"
	case ReasonExtEventRegFailed:
		return "ext-event-reg-failed"
	case ReasonNoSysResources:
		return "no-sys-resources"
	case ReasonSocketError:
		return "socket-err"
	case ReasonDaemonShutdown:
		return "daemon-shutdown"
	case ReasonTimeout:
		return "timeout"
	case ReasonErrReplySent:
		return "err-reply-sent"
	case ReasonUpgrade:
		return "upgrade"
	case ReasonHTTPCompleted:
		return "http-completed"
	default:
		return "unknown"
	}
}

// Graceful reports whether this reason warrants a graceful shutdown
// (shutdown(WR) / TLS close_notify, draining any in-flight write) rather
// than an immediate hard close.
func (r CloseReason) Graceful() bool {
	switch r {
	case ReasonHTTPCompleted, ReasonDaemonShutdown, ReasonTimeout, ReasonUpgrade:
		return true
	default:
		return false
	}
}

// RequestEnded is the externally visible code handed to an application's
// termination callback, per §4.H. It collapses the internal CloseReason
// space into the handful of outcomes an embedder's callback actually
// needs to branch on.
type RequestEnded int

const (
	RequestEndedOK RequestEnded = iota
	RequestEndedClientError
	RequestEndedTimeout
	RequestEndedAppError
	RequestEndedResourceExhausted
	RequestEndedSocketError
	RequestEndedShutdown
	RequestEndedUpgraded
)

// RequestEnded maps r onto the externally visible outcome code.
func (r CloseReason) RequestEnded() RequestEnded {
	switch r {
	case ReasonHTTPCompleted, ReasonErrReplySent:
		return RequestEndedOK
	case ReasonClientHTTPError, ReasonClientShutdownEarly:
		return RequestEndedClientError
	case ReasonTimeout:
		return RequestEndedTimeout
	case ReasonAppError:
		return RequestEndedAppError
	case ReasonNoPoolMemory, ReasonNoSysResources, ReasonFileTooShort:
		return RequestEndedResourceExhausted
	case ReasonSocketError, ReasonFileReadError, ReasonIntError, ReasonExtEventRegFailed, ReasonNonceError:
		return RequestEndedSocketError
	case ReasonDaemonShutdown:
		return RequestEndedShutdown
	case ReasonUpgrade:
		return RequestEndedUpgraded
	default:
		return RequestEndedOK
	}
}
