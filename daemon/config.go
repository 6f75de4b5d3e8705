package daemon

import (
	"crypto/tls"

	"github.com/sirupsen/logrus"

	"github.com/arlonet/httpd/admission"
	"github.com/arlonet/httpd/eventloop"
	"github.com/arlonet/httpd/metrics"
	"github.com/arlonet/httpd/parser"
	"github.com/arlonet/httpd/stream"
)

// Mode selects one of the four threading/lifecycle layouts of §4.J.
type Mode int

const (
	// ModeExternalEvents runs no goroutine of its own: the embedding
	// application drives the daemon by calling ProcessEvents (and Notify,
	// to report a single fd's readiness) from its own event loop.
	ModeExternalEvents Mode = iota
	// ModeWorkerInternal runs one goroutine that owns the listener and
	// every accepted connection behind a single internal event loop.
	ModeWorkerInternal
	// ModeListenerWorkerPool runs one listener goroutine that hands
	// accepted sockets off to PoolSize worker goroutines, each with its
	// own event loop and its own connection subset.
	ModeListenerWorkerPool
	// ModeThreadPerConnection runs one listener goroutine and spawns a
	// dedicated goroutine per accepted connection.
	ModeThreadPerConnection
)

// BackendKind selects which eventloop.Backend implementation an internal
// worker uses. Irrelevant for ModeExternalEvents, where the embedder
// supplies its own event source via eventloop.ExternalBackend semantics.
type BackendKind int

const (
	BackendEpoll BackendKind = iota
	BackendPoll
	BackendSelect
)

// Config collects every tunable a Daemon needs. The zero value is not
// meant to be used directly — build one with New(defaults...) plus
// Option values, mirroring the teacher's plain-struct-of-tunables Server.
type Config struct {
	Network string // "tcp", "tcp4", "tcp6", "unix"
	Addr    string

	Mode       Mode
	Backend    BackendKind
	PoolSize   int // worker count for ModeListenerWorkerPool
	ConnBudget int // bytes per connection's pool.Pool

	TLSConfig *tls.Config

	Strictness parser.Strictness

	// DefaultTimeoutMs is the idle timeout applied to every connection
	// unless it opts into CustomTimeoutMs (e.g. by setting
	// Connection.CustomTimeoutMs from the handler, for a long-poll
	// endpoint). Both are daemon-wide values — the Tracker sweeps its
	// two timeout lists against one threshold each, not an arbitrary
	// per-connection deadline.
	DefaultTimeoutMs int64
	CustomTimeoutMs  int64

	MaxConnections int64 // 0 = unlimited
	MaxPerIP       int64 // 0 = unlimited

	Logger  logrus.FieldLogger
	Metrics *metrics.Registry

	Handler stream.Handler
}

// Option mutates a Config during New.
type Option func(*Config)

// defaultConfig matches the teacher's Server zero-value philosophy
// (sane defaults for every field an embedder doesn't set) adapted to
// this daemon's extra knobs.
func defaultConfig() Config {
	return Config{
		Network:          "tcp",
		Addr:             ":8080",
		Mode:             ModeWorkerInternal,
		Backend:          BackendEpoll,
		PoolSize:         4,
		ConnBudget:       64 * 1024,
		Strictness:       parser.StrictnessDefault,
		DefaultTimeoutMs: 30_000,
		Logger:           logrus.StandardLogger(),
	}
}

// WithAddr sets the listen network and address.
func WithAddr(network, addr string) Option {
	return func(c *Config) { c.Network = network; c.Addr = addr }
}

// WithMode selects one of the four threading layouts.
func WithMode(m Mode) Option { return func(c *Config) { c.Mode = m } }

// WithBackend selects the internal event-loop backend (ignored under
// ModeExternalEvents).
func WithBackend(b BackendKind) Option { return func(c *Config) { c.Backend = b } }

// WithPoolSize sets the worker count for ModeListenerWorkerPool.
func WithPoolSize(n int) Option { return func(c *Config) { c.PoolSize = n } }

// WithConnBudget sets the per-connection memory pool size in bytes.
func WithConnBudget(bytes int) Option { return func(c *Config) { c.ConnBudget = bytes } }

// WithTLSConfig enables TLS termination for accepted connections.
func WithTLSConfig(cfg *tls.Config) Option { return func(c *Config) { c.TLSConfig = cfg } }

// WithStrictness sets the request parser's RFC-interpretation strictness.
func WithStrictness(s parser.Strictness) Option { return func(c *Config) { c.Strictness = s } }

// WithDefaultTimeout sets the default per-connection idle timeout.
func WithDefaultTimeout(ms int64) Option { return func(c *Config) { c.DefaultTimeoutMs = ms } }

// WithCustomTimeout sets the second timeout tier a handler can opt a
// connection into via Connection.CustomTimeoutMs (e.g. a longer deadline
// for a long-poll endpoint).
func WithCustomTimeout(ms int64) Option { return func(c *Config) { c.CustomTimeoutMs = ms } }

// WithAdmission sets the total and per-IP connection ceilings (§4.O).
func WithAdmission(totalLimit, perIPLimit int64) Option {
	return func(c *Config) { c.MaxConnections = totalLimit; c.MaxPerIP = perIPLimit }
}

// WithLogger overrides the structured logger (default: logrus's standard
// logger).
func WithLogger(l logrus.FieldLogger) Option { return func(c *Config) { c.Logger = l } }

// WithMetrics supplies a pre-built metrics.Registry, letting an embedder
// fold the daemon's collectors into its own prometheus registry.
func WithMetrics(m *metrics.Registry) Option { return func(c *Config) { c.Metrics = m } }

// WithHandler sets the application request handler (§4.L). Required.
func WithHandler(h stream.Handler) Option { return func(c *Config) { c.Handler = h } }

func newAdmissionController(c Config) *admission.Controller {
	return admission.New(c.MaxConnections, c.MaxPerIP)
}

func newBackend(kind BackendKind) (eventloop.Backend, error) {
	switch kind {
	case BackendPoll:
		return eventloop.NewPollBackend(), nil
	case BackendSelect:
		return eventloop.NewSelectBackend(), nil
	default:
		b, code := eventloop.NewEpollBackend()
		if !code.Ok() {
			return nil, code
		}
		return b, nil
	}
}
