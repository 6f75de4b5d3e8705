// Package metrics wraps a prometheus.Registry with the counters/gauges a
// daemon needs to observe itself, per SPEC_FULL §4.N: active connections,
// accepted/closed connections labeled by close reason, requests served,
// and bytes moved. It is instantiated once per daemon and handed to every
// worker, since the underlying prometheus collectors are already
// safe for concurrent use.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry holds the pre-declared collectors. The zero value is not
// usable; call New.
type Registry struct {
	reg *prometheus.Registry

	ConnectionsActive prometheus.Gauge
	ConnectionsTotal  *prometheus.CounterVec
	RequestsTotal     prometheus.Counter
	BytesRead         prometheus.Counter
	BytesWritten      prometheus.Counter
}

// New creates a Registry with all collectors registered under namespace
// "httpd". Passing an existing *prometheus.Registry lets an embedder
// fold these collectors into its own /metrics endpoint; nil creates a
// private one.
func New(reg *prometheus.Registry) *Registry {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Registry{
		reg: reg,
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "httpd",
			Name:      "connections_active",
			Help:      "Number of connections currently open.",
		}),
		ConnectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "httpd",
			Name:      "connections_total",
			Help:      "Total connections closed, labeled by close reason.",
		}, []string{"reason"}),
		RequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "httpd",
			Name:      "requests_total",
			Help:      "Total requests fully received and handed to the application.",
		}),
		BytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "httpd",
			Name:      "bytes_read_total",
			Help:      "Total bytes read from connection sockets.",
		}),
		BytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "httpd",
			Name:      "bytes_written_total",
			Help:      "Total bytes written to connection sockets.",
		}),
	}
	reg.MustRegister(m.ConnectionsActive, m.ConnectionsTotal, m.RequestsTotal, m.BytesRead, m.BytesWritten)
	return m
}

// Registerer exposes the underlying prometheus.Registry for an embedder
// that wants to add its own collectors alongside these, or serve it via
// promhttp.HandlerFor.
func (m *Registry) Registerer() *prometheus.Registry { return m.reg }

// ConnOpened records one newly-admitted connection.
func (m *Registry) ConnOpened() { m.ConnectionsActive.Inc() }

// ConnClosed records one connection's final disposition.
func (m *Registry) ConnClosed(reason string) {
	m.ConnectionsActive.Dec()
	m.ConnectionsTotal.WithLabelValues(reason).Inc()
}

// RequestCompleted records one request handed to the application handler.
func (m *Registry) RequestCompleted() { m.RequestsTotal.Inc() }

// IORecorded records bytes moved in a single recv/send tick.
func (m *Registry) IORecorded(read, written int) {
	if read > 0 {
		m.BytesRead.Add(float64(read))
	}
	if written > 0 {
		m.BytesWritten.Add(float64(written))
	}
}
