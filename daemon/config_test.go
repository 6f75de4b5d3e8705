package daemon

import (
	"testing"

	"github.com/arlonet/httpd/action"
	"github.com/arlonet/httpd/eventloop"
	"github.com/arlonet/httpd/stream"
)

func noopHandler(c *stream.Connection, act *action.Action) {}

func TestDefaultConfigHasUsableDefaults(t *testing.T) {
	cfg := defaultConfig()
	if cfg.Mode != ModeWorkerInternal {
		t.Errorf("default mode = %v, want ModeWorkerInternal", cfg.Mode)
	}
	if cfg.Backend != BackendEpoll {
		t.Errorf("default backend = %v, want BackendEpoll", cfg.Backend)
	}
	if cfg.PoolSize < 1 {
		t.Errorf("default pool size = %d, want >= 1", cfg.PoolSize)
	}
	if cfg.Logger == nil {
		t.Error("default logger is nil")
	}
}

func TestOptionsOverrideDefaults(t *testing.T) {
	cfg := defaultConfig()
	for _, opt := range []Option{
		WithAddr("tcp", ":0"),
		WithMode(ModeListenerWorkerPool),
		WithBackend(BackendPoll),
		WithPoolSize(8),
		WithConnBudget(128 * 1024),
		WithDefaultTimeout(5000),
		WithCustomTimeout(60000),
		WithAdmission(100, 10),
	} {
		opt(&cfg)
	}

	if cfg.Addr != ":0" {
		t.Errorf("Addr = %q, want :0", cfg.Addr)
	}
	if cfg.Mode != ModeListenerWorkerPool {
		t.Errorf("Mode = %v, want ModeListenerWorkerPool", cfg.Mode)
	}
	if cfg.Backend != BackendPoll {
		t.Errorf("Backend = %v, want BackendPoll", cfg.Backend)
	}
	if cfg.PoolSize != 8 {
		t.Errorf("PoolSize = %d, want 8", cfg.PoolSize)
	}
	if cfg.ConnBudget != 128*1024 {
		t.Errorf("ConnBudget = %d, want 131072", cfg.ConnBudget)
	}
	if cfg.DefaultTimeoutMs != 5000 || cfg.CustomTimeoutMs != 60000 {
		t.Errorf("timeouts = %d/%d, want 5000/60000", cfg.DefaultTimeoutMs, cfg.CustomTimeoutMs)
	}
	if cfg.MaxConnections != 100 || cfg.MaxPerIP != 10 {
		t.Errorf("admission = %d/%d, want 100/10", cfg.MaxConnections, cfg.MaxPerIP)
	}
}

func TestNewRejectsMissingHandler(t *testing.T) {
	if _, code := New(); code.Ok() {
		t.Fatal("New with no handler should fail")
	}
}

func TestNewAcceptsHandler(t *testing.T) {
	d, code := New(WithHandler(noopHandler))
	if !code.Ok() {
		t.Fatalf("New: %v", code)
	}
	if d.cfg.Handler == nil {
		t.Error("Handler not set on resulting Config")
	}
}

func TestNewBackendSelectsRequestedKind(t *testing.T) {
	b, err := newBackend(BackendSelect)
	if err != nil {
		t.Fatalf("newBackend(BackendSelect): %v", err)
	}
	defer b.Close()
	if _, ok := b.(*eventloop.SelectBackend); !ok {
		t.Errorf("got %T, want *eventloop.SelectBackend", b)
	}
}
