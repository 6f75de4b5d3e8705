package metrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func gaugeValue(t *testing.T, m *Registry) float64 {
	t.Helper()
	var d dto.Metric
	if err := m.ConnectionsActive.Write(&d); err != nil {
		t.Fatalf("write: %v", err)
	}
	return d.GetGauge().GetValue()
}

func TestConnOpenedAndClosedTrackActiveGauge(t *testing.T) {
	m := New(nil)
	m.ConnOpened()
	m.ConnOpened()
	if got := gaugeValue(t, m); got != 2 {
		t.Fatalf("expected 2 active, got %v", got)
	}
	m.ConnClosed("http_completed")
	if got := gaugeValue(t, m); got != 1 {
		t.Fatalf("expected 1 active after close, got %v", got)
	}
}

func TestConnClosedLabelsByReason(t *testing.T) {
	m := New(nil)
	m.ConnOpened()
	m.ConnClosed("timeout")

	var d dto.Metric
	if err := m.ConnectionsTotal.WithLabelValues("timeout").Write(&d); err != nil {
		t.Fatalf("write: %v", err)
	}
	if d.GetCounter().GetValue() != 1 {
		t.Fatalf("expected 1 timeout close, got %v", d.GetCounter().GetValue())
	}
}
