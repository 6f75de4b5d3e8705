package admission

import "testing"

func TestTryAcquireRespectsTotalLimit(t *testing.T) {
	c := New(2, 0)

	rel1, ok := c.TryAcquire("10.0.0.1")
	if !ok {
		t.Fatalf("expected first connection admitted")
	}
	_, ok = c.TryAcquire("10.0.0.2")
	if !ok {
		t.Fatalf("expected second connection admitted")
	}
	if _, ok := c.TryAcquire("10.0.0.3"); ok {
		t.Fatalf("expected third connection refused at total limit 2")
	}

	rel1()
	if _, ok := c.TryAcquire("10.0.0.3"); !ok {
		t.Fatalf("expected connection admitted after a release")
	}
}

func TestTryAcquireRespectsPerIPLimit(t *testing.T) {
	c := New(0, 1)

	if _, ok := c.TryAcquire("10.0.0.1"); !ok {
		t.Fatalf("expected first connection from ip admitted")
	}
	if _, ok := c.TryAcquire("10.0.0.1"); ok {
		t.Fatalf("expected second connection from same ip refused")
	}
	if _, ok := c.TryAcquire("10.0.0.2"); !ok {
		t.Fatalf("expected connection from a different ip admitted")
	}
}

func TestUnlimitedControllerAlwaysAdmits(t *testing.T) {
	c := New(0, 0)
	for i := 0; i < 100; i++ {
		if _, ok := c.TryAcquire("10.0.0.1"); !ok {
			t.Fatalf("unlimited controller refused connection %d", i)
		}
	}
}
