package itc

import "testing"

func TestSignalAndDrain(t *testing.T) {
	c, code := New()
	if !code.Ok() {
		t.Fatalf("New() failed: %v", code)
	}
	defer c.Close()

	c.Signal()
	c.Signal()
	c.Signal()

	c.Drain()

	fd, code := c.FD()
	if !code.Ok() || fd < 0 {
		t.Fatalf("FD() = %d, %v; want a valid fd", fd, code)
	}
}
