package clock

import (
	"testing"
	"time"
)

func TestNowMillisMonotonic(t *testing.T) {
	var c Clock
	first, ok := c.NowMillis()
	if !ok || first == 0 {
		t.Fatalf("NowMillis() = %d, %v; want nonzero, true", first, ok)
	}
	second, ok := c.NowMillis()
	if !ok {
		t.Fatalf("second NowMillis() reported a jump unexpectedly")
	}
	if second < first {
		t.Fatalf("NowMillis() went backwards: %d then %d", first, second)
	}
}

func TestNowMillisAbsorbsSmallBackwardJump(t *testing.T) {
	// Simulate a small backward step by asking Since() against a future
	// timestamp; NowMillis itself samples the real clock so we exercise
	// the clamp path through a synthetic last value instead: a last value
	// 2s ahead of the real clock looks like a 2s backward step.
	future := time.Now().UnixMilli() + 2_000
	c := Clock{last: future}
	if got := c.Since(future); got != 0 {
		t.Errorf("Since(future) = %d, want 0 (clamped)", got)
	}
}
