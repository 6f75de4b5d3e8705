// Package clock provides a millisecond monotonic counter used for
// activity tracking and timeout sweeps. It is robust to wall-clock jumps:
// backward jumps of a few seconds (NTP slew, VM pause) are absorbed
// silently, while large jumps are reported to the caller so the daemon can
// log them, per §4.H.
package clock

import "time"

// toleratedBackwardJump is the largest backward jump in reported
// milliseconds that is treated as normal clock noise rather than a real
// system clock step.
const toleratedBackwardJump = 4 * time.Second

// Clock reports a monotonically-increasing millisecond counter. The zero
// value is ready to use.
type Clock struct {
	last int64 // last value returned by NowMillis, in ms
}

// NowMillis returns the current time in milliseconds since the Unix
// epoch, read from the wall clock (time.Now().UnixMilli(), which carries
// no monotonic reading). A backward step of up to toleratedBackwardJump is
// clamped: the last observed value is returned with ok == true. A larger
// backward step is accepted as the new value and reported with
// ok == false, so callers can log a genuine system clock jump without
// treating routine jitter as one.
func (c *Clock) NowMillis() (ms int64, ok bool) {
	now := time.Now().UnixMilli()
	if c.last == 0 {
		c.last = now
		return now, true
	}
	if now < c.last {
		delta := c.last - now
		if time.Duration(delta)*time.Millisecond > toleratedBackwardJump {
			// Large backward jump: accept the new value but tell the
			// caller so it can log it, per §4.H.
			c.last = now
			return now, false
		}
		// Small backward jump: absorb it, time does not go backwards
		// from the clock's point of view.
		return c.last, true
	}
	c.last = now
	return now, true
}

// Since returns the number of milliseconds elapsed since ms, using the
// same clamped semantics as NowMillis.
func (c *Clock) Since(ms int64) int64 {
	now, _ := c.NowMillis()
	if now < ms {
		return 0
	}
	return now - ms
}
