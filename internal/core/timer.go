package core

import "time"

// Throttle limits how often periodic work such as progress reporting
// runs inside a tight loop.
type Throttle struct {
	interval time.Duration
	last     time.Time
}

// NewThrottle constructs a Throttle with the given minimum interval.
func NewThrottle(interval time.Duration) *Throttle {
	if interval <= 0 {
		interval = time.Second
	}
	return &Throttle{interval: interval}
}

// Allow reports whether enough time has passed since the last allowed
// call. The first call always succeeds.
func (t *Throttle) Allow() bool {
	now := time.Now()
	if t.last.IsZero() || now.Sub(t.last) >= t.interval {
		t.last = now
		return true
	}
	return false
}
