package uptime

import "time"

// Clock reports device uptime in milliseconds. The counter is 32 bits wide and wraps
// after roughly 49.7 days, so intervals must be computed with Since.
type Clock interface {
	Millis() uint32
}

// MonotonicClock counts milliseconds from its creation using the runtime monotonic clock.
type MonotonicClock struct {
	boot time.Time
}

// NewClock starts a clock at zero.
func NewClock() *MonotonicClock {
	return &MonotonicClock{boot: time.Now()}
}

// Millis returns the uptime truncated to 32 bits.
func (c *MonotonicClock) Millis() uint32 {
	return uint32(time.Since(c.boot).Milliseconds())
}

// Since returns the elapsed milliseconds from then to now in modular arithmetic.
func Since(now, then uint32) uint32 {
	return now - then
}

// Elapsed reports whether at least interval milliseconds separate then from now.
func Elapsed(now, then, interval uint32) bool {
	return Since(now, then) >= interval
}
