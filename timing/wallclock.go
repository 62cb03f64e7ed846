package timing

import "time"

// WallClock is a monotonic wall-time clock with nanosecond ticks.
type WallClock struct {
	origin time.Time
}

// NewWallClock creates a WallClock. Readings count nanoseconds since the
// clock was created, using the runtime's monotonic time source.
func NewWallClock() *WallClock {
	return &WallClock{origin: time.Now()}
}

// CurrentTick returns the number of nanoseconds since the clock was created.
func (c *WallClock) CurrentTick() Ticks {
	return Ticks(time.Since(c.origin))
}

// TickUnit returns the duration of one tick in seconds.
func (c *WallClock) TickUnit() float64 {
	return 1e-9
}
