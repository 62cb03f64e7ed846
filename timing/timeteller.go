// Package timing provides the clock abstraction that the profiling engine
// reads timestamps from.
package timing

// Ticks is a raw reading of a monotonic clock. The duration of one tick is
// defined by the clock that produced the reading.
type Ticks int64

// TimeTeller can tell the current time in raw ticks.
type TimeTeller interface {
	CurrentTick() Ticks
}

// Clock is a TimeTeller that also knows the wall-time duration of one tick.
type Clock interface {
	TimeTeller

	// TickUnit returns the number of seconds per tick. It is fixed for the
	// lifetime of the clock and is always positive.
	TickUnit() float64
}
