package rpc

import "time"

// Clock supplies the tick count request records are aged against. Ticks must never go
// backward; their unit is whatever WaitTicks is configured in.
type Clock interface {
	Now() uint64
}

// MonotonicClock counts milliseconds since it was created
type MonotonicClock struct {
	start time.Time
}

var _ Clock = &MonotonicClock{}

func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{start: time.Now()}
}

func (c *MonotonicClock) Now() uint64 {
	return uint64(time.Since(c.start) / time.Millisecond)
}

// TickClock is a clock that only moves when told to, for simulations and tests
type TickClock struct {
	ticks uint64
}

var _ Clock = &TickClock{}

func (c *TickClock) Now() uint64 {
	return c.ticks
}

// Advance moves the clock forward by ticks
func (c *TickClock) Advance(ticks uint64) {
	c.ticks += ticks
}
