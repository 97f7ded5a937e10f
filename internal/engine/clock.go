package engine

import (
	"sync"
	"time"
)

// Clock supplies the two stamps every admitted operation carries: a
// strictly increasing logical sequence number and a monotonic
// non-decreasing wall timestamp in unix nanoseconds.
//
// The timestamp is clamped: if the wall clock steps backward (NTP
// adjustment, VM migration), the clock reuses the last value rather than
// regress. Message entries therefore always satisfy the non-decreasing
// timestamp invariant regardless of the host's wall clock behavior.
//
// Thread-safety: safe for concurrent use, though the engine's
// single-writer design means only the Run loop normally calls Tick().
type Clock struct {
	mu   sync.Mutex
	seq  int64
	last int64
	now  func() time.Time
}

// NewClock creates a clock backed by the system wall clock.
func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// NewClockWithSource creates a clock with a custom time source.
// Used by tests and the harness for deterministic timestamps.
func NewClockWithSource(now func() time.Time) *Clock {
	return &Clock{now: now}
}

// Tick returns the next sequence number and a clamped timestamp.
// Each call returns a unique, increasing seq; nanos never decreases
// across calls.
func (c *Clock) Tick() (seq int64, nanos int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	nanos = c.now().UnixNano()
	if nanos < c.last {
		nanos = c.last
	}
	c.last = nanos
	return c.seq, nanos
}

// Seq returns the current sequence number without advancing the clock.
func (c *Clock) Seq() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}
