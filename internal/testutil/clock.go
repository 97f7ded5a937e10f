// Package testutil provides deterministic helpers for tests and the
// scenario harness.
package testutil

import (
	"sync"
	"time"
)

// SteppingTimeSource is a deterministic time source for engine clocks.
// Each call to Now advances the time by a fixed step, so repeated runs
// of the same operation sequence produce identical timestamps.
//
// Thread-safety: all methods are safe for concurrent use.
type SteppingTimeSource struct {
	mu      sync.Mutex
	start   time.Time
	step    time.Duration
	current time.Time
}

// Epoch is the default start time for deterministic tests.
var Epoch = time.Unix(1700000000, 0).UTC()

// NewSteppingTimeSource creates a source that starts at start and
// advances by step on every Now call.
func NewSteppingTimeSource(start time.Time, step time.Duration) *SteppingTimeSource {
	return &SteppingTimeSource{start: start, step: step, current: start}
}

// NewDefaultTimeSource creates a source starting at Epoch with one
// second steps.
func NewDefaultTimeSource() *SteppingTimeSource {
	return NewSteppingTimeSource(Epoch, time.Second)
}

// Now returns the current time and advances the source by one step.
// Suitable as the now function for engine.NewClockWithSource.
func (s *SteppingTimeSource) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.current
	s.current = s.current.Add(s.step)
	return t
}

// Reset rewinds the source to its start time.
// After Reset, the next Now call returns the same value as the first.
func (s *SteppingTimeSource) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = s.start
}
