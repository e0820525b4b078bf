// Package timeutil provides the clock used to stamp recorded runs and to
// time each stage of a gridfill invocation.
package timeutil

import (
	"sync"
	"time"
)

// Clock provides an abstraction over time operations for testability.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Since returns the duration since t.
	Since(t time.Time) time.Duration
}

// RealClock implements Clock using the standard time package.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// Since returns the time elapsed since t.
func (RealClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

// MockClock is a manually driven Clock for tests.
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockClock creates a MockClock frozen at t.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

// Now returns the mock's current time.
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Since returns the mock duration since t.
func (c *MockClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// Stopwatch records named stage durations against a Clock.
type Stopwatch struct {
	clock  Clock
	start  time.Time
	last   time.Time
	stages []Stage
}

// Stage is one timed step of a run.
type Stage struct {
	Name     string
	Duration time.Duration
}

// NewStopwatch starts a stopwatch on clock. A nil clock uses RealClock.
func NewStopwatch(clock Clock) *Stopwatch {
	if clock == nil {
		clock = RealClock{}
	}
	now := clock.Now()
	return &Stopwatch{clock: clock, start: now, last: now}
}

// Lap closes the current stage under name and returns its duration.
func (s *Stopwatch) Lap(name string) time.Duration {
	now := s.clock.Now()
	d := now.Sub(s.last)
	s.last = now
	s.stages = append(s.stages, Stage{Name: name, Duration: d})
	return d
}

// Stages returns the laps recorded so far.
func (s *Stopwatch) Stages() []Stage {
	out := make([]Stage, len(s.stages))
	copy(out, s.stages)
	return out
}

// Total returns the time since the stopwatch started.
func (s *Stopwatch) Total() time.Duration {
	return s.clock.Since(s.start)
}
