// Package testutil provides deterministic test doubles shared by the
// ledger, finance, and harness tests.
package testutil

import (
	"sync"
	"time"
)

// Clock is a thread-safe deterministic clock for tests.
//
// Each call to Now advances time by the configured step, so every
// synthesized movement and audit entry gets a distinct, predictable
// millisecond timestamp and ledger ordering in tests never depends on
// wall time.
type Clock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewClock creates a clock starting at a fixed reference instant
// (2024-01-15 12:00:00 UTC) advancing one second per Now call.
func NewClock() *Clock {
	return &Clock{
		now:  time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
		step: time.Second,
	}
}

// NewClockAt creates a clock starting at the given instant.
func NewClockAt(start time.Time, step time.Duration) *Clock {
	return &Clock{now: start, step: step}
}

// Now returns the current instant and advances the clock by one step.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Peek returns the instant the next Now call will return, without
// advancing.
func (c *Clock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set repositions the clock. Used to backdate movements in scenarios.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
