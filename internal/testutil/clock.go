package testutil

import (
	"sync"
	"time"
)

// Epoch is the default start time of a FakeClock: 2026-03-14 09:00 UTC.
var Epoch = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// FakeClock is a manually driven clock for tests.
//
// Unlike engine.SystemClock, time only moves when Set or Advance is called,
// so dwell timers, mode windows and cooldowns can be stepped exactly.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock creates a clock stopped at start. A zero start uses Epoch.
func NewFakeClock(start time.Time) *FakeClock {
	if start.IsZero() {
		start = Epoch
	}
	return &FakeClock{now: start}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set jumps to t. Moving backwards is allowed; tests use it to model
// out-of-order delivery.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d and returns the new time.
func (c *FakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}
