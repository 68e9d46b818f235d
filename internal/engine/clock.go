package engine

import "time"

// Clock supplies "now" for dwell timing, mode timeouts, cooldowns and cache
// age. Sample timestamps are only used for speed inference.
//
// Tests inject testutil.FakeClock to drive time deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
