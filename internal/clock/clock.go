// Package clock supplies monotonic timestamps to the rest of the runtime.
//
// Every subsystem that needs "now" (debounce timers, throttle windows,
// signature staleness) goes through a Clock so that scenario tests can
// supply a fake one instead of sleeping real wall-clock time.
package clock

import "time"

// Clock is the seam the runtime uses instead of calling time.Now directly,
// per spec.md §9 ("Mutable global state" / explicit interface handles).
type Clock interface {
	// NowMillis returns a monotonically non-decreasing millisecond timestamp.
	NowMillis() int64
	// After returns a channel that fires once d has elapsed.
	After(d time.Duration) <-chan time.Time
}

// System is the production Clock backed by the real wall clock.
type System struct{}

func (System) NowMillis() int64 {
	return time.Now().UnixMilli()
}

func (System) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

var _ Clock = System{}
