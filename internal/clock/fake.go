package clock

import (
	"sync"
	"time"
)

// Fake is a Clock for tests: NowMillis is advanced explicitly and After
// fires immediately against a buffered channel, since the runtime's
// scenario tests (spec.md §8) drive timers directly rather than sleeping.
type Fake struct {
	mu  sync.Mutex
	now int64
}

func NewFake(startMillis int64) *Fake {
	return &Fake{now: startMillis}
}

func (f *Fake) NowMillis() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now += d.Milliseconds()
}

func (f *Fake) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	f.Advance(d)
	ch <- time.Now()
	return ch
}

var _ Clock = (*Fake)(nil)
