// Package describe implements the per-image vision describe queue
// (spec.md §4.2): a FIFO with priority bump, single in-flight, timeout,
// and completion events.
package describe

import (
	"sync"
	"time"

	"github.com/brood-studio/canvasrt/internal/clock"
)

// DefaultTimeout is spec.md §4.2's "≈30s default".
const DefaultTimeout = 30 * time.Second

// Dispatch is invoked to actually issue the engine's /describe command
// for a path, once it becomes the head of the queue and no request is
// in flight.
type Dispatch func(path string)

// Queue is the per-image vision describe FIFO (spec.md §4.2).
type Queue struct {
	mu      sync.Mutex
	pending []string // FIFO of paths awaiting dispatch
	inFlight string
	inFlightAt int64
	cleared bool // true once API keys were found absent (spec.md §4.2)

	Clock   clock.Clock
	Timeout time.Duration
	Dispatch Dispatch

	// SchedulerBusy gates dispatch: "does not contend with Action
	// Scheduler; will not dispatch while the scheduler has queued or
	// active work" (spec.md §4.2).
	SchedulerBusy func() bool
}

func New(c clock.Clock, dispatch Dispatch) *Queue {
	return &Queue{Clock: c, Timeout: DefaultTimeout, Dispatch: dispatch}
}

// Enqueue adds path to the tail of the queue unless it is already
// pending or in flight, or the queue has been cleared due to missing
// API keys (spec.md §4.2).
func (q *Queue) Enqueue(path string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cleared {
		return
	}
	if q.inFlight == path {
		return
	}
	for _, p := range q.pending {
		if p == path {
			return
		}
	}
	q.pending = append(q.pending, path)
}

// Bump moves path to the head of the queue, if queued (spec.md §4.2
// "Priority bump moves a path to the head").
func (q *Queue) Bump(path string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, p := range q.pending {
		if p == path {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			q.pending = append([]string{path}, q.pending...)
			return
		}
	}
}

// Pump dispatches the head of the queue if nothing is in flight, the
// scheduler isn't busy, and the queue hasn't been cleared. Returns true
// if a dispatch was started.
func (q *Queue) Pump() bool {
	q.mu.Lock()
	if q.cleared || q.inFlight != "" || len(q.pending) == 0 {
		q.mu.Unlock()
		return false
	}
	if q.SchedulerBusy != nil && q.SchedulerBusy() {
		q.mu.Unlock()
		return false
	}
	path := q.pending[0]
	q.pending = q.pending[1:]
	q.inFlight = path
	q.inFlightAt = q.Clock.NowMillis()
	q.mu.Unlock()

	if q.Dispatch != nil {
		q.Dispatch(path)
	}
	return true
}

// Complete resolves the in-flight request for path, either from a
// structured event or a parsed stdout line (spec.md §4.2). Mismatched
// paths (stale frame) are dropped silently, per spec.md §5.
func (q *Queue) Complete(path string) {
	q.mu.Lock()
	if q.inFlight == path {
		q.inFlight = ""
		q.inFlightAt = 0
	}
	q.mu.Unlock()
}

// CheckTimeout abandons the in-flight request if it has exceeded
// Timeout, returning the abandoned path so the caller can revert the
// "scanning" indicator (spec.md §5 "Describe: 30 s per request; on
// timeout, clear the in-flight slot and continue the queue").
func (q *Queue) CheckTimeout() (path string, timedOut bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.inFlight == "" {
		return "", false
	}
	if q.Clock.NowMillis()-q.inFlightAt < q.Timeout.Milliseconds() {
		return "", false
	}
	path = q.inFlight
	q.inFlight = ""
	q.inFlightAt = 0
	return path, true
}

// Disconnect clears the in-flight slot but keeps the queue intact, so
// it drains once the engine is respawned (spec.md §4.2 "On engine
// disconnect the queue remains intact").
func (q *Queue) Disconnect() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.inFlight != "" {
		q.pending = append([]string{q.inFlight}, q.pending...)
		q.inFlight = ""
		q.inFlightAt = 0
	}
}

// ClearForMissingKeys drops every queued and in-flight entry and
// prevents further enqueues, per spec.md §4.2: "If required API keys
// are absent, the queue is cleared and further enqueues are dropped."
func (q *Queue) ClearForMissingKeys() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = nil
	q.inFlight = ""
	q.inFlightAt = 0
	q.cleared = true
}

// Reenable allows enqueues again, once required API keys become
// available.
func (q *Queue) Reenable() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cleared = false
}

// Len returns the number of queued (not in-flight) paths.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// InFlight returns the path currently dispatched, if any.
func (q *Queue) InFlight() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inFlight, q.inFlight != ""
}
