// Package scheduler implements the Action Scheduler: a bounded priority
// queue that serializes user and background work against a single
// engine (spec.md §3 QueuedAction, §4.3).
//
// The priority queue is built on stdlib container/heap: no third-party
// priority-queue library appears anywhere in the retrieval pack, and
// container/heap is the idiomatic Go choice even in library-heavy repos
// (see SPEC_FULL.md DOMAIN STACK).
package scheduler

import (
	"container/heap"
	"sync"
)

// Priority tiers named by spec.md §4.3.
const (
	PriorityBackground = 10
	PriorityUser       = 100
)

// QueuedAction is one unit of work (spec.md §3).
type QueuedAction struct {
	ID         string
	Label      string
	Key        string // "" means no coalescing
	Priority   int
	EnqueuedAt int64
	Source     string
	Thunk      func()
}

// Capacity is the bound on the number of queued (not yet active)
// actions (spec.md §4.3, "≈32").
const Capacity = 32

type pqItem struct {
	action QueuedAction
	seq    int64 // tie-breaker for heap stability, assigned at push time
}

type priorityQueue []*pqItem

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool {
	a, b := pq[i], pq[j]
	if a.action.Priority != b.action.Priority {
		return a.action.Priority > b.action.Priority // higher priority first
	}
	if a.action.EnqueuedAt != b.action.EnqueuedAt {
		return a.action.EnqueuedAt < b.action.EnqueuedAt // earlier first
	}
	return a.seq < b.seq
}
func (pq priorityQueue) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x any)   { *pq = append(*pq, x.(*pqItem)) }
func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return item
}

// AmbientDispatcher is consulted before every dequeue, per spec.md §4.3
// "Ambient priority": the scheduler must attempt one ambient dispatch
// first; if it starts, it occupies the engine and the scheduler yields.
type AmbientDispatcher interface {
	// TryDispatch attempts to start an ambient vision pass. It returns
	// true if it started (occupying the engine).
	TryDispatch() bool
}

// EngineBusy reports whether any pending-op slot is occupied or the
// engine process is spawning (spec.md §4.3 "Engine-busy gate").
type EngineBusy func() bool

// Scheduler is the single-threaded cooperative Action Scheduler.
type Scheduler struct {
	mu sync.Mutex

	pq       priorityQueue
	byKey    map[string]*pqItem
	nextSeq  int64
	active   *QueuedAction

	Ambient    AmbientDispatcher
	EngineBusy EngineBusy

	// OnEvict is called (outside the lock) for every action dropped due
	// to capacity or coalescing, for "Queued: …" toast semantics.
	OnEvict func(a QueuedAction, reason string)
}

func New() *Scheduler {
	s := &Scheduler{byKey: make(map[string]*pqItem)}
	heap.Init(&s.pq)
	return s
}

// Enqueue adds an action to the queue. If a.Key is set and a queued
// entry with the same key exists, it is evicted first (spec.md §3, §4.3
// coalescing). If the queue is at Capacity, the lowest-priority oldest
// entry is evicted to make room (spec.md §4.3).
func (s *Scheduler) Enqueue(a QueuedAction) {
	s.mu.Lock()
	var evicted []QueuedAction

	if a.Key != "" {
		if prev, ok := s.byKey[a.Key]; ok {
			s.removeItem(prev)
			evicted = append(evicted, prev.action)
		}
	}

	if len(s.pq) >= Capacity {
		worst := s.worstItem()
		if worst != nil {
			s.removeItem(worst)
			evicted = append(evicted, worst.action)
		}
	}

	item := &pqItem{action: a, seq: s.nextSeq}
	s.nextSeq++
	heap.Push(&s.pq, item)
	if a.Key != "" {
		s.byKey[a.Key] = item
	}
	s.mu.Unlock()

	if s.OnEvict != nil {
		for _, e := range evicted {
			reason := "capacity"
			if a.Key != "" && e.Key == a.Key {
				reason = "coalesced"
			}
			s.OnEvict(e, reason)
		}
	}
}

// worstItem finds the lowest-priority, oldest queued item. Caller must
// hold s.mu.
func (s *Scheduler) worstItem() *pqItem {
	if len(s.pq) == 0 {
		return nil
	}
	worst := s.pq[0]
	for _, it := range s.pq[1:] {
		// worst is replaced by a candidate with lower priority, or with
		// equal priority that was enqueued earlier.
		w, c := worst.action, it.action
		if c.Priority < w.Priority ||
			(c.Priority == w.Priority && (c.EnqueuedAt < w.EnqueuedAt ||
				(c.EnqueuedAt == w.EnqueuedAt && it.seq < worst.seq))) {
			worst = it
		}
	}
	return worst
}

// removeItem removes an arbitrary item from the heap by identity.
// Caller must hold s.mu.
func (s *Scheduler) removeItem(target *pqItem) {
	for i, it := range s.pq {
		if it == target {
			heap.Remove(&s.pq, i)
			if target.action.Key != "" {
				delete(s.byKey, target.action.Key)
			}
			return
		}
	}
}

// Len returns the number of queued (not active) actions.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pq)
}

// Active reports the currently active action, if any.
func (s *Scheduler) Active() (QueuedAction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return QueuedAction{}, false
	}
	return *s.active, true
}

// Pump attempts to advance the scheduler by one step (spec.md §4.3):
//  1. If an action is already active, do nothing.
//  2. If the engine is busy (pending op or spawning), do nothing.
//  3. Attempt one ambient dispatch; if it starts, yield.
//  4. Otherwise dequeue the highest-priority, oldest action and run its
//     thunk, marking it active.
//
// Pump returns true if it started an action (ambient or queued).
func (s *Scheduler) Pump() bool {
	s.mu.Lock()
	if s.active != nil {
		s.mu.Unlock()
		return false
	}
	if s.EngineBusy != nil && s.EngineBusy() {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()

	if s.Ambient != nil && s.Ambient.TryDispatch() {
		return true
	}

	s.mu.Lock()
	if len(s.pq) == 0 {
		s.mu.Unlock()
		return false
	}
	item := heap.Pop(&s.pq).(*pqItem)
	if item.action.Key != "" {
		delete(s.byKey, item.action.Key)
	}
	a := item.action
	s.active = &a
	s.mu.Unlock()

	if a.Thunk != nil {
		a.Thunk()
	}
	return true
}

// CompleteActive clears the active action, letting Pump run again. Call
// this for purely local actions immediately, or from the Event
// Projector once the matching pending-op slot clears (spec.md §4.3,
// §4.4, §5).
func (s *Scheduler) CompleteActive() {
	s.mu.Lock()
	s.active = nil
	s.mu.Unlock()
}

// Drain empties the queue without running anything, used on engine
// disconnect (spec.md §5 "pty-exit ... drops the Action Scheduler").
func (s *Scheduler) Drain() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pq = s.pq[:0]
	s.byKey = make(map[string]*pqItem)
	s.active = nil
}
