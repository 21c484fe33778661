// Package ambient implements the Ambient Vision subsystem (spec.md §4.5):
// a debounce/throttle/idle/signature-gated snapshot dispatcher with
// fatal-error auto-disable.
package ambient

import (
	"time"

	"github.com/brood-studio/canvasrt/internal/clock"
)

// RTState is the ambient realtime connection's lifecycle
// (spec.md §4.5: "off → connecting → ready"; fatal error -> "failed").
type RTState int

const (
	RTOff RTState = iota
	RTConnecting
	RTReady
	RTFailed
)

const (
	DebounceDelay  = 900 * time.Millisecond
	ThrottleWindow = 12 * time.Second
	RequestTimeout = 45 * time.Second
	AutoAcceptCap  = 3
)

// Pending tracks an in-flight ambient dispatch.
type Pending struct {
	At   int64
	Path string
}

// State is the AmbientState entity (spec.md §3).
type State struct {
	Enabled        bool
	RTState        RTState
	Pending        *Pending
	LastSignature  string
	LastText       string
	LastMeta       string
	DisabledReason string

	lastRunAt      int64
	lastInteraction int64
	autoAccepts    int
}

// AllowPredicateInputs carries the facts spec.md §4.5's allow predicate
// checks: "ambient is enabled; at least one image is present; a run
// exists; required vision keys are available; intent mode is not active."
type AllowPredicateInputs struct {
	HasImages      bool
	RunExists      bool
	HasVisionKeys  bool
	IntentActive   bool
}

// Allowed evaluates spec.md §4.5's allow predicate.
func (s *State) Allowed(in AllowPredicateInputs) bool {
	return s.Enabled && in.HasImages && in.RunExists && in.HasVisionKeys && !in.IntentActive
}

// Machine drives the ambient dispatch cycle (spec.md §4.5 steps 1-4).
type Machine struct {
	Clock clock.Clock
	State State

	// Signature computes the current Canvas Signature (glossary). It is
	// re-evaluated at attempt time.
	Signature func() string

	// Snapshot produces a grid snapshot + envelope and returns the
	// snapshot path to dispatch against, or an error.
	Snapshot func() (path string, err error)

	// StartRealtime/Dispatch/StopRealtime drive the engine commands
	// /canvas_context_rt_start, /canvas_context_rt <path>,
	// /canvas_context_rt_stop (spec.md §6).
	StartRealtime func() error
	Dispatch      func(snapshotPath string) error
	StopRealtime  func() error

	// OnSuggestion is invoked with a parsed ability suggestion, for the
	// scheduler's auto-accept flow (spec.md §4.5 step 4).
	OnSuggestion func(ability string)
}

// NoteInteraction records user interaction for the idle-time debounce
// check (spec.md §4.5 step 2: "idle time since last user interaction").
func (m *Machine) NoteInteraction() {
	m.State.lastInteraction = m.Clock.NowMillis()
}

// TryDispatch attempts one ambient pass, implementing spec.md §4.5
// steps 1-4. It returns true if a dispatch was actually issued
// (occupying the engine), matching the AmbientDispatcher interface the
// Action Scheduler consults before every dequeue (spec.md §4.3).
func (m *Machine) TryDispatch(allow AllowPredicateInputs, foregroundActionRunning bool) bool {
	if !m.State.Allowed(allow) {
		return false
	}
	now := m.Clock.NowMillis()

	if now-m.State.lastInteraction < DebounceDelay.Milliseconds() {
		return false
	}
	if foregroundActionRunning {
		return false
	}
	if m.State.lastRunAt > 0 && now-m.State.lastRunAt < ThrottleWindow.Milliseconds() {
		return false
	}

	sig := ""
	if m.Signature != nil {
		sig = m.Signature()
	}
	if sig == m.State.LastSignature && m.State.LastText != "" {
		return false
	}

	if m.Snapshot == nil || m.Dispatch == nil {
		return false
	}
	path, err := m.Snapshot()
	if err != nil {
		return false
	}

	if m.State.RTState == RTOff {
		m.State.RTState = RTConnecting
		if m.StartRealtime != nil {
			if err := m.StartRealtime(); err != nil {
				m.State.RTState = RTOff
				return false
			}
		}
		m.State.RTState = RTReady
	}

	if err := m.Dispatch(path); err != nil {
		return false
	}

	m.State.lastRunAt = now
	m.State.LastSignature = sig
	m.State.Pending = &Pending{At: now, Path: path}
	return true
}

// OnCanvasContext handles the canvas_context event (spec.md §4.4):
// clears pending when not partial, and parses the allowlisted suggested
// ability out of "NEXT ACTIONS:".
func (m *Machine) OnCanvasContext(text string, partial bool, snapshotPath string) {
	if m.State.Pending != nil && m.State.Pending.Path != snapshotPath {
		return // stale frame, spec.md §5 "Path-mismatch"
	}
	if partial {
		return
	}
	m.State.Pending = nil
	m.State.LastText = text

	ability, ok := ParseSuggestedAbility(text, m.State.Enabled)
	if ok && m.OnSuggestion != nil {
		m.OnSuggestion(ability)
	}
}

// OnCanvasContextFailed handles canvas_context_failed (spec.md §4.4,
// §7 "Hard realtime disable").
func (m *Machine) OnCanvasContextFailed(errMsg string, fatal bool, source string) {
	m.State.Pending = nil
	if fatal && source == "realtime" {
		m.State.Enabled = false
		m.State.RTState = RTFailed
		m.State.DisabledReason = errMsg
	}
}

// CheckTimeout clears a pending dispatch older than RequestTimeout
// (spec.md §5 "Ambient: 45 s per request; on timeout, clear pending and
// pump the scheduler").
func (m *Machine) CheckTimeout() (timedOut bool) {
	if m.State.Pending == nil {
		return false
	}
	if m.Clock.NowMillis()-m.State.Pending.At < RequestTimeout.Milliseconds() {
		return false
	}
	m.State.Pending = nil
	return true
}

// MaybeAutoAccept invokes ability if auto-accept is enabled, ability is
// both allowed and enabled for the current canvas state, and the
// per-session cap of 3 hasn't been reached (spec.md §4.5 step 4).
func (m *Machine) MaybeAutoAccept(autoAcceptEnabled bool, ability string, abilityEnabled bool, invoke func(string)) bool {
	if !autoAcceptEnabled || ability == "" || !abilityEnabled {
		return false
	}
	if m.State.autoAccepts >= AutoAcceptCap {
		return false
	}
	m.State.autoAccepts++
	invoke(ability)
	return true
}
