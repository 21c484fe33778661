package intent

import (
	"time"

	"github.com/brood-studio/canvasrt/internal/clock"
)

const (
	DebounceDelay  = 260 * time.Millisecond
	ThrottleWindow = 900 * time.Millisecond
	RoundTimeout   = 15 * time.Second
	StatePersistDebounce = 320 * time.Millisecond
)

// Phase is the round lifecycle: idle (no round in flight), awaiting (a
// round has been sent and its icons are pending), locked (a branch has
// been accepted and no further rounds start).
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaiting
	PhaseLocked
)

// Round tracks one in-flight inference request.
type Round struct {
	StartedAt int64
	Signature string
}

// State is the IntentState entity (spec.md §3).
type State struct {
	Enabled       bool
	Phase         Phase
	Round         *Round
	LastSignature string
	Icons         []Icon
	Excluded      map[string]bool
	LockedBranch  string

	lastInteraction int64
	lastRoundAt     int64
	lastPersistAt   int64
}

// NewState returns a State ready for use.
func NewState() State {
	return State{Excluded: map[string]bool{}}
}

// Engine drives the round-structured loop.
type Engine struct {
	Clock clock.Clock
	State State

	Signature func() string
	StartRT   func() error
	SendRound func() error
	StopRT    func() error

	// PersistState is invoked (debounced) whenever resumable session
	// state changes, writing intent_state.json (spec.md §6).
	PersistState func(State)
	// Trace appends one line to the bounded intent_trace.jsonl.
	Trace func(event string, fields map[string]any)
}

// NoteInteraction records the debounce anchor.
func (e *Engine) NoteInteraction() {
	e.State.lastInteraction = e.Clock.NowMillis()
}

// TryStartRound attempts to open a new inference round (spec.md §4.6
// steps 1-3): debounce since last interaction, throttle since last
// round, and a changed Intent Signature, with at most one round
// in flight.
func (e *Engine) TryStartRound() bool {
	if !e.State.Enabled || e.State.Phase == PhaseLocked || e.State.Round != nil {
		return false
	}
	now := e.Clock.NowMillis()
	if now-e.State.lastInteraction < DebounceDelay.Milliseconds() {
		return false
	}
	if e.State.lastRoundAt > 0 && now-e.State.lastRoundAt < ThrottleWindow.Milliseconds() {
		return false
	}
	sig := ""
	if e.Signature != nil {
		sig = e.Signature()
	}
	if sig == e.State.LastSignature {
		return false
	}
	if e.SendRound == nil {
		return false
	}
	if e.StartRT != nil {
		if err := e.StartRT(); err != nil {
			return false
		}
	}
	if err := e.SendRound(); err != nil {
		return false
	}
	e.State.Phase = PhaseAwaiting
	e.State.Round = &Round{StartedAt: now, Signature: sig}
	e.State.lastRoundAt = now
	e.trace("round_started", map[string]any{"signature": sig})
	return true
}

// OnIntentIcons handles the intent_icons event (spec.md §4.4).
func (e *Engine) OnIntentIcons(text string, partial bool) {
	if e.State.Round == nil || partial {
		return
	}
	state, err := ParseIconState(text)
	if err != nil {
		e.trace("round_parse_failed", map[string]any{"error": err.Error()})
		e.State.Round = nil
		e.State.Phase = PhaseIdle
		return
	}
	e.State.LastSignature = e.State.Round.Signature
	e.State.Icons = filterExcluded(state.Icons, e.State.Excluded)
	e.State.Round = nil
	e.State.Phase = PhaseIdle
	e.trace("round_complete", map[string]any{"truncated": state.Truncated, "icons": len(e.State.Icons)})
	e.persist()
}

// OnIntentIconsFailed handles intent_icons_failed (spec.md §4.4): the
// round is abandoned without disabling the engine, since only ambient's
// fatal path is hard-disabling (spec.md §7).
func (e *Engine) OnIntentIconsFailed(errMsg string) {
	e.State.Round = nil
	e.State.Phase = PhaseIdle
	e.trace("round_failed", map[string]any{"error": errMsg})
}

// CheckTimeout abandons a round that has exceeded RoundTimeout.
func (e *Engine) CheckTimeout() bool {
	if e.State.Round == nil {
		return false
	}
	if e.Clock.NowMillis()-e.State.Round.StartedAt < RoundTimeout.Milliseconds() {
		return false
	}
	e.State.Round = nil
	e.State.Phase = PhaseIdle
	e.trace("round_timeout", nil)
	return true
}

// ApplyUserToken resolves the current top-ranked suggestion against a
// parsed user token (spec.md §4.6).
func (e *Engine) ApplyUserToken(tok Token) {
	top, ok := TopBranch(e.State.Icons)
	if !ok {
		return
	}
	locked, deferred := ApplyToken(tok, top, e.State.Excluded)
	if locked != "" {
		e.State.LockedBranch = locked
		e.State.Phase = PhaseLocked
		e.trace("branch_locked", map[string]any{"branch": locked})
	}
	if !deferred && locked == "" {
		// rejected: signature must change again before another round fires.
		e.State.LastSignature = ""
	}
	e.persist()
}

func (e *Engine) persist() {
	if e.PersistState == nil {
		return
	}
	now := e.Clock.NowMillis()
	if now-e.State.lastPersistAt < StatePersistDebounce.Milliseconds() {
		return
	}
	e.State.lastPersistAt = now
	e.PersistState(e.State)
}

func (e *Engine) trace(event string, fields map[string]any) {
	if e.Trace != nil {
		e.Trace(event, fields)
	}
}

func filterExcluded(icons []Icon, excluded map[string]bool) []Icon {
	out := icons[:0:0]
	for _, ic := range icons {
		if excluded[ic.Key] {
			continue
		}
		out = append(out, ic)
	}
	return out
}
