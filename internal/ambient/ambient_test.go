package ambient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brood-studio/canvasrt/internal/clock"
)

func allowAll() AllowPredicateInputs {
	return AllowPredicateInputs{HasImages: true, RunExists: true, HasVisionKeys: true}
}

func newMachine(fc *clock.Fake) *Machine {
	return &Machine{
		Clock:         fc,
		State:         State{Enabled: true},
		Signature:     func() string { return "sig-1" },
		Snapshot:      func() (string, error) { return "/run/snap.jpg", nil },
		StartRealtime: func() error { return nil },
		Dispatch:      func(string) error { return nil },
	}
}

func TestTryDispatchRespectsDebounceAfterInteraction(t *testing.T) {
	fc := clock.NewFake(0)
	m := newMachine(fc)
	m.NoteInteraction()

	assert.False(t, m.TryDispatch(allowAll(), false), "still within debounce window")

	fc.Advance(DebounceDelay + time.Millisecond)
	assert.True(t, m.TryDispatch(allowAll(), false))
}

func TestTryDispatchThrottlesRepeatRuns(t *testing.T) {
	fc := clock.NewFake(0)
	m := newMachine(fc)
	fc.Advance(DebounceDelay + time.Millisecond)

	require.True(t, m.TryDispatch(allowAll(), false))
	m.State.LastText = "" // force signature miss not the reason for the next check

	fc.Advance(time.Second)
	assert.False(t, m.TryDispatch(allowAll(), false), "throttle window not yet elapsed")

	fc.Advance(ThrottleWindow)
	assert.True(t, m.TryDispatch(allowAll(), false))
}

func TestTryDispatchSkipsWhenSignatureUnchanged(t *testing.T) {
	fc := clock.NewFake(0)
	m := newMachine(fc)
	fc.Advance(DebounceDelay + time.Millisecond)
	require.True(t, m.TryDispatch(allowAll(), false))

	m.OnCanvasContext("hello", false, "/run/snap.jpg")
	fc.Advance(ThrottleWindow + time.Millisecond)

	assert.False(t, m.TryDispatch(allowAll(), false), "same signature as last completed dispatch")
}

func TestTryDispatchBlockedByForegroundAction(t *testing.T) {
	fc := clock.NewFake(0)
	m := newMachine(fc)
	fc.Advance(DebounceDelay + time.Millisecond)

	assert.False(t, m.TryDispatch(allowAll(), true))
}

func TestOnCanvasContextFailedFatalDisablesAmbient(t *testing.T) {
	fc := clock.NewFake(0)
	m := newMachine(fc)
	m.OnCanvasContextFailed("pty closed", true, "realtime")

	assert.False(t, m.State.Enabled)
	assert.Equal(t, RTFailed, m.State.RTState)
	assert.False(t, m.State.Allowed(allowAll()))
}

func TestCheckTimeoutClearsStalePending(t *testing.T) {
	fc := clock.NewFake(0)
	m := newMachine(fc)
	fc.Advance(DebounceDelay + time.Millisecond)
	require.True(t, m.TryDispatch(allowAll(), false))
	require.NotNil(t, m.State.Pending)

	assert.False(t, m.CheckTimeout())
	fc.Advance(RequestTimeout + time.Millisecond)
	assert.True(t, m.CheckTimeout())
	assert.Nil(t, m.State.Pending)
}

func TestParseSuggestedAbilityCanonicalizesAllowlistedName(t *testing.T) {
	ability, ok := ParseSuggestedAbility("some notes.\nNEXT ACTIONS: Odd One Out", true)
	assert.True(t, ok)
	assert.Equal(t, "odd_one_out", ability)
}

func TestParseSuggestedAbilityRejectsUnknownName(t *testing.T) {
	_, ok := ParseSuggestedAbility("NEXT ACTIONS: levitate the canvas", true)
	assert.False(t, ok)
}

func TestParseSuggestedAbilityDisabledWhenAmbientOff(t *testing.T) {
	_, ok := ParseSuggestedAbility("NEXT ACTIONS: blend", false)
	assert.False(t, ok)
}

func TestMaybeAutoAcceptRespectsSessionCap(t *testing.T) {
	m := &Machine{State: State{}}
	var invoked []string
	invoke := func(a string) { invoked = append(invoked, a) }

	for i := 0; i < AutoAcceptCap+2; i++ {
		m.MaybeAutoAccept(true, "blend", true, invoke)
	}
	assert.Len(t, invoked, AutoAcceptCap)
}
