package intent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brood-studio/canvasrt/internal/clock"
)

func newEngine(fc *clock.Fake) *Engine {
	return &Engine{
		Clock:     fc,
		State:     NewState(),
		Signature: func() string { return "sig-a" },
		SendRound: func() error { return nil },
	}
}

func TestTryStartRoundRespectsDebounceThenThrottle(t *testing.T) {
	fc := clock.NewFake(0)
	e := newEngine(fc)
	e.State.Enabled = true
	e.NoteInteraction()

	assert.False(t, e.TryStartRound(), "within debounce window")
	fc.Advance(DebounceDelay + time.Millisecond)
	require.True(t, e.TryStartRound())

	e.OnIntentIcons(`{"icons":[]}`, false)
	fc.Advance(time.Millisecond)
	assert.False(t, e.TryStartRound(), "throttle window not yet elapsed")
}

func TestOnIntentIconsParsesAndRanks(t *testing.T) {
	fc := clock.NewFake(0)
	e := newEngine(fc)
	e.State.Enabled = true
	fc.Advance(DebounceDelay + time.Millisecond)
	require.True(t, e.TryStartRound())

	e.OnIntentIcons(`{"icons":[{"key":"blend","label":"Blend","confidence":0.4},{"key":"recast","label":"Recast","confidence":0.9}]}`, false)

	require.Len(t, e.State.Icons, 2)
	top, ok := TopBranch(e.State.Icons)
	require.True(t, ok)
	assert.Equal(t, "recast", top.Key)
}

func TestCheckTimeoutAbandonsRound(t *testing.T) {
	fc := clock.NewFake(0)
	e := newEngine(fc)
	e.State.Enabled = true
	fc.Advance(DebounceDelay + time.Millisecond)
	require.True(t, e.TryStartRound())

	assert.False(t, e.CheckTimeout())
	fc.Advance(RoundTimeout + time.Millisecond)
	assert.True(t, e.CheckTimeout())
	assert.Nil(t, e.State.Round)
}

func TestApplyUserTokenLocksBranch(t *testing.T) {
	fc := clock.NewFake(0)
	e := newEngine(fc)
	e.State.Icons = []Icon{{Key: "recast", Confidence: 0.9}}

	e.ApplyUserToken(TokenYes)

	assert.Equal(t, "recast", e.State.LockedBranch)
	assert.Equal(t, PhaseLocked, e.State.Phase)
}

func TestApplyUserTokenNoExcludesBranch(t *testing.T) {
	fc := clock.NewFake(0)
	e := newEngine(fc)
	e.State.Icons = []Icon{{Key: "recast", Confidence: 0.9}}

	e.ApplyUserToken(TokenNo)

	assert.True(t, e.State.Excluded["recast"])
	assert.Empty(t, e.State.LockedBranch)
}

func TestParseIconStateHandlesFencedBlockAndTrailingComma(t *testing.T) {
	text := "Here you go:\n```json\n{\"icons\": [{\"key\": \"blend\", \"label\": \"Blend\", \"confidence\": 0.5,},]}\n```"
	state, err := ParseIconState(text)
	require.NoError(t, err)
	require.Len(t, state.Icons, 1)
	assert.Equal(t, "blend", state.Icons[0].Key)
}

func TestParseIconStateHandlesNestedResultKey(t *testing.T) {
	text := `{"result": {"icons": [{"key": "argue", "confidence": 0.7}]}}`
	state, err := ParseIconState(text)
	require.NoError(t, err)
	require.Len(t, state.Icons, 1)
	assert.Equal(t, "argue", state.Icons[0].Key)
}

func TestParseIconStateSalvagesTruncatedPayload(t *testing.T) {
	text := `{"icons": [{"key": "blend", "label": "Blend", "confidence": 0.5}]`
	state, err := ParseIconState(text)
	require.NoError(t, err)
	assert.True(t, state.Truncated)
	require.Len(t, state.Icons, 1)
}

func TestParseTokenRecognizesYesNoMaybe(t *testing.T) {
	assert.Equal(t, TokenYes, ParseToken("yes"))
	assert.Equal(t, TokenNo, ParseToken("no"))
	assert.Equal(t, TokenMaybe, ParseToken("maybe"))
	assert.Equal(t, TokenNone, ParseToken("banana"))
}
