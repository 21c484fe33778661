package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brood-studio/canvasrt/internal/config"
	"github.com/brood-studio/canvasrt/internal/events"
	"github.com/brood-studio/canvasrt/internal/intent"
	"github.com/brood-studio/canvasrt/internal/projector"
	"github.com/brood-studio/canvasrt/internal/visual"
)

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	settings := config.Default()
	settings.RunDir = t.TempDir()
	rt := New(settings, config.DefaultFeatureFlags(), config.KeyStatus{OpenAI: true}, nil)
	return rt
}

func TestNewWiresSchedulerEngineBusyToProjectorSlots(t *testing.T) {
	rt := newTestRuntime(t)
	assert.False(t, rt.Scheduler.EngineBusy())

	rt.Projector.Slots.Put("a1", projector.PendingOp{})
	assert.True(t, rt.Scheduler.EngineBusy())
}

func TestModelActivationBumpsDescribeQueue(t *testing.T) {
	rt := newTestRuntime(t)
	rt.Engine.Command = "true"

	require.NoError(t, rt.Model.AddImage(visual.ImageItem{ID: "x", Path: "/tmp/a.png"}, visual.AddImageOpts{}))
	require.NoError(t, rt.Model.AddImage(visual.ImageItem{ID: "y", Path: "/tmp/b.png"}, visual.AddImageOpts{}))

	rt.Describe.Enqueue("/tmp/a.png")
	rt.Describe.Enqueue("/tmp/b.png")

	rt.Model.SetActiveImage("y")
	assert.Equal(t, 2, rt.Describe.Len())
}

func TestHandleAmbientEventRoutesCanvasContext(t *testing.T) {
	rt := newTestRuntime(t)
	rt.Ambient.State.Pending = nil

	rt.handleAmbientEvent(events.Event{
		Type: events.TypeCanvasContext,
		CanvasContext: &events.CanvasContext{
			Text:      "NEXT ACTIONS: blend",
			Partial:   false,
			ImagePath: "",
		},
	})
	assert.Equal(t, "NEXT ACTIONS: blend", rt.Ambient.State.LastText)
}

func TestHandleIntentEventRoutesIconsFailed(t *testing.T) {
	rt := newTestRuntime(t)
	rt.Intent.State.Round = &intent.Round{}

	rt.handleIntentEvent(events.Event{
		Type:              events.TypeIntentIconsFailed,
		IntentIconsFailed: &events.IntentIconsFailed{Error: "boom"},
	})
	assert.Nil(t, rt.Intent.State.Round)
}
