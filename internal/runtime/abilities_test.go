package runtime

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brood-studio/canvasrt/internal/timeline"
	"github.com/brood-studio/canvasrt/internal/visual"
)

func writeTestPNG(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.White)
		}
	}
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return p
}

func TestCombineRejectsUnknownImageID(t *testing.T) {
	rt := newTestRuntime(t)
	err := rt.Combine("missing-a", "missing-b")
	assert.ErrorIs(t, err, visual.ErrNoSuchImage)
	assert.Equal(t, 0, rt.Scheduler.Len())
}

func TestCombineEnqueuesActionAgainstEngineBusyGate(t *testing.T) {
	rt := newTestRuntime(t)
	dir := t.TempDir()
	pathA := writeTestPNG(t, dir, "a.png")
	pathB := writeTestPNG(t, dir, "b.png")
	require.NoError(t, rt.Model.AddImage(visual.ImageItem{ID: "a", Path: pathA}, visual.AddImageOpts{}))
	require.NoError(t, rt.Model.AddImage(visual.ImageItem{ID: "b", Path: pathB}, visual.AddImageOpts{}))

	require.NoError(t, rt.Combine("a", "b"))
	assert.Equal(t, 1, rt.Scheduler.Len())

	// The engine was never spawned, so the thunk's write fails; the
	// dispatch helper must complete the action rather than leaving the
	// scheduler's active slot wedged on a write that never happened.
	assert.True(t, rt.Scheduler.Pump())
	_, active := rt.Scheduler.Active()
	assert.False(t, active)
	assert.Equal(t, 0, rt.Projector.Slots.Len(), "a failed write must not register a pending op")
}

func TestCropSquareCropsInPlaceWithoutEngineRoundTrip(t *testing.T) {
	rt := newTestRuntime(t)
	dir := t.TempDir()
	path := writeTestPNG(t, dir, "a.png")
	require.NoError(t, rt.Model.AddImage(visual.ImageItem{ID: "a", Path: path}, visual.AddImageOpts{}))
	_, err := rt.Timeline.RecordNode(timeline.RecordNodeInput{ImageID: "a", Path: path})
	require.NoError(t, err)

	require.NoError(t, rt.CropSquare("a"))
	assert.Equal(t, 1, rt.Scheduler.Len())
	assert.True(t, rt.Scheduler.Pump())

	_, active := rt.Scheduler.Active()
	assert.False(t, active, "a local action must complete its own scheduler slot")
	assert.Equal(t, 0, rt.Projector.Slots.Len(), "crop square registers no pending op")

	item, ok := rt.Model.Item("a")
	require.True(t, ok)
	assert.NotEqual(t, path, item.Path, "crop square must replace the image in place with a new file")
}
