package visual

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModel() *Model {
	return NewModel(CanvasDims{W: 1200, H: 800, Margin: 20})
}

func TestAddImageRejectsDuplicateID(t *testing.T) {
	m := newTestModel()
	item := ImageItem{ID: "a", Path: "/tmp/a.jpg"}
	require.NoError(t, m.AddImage(item, AddImageOpts{}))
	err := m.AddImage(item, AddImageOpts{})
	assert.ErrorIs(t, err, ErrImageExists)
}

func TestAddImagePlacesAutoAspectRect(t *testing.T) {
	m := newTestModel()
	require.NoError(t, m.AddImage(ImageItem{ID: "a", Path: "/tmp/a.jpg"}, AddImageOpts{}))
	r, ok := m.Rect("a")
	require.True(t, ok)
	assert.True(t, r.AutoAspect)
}

func TestRemoveImageClearsAllBoundState(t *testing.T) {
	m := newTestModel()
	require.NoError(t, m.AddImage(ImageItem{ID: "a", Path: "/tmp/a.jpg"}, AddImageOpts{Select: true}))
	m.AddCircle("a", Circle{ID: "c1"})
	m.AddDesignation("a", Designation{ID: "d1"})

	m.RemoveImage("a")

	_, ok := m.Item("a")
	assert.False(t, ok)
	_, ok = m.Rect("a")
	assert.False(t, ok)
	assert.Empty(t, m.Designations("a"))
	assert.Empty(t, m.ZOrder())
	assert.Equal(t, "", m.ActiveID())
}

func TestRemoveActiveImagePromotesLastRemaining(t *testing.T) {
	m := newTestModel()
	require.NoError(t, m.AddImage(ImageItem{ID: "a", Path: "/tmp/a.jpg"}, AddImageOpts{}))
	require.NoError(t, m.AddImage(ImageItem{ID: "b", Path: "/tmp/b.jpg"}, AddImageOpts{Select: true}))

	m.RemoveImage("b")

	assert.Equal(t, "a", m.ActiveID())
}

func TestReplaceImageInPlacePreservesIdentity(t *testing.T) {
	m := newTestModel()
	require.NoError(t, m.AddImage(ImageItem{ID: "a", Path: "/tmp/a.jpg", TimelineNodeID: "n1"}, AddImageOpts{}))

	err := m.ReplaceImageInPlace("a", ReplaceImageInPlaceOpts{Path: "/tmp/a2.jpg"})
	require.NoError(t, err)

	it, ok := m.Item("a")
	require.True(t, ok)
	assert.Equal(t, "/tmp/a2.jpg", it.Path)
	assert.Equal(t, "n1", it.TimelineNodeID)
	assert.False(t, it.HasDecoded)
}

func TestBringToTopIsIdempotentAndOrdered(t *testing.T) {
	m := newTestModel()
	require.NoError(t, m.AddImage(ImageItem{ID: "a"}, AddImageOpts{}))
	require.NoError(t, m.AddImage(ImageItem{ID: "b"}, AddImageOpts{}))
	require.NoError(t, m.AddImage(ImageItem{ID: "c"}, AddImageOpts{}))

	m.BringToTop("a")
	assert.Equal(t, []string{"b", "c", "a"}, m.ZOrder())

	m.BringToTop("a")
	assert.Equal(t, []string{"b", "c", "a"}, m.ZOrder())
}

func TestRectStaysWithinMargins(t *testing.T) {
	m := newTestModel()
	require.NoError(t, m.AddImage(ImageItem{ID: "a"}, AddImageOpts{}))
	m.SetRect("a", FreeformRect{X: -500, Y: -500, W: 200, H: 200})

	r, ok := m.Rect("a")
	require.True(t, ok)
	assert.GreaterOrEqual(t, r.X, m.dims.Margin)
	assert.GreaterOrEqual(t, r.Y, m.dims.Margin)
}

func TestApplyDecodedAspectClearsAutoAspectAndKeepsCenter(t *testing.T) {
	m := newTestModel()
	require.NoError(t, m.AddImage(ImageItem{ID: "a"}, AddImageOpts{}))
	before, _ := m.Rect("a")
	cx, cy := before.CenterX(), before.CenterY()

	m.ApplyDecodedAspect("a", 1600, 900)

	after, ok := m.Rect("a")
	require.True(t, ok)
	assert.False(t, after.AutoAspect)
	assert.InDelta(t, cx, after.CenterX(), 1.0)
	assert.InDelta(t, cy, after.CenterY(), 1.0)
}

func TestSerializeVisualPromptRoundTripsIDsAndRects(t *testing.T) {
	m := newTestModel()
	require.NoError(t, m.AddImage(ImageItem{ID: "a", Path: "/tmp/a.jpg", Label: "A"}, AddImageOpts{Select: true}))
	m.AddDesignation("a", Designation{ID: "d1", Kind: DesignationSubject, X: 1, Y: 2, Timestamp: 42})

	vp := m.SerializeVisualPrompt()
	require.Len(t, vp.Images, 1)
	assert.Equal(t, "a", vp.Images[0].ID)
	assert.Equal(t, "/tmp/a.jpg", vp.Images[0].Path)
	require.Len(t, vp.Images[0].Designations, 1)
	assert.Equal(t, "d1", vp.Images[0].Designations[0].ID)
	assert.Equal(t, "multi", vp.Mode) // SetActiveImage does not change canvas mode
}
