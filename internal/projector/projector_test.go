package projector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brood-studio/canvasrt/internal/events"
	"github.com/brood-studio/canvasrt/internal/timeline"
	"github.com/brood-studio/canvasrt/internal/visual"
)

func newProjector() (*Projector, *visual.Model, *timeline.Graph) {
	vm := visual.NewModel(visual.CanvasDims{W: 1000, H: 1000, Margin: 10})
	tg := timeline.NewGraph()
	tg.ReplaceImageInPlace = func(imageID, path, receiptPath string) error {
		return vm.ReplaceImageInPlace(imageID, visual.ReplaceImageInPlaceOpts{Path: path, ReceiptPath: receiptPath})
	}
	tg.SetActiveImage = vm.SetActiveImage
	p := &Projector{Model: vm, Timeline: tg, Slots: NewSlots(), Now: func() int64 { return 1 }}
	return p, vm, tg
}

func TestArtifactCreatedWithNoPendingOpInsertsNewImage(t *testing.T) {
	p, vm, _ := newProjector()

	err := p.Apply(events.Event{
		Type:            events.TypeArtifactCreated,
		ArtifactCreated: &events.ArtifactCreated{ArtifactID: "a1", ImagePath: "/out/a1.png"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, vm.Count())
}

func TestArtifactCreatedWithPendingCombineRecordsTimelineParents(t *testing.T) {
	p, vm, tg := newProjector()

	require.NoError(t, vm.AddImage(visual.ImageItem{ID: "src1", Path: "/a.png"}, visual.AddImageOpts{}))
	_, err := tg.RecordNode(timeline.RecordNodeInput{ImageID: "src1", Path: "/a.png", CreatedAt: 0})
	require.NoError(t, err)

	p.Slots.Put("artifact-1", PendingOp{Kind: PendingCombine, SourceIDs: []string{"src1"}})

	err = p.Apply(events.Event{
		Type:            events.TypeArtifactCreated,
		ArtifactCreated: &events.ArtifactCreated{ArtifactID: "artifact-1", ImagePath: "/out/combined.png"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, vm.Count(), "combine must collapse its sources off the canvas")
	assert.Equal(t, visual.ModeSingle, vm.Mode())
	_, stillThere := vm.Item("src1")
	assert.False(t, stillThere, "source image must be removed after collapse")

	recent := tg.RecentNodes(5)
	require.Len(t, recent, 2)
	assert.Equal(t, "blend", recent[len(recent)-1].Action)
	assert.Len(t, recent[len(recent)-1].Parents, 1)
}

func TestArtifactCreatedReplaceWholeSwapsImageInPlace(t *testing.T) {
	p, vm, _ := newProjector()
	require.NoError(t, vm.AddImage(visual.ImageItem{ID: "target", Path: "/a.png"}, visual.AddImageOpts{}))

	p.Slots.Put("artifact-2", PendingOp{Kind: PendingReplace, TargetID: "target", Mode: ReplaceWhole})

	err := p.Apply(events.Event{
		Type:            events.TypeArtifactCreated,
		ArtifactCreated: &events.ArtifactCreated{ArtifactID: "artifact-2", ImagePath: "/a-edited.png"},
	})
	require.NoError(t, err)

	item, ok := vm.Item("target")
	require.True(t, ok)
	assert.Equal(t, "/a-edited.png", item.Path)
	assert.Equal(t, 1, vm.Count(), "replace must not add a new canvas slot")
}

func TestArtifactCreatedWithPendingRecastRemovesAllImages(t *testing.T) {
	p, vm, tg := newProjector()

	require.NoError(t, vm.AddImage(visual.ImageItem{ID: "src1", Path: "/a.png"}, visual.AddImageOpts{}))
	require.NoError(t, vm.AddImage(visual.ImageItem{ID: "src2", Path: "/b.png"}, visual.AddImageOpts{}))
	_, err := tg.RecordNode(timeline.RecordNodeInput{ImageID: "src1", Path: "/a.png", CreatedAt: 0})
	require.NoError(t, err)
	_, err = tg.RecordNode(timeline.RecordNodeInput{ImageID: "src2", Path: "/b.png", CreatedAt: 0})
	require.NoError(t, err)

	p.Slots.Put("artifact-3", PendingOp{Kind: PendingRecast})

	err = p.Apply(events.Event{
		Type:            events.TypeArtifactCreated,
		ArtifactCreated: &events.ArtifactCreated{ArtifactID: "artifact-3", ImagePath: "/out/recast.png"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, vm.Count(), "recast must collapse every existing image off the canvas")
	assert.Equal(t, visual.ModeSingle, vm.Mode())
}

func TestArtifactCreatedFailedApplyDoesNotFireOnActionComplete(t *testing.T) {
	p, _, _ := newProjector()
	fired := 0
	p.OnActionComplete = func() { fired++ }

	p.Slots.Put("artifact-4", PendingOp{Kind: PendingReplace, TargetID: "missing", Mode: ReplaceWhole})
	err := p.Apply(events.Event{
		Type:            events.TypeArtifactCreated,
		ArtifactCreated: &events.ArtifactCreated{ArtifactID: "artifact-4", ImagePath: "/out/x.png"},
	})
	require.Error(t, err, "replace against a missing target id should fail")
	assert.Equal(t, 0, fired, "a failed apply must not fire completion")
}

func TestImageArgumentClearsPendingSlotAndFiresOnActionComplete(t *testing.T) {
	p, _, _ := newProjector()
	fired := 0
	p.OnActionComplete = func() { fired++ }
	var got string
	p.OnReadout = func(kind, text string) { got = text }

	p.Slots.Put("artifact-5", PendingOp{Kind: PendingArgue})
	err := p.Apply(events.Event{
		Type:          events.TypeImageArgument,
		ImageArgument: &events.ImageArgument{Text: "the left one has stronger contrast"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
	assert.Equal(t, 0, p.Slots.Len())
	assert.Equal(t, "the left one has stronger contrast", got)
}

func TestImageDescriptionSetsVisionDescByPath(t *testing.T) {
	p, vm, _ := newProjector()
	require.NoError(t, vm.AddImage(visual.ImageItem{ID: "x", Path: "/a.png"}, visual.AddImageOpts{}))

	err := p.Apply(events.Event{
		Type: events.TypeImageDescription,
		ImageDescription: &events.ImageDescription{
			ImagePath:   "/a.png",
			Description: "a red circle on white",
		},
	})
	require.NoError(t, err)

	item, _ := vm.Item("x")
	assert.Equal(t, "a red circle on white", item.VisionDesc)
}

func TestUnknownEventTypeIsIgnoredNotError(t *testing.T) {
	p, _, _ := newProjector()
	err := p.Apply(events.Event{Type: events.TypeIgnored})
	assert.NoError(t, err)
}

func TestReadoutEventsForwardText(t *testing.T) {
	p, _, _ := newProjector()
	var got string
	p.OnReadout = func(kind, text string) { got = text }

	err := p.Apply(events.Event{Type: events.TypePlanPreview, PlanPreview: &events.PlanPreview{Plan: "crop then blend"}})
	require.NoError(t, err)
	assert.Equal(t, "crop then blend", got)
}
