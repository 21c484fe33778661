package projector

import (
	"fmt"
	"time"

	"github.com/brood-studio/canvasrt/internal/events"
	"github.com/brood-studio/canvasrt/internal/imagecache"
	"github.com/brood-studio/canvasrt/internal/timeline"
	"github.com/brood-studio/canvasrt/internal/visual"
	"github.com/brood-studio/canvasrt/utils"
)

// Projector is the single exhaustive handler for engine events
// (spec.md §4.4). It owns no state of its own beyond the pending-op
// slots; every other mutation lands on the Visual Model or Timeline
// Graph it's wired to.
type Projector struct {
	Model    *visual.Model
	Timeline *timeline.Graph
	Cache    *imagecache.Cache
	Slots    *Slots

	Now func() int64

	// OnDescribeNeeded requests a describe dispatch for a freshly
	// created image (spec.md §4.2 "every new artifact is described").
	OnDescribeNeeded func(imageID string)
	// OnReadout surfaces human-facing progress/cost/context lines
	// (spec.md §4.4 "cost_latency_update, context_window_update").
	OnReadout func(kind, text string)
	// OnAmbientEvent/OnIntentEvent route the ambient- and
	// intent-scoped event types to their respective state machines
	// (spec.md §4.5, §4.6); the projector itself only unwraps them.
	OnAmbientEvent func(ev events.Event)
	OnIntentEvent  func(ev events.Event)
	// OnActionComplete fires whenever a pending-op slot is cleared,
	// letting the runtime resume the Action Scheduler (spec.md §4.3,
	// §4.4: "the scheduler resumes ... when the Event Projector clears
	// that slot").
	OnActionComplete func()
}

// Apply dispatches one decoded event, matching spec.md §9's "a single
// exhaustive handler; unknown variants route to an Ignored sink."
func (p *Projector) Apply(ev events.Event) error {
	switch ev.Type {
	case events.TypePlanPreview:
		if p.OnReadout != nil {
			p.OnReadout("plan", ev.PlanPreview.Plan)
		}
	case events.TypeArtifactCreated:
		return p.applyArtifactCreated(*ev.ArtifactCreated)
	case events.TypeGenerationFailed:
		// Clears every pending slot rather than one: the engine
		// identifies the failed request by text only, and the
		// engine-busy gate guarantees at most one was ever in flight
		// anyway (spec.md §5 "failure clears all pending slots").
		hadPending := p.Slots.Len() > 0
		p.Slots.Clear()
		if hadPending && p.OnActionComplete != nil {
			p.OnActionComplete()
		}
		if p.OnReadout != nil {
			p.OnReadout("generation_failed", ev.GenerationFailed.Error)
		}
	case events.TypeCostLatencyUpdate:
		if p.OnReadout != nil {
			p.OnReadout("cost_latency", fmt.Sprintf("%s/%s $%.4f (%s/img)",
				ev.CostLatencyUpdate.Provider, ev.CostLatencyUpdate.Model,
				ev.CostLatencyUpdate.CostTotalUSD,
				utils.FormatTime(time.Duration(ev.CostLatencyUpdate.LatencyPerImageS*float64(time.Second)))))
		}
	case events.TypeContextWindowUpdate:
		if p.OnReadout != nil {
			p.OnReadout("context_window", fmt.Sprintf("%.1f%%", ev.ContextWindowUpdate.Pct*100))
		}
	case events.TypeCanvasContext, events.TypeCanvasContextFailed:
		if p.OnAmbientEvent != nil {
			p.OnAmbientEvent(ev)
		}
	case events.TypeIntentIcons, events.TypeIntentIconsFailed:
		if p.OnIntentEvent != nil {
			p.OnIntentEvent(ev)
		}
	case events.TypeImageDescription:
		p.applyImageDescription(*ev.ImageDescription)
	case events.TypeImageDiagnosis:
		p.applyDiagnosis(ev.ImageDiagnosis.ImagePath, ev.ImageDiagnosis.Text)
	case events.TypeImageDiagnosisFailed:
		p.clearDiagnose(ev.ImageDiagnosisFailed.ImagePath)
		if p.OnReadout != nil {
			p.OnReadout("diagnose_failed", ev.ImageDiagnosisFailed.Error)
		}
	case events.TypeImageArgument:
		p.clearPendingKind(PendingArgue)
		if p.OnReadout != nil {
			p.OnReadout("argument", ev.ImageArgument.Text)
		}
	case events.TypeImageArgumentFailed:
		p.clearPendingKind(PendingArgue)
		if p.OnReadout != nil {
			p.OnReadout("argument_failed", ev.ImageArgumentFailed.Error)
		}
	case events.TypeTripletRule:
		p.clearPendingKind(PendingExtractRule)
		if p.OnReadout != nil {
			p.OnReadout("triplet_rule", ev.TripletRule.Text)
		}
	case events.TypeTripletRuleFailed:
		p.clearPendingKind(PendingExtractRule)
		if p.OnReadout != nil {
			p.OnReadout("triplet_rule_failed", ev.TripletRuleFailed.Error)
		}
	case events.TypeTripletOddOneOut:
		p.clearPendingKind(PendingOddOneOut)
		if p.OnReadout != nil {
			p.OnReadout("odd_one_out", ev.TripletOddOneOut.Text)
		}
	case events.TypeTripletOddOneOutFailed:
		p.clearPendingKind(PendingOddOneOut)
		if p.OnReadout != nil {
			p.OnReadout("odd_one_out_failed", ev.TripletOddOneOutFailed.Error)
		}
	case events.TypeRecreatePromptInferred:
		if p.OnReadout != nil {
			p.OnReadout("recreate_prompt", ev.RecreatePromptInferred.Prompt)
		}
	case events.TypeRecreateIterationUpdate:
		if p.OnReadout != nil {
			p.OnReadout("recreate_iteration", fmt.Sprintf("%d: %.1f%% similar",
				ev.RecreateIterationUpdate.Iteration, ev.RecreateIterationUpdate.Similarity*100))
		}
	case events.TypeRecreateDone:
		// Idempotent: artifact_created usually clears pendingRecreate
		// first, since that event also carries the regenerated image.
		p.clearPendingKind(PendingRecreate)
		if p.OnReadout != nil {
			p.OnReadout("recreate_done", "")
		}
	case events.TypeIgnored:
		// spec.md §9: unknown types are dropped, never an error.
	}
	return nil
}

func (p *Projector) applyArtifactCreated(ac events.ArtifactCreated) error {
	op, ok := p.Slots.Take(ac.ArtifactID)
	if !ok {
		// The runtime can't know the artifact id before the engine
		// mints it, so it registers the op under a throwaway key; fall
		// back to the one slot the engine-busy gate guarantees is the
		// only one in flight (spec.md §4.4).
		op, ok = p.Slots.TakeSole()
	}
	if !ok {
		return p.insertAsNewImage(ac, nil)
	}

	var err error
	switch op.Kind {
	case PendingReplace:
		err = p.applyReplace(ac, op)
	case PendingCombine, PendingSwapDNA, PendingBridge, PendingTriforce:
		// Multi-image abilities collapse their sources into the output
		// (spec.md §4.4 scenario 1: "canvas contains only the result,
		// mode is single").
		err = p.insertCollapsed(ac, &op)
	case PendingRecast, PendingRecreate:
		// Whole-canvas abilities replace every existing image with the
		// output (spec.md §4.4).
		op.SourceIDs = p.Model.IDs()
		err = p.insertCollapsed(ac, &op)
	default:
		err = p.insertAsNewImage(ac, &op)
	}
	if err != nil {
		return err
	}
	if p.OnActionComplete != nil {
		p.OnActionComplete()
	}
	return nil
}

// insertCollapsed adds the result as a new image parented on op's
// sources, then removes every one of those sources and switches the
// canvas to single mode (spec.md §4.4).
func (p *Projector) insertCollapsed(ac events.ArtifactCreated, op *PendingOp) error {
	if err := p.insertAsNewImage(ac, op); err != nil {
		return err
	}
	for _, srcID := range op.SourceIDs {
		p.Model.RemoveImage(srcID)
	}
	p.Model.SetCanvasMode(visual.ModeSingle)
	return nil
}

// insertAsNewImage is the default-case routing spec.md §4.4 names for
// any ability whose result is a brand new canvas image (blend, bridge,
// argue, extract rule, odd one out, triforce, recast, recreate). With
// no pending op at all, the new image is parented on whichever image
// was active before it landed.
func (p *Projector) insertAsNewImage(ac events.ArtifactCreated, op *PendingOp) error {
	prevActive := p.Model.ActiveID()

	id := visual.NewID()
	item := visual.ImageItem{
		ID:          id,
		Kind:        visual.KindGenerated,
		Path:        ac.ImagePath,
		ReceiptPath: ac.ReceiptPath,
	}
	if err := p.Model.AddImage(item, visual.AddImageOpts{Select: true}); err != nil {
		return fmt.Errorf("projector: add image: %w", err)
	}

	var parents []string
	switch {
	case op != nil:
		for _, srcID := range op.SourceIDs {
			if nodeID, ok := p.Timeline.CurrentNode(srcID); ok {
				parents = append(parents, nodeID)
			}
		}
	case prevActive != "":
		if nodeID, ok := p.Timeline.CurrentNode(prevActive); ok {
			parents = append(parents, nodeID)
		}
	}
	if _, err := p.Timeline.RecordNode(timeline.RecordNodeInput{
		ImageID:     id,
		Path:        ac.ImagePath,
		ReceiptPath: ac.ReceiptPath,
		Action:      actionLabel(op),
		Parents:     parents,
		CreatedAt:   p.now(),
	}); err != nil {
		return fmt.Errorf("projector: record timeline node: %w", err)
	}

	if p.OnDescribeNeeded != nil {
		p.OnDescribeNeeded(id)
	}
	return nil
}

// applyReplace handles the annotate-box edit flow (spec.md §4.4
// scenario 2): a crop-mode replace composites the edited crop back
// onto the full base image before landing it on the existing slot.
func (p *Projector) applyReplace(ac events.ArtifactCreated, op PendingOp) error {
	dstPath := ac.ImagePath
	if op.Mode == ReplaceCrop && op.Box != nil {
		item, ok := p.Model.Item(op.TargetID)
		if !ok {
			return visual.ErrNoSuchImage
		}
		composited := item.Path
		if p.Cache != nil {
			base, err := p.Cache.EnsureImageURL(item.Path)
			if err != nil {
				return fmt.Errorf("projector: load base image: %w", err)
			}
			edited, err := p.Cache.EnsureImageURL(ac.ImagePath)
			if err != nil {
				return fmt.Errorf("projector: load edited crop: %w", err)
			}
			box := visual.AnnotateBox{
				X0: op.Box.X0, Y0: op.Box.Y0,
				X1: op.Box.X1, Y1: op.Box.Y1,
			}
			if err := imagecache.CompositeBack(base.Img, edited.Img, box, item.Path); err != nil {
				return fmt.Errorf("projector: composite crop back: %w", err)
			}
			composited = item.Path
		}
		dstPath = composited
	}

	if err := p.Model.ReplaceImageInPlace(op.TargetID, visual.ReplaceImageInPlaceOpts{
		Path:        dstPath,
		ReceiptPath: ac.ReceiptPath,
		ClearVision: true,
	}); err != nil {
		return fmt.Errorf("projector: replace in place: %w", err)
	}
	if p.Cache != nil {
		p.Cache.InvalidateImageCache(dstPath)
	}

	if prevNodeID, ok := p.Timeline.CurrentNode(op.TargetID); ok {
		if _, err := p.Timeline.RecordNode(timeline.RecordNodeInput{
			ImageID:     op.TargetID,
			Path:        dstPath,
			ReceiptPath: ac.ReceiptPath,
			Action:      "replace",
			Parents:     []string{prevNodeID},
			CreatedAt:   p.now(),
		}); err != nil {
			return fmt.Errorf("projector: record replace node: %w", err)
		}
	}

	if p.OnDescribeNeeded != nil {
		p.OnDescribeNeeded(op.TargetID)
	}
	return nil
}

func (p *Projector) applyImageDescription(d events.ImageDescription) {
	if id, ok := p.Model.ImageIDByPath(d.ImagePath); ok {
		_ = p.Model.SetVisionDescription(id, d.Description, fmt.Sprintf("%s:%s", d.Source, d.Model))
	}
	if p.OnReadout != nil {
		p.OnReadout("description", d.Description)
	}
}

func (p *Projector) applyDiagnosis(imagePath, text string) {
	p.clearDiagnose(imagePath)
	if p.OnReadout != nil {
		p.OnReadout("diagnosis", text)
	}
}

// clearDiagnose resolves a diagnose completion against imagePath, since
// image_diagnosis(_failed) events carry a path, not a correlation id
// (spec.md §4.4: "resolved by imagePath"). A foreground Diagnose is
// checked before a background CanvasDiagnose so a user-initiated request
// always wins the match.
func (p *Projector) clearDiagnose(imagePath string) {
	for _, kind := range [...]PendingKind{PendingDiagnose, PendingCanvasDiagnose} {
		op, ok := p.Slots.PeekKind(kind)
		if !ok || p.opPath(op) != imagePath {
			continue
		}
		p.Slots.RemoveKind(kind)
		if p.OnActionComplete != nil {
			p.OnActionComplete()
		}
		return
	}
}

// clearPendingKind drops the first pending op of kind, if any, and
// notifies the scheduler that it can resume (spec.md §4.4).
func (p *Projector) clearPendingKind(kind PendingKind) {
	if _, ok := p.Slots.TakeKind(kind); ok && p.OnActionComplete != nil {
		p.OnActionComplete()
	}
}

// opPath returns the canvas path op was issued against, used to match a
// path-keyed event back to the pending op that requested it.
func (p *Projector) opPath(op PendingOp) string {
	if len(op.SourceIDs) == 0 {
		return ""
	}
	item, ok := p.Model.Item(op.SourceIDs[0])
	if !ok {
		return ""
	}
	return item.Path
}

func (p *Projector) now() int64 {
	if p.Now != nil {
		return p.Now()
	}
	return 0
}

func actionLabel(op *PendingOp) string {
	if op == nil {
		return "generate"
	}
	switch op.Kind {
	case PendingCombine:
		return "blend"
	case PendingSwapDNA:
		return "swap_dna"
	case PendingBridge:
		return "bridge"
	case PendingArgue:
		return "argue"
	case PendingExtractRule:
		return "extract_rule"
	case PendingOddOneOut:
		return "odd_one_out"
	case PendingTriforce:
		return "triforce"
	case PendingRecast:
		return "recast"
	case PendingDiagnose:
		return "diagnose"
	case PendingCanvasDiagnose:
		return "canvas_diagnose"
	case PendingRecreate:
		return "recreate"
	default:
		return "generate"
	}
}
