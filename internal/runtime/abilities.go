package runtime

import (
	"fmt"
	"path/filepath"

	"github.com/brood-studio/canvasrt/internal/imagecache"
	"github.com/brood-studio/canvasrt/internal/logx"
	"github.com/brood-studio/canvasrt/internal/projector"
	"github.com/brood-studio/canvasrt/internal/scheduler"
	"github.com/brood-studio/canvasrt/internal/timeline"
	"github.com/brood-studio/canvasrt/internal/visual"
)

// This file is the ability-dispatch layer spec.md §4.3/§8 describes:
// the bridge between a user (or the ambient/intent suggestion flow)
// invoking a named ability and the Action Scheduler queueing the
// engine round-trip that ability requires. Every method here builds a
// scheduler.QueuedAction, writes the matching engine command from its
// thunk, and registers the pending-op slot the Event Projector needs
// to resolve the eventual artifact back to this request.

// dispatchAbility enqueues an action that writes one or more engine
// commands and, on success, registers op under a freshly minted
// correlation id (spec.md §4.4: "the runtime mints a throwaway id
// since it cannot know the artifact id ahead of the engine"). A write
// failure completes the action immediately instead of leaving the
// engine-busy gate wedged on a request that never went anywhere.
func (rt *Runtime) dispatchAbility(label, key string, priority int, write func() error, op projector.PendingOp) {
	rt.Scheduler.Enqueue(scheduler.QueuedAction{
		ID:         visual.NewID(),
		Label:      label,
		Key:        key,
		Priority:   priority,
		EnqueuedAt: rt.Clock.NowMillis(),
		Source:     "user",
		Thunk: func() {
			if err := write(); err != nil {
				logx.Failure(rt.Log, "ability:"+label, err)
				rt.Scheduler.CompleteActive()
				rt.Scheduler.Pump()
				return
			}
			rt.Projector.Slots.Put(visual.NewID(), op)
		},
	})
}

// pathOf resolves a canvas image id to its current file path.
func (rt *Runtime) pathOf(imageID string) (string, error) {
	item, ok := rt.Model.Item(imageID)
	if !ok {
		return "", visual.ErrNoSuchImage
	}
	return item.Path, nil
}

// combineLike dispatches any of the three two-image, image-producing
// abilities (Combine, Bridge, Swap DNA), which all collapse their two
// sources into one result (spec.md §4.4 scenario 1).
func (rt *Runtime) combineLike(label string, kind projector.PendingKind, write func(a, b string) error, idA, idB string) error {
	pathA, err := rt.pathOf(idA)
	if err != nil {
		return err
	}
	pathB, err := rt.pathOf(idB)
	if err != nil {
		return err
	}
	rt.dispatchAbility(label, "", scheduler.PriorityUser, func() error {
		return write(pathA, pathB)
	}, projector.PendingOp{Kind: kind, SourceIDs: []string{idA, idB}})
	return nil
}

// Combine blends the two named canvas images into a new result
// (spec.md §8 scenario 1).
func (rt *Runtime) Combine(idA, idB string) error {
	return rt.combineLike("combine", projector.PendingCombine, rt.Commands.Blend, idA, idB)
}

// Bridge generates an intermediate image between the two named canvas
// images.
func (rt *Runtime) Bridge(idA, idB string) error {
	return rt.combineLike("bridge", projector.PendingBridge, rt.Commands.Bridge, idA, idB)
}

// SwapDNA swaps structure and surface between the two named canvas
// images.
func (rt *Runtime) SwapDNA(structureID, surfaceID string) error {
	return rt.combineLike("swap_dna", projector.PendingSwapDNA, rt.Commands.SwapDNA, structureID, surfaceID)
}

// Argue asks the engine to argue for one of the two named images over
// the other; the result is a text readout, not a new canvas image, so
// it never touches the Visual Model (spec.md §4.4 family (B)).
func (rt *Runtime) Argue(idA, idB string) error {
	pathA, err := rt.pathOf(idA)
	if err != nil {
		return err
	}
	pathB, err := rt.pathOf(idB)
	if err != nil {
		return err
	}
	rt.dispatchAbility("argue", "", scheduler.PriorityUser, func() error {
		return rt.Commands.Argue(pathA, pathB)
	}, projector.PendingOp{Kind: projector.PendingArgue, SourceIDs: []string{idA, idB}})
	return nil
}

// tripletLike dispatches any of the three-image abilities (Extract the
// Rule, Odd One Out, Triforce), sharing the three-path resolution every
// one of them needs.
func (rt *Runtime) tripletLike(label string, kind projector.PendingKind, write func(a, b, c string) error, idA, idB, idC string) error {
	pathA, err := rt.pathOf(idA)
	if err != nil {
		return err
	}
	pathB, err := rt.pathOf(idB)
	if err != nil {
		return err
	}
	pathC, err := rt.pathOf(idC)
	if err != nil {
		return err
	}
	rt.dispatchAbility(label, "", scheduler.PriorityUser, func() error {
		return write(pathA, pathB, pathC)
	}, projector.PendingOp{Kind: kind, SourceIDs: []string{idA, idB, idC}})
	return nil
}

// ExtractRule infers the organizing principle across three images; a
// text readout, like Argue.
func (rt *Runtime) ExtractRule(idA, idB, idC string) error {
	return rt.tripletLike("extract_rule", projector.PendingExtractRule, rt.Commands.ExtractRule, idA, idB, idC)
}

// OddOneOut picks which of three images breaks the pattern the other
// two share; a text readout.
func (rt *Runtime) OddOneOut(idA, idB, idC string) error {
	return rt.tripletLike("odd_one_out", projector.PendingOddOneOut, rt.Commands.OddOneOut, idA, idB, idC)
}

// Triforce generates a fourth image synthesizing the three named
// images; an image-producing, collapsing ability like Combine.
func (rt *Runtime) Triforce(idA, idB, idC string) error {
	return rt.tripletLike("triforce", projector.PendingTriforce, rt.Commands.Triforce, idA, idB, idC)
}

// Recast regenerates the whole canvas from imageID's vantage point,
// collapsing every current image into the single result (spec.md §4.4:
// "Recast/Recreate ... all existing images become parents and get
// removed"). The Event Projector overwrites SourceIDs with the live
// canvas id list once the artifact lands, so none are supplied here.
func (rt *Runtime) Recast(imageID string) error {
	path, err := rt.pathOf(imageID)
	if err != nil {
		return err
	}
	rt.dispatchAbility("recast", "", scheduler.PriorityUser, func() error {
		return rt.Commands.Recast(path)
	}, projector.PendingOp{Kind: projector.PendingRecast})
	return nil
}

// Variations asks the engine to recreate imageID as a fresh take,
// collapsing the whole canvas the same way Recast does (spec.md §6
// "/recreate", labeled "Variations" in the suggested-ability grammar).
func (rt *Runtime) Variations(imageID string) error {
	path, err := rt.pathOf(imageID)
	if err != nil {
		return err
	}
	rt.dispatchAbility("recreate", "", scheduler.PriorityUser, func() error {
		return rt.Commands.Recreate(path)
	}, projector.PendingOp{Kind: projector.PendingRecreate})
	return nil
}

// Diagnose requests a foreground critique of imageID, resolved by
// ImagePath against family (C)'s image_diagnosis(_failed) events
// (spec.md §4.4).
func (rt *Runtime) Diagnose(imageID string) error {
	path, err := rt.pathOf(imageID)
	if err != nil {
		return err
	}
	rt.dispatchAbility("diagnose", "", scheduler.PriorityUser, func() error {
		return rt.Commands.Diagnose(path)
	}, projector.PendingOp{Kind: projector.PendingDiagnose, SourceIDs: []string{imageID}})
	return nil
}

// CanvasDiagnose is the ambient-suggested background counterpart of
// Diagnose: lower priority and coalesced by key, since only the most
// recent ambient critique request is worth keeping queued.
func (rt *Runtime) CanvasDiagnose(imageID string) error {
	path, err := rt.pathOf(imageID)
	if err != nil {
		return err
	}
	rt.dispatchAbility("canvas_diagnose", "canvas-diagnose", scheduler.PriorityBackground, func() error {
		return rt.Commands.Diagnose(path)
	}, projector.PendingOp{Kind: projector.PendingCanvasDiagnose, SourceIDs: []string{imageID}})
	return nil
}

// Annotate crops the committed annotate box off imageID, sends it to
// the engine as an edit target with instruction, and registers a
// crop-mode Replace so the eventual artifact composites back onto the
// full image at the box's coordinates (spec.md §4.4 scenario 2, §8
// scenario 2).
func (rt *Runtime) Annotate(imageID, instruction string) error {
	item, ok := rt.Model.Item(imageID)
	if !ok {
		return visual.ErrNoSuchImage
	}
	box, ok := rt.Model.CommitBox(imageID)
	if !ok {
		return fmt.Errorf("runtime: no draft annotate box on image %s", imageID)
	}

	handle, err := rt.Cache.EnsureImageURL(item.Path)
	if err != nil {
		return fmt.Errorf("runtime: load image for annotate crop: %w", err)
	}
	cropPath := filepath.Join(rt.Settings.RunDir, "annotate", visual.NewID()+".png")
	if err := imagecache.CropToFile(handle.Img, box, cropPath); err != nil {
		return fmt.Errorf("runtime: crop annotate box: %w", err)
	}

	rt.dispatchAbility("annotate", "", scheduler.PriorityUser, func() error {
		if err := rt.Commands.Use(cropPath); err != nil {
			return err
		}
		if err := rt.Commands.EditInstruction("edit the image: " + instruction); err != nil {
			return err
		}
		rt.Model.ClearCommittedBox(imageID)
		return nil
	}, projector.PendingOp{
		Kind:     projector.PendingReplace,
		TargetID: imageID,
		Mode:     projector.ReplaceCrop,
		Box: &projector.ReplaceBox{
			X0: box.X0, Y0: box.Y0, X1: box.X1, Y1: box.Y1,
		},
		CropPath:    cropPath,
		Instruction: instruction,
	})
	return nil
}

// dispatchReplaceWhole issues a whole-image edit instruction against
// imageID, landing the result back on the same canvas slot (spec.md
// §4.4 scenario 2's ReplaceWhole mode) rather than as a new image.
// Background:White and Background:Sweep aren't part of the engine's
// slash-command grammar (spec.md §6); both ride the same free-text
// edit path Annotate uses.
func (rt *Runtime) dispatchReplaceWhole(imageID, label, instruction string) error {
	item, ok := rt.Model.Item(imageID)
	if !ok {
		return visual.ErrNoSuchImage
	}
	rt.dispatchAbility(label, "", scheduler.PriorityUser, func() error {
		if err := rt.Commands.Use(item.Path); err != nil {
			return err
		}
		return rt.Commands.EditInstruction("edit the image: " + instruction)
	}, projector.PendingOp{Kind: projector.PendingReplace, TargetID: imageID, Mode: projector.ReplaceWhole})
	return nil
}

// BackgroundWhite replaces imageID's background with solid white.
func (rt *Runtime) BackgroundWhite(imageID string) error {
	return rt.dispatchReplaceWhole(imageID, "background_white", "replace the background with solid white")
}

// BackgroundSweep replaces imageID's background with a seamless studio
// sweep backdrop.
func (rt *Runtime) BackgroundSweep(imageID string) error {
	return rt.dispatchReplaceWhole(imageID, "background_sweep", "replace the background with a seamless studio sweep")
}

// CropSquare crops imageID to its largest square, centered on the best
// detected face when a cascade is loaded (spec.md §4.3 Crop:Square:
// "purely local, no engine round-trip"). It completes the scheduler
// slot itself the moment the crop lands, since no pending-op slot is
// ever registered for it.
func (rt *Runtime) CropSquare(imageID string) error {
	item, ok := rt.Model.Item(imageID)
	if !ok {
		return visual.ErrNoSuchImage
	}
	rt.Scheduler.Enqueue(scheduler.QueuedAction{
		ID:         visual.NewID(),
		Label:      "crop_square",
		Priority:   scheduler.PriorityUser,
		EnqueuedAt: rt.Clock.NowMillis(),
		Source:     "user",
		Thunk: func() {
			defer func() {
				rt.Scheduler.CompleteActive()
				rt.Scheduler.Pump()
			}()
			rt.runCropSquare(imageID, item.Path)
		},
	})
	return nil
}

func (rt *Runtime) runCropSquare(imageID, path string) {
	handle, err := rt.Cache.EnsureImageURL(path)
	if err != nil {
		logx.Failure(rt.Log, "crop_square", err)
		return
	}
	cropped := imagecache.SquareCropFaceAware(handle.Img, rt.FaceDetector)

	dstPath := filepath.Join(rt.Settings.RunDir, "crops", visual.NewID()+".png")
	if err := imagecache.SavePNG(cropped, dstPath); err != nil {
		logx.Failure(rt.Log, "crop_square", err)
		return
	}
	if err := rt.Model.ReplaceImageInPlace(imageID, visual.ReplaceImageInPlaceOpts{Path: dstPath, ClearVision: true}); err != nil {
		logx.Failure(rt.Log, "crop_square", err)
		return
	}
	rt.Cache.InvalidateImageCache(path)

	if prevNodeID, ok := rt.Timeline.CurrentNode(imageID); ok {
		if _, err := rt.Timeline.RecordNode(timeline.RecordNodeInput{
			ImageID:   imageID,
			Path:      dstPath,
			Action:    "crop_square",
			Parents:   []string{prevNodeID},
			CreatedAt: rt.Clock.NowMillis(),
		}); err != nil {
			logx.Failure(rt.Log, "crop_square", err)
		}
	}
	rt.Describe.Enqueue(dstPath)
}
