package ambient

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/brood-studio/canvasrt/internal/visual"
)

// sigView is the structural subset of the visual prompt the Canvas
// Signature hashes over: geometry, marks, and vision descriptions. The
// selection is reduced to a presence flag; designations and circles are
// hashed whole, including their timestamps (glossary: "Canvas Signature").
type sigView struct {
	Mode   string              `json:"mode"`
	Active string              `json:"active"`
	Images []sigImageView      `json:"images"`
}

type sigImageView struct {
	ID           string                  `json:"id"`
	Path         string                  `json:"path"`
	Rect         visual.VisualPromptRect `json:"rect"`
	Z            int                     `json:"z"`
	HasSelection bool                    `json:"hasSelection"`
	Designations []visual.Designation    `json:"designations"`
	Circles      []visual.Circle         `json:"circles"`
	VisionDesc   string                  `json:"visionDescription"`
}

// ComputeSignature derives the Canvas Signature from a serialized visual
// prompt (spec.md §4.5: ambient re-dispatches only when this signature
// changes from the last dispatched frame).
func ComputeSignature(vp visual.VisualPrompt) string {
	view := sigView{Mode: vp.Mode, Active: vp.Active}
	for _, img := range vp.Images {
		view.Images = append(view.Images, sigImageView{
			ID:           img.ID,
			Path:         img.Path,
			Rect:         img.Rect,
			Z:            img.Z,
			HasSelection: img.Selection != nil,
			Designations: img.Designations,
			Circles:      img.Circles,
			VisionDesc:   img.VisionDesc,
		})
	}
	b, err := json.Marshal(view)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
