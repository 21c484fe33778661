package intent

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/brood-studio/canvasrt/internal/visual"
)

// sigView mirrors the ambient package's structural hash, scoped to the
// subset of canvas state that affects what the user is likely trying
// to do next (glossary: "Intent Signature").
type sigView struct {
	Active       string   `json:"active"`
	ImageCount   int      `json:"imageCount"`
	HasSelection bool     `json:"hasSelection"`
	Designations int      `json:"designations"`
}

// ComputeSignature derives the Intent Signature from a serialized
// visual prompt (spec.md §4.6: a round only starts when this signature
// changes from the round it last inferred against).
func ComputeSignature(vp visual.VisualPrompt) string {
	view := sigView{Active: vp.Active, ImageCount: len(vp.Images)}
	for _, img := range vp.Images {
		if img.Selection != nil {
			view.HasSelection = true
		}
		view.Designations += len(img.Designations)
	}
	b, err := json.Marshal(view)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
