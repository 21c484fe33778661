package visual

// VisualPrompt is the structured snapshot persisted as
// <run>/visual_prompt.json, schema "brood.visual_prompt" v1 (spec.md §6).
type VisualPrompt struct {
	Schema string             `json:"schema"`
	Mode   string             `json:"mode"`
	Active string             `json:"active,omitempty"`
	Images []VisualPromptImage `json:"images"`
}

type VisualPromptImage struct {
	ID           string             `json:"id"`
	Path         string             `json:"path"`
	Label        string             `json:"label,omitempty"`
	Rect         VisualPromptRect   `json:"rect"`
	Z            int                `json:"z"`
	Selection    *VisualPromptSel   `json:"selection,omitempty"`
	Designations []Designation      `json:"designations,omitempty"`
	Circles      []Circle           `json:"circles,omitempty"`
	VisionDesc   string             `json:"visionDescription,omitempty"`
}

type VisualPromptRect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

type VisualPromptSel struct {
	Points    []Point `json:"points"`
	Closed    bool    `json:"closed"`
	Timestamp int64   `json:"timestamp"`
}

// SerializeVisualPrompt builds the structured snapshot described above
// (spec.md §4.1). It is the read-side counterpart consumed by
// round-trip tests in spec.md §8.
func (m *Model) SerializeVisualPrompt() VisualPrompt {
	m.mu.Lock()
	defer m.mu.Unlock()

	modeStr := "multi"
	if m.mode == ModeSingle {
		modeStr = "single"
	}

	vp := VisualPrompt{
		Schema: "brood.visual_prompt",
		Mode:   modeStr,
		Active: m.activeID,
	}

	for z, id := range m.zOrder {
		item := m.items[id]
		rect := m.rects[id]
		mk := m.marks[id]

		vpi := VisualPromptImage{
			ID:    id,
			Path:  item.Path,
			Label: item.Label,
			Z:     z,
		}
		if rect != nil {
			vpi.Rect = VisualPromptRect{X: rect.X, Y: rect.Y, W: rect.W, H: rect.H}
		}
		if mk != nil {
			if mk.selection != nil {
				vpi.Selection = &VisualPromptSel{
					Points:    append([]Point(nil), mk.selection.Points...),
					Closed:    mk.selection.Closed,
					Timestamp: mk.selection.Timestamp,
				}
			}
			vpi.Designations = append([]Designation(nil), mk.designations...)
			vpi.Circles = append([]Circle(nil), mk.circles...)
		}
		vpi.VisionDesc = item.VisionDesc

		vp.Images = append(vp.Images, vpi)
	}
	return vp
}
