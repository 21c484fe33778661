// Package visual implements the spatial canvas model: images, rects,
// z-order, selection, and per-image marks (spec.md §3, §4.1).
//
// Grounded on the teacher's (github.com/esimov/caire) Processor struct
// as the "one struct owns the pipeline state" shape, generalized from an
// image-resize pipeline into a spatial multi-image canvas.
package visual

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ImageKind distinguishes an imported photograph from a generated artifact.
type ImageKind int

const (
	KindImported ImageKind = iota
	KindGenerated
)

// CanvasMode selects between the freeform spatial canvas and the
// single-image focused view (spec.md §4.1).
type CanvasMode int

const (
	ModeMulti CanvasMode = iota
	ModeSingle
)

// ImageItem is one canvas slot (spec.md §3).
type ImageItem struct {
	ID             string
	Kind           ImageKind
	Path           string
	ReceiptPath    string
	Label          string
	Width, Height  int
	HasDecoded     bool
	VisionDesc     string
	VisionMeta     string
	TimelineNodeID string
}

// FreeformRect is the spatial placement of one image (spec.md §3).
type FreeformRect struct {
	X, Y, W, H float64
	AutoAspect bool
}

func (r FreeformRect) CenterX() float64 { return r.X + r.W/2 }
func (r FreeformRect) CenterY() float64 { return r.Y + r.H/2 }

// Point is an image-space coordinate.
type Point struct{ X, Y float64 }

// Selection is the (at most one) active lasso polygon (spec.md §3).
type Selection struct {
	ImageID   string
	Points    []Point
	Closed    bool
	Timestamp int64
}

// DesignationKind enumerates the fixed designation vocabulary used by
// directed operations (Extract the Rule, Argue, …).
type DesignationKind string

const (
	DesignationSubject   DesignationKind = "subject"
	DesignationReference DesignationKind = "reference"
	DesignationObject    DesignationKind = "object"
)

// Designation is an append-only marker on an image (spec.md §3).
type Designation struct {
	ID        string
	Kind      DesignationKind
	X, Y      float64
	Timestamp int64
}

// Circle is a labeled image-space circle mark (spec.md §3).
type Circle struct {
	ID        string
	CX, CY, R float64
	Label     string
	Color     string
	Timestamp int64
}

// AnnotateBox is an image-space rectangle used for the annotate-box edit
// flow (spec.md §3, §4.4 scenario 2). At most one draft and one committed
// box may exist, bound to the active image.
type AnnotateBox struct {
	X0, Y0, X1, Y1 float64
}

func (b AnnotateBox) Width() float64  { return b.X1 - b.X0 }
func (b AnnotateBox) Height() float64 { return b.Y1 - b.Y0 }

// Marks bundles the per-image annotation state.
type marks struct {
	selection    *Selection
	designations []Designation
	circles      []Circle
	draftBox     *AnnotateBox
	committedBox *AnnotateBox
}

// ErrImageExists is returned by AddImage when the id is already present.
var ErrImageExists = fmt.Errorf("visual: image id already exists")

// ErrNoSuchImage is returned when an operation names an unknown image id.
var ErrNoSuchImage = fmt.Errorf("visual: no such image id")

// CanvasDims is the logical canvas size used by the freeform layout policy.
type CanvasDims struct {
	W, H   float64
	Margin float64
}

// Model owns every ImageItem, rect, z-order entry, and mark on the canvas.
// It is the single process-wide owner spec.md §3 describes ("Ownership").
type Model struct {
	mu sync.Mutex

	dims CanvasDims
	mode CanvasMode

	items map[string]*ImageItem
	rects map[string]*FreeformRect
	zOrder []string
	marks  map[string]*marks

	activeID string

	// OnSave is invoked (outside the lock) whenever a mutation should
	// trigger a "visual prompt" artifact save (spec.md §4.1).
	OnSave func(snapshot VisualPrompt)
	// OnActivate is invoked when setActiveImage focuses an image, so the
	// runtime can trigger the engine "/use" side effect and a priority
	// describe (spec.md §4.1, §4.6).
	OnActivate func(id string)
}

// NewModel constructs an empty canvas of the given logical dimensions.
func NewModel(dims CanvasDims) *Model {
	return &Model{
		dims:  dims,
		mode:  ModeMulti,
		items: make(map[string]*ImageItem),
		rects: make(map[string]*FreeformRect),
		marks: make(map[string]*marks),
	}
}

// NewID mints a fresh canvas-scoped identifier.
func NewID() string { return uuid.NewString() }

// AddImageOpts controls AddImage's optional side effects.
type AddImageOpts struct {
	Select bool
}

// AddImage places a new ImageItem on the canvas (spec.md §4.1).
func (m *Model) AddImage(item ImageItem, opts AddImageOpts) error {
	m.mu.Lock()
	if _, exists := m.items[item.ID]; exists {
		m.mu.Unlock()
		return ErrImageExists
	}
	cp := item
	m.items[item.ID] = &cp
	if _, hasRect := m.rects[item.ID]; !hasRect {
		m.layoutNewImage(item.ID)
	}
	m.zOrder = append(m.zOrder, item.ID)
	m.marks[item.ID] = &marks{}
	m.mu.Unlock()

	m.save()
	if opts.Select {
		m.SetActiveImage(item.ID)
	}
	return nil
}

// RemoveImage drops an image and every piece of state bound to its id
// (spec.md §4.1, §8 round-trip invariant).
func (m *Model) RemoveImage(id string) {
	m.mu.Lock()
	if _, ok := m.items[id]; !ok {
		m.mu.Unlock()
		return
	}
	delete(m.items, id)
	delete(m.rects, id)
	delete(m.marks, id)
	for i, zid := range m.zOrder {
		if zid == id {
			m.zOrder = append(m.zOrder[:i], m.zOrder[i+1:]...)
			break
		}
	}

	wasActive := m.activeID == id
	empty := len(m.items) == 0
	if wasActive {
		if empty {
			m.activeID = ""
		} else {
			m.activeID = m.zOrder[len(m.zOrder)-1]
		}
	}
	m.mu.Unlock()

	m.save()
	if wasActive && !empty {
		m.SetActiveImage(m.ActiveID())
	}
}

// ReplaceImageInPlaceOpts carries the optional fields of a replacement.
type ReplaceImageInPlaceOpts struct {
	Path        string
	ReceiptPath string
	Kind        *ImageKind
	Label       *string
	ClearVision bool
}

// ReplaceImageInPlace swaps the bytes behind an id without changing its
// identity, z-order position, selection, or timeline node (spec.md §4.1,
// §8 round-trip invariant).
func (m *Model) ReplaceImageInPlace(id string, opts ReplaceImageInPlaceOpts) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return ErrNoSuchImage
	}
	item.Path = opts.Path
	if opts.ReceiptPath != "" {
		item.ReceiptPath = opts.ReceiptPath
	}
	if opts.Kind != nil {
		item.Kind = *opts.Kind
	}
	if opts.Label != nil {
		item.Label = *opts.Label
	}
	item.HasDecoded = false
	if opts.ClearVision {
		item.VisionDesc = ""
		item.VisionMeta = ""
	}
	return nil
}

// SetVisionDescription records the engine's description text for id,
// the landing point for image_description events (spec.md §4.4).
func (m *Model) SetVisionDescription(id, desc, meta string) error {
	m.mu.Lock()
	item, ok := m.items[id]
	if !ok {
		m.mu.Unlock()
		return ErrNoSuchImage
	}
	item.VisionDesc = desc
	item.VisionMeta = meta
	m.mu.Unlock()
	m.save()
	return nil
}

// ImageIDByPath returns the id of the image currently bound to path,
// used to resolve path-keyed engine events back to a canvas slot
// (spec.md §4.4).
func (m *Model) ImageIDByPath(path string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, item := range m.items {
		if item.Path == path {
			return id, true
		}
	}
	return "", false
}

// SetActiveImage focuses an image, requests the engine "/use" side
// effect, and schedules a priority describe
// (spec.md §4.1). The engine/describe side effects are surfaced via
// OnActivate so the runtime package can orchestrate them.
func (m *Model) SetActiveImage(id string) {
	m.mu.Lock()
	if _, ok := m.items[id]; !ok {
		m.mu.Unlock()
		return
	}
	m.activeID = id
	m.mu.Unlock()

	if m.OnActivate != nil {
		m.OnActivate(id)
	}
}

// ActiveID returns the currently focused image id, or "" if none.
func (m *Model) ActiveID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeID
}

// SetCanvasMode switches between multi and single mode, discarding
// transient drafts (spec.md §4.1).
func (m *Model) SetCanvasMode(mode CanvasMode) {
	m.mu.Lock()
	m.mode = mode
	for _, mk := range m.marks {
		mk.draftBox = nil
	}
	m.mu.Unlock()
	m.save()
}

// Mode returns the current canvas mode.
func (m *Model) Mode() CanvasMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// Item returns a copy of the ImageItem for id, if present.
func (m *Model) Item(id string) (ImageItem, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return ImageItem{}, false
	}
	return *it, true
}

// Rect returns a copy of the rect bound to id, if present.
func (m *Model) Rect(id string) (FreeformRect, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rects[id]
	if !ok {
		return FreeformRect{}, false
	}
	return *r, true
}

// SetRect overwrites the rect bound to id, clamping to canvas margins.
func (m *Model) SetRect(id string, r FreeformRect) {
	m.mu.Lock()
	if _, ok := m.items[id]; !ok {
		m.mu.Unlock()
		return
	}
	clamped := m.clampRect(r)
	m.rects[id] = &clamped
	m.mu.Unlock()
	m.save()
}

// ZOrder returns a snapshot of the z-order, bottom to top.
func (m *Model) ZOrder() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.zOrder))
	copy(out, m.zOrder)
	return out
}

// BringToTop moves id to the top of the stack. It finds id by a linear
// scan of the z-order, so it takes O(n) time in the number of images.
func (m *Model) BringToTop(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, zid := range m.zOrder {
		if zid == id {
			m.zOrder = append(m.zOrder[:i], m.zOrder[i+1:]...)
			m.zOrder = append(m.zOrder, id)
			return
		}
	}
}

// Count returns the number of images currently on the canvas.
func (m *Model) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// IDs returns every image id currently on the canvas, in z-order.
func (m *Model) IDs() []string { return m.ZOrder() }

func (m *Model) save() {
	if m.OnSave == nil {
		return
	}
	m.OnSave(m.SerializeVisualPrompt())
}
