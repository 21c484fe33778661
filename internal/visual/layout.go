package visual

import "github.com/brood-studio/canvasrt/utils"

// layoutNewImage places a freeform rect for an image that doesn't have one
// yet, following the centered-grid policy of spec.md §4.1: 1/2/3-column
// layout at n=1, n=2-4, n>=5 images. The rect starts with AutoAspect set;
// the first successful decode replaces it with an aspect-correct rect
// centered on the same point (see ApplyDecodedAspect).
//
// Caller must hold m.mu.
func (m *Model) layoutNewImage(id string) {
	n := len(m.items)
	col := 1
	switch {
	case n == 1:
		col = 1
	case n >= 2 && n <= 4:
		col = 2
	default:
		col = 3
	}

	idx := n - 1 // zero-based position of the new image among existing items
	row := idx / col
	colIdx := idx % col

	avail := m.dims.W - 2*m.dims.Margin
	cellW := avail / float64(col)
	cellH := cellW * 0.75 // default 4:3 placeholder, corrected on decode

	r := FreeformRect{
		X:          m.dims.Margin + float64(colIdx)*cellW,
		Y:          m.dims.Margin + float64(row)*cellH,
		W:          cellW * 0.9,
		H:          cellH * 0.9,
		AutoAspect: true,
	}
	clamped := m.clampRect(r)
	m.rects[id] = &clamped
}

// clampRect restricts a rect to remain fully within canvas margins
// (spec.md §3 FreeformRect invariant). Caller must hold m.mu.
func (m *Model) clampRect(r FreeformRect) FreeformRect {
	maxX := m.dims.W - m.dims.Margin - r.W
	maxY := m.dims.H - m.dims.Margin - r.H
	r.X = utils.Clamp(r.X, m.dims.Margin, utils.Max(m.dims.Margin, maxX))
	r.Y = utils.Clamp(r.Y, m.dims.Margin, utils.Max(m.dims.Margin, maxY))
	return r
}

// ApplyDecodedAspect replaces an AutoAspect rect with one sized to the
// decoded image's aspect ratio, centered on the previous rect's center,
// then clears AutoAspect (spec.md §3 FreeformRect invariant).
func (m *Model) ApplyDecodedAspect(id string, width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	m.mu.Lock()
	r, ok := m.rects[id]
	if !ok || !r.AutoAspect {
		m.mu.Unlock()
		return
	}
	cx, cy := r.CenterX(), r.CenterY()
	aspect := float64(width) / float64(height)

	newW := r.W
	newH := newW / aspect
	nr := FreeformRect{
		X:          cx - newW/2,
		Y:          cy - newH/2,
		W:          newW,
		H:          newH,
		AutoAspect: false,
	}
	clamped := m.clampRect(nr)
	m.rects[id] = &clamped

	if item, ok := m.items[id]; ok {
		item.Width, item.Height = width, height
		item.HasDecoded = true
	}
	m.mu.Unlock()
	m.save()
}

// ResizeCorner resizes a rect by dragging the corner opposite `anchor`,
// preserving aspect ratio around the anchored corner (spec.md §4.1).
// anchor selects which corner stays fixed: 0=TL,1=TR,2=BR,3=BL.
func (m *Model) ResizeCorner(id string, anchor int, dx, dy float64) {
	m.mu.Lock()
	r, ok := m.rects[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	aspect := r.W / r.H
	nr := *r

	switch anchor {
	case 0: // top-left fixed, drag bottom-right
		nr.W = utils.Max(r.W+dx, 8)
		nr.H = nr.W / aspect
	case 1: // top-right fixed, drag bottom-left
		nr.W = utils.Max(r.W-dx, 8)
		nr.H = nr.W / aspect
		nr.X = r.X + r.W - nr.W
	case 2: // bottom-right fixed, drag top-left
		nr.W = utils.Max(r.W-dx, 8)
		nr.H = nr.W / aspect
		nr.X = r.X + r.W - nr.W
		nr.Y = r.Y + r.H - nr.H
	case 3: // bottom-left fixed, drag top-right
		nr.W = utils.Max(r.W+dx, 8)
		nr.H = nr.W / aspect
		nr.Y = r.Y + r.H - nr.H
	}

	clamped := m.clampRect(nr)
	m.rects[id] = &clamped
	m.mu.Unlock()
	m.save()
}
