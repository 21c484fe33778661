package imagecache

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/brood-studio/canvasrt/internal/visual"
)

// CropToFile crops img to box (image-space coordinates) and writes a
// PNG to dstPath, used by the annotate-box edit flow (spec.md §4.4
// scenario 2: "a crop PNG is written").
func CropToFile(img image.Image, box visual.AnnotateBox, dstPath string) error {
	rect := image.Rect(int(box.X0), int(box.Y0), int(box.X1), int(box.Y1))
	cropped := imaging.Crop(img, rect)
	return savePNG(cropped, dstPath)
}

// CompositeBack pastes edited (the engine's output for a cropped region)
// back onto base at box's original coordinates, and writes the result
// as a PNG to dstPath (spec.md §4.4: "composite the edited crop back
// onto the base using stored box coordinates").
func CompositeBack(base, edited image.Image, box visual.AnnotateBox, dstPath string) error {
	w, h := int(box.Width()), int(box.Height())
	resizedEdit := imaging.Resize(edited, w, h, imaging.Lanczos)
	composite := imaging.Paste(imaging.Clone(base), resizedEdit, image.Pt(int(box.X0), int(box.Y0)))
	return savePNG(composite, dstPath)
}

// SquareCropCenter crops img to the largest centered square, or a
// square centered on (cx, cy) when a face-aware center is known
// (spec.md §4.1 SUPPLEMENT: face-aware square crop). It is a local,
// immediate operation (spec.md §4.3 Crop:Square).
func SquareCropCenter(img image.Image, cx, cy int) image.Image {
	b := img.Bounds()
	side := b.Dx()
	if b.Dy() < side {
		side = b.Dy()
	}
	x0 := cx - side/2
	y0 := cy - side/2
	x0 = clampInt(x0, b.Min.X, b.Max.X-side)
	y0 = clampInt(y0, b.Min.Y, b.Max.Y-side)
	return imaging.Crop(img, image.Rect(x0, y0, x0+side, y0+side))
}

// SquareCropFaceAware centers the crop window on the best detected face
// when fd is non-nil and a face is found above the detection threshold;
// otherwise it falls back to the geometric center (SPEC_FULL.md §4.1
// supplement).
func SquareCropFaceAware(img image.Image, fd *FaceDetector) image.Image {
	b := img.Bounds()
	cx, cy := b.Min.X+b.Dx()/2, b.Min.Y+b.Dy()/2
	if fd != nil {
		if fx, fy, ok := fd.BestFaceCenter(img); ok {
			cx, cy = fx, fy
		}
	}
	return SquareCropCenter(img, cx, cy)
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// GridSnapshotOpts controls the ambient low-resolution grid snapshot
// (spec.md §4.5 step 3: "≤6 tiles, ≤768 px max dim, JPEG ≈q82 with PNG
// fallback").
type GridSnapshotOpts struct {
	MaxTiles  int
	MaxDim    int
	JPEGQuality int
}

func DefaultGridSnapshotOpts() GridSnapshotOpts {
	return GridSnapshotOpts{MaxTiles: 6, MaxDim: 768, JPEGQuality: 82}
}

// BuildGridSnapshot arranges up to opts.MaxTiles source images into a
// single low-resolution grid canvas for the ambient vision dispatch.
func BuildGridSnapshot(tiles []image.Image, opts GridSnapshotOpts) image.Image {
	if len(tiles) > opts.MaxTiles {
		tiles = tiles[:opts.MaxTiles]
	}
	if len(tiles) == 0 {
		return imaging.New(1, 1, image.Transparent)
	}

	cols := 1
	switch {
	case len(tiles) >= 5:
		cols = 3
	case len(tiles) >= 2:
		cols = 2
	}
	rows := (len(tiles) + cols - 1) / cols
	cellDim := opts.MaxDim / cols
	if cellDim < 1 {
		cellDim = 1
	}

	canvas := imaging.New(cellDim*cols, cellDim*rows, image.Transparent)
	for i, t := range tiles {
		thumb := imaging.Fit(t, cellDim, cellDim, imaging.Lanczos)
		x := (i % cols) * cellDim
		y := (i / cols) * cellDim
		canvas = imaging.Paste(canvas, thumb, image.Pt(x, y))
	}
	return canvas
}

// EncodeSnapshot writes img as JPEG at the given quality, falling back
// to PNG if JPEG encoding fails (spec.md §4.5 step 3).
func EncodeSnapshot(w io.Writer, img image.Image, quality int) (format string, err error) {
	if jerr := jpeg.Encode(w, img, &jpeg.Options{Quality: quality}); jerr == nil {
		return "jpeg", nil
	}
	if perr := png.Encode(w, img); perr != nil {
		return "", fmt.Errorf("imagecache: encode snapshot: %w", perr)
	}
	return "png", nil
}

// SavePNG writes img as a PNG to dstPath, creating any missing parent
// directories. Exported for callers outside this package that need to
// persist a locally-produced image without a round trip through the
// engine (spec.md §4.3 Crop:Square).
func SavePNG(img image.Image, dstPath string) error {
	return savePNG(img, dstPath)
}

func savePNG(img image.Image, dstPath string) error {
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return fmt.Errorf("imagecache: mkdir for %s: %w", dstPath, err)
	}
	f, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("imagecache: create %s: %w", dstPath, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("imagecache: encode %s: %w", dstPath, err)
	}
	return nil
}
