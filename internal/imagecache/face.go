package imagecache

import (
	"fmt"
	"image"
	"math"
	"os"

	pigo "github.com/esimov/pigo/core"
)

// FaceDetector wraps a pigo cascade classifier, grounded on the
// teacher's own face-detection use in carver.go (there: to protect
// faces from seam removal; here: to center Crop:Square on a face when
// one is present, per SPEC_FULL.md's §4.1 supplement). The cascade file
// is loaded from disk the same way the teacher's p.Classifier field
// does, rather than embedded, since no cascade binary ships in this
// module.
type FaceDetector struct {
	classifier *pigo.Pigo
}

// NewFaceDetector unpacks the cascade file at path. A nil detector
// (returned alongside a non-nil error) means callers should fall back
// to geometric centering, matching the teacher's graceful style.
func NewFaceDetector(cascadePath string) (*FaceDetector, error) {
	data, err := os.ReadFile(cascadePath)
	if err != nil {
		return nil, fmt.Errorf("imagecache: read cascade file: %w", err)
	}
	p := pigo.NewPigo()
	classifier, err := p.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("imagecache: unpack cascade file: %w", err)
	}
	return &FaceDetector{classifier: classifier}, nil
}

// BestFaceCenter returns the center of the highest-confidence detected
// face in img, or ok=false if none clears the detection threshold.
func (fd *FaceDetector) BestFaceCenter(img image.Image) (x, y int, ok bool) {
	b := img.Bounds()
	pixels := pigo.RgbToGrayscale(img)
	cols, rows := b.Dx(), b.Dy()

	cParams := pigo.CascadeParams{
		MinSize:     40,
		MaxSize:     int(math.Max(float64(cols), float64(rows))),
		ShiftFactor: 0.1,
		ScaleFactor: 1.1,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	faces := fd.classifier.RunCascade(cParams, 0.0)
	faces = fd.classifier.ClusterDetections(faces, 0.2)

	var best pigo.Detection
	found := false
	for _, f := range faces {
		if f.Q > 5.0 && (!found || f.Q > best.Q) {
			best, found = f, true
		}
	}
	if !found {
		return 0, 0, false
	}
	return best.Col, best.Row, true
}
