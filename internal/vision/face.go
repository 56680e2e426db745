package vision

import (
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"
)

const (
	faceScaleFactor  = 1.1
	faceMinNeighbors = 4
)

// FaceRejector counts frontal faces in an roi using a Haar cascade.
type FaceRejector struct {
	classifier gocv.CascadeClassifier
	loaded     bool
}

// NewFaceRejector loads the cascade at path. On failure the rejector still works
// in fallback mode (it never reports a face) and the error says why.
func NewFaceRejector(path string) (*FaceRejector, error) {
	r := &FaceRejector{classifier: gocv.NewCascadeClassifier()}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return r, fmt.Errorf("face cascade not found: %s", path)
	}
	if !r.classifier.Load(path) {
		return r, fmt.Errorf("failed to load face cascade: %s", path)
	}

	r.loaded = true
	return r, nil
}

// Enabled reports whether a cascade was loaded.
func (r *FaceRejector) Enabled() bool {
	return r.loaded
}

// Count returns the number of face-like regions in a BGR roi.
func (r *FaceRejector) Count(roi gocv.Mat) int {
	if !r.loaded || roi.Empty() {
		return 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(roi, &gray, gocv.ColorBGRToGray)

	faces := r.classifier.DetectMultiScaleWithParams(gray, faceScaleFactor, faceMinNeighbors, 0, image.Point{}, image.Point{})
	return len(faces)
}

// Close releases the cascade.
func (r *FaceRejector) Close() error {
	return r.classifier.Close()
}
