package vision

import (
	"image"
	"math"

	"gocv.io/x/gocv"
)

const epsilon = 1e-6

// HSVBand is an inclusive OpenCV HSV range (H in 0-179).
type HSVBand struct {
	Lower [3]float64
	Upper [3]float64
}

// LeafDetectorOptions configures foliage segmentation.
type LeafDetectorOptions struct {
	Bands      []HSVBand
	KernelSize int // square structuring element for close/open
}

// DefaultLeafDetectorOptions covers dark-to-bright and light-to-medium greens.
func DefaultLeafDetectorOptions() LeafDetectorOptions {
	return LeafDetectorOptions{
		Bands: []HSVBand{
			{Lower: [3]float64{35, 50, 50}, Upper: [3]float64{85, 255, 255}},
			{Lower: [3]float64{25, 40, 40}, Upper: [3]float64{35, 255, 255}},
		},
		KernelSize: 5,
	}
}

// LeafDetector segments foliage-colored pixels and describes the largest region.
type LeafDetector struct {
	opts LeafDetectorOptions
}

// NewLeafDetector creates a detector. Missing options fall back to the defaults.
func NewLeafDetector(opts LeafDetectorOptions) *LeafDetector {
	def := DefaultLeafDetectorOptions()
	if len(opts.Bands) == 0 {
		opts.Bands = def.Bands
	}
	if opts.KernelSize <= 0 {
		opts.KernelSize = def.KernelSize
	}
	return &LeafDetector{opts: opts}
}

// Segment returns the denoised foliage mask of a BGR roi. The caller owns the result.
func (d *LeafDetector) Segment(roi gocv.Mat) gocv.Mat {
	mask := gocv.NewMat()
	if roi.Empty() {
		return mask
	}

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(roi, &hsv, gocv.ColorBGRToHSV)

	band := gocv.NewMat()
	defer band.Close()
	for i, b := range d.opts.Bands {
		lower := gocv.NewScalar(b.Lower[0], b.Lower[1], b.Lower[2], 0)
		upper := gocv.NewScalar(b.Upper[0], b.Upper[1], b.Upper[2], 0)
		if i == 0 {
			gocv.InRangeWithScalar(hsv, lower, upper, &mask)
			continue
		}
		gocv.InRangeWithScalar(hsv, lower, upper, &band)
		gocv.BitwiseOr(mask, band, &mask)
	}

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(d.opts.KernelSize, d.opts.KernelSize))
	defer kernel.Close()

	// Wypełnij dziury, potem usuń szum
	gocv.MorphologyEx(mask, &mask, gocv.MorphClose, kernel)
	gocv.MorphologyEx(mask, &mask, gocv.MorphOpen, kernel)

	return mask
}

// Detect returns the descriptors of the largest foliage region, or nil if the
// mask has no contours.
func (d *LeafDetector) Detect(roi gocv.Mat) *Candidate {
	mask := d.Segment(roi)
	defer mask.Close()
	if mask.Empty() {
		return nil
	}
	return describeLargest(mask)
}

// describeLargest computes Candidate descriptors for the max-area external contour of mask.
func describeLargest(mask gocv.Mat) *Candidate {
	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	if contours.Size() == 0 {
		return nil
	}

	best := 0
	bestArea := -1.0
	for i := 0; i < contours.Size(); i++ {
		if area := gocv.ContourArea(contours.At(i)); area > bestArea {
			best, bestArea = i, area
		}
	}
	contour := contours.At(best)

	hull := gocv.NewMat()
	defer hull.Close()
	gocv.ConvexHull(contour, &hull, true, true)
	hullPoints := gocv.NewPointVectorFromMat(hull)
	defer hullPoints.Close()
	hullArea := gocv.ContourArea(hullPoints)

	box := gocv.BoundingRect(contour)
	aspect := 0.0
	if box.Dy() > 0 {
		aspect = float64(box.Dx()) / float64(box.Dy())
	}

	perimeter := gocv.ArcLength(contour, true)
	roiArea := float64(mask.Rows() * mask.Cols())

	return &Candidate{
		Area:        bestArea,
		HullArea:    hullArea,
		Solidity:    bestArea / (hullArea + epsilon),
		Box:         box,
		AspectRatio: aspect,
		Perimeter:   perimeter,
		Circularity: 4 * math.Pi * bestArea / (perimeter*perimeter + epsilon),
		GreenRatio:  float64(gocv.CountNonZero(mask)) / math.Max(roiArea, 1),
		ROIArea:     roiArea,
	}
}
