package session

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

var (
	colorGuide   = color.RGBA{0, 255, 0, 0}
	colorFace    = color.RGBA{255, 0, 0, 0}
	colorLeaf    = color.RGBA{255, 255, 0, 0}
	colorWarning = color.RGBA{255, 165, 0, 0}
)

func drawGuide(frame *gocv.Mat, roi image.Rectangle, text string) {
	gocv.Rectangle(frame, roi, colorGuide, 2)
	gocv.PutText(frame, text, image.Pt(20, 40), gocv.FontHersheySimplex, 1, colorGuide, 2)
}

func drawFaceWarning(frame *gocv.Mat) {
	gocv.PutText(frame, "Face Detected - Not a Leaf", image.Pt(20, 80), gocv.FontHersheySimplex, 0.8, colorFace, 2)
}

// drawTracking marks the accepted leaf; box is in frame coordinates.
func drawTracking(frame *gocv.Mat, box image.Rectangle) {
	gocv.Rectangle(frame, box, colorLeaf, 2)
	gocv.PutText(frame, "Leaf Detected", image.Pt(box.Min.X, box.Min.Y-10), gocv.FontHersheySimplex, 0.8, colorLeaf, 2)
}

func drawResult(frame *gocv.Mat, label string, confidence float64) {
	gocv.PutText(frame, "Result: "+label, image.Pt(20, 120), gocv.FontHersheySimplex, 1, colorGuide, 2)
	gocv.PutText(frame, fmt.Sprintf("Confidence: %.1f%%", confidence*100), image.Pt(20, 160), gocv.FontHersheySimplex, 1, colorGuide, 2)
}

func drawLowConfidence(frame *gocv.Mat) {
	gocv.PutText(frame, "Low Confidence - Try Again", image.Pt(20, 120), gocv.FontHersheySimplex, 0.8, colorWarning, 2)
}
