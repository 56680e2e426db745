// Package vision holds the per-frame leaf heuristics: region of interest,
// foliage segmentation, face veto and the acceptance gate.
package vision

import "image"

// ComputeROI returns the centered square region examined for a leaf.
// The side is half of the shorter frame dimension.
func ComputeROI(height, width int) image.Rectangle {
	size := min(height, width) / 2
	x1 := (width - size) / 2
	y1 := (height - size) / 2
	return image.Rect(x1, y1, x1+size, y1+size)
}
