package vision

import (
	"image"
	"image/color"
	"testing"

	"gocv.io/x/gocv"
)

// leafShaped is an elongated, moderately solid, non-circular green blob in a 240x240 roi.
func leafShaped() *Candidate {
	return &Candidate{
		Area:        20000,
		HullArea:    26667,
		Solidity:    0.75,
		Box:         image.Rect(30, 60, 210, 180),
		AspectRatio: 1.5,
		Perimeter:   700,
		Circularity: 0.5,
		GreenRatio:  0.40,
		ROIArea:     240 * 240,
	}
}

func TestGate_AcceptsLeafShapedBlob(t *testing.T) {
	gate := NewGate(DefaultGateConfig())

	if v := gate.Evaluate(leafShaped(), 0); v != AcceptedLeaf {
		t.Errorf("Expected %v, got %v (reason: %s)", AcceptedLeaf, v, gate.Reason(leafShaped()))
	}
}

func TestGate_NoCandidate(t *testing.T) {
	gate := NewGate(DefaultGateConfig())

	if v := gate.Evaluate(nil, 0); v != NoCandidate {
		t.Errorf("Expected %v, got %v", NoCandidate, v)
	}
	if v := gate.Evaluate(nil, 3); v != NoCandidate {
		t.Errorf("Faces without a candidate should still be %v, got %v", NoCandidate, v)
	}
}

func TestGate_FaceVetoOverridesShape(t *testing.T) {
	gate := NewGate(DefaultGateConfig())

	for _, faces := range []int{1, 2, 10} {
		if v := gate.Evaluate(leafShaped(), faces); v != FaceDetected {
			t.Errorf("faces=%d: expected %v, got %v", faces, FaceDetected, v)
		}
	}
}

func TestGate_RejectsCircularSolidBlob(t *testing.T) {
	gate := NewGate(DefaultGateConfig())

	// Disc: passes green ratio and area, but circularity is too high.
	disc := &Candidate{
		Area:        31000,
		HullArea:    33000,
		Solidity:    0.94,
		Box:         image.Rect(20, 20, 220, 220),
		AspectRatio: 1.0,
		Perimeter:   628,
		Circularity: 0.99,
		GreenRatio:  0.55,
		ROIArea:     240 * 240,
	}
	if v := gate.Evaluate(disc, 0); v != RejectedByShape {
		t.Errorf("Expected %v, got %v", RejectedByShape, v)
	}

	// Exactly at the bound is rejected as well.
	disc.Solidity = 0.9
	disc.Circularity = 0.8
	if v := gate.Evaluate(disc, 0); v != RejectedByShape {
		t.Errorf("Circularity at the bound: expected %v, got %v", RejectedByShape, v)
	}
}

func TestGate_EachPredicateIsNecessary(t *testing.T) {
	gate := NewGate(DefaultGateConfig())

	tests := []struct {
		name   string
		mutate func(c *Candidate)
	}{
		{"small area", func(c *Candidate) { c.Area = 12000 }},
		{"low green ratio", func(c *Candidate) { c.GreenRatio = 0.25 }},
		{"low solidity", func(c *Candidate) { c.Solidity = 0.5 }},
		{"full solidity", func(c *Candidate) { c.Solidity = 1.0 }},
		{"too narrow", func(c *Candidate) { c.AspectRatio = 0.3 }},
		{"too wide", func(c *Candidate) { c.AspectRatio = 3.0 }},
		{"too circular", func(c *Candidate) { c.Circularity = 0.85 }},
		{"fills roi", func(c *Candidate) { c.Area = 0.8 * c.ROIArea }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := leafShaped()
			tt.mutate(c)

			if v := gate.Evaluate(c, 0); v != RejectedByShape {
				t.Errorf("Expected %v, got %v", RejectedByShape, v)
			}
			if gate.Reason(c) == "" {
				t.Error("Expected a rejection reason")
			}
		})
	}
}

func TestGate_RelativeMinArea(t *testing.T) {
	cfg := DefaultGateConfig()
	cfg.MinAreaFraction = 0.5

	c := leafShaped() // 20000 of 57600 px, below half the roi
	if v := NewGate(cfg).Evaluate(c, 0); v != RejectedByShape {
		t.Errorf("Expected %v with relative threshold, got %v", RejectedByShape, v)
	}

	cfg.MinAreaFraction = 0.2
	if v := NewGate(cfg).Evaluate(c, 0); v != AcceptedLeaf {
		t.Errorf("Expected %v with relative threshold, got %v", AcceptedLeaf, v)
	}
}

func TestVerdict_String(t *testing.T) {
	tests := map[Verdict]string{
		NoCandidate:     "no-candidate",
		FaceDetected:    "face-detected",
		RejectedByShape: "rejected-by-shape",
		AcceptedLeaf:    "accepted-leaf",
		Verdict(42):     "unknown",
	}
	for v, expected := range tests {
		if v.String() != expected {
			t.Errorf("Verdict(%d).String() = %q, expected %q", int(v), v.String(), expected)
		}
	}
}

func TestGate_RealGreenDiscIsRejectedByCircularity(t *testing.T) {
	roi := solidROI(t, 240, [3]float64{0, 0, 0})
	gocv.Circle(&roi, image.Pt(120, 120), 80, color.RGBA{G: 200, A: 255}, -1)

	candidate := NewLeafDetector(DefaultLeafDetectorOptions()).Detect(roi)
	if candidate == nil {
		t.Fatal("Expected a candidate for the disc")
	}
	if candidate.Circularity < 0.8 {
		t.Fatalf("Expected disc circularity >= 0.8, got %.3f", candidate.Circularity)
	}
	if candidate.GreenRatio <= 0.25 || candidate.Solidity <= 0.5 {
		t.Fatalf("Disc should pass green ratio and solidity, got %+v", candidate)
	}

	gate := NewGate(DefaultGateConfig())
	if v := gate.Evaluate(candidate, 0); v != RejectedByShape {
		t.Errorf("Expected RejectedByShape, got %s", v)
	}

	// Only the circularity bound separates the disc from a leaf
	relaxed := DefaultGateConfig()
	relaxed.MaxCircularity = 1.5
	relaxed.MaxSolidity = 1.01
	if v := NewGate(relaxed).Evaluate(candidate, 0); v != AcceptedLeaf {
		t.Errorf("Expected AcceptedLeaf without the circularity bound, got %s (%s)", v, NewGate(relaxed).Reason(candidate))
	}
}

func TestGate_ConfigRoundTrips(t *testing.T) {
	cfg := DefaultGateConfig()
	cfg.MinAreaFraction = 0.2
	if got := NewGate(cfg).Config(); got != cfg {
		t.Errorf("Expected %+v, got %+v", cfg, got)
	}
}

func TestFaceRejector_MissingCascadeFallsBack(t *testing.T) {
	r, err := NewFaceRejector("does/not/exist.xml")
	if err == nil {
		t.Fatal("Expected error for missing cascade")
	}
	defer r.Close()

	if r.Enabled() {
		t.Error("Expected rejector disabled without a cascade")
	}
	roi := solidROI(t, 64, [3]float64{120, 160, 220})
	if n := r.Count(roi); n != 0 {
		t.Errorf("Expected no faces in fallback mode, got %d", n)
	}
}
