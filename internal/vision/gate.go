package vision

import (
	"fmt"
	"image"
)

// Verdict is the per-frame outcome of leaf detection.
type Verdict int

const (
	NoCandidate Verdict = iota
	FaceDetected
	RejectedByShape
	AcceptedLeaf
)

func (v Verdict) String() string {
	switch v {
	case NoCandidate:
		return "no-candidate"
	case FaceDetected:
		return "face-detected"
	case RejectedByShape:
		return "rejected-by-shape"
	case AcceptedLeaf:
		return "accepted-leaf"
	default:
		return "unknown"
	}
}

// Candidate describes the largest foliage-colored region of an ROI.
type Candidate struct {
	Area        float64
	HullArea    float64
	Solidity    float64
	Box         image.Rectangle // relative to the ROI
	AspectRatio float64
	Perimeter   float64
	Circularity float64
	GreenRatio  float64
	ROIArea     float64
}

// GateConfig holds the acceptance thresholds. All bounds are exclusive.
type GateConfig struct {
	MinArea         float64
	MinAreaFraction float64 // when > 0, replaces MinArea with a fraction of the ROI area
	MaxAreaFraction float64
	MinGreenRatio   float64
	MinSolidity     float64
	MaxSolidity     float64
	MinAspectRatio  float64
	MaxAspectRatio  float64
	MaxCircularity  float64
}

// DefaultGateConfig returns the thresholds tuned for a 640x480 camera.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		MinArea:         12000,
		MaxAreaFraction: 0.8,
		MinGreenRatio:   0.25,
		MinSolidity:     0.5,
		MaxSolidity:     1.0,
		MinAspectRatio:  0.3,
		MaxAspectRatio:  3.0,
		MaxCircularity:  0.8,
	}
}

// Gate decides whether a candidate is a leaf worth classifying.
type Gate struct {
	cfg GateConfig
}

// NewGate creates a gate with the given thresholds.
func NewGate(cfg GateConfig) Gate {
	return Gate{cfg: cfg}
}

// Config returns the thresholds in use.
func (g Gate) Config() GateConfig {
	return g.cfg
}

// Evaluate combines shape descriptors and the face count into a verdict.
// Any detected face vetoes the candidate regardless of its shape.
func (g Gate) Evaluate(c *Candidate, faces int) Verdict {
	if c == nil {
		return NoCandidate
	}
	if faces > 0 {
		return FaceDetected
	}
	if g.Reason(c) != "" {
		return RejectedByShape
	}
	return AcceptedLeaf
}

// Reason names the first shape predicate the candidate fails, or "" if it passes all of them.
func (g Gate) Reason(c *Candidate) string {
	minArea := g.cfg.MinArea
	if g.cfg.MinAreaFraction > 0 {
		minArea = g.cfg.MinAreaFraction * c.ROIArea
	}

	switch {
	case c.Area <= minArea:
		return fmt.Sprintf("area %.0f <= %.0f", c.Area, minArea)
	case c.GreenRatio <= g.cfg.MinGreenRatio:
		return fmt.Sprintf("green ratio %.2f <= %.2f", c.GreenRatio, g.cfg.MinGreenRatio)
	case c.Solidity <= g.cfg.MinSolidity || c.Solidity >= g.cfg.MaxSolidity:
		return fmt.Sprintf("solidity %.2f outside (%.2f, %.2f)", c.Solidity, g.cfg.MinSolidity, g.cfg.MaxSolidity)
	case c.AspectRatio <= g.cfg.MinAspectRatio || c.AspectRatio >= g.cfg.MaxAspectRatio:
		return fmt.Sprintf("aspect ratio %.2f outside (%.2f, %.2f)", c.AspectRatio, g.cfg.MinAspectRatio, g.cfg.MaxAspectRatio)
	case c.Circularity >= g.cfg.MaxCircularity:
		return fmt.Sprintf("circularity %.2f >= %.2f", c.Circularity, g.cfg.MaxCircularity)
	case c.Area >= g.cfg.MaxAreaFraction*c.ROIArea:
		return fmt.Sprintf("area %.0f >= %.0f%% of roi", c.Area, g.cfg.MaxAreaFraction*100)
	}
	return ""
}
