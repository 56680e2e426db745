package session

import (
	"time"

	"plantdoctor/internal/services/ai"
)

// State is the controller state. Everything except Running is terminal.
type State int

const (
	Running State = iota
	Success
	TimedOut
	UserQuit
	StreamEnded
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Success:
		return "success"
	case TimedOut:
		return "timed-out"
	case UserQuit:
		return "user-quit"
	case StreamEnded:
		return "stream-ended"
	default:
		return "unknown"
	}
}

// Result describes how a session ended.
type Result struct {
	State State
	// Prediction and TranslatedLabel are set only on Success.
	Prediction      ai.Prediction
	TranslatedLabel string
	Frames          int
	Elapsed         time.Duration
}

// Confident reports whether a prediction ends the session.
// The comparison is strict: a confidence equal to threshold is a retry.
func Confident(confidence, threshold float64) bool {
	return confidence > threshold
}
