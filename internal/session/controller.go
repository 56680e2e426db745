package session

import (
	"context"
	"errors"
	"time"

	"gocv.io/x/gocv"

	"plantdoctor/internal/logger"
	"plantdoctor/internal/services/ai"
	"plantdoctor/internal/services/translate"
	"plantdoctor/internal/vision"
)

// LeafDetector finds the dominant foliage-coloured region of an ROI.
type LeafDetector interface {
	Detect(roi gocv.Mat) *vision.Candidate
}

// FaceCounter counts face-like regions in an ROI.
type FaceCounter interface {
	Count(roi gocv.Mat) int
}

// Recorder persists a confident prediction together with the annotated frame.
type Recorder interface {
	Record(ctx context.Context, frame gocv.Mat, pred ai.Prediction, translated string) error
}

type Options struct {
	Timeout             time.Duration
	ConfidenceThreshold float64
	ResultHold          time.Duration
	QuitKey             int
	Instruction         string
}

func DefaultOptions() Options {
	return Options{
		Timeout:             15 * time.Second,
		ConfidenceThreshold: 0.7,
		ResultHold:          3 * time.Second,
		QuitKey:             'q',
		Instruction:         "Place leaf inside square",
	}
}

// Deps are the collaborators of a session. Source and Display are owned by
// the controller and closed when Run returns. Recorder may be nil.
type Deps struct {
	Source     FrameSource
	Display    Display
	Detector   LeafDetector
	Faces      FaceCounter
	Gate       vision.Gate
	Classifier ai.Classifier
	Translator translate.Translator
	Recorder   Recorder
	Logger     *logger.Logger
}

// Controller runs one camera session.
type Controller struct {
	opts Options
	deps Deps
	now  func() time.Time

	released bool
}

func NewController(opts Options, deps Deps) (*Controller, error) {
	if deps.Source == nil || deps.Display == nil {
		return nil, errors.New("session needs a frame source and a display")
	}
	if deps.Detector == nil || deps.Faces == nil || deps.Classifier == nil {
		return nil, errors.New("session needs a detector, a face counter and a classifier")
	}

	defaults := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.ConfidenceThreshold <= 0 {
		opts.ConfidenceThreshold = defaults.ConfidenceThreshold
	}
	if opts.ResultHold < 0 {
		opts.ResultHold = 0
	}
	if opts.QuitKey == 0 {
		opts.QuitKey = defaults.QuitKey
	}
	if opts.Instruction == "" {
		opts.Instruction = defaults.Instruction
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}

	return &Controller{opts: opts, deps: deps, now: time.Now}, nil
}

// tracking is the per-session mutable state.
type tracking struct {
	start        time.Time
	leafDetected bool
	frames       int
}

// Run drives the session until a terminal state. Source and display are
// released exactly once whichever way the loop ends.
func (c *Controller) Run(ctx context.Context) (result Result, err error) {
	if c.released {
		return Result{}, errors.New("session already finished")
	}

	st := &tracking{start: c.now()}
	defer func() {
		result.Frames = st.frames
		result.Elapsed = c.now().Sub(st.start)
		c.release(result.State)
	}()

	frame := gocv.NewMat()
	defer frame.Close()

	c.deps.Logger.Info("📷 Starting camera session - place leaf inside the square")

	for {
		if ctx.Err() != nil {
			c.deps.Logger.Info("Session cancelled")
			return Result{State: UserQuit}, nil
		}

		if !c.deps.Source.Read(&frame) || frame.Empty() {
			c.deps.Logger.Info("Frame source exhausted after %d frames", st.frames)
			return Result{State: StreamEnded}, nil
		}
		st.frames++

		if res, done := c.tick(ctx, &frame, st); done {
			return res, nil
		}
	}
}

// tick processes one frame. It returns done=true with the terminal result.
func (c *Controller) tick(ctx context.Context, frame *gocv.Mat, st *tracking) (Result, bool) {
	roiRect := vision.ComputeROI(frame.Rows(), frame.Cols())

	// ROI kopiujemy przed rysowaniem, żeby ramka nie trafiła do maski
	region := frame.Region(roiRect)
	roi := region.Clone()
	region.Close()
	defer roi.Close()

	drawGuide(frame, roiRect, c.opts.Instruction)

	verdict, candidate := c.evaluate(roi)
	c.deps.Logger.Debug("frame %d: %s", st.frames, verdict)

	switch verdict {
	case vision.FaceDetected:
		drawFaceWarning(frame)
		c.deps.Display.Show(*frame)
		return Result{}, false

	case vision.AcceptedLeaf:
		st.leafDetected = true
		drawTracking(frame, candidate.Box.Add(roiRect.Min))

		if res, ok := c.classify(ctx, frame, roi); ok {
			return res, true
		}
	}

	c.deps.Display.Show(*frame)

	if !st.leafDetected && c.now().Sub(st.start) > c.opts.Timeout {
		c.deps.Logger.Warning("⏱️ No leaf detected within %s - closing camera", c.opts.Timeout)
		return Result{State: TimedOut}, true
	}

	if key := c.deps.Display.PollKey(); key >= 0 && key&0xFF == c.opts.QuitKey {
		c.deps.Logger.Info("Quit requested")
		return Result{State: UserQuit}, true
	}

	return Result{}, false
}

func (c *Controller) evaluate(roi gocv.Mat) (vision.Verdict, *vision.Candidate) {
	candidate := c.deps.Detector.Detect(roi)
	if candidate == nil {
		return vision.NoCandidate, nil
	}

	// Detekcja twarzy tylko gdy jest kandydat
	faces := c.deps.Faces.Count(roi)
	verdict := c.deps.Gate.Evaluate(candidate, faces)
	if verdict == vision.RejectedByShape {
		c.deps.Logger.Debug("candidate rejected: %s", c.deps.Gate.Reason(candidate))
	}
	return verdict, candidate
}

// classify runs the classifier on an accepted ROI. It returns ok=true only
// for a confident prediction, after the result has been shown and held.
func (c *Controller) classify(ctx context.Context, frame *gocv.Mat, roi gocv.Mat) (Result, bool) {
	// Klatki z kamery idą do modelu w BGR, bez zamiany kanałów
	pred, err := c.deps.Classifier.Classify(roi, ai.KeepBGR)
	if err != nil {
		c.deps.Logger.Error("Classification failed: %v", err)
		return Result{}, false
	}

	translated := translate.Label(ctx, c.deps.Translator, pred.Label, c.deps.Logger)

	if !Confident(pred.Confidence, c.opts.ConfidenceThreshold) {
		drawLowConfidence(frame)
		c.deps.Logger.Warning("⚠️ Low confidence (%.1f%%) - detection may be unreliable", pred.Confidence*100)
		return Result{}, false
	}

	c.deps.Logger.Info("🌿 Plant disease detection complete: %s (%.2f%%)", translated, pred.Confidence*100)

	drawResult(frame, translated, pred.Confidence)
	c.deps.Display.Show(*frame)

	if c.deps.Recorder != nil {
		if err := c.deps.Recorder.Record(ctx, *frame, pred, translated); err != nil {
			c.deps.Logger.Error("Failed to record prediction: %v", err)
		}
	}

	c.deps.Display.Hold(c.opts.ResultHold)

	return Result{State: Success, Prediction: pred, TranslatedLabel: translated}, true
}

func (c *Controller) release(state State) {
	if c.released {
		return
	}
	c.released = true

	if err := c.deps.Source.Close(); err != nil {
		c.deps.Logger.Warning("Failed to close frame source: %v", err)
	}
	if o, ok := c.deps.Display.(SessionObserver); ok {
		o.SessionEnded(state)
	}
	if err := c.deps.Display.Close(); err != nil {
		c.deps.Logger.Warning("Failed to close display: %v", err)
	}
	c.deps.Logger.Info("Session ended: %s", state)
}

// Compile-time checks for the production collaborators.
var (
	_ LeafDetector = (*vision.LeafDetector)(nil)
	_ FaceCounter  = (*vision.FaceRejector)(nil)
	_ FrameSource  = (*CameraSource)(nil)
	_ Display      = (*WindowDisplay)(nil)
	_ Display      = HeadlessDisplay{}
	_ Display      = (*PreviewDisplay)(nil)
	_ Display      = (*TeeDisplay)(nil)
)
