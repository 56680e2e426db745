package session

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"plantdoctor/internal/logger"
	"plantdoctor/internal/services/ai"
	"plantdoctor/internal/vision"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

// fakeSource yields frames frames (forever when negative) and advances the
// clock by step on every read.
type fakeSource struct {
	frame  gocv.Mat
	frames int
	clock  *fakeClock
	step   time.Duration
	reads  int
	closes int
}

func newFakeSource(t *testing.T, frames int, clock *fakeClock, step time.Duration) *fakeSource {
	t.Helper()

	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { frame.Close() })
	return &fakeSource{frame: frame, frames: frames, clock: clock, step: step}
}

func (s *fakeSource) Read(dst *gocv.Mat) bool {
	if s.frames >= 0 && s.reads >= s.frames {
		return false
	}
	s.reads++
	s.clock.t = s.clock.t.Add(s.step)
	s.frame.CopyTo(dst)
	return true
}

func (s *fakeSource) Close() error {
	s.closes++
	return nil
}

type fakeDisplay struct {
	shows  int
	keys   []int
	polls  int
	holds  []time.Duration
	ended  []State
	closes int
}

func (d *fakeDisplay) Show(gocv.Mat) { d.shows++ }

func (d *fakeDisplay) PollKey() int {
	d.polls++
	if len(d.keys) == 0 {
		return -1
	}
	k := d.keys[0]
	d.keys = d.keys[1:]
	return k
}

func (d *fakeDisplay) Hold(dur time.Duration) { d.holds = append(d.holds, dur) }
func (d *fakeDisplay) SessionEnded(s State)   { d.ended = append(d.ended, s) }

func (d *fakeDisplay) Close() error {
	d.closes++
	return nil
}

type fixedDetector struct {
	candidates []*vision.Candidate
	calls      int
}

// Detect returns the scripted candidates in order, repeating the last one.
func (d *fixedDetector) Detect(gocv.Mat) *vision.Candidate {
	d.calls++
	if len(d.candidates) == 0 {
		return nil
	}
	i := d.calls - 1
	if i >= len(d.candidates) {
		i = len(d.candidates) - 1
	}
	return d.candidates[i]
}

type fixedFaces struct {
	count int
	calls int
}

func (f *fixedFaces) Count(gocv.Mat) int {
	f.calls++
	return f.count
}

type fakeClassifier struct {
	pred   ai.Prediction
	err    error
	calls  int
	orders []ai.ColorOrder
}

func (c *fakeClassifier) Classify(_ gocv.Mat, order ai.ColorOrder) (ai.Prediction, error) {
	c.calls++
	c.orders = append(c.orders, order)
	return c.pred, c.err
}

func (c *fakeClassifier) Labels() []string { return []string{c.pred.Label} }
func (c *fakeClassifier) Close() error     { return nil }

type fakeRecorder struct {
	records []ai.Prediction
}

func (r *fakeRecorder) Record(_ context.Context, _ gocv.Mat, pred ai.Prediction, _ string) error {
	r.records = append(r.records, pred)
	return nil
}

type failingTranslator struct{}

func (failingTranslator) Translate(context.Context, string) (string, error) {
	return "", errors.New("offline")
}

func leafCandidate() *vision.Candidate {
	return &vision.Candidate{
		Area:        20000,
		HullArea:    26666,
		Solidity:    0.75,
		Box:         image.Rect(20, 20, 170, 120),
		AspectRatio: 1.5,
		Perimeter:   700,
		Circularity: 0.5,
		GreenRatio:  0.35,
		ROIArea:     57600,
	}
}

type harness struct {
	clock      *fakeClock
	source     *fakeSource
	display    *fakeDisplay
	detector   *fixedDetector
	faces      *fixedFaces
	classifier *fakeClassifier
	recorder   *fakeRecorder
}

func newHarness(t *testing.T, frames int, step time.Duration) *harness {
	t.Helper()

	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	return &harness{
		clock:      clock,
		source:     newFakeSource(t, frames, clock, step),
		display:    &fakeDisplay{},
		detector:   &fixedDetector{},
		faces:      &fixedFaces{},
		classifier: &fakeClassifier{pred: ai.Prediction{Index: 0, Label: "Healthy", Confidence: 0.95}},
		recorder:   &fakeRecorder{},
	}
}

func (h *harness) controller(t *testing.T) *Controller {
	t.Helper()

	c, err := NewController(DefaultOptions(), Deps{
		Source:     h.source,
		Display:    h.display,
		Detector:   h.detector,
		Faces:      h.faces,
		Gate:       vision.NewGate(vision.DefaultGateConfig()),
		Classifier: h.classifier,
		Translator: failingTranslator{},
		Recorder:   h.recorder,
		Logger:     logger.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}
	c.now = h.clock.now
	return c
}

func (h *harness) assertReleasedOnce(t *testing.T, state State) {
	t.Helper()

	if h.source.closes != 1 {
		t.Errorf("Expected source closed once, got %d", h.source.closes)
	}
	if h.display.closes != 1 {
		t.Errorf("Expected display closed once, got %d", h.display.closes)
	}
	if len(h.display.ended) != 1 || h.display.ended[0] != state {
		t.Errorf("Expected display notified of %s once, got %v", state, h.display.ended)
	}
}

func TestConfident(t *testing.T) {
	tests := []struct {
		confidence float64
		expected   bool
	}{
		{0.70, false},
		{0.70001, true},
		{0.69, false},
		{0.95, true},
		{0, false},
	}

	for _, tt := range tests {
		if got := Confident(tt.confidence, 0.7); got != tt.expected {
			t.Errorf("Confident(%v, 0.7) = %v, expected %v", tt.confidence, got, tt.expected)
		}
	}
}

func TestController_TimesOutWithoutLeaf(t *testing.T) {
	h := newHarness(t, -1, time.Second)

	result, err := h.controller(t).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.State != TimedOut {
		t.Fatalf("Expected TimedOut, got %s", result.State)
	}
	// 15s is not enough, the deadline is exclusive
	if result.Frames != 16 {
		t.Errorf("Expected timeout on frame 16, got %d", result.Frames)
	}
	if result.Elapsed != 16*time.Second {
		t.Errorf("Expected 16s elapsed, got %s", result.Elapsed)
	}
	if h.classifier.calls != 0 {
		t.Errorf("Classifier should not run, got %d calls", h.classifier.calls)
	}
	h.assertReleasedOnce(t, TimedOut)
}

func TestController_ConfidenceAtThresholdKeepsRunning(t *testing.T) {
	h := newHarness(t, 3, 20*time.Second)
	h.detector.candidates = []*vision.Candidate{leafCandidate()}
	h.classifier.pred = ai.Prediction{Label: "Tomato_Early_blight", Confidence: 0.70}

	result, err := h.controller(t).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// leaf was seen, so the 20s steps never trigger the timeout
	if result.State != StreamEnded {
		t.Fatalf("Expected StreamEnded, got %s", result.State)
	}
	if h.classifier.calls != 3 {
		t.Errorf("Expected 3 classifications, got %d", h.classifier.calls)
	}
	if len(h.display.holds) != 0 {
		t.Errorf("Expected no result hold, got %v", h.display.holds)
	}
	if len(h.recorder.records) != 0 {
		t.Errorf("Expected nothing recorded, got %d", len(h.recorder.records))
	}
	h.assertReleasedOnce(t, StreamEnded)
}

func TestController_ConfidentPredictionSucceeds(t *testing.T) {
	h := newHarness(t, -1, 100*time.Millisecond)
	h.detector.candidates = []*vision.Candidate{nil, nil, leafCandidate()}
	h.classifier.pred = ai.Prediction{Index: 3, Label: "Healthy", Confidence: 0.70001}

	result, err := h.controller(t).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.State != Success {
		t.Fatalf("Expected Success, got %s", result.State)
	}
	if result.Frames != 3 {
		t.Errorf("Expected success on frame 3, got %d", result.Frames)
	}
	if result.Prediction.Label != "Healthy" || result.Prediction.Index != 3 {
		t.Errorf("Unexpected prediction %+v", result.Prediction)
	}
	// translator is offline, label passes through
	if result.TranslatedLabel != "Healthy" {
		t.Errorf("Expected fallback label Healthy, got %q", result.TranslatedLabel)
	}
	if len(h.display.holds) != 1 || h.display.holds[0] != 3*time.Second {
		t.Errorf("Expected one 3s hold, got %v", h.display.holds)
	}
	if len(h.recorder.records) != 1 {
		t.Errorf("Expected one recorded prediction, got %d", len(h.recorder.records))
	}
	h.assertReleasedOnce(t, Success)
}

func TestController_CameraFramesStayBGR(t *testing.T) {
	h := newHarness(t, -1, 100*time.Millisecond)
	h.detector.candidates = []*vision.Candidate{leafCandidate()}
	h.classifier.pred = ai.Prediction{Label: "Healthy", Confidence: 0.9}

	if _, err := h.controller(t).Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(h.classifier.orders) != 1 || h.classifier.orders[0] != ai.KeepBGR {
		t.Errorf("Expected one BGR classification, got %v", h.classifier.orders)
	}
}

func TestController_FaceSkipsRestOfTick(t *testing.T) {
	h := newHarness(t, 4, 10*time.Second)
	h.detector.candidates = []*vision.Candidate{leafCandidate()}
	h.faces.count = 1
	h.display.keys = []int{'q', 'q', 'q', 'q'}

	result, err := h.controller(t).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// 40s pass and 'q' is queued, but face ticks check neither
	if result.State != StreamEnded {
		t.Fatalf("Expected StreamEnded, got %s", result.State)
	}
	if h.classifier.calls != 0 {
		t.Errorf("Classifier should not run on face frames, got %d calls", h.classifier.calls)
	}
	if h.display.shows != 4 {
		t.Errorf("Expected every face frame shown, got %d", h.display.shows)
	}
	if h.display.polls != 0 {
		t.Errorf("Expected no key polls, got %d", h.display.polls)
	}
	h.assertReleasedOnce(t, StreamEnded)
}

func TestController_FaceCheckOnlyWithCandidate(t *testing.T) {
	h := newHarness(t, 5, time.Millisecond)

	if _, err := h.controller(t).Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if h.faces.calls != 0 {
		t.Errorf("Expected no face detection without a candidate, got %d", h.faces.calls)
	}
}

func TestController_QuitKey(t *testing.T) {
	h := newHarness(t, -1, time.Millisecond)
	// WaitKey may set modifier bits above the low byte
	h.display.keys = []int{-1, 'x', 'q' | 0x100000}

	result, err := h.controller(t).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.State != UserQuit {
		t.Fatalf("Expected UserQuit, got %s", result.State)
	}
	if result.Frames != 3 {
		t.Errorf("Expected quit on frame 3, got %d", result.Frames)
	}
	h.assertReleasedOnce(t, UserQuit)
}

func TestController_StreamEndsImmediately(t *testing.T) {
	h := newHarness(t, 0, time.Second)

	result, err := h.controller(t).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.State != StreamEnded || result.Frames != 0 {
		t.Errorf("Expected StreamEnded after 0 frames, got %s after %d", result.State, result.Frames)
	}
	h.assertReleasedOnce(t, StreamEnded)
}

func TestController_ContextCancelled(t *testing.T) {
	h := newHarness(t, -1, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := h.controller(t).Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.State != UserQuit {
		t.Errorf("Expected UserQuit, got %s", result.State)
	}
	h.assertReleasedOnce(t, UserQuit)
}

func TestController_LowConfidenceDoesNotRestartTimer(t *testing.T) {
	h := newHarness(t, 6, 10*time.Second)
	h.detector.candidates = []*vision.Candidate{leafCandidate(), nil}
	h.classifier.pred = ai.Prediction{Label: "Healthy", Confidence: 0.4}

	result, err := h.controller(t).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.State != StreamEnded {
		t.Errorf("Expected StreamEnded once a leaf was seen, got %s", result.State)
	}
	if h.classifier.calls != 1 {
		t.Errorf("Expected 1 classification, got %d", h.classifier.calls)
	}
}

func TestController_ClassifierErrorContinues(t *testing.T) {
	h := newHarness(t, 3, time.Second)
	h.detector.candidates = []*vision.Candidate{leafCandidate()}
	h.classifier.err = errors.New("forward failed")

	result, err := h.controller(t).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.State != StreamEnded {
		t.Errorf("Expected StreamEnded, got %s", result.State)
	}
	if h.classifier.calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", h.classifier.calls)
	}
}

func TestController_RunTwice(t *testing.T) {
	h := newHarness(t, 0, time.Second)
	c := h.controller(t)

	if _, err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if _, err := c.Run(context.Background()); err == nil {
		t.Error("Expected error on second Run")
	}
	h.assertReleasedOnce(t, StreamEnded)
}

func TestNewController_MissingDeps(t *testing.T) {
	if _, err := NewController(DefaultOptions(), Deps{}); err == nil {
		t.Error("Expected error for missing dependencies")
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		Running:     "running",
		Success:     "success",
		TimedOut:    "timed-out",
		UserQuit:    "user-quit",
		StreamEnded: "stream-ended",
		State(42):   "unknown",
	}
	for s, expected := range tests {
		if s.String() != expected {
			t.Errorf("State(%d).String() = %q, expected %q", int(s), s.String(), expected)
		}
	}
}
