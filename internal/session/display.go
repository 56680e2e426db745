package session

import (
	"errors"
	"time"

	"gocv.io/x/gocv"

	"plantdoctor/internal/logger"
)

// WindowTitle is the title of the live camera window.
const WindowTitle = "Plant Disease Detection - Live"

// Display presents annotated frames and reports key presses.
type Display interface {
	Show(frame gocv.Mat)
	// PollKey returns the last key pressed since the previous call, or -1.
	PollKey() int
	// Hold keeps the last shown frame on screen for d. It is not interruptible.
	Hold(d time.Duration)
	Close() error
}

// SessionObserver is implemented by displays that want the final state.
type SessionObserver interface {
	SessionEnded(state State)
}

// WindowDisplay renders frames in a HighGUI window.
type WindowDisplay struct {
	window *gocv.Window
	key    int
}

func NewWindowDisplay(title string) *WindowDisplay {
	return &WindowDisplay{window: gocv.NewWindow(title), key: -1}
}

func (w *WindowDisplay) Show(frame gocv.Mat) {
	w.window.IMShow(frame)
	if k := w.window.WaitKey(1); k >= 0 {
		w.key = k
	}
}

func (w *WindowDisplay) PollKey() int {
	k := w.key
	w.key = -1
	return k
}

func (w *WindowDisplay) Hold(d time.Duration) {
	// WaitKey pumps GUI events; a key press must not cut the hold short.
	deadline := time.Now().Add(d)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}
		ms := int(remaining / time.Millisecond)
		if ms < 1 {
			ms = 1
		}
		w.window.WaitKey(ms)
	}
}

func (w *WindowDisplay) Close() error {
	return w.window.Close()
}

// HeadlessDisplay discards frames. Used when no window and no preview are wanted.
type HeadlessDisplay struct{}

func (HeadlessDisplay) Show(gocv.Mat)        {}
func (HeadlessDisplay) PollKey() int         { return -1 }
func (HeadlessDisplay) Hold(d time.Duration) { time.Sleep(d) }
func (HeadlessDisplay) Close() error         { return nil }

// Publisher fans encoded frames out to remote viewers and collects their keys.
// The jpeg slice is only valid for the duration of Publish.
type Publisher interface {
	Publish(state string, jpeg []byte)
	PollKey() int
}

// PreviewDisplay streams JPEG frames to a Publisher.
type PreviewDisplay struct {
	pub    Publisher
	logger *logger.Logger
	last   []byte
}

func NewPreviewDisplay(pub Publisher, log *logger.Logger) *PreviewDisplay {
	return &PreviewDisplay{pub: pub, logger: log}
}

func (p *PreviewDisplay) Show(frame gocv.Mat) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame)
	if err != nil {
		p.logger.Error("Failed to encode preview frame: %v", err)
		return
	}
	defer buf.Close()

	p.last = append(p.last[:0], buf.GetBytes()...)
	p.pub.Publish(Running.String(), p.last)
}

func (p *PreviewDisplay) PollKey() int {
	return p.pub.PollKey()
}

func (p *PreviewDisplay) Hold(d time.Duration) {
	time.Sleep(d)
}

func (p *PreviewDisplay) SessionEnded(state State) {
	p.pub.Publish(state.String(), p.last)
}

func (p *PreviewDisplay) Close() error {
	return nil
}

// TeeDisplay shows every frame on all displays. Keys come from whichever
// display reports one first; Hold is delegated to the first display only.
type TeeDisplay struct {
	displays []Display
}

func NewTeeDisplay(displays ...Display) *TeeDisplay {
	return &TeeDisplay{displays: displays}
}

func (t *TeeDisplay) Show(frame gocv.Mat) {
	for _, d := range t.displays {
		d.Show(frame)
	}
}

func (t *TeeDisplay) PollKey() int {
	key := -1
	for _, d := range t.displays {
		// Every display is polled so no stale key survives into the next tick.
		if k := d.PollKey(); k >= 0 && key < 0 {
			key = k
		}
	}
	return key
}

func (t *TeeDisplay) Hold(d time.Duration) {
	if len(t.displays) == 0 {
		time.Sleep(d)
		return
	}
	t.displays[0].Hold(d)
}

func (t *TeeDisplay) SessionEnded(state State) {
	for _, d := range t.displays {
		if o, ok := d.(SessionObserver); ok {
			o.SessionEnded(state)
		}
	}
}

func (t *TeeDisplay) Close() error {
	var errs []error
	for _, d := range t.displays {
		if err := d.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
