package session

import (
	"errors"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"plantdoctor/internal/logger"
)

type fakePublisher struct {
	states []string
	frames [][]byte
	keys   []int
}

func (p *fakePublisher) Publish(state string, jpeg []byte) {
	p.states = append(p.states, state)
	p.frames = append(p.frames, append([]byte(nil), jpeg...))
}

func (p *fakePublisher) PollKey() int {
	if len(p.keys) == 0 {
		return -1
	}
	k := p.keys[0]
	p.keys = p.keys[1:]
	return k
}

type closeErrDisplay struct {
	fakeDisplay
	err error
}

func (d *closeErrDisplay) Close() error {
	d.closes++
	return d.err
}

func TestPreviewDisplay(t *testing.T) {
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 200, 0, 0), 120, 160, gocv.MatTypeCV8UC3)
	defer frame.Close()

	pub := &fakePublisher{keys: []int{'q'}}
	d := NewPreviewDisplay(pub, logger.NewNop())

	d.Show(frame)
	d.SessionEnded(Success)

	if len(pub.states) != 2 || pub.states[0] != "running" || pub.states[1] != "success" {
		t.Fatalf("Unexpected published states %v", pub.states)
	}
	jpeg := pub.frames[0]
	if len(jpeg) < 4 || jpeg[0] != 0xFF || jpeg[1] != 0xD8 {
		t.Errorf("Expected a JPEG frame, got %d bytes", len(jpeg))
	}
	if string(pub.frames[1]) != string(jpeg) {
		t.Error("Expected final state to carry the last frame")
	}

	if k := d.PollKey(); k != 'q' {
		t.Errorf("Expected viewer key q, got %d", k)
	}
	if k := d.PollKey(); k != -1 {
		t.Errorf("Expected no key, got %d", k)
	}
}

func TestTeeDisplay(t *testing.T) {
	first := &fakeDisplay{keys: []int{-1}}
	second := &fakeDisplay{keys: []int{'q'}}
	third := &fakeDisplay{keys: []int{'x'}}
	tee := NewTeeDisplay(first, second, third)

	frame := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC3)
	defer frame.Close()

	tee.Show(frame)
	if first.shows != 1 || second.shows != 1 || third.shows != 1 {
		t.Errorf("Expected every display to show the frame")
	}

	if k := tee.PollKey(); k != 'q' {
		t.Errorf("Expected q, got %d", k)
	}
	if len(third.keys) != 0 {
		t.Error("Expected all displays to be polled")
	}

	tee.Hold(time.Second)
	if len(first.holds) != 1 || len(second.holds) != 0 {
		t.Errorf("Expected hold on the first display only")
	}

	tee.SessionEnded(TimedOut)
	if len(first.ended) != 1 || first.ended[0] != TimedOut {
		t.Errorf("Expected state forwarded, got %v", first.ended)
	}

	if err := tee.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if first.closes != 1 || second.closes != 1 || third.closes != 1 {
		t.Error("Expected every display closed")
	}
}

func TestTeeDisplay_CloseJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	failing := &closeErrDisplay{err: boom}
	ok := &fakeDisplay{}

	err := NewTeeDisplay(failing, ok).Close()
	if !errors.Is(err, boom) {
		t.Errorf("Expected joined error, got %v", err)
	}
	if ok.closes != 1 {
		t.Error("Expected remaining displays closed after an error")
	}
}
