package session

import (
	"fmt"

	"gocv.io/x/gocv"
)

// FrameSource yields BGR frames. Read returns false when the stream is exhausted.
type FrameSource interface {
	Read(dst *gocv.Mat) bool
	Close() error
}

// CameraSource reads from a local capture device.
type CameraSource struct {
	capture *gocv.VideoCapture
	index   int
}

// OpenCamera opens the capture device with the given index.
func OpenCamera(index int) (*CameraSource, error) {
	capture, err := gocv.VideoCaptureDevice(index)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %d: %w", index, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("camera %d is not available", index)
	}
	return &CameraSource{capture: capture, index: index}, nil
}

func (s *CameraSource) Read(dst *gocv.Mat) bool {
	return s.capture.Read(dst)
}

func (s *CameraSource) Close() error {
	return s.capture.Close()
}
