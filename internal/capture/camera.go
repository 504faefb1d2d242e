// Package capture provides camera capture functionality using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Default camera settings
const (
	DefaultFPS    = 10
	DefaultWidth  = 640
	DefaultHeight = 480

	// DefaultReopenAfter is the number of consecutive failed reads after
	// which the device is reopened.
	DefaultReopenAfter = 30
)

var (
	// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")
	// ErrFrameNotReady is returned when the device is open but has no frame yet.
	ErrFrameNotReady = errors.New("frame not ready")
)

// Camera defines the interface for camera capture implementations.
// ReadFrame failing is the readiness signal: callers skip that sample.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// FrameSize returns the width and height of a frame, or zeros for nil.
func FrameSize(frame *gocv.Mat) (width, height int) {
	if frame == nil || frame.Empty() {
		return 0, 0
	}
	return frame.Cols(), frame.Rows()
}

// DeviceConfig selects and sizes a capture device. Zero fields take the
// package defaults.
type DeviceConfig struct {
	DeviceID int
	Width    int
	Height   int
	FPS      int

	// ReopenAfter consecutive failed reads trigger a reopen. Negative
	// disables reopening.
	ReopenAfter int
}

func (c DeviceConfig) withDefaults() DeviceConfig {
	if c.Width <= 0 {
		c.Width = DefaultWidth
	}
	if c.Height <= 0 {
		c.Height = DefaultHeight
	}
	if c.FPS <= 0 {
		c.FPS = DefaultFPS
	}
	if c.ReopenAfter == 0 {
		c.ReopenAfter = DefaultReopenAfter
	}
	return c
}

// device reads frames from an OpenCV capture device.
type device struct {
	config   DeviceConfig
	mu       sync.Mutex
	capture  *gocv.VideoCapture
	failures int
}

// NewCamera creates a Camera for the device described by config. The
// device is not opened until Open.
func NewCamera(config DeviceConfig) Camera {
	return &device{config: config.withDefaults()}
}

// Open opens the device. Opening an open camera is a no-op.
func (d *device) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.capture != nil {
		return nil
	}
	return d.openLocked()
}

func (d *device) openLocked() error {
	capture, err := gocv.OpenVideoCapture(d.config.DeviceID)
	if err != nil {
		return fmt.Errorf("open camera %d: %w", d.config.DeviceID, err)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(d.config.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(d.config.Height))
	capture.Set(gocv.VideoCaptureFPS, float64(d.config.FPS))

	d.capture = capture
	d.failures = 0
	return nil
}

// Close releases the device.
func (d *device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.capture == nil {
		return nil
	}
	err := d.capture.Close()
	d.capture = nil
	return err
}

// ReadFrame reads a single frame from the camera.
// The caller is responsible for closing the returned Mat. After
// ReopenAfter consecutive failures the device is reopened so that a
// replugged camera recovers without a restart.
func (d *device) ReadFrame() (*gocv.Mat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := d.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		d.failures++
		if d.config.ReopenAfter > 0 && d.failures >= d.config.ReopenAfter {
			d.reopenLocked()
		}
		return nil, ErrFrameNotReady
	}

	d.failures = 0
	return &mat, nil
}

// reopenLocked closes and reopens the device. A failed reopen leaves the
// camera closed, so later reads report ErrCameraNotOpen.
func (d *device) reopenLocked() {
	d.capture.Close()
	d.capture = nil
	_ = d.openLocked()
}

// SetFPS sets the frames per second for capture.
// Values less than or equal to 0 are ignored.
func (d *device) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.config.FPS = fps
	if d.capture != nil {
		d.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the current frames per second setting.
func (d *device) FPS() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.config.FPS
}

// IsOpen reports whether the device is open.
func (d *device) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.capture != nil
}
