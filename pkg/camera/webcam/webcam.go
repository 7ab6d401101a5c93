// Package webcam captures JPEG snapshots from a local camera with OpenCV.
package webcam

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-arvoice/pkg/camera"
)

// Sentinel errors for the webcam package.
var (
	// ErrUnavailable indicates the camera could not be opened.
	ErrUnavailable = errors.New("webcam: camera unavailable")

	// ErrNoFrame indicates the camera returned an empty frame.
	ErrNoFrame = errors.New("webcam: no frame")

	// ErrClosed indicates the snapshotter has been closed.
	ErrClosed = errors.New("webcam: closed")
)

// Snapshotter grabs single frames on demand. The device is opened lazily on
// the first Snapshot and reopened after Reconfigure.
type Snapshotter struct {
	logger *slog.Logger

	mu     sync.Mutex
	cfg    camera.Config
	vc     *gocv.VideoCapture
	frame  gocv.Mat
	scene  *camera.SceneFilter
	closed bool
}

// New creates a snapshotter.
func New(cfg camera.Config, logger *slog.Logger) (*Snapshotter, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid camera config: %v", errs)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Snapshotter{
		logger: logger.With("component", "camera.webcam"),
		cfg:    cfg,
		frame:  gocv.NewMat(),
		scene:  camera.NewSceneFilter(cfg.DedupeDistance),
	}, nil
}

// Snapshot captures one frame and returns it as JPEG. It returns nil, nil
// when scene filtering judged the frame unchanged.
func (s *Snapshotter) Snapshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if err := s.openLocked(); err != nil {
		return nil, err
	}

	if ok := s.vc.Read(&s.frame); !ok || s.frame.Empty() {
		return nil, ErrNoFrame
	}

	if s.cfg.DedupeDistance > 0 {
		img, err := s.frame.ToImage()
		if err == nil && !s.scene.Changed(img) {
			return nil, nil
		}
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, s.frame, []int{gocv.IMWriteJpegQuality, s.cfg.Quality})
	if err != nil {
		return nil, fmt.Errorf("webcam: encode jpeg: %w", err)
	}
	defer buf.Close()

	return bytes.Clone(buf.GetBytes()), nil
}

func (s *Snapshotter) openLocked() error {
	if s.vc != nil {
		return nil
	}

	vc, err := gocv.OpenVideoCapture(s.cfg.Device)
	if err != nil {
		return fmt.Errorf("%w: device %d: %v", ErrUnavailable, s.cfg.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return fmt.Errorf("%w: device %d not opened", ErrUnavailable, s.cfg.Device)
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(s.cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(s.cfg.Height))

	s.vc = vc
	s.logger.Info("camera opened",
		"device", s.cfg.Device,
		"width", s.cfg.Width,
		"height", s.cfg.Height,
	)
	return nil
}

// Reconfigure applies a new configuration; the device is reopened on the
// next Snapshot. It matches camera.Manager.OnConfigChange.
func (s *Snapshotter) Reconfigure(cfg camera.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.releaseLocked()
	// A reopened device may frame the scene differently.
	if cfg.DedupeDistance == s.cfg.DedupeDistance {
		s.scene.Reset()
	} else {
		s.scene = camera.NewSceneFilter(cfg.DedupeDistance)
	}
	s.cfg = cfg
	return nil
}

func (s *Snapshotter) releaseLocked() {
	if s.vc != nil {
		s.vc.Close()
		s.vc = nil
	}
}

// Close releases the camera.
func (s *Snapshotter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.releaseLocked()
	return s.frame.Close()
}
