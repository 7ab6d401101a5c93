// Package camera provides the snapshot camera used for periodic video frames.
//
// Frames are captured on their own cadence, encoded as JPEG and cached by the
// session until replaced. The OpenCV-backed capture lives in camera/webcam;
// this package holds configuration, presets, runtime updates and scene-change
// filtering.
package camera

import "time"

// Config holds snapshot camera parameters.
// These can be modified via the status API at runtime.
type Config struct {
	// Device is the OpenCV capture index.
	Device int `json:"device" yaml:"device"`

	// Enabled turns periodic snapshots on.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// === Resolution ===
	Width   int `json:"width" yaml:"width"`     // Frame width in pixels
	Height  int `json:"height" yaml:"height"`   // Frame height in pixels
	Quality int `json:"quality" yaml:"quality"` // JPEG quality 1-100

	// Interval is the snapshot cadence.
	Interval time.Duration `json:"interval" yaml:"interval"`

	// DedupeDistance is the perceptual-hash distance at or below which a new
	// frame is considered unchanged and the cached frame is kept.
	// Set to 0 to always replace the cached frame.
	DedupeDistance int `json:"dedupe_distance" yaml:"dedupe_distance"`
}

// Limits.
const (
	MaxWidth        = 3840
	MaxHeight       = 2160
	MinInterval     = 250 * time.Millisecond
	MaxHashDistance = 64
)

// DefaultConfig returns the configuration used by the AR view:
// one 640x480 frame every three seconds.
func DefaultConfig() Config {
	return Config{
		Device:   0,
		Enabled:  true,
		Width:    640,
		Height:   480,
		Quality:  80,
		Interval: 3 * time.Second,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Device < 0 {
		errors = append(errors, "device must not be negative")
	}
	if c.Width < 160 || c.Width > MaxWidth {
		errors = append(errors, "width must be between 160 and 3840")
	}
	if c.Height < 120 || c.Height > MaxHeight {
		errors = append(errors, "height must be between 120 and 2160")
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}
	if c.Interval < MinInterval {
		errors = append(errors, "interval must be at least 250ms")
	}
	if c.DedupeDistance < 0 || c.DedupeDistance > MaxHashDistance {
		errors = append(errors, "dedupe_distance must be between 0 and 64")
	}

	return errors
}
