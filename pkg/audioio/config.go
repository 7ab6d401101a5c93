// Package audioio provides the real-time audio path for live voice sessions.
//
// It contains three layers:
//   - Sample codec: float32 <-> PCM16LE conversion and base64 transport framing
//   - Processors: CaptureProcessor (microphone framing) and PlaybackProcessor
//     (speaker FIFO) that run inside device callbacks and talk to the control
//     goroutine only through channels
//   - Devices: callback-driven Source and Sink backends (PortAudio, Mock)
//
// Backends register themselves by name; the portaudio backend lives in its own
// package so that code and tests which only need the processors do not link
// against the native library.
package audioio

import (
	"fmt"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendAuto selects the first registered hardware backend, falling back to mock.
	BackendAuto Backend = "auto"
	// BackendPortAudio uses PortAudio for cross-platform audio I/O.
	BackendPortAudio Backend = "portaudio"
	// BackendMock uses a synthetic implementation for testing.
	BackendMock Backend = "mock"
)

// Sample rates used on the wire.
const (
	// CaptureSampleRate is the microphone rate expected by the remote endpoint.
	CaptureSampleRate = 16000
	// PlaybackSampleRate is the rate of audio returned by the remote endpoint.
	PlaybackSampleRate = 24000
	// DefaultFrameSize is the capture accumulator capacity in samples.
	DefaultFrameSize = 4096
)

// Config holds audio device configuration.
type Config struct {
	// Backend specifies which audio backend to use.
	// Default: "auto"
	Backend Backend `yaml:"backend" json:"backend"`

	// SampleRate is the audio sample rate in Hz.
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// Channels is the number of audio channels. Only mono is streamed.
	Channels int `yaml:"channels" json:"channels"`

	// BufferDuration is the hardware callback period.
	// Default: 20ms
	BufferDuration time.Duration `yaml:"buffer_duration" json:"buffer_duration"`

	// Device is a case-insensitive substring of the device name.
	// Empty selects the system default.
	Device string `yaml:"device" json:"device"`
}

// DefaultCaptureConfig returns the microphone configuration.
func DefaultCaptureConfig() Config {
	return Config{
		Backend:        BackendAuto,
		SampleRate:     CaptureSampleRate,
		Channels:       1,
		BufferDuration: 20 * time.Millisecond,
	}
}

// DefaultPlaybackConfig returns the speaker configuration.
func DefaultPlaybackConfig() Config {
	return Config{
		Backend:        BackendAuto,
		SampleRate:     PlaybackSampleRate,
		Channels:       1,
		BufferDuration: 20 * time.Millisecond,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels != 1 {
		return fmt.Errorf("channels must be 1, got %d", c.Channels)
	}
	if c.BufferDuration <= 0 {
		return fmt.Errorf("buffer_duration must be positive, got %v", c.BufferDuration)
	}
	return nil
}

// BufferSize returns the number of samples per callback.
func (c *Config) BufferSize() int {
	return int(float64(c.SampleRate) * c.BufferDuration.Seconds())
}

// BufferBytes returns the size of a callback buffer in PCM16 bytes.
func (c *Config) BufferBytes() int {
	return c.BufferSize() * c.Channels * 2
}
