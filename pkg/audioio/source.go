package audioio

import (
	"context"
	"io"
)

// CaptureFunc receives one block of microphone samples on the device thread.
// The slice is only valid for the duration of the call.
type CaptureFunc func(in []float32)

// Source captures audio from a microphone and delivers it to a callback.
type Source interface {
	// Start acquires the device and begins invoking fn on every hardware
	// callback. A *DeviceError is returned when the device cannot be
	// acquired; in that case fn is never invoked.
	Start(ctx context.Context, fn CaptureFunc) error

	// Stop halts capture and releases the device stream.
	// It is safe to call Stop multiple times.
	Stop() error

	// Config returns the current audio configuration.
	Config() Config

	// Name returns the backend name (e.g., "portaudio", "mock").
	Name() string

	// Close releases all resources.
	// After Close, the source cannot be restarted.
	io.Closer
}

// SourceStats contains statistics about the audio source.
type SourceStats struct {
	// Callbacks is the number of hardware callbacks delivered.
	Callbacks int64 `json:"callbacks"`

	// SamplesRead is the total number of samples delivered.
	SamplesRead int64 `json:"samples_read"`

	// Running indicates if the source is currently capturing.
	Running bool `json:"running"`

	// Backend is the name of the audio backend.
	Backend string `json:"backend"`
}

// SourceWithStats extends Source with statistics.
type SourceWithStats interface {
	Source
	Stats() SourceStats
}
