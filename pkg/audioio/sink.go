package audioio

import (
	"context"
	"io"
)

// RenderFunc fills one block of speaker output on the device thread.
// It must write every element of out.
type RenderFunc func(out []float32)

// Sink plays audio by pulling blocks from a callback.
type Sink interface {
	// Start acquires the output device and begins invoking fn whenever the
	// device needs samples.
	Start(ctx context.Context, fn RenderFunc) error

	// Stop halts playback.
	// It is safe to call Stop multiple times.
	Stop() error

	// Config returns the current audio configuration.
	Config() Config

	// Name returns the backend name (e.g., "portaudio", "mock").
	Name() string

	// Close releases all resources.
	// After Close, the sink cannot be restarted.
	io.Closer
}

// SinkStats contains statistics about the audio sink.
type SinkStats struct {
	// Callbacks is the number of hardware callbacks served.
	Callbacks int64 `json:"callbacks"`

	// SamplesWritten is the total number of samples written.
	SamplesWritten int64 `json:"samples_written"`

	// Running indicates if the sink is currently playing.
	Running bool `json:"running"`

	// Backend is the name of the audio backend.
	Backend string `json:"backend"`
}

// SinkWithStats extends Sink with statistics.
type SinkWithStats interface {
	Sink
	Stats() SinkStats
}
