// Package portaudio registers a PortAudio backend with audioio.
//
// Import it for side effects:
//
//	import _ "github.com/teslashibe/go-arvoice/pkg/audioio/portaudio"
//
// Streams run in callback mode, so the capture and render functions are
// invoked directly on the PortAudio thread. When the device does not support
// the requested rate natively, the stream opens at the device default rate
// and each callback is resampled with a preallocated buffer.
package portaudio

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	pa "github.com/gordonklaus/portaudio"

	"github.com/teslashibe/go-arvoice/pkg/audioio"
)

func init() {
	audioio.RegisterBackend(audioio.BackendPortAudio,
		func(cfg audioio.Config, logger *slog.Logger) (audioio.Source, error) {
			return NewSource(cfg, logger), nil
		},
		func(cfg audioio.Config, logger *slog.Logger) (audioio.Sink, error) {
			return NewSink(cfg, logger), nil
		},
	)
}

// stream is the state shared by Source and Sink.
type stream struct {
	cfg    audioio.Config
	logger *slog.Logger
	input  bool

	mu     sync.Mutex
	s      *pa.Stream
	closed bool
}

func (st *stream) deviceError(op string, err error) error {
	return &audioio.DeviceError{Backend: audioio.BackendPortAudio, Op: op, Device: st.cfg.Device, Cause: err}
}

// open initializes PortAudio and starts a stream whose callback is produced
// by build for the device rate actually used.
func (st *stream) open(build func(deviceRate float64, frames int) interface{}) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.closed {
		return audioio.ErrClosed
	}
	if st.s != nil {
		return nil
	}

	if err := pa.Initialize(); err != nil {
		return st.deviceError("initialize", err)
	}

	dev, err := st.findDevice()
	if err != nil {
		pa.Terminate()
		return st.deviceError("open", err)
	}

	params := st.params(dev, float64(st.cfg.SampleRate))
	cb := build(params.SampleRate, params.FramesPerBuffer)
	if err := pa.IsFormatSupported(params, cb); err != nil {
		st.logger.Warn("requested rate not supported, resampling",
			"device", dev.Name,
			"requested", st.cfg.SampleRate,
			"device_rate", dev.DefaultSampleRate,
		)
		params = st.params(dev, dev.DefaultSampleRate)
		cb = build(params.SampleRate, params.FramesPerBuffer)
	}

	s, err := pa.OpenStream(params, cb)
	if err != nil {
		pa.Terminate()
		return st.deviceError("open", err)
	}
	if err := s.Start(); err != nil {
		s.Close()
		pa.Terminate()
		return st.deviceError("start", err)
	}

	st.s = s
	st.logger.Info("portaudio stream started",
		"device", dev.Name,
		"sample_rate", params.SampleRate,
		"frames_per_buffer", params.FramesPerBuffer,
	)
	return nil
}

func (st *stream) params(dev *pa.DeviceInfo, rate float64) pa.StreamParameters {
	frames := int(rate * st.cfg.BufferDuration.Seconds())

	var p pa.StreamParameters
	if st.input {
		p = pa.LowLatencyParameters(dev, nil)
		p.Input.Channels = 1
	} else {
		p = pa.LowLatencyParameters(nil, dev)
		p.Output.Channels = 1
	}
	p.SampleRate = rate
	p.FramesPerBuffer = frames
	return p
}

func (st *stream) findDevice() (*pa.DeviceInfo, error) {
	if st.cfg.Device == "" {
		if st.input {
			return pa.DefaultInputDevice()
		}
		return pa.DefaultOutputDevice()
	}

	devices, err := pa.Devices()
	if err != nil {
		return nil, err
	}
	want := strings.ToLower(st.cfg.Device)
	for _, dev := range devices {
		if st.input && dev.MaxInputChannels < 1 {
			continue
		}
		if !st.input && dev.MaxOutputChannels < 1 {
			continue
		}
		if strings.Contains(strings.ToLower(dev.Name), want) {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("no device matching %q", st.cfg.Device)
}

func (st *stream) stop() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.s == nil {
		return nil
	}
	err := st.s.Stop()
	if cerr := st.s.Close(); err == nil {
		err = cerr
	}
	st.s = nil
	pa.Terminate()
	st.logger.Info("portaudio stream stopped")
	return err
}

func (st *stream) close() error {
	err := st.stop()
	st.mu.Lock()
	st.closed = true
	st.mu.Unlock()
	return err
}

// Source captures from a PortAudio input device.
type Source struct {
	stream
}

// NewSource creates a PortAudio source. The device is opened by Start.
func NewSource(cfg audioio.Config, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{stream{
		cfg:    cfg,
		logger: logger.With("component", "audioio.portaudio", "direction", "input"),
		input:  true,
	}}
}

// Start opens the input stream and invokes fn from the PortAudio callback.
func (s *Source) Start(ctx context.Context, fn audioio.CaptureFunc) error {
	target := s.cfg.SampleRate
	return s.open(func(deviceRate float64, frames int) interface{} {
		if int(deviceRate) == target {
			return func(in []float32) { fn(in) }
		}
		buf := make([]float32, int(float64(frames)*float64(target)/deviceRate)+1)
		return func(in []float32) {
			n := int(float64(len(in)) * float64(target) / deviceRate)
			if n > len(buf) {
				buf = make([]float32, n)
			}
			fn(audioio.ResampleInto(buf[:n], in, int(deviceRate), target))
		}
	})
}

// Stop stops the input stream.
func (s *Source) Stop() error { return s.stop() }

// Close stops the stream; the source cannot be restarted.
func (s *Source) Close() error { return s.close() }

// Config returns the audio configuration.
func (s *Source) Config() audioio.Config { return s.cfg }

// Name returns "portaudio".
func (s *Source) Name() string { return string(audioio.BackendPortAudio) }

// Sink plays to a PortAudio output device.
type Sink struct {
	stream
}

// NewSink creates a PortAudio sink. The device is opened by Start.
func NewSink(cfg audioio.Config, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{stream{
		cfg:    cfg,
		logger: logger.With("component", "audioio.portaudio", "direction", "output"),
	}}
}

// Start opens the output stream and pulls from fn in the PortAudio callback.
func (s *Sink) Start(ctx context.Context, fn audioio.RenderFunc) error {
	target := s.cfg.SampleRate
	return s.open(func(deviceRate float64, frames int) interface{} {
		if int(deviceRate) == target {
			return func(out []float32) { fn(out) }
		}
		buf := make([]float32, int(float64(frames)*float64(target)/deviceRate)+1)
		return func(out []float32) {
			n := int(float64(len(out)) * float64(target) / deviceRate)
			if n > len(buf) {
				buf = make([]float32, n)
			}
			src := buf[:n]
			fn(src)
			audioio.ResampleInto(out, src, target, int(deviceRate))
		}
	})
}

// Stop stops the output stream.
func (s *Sink) Stop() error { return s.stop() }

// Close stops the stream; the sink cannot be restarted.
func (s *Sink) Close() error { return s.close() }

// Config returns the audio configuration.
func (s *Sink) Config() audioio.Config { return s.cfg }

// Name returns "portaudio".
func (s *Sink) Name() string { return string(audioio.BackendPortAudio) }

var (
	_ audioio.Source = (*Source)(nil)
	_ audioio.Sink   = (*Sink)(nil)
)
