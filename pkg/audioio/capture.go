package audioio

import (
	"fmt"
	"log/slog"
	"sync/atomic"
)

// CaptureConfig configures a CaptureProcessor.
type CaptureConfig struct {
	// FrameSize is the accumulator capacity in samples.
	// Default: 4096
	FrameSize int `yaml:"frame_size" json:"frame_size"`

	// Outbox is the number of messages buffered toward the control goroutine.
	// Frames that do not fit are dropped and counted as overruns.
	// Default: 32
	Outbox int `yaml:"outbox" json:"outbox"`
}

// DefaultCaptureProcessorConfig returns a CaptureConfig with defaults.
func DefaultCaptureProcessorConfig() CaptureConfig {
	return CaptureConfig{
		FrameSize: DefaultFrameSize,
		Outbox:    32,
	}
}

// Validate checks that the configuration is valid.
func (c *CaptureConfig) Validate() error {
	if c.FrameSize <= 0 {
		return fmt.Errorf("frame_size must be positive, got %d", c.FrameSize)
	}
	if c.Outbox <= 0 {
		return fmt.Errorf("outbox must be positive, got %d", c.Outbox)
	}
	return nil
}

// CaptureStats contains capture counters.
type CaptureStats struct {
	// Frames is the number of frames delivered to the outbox.
	Frames int64 `json:"frames"`

	// Overruns is the number of frames dropped because the outbox was full.
	Overruns int64 `json:"overruns"`

	// Errors is the number of rejected callbacks.
	Errors int64 `json:"errors"`

	// Pending is the number of samples waiting in the accumulator.
	Pending int64 `json:"pending"`
}

// CaptureProcessor batches microphone samples into fixed-size PCM16 frames.
//
// Process is called from the device callback and is the only code that
// touches the accumulator. Frames and error notices leave through Messages.
type CaptureProcessor struct {
	logger *slog.Logger

	buf []float32
	idx int

	out chan Message

	frames   atomic.Int64
	overruns atomic.Int64
	errs     atomic.Int64
	pending  atomic.Int64
}

// NewCaptureProcessor creates a capture processor.
func NewCaptureProcessor(cfg CaptureConfig, logger *slog.Logger) (*CaptureProcessor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid capture config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &CaptureProcessor{
		logger: logger.With("component", "audioio.capture"),
		buf:    make([]float32, cfg.FrameSize),
		out:    make(chan Message, cfg.Outbox),
	}, nil
}

// Process appends a block of mono samples. Any block length is accepted.
// A block containing NaN or infinite values is rejected as a whole and
// reported as an error message; the accumulator is left unchanged.
func (p *CaptureProcessor) Process(in []float32) {
	defer func() {
		if r := recover(); r != nil {
			p.fail(fmt.Errorf("capture callback panic: %v", r))
		}
	}()

	if err := ValidateBlock(in); err != nil {
		p.fail(err)
		return
	}

	for len(in) > 0 {
		n := copy(p.buf[p.idx:], in)
		p.idx += n
		in = in[n:]

		if p.idx == len(p.buf) {
			p.emit()
			p.idx = 0
		}
	}
	p.pending.Store(int64(p.idx))
}

func (p *CaptureProcessor) emit() {
	frame := FloatToSamples(p.buf)
	if trySend(p.out, Message{Type: MessagePCMData, Data: frame}) {
		p.frames.Add(1)
		return
	}
	p.overruns.Add(1)
}

func (p *CaptureProcessor) fail(err error) {
	p.errs.Add(1)
	p.logger.Warn("capture callback rejected block", "error", err)
	trySend(p.out, Message{Type: MessageError, Error: err.Error()})
}

// Messages returns the channel carrying frames and error notices.
func (p *CaptureProcessor) Messages() <-chan Message {
	return p.out
}

// FrameSize returns the accumulator capacity.
func (p *CaptureProcessor) FrameSize() int {
	return len(p.buf)
}

// Pending returns the number of samples waiting in the accumulator.
func (p *CaptureProcessor) Pending() int {
	return int(p.pending.Load())
}

// Stats returns capture counters.
func (p *CaptureProcessor) Stats() CaptureStats {
	return CaptureStats{
		Frames:   p.frames.Load(),
		Overruns: p.overruns.Load(),
		Errors:   p.errs.Load(),
		Pending:  p.pending.Load(),
	}
}
