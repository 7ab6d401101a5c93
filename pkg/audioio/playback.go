package audioio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// PlaybackConfig configures a PlaybackProcessor.
type PlaybackConfig struct {
	// Inbox is the number of blocks that can be in flight toward the callback.
	// Default: 256
	Inbox int `yaml:"inbox" json:"inbox"`

	// MaxQueuedSamples caps the FIFO. When exceeded the oldest samples are
	// dropped. Zero disables the cap.
	// Default: 120s at 24kHz
	MaxQueuedSamples int `yaml:"max_queued_samples" json:"max_queued_samples"`

	// Notices is the capacity of the notice channel.
	// Default: 16
	Notices int `yaml:"notices" json:"notices"`
}

// DefaultPlaybackProcessorConfig returns a PlaybackConfig with defaults.
func DefaultPlaybackProcessorConfig() PlaybackConfig {
	return PlaybackConfig{
		Inbox:            256,
		MaxQueuedSamples: 120 * PlaybackSampleRate,
		Notices:          16,
	}
}

// Validate checks that the configuration is valid.
func (c *PlaybackConfig) Validate() error {
	if c.Inbox <= 0 {
		return fmt.Errorf("inbox must be positive, got %d", c.Inbox)
	}
	if c.MaxQueuedSamples < 0 {
		return fmt.Errorf("max_queued_samples must not be negative, got %d", c.MaxQueuedSamples)
	}
	if c.Notices <= 0 {
		return fmt.Errorf("notices must be positive, got %d", c.Notices)
	}
	return nil
}

// PlaybackStats contains playback counters.
type PlaybackStats struct {
	// Pushed is the number of samples accepted by Push.
	Pushed int64 `json:"pushed"`

	// Played is the number of queued samples written to the device.
	Played int64 `json:"played"`

	// Underruns is the number of callbacks that ran dry mid-stream.
	Underruns int64 `json:"underruns"`

	// Dropped is the number of samples discarded by the queue cap.
	Dropped int64 `json:"dropped"`

	// Queued is the number of samples waiting at the last callback.
	Queued int64 `json:"queued"`
}

// playbackBlock is a pushed block stamped with the Clear epoch it was
// pushed in.
type playbackBlock struct {
	epoch   uint64
	samples []float32
}

// PlaybackProcessor feeds decoded reply audio to the speaker callback.
//
// Push hands blocks over through a channel; Process drains that channel into
// a FIFO owned by the callback and fills each output block, padding with
// silence when the FIFO runs short.
type PlaybackProcessor struct {
	logger    *slog.Logger
	maxQueued int

	inbox   chan playbackBlock
	notices chan Message
	epoch   atomic.Uint64

	done      chan struct{}
	closeOnce sync.Once

	// Owned by the callback.
	queue       sampleQueue
	seen        uint64
	playing     bool
	overflowing bool

	pushed    atomic.Int64
	played    atomic.Int64
	underruns atomic.Int64
	dropped   atomic.Int64
	queued    atomic.Int64
}

// NewPlaybackProcessor creates a playback processor.
func NewPlaybackProcessor(cfg PlaybackConfig, logger *slog.Logger) (*PlaybackProcessor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid playback config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PlaybackProcessor{
		logger:    logger.With("component", "audioio.playback"),
		maxQueued: cfg.MaxQueuedSamples,
		inbox:     make(chan playbackBlock, cfg.Inbox),
		notices:   make(chan Message, cfg.Notices),
		done:      make(chan struct{}),
	}, nil
}

// Push transfers a block to the callback. The caller must not modify block
// afterwards. Push blocks while the inbox is full and returns early on
// context cancellation or Close.
func (p *PlaybackProcessor) Push(ctx context.Context, block []float32) error {
	if len(block) == 0 {
		return nil
	}

	select {
	case <-p.done:
		return ErrClosed
	default:
	}

	select {
	case p.inbox <- playbackBlock{epoch: p.epoch.Load(), samples: block}:
		p.pushed.Add(int64(len(block)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return ErrClosed
	}
}

// Clear asks the callback to discard everything pushed so far, including
// blocks still in the inbox. Blocks pushed after Clear returns are kept. It
// takes effect on the next Process call.
func (p *PlaybackProcessor) Clear() {
	p.epoch.Add(1)
}

// Process fills out with exactly len(out) samples.
func (p *PlaybackProcessor) Process(out []float32) {
	defer func() {
		if r := recover(); r != nil {
			for i := range out {
				out[i] = 0
			}
			p.notify(MessageError, fmt.Sprintf("playback callback panic: %v", r))
		}
	}()

	p.advance(p.epoch.Load())
	p.drain()

	n := p.queue.pop(out)
	for i := n; i < len(out); i++ {
		out[i] = 0
	}

	if n < len(out) && (n > 0 || p.playing) {
		p.underruns.Add(1)
	}
	p.playing = n == len(out) && n > 0

	p.played.Add(int64(n))
	p.queued.Store(int64(p.queue.len()))
}

// advance moves the callback to epoch e, dropping everything queued
// under an earlier one.
func (p *PlaybackProcessor) advance(e uint64) {
	if e > p.seen {
		p.queue.reset()
		p.seen = e
	}
}

func (p *PlaybackProcessor) drain() {
	for {
		select {
		case block := <-p.inbox:
			if block.epoch < p.seen {
				continue
			}
			p.advance(block.epoch)
			p.enqueue(block.samples)
		default:
			return
		}
	}
}

func (p *PlaybackProcessor) enqueue(block []float32) {
	p.queue.push(block)

	if p.maxQueued == 0 {
		return
	}
	if over := p.queue.len() - p.maxQueued; over > 0 {
		p.dropped.Add(int64(p.queue.discard(over)))
		if !p.overflowing {
			p.overflowing = true
			p.notify(MessageWarning, fmt.Sprintf("playback queue over %d samples, dropping oldest", p.maxQueued))
		}
		return
	}
	if p.queue.len() < p.maxQueued/2 {
		p.overflowing = false
	}
}

func (p *PlaybackProcessor) notify(t MessageType, text string) {
	trySend(p.notices, Message{Type: t, Error: text})
}

// Notices returns the channel carrying playback warnings and errors.
func (p *PlaybackProcessor) Notices() <-chan Message {
	return p.notices
}

// Queued returns the number of samples queued as of the last callback.
func (p *PlaybackProcessor) Queued() int {
	return int(p.queued.Load())
}

// Stats returns playback counters.
func (p *PlaybackProcessor) Stats() PlaybackStats {
	return PlaybackStats{
		Pushed:    p.pushed.Load(),
		Played:    p.played.Load(),
		Underruns: p.underruns.Load(),
		Dropped:   p.dropped.Load(),
		Queued:    p.queued.Load(),
	}
}

// Close unblocks pending and future Push calls. Process keeps producing
// silence so a device that is still running is never starved of output.
func (p *PlaybackProcessor) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
		p.logger.Debug("playback processor closed")
	})
	return nil
}
