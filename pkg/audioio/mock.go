package audioio

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

func init() {
	RegisterBackend(BackendMock,
		func(cfg Config, logger *slog.Logger) (Source, error) {
			return NewMockSource(cfg, logger), nil
		},
		func(cfg Config, logger *slog.Logger) (Sink, error) {
			return NewMockSink(cfg, logger), nil
		},
	)
}

// MockSource is a mock audio source for testing.
// It generates synthetic audio (silence or sine wave) on a ticker, or, in
// manual mode, delivers exactly the blocks passed to Feed.
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	manual   bool
	startErr error
	fn       CaptureFunc
	stopCh   chan struct{}
	wg       sync.WaitGroup

	// Stats
	callbacks   atomic.Int64
	samplesRead atomic.Int64

	// Synthetic audio generation
	phase     float64
	frequency float64 // Hz, 0 = silence
	amplitude float64 // 0.0 to 1.0
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithSineWave configures the mock to generate a sine wave.
func WithSineWave(frequency, amplitude float64) MockSourceOption {
	return func(m *MockSource) {
		m.frequency = frequency
		m.amplitude = amplitude
	}
}

// WithManualFeed disables the ticker; blocks are delivered only through Feed.
func WithManualFeed() MockSourceOption {
	return func(m *MockSource) {
		m.manual = true
	}
}

// WithStartError makes Start fail as if the device could not be acquired.
func WithStartError(cause error) MockSourceOption {
	return func(m *MockSource) {
		m.startErr = cause
	}
}

// NewMockSource creates a new mock audio source.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}

	m := &MockSource{
		cfg:       cfg,
		logger:    logger,
		stopCh:    make(chan struct{}),
		amplitude: 0.5,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Start begins delivering audio to fn.
func (m *MockSource) Start(ctx context.Context, fn CaptureFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	if m.startErr != nil {
		return &DeviceError{Backend: BackendMock, Op: "start", Device: m.cfg.Device, Cause: m.startErr}
	}
	if m.running {
		return nil
	}

	m.running = true
	m.fn = fn
	m.stopCh = make(chan struct{})

	if !m.manual {
		m.wg.Add(1)
		go m.generateLoop(ctx, m.stopCh)
	}

	m.logger.Info("mock audio source started",
		"sample_rate", m.cfg.SampleRate,
		"frequency", m.frequency,
		"manual", m.manual,
	)

	return nil
}

func (m *MockSource) generateLoop(ctx context.Context, stopCh chan struct{}) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.BufferDuration)
	defer ticker.Stop()

	buf := make([]float32, m.cfg.BufferSize())
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			m.generateBlock(buf)
			m.deliver(buf)
		}
	}
}

func (m *MockSource) generateBlock(buf []float32) {
	if m.frequency <= 0 {
		for i := range buf {
			buf[i] = 0
		}
		return
	}

	for i := range buf {
		buf[i] = float32(m.amplitude * math.Sin(2*math.Pi*m.frequency*m.phase/float64(m.cfg.SampleRate)))
		m.phase++
		if m.phase >= float64(m.cfg.SampleRate) {
			m.phase = 0
		}
	}
}

func (m *MockSource) deliver(block []float32) {
	m.mu.Lock()
	fn := m.fn
	running := m.running
	m.mu.Unlock()

	if !running || fn == nil {
		return
	}
	fn(block)
	m.callbacks.Add(1)
	m.samplesRead.Add(int64(len(block)))
}

// Feed delivers block to the capture callback synchronously.
// It is a no-op while the source is stopped.
func (m *MockSource) Feed(block []float32) {
	m.deliver(block)
}

// Stop halts audio generation.
func (m *MockSource) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	close(m.stopCh)
	m.mu.Unlock()

	m.wg.Wait()
	m.logger.Info("mock audio source stopped")

	return nil
}

// Config returns the audio configuration.
func (m *MockSource) Config() Config {
	return m.cfg
}

// Name returns "mock".
func (m *MockSource) Name() string {
	return string(BackendMock)
}

// Close releases resources.
func (m *MockSource) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	return m.Stop()
}

// Stats returns source statistics.
func (m *MockSource) Stats() SourceStats {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()

	return SourceStats{
		Callbacks:   m.callbacks.Load(),
		SamplesRead: m.samplesRead.Load(),
		Running:     running,
		Backend:     string(BackendMock),
	}
}

// Ensure MockSource implements SourceWithStats.
var _ SourceWithStats = (*MockSource)(nil)

// MockSink is a mock audio sink for testing.
// It pulls blocks from the render callback on a ticker (or via Pull in
// manual mode) and records what it played.
type MockSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	manual  bool
	fn      RenderFunc
	stopCh  chan struct{}
	wg      sync.WaitGroup
	played  []float32

	// Stats
	callbacks      atomic.Int64
	samplesWritten atomic.Int64
}

// MockSinkOption configures a MockSink.
type MockSinkOption func(*MockSink)

// WithManualPull disables the ticker; blocks are pulled only through Pull.
func WithManualPull() MockSinkOption {
	return func(m *MockSink) {
		m.manual = true
	}
}

// NewMockSink creates a new mock audio sink.
func NewMockSink(cfg Config, logger *slog.Logger, opts ...MockSinkOption) *MockSink {
	if logger == nil {
		logger = slog.Default()
	}

	m := &MockSink{
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins pulling audio from fn.
func (m *MockSink) Start(ctx context.Context, fn RenderFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	if m.running {
		return nil
	}

	m.running = true
	m.fn = fn
	m.stopCh = make(chan struct{})

	if !m.manual {
		m.wg.Add(1)
		go m.pullLoop(ctx, m.stopCh)
	}

	m.logger.Info("mock audio sink started", "manual", m.manual)

	return nil
}

func (m *MockSink) pullLoop(ctx context.Context, stopCh chan struct{}) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.BufferDuration)
	defer ticker.Stop()

	n := m.cfg.BufferSize()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			m.Pull(n)
		}
	}
}

// Pull invokes the render callback for one block of n samples and returns it.
// It returns nil while the sink is stopped.
func (m *MockSink) Pull(n int) []float32 {
	m.mu.Lock()
	fn := m.fn
	running := m.running
	m.mu.Unlock()

	if !running || fn == nil {
		return nil
	}

	out := make([]float32, n)
	fn(out)

	m.mu.Lock()
	m.played = append(m.played, out...)
	m.mu.Unlock()

	m.callbacks.Add(1)
	m.samplesWritten.Add(int64(n))
	return out
}

// Played returns a copy of every sample rendered so far.
func (m *MockSink) Played() []float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float32(nil), m.played...)
}

// Stop halts audio pulling.
func (m *MockSink) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	close(m.stopCh)
	m.mu.Unlock()

	m.wg.Wait()
	m.logger.Info("mock audio sink stopped")

	return nil
}

// Config returns the audio configuration.
func (m *MockSink) Config() Config {
	return m.cfg
}

// Name returns "mock".
func (m *MockSink) Name() string {
	return string(BackendMock)
}

// Close releases resources.
func (m *MockSink) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	return m.Stop()
}

// Stats returns sink statistics.
func (m *MockSink) Stats() SinkStats {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()

	return SinkStats{
		Callbacks:      m.callbacks.Load(),
		SamplesWritten: m.samplesWritten.Load(),
		Running:        running,
		Backend:        string(BackendMock),
	}
}

// Ensure MockSink implements SinkWithStats.
var _ SinkWithStats = (*MockSink)(nil)
