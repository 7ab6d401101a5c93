package session

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/teslashibe/go-arvoice/internal/metrics"
	"github.com/teslashibe/go-arvoice/pkg/audioio"
	"github.com/teslashibe/go-arvoice/pkg/protocol"
)

// DefaultEndpoint is the Gemini Live bidirectional streaming endpoint.
const DefaultEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

// DefaultModel is sent in the setup message when no model is configured.
const DefaultModel = "models/gemini-2.0-flash-exp"

// Config holds configuration for a streaming session.
type Config struct {
	// Endpoint is the ws:// or wss:// URL of the remote service.
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// APIKey is appended as the key query parameter when set.
	APIKey string `yaml:"api_key" json:"-"`

	// UseADC authenticates with Google Application Default Credentials.
	UseADC bool `yaml:"use_adc" json:"use_adc"`

	// Model is the model name sent in the setup message.
	Model string `yaml:"model" json:"model"`

	// Generation holds the sampling parameters sent in the setup message.
	Generation protocol.GenerationConfig `yaml:"generation_config" json:"generation_config"`

	// FlushInterval is the cadence of realtime_input messages.
	FlushInterval time.Duration `yaml:"flush_interval" json:"flush_interval"`

	// FrameInterval is the cadence of camera snapshots.
	FrameInterval time.Duration `yaml:"frame_interval" json:"frame_interval"`

	// ReconnectDelay is the fixed delay before each reconnection attempt.
	ReconnectDelay time.Duration `yaml:"reconnect_delay" json:"reconnect_delay"`

	// MaxReconnectAttempts bounds consecutive reconnection attempts.
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts" json:"max_reconnect_attempts"`

	// MaxPendingSamples bounds PCM retained while disconnected (0 = unbounded).
	MaxPendingSamples int `yaml:"max_pending_samples" json:"max_pending_samples"`

	// MaxTranscript bounds transcript entries kept in memory (0 = unbounded).
	MaxTranscript int `yaml:"max_transcript" json:"max_transcript"`

	// HandshakeTimeout bounds the WebSocket dial.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" json:"handshake_timeout"`

	// WriteTimeout bounds each outbound message.
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`

	// Microphone configures the capture device.
	Microphone audioio.Config `yaml:"microphone" json:"microphone"`

	// Speaker configures the playback device.
	Speaker audioio.Config `yaml:"speaker" json:"speaker"`

	// Capture configures capture framing.
	Capture audioio.CaptureConfig `yaml:"capture" json:"capture"`

	// Playback configures the playback queue.
	Playback audioio.PlaybackConfig `yaml:"playback" json:"playback"`

	// Logger is the structured logger to use.
	Logger *slog.Logger `yaml:"-" json:"-"`

	// Dialer opens the channel. Defaults to a gorilla/websocket dialer.
	Dialer Dialer `yaml:"-" json:"-"`

	// Auth decorates the handshake. Derived from APIKey/UseADC when nil.
	Auth Authenticator `yaml:"-" json:"-"`

	// Frames supplies camera snapshots. Video is disabled when nil.
	Frames FrameSource `yaml:"-" json:"-"`

	// Metrics records Prometheus metrics when non-nil.
	Metrics *metrics.Metrics `yaml:"-" json:"-"`

	// NewSource opens the microphone. Defaults to audioio.NewSource.
	NewSource audioio.SourceFactory `yaml:"-" json:"-"`

	// NewSink opens the speaker. Defaults to audioio.NewSink.
	NewSink audioio.SinkFactory `yaml:"-" json:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Endpoint:             DefaultEndpoint,
		Model:                DefaultModel,
		Generation:           protocol.DefaultGenerationConfig(),
		FlushInterval:        3 * time.Second,
		FrameInterval:        3 * time.Second,
		ReconnectDelay:       3 * time.Second,
		MaxReconnectAttempts: 5,
		MaxPendingSamples:    30 * audioio.CaptureSampleRate,
		MaxTranscript:        500,
		HandshakeTimeout:     10 * time.Second,
		WriteTimeout:         10 * time.Second,
		Microphone:           audioio.DefaultCaptureConfig(),
		Speaker:              audioio.DefaultPlaybackConfig(),
		Capture:              audioio.DefaultCaptureProcessorConfig(),
		Playback:             audioio.DefaultPlaybackProcessorConfig(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return ErrMissingEndpoint
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("session: invalid endpoint: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("session: endpoint scheme must be ws or wss, got %q", u.Scheme)
	}
	if c.FlushInterval <= 0 {
		return fmt.Errorf("session: flush interval must be positive, got %v", c.FlushInterval)
	}
	if c.FrameInterval <= 0 {
		return fmt.Errorf("session: frame interval must be positive, got %v", c.FrameInterval)
	}
	if c.ReconnectDelay < 0 {
		return fmt.Errorf("session: reconnect delay must not be negative, got %v", c.ReconnectDelay)
	}
	if c.MaxReconnectAttempts < 0 {
		return fmt.Errorf("session: max reconnect attempts must not be negative, got %d", c.MaxReconnectAttempts)
	}
	if c.MaxPendingSamples < 0 {
		return fmt.Errorf("session: max pending samples must not be negative, got %d", c.MaxPendingSamples)
	}
	if err := c.Generation.Validate(); err != nil {
		return fmt.Errorf("session: generation config: %w", err)
	}
	if err := c.Microphone.Validate(); err != nil {
		return fmt.Errorf("session: microphone: %w", err)
	}
	if err := c.Speaker.Validate(); err != nil {
		return fmt.Errorf("session: speaker: %w", err)
	}
	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("session: capture: %w", err)
	}
	if err := c.Playback.Validate(); err != nil {
		return fmt.Errorf("session: playback: %w", err)
	}
	return nil
}

// Option is a functional option for configuring a session.
type Option func(*Config)

// WithEndpoint sets the endpoint URL.
func WithEndpoint(endpoint string) Option {
	return func(c *Config) {
		c.Endpoint = endpoint
	}
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithModel sets the model name.
func WithModel(model string) Option {
	return func(c *Config) {
		c.Model = model
	}
}

// WithGeneration sets the sampling parameters.
func WithGeneration(g protocol.GenerationConfig) Option {
	return func(c *Config) {
		c.Generation = g
	}
}

// WithFlushInterval sets the flush cadence.
func WithFlushInterval(d time.Duration) Option {
	return func(c *Config) {
		c.FlushInterval = d
	}
}

// WithFrameInterval sets the camera snapshot cadence.
func WithFrameInterval(d time.Duration) Option {
	return func(c *Config) {
		c.FrameInterval = d
	}
}

// WithReconnect sets the reconnection delay and attempt bound.
func WithReconnect(delay time.Duration, maxAttempts int) Option {
	return func(c *Config) {
		c.ReconnectDelay = delay
		c.MaxReconnectAttempts = maxAttempts
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithDialer sets the channel dialer.
func WithDialer(d Dialer) Option {
	return func(c *Config) {
		c.Dialer = d
	}
}

// WithAuth sets the handshake authenticator.
func WithAuth(a Authenticator) Option {
	return func(c *Config) {
		c.Auth = a
	}
}

// WithFrameSource enables video with the given snapshot source.
func WithFrameSource(f FrameSource) Option {
	return func(c *Config) {
		c.Frames = f
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

// WithAudioDevices overrides how microphone and speaker are opened.
func WithAudioDevices(source audioio.SourceFactory, sink audioio.SinkFactory) Option {
	return func(c *Config) {
		c.NewSource = source
		c.NewSink = sink
	}
}
