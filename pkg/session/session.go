// Package session manages one live streaming session with a remote AI
// endpoint: the WebSocket channel and its reconnection policy, the
// microphone and camera pipeline feeding periodic realtime_input
// messages, and playback of the audio the endpoint sends back.
//
// State changes, transcript lines and errors are delivered in order to a
// single handler registered with OnEvent.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/teslashibe/go-arvoice/internal/metrics"
	"github.com/teslashibe/go-arvoice/pkg/audioio"
	"github.com/teslashibe/go-arvoice/pkg/protocol"
)

var tracer trace.Tracer = otel.Tracer("github.com/teslashibe/go-arvoice/pkg/session")

// Session is a single streaming session.
type Session struct {
	id      string
	cfg     Config
	logger  *slog.Logger
	dialer  Dialer
	metrics *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Channel state, guarded by mu.
	mu       sync.Mutex
	state    State
	conn     Conn
	gen      uint64
	attempts int
	closed   bool
	timer    *time.Timer

	writeMu sync.Mutex

	// Capture pipeline.
	capMu   sync.Mutex
	capture *captureRun
	active  atomic.Pointer[captureRun] // readable without capMu
	pending *Pending
	flushMu sync.Mutex
	level   atomic.Uint64

	// Playback pipeline, created on the first audio payload.
	playMu   sync.Mutex
	playback *audioio.PlaybackProcessor
	sink     audioio.Sink
	playErr  error

	transcript *Transcript

	events    *eventQueue
	handlerMu sync.RWMutex
	handler   func(Event)
}

// New creates a session. No channel is opened until Connect.
func New(cfg Config, opts ...Option) (*Session, error) {
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Dialer == nil {
		cfg.Dialer = NewWebsocketDialer(cfg.HandshakeTimeout, cfg.WriteTimeout)
	}
	if cfg.NewSource == nil {
		cfg.NewSource = audioio.NewSource
	}
	if cfg.NewSink == nil {
		cfg.NewSink = audioio.NewSink
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		id:         id,
		cfg:        cfg,
		logger:     cfg.Logger.With("component", "session", "session_id", id),
		dialer:     cfg.Dialer,
		metrics:    cfg.Metrics,
		ctx:        ctx,
		cancel:     cancel,
		pending:    NewPending(cfg.MaxPendingSamples),
		transcript: NewTranscript(cfg.MaxTranscript),
		events:     newEventQueue(),
	}

	if s.cfg.Auth == nil {
		switch {
		case cfg.UseADC:
			auth, err := DefaultCredentials(ctx)
			if err != nil {
				cancel()
				return nil, err
			}
			s.cfg.Auth = auth
		case cfg.APIKey != "":
			s.cfg.Auth = APIKey(cfg.APIKey)
		}
	}

	s.metrics.SetState(int(StateDisconnected))
	go s.events.run(s.dispatch)

	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Attempts returns the number of reconnection attempts since the last
// successful open.
func (s *Session) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// Transcript returns the session transcript.
func (s *Session) Transcript() *Transcript {
	return s.transcript
}

// OnEvent registers the event handler. Events are delivered in order on a
// dedicated goroutine.
func (s *Session) OnEvent(fn func(Event)) {
	s.handlerMu.Lock()
	s.handler = fn
	s.handlerMu.Unlock()
}

func (s *Session) dispatch(e Event) {
	s.handlerMu.RLock()
	fn := s.handler
	s.handlerMu.RUnlock()
	if fn != nil {
		fn(e)
	}
}

func (s *Session) emitError(err error) {
	s.events.push(Event{Type: EventError, Error: err.Error()})
}

// setStateLocked applies a state change. Caller must hold mu.
func (s *Session) setStateLocked(to State) error {
	from := s.state
	if from == to {
		return nil
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	s.state = to
	s.metrics.SetState(int(to))
	s.logger.Info("session state changed", "from", from.String(), "to", to.String())
	s.events.push(Event{Type: EventState, State: to, Previous: from})
	return nil
}

// detachLocked forgets the current conn and invalidates its read loop.
// Caller must hold mu.
func (s *Session) detachLocked() Conn {
	conn := s.conn
	s.conn = nil
	s.gen++
	return conn
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// =============================================================================
// Connection lifecycle
// =============================================================================

// Connect opens the channel and sends the setup message. Connecting from
// the terminal error state starts a fresh reconnection budget.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.state == StateConnecting || s.state == StateConnected {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.stopTimerLocked()
	s.attempts = 0
	if err := s.setStateLocked(StateConnecting); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	return s.dial(ctx, 0)
}

// dial opens a channel for a session the caller has already moved to
// connecting, so concurrent callers cannot both get here.
func (s *Session) dial(ctx context.Context, attempt int) error {
	ctx, span := tracer.Start(ctx, "session.connect", trace.WithAttributes(
		attribute.String("session.id", s.id),
		attribute.Int("session.attempt", attempt),
	))
	defer span.End()

	s.metrics.IncConnectAttempt()

	fail := func(err error, gen uint64) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.handleFailure(err, gen)
		return err
	}

	target, header, err := s.handshake(ctx)
	if err != nil {
		return fail(NewConnectionError("authorize", err, true), 0)
	}

	dctx, cancel := context.WithTimeout(ctx, s.cfg.HandshakeTimeout)
	stop := context.AfterFunc(s.ctx, cancel)
	conn, err := s.dialer.Dial(dctx, target, header)
	stop()
	cancel()
	if err != nil {
		var cerr *ConnectionError
		if !errors.As(err, &cerr) {
			err = NewConnectionError("dial", err, true)
		}
		return fail(err, 0)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return ErrClosed
	}
	s.conn = conn
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	// The setup message must be the first thing on the wire, so it is
	// written before the state becomes connected and flushes may send.
	setup := protocol.NewSetup(s.cfg.Model, s.cfg.Generation)
	if err := s.writeTo(ctx, conn, setup); err != nil {
		return fail(NewConnectionError("send setup", err, true), gen)
	}

	s.mu.Lock()
	if s.closed || s.gen != gen {
		s.mu.Unlock()
		conn.Close()
		return ErrConnectionClosed
	}
	s.attempts = 0
	if err := s.setStateLocked(StateConnected); err != nil {
		s.mu.Unlock()
		return err
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go s.readLoop(conn, gen)

	s.logger.Info("connected", "endpoint", redact(target))
	return nil
}

// handshake builds the dial URL and headers.
func (s *Session) handshake(ctx context.Context) (string, http.Header, error) {
	u, err := url.Parse(s.cfg.Endpoint)
	if err != nil {
		return "", nil, err
	}
	header := http.Header{}
	if s.cfg.Auth != nil {
		if err := s.cfg.Auth.Authorize(ctx, u, header); err != nil {
			return "", nil, err
		}
	}
	return u.String(), header, nil
}

func (s *Session) readLoop(conn Conn, gen uint64) {
	defer s.wg.Done()

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			if isRemoteClose(err) {
				s.handleClosed(err, gen)
			} else {
				s.handleFailure(NewConnectionError("read", err, true), gen)
			}
			return
		}
		s.HandleInbound(data)
	}
}

// handleFailure moves the session to the error state, then runs the close
// handler. Failures of a superseded conn are ignored.
func (s *Session) handleFailure(cause error, gen uint64) {
	s.mu.Lock()
	if s.closed || (gen != 0 && gen != s.gen) {
		s.mu.Unlock()
		return
	}
	var conn Conn
	if gen != 0 {
		conn = s.detachLocked()
	}
	s.logger.Warn("channel error", "error", cause)
	s.events.push(Event{Type: EventError, Error: cause.Error()})
	_ = s.setStateLocked(StateError)
	s.onCloseLocked()
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// handleClosed runs the close handler after the peer closed the channel.
func (s *Session) handleClosed(cause error, gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return
	}
	conn := s.detachLocked()
	s.logger.Info("channel closed by peer", "reason", cause)
	s.onCloseLocked()
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// onCloseLocked decides between a delayed reconnect and the terminal error
// state. Caller must hold mu.
func (s *Session) onCloseLocked() {
	if s.attempts >= s.cfg.MaxReconnectAttempts {
		_ = s.setStateLocked(StateError)
		s.logger.Error("giving up on reconnection", "attempts", s.attempts)
		s.events.push(Event{Type: EventError, Error: ErrReconnectExhausted.Error()})
		return
	}

	_ = s.setStateLocked(StateDisconnected)
	s.attempts++
	attempt := s.attempts
	s.logger.Info("scheduling reconnect",
		"attempt", attempt,
		"max", s.cfg.MaxReconnectAttempts,
		"delay", s.cfg.ReconnectDelay,
	)
	s.stopTimerLocked()
	s.timer = time.AfterFunc(s.cfg.ReconnectDelay, func() { s.reconnect(attempt) })
}

func (s *Session) reconnect(attempt int) {
	s.mu.Lock()
	if s.closed || s.state != StateDisconnected || s.attempts != attempt {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	if err := s.setStateLocked(StateConnecting); err != nil {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	s.metrics.IncReconnect()
	if err := s.dial(s.ctx, attempt); err != nil {
		s.logger.Warn("reconnect failed", "attempt", attempt, "error", err)
	}
}

// =============================================================================
// Outbound
// =============================================================================

// send writes v on the current conn, which must be connected.
func (s *Session) send(ctx context.Context, v any) (int, error) {
	data, err := protocol.Encode(v)
	if err != nil {
		return 0, fmt.Errorf("session: encode message: %w", err)
	}

	s.mu.Lock()
	conn, gen, state := s.conn, s.gen, s.state
	s.mu.Unlock()
	if conn == nil || state != StateConnected {
		return 0, ErrNotConnected
	}

	if err := s.write(ctx, conn, data); err != nil {
		s.handleFailure(NewConnectionError("write", err, true), gen)
		return 0, fmt.Errorf("%w: %v", ErrConnectionClosed, err)
	}
	return len(data), nil
}

func (s *Session) writeTo(ctx context.Context, conn Conn, v any) error {
	data, err := protocol.Encode(v)
	if err != nil {
		return err
	}
	return s.write(ctx, conn, data)
}

func (s *Session) write(ctx context.Context, conn Conn, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteMessage(ctx, data)
}

// =============================================================================
// Teardown
// =============================================================================

// Close tears the session down: capture, channel, playback and every
// background goroutine. The session cannot be reused. Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.stopTimerLocked()
	conn := s.detachLocked()
	s.mu.Unlock()

	s.logger.Info("closing session")

	var errs []error
	if err := s.StopCapture(); err != nil {
		errs = append(errs, err)
	}
	if conn != nil {
		if err := conn.CloseNormal("client closing"); err != nil {
			s.logger.Debug("close frame failed", "error", err)
		}
	}
	if err := s.stopPlayback(); err != nil {
		errs = append(errs, err)
	}

	s.cancel()
	s.wg.Wait()

	s.mu.Lock()
	_ = s.setStateLocked(StateDisconnected)
	s.mu.Unlock()

	s.events.close()
	return errors.Join(errs...)
}

// redact hides credentials in a URL for logging.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Has("key") {
		q.Set("key", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
