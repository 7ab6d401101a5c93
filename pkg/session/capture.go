package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/teslashibe/go-arvoice/pkg/audioio"
	"github.com/teslashibe/go-arvoice/pkg/protocol"
)

// FrameSource produces JPEG snapshots of the camera.
type FrameSource interface {
	// Snapshot returns one JPEG frame. A nil frame with a nil error means
	// the scene is unchanged and the cached frame should be kept.
	Snapshot(ctx context.Context) ([]byte, error)
}

// captureRun is one StartCapture..StopCapture lifetime.
type captureRun struct {
	source  audioio.Source
	proc    *audioio.CaptureProcessor
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started time.Time
}

// StartCapture acquires the microphone (and camera, when configured) and
// starts the flush cadence. A device failure is returned and capture does
// not start; the connection state is unaffected.
func (s *Session) StartCapture(ctx context.Context) error {
	s.capMu.Lock()
	defer s.capMu.Unlock()

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if s.capture != nil {
		return ErrCaptureActive
	}

	proc, err := audioio.NewCaptureProcessor(s.cfg.Capture, s.logger)
	if err != nil {
		return err
	}

	source, err := s.cfg.NewSource(s.cfg.Microphone, s.logger)
	if err != nil {
		s.emitError(err)
		return fmt.Errorf("session: open microphone: %w", err)
	}

	if s.cfg.Frames != nil {
		if err := s.snapshot(ctx); err != nil {
			source.Close()
			s.emitError(err)
			return fmt.Errorf("session: open camera: %w", err)
		}
	}

	runCtx, cancel := context.WithCancel(s.ctx)
	if err := source.Start(runCtx, proc.Process); err != nil {
		cancel()
		source.Close()
		s.emitError(err)
		return fmt.Errorf("session: start microphone: %w", err)
	}

	run := &captureRun{
		source:  source,
		proc:    proc,
		cancel:  cancel,
		started: time.Now(),
	}

	run.wg.Add(2)
	go s.consumeCapture(runCtx, run)
	go s.flushLoop(runCtx, run)
	if s.cfg.Frames != nil {
		run.wg.Add(1)
		go s.frameLoop(runCtx, run)
	}

	s.capture = run
	s.active.Store(run)
	s.logger.Info("capture started",
		"backend", source.Name(),
		"video", s.cfg.Frames != nil,
		"flush_interval", s.cfg.FlushInterval,
	)
	s.events.push(Event{Type: EventCapture, Active: true})
	return nil
}

// StopCapture releases the capture devices and stops the flush cadence.
// Pending media is kept. StopCapture is idempotent.
func (s *Session) StopCapture() error {
	s.capMu.Lock()
	run := s.capture
	s.capture = nil
	s.active.Store(nil)
	s.capMu.Unlock()

	if run == nil {
		return nil
	}

	run.cancel()
	var errs []error
	if err := run.source.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("session: stop microphone: %w", err))
	}
	if err := run.source.Close(); err != nil {
		errs = append(errs, fmt.Errorf("session: close microphone: %w", err))
	}
	run.wg.Wait()

	s.level.Store(0)
	s.logger.Info("capture stopped", "duration", time.Since(run.started).Round(time.Millisecond))
	s.events.push(Event{Type: EventCapture, Active: false})
	return errors.Join(errs...)
}

// Capturing reports whether capture is active.
func (s *Session) Capturing() bool {
	return s.active.Load() != nil
}

// InputLevel returns the RMS level (0-1) of the last captured frame.
func (s *Session) InputLevel() float64 {
	return math.Float64frombits(s.level.Load())
}

func (s *Session) consumeCapture(ctx context.Context, run *captureRun) {
	defer run.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-run.proc.Messages():
			switch msg.Type {
			case audioio.MessagePCMData:
				s.pending.AppendPCM(msg.Data)
				level := audioio.CalculateRMS(msg.Data)
				s.level.Store(math.Float64bits(level))
				s.metrics.ObserveCaptureFrame(level)
				s.metrics.SetPending(s.pending.Len())
			case audioio.MessageError:
				s.metrics.IncCaptureError()
				s.logger.Warn("capture callback error", "error", msg.Error)
				s.emitError(fmt.Errorf("capture: %s", msg.Error))
			default:
				s.logger.Debug("capture notice", "type", msg.Type, "text", msg.Error)
			}
		}
	}
}

func (s *Session) flushLoop(ctx context.Context, run *captureRun) {
	defer run.wg.Done()

	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Flush(ctx); err != nil {
				if IsNotConnected(err) {
					s.logger.Debug("flush skipped", "error", err)
				} else {
					s.logger.Warn("flush failed", "error", err)
				}
			}
		}
	}
}

func (s *Session) frameLoop(ctx context.Context, run *captureRun) {
	defer run.wg.Done()

	ticker := time.NewTicker(s.cfg.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.snapshot(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("snapshot failed", "error", err)
			}
		}
	}
}

// snapshot refreshes the cached frame.
func (s *Session) snapshot(ctx context.Context) error {
	jpeg, err := s.cfg.Frames.Snapshot(ctx)
	if err != nil {
		s.metrics.IncSnapshot("error")
		return err
	}
	if jpeg == nil {
		s.metrics.IncSnapshot("unchanged")
		return nil
	}
	s.pending.SetFrame(base64.StdEncoding.EncodeToString(jpeg))
	s.metrics.IncSnapshot("ok")
	return nil
}

// Flush sends everything captured since the last successful flush as one
// realtime_input message: the pending audio, if any, and the cached camera
// frame, if any. On success exactly the sent samples are discarded; the
// frame is kept for later flushes. When nothing is pending, Flush sends
// nothing. When the channel is not open, media is retained and
// ErrNotConnected is returned.
func (s *Session) Flush(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	pcm, frame, end := s.pending.Snapshot()
	if len(pcm) == 0 && frame == "" {
		return nil
	}

	ctx, span := tracer.Start(ctx, "session.flush")
	defer span.End()
	span.SetAttributes(
		attribute.Int("flush.samples", len(pcm)),
		attribute.Bool("flush.frame", frame != ""),
	)

	if s.State() != StateConnected {
		s.metrics.ObserveFlush("not_connected", 0)
		return ErrNotConnected
	}

	var chunks []protocol.MediaChunk
	if len(pcm) > 0 {
		chunks = append(chunks, protocol.AudioChunk(audioio.EncodeSamplesBase64(pcm)))
	}
	if frame != "" {
		chunks = append(chunks, protocol.ImageChunk(frame))
	}

	n, err := s.send(ctx, protocol.NewRealtimeInput(chunks...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.ObserveFlush("error", 0)
		return err
	}

	s.pending.DiscardThrough(end)
	s.metrics.ObserveFlush("ok", n)
	s.metrics.SetPending(s.pending.Len())
	s.logger.Debug("flushed media", "samples", len(pcm), "frame", frame != "", "bytes", n)
	return nil
}
