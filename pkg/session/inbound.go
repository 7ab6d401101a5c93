package session

import (
	"fmt"

	"github.com/teslashibe/go-arvoice/pkg/audioio"
	"github.com/teslashibe/go-arvoice/pkg/protocol"
)

// HandleInbound dispatches one message received from the endpoint: text
// goes to the transcript and audio to playback. A malformed message is
// logged and dropped as a whole; the session keeps running.
func (s *Session) HandleInbound(data []byte) {
	msg, err := protocol.ParseInbound(data)
	if err != nil {
		s.dropInbound(err)
		return
	}

	texts := msg.Texts()
	chunks := msg.AudioChunks()

	// Decode everything before applying anything.
	blocks := make([][]float32, 0, len(chunks))
	for _, chunk := range chunks {
		block, err := audioio.DecodePCM16Base64(chunk.Data)
		if err != nil {
			s.dropInbound(fmt.Errorf("decode audio: %w", err))
			return
		}
		if chunk.Rate > 0 && chunk.Rate != audioio.PlaybackSampleRate {
			block = audioio.Resample(block, chunk.Rate, audioio.PlaybackSampleRate)
		}
		blocks = append(blocks, block)
	}

	if msg.SetupComplete != nil {
		s.metrics.IncInbound("setup_complete")
		s.logger.Debug("setup acknowledged")
	}

	if msg.Interrupted() {
		s.metrics.IncInbound("interrupted")
		s.logger.Info("model interrupted, clearing playback")
		s.playMu.Lock()
		if s.playback != nil {
			s.playback.Clear()
		}
		s.playMu.Unlock()
	}

	for _, text := range texts {
		s.metrics.IncInbound("text")
		entry := s.transcript.Append(RoleAssistant, text)
		s.events.push(Event{Type: EventTranscript, Entry: &entry})
	}

	for _, block := range blocks {
		s.metrics.IncInbound("audio")
		if len(block) == 0 {
			continue
		}
		if err := s.play(block); err != nil {
			s.logger.Warn("playback push failed", "error", err)
			return
		}
	}

	if msg.TurnComplete() {
		s.metrics.IncInbound("turn_complete")
	}
}

func (s *Session) dropInbound(err error) {
	s.metrics.IncDecodeError()
	s.logger.Warn("dropping inbound message", "error", err)
}

// play hands one decoded block to the playback pipeline, creating it on
// first use. It blocks while the playback inbox is full.
func (s *Session) play(block []float32) error {
	proc, err := s.ensurePlayback()
	if err != nil {
		return err
	}
	if err := proc.Push(s.ctx, block); err != nil {
		return err
	}
	s.metrics.AddPlayback(len(block), proc.Queued())
	return nil
}

func (s *Session) ensurePlayback() (*audioio.PlaybackProcessor, error) {
	s.playMu.Lock()
	defer s.playMu.Unlock()

	if s.playback != nil {
		return s.playback, nil
	}
	if s.playErr != nil {
		return nil, s.playErr
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	proc, err := audioio.NewPlaybackProcessor(s.cfg.Playback, s.logger)
	if err != nil {
		s.playErr = err
		return nil, err
	}

	sink, err := s.cfg.NewSink(s.cfg.Speaker, s.logger)
	if err == nil {
		err = sink.Start(s.ctx, proc.Process)
		if err != nil {
			sink.Close()
		}
	}
	if err != nil {
		proc.Close()
		s.playErr = fmt.Errorf("session: open speaker: %w", err)
		s.logger.Error("playback unavailable", "error", err)
		s.emitError(s.playErr)
		return nil, s.playErr
	}

	s.playback = proc
	s.sink = sink

	s.wg.Add(1)
	go s.watchPlayback(proc)

	s.logger.Info("playback started", "backend", sink.Name(), "sample_rate", s.cfg.Speaker.SampleRate)
	return proc, nil
}

func (s *Session) watchPlayback(proc *audioio.PlaybackProcessor) {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-proc.Notices():
			s.metrics.IncPlaybackNotice(string(msg.Type))
			s.logger.Warn("playback notice", "type", msg.Type, "text", msg.Error)
		}
	}
}

// stopPlayback releases the speaker. No playback is created afterwards.
func (s *Session) stopPlayback() error {
	s.playMu.Lock()
	defer s.playMu.Unlock()

	if s.playErr == nil {
		s.playErr = ErrClosed
	}
	if s.playback == nil {
		return nil
	}

	var err error
	if serr := s.sink.Stop(); serr != nil {
		err = fmt.Errorf("session: stop speaker: %w", serr)
	}
	s.sink.Close()
	s.playback.Close()
	s.playback = nil
	s.sink = nil
	return err
}
