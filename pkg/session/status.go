package session

import (
	"time"

	"github.com/teslashibe/go-arvoice/pkg/audioio"
)

// Status is a point-in-time view of the session.
type Status struct {
	ID             string                 `json:"id"`
	State          State                  `json:"state"`
	Attempts       int                    `json:"attempts"`
	MaxAttempts    int                    `json:"max_attempts"`
	Capturing      bool                   `json:"capturing"`
	Video          bool                   `json:"video"`
	InputLevel     float64                `json:"input_level"`
	PendingSamples int                    `json:"pending_samples"`
	DroppedSamples int64                  `json:"dropped_samples"`
	FrameAge       time.Duration          `json:"frame_age,omitempty"`
	Capture        *audioio.CaptureStats  `json:"capture,omitempty"`
	Playback       *audioio.PlaybackStats `json:"playback,omitempty"`
	Transcript     int                    `json:"transcript_entries"`
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	st := Status{
		ID:          s.id,
		State:       s.state,
		Attempts:    s.attempts,
		MaxAttempts: s.cfg.MaxReconnectAttempts,
		Video:       s.cfg.Frames != nil,
	}
	s.mu.Unlock()

	if run := s.active.Load(); run != nil {
		st.Capturing = true
		stats := run.proc.Stats()
		st.Capture = &stats
	}

	s.playMu.Lock()
	if s.playback != nil {
		stats := s.playback.Stats()
		st.Playback = &stats
	}
	s.playMu.Unlock()

	st.InputLevel = s.InputLevel()
	st.PendingSamples = s.pending.Len()
	st.DroppedSamples = s.pending.Dropped()
	if frame, at := s.pending.Frame(); frame != "" {
		st.FrameAge = time.Since(at)
	}
	st.Transcript = s.transcript.Len()
	return st
}
