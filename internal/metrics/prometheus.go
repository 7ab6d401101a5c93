// Package metrics exposes Prometheus metrics for the live voice pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all Prometheus metrics for a session.
// All methods are safe on a nil receiver.
type Metrics struct {
	// Connection metrics
	State           prometheus.Gauge
	ConnectAttempts prometheus.Counter
	Reconnects      prometheus.Counter

	// Outbound metrics
	Flushes        *prometheus.CounterVec
	FlushBytes     prometheus.Histogram
	PendingSamples prometheus.Gauge

	// Capture metrics
	CaptureFrames prometheus.Counter
	CaptureErrors prometheus.Counter
	InputLevel    prometheus.Gauge
	Snapshots     *prometheus.CounterVec

	// Inbound metrics
	InboundMessages *prometheus.CounterVec
	DecodeErrors    prometheus.Counter
	PlaybackSamples prometheus.Counter
	PlaybackQueued  prometheus.Gauge
	PlaybackNotices *prometheus.CounterVec
}

// New creates all metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		State: f.NewGauge(prometheus.GaugeOpts{
			Name: "arvoice_session_state",
			Help: "Current session state (0=disconnected, 1=connecting, 2=connected, 3=error)",
		}),
		ConnectAttempts: f.NewCounter(prometheus.CounterOpts{
			Name: "arvoice_connect_attempts_total",
			Help: "Total number of channel open attempts",
		}),
		Reconnects: f.NewCounter(prometheus.CounterOpts{
			Name: "arvoice_reconnects_total",
			Help: "Total number of timer-driven reconnection attempts",
		}),
		Flushes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "arvoice_flushes_total",
			Help: "Total number of flush attempts by result",
		}, []string{"result"}),
		FlushBytes: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "arvoice_flush_bytes",
			Help:    "Size of realtime_input messages in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 12),
		}),
		PendingSamples: f.NewGauge(prometheus.GaugeOpts{
			Name: "arvoice_pending_samples",
			Help: "PCM samples waiting for the next flush",
		}),
		CaptureFrames: f.NewCounter(prometheus.CounterOpts{
			Name: "arvoice_capture_frames_total",
			Help: "Total number of capture frames received from the audio callback",
		}),
		CaptureErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "arvoice_capture_errors_total",
			Help: "Total number of capture callback error notices",
		}),
		InputLevel: f.NewGauge(prometheus.GaugeOpts{
			Name: "arvoice_input_level",
			Help: "RMS level of the last capture frame (0-1)",
		}),
		Snapshots: f.NewCounterVec(prometheus.CounterOpts{
			Name: "arvoice_snapshots_total",
			Help: "Total number of camera snapshots by result",
		}, []string{"result"}),
		InboundMessages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "arvoice_inbound_messages_total",
			Help: "Total number of inbound payloads by kind",
		}, []string{"kind"}),
		DecodeErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "arvoice_decode_errors_total",
			Help: "Total number of inbound messages dropped as malformed",
		}),
		PlaybackSamples: f.NewCounter(prometheus.CounterOpts{
			Name: "arvoice_playback_samples_total",
			Help: "Total number of samples pushed to playback",
		}),
		PlaybackQueued: f.NewGauge(prometheus.GaugeOpts{
			Name: "arvoice_playback_queued_samples",
			Help: "Samples waiting in the playback queue",
		}),
		PlaybackNotices: f.NewCounterVec(prometheus.CounterOpts{
			Name: "arvoice_playback_notices_total",
			Help: "Total number of playback callback notices by type",
		}, []string{"type"}),
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// SetState records the numeric session state.
func (m *Metrics) SetState(state int) {
	if m == nil {
		return
	}
	m.State.Set(float64(state))
}

// IncConnectAttempt counts a channel open attempt.
func (m *Metrics) IncConnectAttempt() {
	if m == nil {
		return
	}
	m.ConnectAttempts.Inc()
}

// IncReconnect counts a timer-driven reconnect.
func (m *Metrics) IncReconnect() {
	if m == nil {
		return
	}
	m.Reconnects.Inc()
}

// ObserveFlush records a flush outcome.
func (m *Metrics) ObserveFlush(result string, bytes int) {
	if m == nil {
		return
	}
	m.Flushes.WithLabelValues(result).Inc()
	if bytes > 0 {
		m.FlushBytes.Observe(float64(bytes))
	}
}

// SetPending records the pending PCM sample count.
func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.PendingSamples.Set(float64(n))
}

// ObserveCaptureFrame records a capture frame and its level.
func (m *Metrics) ObserveCaptureFrame(level float64) {
	if m == nil {
		return
	}
	m.CaptureFrames.Inc()
	m.InputLevel.Set(level)
}

// IncCaptureError counts a capture callback error notice.
func (m *Metrics) IncCaptureError() {
	if m == nil {
		return
	}
	m.CaptureErrors.Inc()
}

// IncSnapshot counts a camera snapshot by result.
func (m *Metrics) IncSnapshot(result string) {
	if m == nil {
		return
	}
	m.Snapshots.WithLabelValues(result).Inc()
}

// IncInbound counts an inbound payload by kind.
func (m *Metrics) IncInbound(kind string) {
	if m == nil {
		return
	}
	m.InboundMessages.WithLabelValues(kind).Inc()
}

// IncDecodeError counts a dropped inbound message.
func (m *Metrics) IncDecodeError() {
	if m == nil {
		return
	}
	m.DecodeErrors.Inc()
}

// AddPlayback counts samples pushed to playback and the current queue depth.
func (m *Metrics) AddPlayback(samples, queued int) {
	if m == nil {
		return
	}
	m.PlaybackSamples.Add(float64(samples))
	m.PlaybackQueued.Set(float64(queued))
}

// IncPlaybackNotice counts a playback notice by type.
func (m *Metrics) IncPlaybackNotice(kind string) {
	if m == nil {
		return
	}
	m.PlaybackNotices.WithLabelValues(kind).Inc()
}
