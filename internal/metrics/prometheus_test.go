package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SetState(2)
	m.IncConnectAttempt()
	m.IncConnectAttempt()
	m.ObserveFlush("ok", 4096)
	m.ObserveFlush("not_connected", 0)
	m.IncInbound("audio")

	if got := testutil.ToFloat64(m.State); got != 2 {
		t.Errorf("State = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ConnectAttempts); got != 2 {
		t.Errorf("ConnectAttempts = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Flushes.WithLabelValues("ok")); got != 1 {
		t.Errorf("Flushes{ok} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.InboundMessages.WithLabelValues("audio")); got != 1 {
		t.Errorf("InboundMessages{audio} = %v, want 1", got)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.SetState(1)
	m.IncConnectAttempt()
	m.IncReconnect()
	m.ObserveFlush("ok", 10)
	m.SetPending(5)
	m.ObserveCaptureFrame(0.5)
	m.IncCaptureError()
	m.IncSnapshot("ok")
	m.IncInbound("text")
	m.IncDecodeError()
	m.AddPlayback(10, 10)
	m.IncPlaybackNotice("warning")
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.IncReconnect()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "arvoice_reconnects_total 1") {
		t.Errorf("Expected reconnect counter in output:\n%s", rec.Body.String())
	}
}
