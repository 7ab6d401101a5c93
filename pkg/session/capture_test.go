package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-arvoice/pkg/audioio"
	"github.com/teslashibe/go-arvoice/pkg/protocol"
)

type fakeFrames struct {
	mu    sync.Mutex
	jpeg  []byte
	err   error
	calls int
}

func (f *fakeFrames) Snapshot(context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.jpeg, nil
}

// withManualMic wires a manual-feed mock microphone into the session.
func withManualMic(src *audioio.MockSource) Option {
	return func(c *Config) {
		c.NewSource = func(audioio.Config, *slog.Logger) (audioio.Source, error) {
			return src, nil
		}
	}
}

func decodeRealtime(t *testing.T, data []byte) []protocol.MediaChunk {
	t.Helper()
	var msg protocol.RealtimeInputMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	return msg.RealtimeInput.MediaChunks
}

func TestFlush_ClearsAudioKeepsFrame(t *testing.T) {
	mic := audioio.NewMockSource(audioio.DefaultCaptureConfig(), discardLogger(), audioio.WithManualFeed())
	frames := &fakeFrames{jpeg: []byte{0xFF, 0xD8, 0xFF}}
	s, d := newTestSession(t, withManualMic(mic), WithFrameSource(frames))

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := s.StartCapture(context.Background()); err != nil {
		t.Fatalf("StartCapture failed: %v", err)
	}

	block := make([]float32, 4096)
	for i := range block {
		block[i] = 0.25
	}
	mic.Feed(block)
	waitFor(t, "captured frame", func() bool { return s.pending.Len() == 4096 })

	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	msgs := d.conn(0).messages()
	if len(msgs) != 2 {
		t.Fatalf("Expected setup and one realtime_input, got %d messages", len(msgs))
	}
	chunks := decodeRealtime(t, msgs[1])
	if len(chunks) != 2 {
		t.Fatalf("Expected audio and image chunks, got %d", len(chunks))
	}
	if chunks[0].MIMEType != protocol.MIMEAudioPCM || chunks[1].MIMEType != protocol.MIMEImageJPEG {
		t.Errorf("Unexpected chunk order: %q, %q", chunks[0].MIMEType, chunks[1].MIMEType)
	}

	pcm, err := base64.StdEncoding.DecodeString(chunks[0].Data)
	if err != nil {
		t.Fatalf("Audio is not base64: %v", err)
	}
	if len(pcm) != 4096*2 {
		t.Errorf("Expected %d bytes of PCM, got %d", 4096*2, len(pcm))
	}
	if got := audioio.BytesToSamples(pcm)[0]; got != audioio.FloatToSample(0.25) {
		t.Errorf("Expected first sample %d, got %d", audioio.FloatToSample(0.25), got)
	}
	if chunks[1].Data != base64.StdEncoding.EncodeToString(frames.jpeg) {
		t.Errorf("Unexpected image data %q", chunks[1].Data)
	}

	if s.pending.Len() != 0 {
		t.Errorf("Expected audio cleared after flush, got %d samples", s.pending.Len())
	}

	// The frame survives and is sent alone on the next flush.
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Second flush failed: %v", err)
	}
	msgs = d.conn(0).messages()
	if len(msgs) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(msgs))
	}
	chunks = decodeRealtime(t, msgs[2])
	if len(chunks) != 1 || chunks[0].MIMEType != protocol.MIMEImageJPEG {
		t.Errorf("Expected a lone image chunk, got %+v", chunks)
	}
}

func TestFlush_NothingPending(t *testing.T) {
	s, d := newTestSession(t)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if n := len(d.conn(0).messages()); n != 1 {
		t.Errorf("Expected only the setup message, got %d", n)
	}
}

func TestFlush_NotConnectedRetains(t *testing.T) {
	s, _ := newTestSession(t)

	s.pending.AppendPCM([]int16{1, 2, 3, 4})
	if err := s.Flush(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Expected ErrNotConnected, got %v", err)
	}
	if s.pending.Len() != 4 {
		t.Errorf("Expected samples retained, got %d", s.pending.Len())
	}
}

func TestStartCapture_DeviceError(t *testing.T) {
	mic := audioio.NewMockSource(audioio.DefaultCaptureConfig(), discardLogger(),
		audioio.WithStartError(errors.New("permission denied")))
	s, _ := newTestSession(t, withManualMic(mic))

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	err := s.StartCapture(context.Background())
	if !audioio.IsDeviceUnavailable(err) {
		t.Fatalf("Expected device error, got %v", err)
	}
	if s.Capturing() {
		t.Error("Capture should not be active after a device error")
	}
	if s.State() != StateConnected {
		t.Errorf("Device error should not affect the connection, got %s", s.State())
	}
}

func TestStartCapture_CameraError(t *testing.T) {
	mic := audioio.NewMockSource(audioio.DefaultCaptureConfig(), discardLogger(), audioio.WithManualFeed())
	frames := &fakeFrames{err: errors.New("camera busy")}
	s, _ := newTestSession(t, withManualMic(mic), WithFrameSource(frames))

	if err := s.StartCapture(context.Background()); err == nil {
		t.Fatal("Expected camera error")
	}
	if s.Capturing() {
		t.Error("Capture should not be active after a camera error")
	}
	if mic.Stats().Running {
		t.Error("Microphone should not be running")
	}
}

func TestStartStopCapture(t *testing.T) {
	mic := audioio.NewMockSource(audioio.DefaultCaptureConfig(), discardLogger(), audioio.WithManualFeed())
	s, _ := newTestSession(t, withManualMic(mic))

	if err := s.StartCapture(context.Background()); err != nil {
		t.Fatalf("StartCapture failed: %v", err)
	}
	if err := s.StartCapture(context.Background()); !errors.Is(err, ErrCaptureActive) {
		t.Errorf("Expected ErrCaptureActive, got %v", err)
	}
	if !s.Capturing() {
		t.Fatal("Expected capture active")
	}

	if err := s.StopCapture(); err != nil {
		t.Fatalf("StopCapture failed: %v", err)
	}
	if err := s.StopCapture(); err != nil {
		t.Errorf("Second StopCapture failed: %v", err)
	}
	if s.Capturing() {
		t.Error("Expected capture inactive")
	}

	// Feeding a stopped source is a no-op.
	mic.Feed(make([]float32, 4096))
	if s.pending.Len() != 0 {
		t.Errorf("Expected no samples after stop, got %d", s.pending.Len())
	}
}

func TestCapture_InputLevel(t *testing.T) {
	mic := audioio.NewMockSource(audioio.DefaultCaptureConfig(), discardLogger(), audioio.WithManualFeed())
	s, _ := newTestSession(t, withManualMic(mic))

	if err := s.StartCapture(context.Background()); err != nil {
		t.Fatalf("StartCapture failed: %v", err)
	}

	block := make([]float32, 4096)
	for i := range block {
		block[i] = 0.5
	}
	mic.Feed(block)

	waitFor(t, "input level", func() bool { return s.InputLevel() > 0 })
	if level := s.InputLevel(); level < 0.49 || level > 0.51 {
		t.Errorf("Expected level near 0.5, got %v", level)
	}
}

type slowFrames struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (f *slowFrames) Snapshot(ctx context.Context) ([]byte, error) {
	f.once.Do(func() { close(f.entered) })
	select {
	case <-f.release:
		return []byte{0xFF, 0xD8}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestStatus_NotBlockedByCameraOpen(t *testing.T) {
	mic := audioio.NewMockSource(audioio.DefaultCaptureConfig(), discardLogger(), audioio.WithManualFeed())
	frames := &slowFrames{entered: make(chan struct{}), release: make(chan struct{})}
	s, _ := newTestSession(t, withManualMic(mic), WithFrameSource(frames))

	started := make(chan error, 1)
	go func() { started <- s.StartCapture(context.Background()) }()
	<-frames.entered

	statuses := make(chan Status, 1)
	go func() { statuses <- s.Status() }()
	select {
	case st := <-statuses:
		if st.Capturing {
			t.Error("Capture should not be reported before StartCapture returns")
		}
	case <-time.After(time.Second):
		t.Fatal("Status blocked while the camera was opening")
	}

	close(frames.release)
	if err := <-started; err != nil {
		t.Fatalf("StartCapture failed: %v", err)
	}
	if !s.Status().Capturing {
		t.Error("Expected capturing after StartCapture")
	}
}
