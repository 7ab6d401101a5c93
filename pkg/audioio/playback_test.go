package audioio

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestPlayback(t *testing.T, cfg PlaybackConfig) *PlaybackProcessor {
	t.Helper()
	p, err := NewPlaybackProcessor(cfg, nil)
	if err != nil {
		t.Fatalf("NewPlaybackProcessor failed: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func ramp(n int) []float32 {
	block := make([]float32, n)
	for i := range block {
		block[i] = float32(i+1) / float32(n+1)
	}
	return block
}

func TestPlaybackProcessor_SilenceFill(t *testing.T) {
	p := newTestPlayback(t, DefaultPlaybackProcessorConfig())

	queued := ramp(100)
	if err := p.Push(context.Background(), queued); err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	out := make([]float32, 256)
	for i := range out {
		out[i] = 9 // garbage from a previous callback
	}
	p.Process(out)

	for i := 0; i < 100; i++ {
		if out[i] != queued[i] {
			t.Fatalf("Sample %d: expected %v, got %v", i, queued[i], out[i])
		}
	}
	for i := 100; i < 256; i++ {
		if out[i] != 0 {
			t.Fatalf("Sample %d: expected silence, got %v", i, out[i])
		}
	}

	// The shortfall is not carried over.
	next := make([]float32, 64)
	p.Process(next)
	for i, s := range next {
		if s != 0 {
			t.Fatalf("Sample %d of next block: expected silence, got %v", i, s)
		}
	}
}

func TestPlaybackProcessor_ExactDrain(t *testing.T) {
	p := newTestPlayback(t, DefaultPlaybackProcessorConfig())
	ctx := context.Background()

	a := ramp(300)
	b := ramp(200)
	p.Push(ctx, a)
	p.Push(ctx, b)

	out := make([]float32, 128)
	var got []float32
	for i := 0; i < 4; i++ {
		p.Process(out)
		got = append(got, out...)
	}

	want := append(append([]float32{}, a...), b...)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Sample %d: expected %v, got %v", i, want[i], got[i])
		}
	}
	if p.Queued() != 0 {
		t.Errorf("Expected empty queue, got %d", p.Queued())
	}

	stats := p.Stats()
	if stats.Pushed != 500 || stats.Played != 500 {
		t.Errorf("Expected 500 pushed and played, got %+v", stats)
	}
	if stats.Underruns != 1 {
		t.Errorf("Expected 1 underrun, got %d", stats.Underruns)
	}
}

func TestPlaybackProcessor_DropOldest(t *testing.T) {
	cfg := DefaultPlaybackProcessorConfig()
	cfg.MaxQueuedSamples = 100
	p := newTestPlayback(t, cfg)

	block := ramp(150)
	p.Push(context.Background(), block)

	out := make([]float32, 100)
	p.Process(out)

	for i := range out {
		if out[i] != block[50+i] {
			t.Fatalf("Sample %d: expected %v, got %v", i, block[50+i], out[i])
		}
	}
	if stats := p.Stats(); stats.Dropped != 50 {
		t.Errorf("Expected 50 dropped samples, got %d", stats.Dropped)
	}

	select {
	case msg := <-p.Notices():
		if msg.Type != MessageWarning {
			t.Errorf("Expected warning notice, got %q", msg.Type)
		}
	default:
		t.Error("Expected an overflow notice")
	}
}

func TestPlaybackProcessor_Unbounded(t *testing.T) {
	cfg := DefaultPlaybackProcessorConfig()
	cfg.MaxQueuedSamples = 0
	p := newTestPlayback(t, cfg)

	for i := 0; i < 10; i++ {
		p.Push(context.Background(), make([]float32, 1000))
	}
	p.Process(make([]float32, 10))

	if p.Queued() != 9990 {
		t.Errorf("Expected 9990 queued samples, got %d", p.Queued())
	}
}

func TestPlaybackProcessor_Clear(t *testing.T) {
	p := newTestPlayback(t, DefaultPlaybackProcessorConfig())

	p.Push(context.Background(), ramp(500))
	p.Process(make([]float32, 10))
	p.Push(context.Background(), ramp(500))

	p.Clear()

	out := make([]float32, 32)
	p.Process(out)
	for i, s := range out {
		if s != 0 {
			t.Fatalf("Sample %d: expected silence after Clear, got %v", i, s)
		}
	}
	if p.Queued() != 0 {
		t.Errorf("Expected empty queue after Clear, got %d", p.Queued())
	}
}

func TestPlaybackProcessor_ClearKeepsLaterPushes(t *testing.T) {
	p := newTestPlayback(t, DefaultPlaybackProcessorConfig())

	p.Push(context.Background(), ramp(100))
	p.Clear()
	next := ramp(100)
	p.Push(context.Background(), next)

	out := make([]float32, 100)
	p.Process(out)
	for i := range out {
		if out[i] != next[i] {
			t.Fatalf("Sample %d = %v, want %v from the block pushed after Clear", i, out[i], next[i])
		}
	}
	if p.Queued() != 0 {
		t.Errorf("Expected empty queue, got %d", p.Queued())
	}
}

func TestPlaybackProcessor_ClearBetweenCallbacks(t *testing.T) {
	p := newTestPlayback(t, DefaultPlaybackProcessorConfig())

	p.Push(context.Background(), ramp(500))
	p.Process(make([]float32, 10))

	p.Clear()
	next := ramp(20)
	p.Push(context.Background(), next)
	p.Clear()
	p.Push(context.Background(), ramp(30))

	p.Process(make([]float32, 10))
	if p.Queued() != 20 {
		t.Errorf("Expected only the last block queued (20 left), got %d", p.Queued())
	}
}

func TestPlaybackProcessor_PushBackpressure(t *testing.T) {
	cfg := DefaultPlaybackProcessorConfig()
	cfg.Inbox = 1
	p := newTestPlayback(t, cfg)

	if err := p.Push(context.Background(), ramp(10)); err != nil {
		t.Fatalf("First push failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := p.Push(ctx, ramp(10)); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded on full inbox, got %v", err)
	}

	p.Close()
	if err := p.Push(context.Background(), ramp(10)); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed after Close, got %v", err)
	}
}

func TestPlaybackProcessor_Concurrent(t *testing.T) {
	p := newTestPlayback(t, DefaultPlaybackProcessorConfig())

	const blocks = 50
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < blocks; i++ {
			if err := p.Push(context.Background(), make([]float32, 100)); err != nil {
				t.Errorf("Push failed: %v", err)
				return
			}
		}
	}()

	out := make([]float32, 128)
	deadline := time.After(2 * time.Second)
	for p.Stats().Played < blocks*100 {
		select {
		case <-deadline:
			t.Fatalf("Timed out, played %d", p.Stats().Played)
		default:
		}
		p.Process(out)
	}
	<-done
}
