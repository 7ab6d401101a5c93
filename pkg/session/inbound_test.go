package session

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/teslashibe/go-arvoice/pkg/audioio"
)

// withManualSpeaker wires a manual-pull mock speaker and counts how often
// the session opens it.
func withManualSpeaker(sink *audioio.MockSink, opened *atomic.Int32) Option {
	return func(c *Config) {
		c.NewSink = func(audioio.Config, *slog.Logger) (audioio.Sink, error) {
			opened.Add(1)
			return sink, nil
		}
	}
}

func newSpeaker() *audioio.MockSink {
	return audioio.NewMockSink(audioio.DefaultPlaybackConfig(), discardLogger(), audioio.WithManualPull())
}

func TestHandleInbound_TextAndAudio(t *testing.T) {
	sink := newSpeaker()
	var opened atomic.Int32
	s, _ := newTestSession(t, withManualSpeaker(sink, &opened))

	samples := []int16{1000, -1000, 16384}
	audio := audioio.EncodeSamplesBase64(samples)
	s.HandleInbound([]byte(`{"text":"hello","audio":"` + audio + `"}`))

	entries := s.Transcript().Entries()
	if len(entries) != 1 || entries[0].Text != "hello" || entries[0].Role != RoleAssistant {
		t.Fatalf("Unexpected transcript %+v", entries)
	}
	if entries[0].Time.IsZero() {
		t.Error("Expected a timestamp")
	}

	out := sink.Pull(5)
	for i, want := range samples {
		if out[i] != audioio.SampleToFloat(want) {
			t.Errorf("Sample %d: expected %v, got %v", i, audioio.SampleToFloat(want), out[i])
		}
	}
	for i := len(samples); i < len(out); i++ {
		if out[i] != 0 {
			t.Errorf("Sample %d: expected silence, got %v", i, out[i])
		}
	}
}

func TestHandleInbound_LazyPlayback(t *testing.T) {
	var opened atomic.Int32
	s, _ := newTestSession(t, withManualSpeaker(newSpeaker(), &opened))

	s.HandleInbound([]byte(`{"text":"no audio yet"}`))
	if opened.Load() != 0 {
		t.Fatal("Speaker should not open before the first audio payload")
	}

	s.HandleInbound([]byte(`{"audio":"AAABAA=="}`))
	s.HandleInbound([]byte(`{"audio":"AAABAA=="}`))
	if opened.Load() != 1 {
		t.Errorf("Expected speaker opened once, got %d", opened.Load())
	}
}

func TestHandleInbound_MalformedDropped(t *testing.T) {
	sink := newSpeaker()
	var opened atomic.Int32
	s, _ := newTestSession(t, withManualSpeaker(sink, &opened))

	s.HandleInbound([]byte(`{"text":"partial","audio":"!!not base64!!"}`))
	s.HandleInbound([]byte(`not json`))
	s.HandleInbound([]byte(`{}`))

	if n := s.Transcript().Len(); n != 0 {
		t.Errorf("Expected malformed messages dropped whole, got %d transcript entries", n)
	}
	if opened.Load() != 0 {
		t.Error("Speaker should not open for a dropped message")
	}

	// The session keeps processing.
	s.HandleInbound([]byte(`{"text":"after"}`))
	if n := s.Transcript().Len(); n != 1 {
		t.Errorf("Expected 1 entry after recovery, got %d", n)
	}
}

func TestHandleInbound_NativeShape(t *testing.T) {
	sink := newSpeaker()
	var opened atomic.Int32
	s, _ := newTestSession(t, withManualSpeaker(sink, &opened))

	audio := audioio.EncodeSamplesBase64([]int16{8192})
	s.HandleInbound([]byte(`{"serverContent":{"modelTurn":{"parts":[` +
		`{"text":"native"},{"inlineData":{"mimeType":"audio/pcm;rate=24000","data":"` + audio + `"}}]}}}`))

	if entries := s.Transcript().Entries(); len(entries) != 1 || entries[0].Text != "native" {
		t.Errorf("Unexpected transcript %+v", entries)
	}
	if out := sink.Pull(1); out[0] != audioio.SampleToFloat(8192) {
		t.Errorf("Expected native audio played, got %v", out[0])
	}
}

func TestHandleInbound_InterruptedClearsPlayback(t *testing.T) {
	sink := newSpeaker()
	var opened atomic.Int32
	s, _ := newTestSession(t, withManualSpeaker(sink, &opened))

	s.HandleInbound([]byte(`{"audio":"` + audioio.EncodeSamplesBase64(make([]int16, 1000)) + `"}`))
	s.HandleInbound([]byte(`{"serverContent":{"interrupted":true}}`))

	sink.Pull(10)
	if st := s.Status(); st.Playback == nil || st.Playback.Queued != 0 {
		t.Errorf("Expected empty playback queue after interruption, got %+v", st.Playback)
	}
}

func TestHandleInbound_AudioAfterInterruptionPlays(t *testing.T) {
	sink := newSpeaker()
	var opened atomic.Int32
	s, _ := newTestSession(t, withManualSpeaker(sink, &opened))

	s.HandleInbound([]byte(`{"audio":"` + audioio.EncodeSamplesBase64(make([]int16, 1000)) + `"}`))
	s.HandleInbound([]byte(`{"serverContent":{"interrupted":true}}`))
	s.HandleInbound([]byte(`{"audio":"` + audioio.EncodeSamplesBase64([]int16{8192, 8192}) + `"}`))

	out := sink.Pull(4)
	want := []float32{audioio.SampleToFloat(8192), audioio.SampleToFloat(8192), 0, 0}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("Sample %d = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestHandleInbound_ResamplesToPlaybackRate(t *testing.T) {
	var opened atomic.Int32
	s, _ := newTestSession(t, withManualSpeaker(newSpeaker(), &opened))

	audio := audioio.EncodeSamplesBase64(make([]int16, 100))
	s.HandleInbound([]byte(`{"serverContent":{"modelTurn":{"parts":[` +
		`{"inlineData":{"mimeType":"audio/pcm;rate=12000","data":"` + audio + `"}}]}}}`))

	st := s.Status()
	if st.Playback == nil || st.Playback.Pushed != 200 {
		t.Errorf("Expected 100 samples at 12kHz pushed as 200 at 24kHz, got %+v", st.Playback)
	}
}

func TestHandleInbound_FromReadLoop(t *testing.T) {
	s, d := newTestSession(t)

	got := make(chan Event, 8)
	s.OnEvent(func(e Event) {
		if e.Type == EventTranscript {
			got <- e
		}
	})

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	d.conn(0).reads <- []byte(`{"text":"first"}`)
	d.conn(0).reads <- []byte(`{"text":"second"}`)

	for _, want := range []string{"first", "second"} {
		waitFor(t, "transcript event", func() bool { return len(got) > 0 })
		e := <-got
		if e.Entry == nil || e.Entry.Text != want {
			t.Errorf("Expected %q, got %+v", want, e.Entry)
		}
	}
}
