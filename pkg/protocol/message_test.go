package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNewSetup_WireShape(t *testing.T) {
	data, err := Encode(NewSetup("", GenerationConfig{
		Temperature:     0.5,
		TopP:            0.9,
		TopK:            20,
		MaxOutputTokens: 256,
	}))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var raw map[string]map[string]map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	gen, ok := raw["setup"]["generation_config"]
	if !ok {
		t.Fatalf("Expected setup.generation_config, got %s", data)
	}
	for _, key := range []string{"temperature", "top_p", "top_k", "max_output_tokens"} {
		if _, ok := gen[key]; !ok {
			t.Errorf("Missing generation_config.%s", key)
		}
	}
	if _, ok := gen["response_modalities"]; ok {
		t.Error("response_modalities should be omitted when empty")
	}
	if _, ok := raw["setup"]["model"]; ok {
		t.Error("model should be omitted when empty")
	}
}

func TestNewRealtimeInput_WireShape(t *testing.T) {
	data, err := Encode(NewRealtimeInput(AudioChunk("AAA="), ImageChunk("/9g=")))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	want := `{"realtime_input":{"media_chunks":[{"mime_type":"audio/pcm","data":"AAA="},{"mime_type":"image/jpeg","data":"/9g="}]}}`
	if string(data) != want {
		t.Errorf("Encode() = %s, want %s", data, want)
	}
}

func TestParseInbound(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantErr     bool
		texts       int
		audio       int
		interrupted bool
	}{
		{name: "text", input: `{"text":"hello"}`, texts: 1},
		{name: "audio", input: `{"audio":"AAA="}`, audio: 1},
		{name: "both", input: `{"text":"hi","audio":"AAA="}`, texts: 1, audio: 1},
		{
			name:  "native model turn",
			input: `{"serverContent":{"modelTurn":{"parts":[{"text":"a"},{"inlineData":{"mimeType":"audio/pcm;rate=24000","data":"AAA="}},{"inlineData":{"mimeType":"image/png","data":"x"}}]}}}`,
			texts: 1,
			audio: 1,
		},
		{name: "interrupted", input: `{"serverContent":{"interrupted":true}}`, interrupted: true},
		{name: "setup complete", input: `{"setupComplete":{}}`},
		{name: "empty object", input: `{}`, wantErr: true},
		{name: "invalid json", input: `{"text":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseInbound([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseInbound() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got := len(msg.Texts()); got != tt.texts {
				t.Errorf("Texts() = %d, want %d", got, tt.texts)
			}
			if got := len(msg.AudioChunks()); got != tt.audio {
				t.Errorf("AudioChunks() = %d, want %d", got, tt.audio)
			}
			if msg.Interrupted() != tt.interrupted {
				t.Errorf("Interrupted() = %v, want %v", msg.Interrupted(), tt.interrupted)
			}
		})
	}
}

func TestParseInbound_EmptySentinel(t *testing.T) {
	_, err := ParseInbound([]byte(`{"unknown":1}`))
	if !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("Expected ErrEmptyMessage, got %v", err)
	}
}

func TestGenerationConfig_Validate(t *testing.T) {
	cfg := DefaultGenerationConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}

	cfg.TopP = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for top_p > 1")
	}

	cfg = DefaultGenerationConfig()
	cfg.MaxOutputTokens = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for zero max_output_tokens")
	}
}

func TestRateFromMIME(t *testing.T) {
	tests := []struct {
		mime string
		want int
	}{
		{"audio/pcm;rate=24000", 24000},
		{"audio/pcm; rate=16000", 16000},
		{"audio/pcm", 0},
		{"audio/pcm;rate=fast", 0},
		{"audio/pcm;rate=-1", 0},
		{";;", 0},
	}

	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			if got := RateFromMIME(tt.mime); got != tt.want {
				t.Errorf("RateFromMIME(%q) = %d, want %d", tt.mime, got, tt.want)
			}
		})
	}
}

func TestAudioChunks_Rate(t *testing.T) {
	msg, err := ParseInbound([]byte(`{"audio":"AAA=","serverContent":{"modelTurn":{"parts":[{"inlineData":{"mimeType":"audio/pcm;rate=16000","data":"BBB="}}]}}}`))
	if err != nil {
		t.Fatalf("ParseInbound failed: %v", err)
	}
	chunks := msg.AudioChunks()
	if len(chunks) != 2 {
		t.Fatalf("Expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Data != "AAA=" || chunks[0].Rate != 0 {
		t.Errorf("Unexpected compact chunk %+v", chunks[0])
	}
	if chunks[1].Data != "BBB=" || chunks[1].Rate != 16000 {
		t.Errorf("Unexpected native chunk %+v", chunks[1])
	}
}
