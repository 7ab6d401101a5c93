// Package protocol defines the JSON messages exchanged with the live AI endpoint.
//
// Outbound there are two shapes: a one-time setup message and periodic
// realtime_input messages carrying media chunks. Inbound messages are either
// the compact {text?, audio?} shape used by the relay, or the native Live API
// serverContent shape; both are accepted.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"strconv"
	"strings"
)

// MIME types for media chunks.
const (
	MIMEAudioPCM  = "audio/pcm"
	MIMEImageJPEG = "image/jpeg"
)

// ErrEmptyMessage indicates an inbound message carried nothing to dispatch.
var ErrEmptyMessage = errors.New("protocol: empty message")

// =============================================================================
// Outbound
// =============================================================================

// SetupMessage is sent once, immediately after the channel opens.
type SetupMessage struct {
	Setup Setup `json:"setup"`
}

// Setup carries model parameters.
type Setup struct {
	Model            string           `json:"model,omitempty"`
	GenerationConfig GenerationConfig `json:"generation_config"`
}

// GenerationConfig holds sampling parameters for the remote model.
type GenerationConfig struct {
	Temperature        float64  `json:"temperature" yaml:"temperature"`
	TopP               float64  `json:"top_p" yaml:"top_p"`
	TopK               int      `json:"top_k" yaml:"top_k"`
	MaxOutputTokens    int      `json:"max_output_tokens" yaml:"max_output_tokens"`
	ResponseModalities []string `json:"response_modalities,omitempty" yaml:"response_modalities"`
}

// DefaultGenerationConfig returns the sampling parameters used by the app.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Temperature:     0.7,
		TopP:            0.95,
		TopK:            40,
		MaxOutputTokens: 1024,
	}
}

// Validate checks parameter ranges.
func (g *GenerationConfig) Validate() error {
	if g.Temperature < 0 || g.Temperature > 2 {
		return fmt.Errorf("temperature must be in [0, 2], got %v", g.Temperature)
	}
	if g.TopP < 0 || g.TopP > 1 {
		return fmt.Errorf("top_p must be in [0, 1], got %v", g.TopP)
	}
	if g.TopK < 0 {
		return fmt.Errorf("top_k must not be negative, got %d", g.TopK)
	}
	if g.MaxOutputTokens <= 0 {
		return fmt.Errorf("max_output_tokens must be positive, got %d", g.MaxOutputTokens)
	}
	return nil
}

// RealtimeInputMessage carries media captured since the last flush.
type RealtimeInputMessage struct {
	RealtimeInput RealtimeInput `json:"realtime_input"`
}

// RealtimeInput is a batch of media chunks.
type RealtimeInput struct {
	MediaChunks []MediaChunk `json:"media_chunks"`
}

// MediaChunk is one base64-encoded media payload.
type MediaChunk struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"` // base64 encoded
}

// =============================================================================
// Inbound
// =============================================================================

// Inbound is a message received from the endpoint.
type Inbound struct {
	// Compact shape.
	Text  *string `json:"text,omitempty"`
	Audio *string `json:"audio,omitempty"` // base64 PCM16LE at the playback rate

	// Native Live API shape.
	SetupComplete *struct{}      `json:"setupComplete,omitempty"`
	ServerContent *ServerContent `json:"serverContent,omitempty"`
}

// ServerContent is the native model output envelope.
type ServerContent struct {
	ModelTurn    *Content `json:"modelTurn,omitempty"`
	TurnComplete bool     `json:"turnComplete,omitempty"`
	Interrupted  bool     `json:"interrupted,omitempty"`
}

// Content is a list of parts.
type Content struct {
	Parts []Part `json:"parts"`
}

// Part is either text or inline data.
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

// InlineData is a base64 blob with a MIME type.
type InlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// ParseInbound parses an inbound message.
func ParseInbound(data []byte) (*Inbound, error) {
	var msg Inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Text == nil && msg.Audio == nil && msg.SetupComplete == nil && msg.ServerContent == nil {
		return nil, ErrEmptyMessage
	}
	return &msg, nil
}

// Texts returns every text payload in arrival order.
func (m *Inbound) Texts() []string {
	var out []string
	if m.Text != nil && *m.Text != "" {
		out = append(out, *m.Text)
	}
	if m.ServerContent != nil && m.ServerContent.ModelTurn != nil {
		for _, p := range m.ServerContent.ModelTurn.Parts {
			if p.Text != "" {
				out = append(out, p.Text)
			}
		}
	}
	return out
}

// AudioPayload is one base64 PCM16LE audio blob. Rate is the sample rate
// named in its MIME type, or 0 when none was given.
type AudioPayload struct {
	Data string
	Rate int
}

// AudioChunks returns every audio payload in arrival order.
func (m *Inbound) AudioChunks() []AudioPayload {
	var out []AudioPayload
	if m.Audio != nil && *m.Audio != "" {
		out = append(out, AudioPayload{Data: *m.Audio})
	}
	if m.ServerContent != nil && m.ServerContent.ModelTurn != nil {
		for _, p := range m.ServerContent.ModelTurn.Parts {
			if p.InlineData != nil && strings.HasPrefix(p.InlineData.MIMEType, "audio/") {
				out = append(out, AudioPayload{
					Data: p.InlineData.Data,
					Rate: RateFromMIME(p.InlineData.MIMEType),
				})
			}
		}
	}
	return out
}

// RateFromMIME extracts the rate parameter from a MIME type such as
// "audio/pcm;rate=24000". It returns 0 when the parameter is missing or invalid.
func RateFromMIME(mimeType string) int {
	_, params, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return 0
	}
	rate, err := strconv.Atoi(params["rate"])
	if err != nil || rate <= 0 {
		return 0
	}
	return rate
}

// Interrupted reports whether the model was cut off by user speech.
func (m *Inbound) Interrupted() bool {
	return m.ServerContent != nil && m.ServerContent.Interrupted
}

// TurnComplete reports whether the model finished its turn.
func (m *Inbound) TurnComplete() bool {
	return m.ServerContent != nil && m.ServerContent.TurnComplete
}
