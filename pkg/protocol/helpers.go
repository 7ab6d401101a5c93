package protocol

import "encoding/json"

// NewSetup builds the setup message.
func NewSetup(model string, cfg GenerationConfig) *SetupMessage {
	return &SetupMessage{Setup: Setup{Model: model, GenerationConfig: cfg}}
}

// AudioChunk wraps base64 PCM16LE audio.
func AudioChunk(b64 string) MediaChunk {
	return MediaChunk{MIMEType: MIMEAudioPCM, Data: b64}
}

// ImageChunk wraps a base64 JPEG.
func ImageChunk(b64 string) MediaChunk {
	return MediaChunk{MIMEType: MIMEImageJPEG, Data: b64}
}

// NewRealtimeInput builds a realtime_input message from chunks.
func NewRealtimeInput(chunks ...MediaChunk) *RealtimeInputMessage {
	return &RealtimeInputMessage{RealtimeInput: RealtimeInput{MediaChunks: chunks}}
}

// Encode marshals any outbound message.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}
