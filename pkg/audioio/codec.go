package audioio

import (
	"encoding/base64"
	"fmt"
	"math"
)

// FloatToSample maps a float sample in [-1, 1] to a signed 16-bit value.
// Out-of-range input is clamped.
func FloatToSample(s float32) int16 {
	v := float64(s)
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return int16(math.Round(v * 32767))
}

// SampleToFloat maps a signed 16-bit value to a float sample.
func SampleToFloat(s int16) float32 {
	return float32(s) / 32768
}

// FloatToSamples converts float samples to int16 samples.
func FloatToSamples(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		out[i] = FloatToSample(s)
	}
	return out
}

// FloatToPCM16 encodes float samples as PCM16 little-endian bytes.
func FloatToPCM16(samples []float32) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := FloatToSample(s)
		data[i*2] = byte(v)
		data[i*2+1] = byte(v >> 8)
	}
	return data
}

// PCM16ToFloat decodes PCM16 little-endian bytes into float samples.
// A trailing odd byte does not form a sample and is ignored.
func PCM16ToFloat(data []byte) []float32 {
	out := make([]float32, len(data)/2)
	for i := range out {
		out[i] = SampleToFloat(int16(data[i*2]) | int16(data[i*2+1])<<8)
	}
	return out
}

// BytesToSamples converts raw PCM16 little-endian bytes to int16 samples.
// A trailing odd byte is ignored.
func BytesToSamples(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
	return samples
}

// SamplesToBytes converts int16 samples to raw PCM16 little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		data[i*2] = byte(s)
		data[i*2+1] = byte(s >> 8)
	}
	return data
}

// EncodeBase64 frames binary audio for embedding in JSON.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64 reverses EncodeBase64.
func DecodeBase64(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("audioio: decode base64: %w", err)
	}
	return data, nil
}

// DecodePCM16Base64 decodes a base64 PCM16 payload into float samples.
func DecodePCM16Base64(s string) ([]float32, error) {
	data, err := DecodeBase64(s)
	if err != nil {
		return nil, err
	}
	return PCM16ToFloat(data), nil
}

// EncodeSamplesBase64 encodes int16 samples as base64 PCM16LE.
func EncodeSamplesBase64(samples []int16) string {
	return EncodeBase64(SamplesToBytes(samples))
}

// ValidateBlock reports the first non-finite sample in a block.
func ValidateBlock(samples []float32) error {
	for i, s := range samples {
		v := float64(s)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: sample %d is %v", ErrMalformedBlock, i, s)
		}
	}
	return nil
}
