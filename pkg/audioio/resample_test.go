package audioio

import (
	"testing"
)

func TestResample_SameRate(t *testing.T) {
	samples := []float32{0.1, 0.2, 0.3, 0.4, 0.5}
	result := Resample(samples, 24000, 24000)

	if len(result) != len(samples) {
		t.Errorf("Expected %d samples, got %d", len(samples), len(result))
	}

	for i, s := range samples {
		if result[i] != s {
			t.Errorf("Sample %d: expected %v, got %v", i, s, result[i])
		}
	}
}

func TestResample_Downsample(t *testing.T) {
	// 48kHz -> 16kHz (3:1 ratio)
	samples := make([]float32, 960) // 20ms at 48kHz
	result := Resample(samples, 48000, 16000)

	if len(result) != 320 {
		t.Errorf("Expected 320 samples, got %d", len(result))
	}
}

func TestResample_Upsample(t *testing.T) {
	// 16kHz -> 24kHz (2:3 ratio)
	samples := make([]float32, 320) // 20ms at 16kHz
	for i := range samples {
		samples[i] = float32(i) / 320
	}

	result := Resample(samples, 16000, 24000)

	if len(result) != 480 {
		t.Errorf("Expected 480 samples, got %d", len(result))
	}
	// Interpolated midpoint between sample 0 and 1.
	if got, want := result[1], samples[0]+(samples[1]-samples[0])*2/3; got-want > 1e-6 || want-got > 1e-6 {
		t.Errorf("Expected interpolated %v, got %v", want, got)
	}
}

func TestResample_Empty(t *testing.T) {
	if result := Resample(nil, 24000, 48000); len(result) != 0 {
		t.Errorf("Expected empty result for nil input")
	}
}

func TestResampleInto_FillsDestination(t *testing.T) {
	dst := make([]float32, 160)
	for i := range dst {
		dst[i] = 9
	}
	ResampleInto(dst, make([]float32, 480), 48000, 16000)
	for i, s := range dst {
		if s != 0 {
			t.Fatalf("Sample %d: expected 0, got %v", i, s)
		}
	}
}

func TestCalculateRMS(t *testing.T) {
	if rms := CalculateRMS([]int16{0, 0, 0}); rms != 0 {
		t.Errorf("Expected RMS 0 for silence, got %f", rms)
	}

	if rms := CalculateRMS([]int16{32767, -32767, 32767}); rms < 0.99 || rms > 1.01 {
		t.Errorf("Expected RMS ~1.0 for full scale, got %f", rms)
	}

	if rms := CalculateRMS([]int16{16384, -16384}); rms < 0.49 || rms > 0.51 {
		t.Errorf("Expected RMS ~0.5 for half scale, got %f", rms)
	}

	if rms := CalculateRMS(nil); rms != 0 {
		t.Errorf("Expected RMS 0 for empty, got %f", rms)
	}
}
