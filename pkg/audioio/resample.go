package audioio

import "math"

// Resample converts audio from one sample rate to another using linear interpolation.
// This is a simple resampler suitable for speech audio.
func Resample(samples []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || len(samples) == 0 {
		return samples
	}

	ratio := float64(fromRate) / float64(toRate)
	newLen := int(float64(len(samples)) / ratio)
	if newLen == 0 {
		return []float32{}
	}

	return ResampleInto(make([]float32, newLen), samples, fromRate, toRate)
}

// ResampleInto resamples src into dst, filling dst completely, and returns dst.
// It does not allocate, so device callbacks can call it with a preallocated buffer.
func ResampleInto(dst, src []float32, fromRate, toRate int) []float32 {
	if len(src) == 0 {
		for i := range dst {
			dst[i] = 0
		}
		return dst
	}

	ratio := float64(fromRate) / float64(toRate)
	for i := range dst {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := float32(srcPos - float64(srcIdx))

		if srcIdx >= len(src)-1 {
			dst[i] = src[len(src)-1]
		} else {
			s1 := src[srcIdx]
			s2 := src[srcIdx+1]
			dst[i] = s1 + frac*(s2-s1)
		}
	}
	return dst
}

// CalculateRMS calculates the root mean square of samples.
// Returns a value between 0.0 and 1.0.
func CalculateRMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}

	return math.Sqrt(sum/float64(len(samples))) / 32767
}
