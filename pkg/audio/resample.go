// Package audio provides the sample-rate conversion and quantisation
// primitives for the miclink pipeline. All functions are pure: identical
// inputs always produce byte-identical output, and independent calls are
// safe to run concurrently.
package audio

import "math"

// Resample converts normalised float samples at srcRate into little-endian
// signed 16-bit PCM at dstRate using linear interpolation.
//
// When srcRate equals dstRate each sample is quantised directly with no
// interpolation. Otherwise the output length is round(len(samples)/ratio)
// with ratio = srcRate/dstRate; output sample i is interpolated between the
// two source samples straddling position i*ratio, with the upper index
// clamped to the final source sample.
func Resample(samples []float32, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || len(samples) == 0 {
		return nil
	}
	if srcRate == dstRate {
		return Quantize(samples)
	}

	ratio := float64(srcRate) / float64(dstRate)
	dstSamples := int(math.Round(float64(len(samples)) / ratio))
	if dstSamples == 0 {
		return nil
	}

	out := make([]byte, dstSamples*2)
	for i := range dstSamples {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		if srcIdx >= len(samples) {
			srcIdx = len(samples) - 1
			frac = 0
		}
		nextIdx := srcIdx + 1
		if nextIdx >= len(samples) {
			nextIdx = len(samples) - 1
		}

		interpolated := float64(samples[srcIdx])*(1-frac) + float64(samples[nextIdx])*frac
		s := quantizeSample(float32(interpolated))
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// Quantize converts normalised float samples to little-endian signed 16-bit
// PCM without rate conversion.
func Quantize(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, v := range samples {
		s := quantizeSample(v)
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// quantizeSample clamps v to [-1, 1] and scales it into the asymmetric
// signed 16-bit range: negative values by 32768, non-negative by 32767.
// The scaled value is truncated toward zero, the same rule on both the
// identity and interpolation paths.
func quantizeSample(v float32) int16 {
	if v < -1 {
		v = -1
	} else if v > 1 {
		v = 1
	}
	if v < 0 {
		return int16(v * 32768)
	}
	return int16(v * 32767)
}

// DownmixStereo averages interleaved stereo float samples into mono.
// Used when a capture backend cannot open a mono stream.
func DownmixStereo(samples []float32) []float32 {
	frames := len(samples) / 2
	out := make([]float32, frames)
	for i := range frames {
		out[i] = (samples[i*2] + samples[i*2+1]) / 2
	}
	return out
}
