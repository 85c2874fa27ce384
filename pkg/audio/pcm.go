package audio

import (
	"encoding/binary"
	"math"
)

// DecodeF32LE interprets raw capture bytes as little-endian float32 samples.
// Trailing bytes that do not form a whole sample are ignored.
func DecodeF32LE(data []byte) []float32 {
	samples := make([]float32, len(data)/4)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		samples[i] = math.Float32frombits(bits)
	}
	return samples
}

// EncodeF32LE converts float samples to their little-endian byte
// representation. Inverse of [DecodeF32LE]; used by capture test doubles.
func EncodeF32LE(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, v := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

// DecodeS16LE interprets little-endian signed 16-bit PCM bytes as samples.
func DecodeS16LE(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}
