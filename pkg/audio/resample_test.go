package audio_test

import (
	"bytes"
	"testing"

	"github.com/miclink/miclink/pkg/audio"
)

func TestQuantizeBoundaries(t *testing.T) {
	tests := []struct {
		name string
		in   float32
		want int16
	}{
		{"positive full scale", 1.0, 32767},
		{"negative full scale", -1.0, -32768},
		{"silence", 0.0, 0},
		{"clamped above", 1.5, 32767},
		{"clamped below", -2.0, -32768},
		{"half scale", 0.5, 16383},
		{"negative half scale", -0.5, -16384},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := audio.DecodeS16LE(audio.Quantize([]float32{tt.in}))
			if len(got) != 1 {
				t.Fatalf("expected 1 sample, got %d", len(got))
			}
			if got[0] != tt.want {
				t.Errorf("got %d, want %d", got[0], tt.want)
			}
		})
	}
}

func TestResampleIdentity(t *testing.T) {
	in := []float32{0, 0.25, -0.25, 1, -1, 0.99}
	got := audio.Resample(in, 16000, 16000)
	want := audio.Quantize(in)
	if !bytes.Equal(got, want) {
		t.Errorf("identity resample differs from direct quantisation:\n got %v\nwant %v", got, want)
	}
}

func TestResampleDeterminism(t *testing.T) {
	in := make([]float32, 4096)
	for i := range in {
		in[i] = float32(i%200)/100 - 1
	}
	a := audio.Resample(in, 48000, 16000)
	b := audio.Resample(in, 48000, 16000)
	if !bytes.Equal(a, b) {
		t.Error("identical inputs produced different output")
	}
}

func TestResampleLengthLaw(t *testing.T) {
	tests := []struct {
		name    string
		inLen   int
		srcRate int
		dstRate int
		want    int // expected output samples
	}{
		{"48k chunk", 4096, 48000, 16000, 1365},
		{"44.1k chunk", 4096, 44100, 16000, 1486},
		{"32k chunk", 4096, 32000, 16000, 2048},
		{"same rate", 4096, 16000, 16000, 4096},
		{"upsample", 160, 8000, 16000, 320},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := make([]float32, tt.inLen)
			out := audio.Resample(in, tt.srcRate, tt.dstRate)
			got := len(out) / 2
			if got != tt.want {
				t.Errorf("output length: got %d samples, want %d", got, tt.want)
			}
		})
	}
}

func TestResampleInterpolation(t *testing.T) {
	// ratio 1.5: output positions fall at source 0, 1.5 and 3.0.
	in := []float32{0, 1, 0, 1}
	got := audio.DecodeS16LE(audio.Resample(in, 24000, 16000))
	want := []int16{0, 16383, 32767}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestResampleEmptyInput(t *testing.T) {
	if out := audio.Resample(nil, 48000, 16000); out != nil {
		t.Errorf("expected nil output for empty input, got %d bytes", len(out))
	}
	if out := audio.Resample([]float32{0.5}, 0, 16000); out != nil {
		t.Errorf("expected nil output for invalid source rate, got %d bytes", len(out))
	}
}

func TestDownmixStereo(t *testing.T) {
	in := []float32{1, 0, 0.5, 0.5, -1, 1}
	got := audio.DownmixStereo(in)
	want := []float32{0.5, 0.5, 0}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frame %d: got %f, want %f", i, got[i], want[i])
		}
	}
}

func TestEncodeDecodeF32LE(t *testing.T) {
	in := []float32{0, 0.5, -0.5, 1, -1}
	got := audio.DecodeF32LE(audio.EncodeF32LE(in))
	if len(got) != len(in) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(in))
	}
	for i := range in {
		if got[i] != in[i] {
			t.Errorf("sample %d: got %f, want %f", i, got[i], in[i])
		}
	}
}
