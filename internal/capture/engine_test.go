package capture_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/miclink/miclink/internal/capture"
	"github.com/miclink/miclink/pkg/audio"
)

// recordingSink collects frames pushed by the engine.
type recordingSink struct {
	mu     sync.Mutex
	frames [][]byte
	reject bool
}

func (s *recordingSink) Send(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reject {
		return false
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	s.frames = append(s.frames, buf)
	return true
}

func (s *recordingSink) Frames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.frames))
	copy(out, s.frames)
	return out
}

func pushSamples(dev *capture.FakeDevice, n int) {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(i%100) / 100
	}
	dev.Push(audio.EncodeF32LE(samples), uint32(n))
}

func TestEngineResamples48kChunk(t *testing.T) {
	backend := &capture.FakeBackend{Ctx: capture.NewFakeContext(48000, 1)}
	sink := &recordingSink{}

	e, err := capture.Start(backend, capture.Config{}, sink)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Close()

	if got := e.CaptureRate(); got != 48000 {
		t.Fatalf("capture rate: got %d, want 48000", got)
	}

	// Deliver exactly one chunk in two callback ticks.
	pushSamples(backend.Ctx.Device(), 2048)
	pushSamples(backend.Ctx.Device(), 2048)

	frames := sink.Frames()
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	// 4096 samples at 48 kHz resample to 1365 samples of PCM16.
	if got := len(frames[0]); got != 1365*2 {
		t.Errorf("frame size: got %d bytes, want %d", got, 1365*2)
	}
}

func TestEngineBuffersPartialChunks(t *testing.T) {
	backend := &capture.FakeBackend{Ctx: capture.NewFakeContext(48000, 1)}
	sink := &recordingSink{}

	e, err := capture.Start(backend, capture.Config{}, sink)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Close()

	pushSamples(backend.Ctx.Device(), 3000)
	if got := len(sink.Frames()); got != 0 {
		t.Fatalf("partial chunk emitted %d frames", got)
	}

	pushSamples(backend.Ctx.Device(), 1100)
	if got := len(sink.Frames()); got != 1 {
		t.Errorf("expected 1 frame after crossing chunk boundary, got %d", got)
	}
}

func TestEngineDownmixesStereo(t *testing.T) {
	backend := &capture.FakeBackend{Ctx: capture.NewFakeContext(48000, 2)}
	sink := &recordingSink{}

	e, err := capture.Start(backend, capture.Config{}, sink)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Close()

	// 8192 interleaved stereo samples downmix to one 4096-sample chunk.
	pushSamples(backend.Ctx.Device(), 8192)
	if got := len(sink.Frames()); got != 1 {
		t.Errorf("expected 1 frame from stereo input, got %d", got)
	}
}

func TestEngineSendFailureDoesNotAbort(t *testing.T) {
	backend := &capture.FakeBackend{Ctx: capture.NewFakeContext(48000, 1)}
	sink := &recordingSink{reject: true}

	e, err := capture.Start(backend, capture.Config{}, sink)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Close()

	pushSamples(backend.Ctx.Device(), 4096)

	// Streaming continues: accept the next chunk and verify it arrives.
	sink.mu.Lock()
	sink.reject = false
	sink.mu.Unlock()

	pushSamples(backend.Ctx.Device(), 4096)
	if got := len(sink.Frames()); got != 1 {
		t.Errorf("expected streaming to continue after a dropped frame, got %d frames", got)
	}
}

func TestStartFailuresReleasePartialResources(t *testing.T) {
	t.Run("context init fails", func(t *testing.T) {
		backend := &capture.FakeBackend{ContextErr: errors.New("backend exploded")}
		_, err := capture.Start(backend, capture.Config{}, &recordingSink{})
		if !errors.Is(err, capture.ErrDeviceUnavailable) {
			t.Errorf("expected ErrDeviceUnavailable, got %v", err)
		}
	})

	t.Run("open fails with permission error", func(t *testing.T) {
		ctx := capture.NewFakeContext(48000, 1)
		ctx.OpenErr = capture.ErrPermissionDenied
		backend := &capture.FakeBackend{Ctx: ctx}

		_, err := capture.Start(backend, capture.Config{}, &recordingSink{})
		if !errors.Is(err, capture.ErrPermissionDenied) {
			t.Errorf("expected ErrPermissionDenied, got %v", err)
		}
		if !ctx.Closed() {
			t.Error("capture context leaked after open failure")
		}
	})

	t.Run("device start fails", func(t *testing.T) {
		ctx := capture.NewFakeContext(48000, 1)
		ctx.StartErr = errors.New("device busy")
		backend := &capture.FakeBackend{Ctx: ctx}

		_, err := capture.Start(backend, capture.Config{}, &recordingSink{})
		if !errors.Is(err, capture.ErrDeviceUnavailable) {
			t.Errorf("expected ErrDeviceUnavailable, got %v", err)
		}
		if !ctx.Closed() {
			t.Error("capture context leaked after start failure")
		}
		if dev := ctx.Device(); dev == nil || !dev.Closed() {
			t.Error("capture device leaked after start failure")
		}
	})
}

func TestEngineCloseIsIdempotent(t *testing.T) {
	ctx := capture.NewFakeContext(48000, 1)
	backend := &capture.FakeBackend{Ctx: ctx}
	sink := &recordingSink{}

	e, err := capture.Start(backend, capture.Config{}, sink)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	e.Close()
	e.Close()

	if !ctx.Closed() {
		t.Error("capture context not released")
	}
	if dev := ctx.Device(); !dev.Closed() {
		t.Error("capture device not released")
	}

	// Data arriving after Close is ignored.
	pushSamples(ctx.Device(), 4096)
	if got := len(sink.Frames()); got != 0 {
		t.Errorf("frames emitted after Close: %d", got)
	}
}
