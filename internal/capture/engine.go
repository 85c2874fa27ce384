package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/miclink/miclink/pkg/audio"
)

// Defaults for [Config].
const (
	DefaultChunkSamples = 4096
	DefaultTargetRate   = 16000
)

// Config parameterises an [Engine].
type Config struct {
	// ChunkSamples is the fixed number of capture samples per processing
	// chunk. Defaults to [DefaultChunkSamples].
	ChunkSamples int

	// TargetRate is the wire sample rate in Hz. Defaults to [DefaultTargetRate].
	TargetRate int

	// Options is passed through to the capture backend.
	Options Options
}

func (c *Config) applyDefaults() {
	if c.ChunkSamples <= 0 {
		c.ChunkSamples = DefaultChunkSamples
	}
	if c.TargetRate <= 0 {
		c.TargetRate = DefaultTargetRate
	}
}

// EngineOption configures a [Start] call.
type EngineOption func(*Engine)

// WithChunkObserver registers fn to be called with the processing duration
// of every emitted chunk. Used to feed metrics.
func WithChunkObserver(fn func(time.Duration)) EngineOption {
	return func(e *Engine) { e.onChunk = fn }
}

// Engine owns the capture context and device for one recording session and
// forwards resampled chunks to the sink. Create with [Start]; release with
// [Engine.Close].
type Engine struct {
	cfg     Config
	sink    FrameSink
	log     *slog.Logger
	onChunk func(time.Duration)

	ctx Context
	dev Device

	// mu guards buf and stopped. The data callback and Close run on
	// different goroutines.
	mu      sync.Mutex
	buf     []float32
	stopped bool

	closeOnce sync.Once
}

// Start acquires a capture device through the backend and begins streaming.
// On any failure every partially acquired resource is released before the
// error is returned; the error wraps [ErrPermissionDenied] or
// [ErrDeviceUnavailable].
func Start(backend Backend, cfg Config, sink FrameSink, opts ...EngineOption) (*Engine, error) {
	cfg.applyDefaults()

	e := &Engine{
		cfg:  cfg,
		sink: sink,
		log:  slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}

	ctx, err := backend.NewContext()
	if err != nil {
		return nil, fmt.Errorf("init capture context: %w", classify(err))
	}
	e.ctx = ctx

	dev, err := ctx.OpenCapture(cfg.Options, e.onData)
	if err != nil {
		_ = ctx.Close()
		return nil, fmt.Errorf("open capture device: %w", classify(err))
	}
	e.dev = dev

	if err := dev.Start(); err != nil {
		dev.Close()
		_ = ctx.Close()
		return nil, fmt.Errorf("start capture device: %w", classify(err))
	}

	e.log.Info("recording started",
		"capture_rate", dev.SampleRate(),
		"channels", dev.Channels(),
		"chunk_samples", cfg.ChunkSamples,
		"target_rate", cfg.TargetRate,
	)
	return e, nil
}

// onData runs on the backend's audio thread. It accumulates samples and
// emits one resampled frame per full chunk. Partial sends are dropped by
// the sink; a drop never aborts the session.
func (e *Engine) onData(data []byte, _ uint32) {
	samples := audio.DecodeF32LE(data)
	if e.dev.Channels() == 2 {
		samples = audio.DownmixStereo(samples)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}

	e.buf = append(e.buf, samples...)
	for len(e.buf) >= e.cfg.ChunkSamples {
		chunk := e.buf[:e.cfg.ChunkSamples]

		start := time.Now()
		pcm := audio.Resample(chunk, e.dev.SampleRate(), e.cfg.TargetRate)
		if e.onChunk != nil {
			e.onChunk(time.Since(start))
		}

		e.sink.Send(pcm)

		n := copy(e.buf, e.buf[e.cfg.ChunkSamples:])
		e.buf = e.buf[:n]
	}
}

// CaptureRate returns the device's capture rate in Hz.
func (e *Engine) CaptureRate() int {
	return e.dev.SampleRate()
}

// Close releases the recording resources in order: the processing callback
// is disconnected, the device is stopped and released, then the capture
// context. Idempotent; it never touches the peer connection or channels.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.stopped = true
		e.buf = nil
		e.mu.Unlock()

		if err := e.dev.Stop(); err != nil {
			e.log.Warn("capture device stop failed", "err", err)
		}
		e.dev.Close()
		if err := e.ctx.Close(); err != nil {
			e.log.Warn("capture context close failed", "err", err)
		}
		e.log.Info("recording stopped")
	})
}

// classify maps backend errors onto the package's fatal error taxonomy.
// Already-classified errors pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrDeviceUnavailable) {
		return err
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "access denied") || strings.Contains(msg, "permission") {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
}
