// Package capture owns the microphone stream for a recording session.
//
// The [Backend]/[Context]/[Device] interfaces abstract the audio library so
// the engine can be driven by an in-process fake in tests. The real
// implementation is backed by malgo (miniaudio).
//
// An [Engine] ties a capture device to the outbound audio channel: the
// device delivers raw float samples on its own callback thread, the engine
// slices them into fixed-size chunks, resamples each chunk to the wire
// format, and pushes the result into a [FrameSink]. The callback path never
// performs blocking I/O.
package capture

import "errors"

// Fatal acquisition errors. They abort the recording attempt; any partially
// acquired resources are released before they are returned.
var (
	// ErrPermissionDenied means microphone access was refused.
	ErrPermissionDenied = errors.New("capture: microphone access denied")

	// ErrDeviceUnavailable means no usable capture device exists or the
	// device could not be opened.
	ErrDeviceUnavailable = errors.New("capture: no capture device available")
)

// Options carries the capture constraints requested from the device.
// Post-processing options are applied where the backend supports them.
type Options struct {
	// Device selects a capture device by case-insensitive name substring.
	// Empty selects the system default.
	Device string

	// SampleRate is the capture rate in Hz. Zero lets the backend choose.
	SampleRate int

	// EchoCancellation, NoiseSuppression and AutoGain request the
	// corresponding post-processing from the backend.
	EchoCancellation bool
	NoiseSuppression bool
	AutoGain         bool
}

// DeviceInfo identifies one capture device.
type DeviceInfo struct {
	ID   string // opaque backend-specific identifier
	Name string
}

// DataFunc receives raw capture data: interleaved little-endian float32
// samples and the number of sample frames. It is invoked on the backend's
// audio thread and must return quickly.
type DataFunc func(data []byte, frames uint32)

// Device is an open capture stream.
type Device interface {
	// Start begins delivering data to the callback.
	Start() error

	// Stop halts data delivery. Safe to call on a stopped device.
	Stop() error

	// SampleRate returns the stream's capture rate in Hz.
	SampleRate() int

	// Channels returns the stream's channel count (1 or 2).
	Channels() int

	// Close releases the device. The callback is not invoked afterwards.
	Close()
}

// Context is an initialised audio backend able to enumerate and open
// capture devices.
type Context interface {
	// Devices lists the available capture devices.
	Devices() ([]DeviceInfo, error)

	// OpenCapture opens a mono capture stream per opts, delivering data to cb.
	OpenCapture(opts Options, cb DataFunc) (Device, error)

	// Close releases the backend context.
	Close() error
}

// Backend creates capture contexts. One context is created per recording
// session and released when the session's resources are cleaned up.
type Backend interface {
	NewContext() (Context, error)
}

// FrameSink consumes encoded PCM16 frames. Send must not block; it reports
// whether the frame was accepted. [transport.BestEffort] satisfies this.
type FrameSink interface {
	Send(data []byte) bool
}
