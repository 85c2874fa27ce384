package capture

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gen2brain/malgo"
)

// fallbackRate is requested when the caller does not pin a capture rate.
// miniaudio resamples internally when the hardware runs at a different rate.
const fallbackRate = 48000

// MalgoBackend implements [Backend] over malgo (miniaudio).
type MalgoBackend struct{}

// NewContext initialises a miniaudio context.
func (MalgoBackend) NewContext() (Context, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("malgo init context: %w", err)
	}
	return &malgoContext{ctx: ctx}, nil
}

type malgoContext struct {
	ctx *malgo.AllocatedContext
}

func (m *malgoContext) Devices() ([]DeviceInfo, error) {
	devices, err := m.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("malgo devices: %w", err)
	}
	var result []DeviceInfo
	for _, d := range devices {
		result = append(result, DeviceInfo{
			ID:   hex.EncodeToString(d.ID[:]),
			Name: d.Name(),
		})
	}
	return result, nil
}

func (m *malgoContext) OpenCapture(opts Options, cb DataFunc) (Device, error) {
	rate := opts.SampleRate
	if rate <= 0 {
		rate = fallbackRate
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(rate)

	if opts.Device != "" {
		info, err := m.findDevice(opts.Device)
		if err != nil {
			return nil, err
		}
		idBytes, err := hex.DecodeString(info.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid device ID %q: %w", info.ID, err)
		}
		var devID malgo.DeviceID
		copy(devID[:], idBytes)
		deviceConfig.Capture.DeviceID = devID.Pointer()
	}

	if opts.EchoCancellation || opts.NoiseSuppression || opts.AutoGain {
		// miniaudio has no built-in AEC/NS/AGC stage; rely on what the OS
		// capture path applies.
		slog.Debug("capture post-processing not applied by backend",
			"echo_cancellation", opts.EchoCancellation,
			"noise_suppression", opts.NoiseSuppression,
			"auto_gain", opts.AutoGain,
		)
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, data []byte, frameCount uint32) {
			cb(data, frameCount)
		},
	}

	dev, err := malgo.InitDevice(m.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("malgo init device: %w", err)
	}
	return &malgoDevice{device: dev, sampleRate: rate}, nil
}

// findDevice resolves a case-insensitive name substring to a capture device.
func (m *malgoContext) findDevice(name string) (DeviceInfo, error) {
	devices, err := m.Devices()
	if err != nil {
		return DeviceInfo{}, err
	}
	needle := strings.ToLower(name)
	for _, d := range devices {
		if strings.Contains(strings.ToLower(d.Name), needle) {
			return d, nil
		}
	}
	return DeviceInfo{}, fmt.Errorf("%w: no capture device matching %q", ErrDeviceUnavailable, name)
}

func (m *malgoContext) Close() error {
	if err := m.ctx.Uninit(); err != nil {
		m.ctx.Free()
		return fmt.Errorf("malgo uninit context: %w", err)
	}
	m.ctx.Free()
	return nil
}

type malgoDevice struct {
	device     *malgo.Device
	sampleRate int
}

func (d *malgoDevice) Start() error {
	return d.device.Start()
}

func (d *malgoDevice) Stop() error {
	return d.device.Stop()
}

func (d *malgoDevice) SampleRate() int { return d.sampleRate }

func (d *malgoDevice) Channels() int { return 1 }

func (d *malgoDevice) Close() {
	d.device.Uninit()
}
