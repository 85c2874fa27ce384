package capture

import "sync"

// FakeBackend is an in-process [Backend] for tests. Configure its fields
// before handing it to [Start].
type FakeBackend struct {
	// ContextErr makes NewContext fail.
	ContextErr error

	// Ctx is returned by NewContext. A default context is created when nil.
	Ctx *FakeContext
}

func (b *FakeBackend) NewContext() (Context, error) {
	if b.ContextErr != nil {
		return nil, b.ContextErr
	}
	if b.Ctx == nil {
		b.Ctx = NewFakeContext(48000, 1)
	}
	return b.Ctx, nil
}

// FakeContext is a scriptable [Context].
type FakeContext struct {
	// OpenErr makes OpenCapture fail.
	OpenErr error

	// StartErr makes the opened device's Start fail.
	StartErr error

	// DeviceList is returned by Devices.
	DeviceList []DeviceInfo

	sampleRate int
	channels   int

	mu     sync.Mutex
	dev    *FakeDevice
	closed bool
}

// NewFakeContext creates a context whose devices run at the given rate and
// channel count.
func NewFakeContext(sampleRate, channels int) *FakeContext {
	return &FakeContext{
		DeviceList: []DeviceInfo{{ID: "00", Name: "fake microphone"}},
		sampleRate: sampleRate,
		channels:   channels,
	}
}

func (c *FakeContext) Devices() ([]DeviceInfo, error) {
	return c.DeviceList, nil
}

func (c *FakeContext) OpenCapture(_ Options, cb DataFunc) (Device, error) {
	if c.OpenErr != nil {
		return nil, c.OpenErr
	}
	dev := &FakeDevice{
		sampleRate: c.sampleRate,
		channels:   c.channels,
		startErr:   c.StartErr,
		cb:         cb,
	}
	c.mu.Lock()
	c.dev = dev
	c.mu.Unlock()
	return dev, nil
}

func (c *FakeContext) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Closed reports whether Close was called.
func (c *FakeContext) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Device returns the last device opened on this context, or nil.
func (c *FakeContext) Device() *FakeDevice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dev
}

// FakeDevice is a capture device driven manually by tests via [FakeDevice.Push].
type FakeDevice struct {
	sampleRate int
	channels   int
	startErr   error

	mu      sync.Mutex
	cb      DataFunc
	started bool
	closed  bool
}

func (d *FakeDevice) Start() error {
	if d.startErr != nil {
		return d.startErr
	}
	d.mu.Lock()
	d.started = true
	d.mu.Unlock()
	return nil
}

func (d *FakeDevice) Stop() error {
	d.mu.Lock()
	d.started = false
	d.mu.Unlock()
	return nil
}

func (d *FakeDevice) SampleRate() int { return d.sampleRate }

func (d *FakeDevice) Channels() int { return d.channels }

func (d *FakeDevice) Close() {
	d.mu.Lock()
	d.cb = nil
	d.closed = true
	d.mu.Unlock()
}

// Started reports whether the device is currently running.
func (d *FakeDevice) Started() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.started
}

// Closed reports whether Close was called.
func (d *FakeDevice) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Push feeds raw little-endian float32 bytes to the device callback, as the
// audio thread would.
func (d *FakeDevice) Push(data []byte, frames uint32) {
	d.mu.Lock()
	cb := d.cb
	started := d.started
	d.mu.Unlock()
	if cb != nil && started {
		cb(data, frames)
	}
}
