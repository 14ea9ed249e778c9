package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Device is an opened device and queue with the limits and surface format
// the rest of the package needs.
type Device struct {
	Device hal.Device
	Queue  hal.Queue

	// Info describes the selected adapter. It is zero for provider devices
	// that do not expose one.
	Info   gputypes.AdapterInfo
	Limits gputypes.Limits

	// Format is the preferred color target format, or
	// TextureFormatUndefined when headless.
	Format gputypes.TextureFormat

	instance hal.Instance
	external bool
}

// OpenStandalone creates an instance of the registered backend and opens
// the best adapter: discrete, then integrated, then whatever comes first.
//
// Returns ErrCapability if the backend is not registered and
// ErrAdapterUnavailable if no adapter can be opened.
func OpenStandalone(backend gputypes.Backend) (*Device, error) {
	b, ok := hal.GetBackend(backend)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCapability, backend)
	}
	instance, err := b.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("%w: create %s instance: %w", ErrCapability, backend, err)
	}

	adapters := instance.EnumerateAdapters(nil)
	selected := selectAdapter(adapters)
	if selected == nil {
		instance.Destroy()
		return nil, fmt.Errorf("%w: %s reported no adapters", ErrAdapterUnavailable, backend)
	}

	// The device only guarantees what was requested at Open, so the
	// requested limits are the ones recorded.
	limits := gputypes.DefaultLimits()
	openDev, err := selected.Adapter.Open(gputypes.Features(0), limits)
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("%w: open %q: %w", ErrAdapterUnavailable, selected.Info.Name, err)
	}

	slogger().Info("gpu: adapter selected",
		"backend", backend,
		"name", selected.Info.Name,
		"type", selected.Info.DeviceType)
	return &Device{
		Device:   openDev.Device,
		Queue:    openDev.Queue,
		Info:     selected.Info,
		Limits:   limits,
		instance: instance,
	}, nil
}

func selectAdapter(adapters []hal.ExposedAdapter) *hal.ExposedAdapter {
	if len(adapters) == 0 {
		return nil
	}
	for _, want := range []gputypes.DeviceType{gputypes.DeviceTypeDiscreteGPU, gputypes.DeviceTypeIntegratedGPU} {
		for i := range adapters {
			if adapters[i].Info.DeviceType == want {
				return &adapters[i]
			}
		}
	}
	return &adapters[0]
}

// FromProvider wraps a device owned by someone else, typically a host
// window. The provider must implement HalDevice() any and HalQueue() any
// returning hal.Device and hal.Queue. If it also implements
// SurfaceFormat() gputypes.TextureFormat that format becomes Format.
//
// Close on the result does not destroy the provider's device.
func FromProvider(provider any) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("%w: provider does not expose HAL types", ErrAdapterUnavailable)
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: provider HalDevice is not hal.Device", ErrAdapterUnavailable)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: provider HalQueue is not hal.Queue", ErrAdapterUnavailable)
	}

	d := &Device{
		Device:   device,
		Queue:    queue,
		Limits:   gputypes.DefaultLimits(),
		external: true,
	}
	if fp, ok := provider.(interface{ SurfaceFormat() gputypes.TextureFormat }); ok {
		d.Format = fp.SurfaceFormat()
	}
	slogger().Info("gpu: using shared device", "format", d.Format)
	return d, nil
}

// External reports whether the device belongs to a provider.
func (d *Device) External() bool { return d.external }

// Close destroys a standalone device and its instance. It is a no-op for
// provider devices and safe to call more than once.
func (d *Device) Close() {
	if d == nil || d.external {
		return
	}
	if d.Device != nil {
		d.Device.Destroy()
		d.Device = nil
		d.Queue = nil
	}
	if d.instance != nil {
		d.instance.Destroy()
		d.instance = nil
	}
}
