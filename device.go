package cellgrid

import (
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/cellgrid/internal/gpu"
)

// Device is an opened GPU device and queue. It implements
// gpucontext.DeviceProvider so it can be shared with other gogpu
// libraries.
type Device struct {
	d           *gpu.Device
	adapterInfo gpucontext.AdapterInfo
}

var _ gpucontext.DeviceProvider = (*Device)(nil)

// OpenDevice opens a standalone device on a registered HAL backend,
// preferring a discrete adapter, then an integrated one.
//
// The backend package must be linked in, for example with
//
//	import _ "github.com/gogpu/wgpu/hal/vulkan"
//
// Returns ErrCapability if it is not, and ErrAdapterUnavailable if no
// adapter can be opened.
func OpenDevice(backend gputypes.Backend) (*Device, error) {
	d, err := gpu.OpenStandalone(backend)
	if err != nil {
		return nil, err
	}
	return &Device{
		d: d,
		adapterInfo: gpucontext.AdapterInfo{
			Name: d.Info.Name,
			Type: adapterType(d.Info.DeviceType),
		},
	}, nil
}

// DeviceFromProvider uses the device of a host such as a gogpu window.
// The provider must also implement HalDevice() any and HalQueue() any.
// Its SurfaceFormat becomes the default color format.
func DeviceFromProvider(p gpucontext.DeviceProvider) (*Device, error) {
	d, err := gpu.FromProvider(p)
	if err != nil {
		return nil, err
	}
	return &Device{d: d, adapterInfo: p.AdapterInfo()}, nil
}

func adapterType(t gputypes.DeviceType) gpucontext.AdapterType {
	switch t {
	case gputypes.DeviceTypeDiscreteGPU:
		return gpucontext.AdapterTypeDiscrete
	case gputypes.DeviceTypeIntegratedGPU:
		return gpucontext.AdapterTypeIntegrated
	case gputypes.DeviceTypeCPU:
		return gpucontext.AdapterTypeSoftware
	default:
		return gpucontext.AdapterTypeUnknown
	}
}

// Device returns the hal.Device.
func (d *Device) Device() gpucontext.Device { return d.d.Device }

// Queue returns the hal.Queue.
func (d *Device) Queue() gpucontext.Queue { return d.d.Queue }

// HalDevice returns the hal.Device.
func (d *Device) HalDevice() any { return d.d.Device }

// HalQueue returns the hal.Queue.
func (d *Device) HalQueue() any { return d.d.Queue }

// SurfaceFormat returns the preferred color format, or
// TextureFormatUndefined when headless.
func (d *Device) SurfaceFormat() gputypes.TextureFormat { return d.d.Format }

// Adapter returns nil; the HAL adapter is not exposed.
func (d *Device) Adapter() gpucontext.Adapter { return nil }

// AdapterInfo describes the adapter the device was opened on.
func (d *Device) AdapterInfo() gpucontext.AdapterInfo { return d.adapterInfo }

// NewOffscreenSurface creates a headless render target.
func (d *Device) NewOffscreenSurface(width, height uint32, format gputypes.TextureFormat) (*OffscreenSurface, error) {
	if format == gputypes.TextureFormatUndefined {
		format = d.d.Format
	}
	return gpu.NewOffscreenSurface(d.d.Device, width, height, format)
}

// Close releases a standalone device. Devices from DeviceFromProvider are
// left to their owner.
func (d *Device) Close() { d.d.Close() }
