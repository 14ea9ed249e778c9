package gpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Surface supplies the color attachment for each frame.
//
// CurrentView returns an error wrapping ErrNoSurfaceImage when no image
// is available this frame, or ErrDeviceLost when the device is gone.
type Surface interface {
	CurrentView() (hal.TextureView, error)
}

// SurfaceFunc adapts a function to the Surface interface.
type SurfaceFunc func() (hal.TextureView, error)

// CurrentView calls f.
func (f SurfaceFunc) CurrentView() (hal.TextureView, error) { return f() }

// OffscreenSurface is a headless Surface backed by a single render target
// texture. It returns the same view every frame.
type OffscreenSurface struct {
	mu sync.Mutex

	device  hal.Device
	texture hal.Texture
	view    hal.TextureView

	width, height uint32
	format        gputypes.TextureFormat
}

// NewOffscreenSurface creates a width x height render target of the given
// format. An undefined format selects BGRA8Unorm.
func NewOffscreenSurface(device hal.Device, width, height uint32, format gputypes.TextureFormat) (*OffscreenSurface, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("gpu: offscreen surface size %dx%d", width, height)
	}
	if format == gputypes.TextureFormatUndefined {
		format = gputypes.TextureFormatBGRA8Unorm
	}

	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label: "Offscreen target",
		Size: hal.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create offscreen texture: %w", err)
	}

	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label: "Offscreen target view",
	})
	if err != nil {
		device.DestroyTexture(tex)
		return nil, fmt.Errorf("gpu: create offscreen view: %w", err)
	}

	return &OffscreenSurface{
		device:  device,
		texture: tex,
		view:    view,
		width:   width,
		height:  height,
		format:  format,
	}, nil
}

// CurrentView returns the render target view.
func (s *OffscreenSurface) CurrentView() (hal.TextureView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.view == nil {
		return nil, fmt.Errorf("%w: offscreen surface released", ErrNoSurfaceImage)
	}
	return s.view, nil
}

// Format returns the texture format.
func (s *OffscreenSurface) Format() gputypes.TextureFormat { return s.format }

// Size returns the target dimensions.
func (s *OffscreenSurface) Size() (width, height uint32) { return s.width, s.height }

// Release destroys the view and texture. Later CurrentView calls report
// ErrNoSurfaceImage.
func (s *OffscreenSurface) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.view != nil {
		s.device.DestroyTextureView(s.view)
		s.view = nil
	}
	if s.texture != nil {
		s.device.DestroyTexture(s.texture)
		s.texture = nil
	}
}
