package gpu

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// createNoopDevice creates a noop device and queue for testing.
// Returns the device, queue, and a cleanup function.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

// testRig is a complete resource set on a noop device.
type testRig struct {
	device hal.Device
	queue  hal.Queue
	alloc  *Allocator
	res    *Resources
	driver *FrameDriver
}

func newTestRig(t *testing.T, grid Grid, program ShaderProgram) *testRig {
	t.Helper()
	device, queue, cleanup := createNoopDevice(t)
	t.Cleanup(cleanup)
	return newRigOn(t, device, queue, grid, program, DefaultClearColor)
}

func newRigOn(t *testing.T, device hal.Device, queue hal.Queue, grid Grid, program ShaderProgram, clear gputypes.Color) *testRig {
	t.Helper()
	alloc, err := NewAllocatorWithLimits(device, queue, gputypes.DefaultLimits())
	if err != nil {
		t.Fatalf("NewAllocatorWithLimits: %v", err)
	}
	res, err := SetupResources(alloc, device, ResourceConfig{Grid: grid, Program: program})
	if err != nil {
		t.Fatalf("SetupResources: %v", err)
	}
	t.Cleanup(res.Destroy)

	driver, err := NewFrameDriver(device, queue, res.FrameConfig(clear))
	if err != nil {
		t.Fatalf("NewFrameDriver: %v", err)
	}
	return &testRig{device: device, queue: queue, alloc: alloc, res: res, driver: driver}
}

// stubView is a non-nil texture view for SurfaceFunc based tests.
type stubView struct{}

func (stubView) Destroy()              {}
func (stubView) NativeHandle() uintptr { return 0 }

func viewSurface() Surface {
	return SurfaceFunc(func() (hal.TextureView, error) { return stubView{}, nil })
}

func errSurface(err error) Surface {
	return SurfaceFunc(func() (hal.TextureView, error) { return nil, err })
}

func mustIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("error = %v, want errors.Is(%v)", err, target)
	}
}
