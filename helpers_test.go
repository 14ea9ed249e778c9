package cellgrid

import (
	"testing"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/noop"
)

// openNoopDevice opens a standalone device on the noop backend.
func openNoopDevice(t *testing.T) *Device {
	t.Helper()
	dev, err := OpenDevice(gputypes.BackendEmpty)
	if err != nil {
		t.Fatalf("OpenDevice(noop): %v", err)
	}
	t.Cleanup(dev.Close)
	return dev
}

// testConfig returns a fast configuration for an n×n grid.
func testConfig(n uint32) Config {
	cfg := DefaultConfig()
	cfg.GridSize = n
	cfg.UpdateInterval = time.Millisecond
	return cfg
}

// newSetUp creates a simulation and runs Setup.
func newSetUp(t *testing.T, dev *Device, cfg Config, opts ...Option) *Simulation {
	t.Helper()
	sim, err := New(dev, cfg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = sim.Close() })
	if err := sim.Setup(); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	return sim
}

type stubView struct{}

func (stubView) Destroy()              {}
func (stubView) NativeHandle() uintptr { return 0 }

func viewSurface() Surface {
	return SurfaceFunc(func() (hal.TextureView, error) { return stubView{}, nil })
}
