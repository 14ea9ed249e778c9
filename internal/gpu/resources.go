package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Buffer labels.
const (
	LabelVertices = "Cell vertices"
	LabelUniform  = "Grid Uniforms"
	LabelStateA   = "Cell State A"
	LabelStateB   = "Cell State B"
)

// ResourceConfig describes the resource set of one simulation.
type ResourceConfig struct {
	Grid    Grid
	Program ShaderProgram
	Format  gputypes.TextureFormat

	// SeedA and SeedB initialize the two state buffers. Nil selects
	// EveryThird and Alternating.
	SeedA SeedPattern
	SeedB SeedPattern
}

// Resources is every device object a simulation draws with.
type Resources struct {
	Grid     Grid
	Vertices *Buffer
	Uniform  *Buffer
	State    [2]*Buffer
	Pipeline *Pipeline
	Sets     [2]*BindingSet
}

// SetupResources allocates and initializes the buffers, builds the
// pipeline and both binding sets. On error everything created so far is
// released.
func SetupResources(alloc *Allocator, device hal.Device, cfg ResourceConfig) (*Resources, error) {
	if alloc == nil || device == nil {
		return nil, ErrNilDevice
	}
	if err := cfg.Grid.Validate(); err != nil {
		return nil, err
	}
	if cfg.Program.Source == "" {
		cfg.Program = CellProgram()
	}

	r := &Resources{Grid: cfg.Grid}
	var err error
	if r.Vertices, err = alloc.AllocateInit(LabelVertices, gputypes.BufferUsageVertex, QuadVertexData()); err != nil {
		r.Destroy()
		return nil, err
	}
	if r.Uniform, err = alloc.AllocateInit(LabelUniform, gputypes.BufferUsageUniform, cfg.Grid.EncodeUniform()); err != nil {
		r.Destroy()
		return nil, err
	}

	stateUsage := gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst
	for i, label := range [2]string{LabelStateA, LabelStateB} {
		if r.State[i], err = alloc.Allocate(cfg.Grid.StateBufferSize(), stateUsage, label); err != nil {
			r.Destroy()
			return nil, err
		}
	}
	if err := r.Reseed(alloc, cfg.SeedA, cfg.SeedB); err != nil {
		r.Destroy()
		return nil, err
	}

	if r.Pipeline, err = BuildPipeline(device, cfg.Program, QuadLayout(), cfg.Format); err != nil {
		r.Destroy()
		return nil, err
	}
	if r.Sets, err = BuildBindingSets(device, r.Pipeline, r.Uniform, r.State); err != nil {
		r.Destroy()
		return nil, err
	}
	return r, nil
}

// Reseed overwrites both state buffers from the patterns. Nil patterns
// select the defaults.
func (r *Resources) Reseed(alloc *Allocator, a, b SeedPattern) error {
	if a == nil {
		a = EveryThird
	}
	if b == nil {
		b = Alternating
	}
	n := int(r.Grid.Cells())
	for i, p := range [2]SeedPattern{a, b} {
		if err := alloc.Write(r.State[i], 0, EncodeCells(SeedCells(n, p))); err != nil {
			return fmt.Errorf("seed %s: %w", r.State[i].Label(), err)
		}
	}
	return nil
}

// FrameConfig returns the driver configuration for these resources.
func (r *Resources) FrameConfig(clear gputypes.Color) FrameConfig {
	return FrameConfig{
		Grid:       r.Grid,
		Vertices:   r.Vertices,
		Pipeline:   r.Pipeline,
		Sets:       r.Sets,
		ClearColor: clear,
	}
}

// Destroy releases everything in reverse creation order. Safe to call on a
// partially built set and more than once.
func (r *Resources) Destroy() {
	if r == nil {
		return
	}
	for i := len(r.Sets) - 1; i >= 0; i-- {
		r.Sets[i].Destroy()
	}
	r.Pipeline.Destroy()
	for i := len(r.State) - 1; i >= 0; i-- {
		if r.State[i] != nil {
			r.State[i].Destroy()
		}
	}
	if r.Uniform != nil {
		r.Uniform.Destroy()
	}
	if r.Vertices != nil {
		r.Vertices.Destroy()
	}
}
