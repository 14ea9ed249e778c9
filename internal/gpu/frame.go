package gpu

import (
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Parity selects one of the two binding sets.
type Parity int

const (
	// ParityA selects the set reading Cell State A.
	ParityA Parity = iota
	// ParityB selects the set reading Cell State B.
	ParityB
)

// ParityOf returns the set used at the given generation.
func ParityOf(generation uint64) Parity { return Parity(generation % 2) } //nolint:gosec // 0 or 1

// Next returns the other parity.
func (p Parity) Next() Parity { return 1 - p }

// Index returns 0 for A and 1 for B.
func (p Parity) Index() int { return int(p) }

// String returns "A" or "B".
func (p Parity) String() string {
	switch p {
	case ParityA:
		return "A"
	case ParityB:
		return "B"
	default:
		return fmt.Sprintf("Parity(%d)", int(p))
	}
}

// FrameState is the driver's encoding state.
type FrameState int

const (
	// FrameIdle means no tick is in progress.
	FrameIdle FrameState = iota
	// FrameEncoding means a tick is recording commands.
	FrameEncoding
)

// String returns the state name.
func (s FrameState) String() string {
	if s == FrameEncoding {
		return "encoding"
	}
	return "idle"
}

// DefaultClearColor is the render pass clear value.
var DefaultClearColor = gputypes.Color{R: 0, G: 0, B: 0.4, A: 1}

// FrameReport describes what one successful tick recorded.
type FrameReport struct {
	// Generation is the counter value after the tick.
	Generation uint64

	// Parity is the set selected by the pre-tick generation.
	Parity Parity

	// Rendered is the set bound to the render pass. It equals Parity unless
	// a compute step ran, in which case it is the set reading the freshly
	// written buffer.
	Rendered Parity

	VertexCount   uint32
	InstanceCount uint32

	Dispatched bool
	Workgroups [2]uint32
}

// FrameConfig is everything a FrameDriver records each tick.
type FrameConfig struct {
	Grid       Grid
	Vertices   *Buffer
	Pipeline   *Pipeline
	Sets       [2]*BindingSet
	ClearColor gputypes.Color
}

// FrameDriver records and submits one frame per Tick and owns the
// generation counter.
//
// A tick never waits for GPU completion. Command buffers are reclaimed
// once the queue reports them complete.
type FrameDriver struct {
	mu sync.Mutex

	device hal.Device
	queue  hal.Queue
	cfg    FrameConfig

	state      FrameState
	generation uint64
	lost       bool
	inflight   *inflight
}

// NewFrameDriver returns a driver at generation 0. cfg.ClearColor is used
// as given, so the zero value clears to transparent black.
func NewFrameDriver(device hal.Device, queue hal.Queue, cfg FrameConfig) (*FrameDriver, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	if err := cfg.Grid.Validate(); err != nil {
		return nil, err
	}
	if cfg.Vertices == nil || cfg.Pipeline == nil || cfg.Sets[0] == nil || cfg.Sets[1] == nil {
		return nil, fmt.Errorf("gpu: frame driver needs vertices, pipeline and both binding sets")
	}
	return &FrameDriver{
		device:   device,
		queue:    queue,
		cfg:      cfg,
		inflight: newInflight(device, queue),
	}, nil
}

// Generation returns the number of successful ticks.
func (d *FrameDriver) Generation() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.generation
}

// NextParity returns the set the next tick will select.
func (d *FrameDriver) NextParity() Parity {
	d.mu.Lock()
	defer d.mu.Unlock()
	return ParityOf(d.generation)
}

// State returns the current encoding state.
func (d *FrameDriver) State() FrameState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Lost reports whether device loss has been observed.
func (d *FrameDriver) Lost() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lost
}

// Pending returns the number of submitted frames not yet reclaimed.
func (d *FrameDriver) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inflight.outstanding()
}

// Tick records one frame into the surface's current view and submits it.
//
// On failure the error wraps ErrFrameEncoding, the generation is left
// unchanged and nothing is retried. Once ErrDeviceLost has been observed
// every later Tick fails with it without recording.
func (d *FrameDriver) Tick(surface Surface) (FrameReport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.lost {
		return FrameReport{}, fmt.Errorf("%w: %w", ErrFrameEncoding, ErrDeviceLost)
	}

	d.state = FrameEncoding
	defer func() { d.state = FrameIdle }()

	if n := d.inflight.reclaim(); n > 0 {
		slogger().Debug("gpu: reclaimed frames", "count", n)
	}

	report := FrameReport{
		Parity:        ParityOf(d.generation),
		VertexCount:   QuadVertexCount,
		InstanceCount: d.cfg.Grid.Cells(),
	}
	report.Rendered = report.Parity

	if surface == nil {
		return FrameReport{}, d.fail("acquire surface", ErrNoSurfaceImage)
	}
	view, err := surface.CurrentView()
	if err != nil {
		return FrameReport{}, d.fail("acquire surface", err)
	}
	if view == nil {
		return FrameReport{}, d.fail("acquire surface", ErrNoSurfaceImage)
	}

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "Cell frame encoder"})
	if err != nil {
		return FrameReport{}, d.fail("create encoder", err)
	}
	if err := encoder.BeginEncoding("Cell frame"); err != nil {
		encoder.Destroy()
		return FrameReport{}, d.fail("begin encoding", err)
	}

	active := d.cfg.Sets[report.Parity.Index()]
	if compute := d.cfg.Pipeline.Compute(); compute != nil {
		wx, wy := d.cfg.Grid.Workgroups(WorkgroupEdge)
		cp := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "Cell simulation pass"})
		cp.SetPipeline(compute)
		cp.SetBindGroup(0, active.Raw(), nil)
		cp.Dispatch(wx, wy, 1)
		cp.End()

		report.Dispatched = true
		report.Workgroups = [2]uint32{wx, wy}
		report.Rendered = report.Parity.Next()
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "Cell render pass",
		ColorAttachments: []hal.RenderPassColorAttachment{
			{
				View:       view,
				LoadOp:     gputypes.LoadOpClear,
				StoreOp:    gputypes.StoreOpStore,
				ClearValue: d.cfg.ClearColor,
			},
		},
	})
	rp.SetPipeline(d.cfg.Pipeline.Render())
	rp.SetBindGroup(0, d.cfg.Sets[report.Rendered.Index()].Raw(), nil)
	rp.SetVertexBuffer(0, d.cfg.Vertices.Raw(), 0)
	rp.Draw(report.VertexCount, report.InstanceCount, 0, 0)
	rp.End()

	cmd, err := encoder.EndEncoding()
	if err != nil {
		encoder.Destroy()
		return FrameReport{}, d.fail("end encoding", err)
	}
	if err := d.inflight.submit(encoder, cmd, d.generation+1); err != nil {
		return FrameReport{}, d.fail("submit", err)
	}

	d.generation++
	report.Generation = d.generation
	return report, nil
}

// fail wraps err for a failed tick step and latches device loss. The
// caller holds d.mu.
func (d *FrameDriver) fail(step string, err error) error {
	if isDeviceLost(err) {
		if !d.lost {
			slogger().Error("gpu: device lost", "step", step, "generation", d.generation)
		}
		d.lost = true
		return fmt.Errorf("%w: %s: %w: %w", ErrFrameEncoding, step, ErrDeviceLost, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrFrameEncoding, step, err)
}

// Close waits up to timeout for submitted frames and releases them.
func (d *FrameDriver) Close(timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lost {
		return nil
	}
	return d.inflight.drain(timeout)
}
