package gpu

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/wgpu/hal"
)

//go:embed shaders/cell.wgsl
var cellShaderSource string

//go:embed shaders/life.wgsl
var lifeShaderSource string

// Default entry point names.
const (
	DefaultVertexEntry   = "vertexMain"
	DefaultFragmentEntry = "fragmentMain"
	DefaultComputeEntry  = "computeMain"
)

// WorkgroupEdge is the @workgroup_size edge of the compute stage.
const WorkgroupEdge = 8

// ShaderProgram is a WGSL source with named entry points.
type ShaderProgram struct {
	Label         string
	Source        string
	VertexEntry   string
	FragmentEntry string

	// ComputeEntry is optional. When set, the source must also declare a
	// read-write storage binding at slot 2.
	ComputeEntry string
}

// CellProgram returns the render-only cell shader.
func CellProgram() ShaderProgram {
	return ShaderProgram{
		Label:         "Cell shader",
		Source:        cellShaderSource,
		VertexEntry:   DefaultVertexEntry,
		FragmentEntry: DefaultFragmentEntry,
	}
}

// LifeProgram returns the cell shader with a Game of Life compute stage.
func LifeProgram() ShaderProgram {
	return ShaderProgram{
		Label:         "Cell simulation shader",
		Source:        lifeShaderSource,
		VertexEntry:   DefaultVertexEntry,
		FragmentEntry: DefaultFragmentEntry,
		ComputeEntry:  DefaultComputeEntry,
	}
}

// Pipeline is an immutable render pipeline, optionally paired with a
// compute pipeline sharing the same bind group layout.
type Pipeline struct {
	device hal.Device

	label    string
	bindings []ReflectedBinding

	shader          hal.ShaderModule
	bindGroupLayout hal.BindGroupLayout
	pipeLayout      hal.PipelineLayout
	render          hal.RenderPipeline
	compute         hal.ComputePipeline

	destroyed bool
}

// BuildPipeline validates program and creates its render pipeline.
//
// The bind group layout is derived from the program's group(0)
// declarations. vertexLayout describes the single vertex buffer and format
// the color target.
//
// Any failure is reported as ErrPipelineCompilation and releases whatever
// was created.
func BuildPipeline(device hal.Device, program ShaderProgram, vertexLayout gputypes.VertexBufferLayout, format gputypes.TextureFormat) (*Pipeline, error) { //nolint:funlen // GPU pipeline descriptors are inherently verbose
	if device == nil {
		return nil, ErrNilDevice
	}
	if program.VertexEntry == "" {
		program.VertexEntry = DefaultVertexEntry
	}
	if program.FragmentEntry == "" {
		program.FragmentEntry = DefaultFragmentEntry
	}
	if format == gputypes.TextureFormatUndefined {
		format = gputypes.TextureFormatBGRA8Unorm
	}

	bindings, err := validateProgram(program)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrPipelineCompilation, program.Label, err)
	}
	compute := program.ComputeEntry != ""

	p := &Pipeline{device: device, label: program.Label, bindings: bindings}
	fail := func(step string, err error) (*Pipeline, error) {
		p.Destroy()
		return nil, fmt.Errorf("%w: %s: %s: %w", ErrPipelineCompilation, program.Label, step, err)
	}

	p.shader, err = device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  program.Label,
		Source: hal.ShaderSource{WGSL: program.Source},
	})
	if err != nil {
		return fail("create shader module", err)
	}

	p.bindGroupLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   program.Label + " bind group layout",
		Entries: layoutEntries(bindings, compute),
	})
	if err != nil {
		return fail("create bind group layout", err)
	}

	p.pipeLayout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            program.Label + " pipeline layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.bindGroupLayout},
	})
	if err != nil {
		return fail("create pipeline layout", err)
	}

	blend := gputypes.BlendStateReplace()
	p.render, err = device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  program.Label + " pipeline",
		Layout: p.pipeLayout,
		Vertex: hal.VertexState{
			Module:     p.shader,
			EntryPoint: program.VertexEntry,
			Buffers:    []gputypes.VertexBufferLayout{vertexLayout},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		Fragment: &hal.FragmentState{
			Module:     p.shader,
			EntryPoint: program.FragmentEntry,
			Targets: []gputypes.ColorTargetState{
				{
					Format:    format,
					Blend:     &blend,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
	})
	if err != nil {
		return fail("create render pipeline", err)
	}

	if compute {
		p.compute, err = device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
			Label:  program.Label + " compute pipeline",
			Layout: p.pipeLayout,
			Compute: hal.ComputeState{
				Module:     p.shader,
				EntryPoint: program.ComputeEntry,
			},
		})
		if err != nil {
			return fail("create compute pipeline", err)
		}
	}

	slogger().Debug("gpu: pipeline created",
		"label", program.Label,
		"bindings", describeBindings(bindings),
		"compute", compute,
		"format", format)
	return p, nil
}

// validateProgram compiles the WGSL, checks entry points and returns the
// reflected group(0) bindings.
func validateProgram(program ShaderProgram) ([]ReflectedBinding, error) {
	if program.Source == "" {
		return nil, fmt.Errorf("empty shader source")
	}
	module, err := compileShader(program.Source)
	if err != nil {
		return nil, err
	}
	if !hasEntry(module, ir.StageVertex, program.VertexEntry) {
		return nil, fmt.Errorf("no @vertex entry point %q", program.VertexEntry)
	}
	if !hasEntry(module, ir.StageFragment, program.FragmentEntry) {
		return nil, fmt.Errorf("no @fragment entry point %q", program.FragmentEntry)
	}
	if program.ComputeEntry != "" && !hasEntry(module, ir.StageCompute, program.ComputeEntry) {
		return nil, fmt.Errorf("no @compute entry point %q", program.ComputeEntry)
	}

	bindings, err := reflectModule(module)
	if err != nil {
		return nil, err
	}
	if err := checkCellBindings(bindings); err != nil {
		return nil, err
	}
	hasOut := len(bindings) > slotStateOut
	switch {
	case program.ComputeEntry != "" && !hasOut:
		return nil, fmt.Errorf("compute entry %q needs a read_write storage binding at slot %d",
			program.ComputeEntry, slotStateOut)
	case program.ComputeEntry == "" && hasOut:
		return nil, fmt.Errorf("binding %d declared without a compute entry point", slotStateOut)
	}
	if err := generateSPIRV(module); err != nil {
		return nil, err
	}
	return bindings, nil
}

// Label returns the pipeline's debug label.
func (p *Pipeline) Label() string { return p.label }

// Bindings returns the reflected group(0) bindings.
func (p *Pipeline) Bindings() []ReflectedBinding {
	out := make([]ReflectedBinding, len(p.bindings))
	copy(out, p.bindings)
	return out
}

// HasCompute reports whether the pipeline carries a compute stage.
func (p *Pipeline) HasCompute() bool { return p.compute != nil }

// BindGroupLayout returns the group(0) layout.
func (p *Pipeline) BindGroupLayout() hal.BindGroupLayout { return p.bindGroupLayout }

// Render returns the render pipeline handle.
func (p *Pipeline) Render() hal.RenderPipeline { return p.render }

// Compute returns the compute pipeline handle, or nil.
func (p *Pipeline) Compute() hal.ComputePipeline { return p.compute }

// Destroy releases the pipeline objects in reverse creation order. It is
// safe to call more than once.
func (p *Pipeline) Destroy() {
	if p == nil || p.destroyed {
		return
	}
	p.destroyed = true

	if p.compute != nil {
		p.device.DestroyComputePipeline(p.compute)
		p.compute = nil
	}
	if p.render != nil {
		p.device.DestroyRenderPipeline(p.render)
		p.render = nil
	}
	if p.pipeLayout != nil {
		p.device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.bindGroupLayout != nil {
		p.device.DestroyBindGroupLayout(p.bindGroupLayout)
		p.bindGroupLayout = nil
	}
	if p.shader != nil {
		p.device.DestroyShaderModule(p.shader)
		p.shader = nil
	}
}
