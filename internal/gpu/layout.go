package gpu

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"
)

// BindingKind is the address space of a reflected group-0 binding.
type BindingKind int

const (
	// BindingUniform is var<uniform>.
	BindingUniform BindingKind = iota
	// BindingReadOnlyStorage is var<storage> or var<storage, read>.
	BindingReadOnlyStorage
	// BindingStorage is var<storage, read_write>.
	BindingStorage
)

// String returns the WGSL spelling of the address space.
func (k BindingKind) String() string {
	switch k {
	case BindingUniform:
		return "uniform"
	case BindingReadOnlyStorage:
		return "storage, read"
	case BindingStorage:
		return "storage, read_write"
	default:
		return fmt.Sprintf("BindingKind(%d)", int(k))
	}
}

// Binding slots used by the cell shaders.
const (
	slotGrid     = 0
	slotStateIn  = 1
	slotStateOut = 2
)

// ReflectedBinding is one group(0) resource declaration of a shader.
type ReflectedBinding struct {
	Slot uint32
	Kind BindingKind
	Name string
}

// compileShader parses, lowers and validates WGSL with naga. The returned
// IR is what reflectModule and hasEntry read.
func compileShader(src string) (*ir.Module, error) {
	module, err := lowerShader(src)
	if err != nil {
		return nil, err
	}
	verrs, err := naga.Validate(module)
	if err != nil {
		return nil, fmt.Errorf("validate WGSL: %w", err)
	}
	if len(verrs) > 0 {
		return nil, fmt.Errorf("validate WGSL: %w", &verrs[0])
	}
	return module, nil
}

// generateSPIRV is the last compile step. It may rewrite the module, so
// callers reflect before calling it.
func generateSPIRV(module *ir.Module) error {
	if _, err := naga.GenerateSPIRV(module, spirv.Options{Version: spirv.Version1_3}); err != nil {
		return fmt.Errorf("generate SPIR-V: %w", err)
	}
	return nil
}

func lowerShader(src string) (*ir.Module, error) {
	ast, err := naga.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse WGSL: %w", err)
	}
	module, err := naga.LowerWithSource(ast, src)
	if err != nil {
		return nil, fmt.Errorf("lower WGSL: %w", err)
	}
	return module, nil
}

// ReflectBindings returns the group-0 resource bindings declared in a WGSL
// source, sorted by slot. Other groups are ignored.
func ReflectBindings(src string) ([]ReflectedBinding, error) {
	module, err := lowerShader(src)
	if err != nil {
		return nil, err
	}
	return reflectModule(module)
}

func reflectModule(module *ir.Module) ([]ReflectedBinding, error) {
	seen := make(map[uint32]bool)
	var out []ReflectedBinding
	for _, gv := range module.GlobalVariables {
		if gv.Binding == nil || gv.Binding.Group != 0 {
			continue
		}
		slot := gv.Binding.Binding
		kind, err := bindingKind(gv)
		if err != nil {
			return nil, fmt.Errorf("binding %d (%s): %w", slot, gv.Name, err)
		}
		if seen[slot] {
			return nil, fmt.Errorf("binding %d declared twice", slot)
		}
		seen[slot] = true
		out = append(out, ReflectedBinding{Slot: slot, Kind: kind, Name: gv.Name})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out, nil
}

func bindingKind(gv ir.GlobalVariable) (BindingKind, error) {
	switch gv.Space {
	case ir.SpaceUniform:
		return BindingUniform, nil
	case ir.SpaceStorage:
		if gv.Access == ir.StorageRead {
			return BindingReadOnlyStorage, nil
		}
		return BindingStorage, nil
	case ir.SpaceHandle:
		return 0, fmt.Errorf("textures and samplers are not supported")
	default:
		return 0, fmt.Errorf("unsupported address space %d", gv.Space)
	}
}

// hasEntry reports whether the module declares an entry point name for
// stage.
func hasEntry(module *ir.Module, stage ir.ShaderStage, name string) bool {
	if name == "" {
		return false
	}
	for _, ep := range module.EntryPoints {
		if ep.Name == name && ep.Stage == stage {
			return true
		}
	}
	return false
}

// checkCellBindings enforces the slot contract of the cell shaders: slot 0
// uniform, slot 1 read-only storage, and optionally slot 2 read-write storage.
func checkCellBindings(bindings []ReflectedBinding) error {
	if len(bindings) < 2 || len(bindings) > 3 {
		return fmt.Errorf("want 2 or 3 group(0) bindings, got %d", len(bindings))
	}
	want := []BindingKind{BindingUniform, BindingReadOnlyStorage, BindingStorage}
	for i, b := range bindings {
		if b.Slot != uint32(i) { //nolint:gosec // i < 3
			return fmt.Errorf("group(0) bindings must be contiguous from 0, found slot %d at position %d", b.Slot, i)
		}
		if b.Kind != want[i] {
			return fmt.Errorf("binding %d (%s) is var<%s>, want var<%s>", b.Slot, b.Name, b.Kind, want[i])
		}
	}
	return nil
}

// layoutEntries converts reflected bindings into explicit layout entries.
// The uniform is visible to every stage the program uses; read-only state
// feeds the vertex (and compute) stage; read-write state is compute-only.
func layoutEntries(bindings []ReflectedBinding, compute bool) []gputypes.BindGroupLayoutEntry {
	entries := make([]gputypes.BindGroupLayoutEntry, 0, len(bindings))
	for _, b := range bindings {
		var (
			vis gputypes.ShaderStage
			typ gputypes.BufferBindingType
		)
		switch b.Kind {
		case BindingUniform:
			vis = gputypes.ShaderStageVertex | gputypes.ShaderStageFragment
			if compute {
				vis |= gputypes.ShaderStageCompute
			}
			typ = gputypes.BufferBindingTypeUniform
		case BindingReadOnlyStorage:
			vis = gputypes.ShaderStageVertex
			if compute {
				vis |= gputypes.ShaderStageCompute
			}
			typ = gputypes.BufferBindingTypeReadOnlyStorage
		case BindingStorage:
			vis = gputypes.ShaderStageCompute
			typ = gputypes.BufferBindingTypeStorage
		}
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    b.Slot,
			Visibility: vis,
			Buffer:     &gputypes.BufferBindingLayout{Type: typ},
		})
	}
	return entries
}

// usageFor returns the buffer usage a binding kind requires.
func usageFor(k BindingKind) gputypes.BufferUsage {
	if k == BindingUniform {
		return gputypes.BufferUsageUniform
	}
	return gputypes.BufferUsageStorage
}

// describeBindings renders bindings for log output.
func describeBindings(bindings []ReflectedBinding) string {
	parts := make([]string, len(bindings))
	for i, b := range bindings {
		parts[i] = fmt.Sprintf("%d:%s<%s>", b.Slot, b.Name, b.Kind)
	}
	return strings.Join(parts, " ")
}
