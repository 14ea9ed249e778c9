package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// BindingSet is one bind group for group(0) of a Pipeline: the grid
// uniform plus one cell state buffer as the read side, and the other one
// as the write side when the pipeline has a compute stage.
type BindingSet struct {
	device hal.Device
	group  hal.BindGroup

	index int
	read  *Buffer
	write *Buffer
}

// Index is 0 for the set reading state A and 1 for the set reading state B.
func (s *BindingSet) Index() int { return s.index }

// Read returns the state buffer bound at slot 1.
func (s *BindingSet) Read() *Buffer { return s.read }

// Write returns the state buffer bound at slot 2, or nil.
func (s *BindingSet) Write() *Buffer { return s.write }

// Raw returns the HAL bind group.
func (s *BindingSet) Raw() hal.BindGroup { return s.group }

// Destroy releases the bind group. It is safe to call more than once.
func (s *BindingSet) Destroy() {
	if s == nil || s.group == nil {
		return
	}
	s.device.DestroyBindGroup(s.group)
	s.group = nil
}

// BuildBindingSets creates the two ping-pong binding sets for pipeline.
// Set i reads state[i]; with a compute stage it also writes state[1-i].
//
// Returns an error wrapping ErrBindingLayoutMismatch if the buffers do not
// fit the pipeline's reflected layout.
func BuildBindingSets(device hal.Device, pipeline *Pipeline, uniform *Buffer, state [2]*Buffer) ([2]*BindingSet, error) {
	var sets [2]*BindingSet
	if device == nil {
		return sets, ErrNilDevice
	}
	if err := checkBindingBuffers(pipeline, uniform, state); err != nil {
		return sets, err
	}

	compute := len(pipeline.bindings) > slotStateOut
	for i := range sets {
		set := &BindingSet{device: device, index: i, read: state[i]}
		entries := []gputypes.BindGroupEntry{
			bufferEntry(slotGrid, uniform),
			bufferEntry(slotStateIn, state[i]),
		}
		if compute {
			set.write = state[1-i]
			entries = append(entries, bufferEntry(slotStateOut, set.write))
		}

		group, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:   fmt.Sprintf("Cell renderer bind group %s", Parity(i)),
			Layout:  pipeline.BindGroupLayout(),
			Entries: entries,
		})
		if err != nil {
			for _, s := range sets {
				s.Destroy()
			}
			return [2]*BindingSet{}, fmt.Errorf("%w: bind group %d: %w", ErrBindingLayoutMismatch, i, err)
		}
		set.group = group
		sets[i] = set
	}

	slogger().Debug("gpu: binding sets created", "pipeline", pipeline.Label(), "compute", compute)
	return sets, nil
}

func bufferEntry(slot uint32, buf *Buffer) gputypes.BindGroupEntry {
	return gputypes.BindGroupEntry{
		Binding: slot,
		Resource: gputypes.BufferBinding{
			Buffer: buf.Raw().NativeHandle(),
			Offset: 0,
			Size:   buf.Size(),
		},
	}
}

func checkBindingBuffers(pipeline *Pipeline, uniform *Buffer, state [2]*Buffer) error {
	if pipeline == nil || pipeline.BindGroupLayout() == nil {
		return fmt.Errorf("%w: pipeline is nil or destroyed", ErrBindingLayoutMismatch)
	}
	if err := checkCellBindings(pipeline.bindings); err != nil {
		return fmt.Errorf("%w: %w", ErrBindingLayoutMismatch, err)
	}

	slots := map[uint32]*Buffer{slotGrid: uniform, slotStateIn: state[0]}
	if len(pipeline.bindings) > slotStateOut {
		slots[slotStateOut] = state[1]
	}
	for _, b := range pipeline.bindings {
		buf := slots[b.Slot]
		if buf == nil || buf.IsDestroyed() {
			return fmt.Errorf("%w: no live buffer for binding %d (%s)", ErrBindingLayoutMismatch, b.Slot, b.Name)
		}
		if need := usageFor(b.Kind); !buf.Usage().Contains(need) {
			return fmt.Errorf("%w: buffer %q bound at %d (%s) lacks usage %#x",
				ErrBindingLayoutMismatch, buf.Label(), b.Slot, b.Name, uint64(need))
		}
	}

	for i, s := range state {
		if s == nil || s.IsDestroyed() {
			return fmt.Errorf("%w: state buffer %d missing", ErrBindingLayoutMismatch, i)
		}
		if !s.Usage().Contains(gputypes.BufferUsageStorage) {
			return fmt.Errorf("%w: state buffer %q lacks storage usage", ErrBindingLayoutMismatch, s.Label())
		}
	}
	if state[0].Size() != state[1].Size() {
		return fmt.Errorf("%w: state buffers differ in size (%d != %d)",
			ErrBindingLayoutMismatch, state[0].Size(), state[1].Size())
	}
	if uniform.Size() < uniformSize {
		return fmt.Errorf("%w: uniform %q is %d bytes, want at least %d",
			ErrBindingLayoutMismatch, uniform.Label(), uniform.Size(), uniformSize)
	}
	return nil
}
