package gpu

import (
	"testing"

	"github.com/gogpu/gputypes"
)

func TestBuildBindingSets(t *testing.T) {
	grid := Grid{Width: 4, Height: 4}

	t.Run("render only", func(t *testing.T) {
		rig := newTestRig(t, grid, CellProgram())
		for i, set := range rig.res.Sets {
			if set.Index() != i {
				t.Errorf("set %d Index() = %d", i, set.Index())
			}
			if set.Raw() == nil {
				t.Errorf("set %d Raw() = nil", i)
			}
			if set.Read() != rig.res.State[i] {
				t.Errorf("set %d reads %q, want %q", i, set.Read().Label(), rig.res.State[i].Label())
			}
			if set.Write() != nil {
				t.Errorf("set %d has a write buffer without compute", i)
			}
		}
		if rig.res.Sets[0].Read().Label() != LabelStateA || rig.res.Sets[1].Read().Label() != LabelStateB {
			t.Error("set 0 must read A and set 1 must read B")
		}
	})

	t.Run("compute", func(t *testing.T) {
		rig := newTestRig(t, grid, LifeProgram())
		for i, set := range rig.res.Sets {
			if set.Write() != rig.res.State[1-i] {
				t.Errorf("set %d writes %v, want %q", i, set.Write(), rig.res.State[1-i].Label())
			}
		}
	})
}

func TestBuildBindingSetsMismatch(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()
	alloc, err := NewAllocator(device, queue, 0)
	if err != nil {
		t.Fatalf("NewAllocator: %v", err)
	}
	pipeline, err := BuildPipeline(device, CellProgram(), QuadLayout(), 0)
	if err != nil {
		t.Fatalf("BuildPipeline: %v", err)
	}
	defer pipeline.Destroy()

	mk := func(size uint64, usage gputypes.BufferUsage, label string) *Buffer {
		t.Helper()
		b, err := alloc.Allocate(size, usage, label)
		if err != nil {
			t.Fatalf("Allocate %s: %v", label, err)
		}
		t.Cleanup(b.Destroy)
		return b
	}
	uniform := mk(8, gputypes.BufferUsageUniform, "uniform")
	small := mk(4, gputypes.BufferUsageUniform, "small uniform")
	a := mk(64, gputypes.BufferUsageStorage, "A")
	b := mk(64, gputypes.BufferUsageStorage, "B")
	short := mk(32, gputypes.BufferUsageStorage, "short B")
	vertexOnly := mk(64, gputypes.BufferUsageVertex, "vertex B")
	destroyed := mk(64, gputypes.BufferUsageStorage, "destroyed B")
	destroyed.Destroy()

	tests := []struct {
		name    string
		uniform *Buffer
		state   [2]*Buffer
	}{
		{"nil uniform", nil, [2]*Buffer{a, b}},
		{"storage as uniform", a, [2]*Buffer{a, b}},
		{"uniform too small", small, [2]*Buffer{a, b}},
		{"missing B", uniform, [2]*Buffer{a, nil}},
		{"sizes differ", uniform, [2]*Buffer{a, short}},
		{"B lacks storage", uniform, [2]*Buffer{a, vertexOnly}},
		{"B destroyed", uniform, [2]*Buffer{a, destroyed}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildBindingSets(device, pipeline, tt.uniform, tt.state)
			mustIs(t, err, ErrBindingLayoutMismatch)
		})
	}

	t.Run("destroyed pipeline", func(t *testing.T) {
		p, err := BuildPipeline(device, CellProgram(), QuadLayout(), 0)
		if err != nil {
			t.Fatalf("BuildPipeline: %v", err)
		}
		p.Destroy()
		_, err = BuildBindingSets(device, p, uniform, [2]*Buffer{a, b})
		mustIs(t, err, ErrBindingLayoutMismatch)
	})

	sets, err := BuildBindingSets(device, pipeline, uniform, [2]*Buffer{a, b})
	if err != nil {
		t.Fatalf("BuildBindingSets(valid): %v", err)
	}
	for _, s := range sets {
		s.Destroy()
		s.Destroy()
	}
}
