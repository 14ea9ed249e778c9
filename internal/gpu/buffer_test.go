package gpu

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
)

func newTestAllocator(t *testing.T, maxSize uint64) *Allocator {
	t.Helper()
	device, queue, cleanup := createNoopDevice(t)
	t.Cleanup(cleanup)
	alloc, err := NewAllocator(device, queue, maxSize)
	if err != nil {
		t.Fatalf("NewAllocator: %v", err)
	}
	return alloc
}

func TestNewAllocatorNilDevice(t *testing.T) {
	if _, err := NewAllocator(nil, nil, 0); !errors.Is(err, ErrNilDevice) {
		t.Errorf("NewAllocator(nil) error = %v, want ErrNilDevice", err)
	}
}

func TestAllocateBindingLimits(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	t.Cleanup(cleanup)
	limits := gputypes.DefaultLimits()
	limits.MaxBufferSize = 1024
	limits.MaxStorageBufferBindingSize = 256
	limits.MaxUniformBufferBindingSize = 64
	alloc, err := NewAllocatorWithLimits(device, queue, limits)
	if err != nil {
		t.Fatalf("NewAllocatorWithLimits: %v", err)
	}

	tests := []struct {
		name    string
		size    uint64
		usage   gputypes.BufferUsage
		wantErr error
	}{
		{"storage at binding limit", 256, gputypes.BufferUsageStorage, nil},
		{"storage over binding limit", 512, gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst, ErrAllocation},
		{"copy buffer over binding limit", 512, gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc, nil},
		{"uniform at binding limit", 64, gputypes.BufferUsageUniform, nil},
		{"uniform over binding limit", 68, gputypes.BufferUsageUniform, ErrAllocation},
		{"over buffer limit", 2048, gputypes.BufferUsageVertex, ErrAllocation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := alloc.Allocate(tt.size, tt.usage, tt.name)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Allocate error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Allocate: %v", err)
			}
			buf.Destroy()
		})
	}
}

func TestDefaultLimitsRejectLargeGridState(t *testing.T) {
	// A 6000x6000 grid of u32 cells fits one buffer but not one storage binding.
	limits := gputypes.DefaultLimits()
	size := Grid{Width: 6000, Height: 6000}.StateBufferSize()
	if size > limits.MaxBufferSize {
		t.Fatalf("state size %d exceeds MaxBufferSize %d", size, limits.MaxBufferSize)
	}
	if size <= limits.MaxStorageBufferBindingSize {
		t.Fatalf("state size %d fits MaxStorageBufferBindingSize %d", size, limits.MaxStorageBufferBindingSize)
	}
}

func TestAllocate(t *testing.T) {
	alloc := newTestAllocator(t, 1024)

	tests := []struct {
		name    string
		size    uint64
		usage   gputypes.BufferUsage
		wantErr error
	}{
		{"vertex", 48, gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst, nil},
		{"uniform", 8, gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst, nil},
		{"at limit", 1024, gputypes.BufferUsageStorage, nil},
		{"zero size", 0, gputypes.BufferUsageStorage, ErrAllocation},
		{"no usage", 16, 0, ErrAllocation},
		{"over limit", 1028, gputypes.BufferUsageStorage, ErrAllocation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := alloc.Allocate(tt.size, tt.usage, tt.name)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Allocate error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Allocate: %v", err)
			}
			defer buf.Destroy()
			if buf.Size() != tt.size {
				t.Errorf("Size() = %d, want %d", buf.Size(), tt.size)
			}
			if buf.Label() != tt.name {
				t.Errorf("Label() = %q, want %q", buf.Label(), tt.name)
			}
			if buf.Raw() == nil {
				t.Error("Raw() = nil")
			}
			if got := buf.Contents(); !bytes.Equal(got, make([]byte, tt.size)) {
				t.Error("new buffer contents not zeroed")
			}
		})
	}
}

func TestWrite(t *testing.T) {
	alloc := newTestAllocator(t, 0)
	buf, err := alloc.Allocate(16, gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst, "state")
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	defer buf.Destroy()

	if err := alloc.Write(buf, 4, []byte{1, 2, 3, 4, 5, 6, 7, 8}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	want := []byte{0, 0, 0, 0, 1, 2, 3, 4, 5, 6, 7, 8, 0, 0, 0, 0}
	if got := buf.Contents(); !bytes.Equal(got, want) {
		t.Errorf("Contents() = %v, want %v", got, want)
	}

	tests := []struct {
		name    string
		offset  uint64
		data    []byte
		wantErr error
	}{
		{"past end", 12, make([]byte, 8), ErrOutOfBoundsWrite},
		{"offset beyond size", 20, make([]byte, 4), ErrOutOfBoundsWrite},
		{"misaligned offset", 2, make([]byte, 4), ErrMisalignedWrite},
		{"misaligned size", 0, make([]byte, 3), ErrMisalignedWrite},
		{"empty at end", 16, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := alloc.Write(buf, tt.offset, tt.data)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Write: %v", err)
				}
				return
			}
			mustIs(t, err, tt.wantErr)
		})
	}

	if got := buf.Contents(); !bytes.Equal(got, want) {
		t.Errorf("failed writes changed contents: %v", got)
	}
}

func TestWriteNotWritable(t *testing.T) {
	alloc := newTestAllocator(t, 0)
	buf, err := alloc.Allocate(8, gputypes.BufferUsageUniform, "read only")
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	defer buf.Destroy()
	mustIs(t, alloc.Write(buf, 0, make([]byte, 8)), ErrNotWritable)
}

func TestWriteDestroyed(t *testing.T) {
	alloc := newTestAllocator(t, 0)
	buf, err := alloc.Allocate(8, gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst, "gone")
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	buf.Destroy()
	buf.Destroy()

	if !buf.IsDestroyed() {
		t.Error("IsDestroyed() = false after Destroy")
	}
	if buf.Raw() != nil {
		t.Error("Raw() != nil after Destroy")
	}
	mustIs(t, alloc.Write(buf, 0, make([]byte, 8)), ErrBufferDestroyed)
	mustIs(t, alloc.Write(nil, 0, make([]byte, 8)), ErrBufferDestroyed)
}

func TestAllocateInit(t *testing.T) {
	alloc := newTestAllocator(t, 0)
	data := QuadVertexData()
	buf, err := alloc.AllocateInit(LabelVertices, gputypes.BufferUsageVertex, data)
	if err != nil {
		t.Fatalf("AllocateInit: %v", err)
	}
	defer buf.Destroy()

	if buf.Size() != 48 {
		t.Errorf("Size() = %d, want 48", buf.Size())
	}
	if !buf.Usage().Contains(gputypes.BufferUsageCopyDst) {
		t.Error("AllocateInit did not add CopyDst")
	}
	if !bytes.Equal(buf.Contents(), data) {
		t.Error("Contents() differ from init data")
	}

	if _, err := alloc.AllocateInit("empty", gputypes.BufferUsageVertex, nil); !errors.Is(err, ErrAllocation) {
		t.Errorf("AllocateInit(nil) error = %v, want ErrAllocation", err)
	}
}

func TestAllocatorStatsAndBudget(t *testing.T) {
	alloc := newTestAllocator(t, 0)
	alloc.SetBudget(64)

	a, err := alloc.Allocate(48, gputypes.BufferUsageStorage, "a")
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if _, err := alloc.Allocate(32, gputypes.BufferUsageStorage, "b"); !errors.Is(err, ErrAllocation) {
		t.Fatalf("Allocate over budget = %v, want ErrAllocation", err)
	}

	st := alloc.Stats()
	if st.Buffers != 1 || st.UsedBytes != 48 || st.BudgetBytes != 64 || st.Allocated != 1 {
		t.Errorf("Stats = %+v", st)
	}

	a.Destroy()
	a.Destroy()
	st = alloc.Stats()
	if st.Buffers != 0 || st.UsedBytes != 0 || st.Allocated != 1 {
		t.Errorf("Stats after Destroy = %+v", st)
	}
	if got := st.String(); got != "Buffers[0 live, 0/64 bytes, 1 allocated]" {
		t.Errorf("String() = %q", got)
	}

	if _, err := alloc.Allocate(32, gputypes.BufferUsageStorage, "b"); err != nil {
		t.Errorf("Allocate after release: %v", err)
	}
}
