package gpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// writeAlignment is the WebGPU alignment for queue writes (offset and size).
const writeAlignment = 4

// BufferDescriptor describes a buffer to allocate.
type BufferDescriptor struct {
	// Label is an optional debug name.
	Label string

	// Size is the buffer size in bytes. It is fixed for the buffer's lifetime.
	Size uint64

	// Usage specifies how the buffer will be used.
	Usage gputypes.BufferUsage
}

// Buffer is a device-resident buffer together with a host-side shadow of
// every byte written through the Allocator.
//
// The shadow is never refreshed from the device. It records what was
// queued for upload so callers can inspect initial contents without a
// readback.
type Buffer struct {
	mu sync.RWMutex

	raw    hal.Buffer
	device hal.Device

	// desc is immutable after creation.
	desc BufferDescriptor

	shadow    []byte
	destroyed bool

	// release returns the buffer's bytes to the allocator's accounting.
	release func(size uint64)
}

// Label returns the buffer's debug label.
func (b *Buffer) Label() string { return b.desc.Label }

// Size returns the buffer size in bytes.
func (b *Buffer) Size() uint64 { return b.desc.Size }

// Usage returns the buffer usage flags.
func (b *Buffer) Usage() gputypes.BufferUsage { return b.desc.Usage }

// Raw returns the underlying HAL buffer, or nil once destroyed.
func (b *Buffer) Raw() hal.Buffer {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.destroyed {
		return nil
	}
	return b.raw
}

// Contents returns a copy of the bytes queued for upload so far.
func (b *Buffer) Contents() []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]byte, len(b.shadow))
	copy(out, b.shadow)
	return out
}

// IsDestroyed reports whether Destroy has been called.
func (b *Buffer) IsDestroyed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.destroyed
}

// Destroy releases the device buffer. Calling it more than once is safe.
func (b *Buffer) Destroy() {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	b.destroyed = true
	raw := b.raw
	b.raw = nil
	b.shadow = nil
	b.mu.Unlock()

	if b.device != nil && raw != nil {
		b.device.DestroyBuffer(raw)
	}
	if b.release != nil {
		b.release(b.desc.Size)
	}
}

// AllocatorStats contains buffer usage statistics.
type AllocatorStats struct {
	// Buffers is the number of live buffers.
	Buffers int

	// UsedBytes is the total size of live buffers.
	UsedBytes uint64

	// BudgetBytes is the configured budget, zero when unlimited.
	BudgetBytes uint64

	// Allocated counts every successful allocation, including destroyed
	// buffers.
	Allocated uint64
}

// String returns a human-readable string of the stats.
func (s AllocatorStats) String() string {
	if s.BudgetBytes == 0 {
		return fmt.Sprintf("Buffers[%d live, %d bytes, %d allocated]", s.Buffers, s.UsedBytes, s.Allocated)
	}
	return fmt.Sprintf("Buffers[%d live, %d/%d bytes, %d allocated]",
		s.Buffers, s.UsedBytes, s.BudgetBytes, s.Allocated)
}

// Allocator creates fixed-size device buffers and uploads data into them
// through the device queue.
//
// Writes are enqueued on the same queue later submissions use, so a write
// issued before a submit is visible to that submit's work. No fence or
// barrier is involved.
type Allocator struct {
	device        hal.Device
	queue         hal.Queue
	maxBufferSize uint64

	// Binding size limits, checked against buffers with Uniform or Storage
	// usage. Zero disables the check.
	maxUniformBinding uint64
	maxStorageBinding uint64

	mu        sync.Mutex
	budget    uint64
	used      uint64
	live      int
	allocated uint64
}

// NewAllocator returns an allocator for the given device and queue.
// maxBufferSize is the device limit; zero disables the check.
func NewAllocator(device hal.Device, queue hal.Queue, maxBufferSize uint64) (*Allocator, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	return &Allocator{device: device, queue: queue, maxBufferSize: maxBufferSize}, nil
}

// NewAllocatorWithLimits returns an allocator enforcing the buffer and
// binding size limits the device was opened with.
func NewAllocatorWithLimits(device hal.Device, queue hal.Queue, limits gputypes.Limits) (*Allocator, error) {
	a, err := NewAllocator(device, queue, limits.MaxBufferSize)
	if err != nil {
		return nil, err
	}
	a.maxUniformBinding = limits.MaxUniformBufferBindingSize
	a.maxStorageBinding = limits.MaxStorageBufferBindingSize
	return a, nil
}

// SetBudget limits the total size of live buffers. Zero removes the limit.
// Buffers already allocated are not affected.
func (a *Allocator) SetBudget(bytes uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.budget = bytes
}

// Stats returns the current buffer usage.
func (a *Allocator) Stats() AllocatorStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return AllocatorStats{
		Buffers:     a.live,
		UsedBytes:   a.used,
		BudgetBytes: a.budget,
		Allocated:   a.allocated,
	}
}

// reserve accounts for size bytes, failing if the budget would be exceeded.
func (a *Allocator) reserve(size uint64, label string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.budget != 0 && a.used+size > a.budget {
		return fmt.Errorf("%w: %q: %d bytes exceeds budget (%d of %d used)",
			ErrAllocation, label, size, a.used, a.budget)
	}
	a.used += size
	a.live++
	return nil
}

func (a *Allocator) unreserve(size uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.used -= size
	a.live--
}

// Allocate requests a device buffer of exactly size bytes.
//
// Returns an error wrapping ErrAllocation if the size is zero, the usage is
// empty, the size exceeds the device buffer or binding limits or the
// budget, or the device rejects the request.
func (a *Allocator) Allocate(size uint64, usage gputypes.BufferUsage, label string) (*Buffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("%w: %q: size is 0", ErrAllocation, label)
	}
	if usage == 0 {
		return nil, fmt.Errorf("%w: %q: usage is empty", ErrAllocation, label)
	}
	if a.maxBufferSize != 0 && size > a.maxBufferSize {
		return nil, fmt.Errorf("%w: %q: size %d exceeds device limit %d",
			ErrAllocation, label, size, a.maxBufferSize)
	}

	if a.maxStorageBinding != 0 && usage.Contains(gputypes.BufferUsageStorage) && size > a.maxStorageBinding {
		return nil, fmt.Errorf("%w: %q: storage size %d exceeds binding limit %d",
			ErrAllocation, label, size, a.maxStorageBinding)
	}
	if a.maxUniformBinding != 0 && usage.Contains(gputypes.BufferUsageUniform) && size > a.maxUniformBinding {
		return nil, fmt.Errorf("%w: %q: uniform size %d exceeds binding limit %d",
			ErrAllocation, label, size, a.maxUniformBinding)
	}

	if err := a.reserve(size, label); err != nil {
		return nil, err
	}

	raw, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		a.unreserve(size)
		return nil, fmt.Errorf("%w: %q: %w", ErrAllocation, label, err)
	}
	a.mu.Lock()
	a.allocated++
	a.mu.Unlock()

	slogger().Debug("gpu: buffer allocated", "label", label, "size", size)
	return &Buffer{
		raw:     raw,
		device:  a.device,
		desc:    BufferDescriptor{Label: label, Size: size, Usage: usage},
		shadow:  make([]byte, size),
		release: a.unreserve,
	}, nil
}

// Write copies data into buf at offset by enqueueing a queue write.
//
// Returns ErrOutOfBoundsWrite if offset+len(data) exceeds the buffer size,
// ErrMisalignedWrite if offset or len(data) is not 4-byte aligned,
// ErrNotWritable if the buffer lacks CopyDst usage and ErrBufferDestroyed
// on a destroyed buffer.
func (a *Allocator) Write(buf *Buffer, offset uint64, data []byte) error {
	if buf == nil {
		return fmt.Errorf("%w: nil buffer", ErrBufferDestroyed)
	}

	buf.mu.Lock()
	defer buf.mu.Unlock()

	if buf.destroyed {
		return fmt.Errorf("%w: %q", ErrBufferDestroyed, buf.desc.Label)
	}
	size := uint64(len(data))
	if offset > buf.desc.Size || size > buf.desc.Size-offset {
		return fmt.Errorf("%w: %q: offset %d + len %d > size %d",
			ErrOutOfBoundsWrite, buf.desc.Label, offset, size, buf.desc.Size)
	}
	if offset%writeAlignment != 0 || size%writeAlignment != 0 {
		return fmt.Errorf("%w: %q: offset %d, len %d", ErrMisalignedWrite, buf.desc.Label, offset, size)
	}
	if !buf.desc.Usage.Contains(gputypes.BufferUsageCopyDst) {
		return fmt.Errorf("%w: %q", ErrNotWritable, buf.desc.Label)
	}
	if size == 0 {
		return nil
	}

	if err := a.queue.WriteBuffer(buf.raw, offset, data); err != nil {
		return fmt.Errorf("gpu: write %q: %w", buf.desc.Label, err)
	}
	copy(buf.shadow[offset:], data)
	return nil
}

// AllocateInit allocates a buffer sized to data and uploads data into it.
// CopyDst is added to usage.
func (a *Allocator) AllocateInit(label string, usage gputypes.BufferUsage, data []byte) (*Buffer, error) {
	buf, err := a.Allocate(uint64(len(data)), usage|gputypes.BufferUsageCopyDst, label)
	if err != nil {
		return nil, err
	}
	if err := a.Write(buf, 0, data); err != nil {
		buf.Destroy()
		return nil, err
	}
	return buf, nil
}
