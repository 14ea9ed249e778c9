package gpu

import "errors"

// Setup errors. All of them are fatal: a simulation cannot start without
// every buffer, the pipeline and both binding sets.
var (
	// ErrCapability is returned when the requested graphics backend is not
	// compiled in or registered.
	ErrCapability = errors.New("gpu: graphics backend not available")

	// ErrAdapterUnavailable is returned when no suitable adapter or device
	// could be obtained.
	ErrAdapterUnavailable = errors.New("gpu: no suitable adapter")

	// ErrAllocation is returned when the device rejects a buffer size/usage
	// combination.
	ErrAllocation = errors.New("gpu: buffer allocation failed")

	// ErrOutOfBoundsWrite is returned when a write would run past the end
	// of the destination buffer.
	ErrOutOfBoundsWrite = errors.New("gpu: write out of buffer bounds")

	// ErrMisalignedWrite is returned when a write offset or length is not a
	// multiple of 4 bytes.
	ErrMisalignedWrite = errors.New("gpu: write offset and size must be 4-byte aligned")

	// ErrNotWritable is returned when writing to a buffer created without
	// CopyDst usage.
	ErrNotWritable = errors.New("gpu: buffer lacks CopyDst usage")

	// ErrBufferDestroyed is returned when operating on a destroyed buffer.
	ErrBufferDestroyed = errors.New("gpu: buffer has been destroyed")

	// ErrPipelineCompilation is returned when the shader program cannot be
	// resolved into a render pipeline.
	ErrPipelineCompilation = errors.New("gpu: pipeline compilation failed")

	// ErrBindingLayoutMismatch is returned when a binding set disagrees with
	// the layout declared by the pipeline's shader.
	ErrBindingLayoutMismatch = errors.New("gpu: binding layout mismatch")

	// ErrNilDevice is returned when a component is constructed without a
	// device or queue.
	ErrNilDevice = errors.New("gpu: device or queue is nil")
)

// Per-tick errors.
var (
	// ErrFrameEncoding wraps every failure inside a single tick. The tick
	// is skipped and the generation counter is left unchanged.
	ErrFrameEncoding = errors.New("gpu: frame encoding failed")

	// ErrNoSurfaceImage is returned by a Surface that has no current image
	// to render into.
	ErrNoSurfaceImage = errors.New("gpu: surface has no current image")

	// ErrDeviceLost is returned once the device has been lost. It is not
	// recoverable within this package.
	ErrDeviceLost = errors.New("gpu: device lost")
)
