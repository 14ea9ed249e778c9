package cellgrid

import (
	"errors"

	"github.com/gogpu/cellgrid/internal/gpu"
)

// Errors reported by the GPU layer. Use errors.Is to test for them.
var (
	ErrCapability            = gpu.ErrCapability
	ErrAdapterUnavailable    = gpu.ErrAdapterUnavailable
	ErrAllocation            = gpu.ErrAllocation
	ErrOutOfBoundsWrite      = gpu.ErrOutOfBoundsWrite
	ErrMisalignedWrite       = gpu.ErrMisalignedWrite
	ErrNotWritable           = gpu.ErrNotWritable
	ErrBufferDestroyed       = gpu.ErrBufferDestroyed
	ErrPipelineCompilation   = gpu.ErrPipelineCompilation
	ErrBindingLayoutMismatch = gpu.ErrBindingLayoutMismatch
	ErrFrameEncoding         = gpu.ErrFrameEncoding
	ErrNoSurfaceImage        = gpu.ErrNoSurfaceImage
	ErrDeviceLost            = gpu.ErrDeviceLost
	ErrNilDevice             = gpu.ErrNilDevice
)

// Simulation lifecycle errors.
var (
	// ErrAlreadySetUp is returned by a second Setup on the same Simulation.
	ErrAlreadySetUp = errors.New("cellgrid: simulation already set up")

	// ErrNotSetUp is returned by Tick before Setup.
	ErrNotSetUp = errors.New("cellgrid: simulation not set up")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("cellgrid: simulation closed")

	// ErrInvalidConfig is returned for out-of-range or unparsable settings.
	ErrInvalidConfig = errors.New("cellgrid: invalid configuration")
)
