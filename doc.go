// Package cellgrid renders a Game-of-Life style cell grid entirely on the
// GPU using the pure-Go WebGPU stack (gogpu/wgpu).
//
// # Overview
//
// Cell state lives in two device storage buffers, A and B. Each cell is
// drawn as an instanced quad whose fragment color comes from its state.
// Two binding sets alternate between the buffers: set A reads buffer A and
// set B reads buffer B. The set is chosen by the parity of a generation
// counter that advances once per successfully submitted frame.
//
// Without a compute step the two seeded buffers are simply shown in turn.
// With Config.Simulate the built-in shader also runs Conway's rule in a
// compute pass, writing the next state into the other buffer before it is
// drawn.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/cellgrid"
//	    _ "github.com/gogpu/wgpu/hal/vulkan"
//	)
//
//	dev, err := cellgrid.OpenDevice(gputypes.BackendVulkan)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer dev.Close()
//
//	sim, err := cellgrid.New(dev, cellgrid.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sim.Close()
//
//	surface, _ := dev.NewOffscreenSurface(512, 512, 0)
//	err = sim.Start(ctx, surface)
//
// A host window that implements gpucontext.DeviceProvider and exposes
// HalDevice/HalQueue can share its device through DeviceFromProvider and
// pass its swapchain as a Surface.
//
// # Configuration
//
// Config starts from DefaultConfig and may be overlaid by a TOML file
// (LoadFile) and by the GRID_SIZE and UPDATE_INTERVAL_MS environment
// variables (ApplyEnv). Functional options cover what does not belong in
// a file: WithLogger, WithSeedPatterns, WithShader, WithColorFormat and
// WithMetrics.
//
// # Errors
//
// Setup failures (ErrAllocation, ErrPipelineCompilation,
// ErrBindingLayoutMismatch, ...) abort Setup and release what was built.
// Tick failures wrap ErrFrameEncoding, leave the generation unchanged and
// are skipped by Start, except ErrDeviceLost which ends the loop.
//
// # Logging
//
// cellgrid is silent by default. Use SetLogger to route its slog output.
package cellgrid
