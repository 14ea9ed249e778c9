// Package gpu renders a cell grid with instanced quads on a gogpu/wgpu HAL
// device.
//
// # Resources
//
// An Allocator creates four fixed-size buffers: the quad vertices, the
// grid uniform vec2<f32>(width, height) and two cell state buffers A and
// B of width*height u32 each. BuildPipeline validates a WGSL program with
// naga, reflects its group(0) bindings into an explicit layout and creates
// the render pipeline (plus a compute pipeline when the program has a
// compute entry point). BuildBindingSets creates two bind groups: set 0
// reads A and set 1 reads B.
//
// # Frames
//
// A FrameDriver owns the generation counter. Each Tick selects set
// generation%2, clears the surface view, draws 6 vertices per cell
// instance, submits without waiting and increments the counter:
//
//	driver, _ := gpu.NewFrameDriver(device, queue, gpu.FrameConfig{...})
//	report, err := driver.Tick(surface)
//	if errors.Is(err, gpu.ErrFrameEncoding) {
//	    // skipped; generation unchanged
//	}
//
// With a compute stage the tick first dispatches the simulation from the
// selected set into the other buffer and renders the result.
//
// Completed command buffers are reclaimed on later ticks by polling the
// queue. Device loss is sticky.
package gpu
