package gpu

import (
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/wgpu/hal"
)

// drainPollInterval is how often Drain re-checks queue progress.
const drainPollInterval = time.Millisecond

// submission is one submitted frame whose command buffer and encoder are
// released once the queue reports its index complete.
type submission struct {
	index      uint64
	generation uint64
	encoder    hal.CommandEncoder
	cmd        hal.CommandBuffer
}

// inflight tracks submitted frames without blocking the submitting
// goroutine. It is not safe for concurrent use; the FrameDriver owns it.
type inflight struct {
	device  hal.Device
	queue   hal.Queue
	pending []submission
}

func newInflight(device hal.Device, queue hal.Queue) *inflight {
	return &inflight{device: device, queue: queue}
}

// submit hands cmd to the queue and records it for later reclamation.
// On failure cmd and encoder are released immediately.
func (f *inflight) submit(encoder hal.CommandEncoder, cmd hal.CommandBuffer, generation uint64) error {
	index, err := f.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		f.device.FreeCommandBuffer(cmd)
		encoder.Destroy()
		return fmt.Errorf("submit: %w", err)
	}
	f.pending = append(f.pending, submission{
		index:      index,
		generation: generation,
		encoder:    encoder,
		cmd:        cmd,
	})
	return nil
}

// reclaim releases every submission the queue reports complete. It never
// waits and returns how many were released.
func (f *inflight) reclaim() int {
	if len(f.pending) == 0 {
		return 0
	}
	done := f.queue.PollCompleted()
	n := 0
	for _, s := range f.pending {
		if s.index > done {
			break
		}
		f.release(s)
		n++
	}
	f.pending = f.pending[n:]
	if len(f.pending) == 0 {
		f.pending = nil
	}
	return n
}

// drain waits up to timeout for outstanding work, releasing what
// completes. Submissions still pending after the deadline are left
// unreleased and reported as an error.
func (f *inflight) drain(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		f.reclaim()
		if len(f.pending) == 0 {
			return nil
		}
		if !time.Now().Before(deadline) {
			break
		}
		time.Sleep(drainPollInterval)
	}
	last := f.pending[len(f.pending)-1]
	return fmt.Errorf("gpu: %d submissions still pending after %v (last generation %d)",
		len(f.pending), timeout, last.generation)
}

// outstanding is the number of submissions not yet reclaimed.
func (f *inflight) outstanding() int { return len(f.pending) }

func (f *inflight) release(s submission) {
	f.device.FreeCommandBuffer(s.cmd)
	if s.encoder != nil {
		s.encoder.Destroy()
	}
}

// isDeviceLost reports whether err indicates device loss from either the
// HAL or a Surface.
func isDeviceLost(err error) bool {
	return errors.Is(err, hal.ErrDeviceLost) || errors.Is(err, ErrDeviceLost)
}
