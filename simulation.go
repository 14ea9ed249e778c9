package cellgrid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gogpu/cellgrid/internal/gpu"
	"github.com/gogpu/cellgrid/internal/metrics"
)

// closeTimeout bounds how long Close waits for submitted frames.
const closeTimeout = 2 * time.Second

// Simulation owns every GPU object of one cell grid: the buffers, the
// pipeline, both binding sets and the frame driver with its generation
// counter. Its methods are safe for concurrent use; ticks are serialized.
type Simulation struct {
	mu sync.Mutex

	cfg  Config
	opts options
	dev  *Device

	alloc  *gpu.Allocator
	res    *gpu.Resources
	driver *gpu.FrameDriver

	metrics    *metrics.Collectors
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer

	closed bool
}

// New returns an unconfigured simulation on dev. No GPU object is created
// until Setup.
func New(dev *Device, cfg Config, opts ...Option) (*Simulation, error) {
	if dev == nil || dev.d == nil {
		return nil, ErrNilDevice
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		reg := prometheus.NewRegistry()
		o.registry, o.gatherer = reg, reg
	}

	reg := metrics.Labeled(o.registry, o.name)
	m, err := metrics.New(reg)
	if err != nil {
		return nil, fmt.Errorf("%w: metrics: %w", ErrInvalidConfig, err)
	}

	return &Simulation{
		cfg:        cfg,
		opts:       o,
		dev:        dev,
		metrics:    m,
		registerer: reg,
		gatherer:   o.gatherer,
	}, nil
}

func (s *Simulation) logger() *slog.Logger {
	l := s.opts.logger
	if l == nil {
		l = Logger()
	}
	if s.opts.name != "" {
		l = l.With("simulation", s.opts.name)
	}
	return l
}

// Config returns the configuration the simulation was created with.
func (s *Simulation) Config() Config { return s.cfg }

// Setup allocates and seeds the buffers, builds the pipeline and both
// binding sets. A second call fails with ErrAlreadySetUp and leaves the
// existing resources untouched. On error nothing is kept and Setup may be
// called again.
func (s *Simulation) Setup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setupLocked()
}

func (s *Simulation) setupLocked() error {
	if s.closed {
		return ErrClosed
	}
	if s.res != nil {
		return ErrAlreadySetUp
	}

	d := s.dev.d
	alloc, err := gpu.NewAllocatorWithLimits(d.Device, d.Queue, d.Limits)
	if err != nil {
		return err
	}
	seedA, seedB, err := s.seeds()
	if err != nil {
		return err
	}

	res, err := gpu.SetupResources(alloc, d.Device, gpu.ResourceConfig{
		Grid:    s.cfg.Grid(),
		Program: s.program(),
		Format:  s.format(),
		SeedA:   seedA,
		SeedB:   seedB,
	})
	if err != nil {
		return fmt.Errorf("cellgrid: setup: %w", err)
	}
	driver, err := gpu.NewFrameDriver(d.Device, d.Queue, res.FrameConfig(s.cfg.ClearColor))
	if err != nil {
		res.Destroy()
		return fmt.Errorf("cellgrid: setup: %w", err)
	}

	s.alloc, s.res, s.driver = alloc, res, driver
	s.logger().Info("cellgrid: simulation set up",
		"grid", s.cfg.GridSize,
		"compute", res.Pipeline.HasCompute(),
		"pipeline", res.Pipeline.Label(),
		"buffers", alloc.Stats())
	return nil
}

func (s *Simulation) seeds() (a, b gpu.SeedPattern, err error) {
	width := int(s.cfg.GridSize)
	a, b = s.opts.seedA, s.opts.seedB
	if a == nil {
		if a, err = gpu.NamedPattern(s.cfg.SeedA, width); err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	if b == nil {
		if b, err = gpu.NamedPattern(s.cfg.SeedB, width); err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return a, b, nil
}

func (s *Simulation) program() gpu.ShaderProgram {
	switch {
	case s.opts.program != nil:
		return *s.opts.program
	case s.cfg.Simulate:
		return gpu.LifeProgram()
	default:
		return gpu.CellProgram()
	}
}

func (s *Simulation) format() gputypes.TextureFormat {
	if s.opts.format != gputypes.TextureFormatUndefined {
		return s.opts.format
	}
	if f := s.dev.SurfaceFormat(); f != gputypes.TextureFormatUndefined {
		return f
	}
	return gputypes.TextureFormatBGRA8Unorm
}

// Tick records and submits one frame into surface. It returns
// ErrNotSetUp before Setup and ErrClosed after Close. Frame failures wrap
// ErrFrameEncoding and leave the generation unchanged.
func (s *Simulation) Tick(surface Surface) (FrameReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tickLocked(surface)
}

func (s *Simulation) tickLocked(surface Surface) (FrameReport, error) {
	if s.closed {
		return FrameReport{}, ErrClosed
	}
	if s.driver == nil {
		return FrameReport{}, ErrNotSetUp
	}

	start := time.Now()
	report, err := s.driver.Tick(surface)
	if err != nil {
		s.metrics.ObserveFailure(failureReason(err))
		return FrameReport{}, err
	}
	s.metrics.ObserveTick(time.Since(start), report.Generation)
	return report, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrDeviceLost):
		return metrics.ReasonDeviceLost
	case errors.Is(err, ErrNoSurfaceImage):
		return metrics.ReasonNoSurfaceImage
	default:
		return metrics.ReasonEncoding
	}
}

// Start sets the simulation up if needed and ticks into surface every
// UpdateInterval until ctx is done, MaxTicks frames have been submitted,
// or the device is lost.
//
// Failed ticks are logged and skipped. Start returns ctx.Err() on
// cancellation, nil after MaxTicks and an error wrapping ErrDeviceLost on
// device loss.
func (s *Simulation) Start(ctx context.Context, surface Surface) error {
	s.mu.Lock()
	if s.res == nil {
		if err := s.setupLocked(); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	s.mu.Unlock()

	log := s.logger()
	log.Info("cellgrid: loop started", "interval", s.cfg.UpdateInterval, "max_ticks", s.cfg.MaxTicks)

	ticker := time.NewTicker(s.cfg.UpdateInterval)
	defer ticker.Stop()

	var ticks uint64
	for {
		select {
		case <-ctx.Done():
			log.Info("cellgrid: loop stopped", "generation", s.Generation(), "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
		}

		report, err := s.Tick(surface)
		switch {
		case errors.Is(err, ErrClosed):
			return err
		case errors.Is(err, ErrDeviceLost):
			log.Error("cellgrid: loop stopped", "generation", s.Generation(), "err", err)
			return err
		case err != nil:
			log.Warn("cellgrid: tick skipped", "generation", s.Generation(), "err", err)
			continue
		}

		ticks++
		log.Debug("cellgrid: tick",
			"generation", report.Generation,
			"parity", report.Parity,
			"rendered", report.Rendered)
		if s.cfg.MaxTicks > 0 && ticks >= s.cfg.MaxTicks {
			log.Info("cellgrid: loop stopped", "generation", report.Generation, "reason", "max ticks")
			return nil
		}
	}
}

// Generation returns the number of successful ticks.
func (s *Simulation) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.driver == nil {
		return 0
	}
	return s.driver.Generation()
}

// NextParity returns the binding set the next tick will select.
func (s *Simulation) NextParity() Parity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.driver == nil {
		return ParityA
	}
	return s.driver.NextParity()
}

// Reseed overwrites both state buffers. Nil patterns select EveryThird
// and Alternating. The generation is not reset.
func (s *Simulation) Reseed(a, b SeedPattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.res == nil {
		return ErrNotSetUp
	}
	return s.res.Reseed(s.alloc, a, b)
}

// StateContents returns the last bytes written to state buffer A (index
// 0) or B (index 1), or nil before Setup.
func (s *Simulation) StateContents(index int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.res == nil || index < 0 || index > 1 {
		return nil
	}
	return s.res.State[index].Contents()
}

// Metrics returns the gatherer holding the simulation's collectors. It is
// nil when WithMetrics was given a Registerer that cannot gather.
func (s *Simulation) Metrics() prometheus.Gatherer { return s.gatherer }

// Close releases every GPU object after a short wait for submitted frames,
// then unregisters the metrics. The device itself is left open. Close is
// idempotent.
func (s *Simulation) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.driver != nil {
		if err = s.driver.Close(closeTimeout); err != nil {
			s.logger().Warn("cellgrid: frames still in flight at close", "err", err)
		}
	}
	s.res.Destroy()
	s.res, s.driver, s.alloc = nil, nil, nil
	s.metrics.Unregister(s.registerer)
	return err
}
