package cellgrid

import (
	"log/slog"

	"github.com/gogpu/gputypes"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gogpu/cellgrid/internal/gpu"
)

// Option configures a Simulation during creation.
//
// Example:
//
//	sim, err := cellgrid.New(dev, cfg,
//	    cellgrid.WithSeedPatterns(cellgrid.Empty, cellgrid.Glider(32)),
//	    cellgrid.WithMetrics(prometheus.NewRegistry()),
//	)
type Option func(*options)

// options holds optional configuration for Simulation creation.
type options struct {
	logger   *slog.Logger
	seedA    gpu.SeedPattern
	seedB    gpu.SeedPattern
	program  *gpu.ShaderProgram
	format   gputypes.TextureFormat
	registry prometheus.Registerer
	gatherer prometheus.Gatherer
	name     string
}

// WithLogger sets the logger used by the simulation loop. The package
// logger from SetLogger is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithSeedPatterns overrides the seed patterns named in Config. A nil
// pattern keeps the configured one.
func WithSeedPatterns(a, b SeedPattern) Option {
	return func(o *options) {
		o.seedA = a
		o.seedB = b
	}
}

// WithShader replaces the built-in WGSL program. The program must declare
// a uniform at binding 0 and read-only storage at binding 1; a compute
// entry point additionally needs read-write storage at binding 2.
func WithShader(p ShaderProgram) Option {
	return func(o *options) {
		o.program = &p
	}
}

// WithColorFormat sets the color target format. It defaults to the
// device's surface format, or BGRA8Unorm when headless.
func WithColorFormat(f gputypes.TextureFormat) Option {
	return func(o *options) {
		o.format = f
	}
}

// WithMetrics registers the simulation's collectors with reg instead of a
// private registry. If reg also implements prometheus.Gatherer, Metrics
// returns it. Simulations sharing reg need distinct WithName values.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registry = reg
		if g, ok := reg.(prometheus.Gatherer); ok {
			o.gatherer = g
		}
	}
}

// WithName labels the simulation's metrics with simulation=name and its
// log records with the same attribute.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}
