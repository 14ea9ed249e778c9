package cellgrid

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/pelletier/go-toml/v2"

	"github.com/gogpu/cellgrid/internal/gpu"
)

// Environment variables read by ApplyEnv.
const (
	EnvGridSize       = "GRID_SIZE"
	EnvUpdateInterval = "UPDATE_INTERVAL_MS"
)

// Defaults.
const (
	DefaultGridSize       = 32
	DefaultUpdateInterval = 200 * time.Millisecond

	// MaxGridSize bounds the grid edge so the instance count fits in uint32.
	MaxGridSize = 1 << 15

	// maxIntervalMS is the largest millisecond count a time.Duration holds.
	maxIntervalMS = math.MaxInt64 / int64(time.Millisecond)
)

// Config holds the settings of one simulation.
type Config struct {
	// GridSize is the edge length of the square grid.
	GridSize uint32

	// UpdateInterval is the period of the Start loop.
	UpdateInterval time.Duration

	// Simulate enables the compute step. Without it the two seeded
	// buffers are shown alternately.
	Simulate bool

	// ClearColor is the render pass clear value.
	ClearColor gputypes.Color

	// SeedA and SeedB name the seed patterns for the two state buffers.
	SeedA string
	SeedB string

	// MaxTicks stops the Start loop after that many successful ticks.
	// Zero runs until the context is cancelled.
	MaxTicks uint64
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		GridSize:       DefaultGridSize,
		UpdateInterval: DefaultUpdateInterval,
		ClearColor:     gpu.DefaultClearColor,
		SeedA:          "every-third",
		SeedB:          "alternating",
	}
}

// Grid returns the square grid described by c.
func (c Config) Grid() Grid {
	return Grid{Width: c.GridSize, Height: c.GridSize}
}

// Validate reports an error wrapping ErrInvalidConfig for unusable values.
func (c Config) Validate() error {
	if c.GridSize == 0 || c.GridSize > MaxGridSize {
		return fmt.Errorf("%w: grid size %d out of range [1, %d]", ErrInvalidConfig, c.GridSize, MaxGridSize)
	}
	if c.UpdateInterval <= 0 {
		return fmt.Errorf("%w: update interval %v must be positive", ErrInvalidConfig, c.UpdateInterval)
	}
	for _, name := range []string{c.SeedA, c.SeedB} {
		if _, err := gpu.NamedPattern(name, int(c.GridSize)); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

// fileConfig is the TOML layout. Absent keys keep their current value.
type fileConfig struct {
	GridSize         *uint32     `toml:"grid_size"`
	UpdateIntervalMS *int64      `toml:"update_interval_ms"`
	Simulate         *bool       `toml:"simulate"`
	ClearColor       *[4]float64 `toml:"clear_color"`
	SeedA            *string     `toml:"seed_a"`
	SeedB            *string     `toml:"seed_b"`
	MaxTicks         *uint64     `toml:"max_ticks"`
}

// LoadFile overlays the TOML file at path onto c. Unknown keys are an
// error.
func (c *Config) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	defer f.Close()

	var fc fileConfig
	if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(&fc); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return fmt.Errorf("%w: %s:%d:%d: %w", ErrInvalidConfig, path, row, col, err)
		}
		return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}
	if err := c.applyFile(fc); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}
	return nil
}

func (c *Config) applyFile(fc fileConfig) error {
	if fc.GridSize != nil {
		c.GridSize = *fc.GridSize
	}
	if fc.UpdateIntervalMS != nil {
		d, err := millis(*fc.UpdateIntervalMS)
		if err != nil {
			return fmt.Errorf("update_interval_ms: %w", err)
		}
		c.UpdateInterval = d
	}
	if fc.Simulate != nil {
		c.Simulate = *fc.Simulate
	}
	if fc.ClearColor != nil {
		cc := *fc.ClearColor
		c.ClearColor = gputypes.Color{R: cc[0], G: cc[1], B: cc[2], A: cc[3]}
	}
	if fc.SeedA != nil {
		c.SeedA = *fc.SeedA
	}
	if fc.SeedB != nil {
		c.SeedB = *fc.SeedB
	}
	if fc.MaxTicks != nil {
		c.MaxTicks = *fc.MaxTicks
	}
	return nil
}

// millis converts a positive millisecond count to a Duration, rejecting
// values the multiplication would overflow.
func millis(ms int64) (time.Duration, error) {
	if ms <= 0 || ms > maxIntervalMS {
		return 0, fmt.Errorf("%d ms out of range [1, %d]", ms, maxIntervalMS)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// ApplyEnv overlays GRID_SIZE and UPDATE_INTERVAL_MS from lookup, which
// is usually os.LookupEnv. Empty values are ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvGridSize); ok && v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %w", ErrInvalidConfig, EnvGridSize, v, err)
		}
		c.GridSize = uint32(n)
	}
	if v, ok := lookup(EnvUpdateInterval); ok && v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %w", ErrInvalidConfig, EnvUpdateInterval, v, err)
		}
		d, err := millis(ms)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, EnvUpdateInterval, err)
		}
		c.UpdateInterval = d
	}
	return nil
}

// FromEnv returns DefaultConfig overlaid with the process environment.
func FromEnv() (Config, error) {
	c := DefaultConfig()
	if err := c.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return c, c.Validate()
}
