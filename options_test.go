package cellgrid

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil))

	sim, err := New(openNoopDevice(t), testConfig(4), WithLogger(l))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sim.Close()
	if sim.logger() != l {
		t.Error("WithLogger not applied")
	}
	if err := sim.Setup(); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if !strings.Contains(buf.String(), "simulation set up") {
		t.Errorf("expected setup message, got %q", buf.String())
	}
}

func TestWithoutLoggerUsesPackageLogger(t *testing.T) {
	sim, err := New(openNoopDevice(t), testConfig(4))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sim.Close()
	if sim.logger() != Logger() {
		t.Error("expected package logger")
	}
}

func TestWithSeedPatterns(t *testing.T) {
	dev := openNoopDevice(t)
	sim := newSetUp(t, dev, testConfig(4), WithSeedPatterns(Empty, nil))

	a := sim.StateContents(0)
	if len(a) != 16*4 {
		t.Fatalf("state A is %d bytes, want 64", len(a))
	}
	for i, b := range a {
		if b != 0 {
			t.Fatalf("state A byte %d = %d, want 0 for Empty", i, b)
		}
	}

	// Nil keeps the configured pattern ("alternating").
	b := sim.StateContents(1)
	if b[0] != 0 || b[4] != 1 {
		t.Errorf("state B starts %v, want alternating 0,1", b[:8])
	}
}

func TestWithShader(t *testing.T) {
	dev := openNoopDevice(t)

	sim := newSetUp(t, dev, testConfig(4), WithShader(LifeProgram()))
	if !sim.res.Pipeline.HasCompute() {
		t.Error("WithShader(LifeProgram) should enable compute")
	}

	bad := ShaderProgram{Label: "broken", Source: "this is not wgsl"}
	sim2, err := New(dev, testConfig(4), WithShader(bad))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sim2.Close()
	if err := sim2.Setup(); !errors.Is(err, ErrPipelineCompilation) {
		t.Errorf("Setup with broken shader = %v, want ErrPipelineCompilation", err)
	}
}

func TestWithColorFormat(t *testing.T) {
	dev := openNoopDevice(t)

	sim, err := New(dev, testConfig(4), WithColorFormat(gputypes.TextureFormatRGBA8Unorm))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sim.Close()
	if got := sim.format(); got != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("format = %v, want RGBA8Unorm", got)
	}

	plain, err := New(dev, testConfig(4))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer plain.Close()
	if got := plain.format(); got != gputypes.TextureFormatBGRA8Unorm {
		t.Errorf("headless default format = %v, want BGRA8Unorm", got)
	}
}

func TestWithMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	sim, err := New(openNoopDevice(t), testConfig(4), WithMetrics(reg))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sim.Close()
	if sim.Metrics() != reg {
		t.Error("Metrics() should return the registry passed to WithMetrics")
	}
}

func TestSharedMetricsRegistry(t *testing.T) {
	dev := openNoopDevice(t)
	reg := prometheus.NewRegistry()

	first, err := New(dev, testConfig(4), WithMetrics(reg))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer first.Close()
	if _, err := New(dev, testConfig(4), WithMetrics(reg)); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("second unnamed New on one registry = %v, want ErrInvalidConfig", err)
	}

	named := prometheus.NewRegistry()
	a := newSetUp(t, dev, testConfig(4), WithMetrics(named), WithName("a"))
	b := newSetUp(t, dev, testConfig(4), WithMetrics(named), WithName("b"))
	if _, err := a.Tick(viewSurface()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := b.Tick(viewSurface()); err != nil {
			t.Fatalf("Tick: %v", err)
		}
	}

	const want = `
# HELP cellgrid_ticks_total Number of frames recorded and submitted
# TYPE cellgrid_ticks_total counter
cellgrid_ticks_total{simulation="a"} 1
cellgrid_ticks_total{simulation="b"} 2
`
	if err := testutil.GatherAndCompare(named, strings.NewReader(want), "cellgrid_ticks_total"); err != nil {
		t.Error(err)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	again, err := New(dev, testConfig(4), WithMetrics(named), WithName("a"))
	if err != nil {
		t.Fatalf("New with a closed simulation's name: %v", err)
	}
	again.Close()
}

func TestMultipleOptions(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil))
	sim, err := New(openNoopDevice(t), testConfig(4),
		WithLogger(l),
		WithColorFormat(gputypes.TextureFormatRGBA8Unorm),
		WithSeedPatterns(Alternating, EveryThird),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sim.Close()
	if sim.opts.logger != l || sim.opts.format != gputypes.TextureFormatRGBA8Unorm {
		t.Error("options not all applied")
	}
	if sim.opts.seedA == nil || sim.opts.seedB == nil {
		t.Error("seed patterns not applied")
	}
}
