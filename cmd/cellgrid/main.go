// Command cellgrid runs the GPU cell grid headlessly into an offscreen
// render target.
//
// Settings are layered: built-in defaults, then the TOML file given by
// -config, then GRID_SIZE and UPDATE_INTERVAL_MS, then explicit flags.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gogpu/gputypes"
	_ "github.com/gogpu/wgpu/hal/noop"
	_ "github.com/gogpu/wgpu/hal/vulkan"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/cellgrid"
	"github.com/gogpu/cellgrid/internal/metrics"
)

// surfaceEdge is the offscreen target size in pixels.
const surfaceEdge = 512

var backends = map[string]gputypes.Backend{
	"vulkan": gputypes.BackendVulkan,
	"noop":   gputypes.BackendEmpty,
}

type flags struct {
	grid        uint
	interval    time.Duration
	config      string
	backend     string
	ticks       uint64
	simulate    bool
	seedA       string
	seedB       string
	metricsAddr string
	verbose     bool
}

func main() {
	var f flags
	flag.UintVar(&f.grid, "grid", cellgrid.DefaultGridSize, "grid edge length in cells")
	flag.DurationVar(&f.interval, "interval", cellgrid.DefaultUpdateInterval, "tick period")
	flag.StringVar(&f.config, "config", "", "TOML configuration file")
	flag.StringVar(&f.backend, "backend", "vulkan", "graphics backend: vulkan or noop")
	flag.Uint64Var(&f.ticks, "ticks", 0, "stop after N frames (0 runs until interrupted)")
	flag.BoolVar(&f.simulate, "simulate", false, "run the Game of Life compute step")
	flag.StringVar(&f.seedA, "seed-a", "every-third", "seed pattern for state A: "+strings.Join(cellgrid.PatternNames(), ", "))
	flag.StringVar(&f.seedB, "seed-b", "alternating", "seed pattern for state B")
	flag.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	flag.BoolVar(&f.verbose, "v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if f.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	cellgrid.SetLogger(logger)

	if err := run(f, explicitFlags(), logger); err != nil {
		logger.Error("cellgrid failed", "err", err)
		os.Exit(1)
	}
}

func explicitFlags() map[string]bool {
	set := make(map[string]bool)
	flag.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	return set
}

// loadConfig layers defaults, the config file, the environment and the
// explicitly set flags.
func loadConfig(f flags, set map[string]bool, lookup func(string) (string, bool)) (cellgrid.Config, error) {
	cfg := cellgrid.DefaultConfig()
	if f.config != "" {
		if err := cfg.LoadFile(f.config); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return cfg, err
	}

	if set["grid"] {
		cfg.GridSize = uint32(f.grid) //nolint:gosec // range checked by Validate
		if f.grid > cellgrid.MaxGridSize {
			cfg.GridSize = 0
		}
	}
	if set["interval"] {
		cfg.UpdateInterval = f.interval
	}
	if set["ticks"] {
		cfg.MaxTicks = f.ticks
	}
	if set["simulate"] {
		cfg.Simulate = f.simulate
	}
	if set["seed-a"] {
		cfg.SeedA = f.seedA
	}
	if set["seed-b"] {
		cfg.SeedB = f.seedB
	}
	return cfg, cfg.Validate()
}

func run(f flags, set map[string]bool, logger *slog.Logger) error {
	backend, ok := backends[f.backend]
	if !ok {
		return fmt.Errorf("unknown backend %q", f.backend)
	}
	cfg, err := loadConfig(f, set, os.LookupEnv)
	if err != nil {
		return err
	}

	dev, err := cellgrid.OpenDevice(backend)
	if err != nil {
		return err
	}
	defer dev.Close()
	logger.Info("device opened", "adapter", dev.AdapterInfo().Name, "type", dev.AdapterInfo().Type)

	sim, err := cellgrid.New(dev, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := sim.Close(); err != nil {
			logger.Warn("close", "err", err)
		}
	}()

	surface, err := dev.NewOffscreenSurface(surfaceEdge, surfaceEdge, gputypes.TextureFormatUndefined)
	if err != nil {
		return err
	}
	defer surface.Release()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	if f.metricsAddr != "" {
		srv := metrics.NewServer(f.metricsAddr, sim.Metrics())
		g.Go(func() error {
			logger.Info("serving metrics", "addr", f.metricsAddr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	g.Go(func() error {
		err := sim.Start(ctx, surface)
		stop()
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("done", "generation", sim.Generation())
	return nil
}
