// Command bedform-run evolves a sand bed headlessly and exports the
// resulting snapshots as a PNG sequence and/or an animated GIF.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"bedform/internal/core"
	"bedform/internal/export"
	"bedform/internal/sims/bedform"
)

func main() {
	var (
		configPath = flag.String("config", "", "optional YAML config file")
		width      = flag.Int("w", 0, "grid width (columns, transport axis)")
		height     = flag.Int("h", 0, "grid height (rows)")
		seed       = flag.Int64("seed", 0, "seed for the initial bed")
		workers    = flag.Int("workers", 0, "diffusion worker goroutines (0 = all CPUs)")
		diffusion  = flag.Float64("d", 0, "diffusion rate")
		flux       = flag.Float64("q", 0, "saltation flux per cell per step")
		hopBase    = flag.Float64("l0", 0, "base saltation hop length")
		hopSlope   = flag.Float64("b", 0, "hop length slope sensitivity")
		legacy     = flag.Bool("legacy-diagonals", false, "use the asymmetric legacy diagonal stencil")
		steps      = flag.Int("steps", 100, "number of steps to run")
		outDir     = flag.String("out", "", "directory for the PNG frame sequence (empty skips)")
		prefix     = flag.String("prefix", "bed", "file name prefix for PNG frames")
		gifPath    = flag.String("gif", "", "path for an animated GIF (empty skips)")
		gifDelay   = flag.Int("gif-delay", 10, "GIF frame delay in hundredths of a second")
	)
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := bedform.DefaultConfig()
	if *configPath != "" {
		cfg, err = bedform.LoadFile(*configPath)
		if err != nil {
			logger.Fatal("load config", zap.String("path", *configPath), zap.Error(err))
		}
	}
	// Explicit flags win over the config file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "w":
			cfg.Width = *width
		case "h":
			cfg.Height = *height
		case "seed":
			cfg.Seed = *seed
		case "workers":
			cfg.Workers = *workers
		case "d":
			cfg.Params.D = *diffusion
		case "q":
			cfg.Params.Q = *flux
		case "l0":
			cfg.Params.L0 = *hopBase
		case "b":
			cfg.Params.B = *hopSlope
		case "legacy-diagonals":
			cfg.Params.LegacyDiagonals = *legacy
		}
	})

	sim, err := bedform.NewWithConfig(cfg)
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	logger.Info("starting run", zap.Int("steps", *steps))
	for _, group := range sim.Parameters().Groups {
		fields := make([]zap.Field, 0, len(group.Params))
		for _, p := range group.Params {
			fields = append(fields, zap.String(p.Key, p.Value))
		}
		logger.Info("parameters", append([]zap.Field{zap.String("group", group.Name)}, fields...)...)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	frames, runErr := run(ctx, logger, sim, *steps)
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			logger.Warn("run interrupted", zap.Int("completed", len(frames)))
		} else {
			logger.Fatal("run aborted", zap.Int("completed", len(frames)), zap.Error(runErr))
		}
	}
	if len(frames) == 0 {
		logger.Warn("no snapshots produced, nothing to export")
		return
	}

	final := frames[len(frames)-1]
	lo, hi := final.Extent()
	logger.Info("run finished",
		zap.Int("steps", len(frames)),
		zap.Float64("mass", final.Sum()),
		zap.Float64("relief", hi-lo))

	if *outDir != "" {
		if err := export.SaveImages(frames, *outDir, *prefix, sim.Palette()); err != nil {
			logger.Fatal("save image sequence", zap.Error(err))
		}
		logger.Info("saved image sequence", zap.String("dir", *outDir), zap.Int("frames", len(frames)))
	}
	if *gifPath != "" {
		if err := export.SaveGIF(frames, *gifPath, *gifDelay); err != nil {
			logger.Fatal("save animation", zap.Error(err))
		}
		logger.Info("saved animation", zap.String("path", *gifPath))
	}
}

// run drives the simulation in short bursts so progress can be reported
// while honoring cancellation between steps.
func run(ctx context.Context, logger *zap.Logger, sim *bedform.Simulator, steps int) ([]*core.FloatGrid, error) {
	const burst = 10
	if steps < 0 {
		// Let the simulator reject the argument rather than silently
		// producing an empty run.
		return sim.Run(ctx, steps)
	}
	frames := make([]*core.FloatGrid, 0, steps)
	progress := core.NewThrottle(500 * time.Millisecond)
	start := time.Now()

	for len(frames) < steps {
		n := steps - len(frames)
		if n > burst {
			n = burst
		}
		part, err := sim.Run(ctx, n)
		frames = append(frames, part...)
		if err != nil {
			return frames, err
		}
		if progress.Allow() {
			logger.Info("progress",
				zap.Int("step", len(frames)),
				zap.Int("total", steps),
				zap.Duration("elapsed", time.Since(start).Round(time.Millisecond)))
		}
	}
	return frames, nil
}
