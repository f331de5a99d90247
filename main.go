package main

import (
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/petri-sim/petri/config"
	"github.com/petri-sim/petri/sim"
	"github.com/petri-sim/petri/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	seed := flag.Int64("seed", 0, "RNG seed (0 = use config, time-based if also 0)")
	maxTicks := flag.Int("max-ticks", 1000, "Stop after N ticks")
	workers := flag.Int("workers", 0, "Worker count (0 = use config)")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// CLI overrides
	if *seed != 0 {
		cfg.Simulation.Seed = *seed
	}
	if cfg.Simulation.Seed == 0 {
		cfg.Simulation.Seed = time.Now().UnixNano()
	}
	if *workers > 0 {
		cfg.Derived.Workers = *workers
	}

	s := sim.NewSimulation("petri", cfg)
	defer s.Close()

	for _, sc := range cfg.Substances {
		sim.DefineSubstance(s, sc)
	}

	pop := cfg.Population
	if pop.CellsPerDim > 0 {
		sim.CreateCellGrid(s, pop)
	}
	if pop.GrowthSpeed != 0 || pop.DivideVolume > 0 {
		s.Scheduler.AddOperation(sim.NewGrowthDivisionOp(s, pop.GrowthSpeed, pop.DivideVolume))
	}

	out, err := telemetry.NewOutputManager(*outputDir)
	if err != nil {
		slog.Error("failed to set up output", "error", err)
		os.Exit(1)
	}
	defer out.Close()
	if err := out.WriteConfig(cfg); err != nil {
		slog.Error("failed to write config snapshot", "error", err)
	}

	perf := telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow)
	collector := telemetry.NewCollector(cfg.Telemetry.Window, out, *logStats)
	s.Scheduler.SetTelemetry(perf, collector)

	slog.Info("starting simulation",
		"seed", cfg.Simulation.Seed,
		"workers", cfg.Derived.Workers,
		"max_ticks", *maxTicks,
		"agents", s.RM.NumAgents(),
		"substances", len(cfg.Substances),
	)

	perfWindow := cfg.Telemetry.PerfCollectorWindow
	if perfWindow < 1 {
		perfWindow = 100
	}
	snapshotEvery := cfg.Telemetry.SnapshotEvery

	for tick := 0; tick < *maxTicks; tick++ {
		s.Scheduler.Simulate(1)

		step := s.Scheduler.Step()
		if step%int64(perfWindow) == 0 {
			stats := perf.Stats()
			if *logStats {
				stats.LogStats()
			}
			if err := out.WritePerf(stats, step); err != nil {
				slog.Error("failed to write perf stats", "error", err)
			}
		}
		if snapshotEvery > 0 && step%int64(snapshotEvery) == 0 {
			for _, dg := range s.RM.DiffusionGrids() {
				if err := out.WriteLatticeSnapshot(dg, step); err != nil {
					slog.Error("failed to write lattice snapshot",
						"substance", dg.Name(), "error", err)
				}
			}
		}
	}

	slog.Info("simulation finished",
		"ticks", s.Scheduler.Step(),
		"agents", s.RM.NumAgents(),
	)
}
