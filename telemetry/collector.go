package telemetry

import (
	"log/slog"

	"gonum.org/v1/gonum/floats"

	"github.com/petri-sim/petri/agent"
	"github.com/petri-sim/petri/diffusion"
)

// Collector aggregates per-step counters and emits a StepStats record every
// window steps. Records go to the output manager (when configured) and to
// slog (when enabled).
type Collector struct {
	window   int
	out      *OutputManager
	logStats bool

	created int
	removed int

	diameters []float64
}

// NewCollector creates a collector emitting every window steps. out may be
// nil to disable CSV output; logStats turns on slog output of window records.
func NewCollector(window int, out *OutputManager, logStats bool) *Collector {
	if window < 1 {
		window = 1
	}
	return &Collector{window: window, out: out, logStats: logStats}
}

// RecordStep accumulates one step's counters and, at window boundaries,
// computes and emits the stats record. It runs between scheduler phases, so
// reading the diffusion buffers here cannot observe a half-written step.
func (c *Collector) RecordStep(step int64, agents []agent.Agent, created, removed int, grids []diffusion.Grid) {
	c.created += created
	c.removed += removed
	if step%int64(c.window) != 0 {
		return
	}

	c.diameters = c.diameters[:0]
	for _, ag := range agents {
		c.diameters = append(c.diameters, ag.Diameter())
	}
	mean, p10, p50, p90 := ComputeDistribution(c.diameters)

	total := 0.0
	substances := 0
	for _, dg := range grids {
		if !dg.IsInitialized() {
			continue
		}
		total += floats.Sum(dg.GetAllConcentrations())
		substances++
	}

	stats := StepStats{
		Step:               step,
		Agents:             len(agents),
		Created:            c.created,
		Removed:            c.removed,
		DiameterMean:       mean,
		DiameterP10:        p10,
		DiameterP50:        p50,
		DiameterP90:        p90,
		TotalConcentration: total,
		Substances:         substances,
	}
	c.created = 0
	c.removed = 0

	if c.logStats {
		slog.Info("step stats", "stats", stats)
	}
	if c.out != nil {
		if err := c.out.WriteStats(stats); err != nil {
			slog.Error("writing step stats", "error", err)
		}
	}
}
