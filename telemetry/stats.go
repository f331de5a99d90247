// Package telemetry collects per-step statistics and phase timings and
// writes them to CSV for offline analysis.
package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// StepStats holds aggregated statistics for a window of simulation steps.
type StepStats struct {
	Step    int64 `csv:"step"`
	Agents  int   `csv:"agents"`
	Created int   `csv:"created"`
	Removed int   `csv:"removed"`

	// Diameter distribution sampled at window end
	DiameterMean float64 `csv:"diameter_mean"`
	DiameterP10  float64 `csv:"diameter_p10"`
	DiameterP50  float64 `csv:"diameter_p50"`
	DiameterP90  float64 `csv:"diameter_p90"`

	// Total concentration summed over all substances (conservation check)
	TotalConcentration float64 `csv:"total_concentration"`
	Substances         int     `csv:"substances"`
}

// LogValue implements slog.LogValuer for structured logging.
func (s StepStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("step", s.Step),
		slog.Int("agents", s.Agents),
		slog.Int("created", s.Created),
		slog.Int("removed", s.Removed),
		slog.Float64("diameter_mean", s.DiameterMean),
		slog.Float64("diameter_p50", s.DiameterP50),
		slog.Float64("total_concentration", s.TotalConcentration),
	)
}

// ComputeDistribution returns mean, p10, p50 and p90 of the values. An empty
// slice yields all zeros. The input is sorted in place.
func ComputeDistribution(values []float64) (mean, p10, p50, p90 float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0
	}
	sort.Float64s(values)
	mean = stat.Mean(values, nil)
	p10 = stat.Quantile(0.1, stat.Empirical, values, nil)
	p50 = stat.Quantile(0.5, stat.Empirical, values, nil)
	p90 = stat.Quantile(0.9, stat.Empirical, values, nil)
	return mean, p10, p50, p90
}
