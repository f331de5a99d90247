package sim

import (
	"log/slog"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/petri-sim/petri/agent"
	"github.com/petri-sim/petri/config"
	"github.com/petri-sim/petri/diffusion"
)

// DefineSubstance registers a diffusion grid for the substance, picking the
// stencil from the configured diffusion method. Unknown methods degrade to
// the single-stage scheme with a warning; a decay constant configured for the
// four-stage scheme is dropped with a warning. Neither aborts the run.
func DefineSubstance(s *Simulation, sc config.SubstanceConfig) diffusion.Grid {
	method := s.Cfg.Simulation.DiffusionMethod
	bound := s.Cfg.Simulation.BoundSpace

	var dg diffusion.Grid
	switch method {
	case config.MethodEuler:
		dg = diffusion.NewEulerGrid(sc.ID, sc.Name, sc.DiffusionCoefficient, sc.DecayConstant,
			sc.Resolution, bound, sc.Gradient)
	case config.MethodRungeKutta:
		if sc.DecayConstant != 0 {
			slog.Warn("runge-kutta does not support a decay constant, using 0",
				"substance", sc.Name, "decay_constant", sc.DecayConstant)
		}
		dg = diffusion.NewRungeKuttaGrid(sc.ID, sc.Name, sc.DiffusionCoefficient,
			sc.Resolution, bound, sc.Gradient)
	default:
		slog.Warn("unknown diffusion method, defaulting to euler", "method", method)
		dg = diffusion.NewEulerGrid(sc.ID, sc.Name, sc.DiffusionCoefficient, sc.DecayConstant,
			sc.Resolution, bound, sc.Gradient)
	}

	switch sc.Initializer {
	case "gaussian":
		dg.AddInitializer(diffusion.GaussianBand(sc.InitMean, sc.InitSigma, diffusion.XAxis))
	case "uniform":
		dg.AddInitializer(diffusion.Uniform(sc.InitValue))
	case "noise":
		dg.AddInitializer(diffusion.NoisePatches(s.Cfg.Simulation.Seed, sc.InitValue, 0.1))
	case "":
		// substance starts empty
	default:
		slog.Warn("unknown substance initializer, starting empty",
			"substance", sc.Name, "initializer", sc.Initializer)
	}

	s.RM.AddDiffusionGrid(dg)
	return dg
}

// CreateCellGrid seeds a cubic lattice of cells from the population
// configuration: cellsPerDim along each axis with the given spacing, all with
// the same diameter and adherence. Cells are added directly to the store;
// call it before the first Simulate.
func CreateCellGrid(s *Simulation, pop config.PopulationConfig) {
	for i := 0; i < pop.CellsPerDim; i++ {
		for j := 0; j < pop.CellsPerDim; j++ {
			for k := 0; k < pop.CellsPerDim; k++ {
				c := agent.NewCell(r3.Vec{
					X: float64(k) * pop.Spacing,
					Y: float64(j) * pop.Spacing,
					Z: float64(i) * pop.Spacing,
				})
				c.SetDiameter(pop.Diameter)
				c.SetAdherence(pop.Adherence)
				s.RM.AddAgent(c)
			}
		}
	}
}

// CreateAgentsRandom seeds count agents at positions drawn uniformly from
// [lo, hi] on each axis.
func CreateAgentsRandom(s *Simulation, lo, hi float64, count int, construct func(pos r3.Vec) agent.Agent) {
	for i := 0; i < count; i++ {
		s.RM.AddAgent(construct(s.Random.Uniform3(lo, hi)))
	}
}
