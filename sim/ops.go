package sim

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/petri-sim/petri/agent"
	"github.com/petri-sim/petri/config"
)

// NewMechanicalForcesOp builds the operation that turns pairwise interaction
// forces into per-step displacements. The neighbor search radius is the
// current box edge length, which bounds any possible overlap.
func NewMechanicalForcesOp(s *Simulation) Operation {
	return Operation{
		Name: "mechanical forces",
		Fn: func(ctxt *ExecutionContext, ag agent.Agent) {
			bl := s.Env.BoxLength()
			d := ag.CalculateDisplacement(ctxt, s.Force, bl*bl,
				s.Cfg.Simulation.TimeStep, s.Cfg.Simulation.MaxDisplacement)
			ag.ApplyDisplacement(d)
		},
	}
}

// NewBoundSpaceOp builds the operation that keeps agents inside the closed
// simulation bounds.
func NewBoundSpaceOp(cfg *config.Config) Operation {
	lo := cfg.Simulation.MinBound
	hi := cfg.Simulation.MaxBound
	return Operation{
		Name: "bound space",
		Fn: func(_ *ExecutionContext, ag agent.Agent) {
			p := ag.Position()
			clamped := r3.Vec{
				X: clampFloat(p.X, lo, hi),
				Y: clampFloat(p.Y, lo, hi),
				Z: clampFloat(p.Z, lo, hi),
			}
			if clamped != p {
				ag.SetPosition(clamped)
			}
		},
	}
}

// NewGrowthDivisionOp builds the operation that grows cells at a fixed volume
// speed and divides them once they pass the division volume. Daughters are
// staged through the execution context and become live at commit.
func NewGrowthDivisionOp(s *Simulation, growthSpeed, divideVolume float64) Operation {
	return Operation{
		Name: "growth and division",
		Fn: func(ctxt *ExecutionContext, ag agent.Agent) {
			cell, ok := ag.(*agent.Cell)
			if !ok {
				return
			}
			cell.ChangeVolume(growthSpeed, s.Cfg.Simulation.TimeStep)
			if divideVolume > 0 && cell.Volume() > divideVolume {
				ctxt.AddAgent(cell.Divide(s.Random))
			}
		},
	}
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
