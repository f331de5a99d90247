// Package sim wires the engine together: the agent store, the spatial
// environment, the interaction force, per-worker execution contexts and the
// phase scheduler. There is no process-wide active simulation; everything
// receives its dependencies explicitly.
package sim

import (
	"github.com/petri-sim/petri/agent"
	"github.com/petri-sim/petri/config"
	"github.com/petri-sim/petri/env"
	"github.com/petri-sim/petri/force"
)

// Simulation holds one independent simulation instance.
type Simulation struct {
	Name string
	Cfg  *config.Config

	Random *Random
	Gen    *agent.UIDGenerator
	RM     *ResourceManager
	Env    *env.UniformGridEnvironment
	Force  *force.InteractionForce

	Scheduler *Scheduler

	ctxts []*ExecutionContext
}

// NewSimulation builds a simulation from the given configuration, including
// one execution context per worker and the default physics operations.
func NewSimulation(name string, cfg *config.Config) *Simulation {
	s := &Simulation{
		Name:   name,
		Cfg:    cfg,
		Random: NewRandom(cfg.Simulation.Seed),
		Gen:    &agent.UIDGenerator{},
	}
	s.RM = NewResourceManager(s.Gen)
	s.Env = env.NewUniformGridEnvironment(cfg)
	s.Force = force.New(s.Random)

	workers := cfg.Derived.Workers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		s.ctxts = append(s.ctxts, NewExecutionContext(s.RM, s.Env, s.Gen, cfg.Simulation.NeighborGuards))
	}

	s.Scheduler = newScheduler(s, workers)
	s.Scheduler.AddOperation(NewMechanicalForcesOp(s))
	if cfg.Simulation.BoundSpace == config.BoundClosed {
		s.Scheduler.AddOperation(NewBoundSpaceOp(cfg))
	}
	return s
}

// Context returns the execution context of the given worker. Context 0 is the
// one used for single-threaded phases.
func (s *Simulation) Context(worker int) *ExecutionContext {
	return s.ctxts[worker]
}

// NumWorkers returns the worker pool size.
func (s *Simulation) NumWorkers() int { return len(s.ctxts) }

// Close stops the scheduler's worker pool.
func (s *Simulation) Close() {
	s.Scheduler.StopWorkers()
}
