package sim

import (
	"sync"

	"github.com/petri-sim/petri/agent"
	"github.com/petri-sim/petri/telemetry"
)

// parallelThreshold is the minimum agent count to use parallel execution.
// Below this, single-threaded is faster due to goroutine overhead.
const parallelThreshold = 64

// workChunk is a range of snapshot indices for one worker.
type workChunk struct {
	start, end int
}

// Scheduler drives the per-timestep phase sequence: setup, parallel per-agent
// operations, staged commit, grid rebuild, diffusion, telemetry. Worker
// goroutines are persistent across steps.
type Scheduler struct {
	sim *Simulation
	ops []Operation

	numWorkers int
	snapshot   []agent.Agent

	workChan chan workChunk
	doneChan chan struct{}
	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool

	step        int64
	initialized bool

	perf      *telemetry.PerfCollector
	collector *telemetry.Collector
}

func newScheduler(s *Simulation, numWorkers int) *Scheduler {
	return &Scheduler{
		sim:        s,
		numWorkers: numWorkers,
		snapshot:   make([]agent.Agent, 0, 512),
	}
}

// AddOperation appends a per-agent operation to the sequence every agent runs
// each step.
func (s *Scheduler) AddOperation(op Operation) {
	s.ops = append(s.ops, op)
}

// SetTelemetry attaches phase timing and stats collection.
func (s *Scheduler) SetTelemetry(perf *telemetry.PerfCollector, collector *telemetry.Collector) {
	s.perf = perf
	s.collector = collector
}

// Step returns the number of completed timesteps.
func (s *Scheduler) Step() int64 { return s.step }

// Simulate advances the simulation by the given number of timesteps.
func (s *Scheduler) Simulate(steps int) {
	if !s.initialized {
		s.initialize()
	}
	for i := 0; i < steps; i++ {
		s.runStep()
	}
}

// initialize bootstraps the first grid build and sizes the diffusion lattices
// from the resulting domain, so the first parallel phase already has box
// indices and searchable neighbors.
func (s *Scheduler) initialize() {
	s.sim.Env.Update(s.sim.RM.Agents())
	lo, hi := s.sim.Env.DimensionThresholds()
	for _, dg := range s.sim.RM.DiffusionGrids() {
		if !dg.IsInitialized() {
			dg.Initialize(lo, hi)
			dg.RunInitializers()
		}
	}
	s.initialized = true
}

func (s *Scheduler) runStep() {
	if s.perf != nil {
		s.perf.StartTick()
		s.perf.StartPhase(telemetry.PhaseSetup)
	}
	for _, ctxt := range s.sim.ctxts {
		ctxt.SetupIteration()
	}

	if s.perf != nil {
		s.perf.StartPhase(telemetry.PhaseAgents)
	}
	s.runAgentPhase()

	if s.perf != nil {
		s.perf.StartPhase(telemetry.PhaseCommit)
	}
	// single committer: merge every context's new agents before applying any
	// removals, so removals of freshly staged agents resolve
	created, removed := 0, 0
	for _, ctxt := range s.sim.ctxts {
		created += ctxt.commitNewAgents()
	}
	for _, ctxt := range s.sim.ctxts {
		removed += ctxt.commitRemovals()
	}

	if s.perf != nil {
		s.perf.StartPhase(telemetry.PhaseEnvironment)
	}
	s.sim.Env.Update(s.sim.RM.Agents())

	if s.perf != nil {
		s.perf.StartPhase(telemetry.PhaseDiffusion)
	}
	dt := s.sim.Cfg.Simulation.TimeStep
	lo, hi := s.sim.Env.DimensionThresholds()
	for _, dg := range s.sim.RM.DiffusionGrids() {
		if !dg.IsInitialized() {
			dg.Initialize(lo, hi)
			dg.RunInitializers()
		}
		dg.Step(dt, s.numWorkers)
	}

	s.step++
	if s.perf != nil {
		s.perf.StartPhase(telemetry.PhaseTelemetry)
	}
	if s.collector != nil {
		s.collector.RecordStep(s.step, s.sim.RM.Agents(), created, removed, s.sim.RM.DiffusionGrids())
	}
	if s.perf != nil {
		s.perf.EndTick()
	}
}

// runAgentPhase executes the operation sequence on a snapshot of the
// committed agents, partitioned across the worker pool. Relative order of
// agents within a step is unspecified.
func (s *Scheduler) runAgentPhase() {
	s.snapshot = append(s.snapshot[:0], s.sim.RM.Agents()...)
	n := len(s.snapshot)
	if n == 0 {
		return
	}

	if n < parallelThreshold || s.numWorkers == 1 {
		ctxt := s.sim.ctxts[0]
		for _, ag := range s.snapshot {
			ctxt.Execute(ag, s.ops...)
		}
		return
	}

	if !s.running {
		s.startWorkers()
	}

	chunkSize := (n + s.numWorkers - 1) / s.numWorkers
	dispatched := 0
	for w := 0; w < s.numWorkers; w++ {
		start := w * chunkSize
		end := min(start+chunkSize, n)
		if start >= end {
			continue
		}
		s.workChan <- workChunk{start: start, end: end}
		dispatched++
	}
	for i := 0; i < dispatched; i++ {
		<-s.doneChan
	}
}

// startWorkers launches the persistent worker goroutines.
func (s *Scheduler) startWorkers() {
	s.workChan = make(chan workChunk, s.numWorkers)
	s.doneChan = make(chan struct{}, s.numWorkers)
	s.stopChan = make(chan struct{})
	s.running = true

	for w := 0; w < s.numWorkers; w++ {
		s.wg.Add(1)
		go s.worker(w)
	}
}

// StopWorkers signals all workers to exit and waits for them.
func (s *Scheduler) StopWorkers() {
	if !s.running {
		return
	}
	close(s.stopChan)
	s.wg.Wait()
	close(s.workChan)
	close(s.doneChan)
	s.running = false
}

// worker processes chunks until stopped. Each worker executes against its own
// context so staging buffers are never shared between goroutines.
func (s *Scheduler) worker(workerID int) {
	defer s.wg.Done()
	ctxt := s.sim.ctxts[workerID]

	for {
		select {
		case <-s.stopChan:
			return
		case chunk, ok := <-s.workChan:
			if !ok {
				return
			}
			for i := chunk.start; i < chunk.end; i++ {
				ctxt.Execute(s.snapshot[i], s.ops...)
			}
			s.doneChan <- struct{}{}
		}
	}
}
