package sim

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/petri-sim/petri/agent"
	"github.com/petri-sim/petri/config"
	"github.com/petri-sim/petri/env"
)

func newTestContext() (*ResourceManager, *env.UniformGridEnvironment, *ExecutionContext) {
	gen := &agent.UIDGenerator{}
	rm := NewResourceManager(gen)
	grid := env.NewUniformGridEnvironment(nil)
	ctxt := NewExecutionContext(rm, grid, gen, false)
	return rm, grid, ctxt
}

func TestStagedAgentInvisibleUntilCommit(t *testing.T) {
	rm, grid, ctxt := newTestContext()

	live := agent.NewCell(r3.Vec{})
	live.SetDiameter(10)
	rm.AddAgent(live)
	grid.Update(rm.Agents())

	staged := agent.NewCell(r3.Vec{X: 1})
	staged.SetDiameter(10)
	handle := ctxt.AddAgent(staged)

	if handle.UID() == live.UID() {
		t.Fatal("staged agent reused a live uid")
	}
	if rm.GetAgent(handle.UID()) != nil {
		t.Error("staged agent is visible in the store before commit")
	}
	if ctxt.GetAgent(handle.UID()) != handle {
		t.Error("staged agent not resolvable through its own context")
	}

	// the staged agent must not appear in neighbor queries
	count := 0
	ctxt.ForEachNeighborWithinRadius(func(nb agent.Agent, _ float64) {
		count++
	}, live, 900)
	if count != 0 {
		t.Errorf("neighbor query saw %d agents, staged agent leaked", count)
	}

	ctxt.TearDownIteration()
	grid.Update(rm.Agents())

	if rm.GetAgent(handle.UID()) == nil {
		t.Fatal("staged agent missing from the store after commit")
	}
	count = 0
	ctxt.ForEachNeighborWithinRadius(func(nb agent.Agent, _ float64) {
		count++
	}, live, 900)
	if count != 1 {
		t.Errorf("neighbor query saw %d agents after commit, want 1", count)
	}
}

func TestRemoveStagedAgent(t *testing.T) {
	rm, _, ctxt := newTestContext()

	staged := ctxt.AddAgent(agent.NewCell(r3.Vec{}))
	ctxt.RemoveFromSimulation(staged.UID())
	ctxt.TearDownIteration()

	// merge happens before removals, so the staged agent is created and then
	// destroyed within the same commit
	if rm.NumAgents() != 0 {
		t.Errorf("NumAgents() = %d, want 0", rm.NumAgents())
	}
	if rm.GetAgent(staged.UID()) != nil {
		t.Error("removed agent still resolvable")
	}
}

func TestRemoveLiveAgent(t *testing.T) {
	rm, _, ctxt := newTestContext()

	a := rm.AddAgent(agent.NewCell(r3.Vec{}))
	b := rm.AddAgent(agent.NewCell(r3.Vec{X: 1}))

	ctxt.RemoveFromSimulation(a.UID())
	ctxt.TearDownIteration()

	if rm.NumAgents() != 1 {
		t.Fatalf("NumAgents() = %d, want 1", rm.NumAgents())
	}
	if rm.GetAgent(a.UID()) != nil {
		t.Error("removed agent still resolvable")
	}
	if rm.GetAgent(b.UID()) != b {
		t.Error("surviving agent lost by the swap-delete")
	}
}

func TestRemoveUnknownUIDIsIgnored(t *testing.T) {
	rm, _, ctxt := newTestContext()
	rm.AddAgent(agent.NewCell(r3.Vec{}))

	ctxt.RemoveFromSimulation(agent.UID(999))
	ctxt.TearDownIteration()

	if rm.NumAgents() != 1 {
		t.Errorf("NumAgents() = %d, want 1", rm.NumAgents())
	}
}

func TestDoubleRemoveSameIteration(t *testing.T) {
	rm, _, ctxt := newTestContext()
	a := rm.AddAgent(agent.NewCell(r3.Vec{}))

	ctxt.RemoveFromSimulation(a.UID())
	ctxt.RemoveFromSimulation(a.UID())
	ctxt.TearDownIteration()

	if rm.NumAgents() != 0 {
		t.Errorf("NumAgents() = %d, want 0", rm.NumAgents())
	}
}

func TestSetupIterationFlushesLeftovers(t *testing.T) {
	rm, _, ctxt := newTestContext()

	ctxt.AddAgent(agent.NewCell(r3.Vec{}))
	ctxt.SetupIteration()

	if rm.NumAgents() != 1 {
		t.Errorf("NumAgents() = %d, want leftover agent committed by setup", rm.NumAgents())
	}
}

func TestSetupIterationEnablesGuards(t *testing.T) {
	gen := &agent.UIDGenerator{}
	rm := NewResourceManager(gen)
	grid := env.NewUniformGridEnvironment(nil)
	ctxt := NewExecutionContext(rm, grid, gen, true)

	if grid.NeighborGuardsEnabled() {
		t.Fatal("guards enabled before any iteration")
	}
	ctxt.SetupIteration()
	if !grid.NeighborGuardsEnabled() {
		t.Error("guards not enabled by SetupIteration")
	}
}

func TestExecuteRunsOperationsInOrder(t *testing.T) {
	rm, grid, ctxt := newTestContext()
	a := rm.AddAgent(agent.NewCell(r3.Vec{}))
	grid.Update(rm.Agents())

	var order []string
	ctxt.Execute(a,
		Operation{Name: "first", Fn: func(_ *ExecutionContext, _ agent.Agent) { order = append(order, "first") }},
		Operation{Name: "second", Fn: func(_ *ExecutionContext, _ agent.Agent) { order = append(order, "second") }},
	)

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("operation order = %v", order)
	}
}

func TestCommitAcrossContexts(t *testing.T) {
	// one context stages a creation, another stages the removal of an
	// existing agent; a single committer merges creations first
	gen := &agent.UIDGenerator{}
	rm := NewResourceManager(gen)
	grid := env.NewUniformGridEnvironment(nil)
	ctxtA := NewExecutionContext(rm, grid, gen, false)
	ctxtB := NewExecutionContext(rm, grid, gen, false)

	live := rm.AddAgent(agent.NewCell(r3.Vec{}))
	created := ctxtA.AddAgent(agent.NewCell(r3.Vec{X: 1}))
	// context B removes the agent context A just created
	ctxtB.RemoveFromSimulation(created.UID())
	ctxtB.RemoveFromSimulation(live.UID())

	createdCount := ctxtA.commitNewAgents() + ctxtB.commitNewAgents()
	removedCount := ctxtA.commitRemovals() + ctxtB.commitRemovals()

	if createdCount != 1 || removedCount != 2 {
		t.Errorf("created %d removed %d, want 1 and 2", createdCount, removedCount)
	}
	if rm.NumAgents() != 0 {
		t.Errorf("NumAgents() = %d, want 0", rm.NumAgents())
	}
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Simulation = config.SimulationConfig{
		TimeStep:        0.1,
		MaxDisplacement: 3,
		BoundSpace:      config.BoundOpen,
		DiffusionMethod: config.MethodEuler,
		Workers:         1,
		Seed:            4357,
	}
	cfg.Derived.Workers = 1
	return cfg
}

func TestSimulationSeparatesOverlappingCells(t *testing.T) {
	s := NewSimulation("separation", testConfig())
	defer s.Close()

	a := agent.NewCell(r3.Vec{})
	a.SetDiameter(10)
	b := agent.NewCell(r3.Vec{X: 5})
	b.SetDiameter(10)
	s.RM.AddAgent(a)
	s.RM.AddAgent(b)

	s.Scheduler.Simulate(20)

	dist := r3.Norm(r3.Sub(a.Position(), b.Position()))
	if dist <= 5 {
		t.Errorf("center distance = %v after relaxation, want > 5", dist)
	}
}

func TestSimulationGrowthAndDivision(t *testing.T) {
	cfg := testConfig()
	s := NewSimulation("division", cfg)
	defer s.Close()

	c := agent.NewCell(r3.Vec{X: 10, Y: 10, Z: 10})
	c.SetDiameter(9)
	s.RM.AddAgent(c)

	divideVolume := agent.NewCellWithDiameter(10).Volume()
	s.Scheduler.AddOperation(NewGrowthDivisionOp(s, 500, divideVolume))

	s.Scheduler.Simulate(10)

	if s.RM.NumAgents() < 2 {
		t.Fatalf("NumAgents() = %d, want the cell to have divided", s.RM.NumAgents())
	}
	total := 0.0
	s.RM.ForEachAgent(func(ag agent.Agent) {
		total += ag.Volume()
	})
	if total <= 0 {
		t.Error("total volume must stay positive")
	}
	if s.Scheduler.Step() != 10 {
		t.Errorf("Step() = %d, want 10", s.Scheduler.Step())
	}
}

func TestBoundSpaceOpClampsAgents(t *testing.T) {
	cfg := testConfig()
	cfg.Simulation.BoundSpace = config.BoundClosed
	cfg.Simulation.MinBound = 0
	cfg.Simulation.MaxBound = 100

	s := NewSimulation("bounds", cfg)
	defer s.Close()

	c := agent.NewCell(r3.Vec{X: 120, Y: -5, Z: 50})
	c.SetDiameter(10)
	s.RM.AddAgent(c)

	s.Scheduler.Simulate(1)

	p := c.Position()
	if p.X > 100 || p.Y < 0 || p.Z < 0 || p.Z > 100 {
		t.Errorf("position = %v, want it clamped into [0, 100]", p)
	}
}

func TestSchedulerParallelWorkers(t *testing.T) {
	cfg := testConfig()
	cfg.Simulation.Workers = 4
	cfg.Simulation.NeighborGuards = true
	cfg.Derived.Workers = 4

	s := NewSimulation("parallel", cfg)
	defer s.Close()

	// enough agents to cross the parallel threshold
	for z := 0; z < 5; z++ {
		for y := 0; y < 5; y++ {
			for x := 0; x < 5; x++ {
				c := agent.NewCell(r3.Vec{X: float64(x) * 8, Y: float64(y) * 8, Z: float64(z) * 8})
				c.SetDiameter(10)
				s.RM.AddAgent(c)
			}
		}
	}
	if s.NumWorkers() != 4 {
		t.Fatalf("NumWorkers() = %d, want 4", s.NumWorkers())
	}

	s.Scheduler.Simulate(5)

	if s.RM.NumAgents() != 125 {
		t.Errorf("NumAgents() = %d, want 125", s.RM.NumAgents())
	}
	if s.Scheduler.Step() != 5 {
		t.Errorf("Step() = %d, want 5", s.Scheduler.Step())
	}
	// stopping and resuming the pool must be safe
	s.Scheduler.StopWorkers()
	s.Scheduler.Simulate(1)
	if s.Scheduler.Step() != 6 {
		t.Errorf("Step() = %d after restart, want 6", s.Scheduler.Step())
	}
}
