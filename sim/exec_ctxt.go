package sim

import (
	"github.com/petri-sim/petri/agent"
	"github.com/petri-sim/petri/env"
)

// Operation is one unit of per-agent work executed inside an iteration.
type Operation struct {
	Name string
	Fn   func(ctxt *ExecutionContext, ag agent.Agent)
}

// ExecutionContext is the per-worker coordinator for one iteration: it runs
// operation sequences against agents, stages created agents so they stay
// invisible to neighbor queries until commit, and stages removals that are
// resolved against the post-merge store.
//
// One context belongs to one worker; its staging buffers are only touched by
// that worker during the parallel phase and by the single committer
// afterwards.
type ExecutionContext struct {
	rm  *ResourceManager
	env *env.UniformGridEnvironment
	gen *agent.UIDGenerator

	guardsWanted bool

	newAgents []agent.Agent
	removals  []agent.UID
}

// NewExecutionContext creates a context bound to the given store and grid.
func NewExecutionContext(rm *ResourceManager, grid *env.UniformGridEnvironment, gen *agent.UIDGenerator, neighborGuards bool) *ExecutionContext {
	return &ExecutionContext{rm: rm, env: grid, gen: gen, guardsWanted: neighborGuards}
}

// SetupIteration prepares the context for a new iteration: it turns on box
// guards when requested and flushes any uncommitted state a prior partial
// iteration left behind.
func (c *ExecutionContext) SetupIteration() {
	if c.guardsWanted && !c.env.NeighborGuardsEnabled() {
		c.env.EnableNeighborGuards()
	}
	c.TearDownIteration()
}

// Execute runs the operations against the agent in order. When box guards
// are enabled the agent's box mutex is held across the whole sequence, so
// operations on agents sharing a box are serialized.
func (c *ExecutionContext) Execute(ag agent.Agent, ops ...Operation) {
	if m := c.env.GuardFor(ag.BoxIdx()); m != nil {
		m.Lock()
		defer m.Unlock()
	}
	for _, op := range ops {
		op.Fn(c, ag)
	}
}

// AddAgent stages a newly created agent and assigns its uid. The returned
// handle is usable immediately, but the agent stays out of the main store and
// out of neighbor queries until commit.
func (c *ExecutionContext) AddAgent(ag agent.Agent) agent.Agent {
	ag.SetUID(c.gen.NewUID())
	c.newAgents = append(c.newAgents, ag)
	return ag
}

// RemoveFromSimulation stages the uid for removal at commit time, regardless
// of whether it names a live agent or one staged in this iteration.
func (c *ExecutionContext) RemoveFromSimulation(uid agent.UID) {
	c.removals = append(c.removals, uid)
}

// GetAgent resolves a uid against the staged agents first, then the store.
func (c *ExecutionContext) GetAgent(uid agent.UID) agent.Agent {
	for _, ag := range c.newAgents {
		if ag.UID() == uid {
			return ag
		}
	}
	return c.rm.GetAgent(uid)
}

// ForEachNeighborWithinRadius forwards to the environment; it only sees the
// committed, pre-iteration grid.
func (c *ExecutionContext) ForEachNeighborWithinRadius(fn func(nb agent.Agent, squaredDistance float64), query agent.Agent, squaredRadius float64) {
	c.env.ForEachNeighborWithinRadius(fn, query, squaredRadius)
}

// TearDownIteration commits this context's staged state: new agents are
// merged into the store first, then removals are applied, so removing an
// agent that was created this iteration works. Not thread-safe; the
// scheduler calls it from the single committer.
func (c *ExecutionContext) TearDownIteration() {
	c.commitNewAgents()
	c.commitRemovals()
}

// commitNewAgents merges staged agents into the store, keeping the uids they
// were handed at creation.
func (c *ExecutionContext) commitNewAgents() int {
	n := len(c.newAgents)
	for _, ag := range c.newAgents {
		c.rm.attach(ag)
	}
	c.newAgents = c.newAgents[:0]
	return n
}

// commitRemovals applies staged removals against the post-merge store.
func (c *ExecutionContext) commitRemovals() int {
	n := len(c.removals)
	for _, uid := range c.removals {
		c.rm.Remove(uid)
	}
	c.removals = c.removals[:0]
	return n
}
