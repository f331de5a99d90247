package sim

import (
	"github.com/petri-sim/petri/agent"
	"github.com/petri-sim/petri/diffusion"
)

// ResourceManager owns the live agents and the registered substance grids.
// It is only mutated between parallel phases (commit time), never during
// them.
type ResourceManager struct {
	gen    *agent.UIDGenerator
	agents []agent.Agent
	index  map[agent.UID]int

	grids     []diffusion.Grid
	gridsByID map[int]diffusion.Grid
}

// NewResourceManager creates an empty store sharing the given id generator.
func NewResourceManager(gen *agent.UIDGenerator) *ResourceManager {
	return &ResourceManager{
		gen:       gen,
		index:     make(map[agent.UID]int),
		gridsByID: make(map[int]diffusion.Grid),
	}
}

// AddAgent makes the agent live, assigning it a fresh uid.
func (rm *ResourceManager) AddAgent(ag agent.Agent) agent.Agent {
	ag.SetUID(rm.gen.NewUID())
	rm.attach(ag)
	return ag
}

// attach indexes an agent that already carries its uid (commit path).
func (rm *ResourceManager) attach(ag agent.Agent) {
	rm.index[ag.UID()] = len(rm.agents)
	rm.agents = append(rm.agents, ag)
}

// GetAgent returns the live agent with the given uid, or nil.
func (rm *ResourceManager) GetAgent(uid agent.UID) agent.Agent {
	i, ok := rm.index[uid]
	if !ok {
		return nil
	}
	return rm.agents[i]
}

// Remove destroys the live agent with the given uid. Unknown uids are
// ignored so a staged agent that never got committed can be removed safely.
func (rm *ResourceManager) Remove(uid agent.UID) {
	i, ok := rm.index[uid]
	if !ok {
		return
	}
	last := len(rm.agents) - 1
	rm.agents[i] = rm.agents[last]
	rm.index[rm.agents[i].UID()] = i
	rm.agents = rm.agents[:last]
	delete(rm.index, uid)
}

// NumAgents returns the live agent count.
func (rm *ResourceManager) NumAgents() int { return len(rm.agents) }

// Agents returns the live agent slice. Callers must not mutate it; commit
// invalidates it.
func (rm *ResourceManager) Agents() []agent.Agent { return rm.agents }

// ForEachAgent visits every live agent.
func (rm *ResourceManager) ForEachAgent(fn func(ag agent.Agent)) {
	for _, ag := range rm.agents {
		fn(ag)
	}
}

// AddDiffusionGrid registers a substance grid.
func (rm *ResourceManager) AddDiffusionGrid(g diffusion.Grid) {
	rm.grids = append(rm.grids, g)
	rm.gridsByID[g.SubstanceID()] = g
}

// GetDiffusionGrid returns the grid for a substance id, or nil.
func (rm *ResourceManager) GetDiffusionGrid(substanceID int) diffusion.Grid {
	return rm.gridsByID[substanceID]
}

// DiffusionGrids returns all registered grids in registration order.
func (rm *ResourceManager) DiffusionGrids() []diffusion.Grid { return rm.grids }
