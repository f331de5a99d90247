// Package agent defines the simulated entities: shape-polymorphic objects
// with a position, a size and a physical state.
package agent

import (
	"sync/atomic"

	"gonum.org/v1/gonum/spatial/r3"
)

// UID identifies an agent for its whole lifetime. UIDs are never reused.
type UID uint64

// Shape tags the geometry an agent exposes to the interaction force.
type Shape int8

const (
	ShapeSphere Shape = iota
	ShapeCylinder
)

func (s Shape) String() string {
	switch s {
	case ShapeSphere:
		return "sphere"
	case ShapeCylinder:
		return "cylinder"
	default:
		return "unknown"
	}
}

// Agent is one simulated object. Implementations must keep Position and
// Diameter cheap; the spatial environment calls them for every agent on
// every rebuild.
type Agent interface {
	UID() UID
	SetUID(UID)
	Shape() Shape

	Position() r3.Vec
	SetPosition(r3.Vec)
	Diameter() float64
	SetDiameter(float64)
	Volume() float64
	Mass() float64

	// BoxIdx caches the linear box index assigned by the last grid rebuild.
	BoxIdx() uint64
	SetBoxIdx(uint64)

	// CalculateDisplacement sums tractor and neighbor interaction forces into
	// a movement vector for one timestep. It must not mutate the agent.
	CalculateDisplacement(finder NeighborFinder, force ForceCalculator, squaredRadius, dt, maxDisplacement float64) r3.Vec
	// ApplyDisplacement moves the agent by the given delta.
	ApplyDisplacement(r3.Vec)
}

// NeighborFinder enumerates committed agents within a squared radius of the
// query agent, excluding the query agent itself.
type NeighborFinder interface {
	ForEachNeighborWithinRadius(fn func(nb Agent, squaredDistance float64), query Agent, squaredRadius float64)
}

// ForceCalculator computes the pairwise interaction force acting on lhs from
// rhs, plus the proportion of it attributed to a cylinder's proximal end.
type ForceCalculator interface {
	Calculate(lhs, rhs Agent) (r3.Vec, float64)
}

// Random supplies the stochastic inputs agents need (division axes, the
// degenerate-geometry kick). Implementations must be safe for concurrent use.
type Random interface {
	Uniform(lo, hi float64) float64
	Uniform3(lo, hi float64) r3.Vec
}

// UIDGenerator hands out process-unique agent ids.
type UIDGenerator struct {
	next atomic.Uint64
}

// NewUID returns the next unused id, starting at 0.
func (g *UIDGenerator) NewUID() UID {
	return UID(g.next.Add(1) - 1)
}

// HighestIndex returns the number of ids handed out so far.
func (g *UIDGenerator) HighestIndex() uint64 {
	return g.next.Load()
}
