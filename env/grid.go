// Package env provides the uniform grid environment: a wholesale-rebuilt
// spatial partition that answers radius-bounded neighbor queries for all
// live agents.
package env

import (
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/petri-sim/petri/agent"
	"github.com/petri-sim/petri/config"
)

// UniformGridEnvironment partitions space into cubic boxes whose edge length
// is at least the largest agent diameter, so the 3x3x3 block around any box
// covers every possible overlap. The grid is rebuilt from scratch on every
// Update; it is never patched in place.
type UniformGridEnvironment struct {
	cfg *config.Config

	boxLength int32
	numBoxes  [3]int32
	// grid dimensions per axis, halo boxes included: lo0,hi0,lo1,hi1,lo2,hi2
	dims       [6]int32
	thresholds [2]float64
	largest    float64

	boxes      [][]agent.Agent
	totalBoxes uint64

	guardsEnabled bool
	guards        []sync.Mutex
}

// NewUniformGridEnvironment creates an empty environment. Call Update before
// issuing queries.
func NewUniformGridEnvironment(cfg *config.Config) *UniformGridEnvironment {
	g := &UniformGridEnvironment{cfg: cfg, boxLength: 1}
	g.numBoxes = [3]int32{1, 1, 1}
	g.dims = [6]int32{0, 1, 0, 1, 0, 1}
	g.resizeBoxes(1)
	return g
}

// Update recomputes the bounding volume over the given agents, picks a box
// edge length no smaller than the largest diameter, and rebuilds the
// box-to-agent mapping. Every agent gets its box index cached.
func (g *UniformGridEnvironment) Update(agents []agent.Agent) {
	if len(agents) == 0 {
		// degenerate single-box grid
		g.boxLength = 1
		g.numBoxes = [3]int32{1, 1, 1}
		g.dims = [6]int32{0, 1, 0, 1, 0, 1}
		g.largest = 0
		g.resizeBoxes(1)
		g.updateThresholds()
		g.rebuildGuards()
		return
	}

	lo := r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	hi := r3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	largest := 0.0
	for _, ag := range agents {
		p := ag.Position()
		lo.X = math.Min(lo.X, p.X)
		lo.Y = math.Min(lo.Y, p.Y)
		lo.Z = math.Min(lo.Z, p.Z)
		hi.X = math.Max(hi.X, p.X)
		hi.Y = math.Max(hi.Y, p.Y)
		hi.Z = math.Max(hi.Z, p.Z)
		if d := ag.Diameter(); d > largest {
			largest = d
		}
	}
	g.largest = largest

	boxLength := int32(math.Ceil(largest))
	if boxLength < 1 {
		boxLength = 1
	}
	g.boxLength = boxLength

	los := [3]float64{lo.X, lo.Y, lo.Z}
	his := [3]float64{hi.X, hi.Y, hi.Z}
	for i := 0; i < 3; i++ {
		alo := int32(math.Floor(los[i]))
		ahi := int32(math.Ceil(his[i]))
		// grow the upper bound to a multiple of the box length, always
		// leaving room for at least one whole box
		length := ahi - alo
		if r := length % boxLength; r == 0 {
			ahi += boxLength
		} else {
			ahi += boxLength - r
		}
		g.numBoxes[i] = (ahi-alo)/boxLength + 2
		// surround the domain with a halo of empty boxes
		g.dims[2*i] = alo - boxLength
		g.dims[2*i+1] = ahi + boxLength
	}

	total := uint64(g.numBoxes[0]) * uint64(g.numBoxes[1]) * uint64(g.numBoxes[2])
	g.resizeBoxes(total)

	for _, ag := range agents {
		idx := g.GetBoxIndex(ag.Position())
		g.boxes[idx] = append(g.boxes[idx], ag)
		ag.SetBoxIdx(idx)
	}

	g.updateThresholds()
	g.rebuildGuards()
}

func (g *UniformGridEnvironment) resizeBoxes(total uint64) {
	g.totalBoxes = total
	if uint64(cap(g.boxes)) < total {
		g.boxes = make([][]agent.Agent, total)
	} else {
		g.boxes = g.boxes[:total]
		for i := range g.boxes {
			g.boxes[i] = g.boxes[i][:0]
		}
	}
}

func (g *UniformGridEnvironment) updateThresholds() {
	if g.cfg != nil && g.cfg.Simulation.BoundSpace == config.BoundClosed {
		g.thresholds = [2]float64{g.cfg.Simulation.MinBound, g.cfg.Simulation.MaxBound}
		return
	}
	lo := math.Min(float64(g.dims[0]), math.Min(float64(g.dims[2]), float64(g.dims[4])))
	hi := math.Max(float64(g.dims[1]), math.Max(float64(g.dims[3]), float64(g.dims[5])))
	g.thresholds = [2]float64{lo, hi}
}

// BoxLength returns the current box edge length.
func (g *UniformGridEnvironment) BoxLength() float64 { return float64(g.boxLength) }

// LargestAgentSize returns the maximum diameter observed at the last Update.
func (g *UniformGridEnvironment) LargestAgentSize() float64 { return g.largest }

// NumBoxesPerAxis returns the box count along each axis.
func (g *UniformGridEnvironment) NumBoxesPerAxis() [3]int32 { return g.numBoxes }

// Dimensions returns the grid extents per axis as lo0,hi0,lo1,hi1,lo2,hi2.
func (g *UniformGridEnvironment) Dimensions() [6]int32 { return g.dims }

// DimensionThresholds returns the clamp interval for bounded simulations, or
// the overall grid extent when the space is open.
func (g *UniformGridEnvironment) DimensionThresholds() (lo, hi float64) {
	return g.thresholds[0], g.thresholds[1]
}

// GetBoxIndex maps a position to the linear index of its containing box.
func (g *UniformGridEnvironment) GetBoxIndex(pos r3.Vec) uint64 {
	x := g.boxCoord(pos.X, 0)
	y := g.boxCoord(pos.Y, 1)
	z := g.boxCoord(pos.Z, 2)
	return g.boxIndex(x, y, z)
}

func (g *UniformGridEnvironment) boxCoord(p float64, axis int) int32 {
	c := int32(math.Floor((p - float64(g.dims[2*axis])) / float64(g.boxLength)))
	if c < 0 {
		c = 0
	} else if c >= g.numBoxes[axis] {
		c = g.numBoxes[axis] - 1
	}
	return c
}

func (g *UniformGridEnvironment) boxIndex(x, y, z int32) uint64 {
	return uint64(z)*uint64(g.numBoxes[0])*uint64(g.numBoxes[1]) +
		uint64(y)*uint64(g.numBoxes[0]) + uint64(x)
}

// GetBoxCoordinates is the inverse of GetBoxIndex for indices inside the grid.
func (g *UniformGridEnvironment) GetBoxCoordinates(idx uint64) (x, y, z int32) {
	nx := uint64(g.numBoxes[0])
	ny := uint64(g.numBoxes[1])
	z = int32(idx / (nx * ny))
	rem := idx % (nx * ny)
	y = int32(rem / nx)
	x = int32(rem % nx)
	return x, y, z
}

// ForEachNeighborWithinRadius visits every agent in the 3x3x3 block of boxes
// centered on the query agent's box whose squared distance to the query is at
// most squaredRadius, excluding the query agent itself.
func (g *UniformGridEnvironment) ForEachNeighborWithinRadius(fn func(nb agent.Agent, squaredDistance float64), query agent.Agent, squaredRadius float64) {
	qpos := query.Position()
	quid := query.UID()
	cx := g.boxCoord(qpos.X, 0)
	cy := g.boxCoord(qpos.Y, 1)
	cz := g.boxCoord(qpos.Z, 2)

	for dz := int32(-1); dz <= 1; dz++ {
		z := cz + dz
		if z < 0 || z >= g.numBoxes[2] {
			continue
		}
		for dy := int32(-1); dy <= 1; dy++ {
			y := cy + dy
			if y < 0 || y >= g.numBoxes[1] {
				continue
			}
			for dx := int32(-1); dx <= 1; dx++ {
				x := cx + dx
				if x < 0 || x >= g.numBoxes[0] {
					continue
				}
				for _, nb := range g.boxes[g.boxIndex(x, y, z)] {
					if nb.UID() == quid {
						continue
					}
					d := r3.Sub(nb.Position(), qpos)
					sq := r3.Norm2(d)
					if sq <= squaredRadius {
						fn(nb, sq)
					}
				}
			}
		}
	}
}

// IterateZOrder visits all boxes following a Morton interleaving of their 3D
// coordinates and invokes fn once per agent. Agent order within one box is
// unspecified.
func (g *UniformGridEnvironment) IterateZOrder(fn func(ag agent.Agent)) {
	type zbox struct {
		code uint64
		idx  uint64
	}
	order := make([]zbox, 0, g.totalBoxes)
	for idx := uint64(0); idx < g.totalBoxes; idx++ {
		if len(g.boxes[idx]) == 0 {
			continue
		}
		x, y, z := g.GetBoxCoordinates(idx)
		order = append(order, zbox{code: mortonEncode(uint32(x), uint32(y), uint32(z)), idx: idx})
	}
	sort.Slice(order, func(i, j int) bool { return order[i].code < order[j].code })
	for _, b := range order {
		for _, ag := range g.boxes[b.idx] {
			fn(ag)
		}
	}
}

// mortonEncode interleaves the low 21 bits of the three coordinates.
func mortonEncode(x, y, z uint32) uint64 {
	return spreadBits(x) | spreadBits(y)<<1 | spreadBits(z)<<2
}

func spreadBits(v uint32) uint64 {
	x := uint64(v) & 0x1fffff
	x = (x | x<<32) & 0x1f00000000ffff
	x = (x | x<<16) & 0x1f0000ff0000ff
	x = (x | x<<8) & 0x100f00f00f00f00f
	x = (x | x<<4) & 0x10c30c30c30c30c3
	x = (x | x<<2) & 0x1249249249249249
	return x
}

// EnableNeighborGuards turns on the per-box mutex table. Simulations whose
// operations never mutate neighbors leave it off. The table is sized to the
// current box count and rebuilt whenever the grid is.
func (g *UniformGridEnvironment) EnableNeighborGuards() {
	g.guardsEnabled = true
	g.rebuildGuards()
}

// NeighborGuardsEnabled reports whether box-level locking is active.
func (g *UniformGridEnvironment) NeighborGuardsEnabled() bool { return g.guardsEnabled }

// GuardFor returns the mutex protecting the given box, or nil when guards are
// disabled.
func (g *UniformGridEnvironment) GuardFor(boxIdx uint64) *sync.Mutex {
	if !g.guardsEnabled || boxIdx >= uint64(len(g.guards)) {
		return nil
	}
	return &g.guards[boxIdx]
}

// A lock table left over from a previous grid geometry must never be used
// with the new one, so the table is reallocated whenever the box count
// changes.
func (g *UniformGridEnvironment) rebuildGuards() {
	if !g.guardsEnabled {
		return
	}
	if uint64(len(g.guards)) != g.totalBoxes {
		g.guards = make([]sync.Mutex, g.totalBoxes)
	}
}
