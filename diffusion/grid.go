// Package diffusion provides finite-difference solvers for scalar substance
// fields sharing the simulation domain.
package diffusion

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/petri-sim/petri/config"
)

// InitializerFunc seeds the initial concentration at a lattice point given
// its spatial coordinates.
type InitializerFunc func(x, y, z float64) float64

// Grid is one diffusing substance advanced by an explicit finite-difference
// stencil. Implementations are EulerGrid (single-stage, supports decay) and
// RungeKuttaGrid (four-stage, higher-order, no decay).
type Grid interface {
	SubstanceID() int
	Name() string

	// Initialize allocates the concentration buffers for the cubic domain
	// [lo, hi] and zero-fills them.
	Initialize(lo, hi float64)
	AddInitializer(f InitializerFunc)
	// RunInitializers seeds both ping-pong buffers from the registered
	// initializer functions.
	RunInitializers()

	// Step advances the field by one explicit timestep, splitting the
	// lattice into z-slabs across the given number of workers. The buffer
	// swap happens on the calling goroutine after all slabs finish.
	Step(dt float64, workers int)

	GetConcentration(pos r3.Vec) float64
	GetGradient(pos r3.Vec) r3.Vec
	GetAllConcentrations() []float64
	GetAllGradients() []float64
	GetBoxIndex(coord [3]uint32) uint64
	GetNumBoxesArray() [3]int
	GetBoxLength() float64
	IsInitialized() bool
}

// baseGrid carries the state shared by both stencils: the two alternating
// concentration buffers, the optional gradient buffer and the lattice
// geometry. Writes always go to c2 while reads come from c1; a step ends by
// swapping the two.
type baseGrid struct {
	substanceID int
	name        string
	dc          float64 // diffusion coefficient
	resolution  int
	boundMode   string

	lo, hi    float64
	boxLength float64

	c1, c2       []float64
	gradients    []float64
	initGradient bool

	initializers []InitializerFunc
	initialized  bool
}

func newBaseGrid(substanceID int, name string, dc float64, resolution int, boundMode string, gradient bool) baseGrid {
	return baseGrid{
		substanceID:  substanceID,
		name:         name,
		dc:           dc,
		resolution:   resolution,
		boundMode:    boundMode,
		initGradient: gradient,
	}
}

func (d *baseGrid) SubstanceID() int     { return d.substanceID }
func (d *baseGrid) Name() string         { return d.name }
func (d *baseGrid) IsInitialized() bool  { return d.initialized }
func (d *baseGrid) GetBoxLength() float64 { return d.boxLength }

func (d *baseGrid) GetNumBoxesArray() [3]int {
	return [3]int{d.resolution, d.resolution, d.resolution}
}

// Initialize sizes the buffers from the resolution and the domain extent.
func (d *baseGrid) Initialize(lo, hi float64) {
	d.lo = lo
	d.hi = hi
	d.boxLength = (hi - lo) / float64(d.resolution)
	total := d.resolution * d.resolution * d.resolution
	d.c1 = make([]float64, total)
	d.c2 = make([]float64, total)
	if d.initGradient {
		d.gradients = make([]float64, 3*total)
	}
	d.initialized = true
}

func (d *baseGrid) AddInitializer(f InitializerFunc) {
	d.initializers = append(d.initializers, f)
}

// RunInitializers evaluates the registered functions at every lattice point
// and writes the sum into the current buffer. The next buffer is primed with
// the same values so the first swap cannot expose an unseeded field.
func (d *baseGrid) RunInitializers() {
	if len(d.initializers) == 0 {
		return
	}
	res := d.resolution
	for z := 0; z < res; z++ {
		for y := 0; y < res; y++ {
			for x := 0; x < res; x++ {
				px := d.lo + float64(x)*d.boxLength
				py := d.lo + float64(y)*d.boxLength
				pz := d.lo + float64(z)*d.boxLength
				v := 0.0
				for _, f := range d.initializers {
					v += f(px, py, pz)
				}
				d.c1[d.index(x, y, z)] = v
			}
		}
	}
	copy(d.c2, d.c1)
	if d.initGradient {
		d.computeGradient()
	}
}

func (d *baseGrid) index(x, y, z int) int {
	return (z*d.resolution+y)*d.resolution + x
}

// GetBoxIndex maps an integer lattice coordinate to a linear index.
func (d *baseGrid) GetBoxIndex(coord [3]uint32) uint64 {
	res := uint64(d.resolution)
	return (uint64(coord[2])*res+uint64(coord[1]))*res + uint64(coord[0])
}

func (d *baseGrid) latticeCoord(pos r3.Vec) (int, int, int) {
	return d.clampCoord(pos.X), d.clampCoord(pos.Y), d.clampCoord(pos.Z)
}

func (d *baseGrid) clampCoord(p float64) int {
	c := int(math.Floor((p - d.lo) / d.boxLength))
	if c < 0 {
		c = 0
	} else if c >= d.resolution {
		c = d.resolution - 1
	}
	return c
}

// GetConcentration returns the current value at the lattice point containing
// the position.
func (d *baseGrid) GetConcentration(pos r3.Vec) float64 {
	x, y, z := d.latticeCoord(pos)
	return d.c1[d.index(x, y, z)]
}

// GetGradient returns the stored gradient at the lattice point containing the
// position, or a zero vector when the gradient buffer is disabled.
func (d *baseGrid) GetGradient(pos r3.Vec) r3.Vec {
	if d.gradients == nil {
		return r3.Vec{}
	}
	x, y, z := d.latticeCoord(pos)
	i := 3 * d.index(x, y, z)
	return r3.Vec{X: d.gradients[i], Y: d.gradients[i+1], Z: d.gradients[i+2]}
}

// GetAllConcentrations exposes the current buffer read-only between steps.
// Callers must not retain it across a Step.
func (d *baseGrid) GetAllConcentrations() []float64 { return d.c1 }

// GetAllGradients exposes the gradient buffer, 3 entries per lattice point.
func (d *baseGrid) GetAllGradients() []float64 { return d.gradients }

// conc reads a neighbor value applying the bound policy: out-of-domain reads
// clamp to the edge value when the space is closed, or see zero concentration
// when it is open.
func (d *baseGrid) conc(buf []float64, x, y, z int) float64 {
	if x < 0 || y < 0 || z < 0 || x >= d.resolution || y >= d.resolution || z >= d.resolution {
		if d.boundMode == config.BoundClosed {
			x = clampInt(x, 0, d.resolution-1)
			y = clampInt(y, 0, d.resolution-1)
			z = clampInt(z, 0, d.resolution-1)
		} else {
			return 0
		}
	}
	return buf[d.index(x, y, z)]
}

// laplacian applies the 7-point stencil (center plus 6 face neighbors) at one
// lattice point of buf.
func (d *baseGrid) laplacian(buf []float64, x, y, z int) float64 {
	center := buf[d.index(x, y, z)]
	sum := d.conc(buf, x-1, y, z) + d.conc(buf, x+1, y, z) +
		d.conc(buf, x, y-1, z) + d.conc(buf, x, y+1, z) +
		d.conc(buf, x, y, z-1) + d.conc(buf, x, y, z+1)
	return (sum - 6*center) / (d.boxLength * d.boxLength)
}

func (d *baseGrid) swap() {
	d.c1, d.c2 = d.c2, d.c1
}

// computeGradient fills the gradient buffer with central differences of the
// current buffer, indices clamped at the domain edges.
func (d *baseGrid) computeGradient() {
	res := d.resolution
	inv := 1 / (2 * d.boxLength)
	for z := 0; z < res; z++ {
		for y := 0; y < res; y++ {
			for x := 0; x < res; x++ {
				i := 3 * d.index(x, y, z)
				d.gradients[i] = (d.clamped(x+1, y, z) - d.clamped(x-1, y, z)) * inv
				d.gradients[i+1] = (d.clamped(x, y+1, z) - d.clamped(x, y-1, z)) * inv
				d.gradients[i+2] = (d.clamped(x, y, z+1) - d.clamped(x, y, z-1)) * inv
			}
		}
	}
}

func (d *baseGrid) clamped(x, y, z int) float64 {
	return d.c1[d.index(clampInt(x, 0, d.resolution-1), clampInt(y, 0, d.resolution-1), clampInt(z, 0, d.resolution-1))]
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// runSlabs dissects the z axis across workers and runs fn on each disjoint
// slab concurrently, returning once all slabs are done.
func (d *baseGrid) runSlabs(workers int, fn func(z0, z1 int)) {
	if workers < 1 {
		workers = 1
	}
	pieces := Dissect(d.resolution, workers)
	var wg sync.WaitGroup
	z := 0
	for _, p := range pieces {
		if p == 0 {
			continue
		}
		wg.Add(1)
		go func(z0, z1 int) {
			defer wg.Done()
			fn(z0, z1)
		}(z, z+p)
		z += p
	}
	wg.Wait()
}
