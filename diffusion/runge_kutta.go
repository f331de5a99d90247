package diffusion

// RungeKuttaGrid advances the field with a classic four-stage explicit scheme
// for higher-order accuracy. It does not support a decay term; configuring
// one is handled upstream by substituting zero and warning.
type RungeKuttaGrid struct {
	baseGrid

	// stage scratch, sized at Initialize
	k       []float64 // slope of the current stage
	kSum    []float64 // weighted slope accumulator
	stageIn []float64 // input field of the current stage
}

// NewRungeKuttaGrid creates a four-stage explicit grid.
func NewRungeKuttaGrid(substanceID int, name string, dc float64, resolution int, boundMode string, gradient bool) *RungeKuttaGrid {
	return &RungeKuttaGrid{
		baseGrid: newBaseGrid(substanceID, name, dc, resolution, boundMode, gradient),
	}
}

// Initialize allocates the ping-pong buffers plus the three stage buffers.
func (g *RungeKuttaGrid) Initialize(lo, hi float64) {
	g.baseGrid.Initialize(lo, hi)
	total := g.resolution * g.resolution * g.resolution
	g.k = make([]float64, total)
	g.kSum = make([]float64, total)
	g.stageIn = make([]float64, total)
}

// Step performs the four stages, each one a full-lattice slope evaluation on
// a frozen input field, then combines them into the next buffer and swaps.
func (g *RungeKuttaGrid) Step(dt float64, workers int) {
	stages := []struct {
		weight float64 // contribution of this stage's slope to the sum
		step   float64 // fraction of dt used to build the next stage input
	}{
		{1, 0.5},
		{2, 0.5},
		{2, 1},
		{1, 0},
	}

	copy(g.stageIn, g.c1)
	for i := range g.kSum {
		g.kSum[i] = 0
	}

	res := g.resolution
	for _, st := range stages {
		// slope of this stage: all reads hit the frozen stage input
		g.runSlabs(workers, func(z0, z1 int) {
			for z := z0; z < z1; z++ {
				for y := 0; y < res; y++ {
					for x := 0; x < res; x++ {
						g.k[g.index(x, y, z)] = g.dc * g.laplacian(g.stageIn, x, y, z)
					}
				}
			}
		})
		// accumulate and build the next stage input; barrier above keeps
		// this from racing the neighbor reads
		st := st
		g.runSlabs(workers, func(z0, z1 int) {
			i0 := g.index(0, 0, z0)
			i1 := g.index(0, 0, z1-1) + res*res
			for i := i0; i < i1; i++ {
				g.kSum[i] += st.weight * g.k[i]
				if st.step > 0 {
					g.stageIn[i] = g.c1[i] + st.step*dt*g.k[i]
				}
			}
		})
	}

	g.runSlabs(workers, func(z0, z1 int) {
		i0 := g.index(0, 0, z0)
		i1 := g.index(0, 0, z1-1) + res*res
		for i := i0; i < i1; i++ {
			g.c2[i] = g.c1[i] + dt/6*g.kSum[i]
		}
	})
	g.swap()
	if g.initGradient {
		g.computeGradient()
	}
}
