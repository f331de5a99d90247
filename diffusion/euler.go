package diffusion

// EulerGrid advances the field with a single-stage explicit scheme. It is the
// default and the only scheme that supports a nonzero decay constant.
type EulerGrid struct {
	baseGrid
	mu float64 // decay constant
}

// NewEulerGrid creates a single-stage explicit grid.
func NewEulerGrid(substanceID int, name string, dc, mu float64, resolution int, boundMode string, gradient bool) *EulerGrid {
	return &EulerGrid{
		baseGrid: newBaseGrid(substanceID, name, dc, resolution, boundMode, gradient),
		mu:       mu,
	}
}

// DecayConstant returns the configured decay constant.
func (g *EulerGrid) DecayConstant() float64 { return g.mu }

// Step writes diffusion plus decay into the next buffer, each lattice point
// reading only the previous buffer, then swaps the two.
func (g *EulerGrid) Step(dt float64, workers int) {
	g.runSlabs(workers, func(z0, z1 int) {
		res := g.resolution
		for z := z0; z < z1; z++ {
			for y := 0; y < res; y++ {
				for x := 0; x < res; x++ {
					i := g.index(x, y, z)
					center := g.c1[i]
					g.c2[i] = center*(1-g.mu*dt) + g.dc*dt*g.laplacian(g.c1, x, y, z)
				}
			}
		}
	})
	g.swap()
	if g.initGradient {
		g.computeGradient()
	}
}
