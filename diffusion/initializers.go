package diffusion

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// Axis selects the spatial axis an initializer varies along.
type Axis int

const (
	XAxis Axis = iota
	YAxis
	ZAxis
)

// GaussianBand seeds a normal-density band across the chosen axis: the value
// at a lattice point depends only on that axis coordinate.
func GaussianBand(mean, sigma float64, axis Axis) InitializerFunc {
	return func(x, y, z float64) float64 {
		t := x
		switch axis {
		case YAxis:
			t = y
		case ZAxis:
			t = z
		}
		return normalPDF(t, mean, sigma)
	}
}

func normalPDF(t, mean, sigma float64) float64 {
	u := (t - mean) / sigma
	return math.Exp(-0.5*u*u) / (sigma * math.Sqrt(2*math.Pi))
}

// Uniform seeds a constant concentration everywhere.
func Uniform(value float64) InitializerFunc {
	return func(x, y, z float64) float64 { return value }
}

// NoisePatches seeds smooth patches of concentration from 3D simplex noise,
// scaled into [0, amplitude]. scale controls the patch size: larger values
// give smaller patches.
func NoisePatches(seed int64, amplitude, scale float64) InitializerFunc {
	noise := opensimplex.NewNormalized(seed)
	return func(x, y, z float64) float64 {
		return amplitude * noise.Eval3(x*scale, y*scale, z*scale)
	}
}
