// Package force implements the pure geometric interaction force between two
// agents, dispatched on their shape pair.
package force

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/petri-sim/petri/agent"
)

const (
	// virtual interaction coefficient: radii are inflated by 10*0.15 so
	// agents interact slightly beyond contact
	iofCoefficient = 0.15
	// centers closer than this get a random kick instead of a direction
	centerEpsilon = 1e-8
	// segments with a line-line denominator below this are treated as parallel
	parallelEpsilon = 1e-12

	attractionCoeff = 1.0
	repulsionCoeff  = 2.0
)

// cylinderAgent is the geometry a cylinder-shaped agent must expose.
type cylinderAgent interface {
	agent.Agent
	ProximalEnd() r3.Vec
	DistalEnd() r3.Vec
	SpringAxis() r3.Vec
	ActualLength() float64
}

type pairFunc func(f *InteractionForce, lhs, rhs agent.Agent) (r3.Vec, float64)

// dispatch is indexed by [lhs shape][rhs shape].
var dispatch = [2][2]pairFunc{
	agent.ShapeSphere: {
		agent.ShapeSphere:   (*InteractionForce).forceBetweenSpheres,
		agent.ShapeCylinder: (*InteractionForce).forceOnSphereFromCylinder,
	},
	agent.ShapeCylinder: {
		agent.ShapeSphere:   (*InteractionForce).forceOnCylinderFromSphere,
		agent.ShapeCylinder: (*InteractionForce).forceBetweenCylinders,
	},
}

// InteractionForce computes pairwise forces. It is stateless apart from the
// random source used to resolve coincident centers, so one instance can be
// shared by all workers.
type InteractionForce struct {
	rng agent.Random
}

// New creates an interaction force using rng for degenerate-geometry kicks.
func New(rng agent.Random) *InteractionForce {
	return &InteractionForce{rng: rng}
}

// Calculate returns the force acting on lhs from rhs and, when lhs is a
// cylinder, the proportion of the force attributed to its proximal end.
// Shape pairs outside {sphere,cylinder}x{sphere,cylinder} are a fatal
// configuration error.
func (f *InteractionForce) Calculate(lhs, rhs agent.Agent) (r3.Vec, float64) {
	ls, rs := lhs.Shape(), rhs.Shape()
	if ls < 0 || int(ls) >= len(dispatch) || rs < 0 || int(rs) >= len(dispatch) {
		panic(fmt.Sprintf("force: unsupported shape pair (%v, %v); only spheres and cylinders are supported", ls, rs))
	}
	return dispatch[ls][rs](f, lhs, rhs)
}

func (f *InteractionForce) forceBetweenSpheres(lhs, rhs agent.Agent) (r3.Vec, float64) {
	c1 := lhs.Position()
	c2 := rhs.Position()
	// virtual bigger radii give a distant interaction and a softer packing
	additionalRadius := 10 * iofCoefficient
	r1 := 0.5*lhs.Diameter() + additionalRadius
	r2 := 0.5*rhs.Diameter() + additionalRadius

	comp := r3.Sub(c1, c2)
	centerDistance := r3.Norm(comp)

	// how much one penetrates the other
	delta := r1 + r2 - centerDistance
	if delta < 0 {
		return r3.Vec{}, 0
	}
	if centerDistance < centerEpsilon {
		return f.rng.Uniform3(-3, 3), 0
	}

	effectiveRadius := (r1 * r2) / (r1 + r2)
	magnitude := repulsionCoeff*delta - attractionCoeff*math.Sqrt(effectiveRadius*delta)

	// dividing by the center distance normalizes comp and scales in one step
	return r3.Scale(magnitude/centerDistance, comp), 0
}

func (f *InteractionForce) forceOnCylinderFromSphere(lhs, rhs agent.Agent) (r3.Vec, float64) {
	cyl := mustCylinder(lhs)
	proximal := cyl.ProximalEnd()
	distal := cyl.DistalEnd()
	axis := cyl.SpringAxis()
	actualLength := r3.Norm(axis)
	rc := 0.5 * cyl.Diameter()

	c := rhs.Position()
	rs := 0.5 * rhs.Diameter()

	// short cylinder: treat its distal point mass as a sphere, pulled back
	// inward by the cylinder's own radius
	if actualLength < rs {
		center := r3.Sub(distal, r3.Scale(rc/actualLength, axis))
		fv := f.sphereOnSphere(center, rc, c, rs)
		return fv, 0
	}

	// project the sphere center onto the axis line
	toCenter := r3.Sub(c, proximal)
	k := r3.Dot(toCenter, axis) / (actualLength * actualLength)

	var closest r3.Vec
	var proportionToProximal float64
	switch {
	case k >= 0 && k <= 1:
		closest = r3.Add(proximal, r3.Scale(k, axis))
		proportionToProximal = 1 - k
	case k < 0:
		closest = proximal
		proportionToProximal = 1
	default: // k > 1
		closest = distal
		proportionToProximal = 0
	}

	penetration := rc + rs - r3.Norm(r3.Sub(c, closest))
	if penetration <= 0 {
		return r3.Vec{}, 0
	}
	fv := f.sphereOnSphere(closest, rc, c, rs)
	return fv, proportionToProximal
}

func (f *InteractionForce) forceOnSphereFromCylinder(lhs, rhs agent.Agent) (r3.Vec, float64) {
	// the opposite of the force on the cylinder from the sphere
	fv, _ := f.forceOnCylinderFromSphere(rhs, lhs)
	return r3.Scale(-1, fv), 0
}

func (f *InteractionForce) forceBetweenCylinders(lhs, rhs agent.Agent) (r3.Vec, float64) {
	c1 := mustCylinder(lhs)
	c2 := mustCylinder(rhs)
	a := c1.ProximalEnd()
	b := c1.DistalEnd()
	d1 := c1.Diameter()
	c := c2.ProximalEnd()
	d := c2.DistalEnd()
	d2 := c2.Diameter()

	// part devoted to the distal node
	k := 0.5

	// closest points between the two segments (line-line closest point
	// solution, clamped to the segments)
	p13 := r3.Sub(a, c)
	p43 := r3.Sub(d, c)
	p21 := r3.Sub(b, a)

	d1343 := r3.Dot(p13, p43)
	d4321 := r3.Dot(p21, p43)
	d1321 := r3.Dot(p21, p13)
	d4343 := r3.Dot(p43, p43)
	d2121 := r3.Dot(p21, p21)

	var p1, p2 r3.Vec

	denom := d2121*d4343 - d4321*d4321
	if denom > parallelEpsilon {
		numer := d1343*d4321 - d1321*d4343
		mua := numer / denom
		mub := (d1343 + mua*d4321) / d4343

		switch {
		case mua < 0:
			p1 = a
			k = 1
		case mua > 1:
			p1 = b
			k = 0
		default:
			p1 = r3.Add(a, r3.Scale(mua, p21))
			k = 1 - mua
		}

		switch {
		case mub < 0:
			p2 = c
		case mub > 1:
			p2 = d
		default:
			p2 = r3.Add(c, r3.Scale(mub, p43))
		}
	} else {
		// (near-)parallel segments: fall back to the midpoints
		p1 = r3.Add(a, r3.Scale(0.5, p21))
		p2 = r3.Add(c, r3.Scale(0.5, p43))
	}

	// virtual spheres on the two cylinders
	fv := r3.Scale(10, f.sphereOnSphere(p1, d1/2, p2, d2/2))
	return fv, k
}

// sphereOnSphere is the bare contact law between two spheres at c1 and c2
// with radii r1 and r2, without virtual inflation: the magnitude is the
// penetration depth over the center distance.
func (f *InteractionForce) sphereOnSphere(c1 r3.Vec, r1 float64, c2 r3.Vec, r2 float64) r3.Vec {
	comp := r3.Sub(c1, c2)
	centerDistance := r3.Norm(comp)

	overlap := r1 + r2 - centerDistance
	if overlap < 0 {
		return r3.Vec{}
	}
	if centerDistance < centerEpsilon {
		return f.rng.Uniform3(-3, 3)
	}
	return r3.Scale(overlap/centerDistance, comp)
}

func mustCylinder(a agent.Agent) cylinderAgent {
	cyl, ok := a.(cylinderAgent)
	if !ok {
		panic(fmt.Sprintf("force: agent %d reports a cylinder shape but does not expose cylinder geometry", a.UID()))
	}
	return cyl
}
