package agent

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Rod is a cylindrical agent: a finite segment with a proximal end, a spring
// axis pointing to the distal end, and a diameter. The distal end carries the
// point mass, so Position reports the distal end.
type Rod struct {
	uid          UID
	proximalEnd  r3.Vec
	springAxis   r3.Vec // proximal -> distal
	tractorForce r3.Vec
	diameter     float64
	adherence    float64
	density      float64
	boxIdx       uint64
}

// NewRod creates a rod of density 1 between the two end points.
func NewRod(proximalEnd, distalEnd r3.Vec, diameter float64) *Rod {
	return &Rod{
		proximalEnd: proximalEnd,
		springAxis:  r3.Sub(distalEnd, proximalEnd),
		diameter:    diameter,
		density:     1,
		boxIdx:      math.MaxUint64,
	}
}

func (r *Rod) UID() UID           { return r.uid }
func (r *Rod) SetUID(uid UID)     { r.uid = uid }
func (r *Rod) Shape() Shape       { return ShapeCylinder }
func (r *Rod) Diameter() float64  { return r.diameter }
func (r *Rod) Density() float64   { return r.density }
func (r *Rod) Adherence() float64 { return r.adherence }
func (r *Rod) BoxIdx() uint64     { return r.boxIdx }

func (r *Rod) SetDiameter(d float64)     { r.diameter = d }
func (r *Rod) SetDensity(density float64) { r.density = density }
func (r *Rod) SetAdherence(a float64)    { r.adherence = a }
func (r *Rod) SetTractorForce(f r3.Vec)  { r.tractorForce = f }
func (r *Rod) SetBoxIdx(idx uint64)      { r.boxIdx = idx }

// ProximalEnd returns the base point of the segment.
func (r *Rod) ProximalEnd() r3.Vec { return r.proximalEnd }

// DistalEnd returns the tip of the segment.
func (r *Rod) DistalEnd() r3.Vec { return r3.Add(r.proximalEnd, r.springAxis) }

// SpringAxis returns the vector from the proximal to the distal end.
func (r *Rod) SpringAxis() r3.Vec { return r.springAxis }

// ActualLength returns the segment length.
func (r *Rod) ActualLength() float64 { return r3.Norm(r.springAxis) }

// Position reports the distal end, where the point mass sits.
func (r *Rod) Position() r3.Vec { return r.DistalEnd() }

// SetPosition translates the whole rod so its distal end lands on p.
func (r *Rod) SetPosition(p r3.Vec) {
	delta := r3.Sub(p, r.DistalEnd())
	r.proximalEnd = r3.Add(r.proximalEnd, delta)
}

// Volume of a cylinder: pi * r^2 * length.
func (r *Rod) Volume() float64 {
	radius := 0.5 * r.diameter
	return math.Pi * radius * radius * r.ActualLength()
}

func (r *Rod) Mass() float64 { return r.density * r.Volume() }

// CalculateDisplacement sums tractor and neighbor forces on the rod's point
// mass. The proximal-end proportion reported by the force is folded into a
// rigid translation; torque is not modeled.
func (r *Rod) CalculateDisplacement(finder NeighborFinder, force ForceCalculator, squaredRadius, dt, maxDisplacement float64) r3.Vec {
	movement := r3.Scale(dt, r.tractorForce)

	var translationForce r3.Vec
	finder.ForEachNeighborWithinRadius(func(nb Agent, _ float64) {
		f, _ := force.Calculate(r, nb)
		translationForce = r3.Add(translationForce, f)
	}, r, squaredRadius)

	normOfForce := r3.Norm(translationForce)
	if normOfForce <= r.adherence {
		return movement
	}

	mass := r.Mass()
	if mass == 0 {
		panic(fmt.Sprintf("rod %d: mass is zero, cannot compute displacement", r.uid))
	}
	mh := dt / mass
	movement = r3.Add(movement, r3.Scale(mh, translationForce))
	if normOfForce*mh > maxDisplacement {
		movement = r3.Scale(maxDisplacement, r3.Unit(movement))
	}
	return movement
}

// ApplyDisplacement translates the whole rod by delta.
func (r *Rod) ApplyDisplacement(delta r3.Vec) {
	r.proximalEnd = r3.Add(r.proximalEnd, delta)
}
