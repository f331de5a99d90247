package agent

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// minVolume is the smallest volume a cell can shrink to. Matches a sphere of
// diameter 1e-2.
const minVolume = 5.2359877e-7

// Cell is a spherical agent. Volume and diameter are kept consistent through
// the setters; density ties volume to mass.
type Cell struct {
	uid          UID
	position     r3.Vec
	tractorForce r3.Vec
	diameter     float64
	volume       float64
	adherence    float64
	density      float64
	boxIdx       uint64
}

// NewCell creates a cell of diameter 1 and density 1 at the given position.
func NewCell(position r3.Vec) *Cell {
	c := &Cell{position: position, diameter: 1, density: 1, boxIdx: math.MaxUint64}
	c.updateVolume()
	return c
}

// NewCellWithDiameter creates a cell of the given diameter and density 1 at
// the origin.
func NewCellWithDiameter(diameter float64) *Cell {
	c := &Cell{diameter: diameter, density: 1, boxIdx: math.MaxUint64}
	c.updateVolume()
	return c
}

func (c *Cell) UID() UID         { return c.uid }
func (c *Cell) SetUID(uid UID)   { c.uid = uid }
func (c *Cell) Shape() Shape     { return ShapeSphere }
func (c *Cell) Position() r3.Vec { return c.position }
func (c *Cell) Diameter() float64 { return c.diameter }
func (c *Cell) Volume() float64  { return c.volume }
func (c *Cell) Density() float64 { return c.density }
func (c *Cell) Mass() float64    { return c.density * c.volume }
func (c *Cell) Adherence() float64 { return c.adherence }
func (c *Cell) TractorForce() r3.Vec { return c.tractorForce }
func (c *Cell) BoxIdx() uint64   { return c.boxIdx }

func (c *Cell) SetPosition(p r3.Vec)      { c.position = p }
func (c *Cell) SetDensity(density float64) { c.density = density }
func (c *Cell) SetAdherence(a float64)    { c.adherence = a }
func (c *Cell) SetTractorForce(f r3.Vec)  { c.tractorForce = f }
func (c *Cell) SetBoxIdx(idx uint64)      { c.boxIdx = idx }

// SetDiameter updates the diameter and recomputes the volume.
func (c *Cell) SetDiameter(diameter float64) {
	c.diameter = diameter
	c.updateVolume()
}

// SetVolume updates the volume and recomputes the diameter.
func (c *Cell) SetVolume(volume float64) {
	c.volume = volume
	c.updateDiameter()
}

// SetMass adjusts the density so the cell has the given mass at its current
// volume.
func (c *Cell) SetMass(mass float64) {
	c.density = mass / c.volume
}

// ChangeVolume grows or shrinks the cell by speed*dt, clamped to the minimum
// volume.
func (c *Cell) ChangeVolume(speed, dt float64) {
	c.volume += speed * dt
	if c.volume < minVolume {
		c.volume = minVolume
	}
	c.updateDiameter()
}

// MovePointMass accumulates an active-movement tractor force along the given
// normalized direction.
func (c *Cell) MovePointMass(normalizedDir r3.Vec, speed float64) {
	c.tractorForce = r3.Add(c.tractorForce, r3.Scale(speed, normalizedDir))
}

// V = (4/3)*pi*r^3 = (pi/6)*diameter^3
func (c *Cell) updateVolume() {
	c.volume = math.Pi / 6 * c.diameter * c.diameter * c.diameter
}

func (c *Cell) updateDiameter() {
	c.diameter = math.Cbrt(c.volume * 6 / math.Pi)
}

// CalculateDisplacement sums the tractor force and all neighbor interaction
// forces acting on the cell. The physics contribution only applies when the
// net force exceeds the cell's adherence, and the resulting move is capped at
// maxDisplacement to avoid huge jumps.
func (c *Cell) CalculateDisplacement(finder NeighborFinder, force ForceCalculator, squaredRadius, dt, maxDisplacement float64) r3.Vec {
	// active movement defined by the biology
	movement := r3.Scale(dt, c.tractorForce)

	var translationForce r3.Vec
	finder.ForEachNeighborWithinRadius(func(nb Agent, _ float64) {
		f, _ := force.Calculate(c, nb)
		translationForce = r3.Add(translationForce, f)
	}, c, squaredRadius)

	normOfForce := r3.Norm(translationForce)
	if normOfForce <= c.adherence {
		return movement
	}

	mass := c.Mass()
	if mass == 0 {
		panic(fmt.Sprintf("cell %d: mass is zero, cannot compute displacement", c.uid))
	}
	mh := dt / mass
	movement = r3.Add(movement, r3.Scale(mh, translationForce))
	if normOfForce*mh > maxDisplacement {
		movement = r3.Scale(maxDisplacement, r3.Unit(movement))
	}
	return movement
}

// ApplyDisplacement moves the cell by delta.
func (c *Cell) ApplyDisplacement(delta r3.Vec) {
	c.position = r3.Add(c.position, delta)
}

// Divide splits the cell along a random axis with a volume ratio drawn from
// U(0.9, 1.1) and returns the daughter. Total volume is conserved; the
// daughter inherits adherence and density. The caller stages the daughter
// through its execution context.
func (c *Cell) Divide(rng Random) *Cell {
	volumeRatio := rng.Uniform(0.9, 1.1)
	// random point on the unit sphere
	theta := 2 * math.Pi * rng.Uniform(0, 1)
	phi := math.Acos(2*rng.Uniform(0, 1) - 1)
	return c.DivideAxis(volumeRatio, phi, theta)
}

// DivideAxis splits the cell along the axis given in spherical coordinates.
func (c *Cell) DivideAxis(volumeRatio, phi, theta float64) *Cell {
	radius := 0.5 * c.diameter

	axis := r3.Vec{
		X: math.Cos(theta) * math.Sin(phi),
		Y: math.Sin(theta) * math.Sin(phi),
		Z: math.Cos(phi),
	}
	totalDisplacement := radius / 4
	axisOfDivision := r3.Scale(totalDisplacement, axis)

	// the two centers move apart inversely proportionally to their volumes
	d2 := totalDisplacement / (volumeRatio + 1)
	d1 := totalDisplacement - d2

	motherVolume := c.volume
	newVolume := motherVolume / (volumeRatio + 1)

	daughter := NewCell(r3.Add(c.position, r3.Scale(d2, axisOfDivision)))
	daughter.SetVolume(motherVolume - newVolume)
	daughter.SetAdherence(c.adherence)
	daughter.SetDensity(c.density)

	c.position = r3.Sub(c.position, r3.Scale(d1, axisOfDivision))
	c.SetVolume(newVolume)

	return daughter
}
