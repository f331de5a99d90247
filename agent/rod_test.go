package agent

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestRodGeometry(t *testing.T) {
	r := NewRod(r3.Vec{X: 1, Y: 2, Z: 3}, r3.Vec{X: 1, Y: 2, Z: 13}, 2)

	if r.Shape() != ShapeCylinder {
		t.Errorf("Shape() = %v, want cylinder", r.Shape())
	}
	if r.ActualLength() != 10 {
		t.Errorf("ActualLength() = %v, want 10", r.ActualLength())
	}
	if got := r.DistalEnd(); got != (r3.Vec{X: 1, Y: 2, Z: 13}) {
		t.Errorf("DistalEnd() = %v", got)
	}
	if r.Position() != r.DistalEnd() {
		t.Errorf("Position() = %v, want the distal end %v", r.Position(), r.DistalEnd())
	}

	// V = pi * r^2 * L
	wantVolume := math.Pi * 1 * 1 * 10
	if math.Abs(r.Volume()-wantVolume) > 1e-9 {
		t.Errorf("Volume() = %v, want %v", r.Volume(), wantVolume)
	}
}

func TestRodTranslation(t *testing.T) {
	r := NewRod(r3.Vec{}, r3.Vec{X: 10}, 2)
	axis := r.SpringAxis()

	r.SetPosition(r3.Vec{X: 15, Y: 5})
	if r.DistalEnd() != (r3.Vec{X: 15, Y: 5}) {
		t.Errorf("DistalEnd() after SetPosition = %v", r.DistalEnd())
	}
	if r.ProximalEnd() != (r3.Vec{X: 5, Y: 5}) {
		t.Errorf("ProximalEnd() after SetPosition = %v, translation must be rigid", r.ProximalEnd())
	}
	if r.SpringAxis() != axis {
		t.Errorf("SpringAxis() changed to %v, want %v", r.SpringAxis(), axis)
	}

	r.ApplyDisplacement(r3.Vec{Z: 2})
	if r.ProximalEnd() != (r3.Vec{X: 5, Y: 5, Z: 2}) || r.DistalEnd() != (r3.Vec{X: 15, Y: 5, Z: 2}) {
		t.Errorf("ApplyDisplacement moved ends to %v / %v", r.ProximalEnd(), r.DistalEnd())
	}
}

func TestRodDisplacementAdherence(t *testing.T) {
	r := NewRod(r3.Vec{}, r3.Vec{X: 10}, 2)
	r.SetAdherence(10)
	neighbor := NewCell(r3.Vec{X: 5, Y: 1})

	d := r.CalculateDisplacement(singleNeighborFinder{neighbor}, constantForce{r3.Vec{Y: 4}}, 900, 0.1, 3)
	if d != (r3.Vec{}) {
		t.Errorf("displacement = %v, want zero below adherence", d)
	}

	r.SetAdherence(0)
	d = r.CalculateDisplacement(singleNeighborFinder{neighbor}, constantForce{r3.Vec{Y: 4}}, 900, 0.1, 3)
	want := 4 * 0.1 / r.Mass()
	if math.Abs(d.Y-want) > 1e-12 {
		t.Errorf("displacement.Y = %v, want %v", d.Y, want)
	}
}
