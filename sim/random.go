package sim

import (
	"math/rand"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// Random is the simulation's seeded random source. A mutex makes it safe for
// the occasional concurrent draw from worker goroutines; hot paths do not
// touch it.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom creates a random source. A zero seed picks a time-based one.
func NewRandom(seed int64) *Random {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Random{rng: rand.New(rand.NewSource(seed))}
}

// Uniform draws from U(lo, hi).
func (r *Random) Uniform(lo, hi float64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo + r.rng.Float64()*(hi-lo)
}

// Uniform3 draws each component from U(lo, hi).
func (r *Random) Uniform3(lo, hi float64) r3.Vec {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r3.Vec{
		X: lo + r.rng.Float64()*(hi-lo),
		Y: lo + r.rng.Float64()*(hi-lo),
		Z: lo + r.rng.Float64()*(hi-lo),
	}
}

// Intn draws from [0, n).
func (r *Random) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(n)
}
