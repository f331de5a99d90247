package diffusion

import "fmt"

// Dissect splits total lattice slabs into pieces contiguous chunks. Any
// remainder is distributed one-per-piece starting from the first piece, so
// the sizes always sum exactly to total.
func Dissect(total, pieces int) []int {
	if pieces < 1 {
		pieces = 1
	}
	out := make([]int, pieces)
	base := total / pieces
	rem := total % pieces
	sum := 0
	for i := range out {
		out[i] = base
		if i < rem {
			out[i]++
		}
		sum += out[i]
	}
	if sum != total {
		panic(fmt.Sprintf("diffusion: lattice dissection of %d into %d pieces sums to %d", total, pieces, sum))
	}
	return out
}
