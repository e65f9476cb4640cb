package projection

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// checkEvery is how many optimizer iterations pass between context checks.
const checkEvery = 50

// distances returns the symmetric Euclidean distance matrix between the rows of x.
func distances(x *mat.Dense) *mat.SymDense {
	n, _ := x.Dims()
	d := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		ri := x.RawRowView(i)
		for j := i + 1; j < n; j++ {
			d.SetSym(i, j, floats.Distance(ri, x.RawRowView(j), 2))
		}
	}
	return d
}

// newRand returns the generator for one stochastic run. Runs of the same
// seed use distinct streams.
func newRand(seed uint64, run int) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(run)))
}
