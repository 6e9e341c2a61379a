package testutil

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// GaussianMatrix returns an r×c matrix of independent N(0, sigma²) entries
// drawn from a fixed-seed generator for reproducibility.
func GaussianMatrix(seed int64, r, c int, sigma float64) *mat.Dense {
	rng := rand.New(rand.NewSource(seed))
	data := make([]float64, r*c)
	for i := range data {
		data[i] = rng.NormFloat64() * sigma
	}
	return mat.NewDense(r, c, data)
}

// GaussianSlice returns n independent N(0, sigma²) samples from a
// fixed-seed generator.
func GaussianSlice(seed int64, n int, sigma float64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.NormFloat64() * sigma
	}
	return out
}

// SPDMatrix returns a random symmetric positive-definite n×n matrix
// A = G Gᵀ + ridge·I with a fixed seed.
func SPDMatrix(seed int64, n int, ridge float64) *mat.Dense {
	g := GaussianMatrix(seed, n, n, 1)
	out := mat.NewDense(n, n, nil)
	out.Mul(g, g.T())
	for i := 0; i < n; i++ {
		out.Set(i, i, out.At(i, i)+ridge)
	}
	return out
}
