package covar

import (
	"testing"

	"github.com/cwbudde/algo-cryoem/internal/testutil"
)

func BenchmarkCovarCTF(b *testing.B) {
	e, _ := NewEstimator(testSizes)
	coeffs := testutil.GaussianMatrix(1, 512, testDim(), 1)
	filters := identityFilters(7, testSizes)
	idx := make([]int, 512)
	for i := range idx {
		idx[i] = i % 7
	}
	mean := make([]float64, testDim())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.CovarCTF(coeffs, filters, idx, mean, 0.5); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCWFCoeffs(b *testing.B) {
	e, _ := NewEstimator(testSizes)
	coeffs := testutil.GaussianMatrix(2, 512, testDim(), 1)
	filters := identityFilters(7, testSizes)
	idx := make([]int, 512)
	for i := range idx {
		idx[i] = i % 7
	}
	mean := make([]float64, testDim())
	sigma := spdCovar(3, testSizes)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.CWFCoeffs(coeffs, filters, idx, mean, sigma, 0.5); err != nil {
			b.Fatal(err)
		}
	}
}
