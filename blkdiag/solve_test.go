package blkdiag

import (
	"errors"
	"testing"

	"github.com/cwbudde/algo-cryoem/internal/testutil"
	"gonum.org/v1/gonum/mat"
)

func spdBlockDiag(seed int64, sizes []int) *BlockDiag {
	blocks := make([]*mat.Dense, len(sizes))
	for i, s := range sizes {
		blocks[i] = testutil.SPDMatrix(seed+int64(i), s, 0.5)
	}
	m, _ := New(blocks...)
	return m
}

func TestInverseRoundTrip(t *testing.T) {
	sizes := []int{4, 3, 3, 2, 1}
	a := spdBlockDiag(7, sizes)

	inv, err := a.Inverse()
	if err != nil {
		t.Fatal(err)
	}

	prod, _ := a.Mul(inv)
	id, err := Eye(sizes)
	if err != nil {
		t.Fatal(err)
	}
	diff, _ := prod.Sub(id)
	if diff.Norm() > 1e-10 {
		t.Errorf("A·A⁻¹ deviates from identity by %g", diff.Norm())
	}
}

func TestSolveMatchesInverse(t *testing.T) {
	sizes := []int{3, 2}
	a := spdBlockDiag(11, sizes)
	b := spdBlockDiag(13, sizes)

	x, err := a.Solve(b)
	if err != nil {
		t.Fatal(err)
	}

	inv, _ := a.Inverse()
	want, _ := inv.Mul(b)
	diff, _ := x.Sub(want)
	if rel := diff.Norm() / want.Norm(); rel > 1e-10 {
		t.Errorf("Solve vs Inverse·B: relative diff %g", rel)
	}
}

func TestSolveVec(t *testing.T) {
	sizes := []int{3, 2}
	a := spdBlockDiag(17, sizes)
	x := []float64{1, -0.5, 2, 0.25, -1}

	b, err := a.Apply(x)
	if err != nil {
		t.Fatal(err)
	}
	got, err := a.SolveVec(b)
	if err != nil {
		t.Fatal(err)
	}
	testutil.RequireSliceNearlyEqual(t, got, x, 1e-10)
}

func TestSingularBlockRaises(t *testing.T) {
	// Second block is exactly singular (rank 1 of 2).
	good := testutil.SPDMatrix(3, 3, 0.5)
	singular := mat.NewDense(2, 2, []float64{1, 2, 2, 4})
	a, _ := New(good, singular)

	if _, err := a.Inverse(); !errors.Is(err, ErrSingularBlock) {
		t.Fatalf("got %v, want ErrSingularBlock", err)
	}
}

func TestSingularBlockPseudoInverseFallback(t *testing.T) {
	good := testutil.SPDMatrix(3, 3, 0.5)
	singular := mat.NewDense(2, 2, []float64{1, 2, 2, 4})
	a, _ := New(good, singular)

	inv, err := a.Inverse(WithPseudoInverse(true))
	if err != nil {
		t.Fatal(err)
	}

	// Healthy block is inverted exactly.
	var prod mat.Dense
	prod.Mul(a.Block(0), inv.Block(0))
	id := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	testutil.RequireMatrixNearlyEqual(t, &prod, id, 1e-10)

	// Singular block gets the Moore-Penrose pseudo-inverse, which satisfies
	// A·A⁺·A = A.
	var apa mat.Dense
	apa.Mul(a.Block(1), inv.Block(1))
	apa.Mul(&apa, a.Block(1))
	testutil.RequireMatrixNearlyEqual(t, &apa, a.Block(1), 1e-10)
}

func TestSolveVecShapeMismatch(t *testing.T) {
	a := spdBlockDiag(19, []int{3, 2})
	if _, err := a.SolveVec([]float64{1, 2, 3}); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("got %v, want ErrShapeMismatch", err)
	}
}
