package fb

import (
	"testing"

	"github.com/cwbudde/algo-cryoem/internal/fft2d"
	"github.com/cwbudde/algo-cryoem/internal/grid"
	"github.com/cwbudde/algo-cryoem/internal/testutil"
	"gonum.org/v1/gonum/mat"
)

func TestExpandRadialFilterIdentity(t *testing.T) {
	basis, err := New(8)
	if err != nil {
		t.Fatal(err)
	}

	h, err := basis.ExpandRadialFilter(func(float64) float64 { return 1 })
	if err != nil {
		t.Fatal(err)
	}

	// Filtering with the unit response leaves basis images untouched, so
	// the least-squares projection must recover the exact identity.
	for i, s := range basis.sizes {
		want := mat.NewDense(s, s, nil)
		for j := 0; j < s; j++ {
			want.Set(j, j, 1)
		}
		testutil.RequireMatrixNearlyEqual(t, h.Block(i), want, 1e-10)
	}
}

func TestExpandRadialFilterZero(t *testing.T) {
	basis, err := New(8)
	if err != nil {
		t.Fatal(err)
	}

	h, err := basis.ExpandRadialFilter(func(float64) float64 { return 0 })
	if err != nil {
		t.Fatal(err)
	}
	if h.Norm() > 1e-12 {
		t.Errorf("zero filter norm %g, want 0", h.Norm())
	}
}

func TestExpandRadialFilterShape(t *testing.T) {
	basis, err := New(16)
	if err != nil {
		t.Fatal(err)
	}

	h, err := basis.ExpandRadialFilter(func(k float64) float64 { return 1 / (1 + 10*k*k) })
	if err != nil {
		t.Fatal(err)
	}

	want := basis.BlockSizes()
	got := h.BlockSizes()
	if len(got) != len(want) {
		t.Fatalf("got %d blocks, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("block %d: size %d, want %d", i, got[i], want[i])
		}
	}
}

// TestExpandRadialFilterMatchesImageFiltering checks that applying the
// block-diagonal filter matrix to coefficients agrees with filtering the
// image on the pixel grid and re-expanding. The residual is the cross-block
// leakage of the discretized radial filter, which stays small for a smooth
// in-span image.
func TestExpandRadialFilterMatchesImageFiltering(t *testing.T) {
	const size = 16
	basis, err := New(size)
	if err != nil {
		t.Fatal(err)
	}
	resp := func(k float64) float64 { return 1 / (1 + 25*k*k) }

	h, err := basis.ExpandRadialFilter(resp)
	if err != nil {
		t.Fatal(err)
	}
	coeffs := smoothCoeffs(basis)
	got, err := h.Apply(coeffs)
	if err != nil {
		t.Fatal(err)
	}

	img, err := basis.Evaluate(coeffs)
	if err != nil {
		t.Fatal(err)
	}
	plan, err := fft2d.NewPlan(size)
	if err != nil {
		t.Fatal(err)
	}
	spec := make([]complex128, size*size)
	if err := plan.ForwardReal(spec, img); err != nil {
		t.Fatal(err)
	}
	for i, r := range grid.FreqRadii(size) {
		spec[i] *= complex(resp(r), 0)
	}
	filtered := make([]float64, size*size)
	if err := plan.InverseReal(filtered, spec); err != nil {
		t.Fatal(err)
	}
	want, err := basis.Expand(filtered)
	if err != nil {
		t.Fatal(err)
	}

	rel, err := testutil.RelativeNorm(got, want)
	if err != nil {
		t.Fatal(err)
	}
	if rel > 0.1 {
		t.Errorf("coefficient-space filtering deviates by %g, want < 0.1", rel)
	}
}

func TestExpandRadialFilterLowPassDamps(t *testing.T) {
	basis, err := New(16)
	if err != nil {
		t.Fatal(err)
	}

	identity, err := basis.ExpandRadialFilter(func(float64) float64 { return 1 })
	if err != nil {
		t.Fatal(err)
	}
	lowpass, err := basis.ExpandRadialFilter(func(k float64) float64 {
		if k < 0.1 {
			return 1
		}
		return 0
	})
	if err != nil {
		t.Fatal(err)
	}

	if lowpass.Norm() >= identity.Norm() {
		t.Errorf("low-pass norm %g not below identity norm %g", lowpass.Norm(), identity.Norm())
	}
}
