package fb

import (
	"fmt"

	"github.com/cwbudde/algo-cryoem/blkdiag"
	"github.com/cwbudde/algo-cryoem/internal/fft2d"
	"github.com/cwbudde/algo-cryoem/internal/grid"
	"gonum.org/v1/gonum/mat"
)

// ExpandRadialFilter converts a radial transfer function h (argument in
// cycles per pixel) into its block-diagonal matrix representation in the
// basis.
//
// The filter is applied to the basis functions exactly as it would be to an
// image, by pointwise multiplication on the centered Fourier grid, and the
// filtered functions are projected back onto the basis by least squares.
// Applying the result to coefficients therefore agrees with filtering in
// image space followed by Expand; the unit response maps to the exact
// identity. Cross-block leakage is zero for a radial filter up to
// discretization and is discarded.
func (b *Basis) ExpandRadialFilter(h func(k float64) float64) (*blkdiag.BlockDiag, error) {
	plan, err := fft2d.NewPlan(b.size)
	if err != nil {
		return nil, fmt.Errorf("fb: radial filter expansion: %w", err)
	}

	hGrid := grid.FreqRadii(b.size)
	for i, r := range hGrid {
		hGrid[i] = h(r)
	}

	npix := len(b.polar.Inside)
	filtered := mat.NewDense(npix, b.dim, nil)

	img := make([]float64, b.size*b.size)
	spec := make([]complex128, b.size*b.size)
	for col := 0; col < b.dim; col++ {
		for i := range img {
			img[i] = 0
		}
		for row, idx := range b.polar.Inside {
			img[idx] = b.mtx.At(row, col)
		}

		if err := plan.ForwardReal(spec, img); err != nil {
			return nil, fmt.Errorf("fb: radial filter expansion: %w", err)
		}
		for i := range spec {
			spec[i] *= complex(hGrid[i], 0)
		}
		if err := plan.InverseReal(img, spec); err != nil {
			return nil, fmt.Errorf("fb: radial filter expansion: %w", err)
		}

		for row, idx := range b.polar.Inside {
			filtered.Set(row, col, img[idx])
		}
	}

	var proj mat.Dense
	if err := proj.Solve(b.mtx, filtered); err != nil {
		return nil, fmt.Errorf("fb: radial filter expansion: %w", err)
	}

	blocks := make([]*mat.Dense, len(b.sizes))
	off := 0
	for i, s := range b.sizes {
		blocks[i] = mat.DenseCopyOf(proj.Slice(off, off+s, off, off+s))
		off += s
	}
	return blkdiag.New(blocks...)
}
