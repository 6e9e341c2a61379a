package covar

import (
	"fmt"

	"github.com/cwbudde/algo-cryoem/blkdiag"
	"gonum.org/v1/gonum/mat"
)

// Gains computes the per-group Wiener gain matrices
//
//	G_k = Σ F_kᵀ (F_k Σ F_kᵀ + noiseVar·I)⁻¹
//
// for signal covariance Σ. All images of a group share the gain, so it is
// computed once per distinct filter and broadcast by the caller.
func (e *Estimator) Gains(filters []*blkdiag.BlockDiag, covarEst *blkdiag.BlockDiag,
	noiseVar float64,
) ([]*blkdiag.BlockDiag, error) {
	if noiseVar < 0 {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidNoiseVar, noiseVar)
	}

	gains := make([]*blkdiag.BlockDiag, len(filters))
	for g, f := range filters {
		fs, err := f.Mul(covarEst)
		if err != nil {
			return nil, err
		}
		sct, err := fs.Mul(f.Transpose())
		if err != nil {
			return nil, err
		}
		sct, err = sct.ShiftDiag(noiseVar)
		if err != nil {
			return nil, err
		}

		// G = Σ Fᵀ S⁻¹. With S and Σ symmetric, Gᵀ = S⁻¹ F Σ.
		gt, err := sct.Solve(fs, e.cfg.solveOptions()...)
		if err != nil {
			return nil, fmt.Errorf("covar: wiener gain for group %d: %w", g, err)
		}
		gains[g] = gt.Transpose()
	}
	return gains, nil
}

// ApplyGains applies per-group Wiener gains to raw coefficients:
//
//	est_i = G_k (coeff_i − F_k mean) + mean,  k = groupIdx[i].
//
// The group structure and filters must match the ones the gains were built
// from.
func (e *Estimator) ApplyGains(coeffs *mat.Dense, gains, filters []*blkdiag.BlockDiag,
	groupIdx []int, mean []float64,
) (*mat.Dense, error) {
	n, err := e.checkCoeffs(coeffs)
	if err != nil {
		return nil, err
	}
	if len(mean) != e.dim {
		return nil, fmt.Errorf("%w: mean length %d, want %d", ErrDimension, len(mean), e.dim)
	}
	if len(gains) != len(filters) {
		return nil, fmt.Errorf("%w: %d gains for %d filters", ErrDimension, len(gains), len(filters))
	}
	gs, err := e.splitGroups(n, filters, groupIdx)
	if err != nil {
		return nil, err
	}

	out := mat.NewDense(n, e.dim, nil)
	for g, members := range gs.members {
		fm, err := filters[g].Apply(mean)
		if err != nil {
			return nil, err
		}

		y := gatherRows(coeffs, members, e.dim)
		for i := range members {
			row := y.RawRowView(i)
			for j := range row {
				row[j] -= fm[j]
			}
		}

		denoised, err := gains[g].ApplyBatch(y)
		if err != nil {
			return nil, err
		}

		for i, r := range members {
			dst := out.RawRowView(r)
			src := denoised.RawRowView(i)
			for j := range dst {
				dst[j] = src[j] + mean[j]
			}
		}
	}
	return out, nil
}

// CWFCoeffs returns the covariance Wiener filtered coefficient estimates,
// the linear estimator with minimum expected mean-square error given the
// mean, covariance and noise variance.
func (e *Estimator) CWFCoeffs(coeffs *mat.Dense, filters []*blkdiag.BlockDiag, groupIdx []int,
	mean []float64, covarEst *blkdiag.BlockDiag, noiseVar float64,
) (*mat.Dense, error) {
	gains, err := e.Gains(filters, covarEst, noiseVar)
	if err != nil {
		return nil, err
	}
	return e.ApplyGains(coeffs, gains, filters, groupIdx, mean)
}
