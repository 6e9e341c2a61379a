// Package denoise applies covariance Wiener filtering to particle image
// coefficients and estimates compact support radii for adaptive processing.
package denoise

import (
	"errors"

	"github.com/cwbudde/algo-cryoem/blkdiag"
	"github.com/cwbudde/algo-cryoem/covar"
	"gonum.org/v1/gonum/mat"
)

// Errors returned by denoising and support estimation.
var (
	ErrInvalidThreshold = errors.New("denoise: energy threshold must be in (0, 1]")
	ErrInvalidNoise     = errors.New("denoise: noise variance must be non-negative")
	ErrImageSize        = errors.New("denoise: image length does not match grid size")
)

// Wiener denoises coefficient batches with precomputed per-group gain
// matrices. It holds no state beyond the gains: construction fixes the
// estimator inputs and Denoise is a pure function of its arguments.
type Wiener struct {
	est     *covar.Estimator
	filters []*blkdiag.BlockDiag
	gains   []*blkdiag.BlockDiag
	mean    []float64
}

// NewWiener computes the per-group Wiener gains from the estimated mean,
// covariance and noise variance. The gain is computed once per distinct
// filter group and shared by all images of the group.
func NewWiener(est *covar.Estimator, filters []*blkdiag.BlockDiag, mean []float64,
	covarEst *blkdiag.BlockDiag, noiseVar float64,
) (*Wiener, error) {
	gains, err := est.Gains(filters, covarEst, noiseVar)
	if err != nil {
		return nil, err
	}
	m := make([]float64, len(mean))
	copy(m, mean)
	return &Wiener{
		est:     est,
		filters: filters,
		gains:   gains,
		mean:    m,
	}, nil
}

// Gains returns the per-group gain matrices.
func (w *Wiener) Gains() []*blkdiag.BlockDiag { return w.gains }

// Denoise returns the minimum mean-square-error coefficient estimates for a
// batch of raw coefficients (one image per row) with per-image group
// indices.
func (w *Wiener) Denoise(coeffs *mat.Dense, groupIdx []int) (*mat.Dense, error) {
	return w.est.ApplyGains(coeffs, w.gains, w.filters, groupIdx, w.mean)
}
