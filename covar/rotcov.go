package covar

import (
	"fmt"

	"github.com/cwbudde/algo-cryoem/blkdiag"
	"github.com/cwbudde/algo-vecmath"
	"gonum.org/v1/gonum/mat"
)

// Estimator computes symmetry-constrained moment estimates over the
// angular-frequency block structure of a steerable basis. It is stateless
// between calls; every method is a pure function of its inputs.
type Estimator struct {
	sizes []int
	offs  []int
	dim   int
	cfg   Config
}

// NewEstimator creates an estimator for the given block-size sequence,
// ordered by angular frequency with the zero-frequency block first.
func NewEstimator(blockSizes []int, opts ...Option) (*Estimator, error) {
	if len(blockSizes) == 0 {
		return nil, fmt.Errorf("%w: empty block-size sequence", ErrDimension)
	}
	e := &Estimator{
		sizes: append([]int(nil), blockSizes...),
		offs:  make([]int, len(blockSizes)),
		cfg:   ApplyOptions(opts...),
	}
	for i, s := range blockSizes {
		if s <= 0 {
			return nil, fmt.Errorf("%w: block %d has size %d", ErrDimension, i, s)
		}
		e.offs[i] = e.dim
		e.dim += s
	}
	return e, nil
}

// Dim returns the coefficient dimension.
func (e *Estimator) Dim() int { return e.dim }

// BlockSizes returns the block-size sequence.
func (e *Estimator) BlockSizes() []int {
	out := make([]int, len(e.sizes))
	copy(out, e.sizes)
	return out
}

func (e *Estimator) checkCoeffs(coeffs *mat.Dense) (n int, err error) {
	n, d := coeffs.Dims()
	if n == 0 {
		return 0, ErrNoImages
	}
	if d != e.dim {
		return 0, fmt.Errorf("%w: got %d coefficients, want %d", ErrDimension, d, e.dim)
	}
	return n, nil
}

// Mean returns the symmetric mean coefficient vector. Rotational symmetry
// forces the expectation to zero outside the zero-frequency block, so only
// that block is estimated from data; the remaining components are exact
// zeros.
func (e *Estimator) Mean(coeffs *mat.Dense) ([]float64, error) {
	n, err := e.checkCoeffs(coeffs)
	if err != nil {
		return nil, err
	}

	mean := make([]float64, e.dim)
	s0 := e.sizes[0]
	for i := 0; i < n; i++ {
		vecmath.AddBlockInPlace(mean[:s0], coeffs.RawRowView(i)[:s0])
	}
	vecmath.ScaleBlock(mean[:s0], mean[:s0], 1/float64(n))
	return mean, nil
}

// Covar returns the block-diagonal second central moment of the
// coefficients. Only the zero-frequency block is centered by the mean; the
// symmetric mean vanishes on every other block. The result is symmetric
// positive semidefinite per block up to floating-point error; no clipping is
// applied.
func (e *Estimator) Covar(coeffs *mat.Dense, mean []float64) (*blkdiag.BlockDiag, error) {
	n, err := e.checkCoeffs(coeffs)
	if err != nil {
		return nil, err
	}
	if len(mean) != e.dim {
		return nil, fmt.Errorf("%w: mean length %d, want %d", ErrDimension, len(mean), e.dim)
	}

	blocks := make([]*mat.Dense, len(e.sizes))
	for b, s := range e.sizes {
		lo := e.offs[b]
		var x mat.Matrix = coeffs.Slice(0, n, lo, lo+s)
		if b == 0 {
			centered := mat.DenseCopyOf(x)
			for i := 0; i < n; i++ {
				row := centered.RawRowView(i)
				for j := 0; j < s; j++ {
					row[j] -= mean[lo+j]
				}
			}
			x = centered
		}

		blocks[b] = mat.NewDense(s, s, nil)
		blocks[b].Mul(x.T(), x)
		blocks[b].Scale(1/float64(n), blocks[b])
	}
	return blkdiag.New(blocks...)
}
