package fb

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-cryoem/internal/grid"
	"gonum.org/v1/gonum/mat"
)

// Errors returned by basis construction and evaluation.
var (
	ErrInvalidSize      = errors.New("fb: grid size must be at least 2")
	ErrInvalidBandlimit = errors.New("fb: bandlimit must be in (0, 0.5]")
	ErrLength           = errors.New("fb: input length does not match basis")
)

// Config holds basis construction settings.
type Config struct {
	// Bandlimit is the radial frequency cutoff in cycles per pixel.
	Bandlimit float64
}

// Option mutates a Config.
type Option func(*Config)

// DefaultConfig returns the default basis settings (Nyquist bandlimit).
func DefaultConfig() Config {
	return Config{Bandlimit: 0.5}
}

// WithBandlimit sets the radial frequency cutoff in cycles per pixel.
func WithBandlimit(c float64) Option {
	return func(cfg *Config) {
		cfg.Bandlimit = c
	}
}

// Basis is a Fourier-Bessel basis on a size×size pixel grid.
type Basis struct {
	size   int
	ellMax int
	// zeros[ell] lists the retained Bessel zeros R_{ell,k}.
	zeros [][]float64
	// sizes is the block-size sequence; orders holds each block's angular
	// frequency (0, 1, 1, 2, 2, ...).
	sizes  []int
	orders []int
	dim    int

	polar *grid.Polar
	// mtx has one column per basis function, rows indexed by in-disk pixels.
	mtx *mat.Dense
}

// New constructs the basis for a size×size grid.
func New(size int, opts ...Option) (*Basis, error) {
	if size < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSize, size)
	}
	cfg := DefaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.Bandlimit <= 0 || cfg.Bandlimit > 0.5 {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidBandlimit, cfg.Bandlimit)
	}

	b := &Basis{
		size:  size,
		polar: grid.NewPolar(size),
	}

	// Retain (ell, k) while the Bessel zero stays below the angular cutoff
	// 2π·bandlimit·(size/2) of the disk. The first zero of J_ell exceeds
	// ell, so orders at or beyond the cutoff retain nothing and the scan
	// is finite.
	limit := 2 * math.Pi * cfg.Bandlimit * float64(size) / 2
	for ell := 0; float64(ell) < limit; ell++ {
		zeros := besselZeros(ell, limit)
		if len(zeros) == 0 {
			break
		}
		b.zeros = append(b.zeros, zeros)
		b.ellMax = ell

		if ell == 0 {
			b.sizes = append(b.sizes, len(zeros))
			b.orders = append(b.orders, 0)
		} else {
			b.sizes = append(b.sizes, len(zeros), len(zeros))
			b.orders = append(b.orders, ell, ell)
		}
	}
	for _, s := range b.sizes {
		b.dim += s
	}
	if b.dim == 0 {
		return nil, fmt.Errorf("%w: %g retains no basis functions at size %d", ErrInvalidBandlimit, cfg.Bandlimit, size)
	}

	b.buildMatrix()
	return b, nil
}

// buildMatrix samples every basis function on the in-disk pixels.
func (b *Basis) buildMatrix() {
	npix := len(b.polar.Inside)
	b.mtx = mat.NewDense(npix, b.dim, nil)

	a := float64(b.size) / 2
	col := 0
	for blk, ell := range b.orders {
		sin := blk > 0 && b.orders[blk-1] == ell // second block of this ell
		for _, root := range b.zeros[ell] {
			// Unit L² normalization over the disk.
			norm := 1 / (a * math.Abs(math.Jn(ell+1, root)) * math.Sqrt(math.Pi))
			if ell > 0 {
				norm *= math.Sqrt2
			}

			for row, idx := range b.polar.Inside {
				radial := math.Jn(ell, root*b.polar.R[idx])
				var angular float64
				switch {
				case ell == 0:
					angular = 1
				case sin:
					angular = math.Sin(float64(ell) * b.polar.Theta[idx])
				default:
					angular = math.Cos(float64(ell) * b.polar.Theta[idx])
				}
				b.mtx.Set(row, col, norm*radial*angular)
			}
			col++
		}
	}
}

// Size returns the pixel grid size.
func (b *Basis) Size() int { return b.size }

// Dim returns the number of basis coefficients.
func (b *Basis) Dim() int { return b.dim }

// BlockSizes returns the angular-frequency block-size sequence.
func (b *Basis) BlockSizes() []int {
	out := make([]int, len(b.sizes))
	copy(out, b.sizes)
	return out
}

// BlockOrders returns the angular frequency of each block. The zero order
// appears once; every higher order appears twice (cosine, then sine).
func (b *Basis) BlockOrders() []int {
	out := make([]int, len(b.orders))
	copy(out, b.orders)
	return out
}

// Evaluate maps a coefficient vector to a size×size image (row-major, zero
// outside the disk).
func (b *Basis) Evaluate(coeffs []float64) ([]float64, error) {
	if len(coeffs) != b.dim {
		return nil, fmt.Errorf("%w: got %d coefficients, want %d", ErrLength, len(coeffs), b.dim)
	}
	var inside mat.VecDense
	inside.MulVec(b.mtx, mat.NewVecDense(b.dim, coeffs))

	img := make([]float64, b.size*b.size)
	for row, idx := range b.polar.Inside {
		img[idx] = inside.AtVec(row)
	}
	return img, nil
}

// EvaluateT maps an image to coefficients by the adjoint of Evaluate. For
// this nearly orthonormal basis the adjoint closely approximates the exact
// expansion; use Expand for the least-squares solution.
func (b *Basis) EvaluateT(img []float64) ([]float64, error) {
	if len(img) != b.size*b.size {
		return nil, fmt.Errorf("%w: got %d pixels, want %d", ErrLength, len(img), b.size*b.size)
	}
	inside := make([]float64, len(b.polar.Inside))
	for row, idx := range b.polar.Inside {
		inside[row] = img[idx]
	}
	var coeffs mat.VecDense
	coeffs.MulVec(b.mtx.T(), mat.NewVecDense(len(inside), inside))

	out := make([]float64, b.dim)
	copy(out, coeffs.RawVector().Data)
	return out, nil
}

// Expand maps an image to the least-squares coefficient estimate, solving
// argmin_c ||B·c - img|| over the in-disk pixels.
func (b *Basis) Expand(img []float64) ([]float64, error) {
	if len(img) != b.size*b.size {
		return nil, fmt.Errorf("%w: got %d pixels, want %d", ErrLength, len(img), b.size*b.size)
	}
	inside := make([]float64, len(b.polar.Inside))
	for row, idx := range b.polar.Inside {
		inside[row] = img[idx]
	}

	var sol mat.Dense
	if err := sol.Solve(b.mtx, mat.NewDense(len(inside), 1, inside)); err != nil {
		return nil, fmt.Errorf("fb: expansion solve failed: %w", err)
	}
	out := make([]float64, b.dim)
	for i := range out {
		out[i] = sol.At(i, 0)
	}
	return out, nil
}

// ExpandBatch applies Expand to every row of imgs (one image per row),
// solving a single least-squares system for the whole stack.
func (b *Basis) ExpandBatch(imgs *mat.Dense) (*mat.Dense, error) {
	n, d := imgs.Dims()
	if d != b.size*b.size {
		return nil, fmt.Errorf("%w: got %d pixels, want %d", ErrLength, d, b.size*b.size)
	}
	npix := len(b.polar.Inside)
	rhs := mat.NewDense(npix, n, nil)
	for i := 0; i < n; i++ {
		src := imgs.RawRowView(i)
		for row, idx := range b.polar.Inside {
			rhs.Set(row, i, src[idx])
		}
	}

	var sol mat.Dense
	if err := sol.Solve(b.mtx, rhs); err != nil {
		return nil, fmt.Errorf("fb: expansion solve failed: %w", err)
	}
	coeffs := mat.NewDense(n, b.dim, nil)
	coeffs.Copy(sol.T())
	return coeffs, nil
}

// EvaluateBatch applies Evaluate to every row of coeffs (one image per row).
func (b *Basis) EvaluateBatch(coeffs *mat.Dense) (*mat.Dense, error) {
	n, d := coeffs.Dims()
	if d != b.dim {
		return nil, fmt.Errorf("%w: got %d coefficients, want %d", ErrLength, d, b.dim)
	}
	var inside mat.Dense
	inside.Mul(coeffs, b.mtx.T())

	imgs := mat.NewDense(n, b.size*b.size, nil)
	for i := 0; i < n; i++ {
		dst := imgs.RawRowView(i)
		src := inside.RawRowView(i)
		for row, idx := range b.polar.Inside {
			dst[idx] = src[row]
		}
	}
	return imgs, nil
}

// EvaluateTBatch applies EvaluateT to every row of imgs (one image per row).
func (b *Basis) EvaluateTBatch(imgs *mat.Dense) (*mat.Dense, error) {
	n, d := imgs.Dims()
	if d != b.size*b.size {
		return nil, fmt.Errorf("%w: got %d pixels, want %d", ErrLength, d, b.size*b.size)
	}
	npix := len(b.polar.Inside)
	inside := mat.NewDense(n, npix, nil)
	for i := 0; i < n; i++ {
		src := imgs.RawRowView(i)
		dst := inside.RawRowView(i)
		for row, idx := range b.polar.Inside {
			dst[row] = src[idx]
		}
	}

	coeffs := mat.NewDense(n, b.dim, nil)
	coeffs.Mul(inside, b.mtx)
	return coeffs, nil
}
