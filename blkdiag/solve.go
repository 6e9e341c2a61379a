package blkdiag

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// DefaultCondLimit is the condition-number threshold beyond which a block is
// treated as numerically singular.
const DefaultCondLimit = 1e14

// SolveConfig controls the singularity policy of Solve and Inverse.
type SolveConfig struct {
	CondLimit     float64
	PseudoInverse bool
}

// SolveOption mutates a SolveConfig.
type SolveOption func(*SolveConfig)

// DefaultSolveConfig returns the default policy: no pseudo-inverse fallback,
// condition limit DefaultCondLimit.
func DefaultSolveConfig() SolveConfig {
	return SolveConfig{CondLimit: DefaultCondLimit}
}

// WithCondLimit sets the condition-number limit for singularity detection.
func WithCondLimit(limit float64) SolveOption {
	return func(cfg *SolveConfig) {
		if limit > 0 {
			cfg.CondLimit = limit
		}
	}
}

// WithPseudoInverse enables or disables the truncated-SVD fallback for
// singular blocks.
func WithPseudoInverse(enable bool) SolveOption {
	return func(cfg *SolveConfig) {
		cfg.PseudoInverse = enable
	}
}

// ApplySolveOptions applies zero or more options to the default config.
func ApplySolveOptions(opts ...SolveOption) SolveConfig {
	cfg := DefaultSolveConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// solveBlock solves a·x = b by SVD, writing into dst. Singular values below
// smax/condLimit are treated as zero; whether that is an error or a
// pseudo-inverse truncation is decided by the config.
func solveBlock(dst *mat.Dense, a, b *mat.Dense, cfg SolveConfig, blockIdx int) error {
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return fmt.Errorf("%w: block %d: SVD failed to converge", ErrSingularBlock, blockIdx)
	}

	vals := svd.Values(nil)
	smax := vals[0]
	smin := vals[len(vals)-1]
	if smax == 0 {
		if !cfg.PseudoInverse {
			return fmt.Errorf("%w: block %d is zero", ErrSingularBlock, blockIdx)
		}
		_, ac := a.Dims()
		_, bc := b.Dims()
		dst.ReuseAs(ac, bc)
		dst.Zero()
		return nil
	}

	tol := smax / cfg.CondLimit
	if smin <= tol && !cfg.PseudoInverse {
		return fmt.Errorf("%w: block %d: condition number %.3g exceeds limit %.3g",
			ErrSingularBlock, blockIdx, smax/smin, cfg.CondLimit)
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	// x = V · diag(w) · Uᵀ · b with w_i = 1/s_i for retained singular values.
	var t mat.Dense
	t.Mul(u.T(), b)
	for i, s := range vals {
		w := 0.0
		if s > tol {
			w = 1 / s
		}
		row := t.RawRowView(i)
		for j := range row {
			row[j] *= w
		}
	}
	dst.Mul(&v, &t)
	return nil
}

// Solve solves A·X = B blockwise and returns X. A's blocks must be square
// and shaped compatibly with B's blocks.
func (m *BlockDiag) Solve(b *BlockDiag, opts ...SolveOption) (*BlockDiag, error) {
	cfg := ApplySolveOptions(opts...)
	if len(m.blocks) != len(b.blocks) {
		return nil, fmt.Errorf("%w: %d vs %d blocks", ErrShapeMismatch, len(m.blocks), len(b.blocks))
	}
	out := make([]*mat.Dense, len(m.blocks))
	for i := range m.blocks {
		ar, ac := m.blocks[i].Dims()
		br, _ := b.blocks[i].Dims()
		if ar != ac {
			return nil, fmt.Errorf("%w: block %d is %dx%d", ErrNotSquare, i, ar, ac)
		}
		if ar != br {
			return nil, fmt.Errorf("%w: block %d rows %d vs %d", ErrShapeMismatch, i, ar, br)
		}
		out[i] = &mat.Dense{}
		if err := solveBlock(out[i], m.blocks[i], b.blocks[i], cfg, i); err != nil {
			return nil, err
		}
	}
	return &BlockDiag{blocks: out}, nil
}

// SolveVec solves A·x = b blockwise for a vector b partitioned by the block
// row sizes.
func (m *BlockDiag) SolveVec(b []float64, opts ...SolveOption) ([]float64, error) {
	cfg := ApplySolveOptions(opts...)
	rows, cols := m.Dims()
	if rows != cols {
		return nil, fmt.Errorf("%w: matrix is %dx%d", ErrNotSquare, rows, cols)
	}
	if len(b) != rows {
		return nil, fmt.Errorf("%w: vector length %d, matrix rows %d", ErrShapeMismatch, len(b), rows)
	}
	x := make([]float64, rows)
	off := 0
	for i, blk := range m.blocks {
		br, _ := blk.Dims()
		rhs := mat.NewDense(br, 1, b[off:off+br])
		var sol mat.Dense
		if err := solveBlock(&sol, blk, rhs, cfg, i); err != nil {
			return nil, err
		}
		for j := 0; j < br; j++ {
			x[off+j] = sol.At(j, 0)
		}
		off += br
	}
	return x, nil
}

// Inverse returns A⁻¹ blockwise. With the pseudo-inverse fallback enabled,
// singular blocks are replaced by their Moore-Penrose pseudo-inverse and all
// other blocks are inverted exactly.
func (m *BlockDiag) Inverse(opts ...SolveOption) (*BlockDiag, error) {
	for i, b := range m.blocks {
		r, c := b.Dims()
		if r != c {
			return nil, fmt.Errorf("%w: block %d is %dx%d", ErrNotSquare, i, r, c)
		}
	}
	id, err := Eye(m.BlockSizes())
	if err != nil {
		return nil, err
	}
	return m.Solve(id, opts...)
}
