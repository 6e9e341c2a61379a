package covar

import (
	"fmt"

	"github.com/cwbudde/algo-cryoem/blkdiag"
	"github.com/cwbudde/algo-vecmath"
	"gonum.org/v1/gonum/mat"
)

// groups holds the per-filter-group image index lists. The accumulator per
// group is a fixed-size slice indexed by group id.
type groups struct {
	members [][]int
	weights []float64 // group size / total
}

func (e *Estimator) splitGroups(n int, filters []*blkdiag.BlockDiag, groupIdx []int) (*groups, error) {
	k := len(filters)
	if k == 0 {
		return nil, fmt.Errorf("%w: no filter groups", ErrEmptyGroup)
	}
	if len(groupIdx) != n {
		return nil, fmt.Errorf("%w: %d group indices for %d images", ErrDimension, len(groupIdx), n)
	}
	for g, f := range filters {
		fs := f.BlockSizes()
		if len(fs) != len(e.sizes) {
			return nil, fmt.Errorf("%w: filter %d has %d blocks, want %d", ErrDimension, g, len(fs), len(e.sizes))
		}
		for b := range fs {
			if fs[b] != e.sizes[b] {
				return nil, fmt.Errorf("%w: filter %d block %d has size %d, want %d",
					ErrDimension, g, b, fs[b], e.sizes[b])
			}
		}
	}

	gs := &groups{
		members: make([][]int, k),
		weights: make([]float64, k),
	}
	for i, g := range groupIdx {
		if g < 0 || g >= k {
			return nil, fmt.Errorf("%w: image %d has group %d of %d", ErrGroupIndex, i, g, k)
		}
		gs.members[g] = append(gs.members[g], i)
	}
	for g, m := range gs.members {
		if len(m) == 0 {
			return nil, fmt.Errorf("%w: group %d", ErrEmptyGroup, g)
		}
		gs.weights[g] = float64(len(m)) / float64(n)
	}
	return gs, nil
}

// gatherRows copies the listed coefficient rows into a dense scratch matrix.
func gatherRows(coeffs *mat.Dense, rows []int, dim int) *mat.Dense {
	out := mat.NewDense(len(rows), dim, nil)
	for i, r := range rows {
		copy(out.RawRowView(i), coeffs.RawRowView(r))
	}
	return out
}

// MeanCTF estimates the symmetric mean from CTF-corrupted coefficients.
// Symmetry supports the mean on the zero-frequency block alone, so only that
// block is estimated: per group k with filter block F_k it accumulates the
// filtered group means and solves the normal equations
//
//	(Σ_k w_k F_kᵀ F_k) · mean = Σ_k w_k F_kᵀ · mean_k
//
// with w_k the group weight. The remaining components are exact zeros. A
// singular design matrix yields ErrSingularBlock unless the pseudo-inverse
// fallback is configured.
func (e *Estimator) MeanCTF(coeffs *mat.Dense, filters []*blkdiag.BlockDiag, groupIdx []int) ([]float64, error) {
	n, err := e.checkCoeffs(coeffs)
	if err != nil {
		return nil, err
	}
	gs, err := e.splitGroups(n, filters, groupIdx)
	if err != nil {
		return nil, err
	}

	s0 := e.sizes[0]
	design := mat.NewDense(s0, s0, nil)
	rhs := make([]float64, s0)
	groupMean := make([]float64, s0)

	for g, members := range gs.members {
		for j := range groupMean {
			groupMean[j] = 0
		}
		for _, r := range members {
			vecmath.AddBlockInPlace(groupMean, coeffs.RawRowView(r)[:s0])
		}
		vecmath.ScaleBlock(groupMean, groupMean, 1/float64(len(members)))

		f0 := filters[g].Block(0)
		w := gs.weights[g]
		for i := 0; i < s0; i++ {
			var v float64
			for j := 0; j < s0; j++ {
				v += f0.At(j, i) * groupMean[j]
			}
			rhs[i] += w * v
		}

		var ftf mat.Dense
		ftf.Mul(f0.T(), f0)
		ftf.Scale(w, &ftf)
		design.Add(design, &ftf)
	}

	system, err := blkdiag.New(design)
	if err != nil {
		return nil, err
	}
	sol, err := system.SolveVec(rhs, e.cfg.solveOptions()...)
	if err != nil {
		return nil, fmt.Errorf("covar: mean: %w", err)
	}

	mean := make([]float64, e.dim)
	copy(mean, sol)
	return mean, nil
}

// CovarCTF estimates the block-diagonal covariance of the clean coefficients
// from CTF-corrupted, noisy coefficients. Per group it forms the empirical
// second moment of the filter-centered coefficients, debiases the diagonal of
// every block by noiseVar, conjugates by the group filter, and solves the
// per-block normal equations
//
//	Σ_k w_k (F_kᵀF_k) · Σ · (F_kᵀF_k) = Σ_k w_k F_kᵀ (M_k − noiseVar·I) F_k
//
// exactly, as a Kronecker-product linear system per block. The result may
// carry small negative eigenvalues from the noise subtraction; no clipping
// is applied.
func (e *Estimator) CovarCTF(coeffs *mat.Dense, filters []*blkdiag.BlockDiag, groupIdx []int,
	mean []float64, noiseVar float64,
) (*blkdiag.BlockDiag, error) {
	n, err := e.checkCoeffs(coeffs)
	if err != nil {
		return nil, err
	}
	if len(mean) != e.dim {
		return nil, fmt.Errorf("%w: mean length %d, want %d", ErrDimension, len(mean), e.dim)
	}
	if noiseVar < 0 {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidNoiseVar, noiseVar)
	}
	gs, err := e.splitGroups(n, filters, groupIdx)
	if err != nil {
		return nil, err
	}

	nb := len(e.sizes)
	rhs, err := blkdiag.Zeros(e.sizes)
	if err != nil {
		return nil, err
	}
	// Per-block normal matrices of the Kronecker systems.
	normal := make([]*mat.Dense, nb)
	for b, s := range e.sizes {
		normal[b] = mat.NewDense(s*s, s*s, nil)
	}

	for g, members := range gs.members {
		fm, err := filters[g].Apply(mean)
		if err != nil {
			return nil, err
		}

		y := gatherRows(coeffs, members, e.dim)
		for i := 0; i < len(members); i++ {
			row := y.RawRowView(i)
			for j := range row {
				row[j] -= fm[j]
			}
		}

		w := gs.weights[g]
		nk := float64(len(members))
		for b, s := range e.sizes {
			lo := e.offs[b]
			yb := y.Slice(0, len(members), lo, lo+s)

			// Empirical second moment, noise-debiased on the diagonal.
			m := mat.NewDense(s, s, nil)
			m.Mul(yb.T(), yb)
			m.Scale(1/nk, m)
			for j := 0; j < s; j++ {
				m.Set(j, j, m.At(j, j)-noiseVar)
			}

			fb := filters[g].Block(b)
			var proj mat.Dense
			proj.Mul(fb.T(), m)
			proj.Mul(&proj, fb)
			proj.Scale(w, &proj)
			rhs.Block(b).Add(rhs.Block(b), &proj)

			var ftf mat.Dense
			ftf.Mul(fb.T(), fb)
			accumulateConjugation(normal[b], &ftf, w)
		}
	}

	blocks := make([]*mat.Dense, nb)
	for b, s := range e.sizes {
		solved, err := e.solveConjugation(normal[b], rhs.Block(b), s, b)
		if err != nil {
			return nil, err
		}
		// Symmetrize; the exact solution is symmetric, floating point is not.
		for i := 0; i < s; i++ {
			for j := i + 1; j < s; j++ {
				v := 0.5 * (solved.At(i, j) + solved.At(j, i))
				solved.Set(i, j, v)
				solved.Set(j, i, v)
			}
		}
		blocks[b] = solved
	}
	return blkdiag.New(blocks...)
}

// accumulateConjugation adds w times the matrix of the linear map X ↦ A·X·A
// (rows and columns indexed by row-major vec) into dst.
func accumulateConjugation(dst *mat.Dense, a *mat.Dense, w float64) {
	s, _ := a.Dims()
	for i := 0; i < s; i++ {
		for j := 0; j < s; j++ {
			row := i*s + j
			for p := 0; p < s; p++ {
				aip := a.At(i, p)
				if aip == 0 {
					continue
				}
				for q := 0; q < s; q++ {
					dst.Set(row, p*s+q, dst.At(row, p*s+q)+w*aip*a.At(q, j))
				}
			}
		}
	}
}

// solveConjugation solves the vectorized per-block system normal·vec(Σ) =
// vec(rhs) under the estimator's singularity policy.
func (e *Estimator) solveConjugation(normal, rhs *mat.Dense, s, blockIdx int) (*mat.Dense, error) {
	vec := make([]float64, s*s)
	for i := 0; i < s; i++ {
		for j := 0; j < s; j++ {
			vec[i*s+j] = rhs.At(i, j)
		}
	}

	system, err := blkdiag.New(normal)
	if err != nil {
		return nil, err
	}
	sol, err := system.SolveVec(vec, e.cfg.solveOptions()...)
	if err != nil {
		return nil, fmt.Errorf("covar: covariance block %d: %w", blockIdx, err)
	}
	return mat.NewDense(s, s, sol), nil
}
