// Package blkdiag implements dense block-diagonal matrix algebra.
//
// A BlockDiag is an ordered sequence of dense blocks along the diagonal of an
// otherwise zero matrix. The block-size sequence is fixed at construction and
// every operation preserves it; combining two values with different sequences
// is an immediate error rather than a silent broadcast.
//
// The representation targets covariance matrices of steerable-basis
// coefficients, where rotational symmetry forces all cross-block entries to
// zero, so only the diagonal blocks are ever materialized.
//
// # Usage
//
// Build matrices from explicit blocks or from a size sequence, and combine
// them blockwise:
//
//	a, _ := blkdiag.Eye([]int{4, 3, 3})
//	b, _ := blkdiag.New(b0, b1, b2)
//
//	sum, _ := a.Add(b)
//	prod, _ := a.Mul(b)
//	inv, err := b.Inverse(blkdiag.WithPseudoInverse(true))
//
// Solves and inversions are SVD-based. A block whose condition number
// exceeds the configured limit yields ErrSingularBlock, unless the
// pseudo-inverse fallback is enabled, in which case a truncated-SVD
// pseudo-inverse is substituted for that block only.
package blkdiag
