package blkdiag

import "errors"

// Errors returned by block-diagonal operations.
var (
	ErrEmpty         = errors.New("blkdiag: matrix has no blocks")
	ErrShapeMismatch = errors.New("blkdiag: block shape sequences do not match")
	ErrNotSquare     = errors.New("blkdiag: operation requires square blocks")
	ErrSingularBlock = errors.New("blkdiag: block is numerically singular")
)
