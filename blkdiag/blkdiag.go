package blkdiag

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// BlockDiag is a block-diagonal matrix stored as its diagonal blocks.
// Blocks may be rectangular; most callers use square blocks sized by the
// angular-frequency subspaces of a steerable basis.
type BlockDiag struct {
	blocks []*mat.Dense
}

// New creates a block-diagonal matrix from the given blocks. The blocks are
// used directly, not copied.
func New(blocks ...*mat.Dense) (*BlockDiag, error) {
	if len(blocks) == 0 {
		return nil, ErrEmpty
	}
	for i, b := range blocks {
		if b == nil {
			return nil, fmt.Errorf("%w: block %d is nil", ErrEmpty, i)
		}
	}
	return &BlockDiag{blocks: blocks}, nil
}

// Zeros returns a block-diagonal matrix of square zero blocks with the given
// size sequence. Every size must be positive.
func Zeros(sizes []int) (*BlockDiag, error) {
	if len(sizes) == 0 {
		return nil, ErrEmpty
	}
	blocks := make([]*mat.Dense, len(sizes))
	for i, s := range sizes {
		if s <= 0 {
			return nil, fmt.Errorf("%w: block %d has size %d", ErrShapeMismatch, i, s)
		}
		blocks[i] = mat.NewDense(s, s, nil)
	}
	return &BlockDiag{blocks: blocks}, nil
}

// Eye returns the block-diagonal identity with the given size sequence.
// Every size must be positive.
func Eye(sizes []int) (*BlockDiag, error) {
	m, err := Zeros(sizes)
	if err != nil {
		return nil, err
	}
	for _, b := range m.blocks {
		r, _ := b.Dims()
		for i := 0; i < r; i++ {
			b.Set(i, i, 1)
		}
	}
	return m, nil
}

// NumBlocks returns the number of diagonal blocks.
func (m *BlockDiag) NumBlocks() int { return len(m.blocks) }

// Block returns the i-th diagonal block. The returned matrix is not a copy.
func (m *BlockDiag) Block(i int) *mat.Dense { return m.blocks[i] }

// BlockSizes returns the row dimension of every block in order.
func (m *BlockDiag) BlockSizes() []int {
	sizes := make([]int, len(m.blocks))
	for i, b := range m.blocks {
		sizes[i], _ = b.Dims()
	}
	return sizes
}

// Dims returns the dimensions of the full (implicitly zero-completed) matrix.
func (m *BlockDiag) Dims() (r, c int) {
	for _, b := range m.blocks {
		br, bc := b.Dims()
		r += br
		c += bc
	}
	return r, c
}

// Clone returns a deep copy.
func (m *BlockDiag) Clone() *BlockDiag {
	blocks := make([]*mat.Dense, len(m.blocks))
	for i, b := range m.blocks {
		blocks[i] = mat.DenseCopyOf(b)
	}
	return &BlockDiag{blocks: blocks}
}

// sameShape reports whether a and b have identical block shape sequences.
func sameShape(a, b *BlockDiag) bool {
	if len(a.blocks) != len(b.blocks) {
		return false
	}
	for i := range a.blocks {
		ar, ac := a.blocks[i].Dims()
		br, bc := b.blocks[i].Dims()
		if ar != br || ac != bc {
			return false
		}
	}
	return true
}

// Add returns the blockwise sum a+b.
func (m *BlockDiag) Add(other *BlockDiag) (*BlockDiag, error) {
	if !sameShape(m, other) {
		return nil, fmt.Errorf("%w: %v vs %v", ErrShapeMismatch, m.BlockSizes(), other.BlockSizes())
	}
	out := make([]*mat.Dense, len(m.blocks))
	for i := range m.blocks {
		r, c := m.blocks[i].Dims()
		out[i] = mat.NewDense(r, c, nil)
		out[i].Add(m.blocks[i], other.blocks[i])
	}
	return &BlockDiag{blocks: out}, nil
}

// Sub returns the blockwise difference a-b.
func (m *BlockDiag) Sub(other *BlockDiag) (*BlockDiag, error) {
	neg := other.Scale(-1)
	return m.Add(neg)
}

// Scale returns c*a blockwise.
func (m *BlockDiag) Scale(c float64) *BlockDiag {
	out := make([]*mat.Dense, len(m.blocks))
	for i, b := range m.blocks {
		r, cols := b.Dims()
		out[i] = mat.NewDense(r, cols, nil)
		out[i].Scale(c, b)
	}
	return &BlockDiag{blocks: out}
}

// Mul returns the blockwise product a·b. The column count of every block of a
// must match the row count of the corresponding block of b.
func (m *BlockDiag) Mul(other *BlockDiag) (*BlockDiag, error) {
	if len(m.blocks) != len(other.blocks) {
		return nil, fmt.Errorf("%w: %d vs %d blocks", ErrShapeMismatch, len(m.blocks), len(other.blocks))
	}
	out := make([]*mat.Dense, len(m.blocks))
	for i := range m.blocks {
		_, ac := m.blocks[i].Dims()
		br, _ := other.blocks[i].Dims()
		if ac != br {
			return nil, fmt.Errorf("%w: block %d inner dims %d vs %d", ErrShapeMismatch, i, ac, br)
		}
		out[i] = &mat.Dense{}
		out[i].Mul(m.blocks[i], other.blocks[i])
	}
	return &BlockDiag{blocks: out}, nil
}

// Transpose returns the blockwise transpose.
func (m *BlockDiag) Transpose() *BlockDiag {
	out := make([]*mat.Dense, len(m.blocks))
	for i, b := range m.blocks {
		r, c := b.Dims()
		out[i] = mat.NewDense(c, r, nil)
		out[i].Copy(b.T())
	}
	return &BlockDiag{blocks: out}
}

// ShiftDiag returns a copy with c added to every diagonal element. Blocks
// must be square.
func (m *BlockDiag) ShiftDiag(c float64) (*BlockDiag, error) {
	out := m.Clone()
	for i, b := range out.blocks {
		r, cols := b.Dims()
		if r != cols {
			return nil, fmt.Errorf("%w: block %d is %dx%d", ErrNotSquare, i, r, cols)
		}
		for j := 0; j < r; j++ {
			b.Set(j, j, b.At(j, j)+c)
		}
	}
	return out, nil
}

// Norm returns the Frobenius norm of the zero-completed matrix, i.e. the
// square root of the summed squared Frobenius norms of the blocks.
func (m *BlockDiag) Norm() float64 {
	var sum float64
	for _, b := range m.blocks {
		f := mat.Norm(b, 2)
		sum += f * f
	}
	return math.Sqrt(sum)
}

// Apply returns y = A·x for a coefficient vector x whose length equals the
// total column dimension of A.
func (m *BlockDiag) Apply(x []float64) ([]float64, error) {
	rows, cols := m.Dims()
	if len(x) != cols {
		return nil, fmt.Errorf("%w: vector length %d, matrix columns %d", ErrShapeMismatch, len(x), cols)
	}
	y := make([]float64, rows)
	ro, co := 0, 0
	for _, b := range m.blocks {
		br, bc := b.Dims()
		xv := mat.NewVecDense(bc, x[co:co+bc])
		yv := mat.NewVecDense(br, y[ro:ro+br])
		yv.MulVec(b, xv)
		ro += br
		co += bc
	}
	return y, nil
}

// ApplyBatch treats every row of x as a coefficient vector and returns the
// matrix whose rows are A applied to the corresponding input rows
// (equivalently x·Aᵀ, computed per block).
func (m *BlockDiag) ApplyBatch(x *mat.Dense) (*mat.Dense, error) {
	n, d := x.Dims()
	rows, cols := m.Dims()
	if d != cols {
		return nil, fmt.Errorf("%w: row length %d, matrix columns %d", ErrShapeMismatch, d, cols)
	}
	out := mat.NewDense(n, rows, nil)
	ro, co := 0, 0
	for _, b := range m.blocks {
		br, bc := b.Dims()
		src := x.Slice(0, n, co, co+bc)
		dst := out.Slice(0, n, ro, ro+br).(*mat.Dense)
		dst.Mul(src, b.T())
		ro += br
		co += bc
	}
	return out, nil
}
