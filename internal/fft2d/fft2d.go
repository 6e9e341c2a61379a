// Package fft2d implements centered two-dimensional FFTs by row-column
// application of one-dimensional plans.
package fft2d

import (
	"errors"
	"fmt"

	algofft "github.com/MeKo-Christian/algo-fft"
)

// Errors returned by 2D FFT construction and execution.
var (
	ErrOddSize    = errors.New("fft2d: size must be even")
	ErrSizeLength = errors.New("fft2d: data length does not match plan size")
)

// Plan computes centered 2D FFTs of size×size images.
//
// "Centered" means the zero frequency is located at (size/2, size/2) of the
// output, matching the centered frequency-grid convention used for radial
// filters. Centering is implemented with the (-1)^(i+j) modulation identity,
// which is exact for even sizes only.
type Plan struct {
	size int
	plan *algofft.Plan[complex128]
	col  []complex128
}

// NewPlan creates a centered 2D FFT plan for even size×size images.
func NewPlan(size int) (*Plan, error) {
	if size <= 0 || size%2 != 0 {
		return nil, fmt.Errorf("%w: got %d", ErrOddSize, size)
	}

	plan, err := algofft.NewPlan64(size)
	if err != nil {
		return nil, fmt.Errorf("fft2d: failed to create FFT plan: %w", err)
	}

	return &Plan{
		size: size,
		plan: plan,
		col:  make([]complex128, size),
	}, nil
}

// Size returns the plan's grid size.
func (p *Plan) Size() int { return p.size }

// Forward computes the centered 2D DFT of src into dst. Both must have
// length size*size; in-place transforms (dst == src) are allowed.
func (p *Plan) Forward(dst, src []complex128) error {
	return p.transform(dst, src, p.plan.Forward)
}

// Inverse computes the centered 2D inverse DFT of src into dst. The inverse
// is normalized so that Inverse(Forward(x)) == x.
func (p *Plan) Inverse(dst, src []complex128) error {
	return p.transform(dst, src, p.plan.Inverse)
}

func (p *Plan) transform(dst, src []complex128, apply func(dst, src []complex128) error) error {
	n := p.size
	if len(src) != n*n || len(dst) != n*n {
		return fmt.Errorf("%w: want %d", ErrSizeLength, n*n)
	}

	// Checkerboard modulation shifts the origin to the grid center.
	modulate(dst, src, n)

	// Rows.
	for i := 0; i < n; i++ {
		row := dst[i*n : (i+1)*n]
		if err := apply(row, row); err != nil {
			return fmt.Errorf("fft2d: row transform failed: %w", err)
		}
	}

	// Columns.
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			p.col[i] = dst[i*n+j]
		}
		if err := apply(p.col, p.col); err != nil {
			return fmt.Errorf("fft2d: column transform failed: %w", err)
		}
		for i := 0; i < n; i++ {
			dst[i*n+j] = p.col[i]
		}
	}

	modulate(dst, dst, n)

	return nil
}

func modulate(dst, src []complex128, n int) {
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			idx := i*n + j
			if (i+j)%2 == 0 {
				dst[idx] = src[idx]
			} else {
				dst[idx] = -src[idx]
			}
		}
	}
}

// ForwardReal transforms a real image into its centered spectrum.
func (p *Plan) ForwardReal(dst []complex128, src []float64) error {
	n := p.size
	if len(src) != n*n {
		return fmt.Errorf("%w: want %d", ErrSizeLength, n*n)
	}
	for i, v := range src {
		dst[i] = complex(v, 0)
	}
	return p.Forward(dst, dst)
}

// InverseReal transforms a centered spectrum back to a real image,
// discarding the residual imaginary part.
func (p *Plan) InverseReal(dst []float64, src []complex128) error {
	n := p.size
	if len(dst) != n*n {
		return fmt.Errorf("%w: want %d", ErrSizeLength, n*n)
	}
	tmp := make([]complex128, n*n)
	if err := p.Inverse(tmp, src); err != nil {
		return err
	}
	for i, v := range tmp {
		dst[i] = real(v)
	}
	return nil
}
