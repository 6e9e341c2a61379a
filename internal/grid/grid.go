// Package grid provides centered coordinate grids and disk masks shared by
// the basis, filter and noise-estimation packages.
package grid

import "math"

// Polar holds precomputed polar coordinates for a centered size×size grid.
// Pixels are indexed row-major (i*Size + j) with i the row (y) and j the
// column (x). Radii are normalized so the inscribed disk has radius 1.
type Polar struct {
	Size int

	// R is the normalized radius per pixel.
	R []float64
	// Theta is the polar angle per pixel, atan2(y, x).
	Theta []float64
	// Mask marks pixels inside the inscribed disk (R < 1).
	Mask []bool
	// Inside lists the indices of masked pixels in row-major order.
	Inside []int
}

// NewPolar builds the polar coordinate tables for a size×size grid.
func NewPolar(size int) *Polar {
	n := size * size
	p := &Polar{
		Size:  size,
		R:     make([]float64, n),
		Theta: make([]float64, n),
		Mask:  make([]bool, n),
	}

	c := float64(size-1) / 2
	radius := float64(size) / 2

	for i := 0; i < size; i++ {
		y := float64(i) - c
		for j := 0; j < size; j++ {
			x := float64(j) - c
			idx := i*size + j
			p.R[idx] = math.Hypot(x, y) / radius
			p.Theta[idx] = math.Atan2(y, x)
			if p.R[idx] < 1 {
				p.Mask[idx] = true
				p.Inside = append(p.Inside, idx)
			}
		}
	}

	return p
}

// FreqRadii returns the centered radial frequency magnitude per pixel of a
// size×size Fourier grid, in cycles per pixel. The DC component sits at
// index (size/2, size/2) for even sizes.
func FreqRadii(size int) []float64 {
	r := make([]float64, size*size)
	half := size / 2
	for i := 0; i < size; i++ {
		fy := float64(i-half) / float64(size)
		for j := 0; j < size; j++ {
			fx := float64(j-half) / float64(size)
			r[i*size+j] = math.Hypot(fx, fy)
		}
	}
	return r
}
