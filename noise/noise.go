// Package noise estimates the additive white-noise variance of particle
// image stacks from their high-frequency power spectrum.
package noise

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-cryoem/internal/fft2d"
	"github.com/cwbudde/algo-cryoem/internal/grid"
	"github.com/cwbudde/algo-vecmath"
	"gonum.org/v1/gonum/mat"
)

// Errors returned by noise estimation.
var (
	ErrNoImages      = errors.New("noise: image stack is empty")
	ErrImageSize     = errors.New("noise: image length does not match grid size")
	ErrInvalidCutoff = errors.New("noise: cutoff frequency must be in (0, 0.5)")
)

// DefaultCutoff is the lower bound of the frequency band treated as pure
// noise, in cycles per pixel.
const DefaultCutoff = 0.25

// WhiteEstimator estimates a white-noise variance from the mean periodogram
// of an image stack. Frequencies at or above Cutoff are assumed to carry no
// signal; for typical particle images the structure is concentrated well
// below Nyquist, so the outer band is noise dominated.
type WhiteEstimator struct {
	Size   int     // pixel grid size
	Cutoff float64 // noise band lower bound in cycles per pixel
}

// NewWhiteEstimator creates an estimator for size×size images with the
// default noise band.
func NewWhiteEstimator(size int) *WhiteEstimator {
	return &WhiteEstimator{Size: size, Cutoff: DefaultCutoff}
}

// Estimate returns the estimated noise variance from the stack (one image
// per row, row-major pixels). The estimate is a mean of periodogram values
// and therefore never negative.
func (e *WhiteEstimator) Estimate(imgs *mat.Dense) (float64, error) {
	n, d := imgs.Dims()
	if n == 0 {
		return 0, ErrNoImages
	}
	if d != e.Size*e.Size {
		return 0, fmt.Errorf("%w: got %d pixels, want %d", ErrImageSize, d, e.Size*e.Size)
	}
	if e.Cutoff <= 0 || e.Cutoff >= 0.5 {
		return 0, fmt.Errorf("%w: got %g", ErrInvalidCutoff, e.Cutoff)
	}

	plan, err := fft2d.NewPlan(e.Size)
	if err != nil {
		return 0, fmt.Errorf("noise: %w", err)
	}

	npix := e.Size * e.Size
	spec := make([]complex128, npix)
	re := make([]float64, npix)
	im := make([]float64, npix)
	power := make([]float64, npix)
	acc := make([]float64, npix)

	for i := 0; i < n; i++ {
		if err := plan.ForwardReal(spec, imgs.RawRowView(i)); err != nil {
			return 0, fmt.Errorf("noise: %w", err)
		}
		for j, v := range spec {
			re[j] = real(v)
			im[j] = imag(v)
		}
		vecmath.Power(power, re, im)
		vecmath.AddBlockInPlace(acc, power)
	}

	// Mean periodogram, normalized so white noise of variance v yields a
	// flat spectrum at level v.
	vecmath.ScaleBlock(acc, acc, 1/(float64(n)*float64(npix)))

	radii := grid.FreqRadii(e.Size)
	var sum float64
	var count int
	for j, r := range radii {
		if r >= e.Cutoff {
			sum += acc[j]
			count++
		}
	}
	if count == 0 {
		return 0, fmt.Errorf("%w: band above %g is empty", ErrInvalidCutoff, e.Cutoff)
	}
	return sum / float64(count), nil
}
