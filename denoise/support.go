package denoise

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-cryoem/internal/fft2d"
	"github.com/cwbudde/algo-cryoem/internal/grid"
	"github.com/cwbudde/algo-vecmath"
	"gonum.org/v1/gonum/mat"
)

// AdaptiveSupport estimates the compact support of a particle stack in both
// domains. It returns the frequency limit cLimit in cycles per pixel and the
// real-space radius rLimit in pixels that each capture at least
// energyThreshold of the noise-corrected signal energy.
//
// The real-space profile is the ring average of the per-pixel variance, the
// frequency profile the ring average of the mean periodogram. The known
// noise floor is subtracted from both before the cumulative energy is
// formed, so the limits track the signal rather than the noise.
func AdaptiveSupport(imgs *mat.Dense, size int, noiseVar, energyThreshold float64) (cLimit float64, rLimit int, err error) {
	if energyThreshold <= 0 || energyThreshold > 1 {
		return 0, 0, fmt.Errorf("%w: got %g", ErrInvalidThreshold, energyThreshold)
	}
	if noiseVar < 0 {
		return 0, 0, fmt.Errorf("%w: got %g", ErrInvalidNoise, noiseVar)
	}
	n, d := imgs.Dims()
	npix := size * size
	if d != npix {
		return 0, 0, fmt.Errorf("%w: got %d pixels, want %d", ErrImageSize, d, npix)
	}
	if size < 4 {
		return 0, 0, fmt.Errorf("%w: grid size %d too small", ErrImageSize, size)
	}

	plan, err := fft2d.NewPlan(size)
	if err != nil {
		return 0, 0, fmt.Errorf("denoise: %w", err)
	}

	spec := make([]complex128, npix)
	re := make([]float64, npix)
	im := make([]float64, npix)
	power := make([]float64, npix)
	varMap := make([]float64, npix)
	specMap := make([]float64, npix)

	for i := 0; i < n; i++ {
		row := imgs.RawRowView(i)
		vecmath.MulBlock(power, row, row)
		vecmath.AddBlockInPlace(varMap, power)

		if err := plan.ForwardReal(spec, row); err != nil {
			return 0, 0, fmt.Errorf("denoise: %w", err)
		}
		for j, v := range spec {
			re[j] = real(v)
			im[j] = imag(v)
		}
		vecmath.Power(power, re, im)
		vecmath.AddBlockInPlace(specMap, power)
	}
	vecmath.ScaleBlock(varMap, varMap, 1/float64(n))
	vecmath.ScaleBlock(specMap, specMap, 1/(float64(n)*float64(npix)))

	// Ring averages over N = size/2 unit-width annuli, with the noise floor
	// removed and clipped at zero. White noise of variance v contributes v
	// per pixel in both maps under the normalizations above.
	rings := size / 2
	polar := grid.NewPolar(size)
	freq := grid.FreqRadii(size)
	radialVar := ringMeans(varMap, polar.R, float64(size)/2, rings, noiseVar)
	radialSpec := ringMeans(specMap, freq, float64(size), rings, noiseVar)

	// Cumulative energy, weighted by the ring radius so each term scales
	// with the area of its annulus.
	cumVar := make([]float64, rings)
	cumSpec := make([]float64, rings)
	var sumVar, sumSpec float64
	for i := 0; i < rings; i++ {
		c := 0.5 * float64(i) / float64(rings-1)
		sumVar += radialVar[i] * float64(i)
		sumSpec += radialSpec[i] * c
		cumVar[i] = sumVar
		cumSpec[i] = sumSpec
	}

	rLimit = firstAbove(cumVar, sumVar, energyThreshold)
	ci := firstAbove(cumSpec, sumSpec, energyThreshold)
	cLimit = 0.5 * float64(ci) / float64(rings-1)
	return cLimit, rLimit, nil
}

// ringMeans averages map values over unit-width annuli. Radii are given
// normalized; scale converts them to pixels. The noise floor is subtracted
// from each ring mean and the result clipped at zero.
func ringMeans(m, radii []float64, scale float64, rings int, noiseVar float64) []float64 {
	sums := make([]float64, rings)
	counts := make([]int, rings)
	for j, r := range radii {
		ring := int(math.Floor(r * scale))
		if ring >= rings {
			continue
		}
		sums[ring] += m[j]
		counts[ring]++
	}
	out := make([]float64, rings)
	for i := range out {
		if counts[i] == 0 {
			continue
		}
		v := sums[i]/float64(counts[i]) - noiseVar
		if v > 0 {
			out[i] = v
		}
	}
	return out
}

// firstAbove returns the first index whose cumulative value exceeds the
// threshold fraction of the total, or the last index when the total is zero
// or the threshold is never reached.
func firstAbove(cum []float64, total, threshold float64) int {
	if total <= 0 {
		return len(cum) - 1
	}
	for i, v := range cum {
		if v/total > threshold {
			return i
		}
	}
	return len(cum) - 1
}
