package fb

import "math"

// besselZeros returns the positive zeros of J_nu below limit, in increasing
// order. Zeros are bracketed by a fixed-step sign scan (consecutive zeros of
// J_nu are at least π apart, so a 0.1 step cannot skip one) and refined by
// bisection. Only a strict sign change counts as a bracket: J_nu underflows
// to exactly zero near the origin for large nu, and those points are not
// roots.
func besselZeros(nu int, limit float64) []float64 {
	const step = 0.1

	var zeros []float64
	x := 1e-9
	prev := math.Jn(nu, x)
	for x < limit {
		next := x + step
		cur := math.Jn(nu, next)
		if prev*cur < 0 {
			z := bisectJn(nu, x, next)
			if z < limit {
				zeros = append(zeros, z)
			}
		}
		x = next
		prev = cur
	}
	return zeros
}

// bisectJn refines a sign-change bracket [lo, hi] of J_nu to a root.
func bisectJn(nu int, lo, hi float64) float64 {
	flo := math.Jn(nu, lo)
	for i := 0; i < 100 && hi-lo > 1e-13; i++ {
		mid := 0.5 * (lo + hi)
		fmid := math.Jn(nu, mid)
		if fmid == 0 {
			return mid
		}
		if flo*fmid < 0 {
			hi = mid
		} else {
			lo = mid
			flo = fmid
		}
	}
	return 0.5 * (lo + hi)
}
