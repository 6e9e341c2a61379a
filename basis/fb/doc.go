// Package fb implements a direct Fourier-Bessel (steerable) basis for square
// images supported on the inscribed disk.
//
// Basis functions are indexed by angular frequency ell and radial order k,
//
//	f(r, θ) = N · J_ell(R_{ell,k} · r) · {cos(ellθ), sin(ellθ)},
//
// where R_{ell,k} is the k-th positive zero of the Bessel function J_ell and
// N normalizes the function to unit L² norm over the disk. The basis is
// bandlimited: the pair (ell, k) is included only while R_{ell,k} stays below
// the Nyquist cutoff of the pixel grid.
//
// Coefficients are ordered block-major by angular frequency: the ell = 0
// block first, then a cosine and a sine block for each ell ≥ 1. Under this
// ordering the covariance of rotationally and reflectionally symmetric image
// ensembles is block diagonal, which is what makes the basis useful for
// covariance estimation.
//
// # Usage
//
//	basis, _ := fb.New(64)
//
//	coeffs, _ := basis.ExpandBatch(images) // least squares: images -> coefficients
//	backProj, _ := basis.EvaluateBatch(coeffs) // coefficients -> images
//
//	hFB, _ := basis.ExpandRadialFilter(filt.EvaluateK) // radial filter -> block-diagonal matrix
package fb
