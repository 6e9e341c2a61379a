// Package covar estimates the mean and block-diagonal covariance of particle
// images expressed in a steerable (Fourier-Bessel) basis, with optional
// correction for per-image CTF distortion and additive white noise, and
// derives the Wiener (minimum mean-square-error) coefficient estimator from
// the result.
//
// For a rotationally and reflectionally symmetric image ensemble the
// coefficient covariance is exactly block diagonal over the angular-frequency
// blocks of the basis, and the mean is supported on the zero angular
// frequency alone. The estimators here are constrained accordingly: only the
// diagonal blocks of the covariance are ever formed, and mean components
// outside the zero-frequency block are returned as exact zeros.
//
// # Usage
//
// Coefficient batches hold one image per row. Clean coefficients:
//
//	est, _ := covar.NewEstimator(basis.BlockSizes())
//	mean, _ := est.Mean(coeffs)
//	sigma, _ := est.Covar(coeffs, mean)
//
// CTF-corrupted, noisy coefficients, grouped by filter:
//
//	mean, _ := est.MeanCTF(coeffs, filters, groupIdx)
//	sigma, _ := est.CovarCTF(coeffs, filters, groupIdx, mean, noiseVar)
//	denoised, _ := est.CWFCoeffs(coeffs, filters, groupIdx, mean, sigma, noiseVar)
//
// Noise-variance convention: the additive noise is white in image space and
// the basis is near orthonormal, so the noise carries onto the coefficients
// with unit scaling and noiseVar·I is subtracted from the diagonal of every
// block during covariance debiasing, not only from the zero-frequency block.
// The debiased covariance may carry small negative eigenvalues; no clipping
// is applied here.
package covar
