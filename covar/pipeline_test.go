package covar_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/cwbudde/algo-cryoem/basis/fb"
	"github.com/cwbudde/algo-cryoem/blkdiag"
	"github.com/cwbudde/algo-cryoem/covar"
	"github.com/cwbudde/algo-cryoem/ctf"
	"github.com/cwbudde/algo-cryoem/internal/testutil"
	"github.com/cwbudde/algo-cryoem/sim"
	"gonum.org/v1/gonum/mat"
)

// relBlockNorm returns ||a-b|| / ||b|| over block-diagonal matrices.
func relBlockNorm(t *testing.T, a, b *blkdiag.BlockDiag) float64 {
	t.Helper()
	diff, err := a.Sub(b)
	if err != nil {
		t.Fatal(err)
	}
	return diff.Norm() / b.Norm()
}

// TestEstimationConsistency draws coefficients exactly from the generative
// model (block-diagonal signal covariance, per-group filter, white
// coefficient noise) and checks that the CTF-aware estimators converge to
// the truth.
func TestEstimationConsistency(t *testing.T) {
	sizes := []int{4, 3, 3, 2, 2, 1, 1}
	dim := 0
	for _, s := range sizes {
		dim += s
	}
	const (
		n        = 6000
		k        = 3
		noiseVar = 0.5
	)

	// Ground truth: mean on block 0, covariance Σ = G·Gᵀ per block.
	mean := make([]float64, dim)
	copy(mean, []float64{1, -0.5, 2, 0.25})

	factors := make([]*mat.Dense, len(sizes))
	covBlocks := make([]*mat.Dense, len(sizes))
	for b, s := range sizes {
		factors[b] = testutil.GaussianMatrix(100+int64(b), s, s, 1)
		covBlocks[b] = mat.NewDense(s, s, nil)
		covBlocks[b].Mul(factors[b], factors[b].T())
	}
	sigmaTrue, err := blkdiag.New(covBlocks...)
	if err != nil {
		t.Fatal(err)
	}

	// Per-group filters: positive definite and mutually distinct.
	filters := make([]*blkdiag.BlockDiag, k)
	for g := range filters {
		blocks := make([]*mat.Dense, len(sizes))
		for b, s := range sizes {
			blocks[b] = testutil.SPDMatrix(200+int64(10*g+b), s, float64(s))
			blocks[b].Scale(1/float64(s), blocks[b])
		}
		filters[g], err = blkdiag.New(blocks...)
		if err != nil {
			t.Fatal(err)
		}
	}

	// Sample observed coefficients y_i = F_g (m + G z) + noise.
	rng := rand.New(rand.NewSource(99))
	coeffs := mat.NewDense(n, dim, nil)
	cleanAll := mat.NewDense(n, dim, nil)
	groupIdx := make([]int, n)
	z := make([]float64, dim)
	clean := make([]float64, dim)
	for i := 0; i < n; i++ {
		g := i % k
		groupIdx[i] = g

		off := 0
		for b, s := range sizes {
			for j := 0; j < s; j++ {
				z[off+j] = rng.NormFloat64()
			}
			blk := factors[b]
			for r := 0; r < s; r++ {
				v := mean[off+r]
				for c := 0; c < s; c++ {
					v += blk.At(r, c) * z[off+c]
				}
				clean[off+r] = v
			}
			off += s
		}

		copy(cleanAll.RawRowView(i), clean)
		obs, err := filters[g].Apply(clean)
		if err != nil {
			t.Fatal(err)
		}
		row := coeffs.RawRowView(i)
		sd := math.Sqrt(noiseVar)
		for j := range row {
			row[j] = obs[j] + sd*rng.NormFloat64()
		}
	}

	est, err := covar.NewEstimator(sizes, covar.WithPseudoInverse(true))
	if err != nil {
		t.Fatal(err)
	}

	meanEst, err := est.MeanCTF(coeffs, filters, groupIdx)
	if err != nil {
		t.Fatal(err)
	}
	relMean, err := testutil.RelativeNorm(meanEst, mean)
	if err != nil {
		t.Fatal(err)
	}
	if relMean > 0.15 {
		t.Errorf("mean relative error %g, want < 0.15", relMean)
	}

	sigmaEst, err := est.CovarCTF(coeffs, filters, groupIdx, meanEst, noiseVar)
	if err != nil {
		t.Fatal(err)
	}
	if rel := relBlockNorm(t, sigmaEst, sigmaTrue); rel > 0.25 {
		t.Errorf("covariance relative error %g, want < 0.25", rel)
	}

	// The Wiener estimate must beat the raw observation on average.
	denoised, err := est.CWFCoeffs(coeffs, filters, groupIdx, meanEst, sigmaEst, noiseVar)
	if err != nil {
		t.Fatal(err)
	}
	if got, raw := stackNRMSE(denoised, cleanAll), stackNRMSE(coeffs, cleanAll); got >= raw {
		t.Errorf("denoised coefficient NRMSE %g not below raw %g", got, raw)
	}
}

// TestDenoisingPipeline runs the full image-space pipeline on simulated
// 8×8 particles with 7 defocus groups at SNR 1: basis expansion, clean and
// CTF-aware moment estimation, and Wiener denoising.
func TestDenoisingPipeline(t *testing.T) {
	const (
		size   = 8
		n      = 1024
		nGroup = 7
		snr    = 1.0
	)

	base, err := ctf.NewRadial(5, 200, 1.5e4, 2.0, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	filters, err := ctf.DefocusSeries(*base, nGroup, 1.5e4, 2.5e4)
	if err != nil {
		t.Fatal(err)
	}

	src, err := sim.New(size, n, filters, sim.WithSeed(0), sim.WithSNR(snr))
	if err != nil {
		t.Fatal(err)
	}
	basis, err := fb.New(size)
	if err != nil {
		t.Fatal(err)
	}

	cleanImgs, err := src.CleanImages(0, n)
	if err != nil {
		t.Fatal(err)
	}
	noisyImgs, err := src.Images(0, n)
	if err != nil {
		t.Fatal(err)
	}

	// Least-squares expansion, so that the block-diagonal CTF matrices from
	// ExpandRadialFilter describe the corruption of the coefficients.
	coeffClean, err := basis.ExpandBatch(cleanImgs)
	if err != nil {
		t.Fatal(err)
	}
	coeffNoise, err := basis.ExpandBatch(noisyImgs)
	if err != nil {
		t.Fatal(err)
	}

	// Evaluate each CTF in the basis.
	fbFilters := make([]*blkdiag.BlockDiag, nGroup)
	for g, f := range filters {
		fbFilters[g], err = basis.ExpandRadialFilter(f.EvaluateK)
		if err != nil {
			t.Fatal(err)
		}
	}
	groupIdx := src.FilterIndex()
	noiseVar := src.NoiseVariance()

	est, err := covar.NewEstimator(basis.BlockSizes(), covar.WithPseudoInverse(true))
	if err != nil {
		t.Fatal(err)
	}

	// Clean reference estimates.
	meanClean, err := est.Mean(coeffClean)
	if err != nil {
		t.Fatal(err)
	}
	covarClean, err := est.Covar(coeffClean, meanClean)
	if err != nil {
		t.Fatal(err)
	}

	// CTF- and noise-corrected estimates from the corrupted data.
	meanEst, err := est.MeanCTF(coeffNoise, fbFilters, groupIdx)
	if err != nil {
		t.Fatal(err)
	}
	covarEst, err := est.CovarCTF(coeffNoise, fbFilters, groupIdx, meanEst, noiseVar)
	if err != nil {
		t.Fatal(err)
	}

	relMean, err := testutil.RelativeNorm(meanEst, meanClean)
	if err != nil {
		t.Fatal(err)
	}
	if relMean > 0.5 {
		t.Errorf("mean deviation %g, want < 0.5", relMean)
	}
	if rel := relBlockNorm(t, covarEst, covarClean); rel > 0.5 {
		t.Errorf("covariance deviation %g, want < 0.5", rel)
	}

	// Wiener denoising must improve on the raw noisy images.
	coeffEst, err := est.CWFCoeffs(coeffNoise, fbFilters, groupIdx, meanEst, covarEst, noiseVar)
	if err != nil {
		t.Fatal(err)
	}
	denoisedImgs, err := basis.EvaluateBatch(coeffEst)
	if err != nil {
		t.Fatal(err)
	}

	nrmseNoisy := stackNRMSE(noisyImgs, cleanImgs)
	nrmseDenoised := stackNRMSE(denoisedImgs, cleanImgs)
	if nrmseDenoised >= nrmseNoisy {
		t.Errorf("denoised NRMSE %g not below noisy NRMSE %g", nrmseDenoised, nrmseNoisy)
	}
}

// stackNRMSE returns ||got-want|| / ||want|| over whole image stacks.
func stackNRMSE(got, want *mat.Dense) float64 {
	n, d := want.Dims()
	var num, den float64
	for i := 0; i < n; i++ {
		g, w := got.RawRowView(i), want.RawRowView(i)
		for j := 0; j < d; j++ {
			diff := g[j] - w[j]
			num += diff * diff
			den += w[j] * w[j]
		}
	}
	return math.Sqrt(num / den)
}
