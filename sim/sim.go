// Package sim generates synthetic cryo-EM particle images: projections of a
// random volume under random orientations, distorted by per-group CTF
// filters and additive white noise at a target signal-to-noise ratio.
package sim

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/algo-cryoem/ctf"
	"github.com/cwbudde/algo-cryoem/internal/fft2d"
	"gonum.org/v1/gonum/mat"
)

// Errors returned by simulation construction and sampling.
var (
	ErrInvalidParam = errors.New("sim: invalid simulation parameter")
	ErrOutOfRange   = errors.New("sim: requested image range out of bounds")
)

// chunkSize bounds the number of images materialized at once while scanning
// the whole dataset (e.g. for the signal-power pass).
const chunkSize = 256

// Config holds simulation settings.
type Config struct {
	Blobs int     // number of Gaussian blobs in the volume
	Seed  int64   // seed for volume, orientations and noise
	SNR   float64 // signal-to-noise ratio of the noisy images
}

// Option mutates a Config.
type Option func(*Config)

// DefaultConfig returns the default simulation settings.
func DefaultConfig() Config {
	return Config{Blobs: 12, Seed: 0, SNR: 1}
}

// WithBlobs sets the number of Gaussian blobs making up the volume.
func WithBlobs(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.Blobs = n
		}
	}
}

// WithSeed sets the random seed.
func WithSeed(seed int64) Option {
	return func(cfg *Config) {
		cfg.Seed = seed
	}
}

// WithSNR sets the signal-to-noise ratio of the noisy images.
func WithSNR(snr float64) Option {
	return func(cfg *Config) {
		if snr > 0 {
			cfg.SNR = snr
		}
	}
}

// blob is an isotropic 3D Gaussian. Positions and widths are in pixels
// relative to the grid center.
type blob struct {
	cx, cy, cz float64
	sigma      float64
	amp        float64
}

// Simulation is a deterministic synthetic particle source. Images within a
// dataset share one volume; each image gets its own orientation, one of K
// CTF filters assigned round-robin, and white Gaussian noise.
type Simulation struct {
	size    int
	n       int
	cfg     Config
	blobs   []blob
	rots    [][9]float64 // row-major 3×3 rotation per image
	filters []*ctf.Radial
	grids   [][]float64 // CTF evaluated on the centered Fourier grid, per filter
	groups  []int
	plan    *fft2d.Plan

	noiseVar float64
}

// New creates a simulation of n size×size images using the given CTF
// defocus-group filters. The noise variance is fixed so that the dataset's
// mean filtered-signal power over noise power equals the configured SNR.
func New(size, n int, filters []*ctf.Radial, opts ...Option) (*Simulation, error) {
	if size < 2 || size%2 != 0 {
		return nil, fmt.Errorf("%w: size %d (must be even and at least 2)", ErrInvalidParam, size)
	}
	if n <= 0 {
		return nil, fmt.Errorf("%w: image count %d", ErrInvalidParam, n)
	}
	if len(filters) == 0 {
		return nil, fmt.Errorf("%w: no CTF filters", ErrInvalidParam)
	}

	cfg := DefaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	plan, err := fft2d.NewPlan(size)
	if err != nil {
		return nil, fmt.Errorf("sim: %w", err)
	}

	s := &Simulation{
		size:    size,
		n:       n,
		cfg:     cfg,
		filters: filters,
		groups:  make([]int, n),
		plan:    plan,
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	s.buildVolume(rng)
	s.buildRotations(rng)

	for i := range s.groups {
		s.groups[i] = i % len(filters)
	}
	s.grids = make([][]float64, len(filters))
	for k, f := range filters {
		s.grids[k] = f.EvaluateGrid(size)
	}

	// One pass over the filtered clean images fixes the noise level.
	power, err := s.signalPower()
	if err != nil {
		return nil, err
	}
	s.noiseVar = power / cfg.SNR

	return s, nil
}

func (s *Simulation) buildVolume(rng *rand.Rand) {
	a := float64(s.size) / 2
	s.blobs = make([]blob, s.cfg.Blobs)
	for i := range s.blobs {
		// Centers inside half the particle radius keep projections inside
		// the disk support for every orientation.
		s.blobs[i] = blob{
			cx:    (rng.Float64()*2 - 1) * 0.4 * a,
			cy:    (rng.Float64()*2 - 1) * 0.4 * a,
			cz:    (rng.Float64()*2 - 1) * 0.4 * a,
			sigma: (0.08 + 0.1*rng.Float64()) * a,
			amp:   0.5 + rng.Float64(),
		}
	}
}

func (s *Simulation) buildRotations(rng *rand.Rand) {
	s.rots = make([][9]float64, s.n)
	for i := range s.rots {
		s.rots[i] = randomRotation(rng)
	}
}

// randomRotation draws a uniform rotation matrix from a random unit
// quaternion.
func randomRotation(rng *rand.Rand) [9]float64 {
	var q [4]float64
	var norm float64
	for norm == 0 {
		for i := range q {
			q[i] = rng.NormFloat64()
		}
		norm = math.Sqrt(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3])
	}
	w, x, y, z := q[0]/norm, q[1]/norm, q[2]/norm, q[3]/norm

	return [9]float64{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y),
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x),
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y),
	}
}

// Size returns the pixel grid size.
func (s *Simulation) Size() int { return s.size }

// Len returns the number of images in the dataset.
func (s *Simulation) Len() int { return s.n }

// NoiseVariance returns the white-noise variance applied to the images.
func (s *Simulation) NoiseVariance() float64 { return s.noiseVar }

// FilterIndex returns the CTF group index of every image.
func (s *Simulation) FilterIndex() []int {
	out := make([]int, s.n)
	copy(out, s.groups)
	return out
}

// Filters returns the per-group CTF filters.
func (s *Simulation) Filters() []*ctf.Radial { return s.filters }

func (s *Simulation) checkRange(start, count int) error {
	if start < 0 || count < 0 || start+count > s.n {
		return fmt.Errorf("%w: [%d, %d) of %d", ErrOutOfRange, start, start+count, s.n)
	}
	return nil
}

// CleanImages returns the noiseless, unfiltered projections for the index
// range [start, start+count), one image per row.
func (s *Simulation) CleanImages(start, count int) (*mat.Dense, error) {
	if err := s.checkRange(start, count); err != nil {
		return nil, err
	}
	out := mat.NewDense(count, s.size*s.size, nil)
	for i := 0; i < count; i++ {
		s.project(start+i, out.RawRowView(i))
	}
	return out, nil
}

// project renders the analytic projection of the blob volume under the
// image's orientation. A rotated isotropic Gaussian projects to an isotropic
// 2D Gaussian at the rotated center.
func (s *Simulation) project(idx int, dst []float64) {
	r := &s.rots[idx]
	c := float64(s.size-1) / 2

	for i := range dst {
		dst[i] = 0
	}
	for _, bl := range s.blobs {
		px := r[0]*bl.cx + r[1]*bl.cy + r[2]*bl.cz
		py := r[3]*bl.cx + r[4]*bl.cy + r[5]*bl.cz
		amp := bl.amp * bl.sigma * math.Sqrt(2*math.Pi)
		inv := 1 / (2 * bl.sigma * bl.sigma)

		for y := 0; y < s.size; y++ {
			dy := float64(y) - c - py
			for x := 0; x < s.size; x++ {
				dx := float64(x) - c - px
				dst[y*s.size+x] += amp * math.Exp(-(dx*dx+dy*dy)*inv)
			}
		}
	}
}

// applyCTF filters an image in place with its group's CTF by pointwise
// multiplication on the centered Fourier grid.
func (s *Simulation) applyCTF(idx int, img []float64) error {
	spec := make([]complex128, len(img))
	if err := s.plan.ForwardReal(spec, img); err != nil {
		return fmt.Errorf("sim: %w", err)
	}
	g := s.grids[s.groups[idx]]
	for i := range spec {
		spec[i] *= complex(g[i], 0)
	}
	if err := s.plan.InverseReal(img, spec); err != nil {
		return fmt.Errorf("sim: %w", err)
	}
	return nil
}

// FilteredImages returns the CTF-filtered, noiseless images for the range.
func (s *Simulation) FilteredImages(start, count int) (*mat.Dense, error) {
	imgs, err := s.CleanImages(start, count)
	if err != nil {
		return nil, err
	}
	for i := 0; i < count; i++ {
		if err := s.applyCTF(start+i, imgs.RawRowView(i)); err != nil {
			return nil, err
		}
	}
	return imgs, nil
}

// Images returns the CTF-filtered images with white Gaussian noise at the
// configured SNR. Noise is a pure function of the seed and image index, so
// overlapping ranges return identical pixels.
func (s *Simulation) Images(start, count int) (*mat.Dense, error) {
	imgs, err := s.FilteredImages(start, count)
	if err != nil {
		return nil, err
	}
	sigma := math.Sqrt(s.noiseVar)
	for i := 0; i < count; i++ {
		rng := rand.New(rand.NewSource(s.cfg.Seed ^ int64(0x9e3779b9*(start+i+1))))
		row := imgs.RawRowView(i)
		for j := range row {
			row[j] += sigma * rng.NormFloat64()
		}
	}
	return imgs, nil
}

// signalPower returns the mean squared pixel value of the filtered clean
// dataset, scanned in chunks.
func (s *Simulation) signalPower() (float64, error) {
	var sum float64
	for start := 0; start < s.n; start += chunkSize {
		count := chunkSize
		if start+count > s.n {
			count = s.n - start
		}
		imgs, err := s.FilteredImages(start, count)
		if err != nil {
			return 0, err
		}
		for i := 0; i < count; i++ {
			for _, v := range imgs.RawRowView(i) {
				sum += v * v
			}
		}
	}
	return sum / float64(s.n*s.size*s.size), nil
}
