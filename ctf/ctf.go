// Package ctf models radially symmetric contrast transfer functions of a
// transmission electron microscope, grouped by defocus value.
package ctf

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-cryoem/internal/grid"
)

// Errors returned by filter construction.
var (
	ErrInvalidParam = errors.New("ctf: invalid filter parameter")
)

// Filter is a radially symmetric image-domain transfer function.
//
// EvaluateK evaluates the radial response at spatial frequency k in cycles
// per pixel. EvaluateGrid evaluates the response on a centered size×size
// Fourier grid, row-major, with the zero frequency at (size/2, size/2).
type Filter interface {
	EvaluateK(k float64) float64
	EvaluateGrid(size int) []float64
}

// Radial is a radially symmetric CTF parameterized by microscope optics.
// The sign convention puts positive contrast at the zero frequency.
type Radial struct {
	PixelSize float64 // Å per pixel
	Voltage   float64 // acceleration voltage in kV
	Defocus   float64 // defocus in Å (positive = underfocus)
	Cs        float64 // spherical aberration in mm
	Alpha     float64 // amplitude contrast fraction in [0, 1)
}

// NewRadial validates the optical parameters and returns the filter.
func NewRadial(pixelSize, voltage, defocus, cs, alpha float64) (*Radial, error) {
	switch {
	case pixelSize <= 0:
		return nil, fmt.Errorf("%w: pixel size %g", ErrInvalidParam, pixelSize)
	case voltage <= 0:
		return nil, fmt.Errorf("%w: voltage %g", ErrInvalidParam, voltage)
	case alpha < 0 || alpha >= 1:
		return nil, fmt.Errorf("%w: amplitude contrast %g", ErrInvalidParam, alpha)
	}
	return &Radial{
		PixelSize: pixelSize,
		Voltage:   voltage,
		Defocus:   defocus,
		Cs:        cs,
		Alpha:     alpha,
	}, nil
}

// wavelength returns the relativistic electron wavelength in Å.
func (f *Radial) wavelength() float64 {
	v := f.Voltage * 1e3 // volts
	return 12.2643247 / math.Sqrt(v*(1+v*0.978466e-6))
}

// EvaluateK returns the CTF value at spatial frequency k in cycles per pixel.
func (f *Radial) EvaluateK(k float64) float64 {
	kA := k / f.PixelSize // cycles per Å
	lambda := f.wavelength()
	csA := f.Cs * 1e7 // mm -> Å

	k2 := kA * kA
	gamma := 2 * math.Pi * (0.5*lambda*f.Defocus*k2 - 0.25*csA*lambda*lambda*lambda*k2*k2)

	return math.Sqrt(1-f.Alpha*f.Alpha)*math.Sin(gamma) + f.Alpha*math.Cos(gamma)
}

// EvaluateGrid evaluates the CTF on a centered size×size Fourier grid.
func (f *Radial) EvaluateGrid(size int) []float64 {
	radii := grid.FreqRadii(size)
	out := make([]float64, len(radii))
	for i, r := range radii {
		out[i] = f.EvaluateK(r)
	}
	return out
}

// Identity is the unit filter: it leaves images untouched.
type Identity struct{}

// EvaluateK returns 1 for every frequency.
func (Identity) EvaluateK(float64) float64 { return 1 }

// EvaluateGrid returns a grid of ones.
func (Identity) EvaluateGrid(size int) []float64 {
	out := make([]float64, size*size)
	for i := range out {
		out[i] = 1
	}
	return out
}

// DefocusSeries returns n filters sharing base's optics with defocus values
// evenly spaced over [minDefocus, maxDefocus].
func DefocusSeries(base Radial, n int, minDefocus, maxDefocus float64) ([]*Radial, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: series length %d", ErrInvalidParam, n)
	}
	out := make([]*Radial, n)
	for i := range out {
		d := minDefocus
		if n > 1 {
			d += (maxDefocus - minDefocus) * float64(i) / float64(n-1)
		}
		f := base
		f.Defocus = d
		out[i] = &f
	}
	return out, nil
}
