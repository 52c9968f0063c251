// Public domain.

// Package profile evaluates the Gaussian plus polynomial line profile model
// and its weighted residual against an observed spectrum.
//
// Parameters are laid out as NGauss triples (peak, centroid, width)
// followed by NPoly background coefficients, constant term first.  A
// Gaussian component is peak * exp(-((λ-centroid)/width)²).
package profile

import (
	"math"

	"github.com/soniakeys/specfit/internal/cube"
)

// Layout describes the component structure of a parameter vector.
type Layout struct {
	NGauss, NPoly int
}

// NParams is the length of a parameter vector for the layout.
func (l Layout) NParams() int { return 3*l.NGauss + l.NPoly }

// Background is the component index of the polynomial background.
func (l Layout) Background() int { return l.NGauss }

// Gaussian evaluates a single Gaussian term at x.  A zero width
// contributes nothing.
func Gaussian(peak, centroid, width, x float64) float64 {
	if width == 0 {
		return 0
	}
	z := (x - centroid) / width
	return peak * math.Exp(-z*z)
}

// Poly evaluates the background polynomial c[0] + c[1]x + c[2]x² ... at x.
func Poly(c []float64, x float64) float64 {
	var y float64
	for k := len(c) - 1; k >= 0; k-- {
		y = y*x + c[k]
	}
	return y
}

// Eval evaluates the model with parameters p at each wavelength, writing
// the result to dst.  dst is allocated if nil.
func Eval(l Layout, p, wave, dst []float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(wave))
	}
	bg := p[3*l.NGauss : 3*l.NGauss+l.NPoly]
	for i, x := range wave {
		y := Poly(bg, x)
		for g := 0; g < l.NGauss; g++ {
			y += Gaussian(p[3*g], p[3*g+1], p[3*g+2], x)
		}
		dst[i] = y
	}
	return dst
}

// Residual computes (observed - model) / uncertainty into dst for each
// sample of s.  Samples with no positive uncertainty, missing intensity, or
// non-finite values contribute zero and are not counted.  The number of
// contributing samples is returned.
func Residual(l Layout, p []float64, s cube.Spectrum, dst []float64) (n int) {
	bg := p[3*l.NGauss : 3*l.NGauss+l.NPoly]
	for i, x := range s.Wave {
		if !s.Valid(i) {
			dst[i] = 0
			continue
		}
		y := Poly(bg, x)
		for g := 0; g < l.NGauss; g++ {
			y += Gaussian(p[3*g], p[3*g+1], p[3*g+2], x)
		}
		dst[i] = (s.Intensity[i] - y) / s.Error[i]
		n++
	}
	return
}

// Mask returns a copy of p with the amplitudes of every component not
// listed in keep set to zero.  Gaussian k is component k, the background
// is component NGauss.  A nil keep keeps everything.
func Mask(l Layout, p []float64, keep []int) []float64 {
	q := append([]float64(nil), p...)
	if keep == nil {
		return q
	}
	in := make([]bool, l.NGauss+1)
	for _, c := range keep {
		if c >= 0 && c < len(in) {
			in[c] = true
		}
	}
	for g := 0; g < l.NGauss; g++ {
		if !in[g] {
			q[3*g] = 0
		}
	}
	if !in[l.NGauss] {
		for k := 0; k < l.NPoly; k++ {
			q[3*l.NGauss+k] = 0
		}
	}
	return q
}

// GaussianArea is the closed form integral of a Gaussian term over all λ.
func GaussianArea(peak, width float64) float64 {
	return peak * math.Abs(width) * math.SqrtPi
}

// GaussianAreaErr propagates independent 1-sigma errors of peak and width
// to the integrated area.
func GaussianAreaErr(peak, width, errPeak, errWidth float64) float64 {
	return math.SqrtPi * math.Hypot(width*errPeak, peak*errWidth)
}
