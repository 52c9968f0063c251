// Public domain.

package fittemplate

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/soniakeys/specfit/internal/cube"
	"github.com/soniakeys/specfit/internal/parinfo"
	"github.com/soniakeys/specfit/internal/profile"
)

// ScaleGuess returns a copy of the template parinfo with amplitude-like
// parameters (Gaussian peaks and background coefficients) rescaled so that
// the initial model matches the intensity scale of s.  Centroids and
// widths are not touched.  Values end up inside their limits.
func (t *Template) ScaleGuess(s cube.Spectrum) []parinfo.ParInfo {
	ps := parinfo.Copy(t.ParInfo)
	f := t.scaleFactor(s)
	for i := range ps {
		p := &ps[i]
		if t.amplitude(i) && !p.IsTied() && f != 1 {
			p.Value *= f
			if !p.Fixed {
				p.Limits[0] *= f
				p.Limits[1] *= f
			}
		}
		if !p.IsTied() && !p.Fixed {
			p.Value = p.Clamp(p.Value)
		}
	}
	return ps
}

func (t *Template) amplitude(i int) bool {
	return i >= 3*t.NGauss || i%3 == 0
}

// scaleFactor is the ratio of the data maximum to the initial model
// maximum over the valid samples of s, or 1 when either is not positive.
func (t *Template) scaleFactor(s cube.Spectrum) float64 {
	model := profile.Eval(t.Layout(), parinfo.Values(t.ParInfo), s.Wave, nil)
	var data, mod []float64
	for i := range s.Wave {
		if s.Valid(i) {
			data = append(data, s.Intensity[i])
			mod = append(mod, model[i])
		}
	}
	if len(data) == 0 {
		return 1
	}
	d, m := floats.Max(data), floats.Max(mod)
	f := d / m
	if !(d > 0) || !(m > 0) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 1
	}
	return f
}
