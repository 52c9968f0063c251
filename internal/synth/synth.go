// Public domain.

// Package synth builds synthetic spectra and cubes with known line
// parameters and repeatable Gaussian noise.
package synth

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"

	"github.com/soniakeys/specfit/internal/cube"
	"github.com/soniakeys/specfit/internal/fitresult"
	"github.com/soniakeys/specfit/internal/profile"
	"github.com/soniakeys/specfit/spectral"
)

// Line is one Gaussian term, peak*exp(-((λ-Centroid)/Width)²).
type Line struct {
	Peak, Centroid, Width float64
}

// Params lays out lines and background coefficients as a profile
// parameter vector.
func Params(lines []Line, background []float64) []float64 {
	p := make([]float64, 0, 3*len(lines)+len(background))
	for _, l := range lines {
		p = append(p, l.Peak, l.Centroid, l.Width)
	}
	return append(p, background...)
}

// Grid returns n wavelengths evenly spaced over [wmin, wmax], n >= 2.
func Grid(wmin, wmax float64, n int) []float64 {
	return floats.Span(make([]float64, n), wmin, wmax)
}

// Model evaluates the noiseless profile at each wavelength.
func Model(lines []Line, background, wave []float64) []float64 {
	l := profile.Layout{NGauss: len(lines), NPoly: len(background)}
	return profile.Eval(l, Params(lines, background), wave, nil)
}

// Spectrum returns the model plus Gaussian noise of standard deviation
// sigma, with sigma as the uncertainty of every sample.  A nil rnd gives
// the noiseless model.
func Spectrum(lines []Line, background, wave []float64, sigma float64, rnd *rand.Rand) cube.Spectrum {
	s := cube.Spectrum{
		Wave:      append([]float64(nil), wave...),
		Intensity: Model(lines, background, wave),
		Error:     make([]float64, len(wave)),
	}
	for i := range s.Intensity {
		if rnd != nil {
			s.Intensity[i] += sigma * rnd.NormFloat64()
		}
		s.Error[i] = sigma
	}
	return s
}

// NewRand returns a PCG generator.  The same seed gives the same noise.
func NewRand(seed uint64) *rand.Rand {
	r := rand.New(&rand.PCGSource{})
	r.Seed(seed)
	return r
}

// CubeSpec describes a synthetic cube.
type CubeSpec struct {
	NY, NX     int
	Wave       []float64
	Lines      []Line
	Background []float64
	Sigma      float64
	Seed       uint64

	// Velocity, if not nil, Doppler shifts every line at (iy, ix) by the
	// returned km/s.
	Velocity func(iy, ix int) float64

	// Missing pixels have every intensity set to cube.Missing.
	Missing []fitresult.Coord
}

// Cube builds the cube described by cs.  Pixels are generated in row
// major order from a single generator, so the cube depends only on cs.
func Cube(cs CubeSpec) *cube.MemCube {
	c := cube.NewMemCube(cs.NY, cs.NX, len(cs.Wave))
	rnd := NewRand(cs.Seed)
	lines := make([]Line, len(cs.Lines))
	for iy := 0; iy < cs.NY; iy++ {
		for ix := 0; ix < cs.NX; ix++ {
			copy(lines, cs.Lines)
			if cs.Velocity != nil {
				z := 1 + cs.Velocity(iy, ix)/spectral.SpeedOfLight
				for i := range lines {
					lines[i].Centroid *= z
				}
			}
			// Set cannot fail, lengths come from cs.Wave
			c.Set(iy, ix, Spectrum(lines, cs.Background, cs.Wave, cs.Sigma, rnd))
		}
	}
	for _, m := range cs.Missing {
		s := c.Spectrum(m.Y, m.X) // shares sample storage with c
		for i := range s.Intensity {
			s.Intensity[i] = cube.Missing
		}
	}
	var w0, w1 float64
	if len(cs.Wave) > 0 {
		w0, w1 = cs.Wave[0], cs.Wave[len(cs.Wave)-1]
	}
	meta := cube.Meta{CentralWave: (w0 + w1) / 2, Units: "counts"}
	if len(cs.Lines) > 0 {
		meta.CentralWave = cs.Lines[0].Centroid
	}
	c.SetMeta(meta)
	return c
}
