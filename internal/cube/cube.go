// Public domain.

// Package cube defines the read-only spectral cube the fitter consumes.
//
// Readers for instrument files live outside this module.  They deliver
// spectra already calibrated and ordered by wavelength.
package cube

import (
	"encoding/gob"
	"fmt"
	"math"
	"os"

	"github.com/soniakeys/unit"
)

// Missing marks an intensity sample with no data.
const Missing = -100

// Spectrum is the observed profile at one spatial position.
type Spectrum struct {
	Wave      []float64
	Intensity []float64
	Error     []float64
	Bad       bool // whole spectrum flagged by the provider
}

// Valid reports whether sample i can contribute to a fit.
func (s Spectrum) Valid(i int) bool {
	v, e := s.Intensity[i], s.Error[i]
	return v != Missing && e > 0 &&
		!math.IsNaN(v) && !math.IsInf(v, 0) &&
		!math.IsInf(e, 0) && !math.IsNaN(s.Wave[i])
}

// Usable reports whether the spectrum has any valid sample and is not
// flagged bad.
func (s Spectrum) Usable() bool {
	if s.Bad || len(s.Wave) == 0 ||
		len(s.Intensity) != len(s.Wave) || len(s.Error) != len(s.Wave) {
		return false
	}
	for i := range s.Wave {
		if s.Valid(i) {
			return true
		}
	}
	return false
}

// Window returns the samples of s with wavelength inside [wmin, wmax].
// An empty or inverted range returns s unchanged.
func (s Spectrum) Window(wmin, wmax float64) Spectrum {
	if !(wmax > wmin) {
		return s
	}
	lo, hi := len(s.Wave), 0
	for i, w := range s.Wave {
		if w >= wmin && w <= wmax {
			if i < lo {
				lo = i
			}
			hi = i + 1
		}
	}
	if lo >= hi {
		return Spectrum{Bad: true}
	}
	return Spectrum{
		Wave:      s.Wave[lo:hi],
		Intensity: s.Intensity[lo:hi],
		Error:     s.Error[lo:hi],
		Bad:       s.Bad,
	}
}

// Meta carries the cube metadata read by the fitting core.  Aux holds
// provider fields the core never interprets.
type Meta struct {
	CentralWave float64
	Units       string
	Window      int
	LineID      string
	XScale      unit.Angle // per raster step
	YScale      unit.Angle // per pixel along the slit
	BadMask     [][]bool   // [iy][ix], optional
	Aux         map[string]string
}

// Cube is the observed data source, addressed by (iy, ix).  NWave is the
// number of samples in each spectrum.
type Cube interface {
	Dims() (ny, nx int)
	NWave() int
	Spectrum(iy, ix int) Spectrum
	Meta() Meta
}

// MemCube is an in-memory Cube.  Every spectrum has the same number of
// samples.
type MemCube struct {
	ny, nx, nwave int
	spectra       []Spectrum // row major, iy*nx + ix
	meta          Meta
}

// NewMemCube allocates a cube with every spectrum flagged bad.
func NewMemCube(ny, nx, nwave int) *MemCube {
	c := &MemCube{ny: ny, nx: nx, nwave: nwave,
		spectra: make([]Spectrum, ny*nx)}
	for i := range c.spectra {
		c.spectra[i].Bad = true
	}
	return c
}

func (c *MemCube) Dims() (ny, nx int) { return c.ny, c.nx }
func (c *MemCube) NWave() int         { return c.nwave }
func (c *MemCube) Meta() Meta         { return c.meta }

// SetMeta replaces the cube metadata.
func (c *MemCube) SetMeta(m Meta) { c.meta = m }

// Spectrum returns the spectrum at (iy, ix), applying the metadata bad
// mask.
func (c *MemCube) Spectrum(iy, ix int) Spectrum {
	s := c.spectra[iy*c.nx+ix]
	if m := c.meta.BadMask; m != nil && m[iy][ix] {
		s.Bad = true
	}
	return s
}

// Set stores s at (iy, ix).
func (c *MemCube) Set(iy, ix int, s Spectrum) error {
	if len(s.Wave) != c.nwave || len(s.Intensity) != c.nwave ||
		len(s.Error) != c.nwave {
		return fmt.Errorf("spectrum at (%d,%d) has %d/%d/%d samples, want %d",
			iy, ix, len(s.Wave), len(s.Intensity), len(s.Error), c.nwave)
	}
	c.spectra[iy*c.nx+ix] = s
	return nil
}

// Ext is the conventional extension of cube files.
const Ext = ".cube.gob"

// file format tag for WriteFile / ReadFile
const fileTag = "specfit cube 1"

// WriteFile saves the cube as a gob stream.
func (c *MemCube) WriteFile(fn string) (err error) {
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	enc := gob.NewEncoder(f)
	for _, v := range []interface{}{fileTag, c.ny, c.nx, c.nwave, &c.meta, c.spectra} {
		if err = enc.Encode(v); err != nil {
			return fmt.Errorf("%s: %w", fn, err)
		}
	}
	return nil
}

// ReadFile loads a cube written by WriteFile.
func ReadFile(fn string) (*MemCube, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec := gob.NewDecoder(f)
	var tag string
	if err = dec.Decode(&tag); err != nil {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
	if tag != fileTag {
		return nil, fmt.Errorf("%s: not a cube file", fn)
	}
	var c MemCube
	for _, v := range []interface{}{&c.ny, &c.nx, &c.nwave, &c.meta, &c.spectra} {
		if err = dec.Decode(v); err != nil {
			return nil, fmt.Errorf("%s: %w", fn, err)
		}
	}
	if len(c.spectra) != c.ny*c.nx {
		return nil, fmt.Errorf("%s: %d spectra for %dx%d cube",
			fn, len(c.spectra), c.ny, c.nx)
	}
	return &c, nil
}
