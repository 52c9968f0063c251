// Public domain.

// Package fitresult holds the per-pixel outcome of a fit run over a cube,
// derived views of it, and its binary file format.
package fitresult

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/soniakeys/unit"
	"gonum.org/v1/gonum/floats"

	"github.com/soniakeys/specfit/internal/fittemplate"
	"github.com/soniakeys/specfit/internal/profile"
	"github.com/soniakeys/specfit/spectral"
)

// Status classifies the outcome of one pixel fit.
type Status int8

const (
	StatusFailed    Status = -1 // solver failure, sentinel values stored
	StatusSkipped   Status = 0  // bad or missing data, not fitted
	StatusConverged Status = 1
	StatusMaxIter   Status = 5 // iteration limit, values stored
)

func (s Status) String() string {
	switch s {
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	case StatusConverged:
		return "converged"
	case StatusMaxIter:
		return "max-iter"
	}
	return fmt.Sprintf("Status(%d)", int8(s))
}

// OK reports whether the cell holds fitted values.
func (s Status) OK() bool { return s == StatusConverged || s == StatusMaxIter }

// Coord addresses a cell.
type Coord struct{ Y, X int }

// Cell is the result for one pixel.
type Cell struct {
	Status Status
	Chi2   float64
	DOF    int
	Params []float64
	Perror []float64
	Int    []float64 // per Gaussian
	ErrInt []float64
	Wave   []float64 // native wavelength sampling of the spectrum
	Msg    string    // diagnostic, not persisted
}

// Result is the fit outcome over an NY by NX grid.
//
// Arrays are flat, row major over (iy, ix), with the per-cell dimension
// last.  Cells that were skipped or failed hold NaN.
type Result struct {
	NY, NX, NWave int
	Template      *fittemplate.Template
	Units         string
	XScale        unit.Angle
	YScale        unit.Angle
	RunID         string
	Created       time.Time

	Status []Status
	Chi2   []float64
	DOF    []int32
	Params []float64 // NY*NX*NParams
	Perror []float64
	Int    []float64 // NY*NX*NGauss
	ErrInt []float64
	Wave   []float64 // NY*NX*NWave
}

// New allocates a result with every cell skipped and all values NaN.
func New(t *fittemplate.Template, ny, nx, nwave int) *Result {
	n := ny * nx
	r := &Result{
		NY: ny, NX: nx, NWave: nwave,
		Template: t,
		RunID:    uuid.NewString(),
		Created:  time.Now().UTC(),
		Status:   make([]Status, n),
		Chi2:     nanSlice(n),
		DOF:      make([]int32, n),
		Params:   nanSlice(n * t.NParams()),
		Perror:   nanSlice(n * t.NParams()),
		Int:      nanSlice(n * t.NGauss),
		ErrInt:   nanSlice(n * t.NGauss),
		Wave:     nanSlice(n * nwave),
	}
	return r
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

// NGauss, NPoly and NParams come from the template.
func (r *Result) NGauss() int  { return r.Template.NGauss }
func (r *Result) NPoly() int   { return r.Template.NPoly }
func (r *Result) NParams() int { return r.Template.NParams() }

// Component is the parameter index to component mapping.
func (r *Result) Component() []int { return r.Template.Components() }

// ParamNames names each parameter.
func (r *Result) ParamNames() []string { return r.Template.ParamNames() }

func (r *Result) index(iy, ix int) int {
	if iy < 0 || iy >= r.NY || ix < 0 || ix >= r.NX {
		panic(fmt.Sprintf("fitresult: cell (%d,%d) outside %dx%d grid",
			iy, ix, r.NY, r.NX))
	}
	return iy*r.NX + ix
}

// Set replaces the cell at (iy, ix) with c.  Cells that are not OK are
// stored as sentinels whatever values c carries.  The wavelengths of c
// are stored for every status; where c has none, or fewer than NWave,
// the rest of the row is NaN.
func (r *Result) Set(iy, ix int, c Cell) {
	i := r.index(iy, ix)
	np, ng := r.NParams(), r.NGauss()
	r.Status[i] = c.Status
	w := r.Wave[i*r.NWave : (i+1)*r.NWave]
	fill(w[copy(w, c.Wave):], math.NaN())
	if !c.Status.OK() {
		r.Chi2[i] = math.NaN()
		r.DOF[i] = 0
		fill(r.Params[i*np:(i+1)*np], math.NaN())
		fill(r.Perror[i*np:(i+1)*np], math.NaN())
		fill(r.Int[i*ng:(i+1)*ng], math.NaN())
		fill(r.ErrInt[i*ng:(i+1)*ng], math.NaN())
		return
	}
	r.Chi2[i] = c.Chi2
	r.DOF[i] = int32(c.DOF)
	copy(r.Params[i*np:(i+1)*np], c.Params)
	copy(r.Perror[i*np:(i+1)*np], c.Perror)
	copy(r.Int[i*ng:(i+1)*ng], c.Int)
	copy(r.ErrInt[i*ng:(i+1)*ng], c.ErrInt)
}

func fill(s []float64, v float64) {
	for i := range s {
		s[i] = v
	}
}

// Cell returns a copy of the cell at (iy, ix).
func (r *Result) Cell(iy, ix int) Cell {
	i := r.index(iy, ix)
	np, ng := r.NParams(), r.NGauss()
	cp := func(s []float64) []float64 { return append([]float64(nil), s...) }
	return Cell{
		Status: r.Status[i],
		Chi2:   r.Chi2[i],
		DOF:    int(r.DOF[i]),
		Params: cp(r.Params[i*np : (i+1)*np]),
		Perror: cp(r.Perror[i*np : (i+1)*np]),
		Int:    cp(r.Int[i*ng : (i+1)*ng]),
		ErrInt: cp(r.ErrInt[i*ng : (i+1)*ng]),
		Wave:   cp(r.Wave[i*r.NWave : (i+1)*r.NWave]),
	}
}

// ReducedChi2 is chi2/dof per cell, NaN where undefined.
func (r *Result) ReducedChi2() []float64 {
	rc := make([]float64, len(r.Chi2))
	for i, c := range r.Chi2 {
		if r.DOF[i] > 0 {
			rc[i] = c / float64(r.DOF[i])
		} else {
			rc[i] = math.NaN()
		}
	}
	return rc
}

// Counts tallies cell statuses.
type Counts struct {
	Converged, MaxIter, Skipped, Failed int
}

// Summary counts the cells by status.
func (r *Result) Summary() (c Counts) {
	for _, s := range r.Status {
		switch s {
		case StatusConverged:
			c.Converged++
		case StatusMaxIter:
			c.MaxIter++
		case StatusSkipped:
			c.Skipped++
		default:
			c.Failed++
		}
	}
	return
}

// FitProfile reconstructs model curves for the listed components (nil for
// all) at each coordinate (nil for every cell, row major).
//
// With numWave <= 0 the curve is evaluated at the native wavelengths of
// the cell, otherwise at numWave evenly spaced points spanning the
// template wavelength range, or the stored wavelengths when the template
// gives none.  Excluded components are zeroed, nothing is refitted.
// Cells without fitted values yield NaN intensities.
func (r *Result) FitProfile(components []int, coords []Coord, numWave int) (wave, intens [][]float64, err error) {
	ng := r.NGauss()
	for _, c := range components {
		if c < 0 || c > ng {
			return nil, nil, fmt.Errorf("component %d outside [0,%d]", c, ng)
		}
	}
	if coords == nil {
		coords = make([]Coord, 0, r.NY*r.NX)
		for iy := 0; iy < r.NY; iy++ {
			for ix := 0; ix < r.NX; ix++ {
				coords = append(coords, Coord{iy, ix})
			}
		}
	}
	var grid []float64
	if numWave > 0 {
		wmin, wmax := r.Template.Range()
		if !(wmax > wmin) {
			wmin, wmax = r.waveSpan()
			if !(wmax > wmin) {
				return nil, nil, fmt.Errorf("no wavelength range for %d points", numWave)
			}
		}
		grid = make([]float64, numWave)
		if numWave == 1 {
			grid[0] = (wmin + wmax) / 2
		} else {
			floats.Span(grid, wmin, wmax)
		}
	}
	l := r.Template.Layout()
	np := r.NParams()
	wave = make([][]float64, len(coords))
	intens = make([][]float64, len(coords))
	for k, c := range coords {
		if c.Y < 0 || c.Y >= r.NY || c.X < 0 || c.X >= r.NX {
			return nil, nil, fmt.Errorf("coordinate (%d,%d) outside %dx%d grid",
				c.Y, c.X, r.NY, r.NX)
		}
		i := c.Y*r.NX + c.X
		if grid != nil {
			wave[k] = append([]float64(nil), grid...)
		} else {
			wave[k] = append([]float64(nil), r.Wave[i*r.NWave:(i+1)*r.NWave]...)
		}
		if !r.Status[i].OK() {
			intens[k] = nanSlice(len(wave[k]))
			continue
		}
		p := profile.Mask(l, r.Params[i*np:(i+1)*np], components)
		intens[k] = profile.Eval(l, p, wave[k], nil)
	}
	return wave, intens, nil
}

// waveSpan is the extent of the stored wavelengths, ignoring NaN.
func (r *Result) waveSpan() (wmin, wmax float64) {
	wmin, wmax = math.Inf(1), math.Inf(-1)
	for _, w := range r.Wave {
		if !math.IsNaN(w) {
			wmin = math.Min(wmin, w)
			wmax = math.Max(wmax, w)
		}
	}
	return
}

// GetParams returns the named parameter of a component over the grid,
// with its uncertainty.
func (r *Result) GetParams(component int, name string) (vals, errs []float64, err error) {
	j := r.Template.ParamIndex(component, name)
	if j < 0 {
		return nil, nil, fmt.Errorf("no parameter %q for component %d", name, component)
	}
	np := r.NParams()
	n := r.NY * r.NX
	vals = make([]float64, n)
	errs = make([]float64, n)
	for i := 0; i < n; i++ {
		vals[i] = r.Params[i*np+j]
		errs[i] = r.Perror[i*np+j]
	}
	return
}

// Measurements accepted by GetMap.
const (
	MeasureInt  = "int"
	MeasureVel  = "vel"
	MeasureWid  = "wid"
	MeasureFWHM = "fwhm"
	MeasureChi2 = "chi2"
)

// GetMap returns a derived quantity of a Gaussian component over the grid:
// integrated intensity, Doppler velocity relative to the template center
// of the component, width, FWHM, or reduced chi-square of the whole fit.
func (r *Result) GetMap(component int, measurement string) (vals, errs []float64, err error) {
	ng := r.NGauss()
	if measurement == MeasureChi2 {
		return r.ReducedChi2(), make([]float64, r.NY*r.NX), nil
	}
	if component < 0 || component >= ng {
		return nil, nil, fmt.Errorf("component %d is not a Gaussian (n_gauss %d)",
			component, ng)
	}
	n := r.NY * r.NX
	switch measurement {
	case MeasureInt:
		vals = make([]float64, n)
		errs = make([]float64, n)
		for i := 0; i < n; i++ {
			vals[i] = r.Int[i*ng+component]
			errs[i] = r.ErrInt[i*ng+component]
		}
		return
	case MeasureVel:
		rest := r.Template.Center(component)
		vals, errs, _ = r.GetParams(component, "centroid")
		for i := range vals {
			vals[i] = spectral.Velocity(vals[i], rest)
			errs[i] = spectral.VelocityErr(errs[i], rest)
		}
		return
	case MeasureWid:
		return r.GetParams(component, "width")
	case MeasureFWHM:
		vals, errs, _ = r.GetParams(component, "width")
		for i := range vals {
			vals[i] = spectral.FWHM(vals[i])
			errs[i] = spectral.FWHM(errs[i])
		}
		return
	}
	return nil, nil, fmt.Errorf("unknown measurement %q", measurement)
}
