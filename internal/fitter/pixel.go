// Public domain.

package fitter

import (
	"github.com/soniakeys/specfit/internal/cube"
	"github.com/soniakeys/specfit/internal/fitresult"
	"github.com/soniakeys/specfit/internal/fittemplate"
	"github.com/soniakeys/specfit/internal/lmsolver"
	"github.com/soniakeys/specfit/internal/profile"
)

// FitPixel fits template t to one spectrum.
//
// t must be validated and is only read.  The returned cell shares no
// storage with t; it does share s.Wave.  A spectrum that is flagged bad
// or has no valid sample inside the template window is skipped without
// invoking the solver.  Solver failures come back as StatusFailed, never
// as a panic.
func FitPixel(t *fittemplate.Template, s cube.Spectrum, settings lmsolver.Settings) fitresult.Cell {
	c := fitresult.Cell{Status: fitresult.StatusSkipped, Wave: s.Wave}
	if !s.Usable() {
		c.Msg = "no valid samples"
		return c
	}
	ws := s
	if t.WMax > t.WMin {
		ws = s.Window(t.WMin, t.WMax)
	}
	if !ws.Usable() {
		c.Msg = "no valid samples in template window"
		return c
	}
	l := t.Layout()
	r := lmsolver.Solve(lmsolver.Problem{
		ParInfo: t.ScaleGuess(ws),
		M:       len(ws.Wave),
		Residual: func(dst, p []float64) int {
			return profile.Residual(l, p, ws, dst)
		},
	}, settings)
	c.Msg = r.Msg
	switch r.Status {
	case lmsolver.Converged:
		c.Status = fitresult.StatusConverged
	case lmsolver.MaxIter:
		c.Status = fitresult.StatusMaxIter
	default:
		c.Status = fitresult.StatusFailed
		return c
	}
	c.Chi2 = r.Chi2
	c.DOF = r.DOF
	c.Params = r.Params
	c.Perror = r.Perror
	c.Int = make([]float64, t.NGauss)
	c.ErrInt = make([]float64, t.NGauss)
	for g := range c.Int {
		p, w := r.Params[3*g], r.Params[3*g+2]
		c.Int[g] = profile.GaussianArea(p, w)
		c.ErrInt[g] = profile.GaussianAreaErr(p, w, r.Perror[3*g], r.Perror[3*g+2])
	}
	return c
}
