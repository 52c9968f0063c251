// Public domain.

// Package lmsolver minimizes a sum of squared residuals over constrained
// parameters with a Levenberg-Marquardt iteration.
//
// Parameters come with parinfo constraints.  Fixed and tied parameters are
// kept out of the vector the iteration varies; ties are substituted before
// every residual evaluation; trial steps are projected onto the limits.
package lmsolver

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/soniakeys/specfit/internal/parinfo"
)

// Status is the outcome of Solve.
//
// Converged covers the tolerance tests and also a stall, where no damping
// gives a downhill step.  Parameters held against a limit by the gradient
// are left out of the gradient test and the covariance.
type Status int8

const (
	Failed    Status = -1 // numerical failure, no usable parameters
	Converged Status = 1
	MaxIter   Status = 5 // iteration limit reached, parameters usable
)

func (s Status) String() string {
	switch s {
	case Failed:
		return "failed"
	case Converged:
		return "converged"
	case MaxIter:
		return "max-iter"
	}
	return fmt.Sprintf("Status(%d)", int8(s))
}

// Settings control iteration limits and tolerances.
type Settings struct {
	MaxIter int
	FTol    float64 // relative reduction of chi-square
	XTol    float64 // relative step size
	GTol    float64 // gradient, relative to 1 + chi-square
}

// DefaultSettings returns the settings used when none are configured.
func DefaultSettings() Settings {
	return Settings{MaxIter: 200, FTol: 1e-10, XTol: 1e-10, GTol: 1e-10}
}

// Problem is one least squares problem.
//
// Residual fills dst (length M) for the full parameter vector p and returns
// how many entries actually carry data.  Entries without data must be
// zero.
type Problem struct {
	ParInfo  []parinfo.ParInfo // compiled; Value is the starting point
	M        int
	Residual func(dst, p []float64) int
}

// Result of Solve.  On failure Params and Perror are NaN.
type Result struct {
	Params []float64
	Perror []float64
	Cov    *mat.SymDense // covariance of the free parameters, zero where pegged
	Free   []int         // parameter index of each row of Cov
	Pegged []bool        // per row of Cov, held at a limit
	Chi2   float64
	DOF    int
	NIter  int
	Status Status
	Msg    string
}

// Solve runs the iteration.  It does not panic; any numerical trouble is
// reported as Status Failed with Msg describing it.
func Solve(prob Problem, s Settings) (r Result) {
	n := len(prob.ParInfo)
	defer func() {
		if x := recover(); x != nil {
			r = failed(n, fmt.Sprint(x))
		}
	}()
	w := newWork(prob)
	if w.nf == 0 {
		return w.evaluateOnly()
	}
	if w.count <= w.nf {
		return failed(n, fmt.Sprintf("%d samples for %d free parameters",
			w.count, w.nf))
	}
	if !finite(w.cost) {
		return failed(n, "non-finite residual at starting point")
	}
	status, iter := w.iterate(s)
	return w.finish(status, iter)
}

type work struct {
	prob   Problem
	ps     []parinfo.ParInfo
	free   []int
	nf, m  int
	base   []float64 // full vector, fixed values in place
	lo, hi []float64

	x     []float64 // current free values
	fx    []float64 // residual at x
	cost  float64
	count int

	jac *mat.Dense
	jfd *fd.JacobianSettings
}

func newWork(prob Problem) *work {
	ps := prob.ParInfo
	w := &work{prob: prob, ps: ps, m: prob.M, base: parinfo.Values(ps)}
	for i := range ps {
		if ps[i].IsFree() {
			w.base[i] = ps[i].Clamp(w.base[i])
			w.free = append(w.free, i)
			w.lo = append(w.lo, ps[i].Lower())
			w.hi = append(w.hi, ps[i].Upper())
		}
	}
	w.nf = len(w.free)
	w.x = make([]float64, w.nf)
	for j, i := range w.free {
		w.x[j] = w.base[i]
	}
	parinfo.ApplyTies(ps, w.base)
	w.fx = make([]float64, w.m)
	w.count = prob.Residual(w.fx, w.expand(w.x))
	w.cost = floats.Dot(w.fx, w.fx)
	if w.nf > 0 {
		w.jac = mat.NewDense(w.m, w.nf, nil)
	}
	w.jfd = &fd.JacobianSettings{Formula: fd.Central}
	return w
}

// expand returns the full parameter vector for free values x, ties
// applied.
func (w *work) expand(x []float64) []float64 {
	p := append([]float64(nil), w.base...)
	for j, i := range w.free {
		p[i] = x[j]
	}
	parinfo.ApplyTies(w.ps, p)
	return p
}

func (w *work) resid(dst, x []float64) {
	w.prob.Residual(dst, w.expand(x))
}

// normal computes JᵀJ and Jᵀf at x.
func (w *work) normal(x, fx []float64) (*mat.SymDense, *mat.VecDense) {
	fd.Jacobian(w.jac, w.resid, x, w.jfd)
	a := mat.NewSymDense(w.nf, nil)
	a.SymOuterK(1, w.jac.T())
	g := mat.NewVecDense(w.nf, nil)
	g.MulVec(w.jac.T(), mat.NewVecDense(w.m, fx))
	return a, g
}

func (w *work) iterate(s Settings) (Status, int) {
	if w.cost == 0 {
		return Converged, 0
	}
	lambda := 1e-3
	xn := make([]float64, w.nf)
	fn := make([]float64, w.m)
	for iter := 1; iter <= s.MaxIter; iter++ {
		a, g := w.normal(w.x, w.fx)
		if w.gradNorm(g) <= s.GTol*(1+w.cost) {
			return Converged, iter
		}
		improved := false
		for lambda <= 1e16 {
			step, ok := dampedStep(a, g, lambda)
			if !ok {
				lambda *= 10
				continue
			}
			for j := range xn {
				xn[j] = clamp(w.x[j]+step.AtVec(j), w.lo[j], w.hi[j])
			}
			w.resid(fn, xn)
			cn := floats.Dot(fn, fn)
			if !(finite(cn) && cn < w.cost) {
				lambda *= 10
				continue
			}
			rel := (w.cost - cn) / w.cost
			dx := floats.Distance(xn, w.x, 2)
			copy(w.x, xn)
			copy(w.fx, fn)
			w.cost = cn
			lambda = math.Max(lambda/10, 1e-12)
			improved = true
			if cn == 0 || rel <= s.FTol ||
				dx <= s.XTol*(floats.Norm(w.x, 2)+s.XTol) {
				return Converged, iter
			}
			break
		}
		if !improved {
			// no downhill step at any damping: local minimum
			return Converged, iter
		}
	}
	return MaxIter, s.MaxIter
}

// pegged reports the free parameters sitting on a limit with the descent
// direction pointing out of bounds.
func (w *work) pegged(g *mat.VecDense) []bool {
	p := make([]bool, w.nf)
	for j := range p {
		gj := g.AtVec(j)
		p[j] = w.x[j] <= w.lo[j] && gj > 0 || w.x[j] >= w.hi[j] && gj < 0
	}
	return p
}

// gradNorm is the max norm of g over parameters that are not pegged.
func (w *work) gradNorm(g *mat.VecDense) float64 {
	var m float64
	for j, p := range w.pegged(g) {
		if !p {
			m = math.Max(m, math.Abs(g.AtVec(j)))
		}
	}
	return m
}

// dampedStep solves (A + λ diag(A)) δ = -g.
func dampedStep(a *mat.SymDense, g *mat.VecDense, lambda float64) (*mat.VecDense, bool) {
	n := a.SymmetricDim()
	d := mat.NewSymDense(n, nil)
	d.CopySym(a)
	for i := 0; i < n; i++ {
		aii := a.At(i, i)
		if aii == 0 {
			aii = 1
		}
		d.SetSym(i, i, a.At(i, i)+lambda*aii)
	}
	var chol mat.Cholesky
	if !chol.Factorize(d) {
		return nil, false
	}
	rhs := mat.NewVecDense(n, nil)
	rhs.ScaleVec(-1, g)
	var step mat.VecDense
	if err := chol.SolveVecTo(&step, rhs); err != nil {
		return nil, false
	}
	return &step, true
}

// finish computes the covariance at the solution and packages the result.
func (w *work) finish(status Status, iter int) Result {
	n := len(w.ps)
	a, g := w.normal(w.x, w.fx)
	peg := w.pegged(g)
	var in []int
	for j, p := range peg {
		if !p {
			in = append(in, j)
		}
	}
	cov := mat.NewSymDense(w.nf, nil)
	if len(in) > 0 {
		sub := mat.NewSymDense(len(in), nil)
		for p, jp := range in {
			for q := p; q < len(in); q++ {
				sub.SetSym(p, q, a.At(jp, in[q]))
			}
		}
		var chol mat.Cholesky
		if !chol.Factorize(sub) {
			r := failed(n, "singular normal matrix at solution")
			r.NIter = iter
			return r
		}
		if err := chol.InverseTo(sub); err != nil {
			r := failed(n, err.Error())
			r.NIter = iter
			return r
		}
		for p, jp := range in {
			for q := p; q < len(in); q++ {
				cov.SetSym(jp, in[q], sub.At(p, q))
			}
		}
	}
	r := Result{
		Params: w.expand(w.x),
		Perror: make([]float64, n),
		Cov:    cov,
		Free:   w.free,
		Pegged: peg,
		Chi2:   w.cost,
		DOF:    w.count - w.nf,
		NIter:  iter,
		Status: status,
	}
	scale := math.Sqrt(r.Chi2 / float64(r.DOF))
	for j, i := range w.free {
		r.Perror[i] = math.Sqrt(math.Max(0, cov.At(j, j))) * scale
	}
	// tied parameters: gᵀ C g with g the tie gradient over free parameters
	g = mat.NewVecDense(w.nf, nil)
	for i := range w.ps {
		t := w.ps[i].Tie
		if t == nil {
			continue
		}
		for j, k := range w.free {
			g.SetVec(j, t.Partial(r.Params, k))
		}
		r.Perror[i] = math.Sqrt(math.Max(0, mat.Inner(g, cov, g))) * scale
	}
	return r
}

// evaluateOnly handles problems with nothing free.
func (w *work) evaluateOnly() Result {
	n := len(w.ps)
	if !finite(w.cost) {
		return failed(n, "non-finite residual")
	}
	if w.count == 0 {
		return failed(n, "no valid samples")
	}
	return Result{
		Params: w.expand(w.x),
		Perror: make([]float64, n),
		Chi2:   w.cost,
		DOF:    w.count,
		Status: Converged,
	}
}

func failed(n int, msg string) Result {
	r := Result{
		Params: make([]float64, n),
		Perror: make([]float64, n),
		Chi2:   math.NaN(),
		Status: Failed,
		Msg:    msg,
	}
	for i := range r.Params {
		r.Params[i] = math.NaN()
		r.Perror[i] = math.NaN()
	}
	return r
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }
