// Public domain.

package lmsolver_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soniakeys/specfit/internal/lmsolver"
	"github.com/soniakeys/specfit/internal/parinfo"
)

// line y = a + b*x sampled without noise, unit errors
func lineProblem(ps []parinfo.ParInfo, a, b float64) lmsolver.Problem {
	xs := []float64{0, 1, 2, 3, 4, 5, 6, 7}
	return lmsolver.Problem{
		ParInfo: ps,
		M:       len(xs),
		Residual: func(dst, p []float64) int {
			for i, x := range xs {
				dst[i] = (a + b*x) - (p[0] + p[1]*x)
			}
			return len(xs)
		},
	}
}

func TestSolveLine(t *testing.T) {
	ps := []parinfo.ParInfo{{Value: 0}, {Value: 0}}
	require.NoError(t, parinfo.Compile(ps))
	r := lmsolver.Solve(lineProblem(ps, 3, -0.5), lmsolver.DefaultSettings())
	require.Equal(t, lmsolver.Converged, r.Status, r.Msg)
	assert.InDelta(t, 3, r.Params[0], 1e-6)
	assert.InDelta(t, -0.5, r.Params[1], 1e-6)
	assert.Equal(t, 6, r.DOF)
	assert.Less(t, r.Chi2, 1e-10)
}

func TestSolveExp(t *testing.T) {
	// y = A exp(-k x) with noise-free data, start far away
	xs := make([]float64, 30)
	for i := range xs {
		xs[i] = float64(i) / 5
	}
	ps := []parinfo.ParInfo{{Value: 1}, {Value: 0.1}}
	require.NoError(t, parinfo.Compile(ps))
	r := lmsolver.Solve(lmsolver.Problem{
		ParInfo: ps,
		M:       len(xs),
		Residual: func(dst, p []float64) int {
			for i, x := range xs {
				dst[i] = 7*math.Exp(-1.3*x) - p[0]*math.Exp(-p[1]*x)
			}
			return len(xs)
		},
	}, lmsolver.DefaultSettings())
	require.Equal(t, lmsolver.Converged, r.Status, r.Msg)
	assert.InDelta(t, 7, r.Params[0], 1e-5)
	assert.InDelta(t, 1.3, r.Params[1], 1e-5)
}

func TestSolveLimits(t *testing.T) {
	ps := []parinfo.ParInfo{
		{Value: 0},
		{Value: 0, Limited: [2]bool{true, true}, Limits: [2]float64{-0.2, 1}},
	}
	require.NoError(t, parinfo.Compile(ps))
	r := lmsolver.Solve(lineProblem(ps, 3, -0.5), lmsolver.DefaultSettings())
	require.Equal(t, lmsolver.Converged, r.Status, r.Msg)
	assert.Equal(t, -0.2, r.Params[1])
	// slope held at its limit: no error, out of the covariance
	assert.Equal(t, []bool{false, true}, r.Pegged)
	assert.Equal(t, 0., r.Perror[1])
	assert.Equal(t, 0., r.Cov.At(0, 1))
	assert.Equal(t, 0., r.Cov.At(1, 1))
	assert.Greater(t, r.Perror[0], 0.)
	// intercept is the best fit with the slope at the limit
	assert.InDelta(t, 3+(-0.5+0.2)*3.5, r.Params[0], 1e-6)
}

func TestSolveFixedAndTied(t *testing.T) {
	ps := []parinfo.ParInfo{
		{Value: 3, Fixed: true},
		{Value: 0},
		{Value: 99, Tied: "2*p[1]+1", Fixed: true},
	}
	require.NoError(t, parinfo.Compile(ps))
	prob := lineProblem(ps, 3, 1.25)
	inner := prob.Residual
	prob.Residual = func(dst, p []float64) int { return inner(dst, p[:2]) }
	r := lmsolver.Solve(prob, lmsolver.DefaultSettings())
	require.Equal(t, lmsolver.Converged, r.Status, r.Msg)
	assert.Equal(t, 3., r.Params[0])
	assert.Equal(t, 0., r.Perror[0])
	assert.InDelta(t, 1.25, r.Params[1], 1e-6)
	assert.Equal(t, 2*r.Params[1]+1, r.Params[2])
	assert.Equal(t, []int{1}, r.Free)
	// tied error is |2| times the free error
	assert.InDelta(t, 2*r.Perror[1], r.Perror[2], 1e-12)
}

func TestSolveSingular(t *testing.T) {
	// p1 has no effect on the residual
	ps := []parinfo.ParInfo{{Value: 1}, {Value: 1}}
	require.NoError(t, parinfo.Compile(ps))
	r := lmsolver.Solve(lmsolver.Problem{
		ParInfo: ps,
		M:       4,
		Residual: func(dst, p []float64) int {
			for i := range dst {
				dst[i] = float64(i) + 0.1*float64(i*i) - p[0]*float64(i)
			}
			return 4
		},
	}, lmsolver.DefaultSettings())
	assert.Equal(t, lmsolver.Failed, r.Status)
	assert.True(t, math.IsNaN(r.Params[0]))
	assert.True(t, math.IsNaN(r.Perror[1]))
}

func TestSolveNonFinite(t *testing.T) {
	ps := []parinfo.ParInfo{{Value: 1}}
	require.NoError(t, parinfo.Compile(ps))
	r := lmsolver.Solve(lmsolver.Problem{
		ParInfo: ps,
		M:       3,
		Residual: func(dst, p []float64) int {
			for i := range dst {
				dst[i] = math.NaN()
			}
			return 3
		},
	}, lmsolver.DefaultSettings())
	assert.Equal(t, lmsolver.Failed, r.Status)
}

func TestSolveTooFewSamples(t *testing.T) {
	ps := []parinfo.ParInfo{{Value: 1}, {Value: 1}}
	require.NoError(t, parinfo.Compile(ps))
	r := lmsolver.Solve(lmsolver.Problem{
		ParInfo:  ps,
		M:        2,
		Residual: func(dst, p []float64) int { dst[0], dst[1] = p[0], p[1]; return 2 },
	}, lmsolver.DefaultSettings())
	assert.Equal(t, lmsolver.Failed, r.Status)
}

func TestSolvePanicRecovered(t *testing.T) {
	ps := []parinfo.ParInfo{{Value: 1}}
	require.NoError(t, parinfo.Compile(ps))
	r := lmsolver.Solve(lmsolver.Problem{
		ParInfo:  ps,
		M:        3,
		Residual: func(dst, p []float64) int { panic("boom") },
	}, lmsolver.DefaultSettings())
	assert.Equal(t, lmsolver.Failed, r.Status)
	assert.Equal(t, "boom", r.Msg)
}

func TestSolveMaxIter(t *testing.T) {
	ps := []parinfo.ParInfo{{Value: 1}, {Value: 0.1}}
	require.NoError(t, parinfo.Compile(ps))
	s := lmsolver.DefaultSettings()
	s.MaxIter = 1
	r := lmsolver.Solve(lmsolver.Problem{
		ParInfo: ps,
		M:       20,
		Residual: func(dst, p []float64) int {
			for i := range dst {
				x := float64(i) / 4
				dst[i] = 7*math.Exp(-1.3*x) - p[0]*math.Exp(-p[1]*x)
			}
			return 20
		},
	}, s)
	assert.Equal(t, lmsolver.MaxIter, r.Status)
	assert.Equal(t, 1, r.NIter)
}
