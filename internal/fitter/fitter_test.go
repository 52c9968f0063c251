// Public domain.

package fitter_test

import (
	"context"
	"math"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/integrate"

	"github.com/soniakeys/specfit/internal/cube"
	"github.com/soniakeys/specfit/internal/fitresult"
	"github.com/soniakeys/specfit/internal/fitter"
	"github.com/soniakeys/specfit/internal/fittemplate"
	"github.com/soniakeys/specfit/internal/lmsolver"
	"github.com/soniakeys/specfit/internal/parinfo"
	"github.com/soniakeys/specfit/internal/synth"
)

var (
	wave    = synth.Grid(195, 195.25, 60)
	feXII   = synth.Line{Peak: 100, Centroid: 195.119, Width: .03}
	bg      = []float64{10}
	noise   = 1.
	minPeak = [2]bool{true, false}
)

// one Gaussian on a constant, starting away from the truth
func oneLine(t *testing.T) *fittemplate.Template {
	tp := &fittemplate.Template{
		Name:    "fe_12_195_119.1c",
		NGauss:  1,
		NPoly:   1,
		LineIDs: []string{"fe_12_195_119"},
		Centers: []float64{195.119},
		WMin:    195,
		WMax:    195.25,
		ParInfo: []parinfo.ParInfo{
			{Value: 50, Limited: minPeak},
			{Value: 195.12, Limited: [2]bool{true, true}, Limits: [2]float64{195.1, 195.14}},
			{Value: .035, Limited: [2]bool{true, true}, Limits: [2]float64{.01, .1}},
			{Value: 5},
		},
	}
	require.NoError(t, tp.Validate())
	return tp
}

// a blend with the second centroid tied to the first
func twoLines(t *testing.T) *fittemplate.Template {
	tp := &fittemplate.Template{
		Name:    "fe_12_195_119.2c",
		NGauss:  2,
		NPoly:   1,
		LineIDs: []string{"fe_12_195_119", "fe_12_195_179"},
		WMin:    195,
		WMax:    195.25,
		ParInfo: []parinfo.ParInfo{
			{Value: 50, Limited: minPeak},
			{Value: 195.12},
			{Value: .035, Limited: [2]bool{true, true}, Limits: [2]float64{.01, .1}},
			{Value: 10, Limited: minPeak},
			{Value: 195.18, Tied: "p[1]+0.06"},
			{Value: .035, Limited: [2]bool{true, true}, Limits: [2]float64{.01, .1}},
			{Value: 5},
		},
	}
	require.NoError(t, tp.Validate())
	return tp
}

func quiet() fitter.Option {
	l, _ := logtest.NewNullLogger()
	return fitter.WithLogger(l)
}

func TestFitPixelRecovery(t *testing.T) {
	tp := oneLine(t)
	s := synth.Spectrum([]synth.Line{feXII}, bg, wave, noise, synth.NewRand(1))
	c := fitter.FitPixel(tp, s, lmsolver.DefaultSettings())
	require.Equal(t, fitresult.StatusConverged, c.Status, c.Msg)

	want := []float64{feXII.Peak, feXII.Centroid, feXII.Width, bg[0]}
	for i, w := range want {
		require.Greater(t, c.Perror[i], 0.)
		assert.InDelta(t, w, c.Params[i], 5*c.Perror[i], "param %d", i)
	}
	assert.Equal(t, len(wave)-4, c.DOF)
	assert.InDelta(t, 1, c.Chi2/float64(c.DOF), .6)
	assert.Equal(t, wave, c.Wave)
}

func TestFitPixelArea(t *testing.T) {
	tp := oneLine(t)
	s := synth.Spectrum([]synth.Line{feXII}, bg, wave, noise, synth.NewRand(2))
	c := fitter.FitPixel(tp, s, lmsolver.DefaultSettings())
	require.True(t, c.Status.OK(), c.Msg)

	p, ctr, w := c.Params[0], c.Params[1], c.Params[2]
	x := synth.Grid(ctr-12*w, ctr+12*w, 20001)
	y := synth.Model([]synth.Line{{Peak: p, Centroid: ctr, Width: w}}, nil, x)
	num := integrate.Trapezoidal(x, y)
	assert.InDelta(t, 1, c.Int[0]/num, 1e-6)

	// error propagation from perror of peak and width
	ep, ew := c.Perror[0], c.Perror[2]
	assert.InDelta(t, math.SqrtPi*math.Hypot(w*ep, p*ew), c.ErrInt[0], 1e-12)
}

func TestFitPixelTied(t *testing.T) {
	tp := twoLines(t)
	lines := []synth.Line{feXII, {Peak: 25, Centroid: 195.179, Width: .03}}
	s := synth.Spectrum(lines, bg, wave, noise, synth.NewRand(3))
	c := fitter.FitPixel(tp, s, lmsolver.DefaultSettings())
	require.True(t, c.Status.OK(), c.Msg)
	assert.Equal(t, c.Params[1]+0.06, c.Params[4])
	assert.Equal(t, len(wave)-6, c.DOF)
	// the tied error follows the centroid it is tied to
	assert.InDelta(t, c.Perror[1], c.Perror[4], 1e-15)
	require.Len(t, c.Int, 2)
}

func TestFitPixelSkipped(t *testing.T) {
	tp := oneLine(t)
	s := synth.Spectrum([]synth.Line{feXII}, bg, wave, noise, nil)
	for i := range s.Intensity {
		s.Intensity[i] = cube.Missing
	}
	c := fitter.FitPixel(tp, s, lmsolver.DefaultSettings())
	assert.Equal(t, fitresult.StatusSkipped, c.Status)
	assert.Nil(t, c.Params)

	// valid samples only outside the template window
	out := synth.Spectrum([]synth.Line{feXII}, bg, synth.Grid(196, 197, 20), noise, nil)
	c = fitter.FitPixel(tp, out, lmsolver.DefaultSettings())
	assert.Equal(t, fitresult.StatusSkipped, c.Status)

	s.Bad = true
	c = fitter.FitPixel(tp, s, lmsolver.DefaultSettings())
	assert.Equal(t, fitresult.StatusSkipped, c.Status)
}

func TestFitPixelFailed(t *testing.T) {
	tp := oneLine(t)
	s := synth.Spectrum([]synth.Line{feXII}, bg, wave, noise, synth.NewRand(4))
	// three usable samples for four free parameters
	for i := 3; i < len(s.Error); i++ {
		s.Error[i] = 0
	}
	c := fitter.FitPixel(tp, s, lmsolver.DefaultSettings())
	assert.Equal(t, fitresult.StatusFailed, c.Status)
	assert.NotEmpty(t, c.Msg)
}

func TestFitPixelMaxIter(t *testing.T) {
	tp := oneLine(t)
	s := synth.Spectrum([]synth.Line{feXII}, bg, wave, noise, synth.NewRand(5))
	st := lmsolver.DefaultSettings()
	st.MaxIter = 1
	c := fitter.FitPixel(tp, s, st)
	assert.Equal(t, fitresult.StatusMaxIter, c.Status)
	assert.False(t, math.IsNaN(c.Params[0]))
}

func testCube() *cube.MemCube {
	return synth.Cube(synth.CubeSpec{
		NY: 4, NX: 5,
		Wave:       wave,
		Lines:      []synth.Line{feXII},
		Background: bg,
		Sigma:      noise,
		Seed:       9,
		Velocity:   func(iy, ix int) float64 { return float64(5*ix - 3*iy) },
		Missing:    []fitresult.Coord{{Y: 1, X: 3}},
	})
}

func TestFitWorkerCountDeterminism(t *testing.T) {
	tp := oneLine(t)
	c := testCube()
	var results []*fitresult.Result
	for _, o := range [][]fitter.Option{
		{fitter.WithWorkers(fitter.WorkersSerial)},
		{fitter.WithWorkers(1)},
		{fitter.WithWorkers(2)},
		{fitter.WithWorkers(fitter.WorkersMax)},
		{fitter.WithWorkers(3), fitter.WithGranularity(fitter.ByPixel)},
	} {
		f, err := fitter.New(tp, append(o, quiet())...)
		require.NoError(t, err)
		r, err := f.Fit(context.Background(), c)
		require.NoError(t, err)
		results = append(results, r)
	}
	want := results[0]
	for _, r := range results[1:] {
		assert.Equal(t, want.Status, r.Status)
		for i := range want.Params {
			if math.Float64bits(want.Params[i]) != math.Float64bits(r.Params[i]) {
				t.Fatalf("params[%d] = %v, want %v", i, r.Params[i], want.Params[i])
			}
		}
	}
	sum := want.Summary()
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 19, sum.Converged+sum.MaxIter)
}

func TestFitPlacesByCoordinate(t *testing.T) {
	tp := oneLine(t)
	c := testCube()
	f, err := fitter.New(tp, fitter.WithWorkers(4), fitter.WithGranularity(fitter.ByPixel), quiet())
	require.NoError(t, err)
	r, err := f.Fit(context.Background(), c)
	require.NoError(t, err)

	// each cell holds the fit of its own spectrum
	for _, at := range []fitresult.Coord{{Y: 0, X: 0}, {Y: 3, X: 4}, {Y: 2, X: 1}} {
		want := fitter.FitPixel(tp, c.Spectrum(at.Y, at.X), f.Settings)
		got := r.Cell(at.Y, at.X)
		assert.Equal(t, want.Params, got.Params, "cell %v", at)
	}
	skipped := r.Cell(1, 3)
	assert.Equal(t, fitresult.StatusSkipped, skipped.Status)
	assert.True(t, math.IsNaN(skipped.Params[0]))
	assert.Equal(t, wave, skipped.Wave)
}

func TestFitBadMask(t *testing.T) {
	tp := oneLine(t)
	c := testCube()
	m := c.Meta()
	m.BadMask = make([][]bool, 4)
	for iy := range m.BadMask {
		m.BadMask[iy] = make([]bool, 5)
	}
	m.BadMask[0][2] = true
	c.SetMeta(m)
	f, err := fitter.New(tp, fitter.WithWorkers(fitter.WorkersSerial), quiet())
	require.NoError(t, err)
	r, err := f.Fit(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, fitresult.StatusSkipped, r.Status[2])
	assert.Equal(t, 2, r.Summary().Skipped)
}

func TestFitStep(t *testing.T) {
	tp := oneLine(t)
	c := testCube()
	f, err := fitter.New(tp, fitter.WithWorkers(2), quiet())
	require.NoError(t, err)
	cells, err := f.FitStep(context.Background(), c, 3)
	require.NoError(t, err)
	require.Len(t, cells, 4)
	assert.Equal(t, fitresult.StatusSkipped, cells[1].Status)
	for _, iy := range []int{0, 2, 3} {
		want := fitter.FitPixel(tp, c.Spectrum(iy, 3), f.Settings)
		assert.Equal(t, want.Params, cells[iy].Params)
	}
	_, err = f.FitStep(context.Background(), c, 5)
	assert.Error(t, err)
}

func TestFitCancelled(t *testing.T) {
	tp := oneLine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, w := range []fitter.Workers{fitter.WorkersSerial, 2} {
		f, err := fitter.New(tp, fitter.WithWorkers(w), quiet())
		require.NoError(t, err)
		r, err := f.Fit(ctx, testCube())
		assert.ErrorIs(t, err, context.Canceled)
		require.NotNil(t, r)
		assert.Equal(t, 20, r.Summary().Skipped)
	}
}

func TestNewRejectsMalformed(t *testing.T) {
	tp := oneLine(t)
	tp.ParInfo = tp.ParInfo[:3]
	_, err := fitter.New(tp)
	assert.ErrorIs(t, err, fittemplate.ErrMalformed)
	_, err = fitter.New(nil)
	assert.Error(t, err)
}

func TestFitLogsSummary(t *testing.T) {
	l, hook := logtest.NewNullLogger()
	f, err := fitter.New(oneLine(t), fitter.WithWorkers(fitter.WorkersSerial),
		fitter.WithLogger(l))
	require.NoError(t, err)
	r, err := f.Fit(context.Background(), testCube())
	require.NoError(t, err)
	e := hook.LastEntry()
	require.NotNil(t, e)
	assert.Equal(t, "fit finished", e.Message)
	assert.Equal(t, r.RunID, e.Data["run_id"])
	assert.Equal(t, 1, e.Data["skipped"])
}
