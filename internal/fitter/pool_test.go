// Public domain.

package fitter

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soniakeys/specfit/internal/fitresult"
	"github.com/soniakeys/specfit/internal/fittemplate"
	"github.com/soniakeys/specfit/internal/parinfo"
	"github.com/soniakeys/specfit/internal/synth"
)

func TestSerialFallback(t *testing.T) {
	save := spawnCheck
	defer func() { spawnCheck = save }()
	spawnCheck = func(int) error { return errors.New("no threads") }

	tp := &fittemplate.Template{
		NGauss: 1, NPoly: 1,
		ParInfo: []parinfo.ParInfo{
			{Value: 50}, {Value: 1.5},
			{Value: .1, Limited: [2]bool{true, false}, Limits: [2]float64{.01, 0}},
			{Value: 1},
		},
	}
	c := synth.Cube(synth.CubeSpec{
		NY: 2, NX: 3,
		Wave:       synth.Grid(1, 2, 40),
		Lines:      []synth.Line{{Peak: 40, Centroid: 1.5, Width: .1}},
		Background: []float64{2},
		Sigma:      .5,
		Seed:       1,
		Missing:    []fitresult.Coord{{Y: 0, X: 0}},
	})
	l, hook := logtest.NewNullLogger()
	f, err := New(tp, WithWorkers(4), WithLogger(l))
	require.NoError(t, err)
	assert.Equal(t, 4, f.n)
	r, err := f.Fit(context.Background(), c)
	require.NoError(t, err)

	var warns int
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warns++
		}
	}
	assert.Equal(t, 1, warns)
	s := r.Summary()
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 5, s.Converged+s.MaxIter)
}

func TestParallelOK(t *testing.T) {
	save := spawnCheck
	defer func() { spawnCheck = save }()
	spawnCheck = func(int) error { return nil }

	l, hook := logtest.NewNullLogger()
	f := &Fitter{Log: l}
	for _, c := range []struct {
		n, units int
		want     bool
	}{
		{1, 10, false},
		{4, 1, false},
		{4, 10, true},
	} {
		f.n = c.n
		assert.Equal(t, c.want, f.parallelOK(c.units), "%d workers %d units", c.n, c.units)
	}
	assert.Empty(t, hook.AllEntries())
}

func TestParseWorkers(t *testing.T) {
	for _, c := range []struct {
		s    string
		want Workers
	}{
		{"max", WorkersMax},
		{"", WorkersMax},
		{"Serial", WorkersSerial},
		{"3", 3},
		{" 4 ", 4},
		{" max ", WorkersMax},
	} {
		w, err := ParseWorkers(c.s)
		require.NoError(t, err, c.s)
		assert.Equal(t, c.want, w)
	}
	for _, s := range []string{"0", "-2", "many"} {
		_, err := ParseWorkers(s)
		assert.Error(t, err, s)
	}
	assert.Equal(t, 1, WorkersSerial.Resolve())
	assert.Equal(t, 7, Workers(7).Resolve())
	assert.GreaterOrEqual(t, WorkersMax.Resolve(), 1)
	assert.Equal(t, "serial", WorkersSerial.String())

	g, err := ParseGranularity("pixel")
	require.NoError(t, err)
	assert.Equal(t, ByPixel, g)
	_, err = ParseGranularity("row")
	assert.Error(t, err)
}
