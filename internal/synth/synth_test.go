// Public domain.

package synth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/soniakeys/specfit/internal/cube"
	"github.com/soniakeys/specfit/internal/fitresult"
	"github.com/soniakeys/specfit/internal/synth"
)

func TestSpectrumNoise(t *testing.T) {
	wave := synth.Grid(0, 1, 4000)
	bg := []float64{10}
	s := synth.Spectrum(nil, bg, wave, 2, synth.NewRand(7))
	resid := make([]float64, len(wave))
	for i, v := range s.Intensity {
		resid[i] = v - 10
		assert.Equal(t, 2., s.Error[i])
	}
	mean, sd := stat.MeanStdDev(resid, nil)
	assert.InDelta(t, 0, mean, .1)
	assert.InDelta(t, 2, sd, .1)

	// noiseless
	s = synth.Spectrum([]synth.Line{{Peak: 5, Centroid: .5, Width: .1}}, bg, wave, 1, nil)
	assert.InDelta(t, 15, s.Intensity[2000], 1e-3)
}

func TestCubeRepeatable(t *testing.T) {
	cs := synth.CubeSpec{
		NY: 3, NX: 2,
		Wave:       synth.Grid(195, 195.25, 30),
		Lines:      []synth.Line{{Peak: 100, Centroid: 195.119, Width: .03}},
		Background: []float64{10},
		Sigma:      1,
		Seed:       3,
		Velocity:   func(iy, ix int) float64 { return 10 * float64(ix) },
		Missing:    []fitresult.Coord{{Y: 2, X: 1}},
	}
	a, b := synth.Cube(cs), synth.Cube(cs)
	ny, nx := a.Dims()
	require.Equal(t, 3, ny)
	require.Equal(t, 2, nx)
	assert.Equal(t, 30, a.NWave())
	for iy := 0; iy < ny; iy++ {
		for ix := 0; ix < nx; ix++ {
			assert.Equal(t, a.Spectrum(iy, ix), b.Spectrum(iy, ix))
		}
	}
	assert.False(t, a.Spectrum(2, 1).Usable())
	assert.Equal(t, float64(cube.Missing), a.Spectrum(2, 1).Intensity[0])
	assert.True(t, a.Spectrum(2, 0).Usable())
	assert.Equal(t, 195.119, a.Meta().CentralWave)
}
