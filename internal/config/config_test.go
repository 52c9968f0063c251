// Public domain.

package config_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soniakeys/specfit/internal/config"
	"github.com/soniakeys/specfit/internal/fitter"
	"github.com/soniakeys/specfit/internal/fittemplate"
	"github.com/soniakeys/specfit/internal/lmsolver"
	"github.com/soniakeys/specfit/internal/parinfo"
)

func TestDefaults(t *testing.T) {
	c, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "max", c.Workers)
	assert.Equal(t, "step", c.Granularity)
	assert.Equal(t, lmsolver.DefaultSettings(), c.Settings())
	assert.Equal(t, "", c.File)
}

func TestFileAndEnv(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "specfit.yaml")
	require.NoError(t, os.WriteFile(fn, []byte(
		"workers: 3\ngranularity: pixel\nmax_iter: 50\nlog_level: debug\n"), 0o644))
	t.Setenv("SPECFIT_FTOL", "1e-6")
	t.Setenv("SPECFIT_MAX_ITER", "75")

	c, err := config.Load(fn)
	require.NoError(t, err)
	assert.Equal(t, fn, c.File)
	assert.Equal(t, "3", c.Workers)
	assert.Equal(t, 75, c.MaxIter) // environment beats file
	assert.Equal(t, 1e-6, c.FTol)
	assert.Equal(t, logrus.DebugLevel, c.Logger(io.Discard).GetLevel())

	opts, err := c.FitterOptions()
	require.NoError(t, err)
	tp := &fittemplate.Template{NPoly: 1, ParInfo: []parinfo.ParInfo{{Value: 1}}}
	f, err := fitter.New(tp, opts...)
	require.NoError(t, err)
	assert.Equal(t, fitter.Workers(3), f.Workers)
	assert.Equal(t, fitter.ByPixel, f.Granularity)
	assert.Equal(t, 75, f.Settings.MaxIter)
}

func TestRejects(t *testing.T) {
	dir := t.TempDir()
	for i, src := range []string{
		"workers: lots\n",
		"granularity: row\n",
		"max_iter: 0\n",
		"xtol: -1\n",
		"log_level: chatty\n",
	} {
		fn := filepath.Join(dir, string(rune('a'+i))+".yaml")
		require.NoError(t, os.WriteFile(fn, []byte(src), 0o644))
		_, err := config.Load(fn)
		assert.Error(t, err, src)
	}
	_, err := config.Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
