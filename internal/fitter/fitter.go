// Public domain.

// Package fitter fits a template to every spectrum of a cube, in parallel
// where possible.
//
// Work is split into units, either a raster step (all pixels at one x) or
// a single pixel.  A dispatcher goroutine hands units to a fixed pool of
// workers and queues a ticket per unit; the collector picks up results in
// ticket order and places every cell by the coordinate it is tagged with.
// The result grid therefore never depends on worker count or completion
// order.
package fitter

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/soniakeys/specfit/internal/cube"
	"github.com/soniakeys/specfit/internal/fitresult"
	"github.com/soniakeys/specfit/internal/fittemplate"
	"github.com/soniakeys/specfit/internal/lmsolver"
)

// Fitter holds the run configuration.  It is safe to call Fit
// concurrently on one Fitter.
type Fitter struct {
	Template    *fittemplate.Template
	Workers     Workers
	Granularity Granularity
	Settings    lmsolver.Settings
	Log         *logrus.Logger

	n int // resolved worker count
}

// Option configures a Fitter.
type Option func(*Fitter)

func WithWorkers(w Workers) Option { return func(f *Fitter) { f.Workers = w } }

func WithGranularity(g Granularity) Option { return func(f *Fitter) { f.Granularity = g } }

func WithSettings(s lmsolver.Settings) Option { return func(f *Fitter) { f.Settings = s } }

func WithLogger(l *logrus.Logger) Option { return func(f *Fitter) { f.Log = l } }

// New validates t and returns a Fitter.  The default is WorkersMax, ByStep,
// lmsolver.DefaultSettings and the logrus standard logger.
func New(t *fittemplate.Template, opts ...Option) (*Fitter, error) {
	if t == nil {
		return nil, errors.New("nil template")
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	f := &Fitter{
		Template: t,
		Workers:  WorkersMax,
		Settings: lmsolver.DefaultSettings(),
		Log:      logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(f)
	}
	f.n = f.Workers.Resolve()
	return f, nil
}

// spawnCheck reports why a worker pool cannot be used, or nil.
var spawnCheck = func(n int) error {
	if runtime.GOMAXPROCS(0) < 2 {
		return errors.New("GOMAXPROCS is 1")
	}
	return nil
}

// parallelOK decides once per run whether the pool is used.
func (f *Fitter) parallelOK(nUnits int) bool {
	if f.n < 2 || nUnits < 2 {
		return false
	}
	if err := spawnCheck(f.n); err != nil {
		f.Log.WithError(err).WithField("workers", f.n).
			Warn("worker pool unavailable, fitting serially")
		return false
	}
	return true
}

type tagged struct {
	at   fitresult.Coord
	cell fitresult.Cell
}

// unitSeq is a unit of work with its ticket.
type unitSeq struct {
	coords []fitresult.Coord
	rch    chan []tagged
}

// Fit fits every pixel of c.
//
// Only template problems are errors; every pixel outcome is recorded in
// the result.  Cancellation is checked between units: on cancellation
// the cells fitted so far are returned along with ctx.Err().
func (f *Fitter) Fit(ctx context.Context, c cube.Cube) (*fitresult.Result, error) {
	ny, nx := c.Dims()
	r := fitresult.New(f.Template, ny, nx, c.NWave())
	m := c.Meta()
	r.Units, r.XScale, r.YScale = m.Units, m.XScale, m.YScale

	var units [][]fitresult.Coord
	switch f.Granularity {
	case ByPixel:
		for iy := 0; iy < ny; iy++ {
			for ix := 0; ix < nx; ix++ {
				units = append(units, []fitresult.Coord{{Y: iy, X: ix}})
			}
		}
	default:
		for ix := 0; ix < nx; ix++ {
			u := make([]fitresult.Coord, ny)
			for iy := range u {
				u[iy] = fitresult.Coord{Y: iy, X: ix}
			}
			units = append(units, u)
		}
	}
	log := f.Log.WithFields(logrus.Fields{
		"run_id":      r.RunID,
		"template":    f.Template.Name,
		"workers":     f.n,
		"granularity": f.Granularity,
		"units":       len(units),
	})
	log.Info("fit started")
	t0 := time.Now()
	err := f.run(ctx, c, units, func(tc []tagged) {
		for _, x := range tc {
			r.Set(x.at.Y, x.at.X, x.cell)
			if x.cell.Status == fitresult.StatusFailed {
				log.WithFields(logrus.Fields{"y": x.at.Y, "x": x.at.X}).
					Debug("fit failed: ", x.cell.Msg)
			}
		}
	})
	s := r.Summary()
	log.WithFields(logrus.Fields{
		"converged": s.Converged,
		"max_iter":  s.MaxIter,
		"skipped":   s.Skipped,
		"failed":    s.Failed,
		"elapsed":   time.Since(t0).Round(time.Millisecond),
	}).Info("fit finished")
	return r, err
}

// FitStep fits the pixels of raster step ix, returning cells indexed by
// iy.  Pixels are spread over the pool individually.
func (f *Fitter) FitStep(ctx context.Context, c cube.Cube, ix int) ([]fitresult.Cell, error) {
	ny, nx := c.Dims()
	if ix < 0 || ix >= nx {
		return nil, fmt.Errorf("raster step %d outside [0,%d)", ix, nx)
	}
	units := make([][]fitresult.Coord, ny)
	for iy := range units {
		units[iy] = []fitresult.Coord{{Y: iy, X: ix}}
	}
	cells := make([]fitresult.Cell, ny)
	for iy := range cells {
		cells[iy].Status = fitresult.StatusSkipped
	}
	err := f.run(ctx, c, units, func(tc []tagged) {
		for _, x := range tc {
			cells[x.at.Y] = x.cell
		}
	})
	return cells, err
}

func (f *Fitter) fitUnit(c cube.Cube, coords []fitresult.Coord) []tagged {
	tc := make([]tagged, len(coords))
	for i, at := range coords {
		tc[i] = tagged{at, FitPixel(f.Template, c.Spectrum(at.Y, at.X), f.Settings)}
	}
	return tc
}

// run fits units and hands each unit result to place, always from the
// calling goroutine and in unit order.
func (f *Fitter) run(ctx context.Context, c cube.Cube, units [][]fitresult.Coord, place func([]tagged)) error {
	if !f.parallelOK(len(units)) {
		for _, u := range units {
			if err := ctx.Err(); err != nil {
				return err
			}
			place(f.fitUnit(c, u))
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	// work carries units to workers.  tickets keeps their result channels
	// in submission order; it is buffered so a fast worker can drop off a
	// result without waiting for a slow one ahead of it.
	work := make(chan *unitSeq)
	tickets := make(chan chan []tagged, 2*f.n)

	// dispatcher
	g.Go(func() error {
		defer close(tickets)
		defer close(work)
		for _, u := range units {
			if err := gctx.Err(); err != nil {
				return err
			}
			rch := make(chan []tagged, 1)
			select {
			case work <- &unitSeq{u, rch}:
			case <-gctx.Done():
				return gctx.Err()
			}
			tickets <- rch
		}
		return nil
	})
	for w := 0; w < f.n; w++ {
		g.Go(func() error {
			for us := range work {
				us.rch <- f.fitUnit(c, us.coords) // buffered
			}
			return nil
		})
	}
	// every dispatched unit is fitted and placed, even after cancellation
	for rch := range tickets {
		place(<-rch)
	}
	return g.Wait()
}
