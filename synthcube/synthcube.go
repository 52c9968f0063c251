/*
Command synthcube generates a synthetic spectral cube with known line
parameters, for trying out templates and for timing fit runs.

Usage

	synthcube [options] [output file]
	synthcube -v

Every spectrum holds one Gaussian line on a constant background plus
Gaussian noise.  The line is Doppler shifted by a velocity that grows
linearly along x, so a velocity map of the fit result shows a gradient of
grad km/s per raster step.  Pixels along the bottom row at every -gap-th
raster step are filled with the missing data value.  The same options and
seed always give the same cube.

The default output file is synth.cube.gob.

-------------
Public domain.
*/
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/soniakeys/exit"
	"github.com/soniakeys/unit"

	"github.com/soniakeys/specfit/internal/cube"
	"github.com/soniakeys/specfit/internal/fitresult"
	"github.com/soniakeys/specfit/internal/synth"
)

const versionString = "synthcube version 0.1"
const copyrightString = "Public domain."

func main() {
	defer exit.Handler()
	flag.Usage = func() {
		os.Stderr.WriteString(`Usage:
   synthcube [options] [output file]
   synthcube -v

`)
		flag.PrintDefaults()
	}
	ny := flag.Int("ny", 64, "pixels along the slit")
	nx := flag.Int("nx", 32, "raster steps")
	nw := flag.Int("nw", 48, "wavelengths per spectrum")
	wmin := flag.Float64("wmin", 195.0, "first wavelength")
	wmax := flag.Float64("wmax", 195.25, "last wavelength")
	peak := flag.Float64("peak", 100, "line peak")
	center := flag.Float64("center", 195.119, "rest wavelength of the line")
	width := flag.Float64("width", .03, "line width")
	bg := flag.Float64("bg", 10, "constant background")
	sigma := flag.Float64("sigma", 1, "noise standard deviation")
	grad := flag.Float64("grad", .5, "velocity gradient, km/s per raster step")
	gap := flag.Int("gap", 0, "missing pixel interval, 0 for none")
	seed := flag.Uint64("seed", 3, "noise seed")
	vers := flag.Bool("v", false, "display version and copyright")
	flag.Parse()
	if *vers {
		fmt.Println(versionString)
		fmt.Println(copyrightString)
		os.Exit(0)
	}
	fn := "synth" + cube.Ext
	switch flag.NArg() {
	case 0:
	case 1:
		fn = flag.Arg(0)
	default:
		flag.Usage()
		os.Exit(1)
	}
	if *ny < 1 || *nx < 1 || *nw < 2 || !(*wmax > *wmin) {
		exit.Log(fmt.Errorf("need ny, nx >= 1, nw >= 2 and wmax > wmin"))
	}

	cs := synth.CubeSpec{
		NY: *ny, NX: *nx,
		Wave:       synth.Grid(*wmin, *wmax, *nw),
		Lines:      []synth.Line{{Peak: *peak, Centroid: *center, Width: *width}},
		Background: []float64{*bg},
		Sigma:      *sigma,
		Seed:       *seed,
		Velocity:   func(iy, ix int) float64 { return *grad * float64(ix) },
	}
	if *gap > 0 {
		for ix := 0; ix < *nx; ix += *gap {
			cs.Missing = append(cs.Missing, fitresult.Coord{Y: *ny - 1, X: ix})
		}
	}
	c := synth.Cube(cs)
	m := c.Meta()
	m.LineID = "synthetic"
	m.XScale = unit.AngleFromSec(2)
	m.YScale = unit.AngleFromSec(1)
	c.SetMeta(m)
	if err := c.WriteFile(fn); err != nil {
		exit.Log(err)
	}
	fmt.Printf("%s: %d x %d x %d, %d missing\n", fn, *ny, *nx, *nw, len(cs.Missing))
}
