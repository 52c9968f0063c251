package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/soniakeys/specfit/internal/fitresult"
)

const versionString = "fitstat version 0.1"
const copyrightString = "Public domain."

func main() {
	flag.Usage = func() {
		os.Stderr.WriteString(
			"Usage: fitstat [options] <result> [component]\n")
		flag.PrintDefaults()
		os.Stderr.WriteString(`
For full documentation:
   go doc github.com/soniakeys/specfit/fitstat
`)
	}
	meas := flag.String("m", fitresult.MeasureInt, "measurement, one of int, vel, wid, fwhm, chi2")
	threshold := flag.Float64("t", math.NaN(), "threshold")
	vers := flag.Bool("v", false, "display version and copyright")
	flag.Parse()
	if *vers {
		fmt.Println(versionString)
		fmt.Println(copyrightString)
		os.Exit(0)
	}
	if n := flag.NArg(); n < 1 || n > 2 {
		flag.Usage()
		os.Exit(1)
	}
	component := 0
	if flag.NArg() == 2 {
		var err error
		if component, err = strconv.Atoi(flag.Arg(1)); err != nil {
			log.Fatalln("Bad component:", err)
		}
	}
	r, err := fitresult.ReadFile(flag.Arg(0))
	if err != nil {
		log.Fatalln(err)
	}
	vals, errs, err := r.GetMap(component, *meas)
	if err != nil {
		log.Fatalln(err)
	}
	s := summarize(r.Status, vals, errs, *threshold)

	c := r.Summary()
	fmt.Println("\nResult file:  ", flag.Arg(0))
	fmt.Println("Template:     ", r.Template.Name)
	fmt.Printf("Measurement:   %s, component %d\n", *meas, component)
	fmt.Printf("Cells:         %d converged, %d max-iter, %d skipped, %d failed\n",
		c.Converged, c.MaxIter, c.Skipped, c.Failed)
	if s.n == 0 {
		fmt.Println("No fitted cells.")
		return
	}
	fmt.Println()
	fmt.Printf("Mean           %12.5g\n", s.mean)
	fmt.Printf("Std. dev.      %12.5g\n", s.sd)
	fmt.Printf("Quartiles      %12.5g %12.5g %12.5g\n", s.q[0], s.q[1], s.q[2])
	fmt.Printf("Min, max       %12.5g %12.5g\n", s.min, s.max)
	if !math.IsNaN(s.wmean) {
		fmt.Printf("Weighted mean  %12.5g\n", s.wmean)
	}
	if !math.IsNaN(*threshold) {
		fmt.Printf("At or above %g: %d of %d (%.1f%%)\n",
			*threshold, s.above, s.n, 100*float64(s.above)/float64(s.n))
	}
}

type summary struct {
	n, above        int
	mean, sd, wmean float64
	min, max        float64
	q               [3]float64
}

// summarize takes finite values of fitted cells only.
func summarize(status []fitresult.Status, vals, errs []float64, threshold float64) (s summary) {
	var x, w []float64
	weighted := true
	for i, v := range vals {
		if !status[i].OK() || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		x = append(x, v)
		if e := errs[i]; e > 0 && !math.IsInf(e, 0) {
			w = append(w, 1/(e*e))
		} else {
			weighted = false
		}
		if v >= threshold {
			s.above++
		}
	}
	s.n = len(x)
	s.wmean = math.NaN()
	if s.n == 0 {
		return
	}
	s.mean, s.sd = stat.MeanStdDev(x, nil)
	if weighted {
		s.wmean = stat.Mean(x, w)
	}
	s.min, s.max = floats.Min(x), floats.Max(x)
	sort.Float64s(x)
	for k, p := range []float64{.25, .5, .75} {
		s.q[k] = stat.Quantile(p, stat.Empirical, x, nil)
	}
	return
}
