// Public domain.

// Package fittemplate defines fit templates: the component structure,
// parameter constraints, and wavelength window shared by every pixel fit
// of a run.
package fittemplate

import (
	"errors"
	"fmt"
	"math"

	"github.com/soniakeys/specfit/internal/parinfo"
	"github.com/soniakeys/specfit/internal/profile"
)

// ErrMalformed is the kind of every template validation failure.
var ErrMalformed = errors.New("malformed template")

// Error reports a template problem, with the file path when known.
type Error struct {
	Kind error
	Path string
	Msg  string
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%v: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s: %v: %s", e.Path, e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Kind }

func malformedf(format string, args ...interface{}) error {
	return &Error{Kind: ErrMalformed, Msg: fmt.Sprintf(format, args...)}
}

// Template is the parametric model fitted to every spectrum of a run.
//
// It is immutable once validated.  Parameters are grouped per Gaussian as
// peak, centroid, width, followed by NPoly background coefficients.
type Template struct {
	Name    string
	NGauss  int
	NPoly   int
	LineIDs []string  // one per Gaussian
	Centers []float64 // nominal centroid per Gaussian
	WMin    float64
	WMax    float64
	ParInfo []parinfo.ParInfo
}

// Layout returns the profile layout of the template.
func (t *Template) Layout() profile.Layout {
	return profile.Layout{NGauss: t.NGauss, NPoly: t.NPoly}
}

// NParams is 3*NGauss + NPoly.
func (t *Template) NParams() int { return 3*t.NGauss + t.NPoly }

// Validate checks structural consistency and compiles tie expressions.
func (t *Template) Validate() error {
	switch {
	case t.NGauss < 0 || t.NPoly < 0:
		return malformedf("negative component count (n_gauss %d, n_poly %d)",
			t.NGauss, t.NPoly)
	case t.NGauss+t.NPoly == 0:
		return malformedf("no components")
	case len(t.ParInfo) != t.NParams():
		return malformedf("parinfo has %d entries, n_gauss %d and n_poly %d need %d",
			len(t.ParInfo), t.NGauss, t.NPoly, t.NParams())
	case len(t.LineIDs) != 0 && len(t.LineIDs) != t.NGauss:
		return malformedf("%d line ids for %d Gaussians", len(t.LineIDs), t.NGauss)
	case len(t.Centers) != 0 && len(t.Centers) != t.NGauss:
		return malformedf("%d centers for %d Gaussians", len(t.Centers), t.NGauss)
	case t.WMax < t.WMin:
		return malformedf("wavelength range [%g, %g] inverted", t.WMin, t.WMax)
	}
	if err := parinfo.Compile(t.ParInfo); err != nil {
		return &Error{Kind: ErrMalformed, Msg: err.Error()}
	}
	for g := 0; g < t.NGauss; g++ {
		if err := checkWidth(g, &t.ParInfo[3*g+2]); err != nil {
			return err
		}
	}
	return nil
}

// checkWidth requires Gaussian widths to stay positive.  A free width needs
// an active positive lower limit, a fixed one a positive value.  Tied
// widths follow their expression.
func checkWidth(g int, pi *parinfo.ParInfo) error {
	switch {
	case pi.IsTied():
		return nil
	case !(pi.Value > 0) || math.IsInf(pi.Value, 1):
		return malformedf("Gaussian %d width %g not positive", g, pi.Value)
	case pi.Fixed:
		return nil
	case !pi.Limited[0] || !(pi.Limits[0] > 0):
		return malformedf("Gaussian %d width needs a positive lower limit", g)
	}
	return nil
}

// Component maps parameter index i to its component: Gaussian k is k, the
// background is NGauss.
func (t *Template) Component(i int) int {
	if i < 3*t.NGauss {
		return i / 3
	}
	return t.NGauss
}

// Components returns Component(i) for every parameter.
func (t *Template) Components() []int {
	c := make([]int, t.NParams())
	for i := range c {
		c[i] = t.Component(i)
	}
	return c
}

// ParamNames names each parameter: peak, centroid, width per Gaussian, then
// c0, c1 ... for the background.
func (t *Template) ParamNames() []string {
	n := make([]string, 0, t.NParams())
	for g := 0; g < t.NGauss; g++ {
		n = append(n, "peak", "centroid", "width")
	}
	for k := 0; k < t.NPoly; k++ {
		n = append(n, fmt.Sprintf("c%d", k))
	}
	return n
}

// ParamIndex returns the index of the named parameter of a component, or
// -1.
func (t *Template) ParamIndex(component int, name string) int {
	switch {
	case component >= 0 && component < t.NGauss:
		for j, n := range [...]string{"peak", "centroid", "width"} {
			if n == name {
				return 3*component + j
			}
		}
	case component == t.NGauss:
		var k int
		if _, err := fmt.Sscanf(name, "c%d", &k); err == nil && k >= 0 && k < t.NPoly {
			return 3*t.NGauss + k
		}
	}
	return -1
}

// PrimaryLineID is the line id of the first Gaussian, or the name.
func (t *Template) PrimaryLineID() string {
	if len(t.LineIDs) > 0 {
		return t.LineIDs[0]
	}
	return t.Name
}

// Center returns the nominal centroid of Gaussian g, falling back on the
// initial value of its centroid parameter.
func (t *Template) Center(g int) float64 {
	if g < len(t.Centers) && t.Centers[g] != 0 {
		return t.Centers[g]
	}
	return t.ParInfo[3*g+1].Value
}

// Range returns the template wavelength window.  If the template has
// none, the span of the Gaussian centers padded by five widths is used.
func (t *Template) Range() (wmin, wmax float64) {
	if t.WMax > t.WMin {
		return t.WMin, t.WMax
	}
	wmin, wmax = math.Inf(1), math.Inf(-1)
	for g := 0; g < t.NGauss; g++ {
		c := t.Center(g)
		w := 5 * math.Abs(t.ParInfo[3*g+2].Value)
		wmin = math.Min(wmin, c-w)
		wmax = math.Max(wmax, c+w)
	}
	if wmin > wmax {
		return 0, 0
	}
	return
}
