// Public domain.

// Package parinfo holds the constraint model for a single fit parameter:
// initial value, fixed status, limits, and an optional tie to other
// parameters.
package parinfo

import (
	"fmt"
	"math"
)

// ParInfo constrains one scalar fit parameter.
//
// If Tied is non-empty the parameter is always derived from the tie
// expression and Fixed is ignored.
type ParInfo struct {
	Value   float64
	Fixed   bool
	Limited [2]bool    // lower, upper
	Limits  [2]float64 // lower, upper
	Tied    string

	// Tie is the parsed form of Tied, set by Compile.
	Tie *Expr `yaml:"-"`
}

// IsTied reports whether the parameter is derived from a tie expression.
func (pi *ParInfo) IsTied() bool { return pi.Tie != nil || pi.Tied != "" }

// IsFree reports whether the optimizer varies the parameter.
func (pi *ParInfo) IsFree() bool { return !pi.IsTied() && !pi.Fixed }

// Clamp returns v moved inside the active limits.
func (pi *ParInfo) Clamp(v float64) float64 {
	if pi.Limited[0] && v < pi.Limits[0] {
		v = pi.Limits[0]
	}
	if pi.Limited[1] && v > pi.Limits[1] {
		v = pi.Limits[1]
	}
	return v
}

// Lower returns the lower bound, -Inf if none.
func (pi *ParInfo) Lower() float64 {
	if pi.Limited[0] {
		return pi.Limits[0]
	}
	return math.Inf(-1)
}

// Upper returns the upper bound, +Inf if none.
func (pi *ParInfo) Upper() float64 {
	if pi.Limited[1] {
		return pi.Limits[1]
	}
	return math.Inf(1)
}

// Compile parses the tie expressions of ps in place and validates the
// whole set.
//
// A tie may reference only parameters that are not themselves tied, may
// not reference itself, and every index must be inside ps.
func Compile(ps []ParInfo) error {
	for i := range ps {
		p := &ps[i]
		p.Tie = nil
		if p.Tied == "" {
			continue
		}
		e, err := ParseTie(p.Tied)
		if err != nil {
			return fmt.Errorf("parameter %d: %w", i, err)
		}
		p.Tie = e
	}
	for i := range ps {
		p := &ps[i]
		if p.Limited[0] && p.Limited[1] && p.Limits[0] > p.Limits[1] {
			return fmt.Errorf("parameter %d: lower limit %g above upper limit %g",
				i, p.Limits[0], p.Limits[1])
		}
		if math.IsNaN(p.Value) {
			return fmt.Errorf("parameter %d: initial value is NaN", i)
		}
		if p.Tie == nil {
			continue
		}
		for _, r := range p.Tie.Refs() {
			switch {
			case r < 0 || r >= len(ps):
				return fmt.Errorf("parameter %d: tie %q references p[%d], out of range [0,%d)",
					i, p.Tied, r, len(ps))
			case r == i:
				return fmt.Errorf("parameter %d: tie %q references itself", i, p.Tied)
			case ps[r].Tied != "":
				return fmt.Errorf("parameter %d: tie %q references tied parameter p[%d]",
					i, p.Tied, r)
			}
		}
	}
	return nil
}

// ApplyTies overwrites the tied entries of p by evaluating their
// expressions against p.
func ApplyTies(ps []ParInfo, p []float64) {
	for i := range ps {
		if t := ps[i].Tie; t != nil {
			p[i] = t.Eval(p)
		}
	}
}

// Values returns the initial values of ps.
func Values(ps []ParInfo) []float64 {
	v := make([]float64, len(ps))
	for i := range ps {
		v[i] = ps[i].Value
	}
	return v
}

// Copy returns a deep enough copy of ps for per-pixel modification.
// Parsed tie trees are shared; they are never mutated.
func Copy(ps []ParInfo) []ParInfo {
	return append([]ParInfo(nil), ps...)
}
