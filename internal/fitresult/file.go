// Public domain.

package fitresult

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/soniakeys/unit"

	"github.com/soniakeys/specfit/internal/fittemplate"
)

// Ext is the conventional extension of result files.
const Ext = ".fit.gob"

const fileTag = "specfit result 1"

// ErrFormat is the kind of every result file problem other than plain
// I/O errors.
var ErrFormat = errors.New("bad result file")

// FileError reports a result file problem with its path.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string { return e.Path + ": " + e.Err.Error() }
func (e *FileError) Unwrap() error { return e.Err }

func formatf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrFormat, fmt.Sprintf(format, args...))
}

// Header is the grid independent part of a result file.
type Header struct {
	NY, NX, NWave int
	NGauss, NPoly int
	Component     []int
	ParamNames    []string
	Units         string
	XScale        unit.Angle
	YScale        unit.Angle
	RunID         string
	Created       time.Time
}

// Schema of a result file, a gob stream of:
//
//	tag        string     "specfit result 1"
//	header     Header
//	template   fittemplate groups "template" and "parinfo"
//	status     []int8     NY*NX
//	chi2       []float64  NY*NX
//	dof        []int32    NY*NX
//	params     []float64  NY*NX*NParams
//	perror     []float64  NY*NX*NParams
//	int        []float64  NY*NX*NGauss
//	err_int    []float64  NY*NX*NGauss
//	wavelength []float64  NY*NX*NWave
//
// Arrays are row major over (iy, ix), per-cell dimension last.

// WriteFile saves r.
func (r *Result) WriteFile(fn string) (err error) {
	f, err := os.Create(fn)
	if err != nil {
		return &FileError{fn, err}
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = &FileError{fn, cerr}
		}
	}()
	if err = r.encode(gob.NewEncoder(f)); err != nil {
		return &FileError{fn, err}
	}
	return nil
}

func (r *Result) encode(enc *gob.Encoder) error {
	h := Header{
		NY: r.NY, NX: r.NX, NWave: r.NWave,
		NGauss:     r.NGauss(),
		NPoly:      r.NPoly(),
		Component:  r.Component(),
		ParamNames: r.ParamNames(),
		Units:      r.Units,
		XScale:     r.XScale,
		YScale:     r.YScale,
		RunID:      r.RunID,
		Created:    r.Created,
	}
	if err := enc.Encode(fileTag); err != nil {
		return err
	}
	if err := enc.Encode(&h); err != nil {
		return err
	}
	if err := r.Template.Encode(enc); err != nil {
		return err
	}
	status := make([]int8, len(r.Status))
	for i, s := range r.Status {
		status[i] = int8(s)
	}
	for _, a := range []interface{}{status, r.Chi2, r.DOF, r.Params, r.Perror,
		r.Int, r.ErrInt, r.Wave} {
		if err := enc.Encode(a); err != nil {
			return err
		}
	}
	return nil
}

// ReadFile loads a result written by WriteFile.  Every failure is
// returned as a *FileError carrying fn.
func ReadFile(fn string) (*Result, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, &FileError{fn, err}
	}
	defer f.Close()
	r, err := decode(gob.NewDecoder(f))
	if err != nil {
		return nil, &FileError{fn, err}
	}
	return r, nil
}

func decode(dec *gob.Decoder) (*Result, error) {
	var tag string
	if err := dec.Decode(&tag); err != nil {
		return nil, formatf("%v", err)
	}
	if tag != fileTag {
		return nil, formatf("unrecognized file tag %q", tag)
	}
	var h Header
	if err := dec.Decode(&h); err != nil {
		return nil, formatf("header: %v", err)
	}
	t, err := fittemplate.Decode(dec)
	if err != nil {
		return nil, formatf("%v", err)
	}
	if t.NGauss != h.NGauss || t.NPoly != h.NPoly {
		return nil, formatf("header n_gauss/n_poly %d/%d, template %d/%d",
			h.NGauss, h.NPoly, t.NGauss, t.NPoly)
	}
	r := &Result{
		NY: h.NY, NX: h.NX, NWave: h.NWave,
		Template: t,
		Units:    h.Units,
		XScale:   h.XScale,
		YScale:   h.YScale,
		RunID:    h.RunID,
		Created:  h.Created,
	}
	var status []int8
	arrays := []struct {
		name string
		ptr  interface{}
		n    int
	}{
		{"status", &status, h.NY * h.NX},
		{"chi2", &r.Chi2, h.NY * h.NX},
		{"dof", &r.DOF, h.NY * h.NX},
		{"params", &r.Params, h.NY * h.NX * t.NParams()},
		{"perror", &r.Perror, h.NY * h.NX * t.NParams()},
		{"int", &r.Int, h.NY * h.NX * t.NGauss},
		{"err_int", &r.ErrInt, h.NY * h.NX * t.NGauss},
		{"wavelength", &r.Wave, h.NY * h.NX * h.NWave},
	}
	for _, a := range arrays {
		if err := dec.Decode(a.ptr); err != nil {
			return nil, formatf("%s: %v", a.name, err)
		}
	}
	// gob leaves empty slices nil; lengths are checked after decoding all
	lens := []int{len(status), len(r.Chi2), len(r.DOF), len(r.Params),
		len(r.Perror), len(r.Int), len(r.ErrInt), len(r.Wave)}
	for k, a := range arrays {
		if lens[k] != a.n {
			return nil, formatf("%s has %d values, want %d", a.name, lens[k], a.n)
		}
	}
	r.Status = make([]Status, len(status))
	for i, s := range status {
		r.Status[i] = Status(s)
	}
	return r, nil
}
