// Public domain.

package fittemplate

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/soniakeys/specfit/internal/parinfo"
)

// Ext is the extension of binary template files, YAMLExt of template
// source files.
const (
	Ext     = ".template.gob"
	YAMLExt = ".template.yaml"
)

const fileTag = "specfit template 1"

// group "template": component definitions
type templateGroup struct {
	Name    string
	NGauss  int
	NPoly   int
	LineIDs []string
	Centers []float64
	WMin    float64
	WMax    float64
}

// group "parinfo": parallel arrays, one entry per scalar parameter
type parinfoGroup struct {
	Value   []float64
	Fixed   []bool
	Limited [][2]bool
	Limits  [][2]float64
	Tied    []string
}

// FileName is the conventional base name of the binary file for t:
// {primary-line-id}.{n_gauss}c.template.gob
func FileName(t *Template) string {
	return fmt.Sprintf("%s.%dc%s", t.PrimaryLineID(), t.NGauss, Ext)
}

// ParseFileName recovers the primary line id and Gaussian count from a
// template file name.  Both binary and YAML extensions are accepted.
func ParseFileName(fn string) (lineID string, nGauss int, ok bool) {
	base := filepath.Base(fn)
	switch {
	case strings.HasSuffix(base, Ext):
		base = strings.TrimSuffix(base, Ext)
	case strings.HasSuffix(base, YAMLExt):
		base = strings.TrimSuffix(base, YAMLExt)
	default:
		return "", 0, false
	}
	dot := strings.LastIndexByte(base, '.')
	if dot <= 0 || !strings.HasSuffix(base, "c") {
		return "", 0, false
	}
	n, err := strconv.Atoi(base[dot+1 : len(base)-1])
	if err != nil || n < 0 {
		return "", 0, false
	}
	return base[:dot], n, true
}

// Encode writes the template groups to enc.
func (t *Template) Encode(enc *gob.Encoder) error {
	tg := templateGroup{t.Name, t.NGauss, t.NPoly, t.LineIDs, t.Centers,
		t.WMin, t.WMax}
	n := len(t.ParInfo)
	pg := parinfoGroup{
		Value:   make([]float64, n),
		Fixed:   make([]bool, n),
		Limited: make([][2]bool, n),
		Limits:  make([][2]float64, n),
		Tied:    make([]string, n),
	}
	for i, p := range t.ParInfo {
		pg.Value[i] = p.Value
		pg.Fixed[i] = p.Fixed
		pg.Limited[i] = p.Limited
		pg.Limits[i] = p.Limits
		pg.Tied[i] = p.Tied
	}
	if err := enc.Encode(&tg); err != nil {
		return err
	}
	return enc.Encode(&pg)
}

// Decode reads template groups written by Encode and validates the
// result.
func Decode(dec *gob.Decoder) (*Template, error) {
	var tg templateGroup
	var pg parinfoGroup
	if err := dec.Decode(&tg); err != nil {
		return nil, fmt.Errorf("template group: %w", err)
	}
	if err := dec.Decode(&pg); err != nil {
		return nil, fmt.Errorf("parinfo group: %w", err)
	}
	n := len(pg.Value)
	if len(pg.Fixed) != n || len(pg.Limited) != n || len(pg.Limits) != n ||
		len(pg.Tied) != n {
		return nil, malformedf("parinfo arrays differ in length")
	}
	t := &Template{
		Name:    tg.Name,
		NGauss:  tg.NGauss,
		NPoly:   tg.NPoly,
		LineIDs: tg.LineIDs,
		Centers: tg.Centers,
		WMin:    tg.WMin,
		WMax:    tg.WMax,
		ParInfo: make([]parinfo.ParInfo, n),
	}
	for i := range t.ParInfo {
		t.ParInfo[i] = parinfo.ParInfo{
			Value:   pg.Value[i],
			Fixed:   pg.Fixed[i],
			Limited: pg.Limited[i],
			Limits:  pg.Limits[i],
			Tied:    pg.Tied[i],
		}
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// WriteFile saves t as a binary template file.
func (t *Template) WriteFile(fn string) (err error) {
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	enc := gob.NewEncoder(f)
	if err = enc.Encode(fileTag); err != nil {
		return fmt.Errorf("%s: %w", fn, err)
	}
	if err = t.Encode(enc); err != nil {
		return fmt.Errorf("%s: %w", fn, err)
	}
	return nil
}

// ReadFile loads and validates a binary template file.  Any failure is
// returned with the path.
func ReadFile(fn string) (*Template, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec := gob.NewDecoder(f)
	var tag string
	if err = dec.Decode(&tag); err != nil {
		return nil, &Error{Kind: ErrMalformed, Path: fn, Msg: err.Error()}
	}
	if tag != fileTag {
		return nil, &Error{Kind: ErrMalformed, Path: fn,
			Msg: fmt.Sprintf("unrecognized file tag %q", tag)}
	}
	t, err := Decode(dec)
	if err != nil {
		return nil, withPath(err, fn)
	}
	return t, nil
}

// yaml source layout
type yamlTemplate struct {
	Name    string            `yaml:"name"`
	NGauss  int               `yaml:"n_gauss"`
	NPoly   int               `yaml:"n_poly"`
	LineIDs []string          `yaml:"line_ids"`
	Centers []float64         `yaml:"centers"`
	WMin    float64           `yaml:"wmin"`
	WMax    float64           `yaml:"wmax"`
	ParInfo []parinfo.ParInfo `yaml:"parinfo"`
}

// ParseYAML builds and validates a template from YAML source.
func ParseYAML(b []byte) (*Template, error) {
	var y yamlTemplate
	if err := yaml.Unmarshal(b, &y); err != nil {
		return nil, &Error{Kind: ErrMalformed, Msg: err.Error()}
	}
	t := &Template{
		Name:    y.Name,
		NGauss:  y.NGauss,
		NPoly:   y.NPoly,
		LineIDs: y.LineIDs,
		Centers: y.Centers,
		WMin:    y.WMin,
		WMax:    y.WMax,
		ParInfo: y.ParInfo,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// ReadYAML loads a template source file.
func ReadYAML(fn string) (*Template, error) {
	b, err := os.ReadFile(fn)
	if err != nil {
		return nil, err
	}
	t, err := ParseYAML(b)
	if err != nil {
		return nil, withPath(err, fn)
	}
	if t.Name == "" {
		t.Name = strings.TrimSuffix(filepath.Base(fn), YAMLExt)
	}
	return t, nil
}

// Load reads a template in either format, chosen by extension.
func Load(fn string) (*Template, error) {
	if strings.HasSuffix(fn, YAMLExt) || strings.HasSuffix(fn, ".yaml") ||
		strings.HasSuffix(fn, ".yml") {
		return ReadYAML(fn)
	}
	return ReadFile(fn)
}

func withPath(err error, fn string) error {
	if te, ok := err.(*Error); ok {
		c := *te
		c.Path = fn
		return &c
	}
	return &Error{Kind: ErrMalformed, Path: fn, Msg: err.Error()}
}
