// Public domain.

package fitresult

import (
	"fmt"
	"io"

	"github.com/astrogo/fitsio"
)

// ExportFITS writes r as a FITS file for tools outside this module.
//
// The primary image is the integrated intensity, axes (gauss, x, y), or
// the reduced chi-square when the template has no Gaussian.  Image
// extensions PARAMS, PERROR, CHI2 and STATUS follow.  NaN marks cells
// without fitted values.
func (r *Result) ExportFITS(w io.Writer) (err error) {
	f, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	common := []fitsio.Card{
		{Name: "NGAUSS", Value: r.NGauss(), Comment: "Gaussian components"},
		{Name: "NPOLY", Value: r.NPoly(), Comment: "background coefficients"},
		{Name: "LINEID", Value: r.Template.PrimaryLineID()},
		{Name: "RUNID", Value: r.RunID},
		{Name: "DATE", Value: r.Created.Format("2006-01-02T15:04:05")},
	}
	ng, np := r.NGauss(), r.NParams()
	hdus := []struct {
		name, bunit string
		axes        []int
		data        interface{}
	}{
		{"INT", r.Units, []int{ng, r.NX, r.NY}, r.Int},
		{"PARAMS", "", []int{np, r.NX, r.NY}, r.Params},
		{"PERROR", "", []int{np, r.NX, r.NY}, r.Perror},
		{"CHI2", "", []int{r.NX, r.NY}, r.ReducedChi2()},
		{"STATUS", "", []int{r.NX, r.NY}, r.statusInt16()},
	}
	if ng == 0 {
		hdus = hdus[1:]
		hdus[2], hdus[0] = hdus[0], hdus[2]
	}
	for _, h := range hdus {
		bitpix := -64
		if _, ok := h.data.([]int16); ok {
			bitpix = 16
		}
		im := fitsio.NewImage(bitpix, h.axes)
		cards := append([]fitsio.Card{{Name: "EXTNAME", Value: h.name}}, common...)
		if h.bunit != "" {
			cards = append(cards, fitsio.Card{Name: "BUNIT", Value: h.bunit})
		}
		cards = append(cards, r.scaleCards(len(h.axes)-1)...)
		if err = im.Header().Append(cards...); err != nil {
			im.Close()
			return fmt.Errorf("%s header: %w", h.name, err)
		}
		if err = im.Write(h.data); err != nil {
			im.Close()
			return fmt.Errorf("%s data: %w", h.name, err)
		}
		err = f.Write(im)
		im.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", h.name, err)
		}
	}
	return nil
}

func (r *Result) statusInt16() []int16 {
	s := make([]int16, len(r.Status))
	for i, v := range r.Status {
		s[i] = int16(v)
	}
	return s
}

// scaleCards gives the pixel scale of the x and y axes, FITS axes xAxis
// and xAxis+1.
func (r *Result) scaleCards(xAxis int) []fitsio.Card {
	var c []fitsio.Card
	if r.XScale != 0 {
		c = append(c, fitsio.Card{Name: fmt.Sprintf("CDELT%d", xAxis),
			Value: r.XScale.Sec(), Comment: "arcsec"})
	}
	if r.YScale != 0 {
		c = append(c, fitsio.Card{Name: fmt.Sprintf("CDELT%d", xAxis+1),
			Value: r.YScale.Sec(), Comment: "arcsec"})
	}
	return c
}
