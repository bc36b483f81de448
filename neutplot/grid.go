package neutplot

import (
	"fmt"
	"image"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/carbocation/neutcurve"
)

// Subplot names one panel of a grid: the serum and virus to draw and the
// panel title. An empty Title becomes "serum vs virus".
type Subplot struct {
	Serum string
	Virus string
	Title string
}

// AllSubplots returns one subplot per serum and virus pair, in the order
// the pairs appear in the data.
func AllSubplots(cf *neutcurve.CurveFits) []Subplot {
	var plots []Subplot
	for _, serum := range cf.Sera() {
		for _, virus := range cf.Viruses(serum) {
			plots = append(plots, Subplot{Serum: serum, Virus: virus})
		}
	}
	return plots
}

// Margins reserved for the shared axis labels.
const (
	gridLeftMargin   = 26
	gridBottomMargin = 22
)

// Grid renders one replicate panel per subplot, ncol panels across, and
// composes them into a single image with shared axis labels along the left
// and bottom edges.
func Grid(cf *neutcurve.CurveFits, plots []Subplot, ncol int, style Style) (image.Image, error) {
	if len(plots) == 0 {
		return nil, fmt.Errorf("no subplots to draw")
	}
	if ncol < 1 {
		return nil, fmt.Errorf("grid needs at least one column, not %d", ncol)
	}
	if ncol > len(plots) {
		ncol = len(plots)
	}
	style = style.withDefaults()

	nrow := (len(plots) + ncol - 1) / ncol
	cellW, cellH := style.Width, style.Height

	dc := gg.NewContext(gridLeftMargin+ncol*cellW, nrow*cellH+gridBottomMargin)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	for i, sub := range plots {
		title := sub.Title
		if title == "" {
			title = sub.Serum + " vs " + sub.Virus
		}
		// Panels carry no axis names of their own; the grid draws shared
		// labels once.
		img, err := replicatesChart(cf, sub.Serum, sub.Virus, title, style, "", "")
		if err != nil {
			return nil, err
		}
		dc.DrawImage(img, gridLeftMargin+(i%ncol)*cellW, (i/ncol)*cellH)
	}

	xlabel, ylabel := style.labels()
	dc.SetRGB(0, 0, 0)
	dc.SetFontFace(basicfont.Face7x13)

	cx := float64(gridLeftMargin) + float64(ncol*cellW)/2
	cy := float64(nrow*cellH) + float64(gridBottomMargin)/2
	dc.DrawStringAnchored(xlabel, cx, cy, 0.5, 0.5)

	lx := float64(gridLeftMargin) / 2
	ly := float64(nrow*cellH) / 2
	dc.Push()
	dc.RotateAbout(gg.Radians(-90), lx, ly)
	dc.DrawStringAnchored(ylabel, lx, ly, 0.5, 0.5)
	dc.Pop()

	return dc.Image(), nil
}
