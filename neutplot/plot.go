package neutplot

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/carbocation/neutcurve"
)

// Style controls how curves are drawn. The zero value gives 512x384 panels,
// CBPalette colors, and axis labels matching the default tidy column names.
type Style struct {
	Width   int
	Height  int
	Palette []drawing.Color
	XLabel  string
	YLabel  string

	// Replicate selection for Replicates and Grid. ShowAverage overlays
	// the cross-replicate average curve on the individual replicates;
	// AverageOnly draws only the average.
	ShowAverage bool
	AverageOnly bool
}

func (s Style) withDefaults() Style {
	if s.Width <= 0 {
		s.Width = 512
	}
	if s.Height <= 0 {
		s.Height = 384
	}
	if len(s.Palette) == 0 {
		s.Palette = CBPalette
	}
	return s
}

func (s Style) labels() (xlabel, ylabel string) {
	xlabel, ylabel = s.XLabel, s.YLabel
	if xlabel == "" {
		xlabel = "concentration"
	}
	if ylabel == "" {
		ylabel = "fraction infectivity"
	}
	return xlabel, ylabel
}

// curveSeries is one curve drawn on a chart.
type curveSeries struct {
	name  string
	color drawing.Color
	curve *neutcurve.HillCurve
}

// Curve renders one fitted curve: the dense fitted line plus the measured
// points and their error bars, on a log10 concentration axis.
func Curve(hc *neutcurve.HillCurve, title string, style Style) (image.Image, error) {
	if hc == nil {
		return nil, fmt.Errorf("no curve to plot")
	}
	style = style.withDefaults()
	xlabel, ylabel := style.labels()
	ss := []curveSeries{{color: style.Palette[0], curve: hc}}
	return renderChart(ss, title, style, xlabel, ylabel, false)
}

// Replicates renders the replicate curves of one serum and virus overlaid
// on a single chart, colored through the palette, with a legend when more
// than one curve is shown.
func Replicates(cf *neutcurve.CurveFits, serum, virus, title string, style Style) (image.Image, error) {
	style = style.withDefaults()
	xlabel, ylabel := style.labels()
	return replicatesChart(cf, serum, virus, title, style, xlabel, ylabel)
}

func replicatesChart(cf *neutcurve.CurveFits, serum, virus, title string, style Style, xlabel, ylabel string) (image.Image, error) {
	reps := cf.Replicates(serum, virus)
	if len(reps) == 0 {
		return nil, fmt.Errorf("no measurements for serum %q and virus %q", serum, virus)
	}

	var chosen []string
	for _, rep := range reps {
		average := rep == neutcurve.AverageReplicate
		switch {
		case style.AverageOnly:
			if average {
				chosen = append(chosen, rep)
			}
		case average:
			if style.ShowAverage {
				chosen = append(chosen, rep)
			}
		default:
			chosen = append(chosen, rep)
		}
	}

	ss := make([]curveSeries, 0, len(chosen))
	for i, rep := range chosen {
		curve, err := cf.GetCurve(serum, virus, rep)
		if err != nil {
			return nil, err
		}
		ss = append(ss, curveSeries{
			name:  rep,
			color: style.Palette[i%len(style.Palette)],
			curve: curve,
		})
	}
	return renderChart(ss, title, style, xlabel, ylabel, len(ss) > 1)
}

func renderChart(ss []curveSeries, title string, style Style, xlabel, ylabel string, legend bool) (image.Image, error) {
	xmin, xmax := math.Inf(1), math.Inf(-1)
	ymin, ymax := -0.05, 1.05

	var series []chart.Series
	for _, s := range ss {
		points := s.curve.PointsAuto()

		lineX := make([]float64, 0, len(points))
		lineY := make([]float64, 0, len(points))
		var dotX, dotY []float64
		for _, p := range points {
			x := math.Log10(p.Concentration)
			lineX = append(lineX, x)
			lineY = append(lineY, p.Fit)
			xmin = math.Min(xmin, x)
			xmax = math.Max(xmax, x)
			ymin = math.Min(ymin, p.Fit)
			ymax = math.Max(ymax, p.Fit)
			if p.Measurement.Valid {
				dotX = append(dotX, x)
				dotY = append(dotY, p.Measurement.Float64)
				ymin = math.Min(ymin, p.Measurement.Float64)
				ymax = math.Max(ymax, p.Measurement.Float64)
			}
		}

		series = append(series, chart.ContinuousSeries{
			Name:    s.name,
			XValues: lineX,
			YValues: lineY,
			Style: chart.Style{
				StrokeColor: s.color,
				StrokeWidth: 2,
			},
		})

		// One short vertical series per measured point with a standard
		// error, drawn as an error bar.
		for _, p := range points {
			if !p.Measurement.Valid || !p.StdErr.Valid {
				continue
			}
			x := math.Log10(p.Concentration)
			lo := p.Measurement.Float64 - p.StdErr.Float64
			hi := p.Measurement.Float64 + p.StdErr.Float64
			ymin = math.Min(ymin, lo)
			ymax = math.Max(ymax, hi)
			series = append(series, chart.ContinuousSeries{
				XValues: []float64{x, x},
				YValues: []float64{lo, hi},
				Style: chart.Style{
					StrokeColor: s.color,
					StrokeWidth: 1,
				},
			})
		}

		series = append(series, chart.ContinuousSeries{
			XValues: dotX,
			YValues: dotY,
			Style: chart.Style{
				StrokeWidth: chart.Disabled,
				DotColor:    s.color,
				DotWidth:    4,
			},
		})
	}

	// Ticks at the decades inside the plotted range, falling back to the
	// range endpoints when the span covers less than two decades.
	var ticks []chart.Tick
	for e := math.Ceil(xmin); e <= math.Floor(xmax); e++ {
		ticks = append(ticks, chart.Tick{Value: e, Label: fmt.Sprintf("%g", math.Pow(10, e))})
	}
	if len(ticks) < 2 {
		ticks = []chart.Tick{
			{Value: xmin, Label: fmt.Sprintf("%.2g", math.Pow(10, xmin))},
			{Value: xmax, Label: fmt.Sprintf("%.2g", math.Pow(10, xmax))},
		}
	}

	graph := chart.Chart{
		Title:  title,
		Width:  style.Width,
		Height: style.Height,
		XAxis: chart.XAxis{
			Name:  xlabel,
			Ticks: ticks,
			Range: &chart.ContinuousRange{Min: xmin, Max: xmax},
		},
		YAxis: chart.YAxis{
			Name:  ylabel,
			Range: &chart.ContinuousRange{Min: ymin, Max: ymax},
		},
		Series: series,
	}
	if legend {
		graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	}

	// Render to a byte buffer
	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, err
	}
	return png.Decode(buffer)
}

// WritePNG writes the image to path as a PNG file.
func WritePNG(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
