// neutfit fits Hill curves to a tidy table of neutralization measurements
// and emits a CSV of the fitted parameters, one row per curve.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/carbocation/neutcurve"
	_ "github.com/carbocation/neutcurve/compileinfoprint"
	"github.com/carbocation/neutcurve/tidycsv"
	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"
	"github.com/montanaflynn/stats"
	"gopkg.in/guregu/null.v3"
)

func main() {
	var (
		input        string
		output       string
		serumCol     string
		virusCol     string
		replicateCol string
		concCol      string
		fracInfCol   string
		fixBottom    string
		fixTop       string
		averageOnly  bool
		plotHist     bool
	)
	flag.StringVar(&input, "input", "", "Tidy CSV or TSV of neutralization measurements. Use '-' for stdin. May be gzip-, zip-, xz-, or bzip2-compressed.")
	flag.StringVar(&output, "out", "", "Optional: path for the output CSV of fitted parameters. If empty, writes to stdout.")
	flag.StringVar(&serumCol, "serum-col", "serum", "Name of the serum column in the input")
	flag.StringVar(&virusCol, "virus-col", "virus", "Name of the virus column in the input")
	flag.StringVar(&replicateCol, "replicate-col", "replicate", "Name of the replicate column in the input")
	flag.StringVar(&concCol, "conc-col", "concentration", "Name of the concentration column in the input")
	flag.StringVar(&fracInfCol, "fracinf-col", "fraction infectivity", "Name of the fraction infectivity column in the input")
	flag.StringVar(&fixBottom, "fixbottom", "free", "Bottom plateau of every curve: a number, or 'free' to fit it")
	flag.StringVar(&fixTop, "fixtop", "1", "Top plateau of every curve: a number, or 'free' to fit it")
	flag.BoolVar(&averageOnly, "average-only", true, "Emit only the across-replicate average curve for each serum/virus pair")
	flag.BoolVar(&plotHist, "hist", false, "Print a histogram of the interpolated IC50s to stderr")
	flag.Parse()

	if input == "" {
		flag.PrintDefaults()
		log.Fatalln("Please provide --input")
	}
	input = tidycsv.ExpandHome(input)
	output = tidycsv.ExpandHome(output)

	bottom, err := parseBound(fixBottom)
	if err != nil {
		log.Fatalln(pfx.Err(err))
	}
	top, err := parseBound(fixTop)
	if err != nil {
		log.Fatalln(pfx.Err(err))
	}

	config := neutcurve.Config{
		Layout: neutcurve.Layout{
			SerumCol:     serumCol,
			VirusCol:     virusCol,
			ReplicateCol: replicateCol,
			ConcCol:      concCol,
			FracInfCol:   fracInfCol,
		},
		FixBottom: bottom,
		FixTop:    top,
	}

	params, err := runFits(input, config, averageOnly)
	if err != nil {
		log.Fatalln(pfx.Err(err))
	}

	if err := writeParams(params, output); err != nil {
		log.Fatalln(pfx.Err(err))
	}

	summarize(params, plotHist)
}

// parseBound interprets a plateau flag: the word "free" leaves the plateau
// as a fitted parameter, anything else must parse as a float to pin it.
func parseBound(value string) (null.Float, error) {
	if value == "free" {
		return null.Float{}, nil
	}

	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return null.Float{}, fmt.Errorf("plateau must be a number or 'free', not %q", value)
	}

	return null.FloatFrom(v), nil
}

func runFits(input string, config neutcurve.Config, averageOnly bool) ([]neutcurve.CurveParams, error) {
	var header []string
	var records [][]string
	var err error

	if input == "-" {
		header, records, err = tidycsv.Read(os.Stdin)
	} else {
		header, records, err = tidycsv.ReadFile(input)
	}
	if err != nil {
		return nil, err
	}

	fits, err := neutcurve.NewCurveFitsWithConfig(header, records, config)
	if err != nil {
		return nil, err
	}

	return fits.FitParams(averageOnly)
}

func writeParams(params []neutcurve.CurveParams, output string) error {
	var w io.Writer = os.Stdout

	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		defer f.Close()

		w = f
	}

	return gocsv.Marshal(&params, w)
}

// summarize logs counts by IC50 class and the spread of the interpolated
// IC50s, optionally with a histogram on stderr.
func summarize(params []neutcurve.CurveParams, plotHist bool) {
	var nLower, nUpper int
	interpolated := make([]float64, 0, len(params))
	for _, p := range params {
		switch p.IC50Bound {
		case neutcurve.IC50Lower:
			nLower++
		case neutcurve.IC50Upper:
			nUpper++
		default:
			interpolated = append(interpolated, p.IC50)
		}
	}

	log.Printf("Fit %d curves: %d interpolated IC50s, %d lower bounds, %d upper bounds\n", len(params), len(interpolated), nLower, nUpper)

	if len(interpolated) < 1 {
		return
	}

	median, err := stats.Median(interpolated)
	if err != nil {
		log.Println(pfx.Err(err))
		return
	}
	quartiles, err := stats.Quartile(interpolated)
	if err != nil {
		log.Println(pfx.Err(err))
		return
	}
	log.Printf("Interpolated IC50s: median %.4g (IQR %.4g-%.4g)\n", median, quartiles.Q1, quartiles.Q3)

	if plotHist && len(interpolated) > 1 {
		hist := histogram.Hist(10, interpolated)
		if err := histogram.Fprint(os.Stderr, hist, histogram.Linear(40)); err != nil {
			log.Println(pfx.Err(err))
		}
	}
}
