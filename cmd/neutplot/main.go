// neutplot fits Hill curves to a tidy table of neutralization measurements
// and renders a grid of per-serum-virus curve panels to a PNG.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/carbocation/neutcurve"
	_ "github.com/carbocation/neutcurve/compileinfoprint"
	"github.com/carbocation/neutcurve/neutplot"
	"github.com/carbocation/neutcurve/tidycsv"
	"github.com/carbocation/pfx"
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
		sera         string
		ncol         int
		averageOnly  bool
		showAverage  bool
	)
	flag.StringVar(&input, "input", "", "Tidy CSV or TSV of neutralization measurements. Use '-' for stdin. May be gzip-, zip-, xz-, or bzip2-compressed.")
	flag.StringVar(&output, "out", "", "Path for the output PNG")
	flag.StringVar(&serumCol, "serum-col", "serum", "Name of the serum column in the input")
	flag.StringVar(&virusCol, "virus-col", "virus", "Name of the virus column in the input")
	flag.StringVar(&replicateCol, "replicate-col", "replicate", "Name of the replicate column in the input")
	flag.StringVar(&concCol, "conc-col", "concentration", "Name of the concentration column in the input")
	flag.StringVar(&fracInfCol, "fracinf-col", "fraction infectivity", "Name of the fraction infectivity column in the input")
	flag.StringVar(&fixBottom, "fixbottom", "free", "Bottom plateau of every curve: a number, or 'free' to fit it")
	flag.StringVar(&fixTop, "fixtop", "1", "Top plateau of every curve: a number, or 'free' to fit it")
	flag.StringVar(&sera, "sera", "", "Optional: comma-separated sera to plot. If empty, plots every serum.")
	flag.IntVar(&ncol, "ncol", 4, "Number of panel columns in the grid")
	flag.BoolVar(&averageOnly, "average-only", true, "Plot only the across-replicate average curve in each panel")
	flag.BoolVar(&showAverage, "show-average", false, "When plotting individual replicates, overlay the across-replicate average")
	flag.Parse()

	if input == "" {
		flag.PrintDefaults()
		log.Fatalln("Please provide --input")
	}

	if output == "" {
		flag.PrintDefaults()
		log.Fatalln("Please provide --out")
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

	fits, err := readFits(input, config)
	if err != nil {
		log.Fatalln(pfx.Err(err))
	}

	plots, err := chooseSubplots(fits, sera)
	if err != nil {
		log.Fatalln(pfx.Err(err))
	}

	style := neutplot.Style{AverageOnly: averageOnly, ShowAverage: showAverage}
	img, err := neutplot.Grid(fits, plots, ncol, style)
	if err != nil {
		log.Fatalln(pfx.Err(err))
	}

	if err := neutplot.WritePNG(img, output); err != nil {
		log.Fatalln(pfx.Err(err))
	}

	log.Printf("Wrote %d panels to %s\n", len(plots), output)
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

func readFits(input string, config neutcurve.Config) (*neutcurve.CurveFits, error) {
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

	return neutcurve.NewCurveFitsWithConfig(header, records, config)
}

// chooseSubplots expands the --sera filter into one subplot per serum/virus
// pair, or every pair in the data when the filter is empty.
func chooseSubplots(fits *neutcurve.CurveFits, sera string) ([]neutplot.Subplot, error) {
	if sera == "" {
		return neutplot.AllSubplots(fits), nil
	}

	var plots []neutplot.Subplot
	for _, serum := range strings.Split(sera, ",") {
		serum = strings.TrimSpace(serum)
		viruses := fits.Viruses(serum)
		if len(viruses) == 0 {
			return nil, fmt.Errorf("no serum %q in the data", serum)
		}
		for _, virus := range viruses {
			plots = append(plots, neutplot.Subplot{Serum: serum, Virus: virus})
		}
	}

	return plots, nil
}
