// Simulates a small neutralization study from known Hill parameters, fits
// every curve, and prints the fitted parameter table as CSV.
package main

import (
	"log"
	"os"
	"strconv"

	"github.com/carbocation/neutcurve"
	"github.com/gocarina/gocsv"
)

type simCurve struct {
	serum    string
	virus    string
	midpoint float64
	slope    float64
	bottom   float64
}

func main() {
	header := []string{"serum", "virus", "replicate", "concentration", "fraction infectivity"}

	concs := make([]float64, 9)
	concs[0] = 0.002
	for i := 1; i < len(concs); i++ {
		concs[i] = concs[i-1] * 2
	}

	curves := []simCurve{
		{"serum-1", "virus-a", 0.03, 1.9, 0.1},
		{"serum-1", "virus-b", 0.06, 2.1, 0.05},
		{"serum-2", "virus-a", 0.012, 1.7, 0},
	}

	// Two replicates per curve, offset symmetrically so their average sits
	// on the true curve.
	var records [][]string
	for _, sc := range curves {
		for r, offset := range []float64{0.01, -0.01} {
			rep := strconv.Itoa(r + 1)
			for _, c := range concs {
				f := neutcurve.Evaluate(c, sc.midpoint, sc.slope, sc.bottom, 1) + offset
				records = append(records, []string{
					sc.serum,
					sc.virus,
					rep,
					strconv.FormatFloat(c, 'g', -1, 64),
					strconv.FormatFloat(f, 'g', -1, 64),
				})
			}
		}
	}

	fits, err := neutcurve.NewCurveFits(header, records)
	if err != nil {
		log.Fatalln(err)
	}

	params, err := fits.FitParams(false)
	if err != nil {
		log.Fatalln(err)
	}

	if err := gocsv.Marshal(&params, os.Stdout); err != nil {
		log.Fatalln(err)
	}
}
