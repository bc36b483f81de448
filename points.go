package neutcurve

import (
	"sort"

	"gopkg.in/guregu/null.v3"
)

// CurvePoint is one sampled point of a fitted curve, aligning a measured
// value (when one exists at that concentration) with the model prediction.
type CurvePoint struct {
	Concentration float64    `csv:"concentration"`
	Measurement   null.Float `csv:"measurement"`
	Fit           float64    `csv:"fit"`
	StdErr        null.Float `csv:"stderr"`
}

// Points returns the measured concentrations plus any extra ones, sorted
// ascending, each paired with the fitted fraction infectivity. Points at
// measured concentrations carry the measurement and its standard error when
// one was supplied; points at extra concentrations carry only the fit.
func (hc *HillCurve) Points(extra []float64) []CurvePoint {
	out := make([]CurvePoint, 0, len(hc.Concentrations)+len(extra))
	for i, c := range hc.Concentrations {
		p := CurvePoint{
			Concentration: c,
			Measurement:   null.FloatFrom(hc.Fracs[i]),
			Fit:           hc.FracInfectivity(c),
		}
		if hc.FracStdErrs != nil {
			p.StdErr = null.FloatFrom(hc.FracStdErrs[i])
		}
		out = append(out, p)
	}
	for _, c := range extra {
		out = append(out, CurvePoint{Concentration: c, Fit: hc.FracInfectivity(c)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Concentration < out[j].Concentration
	})
	return out
}

// PointsAuto samples the curve densely over a log-spaced range covering and
// slightly extending past the measured concentrations. This is the sampling
// a plot of the curve wants.
func (hc *HillCurve) PointsAuto() []CurvePoint {
	lo := hc.Concentrations[0]
	hi := hc.Concentrations[len(hc.Concentrations)-1]
	rng, err := ConcentrationRange(lo, hi, DefaultRangePoints, DefaultRangeExtend)
	if err != nil {
		// All measured doses are equal; there is no span to sample.
		return hc.Points(nil)
	}
	return hc.Points(rng)
}
