// Package neutcurve fits Hill curves to dose-response neutralization data.
//
// The central model is the four-parameter Hill curve, which maps a serum or
// antibody concentration c to the fraction of viral infectivity remaining:
//
//	f(c) = b + (t - b) / (1 + (c/m)^s)
//
// where m is the midpoint, s the slope, b the bottom plateau, and t the top
// plateau. HillCurve fits the free parameters of that model to measured
// points, and CurveFits manages fitting across a tidy table of measurements
// spanning many sera, viruses, and replicates.
package neutcurve

import "math"

// Evaluate returns the Hill-curve fraction infectivity at concentration c
// for midpoint m, slope s, bottom b, and top t.
func Evaluate(c, m, s, b, t float64) float64 {
	return b + (t-b)/(1+math.Pow(c/m, s))
}

// EvaluateLog is Evaluate with the concentration given as its natural log.
// Fits run in this space by default because serially diluted concentrations
// are evenly spaced on a log scale.
func EvaluateLog(logc, m, s, b, t float64) float64 {
	return b + (t-b)/(1+math.Pow(math.Exp(logc)/m, s))
}
