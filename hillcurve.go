package neutcurve

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
	"gopkg.in/guregu/null.v3"
)

// CurveOptions configures a single Hill-curve fit.
type CurveOptions struct {
	// StdErrs are per-point standard errors on the fraction infectivity.
	// When present, the fit weights each residual by the inverse standard
	// error. Leave nil for an unweighted fit.
	StdErrs []float64

	// FixBottom and FixTop pin a plateau to a constant rather than fitting
	// it. An invalid null.Float leaves the plateau free.
	FixBottom null.Float
	FixTop    null.Float

	// LinearConc fits on the raw concentrations rather than their natural
	// log. Both spaces describe the same model, but on serially diluted
	// data the log space conditions the optimization better.
	LinearConc bool
}

// HillCurve is a four-parameter Hill curve fit to measured neutralization
// data. Construct with NewHillCurve or NewHillCurveWithOptions; the fields
// are exported for reading, not for mutation.
type HillCurve struct {
	// The measured data, sorted by increasing concentration. FracStdErrs is
	// nil unless standard errors were supplied to the fit.
	Concentrations []float64
	Fracs          []float64
	FracStdErrs    []float64

	// The fitted (or fixed) model parameters.
	Midpoint float64
	Slope    float64
	Top      float64
	Bottom   float64
}

// NewHillCurve fits a Hill curve to fraction infectivity fs measured at
// concentrations cs, under the usual neutralization assay assumptions: the
// top plateau is fixed to 1, the bottom plateau is fit, and the fit runs in
// log concentration space.
func NewHillCurve(cs, fs []float64) (*HillCurve, error) {
	return NewHillCurveWithOptions(cs, fs, CurveOptions{FixTop: null.FloatFrom(1)})
}

// NewHillCurveWithOptions fits a Hill curve with explicit control over the
// fixed plateaus, residual weighting, and concentration space.
func NewHillCurveWithOptions(cs, fs []float64, opts CurveOptions) (*HillCurve, error) {
	if len(cs) == 0 {
		return nil, fmt.Errorf("%w: no concentrations to fit", ErrInvalidInput)
	}
	if len(cs) != len(fs) {
		return nil, fmt.Errorf("%w: %d concentrations but %d fraction infectivities", ErrInvalidInput, len(cs), len(fs))
	}
	if opts.StdErrs != nil && len(opts.StdErrs) != len(cs) {
		return nil, fmt.Errorf("%w: %d concentrations but %d standard errors", ErrInvalidInput, len(cs), len(opts.StdErrs))
	}
	if opts.FixBottom.Valid && !isFinite(opts.FixBottom.Float64) {
		return nil, fmt.Errorf("%w: fixed bottom %g is not finite", ErrInvalidInput, opts.FixBottom.Float64)
	}
	if opts.FixTop.Valid && !isFinite(opts.FixTop.Float64) {
		return nil, fmt.Errorf("%w: fixed top %g is not finite", ErrInvalidInput, opts.FixTop.Float64)
	}

	hc := &HillCurve{
		Concentrations: append([]float64(nil), cs...),
		Fracs:          append([]float64(nil), fs...),
	}
	if opts.StdErrs != nil {
		hc.FracStdErrs = append([]float64(nil), opts.StdErrs...)
	}
	hc.sortByConcentration()

	for _, c := range hc.Concentrations {
		if !(c > 0) || math.IsInf(c, 1) {
			return nil, fmt.Errorf("%w: concentrations must be finite and > 0, got %g", ErrInvalidInput, c)
		}
	}
	for i, f := range hc.Fracs {
		if !isFinite(f) {
			return nil, fmt.Errorf("%w: fraction infectivity at concentration %g is not finite", ErrInvalidInput, hc.Concentrations[i])
		}
	}
	for i, se := range hc.FracStdErrs {
		if !(se > 0) || math.IsInf(se, 1) {
			return nil, fmt.Errorf("%w: standard error at concentration %g must be finite and > 0, got %g", ErrInvalidInput, hc.Concentrations[i], se)
		}
	}

	midpoint, slope, bottom, top := hc.initialGuess(opts)

	// The optimizer sees only the free parameters; fixed plateaus are
	// closed over. Order is midpoint, slope, then whichever plateaus are
	// free, bottom before top.
	eval := Evaluate
	xs := hc.Concentrations
	if !opts.LinearConc {
		eval = EvaluateLog
		xs = make([]float64, len(hc.Concentrations))
		for i, c := range hc.Concentrations {
			xs[i] = math.Log(c)
		}
	}

	var (
		model  func(x float64, p []float64) float64
		guess  []float64
		assign func(p []float64)
	)
	switch {
	case !opts.FixBottom.Valid && !opts.FixTop.Valid:
		model = func(x float64, p []float64) float64 { return eval(x, p[0], p[1], p[2], p[3]) }
		guess = []float64{midpoint, slope, bottom, top}
		assign = func(p []float64) {
			hc.Midpoint, hc.Slope, hc.Bottom, hc.Top = p[0], p[1], p[2], p[3]
		}
	case !opts.FixBottom.Valid:
		model = func(x float64, p []float64) float64 { return eval(x, p[0], p[1], p[2], top) }
		guess = []float64{midpoint, slope, bottom}
		assign = func(p []float64) {
			hc.Midpoint, hc.Slope, hc.Bottom, hc.Top = p[0], p[1], p[2], top
		}
	case !opts.FixTop.Valid:
		model = func(x float64, p []float64) float64 { return eval(x, p[0], p[1], bottom, p[2]) }
		guess = []float64{midpoint, slope, top}
		assign = func(p []float64) {
			hc.Midpoint, hc.Slope, hc.Bottom, hc.Top = p[0], p[1], bottom, p[2]
		}
	default:
		model = func(x float64, p []float64) float64 { return eval(x, p[0], p[1], bottom, top) }
		guess = []float64{midpoint, slope}
		assign = func(p []float64) {
			hc.Midpoint, hc.Slope, hc.Bottom, hc.Top = p[0], p[1], bottom, top
		}
	}

	if len(hc.Concentrations) < len(guess) {
		return nil, fmt.Errorf("%w: %d points cannot determine %d free parameters", ErrInvalidInput, len(hc.Concentrations), len(guess))
	}

	var weights []float64
	if hc.FracStdErrs != nil {
		weights = make([]float64, len(hc.FracStdErrs))
		for i, se := range hc.FracStdErrs {
			weights[i] = 1 / se
		}
	}

	objective := func(p []float64) float64 {
		if !(p[0] > 0) {
			// Nonpositive midpoints are outside the model domain.
			return math.Inf(1)
		}
		var sum float64
		for i, x := range xs {
			r := model(x, p) - hc.Fracs[i]
			if weights != nil {
				r *= weights[i]
			}
			sum += r * r
		}
		if math.IsNaN(sum) {
			return math.Inf(1)
		}
		return sum
	}

	fitted, err := minimizeSumSquares(objective, guess)
	if err != nil {
		return nil, err
	}
	assign(fitted)

	return hc, nil
}

// initialGuess seeds the optimizer from the shape of the measured data. The
// slope sign follows the overall trend (falling infectivity means positive
// slope). Free plateaus start at the extreme responses matching that sign,
// and the midpoint starts where the responses cross half the plateau
// separation, falling back to an endpoint when they never do.
func (hc *HillCurve) initialGuess(opts CurveOptions) (midpoint, slope, bottom, top float64) {
	n := len(hc.Fracs)

	slope = 1.5
	if hc.Fracs[0] < hc.Fracs[n-1] {
		slope = -1.5
	}

	if opts.FixTop.Valid {
		top = opts.FixTop.Float64
	} else if slope > 0 {
		top = floats.Max(hc.Fracs)
	} else {
		top = floats.Min(hc.Fracs)
	}
	if opts.FixBottom.Valid {
		bottom = opts.FixBottom.Float64
	} else if slope > 0 {
		bottom = floats.Min(hc.Fracs)
	} else {
		bottom = floats.Max(hc.Fracs)
	}

	midval := (top - bottom) / 2
	allAbove, allBelow := true, true
	for _, f := range hc.Fracs {
		if f > midval {
			allBelow = false
		} else {
			allAbove = false
		}
	}
	switch {
	case allAbove:
		if slope > 0 {
			midpoint = hc.Concentrations[n-1]
		} else {
			midpoint = hc.Concentrations[0]
		}
	case allBelow:
		if slope > 0 {
			midpoint = hc.Concentrations[0]
		} else {
			midpoint = hc.Concentrations[n-1]
		}
	default:
		for i := 0; i+1 < n; i++ {
			if (hc.Fracs[i] > midval) != (hc.Fracs[i+1] > midval) {
				midpoint = (hc.Concentrations[i] + hc.Concentrations[i+1]) / 2
				break
			}
		}
	}
	return midpoint, slope, bottom, top
}

// sortByConcentration orders the measurements by increasing concentration,
// carrying the responses and any standard errors along.
func (hc *HillCurve) sortByConcentration() {
	idx := make([]int, len(hc.Concentrations))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return hc.Concentrations[idx[i]] < hc.Concentrations[idx[j]]
	})

	reorder := func(xs []float64) []float64 {
		out := make([]float64, len(xs))
		for i, j := range idx {
			out[i] = xs[j]
		}
		return out
	}
	hc.Concentrations = reorder(hc.Concentrations)
	hc.Fracs = reorder(hc.Fracs)
	if hc.FracStdErrs != nil {
		hc.FracStdErrs = reorder(hc.FracStdErrs)
	}
}

// minimizeSumSquares runs a derivative-free Nelder-Mead descent on the
// weighted sum of squared residuals, then restarts the simplex at the found
// optimum. The restart recovers the precision a collapsed simplex gives up
// and keeps the whole procedure deterministic.
func minimizeSumSquares(objective func([]float64) float64, guess []float64) ([]float64, error) {
	problem := optimize.Problem{Func: objective}
	settings := &optimize.Settings{
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-14,
			Relative:   1e-12,
			Iterations: 100,
		},
		MajorIterations: 10000,
	}

	best := guess
	for pass := 0; pass < 2; pass++ {
		result, err := optimize.Minimize(problem, best, settings, &optimize.NelderMead{})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFitFailure, err)
		}
		if result.Status == optimize.Failure || result.Status == optimize.IterationLimit {
			return nil, fmt.Errorf("%w: optimizer stopped with status %v", ErrFitFailure, result.Status)
		}
		if !isFinite(result.F) {
			return nil, fmt.Errorf("%w: no finite optimum found", ErrFitFailure)
		}
		best = result.X
	}

	for _, p := range best {
		if !isFinite(p) {
			return nil, fmt.Errorf("%w: fitted parameter is not finite", ErrFitFailure)
		}
	}
	return best, nil
}

// FracInfectivity returns the fitted fraction infectivity at concentration c.
func (hc *HillCurve) FracInfectivity(c float64) float64 {
	return Evaluate(c, hc.Midpoint, hc.Slope, hc.Bottom, hc.Top)
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
