package neutcurve

import (
	"fmt"
	"math"

	"gopkg.in/guregu/null.v3"
)

// Classifications returned by IC50Bound.
const (
	IC50Interpolated = "interpolated"
	IC50Lower        = "lower"
	IC50Upper        = "upper"
)

// Methods accepted by IC50.
const (
	IC50MethodInterpolate = "interpolate"
	IC50MethodBound       = "bound"
)

// IC50 returns the concentration at which the fitted curve crosses a
// fraction infectivity of 0.5. When that concentration falls within the
// measured range, both methods return it. When it falls outside, the data
// only bound the IC50: method "interpolate" reports an invalid null.Float,
// while method "bound" reports the nearest measured concentration, the
// tightest statement the data support.
func (hc *HillCurve) IC50(method string) (null.Float, error) {
	if method != IC50MethodInterpolate && method != IC50MethodBound {
		return null.Float{}, fmt.Errorf("%w: IC50 method must be %q or %q, not %q", ErrInvalidArgument, IC50MethodInterpolate, IC50MethodBound, method)
	}

	minC := hc.Concentrations[0]
	maxC := hc.Concentrations[len(hc.Concentrations)-1]

	var atBound float64
	switch {
	case hc.Top < 0.5 && hc.Bottom < 0.5:
		// The whole curve sits below half infectivity, so even the
		// smallest measured dose is past the IC50.
		atBound = minC
	case hc.Top >= 0.5 && hc.Bottom >= 0.5:
		// The curve never reaches half infectivity within its plateaus,
		// so the IC50 lies beyond the largest measured dose.
		atBound = maxC
	default:
		ic50 := hc.Midpoint * math.Pow((hc.Top-0.5)/(0.5-hc.Bottom), 1/hc.Slope)
		switch {
		case ic50 >= minC && ic50 <= maxC:
			return null.FloatFrom(ic50), nil
		case ic50 < minC:
			atBound = minC
		default:
			atBound = maxC
		}
	}

	if method == IC50MethodBound {
		return null.FloatFrom(atBound), nil
	}
	return null.Float{}, nil
}

// IC50Bound classifies the IC50 as "interpolated" when it falls inside the
// measured concentrations, "lower" when it lies below the smallest one, or
// "upper" when it lies above the largest. The classification compares the
// bound-method IC50 against the endpoint concentrations, so an interpolated
// value landing exactly on an endpoint is reported as a bound.
func (hc *HillCurve) IC50Bound() string {
	ic50, err := hc.IC50(IC50MethodBound)
	if err != nil || !ic50.Valid {
		// The method name is fixed here and the bound method always
		// yields a value.
		return ""
	}
	switch ic50.Float64 {
	case hc.Concentrations[0]:
		return IC50Lower
	case hc.Concentrations[len(hc.Concentrations)-1]:
		return IC50Upper
	}
	return IC50Interpolated
}

// IC50Str formats the bound-method IC50 to precision significant digits,
// prefixed with "<" when the IC50 lies below all measured concentrations
// and ">" when it lies above them all.
func (hc *HillCurve) IC50Str(precision int) string {
	ic50, err := hc.IC50(IC50MethodBound)
	if err != nil || !ic50.Valid {
		return ""
	}
	var prefix string
	switch hc.IC50Bound() {
	case IC50Lower:
		prefix = "<"
	case IC50Upper:
		prefix = ">"
	}
	return prefix + fmt.Sprintf("%.*g", precision, ic50.Float64)
}
