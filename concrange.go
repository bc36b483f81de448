package neutcurve

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Defaults for sampling a fitted curve over its measured concentrations.
const (
	DefaultRangePoints = 200
	DefaultRangeExtend = 0.1
)

// ConcentrationRange returns npoints concentrations logarithmically spaced
// over [bottom, top], with the span first widened on each side by extend
// times the log10 width of the range. extend of 0 spaces the points over
// exactly [bottom, top].
func ConcentrationRange(bottom, top float64, npoints int, extend float64) ([]float64, error) {
	if math.IsNaN(bottom) || math.IsNaN(top) {
		return nil, fmt.Errorf("%w: concentration range bounds must be numbers", ErrInvalidInput)
	}
	if bottom <= 0 {
		return nil, fmt.Errorf("%w: concentration range bottom %g must be > 0", ErrInvalidInput, bottom)
	}
	if top <= bottom {
		return nil, fmt.Errorf("%w: concentration range bottom %g must be below top %g", ErrInvalidInput, bottom, top)
	}
	if npoints < 2 {
		return nil, fmt.Errorf("%w: concentration range needs at least 2 points, not %d", ErrInvalidInput, npoints)
	}
	if extend < 0 {
		return nil, fmt.Errorf("%w: concentration range extension %g must be >= 0", ErrInvalidInput, extend)
	}

	logBottom := math.Log10(bottom)
	logTop := math.Log10(top)
	pad := extend * (logTop - logBottom)

	out := make([]float64, npoints)
	floats.LogSpan(out, math.Pow(10, logBottom-pad), math.Pow(10, logTop+pad))
	return out, nil
}
