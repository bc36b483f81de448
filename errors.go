package neutcurve

import "errors"

// Sentinel errors returned by this package. Wrapped errors carry the
// offending values, so test with errors.Is.
var (
	// ErrValidation indicates a tidy dataset that violates the layout or
	// grid requirements checked at construction.
	ErrValidation = errors.New("neutcurve: invalid dataset")

	// ErrInvalidArgument indicates a caller-supplied argument outside the
	// documented domain, such as an unknown IC50 method or curve key.
	ErrInvalidArgument = errors.New("neutcurve: invalid argument")

	// ErrInvalidInput indicates measurement values a curve cannot be fit
	// to, such as nonpositive concentrations or mismatched slice lengths.
	ErrInvalidInput = errors.New("neutcurve: invalid input")

	// ErrFitFailure indicates the optimizer could not converge to finite
	// curve parameters.
	ErrFitFailure = errors.New("neutcurve: fit failed to converge")

	// ErrInternal indicates a broken invariant that construction-time
	// validation should have made impossible.
	ErrInternal = errors.New("neutcurve: internal inconsistency")
)
