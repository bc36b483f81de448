package neutcurve

import (
	"errors"
	"math"
	"testing"

	"gopkg.in/guregu/null.v3"
)

// twofoldDilutions returns n concentrations starting at start and doubling,
// the usual serial-dilution layout of a neutralization assay.
func twofoldDilutions(start float64, n int) []float64 {
	cs := make([]float64, n)
	for i := range cs {
		cs[i] = start * math.Pow(2, float64(i))
	}
	return cs
}

func modelFracs(cs []float64, m, s, b, t float64) []float64 {
	fs := make([]float64, len(cs))
	for i, c := range cs {
		fs[i] = Evaluate(c, m, s, b, t)
	}
	return fs
}

func TestFitRecoversKnownParams(t *testing.T) {
	cs := twofoldDilutions(0.002, 9)
	fs := modelFracs(cs, 0.03, 1.9, 0.1, 1)

	curve, err := NewHillCurve(cs, fs)
	if err != nil {
		t.Fatal(err)
	}

	for _, v := range []struct {
		name     string
		got      float64
		expected float64
		tol      float64
	}{
		{"midpoint", curve.Midpoint, 0.03, 1e-4},
		{"slope", curve.Slope, 1.9, 1e-3},
		{"bottom", curve.Bottom, 0.1, 1e-4},
		{"top", curve.Top, 1, 0},
	} {
		if math.Abs(v.got-v.expected) > v.tol {
			t.Errorf("%s: got %.8f, expected %.8f", v.name, v.got, v.expected)
		}
	}
}

func TestIC50FromFit(t *testing.T) {
	cs := twofoldDilutions(0.002, 9)
	fs := modelFracs(cs, 0.03, 1.9, 0.1, 1)

	curve, err := NewHillCurve(cs, fs)
	if err != nil {
		t.Fatal(err)
	}

	// With top 1, bottom 0.1, midpoint 0.03, and slope 1.9, the curve
	// crosses 0.5 at 0.03 * 1.25^(1/1.9).
	const expected = 0.0337385586
	ic50, err := curve.IC50(IC50MethodInterpolate)
	if err != nil {
		t.Fatal(err)
	}
	if !ic50.Valid {
		t.Fatal("IC50 not interpolated from data spanning the crossing")
	}
	if math.Abs(ic50.Float64-expected) > 5e-4 {
		t.Errorf("IC50: got %.10f, expected %.10f", ic50.Float64, expected)
	}

	if bound := curve.IC50Bound(); bound != IC50Interpolated {
		t.Errorf("IC50Bound: got %q, expected %q", bound, IC50Interpolated)
	}
	if s := curve.IC50Str(3); s != "0.0337" {
		t.Errorf("IC50Str: got %q, expected %q", s, "0.0337")
	}
}

func TestIC50EqualsMidpointWhenPlateausFull(t *testing.T) {
	cs := twofoldDilutions(0.002, 9)
	fs := modelFracs(cs, 0.03, 1.9, 0, 1)

	curve, err := NewHillCurveWithOptions(cs, fs, CurveOptions{
		FixBottom: null.FloatFrom(0),
		FixTop:    null.FloatFrom(1),
	})
	if err != nil {
		t.Fatal(err)
	}

	// With the plateaus spanning exactly 0 to 1, the half-infectivity
	// point is the midpoint itself.
	ic50, err := curve.IC50(IC50MethodInterpolate)
	if err != nil {
		t.Fatal(err)
	}
	if !ic50.Valid || ic50.Float64 != curve.Midpoint {
		t.Errorf("IC50 %v should equal the midpoint %v", ic50, curve.Midpoint)
	}
}

func TestLogAndLinearSpacesAgree(t *testing.T) {
	cs := twofoldDilutions(0.002, 9)
	fs := modelFracs(cs, 0.03, 1.9, 0.1, 1)

	logCurve, err := NewHillCurve(cs, fs)
	if err != nil {
		t.Fatal(err)
	}
	linCurve, err := NewHillCurveWithOptions(cs, fs, CurveOptions{
		FixTop:     null.FloatFrom(1),
		LinearConc: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	if math.Abs(logCurve.Midpoint-linCurve.Midpoint) > 1e-3 ||
		math.Abs(logCurve.Slope-linCurve.Slope) > 1e-2 ||
		math.Abs(logCurve.Bottom-linCurve.Bottom) > 1e-3 {
		t.Errorf("log fit (%v, %v, %v) and linear fit (%v, %v, %v) disagree",
			logCurve.Midpoint, logCurve.Slope, logCurve.Bottom,
			linCurve.Midpoint, linCurve.Slope, linCurve.Bottom)
	}
}

func TestIC50BelowMeasuredRange(t *testing.T) {
	// The midpoint sits far below the smallest dose, so every measurement
	// is already past the crossing.
	cs := twofoldDilutions(0.002, 9)
	fs := modelFracs(cs, 1e-4, 1.9, 0.1, 1)

	curve, err := NewHillCurveWithOptions(cs, fs, CurveOptions{
		FixBottom: null.FloatFrom(0.1),
		FixTop:    null.FloatFrom(1),
	})
	if err != nil {
		t.Fatal(err)
	}

	interp, err := curve.IC50(IC50MethodInterpolate)
	if err != nil {
		t.Fatal(err)
	}
	if interp.Valid {
		t.Errorf("interpolated IC50 should be absent, got %v", interp.Float64)
	}
	bound, err := curve.IC50(IC50MethodBound)
	if err != nil {
		t.Fatal(err)
	}
	if !bound.Valid || bound.Float64 != cs[0] {
		t.Errorf("bound IC50: got %v, expected %v", bound, cs[0])
	}
	if b := curve.IC50Bound(); b != IC50Lower {
		t.Errorf("IC50Bound: got %q, expected %q", b, IC50Lower)
	}
	if s := curve.IC50Str(3); s != "<0.002" {
		t.Errorf("IC50Str: got %q, expected %q", s, "<0.002")
	}
}

func TestIC50AboveMeasuredRange(t *testing.T) {
	// Weak neutralization: the curve never falls to half infectivity
	// within the tested doses.
	cs := twofoldDilutions(1e-5, 7)
	fs := modelFracs(cs, 0.01, 1.9, 0, 1)

	curve, err := NewHillCurveWithOptions(cs, fs, CurveOptions{
		FixBottom: null.FloatFrom(0),
		FixTop:    null.FloatFrom(1),
	})
	if err != nil {
		t.Fatal(err)
	}

	interp, err := curve.IC50(IC50MethodInterpolate)
	if err != nil {
		t.Fatal(err)
	}
	if interp.Valid {
		t.Errorf("interpolated IC50 should be absent, got %v", interp.Float64)
	}
	bound, err := curve.IC50(IC50MethodBound)
	if err != nil {
		t.Fatal(err)
	}
	if !bound.Valid || bound.Float64 != cs[len(cs)-1] {
		t.Errorf("bound IC50: got %v, expected %v", bound, cs[len(cs)-1])
	}
	if b := curve.IC50Bound(); b != IC50Upper {
		t.Errorf("IC50Bound: got %q, expected %q", b, IC50Upper)
	}
	if s := curve.IC50Str(3); s != ">0.00064" {
		t.Errorf("IC50Str: got %q, expected %q", s, ">0.00064")
	}
}

func TestIC50PlateausBelowHalf(t *testing.T) {
	cs := twofoldDilutions(0.002, 9)
	fs := modelFracs(cs, 0.03, 1.9, 0.02, 0.4)

	curve, err := NewHillCurveWithOptions(cs, fs, CurveOptions{
		FixBottom: null.FloatFrom(0.02),
		FixTop:    null.FloatFrom(0.4),
	})
	if err != nil {
		t.Fatal(err)
	}

	bound, err := curve.IC50(IC50MethodBound)
	if err != nil {
		t.Fatal(err)
	}
	if !bound.Valid || bound.Float64 != cs[0] {
		t.Errorf("bound IC50: got %v, expected %v", bound, cs[0])
	}
	if b := curve.IC50Bound(); b != IC50Lower {
		t.Errorf("IC50Bound: got %q, expected %q", b, IC50Lower)
	}
}

func TestIC50PlateausAboveHalf(t *testing.T) {
	cs := twofoldDilutions(0.002, 9)
	fs := modelFracs(cs, 0.03, 1.9, 0.6, 1)

	curve, err := NewHillCurveWithOptions(cs, fs, CurveOptions{
		FixBottom: null.FloatFrom(0.6),
		FixTop:    null.FloatFrom(1),
	})
	if err != nil {
		t.Fatal(err)
	}

	bound, err := curve.IC50(IC50MethodBound)
	if err != nil {
		t.Fatal(err)
	}
	if !bound.Valid || bound.Float64 != cs[len(cs)-1] {
		t.Errorf("bound IC50: got %v, expected %v", bound, cs[len(cs)-1])
	}
	if b := curve.IC50Bound(); b != IC50Upper {
		t.Errorf("IC50Bound: got %q, expected %q", b, IC50Upper)
	}
	if s := curve.IC50Str(3); s != ">0.512" {
		t.Errorf("IC50Str: got %q, expected %q", s, ">0.512")
	}
}

func TestIC50UnknownMethod(t *testing.T) {
	cs := twofoldDilutions(0.002, 9)
	fs := modelFracs(cs, 0.03, 1.9, 0.1, 1)

	curve, err := NewHillCurve(cs, fs)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := curve.IC50("midpoint"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestWeightedFitRecoversKnownParams(t *testing.T) {
	cs := twofoldDilutions(0.002, 9)
	fs := modelFracs(cs, 0.03, 1.9, 0.1, 1)
	ses := make([]float64, len(cs))
	for i := range ses {
		ses[i] = 0.01
	}

	curve, err := NewHillCurveWithOptions(cs, fs, CurveOptions{
		StdErrs: ses,
		FixTop:  null.FloatFrom(1),
	})
	if err != nil {
		t.Fatal(err)
	}

	// Uniform weights scale the objective without moving its optimum.
	if math.Abs(curve.Midpoint-0.03) > 1e-4 ||
		math.Abs(curve.Slope-1.9) > 1e-3 ||
		math.Abs(curve.Bottom-0.1) > 1e-4 {
		t.Errorf("weighted fit got (%v, %v, %v), expected (0.03, 1.9, 0.1)",
			curve.Midpoint, curve.Slope, curve.Bottom)
	}
	if curve.FracStdErrs == nil || curve.FracStdErrs[0] != 0.01 {
		t.Error("fit should retain the standard errors")
	}
}

func TestSortsByConcentration(t *testing.T) {
	cs := []float64{0.128, 0.002, 0.032, 0.008, 0.512}
	fs := modelFracs(cs, 0.03, 1.9, 0, 1)

	curve, err := NewHillCurveWithOptions(cs, fs, CurveOptions{
		FixBottom: null.FloatFrom(0),
		FixTop:    null.FloatFrom(1),
	})
	if err != nil {
		t.Fatal(err)
	}

	sorted := []float64{0.002, 0.008, 0.032, 0.128, 0.512}
	for i, c := range sorted {
		if curve.Concentrations[i] != c {
			t.Fatalf("concentration %d: got %v, expected %v", i, curve.Concentrations[i], c)
		}
		if curve.Fracs[i] != Evaluate(c, 0.03, 1.9, 0, 1) {
			t.Fatalf("response at %v did not follow its concentration through the sort", c)
		}
	}
}

func TestFitInputValidation(t *testing.T) {
	good := twofoldDilutions(0.002, 9)
	goodFs := modelFracs(good, 0.03, 1.9, 0.1, 1)

	for _, v := range []struct {
		name string
		cs   []float64
		fs   []float64
		opts CurveOptions
	}{
		{"no data", nil, nil, CurveOptions{}},
		{"length mismatch", good, goodFs[:8], CurveOptions{}},
		{"zero concentration", []float64{0, 0.004, 0.008, 0.016}, goodFs[:4], CurveOptions{}},
		{"negative concentration", []float64{-0.002, 0.004, 0.008, 0.016}, goodFs[:4], CurveOptions{}},
		{"nan response", good, append([]float64{math.NaN()}, goodFs[1:]...), CurveOptions{}},
		{"stderr length mismatch", good, goodFs, CurveOptions{StdErrs: []float64{0.01}}},
		{"zero stderr", good[:3], goodFs[:3], CurveOptions{StdErrs: []float64{0.01, 0, 0.01}, FixBottom: null.FloatFrom(0), FixTop: null.FloatFrom(1)}},
		{"nan fixed top", good, goodFs, CurveOptions{FixTop: null.FloatFrom(math.NaN())}},
		{"underdetermined", good[:3], goodFs[:3], CurveOptions{}},
	} {
		curve, err := NewHillCurveWithOptions(v.cs, v.fs, v.opts)
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: expected ErrInvalidInput, got %v", v.name, err)
		}
		if curve != nil {
			t.Errorf("%s: expected nil curve", v.name)
		}
	}
}
