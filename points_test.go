package neutcurve

import (
	"math"
	"testing"

	"gopkg.in/guregu/null.v3"
)

func TestPointsAlignMeasurementsWithFit(t *testing.T) {
	cs := twofoldDilutions(0.002, 9)
	fs := modelFracs(cs, 0.03, 1.9, 0.1, 1)
	ses := make([]float64, len(cs))
	for i := range ses {
		ses[i] = 0.02
	}

	curve, err := NewHillCurveWithOptions(cs, fs, CurveOptions{
		StdErrs: ses,
		FixTop:  null.FloatFrom(1),
	})
	if err != nil {
		t.Fatal(err)
	}

	points := curve.Points(nil)
	if len(points) != len(cs) {
		t.Fatalf("got %d points, expected %d", len(points), len(cs))
	}
	for i, p := range points {
		if p.Concentration != cs[i] {
			t.Errorf("point %d: concentration %v, expected %v", i, p.Concentration, cs[i])
		}
		if !p.Measurement.Valid || p.Measurement.Float64 != fs[i] {
			t.Errorf("point %d: measurement %v, expected %v", i, p.Measurement, fs[i])
		}
		if !p.StdErr.Valid || p.StdErr.Float64 != 0.02 {
			t.Errorf("point %d: stderr %v, expected 0.02", i, p.StdErr)
		}
		if p.Fit != curve.FracInfectivity(p.Concentration) {
			t.Errorf("point %d: fit %v does not match the curve", i, p.Fit)
		}
	}
}

func TestPointsWithExtraConcentrations(t *testing.T) {
	cs := twofoldDilutions(0.002, 9)
	fs := modelFracs(cs, 0.03, 1.9, 0, 1)

	curve, err := NewHillCurveWithOptions(cs, fs, CurveOptions{
		FixBottom: null.FloatFrom(0),
		FixTop:    null.FloatFrom(1),
	})
	if err != nil {
		t.Fatal(err)
	}

	points := curve.Points([]float64{1.0, 0.0005})
	if len(points) != len(cs)+2 {
		t.Fatalf("got %d points, expected %d", len(points), len(cs)+2)
	}
	if points[0].Concentration != 0.0005 || points[0].Measurement.Valid {
		t.Errorf("first point should be the unmeasured 0.0005, got %+v", points[0])
	}
	if last := points[len(points)-1]; last.Concentration != 1.0 || last.Measurement.Valid {
		t.Errorf("last point should be the unmeasured 1.0, got %+v", last)
	}
	for i := 1; i < len(points); i++ {
		if points[i].Concentration < points[i-1].Concentration {
			t.Fatalf("points out of order at %d", i)
		}
	}
}

func TestPointsAuto(t *testing.T) {
	cs := twofoldDilutions(0.002, 9)
	fs := modelFracs(cs, 0.03, 1.9, 0.1, 1)

	curve, err := NewHillCurve(cs, fs)
	if err != nil {
		t.Fatal(err)
	}

	points := curve.PointsAuto()
	if len(points) != len(cs)+DefaultRangePoints {
		t.Fatalf("got %d points, expected %d", len(points), len(cs)+DefaultRangePoints)
	}
	if points[0].Concentration >= cs[0] {
		t.Errorf("sampling should extend below the smallest dose: %v", points[0].Concentration)
	}
	if last := points[len(points)-1]; last.Concentration <= cs[len(cs)-1] {
		t.Errorf("sampling should extend above the largest dose: %v", last.Concentration)
	}

	measured := 0
	for i, p := range points {
		if i > 0 && p.Concentration < points[i-1].Concentration {
			t.Fatalf("points out of order at %d", i)
		}
		if math.IsNaN(p.Fit) || math.IsInf(p.Fit, 0) {
			t.Fatalf("fit at %v is not finite", p.Concentration)
		}
		if p.Measurement.Valid {
			measured++
		}
	}
	if measured != len(cs) {
		t.Errorf("got %d measured points, expected %d", measured, len(cs))
	}
}
