package neutcurve

import "gopkg.in/guregu/null.v3"

// CurveParams is one row of the fitted-parameter table: the Hill-curve
// parameters and IC50 summaries for one serum, virus, and replicate.
// NReplicates is valid only on AverageReplicate rows, where it counts the
// replicates averaged.
type CurveParams struct {
	Serum       string     `csv:"serum"`
	Virus       string     `csv:"virus"`
	Replicate   string     `csv:"replicate"`
	NReplicates null.Int   `csv:"nreplicates"`
	IC50        float64    `csv:"ic50"`
	IC50Bound   string     `csv:"ic50_bound"`
	IC50Str     string     `csv:"ic50_str"`
	Midpoint    float64    `csv:"midpoint"`
	Slope       float64    `csv:"slope"`
	Top         float64    `csv:"top"`
	Bottom      float64    `csv:"bottom"`
}

// FitParams fits every curve in the set and returns one CurveParams row per
// serum, virus, and replicate, ordered serum by virus by replicate with the
// AverageReplicate row last in each group. The IC50 column holds the
// bound-method value; IC50Bound and IC50Str say how to read it. The full
// table is computed once and cached. With averageOnly, only the
// AverageReplicate rows are returned.
func (cf *CurveFits) FitParams(averageOnly bool) ([]CurveParams, error) {
	if !cf.fitParamsDone {
		var table []CurveParams
		for _, serum := range cf.sera {
			for _, virus := range cf.viruses[serum] {
				reps := cf.replicates[serumVirus{serum, virus}]
				for _, replicate := range reps {
					curve, err := cf.GetCurve(serum, virus, replicate)
					if err != nil {
						return nil, err
					}
					ic50, err := curve.IC50(IC50MethodBound)
					if err != nil {
						return nil, err
					}
					row := CurveParams{
						Serum:     serum,
						Virus:     virus,
						Replicate: replicate,
						IC50:      ic50.Float64,
						IC50Bound: curve.IC50Bound(),
						IC50Str:   curve.IC50Str(3),
						Midpoint:  curve.Midpoint,
						Slope:     curve.Slope,
						Top:       curve.Top,
						Bottom:    curve.Bottom,
					}
					if replicate == AverageReplicate {
						row.NReplicates = null.IntFrom(int64(len(reps) - 1))
					}
					table = append(table, row)
				}
			}
		}
		cf.fitParams = table
		cf.fitParamsDone = true
	}

	if !averageOnly {
		return append([]CurveParams(nil), cf.fitParams...), nil
	}
	out := make([]CurveParams, 0, len(cf.fitParams))
	for _, row := range cf.fitParams {
		if row.Replicate == AverageReplicate {
			out = append(out, row)
		}
	}
	return out, nil
}
