package neutcurve

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/BenLubar/memoize"
	"github.com/carbocation/runningvariance"
	"gonum.org/v1/gonum/floats"
	"gopkg.in/guregu/null.v3"
)

// AverageReplicate is the replicate name reserved for the synthesized
// cross-replicate average of each serum and virus. Input data may not use
// it as a replicate name.
const AverageReplicate = "average"

// stderrColName is the role the synthesized average rows add; the input
// layout may not claim it for any column.
const stderrColName = "stderr"

// Layout names the input columns holding each measurement role.
type Layout struct {
	SerumCol     string
	VirusCol     string
	ReplicateCol string
	ConcCol      string
	FracInfCol   string
}

// DefaultLayout is the column naming used by tidy neutralization exports.
func DefaultLayout() Layout {
	return Layout{
		SerumCol:     "serum",
		VirusCol:     "virus",
		ReplicateCol: "replicate",
		ConcCol:      "concentration",
		FracInfCol:   "fraction infectivity",
	}
}

// Config configures a CurveFits. The zero-valued Layout means
// DefaultLayout. FixBottom and FixTop apply to every curve the set fits;
// an invalid null.Float leaves that plateau free.
type Config struct {
	Layout    Layout
	FixBottom null.Float
	FixTop    null.Float
}

// Measurement is one tidy measurement row. After construction the set also
// contains synthesized AverageReplicate rows, which carry the standard
// error of the mean and the replicate count alongside the averaged
// fraction infectivity.
type Measurement struct {
	Serum           string     `csv:"serum"`
	Virus           string     `csv:"virus"`
	Replicate       string     `csv:"replicate"`
	Concentration   float64    `csv:"concentration"`
	FracInfectivity float64    `csv:"fraction_infectivity"`
	StdErr          null.Float `csv:"stderr"`
	NReplicates     null.Int   `csv:"nreplicates"`
}

type serumVirus struct {
	Serum string
	Virus string
}

type serumVirusReplicate struct {
	serumVirus
	Replicate string
}

// CurveFits groups a tidy table of neutralization measurements by serum,
// virus, and replicate, synthesizes a cross-replicate average for each
// serum and virus, and fits one HillCurve per group on demand. Fits are
// cached, so asking for the same curve twice fits it once.
//
// A CurveFits is not safe for concurrent use.
type CurveFits struct {
	Layout    Layout
	FixBottom null.Float
	FixTop    null.Float

	rows       []Measurement
	sera       []string
	viruses    map[string][]string
	replicates map[serumVirus][]string

	fitCurve func(serum, virus, replicate string) *fitOutcome
	fitCalls int

	fitParams     []CurveParams
	fitParamsDone bool
}

// fitOutcome pairs a fitted curve with its error so the cache can hold
// either result.
type fitOutcome struct {
	curve *HillCurve
	err   error
}

// NewCurveFits builds a CurveFits from a header row and data records under
// the usual neutralization assay assumptions: DefaultLayout column names,
// top plateau fixed to 1, bottom plateau fit.
func NewCurveFits(header []string, records [][]string) (*CurveFits, error) {
	return NewCurveFitsWithConfig(header, records, Config{FixTop: null.FloatFrom(1)})
}

// NewCurveFitsWithConfig builds a CurveFits with explicit column naming and
// plateau handling. It validates the layout against the header, parses and
// validates every row, checks that replicates of the same serum and virus
// were measured at identical concentrations, and synthesizes the
// AverageReplicate rows. Violations return an error wrapping ErrValidation.
func NewCurveFitsWithConfig(header []string, records [][]string, config Config) (*CurveFits, error) {
	layout := config.Layout
	if layout == (Layout{}) {
		layout = DefaultLayout()
	}

	cf := &CurveFits{
		Layout:     layout,
		FixBottom:  config.FixBottom,
		FixTop:     config.FixTop,
		viruses:    make(map[string][]string),
		replicates: make(map[serumVirus][]string),
	}

	iSerum, iVirus, iRep, iConc, iFrac, err := layout.columnIndices(header)
	if err != nil {
		return nil, err
	}

	cf.rows = make([]Measurement, 0, len(records))
	for n, rec := range records {
		row := Measurement{}
		for _, i := range []int{iSerum, iVirus, iRep, iConc, iFrac} {
			if i >= len(rec) {
				return nil, fmt.Errorf("%w: row %d has %d fields but the header names %d columns", ErrValidation, n+1, len(rec), len(header))
			}
		}
		row.Serum = rec[iSerum]
		row.Virus = rec[iVirus]
		row.Replicate = rec[iRep]
		row.Concentration, err = strconv.ParseFloat(strings.TrimSpace(rec[iConc]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d concentration %q is not numeric", ErrValidation, n+1, rec[iConc])
		}
		row.FracInfectivity, err = strconv.ParseFloat(strings.TrimSpace(rec[iFrac]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d fraction infectivity %q is not numeric", ErrValidation, n+1, rec[iFrac])
		}
		cf.rows = append(cf.rows, row)
	}

	if err := cf.buildIndices(); err != nil {
		return nil, err
	}
	if err := cf.checkConcentrationGrids(); err != nil {
		return nil, err
	}
	cf.addAverages()

	cf.fitCurve = memoize.Memoize(cf.fit).(func(string, string, string) *fitOutcome)
	return cf, nil
}

// columnIndices resolves the layout's roles against the header, rejecting
// empty or doubly-assigned column names, a layout that claims the
// synthesized standard-error column, and columns missing from the header.
func (l Layout) columnIndices(header []string) (iSerum, iVirus, iRep, iConc, iFrac int, err error) {
	cols := []string{l.SerumCol, l.VirusCol, l.ReplicateCol, l.ConcCol, l.FracInfCol}
	seen := make(map[string]bool, len(cols))
	for _, col := range cols {
		if col == "" {
			return 0, 0, 0, 0, 0, fmt.Errorf("%w: layout leaves a column role unnamed", ErrValidation)
		}
		if col == stderrColName {
			return 0, 0, 0, 0, 0, fmt.Errorf("%w: column name %q is reserved for synthesized standard errors", ErrValidation, col)
		}
		if seen[col] {
			return 0, 0, 0, 0, 0, fmt.Errorf("%w: column %q is assigned to more than one role", ErrValidation, col)
		}
		seen[col] = true
	}

	pos := make(map[string]int, len(header))
	for i, name := range header {
		if _, ok := pos[name]; !ok {
			pos[name] = i
		}
	}
	idx := make([]int, len(cols))
	for i, col := range cols {
		j, ok := pos[col]
		if !ok {
			return 0, 0, 0, 0, 0, fmt.Errorf("%w: required column %q is not in the header %v", ErrValidation, col, header)
		}
		idx[i] = j
	}
	return idx[0], idx[1], idx[2], idx[3], idx[4], nil
}

// buildIndices records the sera, per-serum viruses, and per-serum-virus
// replicates in the order each first appears in the input.
func (cf *CurveFits) buildIndices() error {
	seenSerum := make(map[string]bool)
	seenVirus := make(map[serumVirus]bool)
	seenRep := make(map[serumVirusReplicate]bool)
	for _, row := range cf.rows {
		if !seenSerum[row.Serum] {
			seenSerum[row.Serum] = true
			cf.sera = append(cf.sera, row.Serum)
		}
		sv := serumVirus{row.Serum, row.Virus}
		if !seenVirus[sv] {
			seenVirus[sv] = true
			cf.viruses[row.Serum] = append(cf.viruses[row.Serum], row.Virus)
		}
		svr := serumVirusReplicate{sv, row.Replicate}
		if !seenRep[svr] {
			seenRep[svr] = true
			if row.Replicate == AverageReplicate {
				return fmt.Errorf("%w: serum %q virus %q has a replicate named %q, which is reserved for the synthesized average", ErrValidation, row.Serum, row.Virus, AverageReplicate)
			}
			cf.replicates[sv] = append(cf.replicates[sv], row.Replicate)
		}
	}
	return nil
}

// checkConcentrationGrids verifies that within each serum and virus, no
// replicate measures the same concentration twice and every replicate
// measures the same set of concentrations. Averaging across replicates is
// only meaningful on a shared grid.
func (cf *CurveFits) checkConcentrationGrids() error {
	for _, serum := range cf.sera {
		for _, virus := range cf.viruses[serum] {
			sv := serumVirus{serum, virus}
			var first []float64
			var firstRep string
			for i, rep := range cf.replicates[sv] {
				concs := cf.sortedConcs(serum, virus, rep)
				for j := 1; j < len(concs); j++ {
					if concs[j] == concs[j-1] {
						return fmt.Errorf("%w: serum %q virus %q replicate %q measures concentration %g more than once", ErrValidation, serum, virus, rep, concs[j])
					}
				}
				if i == 0 {
					first, firstRep = concs, rep
					continue
				}
				if !floats.Equal(first, concs) {
					return fmt.Errorf("%w: serum %q virus %q replicates %q and %q measure different concentrations", ErrValidation, serum, virus, firstRep, rep)
				}
			}
		}
	}
	return nil
}

// addAverages synthesizes the AverageReplicate rows. For each serum, virus,
// and concentration, the averaged fraction infectivity is the mean across
// replicates, the standard error is the sample standard deviation over
// sqrt(n), and NReplicates records n. With a single replicate the standard
// error is left invalid.
func (cf *CurveFits) addAverages() {
	var avgRows []Measurement
	for _, serum := range cf.sera {
		for _, virus := range cf.viruses[serum] {
			sv := serumVirus{serum, virus}
			reps := cf.replicates[sv]
			if len(reps) == 0 {
				continue
			}
			concs := cf.sortedConcs(serum, virus, reps[0])

			byConc := make(map[float64]*runningvariance.RunningStat, len(concs))
			for _, row := range cf.rows {
				if row.Serum != serum || row.Virus != virus {
					continue
				}
				rs := byConc[row.Concentration]
				if rs == nil {
					rs = runningvariance.NewRunningStat()
					byConc[row.Concentration] = rs
				}
				rs.Push(row.FracInfectivity)
			}

			for _, conc := range concs {
				rs := byConc[conc]
				avg := Measurement{
					Serum:           serum,
					Virus:           virus,
					Replicate:       AverageReplicate,
					Concentration:   conc,
					FracInfectivity: rs.Mean(),
					NReplicates:     null.IntFrom(int64(rs.N)),
				}
				if rs.N > 1 {
					avg.StdErr = null.FloatFrom(rs.StandardDeviation() / math.Sqrt(float64(rs.N)))
				}
				avgRows = append(avgRows, avg)
			}
		}
	}
	cf.rows = append(cf.rows, avgRows...)

	for sv := range cf.replicates {
		cf.replicates[sv] = append(cf.replicates[sv], AverageReplicate)
	}
}

// sortedConcs returns the concentrations measured for one serum, virus, and
// replicate, ascending.
func (cf *CurveFits) sortedConcs(serum, virus, replicate string) []float64 {
	var concs []float64
	for _, row := range cf.rows {
		if row.Serum == serum && row.Virus == virus && row.Replicate == replicate {
			concs = append(concs, row.Concentration)
		}
	}
	sort.Float64s(concs)
	return concs
}

// Sera returns the serum names in the order they first appear in the input.
func (cf *CurveFits) Sera() []string {
	return append([]string(nil), cf.sera...)
}

// Viruses returns the viruses measured against a serum in first-seen order,
// or nil for an unknown serum.
func (cf *CurveFits) Viruses(serum string) []string {
	return append([]string(nil), cf.viruses[serum]...)
}

// Replicates returns the replicates measured for a serum and virus in
// first-seen order with AverageReplicate last, or nil for an unknown pair.
func (cf *CurveFits) Replicates(serum, virus string) []string {
	return append([]string(nil), cf.replicates[serumVirus{serum, virus}]...)
}

// AllViruses returns every virus across all sera, deduplicated, in
// first-seen order.
func (cf *CurveFits) AllViruses() []string {
	var out []string
	seen := make(map[string]bool)
	for _, serum := range cf.sera {
		for _, virus := range cf.viruses[serum] {
			if !seen[virus] {
				seen[virus] = true
				out = append(out, virus)
			}
		}
	}
	return out
}

// AllReplicates returns every replicate name across all sera and viruses,
// deduplicated, in first-seen order, with AverageReplicate last.
func (cf *CurveFits) AllReplicates() []string {
	var out []string
	seen := make(map[string]bool)
	for _, serum := range cf.sera {
		for _, virus := range cf.viruses[serum] {
			for _, rep := range cf.replicates[serumVirus{serum, virus}] {
				if rep != AverageReplicate && !seen[rep] {
					seen[rep] = true
					out = append(out, rep)
				}
			}
		}
	}
	if len(out) > 0 {
		out = append(out, AverageReplicate)
	}
	return out
}

// Measurements returns a copy of the tidy rows, the parsed input rows
// followed by the synthesized AverageReplicate rows.
func (cf *CurveFits) Measurements() []Measurement {
	return append([]Measurement(nil), cf.rows...)
}

// GetCurve returns the fitted curve for one serum, virus, and replicate,
// fitting on first request and answering from the cache afterwards.
// Replicate may be AverageReplicate for the synthesized average. Unknown
// keys return an error wrapping ErrInvalidArgument without consulting the
// cache.
func (cf *CurveFits) GetCurve(serum, virus, replicate string) (*HillCurve, error) {
	if _, ok := cf.viruses[serum]; !ok {
		return nil, fmt.Errorf("%w: no serum %q in the data", ErrInvalidArgument, serum)
	}
	sv := serumVirus{serum, virus}
	reps, ok := cf.replicates[sv]
	if !ok {
		return nil, fmt.Errorf("%w: no virus %q measured against serum %q", ErrInvalidArgument, virus, serum)
	}
	found := false
	for _, rep := range reps {
		if rep == replicate {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: no replicate %q for serum %q and virus %q", ErrInvalidArgument, replicate, serum, virus)
	}

	outcome := cf.fitCurve(serum, virus, replicate)
	return outcome.curve, outcome.err
}

// fit runs the curve fit for one key. GetCurve memoizes it, so each key is
// fit at most once.
func (cf *CurveFits) fit(serum, virus, replicate string) *fitOutcome {
	cf.fitCalls++

	var rows []Measurement
	for _, row := range cf.rows {
		if row.Serum == serum && row.Virus == virus && row.Replicate == replicate {
			rows = append(rows, row)
		}
	}

	cs := make([]float64, len(rows))
	fs := make([]float64, len(rows))
	withStdErr := 0
	for i, row := range rows {
		cs[i] = row.Concentration
		fs[i] = row.FracInfectivity
		if row.StdErr.Valid {
			withStdErr++
		}
	}

	opts := CurveOptions{FixBottom: cf.FixBottom, FixTop: cf.FixTop}
	switch {
	case withStdErr == 0:
	case withStdErr == len(rows):
		opts.StdErrs = make([]float64, len(rows))
		for i, row := range rows {
			opts.StdErrs[i] = row.StdErr.Float64
		}
	default:
		return &fitOutcome{err: fmt.Errorf("%w: %d of %d rows for serum %q virus %q replicate %q carry standard errors", ErrInternal, withStdErr, len(rows), serum, virus, replicate)}
	}

	curve, err := NewHillCurveWithOptions(cs, fs, opts)
	if err != nil {
		return &fitOutcome{err: fmt.Errorf("fitting serum %q virus %q replicate %q: %w", serum, virus, replicate, err)}
	}
	return &fitOutcome{curve: curve}
}
