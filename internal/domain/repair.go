package domain

import "fmt"

// ImputationLag is the offset, in hours, of the reference observations used
// to impute a missing hour: 14 days either side.
const ImputationLag = 14 * 24

// RepairOutcome classifies how a gap was resolved.
type RepairOutcome string

const (
	Interpolated RepairOutcome = "interpolated"
	Imputed      RepairOutcome = "imputed"
	Unrepairable RepairOutcome = "unrepairable"
)

// GapRepair pairs a gap with its resolution.
type GapRepair struct {
	Gap     Gap           `json:"gap"`
	Outcome RepairOutcome `json:"outcome"`
}

// SeriesRepair is the result of repairing one field.
type SeriesRepair struct {
	Series *AnnualSeries
	Gaps   []GapRepair
}

// UnrepairableGapError names the gap that stopped a repair and why.
type UnrepairableGapError struct {
	Gap   Gap
	Cause string
}

func (e *UnrepairableGapError) Error() string {
	return fmt.Sprintf("unrepairable %s: %s", e.Gap, e.Cause)
}

// RepairSeries fills every gap in current according to policy and returns a
// new series; current and subsequent are never modified. subsequent is the
// same field for the following year and may be nil. It supplies the right
// boundary for gaps that reach December 31 and the forward references for
// imputation near year end.
//
// The first unrepairable gap aborts the repair with an *UnrepairableGapError;
// the returned SeriesRepair then lists the outcomes decided so far.
func RepairSeries(policy RepairPolicy, current, subsequent *AnnualSeries) (SeriesRepair, error) {
	if subsequent != nil && (subsequent.field != current.field || subsequent.year != current.year+1) {
		return SeriesRepair{}, fmt.Errorf("repair %s/%d: context series is %s/%d", current.field, current.year, subsequent.field, subsequent.year)
	}

	gaps := FindGaps(current)
	if len(gaps) == 0 {
		return SeriesRepair{Series: current}, nil
	}

	out := current.Observations()
	repairs := make([]GapRepair, 0, len(gaps))
	for _, g := range gaps {
		outcome, err := repairGap(policy, current, subsequent, g, out)
		if err != nil {
			repairs = append(repairs, GapRepair{Gap: g, Outcome: Unrepairable})
			return SeriesRepair{Gaps: repairs}, err
		}
		repairs = append(repairs, GapRepair{Gap: g, Outcome: outcome})
	}

	return SeriesRepair{
		Series: &AnnualSeries{field: current.field, year: current.year, obs: out},
		Gaps:   repairs,
	}, nil
}

// repairGap writes the repaired values for g into out. References are always
// read from the original series so repairs never chain.
func repairGap(policy RepairPolicy, cur, next *AnnualSeries, g Gap, out []Observation) (RepairOutcome, error) {
	if g.Length == cur.Len() {
		return Unrepairable, &UnrepairableGapError{Gap: g, Cause: "field has no observations"}
	}

	span := g.Length
	var before, after float64
	hasBefore, hasAfter := false, false

	if g.Start > 0 {
		before, hasBefore = cur.obs[g.Start-1].Value, true
	}
	if g.End() < cur.Len()-1 {
		after, hasAfter = cur.obs[g.End()+1].Value, true
	} else if next != nil {
		// The run continues into the following year until its first reading.
		k := leadingMissing(next)
		span += k
		if k < next.Len() {
			after, hasAfter = next.obs[k].Value, true
		}
	}

	switch {
	case span <= policy.MaxInterpolate && hasBefore && hasAfter:
		interpolate(out, g, span, before, after)
		return Interpolated, nil
	case g.Length <= policy.MaxImpute:
		if err := impute(cur, next, g, out); err != nil {
			return Unrepairable, err
		}
		return Imputed, nil
	default:
		return Unrepairable, &UnrepairableGapError{
			Gap:   g,
			Cause: fmt.Sprintf("exceeds max impute %d", policy.MaxImpute),
		}
	}
}

// interpolate fills the gap on a straight line from before to after. span is
// the full run length, which exceeds g.Length when the run crosses into the
// following year.
func interpolate(out []Observation, g Gap, span int, before, after float64) {
	step := (after - before) / float64(span+1)
	for i := 0; i < g.Length; i++ {
		out[g.Start+i] = Present(before + step*float64(i+1))
	}
}

func impute(cur, next *AnnualSeries, g Gap, out []Observation) error {
	filled := make([]Observation, g.Length)
	for i := range filled {
		h := g.Start + i
		back := h - ImputationLag
		if back < 0 {
			return &UnrepairableGapError{Gap: g, Cause: fmt.Sprintf("reference hour %d falls before January 1", back)}
		}
		prev := cur.obs[back]
		if !prev.Present {
			return &UnrepairableGapError{Gap: g, Cause: fmt.Sprintf("reference hour %d is missing", back)}
		}
		fwd, ok := forwardReference(cur, next, h+ImputationLag)
		if !ok {
			return &UnrepairableGapError{Gap: g, Cause: fmt.Sprintf("reference hour %d is beyond available data", h+ImputationLag)}
		}
		if !fwd.Present {
			return &UnrepairableGapError{Gap: g, Cause: fmt.Sprintf("reference hour %d is missing", h+ImputationLag)}
		}
		filled[i] = Present((prev.Value + fwd.Value) / 2)
	}
	copy(out[g.Start:], filled)
	return nil
}

// forwardReference resolves an index that may run past the end of cur into
// the following year's series.
func forwardReference(cur, next *AnnualSeries, idx int) (Observation, bool) {
	if idx < cur.Len() {
		return cur.obs[idx], true
	}
	if next == nil {
		return Observation{}, false
	}
	j := idx - cur.Len()
	if j >= next.Len() {
		return Observation{}, false
	}
	return next.obs[j], true
}

// Classify reports how RepairSeries would resolve each gap of current without
// building the repaired series.
func Classify(policy RepairPolicy, current, subsequent *AnnualSeries) []GapRepair {
	gaps := FindGaps(current)
	scratch := current.Observations()
	repairs := make([]GapRepair, 0, len(gaps))
	for _, g := range gaps {
		outcome, _ := repairGap(policy, current, subsequent, g, scratch)
		repairs = append(repairs, GapRepair{Gap: g, Outcome: outcome})
	}
	return repairs
}
