package domain

import "fmt"

// Gap is a maximal run of absent observations in one field's series.
type Gap struct {
	Field  Field `json:"field"`
	Start  int   `json:"start"`
	Length int   `json:"length"`
}

// End returns the index of the last absent hour in the gap.
func (g Gap) End() int {
	return g.Start + g.Length - 1
}

func (g Gap) String() string {
	return fmt.Sprintf("%s gap at hours %d-%d (length %d)", g.Field, g.Start, g.End(), g.Length)
}

// FindGaps scans s once from left to right and returns its gaps ordered by
// start index. A series with no absent slots yields nil.
func FindGaps(s *AnnualSeries) []Gap {
	var gaps []Gap
	start := -1
	for i, o := range s.obs {
		switch {
		case !o.Present && start < 0:
			start = i
		case o.Present && start >= 0:
			gaps = append(gaps, Gap{Field: s.field, Start: start, Length: i - start})
			start = -1
		}
	}
	if start >= 0 {
		gaps = append(gaps, Gap{Field: s.field, Start: start, Length: len(s.obs) - start})
	}
	return gaps
}

// leadingMissing returns the number of absent slots at the start of s.
func leadingMissing(s *AnnualSeries) int {
	for i, o := range s.obs {
		if o.Present {
			return i
		}
	}
	return len(s.obs)
}
