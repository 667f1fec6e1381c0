package availability

import (
	"cmp"
	"slices"
)

// Interval is a half-open [Start, End) span within one day.
type Interval struct {
	Start TimeOfDay
	End   TimeOfDay
}

// IntervalsOverlap reports whether [aStart,aEnd) and [bStart,bEnd) share any
// instant. Touching intervals do not overlap.
func IntervalsOverlap(aStart, aEnd, bStart, bEnd TimeOfDay) bool {
	return aStart < bEnd && bStart < aEnd
}

func (i Interval) Overlaps(o Interval) bool {
	return IntervalsOverlap(i.Start, i.End, o.Start, o.End)
}

func compareIntervals(a, b Interval) int {
	if c := cmp.Compare(a.Start, b.Start); c != 0 {
		return c
	}
	return cmp.Compare(a.End, b.End)
}

// SortByStart returns a copy ordered by start, then end. Equal intervals keep
// their input order.
func SortByStart(intervals []Interval) []Interval {
	out := slices.Clone(intervals)
	slices.SortStableFunc(out, compareIntervals)
	return out
}
