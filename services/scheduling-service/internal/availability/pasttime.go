package availability

import "time"

// NextSlotBoundary rounds now up to the next half hour. A time whose minute is
// exactly 0 or 30 is returned unchanged, seconds included. After :30 the
// boundary is the next hour, wrapping 23 to 00.
func NextSlotBoundary(now time.Time) TimeOfDay {
	h, m, s := now.Clock()
	switch {
	case m == 0 || m == 30:
		return Clock(h, m, s)
	case m < 30:
		return Clock(h, 30, 0)
	default:
		return Clock((h+1)%24, 0, 0)
	}
}

// FilterPast removes slots before the next boundary when day is the same
// calendar date as now. Both must be in the host's location. Other days pass
// through unchanged. Past 23:30 the boundary belongs to tomorrow, so nothing
// of today is left.
func FilterPast(slots []TimeOfDay, day, now time.Time) []TimeOfDay {
	if dateOf(day) != dateOf(now) {
		return slots
	}
	if h, m, _ := now.Clock(); h == 23 && m > 30 {
		return []TimeOfDay{}
	}
	return filterFrom(slots, NextSlotBoundary(now))
}

func filterFrom(slots []TimeOfDay, boundary TimeOfDay) []TimeOfDay {
	out := make([]TimeOfDay, 0, len(slots))
	for _, s := range slots {
		if s >= boundary {
			out = append(out, s)
		}
	}
	return out
}
