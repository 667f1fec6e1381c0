package availability

import (
	"slices"
	"time"
)

const (
	// SlotLength is the fixed duration of every bookable slot.
	SlotLength = 30 * time.Minute

	slotStep = TimeOfDay(SlotLength / time.Second)
)

// DefaultEnd is used for rules stored without an end time.
var DefaultEnd = Clock(23, 30, 0)

// Rule is one recurring weekly window.
type Rule struct {
	Day       Weekday
	Start     TimeOfDay
	End       TimeOfDay
	Available bool
}

func (r Rule) Interval() Interval {
	return Interval{Start: r.Start, End: r.End}
}

// GenerateSlots expands rules into unique slot start times. A slot is emitted
// only when it starts strictly before the rule's end, so a trailing remainder
// shorter than SlotLength is dropped and start >= end yields nothing.
// Unavailable rules contribute no slots. The result keeps first-seen order.
func GenerateSlots(rules []Rule) []TimeOfDay {
	seen := make(map[TimeOfDay]struct{})
	slots := make([]TimeOfDay, 0)
	for _, r := range rules {
		if !r.Available {
			continue
		}
		for t := r.Start; t < r.End; t += slotStep {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			slots = append(slots, t)
		}
	}
	return slots
}

// SortSlots orders slots ascending in place and returns them.
func SortSlots(slots []TimeOfDay) []TimeOfDay {
	slices.Sort(slots)
	return slots
}
