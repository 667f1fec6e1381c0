package availability

import (
	"fmt"
	"strings"
	"time"
)

// Weekday is one of the seven named days rules are scoped to.
type Weekday uint8

const (
	Monday Weekday = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayTable = [...]struct {
	name  string
	label string
	std   time.Weekday
}{
	Monday:    {"monday", "Monday", time.Monday},
	Tuesday:   {"tuesday", "Tuesday", time.Tuesday},
	Wednesday: {"wednesday", "Wednesday", time.Wednesday},
	Thursday:  {"thursday", "Thursday", time.Thursday},
	Friday:    {"friday", "Friday", time.Friday},
	Saturday:  {"saturday", "Saturday", time.Saturday},
	Sunday:    {"sunday", "Sunday", time.Sunday},
}

// Weekdays lists the days monday first.
func Weekdays() []Weekday {
	return []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}
}

// ParseWeekday accepts the lowercase day name, ignoring case and surrounding space.
func ParseWeekday(s string) (Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, d := range Weekdays() {
		if weekdayTable[d].name == s {
			return d, true
		}
	}
	return 0, false
}

// WeekdayOf returns the weekday of t in t's location.
func WeekdayOf(t time.Time) Weekday {
	wd := t.Weekday()
	if wd == time.Sunday {
		return Sunday
	}
	return Weekday(wd)
}

func (d Weekday) Valid() bool {
	return d >= Monday && d <= Sunday
}

// String returns the stored name, e.g. "monday".
func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Weekday(%d)", uint8(d))
	}
	return weekdayTable[d].name
}

// Label returns the display name, e.g. "Monday".
func (d Weekday) Label() string {
	if !d.Valid() {
		return ""
	}
	return weekdayTable[d].label
}

func (d Weekday) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid weekday %d", uint8(d))
	}
	return []byte(d.String()), nil
}

func (d *Weekday) UnmarshalText(b []byte) error {
	v, ok := ParseWeekday(string(b))
	if !ok {
		return fmt.Errorf("invalid weekday %q", string(b))
	}
	*d = v
	return nil
}
