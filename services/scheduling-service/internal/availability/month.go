package availability

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidMonth = errors.New("month must be between 1 and 12")

// MinYear is the smallest year Month accepts.
const MinYear = 1

// Booking is the engine's view of a stored booking.
type Booking struct {
	HostID    string
	GuestID   string
	At        time.Time
	Cancelled bool
}

// DayAvailability is one day of a month result.
type DayAvailability struct {
	Date        string      `json:"date"`
	IsAvailable bool        `json:"is_available"`
	TimeSlots   []TimeOfDay `json:"time_slots"`
}

// Calendar is everything needed to compute a host's availability.
type Calendar struct {
	HostID   string
	Location *time.Location
	Rules    []Rule
	// Bookings may include bookings where the host is the guest; only
	// non-cancelled bookings hosted by HostID block slots.
	Bookings []Booking
}

type date struct {
	year  int
	month time.Month
	day   int
}

func dateOf(t time.Time) date {
	y, m, d := t.Date()
	return date{y, m, d}
}

func (d date) before(o date) bool {
	if d.year != o.year {
		return d.year < o.year
	}
	if d.month != o.month {
		return d.month < o.month
	}
	return d.day < o.day
}

func (d date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.year, int(d.month), d.day)
}

func (d date) weekday() Weekday {
	return WeekdayOf(time.Date(d.year, d.month, d.day, 12, 0, 0, 0, time.UTC))
}

func (c Calendar) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// Month returns one record per day of the month in ascending date order.
func (c Calendar) Month(year int, month time.Month, now time.Time) ([]DayAvailability, error) {
	if month < time.January || month > time.December {
		return nil, ErrInvalidMonth
	}
	if year < MinYear {
		return nil, fmt.Errorf("year must be at least %d", MinYear)
	}

	loc := c.location()
	nowLocal := now.In(loc)
	byDay := c.rulesByDay()
	booked := c.bookedByDate()

	days := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
	out := make([]DayAvailability, 0, days)
	for d := 1; d <= days; d++ {
		out = append(out, c.evaluate(date{year, month, d}, nowLocal, byDay, booked))
	}
	return out, nil
}

// Day computes a single date. It is the same computation Month runs per day.
func (c Calendar) Day(year int, month time.Month, day int, now time.Time) DayAvailability {
	nowLocal := now.In(c.location())
	return c.evaluate(dateOf(time.Date(year, month, day, 12, 0, 0, 0, time.UTC)), nowLocal, c.rulesByDay(), c.bookedByDate())
}

func (c Calendar) evaluate(d date, nowLocal time.Time, byDay map[Weekday][]Rule, booked map[date][]TimeOfDay) DayAvailability {
	unavailable := DayAvailability{Date: d.String(), TimeSlots: []TimeOfDay{}}

	if d.before(dateOf(nowLocal)) {
		return unavailable
	}
	rules := byDay[d.weekday()]
	if len(rules) == 0 {
		return unavailable
	}

	slots := GenerateSlots(rules)
	slots = FilterBooked(slots, booked[d])
	slots = FilterPast(slots, time.Date(d.year, d.month, d.day, 0, 0, 0, 0, nowLocal.Location()), nowLocal)
	SortSlots(slots)

	return DayAvailability{Date: d.String(), IsAvailable: len(slots) > 0, TimeSlots: slots}
}

func (c Calendar) rulesByDay() map[Weekday][]Rule {
	out := make(map[Weekday][]Rule)
	for _, r := range c.Rules {
		out[r.Day] = append(out[r.Day], r)
	}
	return out
}

// bookedByDate converts each host booking to local time once.
func (c Calendar) bookedByDate() map[date][]TimeOfDay {
	loc := c.location()
	out := make(map[date][]TimeOfDay)
	for _, b := range c.Bookings {
		if b.Cancelled || b.HostID != c.HostID {
			continue
		}
		local := b.At.In(loc)
		h, m, s := local.Clock()
		key := dateOf(local)
		out[key] = append(out[key], Clock(h, m, s))
	}
	return out
}
