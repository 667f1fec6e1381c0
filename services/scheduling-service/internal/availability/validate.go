package availability

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// FieldError is a validation failure tied to an input path such as
// "availabilities.3.start_time".
type FieldError interface {
	error
	Field() string
	Message() string
}

// RequiredFieldError reports a missing input value.
type RequiredFieldError struct {
	Path string
}

func (e *RequiredFieldError) Error() string   { return e.Path + ": required" }
func (e *RequiredFieldError) Field() string   { return e.Path }
func (e *RequiredFieldError) Message() string { return fmt.Sprintf("The %s field is required.", humanField(e.Path)) }

// InvalidDayError reports a day name outside monday..sunday.
type InvalidDayError struct {
	Path  string
	Value string
}

func (e *InvalidDayError) Error() string   { return fmt.Sprintf("%s: invalid day %q", e.Path, e.Value) }
func (e *InvalidDayError) Field() string   { return e.Path }
func (e *InvalidDayError) Message() string { return "The selected day is invalid." }

// InvalidOrderError reports an available rule whose end is not after its start.
type InvalidOrderError struct {
	Index int
	Day   Weekday
	Start TimeOfDay
	End   TimeOfDay
}

func (e *InvalidOrderError) Error() string {
	return fmt.Sprintf("rule %d (%s): end %s is not after start %s", e.Index, e.Day, e.End, e.Start)
}
func (e *InvalidOrderError) Field() string   { return fmt.Sprintf("availabilities.%d.end_time", e.Index) }
func (e *InvalidOrderError) Message() string { return "The end time must be after the start time." }

// OverlapError reports an available rule that starts before an earlier rule
// on the same day has ended.
type OverlapError struct {
	Index int
	Day   Weekday
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("rule %d overlaps another %s rule", e.Index, e.Day)
}
func (e *OverlapError) Field() string { return fmt.Sprintf("availabilities.%d.start_time", e.Index) }
func (e *OverlapError) Message() string {
	return fmt.Sprintf("The time slots overlap with other availability slots for %s.", e.Day.Label())
}

// RuleInput is a rule as submitted, before parsing.
type RuleInput struct {
	DayOfWeek   string `json:"day_of_week" toml:"day_of_week"`
	StartTime   string `json:"start_time" toml:"start_time"`
	EndTime     string `json:"end_time" toml:"end_time"`
	IsAvailable *bool  `json:"is_available,omitempty" toml:"is_available"`
}

// ParseRules checks the shape of each input. Rules that fail are omitted
// from the returned slice, so callers must not persist it when errs is
// non-empty.
func ParseRules(inputs []RuleInput) ([]Rule, []FieldError) {
	var errs []FieldError
	rules := make([]Rule, 0, len(inputs))
	for i, in := range inputs {
		prefix := fmt.Sprintf("availabilities.%d.", i)
		ok := true

		day, valid := ParseWeekday(in.DayOfWeek)
		switch {
		case strings.TrimSpace(in.DayOfWeek) == "":
			errs = append(errs, &RequiredFieldError{Path: prefix + "day_of_week"})
			ok = false
		case !valid:
			errs = append(errs, &InvalidDayError{Path: prefix + "day_of_week", Value: in.DayOfWeek})
			ok = false
		}

		start, err := parseRuleTime(prefix+"start_time", in.StartTime)
		if err != nil {
			errs = append(errs, err)
			ok = false
		}
		end, err := parseRuleTime(prefix+"end_time", in.EndTime)
		if err != nil {
			errs = append(errs, err)
			ok = false
		}

		if !ok {
			continue
		}
		available := true
		if in.IsAvailable != nil {
			available = *in.IsAvailable
		}
		rules = append(rules, Rule{Day: day, Start: start, End: end, Available: available})
	}
	return rules, errs
}

func parseRuleTime(path, raw string) (TimeOfDay, FieldError) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, &RequiredFieldError{Path: path}
	}
	t, err := ParseTimeOfDay(raw)
	if err != nil {
		if mte, ok := err.(*MalformedTimeError); ok {
			mte.Path = path
			return 0, mte
		}
		return 0, &MalformedTimeError{Path: path, Value: raw, Reason: err.Error()}
	}
	return t, nil
}

// ValidateRules runs the order and overlap checks on available rules. The
// index in each error is the rule's position in rules. Order errors come
// first in input order, then at most one overlap error per day, days in
// monday..sunday order.
func ValidateRules(rules []Rule) []FieldError {
	var errs []FieldError
	for i, r := range rules {
		if r.Available && r.Start >= r.End {
			errs = append(errs, &InvalidOrderError{Index: i, Day: r.Day, Start: r.Start, End: r.End})
		}
	}

	type indexed struct {
		index int
		rule  Rule
	}
	byDay := make(map[Weekday][]indexed)
	for i, r := range rules {
		if r.Available {
			byDay[r.Day] = append(byDay[r.Day], indexed{i, r})
		}
	}
	for _, day := range Weekdays() {
		group := byDay[day]
		if len(group) < 2 {
			continue
		}
		slices.SortStableFunc(group, func(a, b indexed) int {
			return compareIntervals(a.rule.Interval(), b.rule.Interval())
		})
		maxEnd := group[0].rule.End
		for _, g := range group[1:] {
			if g.rule.Start < maxEnd {
				errs = append(errs, &OverlapError{Index: g.index, Day: day})
				break
			}
			maxEnd = max(maxEnd, g.rule.End)
		}
	}
	return errs
}

// NormalizeRules returns rules grouped by day in order of first appearance,
// each group sorted by start then end. The input is not modified.
func NormalizeRules(rules []Rule) []Rule {
	var order []Weekday
	groups := make(map[Weekday][]Rule)
	for _, r := range rules {
		if _, ok := groups[r.Day]; !ok {
			order = append(order, r.Day)
		}
		groups[r.Day] = append(groups[r.Day], r)
	}

	out := make([]Rule, 0, len(rules))
	for _, d := range order {
		g := groups[d]
		slices.SortStableFunc(g, func(a, b Rule) int {
			return compareIntervals(a.Interval(), b.Interval())
		})
		out = append(out, g...)
	}
	return out
}

// SortForDisplay orders rules monday first, then by start.
func SortForDisplay(rules []Rule) []Rule {
	out := slices.Clone(rules)
	slices.SortStableFunc(out, func(a, b Rule) int {
		if c := cmp.Compare(a.Day, b.Day); c != 0 {
			return c
		}
		return compareIntervals(a.Interval(), b.Interval())
	})
	return out
}

// PrepareRules parses, validates and normalizes submitted rules. On any
// error the rule slice is nil.
func PrepareRules(inputs []RuleInput) ([]Rule, []FieldError) {
	if len(inputs) == 0 {
		return nil, []FieldError{&RequiredFieldError{Path: "availabilities"}}
	}
	rules, errs := ParseRules(inputs)
	if len(errs) > 0 {
		return nil, errs
	}
	if errs := ValidateRules(rules); len(errs) > 0 {
		return nil, errs
	}
	return NormalizeRules(rules), nil
}
