package availability

import (
	"errors"
	"testing"
)

func boolPtr(b bool) *bool { return &b }

func TestValidateRules_AdjacentAllowed(t *testing.T) {
	errs := ValidateRules([]Rule{
		rule(t, Monday, "09:00", "10:00"),
		rule(t, Monday, "10:00", "11:00"),
	})
	if len(errs) != 0 {
		t.Fatalf("expected adjacency to pass, got %v", errs)
	}
}

func TestValidateRules_OverlapFlagsLaterRule(t *testing.T) {
	errs := ValidateRules([]Rule{
		rule(t, Monday, "09:00", "10:30"),
		rule(t, Monday, "10:00", "11:00"),
	})
	if len(errs) != 1 {
		t.Fatalf("expected one error, got %v", errs)
	}
	var oe *OverlapError
	if !errors.As(errs[0], &oe) {
		t.Fatalf("expected OverlapError, got %T", errs[0])
	}
	if oe.Index != 1 || errs[0].Field() != "availabilities.1.start_time" {
		t.Fatalf("unexpected overlap error %+v (%s)", oe, errs[0].Field())
	}
	if errs[0].Message() != "The time slots overlap with other availability slots for Monday." {
		t.Fatalf("unexpected message %q", errs[0].Message())
	}
}

func TestValidateRules_OverlapUsesRunningMax(t *testing.T) {
	// Sorted, 11:00-11:30 starts inside 09:00-12:00.
	errs := ValidateRules([]Rule{
		rule(t, Tuesday, "11:00", "11:30"),
		rule(t, Tuesday, "09:00", "12:00"),
	})
	if len(errs) != 1 {
		t.Fatalf("expected one error, got %v", errs)
	}
	if errs[0].Field() != "availabilities.0.start_time" {
		t.Fatalf("expected the later-starting rule flagged, got %s", errs[0].Field())
	}
}

func TestValidateRules_IgnoresUnavailable(t *testing.T) {
	off := rule(t, Monday, "09:30", "09:00")
	off.Available = false
	errs := ValidateRules([]Rule{
		rule(t, Monday, "09:00", "10:00"),
		off,
	})
	if len(errs) != 0 {
		t.Fatalf("expected unavailable rule to skip order and overlap checks, got %v", errs)
	}
}

func TestValidateRules_OrderAndOverlapTogether(t *testing.T) {
	errs := ValidateRules([]Rule{
		rule(t, Monday, "10:00", "09:00"),
		rule(t, Friday, "09:00", "10:00"),
		rule(t, Friday, "09:30", "11:00"),
	})
	if len(errs) != 2 {
		t.Fatalf("expected two errors, got %v", errs)
	}
	var ie *InvalidOrderError
	if !errors.As(errs[0], &ie) || errs[0].Field() != "availabilities.0.end_time" {
		t.Fatalf("expected order error on rule 0, got %v", errs[0])
	}
	var oe *OverlapError
	if !errors.As(errs[1], &oe) || oe.Index != 2 || oe.Day != Friday {
		t.Fatalf("expected friday overlap on rule 2, got %v", errs[1])
	}
}

func TestParseRules_FieldErrors(t *testing.T) {
	_, errs := ParseRules([]RuleInput{
		{DayOfWeek: "monday", StartTime: "9:00", EndTime: "10:00"},
		{DayOfWeek: "someday", StartTime: "25:00", EndTime: ""},
	})
	fields := map[string]string{}
	for _, e := range errs {
		fields[e.Field()] = e.Message()
	}
	want := map[string]string{
		"availabilities.1.day_of_week": "The selected day is invalid.",
		"availabilities.1.start_time":  "The start time must be in HH:MM or HH:MM:SS format.",
		"availabilities.1.end_time":    "The end time field is required.",
	}
	if len(fields) != len(want) {
		t.Fatalf("expected %v, got %v", want, fields)
	}
	for k, v := range want {
		if fields[k] != v {
			t.Fatalf("field %s: expected %q, got %q", k, v, fields[k])
		}
	}
}

func TestPrepareRules_NormalizesOrder(t *testing.T) {
	rules, errs := PrepareRules([]RuleInput{
		{DayOfWeek: "wednesday", StartTime: "14:00", EndTime: "15:00"},
		{DayOfWeek: "monday", StartTime: "13:00", EndTime: "14:00", IsAvailable: boolPtr(false)},
		{DayOfWeek: "wednesday", StartTime: "09:00", EndTime: "10:00"},
		{DayOfWeek: "monday", StartTime: "08:00:00", EndTime: "09:00:00"},
	})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors %v", errs)
	}
	got := make([]string, len(rules))
	for i, r := range rules {
		got[i] = r.Day.String() + " " + r.Start.String()
	}
	want := []string{"wednesday 09:00:00", "wednesday 14:00:00", "monday 08:00:00", "monday 13:00:00"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if rules[3].Available {
		t.Fatal("expected is_available=false to be kept")
	}
	if !rules[0].Available {
		t.Fatal("expected is_available to default to true")
	}
}

func TestPrepareRules_EmptyAndInvalid(t *testing.T) {
	if _, errs := PrepareRules(nil); len(errs) != 1 || errs[0].Field() != "availabilities" {
		t.Fatalf("expected availabilities required, got %v", errs)
	}
	rules, errs := PrepareRules([]RuleInput{
		{DayOfWeek: "monday", StartTime: "09:00", EndTime: "10:30"},
		{DayOfWeek: "monday", StartTime: "10:00", EndTime: "11:00"},
	})
	if rules != nil || len(errs) != 1 {
		t.Fatalf("expected overlap rejection, got %v %v", rules, errs)
	}
}

func TestSortForDisplay(t *testing.T) {
	got := SortForDisplay([]Rule{
		rule(t, Sunday, "09:00", "10:00"),
		rule(t, Monday, "12:00", "13:00"),
		rule(t, Monday, "08:00", "09:00"),
	})
	if got[0].Day != Monday || got[0].Start != Clock(8, 0, 0) || got[2].Day != Sunday {
		t.Fatalf("unexpected display order %+v", got)
	}
}
