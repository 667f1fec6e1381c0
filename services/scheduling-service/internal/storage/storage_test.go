package storage

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/slotmeet/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/slotmeet/services/scheduling-service/internal/model"
)

func TestMapErr(t *testing.T) {
	if !errors.Is(mapErr(pgx.ErrNoRows), ErrNotFound) {
		t.Fatal("expected ErrNoRows to map to ErrNotFound")
	}
	dup := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: activeSlotConstraint})
	if !errors.Is(mapErr(dup), ErrSlotTaken) {
		t.Fatal("expected active slot violation to map to ErrSlotTaken")
	}
	other := &pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"}
	if mapErr(other) != error(other) {
		t.Fatal("expected other unique violations to pass through")
	}
	if mapErr(nil) != nil {
		t.Fatal("expected nil to stay nil")
	}
}

func TestDecodeRule(t *testing.T) {
	var a model.Availability
	if err := decodeRule(&a, "tuesday", "09:00:00", nil); err != nil {
		t.Fatalf("decodeRule failed: %v", err)
	}
	if a.DayOfWeek != availability.Tuesday || a.StartTime.String() != "09:00:00" || a.EndTime != availability.DefaultEnd {
		t.Fatalf("unexpected rule %+v", a)
	}
	end := "17:30:00"
	if err := decodeRule(&a, "friday", "08:00:00", &end); err != nil || a.EndTime.String() != "17:30:00" {
		t.Fatalf("unexpected end %s (%v)", a.EndTime, err)
	}
	if err := decodeRule(&a, "holiday", "08:00:00", nil); err == nil {
		t.Fatal("expected unknown day to fail")
	}
}

func TestSameMutableFields(t *testing.T) {
	now := time.Now()
	later := now.Add(time.Minute)
	base := model.Booking{MeetingLink: "https://meet.example.com/a"}
	if !sameMutableFields(base, base) {
		t.Fatal("expected identical bookings to match")
	}
	changed := base
	changed.CancelledAt = &now
	if sameMutableFields(base, changed) {
		t.Fatal("expected cancellation to be a change")
	}
	a, b := base, base
	a.CancelledAt, b.CancelledAt = &now, &later
	if sameMutableFields(a, b) {
		t.Fatal("expected different cancel times to differ")
	}
	link := base
	link.MeetingLink = "https://meet.example.com/b"
	if sameMutableFields(base, link) {
		t.Fatal("expected link change to differ")
	}
}
