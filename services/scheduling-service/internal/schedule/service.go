// Package schedule serves availability rules and month availability for a
// host, combining stored rules and bookings with the availability engine.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/md-rashed-zaman/slotmeet/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/slotmeet/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/slotmeet/services/scheduling-service/internal/storage"
)

var ErrUserNotFound = errors.New("schedule: user not found")

// ValidationError carries the field errors of a rejected rule set.
type ValidationError struct {
	Errors []availability.FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "invalid availability rules"
	}
	return fmt.Sprintf("invalid availability rules: %v", e.Errors[0])
}

type Users interface {
	GetByUsername(ctx context.Context, username string) (model.User, error)
	GetByID(ctx context.Context, id string) (model.User, error)
}

type Rules interface {
	ListByUser(ctx context.Context, userID string) ([]model.Availability, error)
	Replace(ctx context.Context, userID string, rules []availability.Rule) error
}

type Bookings interface {
	ListInvolving(ctx context.Context, userID string, from, to time.Time) ([]model.Booking, error)
}

type Service struct {
	users    Users
	rules    Rules
	bookings Bookings
	logger   *slog.Logger
	location *time.Location
	now      func() time.Time
}

// NewService wires the stores. defaultLoc is used for users without a
// valid timezone.
func NewService(users Users, rules Rules, bookings Bookings, defaultLoc *time.Location, logger *slog.Logger) *Service {
	if defaultLoc == nil {
		defaultLoc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:    users,
		rules:    rules,
		bookings: bookings,
		logger:   logger,
		location: defaultLoc,
		now:      time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Now() time.Time { return s.now() }

// Location resolves the user's timezone, falling back to the configured default.
func (s *Service) Location(u model.User) *time.Location {
	if u.Timezone == "" {
		return s.location
	}
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		s.logger.Warn("unknown user timezone, using default", "user_id", u.ID, "timezone", u.Timezone)
		return s.location
	}
	return loc
}

// Rules lists the user's rules monday first, then by start time.
func (s *Service) Rules(ctx context.Context, userID string) ([]model.Availability, error) {
	rows, err := s.rules.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return rows, nil
}

// ReplaceRules validates inputs and atomically swaps the user's rule set.
// It returns the normalized rules that were stored.
func (s *Service) ReplaceRules(ctx context.Context, userID string, inputs []availability.RuleInput) ([]availability.Rule, error) {
	rules, errs := availability.PrepareRules(inputs)
	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}
	if err := s.rules.Replace(ctx, userID, rules); err != nil {
		return nil, fmt.Errorf("replace rules: %w", err)
	}
	return rules, nil
}

// MonthResult is the month availability of one host.
type MonthResult struct {
	User model.User
	Days []availability.DayAvailability
}

// MonthAvailability computes every day of year/month for the host named username.
func (s *Service) MonthAvailability(ctx context.Context, username string, year int, month time.Month) (MonthResult, error) {
	ctx, span := otel.Tracer("schedule").Start(ctx, "schedule.month_availability")
	defer span.End()
	span.SetAttributes(attribute.Int("year", year), attribute.Int("month", int(month)))

	host, err := s.lookup(ctx, username)
	if err != nil {
		span.RecordError(err)
		return MonthResult{}, err
	}

	loc := s.Location(host)
	from := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	cal, err := s.calendar(ctx, host, loc, from, from.AddDate(0, 1, 0))
	if err != nil {
		span.RecordError(err)
		return MonthResult{}, err
	}

	days, err := cal.Month(year, month, s.now())
	if err != nil {
		return MonthResult{}, err
	}
	return MonthResult{User: host, Days: days}, nil
}

// IsOffered reports whether at is one of the slots the host's rules offer on
// its local date once the past cutoff is applied. Bookings are not consulted.
func (s *Service) IsOffered(ctx context.Context, host model.User, at time.Time) (bool, error) {
	loc := s.Location(host)
	local := at.In(loc)
	y, m, d := local.Date()

	cal, err := s.ruleCalendar(ctx, host, loc)
	if err != nil {
		return false, err
	}

	h, mi, sec := local.Clock()
	want := availability.Clock(h, mi, sec)
	for _, slot := range cal.Day(y, m, d, s.now()).TimeSlots {
		if slot == want {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) lookup(ctx context.Context, username string) (model.User, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		return model.User{}, ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *Service) ruleCalendar(ctx context.Context, host model.User, loc *time.Location) (availability.Calendar, error) {
	rows, err := s.rules.ListByUser(ctx, host.ID)
	if err != nil {
		return availability.Calendar{}, fmt.Errorf("list rules: %w", err)
	}
	cal := availability.Calendar{HostID: host.ID, Location: loc}
	for _, r := range rows {
		cal.Rules = append(cal.Rules, r.Rule())
	}
	return cal, nil
}

// calendar loads rules plus the bookings in [from, to), fetched once for the
// whole range.
func (s *Service) calendar(ctx context.Context, host model.User, loc *time.Location, from, to time.Time) (availability.Calendar, error) {
	cal, err := s.ruleCalendar(ctx, host, loc)
	if err != nil {
		return cal, err
	}
	booked, err := s.bookings.ListInvolving(ctx, host.ID, from, to)
	if err != nil {
		return availability.Calendar{}, fmt.Errorf("list bookings: %w", err)
	}
	for _, b := range booked {
		cal.Bookings = append(cal.Bookings, b.ForCalendar())
	}
	return cal, nil
}
