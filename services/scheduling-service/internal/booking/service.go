// Package booking creates, lists and updates meetings between a host and
// a guest. Creation is serialized per host slot.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/md-rashed-zaman/slotmeet/libs/outbox"
	"github.com/md-rashed-zaman/slotmeet/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/slotmeet/services/scheduling-service/internal/slotlock"
	"github.com/md-rashed-zaman/slotmeet/services/scheduling-service/internal/storage"
)

const (
	maxNotesLength       = 1000
	maxMeetingLinkLength = 2048
	localTimeLayout      = "2006-01-02 15:04:05"
	dateLayout           = "2006-01-02"
)

type Users interface {
	GetByUsername(ctx context.Context, username string) (model.User, error)
	GetByID(ctx context.Context, id string) (model.User, error)
}

// Schedule answers questions about a host's availability.
type Schedule interface {
	Location(u model.User) *time.Location
	IsOffered(ctx context.Context, host model.User, at time.Time) (bool, error)
}

type Store interface {
	Create(ctx context.Context, b *model.Booking, evt outbox.Event) error
	ExistsActive(ctx context.Context, hostID string, at time.Time) (bool, error)
	ListForUser(ctx context.Context, userID string, f storage.ListFilter) ([]model.Booking, error)
	Mutate(ctx context.Context, id string, fn func(b *model.Booking) (*outbox.Event, error)) (model.Booking, error)
}

type Config struct {
	// LeadTime is how far in the future a new booking must start.
	LeadTime time.Duration
	// LockTTL bounds how long a crashed holder keeps a slot locked.
	LockTTL time.Duration
}

type Service struct {
	users    Users
	schedule Schedule
	store    Store
	locker   slotlock.Locker
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(users Users, schedule Schedule, store Store, locker slotlock.Locker, cfg Config, logger *slog.Logger) *Service {
	if cfg.LeadTime <= 0 {
		cfg.LeadTime = 15 * time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:    users,
		schedule: schedule,
		store:    store,
		locker:   locker,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type CreateInput struct {
	GuestID     string
	Username    string
	BookingTime string
	Notes       string
}

// Create books the host named in.Username for the caller in.GuestID.
func (s *Service) Create(ctx context.Context, in CreateInput) (model.Booking, error) {
	ctx, span := otel.Tracer("booking").Start(ctx, "booking.create")
	defer span.End()

	b, err := s.create(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "booking not created")
		return model.Booking{}, err
	}
	span.SetAttributes(attribute.String("booking.id", b.ID), attribute.String("booking.host_id", b.HostUserID))
	return b, nil
}

func (s *Service) create(ctx context.Context, in CreateInput) (model.Booking, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.BookingTime = strings.TrimSpace(in.BookingTime)
	if errs := checkCreateInput(in); len(errs) > 0 {
		return model.Booking{}, &ValidationError{Errors: errs}
	}

	host, err := s.users.GetByUsername(ctx, in.Username)
	if errors.Is(err, storage.ErrNotFound) {
		verr := invalid("username", "The selected username is invalid.")
		verr.Cause = ErrUserNotFound
		return model.Booking{}, verr
	}
	if err != nil {
		return model.Booking{}, fmt.Errorf("get host: %w", err)
	}
	if host.ID == in.GuestID {
		return model.Booking{}, invalid("username", "You cannot book a meeting with yourself.")
	}

	at, err := parseBookingTime(in.BookingTime, s.schedule.Location(host))
	if err != nil {
		return model.Booking{}, invalid("booking_time", "The booking time is not a valid date.")
	}
	now := s.now()
	if !at.After(now.Add(s.cfg.LeadTime)) {
		return model.Booking{}, invalid("booking_time",
			fmt.Sprintf("Booking must be at least %d minutes in the future.", int(s.cfg.LeadTime/time.Minute)))
	}

	guest, err := s.users.GetByID(ctx, in.GuestID)
	if errors.Is(err, storage.ErrNotFound) {
		return model.Booking{}, ErrGuestNotFound
	}
	if err != nil {
		return model.Booking{}, fmt.Errorf("get guest: %w", err)
	}

	offered, err := s.schedule.IsOffered(ctx, host, at)
	if err != nil {
		return model.Booking{}, fmt.Errorf("check slot: %w", err)
	}
	if !offered {
		return model.Booking{}, invalid("booking_time", "The selected time is not available.")
	}

	b := model.Booking{
		ID:          uuid.NewString(),
		HostUserID:  host.ID,
		GuestUserID: guest.ID,
		BookingTime: at,
		Notes:       in.Notes,
	}
	if err := s.insertLocked(ctx, &b); err != nil {
		return model.Booking{}, err
	}

	hp, gp := host.Profile(), guest.Profile()
	b.Host, b.Guest = &hp, &gp
	s.logger.Info("booking created", "booking_id", b.ID, "host_user_id", b.HostUserID, "booking_time", b.BookingTime.UTC())
	return b, nil
}

// insertLocked runs the existence check and insert under the slot lock.
func (s *Service) insertLocked(ctx context.Context, b *model.Booking) error {
	release, err := s.locker.Acquire(ctx, slotlock.Key(b.HostUserID, b.BookingTime), s.cfg.LockTTL)
	if errors.Is(err, slotlock.ErrTimeout) {
		return ErrLockTimeout
	}
	if err != nil {
		return fmt.Errorf("acquire slot lock: %w", err)
	}
	defer func() {
		// The request context may already be done; release must still run.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if rerr := release(releaseCtx); rerr != nil {
			s.logger.Warn("slot lock release failed", "booking_id", b.ID, "err", rerr)
		}
	}()

	taken, err := s.store.ExistsActive(ctx, b.HostUserID, b.BookingTime)
	if err != nil {
		return fmt.Errorf("check slot: %w", err)
	}
	if taken {
		return ErrSlotConflict
	}

	evt, err := newBookingEvent(EventCreated, *b, b.GuestUserID)
	if err != nil {
		return err
	}
	if err := s.store.Create(ctx, b, evt); err != nil {
		if errors.Is(err, storage.ErrSlotTaken) {
			return ErrSlotConflict
		}
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func checkCreateInput(in CreateInput) []FieldError {
	var errs []FieldError
	if in.Username == "" {
		errs = append(errs, FieldError{Field: "username", Message: "The username field is required."})
	}
	if in.BookingTime == "" {
		errs = append(errs, FieldError{Field: "booking_time", Message: "The booking time field is required."})
	}
	if utf8.RuneCountInString(in.Notes) > maxNotesLength {
		errs = append(errs, FieldError{Field: "notes", Message: fmt.Sprintf("The notes field must not be greater than %d characters.", maxNotesLength)})
	}
	return errs
}

// parseBookingTime accepts an RFC 3339 instant or a wall-clock time in the
// host's zone. Sub-second precision is dropped.
func parseBookingTime(raw string, hostLoc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.Truncate(time.Second), nil
	}
	t, err := time.ParseInLocation(localTimeLayout, raw, hostLoc)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// ListRange parses optional YYYY-MM-DD bounds into an inclusive UTC range.
func ListRange(startDate, endDate string) (storage.ListFilter, error) {
	var (
		f    storage.ListFilter
		errs []FieldError
	)
	if v := strings.TrimSpace(startDate); v != "" {
		d, err := time.ParseInLocation(dateLayout, v, time.UTC)
		if err != nil {
			errs = append(errs, FieldError{Field: "start_date", Message: "The start date does not match the format YYYY-MM-DD."})
		} else {
			f.From = d
		}
	}
	if v := strings.TrimSpace(endDate); v != "" {
		d, err := time.ParseInLocation(dateLayout, v, time.UTC)
		if err != nil {
			errs = append(errs, FieldError{Field: "end_date", Message: "The end date does not match the format YYYY-MM-DD."})
		} else {
			f.To = d.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
	}
	if len(errs) == 0 && !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		errs = append(errs, FieldError{Field: "end_date", Message: "The end date must be a date after or equal to start date."})
	}
	if len(errs) > 0 {
		return storage.ListFilter{}, &ValidationError{Errors: errs}
	}
	return f, nil
}

// List returns the user's bookings as host or guest, newest first.
func (s *Service) List(ctx context.Context, userID string, f storage.ListFilter) ([]model.Booking, error) {
	out, err := s.store.ListForUser(ctx, userID, f)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return out, nil
}

// Cancel marks the booking cancelled. Either participant may cancel and a
// repeated call returns the booking unchanged.
func (s *Service) Cancel(ctx context.Context, bookingID, actorID string) (model.Booking, error) {
	b, err := s.store.Mutate(ctx, bookingID, func(b *model.Booking) (*outbox.Event, error) {
		if !b.Involves(actorID) {
			return nil, ErrForbidden
		}
		if b.Cancelled() {
			return nil, nil
		}
		at := s.now().UTC()
		b.CancelledAt = &at
		evt, err := newBookingEvent(EventCancelled, *b, actorID)
		if err != nil {
			return nil, err
		}
		return &evt, nil
	})
	if err != nil {
		return model.Booking{}, mutateErr(err)
	}
	s.logger.Info("booking cancelled", "booking_id", b.ID, "actor_user_id", actorID)
	return s.withProfiles(ctx, b)
}

// SetMeetingLink stores an http(s) link on a live booking. Only the host may set it.
func (s *Service) SetMeetingLink(ctx context.Context, bookingID, actorID, link string) (model.Booking, error) {
	link = strings.TrimSpace(link)
	if verr := checkMeetingLink(link); verr != nil {
		return model.Booking{}, verr
	}
	b, err := s.store.Mutate(ctx, bookingID, func(b *model.Booking) (*outbox.Event, error) {
		if b.HostUserID != actorID {
			return nil, ErrForbidden
		}
		if b.Cancelled() {
			return nil, ErrBookingCancelled
		}
		b.MeetingLink = link
		return nil, nil
	})
	if err != nil {
		return model.Booking{}, mutateErr(err)
	}
	return s.withProfiles(ctx, b)
}

func checkMeetingLink(link string) *ValidationError {
	if link == "" {
		return invalid("meeting_link", "The meeting link field is required.")
	}
	if len(link) > maxMeetingLinkLength {
		return invalid("meeting_link", fmt.Sprintf("The meeting link must not be greater than %d characters.", maxMeetingLinkLength))
	}
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid("meeting_link", "The meeting link must be a valid URL.")
	}
	return nil
}

func mutateErr(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *Service) withProfiles(ctx context.Context, b model.Booking) (model.Booking, error) {
	host, err := s.users.GetByID(ctx, b.HostUserID)
	if err != nil {
		return model.Booking{}, fmt.Errorf("get host: %w", err)
	}
	guest, err := s.users.GetByID(ctx, b.GuestUserID)
	if err != nil {
		return model.Booking{}, fmt.Errorf("get guest: %w", err)
	}
	hp, gp := host.Profile(), guest.Profile()
	b.Host, b.Guest = &hp, &gp
	return b, nil
}
