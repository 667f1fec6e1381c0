package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/slotmeet/libs/db"
	"github.com/md-rashed-zaman/slotmeet/libs/outbox"
	"github.com/md-rashed-zaman/slotmeet/services/scheduling-service/internal/model"
)

type BookingRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewBookingRepository(pool *db.Pool, outboxRepo *outbox.Repository) *BookingRepository {
	return &BookingRepository{pool: pool, outbox: outboxRepo}
}

// Create inserts b and its event atomically.
func (r *BookingRepository) Create(ctx context.Context, b *model.Booking, evt outbox.Event) error {
	return r.pool.InTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO bookings (id, host_user_id, guest_user_id, booking_time, notes)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''))
			RETURNING created_at, updated_at
		`, b.ID, b.HostUserID, b.GuestUserID, b.BookingTime.UTC(), b.Notes).Scan(&b.CreatedAt, &b.UpdatedAt)
		if err != nil {
			return mapErr(err)
		}
		return r.outbox.Insert(ctx, tx, evt)
	})
}

// ExistsActive reports whether host holds a non-cancelled booking at exactly at.
func (r *BookingRepository) ExistsActive(ctx context.Context, hostID string, at time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE host_user_id = $1 AND booking_time = $2 AND cancelled_at IS NULL
		)
	`, hostID, at.UTC()).Scan(&exists)
	return exists, err
}

// ListInvolving returns non-cancelled bookings where the user is host or
// guest with booking_time in [from, to).
func (r *BookingRepository) ListInvolving(ctx context.Context, userID string, from, to time.Time) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, host_user_id::text, guest_user_id::text, booking_time, COALESCE(notes, ''),
			COALESCE(meeting_link, ''), cancelled_at, created_at, updated_at
		FROM bookings
		WHERE (host_user_id = $1 OR guest_user_id = $1)
			AND cancelled_at IS NULL
			AND booking_time >= $2
			AND booking_time < $3
		ORDER BY booking_time
	`, userID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		var b model.Booking
		if err := rows.Scan(&b.ID, &b.HostUserID, &b.GuestUserID, &b.BookingTime, &b.Notes,
			&b.MeetingLink, &b.CancelledAt, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListFilter narrows ListForUser. Zero times leave that side open.
type ListFilter struct {
	From time.Time
	To   time.Time
}

const bookingWithProfiles = `
	SELECT b.id::text, b.host_user_id::text, b.guest_user_id::text, b.booking_time, COALESCE(b.notes, ''),
		COALESCE(b.meeting_link, ''), b.cancelled_at, b.created_at, b.updated_at,
		h.id::text, h.name, h.username,
		g.id::text, g.name, g.username
	FROM bookings b
	JOIN users h ON h.id = b.host_user_id
	JOIN users g ON g.id = b.guest_user_id
`

// ListForUser returns every booking, cancelled included, where the user is
// host or guest, newest first, with both profiles attached.
func (r *BookingRepository) ListForUser(ctx context.Context, userID string, f ListFilter) ([]model.Booking, error) {
	var from, to *time.Time
	if !f.From.IsZero() {
		v := f.From.UTC()
		from = &v
	}
	if !f.To.IsZero() {
		v := f.To.UTC()
		to = &v
	}
	rows, err := r.pool.Query(ctx, bookingWithProfiles+`
		WHERE (b.host_user_id = $1 OR b.guest_user_id = $1)
			AND ($2::timestamptz IS NULL OR b.booking_time >= $2)
			AND ($3::timestamptz IS NULL OR b.booking_time <= $3)
		ORDER BY b.booking_time DESC
	`, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		b, err := scanBookingWithProfiles(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *BookingRepository) Get(ctx context.Context, id string) (model.Booking, error) {
	b, err := scanBookingWithProfiles(r.pool.QueryRow(ctx, bookingWithProfiles+` WHERE b.id = $1`, id))
	if err != nil {
		return model.Booking{}, mapErr(err)
	}
	return b, nil
}

// Mutate locks the booking row, lets fn change it and optionally emit an
// event, then persists cancelled_at and meeting_link. A nil event with a
// nil error commits without writing to the outbox.
func (r *BookingRepository) Mutate(ctx context.Context, id string, fn func(b *model.Booking) (*outbox.Event, error)) (model.Booking, error) {
	var out model.Booking
	err := r.pool.InTx(ctx, func(tx pgx.Tx) error {
		var b model.Booking
		err := tx.QueryRow(ctx, `
			SELECT id::text, host_user_id::text, guest_user_id::text, booking_time, COALESCE(notes, ''),
				COALESCE(meeting_link, ''), cancelled_at, created_at, updated_at
			FROM bookings
			WHERE id = $1
			FOR UPDATE
		`, id).Scan(&b.ID, &b.HostUserID, &b.GuestUserID, &b.BookingTime, &b.Notes,
			&b.MeetingLink, &b.CancelledAt, &b.CreatedAt, &b.UpdatedAt)
		if err != nil {
			return mapErr(err)
		}

		before := b
		evt, err := fn(&b)
		if err != nil {
			return err
		}
		if !sameMutableFields(before, b) {
			err = tx.QueryRow(ctx, `
				UPDATE bookings
				SET cancelled_at = $2, meeting_link = NULLIF($3, ''), updated_at = now()
				WHERE id = $1
				RETURNING updated_at
			`, b.ID, b.CancelledAt, b.MeetingLink).Scan(&b.UpdatedAt)
			if err != nil {
				return fmt.Errorf("update booking: %w", err)
			}
		}
		if evt != nil {
			if err := r.outbox.Insert(ctx, tx, *evt); err != nil {
				return err
			}
		}
		out = b
		return nil
	})
	return out, err
}

func sameMutableFields(a, b model.Booking) bool {
	if a.MeetingLink != b.MeetingLink {
		return false
	}
	if (a.CancelledAt == nil) != (b.CancelledAt == nil) {
		return false
	}
	return a.CancelledAt == nil || a.CancelledAt.Equal(*b.CancelledAt)
}

func scanBookingWithProfiles(row pgx.Row) (model.Booking, error) {
	var (
		b           model.Booking
		host, guest model.Profile
	)
	err := row.Scan(&b.ID, &b.HostUserID, &b.GuestUserID, &b.BookingTime, &b.Notes,
		&b.MeetingLink, &b.CancelledAt, &b.CreatedAt, &b.UpdatedAt,
		&host.ID, &host.Name, &host.Username,
		&guest.ID, &guest.Name, &guest.Username)
	if err != nil {
		return model.Booking{}, err
	}
	b.Host, b.Guest = &host, &guest
	return b, nil
}
