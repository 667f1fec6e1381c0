package booking

import (
	"time"

	"github.com/md-rashed-zaman/slotmeet/libs/outbox"
	"github.com/md-rashed-zaman/slotmeet/services/scheduling-service/internal/model"
)

const (
	aggregateType = "booking"

	EventCreated   = "scheduling.booking.created.v1"
	EventCancelled = "scheduling.booking.cancelled.v1"
)

type bookingEvent struct {
	BookingID   string     `json:"booking_id"`
	HostUserID  string     `json:"host_user_id"`
	GuestUserID string     `json:"guest_user_id"`
	BookingTime time.Time  `json:"booking_time"`
	EndTime     time.Time  `json:"end_time"`
	Notes       string     `json:"notes,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	CancelledBy string     `json:"cancelled_by,omitempty"`
}

func newBookingEvent(eventType string, b model.Booking, actor string) (outbox.Event, error) {
	payload := bookingEvent{
		BookingID:   b.ID,
		HostUserID:  b.HostUserID,
		GuestUserID: b.GuestUserID,
		BookingTime: b.BookingTime.UTC(),
		EndTime:     b.EndTime().UTC(),
		Notes:       b.Notes,
		CancelledAt: b.CancelledAt,
	}
	if eventType == EventCancelled {
		payload.CancelledBy = actor
	}
	return outbox.NewEvent(aggregateType, b.ID, eventType, payload)
}
