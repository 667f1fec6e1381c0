package model

import (
	"time"

	"github.com/md-rashed-zaman/slotmeet/services/scheduling-service/internal/availability"
)

type Booking struct {
	ID          string
	HostUserID  string
	GuestUserID string
	BookingTime time.Time
	Notes       string
	MeetingLink string
	CancelledAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Filled by list and get queries.
	Host  *Profile
	Guest *Profile
}

// EndTime is the end of the fixed-length slot the booking occupies.
func (b Booking) EndTime() time.Time {
	return b.BookingTime.Add(availability.SlotLength)
}

func (b Booking) Cancelled() bool {
	return b.CancelledAt != nil
}

func (b Booking) Involves(userID string) bool {
	return b.HostUserID == userID || b.GuestUserID == userID
}

// ForCalendar converts to the engine's booking view.
func (b Booking) ForCalendar() availability.Booking {
	return availability.Booking{
		HostID:    b.HostUserID,
		GuestID:   b.GuestUserID,
		At:        b.BookingTime,
		Cancelled: b.Cancelled(),
	}
}
