package storage

import (
	"errors"

	"github.com/md-rashed-zaman/slotmeet/libs/db"
)

var (
	ErrNotFound = errors.New("storage: not found")
	// ErrSlotTaken means the partial unique index on active host bookings rejected an insert.
	ErrSlotTaken = errors.New("storage: slot already booked")
)

const activeSlotConstraint = "bookings_host_slot_active_key"

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsNotFound(err):
		return ErrNotFound
	case db.IsUniqueViolation(err, activeSlotConstraint):
		return ErrSlotTaken
	default:
		return err
	}
}
