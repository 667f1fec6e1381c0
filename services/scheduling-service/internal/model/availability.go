package model

import (
	"time"

	"github.com/md-rashed-zaman/slotmeet/services/scheduling-service/internal/availability"
)

// Availability is a stored weekly rule.
type Availability struct {
	ID          string
	UserID      string
	DayOfWeek   availability.Weekday
	StartTime   availability.TimeOfDay
	EndTime     availability.TimeOfDay
	IsAvailable bool
	CreatedAt   time.Time
}

func (a Availability) Rule() availability.Rule {
	return availability.Rule{
		Day:       a.DayOfWeek,
		Start:     a.StartTime,
		End:       a.EndTime,
		Available: a.IsAvailable,
	}
}
