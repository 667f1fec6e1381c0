package availability

// FilterBooked drops every slot whose start equals a booked local start time.
// Bookings always land on generated boundaries, so equality is sufficient.
func FilterBooked(slots, booked []TimeOfDay) []TimeOfDay {
	out := make([]TimeOfDay, 0, len(slots))
	if len(booked) == 0 {
		return append(out, slots...)
	}
	taken := make(map[TimeOfDay]struct{}, len(booked))
	for _, b := range booked {
		taken[b] = struct{}{}
	}
	for _, s := range slots {
		if _, ok := taken[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}
