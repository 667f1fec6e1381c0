// Package availability turns weekly availability rules and existing bookings
// into the bookable 30-minute slots of a calendar month.
//
// Everything here is pure: callers load rules and bookings first and pass the
// current instant explicitly, so the same inputs always give the same month.
package availability
