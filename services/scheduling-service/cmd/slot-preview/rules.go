package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/md-rashed-zaman/slotmeet/services/scheduling-service/internal/availability"
)

// RulesFile is the on-disk format read by every command.
type RulesFile struct {
	Timezone       string                   `toml:"timezone"`
	Availabilities []availability.RuleInput `toml:"availabilities"`
	Bookings       []BookingEntry           `toml:"bookings"`
}

// BookingEntry is an existing booking of the host.
type BookingEntry struct {
	BookingTime time.Time `toml:"booking_time"`
	Cancelled   bool      `toml:"cancelled"`
}

func loadRulesFile(path string) (RulesFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return RulesFile{}, fmt.Errorf("reading rules file: %w", err)
	}
	return parseRulesFile(raw)
}

func parseRulesFile(raw []byte) (RulesFile, error) {
	var f RulesFile
	if err := toml.Unmarshal(raw, &f); err != nil {
		return RulesFile{}, fmt.Errorf("parsing rules file: %w", err)
	}
	return f, nil
}

const previewHost = "preview-host"

// calendar validates the rules and builds the engine input.
func (f RulesFile) calendar(loc *time.Location) (availability.Calendar, []availability.FieldError) {
	rules, errs := availability.PrepareRules(f.Availabilities)
	if len(errs) > 0 {
		return availability.Calendar{}, errs
	}
	cal := availability.Calendar{HostID: previewHost, Location: loc, Rules: rules}
	for _, b := range f.Bookings {
		cal.Bookings = append(cal.Bookings, availability.Booking{HostID: previewHost, At: b.BookingTime, Cancelled: b.Cancelled})
	}
	return cal, nil
}
