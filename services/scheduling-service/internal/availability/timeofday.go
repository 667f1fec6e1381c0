package availability

import (
	"fmt"
	"strconv"
	"strings"
)

// TimeOfDay is a wall-clock time in seconds since midnight.
type TimeOfDay int32

const (
	secondsPerMinute = 60
	secondsPerHour   = 60 * secondsPerMinute
)

// MalformedTimeError reports a time string that is not HH:MM or HH:MM:SS
// with in-range fields.
type MalformedTimeError struct {
	Path   string
	Value  string
	Reason string
}

func (e *MalformedTimeError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: malformed time %q: %s", e.Path, e.Value, e.Reason)
	}
	return fmt.Sprintf("malformed time %q: %s", e.Value, e.Reason)
}

func (e *MalformedTimeError) Field() string { return e.Path }

func (e *MalformedTimeError) Message() string {
	return fmt.Sprintf("The %s must be in HH:MM or HH:MM:SS format.", humanField(e.Path))
}

// Clock builds a TimeOfDay from its parts. Values are not range checked.
func Clock(hour, minute, second int) TimeOfDay {
	return TimeOfDay(hour*secondsPerHour + minute*secondsPerMinute + second)
}

// ParseTimeOfDay parses "H:MM", "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, &MalformedTimeError{Value: s, Reason: "expected HH:MM or HH:MM:SS"}
	}

	hour, ok := parseField(parts[0], 1)
	if !ok || hour > 23 {
		return 0, &MalformedTimeError{Value: s, Reason: "hour must be 00-23"}
	}
	minute, ok := parseField(parts[1], 2)
	if !ok || minute > 59 {
		return 0, &MalformedTimeError{Value: s, Reason: "minute must be 00-59"}
	}
	second := 0
	if len(parts) == 3 {
		second, ok = parseField(parts[2], 2)
		if !ok || second > 59 {
			return 0, &MalformedTimeError{Value: s, Reason: "second must be 00-59"}
		}
	}
	return Clock(hour, minute, second), nil
}

// parseField accepts minDigits..2 ASCII digits.
func parseField(s string, minDigits int) (int, bool) {
	if len(s) < minDigits || len(s) > 2 {
		return 0, false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}

// TimeToMinutes converts an HH:MM or HH:MM:SS string to minutes since midnight.
func TimeToMinutes(s string) (int, error) {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		return 0, err
	}
	return t.Minutes(), nil
}

func (t TimeOfDay) Hour() int   { return int(t) / secondsPerHour }
func (t TimeOfDay) Minute() int { return int(t) % secondsPerHour / secondsPerMinute }
func (t TimeOfDay) Second() int { return int(t) % secondsPerMinute }

// Minutes returns whole minutes since midnight.
func (t TimeOfDay) Minutes() int { return int(t) / secondsPerMinute }

// String formats as zero-padded HH:MM:SS.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// humanField turns "availabilities.0.start_time" into "start time".
func humanField(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		path = path[i+1:]
	}
	if path == "" {
		return "time"
	}
	return strings.ReplaceAll(path, "_", " ")
}
