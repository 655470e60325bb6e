package attendance

import (
	"fmt"
	"time"
)

// =============================================================================
// CLOCK TIME - Minute-of-day, for date-independent schedule matching
// =============================================================================

// ClockTime is a time-of-day expressed as minutes after midnight.
// Schedule matching compares only the time-of-day component of a punch;
// the calendar date is discarded so a schedule defined once applies to
// every shift-day.
type ClockTime int

// NewClockTime builds a ClockTime from an hour and minute.
func NewClockTime(hour, minute int) ClockTime {
	return ClockTime(hour*60 + minute)
}

// ClockTimeOf extracts the time-of-day of t.
func ClockTimeOf(t time.Time) ClockTime {
	return ClockTime(t.Hour()*60 + t.Minute())
}

// ParseClockTime parses "HH:MM" or "HH:MM:SS" (seconds ignored).
func ParseClockTime(s string) (ClockTime, error) {
	var hour, minute, sec int
	if _, err := fmt.Sscanf(s, "%d:%d:%d", &hour, &minute, &sec); err != nil {
		if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
			return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
		}
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid clock time %q: out of range", s)
	}
	return NewClockTime(hour, minute), nil
}

func (c ClockTime) Hour() int   { return int(c) / 60 }
func (c ClockTime) Minute() int { return int(c) % 60 }

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// WithinFlexibility reports whether c falls inside
// [scheduled - flex, scheduled + flex] minutes. The window is inclusive
// on both ends and does not wrap around midnight: overnight lunch
// windows are not a supported schedule shape.
func (c ClockTime) WithinFlexibility(scheduled ClockTime, flexibilityMinutes int) bool {
	lo := int(scheduled) - flexibilityMinutes
	hi := int(scheduled) + flexibilityMinutes
	return int(c) >= lo && int(c) <= hi
}

// MinutesBetween returns the actual elapsed minutes from a to b,
// truncated to whole minutes. Unlike ClockTime comparison this uses the
// full timestamps, so a lunch spanning midnight measures correctly.
func MinutesBetween(a, b time.Time) int {
	return int(b.Sub(a).Minutes())
}
