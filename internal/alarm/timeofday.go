package alarm

import (
	"fmt"
	"time"

	ferrors "github.com/chibaminto/compactalarm/internal/foundation/errors"
)

// TimeOfDay is a wall-clock time with minute resolution. Seconds and
// sub-second precision are always truncated to zero.
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// NewTimeOfDay validates and constructs a TimeOfDay.
func NewTimeOfDay(hour, minute int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 {
		return TimeOfDay{}, ferrors.ValidationError("hour out of range").
			WithContext("hour", hour).
			Build()
	}
	if minute < 0 || minute > 59 {
		return TimeOfDay{}, ferrors.ValidationError("minute out of range").
			WithContext("minute", minute).
			Build()
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

// MustTimeOfDay is a test/fixture helper that panics on invalid input.
func MustTimeOfDay(hour, minute int) TimeOfDay {
	tod, err := NewTimeOfDay(hour, minute)
	if err != nil {
		panic(err)
	}
	return tod
}

// ParseTimeOfDay parses a "HH:MM" string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return TimeOfDay{}, ferrors.ValidationError("malformed time of day").
			WithContext("input", s).
			Build()
	}
	return NewTimeOfDay(hour, minute)
}

// String formats the time as "HH:MM".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// At materializes the time of day on the given date, in that date's location,
// truncated to the minute.
func (t TimeOfDay) At(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour, t.Minute, 0, 0, date.Location())
}

// Minutes returns the time of day as minutes since midnight. Used to derive
// stable notification ids from the triggering time.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// Before reports whether t is earlier in the day than other.
func (t TimeOfDay) Before(other TimeOfDay) bool {
	return t.Minutes() < other.Minutes()
}
