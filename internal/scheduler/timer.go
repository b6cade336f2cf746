package scheduler

import "time"

// FirePayload travels from a timer registration to its fire callback.
// Hour/Minute mirror the time of day the registration was computed for and
// are -1 when unknown; the ringing notification id is derived from them.
type FirePayload struct {
	AlarmID string
	Hour    int
	Minute  int
	Snooze  bool
}

// TimerService is the platform wake-timer contract. Registrations are keyed:
// registering an existing key replaces the prior registration, and Cancel of
// an absent key is a no-op. Callbacks are delivered at least once.
//
// Register asks for exact wake precision when exact is true; implementations
// without the elevated capability fall back to best-effort and report the
// degradation through their own channels, never as a registration failure.
type TimerService interface {
	Register(key string, at time.Time, exact bool, payload FirePayload) error
	Cancel(key string)
	CanScheduleExact() bool
}
