package alarm

import "time"

// NextTrigger computes the next instant the alarm should fire, strictly after
// now, truncated to the minute.
//
// With an empty weekday set the trigger is today at t if that is still ahead,
// otherwise tomorrow at t. With a non-empty set, day offsets 0..7 from today
// are scanned in order: offset 0 is eligible only when today's weekday is in
// the set and t is strictly after now; later offsets only need their weekday
// in the set. Scanning through offset 7 guarantees a match for any non-empty
// set. Equality with now is never eligible, so setting a schedule at exactly
// its own time never fires immediately.
func NextTrigger(now time.Time, t TimeOfDay, weekdays []time.Weekday) time.Time {
	today := t.At(now)

	if len(weekdays) == 0 {
		if today.After(now) {
			return today
		}
		return today.AddDate(0, 0, 1)
	}

	inSet := make(map[time.Weekday]bool, len(weekdays))
	for _, d := range weekdays {
		inSet[d] = true
	}

	for offset := 0; offset <= 7; offset++ {
		candidate := today.AddDate(0, 0, offset)
		if !inSet[candidate.Weekday()] {
			continue
		}
		if offset == 0 && !candidate.After(now) {
			continue
		}
		return candidate
	}

	// Unreachable for a non-empty set: every weekday occurs within 7 days.
	return today.AddDate(0, 0, 7)
}
