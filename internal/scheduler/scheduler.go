// Package scheduler maps alarms onto platform wake-timer registrations.
//
// Each alarm id holds at most one main registration; its scheduling state is
// Unscheduled or Scheduled(next instant). Snoozes use a separate slot keyed
// off the id so a pending snooze never clobbers the main recurring
// registration.
package scheduler

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/chibaminto/compactalarm/internal/alarm"
	"github.com/chibaminto/compactalarm/internal/metrics"
)

const snoozeSlotSuffix = "/snooze"

func snoozeKey(id string) string { return id + snoozeSlotSuffix }

// AlarmScheduler computes next occurrences and drives the timer service.
type AlarmScheduler struct {
	timers   TimerService
	clock    clockwork.Clock
	recorder metrics.Recorder

	mu        sync.Mutex
	scheduled map[string]time.Time
}

// New creates an AlarmScheduler.
func New(timers TimerService, clock clockwork.Clock, recorder metrics.Recorder) *AlarmScheduler {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &AlarmScheduler{
		timers:    timers,
		clock:     clock,
		recorder:  recorder,
		scheduled: make(map[string]time.Time),
	}
}

// ScheduleAlarm computes the next trigger for the alarm and registers exactly
// one wake timer keyed by its id, replacing any prior registration.
func (s *AlarmScheduler) ScheduleAlarm(id string, t alarm.TimeOfDay, weekdays []time.Weekday) error {
	next := alarm.NextTrigger(s.clock.Now(), t, weekdays)

	payload := FirePayload{AlarmID: id, Hour: t.Hour, Minute: t.Minute}
	if err := s.timers.Register(id, next, true, payload); err != nil {
		return err
	}

	s.mu.Lock()
	s.scheduled[id] = next
	s.recorder.SetScheduledAlarms(len(s.scheduled))
	s.mu.Unlock()

	slog.Debug("Alarm scheduled", "alarm_id", id, "at", next)
	return nil
}

// ScheduleSnooze registers a one-shot timer in the snooze slot, independent
// of the id's main registration, firing the given number of minutes from now
// regardless of the alarm's weekday set.
func (s *AlarmScheduler) ScheduleSnooze(id string, minutes int) error {
	at := s.clock.Now().Add(time.Duration(minutes) * time.Minute)
	payload := FirePayload{AlarmID: id, Hour: at.Hour(), Minute: at.Minute(), Snooze: true}
	if err := s.timers.Register(snoozeKey(id), at, true, payload); err != nil {
		return err
	}

	slog.Debug("Snooze scheduled", "alarm_id", id, "minutes", minutes, "at", at)
	return nil
}

// CancelAlarm cancels both the main and any pending snooze registration for
// id. Cancelling an absent registration is a no-op.
func (s *AlarmScheduler) CancelAlarm(id string) {
	s.cancelMain(id)
	s.timers.Cancel(snoozeKey(id))
	slog.Debug("Alarm cancelled", "alarm_id", id)
}

// cancelMain drops only the id's main registration. A pending snooze stays
// armed: the snooze slot belongs to the in-flight ring, not to the record's
// enabled flag.
func (s *AlarmScheduler) cancelMain(id string) {
	s.timers.Cancel(id)

	s.mu.Lock()
	if _, ok := s.scheduled[id]; ok {
		delete(s.scheduled, id)
		s.recorder.SetScheduledAlarms(len(s.scheduled))
	}
	s.mu.Unlock()
}

// CanScheduleExact reports the current grant of the elevated capability.
func (s *AlarmScheduler) CanScheduleExact() bool {
	return s.timers.CanScheduleExact()
}

// NextFireTime returns the instant of the id's main registration, with
// ok=false when the id is Unscheduled.
func (s *AlarmScheduler) NextFireTime(id string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.scheduled[id]
	return at, ok
}

// RescheduleAll re-arms every enabled alarm, cancels main registrations for
// disabled ones, and drops main registrations whose alarm no longer exists.
// This is the boot-completed resubmission path and also runs on every
// persisted change. It never touches snooze slots: a one-shot that fired is
// persisted disabled while its snooze may still be pending, and an unrelated
// edit must not lose that ring. Individual failures are reported and skipped
// so one bad record never blocks the rest.
func (s *AlarmScheduler) RescheduleAll(alarms []alarm.Alarm) {
	live := make(map[string]bool, len(alarms))
	for _, a := range alarms {
		live[a.ID] = true
	}

	s.mu.Lock()
	var stale []string
	for id := range s.scheduled {
		if !live[id] {
			stale = append(stale, id)
		}
	}
	s.mu.Unlock()
	for _, id := range stale {
		s.cancelMain(id)
	}

	for _, a := range alarms {
		if !a.Enabled {
			s.cancelMain(a.ID)
			continue
		}
		if err := s.ScheduleAlarm(a.ID, a.Time, a.Weekdays); err != nil {
			slog.Error("Failed to schedule alarm", "alarm_id", a.ID, "error", err)
		}
	}
}
