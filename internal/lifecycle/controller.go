// Package lifecycle runs the fire-to-dismissal state machine: Idle → Ringing
// → {Stopped, Snoozed, AutoStopped} → Idle.
//
// Trigger, stop, and snooze arrive from outside the process with
// at-least-once delivery, so every entry point is idempotent and keyed by
// stable alarm ids. All three run through a single critical section over the
// injected RingState; no path leaves the lock held or the state partially
// torn down.
package lifecycle

import (
	"context"
	"hash/fnv"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/chibaminto/compactalarm/internal/alarm"
	"github.com/chibaminto/compactalarm/internal/events"
	"github.com/chibaminto/compactalarm/internal/metrics"
	"github.com/chibaminto/compactalarm/internal/observability"
	"github.com/chibaminto/compactalarm/internal/scheduler"
	"github.com/chibaminto/compactalarm/internal/store"
)

// notificationBody is the fixed body text of the ringing notification.
// Localization happens at the host surface.
const notificationBody = "Tap to stop alarm"

// Config holds the lifecycle tunables.
type Config struct {
	SnoozeMinutes    int
	AutoStopDelay    time.Duration
	FadeInDuration   time.Duration
	FadeInSteps      int
	VibrationPattern []time.Duration
}

// DefaultConfig mirrors the product constants: 5-minute snooze, 3-minute
// auto-stop, 30-second fade-in in 60 steps, 1s-on/0.5s-off vibration.
func DefaultConfig() Config {
	return Config{
		SnoozeMinutes:    5,
		AutoStopDelay:    3 * time.Minute,
		FadeInDuration:   30 * time.Second,
		FadeInSteps:      60,
		VibrationPattern: []time.Duration{0, time.Second, 500 * time.Millisecond},
	}
}

// Controller orchestrates ringing side effects.
type Controller struct {
	cfg      Config
	state    *RingState
	store    *store.AlarmStore
	sched    *scheduler.AlarmScheduler
	notifier Notifier
	sounder  Sounder
	vibrator Vibrator
	clock    clockwork.Clock
	recorder metrics.Recorder
	bus      *events.Bus
}

// New wires a Controller. The RingState is owned by the caller; recorder and
// bus may be nil.
func New(cfg Config, state *RingState, s *store.AlarmStore, sched *scheduler.AlarmScheduler,
	notifier Notifier, sounder Sounder, vibrator Vibrator,
	clock clockwork.Clock, recorder metrics.Recorder, bus *events.Bus) *Controller {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Controller{
		cfg:      cfg,
		state:    state,
		store:    s,
		sched:    sched,
		notifier: notifier,
		sounder:  sounder,
		vibrator: vibrator,
		clock:    clock,
		recorder: recorder,
		bus:      bus,
	}
}

// OnTrigger establishes the ringing context for alarmID. hour/minute are the
// time of day the firing registration was computed for, or -1 when the event
// did not carry them; they determine the notification id.
//
// A different alarm already ringing is silenced first: last trigger wins and
// at most one alarm rings at a time. Redelivery of the same trigger restarts
// the ring in place, which re-applies no persistent effect.
func (c *Controller) OnTrigger(ctx context.Context, alarmID string, hour, minute int) {
	ctx = observability.WithAlarmID(observability.WithOp(ctx, "trigger"), alarmID)

	c.state.mu.Lock()
	defer c.state.mu.Unlock()

	notificationID := deriveNotificationID(alarmID, hour, minute)

	if prior := c.state.current; prior != nil {
		if prior.alarmID != alarmID {
			observability.InfoContext(ctx, "Pre-empting ringing alarm",
				slog.String("preempted_id", prior.alarmID))
			c.recorder.IncTrigger(metrics.ResultPreempted)
			c.teardownLocked(prior, prior.notificationID, events.RingEndPreempted)
		} else {
			c.teardownLocked(prior, prior.notificationID, events.RingEndPreempted)
		}
	}

	// Vibration starts unconditionally and immediately; the record lookup
	// must never delay the physical alert.
	ring := &ringContext{
		alarmID:        alarmID,
		notificationID: notificationID,
		startedAt:      c.clock.Now(),
	}
	if handle, err := c.vibrator.Vibrate(c.cfg.VibrationPattern, true); err != nil {
		observability.WarnContext(ctx, "Vibration failed", slog.Any("error", err))
	} else {
		ring.vibration = handle
	}

	record, found := alarm.FindByID(c.store.Load(ctx), alarmID)
	label := ""
	vibrationOnly := false
	if found {
		label = record.Label
		vibrationOnly = record.VibrationOnly
	} else {
		// Deleted concurrently: ring anyway with defaults rather than
		// dropping a wake-up the user scheduled.
		observability.WarnContext(ctx, "Alarm record not found, ringing with defaults")
	}

	if !vibrationOnly {
		if handle, err := c.sounder.PlayLoop(); err != nil {
			observability.WarnContext(ctx, "Alarm sound failed", slog.Any("error", err))
		} else {
			ring.sound = handle
			fadeCtx, cancel := context.WithCancel(context.Background())
			ring.fadeCancel = cancel
			go c.runFade(fadeCtx, handle)
		}
	}

	if err := c.notifier.Show(Notification{
		ID:         notificationID,
		AlarmID:    alarmID,
		Title:      label,
		Body:       notificationBody,
		FullScreen: true,
		Actions:    []Action{ActionStop, ActionSnooze},
	}); err != nil {
		observability.WarnContext(ctx, "Notification failed", slog.Any("error", err))
	}

	ring.autoStop = c.clock.AfterFunc(c.cfg.AutoStopDelay, func() {
		c.autoStop(alarmID, notificationID)
	})

	c.state.current = ring
	if c.bus != nil {
		c.bus.Publish(events.RingStarted{AlarmID: alarmID, NotificationID: notificationID})
	}
	c.recorder.IncTrigger(metrics.ResultHandled)
	observability.InfoContext(ctx, "Alarm ringing",
		slog.Int("notification_id", notificationID),
		slog.Bool("vibration_only", vibrationOnly))

	// Unconditional, alert success or not: a repeating alarm re-arms its
	// next occurrence, a one-shot persists enabled=false. This is what
	// guarantees the occurrence never fires twice.
	if found && record.IsRepeating() {
		if err := c.sched.ScheduleAlarm(record.ID, record.Time, record.Weekdays); err != nil {
			observability.ErrorContext(ctx, "Re-arm failed", slog.Any("error", err))
		}
	} else {
		if err := c.store.SetEnabledByID(ctx, alarmID, false); err != nil {
			observability.ErrorContext(ctx, "Disable after fire failed", slog.Any("error", err))
		}
	}
}

// OnStop tears the ringing context down. notificationID dismisses that
// specific notification when >= 0, otherwise the last-known ringing one.
// Calling it with nothing ringing, or twice, is safe.
func (c *Controller) OnStop(ctx context.Context, alarmID string, notificationID int) {
	ctx = observability.WithAlarmID(observability.WithOp(ctx, "stop"), alarmID)
	c.stop(ctx, notificationID, events.RingEndStopped)
}

// OnSnooze performs the same teardown as OnStop, then schedules the snooze
// timer for alarmID. The snooze fire re-enters OnTrigger without touching
// the persisted weekdays or enabled flag.
func (c *Controller) OnSnooze(ctx context.Context, alarmID string, notificationID int) {
	ctx = observability.WithAlarmID(observability.WithOp(ctx, "snooze"), alarmID)

	handled := c.stop(ctx, notificationID, events.RingEndSnoozed)
	if handled {
		c.recorder.IncSnooze(metrics.ResultHandled)
	} else {
		c.recorder.IncSnooze(metrics.ResultDuplicate)
	}

	if err := c.sched.ScheduleSnooze(alarmID, c.cfg.SnoozeMinutes); err != nil {
		observability.ErrorContext(ctx, "Snooze scheduling failed", slog.Any("error", err))
		return
	}
	observability.InfoContext(ctx, "Alarm snoozed", slog.Int("minutes", c.cfg.SnoozeMinutes))
}

// stop silences everything and resets to Idle. Returns false when nothing
// was ringing (duplicate delivery).
func (c *Controller) stop(ctx context.Context, notificationID int, reason events.RingEndReason) bool {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()

	ring := c.state.current
	if ring == nil {
		// Duplicate or late delivery. Still dismiss the named notification:
		// the host may have re-posted it.
		if notificationID >= 0 {
			c.notifier.Cancel(notificationID)
		}
		if reason == events.RingEndStopped {
			c.recorder.IncStop(metrics.ResultDuplicate)
		}
		observability.DebugContext(ctx, "Nothing ringing, ignoring")
		return false
	}

	dismissID := notificationID
	if dismissID < 0 {
		dismissID = ring.notificationID
	}
	c.teardownLocked(ring, dismissID, reason)
	c.state.current = nil

	c.recorder.ObserveRingDuration(c.clock.Now().Sub(ring.startedAt))
	if reason == events.RingEndStopped {
		c.recorder.IncStop(metrics.ResultHandled)
	}
	observability.InfoContext(ctx, "Alarm silenced", slog.String("reason", string(reason)))
	return true
}

// autoStop is the 3-minute deadline path; it has the same effect as an
// explicit stop.
func (c *Controller) autoStop(alarmID string, notificationID int) {
	ctx := observability.WithAlarmID(observability.WithOp(context.Background(), "auto_stop"), alarmID)

	c.state.mu.Lock()
	ring := c.state.current
	if ring == nil || ring.alarmID != alarmID {
		// The ring this deadline belonged to is already gone.
		c.state.mu.Unlock()
		return
	}
	c.teardownLocked(ring, notificationID, events.RingEndAutoStop)
	c.state.current = nil
	c.recorder.ObserveRingDuration(c.clock.Now().Sub(ring.startedAt))
	c.state.mu.Unlock()

	c.recorder.IncAutoStop()
	observability.InfoContext(ctx, "Alarm auto-stopped")
}

// teardownLocked releases every resource of a ring. Release errors are
// logged and swallowed; the state machine must reach Idle regardless.
func (c *Controller) teardownLocked(ring *ringContext, dismissID int, reason events.RingEndReason) {
	if ring.fadeCancel != nil {
		ring.fadeCancel()
		ring.fadeCancel = nil
	}
	if ring.autoStop != nil {
		ring.autoStop.Stop()
		ring.autoStop = nil
	}
	if ring.sound != nil {
		if err := ring.sound.Stop(); err != nil {
			slog.Warn("Audio release failed", "alarm_id", ring.alarmID, "error", err)
		}
		ring.sound = nil
	}
	if ring.vibration != nil {
		if err := ring.vibration.Stop(); err != nil {
			slog.Warn("Vibration release failed", "alarm_id", ring.alarmID, "error", err)
		}
		ring.vibration = nil
	}
	c.notifier.Cancel(dismissID)

	if c.bus != nil {
		c.bus.Publish(events.RingEnded{AlarmID: ring.alarmID, Reason: reason})
	}
}

// runFade ramps volume 0→1 linearly over the configured window. Every step
// checks liveness before sleeping or touching the handle; cancellation stops
// the ramp mid-flight.
func (c *Controller) runFade(ctx context.Context, handle SoundHandle) {
	steps := c.cfg.FadeInSteps
	if steps <= 0 {
		steps = 1
	}
	stepDelay := c.cfg.FadeInDuration / time.Duration(steps)

	for i := 1; i <= steps; i++ {
		select {
		case <-ctx.Done():
			return
		case <-c.clock.After(stepDelay):
		}
		if ctx.Err() != nil {
			return
		}
		if err := handle.SetVolume(float64(i) / float64(steps)); err != nil {
			// Handle already released; stop ramping.
			return
		}
	}
}

// Ringing reports the currently ringing alarm id, empty when Idle.
func (c *Controller) Ringing() string {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	if c.state.current == nil {
		return ""
	}
	return c.state.current.alarmID
}

// deriveNotificationID prefers the stable minutes-since-midnight id the
// original notification used; without a carried time of day it hashes the
// alarm id.
func deriveNotificationID(alarmID string, hour, minute int) int {
	if hour >= 0 && minute >= 0 {
		return hour*60 + minute
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(alarmID))
	return int(h.Sum32() & 0x7fffffff)
}
