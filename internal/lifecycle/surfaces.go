package lifecycle

import "time"

// Action identifies a notification action button.
type Action string

const (
	ActionStop   Action = "stop"
	ActionSnooze Action = "snooze"
)

// Notification carries everything the host needs to present a ringing alarm:
// a high-priority, non-swipe-dismissable card with Stop and Snooze actions
// and a full-screen hint pointing at the dedicated stop surface.
type Notification struct {
	ID         int
	AlarmID    string
	Title      string
	Body       string
	FullScreen bool
	Actions    []Action
}

// Notifier is the host notification surface.
type Notifier interface {
	Show(n Notification) error
	Cancel(id int)
}

// SoundHandle controls a playing loop.
type SoundHandle interface {
	// SetVolume scales playback volume, 0..1.
	SetVolume(v float64) error
	Stop() error
}

// Sounder starts looping alarm audio. Playback begins at volume zero; the
// controller drives the fade-in ramp through the handle.
type Sounder interface {
	PlayLoop() (SoundHandle, error)
}

// VibrationHandle controls an active vibration.
type VibrationHandle interface {
	Stop() error
}

// Vibrator is the host vibration surface. The pattern alternates pause and
// vibrate segments; repeat loops it until the handle is stopped.
type Vibrator interface {
	Vibrate(pattern []time.Duration, repeat bool) (VibrationHandle, error)
}
