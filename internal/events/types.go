package events

import "github.com/chibaminto/compactalarm/internal/alarm"

// AlarmsDeleted is the one-shot "deleted, undo?" signal handed to the UI
// consumer after a group removal. The group can be restored exactly once
// through the repository's Undo.
type AlarmsDeleted struct {
	Alarms []alarm.Alarm
}

// RingStarted is published when a ringing context is established.
type RingStarted struct {
	AlarmID        string
	NotificationID int
}

// RingEnded is published when a ringing context is torn down.
type RingEnded struct {
	AlarmID string
	Reason  RingEndReason
}

// RingEndReason says why a ring ended.
type RingEndReason string

const (
	RingEndStopped   RingEndReason = "stopped"
	RingEndSnoozed   RingEndReason = "snoozed"
	RingEndAutoStop  RingEndReason = "auto_stop"
	RingEndPreempted RingEndReason = "preempted"
)
