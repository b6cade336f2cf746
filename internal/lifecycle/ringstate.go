package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// RingState owns the process-wide "currently ringing" context. The host app
// model allows at most one ringing alarm, so this is a singleton in spirit,
// but it is an explicitly constructed object injected into the controller:
// tests create as many as they like.
type RingState struct {
	mu      sync.Mutex
	current *ringContext
}

// NewRingState returns an idle state.
func NewRingState() *RingState {
	return &RingState{}
}

// ringContext is everything tied to one active ring.
type ringContext struct {
	alarmID        string
	notificationID int
	startedAt      time.Time

	sound      SoundHandle
	vibration  VibrationHandle
	fadeCancel context.CancelFunc
	autoStop   clockwork.Timer
}
