package repository

import (
	"sync"

	"github.com/chibaminto/compactalarm/internal/alarm"
)

// UndoBuffer holds the most recently deleted alarm group for one restore.
// A subsequent deletion replaces the buffered group; a successful Take
// clears it, so each deletion can be undone at most once.
type UndoBuffer struct {
	mu    sync.Mutex
	group []alarm.Alarm
}

// NewUndoBuffer returns an empty buffer.
func NewUndoBuffer() *UndoBuffer {
	return &UndoBuffer{}
}

// Put replaces the buffered group.
func (u *UndoBuffer) Put(group []alarm.Alarm) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.group = make([]alarm.Alarm, len(group))
	copy(u.group, group)
}

// Take removes and returns the buffered group. ok is false when the buffer
// is empty or was already taken.
func (u *UndoBuffer) Take() ([]alarm.Alarm, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.group == nil {
		return nil, false
	}
	group := u.group
	u.group = nil
	return group, true
}
