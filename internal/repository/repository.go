// Package repository implements cascade-aware mutation of the alarm list.
//
// Every operation takes the caller's current snapshot, computes the next
// list, persists it, and returns the new list synchronously so collaborators
// never need a read-back round trip. Cascade rules: enabled, weekdays, and
// vibration-only flow from a primary to its secondaries; time and label
// never cascade; nothing ever flows upward from a secondary.
package repository

import (
	"context"
	"time"

	"github.com/chibaminto/compactalarm/internal/alarm"
	"github.com/chibaminto/compactalarm/internal/events"
	ferrors "github.com/chibaminto/compactalarm/internal/foundation/errors"
	"github.com/chibaminto/compactalarm/internal/store"
)

// Repository mutates the alarm list over the store.
type Repository struct {
	store *store.AlarmStore
	undo  *UndoBuffer
	bus   *events.Bus
}

// New creates a Repository. The bus may be nil when no UI consumer listens
// for deletion signals.
func New(s *store.AlarmStore, bus *events.Bus) *Repository {
	return &Repository{
		store: s,
		undo:  NewUndoBuffer(),
		bus:   bus,
	}
}

// AddPrimary appends a new primary alarm and returns it with the new list.
func (r *Repository) AddPrimary(ctx context.Context, snapshot []alarm.Alarm, t alarm.TimeOfDay, weekdays []time.Weekday, label string) (alarm.Alarm, []alarm.Alarm, error) {
	a := alarm.NewPrimary(t, weekdays, label)
	next := append(copyList(snapshot), a)
	if err := r.store.Save(ctx, next); err != nil {
		return alarm.Alarm{}, nil, err
	}
	return a, next, nil
}

// AddChild appends a secondary under parentID. The child snapshots the
// parent's weekdays, enabled state, and vibration-only flag at creation.
func (r *Repository) AddChild(ctx context.Context, snapshot []alarm.Alarm, parentID string, t alarm.TimeOfDay) (alarm.Alarm, []alarm.Alarm, error) {
	parent, ok := alarm.FindByID(snapshot, parentID)
	if !ok {
		return alarm.Alarm{}, nil, ferrors.NotFoundError("parent alarm not found").
			WithContext("parent_id", parentID).
			Build()
	}
	if !parent.IsPrimary() {
		return alarm.Alarm{}, nil, ferrors.ValidationError("secondary alarms cannot own children").
			WithContext("parent_id", parentID).
			Build()
	}

	child := alarm.NewChild(parent, t)
	next := append(copyList(snapshot), child)
	if err := r.store.Save(ctx, next); err != nil {
		return alarm.Alarm{}, nil, err
	}
	return child, next, nil
}

// RemoveGroup deletes the alarm with the given id and, if it is a primary,
// all its secondaries. The removed group is buffered for a single undo and
// announced on the bus.
func (r *Repository) RemoveGroup(ctx context.Context, snapshot []alarm.Alarm, id string) ([]alarm.Alarm, []alarm.Alarm, error) {
	removed := alarm.Group(snapshot, id)
	if len(removed) == 0 {
		return nil, copyList(snapshot), nil
	}

	next := make([]alarm.Alarm, 0, len(snapshot)-len(removed))
	for _, a := range snapshot {
		if a.ID != id && a.ParentID != id {
			next = append(next, a)
		}
	}
	if err := r.store.Save(ctx, next); err != nil {
		return nil, nil, err
	}

	r.undo.Put(removed)
	if r.bus != nil {
		r.bus.Publish(events.AlarmsDeleted{Alarms: removed})
	}
	return removed, next, nil
}

// Undo re-inserts the most recently removed group exactly once. It returns
// the restored records and the new list; restored is nil when nothing was
// buffered.
func (r *Repository) Undo(ctx context.Context, snapshot []alarm.Alarm) ([]alarm.Alarm, []alarm.Alarm, error) {
	group, ok := r.undo.Take()
	if !ok {
		return nil, copyList(snapshot), nil
	}

	next := append(copyList(snapshot), group...)
	if err := r.store.Save(ctx, next); err != nil {
		// The restore did not land; keep the group available for a retry.
		r.undo.Put(group)
		return nil, nil, err
	}
	return group, next, nil
}

// SetEnabled updates the enabled flag, cascading from a primary to its
// secondaries.
func (r *Repository) SetEnabled(ctx context.Context, snapshot []alarm.Alarm, id string, enabled bool) ([]alarm.Alarm, error) {
	return r.mutate(ctx, snapshot, func(a *alarm.Alarm) {
		if a.ID == id || a.ParentID == id {
			a.Enabled = enabled
		}
	})
}

// SetWeekdays updates the weekday set, cascading from a primary to its
// secondaries. An empty set turns the alarm into a one-shot.
func (r *Repository) SetWeekdays(ctx context.Context, snapshot []alarm.Alarm, id string, weekdays []time.Weekday) ([]alarm.Alarm, error) {
	a, ok := alarm.FindByID(snapshot, id)
	if !ok {
		return nil, notFound(id)
	}
	// Normalize once through a scratch record so every cascaded copy shares
	// the same deduplicated set.
	scratch := alarm.NewPrimary(a.Time, weekdays, "")
	normalized := scratch.Weekdays

	return r.mutate(ctx, snapshot, func(a *alarm.Alarm) {
		if a.ID == id || a.ParentID == id {
			a.Weekdays = normalized
		}
	})
}

// SetTime updates the time of day of a single record. Never cascades.
func (r *Repository) SetTime(ctx context.Context, snapshot []alarm.Alarm, id string, t alarm.TimeOfDay) ([]alarm.Alarm, error) {
	if _, ok := alarm.FindByID(snapshot, id); !ok {
		return nil, notFound(id)
	}
	return r.mutate(ctx, snapshot, func(a *alarm.Alarm) {
		if a.ID == id {
			a.Time = t
		}
	})
}

// SetLabel updates the label of a single record, bounded. Never cascades.
func (r *Repository) SetLabel(ctx context.Context, snapshot []alarm.Alarm, id string, label string) ([]alarm.Alarm, error) {
	if _, ok := alarm.FindByID(snapshot, id); !ok {
		return nil, notFound(id)
	}
	bounded := alarm.BoundLabel(label)
	return r.mutate(ctx, snapshot, func(a *alarm.Alarm) {
		if a.ID == id {
			a.Label = bounded
		}
	})
}

// SetVibrationOnly updates the vibration-only flag, cascading from a primary
// to its secondaries.
func (r *Repository) SetVibrationOnly(ctx context.Context, snapshot []alarm.Alarm, id string, vibrationOnly bool) ([]alarm.Alarm, error) {
	return r.mutate(ctx, snapshot, func(a *alarm.Alarm) {
		if a.ID == id || a.ParentID == id {
			a.VibrationOnly = vibrationOnly
		}
	})
}

func (r *Repository) mutate(ctx context.Context, snapshot []alarm.Alarm, apply func(*alarm.Alarm)) ([]alarm.Alarm, error) {
	next := copyList(snapshot)
	for i := range next {
		apply(&next[i])
	}
	if err := r.store.Save(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

func copyList(alarms []alarm.Alarm) []alarm.Alarm {
	out := make([]alarm.Alarm, len(alarms))
	copy(out, alarms)
	return out
}

func notFound(id string) error {
	return ferrors.NotFoundError("alarm not found").
		WithContext("alarm_id", id).
		Build()
}
