// Package alarm holds the alarm data model and the next-trigger computation.
//
// Alarms form a flat list. A primary alarm has an empty ParentID and owns
// zero or more secondary alarms that reference it through ParentID. The
// relationship is a relation query over the list, not a tree.
package alarm

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// MaxLabelRunes bounds the free-text label length.
const MaxLabelRunes = 100

// Alarm is a single alarm record.
type Alarm struct {
	ID            string         `json:"id"`
	ParentID      string         `json:"parent_id,omitempty"`
	Time          TimeOfDay      `json:"time"`
	Enabled       bool           `json:"enabled"`
	Weekdays      []time.Weekday `json:"weekdays,omitempty"`
	Label         string         `json:"label,omitempty"`
	VibrationOnly bool           `json:"vibration_only,omitempty"`
}

// IsPrimary reports whether the alarm is a top-level alarm.
func (a Alarm) IsPrimary() bool {
	return a.ParentID == ""
}

// IsRepeating reports whether the alarm repeats on a weekday set.
// An empty weekday set means one-shot.
func (a Alarm) IsRepeating() bool {
	return len(a.Weekdays) > 0
}

// RepeatsOn reports whether the alarm's weekday set contains day.
func (a Alarm) RepeatsOn(day time.Weekday) bool {
	for _, d := range a.Weekdays {
		if d == day {
			return true
		}
	}
	return false
}

// NewPrimary creates a primary alarm with a fresh id. The alarm starts enabled.
func NewPrimary(t TimeOfDay, weekdays []time.Weekday, label string) Alarm {
	return Alarm{
		ID:       uuid.NewString(),
		Time:     t,
		Enabled:  true,
		Weekdays: normalizeWeekdays(weekdays),
		Label:    BoundLabel(label),
	}
}

// NewChild creates a secondary alarm under parent. The child snapshots the
// parent's weekdays, enabled state, and vibration-only flag at creation time;
// no live inheritance happens afterwards.
func NewChild(parent Alarm, t TimeOfDay) Alarm {
	return Alarm{
		ID:            uuid.NewString(),
		ParentID:      parent.ID,
		Time:          t,
		Enabled:       parent.Enabled,
		Weekdays:      normalizeWeekdays(parent.Weekdays),
		VibrationOnly: parent.VibrationOnly,
	}
}

// BoundLabel truncates a label to MaxLabelRunes.
func BoundLabel(label string) string {
	runes := []rune(label)
	if len(runes) <= MaxLabelRunes {
		return label
	}
	return string(runes[:MaxLabelRunes])
}

// normalizeWeekdays drops duplicates and copies the slice so records never
// alias caller-owned storage. Order is irrelevant; a stable sort keeps
// persisted payloads deterministic.
func normalizeWeekdays(days []time.Weekday) []time.Weekday {
	if len(days) == 0 {
		return nil
	}
	seen := make(map[time.Weekday]bool, len(days))
	out := make([]time.Weekday, 0, len(days))
	for _, d := range days {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// FindByID returns the alarm with the given id, if present.
func FindByID(alarms []Alarm, id string) (Alarm, bool) {
	for _, a := range alarms {
		if a.ID == id {
			return a, true
		}
	}
	return Alarm{}, false
}

// ChildrenOf returns the secondaries of the given primary, sorted by time.
func ChildrenOf(alarms []Alarm, parentID string) []Alarm {
	var out []Alarm
	for _, a := range alarms {
		if a.ParentID == parentID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

// Primaries returns all primary alarms, sorted by time.
func Primaries(alarms []Alarm) []Alarm {
	var out []Alarm
	for _, a := range alarms {
		if a.IsPrimary() {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

// Group returns the alarm with the given id together with all records whose
// ParentID references it, in list order.
func Group(alarms []Alarm, id string) []Alarm {
	var out []Alarm
	for _, a := range alarms {
		if a.ID == id || a.ParentID == id {
			out = append(out, a)
		}
	}
	return out
}
