package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chibaminto/compactalarm/internal/alarm"
	"github.com/chibaminto/compactalarm/internal/events"
	"github.com/chibaminto/compactalarm/internal/store"
)

func newTestRepo(t *testing.T) (*Repository, *store.AlarmStore, *events.Bus) {
	t.Helper()
	kv, err := store.NewSQLiteKV(":memory:")
	require.NoError(t, err)
	s := store.NewAlarmStore(kv)
	bus := events.NewBus()
	t.Cleanup(func() {
		bus.Close()
		_ = s.Close()
	})
	return New(s, bus), s, bus
}

// family seeds a primary with two secondaries and returns all three.
func family(t *testing.T, repo *Repository) (alarm.Alarm, alarm.Alarm, alarm.Alarm, []alarm.Alarm) {
	t.Helper()
	ctx := t.Context()

	primary, list, err := repo.AddPrimary(ctx, nil, alarm.MustTimeOfDay(7, 0), []time.Weekday{time.Monday}, "wake")
	require.NoError(t, err)
	child1, list, err := repo.AddChild(ctx, list, primary.ID, alarm.MustTimeOfDay(7, 10))
	require.NoError(t, err)
	child2, list, err := repo.AddChild(ctx, list, primary.ID, alarm.MustTimeOfDay(7, 20))
	require.NoError(t, err)
	return primary, child1, child2, list
}

func TestAddChild_RequiresLivePrimary(t *testing.T) {
	repo, _, _ := newTestRepo(t)
	ctx := t.Context()

	_, _, err := repo.AddChild(ctx, nil, "ghost", alarm.MustTimeOfDay(8, 0))
	require.Error(t, err)

	primary, list, err := repo.AddPrimary(ctx, nil, alarm.MustTimeOfDay(7, 0), nil, "")
	require.NoError(t, err)
	child, list, err := repo.AddChild(ctx, list, primary.ID, alarm.MustTimeOfDay(7, 5))
	require.NoError(t, err)

	// Secondaries cannot own children of their own.
	_, _, err = repo.AddChild(ctx, list, child.ID, alarm.MustTimeOfDay(7, 15))
	require.Error(t, err)
}

func TestSetEnabled_CascadesFromPrimary(t *testing.T) {
	repo, _, _ := newTestRepo(t)
	primary, child1, child2, list := family(t, repo)

	list, err := repo.SetEnabled(t.Context(), list, primary.ID, false)
	require.NoError(t, err)

	for _, id := range []string{primary.ID, child1.ID, child2.ID} {
		got, ok := alarm.FindByID(list, id)
		require.True(t, ok)
		require.False(t, got.Enabled, "record %s should be disabled", id)
	}
}

func TestSetEnabled_ChildNeverAffectsPrimaryOrSiblings(t *testing.T) {
	repo, _, _ := newTestRepo(t)
	primary, child1, child2, list := family(t, repo)

	list, err := repo.SetEnabled(t.Context(), list, child1.ID, false)
	require.NoError(t, err)

	got, _ := alarm.FindByID(list, child1.ID)
	require.False(t, got.Enabled)
	got, _ = alarm.FindByID(list, primary.ID)
	require.True(t, got.Enabled)
	got, _ = alarm.FindByID(list, child2.ID)
	require.True(t, got.Enabled)
}

func TestSetWeekdays_CascadesAndNormalizes(t *testing.T) {
	repo, _, _ := newTestRepo(t)
	primary, child1, _, list := family(t, repo)

	list, err := repo.SetWeekdays(t.Context(), list, primary.ID,
		[]time.Weekday{time.Friday, time.Monday, time.Monday})
	require.NoError(t, err)

	want := []time.Weekday{time.Monday, time.Friday}
	got, _ := alarm.FindByID(list, primary.ID)
	require.Equal(t, want, got.Weekdays)
	got, _ = alarm.FindByID(list, child1.ID)
	require.Equal(t, want, got.Weekdays)
}

func TestSetTimeAndLabel_NeverCascade(t *testing.T) {
	repo, _, _ := newTestRepo(t)
	primary, child1, _, list := family(t, repo)
	ctx := t.Context()

	list, err := repo.SetTime(ctx, list, primary.ID, alarm.MustTimeOfDay(6, 45))
	require.NoError(t, err)
	list, err = repo.SetLabel(ctx, list, primary.ID, "early")
	require.NoError(t, err)

	got, _ := alarm.FindByID(list, child1.ID)
	require.Equal(t, alarm.MustTimeOfDay(7, 10), got.Time)
	require.Empty(t, got.Label)

	got, _ = alarm.FindByID(list, primary.ID)
	require.Equal(t, alarm.MustTimeOfDay(6, 45), got.Time)
	require.Equal(t, "early", got.Label)
}

func TestSetVibrationOnly_Cascades(t *testing.T) {
	repo, _, _ := newTestRepo(t)
	primary, child1, child2, list := family(t, repo)

	list, err := repo.SetVibrationOnly(t.Context(), list, primary.ID, true)
	require.NoError(t, err)

	for _, id := range []string{primary.ID, child1.ID, child2.ID} {
		got, _ := alarm.FindByID(list, id)
		require.True(t, got.VibrationOnly)
	}
}

func TestRemoveGroup_DeletesPrimaryWithSecondaries(t *testing.T) {
	repo, s, bus := newTestRepo(t)
	primary, _, _, list := family(t, repo)

	deletedCh, unsubscribe := events.Subscribe[events.AlarmsDeleted](bus)
	defer unsubscribe()

	removed, list, err := repo.RemoveGroup(t.Context(), list, primary.ID)
	require.NoError(t, err)
	require.Len(t, removed, 3)
	require.Empty(t, list)
	require.Empty(t, s.Load(t.Context()))

	select {
	case evt := <-deletedCh:
		require.Len(t, evt.Alarms, 3)
	case <-time.After(time.Second):
		t.Fatal("no deletion signal")
	}
}

func TestUndo_RestoresExactGroupOnce(t *testing.T) {
	repo, _, _ := newTestRepo(t)
	primary, child1, child2, list := family(t, repo)
	ctx := t.Context()

	removed, list, err := repo.RemoveGroup(ctx, list, primary.ID)
	require.NoError(t, err)
	require.Len(t, removed, 3)

	restored, list, err := repo.Undo(ctx, list)
	require.NoError(t, err)
	require.Len(t, restored, 3)
	require.Len(t, list, 3)

	// Ids and field values survive the round trip.
	for _, want := range []alarm.Alarm{primary, child1, child2} {
		got, ok := alarm.FindByID(list, want.ID)
		require.True(t, ok)
		require.Equal(t, want, got)
	}

	// A second undo finds an empty buffer.
	restored, list, err = repo.Undo(ctx, list)
	require.NoError(t, err)
	require.Nil(t, restored)
	require.Len(t, list, 3)
}

func TestRemoveGroup_SecondaryOnly(t *testing.T) {
	repo, _, _ := newTestRepo(t)
	primary, child1, child2, list := family(t, repo)

	removed, list, err := repo.RemoveGroup(t.Context(), list, child1.ID)
	require.NoError(t, err)
	require.Len(t, removed, 1)
	require.Len(t, list, 2)

	_, ok := alarm.FindByID(list, primary.ID)
	require.True(t, ok)
	_, ok = alarm.FindByID(list, child2.ID)
	require.True(t, ok)
}

func TestRemoveGroup_AbsentIDIsNoop(t *testing.T) {
	repo, _, _ := newTestRepo(t)
	_, _, _, list := family(t, repo)

	removed, next, err := repo.RemoveGroup(t.Context(), list, "ghost")
	require.NoError(t, err)
	require.Nil(t, removed)
	require.Len(t, next, 3)
}
