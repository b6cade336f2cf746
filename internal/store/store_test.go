package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chibaminto/compactalarm/internal/alarm"
)

func newTestStore(t *testing.T) *AlarmStore {
	t.Helper()
	kv, err := NewSQLiteKV(":memory:")
	require.NoError(t, err)
	s := NewAlarmStore(kv)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testAlarms() []alarm.Alarm {
	return []alarm.Alarm{
		alarm.NewPrimary(alarm.MustTimeOfDay(7, 0), []time.Weekday{time.Monday}, "work"),
		alarm.NewPrimary(alarm.MustTimeOfDay(9, 30), nil, "weekend"),
	}
}

func TestAlarmStore_SaveAndLoad(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	require.Empty(t, s.Load(ctx))

	alarms := testAlarms()
	require.NoError(t, s.Save(ctx, alarms))

	loaded := s.Load(ctx)
	require.Equal(t, alarms, loaded)
}

func TestAlarmStore_SubscribeEmitsImmediateSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()
	require.NoError(t, s.Save(ctx, testAlarms()))

	ch, unsubscribe := s.Subscribe()
	defer unsubscribe()

	select {
	case snapshot := <-ch:
		require.Len(t, snapshot, 2)
	case <-time.After(time.Second):
		t.Fatal("no immediate snapshot")
	}
}

func TestAlarmStore_SubscribeSeesChanges(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	ch, unsubscribe := s.Subscribe()
	defer unsubscribe()
	<-ch // initial empty snapshot

	require.NoError(t, s.Save(ctx, testAlarms()))

	select {
	case snapshot := <-ch:
		require.Len(t, snapshot, 2)
	case <-time.After(time.Second):
		t.Fatal("change not delivered")
	}
}

func TestAlarmStore_SlowSubscriberGetsLatest(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	ch, unsubscribe := s.Subscribe()
	defer unsubscribe()
	<-ch

	first := testAlarms()[:1]
	second := testAlarms()
	require.NoError(t, s.Save(ctx, first))
	require.NoError(t, s.Save(ctx, second))

	// The stale pending snapshot was replaced, not queued behind.
	snapshot := <-ch
	require.Len(t, snapshot, 2)
}

func TestAlarmStore_SetEnabledByID(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	alarms := testAlarms()
	require.NoError(t, s.Save(ctx, alarms))

	require.NoError(t, s.SetEnabledByID(ctx, alarms[0].ID, false))

	loaded := s.Load(ctx)
	got, ok := alarm.FindByID(loaded, alarms[0].ID)
	require.True(t, ok)
	require.False(t, got.Enabled)

	other, _ := alarm.FindByID(loaded, alarms[1].ID)
	require.True(t, other.Enabled)
}

func TestAlarmStore_SetEnabledByID_AbsentIDIsNoop(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()
	require.NoError(t, s.Save(ctx, testAlarms()))

	require.NoError(t, s.SetEnabledByID(ctx, "nope", false))
	require.Len(t, s.Load(ctx), 2)
}

func TestAlarmStore_CorruptPayloadDecodesToEmpty(t *testing.T) {
	kv, err := NewSQLiteKV(":memory:")
	require.NoError(t, err)
	s := NewAlarmStore(kv)
	t.Cleanup(func() { _ = s.Close() })
	ctx := t.Context()

	require.NoError(t, kv.Set(ctx, alarmsKey, []byte("{not json")))

	require.Empty(t, s.Load(ctx))
	require.NoError(t, s.SetEnabledByID(ctx, "any", false))
}

func TestFileKV_RoundTripAndAbsence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alarms.json")
	kv, err := NewFileKV(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	ctx := t.Context()

	_, ok, err := kv.Get(ctx, "alarms")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, kv.Set(ctx, "alarms", []byte(`[1,2]`)))
	value, ok, err := kv.Get(ctx, "alarms")
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `[1,2]`, string(value))
}

func TestFileKV_CloseTwice(t *testing.T) {
	kv, err := NewFileKV(filepath.Join(t.TempDir(), "alarms.json"))
	require.NoError(t, err)

	require.NoError(t, kv.Close())
	require.NoError(t, kv.Close())
}

func TestFileKV_ExternalEditNotifiesSubscribers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alarms.json")
	kv, err := NewFileKV(path)
	require.NoError(t, err)
	s := NewAlarmStore(kv)
	t.Cleanup(func() { _ = s.Close() })

	ch, unsubscribe := s.Subscribe()
	defer unsubscribe()
	<-ch

	// Simulate another process rewriting the payload.
	payload := []byte(`{"alarms": [{"id":"x","time":{"hour":7,"minute":0},"enabled":true}]}`)
	require.NoError(t, os.WriteFile(path, payload, 0o644))

	select {
	case snapshot := <-ch:
		require.Len(t, snapshot, 1)
		require.Equal(t, "x", snapshot[0].ID)
	case <-time.After(2 * time.Second):
		t.Fatal("external change not delivered")
	}
}

func TestSQLiteKV_Upsert(t *testing.T) {
	kv, err := NewSQLiteKV(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", []byte("a")))
	require.NoError(t, kv.Set(ctx, "k", []byte("b")))

	value, ok, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("b"), value)
}
