package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chibaminto/compactalarm/internal/alarm"
	"github.com/chibaminto/compactalarm/internal/config"
)

func testCLIConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Store.Backend = "file"
	cfg.Store.Path = filepath.Join(t.TempDir(), "alarms.json")
	return cfg
}

func TestParseWeekdays(t *testing.T) {
	days, err := parseWeekdays("mon, WED,fri")
	require.NoError(t, err)
	require.Equal(t, []time.Weekday{time.Monday, time.Wednesday, time.Friday}, days)

	days, err = parseWeekdays("")
	require.NoError(t, err)
	require.Nil(t, days)

	_, err = parseWeekdays("mon,funday")
	require.Error(t, err)
}

func TestFormatWeekdays(t *testing.T) {
	require.Equal(t, "mon,wed", formatWeekdays([]time.Weekday{time.Monday, time.Wednesday}))
}

func TestAddRemoveUndoFlow(t *testing.T) {
	cfg := testCLIConfig(t)

	CLI.Add.Time = "07:30"
	CLI.Add.Weekdays = "mon"
	CLI.Add.Label = "work"
	CLI.Add.ChildOf = ""
	CLI.Add.VibrationOnly = false
	require.NoError(t, runAdd(cfg))

	var id string
	require.NoError(t, withStore(cfg, func(ctx context.Context, s *storeSession) error {
		require.Len(t, s.snapshot, 1)
		require.Equal(t, "work", s.snapshot[0].Label)
		id = s.snapshot[0].ID
		return nil
	}))

	CLI.Remove.ID = id
	require.NoError(t, runRemove(cfg))
	require.NoError(t, withStore(cfg, func(ctx context.Context, s *storeSession) error {
		require.Empty(t, s.snapshot)
		return nil
	}))

	// Undo runs in a fresh session, like a second CLI invocation.
	require.NoError(t, runUndo(cfg))
	require.NoError(t, withStore(cfg, func(ctx context.Context, s *storeSession) error {
		require.Len(t, s.snapshot, 1)
		require.Equal(t, id, s.snapshot[0].ID)
		return nil
	}))

	// A second undo has nothing left.
	require.NoError(t, runUndo(cfg))
	require.NoError(t, withStore(cfg, func(ctx context.Context, s *storeSession) error {
		require.Len(t, s.snapshot, 1)
		return nil
	}))
}

func TestSetCascadesWeekdaysToChild(t *testing.T) {
	cfg := testCLIConfig(t)

	CLI.Add.Time = "06:00"
	CLI.Add.Weekdays = ""
	CLI.Add.Label = ""
	CLI.Add.ChildOf = ""
	require.NoError(t, runAdd(cfg))

	var parentID string
	require.NoError(t, withStore(cfg, func(ctx context.Context, s *storeSession) error {
		parentID = s.snapshot[0].ID
		return nil
	}))

	CLI.Add.Time = "06:15"
	CLI.Add.ChildOf = parentID
	require.NoError(t, runAdd(cfg))

	CLI.Set.ID = parentID
	CLI.Set.Time = ""
	CLI.Set.Label = ""
	CLI.Set.Weekdays = "sat,sun"
	CLI.Set.VibrationOnly = nil
	require.NoError(t, runSet(cfg))

	require.NoError(t, withStore(cfg, func(ctx context.Context, s *storeSession) error {
		require.Len(t, s.snapshot, 2)
		for _, a := range s.snapshot {
			require.Equal(t, []time.Weekday{time.Sunday, time.Saturday}, a.Weekdays)
		}
		return nil
	}))
}

func TestShortID(t *testing.T) {
	require.Equal(t, "0f3a9c12", shortID("0f3a9c12-77aa-4d1e-9f00-1234567890ab"))
	require.Equal(t, "a1", shortID("a1"))
	require.Equal(t, "", shortID(""))
}

func TestAddChildVibrationOnly(t *testing.T) {
	cfg := testCLIConfig(t)

	CLI.Add.Time = "06:00"
	CLI.Add.Weekdays = ""
	CLI.Add.Label = ""
	CLI.Add.ChildOf = ""
	CLI.Add.VibrationOnly = false
	require.NoError(t, runAdd(cfg))

	var parentID string
	require.NoError(t, withStore(cfg, func(ctx context.Context, s *storeSession) error {
		parentID = s.snapshot[0].ID
		return nil
	}))

	CLI.Add.Time = "06:15"
	CLI.Add.ChildOf = parentID
	CLI.Add.VibrationOnly = true
	require.NoError(t, runAdd(cfg))
	CLI.Add.VibrationOnly = false

	require.NoError(t, withStore(cfg, func(ctx context.Context, s *storeSession) error {
		require.Len(t, s.snapshot, 2)
		for _, a := range s.snapshot {
			if a.IsPrimary() {
				require.False(t, a.VibrationOnly)
			} else {
				require.True(t, a.VibrationOnly)
			}
		}
		return nil
	}))
}

func TestRunNext_DisabledAlarm(t *testing.T) {
	cfg := testCLIConfig(t)

	CLI.Add.Time = "09:00"
	CLI.Add.Weekdays = ""
	CLI.Add.ChildOf = ""
	require.NoError(t, runAdd(cfg))

	var id string
	require.NoError(t, withStore(cfg, func(ctx context.Context, s *storeSession) error {
		id = s.snapshot[0].ID
		return nil
	}))

	require.NoError(t, setEnabled(cfg, id, false))

	CLI.Next.ID = id
	require.NoError(t, runNext(cfg))

	require.NoError(t, withStore(cfg, func(ctx context.Context, s *storeSession) error {
		a, ok := alarm.FindByID(s.snapshot, id)
		require.True(t, ok)
		require.False(t, a.Enabled)
		return nil
	}))
}
