package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chibaminto/compactalarm/internal/alarm"
	"github.com/chibaminto/compactalarm/internal/config"
)

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Store.Backend = backend
	name := "alarms.json"
	if backend == "sqlite" {
		name = "alarms.db"
	}
	cfg.Store.Path = filepath.Join(t.TempDir(), name)
	return cfg
}

func startService(t *testing.T, cfg *config.Config) *Service {
	t.Helper()
	svc, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Start(ctx) }()

	require.Eventually(t, func() bool {
		return svc.GetStatus() == StatusRunning
	}, 5*time.Second, 10*time.Millisecond)

	t.Cleanup(func() {
		cancel()
		require.NoError(t, svc.Stop(context.Background()))
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("Start did not return after Stop")
		}
	})
	return svc
}

func TestService_ArmsEnabledAlarmsOnEdit(t *testing.T) {
	svc := startService(t, testConfig(t, "file"))
	ctx := context.Background()

	added, _, err := svc.Repository().AddPrimary(ctx, svc.Store().Load(ctx),
		alarm.MustTimeOfDay(6, 30), []time.Weekday{time.Monday}, "early")
	require.NoError(t, err)

	// The store subscription re-arms the set shortly after the write.
	require.Eventually(t, func() bool {
		_, ok := svc.Scheduler().NextFireTime(added.ID)
		return ok
	}, 5*time.Second, 10*time.Millisecond)

	at, _ := svc.Scheduler().NextFireTime(added.ID)
	require.Equal(t, time.Monday, at.Weekday())
	require.Equal(t, 6, at.Hour())
	require.Equal(t, 30, at.Minute())
}

func TestService_DisablingCancelsRegistration(t *testing.T) {
	svc := startService(t, testConfig(t, "sqlite"))
	ctx := context.Background()

	added, _, err := svc.Repository().AddPrimary(ctx, svc.Store().Load(ctx),
		alarm.MustTimeOfDay(7, 0), nil, "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := svc.Scheduler().NextFireTime(added.ID)
		return ok
	}, 5*time.Second, 10*time.Millisecond)

	_, err = svc.Repository().SetEnabled(ctx, svc.Store().Load(ctx), added.ID, false)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := svc.Scheduler().NextFireTime(added.ID)
		return !ok
	}, 5*time.Second, 10*time.Millisecond)
}

func TestService_BootRearmsFromPersistedState(t *testing.T) {
	cfg := testConfig(t, "file")

	// First run persists an enabled alarm.
	svc := startService(t, cfg)
	ctx := context.Background()
	added, _, err := svc.Repository().AddPrimary(ctx, svc.Store().Load(ctx),
		alarm.MustTimeOfDay(8, 15), []time.Weekday{time.Friday}, "standup")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := svc.Scheduler().NextFireTime(added.ID)
		return ok
	}, 5*time.Second, 10*time.Millisecond)

	svc.DispatchBoot(ctx)
	require.Eventually(t, func() bool {
		_, ok := svc.Scheduler().NextFireTime(added.ID)
		return ok
	}, 5*time.Second, 10*time.Millisecond)
}

func TestService_StartTwiceRejected(t *testing.T) {
	svc := startService(t, testConfig(t, "file"))
	require.Error(t, svc.Start(context.Background()))
}
