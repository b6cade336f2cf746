// Package service assembles the daemon: persistence, scheduling, the ring
// lifecycle, the NATS bridge, and the metrics endpoint, with one Start/Stop
// surface over all of them.
package service

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/chibaminto/compactalarm/internal/alert"
	"github.com/chibaminto/compactalarm/internal/config"
	"github.com/chibaminto/compactalarm/internal/events"
	"github.com/chibaminto/compactalarm/internal/foundation/errors"
	"github.com/chibaminto/compactalarm/internal/lifecycle"
	"github.com/chibaminto/compactalarm/internal/metrics"
	"github.com/chibaminto/compactalarm/internal/repository"
	"github.com/chibaminto/compactalarm/internal/scheduler"
	"github.com/chibaminto/compactalarm/internal/store"
)

// Status represents the current state of the daemon
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusError    Status = "error"
)

// Service is the assembled alarm daemon.
type Service struct {
	cfg       *config.Config
	status    atomic.Value // Status
	startTime time.Time
	stopChan  chan struct{}
	stopOnce  sync.Once

	clock      clockwork.Clock
	kv         store.KV
	alarms     *store.AlarmStore
	repo       *repository.Repository
	bus        *events.Bus
	registry   *prom.Registry
	recorder   metrics.Recorder
	timers     *scheduler.GocronTimers
	sched      *scheduler.AlarmScheduler
	controller *lifecycle.Controller

	bridge        *events.NATSBridge
	metricsServer *http.Server
	unsubStore    func()
}

// OpenKV opens the configured persistence backend, creating parent
// directories as needed. The CLI shares this with the daemon.
func OpenKV(cfg config.StoreConfig) (store.KV, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, errors.WrapError(err, errors.CategoryPersistence, "failed to create state directory").
			WithContext("path", cfg.Path).Build()
	}
	switch cfg.Backend {
	case "sqlite":
		return store.NewSQLiteKV(cfg.Path)
	default:
		return store.NewFileKV(cfg.Path)
	}
}

// New wires all components from cfg. Nothing runs until Start.
func New(cfg *config.Config) (*Service, error) {
	s := &Service{
		cfg:      cfg,
		stopChan: make(chan struct{}),
		clock:    clockwork.NewRealClock(),
	}
	s.status.Store(StatusStopped)

	kv, err := OpenKV(cfg.Store)
	if err != nil {
		return nil, err
	}
	s.kv = kv
	s.alarms = store.NewAlarmStore(kv)
	s.bus = events.NewBus()
	s.repo = repository.New(s.alarms, s.bus)

	s.recorder = metrics.NoopRecorder{}
	if cfg.Metrics.Addr != "" {
		s.registry = prom.NewRegistry()
		s.recorder = metrics.NewPrometheusRecorder(s.registry)
	}

	sounder, err := alert.NewOtoSounder(cfg.Ring.SoundFile)
	if err != nil {
		return nil, err
	}

	timers, err := scheduler.NewGocronTimers(s.clock,
		func(p scheduler.FirePayload) {
			s.controller.OnTrigger(context.Background(), p.AlarmID, p.Hour, p.Minute)
		},
		func() bool { return cfg.Timers.ExactAlarms },
		s.recorder)
	if err != nil {
		return nil, err
	}
	s.timers = timers
	s.sched = scheduler.New(timers, s.clock, s.recorder)

	s.controller = lifecycle.New(ringConfig(cfg.Ring), lifecycle.NewRingState(),
		s.alarms, s.sched,
		alert.LogNotifier{}, sounder, alert.LogVibrator{},
		s.clock, s.recorder, s.bus)

	return s, nil
}

// Repository exposes the mutation surface for the CLI and tests.
func (s *Service) Repository() *repository.Repository { return s.repo }

// Store exposes the alarm store for read paths.
func (s *Service) Store() *store.AlarmStore { return s.alarms }

// Scheduler exposes registered fire times for status queries.
func (s *Service) Scheduler() *scheduler.AlarmScheduler { return s.sched }

// GetStatus returns the current daemon status.
func (s *Service) GetStatus() Status {
	return s.status.Load().(Status)
}

// Start brings every component up and blocks until ctx is cancelled or Stop
// is called.
func (s *Service) Start(ctx context.Context) error {
	if s.GetStatus() != StatusStopped {
		return errors.DaemonError("daemon is not in stopped state").
			WithContext("status", string(s.GetStatus())).Build()
	}
	s.status.Store(StatusStarting)
	s.startTime = s.clock.Now()
	slog.Info("Starting alarm daemon",
		slog.String("store_backend", s.cfg.Store.Backend),
		slog.String("store_path", s.cfg.Store.Path))

	s.timers.Start()

	if s.cfg.Metrics.Addr != "" {
		if err := s.startMetricsServer(); err != nil {
			s.status.Store(StatusError)
			return err
		}
	}

	if s.cfg.Bridge.NATSURL != "" {
		bridge, err := events.NewNATSBridge(s.cfg.Bridge.NATSURL, s)
		if err != nil {
			s.status.Store(StatusError)
			return err
		}
		s.bridge = bridge
		slog.Info("Lifecycle bridge connected", slog.String("url", s.cfg.Bridge.NATSURL))
	}

	// The subscription's immediate snapshot doubles as the boot pass: every
	// enabled alarm gets its registration, and any edit arriving later,
	// through the repository or an external writer, re-arms the set.
	changes, unsub := s.alarms.Subscribe()
	s.unsubStore = unsub
	go func() {
		for list := range changes {
			s.sched.RescheduleAll(list)
		}
	}()

	s.status.Store(StatusRunning)
	slog.Info("Alarm daemon started")

	select {
	case <-ctx.Done():
		slog.Info("Daemon stopped by context cancellation")
	case <-s.stopChan:
		slog.Info("Daemon stopped by stop signal")
	}
	s.status.Store(StatusStopping)
	return nil
}

// Stop shuts every component down. Safe to call more than once.
func (s *Service) Stop(ctx context.Context) error {
	status := s.GetStatus()
	if status == StatusStopped {
		return nil
	}
	s.status.Store(StatusStopping)
	s.stopOnce.Do(func() { close(s.stopChan) })

	if s.unsubStore != nil {
		s.unsubStore()
	}
	if s.bridge != nil {
		s.bridge.Close()
	}
	if s.metricsServer != nil {
		if err := s.metricsServer.Shutdown(ctx); err != nil {
			slog.Warn("Metrics server shutdown failed", "error", err)
		}
	}
	if err := s.timers.Stop(); err != nil {
		slog.Warn("Timer shutdown failed", "error", err)
	}
	s.bus.Close()
	if err := s.alarms.Close(); err != nil {
		slog.Warn("Store close failed", "error", err)
	}

	s.status.Store(StatusStopped)
	slog.Info("Alarm daemon stopped")
	return nil
}

func (s *Service) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(s.registry))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.metricsServer = &http.Server{
		Addr:         s.cfg.Metrics.Addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("Metrics endpoint listening", slog.String("addr", s.cfg.Metrics.Addr))
		if err := s.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Metrics server failed", "error", err)
		}
	}()
	return nil
}

// DispatchTrigger implements events.Dispatcher.
func (s *Service) DispatchTrigger(ctx context.Context, alarmID string, hour, minute int) {
	s.controller.OnTrigger(ctx, alarmID, hour, minute)
}

// DispatchStop implements events.Dispatcher.
func (s *Service) DispatchStop(ctx context.Context, alarmID string, notificationID int) {
	s.controller.OnStop(ctx, alarmID, notificationID)
}

// DispatchSnooze implements events.Dispatcher.
func (s *Service) DispatchSnooze(ctx context.Context, alarmID string, notificationID int) {
	s.controller.OnSnooze(ctx, alarmID, notificationID)
}

// DispatchBoot implements events.Dispatcher: a host restart lost every
// registration, so re-arm the full set from persisted state.
func (s *Service) DispatchBoot(ctx context.Context) {
	list := s.alarms.Load(ctx)
	s.sched.RescheduleAll(list)
	slog.Info("Boot reschedule complete", slog.Int("alarms", len(list)))
}

func ringConfig(r config.RingConfig) lifecycle.Config {
	pattern := make([]time.Duration, len(r.VibrationPatternMS))
	for i, ms := range r.VibrationPatternMS {
		pattern[i] = time.Duration(ms) * time.Millisecond
	}
	return lifecycle.Config{
		SnoozeMinutes:    r.SnoozeMinutes,
		AutoStopDelay:    time.Duration(r.AutoStopMinutes) * time.Minute,
		FadeInDuration:   time.Duration(r.FadeInSeconds) * time.Second,
		FadeInSteps:      r.FadeInSteps,
		VibrationPattern: pattern,
	}
}
