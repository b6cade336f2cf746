package scheduler

import (
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	ferrors "github.com/chibaminto/compactalarm/internal/foundation/errors"
	"github.com/chibaminto/compactalarm/internal/metrics"
)

// GocronTimers implements TimerService on a gocron scheduler with one-shot
// jobs. The exact-wake capability is an injected probe: hosts wire in the
// platform permission check, tests wire in a constant.
type GocronTimers struct {
	scheduler  gocron.Scheduler
	fire       func(FirePayload)
	exactProbe func() bool
	recorder   metrics.Recorder

	mu   sync.Mutex
	jobs map[string]uuid.UUID
}

// NewGocronTimers creates the timer service. fire receives every timer
// callback; exactProbe reports the elevated capability (nil means granted).
func NewGocronTimers(clock clockwork.Clock, fire func(FirePayload), exactProbe func() bool, recorder metrics.Recorder) (*GocronTimers, error) {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	if exactProbe == nil {
		exactProbe = func() bool { return true }
	}

	s, err := gocron.NewScheduler(gocron.WithClock(clock))
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryScheduling, "create gocron scheduler").Build()
	}

	return &GocronTimers{
		scheduler:  s,
		fire:       fire,
		exactProbe: exactProbe,
		recorder:   recorder,
		jobs:       make(map[string]uuid.UUID),
	}, nil
}

// Start begins timer dispatch.
func (g *GocronTimers) Start() {
	g.scheduler.Start()
}

// Stop shuts the underlying scheduler down.
func (g *GocronTimers) Stop() error {
	return g.scheduler.Shutdown()
}

// Register arms a one-shot timer for key at the given instant, replacing any
// prior registration for that key. When exact precision is requested but the
// capability is missing, the registration proceeds best-effort: that is a
// logged, counted degradation, not an error.
func (g *GocronTimers) Register(key string, at time.Time, exact bool, payload FirePayload) error {
	if exact && !g.exactProbe() {
		slog.Warn("Exact wake capability not granted, using best-effort timer",
			"key", key, "at", at)
		g.recorder.IncScheduleFallback()
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if prior, ok := g.jobs[key]; ok {
		_ = g.scheduler.RemoveJob(prior)
		delete(g.jobs, key)
	}

	job, err := g.scheduler.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(at)),
		gocron.NewTask(func() {
			g.mu.Lock()
			delete(g.jobs, key)
			g.mu.Unlock()
			g.fire(payload)
		}),
		gocron.WithName(key),
	)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryScheduling, "register wake timer").
			WithContext("key", key).
			WithContext("at", at).
			Build()
	}

	g.jobs[key] = job.ID()
	return nil
}

// Cancel removes the registration for key. Absent keys are a no-op.
func (g *GocronTimers) Cancel(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if id, ok := g.jobs[key]; ok {
		_ = g.scheduler.RemoveJob(id)
		delete(g.jobs, key)
	}
}

// CanScheduleExact reports the current grant of the elevated capability.
func (g *GocronTimers) CanScheduleExact() bool {
	return g.exactProbe()
}
