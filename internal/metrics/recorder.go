package metrics

import "time"

// ResultLabel enumerates lifecycle outcome categories for counters.
type ResultLabel string

const (
	ResultHandled   ResultLabel = "handled"
	ResultDuplicate ResultLabel = "duplicate"
	ResultPreempted ResultLabel = "preempted"
)

// Recorder defines observability hooks for the alarm core. Implementations
// may forward to Prometheus, OpenTelemetry, etc. The NoopRecorder is the
// default when metrics are not configured.
type Recorder interface {
	IncTrigger(result ResultLabel)
	IncStop(result ResultLabel)
	IncSnooze(result ResultLabel)
	IncAutoStop()
	IncScheduleFallback()
	SetScheduledAlarms(n int)
	ObserveRingDuration(d time.Duration)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) IncTrigger(ResultLabel)              {}
func (NoopRecorder) IncStop(ResultLabel)                 {}
func (NoopRecorder) IncSnooze(ResultLabel)               {}
func (NoopRecorder) IncAutoStop()                        {}
func (NoopRecorder) IncScheduleFallback()                {}
func (NoopRecorder) SetScheduledAlarms(int)              {}
func (NoopRecorder) ObserveRingDuration(time.Duration)   {}
