package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	triggers          *prom.CounterVec
	stops             *prom.CounterVec
	snoozes           *prom.CounterVec
	autoStops         prom.Counter
	scheduleFallbacks prom.Counter
	scheduledAlarms   prom.Gauge
	ringDuration      prom.Histogram
}

// NewPrometheusRecorder constructs and registers the alarm metrics.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		triggers: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "compactalarm",
			Name:      "triggers_total",
			Help:      "Alarm trigger deliveries by handling result",
		}, []string{"result"}),
		stops: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "compactalarm",
			Name:      "stops_total",
			Help:      "Stop deliveries by handling result",
		}, []string{"result"}),
		snoozes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "compactalarm",
			Name:      "snoozes_total",
			Help:      "Snooze deliveries by handling result",
		}, []string{"result"}),
		autoStops: prom.NewCounter(prom.CounterOpts{
			Namespace: "compactalarm",
			Name:      "auto_stops_total",
			Help:      "Rings silenced by the auto-stop deadline",
		}),
		scheduleFallbacks: prom.NewCounter(prom.CounterOpts{
			Namespace: "compactalarm",
			Name:      "schedule_fallbacks_total",
			Help:      "Timer registrations degraded to best-effort precision",
		}),
		scheduledAlarms: prom.NewGauge(prom.GaugeOpts{
			Namespace: "compactalarm",
			Name:      "scheduled_alarms",
			Help:      "Alarms currently holding a timer registration",
		}),
		ringDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "compactalarm",
			Name:      "ring_duration_seconds",
			Help:      "How long rings lasted before stop, snooze, or auto-stop",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 180},
		}),
	}
	reg.MustRegister(pr.triggers, pr.stops, pr.snoozes, pr.autoStops,
		pr.scheduleFallbacks, pr.scheduledAlarms, pr.ringDuration)
	return pr
}

func (pr *PrometheusRecorder) IncTrigger(result ResultLabel) {
	pr.triggers.WithLabelValues(string(result)).Inc()
}

func (pr *PrometheusRecorder) IncStop(result ResultLabel) {
	pr.stops.WithLabelValues(string(result)).Inc()
}

func (pr *PrometheusRecorder) IncSnooze(result ResultLabel) {
	pr.snoozes.WithLabelValues(string(result)).Inc()
}

func (pr *PrometheusRecorder) IncAutoStop() {
	pr.autoStops.Inc()
}

func (pr *PrometheusRecorder) IncScheduleFallback() {
	pr.scheduleFallbacks.Inc()
}

func (pr *PrometheusRecorder) SetScheduledAlarms(n int) {
	pr.scheduledAlarms.Set(float64(n))
}

func (pr *PrometheusRecorder) ObserveRingDuration(d time.Duration) {
	pr.ringDuration.Observe(d.Seconds())
}
