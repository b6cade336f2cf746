package alert

import (
	"log/slog"
	"sync"
	"time"

	"github.com/chibaminto/compactalarm/internal/lifecycle"
)

// LogNotifier is the notification surface for hosts without a notification
// service. Every shown notification is a structured log line carrying the
// same fields a real surface would render.
type LogNotifier struct{}

func (LogNotifier) Show(n lifecycle.Notification) error {
	slog.Info("ALARM NOTIFICATION",
		slog.Int("notification_id", n.ID),
		slog.String("alarm_id", n.AlarmID),
		slog.String("title", n.Title),
		slog.String("body", n.Body),
		slog.Bool("full_screen", n.FullScreen),
		slog.Any("actions", n.Actions))
	return nil
}

func (LogNotifier) Cancel(id int) {
	slog.Info("Notification dismissed", slog.Int("notification_id", id))
}

// LogVibrator stands in for a haptic motor. The pattern alternates
// wait/vibrate durations starting with a wait, matching the physical API.
type LogVibrator struct{}

func (LogVibrator) Vibrate(pattern []time.Duration, repeat bool) (lifecycle.VibrationHandle, error) {
	slog.Info("Vibration started",
		slog.Any("pattern", pattern),
		slog.Bool("repeat", repeat))
	return &logVibrationHandle{}, nil
}

type logVibrationHandle struct {
	once sync.Once
}

func (h *logVibrationHandle) Stop() error {
	h.once.Do(func() {
		slog.Info("Vibration stopped")
	})
	return nil
}
