package observability

import (
	"context"
	"log/slog"
)

// LogContext holds structured logging context information.
type LogContext struct {
	AlarmID string
	Op      string
	Source  string
}

type logContextKeyType string

const logContextKey logContextKeyType = "log-context"

// WithAlarmID adds an alarm ID to the context.
func WithAlarmID(ctx context.Context, alarmID string) context.Context {
	lc := extractLogContext(ctx)
	lc.AlarmID = alarmID
	return context.WithValue(ctx, logContextKey, lc)
}

// WithOp adds an operation name to the context.
func WithOp(ctx context.Context, op string) context.Context {
	lc := extractLogContext(ctx)
	lc.Op = op
	return context.WithValue(ctx, logContextKey, lc)
}

// WithSource records where an externally delivered event came from
// (notification action, timer callback, boot, ...).
func WithSource(ctx context.Context, source string) context.Context {
	lc := extractLogContext(ctx)
	lc.Source = source
	return context.WithValue(ctx, logContextKey, lc)
}

// GetContext returns the structured log context from the provided context.
func GetContext(ctx context.Context) LogContext {
	return extractLogContext(ctx)
}

func extractLogContext(ctx context.Context) LogContext {
	if lc, ok := ctx.Value(logContextKey).(LogContext); ok {
		return lc
	}
	return LogContext{}
}

func getLogAttrs(ctx context.Context) []slog.Attr {
	lc := extractLogContext(ctx)
	attrs := []slog.Attr{}

	if lc.AlarmID != "" {
		attrs = append(attrs, slog.String("alarm.id", lc.AlarmID))
	}
	if lc.Op != "" {
		attrs = append(attrs, slog.String("op", lc.Op))
	}
	if lc.Source != "" {
		attrs = append(attrs, slog.String("source", lc.Source))
	}

	return attrs
}

// InfoContext logs an info message with context information.
func InfoContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	allAttrs := append(getLogAttrs(ctx), attrs...)
	slog.LogAttrs(ctx, slog.LevelInfo, msg, allAttrs...)
}

// WarnContext logs a warning message with context information.
func WarnContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	allAttrs := append(getLogAttrs(ctx), attrs...)
	slog.LogAttrs(ctx, slog.LevelWarn, msg, allAttrs...)
}

// ErrorContext logs an error message with context information.
func ErrorContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	allAttrs := append(getLogAttrs(ctx), attrs...)
	slog.LogAttrs(ctx, slog.LevelError, msg, allAttrs...)
}

// DebugContext logs a debug message with context information.
func DebugContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	allAttrs := append(getLogAttrs(ctx), attrs...)
	slog.LogAttrs(ctx, slog.LevelDebug, msg, allAttrs...)
}
