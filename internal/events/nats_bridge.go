package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	ferrors "github.com/chibaminto/compactalarm/internal/foundation/errors"
	"github.com/chibaminto/compactalarm/internal/observability"
)

// Subjects for externally delivered lifecycle events. Delivery is
// at-least-once; the dispatcher's handlers are idempotent by contract, so
// redelivered messages are harmless.
const (
	SubjectTrigger = "alarm.trigger"
	SubjectStop    = "alarm.stop"
	SubjectSnooze  = "alarm.snooze"
	SubjectBoot    = "alarm.boot"
)

// Dispatcher is the sink for externally delivered lifecycle events.
// Optional fields are passed as -1 when the event did not carry them.
type Dispatcher interface {
	DispatchTrigger(ctx context.Context, alarmID string, hour, minute int)
	DispatchStop(ctx context.Context, alarmID string, notificationID int)
	DispatchSnooze(ctx context.Context, alarmID string, notificationID int)
	DispatchBoot(ctx context.Context)
}

// lifecycleMessage is the wire payload for all lifecycle subjects.
type lifecycleMessage struct {
	AlarmID        string `json:"alarm_id"`
	NotificationID *int   `json:"notification_id,omitempty"`
	Hour           *int   `json:"hour,omitempty"`
	Minute         *int   `json:"minute,omitempty"`
}

// NATSBridge subscribes to the lifecycle subjects and feeds the dispatcher.
type NATSBridge struct {
	conn       *nats.Conn
	dispatcher Dispatcher
	subs       []*nats.Subscription
}

// NewNATSBridge connects to the given NATS URL and subscribes to all
// lifecycle subjects.
func NewNATSBridge(url string, dispatcher Dispatcher) (*NATSBridge, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryDaemon, "connect to NATS").
			WithContext("url", url).
			Build()
	}

	b := &NATSBridge{conn: conn, dispatcher: dispatcher}
	if err := b.subscribeAll(); err != nil {
		conn.Close()
		return nil, err
	}

	slog.Info("NATS lifecycle bridge started", "url", url)
	return b, nil
}

func (b *NATSBridge) subscribeAll() error {
	subjects := map[string]func(context.Context, lifecycleMessage){
		SubjectTrigger: b.handleTrigger,
		SubjectStop:    b.handleStop,
		SubjectSnooze:  b.handleSnooze,
		SubjectBoot:    func(ctx context.Context, _ lifecycleMessage) { b.dispatcher.DispatchBoot(ctx) },
	}

	for subject, handle := range subjects {
		handle := handle
		sub, err := b.conn.Subscribe(subject, func(msg *nats.Msg) {
			var payload lifecycleMessage
			if len(msg.Data) > 0 {
				if err := json.Unmarshal(msg.Data, &payload); err != nil {
					slog.Warn("Dropping malformed lifecycle message",
						"subject", msg.Subject, "error", err)
					return
				}
			}
			ctx := observability.WithSource(context.Background(), "nats:"+msg.Subject)
			handle(ctx, payload)
		})
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryDaemon, "subscribe lifecycle subject").
				WithContext("subject", subject).
				Build()
		}
		b.subs = append(b.subs, sub)
	}
	return nil
}

func (b *NATSBridge) handleTrigger(ctx context.Context, msg lifecycleMessage) {
	if msg.AlarmID == "" {
		return
	}
	hour, minute := -1, -1
	if msg.Hour != nil && msg.Minute != nil {
		hour, minute = *msg.Hour, *msg.Minute
	}
	b.dispatcher.DispatchTrigger(ctx, msg.AlarmID, hour, minute)
}

func (b *NATSBridge) handleStop(ctx context.Context, msg lifecycleMessage) {
	notificationID := -1
	if msg.NotificationID != nil {
		notificationID = *msg.NotificationID
	}
	b.dispatcher.DispatchStop(ctx, msg.AlarmID, notificationID)
}

func (b *NATSBridge) handleSnooze(ctx context.Context, msg lifecycleMessage) {
	if msg.AlarmID == "" {
		return
	}
	notificationID := -1
	if msg.NotificationID != nil {
		notificationID = *msg.NotificationID
	}
	b.dispatcher.DispatchSnooze(ctx, msg.AlarmID, notificationID)
}

// Close drains the subscriptions and closes the connection.
func (b *NATSBridge) Close() {
	for _, sub := range b.subs {
		_ = sub.Unsubscribe()
	}
	b.conn.Close()
}
