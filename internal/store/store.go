// Package store persists the alarm list behind a narrow key-value contract
// and fans change notifications out to subscribers.
package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/chibaminto/compactalarm/internal/alarm"
	ferrors "github.com/chibaminto/compactalarm/internal/foundation/errors"
)

// alarmsKey is the single payload key holding the serialized alarm list.
const alarmsKey = "alarms"

// KV is the durable store contract. Implementations must treat Get for an
// absent key as (nil, false, nil), not an error.
type KV interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// ChangeNotifier is optionally implemented by KV backends that can observe
// out-of-band writes to the durable payload (e.g. another process editing the
// backing file). The channel carries coalesced "something changed" signals.
type ChangeNotifier interface {
	Changes() <-chan struct{}
}

// AlarmStore is the durable, observable alarm list. All snapshots handed to
// subscribers are fresh decodes; callers may mutate them freely.
type AlarmStore struct {
	kv KV

	mu     sync.Mutex
	subs   map[uint64]chan []alarm.Alarm
	nextID uint64
	closed bool

	watchDone chan struct{}
}

// NewAlarmStore wraps a KV backend. If the backend reports external changes,
// those are forwarded to subscribers as fresh snapshots.
func NewAlarmStore(kv KV) *AlarmStore {
	s := &AlarmStore{
		kv:   kv,
		subs: make(map[uint64]chan []alarm.Alarm),
	}

	if notifier, ok := kv.(ChangeNotifier); ok {
		s.watchDone = make(chan struct{})
		go s.forwardExternalChanges(notifier.Changes())
	}

	return s
}

// Load returns the current alarm list. An absent or unreadable payload
// decodes to an empty list; persistence corruption never reaches callers.
func (s *AlarmStore) Load(ctx context.Context) []alarm.Alarm {
	payload, ok, err := s.kv.Get(ctx, alarmsKey)
	if err != nil {
		slog.Warn("Alarm payload unreadable, treating as empty", "error", err)
		return nil
	}
	if !ok {
		return nil
	}

	var alarms []alarm.Alarm
	if err := json.Unmarshal(payload, &alarms); err != nil {
		slog.Warn("Alarm payload corrupt, treating as empty", "error", err)
		return nil
	}
	return alarms
}

// Save atomically replaces the alarm list and notifies subscribers.
func (s *AlarmStore) Save(ctx context.Context, alarms []alarm.Alarm) error {
	payload, err := json.Marshal(alarms)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryPersistence, "marshal alarm list").Build()
	}
	if err := s.kv.Set(ctx, alarmsKey, payload); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryPersistence, "write alarm list").
			WithContext("count", len(alarms)).
			Build()
	}

	s.notify(alarms)
	return nil
}

// SetEnabledByID flips the enabled flag of a single record directly against
// the durable payload. It needs no in-memory snapshot, which lets the firing
// path run concurrently with UI-driven mutations. Absent ids and unreadable
// payloads are silent no-ops.
func (s *AlarmStore) SetEnabledByID(ctx context.Context, id string, enabled bool) error {
	payload, ok, err := s.kv.Get(ctx, alarmsKey)
	if err != nil || !ok {
		return nil
	}

	var alarms []alarm.Alarm
	if err := json.Unmarshal(payload, &alarms); err != nil {
		return nil
	}

	found := false
	for i := range alarms {
		if alarms[i].ID == id {
			alarms[i].Enabled = enabled
			found = true
		}
	}
	if !found {
		return nil
	}

	return s.Save(ctx, alarms)
}

// Subscribe returns a snapshot stream and an unsubscribe function. The
// current snapshot is delivered immediately; every subsequent change emits a
// new one. Slow subscribers are coalesced to the latest snapshot rather than
// blocking writers.
func (s *AlarmStore) Subscribe() (<-chan []alarm.Alarm, func()) {
	ch := make(chan []alarm.Alarm, 1)
	ch <- s.Load(context.Background())

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.nextID++
	id := s.nextID
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			s.mu.Lock()
			if _, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(ch)
			}
			s.mu.Unlock()
		})
	}
	return ch, unsubscribe
}

// Close stops change forwarding, closes all subscription channels, and
// releases the backend.
func (s *AlarmStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.mu.Unlock()

	if s.watchDone != nil {
		close(s.watchDone)
	}
	return s.kv.Close()
}

func (s *AlarmStore) notify(alarms []alarm.Alarm) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		snapshot := make([]alarm.Alarm, len(alarms))
		copy(snapshot, alarms)
		select {
		case ch <- snapshot:
		default:
			// Latest wins: drop the stale pending snapshot.
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}
}

func (s *AlarmStore) forwardExternalChanges(changes <-chan struct{}) {
	for {
		select {
		case <-s.watchDone:
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			s.notify(s.Load(context.Background()))
		}
	}
}
