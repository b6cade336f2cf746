// Package events carries control-flow signals between the alarm core and its
// collaborators: an in-process typed bus for UI-facing signals, and a NATS
// bridge for externally delivered lifecycle events.
package events

import (
	"reflect"
	"sync"
)

// Bus is a small, typed, in-process event bus. It is intentionally not
// durable; it exists for signals like "a group was just deleted" that a UI
// consumer observes live. Publish never blocks: subscribers keep only the
// most recent undelivered event of each type.
type Bus struct {
	mu     sync.RWMutex
	subs   map[reflect.Type]map[uint64]chan any
	nextID uint64
	closed bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[reflect.Type]map[uint64]chan any)}
}

// Subscribe registers a subscription for events of concrete type T and
// returns the receive channel with an unsubscribe function.
func Subscribe[T any](b *Bus) (<-chan T, func()) {
	eventType := reflect.TypeFor[T]()
	raw := make(chan any, 1)
	out := make(chan T, 1)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(out)
		return out, func() {}
	}
	b.nextID++
	id := b.nextID
	if b.subs[eventType] == nil {
		b.subs[eventType] = make(map[uint64]chan any)
	}
	b.subs[eventType][id] = raw
	b.mu.Unlock()

	go func() {
		for evt := range raw {
			out <- evt.(T)
		}
		close(out)
	}()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			if typeSubs, ok := b.subs[eventType]; ok {
				if ch, ok := typeSubs[id]; ok {
					delete(typeSubs, id)
					close(ch)
				}
				if len(typeSubs) == 0 {
					delete(b.subs, eventType)
				}
			}
			b.mu.Unlock()
		})
	}
	return out, unsubscribe
}

// Publish delivers evt to subscribers of its concrete type. Undelivered
// stale events are replaced, so Publish cannot block the caller.
func (b *Bus) Publish(evt any) {
	if evt == nil {
		return
	}
	evtType := reflect.TypeOf(evt)

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs[evtType] {
		select {
		case ch <- evt:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- evt:
			default:
			}
		}
	}
}

// Close closes the bus and all subscription channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, typeSubs := range b.subs {
		for id, ch := range typeSubs {
			delete(typeSubs, id)
			close(ch)
		}
	}
	b.subs = make(map[reflect.Type]map[uint64]chan any)
}
