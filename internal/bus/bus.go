// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package bus is a small typed, synchronous publish/subscribe hub.
//
// Topics are declared once with their payload type:
//
//	var Loading = bus.NewTopic[bool]("loading")
//
// Publish delivers to the listeners registered at call time, in
// registration order, on the publishing goroutine. There is no replay.
package bus

import (
	"sync"
	"sync/atomic"

	"github.com/ManuGH/liveplay/internal/log"
	"github.com/ManuGH/liveplay/internal/metrics"
)

// Event names a topic.
type Event string

// Topic binds an event name to its payload type.
type Topic[T any] struct {
	event Event
}

// NewTopic declares a topic.
func NewTopic[T any](event Event) Topic[T] {
	return Topic[T]{event: event}
}

// Event returns the topic's event name.
func (t Topic[T]) Event() Event { return t.event }

type listener struct {
	id    uint64
	once  bool
	fired atomic.Bool
	fn    func(any)
}

// Bus holds listeners per event. The zero value is not usable; use New.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[Event][]*listener
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[Event][]*listener)}
}

// Subscription detaches a listener when closed.
type Subscription struct {
	b     *Bus
	event Event
	id    uint64
}

// Close removes the listener. Safe to call more than once.
func (s Subscription) Close() {
	if s.b == nil {
		return
	}
	s.b.remove(s.event, s.id)
}

// Subscribe registers fn for every publication on t.
func Subscribe[T any](b *Bus, t Topic[T], fn func(T)) Subscription {
	return b.add(t.event, false, func(v any) { fn(cast[T](v)) })
}

// Once registers fn for the next publication on t only.
func Once[T any](b *Bus, t Topic[T], fn func(T)) Subscription {
	return b.add(t.event, true, func(v any) { fn(cast[T](v)) })
}

// cast tolerates nil payloads for interface-typed topics such as error.
func cast[T any](v any) T {
	t, _ := v.(T)
	return t
}

// Publish delivers v to the listeners of t.
func Publish[T any](b *Bus, t Topic[T], v T) {
	b.publish(t.event, v)
}

// Listeners reports how many listeners are registered for event.
func (b *Bus) Listeners(event Event) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[event])
}

// Clear detaches every listener.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[Event][]*listener)
}

func (b *Bus) add(event Event, once bool, fn func(any)) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	l := &listener{id: b.nextID, once: once, fn: fn}
	b.subs[event] = append(b.subs[event], l)
	return Subscription{b: b, event: event, id: l.id}
}

func (b *Bus) remove(event Event, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	lst := b.subs[event]
	out := lst[:0]
	for _, l := range lst {
		if l.id != id {
			out = append(out, l)
		}
	}
	if len(out) == 0 {
		delete(b.subs, event)
	} else {
		b.subs[event] = out
	}
}

func (b *Bus) publish(event Event, v any) {
	b.mu.RLock()
	ls := append([]*listener(nil), b.subs[event]...)
	b.mu.RUnlock()

	metrics.IncBusPublished(string(event))

	for _, l := range ls {
		if l.once {
			if !l.fired.CompareAndSwap(false, true) {
				continue
			}
			b.remove(event, l.id)
		}
		b.dispatch(event, l, v)
	}
}

func (b *Bus) dispatch(event Event, l *listener, v any) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncBusListenerPanic(string(event))
			log.L().Error().
				Str(log.FieldEvent, "bus.listener_panic").
				Str("topic", string(event)).
				Interface("panic", r).
				Msg("notification listener panicked")
		}
	}()
	l.fn(v)
}
