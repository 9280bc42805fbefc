package engine

import (
	"sync"
	"time"
)

// SubscriptionID identifies a subscriber for Unsubscribe.
type SubscriptionID int

type subscriber struct {
	fn    func(Event)
	types map[EventType]bool // nil = all types
}

// EventBus delivers engine events synchronously to subscribers.
type EventBus struct {
	mu     sync.RWMutex
	nextID SubscriptionID
	subs   map[SubscriptionID]subscriber
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[SubscriptionID]subscriber)}
}

// Subscribe registers fn for every event.
func (b *EventBus) Subscribe(fn func(Event)) SubscriptionID {
	return b.add(subscriber{fn: fn})
}

// SubscribeTypes registers fn for the listed event types only.
func (b *EventBus) SubscribeTypes(fn func(Event), types ...EventType) SubscriptionID {
	set := make(map[EventType]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return b.add(subscriber{fn: fn, types: set})
}

func (b *EventBus) add(s subscriber) SubscriptionID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.subs[b.nextID] = s
	return b.nextID
}

// Unsubscribe removes a subscriber. Unknown IDs are ignored.
func (b *EventBus) Unsubscribe(id SubscriptionID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// Emit stamps e and calls every matching subscriber outside the lock.
func (b *EventBus) Emit(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	b.mu.RLock()
	targets := make([]func(Event), 0, len(b.subs))
	for _, s := range b.subs {
		if s.types == nil || s.types[e.Type] {
			targets = append(targets, s.fn)
		}
	}
	b.mu.RUnlock()

	for _, fn := range targets {
		fn(e)
	}
}
