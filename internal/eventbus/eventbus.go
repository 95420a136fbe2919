// Package eventbus implements the in-process publish/subscribe broker
// (spec.md §4.3): the single broker every other component and the HTTP
// watch-events endpoint fan out through. It runs no goroutine of its own;
// Publish delivers on the caller's goroutine.
package eventbus

import (
	"sync"

	"github.com/next-hat/nanocl-sub000/internal/model"
)

// backlogSize bounds each subscriber's channel; a subscriber that falls
// this far behind is dropped rather than stalling the publisher.
const backlogSize = 256

// Condition filters which events a subscriber receives. A zero-value field
// matches any value for that dimension.
type Condition struct {
	ActorKey  string
	ActorKind model.Kind
	Actions   []string
	Kinds     []model.EventKind
}

func (c Condition) matches(e model.Event) bool {
	if c.ActorKey != "" && c.ActorKey != e.ActorKey {
		return false
	}
	if c.ActorKind != "" && c.ActorKind != e.ActorKind {
		return false
	}
	if len(c.Actions) > 0 && !contains(c.Actions, e.Action) {
		return false
	}
	if len(c.Kinds) > 0 && !containsKind(c.Kinds, e.Kind) {
		return false
	}
	return true
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func containsKind(s []model.EventKind, v model.EventKind) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// Subscription is a live registration. Events() is closed when the bus
// unsubscribes it (either Unsubscribe was called, or its backlog overflowed).
type Subscription struct {
	id        uint64
	cond      Condition
	ch        chan model.Event
	bus       *Bus
	unsubOnce sync.Once
}

// Events returns the channel of matching events. Callers must keep
// draining it; a stalled receiver is dropped once backlogSize builds up.
func (s *Subscription) Events() <-chan model.Event { return s.ch }

// Unsubscribe removes the subscription. Safe to call more than once and
// safe to call concurrently with event delivery.
func (s *Subscription) Unsubscribe() {
	s.unsubOnce.Do(func() {
		s.bus.remove(s.id)
	})
}

// Bus is the broker. Zero value is not usable; construct with New.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]*Subscription
	// mu guards the subscription map only; concurrent Publish calls are
	// not serialized against each other, so a caller that needs its own
	// events delivered in order serializes its own Publish calls.
}

// New returns an empty, ready-to-use Bus.
func New() *Bus {
	return &Bus{subs: make(map[uint64]*Subscription)}
}

// Subscribe registers a new subscription matching cond.
func (b *Bus) Subscribe(cond Condition) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub := &Subscription{
		id:   b.nextID,
		cond: cond,
		ch:   make(chan model.Event, backlogSize),
		bus:  b,
	}
	b.subs[sub.id] = sub
	return sub
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	delete(b.subs, id)
	b.mu.Unlock()
	if ok {
		close(sub.ch)
	}
}

// Publish delivers e to every matching, still-live subscriber. A
// subscriber whose backlog is full is dropped (its channel closed) and a
// synthetic Warning event describing the drop is delivered to the
// remaining subscribers — never blocks on a slow receiver.
func (b *Bus) Publish(e model.Event) {
	b.mu.Lock()
	matched := make([]*Subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.cond.matches(e) {
			matched = append(matched, sub)
		}
	}
	b.mu.Unlock()

	var dropped []*Subscription
	for _, sub := range matched {
		select {
		case sub.ch <- e:
		default:
			dropped = append(dropped, sub)
		}
	}
	for _, sub := range dropped {
		b.remove(sub.id)
	}
	if len(dropped) > 0 {
		b.publishWarning(len(dropped))
	}
}

func (b *Bus) publishWarning(count int) {
	warn := model.Event{
		Kind:   model.EventWarning,
		Action: "subscriber_dropped",
		Note:   "subscriber backlog exceeded, disconnected",
	}
	b.mu.Lock()
	matched := make([]*Subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.cond.matches(warn) {
			matched = append(matched, sub)
		}
	}
	b.mu.Unlock()
	for _, sub := range matched {
		select {
		case sub.ch <- warn:
		default:
		}
	}
}

// SubscriberCount reports how many subscriptions are currently live, for
// diagnostics and tests.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
