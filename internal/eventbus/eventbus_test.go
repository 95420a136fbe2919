package eventbus

import (
	"testing"
	"time"

	"github.com/next-hat/nanocl-sub000/internal/model"
)

func TestBus_DeliversMatchingEvents(t *testing.T) {
	b := New()
	sub := b.Subscribe(Condition{ActorKind: model.KindCargo})
	defer sub.Unsubscribe()

	b.Publish(model.Event{ActorKind: model.KindVm, Action: "start"})
	b.Publish(model.Event{ActorKind: model.KindCargo, Action: "start"})

	select {
	case e := <-sub.Events():
		if e.ActorKind != model.KindCargo {
			t.Fatalf("got event for %v, want Cargo", e.ActorKind)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for matching event")
	}

	select {
	case e := <-sub.Events():
		t.Fatalf("unexpected second event %+v", e)
	default:
	}
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	b := New()
	sub := b.Subscribe(Condition{})
	sub.Unsubscribe()
	sub.Unsubscribe() // idempotent

	if _, ok := <-sub.Events(); ok {
		t.Fatal("expected closed channel after Unsubscribe")
	}
	if b.SubscriberCount() != 0 {
		t.Fatalf("SubscriberCount() = %d, want 0", b.SubscriberCount())
	}
}

func TestBus_SlowSubscriberDroppedNotBlocking(t *testing.T) {
	b := New()
	slow := b.Subscribe(Condition{})
	fast := b.Subscribe(Condition{})
	defer fast.Unsubscribe()

	for i := 0; i < backlogSize+10; i++ {
		b.Publish(model.Event{Action: "tick"})
		<-fast.Events()
	}

	if _, ok := <-slow.Events(); ok {
		// draining once is fine either way; what matters is the bus never blocked.
	}
	if b.SubscriberCount() != 1 {
		t.Fatalf("SubscriberCount() = %d, want 1 (slow subscriber should be dropped)", b.SubscriberCount())
	}
}

func TestCondition_MatchesActionFilter(t *testing.T) {
	c := Condition{Actions: []string{"die", "destroy"}}
	if !c.matches(model.Event{Action: "die"}) {
		t.Error("expected match on die")
	}
	if c.matches(model.Event{Action: "start"}) {
		t.Error("expected no match on start")
	}
}
