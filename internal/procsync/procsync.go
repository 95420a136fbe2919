// Package procsync implements the process synchronizer (spec.md §4.4): the
// single long-lived task that keeps store.Process rows in sync with the
// container engine's own view of the world.
package procsync

import (
	"context"
	"time"

	"github.com/next-hat/nanocl-sub000/infrastructure/logging"
	"github.com/next-hat/nanocl-sub000/infrastructure/resilience"
	"github.com/next-hat/nanocl-sub000/internal/engine"
	"github.com/next-hat/nanocl-sub000/internal/model"
	"github.com/next-hat/nanocl-sub000/internal/store"
)

const (
	minBackoff = 500 * time.Millisecond
	maxBackoff = 30 * time.Second
)

// Synchronizer runs the sweep-then-subscribe loop against one Engine.
type Synchronizer struct {
	store  store.Store
	engine engine.Engine
	node   string
	log    *logging.Logger
	cb     *resilience.CircuitBreaker
}

// New constructs a Synchronizer. node is this daemon's node key, stamped
// onto every Process row it upserts. A circuit breaker sits in front of the
// engine's event subscription and list calls so a flaky engine connection
// trips open instead of being retried on every loop iteration.
func New(st store.Store, eng engine.Engine, node string, log *logging.Logger) *Synchronizer {
	cfg := resilience.DefaultServiceCBConfig(log)
	return &Synchronizer{store: st, engine: eng, node: node, log: log, cb: resilience.New(cfg)}
}

// Run performs the boot-time full sweep, then subscribes to engine events
// and processes them until ctx is cancelled, reconnecting with bounded
// backoff on disconnect.
func (s *Synchronizer) Run(ctx context.Context) error {
	if err := s.Sweep(ctx); err != nil {
		s.log.WithContext(ctx).WithError(err).Warn("initial process sweep failed, continuing to subscribe")
	}

	backoff := minBackoff
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var events <-chan engine.RawEvent
		err := s.cb.Execute(ctx, func() error {
			var subErr error
			events, subErr = s.engine.Events(ctx, map[string]string{model.LabelEnabled: "enabled"})
			return subErr
		})
		if err != nil {
			s.log.WithContext(ctx).WithError(err).Warn("engine event stream unavailable, backing off")
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = minBackoff

		s.drain(ctx, events)

		// The events channel closed: the engine disconnected. Recover any
		// missed events with a full sweep before resubscribing.
		if err := s.Sweep(ctx); err != nil {
			s.log.WithContext(ctx).WithError(err).Warn("reconnect sweep failed")
		}
		if !sleep(ctx, backoff) {
			return ctx.Err()
		}
		backoff = nextBackoff(backoff)
	}
}

func (s *Synchronizer) drain(ctx context.Context, events <-chan engine.RawEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.handle(ctx, ev)
		}
	}
}

// handle applies one raw engine event (spec.md §4.4 steps 1-3).
func (s *Synchronizer) handle(ctx context.Context, ev engine.RawEvent) {
	kind, ok := classify(ev.Attributes)
	if !ok {
		return // not a nanocl-managed container
	}

	if ev.Action == "destroy" {
		if err := s.store.DeleteProcess(ctx, ev.ActorID); err != nil {
			s.log.WithContext(ctx).WithError(err).Debug("delete_process on destroy event")
		}
		return
	}

	inspect, err := s.engine.Inspect(ctx, ev.ActorID)
	if err != nil {
		s.log.WithContext(ctx).WithError(err).Warn("inspect failed after engine event")
		return
	}
	s.upsert(ctx, kind, inspect)
}

func (s *Synchronizer) upsert(ctx context.Context, kind model.Kind, inspect *engine.ContainerInspect) {
	ownerKey := ownerKeyFromLabels(kind, inspect.Labels)
	_, err := s.store.UpsertProcess(ctx, store.ProcessPartial{
		Key:      inspect.ID,
		Name:     inspect.Name,
		Kind:     kind,
		OwnerKey: ownerKey,
		NodeKey:  s.node,
		Labels:   inspect.Labels,
	})
	if err != nil {
		s.log.WithContext(ctx).WithError(err).Warn("upsert_process failed")
	}
}

// Sweep lists every nanocl-managed container the engine knows about and
// upserts each, recovering state after a restart or a missed event window.
func (s *Synchronizer) Sweep(ctx context.Context) error {
	var summaries []engine.ContainerSummary
	err := s.cb.Execute(ctx, func() error {
		var listErr error
		summaries, listErr = s.engine.List(ctx, map[string]string{model.LabelEnabled: "enabled"})
		return listErr
	})
	if err != nil {
		return err
	}
	for _, summary := range summaries {
		kind, ok := classify(summary.Labels)
		if !ok {
			continue
		}
		inspect, err := s.engine.Inspect(ctx, summary.ID)
		if err != nil {
			s.log.WithContext(ctx).WithError(err).Warn("sweep inspect failed")
			continue
		}
		s.upsert(ctx, kind, inspect)
	}
	return nil
}

// classify maps a container's labels to its object Kind per spec.md
// §4.6.1's required label set. Returns ok=false for anything not carrying
// any of the kind-specific labels; a container carrying several is
// classified by the first found in the order Job, Cargo, Vm.
func classify(labels map[string]string) (model.Kind, bool) {
	if labels[model.LabelEnabled] != "enabled" {
		return "", false
	}
	if _, ok := labels[model.LabelJob]; ok {
		return model.KindJob, true
	}
	if _, ok := labels[model.LabelCargo]; ok {
		return model.KindCargo, true
	}
	if _, ok := labels[model.LabelVm]; ok {
		return model.KindVm, true
	}
	return "", false
}

func ownerKeyFromLabels(kind model.Kind, labels map[string]string) string {
	switch kind {
	case model.KindJob:
		return labels[model.LabelJob]
	case model.KindCargo:
		return labels[model.LabelCargo]
	case model.KindVm:
		return labels[model.LabelVm]
	default:
		return ""
	}
}

func nextBackoff(cur time.Duration) time.Duration {
	next := cur * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
