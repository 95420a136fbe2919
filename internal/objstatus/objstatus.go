// Package objstatus implements the object status machine (spec.md §4.5):
// the CAS-guarded ObjPsStatus transitions every lifecycle-bearing object
// goes through, with native event emission on every transition.
package objstatus

import (
	"context"
	"math"
	"math/rand"
	"time"

	coreerrors "github.com/next-hat/nanocl-sub000/infrastructure/errors"
	"github.com/next-hat/nanocl-sub000/internal/eventbus"
	"github.com/next-hat/nanocl-sub000/internal/model"
	"github.com/next-hat/nanocl-sub000/internal/store"
)

// maxCASRetries bounds how many times a writer re-reads and retries after
// losing the compare-and-swap race on ObjPsStatus (spec.md §4.5: "a losing
// writer re-reads and retries").
const maxCASRetries = 10

// maxTransientAttempts and maxTransientBackoff bound the exponential
// backoff retry loop for Transient engine errors (spec.md §4.5).
const (
	maxTransientAttempts = 5
	maxTransientBackoff  = 30 * time.Second
	baseTransientBackoff = 200 * time.Millisecond
)

// Machine drives ObjPsStatus transitions for one store, publishing every
// transition as a domain event on bus.
type Machine struct {
	store store.Store
	bus   *eventbus.Bus
}

// New constructs a Machine.
func New(st store.Store, bus *eventbus.Bus) *Machine {
	return &Machine{store: st, bus: bus}
}

func kindPtr(k model.ObjPsStatusKind) *model.ObjPsStatusKind { return &k }

// casUpdate retries ReadStatus+UpdateStatus until it wins the race or
// exhausts maxCASRetries, matching the store's documented CAS contract.
func (m *Machine) casUpdate(ctx context.Context, key string, mutate func(current *model.ObjPsStatus) store.StatusPatch) (*model.ObjPsStatus, error) {
	var lastErr error
	for i := 0; i < maxCASRetries; i++ {
		current, err := m.store.ReadStatus(ctx, key)
		if err != nil {
			return nil, err
		}
		patch := mutate(current)
		patch.PrevActual = current.Actual
		patch.PrevWanted = current.Wanted
		updated, err := m.store.UpdateStatus(ctx, key, patch)
		if err == nil {
			return updated, nil
		}
		if !coreerrors.Is(err, coreerrors.Conflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (m *Machine) emit(ctx context.Context, actorKey string, actorKind model.Kind, kind model.EventKind, action, note string) {
	_, _ = m.store.AppendEvent(ctx, store.EventPartial{
		Kind: kind, Action: action, ActorKey: actorKey, ActorKind: actorKind, Note: note,
	})
	if m.bus != nil {
		m.bus.Publish(model.Event{Kind: kind, Action: action, ActorKey: actorKey, ActorKind: actorKind, Note: note, CreatedAt: time.Now().UTC()})
	}
}

// EmitStarting applies the emit_starting verb. For a Job this sets wanted
// to Finish (a job runs to completion, it does not "start" and stay up);
// for Cargo/Vm it sets wanted to Start.
func (m *Machine) EmitStarting(ctx context.Context, key string, kind model.Kind) error {
	want := model.StatusStart
	if kind == model.KindJob {
		want = model.StatusFinish
	}
	_, err := m.casUpdate(ctx, key, func(current *model.ObjPsStatus) store.StatusPatch {
		return store.StatusPatch{Wanted: kindPtr(want)}
	})
	if err != nil {
		return err
	}
	m.emit(ctx, key, kind, model.EventNormal, "Starting", "")
	return nil
}

// EmitStopping applies the emit_stopping verb, a no-op if already stopped.
func (m *Machine) EmitStopping(ctx context.Context, key string, kind model.Kind) error {
	current, err := m.store.ReadStatus(ctx, key)
	if err != nil {
		return err
	}
	if current.Actual == model.StatusStop {
		return nil
	}
	_, err = m.casUpdate(ctx, key, func(current *model.ObjPsStatus) store.StatusPatch {
		return store.StatusPatch{Wanted: kindPtr(model.StatusStop)}
	})
	if err != nil {
		return err
	}
	m.emit(ctx, key, kind, model.EventNormal, "Stopping", "")
	return nil
}

// EmitDestroying applies the emit_destroying verb.
func (m *Machine) EmitDestroying(ctx context.Context, key string, kind model.Kind) error {
	_, err := m.casUpdate(ctx, key, func(current *model.ObjPsStatus) store.StatusPatch {
		return store.StatusPatch{Wanted: kindPtr(model.StatusDestroy)}
	})
	if err != nil {
		return err
	}
	m.emit(ctx, key, kind, model.EventNormal, "Destroying", "")
	return nil
}

// MarkStarted records that every instance started successfully.
func (m *Machine) MarkStarted(ctx context.Context, key string, kind model.Kind) error {
	_, err := m.casUpdate(ctx, key, func(current *model.ObjPsStatus) store.StatusPatch {
		return store.StatusPatch{Actual: kindPtr(model.StatusStart)}
	})
	if err != nil {
		return err
	}
	m.emit(ctx, key, kind, model.EventNormal, "Started", "")
	return nil
}

// MarkStopped records that every instance stopped successfully.
func (m *Machine) MarkStopped(ctx context.Context, key string, kind model.Kind) error {
	_, err := m.casUpdate(ctx, key, func(current *model.ObjPsStatus) store.StatusPatch {
		return store.StatusPatch{Actual: kindPtr(model.StatusStop)}
	})
	if err != nil {
		return err
	}
	m.emit(ctx, key, kind, model.EventNormal, "Stopped", "")
	return nil
}

// MarkFinished records a Job whose instances all exited zero before the
// Finish wait condition fired.
func (m *Machine) MarkFinished(ctx context.Context, key string) error {
	_, err := m.casUpdate(ctx, key, func(current *model.ObjPsStatus) store.StatusPatch {
		return store.StatusPatch{Actual: kindPtr(model.StatusFinish)}
	})
	if err != nil {
		return err
	}
	m.emit(ctx, key, model.KindJob, model.EventNormal, "Finish", "")
	return nil
}

// MarkFailed records a non-zero exit (Job) or a Fatal engine error (any
// kind), emitting an Error event.
func (m *Machine) MarkFailed(ctx context.Context, key string, kind model.Kind, reason string) error {
	_, err := m.casUpdate(ctx, key, func(current *model.ObjPsStatus) store.StatusPatch {
		return store.StatusPatch{Actual: kindPtr(model.StatusFail)}
	})
	if err != nil {
		return err
	}
	m.emit(ctx, key, kind, model.EventError, "Fail", reason)
	return nil
}

// MarkRemoved deletes the object row after a successful removal of all
// instances and emits the terminal Destroyed event.
func (m *Machine) MarkRemoved(ctx context.Context, key string, kind model.Kind) error {
	if err := m.store.DeleteObject(ctx, key); err != nil {
		return err
	}
	m.emit(ctx, key, kind, model.EventNormal, "Destroyed", "")
	return nil
}

// Restart/Patched/Scaled are bookkeeping-only events: the actual status
// doesn't change shape (still Start), only the fact something happened.
func (m *Machine) EmitRestart(ctx context.Context, key string, kind model.Kind) {
	m.emit(ctx, key, kind, model.EventNormal, "Restart", "")
}

func (m *Machine) EmitPatched(ctx context.Context, key string, kind model.Kind) {
	m.emit(ctx, key, kind, model.EventNormal, "Patched", "")
}

func (m *Machine) EmitScaled(ctx context.Context, key string, kind model.Kind, delta int) {
	note := "scaled"
	m.emit(ctx, key, kind, model.EventNormal, "Scaled", note)
	_ = delta
}

// RetryTransient runs op, retrying with exponential backoff (capped at
// maxTransientAttempts/maxTransientBackoff) while the error it returns
// classifies as Transient; it emits a Warning event on every retry and
// gives up (transitioning to Fail on the caller's behalf) once exhausted.
func (m *Machine) RetryTransient(ctx context.Context, key string, kind model.Kind, op func() error) error {
	var lastErr error
	for attempt := 0; attempt < maxTransientAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !coreerrors.Is(lastErr, coreerrors.Transient) {
			m.MarkFailed(ctx, key, kind, lastErr.Error())
			return lastErr
		}
		m.emit(ctx, key, kind, model.EventWarning, "Retry", lastErr.Error())

		backoff := time.Duration(math.Min(
			float64(maxTransientBackoff),
			float64(baseTransientBackoff)*math.Pow(2, float64(attempt)),
		))
		jitter := time.Duration(rand.Int63n(int64(backoff) / 4)) //nolint:gosec // jitter, not security-sensitive
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff + jitter):
		}
	}
	m.MarkFailed(ctx, key, kind, lastErr.Error())
	return lastErr
}
