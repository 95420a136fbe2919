package statefile

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	coreerrors "github.com/next-hat/nanocl-sub000/infrastructure/errors"
	"github.com/next-hat/nanocl-sub000/infrastructure/logging"
	"github.com/next-hat/nanocl-sub000/internal/eventbus"
	"github.com/next-hat/nanocl-sub000/internal/instance"
	"github.com/next-hat/nanocl-sub000/internal/model"
	"github.com/next-hat/nanocl-sub000/internal/store"
)

// convergeTimeout bounds how long Apply waits for a just-created object to
// report Started/Finish before giving up on it.
const convergeTimeout = 2 * time.Minute

// Engine converges a parsed Statefile against the store and instance
// manager (spec.md §4.7 steps 6-8): ensure namespace, walk sub-states,
// create/put/skip each declared object in dependency order.
type Engine struct {
	store   store.Store
	manager *instance.Manager
	bus     *eventbus.Bus
	log     *logging.Logger
}

// New returns a statefile Engine.
func New(st store.Store, mgr *instance.Manager, bus *eventbus.Bus, log *logging.Logger) *Engine {
	return &Engine{store: st, manager: mgr, bus: bus, log: log}
}

// ApplyResult summarizes one converge pass over a single document (not
// counting recursively-applied sub-states).
type ApplyResult struct {
	Namespace string
	Created   []string
	Updated   []string
	Skipped   []string
}

// Apply ensures sf's namespace exists, recursively applies its sub-states
// concurrently, then converges secrets, jobs, cargoes, vms and resources
// in that order (spec.md §4.7 step 7 dependency order: a cargo's secret_env
// references must already exist, a job's schedule may reference a cargo's
// namespace, etc).
func (e *Engine) Apply(ctx context.Context, sf *model.Statefile, dir string, reload bool) (*ApplyResult, error) {
	namespace := sf.Namespace
	if namespace == "" {
		namespace = model.GlobalNamespace
	}
	if _, err := e.store.ReadNamespace(ctx, namespace); err != nil {
		if _, cerr := e.store.CreateNamespace(ctx, namespace); cerr != nil {
			return nil, cerr
		}
	}

	if len(sf.SubStates) > 0 {
		if err := e.applySubStates(ctx, sf.SubStates, dir, reload); err != nil {
			return nil, err
		}
	}

	result := &ApplyResult{Namespace: namespace}

	for _, secret := range sf.Secrets {
		created, err := e.convergeSecret(ctx, secret)
		if err != nil {
			return result, err
		}
		e.record(result, "secret:"+secret.Name, created)
	}
	for _, job := range sf.Jobs {
		created, err := e.convergeJob(ctx, job)
		if err != nil {
			return result, err
		}
		e.record(result, "job:"+job.Name, created)
	}
	for _, cargo := range sf.Cargoes {
		cargo.Namespace = namespace
		created, err := e.convergeCargo(ctx, cargo, reload)
		if err != nil {
			return result, err
		}
		e.record(result, "cargo:"+cargo.Name, created)
	}
	for _, vm := range sf.Vms {
		vm.Namespace = namespace
		created, err := e.convergeVm(ctx, vm)
		if err != nil {
			return result, err
		}
		e.record(result, "vm:"+vm.Name, created)
	}
	for _, res := range sf.Resources {
		created, err := e.convergeResource(ctx, res)
		if err != nil {
			return result, err
		}
		e.record(result, "resource:"+res.Name, created)
	}

	return result, nil
}

func (e *Engine) record(r *ApplyResult, label string, created bool) {
	if created {
		r.Created = append(r.Created, label)
	} else {
		r.Updated = append(r.Updated, label)
	}
}

// applySubStates walks referenced sub-statefiles concurrently, collecting
// every failure rather than just the first so a single bad sub-state
// doesn't hide its siblings' errors or leave them half-converged mid-flight.
func (e *Engine) applySubStates(ctx context.Context, paths []string, dir string, reload bool) error {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		merr   *multierror.Error
	)
	for _, p := range paths {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := e.applySubState(ctx, p, dir, reload); err != nil {
				mu.Lock()
				merr = multierror.Append(merr, fmt.Errorf("sub_state %q: %w", p, err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if merr == nil {
		return nil
	}
	return merr.ErrorOrNil()
}

func (e *Engine) applySubState(ctx context.Context, p, dir string, reload bool) error {
	_, raw, err := Locate(ctx, dir, p)
	if err != nil {
		return err
	}
	buildCtx := DefaultBuildContext("", nil)
	sub, err := Render(raw, buildCtx)
	if err != nil {
		return err
	}
	_, err = e.Apply(ctx, sub, dir, reload)
	return err
}

func (e *Engine) convergeSecret(ctx context.Context, spec model.SecretSpec) (bool, error) {
	return e.convergeSpecOnly(ctx, model.KindSecret, spec.Name, spec)
}

func (e *Engine) convergeResource(ctx context.Context, spec model.ResourceSpec) (bool, error) {
	return e.convergeSpecOnly(ctx, model.KindResource, spec.Name, spec)
}

// convergeSpecOnly handles the two object kinds with no engine presence
// (Secret, Resource): a new Spec row is always appended to record the
// patch, and the object row is created on first sight only.
func (e *Engine) convergeSpecOnly(ctx context.Context, kind model.Kind, name string, spec interface{}) (bool, error) {
	data, merr := json.Marshal(spec)
	if merr != nil {
		return false, coreerrors.ErrInvalidInput("spec", merr.Error())
	}
	_, err := e.store.ReadObjectByKey(ctx, kind, name)
	exists := err == nil

	specRow, err := e.store.CreateSpec(ctx, kind, name, data, "1")
	if err != nil {
		return false, err
	}
	if exists {
		return false, e.store.UpdateObjectSpec(ctx, name, specRow.Key)
	}
	_, err = e.store.CreateObject(ctx, store.Object{Key: name, Name: name, Kind: kind, SpecKey: specRow.Key})
	return true, err
}

func (e *Engine) convergeJob(ctx context.Context, spec model.JobSpec) (bool, error) {
	_, err := e.store.ReadObjectByKey(ctx, model.KindJob, spec.Name)
	if err == nil {
		// an existing job is left as it is: its stored spec, schedule
		// included, is not compared with the declared one and is not
		// updated, whatever the declared spec says.
		return false, nil
	}
	job, err := e.manager.CreateJob(ctx, spec)
	if err != nil {
		return false, err
	}
	if spec.Schedule == "" {
		if err := e.manager.RunJob(ctx, job.Key); err != nil {
			return true, err
		}
	}
	return true, nil
}

func (e *Engine) convergeCargo(ctx context.Context, spec model.CargoSpec, reload bool) (bool, error) {
	key := spec.Namespace + "-" + spec.Name
	existing, err := e.store.ReadObjectByKey(ctx, model.KindCargo, key)
	if err != nil {
		cargo, cerr := e.manager.CreateCargo(ctx, spec.Namespace, spec)
		if cerr != nil {
			return false, cerr
		}
		if err := e.manager.StartCargo(ctx, cargo.Key); err != nil {
			return true, err
		}
		return true, e.awaitStatus(ctx, cargo.Key, model.StatusStart)
	}

	status, err := e.store.ReadStatus(ctx, existing.Key)
	if err != nil {
		return false, err
	}
	if !reload && status.Actual == model.StatusStart {
		return false, nil
	}
	if err := e.manager.PutCargo(ctx, existing.Key, spec); err != nil {
		return false, err
	}
	return false, nil
}

func (e *Engine) convergeVm(ctx context.Context, spec model.VmSpec) (bool, error) {
	key := spec.Namespace + "-" + spec.Name
	if _, err := e.store.ReadObjectByKey(ctx, model.KindVm, key); err == nil {
		// an existing vm is left as it is: its stored spec is not compared
		// with the declared one and is not replaced, even when they differ.
		return false, nil
	}
	if _, err := e.manager.CreateVm(ctx, spec.Namespace, spec); err != nil {
		return false, err
	}
	return true, nil
}

// awaitStatus returns at once if key's status already is want; otherwise it
// blocks until key's event stream reports a transition into want (Started
// for cargoes/vms, Finish for jobs) or convergeTimeout elapses.
func (e *Engine) awaitStatus(ctx context.Context, key string, want model.ObjPsStatusKind) error {
	if e.bus == nil {
		return nil
	}
	waitCtx, cancel := context.WithTimeout(ctx, convergeTimeout)
	defer cancel()

	sub := e.bus.Subscribe(eventbus.Condition{ActorKey: key})
	defer sub.Unsubscribe()

	if status, err := e.store.ReadStatus(ctx, key); err == nil && status.Actual == want {
		return nil
	}

	for {
		select {
		case <-waitCtx.Done():
			return coreerrors.ErrTransient("await_status", fmt.Errorf("timed out waiting for %q to reach %q", key, want))
		case ev, ok := <-sub.Events():
			if !ok {
				return coreerrors.ErrTransient("await_status", fmt.Errorf("event stream closed before %q reached %q", key, want))
			}
			if ev.Kind == model.EventError {
				return coreerrors.ErrFatal("await_status", fmt.Errorf("%q reported: %s", key, ev.Note))
			}
			status, err := e.store.ReadStatus(ctx, key)
			if err == nil && status.Actual == want {
				return nil
			}
		}
	}
}
