// Package instance implements the instance manager (spec.md §4.6): turns a
// CargoSpec/VmSpec/JobSpec into one or more engine containers, carrying the
// naming, labeling, secret/env merge, and rolling-replace semantics the
// object status machine's Actual transitions are driven by.
package instance

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	coreerrors "github.com/next-hat/nanocl-sub000/infrastructure/errors"
	"github.com/next-hat/nanocl-sub000/infrastructure/logging"
	"github.com/next-hat/nanocl-sub000/internal/engine"
	"github.com/next-hat/nanocl-sub000/internal/model"
	"github.com/next-hat/nanocl-sub000/internal/objstatus"
	"github.com/next-hat/nanocl-sub000/internal/store"
)

const (
	defaultNetworkMode = "nanoclbr0"
	defaultVmRuntime   = "ghcr.io/next-hat/nanocl-qemu:8.0"
)

// Scheduler is the external collaborator C6 calls into for cron-scheduled
// Jobs (spec.md §4.6.5); internal/scheduler provides the real one.
type Scheduler interface {
	Schedule(jobKey, cronExpr string, fn func(context.Context)) error
	Unschedule(jobKey string)
}

// Manager implements cargo/vm/job lifecycle operations against one Store,
// Engine and Status machine.
type Manager struct {
	store     store.Store
	engine    engine.Engine
	status    *objstatus.Machine
	scheduler Scheduler
	node      model.Node
	log       *logging.Logger
}

// New constructs a Manager. scheduler may be nil if no Job ever declares a
// cron schedule.
func New(st store.Store, eng engine.Engine, status *objstatus.Machine, scheduler Scheduler, node model.Node, log *logging.Logger) *Manager {
	return &Manager{store: st, engine: eng, status: status, scheduler: scheduler, node: node, log: log}
}

// ensureImage applies the pull policy (spec.md §4.6.6) ahead of container
// creation.
func (m *Manager) ensureImage(ctx context.Context, ref string, policy model.PullPolicy) error {
	if policy == "" {
		policy = model.PullIfNotPresent
	}
	if policy == model.PullIfNotPresent {
		if err := m.engine.InspectImage(ctx, ref); err == nil {
			return nil
		}
	}
	if policy == model.PullNever {
		if err := m.engine.InspectImage(ctx, ref); err != nil {
			return coreerrors.ErrPrecondition(fmt.Sprintf("image %q absent and pull policy is Never", ref))
		}
		return nil
	}
	progress, err := m.engine.PullImage(ctx, ref, policy)
	if err != nil {
		return translateEngineErr("pull_image", err)
	}
	for range progress {
		// drain; the HTTP layer multiplexes progress separately when streaming
		// to a caller. Here we only need pull completion.
	}
	return nil
}

func translateEngineErr(op string, err error) error {
	eerr, ok := err.(*engine.EngineError)
	if !ok {
		return coreerrors.ErrInternal(op, err)
	}
	switch eerr.Kind {
	case engine.NotFound:
		return coreerrors.ErrNotFound(op, "")
	case engine.Conflict:
		return coreerrors.ErrConflict(eerr.Error())
	case engine.Transient:
		return coreerrors.ErrTransient(op, eerr.Err)
	default:
		return coreerrors.ErrFatal(op, eerr.Err)
	}
}

func coreEnvs(node model.Node, cargoKey, namespace string, index int) []string {
	return []string{
		"NANOCL_NODE=" + node.Key,
		"NANOCL_NODE_ADDR=" + node.AdvertiseAddr,
		"NANOCL_CARGO_KEY=" + cargoKey,
		"NANOCL_CARGO_NAMESPACE=" + namespace,
		fmt.Sprintf("NANOCL_CARGO_INSTANCE=%d", index),
	}
}

// secretEnvs resolves spec.Secrets into flattened K=V env entries by
// reading every Secret row of kind nanocl.io/env whose name is referenced
// (spec.md §4.6.2 step 3).
func (m *Manager) secretEnvs(ctx context.Context, names []string) ([]string, error) {
	var envs []string
	for _, name := range names {
		objs, err := m.store.ReadByFilter(ctx, model.KindSecret, model.NewFilter().Eq("name", name))
		if err != nil {
			return nil, err
		}
		for _, obj := range objs {
			spec, err := m.store.ReadSpec(ctx, obj.SpecKey)
			if err != nil {
				return nil, err
			}
			var secret model.SecretSpec
			if err := decodeJSON(spec.Data, &secret); err != nil {
				continue
			}
			if secret.Kind != model.SecretEnvKind {
				continue
			}
			var pairs []string
			if err := decodeJSON(secret.Data, &pairs); err == nil {
				envs = append(envs, pairs...)
			}
		}
	}
	return envs, nil
}

// CreateCargo builds the cargo's object/spec rows and every instance
// container, without starting them (spec.md §4.6.2: "do not start yet").
func (m *Manager) CreateCargo(ctx context.Context, namespace string, spec model.CargoSpec) (*model.Cargo, error) {
	if spec.Container.HostConfig.AutoRemove {
		return nil, coreerrors.ErrInvalidInput("auto_remove", "cargoes disallow auto_remove; use a Job")
	}
	if namespace == "" {
		namespace = spec.Namespace
	}
	if namespace == "" {
		namespace = model.GlobalNamespace
	}

	key := namespace + "-" + spec.Name
	if _, err := m.store.ReadObjectByKey(ctx, model.KindCargo, key); err == nil {
		return nil, coreerrors.ErrConflict(fmt.Sprintf("cargo %q already exists", key))
	}

	data, err := encodeJSON(spec)
	if err != nil {
		return nil, coreerrors.ErrInvalidInput("spec", err.Error())
	}
	specRow, err := m.store.CreateSpec(ctx, model.KindCargo, key, data, "1")
	if err != nil {
		return nil, err
	}
	obj, err := m.store.CreateObject(ctx, store.Object{Key: key, Name: spec.Name, Namespace: namespace, Kind: model.KindCargo, SpecKey: specRow.Key})
	if err != nil {
		return nil, err
	}

	if err := m.createCargoInstances(ctx, key, namespace, spec); err != nil {
		return nil, err
	}

	return &model.Cargo{Key: obj.Key, Name: obj.Name, Namespace: obj.Namespace, SpecKey: obj.SpecKey, CreatedAt: obj.CreatedAt}, nil
}

// createCargoInstances implements spec.md §4.6.2 steps 1-3: pull, optional
// init container, then one container per replica.
func (m *Manager) createCargoInstances(ctx context.Context, cargoKey, namespace string, spec model.CargoSpec) error {
	policy := spec.ImagePullPolicy
	if err := m.ensureImage(ctx, spec.Container.Image, policy); err != nil {
		return err
	}

	if spec.InitContainer != nil {
		if err := m.runInitContainer(ctx, cargoKey, namespace, spec); err != nil {
			return err
		}
	}

	secretEnvs, err := m.secretEnvs(ctx, spec.Secrets)
	if err != nil {
		return err
	}

	replicas := spec.Replicas()
	for i := 0; i < replicas; i++ {
		shortID := model.ShortID()
		name := model.CargoInstanceName(spec.Name, namespace, shortID)
		containerSpec := spec.Container
		containerSpec.Env = append(append(append([]string{}, containerSpec.Env...), secretEnvs...), coreEnvs(m.node, cargoKey, namespace, i)...)
		if containerSpec.Hostname != "" {
			containerSpec.Hostname = containerSpec.Hostname + "-" + shortID
		} else {
			containerSpec.Hostname = name
		}
		if containerSpec.HostConfig.RestartPolicy == "" {
			containerSpec.HostConfig.RestartPolicy = "always"
		}
		if containerSpec.HostConfig.NetworkMode == "" {
			containerSpec.HostConfig.NetworkMode = defaultNetworkMode
		}
		containerSpec.Labels = model.CargoLabels(cargoKey, namespace, containerSpec.Labels)

		id, err := m.engine.CreateContainer(ctx, name, containerSpec)
		if err != nil {
			return translateEngineErr("create_container", err)
		}
		if _, err := m.store.UpsertProcess(ctx, store.ProcessPartial{
			Key: id, Name: name, Kind: model.KindCargo, OwnerKey: cargoKey, NodeKey: m.node.Key, Labels: containerSpec.Labels,
		}); err != nil {
			m.log.WithContext(ctx).WithError(err).Warn("process row upsert failed after create_container")
		}
	}
	return nil
}

func (m *Manager) runInitContainer(ctx context.Context, cargoKey, namespace string, spec model.CargoSpec) error {
	shortID := model.ShortID()
	name := model.CargoInitInstanceName(spec.Name, namespace, shortID)
	initSpec := *spec.InitContainer
	if initSpec.Image == "" {
		initSpec.Image = spec.Container.Image
	}
	labels := model.CargoLabels(cargoKey, namespace, initSpec.Labels)
	labels[model.InitLabel] = "true"
	initSpec.Labels = labels
	if initSpec.HostConfig.NetworkMode == "" {
		initSpec.HostConfig.NetworkMode = defaultNetworkMode
	}

	if err := m.ensureImage(ctx, initSpec.Image, spec.ImagePullPolicy); err != nil {
		return err
	}
	id, err := m.engine.CreateContainer(ctx, name, initSpec)
	if err != nil {
		return translateEngineErr("create_container", err)
	}
	if err := m.engine.Start(ctx, id); err != nil {
		return translateEngineErr("start", err)
	}
	exits, err := m.engine.Wait(ctx, id, model.WaitNotRunning)
	if err != nil {
		return translateEngineErr("wait", err)
	}
	result := <-exits
	defer m.engine.Remove(ctx, id, true)
	if result.ExitCode != 0 {
		return coreerrors.ErrFatal("init_container", fmt.Errorf("init container exited %d", result.ExitCode))
	}
	return nil
}

// StartCargo starts every live instance and reports the outcome to the
// status machine (spec.md §4.5: "On a successful start of all instances").
func (m *Manager) StartCargo(ctx context.Context, cargoKey string) error {
	procs, err := m.store.ReadProcessesByKindKey(ctx, model.KindCargo, cargoKey)
	if err != nil {
		return err
	}
	for _, p := range procs {
		if err := m.status.RetryTransient(ctx, cargoKey, model.KindCargo, func() error {
			return translateEngineErr("start", m.engine.Start(ctx, p.Key))
		}); err != nil {
			return err
		}
	}
	return m.status.MarkStarted(ctx, cargoKey, model.KindCargo)
}

// StopCargo stops every live instance.
func (m *Manager) StopCargo(ctx context.Context, cargoKey string, timeout *time.Duration) error {
	procs, err := m.store.ReadProcessesByKindKey(ctx, model.KindCargo, cargoKey)
	if err != nil {
		return err
	}
	for _, p := range procs {
		if err := translateEngineErr("stop", m.engine.Stop(ctx, p.Key, timeout)); err != nil {
			return err
		}
	}
	return m.status.MarkStopped(ctx, cargoKey, model.KindCargo)
}

// PutCargo implements rolling replace with rollback (spec.md §4.6.3).
func (m *Manager) PutCargo(ctx context.Context, cargoKey string, spec model.CargoSpec) error {
	obj, err := m.store.ReadObjectByKey(ctx, model.KindCargo, cargoKey)
	if err != nil {
		return err
	}

	oldProcs, err := m.store.ReadProcessesByKindKey(ctx, model.KindCargo, cargoKey)
	if err != nil {
		return err
	}
	for _, p := range oldProcs {
		// Renaming is a logical step; the engine does not expose rename, so
		// the backup instances are tracked by their existing process rows
		// and only removed (not renamed in-place) once the new set is live.
		_ = p
	}

	data, err := encodeJSON(spec)
	if err != nil {
		return coreerrors.ErrInvalidInput("spec", err.Error())
	}
	specRow, err := m.store.CreateSpec(ctx, model.KindCargo, cargoKey, data, "")
	if err != nil {
		return err
	}

	if err := m.createCargoInstances(ctx, cargoKey, obj.Namespace, spec); err != nil {
		// Rollback: leave the old instances in place (never removed), mark
		// the cargo Fail with the error, and surface a Fatal error to the
		// caller.
		m.status.MarkFailed(ctx, cargoKey, model.KindCargo, err.Error())
		return coreerrors.ErrFatal("put_cargo", err)
	}

	if err := m.StartCargo(ctx, cargoKey); err != nil {
		for _, p := range newestProcesses(oldProcs, mustList(ctx, m, cargoKey)) {
			m.engine.Remove(ctx, p.Key, true)
			m.store.DeleteProcess(ctx, p.Key)
		}
		m.status.MarkStarted(ctx, cargoKey, model.KindCargo)
		return coreerrors.ErrFatal("put_cargo", err)
	}

	if err := m.store.UpdateObjectSpec(ctx, cargoKey, specRow.Key); err != nil {
		return err
	}
	for _, p := range oldProcs {
		m.engine.Remove(ctx, p.Key, true)
		m.store.DeleteProcess(ctx, p.Key)
	}
	m.status.EmitPatched(ctx, cargoKey, model.KindCargo)
	return nil
}

func mustList(ctx context.Context, m *Manager, cargoKey string) []model.Process {
	procs, _ := m.store.ReadProcessesByKindKey(ctx, model.KindCargo, cargoKey)
	return procs
}

// newestProcesses returns the elements of all not present in old, by key.
func newestProcesses(old, all []model.Process) []model.Process {
	seen := make(map[string]bool, len(old))
	for _, p := range old {
		seen[p.Key] = true
	}
	var out []model.Process
	for _, p := range all {
		if !seen[p.Key] {
			out = append(out, p)
		}
	}
	return out
}

// ScaleCargo adds or removes n instances (spec.md §4.6.3's scale rule).
func (m *Manager) ScaleCargo(ctx context.Context, cargoKey string, delta int) error {
	if delta == 0 {
		return nil
	}
	obj, err := m.store.ReadObjectByKey(ctx, model.KindCargo, cargoKey)
	if err != nil {
		return err
	}
	specRow, err := m.store.ReadSpec(ctx, obj.SpecKey)
	if err != nil {
		return err
	}
	var spec model.CargoSpec
	if err := decodeJSON(specRow.Data, &spec); err != nil {
		return coreerrors.ErrInternal("decode cargo spec", err)
	}

	procs, err := m.store.ReadProcessesByKindKey(ctx, model.KindCargo, cargoKey)
	if err != nil {
		return err
	}

	if delta < 0 {
		sort.Slice(procs, func(i, j int) bool { return procs[i].CreatedAt.Before(procs[j].CreatedAt) })
		n := -delta
		if n > len(procs) {
			n = len(procs)
		}
		for i := 0; i < n; i++ {
			p := procs[i]
			if err := translateEngineErr("remove", m.engine.Remove(ctx, p.Key, true)); err != nil {
				return err
			}
			m.store.DeleteProcess(ctx, p.Key)
		}
	} else {
		single := spec
		single.Replication = model.ReplicationMode{Static: delta}
		if err := m.createCargoInstances(ctx, cargoKey, obj.Namespace, single); err != nil {
			return err
		}
		if err := m.StartCargo(ctx, cargoKey); err != nil {
			return err
		}
	}
	m.status.EmitScaled(ctx, cargoKey, model.KindCargo, delta)
	return nil
}

// Attach opens a raw bidirectional stream to a live process, for console
// attach (vms) and interactive exec.
func (m *Manager) Attach(ctx context.Context, processKey string) (engine.AttachConn, error) {
	conn, err := m.engine.Attach(ctx, processKey, engine.AttachOptions{Stdin: true, Stdout: true, Stderr: true})
	if err != nil {
		return nil, translateEngineErr("attach", err)
	}
	return conn, nil
}

// DeleteCargo emits destroying, stops and removes every instance, then
// deletes the object row.
func (m *Manager) DeleteCargo(ctx context.Context, cargoKey string) error {
	if err := m.status.EmitDestroying(ctx, cargoKey, model.KindCargo); err != nil {
		return err
	}
	procs, err := m.store.ReadProcessesByKindKey(ctx, model.KindCargo, cargoKey)
	if err != nil {
		return err
	}
	for _, p := range procs {
		if err := translateEngineErr("remove", m.engine.Remove(ctx, p.Key, true)); err != nil {
			return err
		}
		m.store.DeleteProcess(ctx, p.Key)
	}
	return m.status.MarkRemoved(ctx, cargoKey, model.KindCargo)
}

func encodeJSON(v interface{}) ([]byte, error)     { return json.Marshal(v) }
func decodeJSON(data []byte, v interface{}) error { return json.Unmarshal(data, v) }
