package instance

import (
	"context"
	"fmt"

	coreerrors "github.com/next-hat/nanocl-sub000/infrastructure/errors"
	"github.com/next-hat/nanocl-sub000/internal/model"
	"github.com/next-hat/nanocl-sub000/internal/store"
)

// CreateJob registers a Job's object/spec rows and, if it declares a cron
// schedule, registers it with the Scheduler; it does not itself run the
// containers (that happens on RunJob, invoked directly or by the scheduler).
func (m *Manager) CreateJob(ctx context.Context, spec model.JobSpec) (*model.Job, error) {
	if _, err := m.store.ReadObjectByKey(ctx, model.KindJob, spec.Name); err == nil {
		return nil, coreerrors.ErrConflict(fmt.Sprintf("job %q already exists", spec.Name))
	}

	data, err := encodeJSON(spec)
	if err != nil {
		return nil, coreerrors.ErrInvalidInput("spec", err.Error())
	}
	specRow, err := m.store.CreateSpec(ctx, model.KindJob, spec.Name, data, "1")
	if err != nil {
		return nil, err
	}
	obj, err := m.store.CreateObject(ctx, store.Object{Key: spec.Name, Name: spec.Name, Kind: model.KindJob, SpecKey: specRow.Key})
	if err != nil {
		return nil, err
	}

	if spec.Schedule != "" && m.scheduler != nil {
		if err := m.scheduler.Schedule(spec.Name, spec.Schedule, func(runCtx context.Context) {
			if err := m.RunJob(runCtx, spec.Name); err != nil {
				m.log.WithContext(runCtx).WithError(err).Warn("scheduled job run failed")
			}
		}); err != nil {
			return nil, coreerrors.ErrInvalidInput("schedule", err.Error())
		}
	}

	return &model.Job{Key: obj.Key, Name: obj.Name, SpecKey: obj.SpecKey, CreatedAt: obj.CreatedAt}, nil
}

// RunJob creates and starts the job's N sub-containers, then reconciles
// wait results: success only if every container exits zero (spec.md
// §4.6.5).
func (m *Manager) RunJob(ctx context.Context, jobKey string) error {
	obj, err := m.store.ReadObjectByKey(ctx, model.KindJob, jobKey)
	if err != nil {
		return err
	}
	specRow, err := m.store.ReadSpec(ctx, obj.SpecKey)
	if err != nil {
		return err
	}
	var spec model.JobSpec
	if err := decodeJSON(specRow.Data, &spec); err != nil {
		return coreerrors.ErrInternal("decode job spec", err)
	}

	if err := m.status.EmitStarting(ctx, jobKey, model.KindJob); err != nil {
		return err
	}

	ids := make([]string, 0, len(spec.Containers))
	for i, jc := range spec.Containers {
		if err := m.ensureImage(ctx, jc.Container.Image, spec.ImagePullPolicy); err != nil {
			return m.failJob(ctx, jobKey, err)
		}
		name := model.JobInstanceName(spec.Name, i, model.ShortID())
		containerSpec := jc.Container
		containerSpec.Labels = model.JobLabels(spec.Name, containerSpec.Labels)
		containerSpec.HostConfig.AutoRemove = true

		id, err := m.engine.CreateContainer(ctx, name, containerSpec)
		if err != nil {
			return m.failJob(ctx, jobKey, translateEngineErr("create_container", err))
		}
		if _, err := m.store.UpsertProcess(ctx, store.ProcessPartial{
			Key: id, Name: name, Kind: model.KindJob, OwnerKey: spec.Name, NodeKey: m.node.Key, Labels: containerSpec.Labels,
		}); err != nil {
			m.log.WithContext(ctx).WithError(err).Warn("process row upsert failed after job create_container")
		}
		ids = append(ids, id)
	}

	for _, id := range ids {
		if err := m.engine.Start(ctx, id); err != nil {
			return m.failJob(ctx, jobKey, translateEngineErr("start", err))
		}
	}

	allZero := true
	for _, id := range ids {
		exits, err := m.engine.Wait(ctx, id, model.WaitNextExit)
		if err != nil {
			return m.failJob(ctx, jobKey, translateEngineErr("wait", err))
		}
		result := <-exits
		if result.ExitCode != 0 || result.Err != nil {
			allZero = false
		}
	}

	if !allZero {
		return m.failJob(ctx, jobKey, coreerrors.New(coreerrors.Fatal, "one or more job containers exited non-zero"))
	}
	return m.status.MarkFinished(ctx, jobKey)
}

func (m *Manager) failJob(ctx context.Context, jobKey string, err error) error {
	m.status.MarkFailed(ctx, jobKey, model.KindJob, err.Error())
	return err
}

// DeleteJob unschedules (if scheduled) and removes the job's object row and
// any still-present containers.
func (m *Manager) DeleteJob(ctx context.Context, jobKey string) error {
	if m.scheduler != nil {
		m.scheduler.Unschedule(jobKey)
	}
	procs, err := m.store.ReadProcessesByKindKey(ctx, model.KindJob, jobKey)
	if err != nil {
		return err
	}
	for _, p := range procs {
		m.engine.Remove(ctx, p.Key, true)
		m.store.DeleteProcess(ctx, p.Key)
	}
	return m.status.MarkRemoved(ctx, jobKey, model.KindJob)
}
