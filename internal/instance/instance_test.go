package instance

import (
	"context"
	"testing"

	"github.com/next-hat/nanocl-sub000/infrastructure/logging"
	"github.com/next-hat/nanocl-sub000/internal/engine/fakeengine"
	"github.com/next-hat/nanocl-sub000/internal/eventbus"
	"github.com/next-hat/nanocl-sub000/internal/model"
	"github.com/next-hat/nanocl-sub000/internal/objstatus"
	"github.com/next-hat/nanocl-sub000/internal/store/memory"
)

func newTestManager() (*Manager, *memory.Store, *fakeengine.Engine) {
	st := memory.New()
	eng := fakeengine.New()
	status := objstatus.New(st, eventbus.New())
	log := logging.NewFromEnv("test")
	node := model.Node{Key: "node-1", AdvertiseAddr: "10.0.0.1"}
	return New(st, eng, status, nil, node, log), st, eng
}

func TestManager_CreateAndStartCargo(t *testing.T) {
	m, st, _ := newTestManager()
	ctx := context.Background()

	st.CreateNamespace(ctx, model.GlobalNamespace)

	cargo, err := m.CreateCargo(ctx, model.GlobalNamespace, model.CargoSpec{
		Name:      "web",
		Container: model.ContainerSpec{Image: "nginx:latest"},
	})
	if err != nil {
		t.Fatalf("CreateCargo() error = %v", err)
	}

	procs, err := st.ReadProcessesByKindKey(ctx, model.KindCargo, cargo.Key)
	if err != nil || len(procs) != 1 {
		t.Fatalf("expected 1 process row, got %d (err=%v)", len(procs), err)
	}

	if err := m.StartCargo(ctx, cargo.Key); err != nil {
		t.Fatalf("StartCargo() error = %v", err)
	}

	status, err := st.ReadStatus(ctx, cargo.Key)
	if err != nil {
		t.Fatalf("ReadStatus() error = %v", err)
	}
	if status.Actual != model.StatusStart {
		t.Errorf("Actual = %v, want %v", status.Actual, model.StatusStart)
	}
}

func TestManager_CreateCargoRejectsAutoRemove(t *testing.T) {
	m, st, _ := newTestManager()
	ctx := context.Background()
	st.CreateNamespace(ctx, model.GlobalNamespace)

	_, err := m.CreateCargo(ctx, model.GlobalNamespace, model.CargoSpec{
		Name:      "web",
		Container: model.ContainerSpec{Image: "nginx:latest", HostConfig: model.HostConfig{AutoRemove: true}},
	})
	if err == nil {
		t.Fatal("expected error for auto_remove cargo")
	}
}

func TestManager_ScaleCargo(t *testing.T) {
	m, st, _ := newTestManager()
	ctx := context.Background()
	st.CreateNamespace(ctx, model.GlobalNamespace)

	cargo, err := m.CreateCargo(ctx, model.GlobalNamespace, model.CargoSpec{
		Name:      "web",
		Container: model.ContainerSpec{Image: "nginx:latest"},
	})
	if err != nil {
		t.Fatalf("CreateCargo() error = %v", err)
	}
	if err := m.StartCargo(ctx, cargo.Key); err != nil {
		t.Fatalf("StartCargo() error = %v", err)
	}

	if err := m.ScaleCargo(ctx, cargo.Key, 2); err != nil {
		t.Fatalf("ScaleCargo(+2) error = %v", err)
	}
	procs, _ := st.ReadProcessesByKindKey(ctx, model.KindCargo, cargo.Key)
	if len(procs) != 3 {
		t.Fatalf("after scale +2, got %d processes, want 3", len(procs))
	}

	if err := m.ScaleCargo(ctx, cargo.Key, -1); err != nil {
		t.Fatalf("ScaleCargo(-1) error = %v", err)
	}
	procs, _ = st.ReadProcessesByKindKey(ctx, model.KindCargo, cargo.Key)
	if len(procs) != 2 {
		t.Fatalf("after scale -1, got %d processes, want 2", len(procs))
	}
}

func TestManager_RunJobSucceedsWhenAllExitZero(t *testing.T) {
	m, st, _ := newTestManager()
	ctx := context.Background()

	job, err := m.CreateJob(ctx, model.JobSpec{
		Name: "migrate",
		Containers: []model.JobContainerSpec{
			{Container: model.ContainerSpec{Image: "migrate:latest"}},
		},
	})
	if err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}

	if err := m.RunJob(ctx, job.Key); err != nil {
		t.Fatalf("RunJob() error = %v", err)
	}

	status, err := st.ReadStatus(ctx, job.Key)
	if err != nil {
		t.Fatalf("ReadStatus() error = %v", err)
	}
	if status.Actual != model.StatusFinish {
		t.Errorf("Actual = %v, want %v", status.Actual, model.StatusFinish)
	}
}

func TestManager_RunJobFailsOnNonZeroExit(t *testing.T) {
	m, st, eng := newTestManager()
	ctx := context.Background()

	job, err := m.CreateJob(ctx, model.JobSpec{
		Name: "broken",
		Containers: []model.JobContainerSpec{
			{Container: model.ContainerSpec{Image: "broken:latest"}},
		},
	})
	if err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}

	procs, _ := st.ReadProcessesByKindKey(ctx, model.KindJob, job.Key)
	if len(procs) != 0 {
		t.Fatalf("CreateJob should not create containers yet, got %d", len(procs))
	}

	eng.ExitCodes["broken:latest"] = 1

	if err := m.RunJob(ctx, job.Key); err == nil {
		t.Fatal("expected RunJob to fail when a container exits non-zero")
	}

	status, err := st.ReadStatus(ctx, job.Key)
	if err != nil {
		t.Fatalf("ReadStatus() error = %v", err)
	}
	if status.Actual != model.StatusFail {
		t.Errorf("Actual = %v, want %v", status.Actual, model.StatusFail)
	}
}
