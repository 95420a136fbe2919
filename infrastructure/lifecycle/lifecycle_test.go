package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/next-hat/nanocl-sub000/infrastructure/logging"
)

type fakeModule struct {
	name        string
	startErr    error
	started     *bool
	stopped     *[]string
}

func (f *fakeModule) Name() string { return f.name }

func (f *fakeModule) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	*f.started = true
	return nil
}

func (f *fakeModule) Stop(ctx context.Context) error {
	*f.stopped = append(*f.stopped, f.name)
	return nil
}

func TestManager_StopsInReverseOrder(t *testing.T) {
	var order []string
	mgr := New(logging.NewFromEnv("test"))
	for _, name := range []string{"a", "b", "c"} {
		mgr.Register(&fakeModule{name: name, started: new(bool), stopped: &order})
	}
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	mgr.Stop(context.Background())
	if len(order) != 3 || order[0] != "c" || order[1] != "b" || order[2] != "a" {
		t.Fatalf("expected reverse stop order [c b a], got %v", order)
	}
}

func TestManager_RollsBackOnStartFailure(t *testing.T) {
	var stopped []string
	mgr := New(logging.NewFromEnv("test"))
	mgr.Register(&fakeModule{name: "a", started: new(bool), stopped: &stopped})
	mgr.Register(&fakeModule{name: "b", startErr: errors.New("boom"), stopped: &stopped})
	mgr.Register(&fakeModule{name: "c", stopped: &stopped})

	err := mgr.Start(context.Background())
	if err == nil {
		t.Fatal("expected start error")
	}
	if len(stopped) != 1 || stopped[0] != "a" {
		t.Fatalf("expected only 'a' rolled back, got %v", stopped)
	}
}

func TestRunLoop_StopCancelsRun(t *testing.T) {
	entered := make(chan struct{})
	rl := NewRunLoop("sync", func(ctx context.Context) error {
		close(entered)
		<-ctx.Done()
		return ctx.Err()
	}, nil)

	if err := rl.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	<-entered
	if err := rl.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
