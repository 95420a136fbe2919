// Package fakeengine is a scripted, in-memory engine.Engine used by tests
// for the components layered above C2 (process synchronizer, status
// machine, instance manager) without a real container runtime.
package fakeengine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/next-hat/nanocl-sub000/internal/engine"
	"github.com/next-hat/nanocl-sub000/internal/model"
)

type container struct {
	id       string
	name     string
	image    string
	spec     model.ContainerSpec
	running  bool
	exitCode int
}

// Engine is an in-memory fake satisfying engine.Engine. StartErr/CreateErr
// etc. let tests script a failure on every matching call until cleared.
type Engine struct {
	mu         sync.Mutex
	containers map[string]*container
	images     map[string]bool
	nextID     int
	events     chan engine.RawEvent

	CreateErr  error
	StartErr   map[string]error // by container name
	ExitCodes  map[string]int   // by image ref, consumed by Wait
}

// New returns an empty fake engine.
func New() *Engine {
	return &Engine{
		containers: make(map[string]*container),
		images:     make(map[string]bool),
		events:     make(chan engine.RawEvent, 64),
		StartErr:   make(map[string]error),
		ExitCodes:  make(map[string]int),
	}
}

func (e *Engine) emit(action, actorID string, labels map[string]string) {
	select {
	case e.events <- engine.RawEvent{Type: "container", Action: action, ActorID: actorID, Attributes: labels, Timestamp: time.Now()}:
	default:
	}
}

func (e *Engine) PullImage(ctx context.Context, ref string, policy model.PullPolicy) (<-chan engine.PullProgress, error) {
	e.mu.Lock()
	e.images[ref] = true
	e.mu.Unlock()
	ch := make(chan engine.PullProgress, 1)
	ch <- engine.PullProgress{Status: "downloaded", Done: true}
	close(ch)
	return ch, nil
}

func (e *Engine) InspectImage(ctx context.Context, ref string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.images[ref] {
		return engine.NewError(engine.NotFound, "inspect_image", fmt.Errorf("image %q not present", ref))
	}
	return nil
}

func (e *Engine) CreateContainer(ctx context.Context, name string, spec model.ContainerSpec) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.CreateErr != nil {
		return "", engine.NewError(engine.Fatal, "create_container", e.CreateErr)
	}
	for _, c := range e.containers {
		if c.name == name {
			return "", engine.NewError(engine.Conflict, "create_container", fmt.Errorf("name %q in use", name))
		}
	}
	e.nextID++
	id := fmt.Sprintf("fake-%d", e.nextID)
	e.containers[id] = &container{id: id, name: name, image: spec.Image, spec: spec}
	e.emit("create", id, spec.Labels)
	return id, nil
}

func (e *Engine) get(id string) (*container, error) {
	c, ok := e.containers[id]
	if !ok {
		return nil, engine.NewError(engine.NotFound, "container", fmt.Errorf("%q not found", id))
	}
	return c, nil
}

func (e *Engine) Start(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, err := e.get(id)
	if err != nil {
		return err
	}
	if scriptedErr, ok := e.StartErr[c.name]; ok && scriptedErr != nil {
		return engine.NewError(engine.Fatal, "start", scriptedErr)
	}
	c.running = true
	e.emit("start", id, c.spec.Labels)
	return nil
}

func (e *Engine) Stop(ctx context.Context, id string, timeout *time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, err := e.get(id)
	if err != nil {
		return err
	}
	c.running = false
	e.emit("die", id, c.spec.Labels)
	return nil
}

func (e *Engine) Kill(ctx context.Context, id string, signal string) error {
	return e.Stop(ctx, id, nil)
}

func (e *Engine) Restart(ctx context.Context, id string) error {
	if err := e.Stop(ctx, id, nil); err != nil {
		return err
	}
	return e.Start(ctx, id)
}

func (e *Engine) Remove(ctx context.Context, id string, force bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, err := e.get(id)
	if err != nil {
		return err
	}
	if c.running && !force {
		return engine.NewError(engine.Conflict, "remove", fmt.Errorf("container %q still running", id))
	}
	delete(e.containers, id)
	e.emit("destroy", id, c.spec.Labels)
	return nil
}

func (e *Engine) Inspect(ctx context.Context, id string) (*engine.ContainerInspect, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, err := e.get(id)
	if err != nil {
		return nil, err
	}
	state := "exited"
	if c.running {
		state = "running"
	}
	return &engine.ContainerInspect{
		ID: c.id, Name: c.name, Image: c.image, State: state, Running: c.running,
		ExitCode: c.exitCode, Labels: c.spec.Labels,
	}, nil
}

func (e *Engine) List(ctx context.Context, labelFilters map[string]string) ([]engine.ContainerSummary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []engine.ContainerSummary
	for _, c := range e.containers {
		if !matchLabels(c.spec.Labels, labelFilters) {
			continue
		}
		state := "exited"
		if c.running {
			state = "running"
		}
		out = append(out, engine.ContainerSummary{ID: c.id, Names: []string{c.name}, Image: c.image, State: state, Labels: c.spec.Labels})
	}
	return out, nil
}

func matchLabels(have, want map[string]string) bool {
	for k, v := range want {
		if have[k] != v {
			return false
		}
	}
	return true
}

func (e *Engine) Wait(ctx context.Context, id string, condition model.WaitCondition) (<-chan engine.ExitStatus, error) {
	e.mu.Lock()
	c, err := e.get(id)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	exitCode, scripted := e.ExitCodes[c.image]
	e.mu.Unlock()

	ch := make(chan engine.ExitStatus, 1)
	if !scripted {
		exitCode = 0
	}
	e.mu.Lock()
	c.exitCode = exitCode
	c.running = false
	e.mu.Unlock()
	ch <- engine.ExitStatus{ExitCode: exitCode}
	close(ch)
	return ch, nil
}

func (e *Engine) Logs(ctx context.Context, id string, opts engine.LogsOptions) (<-chan engine.LogChunk, error) {
	ch := make(chan engine.LogChunk)
	close(ch)
	return ch, nil
}

func (e *Engine) Stats(ctx context.Context, id string, interval time.Duration) (<-chan engine.Stats, error) {
	ch := make(chan engine.Stats, 1)
	ch <- engine.Stats{Timestamp: time.Now()}
	close(ch)
	return ch, nil
}

func (e *Engine) Exec(ctx context.Context, id string, create engine.CreateExec) (string, error) {
	if _, err := e.get(id); err != nil {
		return "", err
	}
	return "exec-" + id, nil
}

func (e *Engine) StartExec(ctx context.Context, execID string, tty bool) (<-chan engine.LogChunk, error) {
	ch := make(chan engine.LogChunk)
	close(ch)
	return ch, nil
}

func (e *Engine) InspectExec(ctx context.Context, execID string) (*engine.ExecInspect, error) {
	code := 0
	return &engine.ExecInspect{Running: false, ExitCode: &code}, nil
}

func (e *Engine) Events(ctx context.Context, labelFilters map[string]string) (<-chan engine.RawEvent, error) {
	return e.events, nil
}

func (e *Engine) Attach(ctx context.Context, id string, opts engine.AttachOptions) (engine.AttachConn, error) {
	if _, err := e.get(id); err != nil {
		return nil, err
	}
	return nil, engine.NewError(engine.Fatal, "attach", fmt.Errorf("fake engine does not support attach"))
}

var _ engine.Engine = (*Engine)(nil)
