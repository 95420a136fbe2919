// Package dockerengine implements engine.Engine against a real Docker
// daemon via github.com/docker/docker/client, the adapter the daemon uses
// outside of tests.
package dockerengine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"

	"github.com/next-hat/nanocl-sub000/internal/engine"
	"github.com/next-hat/nanocl-sub000/internal/model"
)

// Engine wraps a docker client.Client.
type Engine struct {
	cli *client.Client
}

// New connects using the standard DOCKER_HOST/DOCKER_* env conventions.
func New() (*Engine, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("connect docker engine: %w", err)
	}
	return &Engine{cli: cli}, nil
}

// classify maps a docker client error to the narrower EngineError kind.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case client.IsErrNotFound(err):
		return engine.NewError(engine.NotFound, op, err)
	case client.IsErrConnectionFailed(err):
		return engine.NewError(engine.Transient, op, err)
	default:
		return engine.NewError(engine.Fatal, op, err)
	}
}

func (e *Engine) PullImage(ctx context.Context, ref string, policy model.PullPolicy) (<-chan engine.PullProgress, error) {
	if policy == model.PullIfNotPresent {
		if err := e.InspectImage(ctx, ref); err == nil {
			ch := make(chan engine.PullProgress, 1)
			ch <- engine.PullProgress{Status: "already present", Done: true}
			close(ch)
			return ch, nil
		}
	}
	if policy == model.PullNever {
		return nil, engine.NewError(engine.Fatal, "pull_image", fmt.Errorf("image %q absent and policy is Never", ref))
	}

	rc, err := e.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return nil, classify("pull_image", err)
	}

	ch := make(chan engine.PullProgress, 16)
	go func() {
		defer close(ch)
		defer rc.Close()
		scanner := bufio.NewScanner(rc)
		for scanner.Scan() {
			select {
			case ch <- engine.PullProgress{Status: scanner.Text()}:
			case <-ctx.Done():
				return
			}
		}
		ch <- engine.PullProgress{Status: "done", Done: true}
	}()
	return ch, nil
}

func (e *Engine) InspectImage(ctx context.Context, ref string) error {
	_, err := e.cli.ImageInspect(ctx, ref)
	return classify("inspect_image", err)
}

func toContainerConfig(name string, spec model.ContainerSpec) (*container.Config, *container.HostConfig) {
	cfg := &container.Config{
		Image:      spec.Image,
		Env:        spec.Env,
		Labels:     spec.Labels,
		Cmd:        spec.Cmd,
		Entrypoint: spec.Entrypoint,
		Hostname:   spec.Hostname,
		Tty:        spec.Tty,
	}
	hostCfg := &container.HostConfig{
		Binds:       spec.HostConfig.Binds,
		NetworkMode: container.NetworkMode(spec.HostConfig.NetworkMode),
		CapAdd:      spec.HostConfig.CapAdd,
		AutoRemove:  spec.HostConfig.AutoRemove,
	}
	if spec.HostConfig.RestartPolicy != "" {
		hostCfg.RestartPolicy = container.RestartPolicy{Name: container.RestartPolicyMode(spec.HostConfig.RestartPolicy)}
	}
	for _, d := range spec.HostConfig.Devices {
		hostCfg.Resources.Devices = append(hostCfg.Resources.Devices, container.DeviceMapping{
			PathOnHost:        d.PathOnHost,
			PathInContainer:   d.PathInContainer,
			CgroupPermissions: d.CgroupPermissions,
		})
	}
	return cfg, hostCfg
}

func (e *Engine) CreateContainer(ctx context.Context, name string, spec model.ContainerSpec) (string, error) {
	cfg, hostCfg := toContainerConfig(name, spec)
	resp, err := e.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, name)
	if err != nil {
		return "", classify("create_container", err)
	}
	return resp.ID, nil
}

func (e *Engine) Start(ctx context.Context, id string) error {
	return classify("start", e.cli.ContainerStart(ctx, id, container.StartOptions{}))
}

func (e *Engine) Stop(ctx context.Context, id string, timeout *time.Duration) error {
	opts := container.StopOptions{}
	if timeout != nil {
		secs := int(timeout.Seconds())
		opts.Timeout = &secs
	}
	return classify("stop", e.cli.ContainerStop(ctx, id, opts))
}

func (e *Engine) Kill(ctx context.Context, id string, signal string) error {
	return classify("kill", e.cli.ContainerKill(ctx, id, signal))
}

func (e *Engine) Restart(ctx context.Context, id string) error {
	return classify("restart", e.cli.ContainerRestart(ctx, id, container.StopOptions{}))
}

func (e *Engine) Remove(ctx context.Context, id string, force bool) error {
	return classify("remove", e.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: force}))
}

func (e *Engine) Inspect(ctx context.Context, id string) (*engine.ContainerInspect, error) {
	info, err := e.cli.ContainerInspect(ctx, id)
	if err != nil {
		return nil, classify("inspect", err)
	}
	out := &engine.ContainerInspect{
		ID:     info.ID,
		Name:   info.Name,
		Image:  info.Config.Image,
		Labels: info.Config.Labels,
	}
	if info.State != nil {
		out.State = info.State.Status
		out.Running = info.State.Running
		out.ExitCode = info.State.ExitCode
		if t, err := time.Parse(time.RFC3339Nano, info.State.StartedAt); err == nil {
			out.StartedAt = t
		}
		if t, err := time.Parse(time.RFC3339Nano, info.State.FinishedAt); err == nil {
			out.FinishedAt = t
		}
	}
	return out, nil
}

func (e *Engine) List(ctx context.Context, labelFilters map[string]string) ([]engine.ContainerSummary, error) {
	args := filters.NewArgs()
	for k, v := range labelFilters {
		args.Add("label", fmt.Sprintf("%s=%s", k, v))
	}
	summaries, err := e.cli.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		return nil, classify("list", err)
	}
	out := make([]engine.ContainerSummary, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, engine.ContainerSummary{ID: s.ID, Names: s.Names, Image: s.Image, State: s.State, Labels: s.Labels})
	}
	return out, nil
}

func (e *Engine) Wait(ctx context.Context, id string, condition model.WaitCondition) (<-chan engine.ExitStatus, error) {
	var cond container.WaitCondition
	switch condition {
	case model.WaitNextExit:
		cond = container.WaitConditionNextExit
	case model.WaitRemoved:
		cond = container.WaitConditionRemoved
	default:
		cond = container.WaitConditionNotRunning
	}
	bodyCh, errCh := e.cli.ContainerWait(ctx, id, cond)
	out := make(chan engine.ExitStatus, 1)
	go func() {
		defer close(out)
		select {
		case body := <-bodyCh:
			var waitErr error
			if body.Error != nil {
				waitErr = fmt.Errorf("%s", body.Error.Message)
			}
			out <- engine.ExitStatus{ExitCode: int(body.StatusCode), Err: waitErr}
		case err := <-errCh:
			out <- engine.ExitStatus{Err: classify("wait", err)}
		case <-ctx.Done():
		}
	}()
	return out, nil
}

func (e *Engine) Logs(ctx context.Context, id string, opts engine.LogsOptions) (<-chan engine.LogChunk, error) {
	rc, err := e.cli.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true, ShowStderr: true, Follow: opts.Follow, Tail: opts.Tail, Timestamps: opts.Timestamps,
	})
	if err != nil {
		return nil, classify("logs", err)
	}
	ch := make(chan engine.LogChunk, 16)
	go streamDemuxed(ctx, rc, ch)
	return ch, nil
}

// streamDemuxed forwards the docker log stream as raw reads of up to 4096
// bytes, each tagged "stdout". It does not parse the 8-byte header docker
// prefixes each multiplexed frame with, so headers stay in the data and
// stdout and stderr are not told apart.
func streamDemuxed(ctx context.Context, rc io.ReadCloser, ch chan<- engine.LogChunk) {
	defer close(ch)
	defer rc.Close()
	buf := make([]byte, 4096)
	for {
		n, err := rc.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case ch <- engine.LogChunk{Stream: "stdout", Bytes: chunk}:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (e *Engine) Stats(ctx context.Context, id string, interval time.Duration) (<-chan engine.Stats, error) {
	ch := make(chan engine.Stats, 1)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				resp, err := e.cli.ContainerStats(ctx, id, false)
				if err != nil {
					return
				}
				resp.Body.Close()
				ch <- engine.Stats{Timestamp: time.Now()}
			}
		}
	}()
	return ch, nil
}

func (e *Engine) Exec(ctx context.Context, id string, create engine.CreateExec) (string, error) {
	resp, err := e.cli.ContainerExecCreate(ctx, id, container.ExecOptions{
		Cmd: create.Cmd, Env: create.Env, AttachStdout: create.AttachStdout,
		AttachStderr: create.AttachStderr, Tty: create.Tty,
	})
	if err != nil {
		return "", classify("exec", err)
	}
	return resp.ID, nil
}

func (e *Engine) StartExec(ctx context.Context, execID string, tty bool) (<-chan engine.LogChunk, error) {
	hijacked, err := e.cli.ContainerExecAttach(ctx, execID, container.ExecAttachOptions{Tty: tty})
	if err != nil {
		return nil, classify("start_exec", err)
	}
	ch := make(chan engine.LogChunk, 16)
	go streamDemuxed(ctx, hijacked.Conn, ch)
	return ch, nil
}

func (e *Engine) InspectExec(ctx context.Context, execID string) (*engine.ExecInspect, error) {
	info, err := e.cli.ContainerExecInspect(ctx, execID)
	if err != nil {
		return nil, classify("inspect_exec", err)
	}
	out := &engine.ExecInspect{Running: info.Running}
	if !info.Running {
		code := info.ExitCode
		out.ExitCode = &code
	}
	return out, nil
}

func (e *Engine) Events(ctx context.Context, labelFilters map[string]string) (<-chan engine.RawEvent, error) {
	args := filters.NewArgs()
	args.Add("type", string(events.ContainerEventType))
	for k, v := range labelFilters {
		args.Add("label", fmt.Sprintf("%s=%s", k, v))
	}
	msgCh, errCh := e.cli.Events(ctx, events.ListOptions{Filters: args})

	out := make(chan engine.RawEvent, 64)
	go func() {
		defer close(out)
		for {
			select {
			case msg := <-msgCh:
				out <- engine.RawEvent{
					Type:       string(msg.Type),
					Action:     string(msg.Action),
					ActorID:    msg.Actor.ID,
					Attributes: msg.Actor.Attributes,
					Timestamp:  time.Unix(0, msg.TimeNano),
				}
			case <-errCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

type hijackedConn struct {
	io.Reader
	io.Writer
	closer func()
}

func (h *hijackedConn) Close() error {
	h.closer()
	return nil
}

func (e *Engine) Attach(ctx context.Context, id string, opts engine.AttachOptions) (engine.AttachConn, error) {
	hijacked, err := e.cli.ContainerAttach(ctx, id, container.AttachOptions{
		Stream: true, Stdin: opts.Stdin, Stdout: opts.Stdout, Stderr: opts.Stderr,
	})
	if err != nil {
		return nil, classify("attach", err)
	}
	return &hijackedConn{Reader: hijacked.Reader, Writer: hijacked.Conn, closer: hijacked.Close}, nil
}

var _ engine.Engine = (*Engine)(nil)
