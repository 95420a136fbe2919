// Package engine defines the container engine adapter boundary (spec.md
// §4.2): the capability set the core needs from whatever container runtime
// backs it, normalized away from any single engine's native types.
package engine

import (
	"context"
	"io"
	"time"

	"github.com/next-hat/nanocl-sub000/internal/model"
)

// ErrorKind is the narrower error taxonomy EngineError uses; the core
// reclassifies it into the full errors.Kind set at the boundary.
type ErrorKind string

const (
	NotFound ErrorKind = "not_found"
	Conflict ErrorKind = "conflict"
	Transient ErrorKind = "transient"
	Fatal     ErrorKind = "fatal"
)

// EngineError is what every Engine method returns on failure.
type EngineError struct {
	Kind      ErrorKind
	Operation string
	Err       error
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return e.Operation + ": " + string(e.Kind) + ": " + e.Err.Error()
	}
	return e.Operation + ": " + string(e.Kind)
}

func (e *EngineError) Unwrap() error { return e.Err }

func NewError(kind ErrorKind, operation string, err error) *EngineError {
	return &EngineError{Kind: kind, Operation: operation, Err: err}
}

// PullProgress is one frame of a pull_image stream.
type PullProgress struct {
	Status   string
	Progress string
	Done     bool
}

// ContainerInspect is the normalized subset of engine inspect data the core
// consumes.
type ContainerInspect struct {
	ID         string
	Name       string
	Image      string
	State      string // "created", "running", "exited", ...
	Running    bool
	ExitCode   int
	Labels     map[string]string
	StartedAt  time.Time
	FinishedAt time.Time
}

// ContainerSummary is the normalized subset list() returns.
type ContainerSummary struct {
	ID     string
	Names  []string
	Image  string
	State  string
	Labels map[string]string
}

// ExitStatus is what a wait() stream ultimately yields.
type ExitStatus struct {
	ExitCode int
	Err      error
}

// LogChunk is one frame from logs()/attach()/start_exec().
type LogChunk struct {
	Stream string // "stdout" or "stderr"
	Bytes  []byte
}

// Stats is one frame from stats().
type Stats struct {
	CPUPercent float64
	MemUsage   uint64
	MemLimit   uint64
	Timestamp  time.Time
}

// RawEvent is one frame from events().
type RawEvent struct {
	Type       string
	Action     string
	ActorID    string
	Attributes map[string]string
	Timestamp  time.Time
}

// CreateExec describes an exec session to launch inside a running container.
type CreateExec struct {
	Cmd          []string
	Env          []string
	AttachStdout bool
	AttachStderr bool
	Tty          bool
}

// ExecInspect is what inspect_exec() returns.
type ExecInspect struct {
	Running  bool
	ExitCode *int
}

// LogsOptions parameterizes logs().
type LogsOptions struct {
	Follow     bool
	Since      time.Time
	Tail       string
	Timestamps bool
}

// AttachOptions parameterizes attach().
type AttachOptions struct {
	Stdin  bool
	Stdout bool
	Stderr bool
}

// AttachConn is the duplex stream attach() returns: Reader yields engine
// output, Writer forwards caller input to the container's stdin.
type AttachConn interface {
	io.Reader
	io.Writer
	io.Closer
}

// Engine is the capability set C2 exposes. Every method's error, when
// non-nil, is an *EngineError.
type Engine interface {
	PullImage(ctx context.Context, ref string, policy model.PullPolicy) (<-chan PullProgress, error)
	InspectImage(ctx context.Context, ref string) error // nil if present, NotFound otherwise

	CreateContainer(ctx context.Context, name string, spec model.ContainerSpec) (string, error)
	Start(ctx context.Context, id string) error
	Stop(ctx context.Context, id string, timeout *time.Duration) error
	Kill(ctx context.Context, id string, signal string) error
	Restart(ctx context.Context, id string) error
	Remove(ctx context.Context, id string, force bool) error

	Inspect(ctx context.Context, id string) (*ContainerInspect, error)
	List(ctx context.Context, labelFilters map[string]string) ([]ContainerSummary, error)
	Wait(ctx context.Context, id string, condition model.WaitCondition) (<-chan ExitStatus, error)

	Logs(ctx context.Context, id string, opts LogsOptions) (<-chan LogChunk, error)
	Stats(ctx context.Context, id string, interval time.Duration) (<-chan Stats, error)

	Exec(ctx context.Context, id string, create CreateExec) (string, error)
	StartExec(ctx context.Context, execID string, tty bool) (<-chan LogChunk, error)
	InspectExec(ctx context.Context, execID string) (*ExecInspect, error)

	Events(ctx context.Context, labelFilters map[string]string) (<-chan RawEvent, error)
	Attach(ctx context.Context, id string, opts AttachOptions) (AttachConn, error)
}
