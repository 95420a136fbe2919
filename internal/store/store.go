// Package store defines the persistence boundary (spec.md §4.1): the only
// component that owns transactions. Every other component reaches the
// database exclusively through this interface; reconcilers serialize on the
// compare-and-swap semantics of UpdateStatus rather than on locks.
package store

import (
	"context"
	"time"

	"github.com/next-hat/nanocl-sub000/internal/model"
)

// ProcessPartial is the input to UpsertProcess: everything the process
// synchronizer learns from an engine inspect call.
type ProcessPartial struct {
	Key       string
	Name      string
	Kind      model.Kind
	OwnerKey  string
	NodeKey   string
	Labels    map[string]string
	Data      []byte
}

// EventPartial is the input to AppendEvent.
type EventPartial struct {
	Kind      model.EventKind
	Reason    string
	Action    string
	ActorKey  string
	ActorKind model.Kind
	Note      string
}

// StatusPatch updates an ObjPsStatus row under CAS. The write is rejected
// with a Conflict error unless the row's current Actual equals PrevActual.
type StatusPatch struct {
	Wanted     *model.ObjPsStatusKind
	Actual     *model.ObjPsStatusKind
	PrevWanted model.ObjPsStatusKind
	PrevActual model.ObjPsStatusKind
}

// Object is the common surface CRUD operations return, regardless of kind;
// callers type-assert Data to the concrete row (model.Cargo, model.Vm, ...).
type Object struct {
	Key       string
	Name      string
	Namespace string
	Kind      model.Kind
	SpecKey   string
	CreatedAt time.Time
	Data      interface{}
}

// Store is the persistence interface every other component depends on.
type Store interface {
	// Namespaces
	CreateNamespace(ctx context.Context, name string) (*model.Namespace, error)
	ReadNamespace(ctx context.Context, name string) (*model.Namespace, error)
	ListNamespaces(ctx context.Context, filter *model.Filter) ([]model.Namespace, error)
	DeleteNamespace(ctx context.Context, name string) error

	// Specs
	CreateSpec(ctx context.Context, kind model.Kind, ownerKey string, data []byte, version string) (*model.Spec, error)
	ReadSpec(ctx context.Context, specKey string) (*model.Spec, error)

	// Objects (Cargo/Vm/Job/Resource/Secret rows, addressed by Kind+Key)
	CreateObject(ctx context.Context, obj Object) (*Object, error)
	ReadObjectByKey(ctx context.Context, kind model.Kind, key string) (*Object, error)
	ReadByFilter(ctx context.Context, kind model.Kind, filter *model.Filter) ([]Object, error)
	UpdateObjectSpec(ctx context.Context, objectKey, newSpecKey string) error
	DeleteObject(ctx context.Context, objectKey string) error

	// Processes
	UpsertProcess(ctx context.Context, p ProcessPartial) (*model.Process, error)
	DeleteProcess(ctx context.Context, id string) error
	ReadProcessesByKindKey(ctx context.Context, kind model.Kind, ownerKey string) ([]model.Process, error)
	ListAllProcesses(ctx context.Context, filter *model.Filter) ([]model.Process, error)

	// Status, CAS
	ReadStatus(ctx context.Context, objectKey string) (*model.ObjPsStatus, error)
	UpdateStatus(ctx context.Context, objectKey string, patch StatusPatch) (*model.ObjPsStatus, error)

	// Events
	AppendEvent(ctx context.Context, e EventPartial) (*model.Event, error)
	ReadEvents(ctx context.Context, filter *model.Filter) ([]model.Event, error)

	// Nodes
	UpsertNode(ctx context.Context, n model.Node) (*model.Node, error)
	ReadNode(ctx context.Context, key string) (*model.Node, error)

	Close() error
}

// ErrCASConflict is returned (wrapped in a *errors.CoreError with Kind
// Conflict by implementations) when UpdateStatus loses the race.
const ErrCASConflict = "status update lost the compare-and-swap race"
