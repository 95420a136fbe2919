package model

import "time"

// ObjPsStatus is the process-status state machine every lifecycle-bearing
// object (Cargo, Vm, Job) carries (spec.md §3, §4.5). Transitions are
// applied by compare-and-swap on Actual: a writer must read the current
// row, set PrevActual/PrevWanted to what it read, and the store rejects
// the update if PrevActual no longer matches what is stored.
type ObjPsStatus struct {
	Key         string          `json:"key"` // == owning object's key
	Wanted      ObjPsStatusKind `json:"wanted"`
	PrevWanted  ObjPsStatusKind `json:"prev_wanted"`
	Actual      ObjPsStatusKind `json:"actual"`
	PrevActual  ObjPsStatusKind `json:"prev_actual"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Cargo is the object row for a long-running, optionally replicated set of
// containers. SpecKey points at the currently active Spec history row.
type Cargo struct {
	Key       string      `json:"key"` // "<namespace>-<name>"
	Name      string      `json:"name"`
	Namespace string      `json:"namespace"`
	SpecKey   string      `json:"spec_key"`
	Status    ObjPsStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}

// Vm is the object row for a single QEMU-backed virtual machine.
type Vm struct {
	Key       string      `json:"key"`
	Name      string      `json:"name"`
	Namespace string      `json:"namespace"`
	SpecKey   string      `json:"spec_key"`
	Status    ObjPsStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}

// Job is the object row for a run-to-completion workload, optionally
// scheduled on a cron expression.
type Job struct {
	Key       string      `json:"key"` // job name; jobs are not namespaced
	Name      string      `json:"name"`
	SpecKey   string      `json:"spec_key"`
	Status    ObjPsStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Resource is the object row for an opaque, process-less configuration
// object consumed by other components (e.g. proxy rules).
type Resource struct {
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	SpecKey   string    `json:"spec_key"`
	CreatedAt time.Time `json:"created_at"`
}

// Secret is the object row for opaque sensitive data, optionally flattened
// into cargo container envs by the instance manager (spec.md §4.6.2).
type Secret struct {
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	SpecKey   string    `json:"spec_key"`
	CreatedAt time.Time `json:"created_at"`
}

// Process is the row tracking one live engine container, regardless of
// which kind of object owns it (spec.md §3: one row per container, not
// per object — a replicated Cargo owns many Process rows).
type Process struct {
	Key         string            `json:"key"` // engine container id
	Name        string            `json:"name"`
	Kind        Kind              `json:"kind"`
	OwnerKey    string            `json:"owner_key"` // Cargo/Vm/Job key
	NodeKey     string            `json:"node_key"`
	Labels      map[string]string `json:"labels,omitempty"`
	Data        []byte            `json:"data,omitempty"` // opaque engine inspect snapshot
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Event is an append-only row plus live fan-out via the event bus
// (spec.md §3, §4.3).
type Event struct {
	Key       string    `json:"key"`
	Kind      EventKind `json:"kind"`
	Reason    string    `json:"reason"`
	Action    string    `json:"action"` // e.g. "create", "start", "die", "destroy"
	ActorKey  string    `json:"actor_key"`
	ActorKind Kind      `json:"actor_kind"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
