// Package model defines the core object types the daemon persists and
// reconciles: namespaces, specs (with history), the lifecycle-bearing
// objects built on top of them, processes, events, and the node row.
package model

// Kind identifies which object family a Spec/Process/Event belongs to.
type Kind string

const (
	KindCargo    Kind = "Cargo"
	KindVm       Kind = "Vm"
	KindJob      Kind = "Job"
	KindResource Kind = "Resource"
	KindSecret   Kind = "Secret"
)

// ObjPsStatusKind is one state in the process-status machine every
// lifecycle-bearing object (Cargo, Vm, Job) carries.
type ObjPsStatusKind string

const (
	StatusCreate     ObjPsStatusKind = "Create"
	StatusStarting   ObjPsStatusKind = "Starting"
	StatusStart      ObjPsStatusKind = "Start"
	StatusStopping   ObjPsStatusKind = "Stopping"
	StatusStop       ObjPsStatusKind = "Stop"
	StatusFinish     ObjPsStatusKind = "Finish"
	StatusFail       ObjPsStatusKind = "Fail"
	StatusDestroying ObjPsStatusKind = "Destroying"
	StatusDestroy    ObjPsStatusKind = "Destroy"
	StatusUnknown    ObjPsStatusKind = "Unknown"
)

// EventKind classifies the severity of an Event row.
type EventKind string

const (
	EventNormal  EventKind = "Normal"
	EventWarning EventKind = "Warning"
	EventError   EventKind = "Error"
)

// ReplicationMode describes how many instances a CargoSpec wants.
type ReplicationMode struct {
	// Static pins the replica count. Zero means "unset" — callers should
	// treat an unset Static as "1" (see CargoSpec.Replicas).
	Static int `json:"static,omitempty" yaml:"static,omitempty"`
}

// PullPolicy controls when the engine adapter pulls an image.
type PullPolicy string

const (
	PullAlways       PullPolicy = "Always"
	PullIfNotPresent PullPolicy = "IfNotPresent"
	PullNever        PullPolicy = "Never"
)

// WaitCondition parameterizes Engine.Wait and the C8 wait verb.
type WaitCondition string

const (
	WaitNotRunning WaitCondition = "NotRunning"
	WaitNextExit   WaitCondition = "NextExit"
	WaitRemoved    WaitCondition = "Removed"
)
