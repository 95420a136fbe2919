package model

import "time"

// Spec is an append-only history row. The "current" spec of an object is
// whichever row object.SpecKey points at; reverting an object means
// pointing SpecKey back at an older Spec row, never mutating one in place.
type Spec struct {
	Key       string    `json:"key"` // UUID
	Kind      Kind      `json:"kind"`
	OwnerKey  string    `json:"owner_key"`
	Version   string    `json:"version"`
	Data      []byte    `json:"data"` // opaque JSON body, kind-specific
	CreatedAt time.Time `json:"created_at"`
}

// ContainerSpec is the normalized container creation record the instance
// manager builds and the engine adapter consumes (spec.md §4.2).
type ContainerSpec struct {
	Image       string            `json:"image"`
	Env         []string          `json:"env,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	Cmd         []string          `json:"cmd,omitempty"`
	Entrypoint  []string          `json:"entrypoint,omitempty"`
	Hostname    string            `json:"hostname,omitempty"`
	Tty         bool              `json:"tty,omitempty"`
	HostConfig  HostConfig        `json:"host_config,omitempty"`
}

// HostConfig mirrors the engine-facing host configuration knobs the core
// needs to set, never the engine's full native struct.
type HostConfig struct {
	Binds         []string `json:"binds,omitempty"`
	NetworkMode   string   `json:"network_mode,omitempty"`
	RestartPolicy string   `json:"restart_policy,omitempty"`
	AutoRemove    bool     `json:"auto_remove,omitempty"`
	Devices       []Device `json:"devices,omitempty"`
	CapAdd        []string `json:"cap_add,omitempty"`
	Runtime       string   `json:"runtime,omitempty"` // VM qemu runtime image
	Kvm           bool     `json:"kvm,omitempty"`
}

// Device is a host device mapped into the container (e.g. /dev/kvm).
type Device struct {
	PathOnHost        string `json:"path_on_host"`
	PathInContainer   string `json:"path_in_container"`
	CgroupPermissions string `json:"cgroup_permissions"` // e.g. "rwm"
}

// CargoSpec is the declared state of a Cargo: a set of long-running
// containers sharing one spec, optionally replicated.
type CargoSpec struct {
	Name           string            `json:"name"`
	Namespace      string            `json:"namespace,omitempty"`
	Container      ContainerSpec     `json:"container"`
	InitContainer  *ContainerSpec    `json:"init_container,omitempty"`
	Replication    ReplicationMode   `json:"replication,omitempty"`
	Secrets        []string          `json:"secrets,omitempty"`
	ImagePullPolicy PullPolicy       `json:"image_pull_policy,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Replicas resolves the declared replication mode to a concrete instance
// count (spec.md §4.6.2: Static{n} -> n, otherwise 1).
func (s CargoSpec) Replicas() int {
	if s.Replication.Static > 0 {
		return s.Replication.Static
	}
	return 1
}

// VmSpec is the declared state of a VM, translated by the instance manager
// into a QEMU-wrapping container (spec.md §4.6.4).
type VmSpec struct {
	Name       string            `json:"name"`
	Namespace  string            `json:"namespace,omitempty"`
	ImagePath  string            `json:"image_path"`
	Cpu        int               `json:"cpu,omitempty"`
	MemoryMB   int               `json:"memory_mb,omitempty"`
	HostConfig HostConfig        `json:"host_config,omitempty"`
	User       string            `json:"user,omitempty"`
	Password   string            `json:"password,omitempty"`
	SSHKey     string            `json:"ssh_key,omitempty"`
	DeleteSSHKey bool            `json:"delete_ssh_key,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// JobContainerSpec is one sub-container of a Job.
type JobContainerSpec struct {
	Container ContainerSpec `json:"container"`
}

// JobSpec is the declared state of a Job: N sub-containers run to
// completion, optionally on a cron schedule.
type JobSpec struct {
	Name            string             `json:"name"`
	Schedule        string             `json:"schedule,omitempty"`
	ImagePullPolicy PullPolicy         `json:"image_pull_policy,omitempty"`
	Containers      []JobContainerSpec `json:"containers"`
	Metadata        map[string]string  `json:"metadata,omitempty"`
}

// ResourceSpec and SecretSpec are opaque-data kinds with no process status.
type ResourceSpec struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Data []byte `json:"data"`
}

// SecretEnvKind is the SecretSpec.Kind value the instance manager flattens
// into container envs (spec.md §4.6.2).
const SecretEnvKind = "nanocl.io/env"

type SecretSpec struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Data []byte `json:"data"` // opaque; for Kind==SecretEnvKind, JSON array of "K=V" strings
}
