package model

import "time"

// SystemNamespace and GlobalNamespace are the two namespaces the daemon
// guarantees exist at boot (spec.md §9's boot/init superset decision).
const (
	SystemNamespace = "system"
	GlobalNamespace = "global"
)

// Namespace groups cargoes and VMs; it maps one-to-one to an engine network.
type Namespace struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Node is the local daemon's registration row, written at boot and read by
// the instance manager to populate NANOCL_NODE/NANOCL_NODE_ADDR envs.
type Node struct {
	Key           string    `json:"key"` // hostname
	IPAddress     string    `json:"ip_address"`
	AdvertiseAddr string    `json:"advertise_addr"`
	CreatedAt     time.Time `json:"created_at"`
}
