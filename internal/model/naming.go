package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Required container labels every engine container managed by the daemon
// carries (spec.md §4.6.1).
const (
	LabelEnabled = "io.nanocl"    // "enabled"
	LabelKind    = "io.nanocl.kind"
	LabelCargo   = "io.nanocl.c"
	LabelVm      = "io.nanocl.v"
	LabelJob     = "io.nanocl.j"
	LabelNamespace = "io.nanocl.n"

	labelEnabledValue = "enabled"
)

// ShortID returns the 8-character id suffix used in instance names.
func ShortID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}

// CargoInstanceName builds "<cargo-name>-<short-id>.<namespace>.c".
func CargoInstanceName(cargoName, namespace, shortID string) string {
	return fmt.Sprintf("%s-%s.%s.c", cargoName, shortID, namespace)
}

// CargoInitInstanceName builds "init-<cargo-name>-<short-id>.<namespace>.c".
func CargoInitInstanceName(cargoName, namespace, shortID string) string {
	return fmt.Sprintf("init-%s-%s.%s.c", cargoName, shortID, namespace)
}

// VmInstanceName builds "<vm-name>.<namespace>.v".
func VmInstanceName(vmName, namespace string) string {
	return fmt.Sprintf("%s.%s.v", vmName, namespace)
}

// JobInstanceName builds "<job-name>-<index>-<short-id>.j".
func JobInstanceName(jobName string, index int, shortID string) string {
	return fmt.Sprintf("%s-%d-%s.j", jobName, index, shortID)
}

// InitLabel marks an init container; set to "true" alongside the owning
// cargo's LabelCargo value.
const InitLabel = "io.nanocl.init-c"

// CargoLabels returns the required label set for a cargo instance.
// cargoKey is the owning Cargo's object key (the LabelCargo value).
func CargoLabels(cargoKey, namespace string, extra map[string]string) map[string]string {
	return mergeLabels(KindCargo, LabelCargo, cargoKey, namespace, extra)
}

// VmLabels returns the required label set for a vm instance. vmKey is the
// owning Vm's object key (the LabelVm value).
func VmLabels(vmKey, namespace string, extra map[string]string) map[string]string {
	return mergeLabels(KindVm, LabelVm, vmKey, namespace, extra)
}

// JobLabels returns the required label set for a job instance. jobName is
// the owning Job's name (the LabelJob value); jobs are not namespaced.
func JobLabels(jobName string, extra map[string]string) map[string]string {
	return mergeLabels(KindJob, LabelJob, jobName, "", extra)
}

func mergeLabels(kind Kind, kindLabel, kindValue, namespace string, extra map[string]string) map[string]string {
	labels := map[string]string{
		LabelEnabled: labelEnabledValue,
		LabelKind:    string(kind),
		kindLabel:    kindValue,
	}
	if namespace != "" {
		labels[LabelNamespace] = namespace
	}
	for k, v := range extra {
		labels[k] = v
	}
	return labels
}
