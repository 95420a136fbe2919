package instance

import (
	"context"
	"fmt"

	coreerrors "github.com/next-hat/nanocl-sub000/infrastructure/errors"
	"github.com/next-hat/nanocl-sub000/internal/model"
	"github.com/next-hat/nanocl-sub000/internal/store"
)

// CreateVm translates a VmSpec into a QEMU-wrapping container (spec.md
// §4.6.4) and creates (but does not start) it.
func (m *Manager) CreateVm(ctx context.Context, namespace string, spec model.VmSpec) (*model.Vm, error) {
	if namespace == "" {
		namespace = spec.Namespace
	}
	if namespace == "" {
		namespace = model.GlobalNamespace
	}
	key := namespace + "-" + spec.Name
	if _, err := m.store.ReadObjectByKey(ctx, model.KindVm, key); err == nil {
		return nil, coreerrors.ErrConflict(fmt.Sprintf("vm %q already exists", key))
	}

	data, err := encodeJSON(spec)
	if err != nil {
		return nil, coreerrors.ErrInvalidInput("spec", err.Error())
	}
	specRow, err := m.store.CreateSpec(ctx, model.KindVm, key, data, "1")
	if err != nil {
		return nil, err
	}
	obj, err := m.store.CreateObject(ctx, store.Object{Key: key, Name: spec.Name, Namespace: namespace, Kind: model.KindVm, SpecKey: specRow.Key})
	if err != nil {
		return nil, err
	}

	containerSpec := vmContainerSpec(spec)
	containerSpec.Labels = model.VmLabels(key, namespace, containerSpec.Labels)
	if err := m.ensureImage(ctx, containerSpec.Image, model.PullIfNotPresent); err != nil {
		return nil, err
	}

	name := model.VmInstanceName(spec.Name, namespace)
	id, createErr := m.engine.CreateContainer(ctx, name, containerSpec)
	if createErr != nil {
		return nil, translateEngineErr("create_container", createErr)
	}
	if _, err := m.store.UpsertProcess(ctx, store.ProcessPartial{
		Key: id, Name: name, Kind: model.KindVm, OwnerKey: key, NodeKey: m.node.Key, Labels: containerSpec.Labels,
	}); err != nil {
		m.log.WithContext(ctx).WithError(err).Warn("process row upsert failed after vm create_container")
	}

	return &model.Vm{Key: obj.Key, Name: obj.Name, Namespace: obj.Namespace, SpecKey: obj.SpecKey, CreatedAt: obj.CreatedAt}, nil
}

// StartVm starts the vm's single container instance.
func (m *Manager) StartVm(ctx context.Context, vmKey string) error {
	procs, err := m.store.ReadProcessesByKindKey(ctx, model.KindVm, vmKey)
	if err != nil {
		return err
	}
	for _, p := range procs {
		if err := m.status.RetryTransient(ctx, vmKey, model.KindVm, func() error {
			return translateEngineErr("start", m.engine.Start(ctx, p.Key))
		}); err != nil {
			return err
		}
	}
	return m.status.MarkStarted(ctx, vmKey, model.KindVm)
}

// StopVm stops the vm's single container instance.
func (m *Manager) StopVm(ctx context.Context, vmKey string) error {
	procs, err := m.store.ReadProcessesByKindKey(ctx, model.KindVm, vmKey)
	if err != nil {
		return err
	}
	for _, p := range procs {
		if err := translateEngineErr("stop", m.engine.Stop(ctx, p.Key, nil)); err != nil {
			return err
		}
	}
	return m.status.MarkStopped(ctx, vmKey, model.KindVm)
}

// DeleteVm emits destroying, removes the container instance and the object
// row.
func (m *Manager) DeleteVm(ctx context.Context, vmKey string) error {
	if err := m.status.EmitDestroying(ctx, vmKey, model.KindVm); err != nil {
		return err
	}
	procs, err := m.store.ReadProcessesByKindKey(ctx, model.KindVm, vmKey)
	if err != nil {
		return err
	}
	for _, p := range procs {
		if err := translateEngineErr("remove", m.engine.Remove(ctx, p.Key, true)); err != nil {
			return err
		}
		m.store.DeleteProcess(ctx, p.Key)
	}
	return m.status.MarkRemoved(ctx, vmKey, model.KindVm)
}

// vmContainerSpec builds the QEMU container's normalized spec (spec.md
// §4.6.4).
func vmContainerSpec(spec model.VmSpec) model.ContainerSpec {
	cpu := spec.Cpu
	if cpu <= 0 {
		cpu = 1
	}
	memory := spec.MemoryMB
	if memory <= 0 {
		memory = 512
	}

	cmd := []string{"-hda", spec.ImagePath, "--nographic", "-smp", fmt.Sprintf("%d", cpu), "-m", fmt.Sprintf("%dM", memory)}
	if spec.HostConfig.Kvm {
		cmd = append(cmd, "-accel", "kvm")
	}

	image := spec.HostConfig.Runtime
	if image == "" {
		image = defaultVmRuntime
	}

	devices := []model.Device{
		{PathOnHost: "/dev/net/tun", PathInContainer: "/dev/net/tun", CgroupPermissions: "rwm"},
	}
	if spec.HostConfig.Kvm {
		devices = append(devices, model.Device{PathOnHost: "/dev/kvm", PathInContainer: "/dev/kvm", CgroupPermissions: "rwm"})
	}

	env := []string{
		"DEFAULT_INTERFACE=eth0",
		"FROM_NETWORK=" + spec.HostConfig.NetworkMode,
	}
	if spec.DeleteSSHKey {
		env = append(env, "DELETE_SSH_KEY=true")
	}
	if spec.User != "" {
		env = append(env, "USER="+spec.User)
	}
	if spec.Password != "" {
		env = append(env, "PASSWORD="+spec.Password)
	}
	if spec.SSHKey != "" {
		env = append(env, "SSH_KEY="+spec.SSHKey)
	}

	networkMode := spec.HostConfig.NetworkMode
	if networkMode == "" {
		networkMode = defaultNetworkMode
	}

	binds := append([]string{}, spec.HostConfig.Binds...)

	return model.ContainerSpec{
		Image: image,
		Cmd:   cmd,
		Env:   env,
		HostConfig: model.HostConfig{
			Binds:       binds,
			NetworkMode: networkMode,
			Devices:     devices,
			CapAdd:      []string{"NET_ADMIN"},
		},
	}
}
