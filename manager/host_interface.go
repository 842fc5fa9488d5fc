package manager

import (
	"context"
	"fmt"

	"github.com/frobware/go-hostif"
)

// netdevObjectRef is the set of objects a netdev host interface may be
// bound to.
var netdevObjectRef = hostif.TypeSet(
	hostif.ObjectTypePort,
	hostif.ObjectTypeLAG,
	hostif.ObjectTypeVLAN,
	hostif.ObjectTypeSystemPort,
	hostif.ObjectTypeRouterInterface,
)

// CreateHostInterface creates a host interface and, when the manager
// has device operations, materialises its OS endpoint. A failure to
// persist destroys the endpoint again.
func (m *Manager) CreateHostInterface(ctx context.Context, spec hostif.HostInterfaceSpec) (hostif.HostInterface, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, device, err := m.createHostInterface(ctx, spec)
	m.logResult(ctx, "create", hostif.ObjectTypeHostInterface, h.ID, err,
		"hostif_type", spec.Type, "name", spec.Name, "device", device)
	return h, err
}

func (m *Manager) createHostInterface(ctx context.Context, spec hostif.HostInterfaceSpec) (hostif.HostInterface, string, error) {
	if err := m.validateHostInterface(spec); err != nil {
		return hostif.HostInterface{}, "", err
	}
	h := hostif.HostInterface{
		ID:        m.reg.NextID(hostif.ObjectTypeHostInterface),
		Type:      spec.Type,
		Object:    spec.Object,
		Name:      spec.Name,
		McgrpName: spec.McgrpName,
	}
	device, err := m.create(ctx, h, func() (string, error) {
		return m.devices.MaterializeDevice(ctx, h)
	})
	if err != nil {
		return hostif.HostInterface{}, "", err
	}
	return h, device, nil
}

func (m *Manager) validateHostInterface(spec hostif.HostInterfaceSpec) error {
	switch spec.Type {
	case hostif.HostifTypeNetdev:
		if err := m.checkRef("object", spec.Object, netdevObjectRef, true); err != nil {
			return err
		}
		if err := checkNetdevName(spec.Name); err != nil {
			return err
		}
		if spec.McgrpName != "" {
			return hostif.ValueError{Attr: "mcgrp_name", Reason: "only valid for genetlink host interfaces"}
		}
	case hostif.HostifTypeGenetlink:
		if err := forbid("object", spec.Object, "for genetlink host interfaces"); err != nil {
			return err
		}
		if err := checkName("name", spec.Name, hostif.NameSize); err != nil {
			return err
		}
		if spec.McgrpName != "" {
			if err := checkName("mcgrp_name", spec.McgrpName, hostif.GenetlinkMcgrpNameSize); err != nil {
				return err
			}
		}
	case hostif.HostifTypeFD:
		if err := forbid("object", spec.Object, "for fd host interfaces"); err != nil {
			return err
		}
		if spec.Name != "" {
			return hostif.ValueError{Attr: "name", Reason: "not allowed for fd host interfaces"}
		}
		if spec.McgrpName != "" {
			return hostif.ValueError{Attr: "mcgrp_name", Reason: "only valid for genetlink host interfaces"}
		}
	default:
		return hostif.ValueError{Attr: "type", Reason: fmt.Sprintf("unknown host interface type %s", spec.Type)}
	}

	probe := hostif.HostInterface{Type: spec.Type, Name: spec.Name, McgrpName: spec.McgrpName}
	if k, ok := hostifNameKey(probe); ok {
		if prev, ok := m.hostifNames[k]; ok {
			return hostif.DuplicateKeyError{Key: describeNameKey(k), Existing: prev}
		}
	}
	return nil
}

// RemoveHostInterface removes a host interface and destroys its OS
// endpoint. It fails with ErrInUse while a table entry targets it.
func (m *Manager) RemoveHostInterface(ctx context.Context, id hostif.ObjectID) error {
	if err := checkType(id, hostif.ObjectTypeHostInterface); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	device := m.deviceHandles[id]
	_, err := m.remove(ctx, id)
	m.logResult(ctx, "remove", hostif.ObjectTypeHostInterface, id, err, "device", device)
	return err
}

// GetHostInterface returns a live host interface.
func (m *Manager) GetHostInterface(_ context.Context, id hostif.ObjectID) (hostif.HostInterface, error) {
	return getLocked[hostif.HostInterface](m, id)
}
