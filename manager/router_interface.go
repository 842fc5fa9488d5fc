package manager

import (
	"context"
	"fmt"

	"github.com/frobware/go-hostif"
)

var (
	virtualRouterRef = hostif.TypeSet(hostif.ObjectTypeVirtualRouter)
	rifPortRef       = hostif.TypeSet(hostif.ObjectTypePort, hostif.ObjectTypeLAG, hostif.ObjectTypeSystemPort)
)

// CreateRouterInterface creates a router interface. Port and sub_port
// interfaces must carry a port, LAG or system port attachment and every
// other type must not.
func (m *Manager) CreateRouterInterface(ctx context.Context, spec hostif.RouterInterfaceSpec) (hostif.RouterInterface, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := m.createRouterInterface(ctx, spec)
	m.logResult(ctx, "create", hostif.ObjectTypeRouterInterface, r.ID, err, "rif_type", spec.Type)
	return r, err
}

func (m *Manager) createRouterInterface(ctx context.Context, spec hostif.RouterInterfaceSpec) (hostif.RouterInterface, error) {
	if !spec.Type.Valid() {
		return hostif.RouterInterface{}, hostif.ValueError{Attr: "type", Reason: fmt.Sprintf("unknown router interface type %s", spec.Type)}
	}
	if err := m.checkRef("virtual_router", spec.VirtualRouter, virtualRouterRef, true); err != nil {
		return hostif.RouterInterface{}, err
	}
	if spec.Type.RequiresPort() {
		if err := m.checkRef("port", spec.Port, rifPortRef, true); err != nil {
			return hostif.RouterInterface{}, err
		}
	} else if err := forbid("port", spec.Port, "for "+spec.Type.String()+" router interfaces"); err != nil {
		return hostif.RouterInterface{}, err
	}

	r := hostif.RouterInterface{
		ID:            m.reg.NextID(hostif.ObjectTypeRouterInterface),
		VirtualRouter: spec.VirtualRouter,
		Type:          spec.Type,
		Port:          spec.Port,
	}
	if _, err := m.create(ctx, r, nil); err != nil {
		return hostif.RouterInterface{}, err
	}
	return r, nil
}

// RemoveRouterInterface removes a router interface. It fails with
// ErrInUse while a host interface or table entry references it.
func (m *Manager) RemoveRouterInterface(ctx context.Context, id hostif.ObjectID) error {
	if err := checkType(id, hostif.ObjectTypeRouterInterface); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	_, err := m.remove(ctx, id)
	m.logResult(ctx, "remove", hostif.ObjectTypeRouterInterface, id, err)
	return err
}

// GetRouterInterface returns a live router interface.
func (m *Manager) GetRouterInterface(_ context.Context, id hostif.ObjectID) (hostif.RouterInterface, error) {
	return getLocked[hostif.RouterInterface](m, id)
}
