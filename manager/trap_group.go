package manager

import (
	"context"

	"github.com/frobware/go-hostif"
)

var policerRef = hostif.TypeSet(hostif.ObjectTypePolicer)

// CreateTrapGroup creates a trap group. AdminState defaults to true.
func (m *Manager) CreateTrapGroup(ctx context.Context, spec hostif.TrapGroupSpec) (hostif.TrapGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, err := m.createTrapGroup(ctx, spec)
	m.logResult(ctx, "create", hostif.ObjectTypeTrapGroup, g.ID, err,
		"admin_state", g.AdminState, "queue", g.Queue)
	return g, err
}

func (m *Manager) createTrapGroup(ctx context.Context, spec hostif.TrapGroupSpec) (hostif.TrapGroup, error) {
	if err := m.checkRef("policer", spec.Policer, policerRef, false); err != nil {
		return hostif.TrapGroup{}, err
	}
	g := hostif.TrapGroup{
		ID:         m.reg.NextID(hostif.ObjectTypeTrapGroup),
		AdminState: true,
		Queue:      spec.Queue,
		Policer:    spec.Policer,
	}
	if spec.AdminState != nil {
		g.AdminState = *spec.AdminState
	}
	if _, err := m.create(ctx, g, nil); err != nil {
		return hostif.TrapGroup{}, err
	}
	return g, nil
}

// RemoveTrapGroup removes a trap group. It fails with ErrInUse while
// any trap belongs to the group.
func (m *Manager) RemoveTrapGroup(ctx context.Context, id hostif.ObjectID) error {
	if err := checkType(id, hostif.ObjectTypeTrapGroup); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	_, err := m.remove(ctx, id)
	m.logResult(ctx, "remove", hostif.ObjectTypeTrapGroup, id, err)
	return err
}

// GetTrapGroup returns a live trap group.
func (m *Manager) GetTrapGroup(_ context.Context, id hostif.ObjectID) (hostif.TrapGroup, error) {
	return getLocked[hostif.TrapGroup](m, id)
}

func (m *Manager) applyTrapGroup(g hostif.TrapGroup, attr hostif.Attribute) (hostif.TrapGroup, error) {
	switch a := attr.(type) {
	case hostif.TrapGroupAdminState:
		g.AdminState = a.Value
	case hostif.TrapGroupQueue:
		g.Queue = a.Value
	case hostif.TrapGroupPolicer:
		if err := m.checkRef("policer", a.Value, policerRef, false); err != nil {
			return g, err
		}
		g.Policer = a.Value
	default:
		return g, unsupported(hostif.ObjectTypeTrapGroup, attr)
	}
	return g, nil
}
