package manager

import (
	"context"
	"fmt"

	"github.com/frobware/go-hostif"
)

var trapGroupRef = hostif.TypeSet(hostif.ObjectTypeTrapGroup)

// CreateTrap creates the trap for a trap type. At most one trap exists
// per trap type. Priority may only be supplied for trap and copy
// actions and defaults to the minimum ACL priority.
func (m *Manager) CreateTrap(ctx context.Context, spec hostif.TrapSpec) (hostif.Trap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.createTrap(ctx, spec)
	m.logResult(ctx, "create", hostif.ObjectTypeTrap, t.ID, err,
		"trap_type", spec.TrapType, "action", spec.PacketAction)
	return t, err
}

func (m *Manager) createTrap(ctx context.Context, spec hostif.TrapSpec) (hostif.Trap, error) {
	if !spec.TrapType.Valid() {
		return hostif.Trap{}, hostif.ValueError{Attr: "trap_type", Reason: fmt.Sprintf("%s is outside the trap type ranges", spec.TrapType)}
	}
	if !spec.PacketAction.Valid() {
		return hostif.Trap{}, hostif.ValueError{Attr: "packet_action", Reason: fmt.Sprintf("unknown action %s", spec.PacketAction)}
	}
	if prev, ok := m.trapsByType[spec.TrapType]; ok {
		return hostif.Trap{}, hostif.DuplicateKeyError{Key: "trap type " + spec.TrapType.String(), Existing: prev}
	}
	priority := m.minPriority
	if spec.Priority != nil {
		if !spec.PacketAction.TakesPriority() {
			return hostif.Trap{}, hostif.ValueError{Attr: "priority", Reason: fmt.Sprintf("only valid with trap or copy action, not %s", spec.PacketAction)}
		}
		if err := m.checkPriority(*spec.Priority); err != nil {
			return hostif.Trap{}, err
		}
		priority = *spec.Priority
	}
	if err := m.checkRef("group", spec.Group, trapGroupRef, true); err != nil {
		return hostif.Trap{}, err
	}

	t := hostif.Trap{
		ID:           m.reg.NextID(hostif.ObjectTypeTrap),
		TrapType:     spec.TrapType,
		PacketAction: spec.PacketAction,
		Priority:     priority,
		Group:        spec.Group,
	}
	if _, err := m.create(ctx, t, nil); err != nil {
		return hostif.Trap{}, err
	}
	return t, nil
}

func (m *Manager) checkPriority(p uint32) error {
	if p < m.minPriority || p > m.maxPriority {
		return hostif.ValueError{Attr: "priority", Reason: fmt.Sprintf("%d is outside [%d, %d]", p, m.minPriority, m.maxPriority)}
	}
	return nil
}

// RemoveTrap removes a trap. It fails with ErrInUse while a table
// entry references it.
func (m *Manager) RemoveTrap(ctx context.Context, id hostif.ObjectID) error {
	if err := checkType(id, hostif.ObjectTypeTrap); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	_, err := m.remove(ctx, id)
	m.logResult(ctx, "remove", hostif.ObjectTypeTrap, id, err)
	return err
}

// GetTrap returns a live trap.
func (m *Manager) GetTrap(_ context.Context, id hostif.ObjectID) (hostif.Trap, error) {
	return getLocked[hostif.Trap](m, id)
}

// applyTrap applies one attribute to a copy of t. Changing the action
// keeps the stored priority, which only takes effect while the action
// is trap or copy.
func (m *Manager) applyTrap(t hostif.Trap, attr hostif.Attribute) (hostif.Trap, error) {
	switch a := attr.(type) {
	case hostif.TrapPacketAction:
		if !a.Value.Valid() {
			return t, hostif.ValueError{Attr: "packet_action", Reason: fmt.Sprintf("unknown action %s", a.Value)}
		}
		t.PacketAction = a.Value
	case hostif.TrapPriority:
		if !t.PacketAction.TakesPriority() {
			return t, hostif.ValueError{Attr: "priority", Reason: fmt.Sprintf("only valid with trap or copy action, not %s", t.PacketAction)}
		}
		if err := m.checkPriority(a.Value); err != nil {
			return t, err
		}
		t.Priority = a.Value
	case hostif.TrapGroupRef:
		if err := m.checkRef("group", a.Value, trapGroupRef, true); err != nil {
			return t, err
		}
		t.Group = a.Value
	case hostif.TrapTypeAttr:
		return t, hostif.ImmutableError{Type: hostif.ObjectTypeTrap, Attr: attr.Name()}
	default:
		return t, unsupported(hostif.ObjectTypeTrap, attr)
	}
	return t, nil
}
