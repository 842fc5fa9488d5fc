package manager

import (
	"context"
	"errors"
	"fmt"

	"github.com/frobware/go-hostif"
	"github.com/frobware/go-hostif/resolver"
)

// Resolve returns the table entry that governs trap traffic arriving on
// attachment: an entry for the attachment and trap, else a trap_id
// entry for the trap, else the wildcard entry. It returns ErrNoMatch
// when none applies.
func (m *Manager) Resolve(_ context.Context, attachment, trap hostif.ObjectID) (hostif.Resolution, error) {
	r, err := m.res.Resolve(attachment, trap)
	m.metrics.Resolve(r.Level)
	return r, err
}

// ResolverStats returns the resolver's lookup counters.
func (m *Manager) ResolverStats() resolver.Stats {
	return m.res.Stats()
}

// Dispatch computes the delivery decision for a packet the pipeline
// classified as trapType on attachment. Undelivered outcomes are
// reported in the decision, not as errors.
func (m *Manager) Dispatch(ctx context.Context, attachment hostif.ObjectID, trapType hostif.TrapType) (hostif.Decision, error) {
	if !trapType.Valid() {
		return hostif.Decision{}, hostif.ValueError{Attr: "trap_type", Reason: fmt.Sprintf("%s is outside the trap type ranges", trapType)}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, err := m.dispatch(attachment, trapType)
	if err != nil {
		return hostif.Decision{}, err
	}
	m.metrics.Dispatch(d)
	m.logger.DebugContext(ctx, "dispatch",
		"attachment", attachment,
		"trap_type", trapType,
		"action", d.Action,
		"delivered", d.Delivered,
		"channel", d.Channel,
		"level", d.Level,
		"reason", d.Reason)
	return d, nil
}

func (m *Manager) dispatch(attachment hostif.ObjectID, trapType hostif.TrapType) (hostif.Decision, error) {
	d := hostif.Decision{Attachment: attachment, TrapType: trapType}

	trapID, ok := m.trapsByType[trapType]
	if !ok {
		d.Action = trapType.DefaultPacketAction()
		d.Reason = "no trap configured"
		return d, nil
	}
	trap, err := get[hostif.Trap](m, trapID)
	if err != nil {
		return d, fmt.Errorf("trap index names %s: %w", trapID, err)
	}
	group, err := get[hostif.TrapGroup](m, trap.Group)
	if err != nil {
		return d, fmt.Errorf("trap %s names group %s: %w", trap.ID, trap.Group, err)
	}

	d.Trap = trap.ID
	d.Action = trap.PacketAction
	if trap.PacketAction.TakesPriority() {
		d.Priority = trap.Priority
	}
	d.Group = group.ID
	d.Queue = group.Queue
	d.Policer = group.Policer

	switch {
	case !trap.PacketAction.PuntsToCPU():
		d.Reason = fmt.Sprintf("action %s does not punt to the cpu", trap.PacketAction)
		return d, nil
	case !group.AdminState:
		d.Reason = fmt.Sprintf("trap group %s is disabled", group.ID)
		return d, nil
	}

	r, err := m.res.Resolve(attachment, trap.ID)
	m.metrics.Resolve(r.Level)
	if errors.Is(err, hostif.ErrNoMatch) {
		d.Reason = "no table entry matched"
		return d, nil
	}
	if err != nil {
		return d, err
	}
	d.Delivered = true
	d.Channel = r.Entry.Channel
	d.HostIf = r.Entry.HostIf
	d.Entry = r.Entry.ID
	d.Level = r.Level
	if d.Channel == hostif.ChannelTypeNetdevPhysicalPort || d.Channel == hostif.ChannelTypeNetdevLogicalPort || d.Channel == hostif.ChannelTypeNetdevL3 {
		d.HostIf = m.netdevFor(attachment)
	}
	return d, nil
}

// netdevFor returns the netdev host interface bound to attachment, or
// null when there is none.
func (m *Manager) netdevFor(attachment hostif.ObjectID) hostif.ObjectID {
	if attachment.IsNull() {
		return hostif.NullObjectID
	}
	deps, err := m.reg.Dependents(attachment)
	if err != nil {
		return hostif.NullObjectID
	}
	for _, id := range deps {
		if id.Type() != hostif.ObjectTypeHostInterface {
			continue
		}
		if h, err := get[hostif.HostInterface](m, id); err == nil && h.Type == hostif.HostifTypeNetdev {
			return h.ID
		}
	}
	return hostif.NullObjectID
}
