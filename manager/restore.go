package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/frobware/go-hostif"
	"github.com/frobware/go-hostif/registry"
)

// restore rebuilds the registry, the resolver and the secondary
// indexes from the store. It runs once, before the manager is shared.
func (m *Manager) restore(ctx context.Context) error {
	start := time.Now()

	slots, err := m.store.ListSlots(ctx)
	if err != nil {
		return fmt.Errorf("restore: list slots: %w", err)
	}
	stored, err := m.store.ListObjects(ctx)
	if err != nil {
		return fmt.Errorf("restore: list objects: %w", err)
	}

	objects := make([]hostif.Object, 0, len(stored))
	for _, so := range stored {
		objects = append(objects, so.Object)
		if so.Device != "" {
			m.deviceHandles[so.Object.ObjectID()] = so.Device
		}
	}

	reg, err := registry.Restore(slots, objects)
	if err != nil {
		return err
	}
	m.reg = reg

	for _, obj := range objects {
		if err := m.index(obj); err != nil {
			return fmt.Errorf("restore %s: %w", obj.ObjectID(), err)
		}
	}

	for _, t := range []hostif.ObjectType{
		hostif.ObjectTypePort, hostif.ObjectTypeLAG, hostif.ObjectTypeVLAN,
		hostif.ObjectTypeSystemPort, hostif.ObjectTypeVirtualRouter, hostif.ObjectTypePolicer,
		hostif.ObjectTypeRouterInterface, hostif.ObjectTypeTrapGroup, hostif.ObjectTypeTrap,
		hostif.ObjectTypeHostInterface, hostif.ObjectTypeTableEntry,
	} {
		m.metrics.SetObjects(t, m.reg.Count(t))
	}

	if len(objects) > 0 {
		m.logger.InfoContext(ctx, "restored state",
			"objects", len(objects),
			"slots", len(slots),
			"devices", len(m.deviceHandles),
			"duration_ms", time.Since(start).Milliseconds())
	}
	return nil
}

// index adds a committed object to the secondary indexes and the
// resolver.
func (m *Manager) index(obj hostif.Object) error {
	switch o := obj.(type) {
	case hostif.Trap:
		if prev, ok := m.trapsByType[o.TrapType]; ok {
			return hostif.DuplicateKeyError{Key: "trap type " + o.TrapType.String(), Existing: prev}
		}
		m.trapsByType[o.TrapType] = o.ID
	case hostif.HostInterface:
		if k, ok := hostifNameKey(o); ok {
			if prev, ok := m.hostifNames[k]; ok {
				return hostif.DuplicateKeyError{Key: describeNameKey(k), Existing: prev}
			}
			m.hostifNames[k] = o.ID
		}
	case hostif.TableEntry:
		return m.res.Insert(o)
	}
	return nil
}

// unindex removes a removed object from the secondary indexes and the
// resolver.
func (m *Manager) unindex(obj hostif.Object) {
	switch o := obj.(type) {
	case hostif.Trap:
		if m.trapsByType[o.TrapType] == o.ID {
			delete(m.trapsByType, o.TrapType)
		}
	case hostif.HostInterface:
		if k, ok := hostifNameKey(o); ok && m.hostifNames[k] == o.ID {
			delete(m.hostifNames, k)
		}
	case hostif.TableEntry:
		m.res.Remove(o)
	}
}

func describeNameKey(k nameKey) string {
	if k.kind == hostif.HostifTypeGenetlink {
		if k.group == "" {
			return fmt.Sprintf("genetlink family %q", k.name)
		}
		return fmt.Sprintf("genetlink family %q group %q", k.name, k.group)
	}
	return fmt.Sprintf("netdev name %q", k.name)
}
