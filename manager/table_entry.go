package manager

import (
	"context"
	"fmt"

	"github.com/frobware/go-hostif"
)

var (
	trapRef   = hostif.TypeSet(hostif.ObjectTypeTrap)
	hostifRef = hostif.TypeSet(hostif.ObjectTypeHostInterface)
)

// CreateTableEntry creates a table entry. The fields an entry carries
// depend on its type and channel:
//
//	type      object              trap
//	port      port                required
//	lag       lag                 required
//	vlan      vlan or rif         required
//	trap_id   -                   required
//	wildcard  -                   -
//
// fd and genetlink channels need a target host interface of the same
// kind. No two entries may share a match key.
func (m *Manager) CreateTableEntry(ctx context.Context, spec hostif.TableEntrySpec) (hostif.TableEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.createTableEntry(ctx, spec)
	m.logResult(ctx, "create", hostif.ObjectTypeTableEntry, e.ID, err,
		"entry_type", spec.Type, "channel", spec.Channel)
	return e, err
}

func (m *Manager) createTableEntry(ctx context.Context, spec hostif.TableEntrySpec) (hostif.TableEntry, error) {
	if err := m.validateTableEntry(spec); err != nil {
		return hostif.TableEntry{}, err
	}
	e := hostif.TableEntry{
		ID:      m.reg.NextID(hostif.ObjectTypeTableEntry),
		Type:    spec.Type,
		Object:  spec.Object,
		Trap:    spec.Trap,
		Channel: spec.Channel,
		HostIf:  spec.HostIf,
	}
	if prev, ok := m.res.Occupant(e); ok {
		return hostif.TableEntry{}, hostif.DuplicateKeyError{Key: describeEntryKey(e), Existing: prev.ID}
	}
	if _, err := m.create(ctx, e, nil); err != nil {
		return hostif.TableEntry{}, err
	}
	return e, nil
}

func (m *Manager) validateTableEntry(spec hostif.TableEntrySpec) error {
	if !spec.Type.Valid() {
		return hostif.ValueError{Attr: "type", Reason: fmt.Sprintf("unknown table entry type %s", spec.Type)}
	}
	if !spec.Channel.Valid() {
		return hostif.ValueError{Attr: "channel", Reason: fmt.Sprintf("unknown channel type %s", spec.Channel)}
	}

	if spec.Type.MatchesObject() {
		if err := m.checkRef("object", spec.Object, spec.Type.ObjectTypes(), true); err != nil {
			return err
		}
	} else if err := forbid("object", spec.Object, "for "+spec.Type.String()+" entries"); err != nil {
		return err
	}

	if spec.Type.MatchesTrap() {
		if err := m.checkRef("trap", spec.Trap, trapRef, true); err != nil {
			return err
		}
	} else if err := forbid("trap", spec.Trap, "for "+spec.Type.String()+" entries"); err != nil {
		return err
	}

	want, needs := spec.Channel.HostifType()
	if !needs {
		return forbid("hostif", spec.HostIf, "for the "+spec.Channel.String()+" channel")
	}
	if err := m.checkRef("hostif", spec.HostIf, hostifRef, true); err != nil {
		return err
	}
	target, err := get[hostif.HostInterface](m, spec.HostIf)
	if err != nil {
		return hostif.ReferenceError{Attr: "hostif", ID: spec.HostIf, Want: hostifRef, Err: err}
	}
	if target.Type != want {
		return hostif.ValueError{Attr: "hostif", Reason: fmt.Sprintf("%s channel needs a %s host interface, %s is %s", spec.Channel, want, target.ID, target.Type)}
	}
	return nil
}

func describeEntryKey(e hostif.TableEntry) string {
	switch {
	case e.Type.MatchesObject():
		return fmt.Sprintf("%s entry for %s and %s", e.Type, e.Object, e.Trap)
	case e.Type.MatchesTrap():
		return fmt.Sprintf("%s entry for %s", e.Type, e.Trap)
	default:
		return fmt.Sprintf("%s entry", e.Type)
	}
}

// RemoveTableEntry removes a table entry from the resolver table.
func (m *Manager) RemoveTableEntry(ctx context.Context, id hostif.ObjectID) error {
	if err := checkType(id, hostif.ObjectTypeTableEntry); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	_, err := m.remove(ctx, id)
	m.logResult(ctx, "remove", hostif.ObjectTypeTableEntry, id, err)
	return err
}

// GetTableEntry returns a live table entry.
func (m *Manager) GetTableEntry(_ context.Context, id hostif.ObjectID) (hostif.TableEntry, error) {
	return getLocked[hostif.TableEntry](m, id)
}
