package manager

import (
	"context"
	"fmt"

	"github.com/frobware/go-hostif"
)

// Set applies attribute updates to a live object in order. Either all
// of them take effect or none do. Host interface, router interface and
// table entry attributes are create-only.
func (m *Manager) Set(ctx context.Context, id hostif.ObjectID, attrs ...hostif.Attribute) (hostif.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, err := m.set(ctx, id, attrs)
	names := make([]string, 0, len(attrs))
	for _, a := range attrs {
		names = append(names, a.Name())
	}
	m.logResult(ctx, "set", id.Type(), id, err, "attrs", names)
	return obj, err
}

func (m *Manager) set(ctx context.Context, id hostif.ObjectID, attrs []hostif.Attribute) (hostif.Object, error) {
	// FETCH
	obj, err := m.reg.Get(id)
	if err != nil {
		return nil, err
	}
	for _, a := range attrs {
		if a.ObjectType() != id.Type() {
			return nil, unsupported(id.Type(), a)
		}
	}
	if len(attrs) == 0 {
		return obj, nil
	}

	// COMPUTE
	var updated hostif.Object
	switch o := obj.(type) {
	case hostif.TrapGroup:
		for _, a := range attrs {
			if o, err = m.applyTrapGroup(o, a); err != nil {
				return nil, err
			}
		}
		updated = o
	case hostif.Trap:
		for _, a := range attrs {
			if o, err = m.applyTrap(o, a); err != nil {
				return nil, err
			}
		}
		updated = o
	case hostif.HostInterface, hostif.RouterInterface, hostif.TableEntry:
		return nil, hostif.ImmutableError{Type: id.Type(), Attr: attrs[0].Name()}
	default:
		return nil, unsupported(id.Type(), attrs[0])
	}

	// EXECUTE and COMMIT
	if err := m.replace(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

func unsupported(t hostif.ObjectType, attr hostif.Attribute) error {
	return hostif.ValueError{Attr: attr.Name(), Reason: fmt.Sprintf("not an attribute of %s", t)}
}
