package manager

import (
	"context"
	"fmt"

	"github.com/frobware/go-hostif"
)

// CreateExternal registers an object owned by another part of the
// switch so host interfaces, router interfaces and table entries can
// reference it.
func (m *Manager) CreateExternal(ctx context.Context, t hostif.ObjectType, label string) (hostif.External, error) {
	if !t.External() {
		return hostif.External{}, hostif.ValueError{Attr: "type", Reason: fmt.Sprintf("%s is not an external object type", t)}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e := hostif.External{ID: m.reg.NextID(t), Label: label}
	_, err := m.create(ctx, e, nil)
	if err != nil {
		e = hostif.External{}
	}
	m.logResult(ctx, "create", t, e.ID, err, "label", label)
	return e, err
}

// RemoveExternal unregisters an external object. It fails with
// ErrInUse while anything references it.
func (m *Manager) RemoveExternal(ctx context.Context, id hostif.ObjectID) error {
	if !id.Type().External() {
		return hostif.NotFoundError{ID: id}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	_, err := m.remove(ctx, id)
	m.logResult(ctx, "remove", id.Type(), id, err)
	return err
}
