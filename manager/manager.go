// Package manager implements the host interface engine's object
// managers on top of the registry and resolver, using the
// fetch/compute/execute pattern.
//
// # Mutation Model
//
// Every create, set and remove is all-or-nothing:
//
//  1. FETCH and COMPUTE: validate the request against the registry
//     and derive the new record. Nothing has changed yet.
//  2. EXECUTE: materialise or destroy the OS device, if any, and write
//     the record and its arena slot to the store in one transaction.
//     A failure here is undone in reverse order.
//  3. COMMIT: apply the change to the in-memory registry and resolver.
//     Validation has already guaranteed this cannot fail.
//
// Mutations hold the manager's write lock for their whole duration,
// so no two mutations interleave and no reference can dangle. Reads
// take the read lock. Resolve only takes the resolver's per-partition
// locks and so never waits on unrelated mutations.
package manager

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/frobware/go-hostif"
	"github.com/frobware/go-hostif/action"
	"github.com/frobware/go-hostif/interpreter"
	"github.com/frobware/go-hostif/metrics"
	"github.com/frobware/go-hostif/registry"
	"github.com/frobware/go-hostif/resolver"
)

// Default ACL priority bounds. The minimum is also the default trap
// priority.
const (
	DefaultMinPriority uint32 = 1
	DefaultMaxPriority uint32 = 0xffff
)

// Manager owns the object registry and the resolver table and
// serialises every mutation of them.
type Manager struct {
	mu sync.RWMutex

	reg      *registry.Registry
	res      *resolver.Resolver
	store    interpreter.Store
	devices  interpreter.DeviceOperations
	executor interpreter.ActionExecutor

	// Secondary indexes, rebuilt from the registry on restore.
	trapsByType   map[hostif.TrapType]hostif.ObjectID
	hostifNames   map[nameKey]hostif.ObjectID
	deviceHandles map[hostif.ObjectID]string

	minPriority uint32
	maxPriority uint32

	metrics *metrics.Metrics
	logger  *slog.Logger
}

// nameKey scopes host interface name uniqueness: netdev names are
// unique among netdev interfaces, and (family, group) pairs among
// genetlink interfaces.
type nameKey struct {
	kind  hostif.HostifType
	name  string
	group string
}

func hostifNameKey(h hostif.HostInterface) (nameKey, bool) {
	switch h.Type {
	case hostif.HostifTypeNetdev:
		return nameKey{kind: h.Type, name: h.Name}, true
	case hostif.HostifTypeGenetlink:
		return nameKey{kind: h.Type, name: h.Name, group: h.McgrpName}, true
	default:
		return nameKey{}, false
	}
}

// Option configures a Manager.
type Option func(*Manager)

// WithPriorityRange sets the ACL priority bounds traps may use. The
// minimum is the default trap priority.
func WithPriorityRange(minPriority, maxPriority uint32) Option {
	return func(m *Manager) {
		m.minPriority = minPriority
		m.maxPriority = maxPriority
	}
}

// WithMetrics records manager activity in mx.
func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mx
	}
}

// New creates a Manager backed by store, restoring every object the
// store holds. devices may be nil, in which case host interfaces are
// kept as declarative records only.
func New(ctx context.Context, store interpreter.Store, devices interpreter.DeviceOperations, logger *slog.Logger, opts ...Option) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if devices == nil {
		devices = interpreter.NoDevices{}
	}
	m := &Manager{
		reg:           registry.New(),
		res:           resolver.New(),
		store:         store,
		devices:       devices,
		executor:      interpreter.NewExecutor(store, devices),
		trapsByType:   make(map[hostif.TrapType]hostif.ObjectID),
		hostifNames:   make(map[nameKey]hostif.ObjectID),
		deviceHandles: make(map[hostif.ObjectID]string),
		minPriority:   DefaultMinPriority,
		maxPriority:   DefaultMaxPriority,
		logger:        WithOpIDHandler(logger).With("component", "manager"),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.minPriority > m.maxPriority {
		return nil, fmt.Errorf("invalid priority range [%d, %d]", m.minPriority, m.maxPriority)
	}
	if err := m.restore(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// PriorityRange returns the ACL priority bounds traps may use.
func (m *Manager) PriorityRange() (minPriority, maxPriority uint32) {
	return m.minPriority, m.maxPriority
}

// Verify interface compliance at compile time.
var _ hostif.API = (*Manager)(nil)

// Get returns any live object by handle.
func (m *Manager) Get(_ context.Context, id hostif.ObjectID) (hostif.Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reg.Get(id)
}

// get returns the live object id names if it has type want.
func get[T hostif.Object](m *Manager, id hostif.ObjectID) (T, error) {
	var zero T
	obj, err := m.reg.Get(id)
	if err != nil {
		return zero, err
	}
	v, ok := obj.(T)
	if !ok {
		return zero, hostif.NotFoundError{ID: id}
	}
	return v, nil
}

func getLocked[T hostif.Object](m *Manager, id hostif.ObjectID) (T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return get[T](m, id)
}

// List returns every live object of type t in handle order.
func (m *Manager) List(_ context.Context, t hostif.ObjectType) ([]hostif.Object, error) {
	if !t.Valid() {
		return nil, hostif.ValueError{Attr: "type", Reason: fmt.Sprintf("unknown object type %s", t)}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reg.List(t), nil
}

// Dependents returns the live objects that reference id.
func (m *Manager) Dependents(_ context.Context, id hostif.ObjectID) ([]hostif.ObjectID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reg.Dependents(id)
}

// Device returns the OS handle materialised for a host interface, or
// the empty string when it has none.
func (m *Manager) Device(id hostif.ObjectID) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.deviceHandles[id]
}

// Remove removes any object by handle, dispatching on its type.
func (m *Manager) Remove(ctx context.Context, id hostif.ObjectID) error {
	switch t := id.Type(); {
	case t.External():
		return m.RemoveExternal(ctx, id)
	case t == hostif.ObjectTypeTrapGroup:
		return m.RemoveTrapGroup(ctx, id)
	case t == hostif.ObjectTypeTrap:
		return m.RemoveTrap(ctx, id)
	case t == hostif.ObjectTypeHostInterface:
		return m.RemoveHostInterface(ctx, id)
	case t == hostif.ObjectTypeRouterInterface:
		return m.RemoveRouterInterface(ctx, id)
	case t == hostif.ObjectTypeTableEntry:
		return m.RemoveTableEntry(ctx, id)
	default:
		return hostif.NotFoundError{ID: id}
	}
}

// create runs the EXECUTE and COMMIT phases for a validated new
// object. materialize, when non-nil, produces the OS device and is
// undone if persisting fails. Callers hold the write lock.
func (m *Manager) create(ctx context.Context, obj hostif.Object, materialize func() (string, error)) (string, error) {
	id := obj.ObjectID()
	var undo undoStack

	var device string
	if materialize != nil {
		dev, err := materialize()
		if err != nil {
			m.metrics.DeviceError("materialize")
			return "", fmt.Errorf("materialize device for %s: %w", id, err)
		}
		device = dev
		if device != "" {
			undo.push(func() error {
				return m.devices.DestroyDevice(ctx, device)
			})
		}
	}

	slot := registry.SlotState{Index: id.Index(), Generation: id.Generation(), Type: id.Type()}
	err := m.executor.Execute(ctx, action.Transaction{Actions: []action.Action{
		action.SaveSlot{State: slot},
		action.SaveObject{Object: obj, Device: device},
	}})
	if err != nil {
		m.logger.ErrorContext(ctx, "persist failed, rolling back", "id", id, "error", err)
		if rbErr := undo.rollback(m.logger); rbErr != nil {
			return "", fmt.Errorf("persist %s: %w (rollback: %v)", id, err, rbErr)
		}
		return "", fmt.Errorf("persist %s: %w", id, err)
	}

	if _, err := m.reg.Insert(id.Type(), func(hostif.ObjectID) hostif.Object { return obj }); err != nil {
		// Validation ran under the same lock, so this is a bug.
		return "", fmt.Errorf("commit %s: %w", id, err)
	}
	if err := m.index(obj); err != nil {
		return "", fmt.Errorf("commit %s: %w", id, err)
	}
	if device != "" {
		m.deviceHandles[id] = device
	}
	m.metrics.SetObjects(id.Type(), m.reg.Count(id.Type()))
	return device, nil
}

// remove runs all phases of removing id. Callers hold the write lock
// and have checked the handle's type.
func (m *Manager) remove(ctx context.Context, id hostif.ObjectID) (hostif.Object, error) {
	// FETCH
	obj, err := m.reg.Get(id)
	if err != nil {
		return nil, err
	}
	blockers, err := m.reg.Dependents(id)
	if err != nil {
		return nil, err
	}
	if len(blockers) > 0 {
		return nil, hostif.InUseError{ID: id, Blockers: blockers}
	}

	// COMPUTE
	device := m.deviceHandles[id]
	freed := registry.SlotState{Index: id.Index(), Generation: registry.NextGeneration(id.Generation())}
	persist := action.Transaction{Actions: []action.Action{
		action.DeleteObject{ID: id},
		action.SaveSlot{State: freed},
	}}

	// EXECUTE
	if err := m.executor.Execute(ctx, persist); err != nil {
		return nil, fmt.Errorf("persist removal of %s: %w", id, err)
	}
	if device != "" {
		if err := m.executor.Execute(ctx, action.DestroyDevice{Handle: device}); err != nil {
			m.metrics.DeviceError("destroy")
			m.logger.ErrorContext(ctx, "destroy device failed, restoring record", "id", id, "device", device, "error", err)
			restore := action.Transaction{Actions: []action.Action{
				action.SaveSlot{State: registry.SlotState{Index: id.Index(), Generation: id.Generation(), Type: id.Type()}},
				action.SaveObject{Object: obj, Device: device},
			}}
			if rbErr := m.executor.Execute(ctx, restore); rbErr != nil {
				m.logger.ErrorContext(ctx, "rollback failed", "id", id, "error", rbErr)
				return nil, fmt.Errorf("destroy device %s: %w (rollback: %v)", device, err, rbErr)
			}
			return nil, fmt.Errorf("destroy device %s: %w", device, err)
		}
	}

	// COMMIT
	if _, err := m.reg.Remove(id); err != nil {
		return nil, fmt.Errorf("commit removal of %s: %w", id, err)
	}
	m.unindex(obj)
	delete(m.deviceHandles, id)
	m.metrics.SetObjects(id.Type(), m.reg.Count(id.Type()))
	return obj, nil
}

// replace persists and commits an updated record for a live object.
// Callers hold the write lock and have validated obj.
func (m *Manager) replace(ctx context.Context, obj hostif.Object) error {
	id := obj.ObjectID()
	err := m.executor.Execute(ctx, action.SaveObject{Object: obj, Device: m.deviceHandles[id]})
	if err != nil {
		return fmt.Errorf("persist %s: %w", id, err)
	}
	if err := m.reg.Replace(obj); err != nil {
		return fmt.Errorf("commit %s: %w", id, err)
	}
	return nil
}

// checkType rejects a handle whose type tag is not want. The handle is
// reported as not found: it cannot name an object of the expected kind.
func checkType(id hostif.ObjectID, want hostif.ObjectType) error {
	if id.Type() != want {
		return hostif.NotFoundError{ID: id}
	}
	return nil
}

// logResult logs a mutation outcome: successes at info, rejections at
// debug. It also feeds the mutation counter.
func (m *Manager) logResult(ctx context.Context, op string, t hostif.ObjectType, id hostif.ObjectID, err error, attrs ...any) {
	m.metrics.Mutation(op, t, err)
	if err != nil {
		m.logger.DebugContext(ctx, op+" rejected", append([]any{"type", t, "id", id, "error", err}, attrs...)...)
		return
	}
	m.logger.InfoContext(ctx, op, append([]any{"type", t, "id", id}, attrs...)...)
}
