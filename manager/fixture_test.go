package manager_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-hostif"
	"github.com/frobware/go-hostif/interpreter"
	"github.com/frobware/go-hostif/interpreter/store/sqlite"
	"github.com/frobware/go-hostif/manager"
)

// testLogger returns a logger for tests. By default it discards all output.
// Set HOSTIF_TEST_VERBOSE=1 to enable logging.
func testLogger() *slog.Logger {
	if os.Getenv("HOSTIF_TEST_VERBOSE") != "" {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// deviceOp records one call into fakeDevices.
type deviceOp struct {
	Op     string
	Handle string
	Err    error
}

// fakeDevices implements interpreter.DeviceOperations in memory.
type fakeDevices struct {
	mu         sync.Mutex
	live       map[string]hostif.HostInterface
	ops        []deviceOp
	failCreate map[string]error
	failDelete map[string]error
}

func newFakeDevices() *fakeDevices {
	return &fakeDevices{
		live:       make(map[string]hostif.HostInterface),
		failCreate: make(map[string]error),
		failDelete: make(map[string]error),
	}
}

func (f *fakeDevices) MaterializeDevice(_ context.Context, h hostif.HostInterface) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	handle := fmt.Sprintf("%s:%s", h.Type, h.Name)
	if h.Type == hostif.HostifTypeFD {
		handle = fmt.Sprintf("fd:%d", h.ID.Index())
	}
	if err := f.failCreate[h.Name]; err != nil {
		f.ops = append(f.ops, deviceOp{Op: "create", Handle: handle, Err: err})
		return "", err
	}
	f.live[handle] = h
	f.ops = append(f.ops, deviceOp{Op: "create", Handle: handle})
	return handle, nil
}

func (f *fakeDevices) DestroyDevice(_ context.Context, handle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failDelete[handle]; err != nil {
		f.ops = append(f.ops, deviceOp{Op: "destroy", Handle: handle, Err: err})
		return err
	}
	delete(f.live, handle)
	f.ops = append(f.ops, deviceOp{Op: "destroy", Handle: handle})
	return nil
}

// FailCreate makes materialising a host interface named name fail.
func (f *fakeDevices) FailCreate(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failCreate[name] = err
}

// FailDestroy makes destroying handle fail.
func (f *fakeDevices) FailDestroy(handle string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failDelete[handle] = err
}

func (f *fakeDevices) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

func (f *fakeDevices) Operations() []deviceOp {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]deviceOp(nil), f.ops...)
}

// faultyStore wraps a Store and fails SaveObject on demand, including
// inside transactions.
type faultyStore struct {
	interpreter.Store
	fail *error
}

func (s faultyStore) SaveObject(ctx context.Context, obj hostif.Object, device string) error {
	if *s.fail != nil {
		return *s.fail
	}
	return s.Store.SaveObject(ctx, obj, device)
}

func (s faultyStore) RunInTransaction(ctx context.Context, fn func(interpreter.Store) error) error {
	return s.Store.RunInTransaction(ctx, func(tx interpreter.Store) error {
		return fn(faultyStore{Store: tx, fail: s.fail})
	})
}

// testFixture provides access to all components for verification.
type testFixture struct {
	Manager *manager.Manager
	Devices *fakeDevices
	Store   interpreter.Store
	saveErr error
	t       *testing.T

	// Externals created by the fixture for tests to reference.
	Port, Port2, LAG, VLAN, SysPort, VR, Policer hostif.ObjectID
}

// newTestFixture creates a manager over an in-memory store with fake
// devices and one of each external object.
func newTestFixture(t *testing.T, opts ...manager.Option) *testFixture {
	t.Helper()
	store, err := sqlite.NewInMemory(context.Background(), testLogger())
	require.NoError(t, err, "failed to create store")
	t.Cleanup(func() { store.Close() })

	fix := &testFixture{Devices: newFakeDevices(), t: t}
	fix.Store = faultyStore{Store: store, fail: &fix.saveErr}
	mgr, err := manager.New(context.Background(), fix.Store, fix.Devices, testLogger(), opts...)
	require.NoError(t, err, "failed to create manager")
	fix.Manager = mgr

	fix.Port = fix.external(hostif.ObjectTypePort, "Ethernet0")
	fix.Port2 = fix.external(hostif.ObjectTypePort, "Ethernet4")
	fix.LAG = fix.external(hostif.ObjectTypeLAG, "PortChannel1")
	fix.VLAN = fix.external(hostif.ObjectTypeVLAN, "Vlan100")
	fix.SysPort = fix.external(hostif.ObjectTypeSystemPort, "sysport0")
	fix.VR = fix.external(hostif.ObjectTypeVirtualRouter, "default")
	fix.Policer = fix.external(hostif.ObjectTypePolicer, "copp")
	return fix
}

// FailSaves makes every subsequent object write fail with err, or
// succeed again when err is nil.
func (f *testFixture) FailSaves(err error) { f.saveErr = err }

func (f *testFixture) external(t hostif.ObjectType, label string) hostif.ObjectID {
	f.t.Helper()
	e, err := f.Manager.CreateExternal(context.Background(), t, label)
	require.NoError(f.t, err)
	return e.ID
}

func (f *testFixture) group() hostif.TrapGroup {
	f.t.Helper()
	g, err := f.Manager.CreateTrapGroup(context.Background(), hostif.TrapGroupSpec{Queue: 4})
	require.NoError(f.t, err)
	return g
}

func (f *testFixture) trap(tt hostif.TrapType, a hostif.PacketAction, group hostif.ObjectID) hostif.Trap {
	f.t.Helper()
	tr, err := f.Manager.CreateTrap(context.Background(), hostif.TrapSpec{TrapType: tt, PacketAction: a, Group: group})
	require.NoError(f.t, err)
	return tr
}

func (f *testFixture) entry(spec hostif.TableEntrySpec) hostif.TableEntry {
	f.t.Helper()
	e, err := f.Manager.CreateTableEntry(context.Background(), spec)
	require.NoError(f.t, err)
	return e
}

// Reopen builds a second manager over the same store, as after a
// restart.
func (f *testFixture) Reopen() *manager.Manager {
	f.t.Helper()
	mgr, err := manager.New(context.Background(), f.Store, f.Devices, testLogger())
	require.NoError(f.t, err, "restore should succeed")
	return mgr
}

// AssertDeviceOps verifies the sequence of device operations.
func (f *testFixture) AssertDeviceOps(expected []string) {
	f.t.Helper()
	ops := f.Devices.Operations()
	actual := make([]string, len(ops))
	for i, op := range ops {
		if op.Err != nil {
			actual[i] = fmt.Sprintf("%s:%s:error", op.Op, op.Handle)
		} else {
			actual[i] = fmt.Sprintf("%s:%s:ok", op.Op, op.Handle)
		}
	}
	assert.Equal(f.t, expected, actual, "device operations mismatch")
}

// AssertStored verifies the store holds exactly want objects of type t.
func (f *testFixture) AssertStored(t hostif.ObjectType, want int) {
	f.t.Helper()
	stored, err := f.Store.ListObjects(context.Background())
	require.NoError(f.t, err)
	n := 0
	for _, so := range stored {
		if so.Object.ObjectID().Type() == t {
			n++
		}
	}
	assert.Equal(f.t, want, n, "stored %s objects", t)
}
