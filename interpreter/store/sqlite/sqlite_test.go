package sqlite_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-hostif"
	"github.com/frobware/go-hostif/interpreter"
	"github.com/frobware/go-hostif/interpreter/store"
	"github.com/frobware/go-hostif/interpreter/store/sqlite"
	"github.com/frobware/go-hostif/registry"
)

// testLogger returns a logger for tests. By default it discards all output.
// Set HOSTIF_TEST_VERBOSE=1 to enable logging.
func testLogger() *slog.Logger {
	if os.Getenv("HOSTIF_TEST_VERBOSE") != "" {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStore(t *testing.T) interpreter.Store {
	t.Helper()
	s, err := sqlite.NewInMemory(context.Background(), testLogger())
	require.NoError(t, err, "failed to create store")
	t.Cleanup(func() { s.Close() })
	return s
}

func saveWithSlot(t *testing.T, s interpreter.Store, obj hostif.Object, device string) {
	t.Helper()
	ctx := context.Background()
	id := obj.ObjectID()
	err := s.RunInTransaction(ctx, func(tx interpreter.Store) error {
		if err := tx.SaveSlot(ctx, registry.SlotState{Index: id.Index(), Generation: id.Generation(), Type: id.Type()}); err != nil {
			return err
		}
		return tx.SaveObject(ctx, obj, device)
	})
	require.NoError(t, err)
}

func TestSaveAndGetObject(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	hif := hostif.HostInterface{
		ID:     hostif.MakeObjectID(hostif.ObjectTypeHostInterface, 3, 1),
		Type:   hostif.HostifTypeNetdev,
		Object: hostif.MakeObjectID(hostif.ObjectTypePort, 1, 0),
		Name:   "Ethernet0",
	}
	saveWithSlot(t, s, hif, "netdev:Ethernet0:7")

	got, err := s.GetObject(ctx, hif.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(hostif.Object(hif), got.Object); diff != "" {
		t.Errorf("object mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "netdev:Ethernet0:7", got.Device)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSaveObject_UpsertKeepsCreatedAt(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	group := hostif.TrapGroup{ID: hostif.MakeObjectID(hostif.ObjectTypeTrapGroup, 1, 0), AdminState: true}
	saveWithSlot(t, s, group, "")
	first, err := s.GetObject(ctx, group.ID)
	require.NoError(t, err)

	group.Queue = 4
	require.NoError(t, s.SaveObject(ctx, group, ""))

	got, err := s.GetObject(ctx, group.ID)
	require.NoError(t, err)
	assert.Equal(t, hostif.Object(group), got.Object)
	assert.Equal(t, first.CreatedAt, got.CreatedAt)
	assert.Empty(t, got.Device)
}

func TestGetObject_NotFound(t *testing.T) {
	s := newStore(t)

	_, err := s.GetObject(context.Background(), hostif.MakeObjectID(hostif.ObjectTypeTrap, 1, 9))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteObject(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	port := hostif.External{ID: hostif.MakeObjectID(hostif.ObjectTypePort, 1, 0), Label: "Ethernet0"}
	saveWithSlot(t, s, port, "")

	require.NoError(t, s.DeleteObject(ctx, port.ID))
	_, err := s.GetObject(ctx, port.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteObject(ctx, port.ID), store.ErrNotFound)
}

func TestSaveObject_RequiresSlot(t *testing.T) {
	s := newStore(t)

	port := hostif.External{ID: hostif.MakeObjectID(hostif.ObjectTypePort, 1, 5)}
	err := s.SaveObject(context.Background(), port, "")
	require.Error(t, err, "expected FK constraint violation")
	assert.Contains(t, err.Error(), "FOREIGN KEY constraint failed")
}

func TestListObjects_HandleOrderAndTypes(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	trap := hostif.Trap{
		ID:           hostif.MakeObjectID(hostif.ObjectTypeTrap, 1, 2),
		TrapType:     hostif.TrapTypeLLDP,
		PacketAction: hostif.PacketActionTrap,
		Priority:     10,
		Group:        hostif.MakeObjectID(hostif.ObjectTypeTrapGroup, 1, 1),
	}
	group := hostif.TrapGroup{ID: trap.Group, AdminState: true}
	entry := hostif.TableEntry{
		ID:      hostif.MakeObjectID(hostif.ObjectTypeTableEntry, 1, 3),
		Type:    hostif.TableEntryTypeWildcard,
		Channel: hostif.ChannelTypeNetdevPhysicalPort,
	}
	for _, obj := range []hostif.Object{entry, trap, group} {
		saveWithSlot(t, s, obj, "")
	}

	got, err := s.ListObjects(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, hostif.Object(group), got[0].Object)
	assert.Equal(t, hostif.Object(trap), got[1].Object)
	assert.Equal(t, hostif.Object(entry), got[2].Object)
}

func TestSlots_RoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSlot(ctx, registry.SlotState{Index: 1, Generation: 4}))
	require.NoError(t, s.SaveSlot(ctx, registry.SlotState{Index: 0, Generation: 2, Type: hostif.ObjectTypeRouterInterface}))
	require.NoError(t, s.SaveSlot(ctx, registry.SlotState{Index: 1, Generation: 5}))

	got, err := s.ListSlots(ctx)
	require.NoError(t, err)
	assert.Equal(t, []registry.SlotState{
		{Index: 0, Generation: 2, Type: hostif.ObjectTypeRouterInterface},
		{Index: 1, Generation: 5},
	}, got)
}

func TestRunInTransaction_RollsBackOnError(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	port := hostif.External{ID: hostif.MakeObjectID(hostif.ObjectTypePort, 1, 0)}
	err := s.RunInTransaction(ctx, func(tx interpreter.Store) error {
		if err := tx.SaveSlot(ctx, registry.SlotState{Index: 0, Generation: 1, Type: hostif.ObjectTypePort}); err != nil {
			return err
		}
		if err := tx.SaveObject(ctx, port, ""); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	objects, err := s.ListObjects(ctx)
	require.NoError(t, err)
	assert.Empty(t, objects)
	slots, err := s.ListSlots(ctx)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestNew_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db", "store.db")

	s, err := sqlite.New(ctx, path, testLogger())
	require.NoError(t, err)
	port := hostif.External{ID: hostif.MakeObjectID(hostif.ObjectTypePort, 1, 0), Label: "Ethernet4"}
	saveWithSlot(t, s, port, "")
	require.NoError(t, s.Close())

	s, err = sqlite.New(ctx, path, testLogger())
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetObject(ctx, port.ID)
	require.NoError(t, err)
	assert.Equal(t, hostif.Object(port), got.Object)
}
