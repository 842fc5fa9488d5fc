package client_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-hostif"
	"github.com/frobware/go-hostif/client"
	"github.com/frobware/go-hostif/config"
	"github.com/frobware/go-hostif/lock"
)

// TestOpen_PersistsAcrossClients verifies that:
//
//	Given a local client on a fresh runtime directory,
//	When objects are created and the client is closed,
//	Then a second local client sees the same objects under the same handles.
func TestOpen_PersistsAcrossClients(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "hostif")

	c, err := client.Open(ctx, client.WithRuntimeDir(dir))
	require.NoError(t, err)

	port, err := c.CreateExternal(ctx, hostif.ObjectTypePort, "Ethernet0")
	require.NoError(t, err)
	group, err := c.CreateTrapGroup(ctx, hostif.TrapGroupSpec{Queue: 2})
	require.NoError(t, err)
	trap, err := c.CreateTrap(ctx, hostif.TrapSpec{
		TrapType:     hostif.TrapTypeARPRequest,
		PacketAction: hostif.PacketActionCopy,
		Group:        group.ID,
	})
	require.NoError(t, err)
	entry, err := c.CreateTableEntry(ctx, hostif.TableEntrySpec{
		Type:    hostif.TableEntryTypePort,
		Object:  port.ID,
		Trap:    trap.ID,
		Channel: hostif.ChannelTypeCallback,
	})
	require.NoError(t, err)
	require.NoError(t, c.Close())

	c, err = client.Open(ctx, client.WithRuntimeDir(dir))
	require.NoError(t, err)
	defer c.Close()

	got, err := c.GetTrap(ctx, trap.ID)
	require.NoError(t, err)
	assert.Equal(t, trap, got)

	res, err := c.Resolve(ctx, port.ID, trap.ID)
	require.NoError(t, err)
	assert.Equal(t, entry, res.Entry)
	assert.Equal(t, hostif.MatchLevelObject, res.Level)
}

// TestOpen_ExclusiveAccess verifies a runtime directory has one owner.
func TestOpen_ExclusiveAccess(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "hostif")

	c, err := client.Open(ctx, client.WithRuntimeDir(dir))
	require.NoError(t, err)

	_, err = client.Open(ctx, client.WithRuntimeDir(dir))
	assert.ErrorIs(t, err, lock.ErrHeld)

	require.NoError(t, c.Close())
	c, err = client.Open(ctx, client.WithRuntimeDir(dir))
	require.NoError(t, err)
	require.NoError(t, c.Close())
}

func TestOpen_HonoursPriorityRange(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultConfig()
	cfg.Switch.MinPriority = 50
	cfg.Switch.MaxPriority = 60

	c, err := client.Open(ctx, client.WithRuntimeDir(filepath.Join(t.TempDir(), "hostif")), client.WithConfig(cfg))
	require.NoError(t, err)
	defer c.Close()

	group, err := c.CreateTrapGroup(ctx, hostif.TrapGroupSpec{})
	require.NoError(t, err)
	trap, err := c.CreateTrap(ctx, hostif.TrapSpec{
		TrapType:     hostif.TrapTypeLLDP,
		PacketAction: hostif.PacketActionTrap,
		Group:        group.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(50), trap.Priority)

	high := uint32(61)
	_, err = c.CreateTrap(ctx, hostif.TrapSpec{
		TrapType:     hostif.TrapTypeBGP,
		PacketAction: hostif.PacketActionTrap,
		Priority:     &high,
		Group:        group.ID,
	})
	assert.ErrorIs(t, err, hostif.ErrInvalidValue)
}

func TestOpen_RejectsRelativeRuntimeDir(t *testing.T) {
	_, err := client.Open(context.Background(), client.WithRuntimeDir("relative/hostif"))
	assert.Error(t, err)
}

func TestOpen_InspectListsHostInterfaces(t *testing.T) {
	ctx := context.Background()
	c, err := client.Open(ctx, client.WithRuntimeDir(filepath.Join(t.TempDir(), "hostif")))
	require.NoError(t, err)
	defer c.Close()

	h, err := c.CreateHostInterface(ctx, hostif.HostInterfaceSpec{Type: hostif.HostifTypeFD})
	require.NoError(t, err)

	w, err := c.Inspect(ctx)
	require.NoError(t, err)
	require.Len(t, w.Devices, 1)
	assert.Equal(t, h.ID, w.Devices[0].ID)
	assert.Empty(t, w.Devices[0].Handle, "devices are not materialised by default")
	assert.Empty(t, w.Missing())
}
