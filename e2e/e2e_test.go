//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"net"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vishvananda/netlink"

	"github.com/frobware/go-hostif"
)

func TestMain(m *testing.M) {
	if os.Geteuid() != 0 {
		fmt.Fprintln(os.Stderr, "e2e tests require root privileges")
		os.Exit(1)
	}
	cleanupStaleTestDirs()
	os.Exit(m.Run())
}

// TestNetdev_CreateRemove tests the device lifecycle of a netdev host
// interface.
func TestNetdev_CreateRemove(t *testing.T) {
	t.Parallel()
	RequireRoot(t)

	env := NewTestEnv(t)
	ctx := context.Background()
	name := TapName()
	DeleteLinkOnCleanup(t, name)

	// Given: a port and no host interfaces
	env.AssertHostInterfaceCount(0)
	port := env.Port("Ethernet0")

	// When: a netdev host interface is created on the port
	h, err := env.Client.CreateHostInterface(ctx, hostif.HostInterfaceSpec{
		Type:   hostif.HostifTypeNetdev,
		Object: port,
		Name:   name,
	})
	require.NoError(t, err)

	// Then: a TAP device with that name exists and is up
	link, err := netlink.LinkByName(name)
	require.NoError(t, err)
	assert.Equal(t, "tuntap", link.Type())
	assert.NotZero(t, link.Attrs().Flags&net.FlagUp, "device should be up")

	w, err := env.Client.Inspect(ctx)
	require.NoError(t, err)
	require.Len(t, w.Devices, 1)
	assert.Equal(t, h.ID, w.Devices[0].ID)
	assert.True(t, w.Devices[0].Presence.InOS)

	// When: the host interface is removed
	require.NoError(t, env.Client.Remove(ctx, h.ID))

	// Then: the device is gone
	_, err = netlink.LinkByName(name)
	assert.Error(t, err)
	env.AssertHostInterfaceCount(0)
}

// TestNetdev_DuplicateNameLeavesNoRecord verifies that a failed device
// creation does not leave a host interface behind.
func TestNetdev_DuplicateNameLeavesNoRecord(t *testing.T) {
	t.Parallel()
	RequireRoot(t)

	env := NewTestEnv(t)
	ctx := context.Background()
	name := TapName()
	DeleteLinkOnCleanup(t, name)

	require.NoError(t, netlink.LinkAdd(&netlink.Dummy{LinkAttrs: netlink.LinkAttrs{Name: name}}))

	_, err := env.Client.CreateHostInterface(ctx, hostif.HostInterfaceSpec{
		Type:   hostif.HostifTypeNetdev,
		Object: env.Port("Ethernet4"),
		Name:   name,
	})
	require.Error(t, err)
	env.AssertHostInterfaceCount(0)

	link, err := netlink.LinkByName(name)
	require.NoError(t, err, "the pre-existing device must survive")
	assert.Equal(t, "dummy", link.Type())
}

// TestInspect_ReportsDeviceRemovedBehindOurBack verifies that a device
// deleted outside the engine shows up as missing after a restart, and
// that removing its host interface still succeeds.
func TestInspect_ReportsDeviceRemovedBehindOurBack(t *testing.T) {
	t.Parallel()
	RequireRoot(t)

	env := NewTestEnv(t)
	ctx := context.Background()
	name := TapName()
	DeleteLinkOnCleanup(t, name)

	h, err := env.Client.CreateHostInterface(ctx, hostif.HostInterfaceSpec{
		Type:   hostif.HostifTypeNetdev,
		Object: env.Port("Ethernet8"),
		Name:   name,
	})
	require.NoError(t, err)

	link, err := netlink.LinkByName(name)
	require.NoError(t, err)
	require.NoError(t, netlink.LinkDel(link))

	env.Reopen()

	w, err := env.Client.Inspect(ctx)
	require.NoError(t, err)
	missing := w.Missing()
	require.Len(t, missing, 1)
	assert.Equal(t, h.ID, missing[0].ID)

	require.NoError(t, env.Client.Remove(ctx, h.ID))
	env.AssertHostInterfaceCount(0)
}

// TestGenetlink_ExistingFamily verifies that a genetlink host interface
// is checked against the kernel's families and creates nothing.
func TestGenetlink_ExistingFamily(t *testing.T) {
	t.Parallel()
	RequireRoot(t)

	env := NewTestEnv(t)
	ctx := context.Background()

	h, err := env.Client.CreateHostInterface(ctx, hostif.HostInterfaceSpec{
		Type:      hostif.HostifTypeGenetlink,
		Name:      "nlctrl",
		McgrpName: "notify",
	})
	require.NoError(t, err)

	w, err := env.Client.Inspect(ctx)
	require.NoError(t, err)
	require.Len(t, w.Devices, 1)
	assert.True(t, w.Devices[0].Presence.InOS)

	_, err = env.Client.CreateHostInterface(ctx, hostif.HostInterfaceSpec{
		Type: hostif.HostifTypeGenetlink,
		Name: "nosuchfamily",
	})
	require.Error(t, err)

	require.NoError(t, env.Client.Remove(ctx, h.ID))
	env.AssertHostInterfaceCount(0)
}
