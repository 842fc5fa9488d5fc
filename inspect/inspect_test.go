package inspect_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-hostif"
	"github.com/frobware/go-hostif/inspect"
	"github.com/frobware/go-hostif/interpreter"
)

type fakeStore struct {
	objs []interpreter.StoredObject
	err  error
}

func (f fakeStore) ListObjects(context.Context) ([]interpreter.StoredObject, error) {
	return f.objs, f.err
}

// fakeProber knows which handles exist; handles in failing return an
// error.
type fakeProber struct {
	present map[string]bool
	failing map[string]bool
	probed  []string
}

func (f *fakeProber) DeviceExists(_ context.Context, handle string) (bool, error) {
	f.probed = append(f.probed, handle)
	if f.failing[handle] {
		return false, errors.New("netlink: permission denied")
	}
	return f.present[handle], nil
}

func hostInterface(index uint32, t hostif.HostifType, name string) hostif.HostInterface {
	return hostif.HostInterface{
		ID:   hostif.MakeObjectID(hostif.ObjectTypeHostInterface, 1, index),
		Type: t,
		Name: name,
	}
}

// TestSnapshot_CorrelatesDevices verifies presence per host interface.
//
// Given stored host interfaces with present, missing and unprobeable
// devices plus one fd interface and a trap group,
// When Snapshot runs,
// Then only host interfaces appear, fd interfaces are not probed and
// each row reports where its device was found.
func TestSnapshot_CorrelatesDevices(t *testing.T) {
	group := hostif.TrapGroup{ID: hostif.MakeObjectID(hostif.ObjectTypeTrapGroup, 1, 0), AdminState: true}
	store := fakeStore{objs: []interpreter.StoredObject{
		{Object: group},
		{Object: hostInterface(0, hostif.HostifTypeNetdev, "Ethernet0"), Device: "netdev:Ethernet0:12"},
		{Object: hostInterface(1, hostif.HostifTypeNetdev, "Ethernet4"), Device: "netdev:Ethernet4:13"},
		{Object: hostInterface(2, hostif.HostifTypeFD, "")},
		{Object: hostInterface(3, hostif.HostifTypeGenetlink, "psample"), Device: "genetlink:psample:30"},
	}}
	prober := &fakeProber{
		present: map[string]bool{"netdev:Ethernet0:12": true},
		failing: map[string]bool{"genetlink:psample:30": true},
	}

	w, err := inspect.Snapshot(context.Background(), store, prober)
	require.NoError(t, err)
	require.Len(t, w.Devices, 4)
	assert.Equal(t, []string{"netdev:Ethernet0:12", "netdev:Ethernet4:13", "genetlink:psample:30"}, prober.probed)

	assert.Equal(t, inspect.Presence{InStore: true, InOS: true}, w.Devices[0].Presence)
	assert.True(t, w.Devices[1].Presence.Missing())
	assert.Equal(t, inspect.Presence{}, w.Devices[2].Presence, "fd interfaces have no device")
	assert.NotEmpty(t, w.Devices[3].ProbeError)

	missing := w.Missing()
	require.Len(t, missing, 2)
	assert.Equal(t, "Ethernet4", missing[0].Name)
	assert.Equal(t, "psample", missing[1].Name)
}

func TestSnapshot_StoreError(t *testing.T) {
	_, err := inspect.Snapshot(context.Background(), fakeStore{err: errors.New("disk on fire")}, &fakeProber{})
	require.Error(t, err)
}

func TestSnapshot_EmptyStore(t *testing.T) {
	w, err := inspect.Snapshot(context.Background(), fakeStore{}, &fakeProber{})
	require.NoError(t, err)
	assert.NotNil(t, w.Devices)
	assert.Empty(t, w.Missing())
}
