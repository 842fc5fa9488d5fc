package hostif_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-hostif"
)

func TestObjectID_Components(t *testing.T) {
	id := hostif.MakeObjectID(hostif.ObjectTypeTrap, 7, 42)

	assert.Equal(t, hostif.ObjectTypeTrap, id.Type())
	assert.Equal(t, uint32(7), id.Generation())
	assert.Equal(t, uint32(42), id.Index())
	assert.False(t, id.IsNull())
	assert.True(t, hostif.NullObjectID.IsNull())
}

func TestObjectID_GenerationIsMasked(t *testing.T) {
	id := hostif.MakeObjectID(hostif.ObjectTypePort, hostif.MaxGeneration+2, 1)

	assert.Equal(t, uint32(1), id.Generation())
	assert.Equal(t, hostif.ObjectTypePort, id.Type(), "generation overflow must not corrupt the type tag")
}

func TestObjectID_TextRoundTrip(t *testing.T) {
	id := hostif.MakeObjectID(hostif.ObjectTypeHostInterface, 3, 9)

	data, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, `"oid:0xa00000300000009"`, string(data))

	var got hostif.ObjectID
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, id, got)
}

func TestParseObjectID(t *testing.T) {
	tests := []struct {
		in      string
		want    hostif.ObjectID
		wantErr bool
	}{
		{in: "", want: hostif.NullObjectID},
		{in: "oid:0x10", want: 0x10},
		{in: "0x10", want: 0x10},
		{in: "16", want: 16},
		{in: "oid:zz", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := hostif.ParseObjectID(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseObjectType_Aliases(t *testing.T) {
	for in, want := range map[string]hostif.ObjectType{
		"rif":              hostif.ObjectTypeRouterInterface,
		"router-interface": hostif.ObjectTypeRouterInterface,
		"host_interface":   hostif.ObjectTypeHostInterface,
		"hostif":           hostif.ObjectTypeHostInterface,
		"vr":               hostif.ObjectTypeVirtualRouter,
		"Table_Entry":      hostif.ObjectTypeTableEntry,
	} {
		got, ok := hostif.ParseObjectType(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := hostif.ParseObjectType("null")
	assert.False(t, ok, "null is not a creatable type")
}

func TestObjectTypeSet(t *testing.T) {
	s := hostif.TypeSet(hostif.ObjectTypeVLAN, hostif.ObjectTypeRouterInterface)

	assert.True(t, s.Contains(hostif.ObjectTypeVLAN))
	assert.True(t, s.Contains(hostif.ObjectTypeRouterInterface))
	assert.False(t, s.Contains(hostif.ObjectTypePort))
	assert.Equal(t, "{vlan,router_interface}", s.String())
}

func TestTrapType_Catalogue(t *testing.T) {
	assert.Equal(t, hostif.PacketActionDrop, hostif.TrapTypeLLDP.DefaultPacketAction())
	assert.Equal(t, hostif.PacketActionForward, hostif.TrapTypeARPRequest.DefaultPacketAction())
	assert.Equal(t, hostif.PacketActionDrop, hostif.TrapTypeBGP.DefaultPacketAction())
	assert.Equal(t, hostif.PacketActionDrop, hostif.TrapType(0x1234).DefaultPacketAction())

	assert.True(t, hostif.TrapType(0x1234).Valid())
	assert.False(t, hostif.TrapTypeStart.Valid())
	assert.False(t, hostif.TrapTypeEnd.Valid())
	assert.True(t, (hostif.TrapTypeCustomRangeStart + 5).Valid())

	got, ok := hostif.ParseTrapType("arp-request")
	require.True(t, ok)
	assert.Equal(t, hostif.TrapTypeARPRequest, got)

	got, ok = hostif.ParseTrapType("0x4003")
	require.True(t, ok)
	assert.Equal(t, hostif.TrapTypeBGP, got)
	assert.Equal(t, "0x1234", hostif.TrapType(0x1234).String())
}

func TestChannelType_TargetRequirements(t *testing.T) {
	for _, c := range []hostif.ChannelType{hostif.ChannelTypeFD, hostif.ChannelTypeGenetlink} {
		assert.True(t, c.RequiresHostIf(), c.String())
	}
	for _, c := range []hostif.ChannelType{
		hostif.ChannelTypeCallback,
		hostif.ChannelTypeNetdevPhysicalPort,
		hostif.ChannelTypeNetdevLogicalPort,
		hostif.ChannelTypeNetdevL3,
	} {
		assert.False(t, c.RequiresHostIf(), c.String())
	}

	kind, ok := hostif.ChannelTypeGenetlink.HostifType()
	require.True(t, ok)
	assert.Equal(t, hostif.HostifTypeGenetlink, kind)

	got, ok := hostif.ParseChannelType("cb")
	require.True(t, ok)
	assert.Equal(t, hostif.ChannelTypeCallback, got)
}

func TestTableEntryType_Shape(t *testing.T) {
	assert.True(t, hostif.TableEntryTypeVLAN.ObjectTypes().Contains(hostif.ObjectTypeRouterInterface))
	assert.False(t, hostif.TableEntryTypePort.ObjectTypes().Contains(hostif.ObjectTypeLAG))
	assert.True(t, hostif.TableEntryTypeTrapID.MatchesTrap())
	assert.False(t, hostif.TableEntryTypeTrapID.MatchesObject())
	assert.False(t, hostif.TableEntryTypeWildcard.MatchesTrap())
}

func TestDecodeObject(t *testing.T) {
	want := hostif.TableEntry{
		ID:      hostif.MakeObjectID(hostif.ObjectTypeTableEntry, 1, 4),
		Type:    hostif.TableEntryTypeTrapID,
		Trap:    hostif.MakeObjectID(hostif.ObjectTypeTrap, 1, 2),
		Channel: hostif.ChannelTypeFD,
		HostIf:  hostif.MakeObjectID(hostif.ObjectTypeHostInterface, 1, 3),
	}
	data, err := json.Marshal(want)
	require.NoError(t, err)

	got, err := hostif.DecodeObject(hostif.ObjectTypeTableEntry, data)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, []hostif.ObjectID{want.Trap, want.HostIf}, got.References())

	_, err = hostif.DecodeObject(hostif.ObjectTypeTrap, data)
	assert.Error(t, err, "decoding with the wrong type must fail")
}

func TestParseAttribute(t *testing.T) {
	attr, err := hostif.ParseAttribute(hostif.ObjectTypeTrap, "priority", "10")
	require.NoError(t, err)
	assert.Equal(t, hostif.TrapPriority{Value: 10}, attr)

	attr, err = hostif.ParseAttribute(hostif.ObjectTypeTrapGroup, "admin-state", "false")
	require.NoError(t, err)
	assert.Equal(t, hostif.TrapGroupAdminState{Value: false}, attr)

	attr, err = hostif.ParseAttribute(hostif.ObjectTypeHostInterface, "name", "eth9")
	require.NoError(t, err)
	assert.Equal(t, hostif.CreateOnly{Type: hostif.ObjectTypeHostInterface, Attr: "name", Value: "eth9"}, attr)

	_, err = hostif.ParseAttribute(hostif.ObjectTypeTrap, "colour", "red")
	assert.ErrorIs(t, err, hostif.ErrInvalidValue)

	_, err = hostif.ParseAttribute(hostif.ObjectTypeTrap, "packet_action", "explode")
	assert.ErrorIs(t, err, hostif.ErrInvalidValue)
}

func TestErrorKinds(t *testing.T) {
	id := hostif.MakeObjectID(hostif.ObjectTypeTrap, 2, 1)

	stale := hostif.NotFoundError{ID: id, Stale: true}
	assert.ErrorIs(t, stale, hostif.ErrStaleHandle)
	assert.NotErrorIs(t, stale, hostif.ErrNotFound)

	ref := hostif.ReferenceError{Attr: "trap", ID: id, Err: stale}
	assert.ErrorIs(t, ref, hostif.ErrInvalidReference)
	assert.ErrorIs(t, ref, hostif.ErrStaleHandle)
	assert.Equal(t, hostif.ErrInvalidReference, hostif.Kind(ref))

	inUse := hostif.InUseError{ID: id, Blockers: []hostif.ObjectID{hostif.MakeObjectID(hostif.ObjectTypeTableEntry, 1, 0)}}
	var target hostif.InUseError
	require.True(t, errors.As(inUse, &target))
	assert.Len(t, target.Blockers, 1)
	assert.Equal(t, hostif.ErrInUse, hostif.Kind(inUse))
	assert.Nil(t, hostif.Kind(errors.New("other")))
}

func TestAttributeValue_ParsesBack(t *testing.T) {
	policer := hostif.MakeObjectID(hostif.ObjectTypePolicer, 1, 3)
	attrs := []hostif.Attribute{
		hostif.TrapGroupAdminState{Value: false},
		hostif.TrapGroupQueue{Value: 7},
		hostif.TrapGroupPolicer{Value: policer},
		hostif.TrapGroupPolicer{Value: hostif.NullObjectID},
		hostif.TrapPacketAction{Value: hostif.PacketActionCopy},
		hostif.TrapPriority{Value: 300},
		hostif.TrapTypeAttr{Value: hostif.TrapTypeBGP},
		hostif.TrapTypeAttr{Value: hostif.TrapTypeCustomRangeStart + 5},
		hostif.CreateOnly{Type: hostif.ObjectTypeHostInterface, Attr: "name", Value: "Ethernet0"},
	}
	for _, a := range attrs {
		got, err := hostif.ParseAttribute(a.ObjectType(), a.Name(), hostif.AttributeValue(a))
		require.NoError(t, err, "%T", a)
		assert.Equal(t, a, got)
	}
}
