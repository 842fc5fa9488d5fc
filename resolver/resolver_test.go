package resolver_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-hostif"
	"github.com/frobware/go-hostif/resolver"
)

var (
	portA = hostif.MakeObjectID(hostif.ObjectTypePort, 1, 0)
	portB = hostif.MakeObjectID(hostif.ObjectTypePort, 1, 1)
	lag   = hostif.MakeObjectID(hostif.ObjectTypeLAG, 1, 2)
	vlan  = hostif.MakeObjectID(hostif.ObjectTypeVLAN, 1, 3)
	rif   = hostif.MakeObjectID(hostif.ObjectTypeRouterInterface, 1, 4)
	trapX = hostif.MakeObjectID(hostif.ObjectTypeTrap, 1, 5)
	trapY = hostif.MakeObjectID(hostif.ObjectTypeTrap, 1, 6)
)

var nextIndex uint32 = 100

func entry(typ hostif.TableEntryType, object, trap hostif.ObjectID) hostif.TableEntry {
	nextIndex++
	return hostif.TableEntry{
		ID:      hostif.MakeObjectID(hostif.ObjectTypeTableEntry, 1, nextIndex),
		Type:    typ,
		Object:  object,
		Trap:    trap,
		Channel: hostif.ChannelTypeNetdevPhysicalPort,
	}
}

// TestResolve_Precedence verifies that:
//
//	Given a port entry E1 for (portA, trapX), a trap_id entry E2 for
//	trapX and a wildcard entry E3,
//	When resolving,
//	Then (portA, trapX) hits E1, (portB, trapX) hits E2 and
//	(portB, trapY) hits E3.
func TestResolve_Precedence(t *testing.T) {
	r := resolver.New()
	e1 := entry(hostif.TableEntryTypePort, portA, trapX)
	e2 := entry(hostif.TableEntryTypeTrapID, hostif.NullObjectID, trapX)
	e3 := entry(hostif.TableEntryTypeWildcard, hostif.NullObjectID, hostif.NullObjectID)
	for _, e := range []hostif.TableEntry{e1, e2, e3} {
		require.NoError(t, r.Insert(e))
	}

	tests := []struct {
		name       string
		attachment hostif.ObjectID
		trap       hostif.ObjectID
		want       hostif.TableEntry
		level      hostif.MatchLevel
	}{
		{"port entry", portA, trapX, e1, hostif.MatchLevelObject},
		{"trap_id entry", portB, trapX, e2, hostif.MatchLevelTrapID},
		{"wildcard entry", portB, trapY, e3, hostif.MatchLevelWildcard},
		{"no attachment", hostif.NullObjectID, trapX, e2, hostif.MatchLevelTrapID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.attachment, tt.trap)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Entry)
			assert.Equal(t, tt.level, got.Level)
		})
	}

	stats := r.Stats()
	assert.Equal(t, uint64(4), stats.Lookups)
	assert.Equal(t, uint64(1), stats.Matches[hostif.MatchLevelObject])
	assert.Equal(t, uint64(2), stats.Matches[hostif.MatchLevelTrapID])
	assert.Equal(t, uint64(1), stats.Matches[hostif.MatchLevelWildcard])
}

func TestResolve_NoMatch(t *testing.T) {
	r := resolver.New()
	require.NoError(t, r.Insert(entry(hostif.TableEntryTypePort, portA, trapX)))

	_, err := r.Resolve(portB, trapX)
	assert.ErrorIs(t, err, hostif.ErrNoMatch)
	_, err = r.Resolve(portA, trapY)
	assert.ErrorIs(t, err, hostif.ErrNoMatch)
}

func TestResolve_AttachmentSelectsPartition(t *testing.T) {
	r := resolver.New()
	lagEntry := entry(hostif.TableEntryTypeLAG, lag, trapX)
	vlanEntry := entry(hostif.TableEntryTypeVLAN, vlan, trapX)
	rifEntry := entry(hostif.TableEntryTypeVLAN, rif, trapX)
	for _, e := range []hostif.TableEntry{lagEntry, vlanEntry, rifEntry} {
		require.NoError(t, r.Insert(e))
	}

	for attachment, want := range map[hostif.ObjectID]hostif.TableEntry{
		lag:  lagEntry,
		vlan: vlanEntry,
		rif:  rifEntry,
	} {
		got, err := r.Resolve(attachment, trapX)
		require.NoError(t, err)
		assert.Equal(t, want.ID, got.Entry.ID)
	}
}

func TestInsert_DuplicateAddressPoint(t *testing.T) {
	r := resolver.New()
	first := entry(hostif.TableEntryTypeWildcard, hostif.NullObjectID, hostif.NullObjectID)
	require.NoError(t, r.Insert(first))

	err := r.Insert(entry(hostif.TableEntryTypeWildcard, hostif.NullObjectID, hostif.NullObjectID))
	require.ErrorIs(t, err, hostif.ErrDuplicateKey)
	var dup hostif.DuplicateKeyError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, first.ID, dup.Existing)

	require.NoError(t, r.Insert(entry(hostif.TableEntryTypePort, portA, trapX)))
	assert.ErrorIs(t, r.Insert(entry(hostif.TableEntryTypePort, portA, trapX)), hostif.ErrDuplicateKey)
	assert.NoError(t, r.Insert(entry(hostif.TableEntryTypePort, portA, trapY)), "different trap is a different address point")
}

func TestRemove_FreesAddressPoint(t *testing.T) {
	r := resolver.New()
	e := entry(hostif.TableEntryTypeTrapID, hostif.NullObjectID, trapX)
	require.NoError(t, r.Insert(e))

	other := entry(hostif.TableEntryTypeTrapID, hostif.NullObjectID, trapX)
	assert.False(t, r.Remove(other), "removing a non-occupant must not evict the occupant")
	assert.Equal(t, 1, r.Len(hostif.TableEntryTypeTrapID))

	assert.True(t, r.Remove(e))
	_, err := r.Resolve(portA, trapX)
	assert.ErrorIs(t, err, hostif.ErrNoMatch)
	assert.NoError(t, r.Insert(other))
}

func TestResolve_ConcurrentWithMutation(t *testing.T) {
	r := resolver.New()
	wild := entry(hostif.TableEntryTypeWildcard, hostif.NullObjectID, hostif.NullObjectID)
	require.NoError(t, r.Insert(wild))
	specific := entry(hostif.TableEntryTypePort, portA, trapX)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				got, err := r.Resolve(portA, trapX)
				if !assert.NoError(t, err) {
					return
				}
				if got.Entry.ID != wild.ID && got.Entry.ID != specific.ID {
					t.Errorf("resolved to unexpected entry %s", got.Entry.ID)
					return
				}
			}
		}()
	}
	for j := 0; j < 200; j++ {
		require.NoError(t, r.Insert(specific))
		require.True(t, r.Remove(specific))
	}
	wg.Wait()
}
