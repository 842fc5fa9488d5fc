// Package resolver implements the host interface table: the rule set
// that maps an (attachment point, trap) pair to the table entry that
// governs delivery.
//
// Entries are held in one partition per entry type, each keyed by its
// match fields, so every address point holds at most one entry. A
// lookup walks the partitions from most to least specific and the
// first hit wins:
//
//  1. port, lag or vlan entry matching both attachment and trap
//  2. trap_id entry matching the trap
//  3. the wildcard entry
//
// Each partition has its own lock. Lookups proceed concurrently and
// only wait for a mutation of the partition they are reading.
package resolver

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/frobware/go-hostif"
)

type key struct {
	object hostif.ObjectID
	trap   hostif.ObjectID
}

type partition struct {
	lock    sync.RWMutex
	entries map[key]hostif.TableEntry
}

func (p *partition) get(k key) (hostif.TableEntry, bool) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	e, ok := p.entries[k]
	return e, ok
}

// Stats are the lookup counters of a Resolver.
type Stats struct {
	Lookups uint64 `json:"lookups"`
	// Matches counts hits by precedence level. Lookups minus the sum
	// of Matches is the number of lookups that found nothing.
	Matches map[hostif.MatchLevel]uint64 `json:"matches"`
	Entries map[hostif.TableEntryType]int `json:"entries"`
}

// Resolver is the partitioned table. The zero value is not usable;
// call New.
type Resolver struct {
	partitions [hostif.TableEntryTypeWildcard + 1]partition

	lookupCount   atomic.Uint64
	objectMatches atomic.Uint64
	trapMatches   atomic.Uint64
	wildMatches   atomic.Uint64
}

// New returns an empty table.
func New() *Resolver {
	r := &Resolver{}
	for i := range r.partitions {
		r.partitions[i].entries = make(map[key]hostif.TableEntry)
	}
	return r
}

// keyOf derives the address point of e from its entry type. Fields
// the type does not match on are ignored.
func keyOf(e hostif.TableEntry) key {
	var k key
	if e.Type.MatchesObject() {
		k.object = e.Object
	}
	if e.Type.MatchesTrap() {
		k.trap = e.Trap
	}
	return k
}

func (r *Resolver) partition(t hostif.TableEntryType) (*partition, error) {
	if !t.Valid() {
		return nil, hostif.ValueError{Attr: "type", Reason: fmt.Sprintf("unknown table entry type %s", t)}
	}
	return &r.partitions[t], nil
}

// Insert adds e at its address point. It fails with a
// DuplicateKeyError when the address point is already held.
func (r *Resolver) Insert(e hostif.TableEntry) error {
	p, err := r.partition(e.Type)
	if err != nil {
		return err
	}
	k := keyOf(e)

	p.lock.Lock()
	defer p.lock.Unlock()

	if existing, ok := p.entries[k]; ok {
		return hostif.DuplicateKeyError{Key: describeKey(e.Type, k), Existing: existing.ID}
	}
	p.entries[k] = e
	return nil
}

// Occupant returns the entry holding the address point e would claim.
func (r *Resolver) Occupant(e hostif.TableEntry) (hostif.TableEntry, bool) {
	p, err := r.partition(e.Type)
	if err != nil {
		return hostif.TableEntry{}, false
	}
	return p.get(keyOf(e))
}

// Remove evicts e. It reports whether e was present.
func (r *Resolver) Remove(e hostif.TableEntry) bool {
	p, err := r.partition(e.Type)
	if err != nil {
		return false
	}
	k := keyOf(e)

	p.lock.Lock()
	defer p.lock.Unlock()

	if cur, ok := p.entries[k]; !ok || cur.ID != e.ID {
		return false
	}
	delete(p.entries, k)
	return true
}

// attachmentPartition maps an attachment point to the entry type whose
// partition holds entries for it.
func attachmentPartition(t hostif.ObjectType) (hostif.TableEntryType, bool) {
	switch t {
	case hostif.ObjectTypePort:
		return hostif.TableEntryTypePort, true
	case hostif.ObjectTypeLAG:
		return hostif.TableEntryTypeLAG, true
	case hostif.ObjectTypeVLAN, hostif.ObjectTypeRouterInterface:
		return hostif.TableEntryTypeVLAN, true
	default:
		return 0, false
	}
}

// Resolve returns the entry governing trap traffic arriving on
// attachment. attachment may be null when the pipeline supplies no
// attachment point, in which case only trap_id and wildcard entries
// apply. It returns ErrNoMatch when no entry applies.
func (r *Resolver) Resolve(attachment, trap hostif.ObjectID) (hostif.Resolution, error) {
	r.lookupCount.Add(1)

	if !attachment.IsNull() && !trap.IsNull() {
		if t, ok := attachmentPartition(attachment.Type()); ok {
			if e, ok := r.partitions[t].get(key{object: attachment, trap: trap}); ok {
				r.objectMatches.Add(1)
				return hostif.Resolution{Entry: e, Level: hostif.MatchLevelObject}, nil
			}
		}
	}
	if !trap.IsNull() {
		if e, ok := r.partitions[hostif.TableEntryTypeTrapID].get(key{trap: trap}); ok {
			r.trapMatches.Add(1)
			return hostif.Resolution{Entry: e, Level: hostif.MatchLevelTrapID}, nil
		}
	}
	if e, ok := r.partitions[hostif.TableEntryTypeWildcard].get(key{}); ok {
		r.wildMatches.Add(1)
		return hostif.Resolution{Entry: e, Level: hostif.MatchLevelWildcard}, nil
	}
	return hostif.Resolution{}, hostif.ErrNoMatch
}

// Len returns the number of entries in the partition for t.
func (r *Resolver) Len(t hostif.TableEntryType) int {
	p, err := r.partition(t)
	if err != nil {
		return 0
	}
	p.lock.RLock()
	defer p.lock.RUnlock()
	return len(p.entries)
}

// Stats returns a snapshot of the lookup counters and partition sizes.
func (r *Resolver) Stats() Stats {
	s := Stats{
		Lookups: r.lookupCount.Load(),
		Matches: map[hostif.MatchLevel]uint64{
			hostif.MatchLevelObject:   r.objectMatches.Load(),
			hostif.MatchLevelTrapID:   r.trapMatches.Load(),
			hostif.MatchLevelWildcard: r.wildMatches.Load(),
		},
		Entries: make(map[hostif.TableEntryType]int),
	}
	for t := range r.partitions {
		s.Entries[hostif.TableEntryType(t)] = r.Len(hostif.TableEntryType(t))
	}
	return s
}

func describeKey(t hostif.TableEntryType, k key) string {
	switch {
	case t == hostif.TableEntryTypeWildcard:
		return "wildcard table entry"
	case t == hostif.TableEntryTypeTrapID:
		return fmt.Sprintf("trap_id table entry for trap %s", k.trap)
	default:
		return fmt.Sprintf("%s table entry for (%s, trap %s)", t, k.object, k.trap)
	}
}
