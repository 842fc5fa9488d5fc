// Package registry owns the storage of every object the engine
// manages.
//
// Objects live in a single arena of slots addressed by
// generation-checked handles. A slot's generation is bumped whenever
// its object is removed, so a handle retained past removal is
// reported as stale and can never alias the object that later reuses
// the slot. Each slot also carries the set of live objects that
// reference it, which makes the in-use check on removal O(1).
//
// A Registry is not safe for concurrent use. The manager serialises
// access to it.
package registry

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/frobware/go-hostif"
)

// SlotState is the persistent part of a slot: enough to rebuild the
// arena with identical handles after a restart.
type SlotState struct {
	Index      uint32
	Generation uint32
	// Type is the type of the live object, or ObjectTypeNull for a
	// free slot.
	Type hostif.ObjectType
}

type slot struct {
	gen        uint32
	obj        hostif.Object // nil when free
	refs       []hostif.ObjectID
	dependents map[hostif.ObjectID]struct{}
}

func (s *slot) live() bool { return s.obj != nil }

// Registry is the object arena.
type Registry struct {
	slots []slot
	// free is a LIFO stack of free slot indexes.
	free   []uint32
	counts map[hostif.ObjectType]int
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{counts: make(map[hostif.ObjectType]int)}
}

// lookup returns the live slot id names, or a NotFoundError.
func (r *Registry) lookup(id hostif.ObjectID) (*slot, error) {
	if id.IsNull() || !id.Type().Valid() || int64(id.Index()) >= int64(len(r.slots)) {
		return nil, hostif.NotFoundError{ID: id}
	}
	s := &r.slots[id.Index()]
	if s.gen != id.Generation() {
		return nil, hostif.NotFoundError{ID: id, Stale: true}
	}
	if !s.live() || s.obj.ObjectID() != id {
		return nil, hostif.NotFoundError{ID: id}
	}
	return s, nil
}

// Get returns the live object named by id. It fails with a
// NotFoundError wrapping ErrStaleHandle when id is from an earlier
// generation of its slot and ErrNotFound otherwise.
func (r *Registry) Get(id hostif.ObjectID) (hostif.Object, error) {
	s, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	return s.obj, nil
}

// Live reports whether id names a live object.
func (r *Registry) Live(id hostif.ObjectID) bool {
	_, err := r.lookup(id)
	return err == nil
}

// NextID returns the handle the next Insert of type t will assign.
func (r *Registry) NextID(t hostif.ObjectType) hostif.ObjectID {
	if n := len(r.free); n > 0 {
		idx := r.free[n-1]
		return hostif.MakeObjectID(t, r.slots[idx].gen, idx)
	}
	return hostif.MakeObjectID(t, 1, uint32(len(r.slots)))
}

// Insert allocates a handle of type t, builds the object with it and
// stores it. Every handle the object references must be live; nothing
// is stored otherwise.
func (r *Registry) Insert(t hostif.ObjectType, build func(id hostif.ObjectID) hostif.Object) (hostif.Object, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("insert: %w: object type %s", hostif.ErrInvalidValue, t)
	}
	id := r.NextID(t)
	obj := build(id)
	if obj.ObjectID() != id {
		return nil, fmt.Errorf("insert: built object carries %s, want %s", obj.ObjectID(), id)
	}
	refs := dedupe(obj.References())
	if err := r.checkRefs(refs); err != nil {
		return nil, err
	}

	if n := len(r.free); n > 0 {
		r.free = r.free[:n-1]
	} else {
		r.slots = append(r.slots, slot{gen: 1})
	}
	r.place(obj, refs)
	return obj, nil
}

func (r *Registry) place(obj hostif.Object, refs []hostif.ObjectID) {
	id := obj.ObjectID()
	s := &r.slots[id.Index()]
	s.obj = obj
	s.refs = refs
	for _, ref := range refs {
		r.slots[ref.Index()].addDependent(id)
	}
	r.counts[id.Type()]++
}

func (s *slot) addDependent(id hostif.ObjectID) {
	if s.dependents == nil {
		s.dependents = make(map[hostif.ObjectID]struct{})
	}
	s.dependents[id] = struct{}{}
}

func (r *Registry) checkRefs(refs []hostif.ObjectID) error {
	for _, ref := range refs {
		if _, err := r.lookup(ref); err != nil {
			return hostif.ReferenceError{Attr: ref.Type().String(), ID: ref, Err: err}
		}
	}
	return nil
}

// Replace swaps the stored record for a live object with obj, which
// must carry the same handle. Reference edges are moved to match the
// new record.
func (r *Registry) Replace(obj hostif.Object) error {
	id := obj.ObjectID()
	s, err := r.lookup(id)
	if err != nil {
		return err
	}
	refs := dedupe(obj.References())
	if err := r.checkRefs(refs); err != nil {
		return err
	}
	for _, old := range s.refs {
		if !slices.Contains(refs, old) {
			delete(r.slots[old.Index()].dependents, id)
		}
	}
	for _, ref := range refs {
		r.slots[ref.Index()].addDependent(id)
	}
	s.obj = obj
	s.refs = refs
	return nil
}

// Dependents returns the live objects referencing id, in handle order.
func (r *Registry) Dependents(id hostif.ObjectID) ([]hostif.ObjectID, error) {
	s, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	return sortedKeys(s.dependents), nil
}

// Remove deletes the object named by id and invalidates the handle.
// It fails with an InUseError listing the blockers while any live
// object references id.
func (r *Registry) Remove(id hostif.ObjectID) (hostif.Object, error) {
	s, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	if len(s.dependents) > 0 {
		return nil, hostif.InUseError{ID: id, Blockers: sortedKeys(s.dependents)}
	}
	for _, ref := range s.refs {
		delete(r.slots[ref.Index()].dependents, id)
	}
	obj := s.obj
	s.obj = nil
	s.refs = nil
	s.dependents = nil
	s.gen = NextGeneration(s.gen)
	r.free = append(r.free, id.Index())
	r.counts[id.Type()]--
	return obj, nil
}

// NextGeneration returns the generation a slot carries after its
// current occupant, of generation gen, is removed. Generations wrap
// within the handle's generation field and never take the value 0.
func NextGeneration(gen uint32) uint32 {
	gen = (gen + 1) & hostif.MaxGeneration
	if gen == 0 {
		gen = 1
	}
	return gen
}

// List returns the live objects of type t in handle order.
func (r *Registry) List(t hostif.ObjectType) []hostif.Object {
	out := make([]hostif.Object, 0, r.counts[t])
	for i := range r.slots {
		if s := &r.slots[i]; s.live() && s.obj.ObjectID().Type() == t {
			out = append(out, s.obj)
		}
	}
	slices.SortFunc(out, func(a, b hostif.Object) int {
		return compareIDs(a.ObjectID(), b.ObjectID())
	})
	return out
}

// Count returns the number of live objects of type t.
func (r *Registry) Count(t hostif.ObjectType) int {
	return r.counts[t]
}

// Slot returns the persistent state of the slot at idx.
func (r *Registry) Slot(idx uint32) SlotState {
	if int64(idx) >= int64(len(r.slots)) {
		return SlotState{Index: idx}
	}
	s := &r.slots[idx]
	st := SlotState{Index: idx, Generation: s.gen}
	if s.live() {
		st.Type = s.obj.ObjectID().Type()
	}
	return st
}

// Restore rebuilds a registry from persisted slot states and the live
// objects occupying them. Each object must sit in a slot whose
// generation matches its handle, and every reference must resolve to
// another restored object.
func Restore(states []SlotState, objects []hostif.Object) (*Registry, error) {
	r := New()
	for _, st := range states {
		if st.Generation == 0 || st.Generation > hostif.MaxGeneration {
			return nil, fmt.Errorf("restore: slot %d has invalid generation %d", st.Index, st.Generation)
		}
		r.grow(st.Index)
		r.slots[st.Index].gen = st.Generation
	}
	for _, obj := range objects {
		id := obj.ObjectID()
		r.grow(id.Index())
		s := &r.slots[id.Index()]
		if s.live() {
			return nil, fmt.Errorf("restore: %s and %s share slot %d", s.obj.ObjectID(), id, id.Index())
		}
		s.gen = id.Generation()
		s.obj = obj
	}
	for _, obj := range objects {
		id := obj.ObjectID()
		refs := dedupe(obj.References())
		for _, ref := range refs {
			if _, err := r.lookup(ref); err != nil {
				return nil, fmt.Errorf("restore %s: %w", id, hostif.ReferenceError{Attr: ref.Type().String(), ID: ref, Err: err})
			}
		}
		s := &r.slots[id.Index()]
		s.obj = nil
		r.place(obj, refs)
	}
	// Lowest free index is reused first.
	for i := len(r.slots) - 1; i >= 0; i-- {
		if !r.slots[i].live() {
			r.free = append(r.free, uint32(i))
		}
	}
	return r, nil
}

func (r *Registry) grow(idx uint32) {
	for int64(len(r.slots)) <= int64(idx) {
		r.slots = append(r.slots, slot{gen: 1})
	}
}

func dedupe(ids []hostif.ObjectID) []hostif.ObjectID {
	var out []hostif.ObjectID
	for _, id := range ids {
		if !id.IsNull() && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func sortedKeys(m map[hostif.ObjectID]struct{}) []hostif.ObjectID {
	out := make([]hostif.ObjectID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	slices.SortFunc(out, compareIDs)
	return out
}

func compareIDs(a, b hostif.ObjectID) int { return cmp.Compare(a, b) }
