package hostif

import (
	"fmt"
	"strconv"
	"strings"
)

// ObjectType is the type tag carried in the top byte of every ObjectID.
type ObjectType uint8

const (
	ObjectTypeNull ObjectType = iota
	ObjectTypePort
	ObjectTypeLAG
	ObjectTypeVLAN
	ObjectTypeSystemPort
	ObjectTypeVirtualRouter
	ObjectTypePolicer
	ObjectTypeRouterInterface
	ObjectTypeTrapGroup
	ObjectTypeTrap
	ObjectTypeHostInterface
	ObjectTypeTableEntry
	objectTypeMax
)

var objectTypeNames = [...]string{
	ObjectTypeNull:            "null",
	ObjectTypePort:            "port",
	ObjectTypeLAG:             "lag",
	ObjectTypeVLAN:            "vlan",
	ObjectTypeSystemPort:      "system_port",
	ObjectTypeVirtualRouter:   "virtual_router",
	ObjectTypePolicer:         "policer",
	ObjectTypeRouterInterface: "router_interface",
	ObjectTypeTrapGroup:       "trap_group",
	ObjectTypeTrap:            "trap",
	ObjectTypeHostInterface:   "hostif",
	ObjectTypeTableEntry:      "table_entry",
}

// String returns the string representation of the object type.
func (t ObjectType) String() string {
	if t < objectTypeMax {
		return objectTypeNames[t]
	}
	return fmt.Sprintf("ObjectType(%d)", uint8(t))
}

// Valid reports whether t is a known, non-null object type.
func (t ObjectType) Valid() bool {
	return t > ObjectTypeNull && t < objectTypeMax
}

// External reports whether objects of this type are owned by another
// part of the switch and are only registered here so that references
// to them can be checked.
func (t ObjectType) External() bool {
	switch t {
	case ObjectTypePort, ObjectTypeLAG, ObjectTypeVLAN, ObjectTypeSystemPort,
		ObjectTypeVirtualRouter, ObjectTypePolicer:
		return true
	default:
		return false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t ObjectType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *ObjectType) UnmarshalText(text []byte) error {
	parsed, ok := ParseObjectType(string(text))
	if !ok {
		return fmt.Errorf("invalid object type: %q", string(text))
	}
	*t = parsed
	return nil
}

// ParseObjectType parses a string into an ObjectType. A handful of
// common aliases are accepted in addition to the canonical names.
func ParseObjectType(s string) (ObjectType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "rif":
		return ObjectTypeRouterInterface, true
	case "host_interface", "host-interface":
		return ObjectTypeHostInterface, true
	case "vr":
		return ObjectTypeVirtualRouter, true
	}
	s = strings.ReplaceAll(s, "-", "_")
	for i, name := range objectTypeNames {
		if ObjectType(i) != ObjectTypeNull && name == s {
			return ObjectType(i), true
		}
	}
	return ObjectTypeNull, false
}

// ObjectTypeSet is the set of object types a reference field accepts.
type ObjectTypeSet uint32

// TypeSet builds an ObjectTypeSet from the given types.
func TypeSet(types ...ObjectType) ObjectTypeSet {
	var s ObjectTypeSet
	for _, t := range types {
		s |= 1 << t
	}
	return s
}

// Contains reports whether t is a member of the set.
func (s ObjectTypeSet) Contains(t ObjectType) bool {
	return t < objectTypeMax && s&(1<<t) != 0
}

// Types returns the members of the set in tag order.
func (s ObjectTypeSet) Types() []ObjectType {
	var out []ObjectType
	for t := ObjectTypeNull + 1; t < objectTypeMax; t++ {
		if s.Contains(t) {
			out = append(out, t)
		}
	}
	return out
}

func (s ObjectTypeSet) String() string {
	types := s.Types()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	return "{" + strings.Join(names, ",") + "}"
}

// ObjectID is an opaque, process-unique object handle.
//
// Layout (most significant bit first):
//
//	[63:56] object type tag
//	[55:32] generation
//	[31:0]  arena slot index
//
// The generation of a slot is bumped when its object is destroyed, so
// a retained copy of a destroyed handle is detectably stale and never
// aliases the object that later reuses the slot. A valid handle always
// has a non-zero generation, which keeps NullObjectID unambiguous.
type ObjectID uint64

// NullObjectID denotes an absent reference.
const NullObjectID ObjectID = 0

const (
	generationBits = 24
	generationMask = 1<<generationBits - 1
	// MaxGeneration is the largest generation a slot can carry before
	// it wraps back to 1.
	MaxGeneration = generationMask
)

// MakeObjectID assembles a handle from its components.
func MakeObjectID(t ObjectType, generation uint32, index uint32) ObjectID {
	return ObjectID(uint64(t)<<56 | uint64(generation&generationMask)<<32 | uint64(index))
}

// Type returns the type tag encoded in the handle.
func (id ObjectID) Type() ObjectType { return ObjectType(id >> 56) }

// Generation returns the slot generation encoded in the handle.
func (id ObjectID) Generation() uint32 { return uint32(id>>32) & generationMask }

// Index returns the arena slot index encoded in the handle.
func (id ObjectID) Index() uint32 { return uint32(id) }

// IsNull reports whether id is the null handle.
func (id ObjectID) IsNull() bool { return id == NullObjectID }

// String formats the handle the way switch tooling conventionally
// prints object IDs.
func (id ObjectID) String() string {
	return "oid:0x" + strconv.FormatUint(uint64(id), 16)
}

// MarshalText implements encoding.TextMarshaler. Handles are encoded
// as strings because they do not fit in a JSON number.
func (id ObjectID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ObjectID) UnmarshalText(text []byte) error {
	parsed, err := ParseObjectID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseObjectID parses "oid:0x...", "0x..." or a decimal handle.
// The empty string parses as NullObjectID.
func ParseObjectID(s string) (ObjectID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return NullObjectID, nil
	}
	s = strings.TrimPrefix(s, "oid:")
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return NullObjectID, fmt.Errorf("invalid object id %q: %w", s, err)
	}
	return ObjectID(v), nil
}
