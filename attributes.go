package hostif

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Attribute is a single typed update applied by Set. The concrete
// types below are the only implementations.
type Attribute interface {
	// ObjectType is the kind of object the attribute belongs to.
	ObjectType() ObjectType
	// Name is the attribute's wire name.
	Name() string
	isAttribute()
}

// TrapGroupAdminState enables or disables delivery for every trap in
// the group.
type TrapGroupAdminState struct{ Value bool }

// TrapGroupQueue moves the group to another CPU queue.
type TrapGroupQueue struct{ Value uint32 }

// TrapGroupPolicer binds or, with the null handle, unbinds a policer.
type TrapGroupPolicer struct{ Value ObjectID }

// TrapPacketAction changes a trap's action. The stored priority is
// kept but only takes effect for trap and copy actions.
type TrapPacketAction struct{ Value PacketAction }

// TrapPriority changes a trap's priority. Only trap and copy actions
// accept it.
type TrapPriority struct{ Value uint32 }

// TrapGroupRef moves a trap to another trap group.
type TrapGroupRef struct{ Value ObjectID }

// TrapTypeAttr names the trap type. It is the trap's key and is
// create-only.
type TrapTypeAttr struct{ Value TrapType }

// CreateOnly is a set of a host interface, router interface or table
// entry attribute. All of those attributes are fixed at creation, so
// applying one always fails with ErrImmutable once the target is known
// to be live.
type CreateOnly struct {
	Type  ObjectType
	Attr  string
	Value string
}

func (TrapGroupAdminState) ObjectType() ObjectType { return ObjectTypeTrapGroup }
func (TrapGroupQueue) ObjectType() ObjectType      { return ObjectTypeTrapGroup }
func (TrapGroupPolicer) ObjectType() ObjectType    { return ObjectTypeTrapGroup }
func (TrapPacketAction) ObjectType() ObjectType    { return ObjectTypeTrap }
func (TrapPriority) ObjectType() ObjectType        { return ObjectTypeTrap }
func (TrapGroupRef) ObjectType() ObjectType        { return ObjectTypeTrap }
func (TrapTypeAttr) ObjectType() ObjectType        { return ObjectTypeTrap }
func (a CreateOnly) ObjectType() ObjectType        { return a.Type }

func (TrapGroupAdminState) Name() string { return "admin_state" }
func (TrapGroupQueue) Name() string      { return "queue" }
func (TrapGroupPolicer) Name() string    { return "policer" }
func (TrapPacketAction) Name() string    { return "packet_action" }
func (TrapPriority) Name() string        { return "priority" }
func (TrapGroupRef) Name() string        { return "group" }
func (TrapTypeAttr) Name() string        { return "trap_type" }
func (a CreateOnly) Name() string        { return a.Attr }

func (TrapGroupAdminState) isAttribute() {}
func (TrapGroupQueue) isAttribute()      {}
func (TrapGroupPolicer) isAttribute()    {}
func (TrapPacketAction) isAttribute()    {}
func (TrapPriority) isAttribute()        {}
func (TrapGroupRef) isAttribute()        {}
func (TrapTypeAttr) isAttribute()        {}
func (CreateOnly) isAttribute()          {}

var attributeNames = map[ObjectType][]string{
	ObjectTypeTrapGroup:       {"admin_state", "queue", "policer"},
	ObjectTypeTrap:            {"trap_type", "packet_action", "priority", "group"},
	ObjectTypeHostInterface:   {"type", "object", "name", "mcgrp_name"},
	ObjectTypeRouterInterface: {"virtual_router", "type", "port"},
	ObjectTypeTableEntry:      {"type", "object", "trap", "channel", "hostif"},
}

// AttributeNames returns the attribute names objects of type t carry,
// in declaration order.
func AttributeNames(t ObjectType) []string {
	return slices.Clone(attributeNames[t])
}

// ParseAttribute builds a typed attribute from its textual name and
// value, as supplied on a command line or over the control API.
func ParseAttribute(t ObjectType, name, value string) (Attribute, error) {
	name = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	names, ok := attributeNames[t]
	if !ok {
		return nil, ValueError{Attr: "type", Reason: fmt.Sprintf("%s objects have no settable attributes", t)}
	}
	if !slices.Contains(names, name) {
		return nil, ValueError{Attr: name, Reason: fmt.Sprintf("unknown %s attribute", t)}
	}

	invalid := func(err error) error {
		return ValueError{Attr: name, Reason: err.Error()}
	}

	switch t {
	case ObjectTypeTrapGroup:
		switch name {
		case "admin_state":
			v, err := strconv.ParseBool(value)
			if err != nil {
				return nil, invalid(err)
			}
			return TrapGroupAdminState{Value: v}, nil
		case "queue":
			v, err := strconv.ParseUint(value, 0, 32)
			if err != nil {
				return nil, invalid(err)
			}
			return TrapGroupQueue{Value: uint32(v)}, nil
		case "policer":
			v, err := ParseObjectID(value)
			if err != nil {
				return nil, invalid(err)
			}
			return TrapGroupPolicer{Value: v}, nil
		}
	case ObjectTypeTrap:
		switch name {
		case "trap_type":
			v, ok := ParseTrapType(value)
			if !ok {
				return nil, ValueError{Attr: name, Reason: fmt.Sprintf("unknown trap type %q", value)}
			}
			return TrapTypeAttr{Value: v}, nil
		case "packet_action":
			v, ok := ParsePacketAction(value)
			if !ok {
				return nil, ValueError{Attr: name, Reason: fmt.Sprintf("unknown packet action %q", value)}
			}
			return TrapPacketAction{Value: v}, nil
		case "priority":
			v, err := strconv.ParseUint(value, 0, 32)
			if err != nil {
				return nil, invalid(err)
			}
			return TrapPriority{Value: uint32(v)}, nil
		case "group":
			v, err := ParseObjectID(value)
			if err != nil {
				return nil, invalid(err)
			}
			return TrapGroupRef{Value: v}, nil
		}
	}
	return CreateOnly{Type: t, Attr: name, Value: value}, nil
}

// AttributeValue renders a's value in the form ParseAttribute accepts.
func AttributeValue(a Attribute) string {
	switch v := a.(type) {
	case TrapGroupAdminState:
		return strconv.FormatBool(v.Value)
	case TrapGroupQueue:
		return strconv.FormatUint(uint64(v.Value), 10)
	case TrapGroupPolicer:
		return v.Value.String()
	case TrapPacketAction:
		return v.Value.String()
	case TrapPriority:
		return strconv.FormatUint(uint64(v.Value), 10)
	case TrapGroupRef:
		return v.Value.String()
	case TrapTypeAttr:
		return v.Value.String()
	case CreateOnly:
		return v.Value
	}
	return ""
}
