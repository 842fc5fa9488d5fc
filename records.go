package hostif

import (
	"encoding/json"
	"fmt"
)

const (
	// NameSize is the storage size of a host interface name including
	// the terminating NUL, so at most NameSize-1 visible characters.
	NameSize = 16
	// GenetlinkMcgrpNameSize is the storage size of a generic netlink
	// multicast group name including the terminating NUL.
	GenetlinkMcgrpNameSize = 16
)

// Object is implemented by every record the registry stores.
type Object interface {
	ObjectID() ObjectID
	// References returns the handles this object holds. Each is a
	// dependency that cannot be destroyed while this object lives.
	References() []ObjectID
}

// External is a record for an object owned by another part of the
// switch (port, LAG, VLAN, system port, virtual router, policer). The
// engine only needs to know that it exists.
type External struct {
	ID    ObjectID `json:"id"`
	Label string   `json:"label,omitempty"`
}

func (e External) ObjectID() ObjectID     { return e.ID }
func (e External) References() []ObjectID { return nil }

// TrapGroupSpec describes a trap group to create.
type TrapGroupSpec struct {
	// AdminState defaults to true when nil.
	AdminState *bool    `json:"admin_state,omitempty" yaml:"admin_state,omitempty"`
	Queue      uint32   `json:"queue,omitempty" yaml:"queue,omitempty"`
	Policer    ObjectID `json:"policer,omitempty" yaml:"-"`
}

// TrapGroup groups traps that share a CPU queue and an optional
// policer. With AdminState false no trap in the group is delivered.
type TrapGroup struct {
	ID         ObjectID `json:"id"`
	AdminState bool     `json:"admin_state"`
	Queue      uint32   `json:"queue"`
	Policer    ObjectID `json:"policer,omitempty"`
}

func (g TrapGroup) ObjectID() ObjectID { return g.ID }

func (g TrapGroup) References() []ObjectID { return nonNull(g.Policer) }

// TrapSpec describes a trap to create.
type TrapSpec struct {
	TrapType     TrapType     `json:"trap_type"`
	PacketAction PacketAction `json:"packet_action"`
	// Priority defaults to the switch minimum ACL priority when nil.
	// It may only be supplied for trap and copy actions.
	Priority *uint32  `json:"priority,omitempty"`
	Group    ObjectID `json:"group"`
}

// Trap maps a trap type to a packet action, priority and trap group.
type Trap struct {
	ID           ObjectID     `json:"id"`
	TrapType     TrapType     `json:"trap_type"`
	PacketAction PacketAction `json:"packet_action"`
	Priority     uint32       `json:"priority"`
	Group        ObjectID     `json:"group"`
}

func (t Trap) ObjectID() ObjectID { return t.ID }

func (t Trap) References() []ObjectID { return nonNull(t.Group) }

// HostInterfaceSpec describes a host interface to create.
type HostInterfaceSpec struct {
	Type HostifType `json:"type"`
	// Object is the bound port, LAG, VLAN, system port or router
	// interface. Netdev only.
	Object ObjectID `json:"object,omitempty"`
	// Name is the netdev name, or the generic netlink family name.
	Name string `json:"name,omitempty"`
	// McgrpName is the generic netlink multicast group. Genetlink only.
	McgrpName string `json:"mcgrp_name,omitempty"`
}

// HostInterface is a delivery endpoint for trapped packets.
type HostInterface struct {
	ID        ObjectID   `json:"id"`
	Type      HostifType `json:"type"`
	Object    ObjectID   `json:"object,omitempty"`
	Name      string     `json:"name,omitempty"`
	McgrpName string     `json:"mcgrp_name,omitempty"`
}

func (h HostInterface) ObjectID() ObjectID { return h.ID }

func (h HostInterface) References() []ObjectID { return nonNull(h.Object) }

// RouterInterfaceSpec describes a router interface to create.
type RouterInterfaceSpec struct {
	VirtualRouter ObjectID            `json:"virtual_router"`
	Type          RouterInterfaceType `json:"type"`
	// Port is the port, LAG or system port attachment. Required for
	// port and sub_port types and rejected for every other type.
	Port ObjectID `json:"port,omitempty"`
}

// RouterInterface binds a virtual router to an attachment point.
type RouterInterface struct {
	ID            ObjectID            `json:"id"`
	VirtualRouter ObjectID            `json:"virtual_router"`
	Type          RouterInterfaceType `json:"type"`
	Port          ObjectID            `json:"port,omitempty"`
}

func (r RouterInterface) ObjectID() ObjectID { return r.ID }

func (r RouterInterface) References() []ObjectID { return nonNull(r.VirtualRouter, r.Port) }

// TableEntrySpec describes a host interface table entry to create.
type TableEntrySpec struct {
	Type    TableEntryType `json:"type"`
	Object  ObjectID       `json:"object,omitempty"`
	Trap    ObjectID       `json:"trap,omitempty"`
	Channel ChannelType    `json:"channel"`
	HostIf  ObjectID       `json:"hostif,omitempty"`
}

// TableEntry binds an attachment point and/or trap to a delivery
// channel and, for fd and genetlink channels, a target host interface.
// Every field is create-only.
type TableEntry struct {
	ID      ObjectID       `json:"id"`
	Type    TableEntryType `json:"type"`
	Object  ObjectID       `json:"object,omitempty"`
	Trap    ObjectID       `json:"trap,omitempty"`
	Channel ChannelType    `json:"channel"`
	HostIf  ObjectID       `json:"hostif,omitempty"`
}

func (e TableEntry) ObjectID() ObjectID { return e.ID }

func (e TableEntry) References() []ObjectID { return nonNull(e.Object, e.Trap, e.HostIf) }

// Verify interface compliance at compile time.
var (
	_ Object = External{}
	_ Object = TrapGroup{}
	_ Object = Trap{}
	_ Object = HostInterface{}
	_ Object = RouterInterface{}
	_ Object = TableEntry{}
)

func nonNull(ids ...ObjectID) []ObjectID {
	var out []ObjectID
	for _, id := range ids {
		if !id.IsNull() {
			out = append(out, id)
		}
	}
	return out
}

// DecodeObject unmarshals a JSON-encoded record of type t into its
// concrete Go type.
func DecodeObject(t ObjectType, data []byte) (Object, error) {
	var (
		obj Object
		err error
	)
	switch {
	case t.External():
		var v External
		err = json.Unmarshal(data, &v)
		obj = v
	case t == ObjectTypeTrapGroup:
		var v TrapGroup
		err = json.Unmarshal(data, &v)
		obj = v
	case t == ObjectTypeTrap:
		var v Trap
		err = json.Unmarshal(data, &v)
		obj = v
	case t == ObjectTypeHostInterface:
		var v HostInterface
		err = json.Unmarshal(data, &v)
		obj = v
	case t == ObjectTypeRouterInterface:
		var v RouterInterface
		err = json.Unmarshal(data, &v)
		obj = v
	case t == ObjectTypeTableEntry:
		var v TableEntry
		err = json.Unmarshal(data, &v)
		obj = v
	default:
		return nil, fmt.Errorf("cannot decode object of type %s", t)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", t, err)
	}
	if obj.ObjectID().Type() != t {
		return nil, fmt.Errorf("decode %s: id %s carries type %s", t, obj.ObjectID(), obj.ObjectID().Type())
	}
	return obj, nil
}
