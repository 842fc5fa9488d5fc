package hostif

import (
	"fmt"
	"strconv"
	"strings"
)

// enumText implements String/Parse for the small closed enums below.
type enumText[T ~uint32] struct {
	kind  string
	names map[T]string
}

func (e enumText[T]) format(v T) string {
	if name, ok := e.names[v]; ok {
		return name
	}
	return fmt.Sprintf("%s(%d)", e.kind, uint32(v))
}

func (e enumText[T]) parse(s string) (T, bool) {
	s = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for v, name := range e.names {
		if name == s {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func (e enumText[T]) unmarshal(text []byte, dst *T) error {
	v, ok := e.parse(string(text))
	if !ok {
		return fmt.Errorf("invalid %s: %q", e.kind, string(text))
	}
	*dst = v
	return nil
}

// PacketAction is the action the forwarding pipeline applies to a
// packet matching a trap.
type PacketAction uint32

const (
	PacketActionDrop PacketAction = iota
	PacketActionForward
	PacketActionCopy
	PacketActionCopyCancel
	PacketActionTrap
	PacketActionLog
	PacketActionDeny
	PacketActionTransit
)

var packetActionText = enumText[PacketAction]{"packet action", map[PacketAction]string{
	PacketActionDrop:       "drop",
	PacketActionForward:    "forward",
	PacketActionCopy:       "copy",
	PacketActionCopyCancel: "copy_cancel",
	PacketActionTrap:       "trap",
	PacketActionLog:        "log",
	PacketActionDeny:       "deny",
	PacketActionTransit:    "transit",
}}

func (a PacketAction) String() string { return packetActionText.format(a) }

// Valid reports whether a is a known packet action.
func (a PacketAction) Valid() bool {
	_, ok := packetActionText.names[a]
	return ok
}

// TakesPriority reports whether a trap priority is meaningful for this
// action. Priority only orders packets that are punted to the CPU.
func (a PacketAction) TakesPriority() bool {
	return a == PacketActionTrap || a == PacketActionCopy
}

// PuntsToCPU reports whether packets subject to this action reach the
// control CPU and so are candidates for host interface delivery.
func (a PacketAction) PuntsToCPU() bool {
	switch a {
	case PacketActionTrap, PacketActionCopy, PacketActionLog:
		return true
	default:
		return false
	}
}

func (a PacketAction) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *PacketAction) UnmarshalText(text []byte) error {
	return packetActionText.unmarshal(text, a)
}

// ParsePacketAction parses a packet action name.
func ParsePacketAction(s string) (PacketAction, bool) { return packetActionText.parse(s) }

// TrapType identifies the class of control-plane traffic a trap
// matches. It is the natural key of a Trap.
type TrapType uint32

const (
	TrapTypeStart                     TrapType = 0x00000000
	TrapTypeLLDP                      TrapType = 0x00000003
	TrapTypeARPRequest                TrapType = 0x00002000
	TrapTypeARPResponse               TrapType = 0x00002001
	TrapTypeIPv6NeighborDiscovery     TrapType = 0x00002009
	TrapTypeIPv6NeighborSolicitation  TrapType = 0x00002012
	TrapTypeIPv6NeighborAdvertisement TrapType = 0x00002013
	TrapTypeIP2Me                     TrapType = 0x00004000
	TrapTypeBGP                       TrapType = 0x00004003
	TrapTypeBGPv6                     TrapType = 0x00004004
	TrapTypeEnd                       TrapType = 0x0000a000

	TrapTypeCustomRangeStart TrapType = 0x10000000
)

type trapTypeInfo struct {
	name          string
	defaultAction PacketAction
}

var trapTypes = map[TrapType]trapTypeInfo{
	TrapTypeLLDP:                      {"lldp", PacketActionDrop},
	TrapTypeARPRequest:                {"arp_request", PacketActionForward},
	TrapTypeARPResponse:               {"arp_response", PacketActionForward},
	TrapTypeIPv6NeighborDiscovery:     {"ipv6_neighbor_discovery", PacketActionForward},
	TrapTypeIPv6NeighborSolicitation:  {"ipv6_neighbor_solicitation", PacketActionForward},
	TrapTypeIPv6NeighborAdvertisement: {"ipv6_neighbor_advertisement", PacketActionForward},
	TrapTypeIP2Me:                     {"ip2me", PacketActionDrop},
	TrapTypeBGP:                       {"bgp", PacketActionDrop},
	TrapTypeBGPv6:                     {"bgpv6", PacketActionDrop},
}

// String returns the catalogue name, or the hex value for trap types
// outside the catalogue.
func (t TrapType) String() string {
	if info, ok := trapTypes[t]; ok {
		return info.name
	}
	return "0x" + strconv.FormatUint(uint64(t), 16)
}

// Valid reports whether t lies in the standard or custom trap range.
func (t TrapType) Valid() bool {
	return (t > TrapTypeStart && t < TrapTypeEnd) || t >= TrapTypeCustomRangeStart
}

// Known reports whether t is one of the catalogued trap types.
func (t TrapType) Known() bool {
	_, ok := trapTypes[t]
	return ok
}

// DefaultPacketAction is the action the pipeline applies to traffic of
// this type when no Trap object has been created for it.
func (t TrapType) DefaultPacketAction() PacketAction {
	if info, ok := trapTypes[t]; ok {
		return info.defaultAction
	}
	return PacketActionDrop
}

func (t TrapType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *TrapType) UnmarshalText(text []byte) error {
	parsed, ok := ParseTrapType(string(text))
	if !ok {
		return fmt.Errorf("invalid trap type: %q", string(text))
	}
	*t = parsed
	return nil
}

// ParseTrapType parses a catalogue name or a numeric trap type.
func ParseTrapType(s string) (TrapType, bool) {
	s = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for t, info := range trapTypes {
		if info.name == s {
			return t, true
		}
	}
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, false
	}
	return TrapType(v), true
}

// KnownTrapTypes returns the catalogued trap types in ascending order.
func KnownTrapTypes() []TrapType {
	return []TrapType{
		TrapTypeLLDP,
		TrapTypeARPRequest,
		TrapTypeARPResponse,
		TrapTypeIPv6NeighborDiscovery,
		TrapTypeIPv6NeighborSolicitation,
		TrapTypeIPv6NeighborAdvertisement,
		TrapTypeIP2Me,
		TrapTypeBGP,
		TrapTypeBGPv6,
	}
}

// HostifType is the kind of delivery endpoint a host interface is.
type HostifType uint32

const (
	HostifTypeNetdev HostifType = iota
	HostifTypeFD
	HostifTypeGenetlink
)

var hostifTypeText = enumText[HostifType]{"hostif type", map[HostifType]string{
	HostifTypeNetdev:    "netdev",
	HostifTypeFD:        "fd",
	HostifTypeGenetlink: "genetlink",
}}

func (t HostifType) String() string { return hostifTypeText.format(t) }

// Valid reports whether t is a known host interface type.
func (t HostifType) Valid() bool {
	_, ok := hostifTypeText.names[t]
	return ok
}

// RequiresObject reports whether a bound object is mandatory for t.
func (t HostifType) RequiresObject() bool { return t == HostifTypeNetdev }

// RequiresName reports whether a name is mandatory for t.
func (t HostifType) RequiresName() bool {
	return t == HostifTypeNetdev || t == HostifTypeGenetlink
}

func (t HostifType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *HostifType) UnmarshalText(text []byte) error {
	return hostifTypeText.unmarshal(text, t)
}

// ParseHostifType parses a host interface type name.
func ParseHostifType(s string) (HostifType, bool) { return hostifTypeText.parse(s) }

// TableEntryType is the match granularity of a table entry.
type TableEntryType uint32

const (
	TableEntryTypePort TableEntryType = iota
	TableEntryTypeLAG
	TableEntryTypeVLAN
	TableEntryTypeTrapID
	TableEntryTypeWildcard
)

var tableEntryTypeText = enumText[TableEntryType]{"table entry type", map[TableEntryType]string{
	TableEntryTypePort:     "port",
	TableEntryTypeLAG:      "lag",
	TableEntryTypeVLAN:     "vlan",
	TableEntryTypeTrapID:   "trap_id",
	TableEntryTypeWildcard: "wildcard",
}}

func (t TableEntryType) String() string { return tableEntryTypeText.format(t) }

// Valid reports whether t is a known table entry type.
func (t TableEntryType) Valid() bool {
	_, ok := tableEntryTypeText.names[t]
	return ok
}

// MatchesObject reports whether entries of this type carry a match
// object (an attachment point).
func (t TableEntryType) MatchesObject() bool {
	return t == TableEntryTypePort || t == TableEntryTypeLAG || t == TableEntryTypeVLAN
}

// MatchesTrap reports whether entries of this type carry a match trap.
func (t TableEntryType) MatchesTrap() bool {
	return t.MatchesObject() || t == TableEntryTypeTrapID
}

// ObjectTypes returns the attachment point types accepted as the
// match object for entries of this type.
func (t TableEntryType) ObjectTypes() ObjectTypeSet {
	switch t {
	case TableEntryTypePort:
		return TypeSet(ObjectTypePort)
	case TableEntryTypeLAG:
		return TypeSet(ObjectTypeLAG)
	case TableEntryTypeVLAN:
		return TypeSet(ObjectTypeVLAN, ObjectTypeRouterInterface)
	default:
		return 0
	}
}

func (t TableEntryType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *TableEntryType) UnmarshalText(text []byte) error {
	return tableEntryTypeText.unmarshal(text, t)
}

// ParseTableEntryType parses a table entry type name.
func ParseTableEntryType(s string) (TableEntryType, bool) { return tableEntryTypeText.parse(s) }

// ChannelType is how a matched packet is delivered to the host.
type ChannelType uint32

const (
	ChannelTypeCallback ChannelType = iota
	ChannelTypeFD
	ChannelTypeNetdevPhysicalPort
	ChannelTypeNetdevLogicalPort
	ChannelTypeNetdevL3
	ChannelTypeGenetlink
)

var channelTypeText = enumText[ChannelType]{"channel type", map[ChannelType]string{
	ChannelTypeCallback:           "callback",
	ChannelTypeFD:                 "fd",
	ChannelTypeNetdevPhysicalPort: "netdev_physical_port",
	ChannelTypeNetdevLogicalPort:  "netdev_logical_port",
	ChannelTypeNetdevL3:           "netdev_l3",
	ChannelTypeGenetlink:          "genetlink",
}}

func (c ChannelType) String() string { return channelTypeText.format(c) }

// Valid reports whether c is a known channel type.
func (c ChannelType) Valid() bool {
	_, ok := channelTypeText.names[c]
	return ok
}

// RequiresHostIf reports whether entries using this channel must name
// a target host interface.
func (c ChannelType) RequiresHostIf() bool {
	return c == ChannelTypeFD || c == ChannelTypeGenetlink
}

// HostifType returns the host interface type a target must have for
// channels that require one.
func (c ChannelType) HostifType() (HostifType, bool) {
	switch c {
	case ChannelTypeFD:
		return HostifTypeFD, true
	case ChannelTypeGenetlink:
		return HostifTypeGenetlink, true
	default:
		return 0, false
	}
}

func (c ChannelType) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *ChannelType) UnmarshalText(text []byte) error {
	return channelTypeText.unmarshal(text, c)
}

// ParseChannelType parses a channel type name. "cb" is accepted as an
// alias for callback.
func ParseChannelType(s string) (ChannelType, bool) {
	if strings.EqualFold(strings.TrimSpace(s), "cb") {
		return ChannelTypeCallback, true
	}
	return channelTypeText.parse(s)
}

// RouterInterfaceType is the kind of attachment a router interface
// binds its virtual router to.
type RouterInterfaceType uint32

const (
	RouterInterfaceTypePort RouterInterfaceType = iota
	RouterInterfaceTypeVLAN
	RouterInterfaceTypeLoopback
	RouterInterfaceTypeMPLSRouter
	RouterInterfaceTypeSubPort
	RouterInterfaceTypeBridge
	RouterInterfaceTypeQinQPort
)

var routerInterfaceTypeText = enumText[RouterInterfaceType]{"router interface type", map[RouterInterfaceType]string{
	RouterInterfaceTypePort:       "port",
	RouterInterfaceTypeVLAN:       "vlan",
	RouterInterfaceTypeLoopback:   "loopback",
	RouterInterfaceTypeMPLSRouter: "mpls_router",
	RouterInterfaceTypeSubPort:    "sub_port",
	RouterInterfaceTypeBridge:     "bridge",
	RouterInterfaceTypeQinQPort:   "qinq_port",
}}

func (t RouterInterfaceType) String() string { return routerInterfaceTypeText.format(t) }

// Valid reports whether t is a known router interface type.
func (t RouterInterfaceType) Valid() bool {
	_, ok := routerInterfaceTypeText.names[t]
	return ok
}

// RequiresPort reports whether router interfaces of this type carry a
// port, LAG or system port attachment. All other types must not.
func (t RouterInterfaceType) RequiresPort() bool {
	return t == RouterInterfaceTypePort || t == RouterInterfaceTypeSubPort
}

func (t RouterInterfaceType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *RouterInterfaceType) UnmarshalText(text []byte) error {
	return routerInterfaceTypeText.unmarshal(text, t)
}

// ParseRouterInterfaceType parses a router interface type name. "mpls"
// is accepted as an alias for mpls_router.
func ParseRouterInterfaceType(s string) (RouterInterfaceType, bool) {
	if strings.EqualFold(strings.TrimSpace(s), "mpls") {
		return RouterInterfaceTypeMPLSRouter, true
	}
	return routerInterfaceTypeText.parse(s)
}
