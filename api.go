package hostif

import "context"

// API is the host interface and router interface method table. The
// in-process manager and both control clients implement it, so tools
// can be written once against either.
type API interface {
	CreateTrapGroup(ctx context.Context, spec TrapGroupSpec) (TrapGroup, error)
	RemoveTrapGroup(ctx context.Context, id ObjectID) error
	GetTrapGroup(ctx context.Context, id ObjectID) (TrapGroup, error)

	CreateTrap(ctx context.Context, spec TrapSpec) (Trap, error)
	RemoveTrap(ctx context.Context, id ObjectID) error
	GetTrap(ctx context.Context, id ObjectID) (Trap, error)

	CreateHostInterface(ctx context.Context, spec HostInterfaceSpec) (HostInterface, error)
	RemoveHostInterface(ctx context.Context, id ObjectID) error
	GetHostInterface(ctx context.Context, id ObjectID) (HostInterface, error)

	CreateRouterInterface(ctx context.Context, spec RouterInterfaceSpec) (RouterInterface, error)
	RemoveRouterInterface(ctx context.Context, id ObjectID) error
	GetRouterInterface(ctx context.Context, id ObjectID) (RouterInterface, error)

	CreateTableEntry(ctx context.Context, spec TableEntrySpec) (TableEntry, error)
	RemoveTableEntry(ctx context.Context, id ObjectID) error
	GetTableEntry(ctx context.Context, id ObjectID) (TableEntry, error)

	// Set applies attribute updates to any object, all or nothing.
	Set(ctx context.Context, id ObjectID, attrs ...Attribute) (Object, error)

	// CreateExternal registers an object owned by another part of the
	// switch so it can be referenced.
	CreateExternal(ctx context.Context, t ObjectType, label string) (External, error)
	// RemoveExternal unregisters an external object.
	RemoveExternal(ctx context.Context, id ObjectID) error

	// Remove removes any object by handle, dispatching on its type.
	Remove(ctx context.Context, id ObjectID) error
	// Get returns any live object by handle.
	Get(ctx context.Context, id ObjectID) (Object, error)
	// List returns every live object of type t in handle order.
	List(ctx context.Context, t ObjectType) ([]Object, error)

	// Resolve returns the table entry that governs delivery of trap
	// traffic arriving on attachment, or ErrNoMatch.
	Resolve(ctx context.Context, attachment, trap ObjectID) (Resolution, error)
	// Dispatch computes the full delivery decision for a punted packet
	// classified as trapType on attachment.
	Dispatch(ctx context.Context, attachment ObjectID, trapType TrapType) (Decision, error)
}

// MatchLevel is the precedence level at which a table entry matched.
type MatchLevel uint32

const (
	MatchLevelNone MatchLevel = iota
	MatchLevelObject
	MatchLevelTrapID
	MatchLevelWildcard
)

var matchLevelText = enumText[MatchLevel]{"match level", map[MatchLevel]string{
	MatchLevelNone:     "none",
	MatchLevelObject:   "object",
	MatchLevelTrapID:   "trap_id",
	MatchLevelWildcard: "wildcard",
}}

func (l MatchLevel) String() string { return matchLevelText.format(l) }

func (l MatchLevel) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (l *MatchLevel) UnmarshalText(text []byte) error {
	return matchLevelText.unmarshal(text, l)
}

// Resolution is a successful table lookup.
type Resolution struct {
	Entry TableEntry `json:"entry"`
	Level MatchLevel `json:"level"`
}

// Decision is the delivery decision for one punted packet.
type Decision struct {
	Attachment ObjectID     `json:"attachment"`
	TrapType   TrapType     `json:"trap_type"`
	Trap       ObjectID     `json:"trap,omitempty"`
	Action     PacketAction `json:"action"`
	Priority   uint32       `json:"priority"`
	Group      ObjectID     `json:"group,omitempty"`
	Queue      uint32       `json:"queue"`
	Policer    ObjectID     `json:"policer,omitempty"`
	// Delivered reports whether the packet reaches a host channel. It
	// is false when the action does not punt, the group is disabled or
	// no table entry matched.
	Delivered bool        `json:"delivered"`
	Channel   ChannelType `json:"channel"`
	HostIf    ObjectID    `json:"hostif,omitempty"`
	Entry     ObjectID    `json:"entry,omitempty"`
	Level     MatchLevel  `json:"level"`
	// Reason explains an undelivered decision.
	Reason string `json:"reason,omitempty"`
}
