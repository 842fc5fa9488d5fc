package cli

import (
	"context"
	"fmt"
	"math"

	"github.com/frobware/go-hostif"
)

// CreateCmd creates objects.
type CreateCmd struct {
	TrapGroup       CreateTrapGroupCmd       `cmd:"" name:"trap-group" help:"Create a trap group."`
	Trap            CreateTrapCmd            `cmd:"" help:"Create a trap."`
	HostInterface   CreateHostInterfaceCmd   `cmd:"" name:"hostif" help:"Create a host interface."`
	RouterInterface CreateRouterInterfaceCmd `cmd:"" name:"rif" help:"Create a router interface."`
	TableEntry      CreateTableEntryCmd      `cmd:"" name:"entry" help:"Create a host interface table entry."`
	External        CreateExternalCmd        `cmd:"" help:"Register an external object (port, lag, vlan, system_port, virtual_router, policer)."`
}

// withClient runs fn with a client and prints what it returns.
func withClient(cli *CLI, fn func(ctx context.Context, api hostif.API) (string, error)) error {
	ctx := context.Background()
	c, err := cli.Client(ctx)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	defer c.Close()

	output, err := fn(ctx, c)
	if err != nil {
		return err
	}
	return cli.PrintOut(output)
}

// CreateTrapGroupCmd creates a trap group.
type CreateTrapGroupCmd struct {
	OutputFlags
	Disabled bool            `help:"Create the group administratively down."`
	Queue    uint32          `help:"CPU queue."`
	Policer  hostif.ObjectID `help:"Policer handle."`
}

// Run executes the create trap-group command.
func (c *CreateTrapGroupCmd) Run(cli *CLI) error {
	return withClient(cli, func(ctx context.Context, api hostif.API) (string, error) {
		admin := !c.Disabled
		g, err := api.CreateTrapGroup(ctx, hostif.TrapGroupSpec{AdminState: &admin, Queue: c.Queue, Policer: c.Policer})
		if err != nil {
			return "", err
		}
		return FormatObject(g, &c.OutputFlags)
	})
}

// CreateTrapCmd creates a trap.
type CreateTrapCmd struct {
	OutputFlags
	TrapType hostif.TrapType     `arg:"" name:"trap-type" help:"Trap type name (lldp, bgp, ...) or number."`
	Action   hostif.PacketAction `name:"action" required:"" help:"Packet action."`
	Group    hostif.ObjectID     `name:"group" required:"" help:"Trap group handle."`
	Priority int64               `name:"priority" default:"-1" help:"Priority, for trap and copy actions. Negative means the switch minimum."`
}

// Run executes the create trap command.
func (c *CreateTrapCmd) Run(cli *CLI) error {
	spec := hostif.TrapSpec{
		TrapType:     c.TrapType,
		PacketAction: c.Action,
		Group:        c.Group,
	}
	if c.Priority >= 0 {
		if c.Priority > math.MaxUint32 {
			return fmt.Errorf("priority %d out of range", c.Priority)
		}
		p := uint32(c.Priority)
		spec.Priority = &p
	}
	return withClient(cli, func(ctx context.Context, api hostif.API) (string, error) {
		t, err := api.CreateTrap(ctx, spec)
		if err != nil {
			return "", err
		}
		return FormatObject(t, &c.OutputFlags)
	})
}

// CreateHostInterfaceCmd creates a host interface.
type CreateHostInterfaceCmd struct {
	OutputFlags
	Type   hostif.HostifType `arg:"" name:"type" help:"netdev, fd or genetlink."`
	Object hostif.ObjectID   `help:"Bound object (netdev only)."`
	Name   string            `help:"Netdev name or generic netlink family."`
	Mcgrp  string            `name:"mcgrp" help:"Generic netlink multicast group."`
}

// Run executes the create hostif command.
func (c *CreateHostInterfaceCmd) Run(cli *CLI) error {
	return withClient(cli, func(ctx context.Context, api hostif.API) (string, error) {
		h, err := api.CreateHostInterface(ctx, hostif.HostInterfaceSpec{
			Type:      c.Type,
			Object:    c.Object,
			Name:      c.Name,
			McgrpName: c.Mcgrp,
		})
		if err != nil {
			return "", err
		}
		return FormatObject(h, &c.OutputFlags)
	})
}

// CreateRouterInterfaceCmd creates a router interface.
type CreateRouterInterfaceCmd struct {
	OutputFlags
	Type          hostif.RouterInterfaceType `arg:"" name:"type" help:"Router interface type."`
	VirtualRouter hostif.ObjectID            `name:"vr" required:"" help:"Virtual router handle."`
	Port          hostif.ObjectID            `help:"Port, LAG or system port handle (port and sub_port types)."`
}

// Run executes the create rif command.
func (c *CreateRouterInterfaceCmd) Run(cli *CLI) error {
	return withClient(cli, func(ctx context.Context, api hostif.API) (string, error) {
		r, err := api.CreateRouterInterface(ctx, hostif.RouterInterfaceSpec{
			VirtualRouter: c.VirtualRouter,
			Type:          c.Type,
			Port:          c.Port,
		})
		if err != nil {
			return "", err
		}
		return FormatObject(r, &c.OutputFlags)
	})
}

// CreateTableEntryCmd creates a table entry.
type CreateTableEntryCmd struct {
	OutputFlags
	Type    hostif.TableEntryType `arg:"" name:"type" help:"port, lag, vlan, trap_id or wildcard."`
	Channel hostif.ChannelType    `required:"" help:"Delivery channel."`
	Object  hostif.ObjectID       `help:"Match object (port, lag and vlan entries)."`
	Trap    hostif.ObjectID       `help:"Match trap."`
	HostIf  hostif.ObjectID       `name:"hostif" help:"Target host interface (fd and genetlink channels)."`
}

// Run executes the create entry command.
func (c *CreateTableEntryCmd) Run(cli *CLI) error {
	return withClient(cli, func(ctx context.Context, api hostif.API) (string, error) {
		e, err := api.CreateTableEntry(ctx, hostif.TableEntrySpec{
			Type:    c.Type,
			Object:  c.Object,
			Trap:    c.Trap,
			Channel: c.Channel,
			HostIf:  c.HostIf,
		})
		if err != nil {
			return "", err
		}
		return FormatObject(e, &c.OutputFlags)
	})
}

// CreateExternalCmd registers an external object.
type CreateExternalCmd struct {
	OutputFlags
	Type  hostif.ObjectType `arg:"" name:"type" help:"External object type."`
	Label string            `arg:"" optional:"" help:"Free-form label, e.g. the port name."`
}

// Run executes the create external command.
func (c *CreateExternalCmd) Run(cli *CLI) error {
	return withClient(cli, func(ctx context.Context, api hostif.API) (string, error) {
		e, err := api.CreateExternal(ctx, c.Type, c.Label)
		if err != nil {
			return "", err
		}
		return FormatObject(e, &c.OutputFlags)
	})
}
