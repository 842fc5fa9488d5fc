package cli

import (
	"context"
	"fmt"

	"github.com/frobware/go-hostif"
	"github.com/frobware/go-hostif/bootstrap"
	"github.com/frobware/go-hostif/inspect"
)

// RemoveCmd removes objects.
type RemoveCmd struct {
	IDs []hostif.ObjectID `arg:"" name:"handle" help:"Handles to remove, in order."`
}

// Run executes the remove command.
func (c *RemoveCmd) Run(cli *CLI) error {
	return withClient(cli, func(ctx context.Context, api hostif.API) (string, error) {
		for _, id := range c.IDs {
			if err := api.Remove(ctx, id); err != nil {
				return "", err
			}
		}
		return "", nil
	})
}

// SetCmd updates attributes.
type SetCmd struct {
	OutputFlags
	ID    hostif.ObjectID `arg:"" name:"handle" help:"Object handle."`
	Attrs []Assignment    `arg:"" name:"attribute" sep:"none" help:"NAME=VALUE updates, applied together."`
}

// Run executes the set command.
func (c *SetCmd) Run(cli *CLI) error {
	attrs := make([]hostif.Attribute, 0, len(c.Attrs))
	for _, a := range c.Attrs {
		attr, err := hostif.ParseAttribute(c.ID.Type(), a.Name, a.Value)
		if err != nil {
			return err
		}
		attrs = append(attrs, attr)
	}
	return withClient(cli, func(ctx context.Context, api hostif.API) (string, error) {
		obj, err := api.Set(ctx, c.ID, attrs...)
		if err != nil {
			return "", err
		}
		return FormatObject(obj, &c.OutputFlags)
	})
}

// GetCmd shows one object.
type GetCmd struct {
	OutputFlags
	ID hostif.ObjectID `arg:"" name:"handle" help:"Object handle."`
}

// Run executes the get command.
func (c *GetCmd) Run(cli *CLI) error {
	return withClient(cli, func(ctx context.Context, api hostif.API) (string, error) {
		obj, err := api.Get(ctx, c.ID)
		if err != nil {
			return "", err
		}
		return FormatObject(obj, &c.OutputFlags)
	})
}

// ListCmd lists objects of one type.
type ListCmd struct {
	OutputFlags
	Type hostif.ObjectType `arg:"" name:"type" help:"Object type (trap_group, trap, hostif, rif, table_entry, port, ...)."`
}

// Run executes the list command.
func (c *ListCmd) Run(cli *CLI) error {
	return withClient(cli, func(ctx context.Context, api hostif.API) (string, error) {
		objs, err := api.List(ctx, c.Type)
		if err != nil {
			return "", err
		}
		return FormatObjects(c.Type, objs, &c.OutputFlags)
	})
}

// ResolveCmd shows which table entry governs a trap on an attachment
// point.
type ResolveCmd struct {
	OutputFlags
	Attachment hostif.ObjectID `arg:"" help:"Attachment point handle (port, lag, vlan, rif) or the null handle."`
	Trap       hostif.ObjectID `arg:"" help:"Trap handle."`
}

// Run executes the resolve command.
func (c *ResolveCmd) Run(cli *CLI) error {
	return withClient(cli, func(ctx context.Context, api hostif.API) (string, error) {
		r, err := api.Resolve(ctx, c.Attachment, c.Trap)
		if err != nil {
			return "", err
		}
		return FormatResolution(r, &c.OutputFlags)
	})
}

// DispatchCmd shows the delivery decision for a punted packet.
type DispatchCmd struct {
	OutputFlags
	Attachment hostif.ObjectID `arg:"" help:"Attachment point the packet arrived on."`
	TrapType   hostif.TrapType `arg:"" name:"trap-type" help:"Trap type the packet was classified as."`
}

// Run executes the dispatch command.
func (c *DispatchCmd) Run(cli *CLI) error {
	return withClient(cli, func(ctx context.Context, api hostif.API) (string, error) {
		d, err := api.Dispatch(ctx, c.Attachment, c.TrapType)
		if err != nil {
			return "", err
		}
		return FormatDecision(d, &c.OutputFlags)
	})
}

// StatsCmd shows resolver counters.
type StatsCmd struct {
	OutputFlags
}

// Run executes the stats command.
func (c *StatsCmd) Run(cli *CLI) error {
	ctx := context.Background()
	cl, err := cli.Client(ctx)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	defer cl.Close()

	s, err := cl.Stats(ctx)
	if err != nil {
		return err
	}
	output, err := FormatStats(s, &c.OutputFlags)
	if err != nil {
		return err
	}
	return cli.PrintOut(output)
}

// ApplyCmd creates the objects in a bootstrap file.
type ApplyCmd struct {
	OutputFlags
	File string `arg:"" type:"existingfile" help:"YAML object file."`
}

// Run executes the apply command.
func (c *ApplyCmd) Run(cli *CLI) error {
	doc, err := bootstrap.Load(c.File)
	if err != nil {
		return err
	}
	return withClient(cli, func(ctx context.Context, api hostif.API) (string, error) {
		res, err := bootstrap.Apply(ctx, api, doc)
		if err != nil {
			return "", err
		}
		return FormatApplied(res, &c.OutputFlags)
	})
}

// InspectCmd correlates stored host interfaces with their OS devices.
type InspectCmd struct {
	OutputFlags
	Missing bool `help:"Only show host interfaces whose device is gone."`
}

// Run executes the inspect command.
func (c *InspectCmd) Run(cli *CLI) error {
	ctx := context.Background()
	cl, err := cli.Client(ctx)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	defer cl.Close()

	w, err := cl.Inspect(ctx)
	if err != nil {
		return err
	}
	if c.Missing {
		w = &inspect.World{Devices: w.Missing()}
	}
	output, err := FormatWorld(w, &c.OutputFlags)
	if err != nil {
		return err
	}
	return cli.PrintOut(output)
}
