// Package bootstrap applies a declarative set of host interface
// objects, written in YAML, through any hostif.API.
//
// Objects name each other by a local id. A reference may also be an
// existing handle written as "oid:0x...". Objects are created in
// dependency order, and a failure removes everything the apply created
// so far:
//
//	externals:
//	  - {id: eth0, type: port, label: Ethernet0}
//	trap_groups:
//	  - {id: default, queue: 4}
//	traps:
//	  - {id: lldp, trap_type: lldp, packet_action: trap, group: default}
//	host_interfaces:
//	  - {id: eth0-netdev, type: netdev, object: eth0, name: Ethernet0}
//	table_entries:
//	  - {id: all, type: wildcard, channel: netdev_physical_port}
package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/frobware/go-hostif"
)

// Document is the top-level YAML structure.
type Document struct {
	Externals        []External        `yaml:"externals"`
	TrapGroups       []TrapGroup       `yaml:"trap_groups"`
	Traps            []Trap            `yaml:"traps"`
	RouterInterfaces []RouterInterface `yaml:"router_interfaces"`
	HostInterfaces   []HostInterface   `yaml:"host_interfaces"`
	TableEntries     []TableEntry      `yaml:"table_entries"`
}

type External struct {
	ID    string            `yaml:"id"`
	Type  hostif.ObjectType `yaml:"type"`
	Label string            `yaml:"label"`
}

type TrapGroup struct {
	ID         string `yaml:"id"`
	AdminState *bool  `yaml:"admin_state"`
	Queue      uint32 `yaml:"queue"`
	Policer    string `yaml:"policer"`
}

type Trap struct {
	ID           string              `yaml:"id"`
	TrapType     hostif.TrapType     `yaml:"trap_type"`
	PacketAction hostif.PacketAction `yaml:"packet_action"`
	Priority     *uint32             `yaml:"priority"`
	Group        string              `yaml:"group"`
}

type RouterInterface struct {
	ID            string                     `yaml:"id"`
	VirtualRouter string                     `yaml:"virtual_router"`
	Type          hostif.RouterInterfaceType `yaml:"type"`
	Port          string                     `yaml:"port"`
}

type HostInterface struct {
	ID        string            `yaml:"id"`
	Type      hostif.HostifType `yaml:"type"`
	Object    string            `yaml:"object"`
	Name      string            `yaml:"name"`
	McgrpName string            `yaml:"mcgrp_name"`
}

type TableEntry struct {
	ID      string                `yaml:"id"`
	Type    hostif.TableEntryType `yaml:"type"`
	Object  string                `yaml:"object"`
	Trap    string                `yaml:"trap"`
	Channel hostif.ChannelType    `yaml:"channel"`
	HostIf  string                `yaml:"hostif"`
}

// Parse decodes a document. Unknown keys are rejected.
func Parse(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return &doc, nil
		}
		return nil, fmt.Errorf("parse bootstrap document: %w", err)
	}
	return &doc, nil
}

// Load reads and parses the document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bootstrap document: %w", err)
	}
	doc, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Result maps each local id to the handle it was created as, in
// creation order.
type Result struct {
	IDs     map[string]hostif.ObjectID
	Created []hostif.ObjectID
}

// ApplyError reports which object failed. Err carries the engine's
// error kind.
type ApplyError struct {
	Section string
	ID      string
	Err     error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Section, e.ID, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

type applier struct {
	api hostif.API
	res Result
}

// Apply creates every object in doc through api. On failure it removes
// the objects it created, newest first, and returns the creation error
// joined with any removal failures.
func Apply(ctx context.Context, api hostif.API, doc *Document) (Result, error) {
	if err := doc.checkIDs(); err != nil {
		return Result{}, err
	}
	a := &applier{api: api, res: Result{IDs: make(map[string]hostif.ObjectID)}}
	if err := a.apply(ctx, doc); err != nil {
		return Result{}, errors.Join(err, a.rollback(ctx))
	}
	return a.res, nil
}

func (a *applier) apply(ctx context.Context, doc *Document) error {
	for _, x := range doc.Externals {
		obj, err := a.api.CreateExternal(ctx, x.Type, x.Label)
		if err := a.record("externals", x.ID, obj.ID, err); err != nil {
			return err
		}
	}
	for _, x := range doc.TrapGroups {
		spec := hostif.TrapGroupSpec{AdminState: x.AdminState, Queue: x.Queue}
		var err error
		if spec.Policer, err = a.ref(x.Policer); err != nil {
			return &ApplyError{"trap_groups", x.ID, err}
		}
		obj, err := a.api.CreateTrapGroup(ctx, spec)
		if err := a.record("trap_groups", x.ID, obj.ID, err); err != nil {
			return err
		}
	}
	for _, x := range doc.Traps {
		spec := hostif.TrapSpec{TrapType: x.TrapType, PacketAction: x.PacketAction, Priority: x.Priority}
		var err error
		if spec.Group, err = a.ref(x.Group); err != nil {
			return &ApplyError{"traps", x.ID, err}
		}
		obj, err := a.api.CreateTrap(ctx, spec)
		if err := a.record("traps", x.ID, obj.ID, err); err != nil {
			return err
		}
	}
	for _, x := range doc.RouterInterfaces {
		spec := hostif.RouterInterfaceSpec{Type: x.Type}
		var err error
		if spec.VirtualRouter, err = a.ref(x.VirtualRouter); err != nil {
			return &ApplyError{"router_interfaces", x.ID, err}
		}
		if spec.Port, err = a.ref(x.Port); err != nil {
			return &ApplyError{"router_interfaces", x.ID, err}
		}
		obj, err := a.api.CreateRouterInterface(ctx, spec)
		if err := a.record("router_interfaces", x.ID, obj.ID, err); err != nil {
			return err
		}
	}
	for _, x := range doc.HostInterfaces {
		spec := hostif.HostInterfaceSpec{Type: x.Type, Name: x.Name, McgrpName: x.McgrpName}
		var err error
		if spec.Object, err = a.ref(x.Object); err != nil {
			return &ApplyError{"host_interfaces", x.ID, err}
		}
		obj, err := a.api.CreateHostInterface(ctx, spec)
		if err := a.record("host_interfaces", x.ID, obj.ID, err); err != nil {
			return err
		}
	}
	for _, x := range doc.TableEntries {
		spec := hostif.TableEntrySpec{Type: x.Type, Channel: x.Channel}
		var err error
		if spec.Object, err = a.ref(x.Object); err != nil {
			return &ApplyError{"table_entries", x.ID, err}
		}
		if spec.Trap, err = a.ref(x.Trap); err != nil {
			return &ApplyError{"table_entries", x.ID, err}
		}
		if spec.HostIf, err = a.ref(x.HostIf); err != nil {
			return &ApplyError{"table_entries", x.ID, err}
		}
		obj, err := a.api.CreateTableEntry(ctx, spec)
		if err := a.record("table_entries", x.ID, obj.ID, err); err != nil {
			return err
		}
	}
	return nil
}

func (a *applier) record(section, local string, id hostif.ObjectID, err error) error {
	if err != nil {
		return &ApplyError{Section: section, ID: local, Err: err}
	}
	a.res.Created = append(a.res.Created, id)
	if local != "" {
		a.res.IDs[local] = id
	}
	return nil
}

// ref resolves a reference to an earlier local id or a literal handle.
// The empty reference is the null handle.
func (a *applier) ref(name string) (hostif.ObjectID, error) {
	switch {
	case name == "":
		return hostif.NullObjectID, nil
	case strings.HasPrefix(name, "oid:"):
		return hostif.ParseObjectID(name)
	}
	id, ok := a.res.IDs[name]
	if !ok {
		return hostif.NullObjectID, fmt.Errorf("%w: %q is not defined before use", hostif.ErrInvalidReference, name)
	}
	return id, nil
}

func (a *applier) rollback(ctx context.Context) error {
	var errs []error
	for i := len(a.res.Created) - 1; i >= 0; i-- {
		id := a.res.Created[i]
		if err := a.api.Remove(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("rollback remove %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// checkIDs rejects duplicate local ids and ids that look like handles.
func (d *Document) checkIDs() error {
	seen := make(map[string]string)
	check := func(section, id string) error {
		if strings.HasPrefix(id, "oid:") {
			return fmt.Errorf("%s: id %q must not look like a handle", section, id)
		}
		if id == "" {
			return nil
		}
		if prev, ok := seen[id]; ok {
			return fmt.Errorf("%s: id %q already used in %s", section, id, prev)
		}
		seen[id] = section
		return nil
	}
	var errs []error
	for _, x := range d.Externals {
		errs = append(errs, check("externals", x.ID))
	}
	for _, x := range d.TrapGroups {
		errs = append(errs, check("trap_groups", x.ID))
	}
	for _, x := range d.Traps {
		errs = append(errs, check("traps", x.ID))
	}
	for _, x := range d.RouterInterfaces {
		errs = append(errs, check("router_interfaces", x.ID))
	}
	for _, x := range d.HostInterfaces {
		errs = append(errs, check("host_interfaces", x.ID))
	}
	for _, x := range d.TableEntries {
		errs = append(errs, check("table_entries", x.ID))
	}
	return errors.Join(errs...)
}
