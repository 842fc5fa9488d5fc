// Package inspect provides a correlated view of host interface state
// across the store and the operating system. It answers whether every
// stored host interface still has the device it was materialised as.
package inspect

import (
	"context"
	"fmt"

	"github.com/frobware/go-hostif"
	"github.com/frobware/go-hostif/interpreter"
)

// StoreLister is the subset of interpreter.Store needed by Snapshot.
type StoreLister interface {
	ListObjects(ctx context.Context) ([]interpreter.StoredObject, error)
}

// DeviceProber reports whether the OS endpoint behind a device handle
// still exists.
type DeviceProber interface {
	DeviceExists(ctx context.Context, handle string) (bool, error)
}

// Presence indicates where a device exists.
type Presence struct {
	InStore bool `json:"in_store"`
	InOS    bool `json:"in_os"`
}

// Missing returns true if the store records a device the OS no longer
// has.
func (p Presence) Missing() bool { return p.InStore && !p.InOS }

// DeviceRow is a store-first view of one host interface and its device.
type DeviceRow struct {
	ID   hostif.ObjectID   `json:"id"`
	Type hostif.HostifType `json:"type"`
	Name string            `json:"name,omitempty"`
	// Handle is empty when the host interface has no OS endpoint, for
	// example fd host interfaces or a daemon that does not materialise
	// devices.
	Handle   string   `json:"handle,omitempty"`
	Presence Presence `json:"presence"`
	// ProbeError is set when the OS could not be asked.
	ProbeError string `json:"probe_error,omitempty"`
}

// World is a point-in-time snapshot of host interface devices.
type World struct {
	Devices []DeviceRow `json:"devices"`
}

// Missing returns the rows whose device is recorded but gone.
func (w *World) Missing() []DeviceRow {
	out := []DeviceRow{}
	for _, d := range w.Devices {
		if d.Presence.Missing() {
			out = append(out, d)
		}
	}
	return out
}

// Snapshot lists the stored host interfaces in handle order and probes
// the device of each one that has a handle. A failed probe is recorded
// on the row and does not fail the snapshot.
func Snapshot(ctx context.Context, store StoreLister, prober DeviceProber) (*World, error) {
	objs, err := store.ListObjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stored objects: %w", err)
	}

	w := &World{Devices: []DeviceRow{}}
	for _, so := range objs {
		h, ok := so.Object.(hostif.HostInterface)
		if !ok {
			continue
		}
		row := DeviceRow{
			ID:     h.ID,
			Type:   h.Type,
			Name:   h.Name,
			Handle: so.Device,
		}
		if so.Device != "" {
			row.Presence.InStore = true
			exists, err := prober.DeviceExists(ctx, so.Device)
			if err != nil {
				row.ProbeError = err.Error()
			}
			row.Presence.InOS = exists
		}
		w.Devices = append(w.Devices, row)
	}
	return w, nil
}
