// Package interpreter contains interfaces and executors for effects.
// This is the only package that performs actual I/O.
package interpreter

import (
	"context"
	"io"
	"time"

	"github.com/frobware/go-hostif"
	"github.com/frobware/go-hostif/registry"
)

// StoredObject is an object record as persisted.
type StoredObject struct {
	Object hostif.Object
	// Device is the OS handle of a materialised host interface.
	Device    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ObjectReader reads object records from the store.
// GetObject returns store.ErrNotFound if no record exists.
type ObjectReader interface {
	GetObject(ctx context.Context, id hostif.ObjectID) (StoredObject, error)
}

// ObjectWriter writes object records to the store.
type ObjectWriter interface {
	SaveObject(ctx context.Context, obj hostif.Object, device string) error
	DeleteObject(ctx context.Context, id hostif.ObjectID) error
}

// ObjectLister lists object records in handle order.
type ObjectLister interface {
	ListObjects(ctx context.Context) ([]StoredObject, error)
}

// SlotStore persists arena slot generations so that handles survive a
// restart and stale handles stay stale.
type SlotStore interface {
	SaveSlot(ctx context.Context, state registry.SlotState) error
	ListSlots(ctx context.Context) ([]registry.SlotState, error)
}

// Store combines object and slot store operations.
type Store interface {
	io.Closer
	ObjectReader
	ObjectWriter
	ObjectLister
	SlotStore
	Transactional
}

// Transactional provides atomic execution of store operations.
// The callback receives a Store that participates in the transaction.
// If the callback returns nil, the transaction commits.
// If the callback returns an error, the transaction rolls back.
type Transactional interface {
	RunInTransaction(ctx context.Context, fn func(Store) error) error
}

// DeviceOperations is the OS integration collaborator. It turns a host
// interface record into an OS-level endpoint and back. The returned
// handle is opaque to everything except the implementation.
type DeviceOperations interface {
	MaterializeDevice(ctx context.Context, hif hostif.HostInterface) (string, error)
	DestroyDevice(ctx context.Context, handle string) error
}

// NoDevices is a DeviceOperations that materialises nothing. It is used
// when the engine only keeps declarative state.
type NoDevices struct{}

func (NoDevices) MaterializeDevice(context.Context, hostif.HostInterface) (string, error) {
	return "", nil
}

func (NoDevices) DestroyDevice(context.Context, string) error { return nil }
