// Package action contains reified effects - descriptions of what to do
// without actually doing it. These are pure data structures.
package action

import (
	"github.com/frobware/go-hostif"
	"github.com/frobware/go-hostif/registry"
)

// Action represents an effect to be executed.
// Actions are data - they describe what to do, not how.
type Action interface {
	isAction()
}

// Store actions - operations on the object store

// SaveObject writes an object record, replacing any previous record
// with the same handle. Device is the opaque OS handle materialised for
// a host interface, empty for every other object.
type SaveObject struct {
	Object hostif.Object
	Device string
}

func (SaveObject) isAction() {}

// DeleteObject removes an object record.
type DeleteObject struct {
	ID hostif.ObjectID
}

func (DeleteObject) isAction() {}

// SaveSlot records the generation and occupancy of an arena slot.
type SaveSlot struct {
	State registry.SlotState
}

func (SaveSlot) isAction() {}

// Device actions - operations on the OS integration layer

// DestroyDevice tears down a device previously materialised for a
// host interface.
type DestroyDevice struct {
	Handle string
}

func (DestroyDevice) isAction() {}

// Composite actions

// Sequence executes actions in order, stopping on first error.
type Sequence struct {
	Actions []Action
}

func (Sequence) isAction() {}

// Transaction executes store actions atomically: either all of them
// are committed or none are.
type Transaction struct {
	Actions []Action
}

func (Transaction) isAction() {}
