package interpreter

import (
	"context"
	"fmt"

	"github.com/frobware/go-hostif/action"
)

// ActionExecutor executes reified actions.
type ActionExecutor interface {
	Execute(ctx context.Context, a action.Action) error
	ExecuteAll(ctx context.Context, actions []action.Action) error
}

// executor interprets and executes actions.
type executor struct {
	store   Store
	devices DeviceOperations
}

// NewExecutor creates a new action executor.
func NewExecutor(store Store, devices DeviceOperations) ActionExecutor {
	if devices == nil {
		devices = NoDevices{}
	}
	return &executor{
		store:   store,
		devices: devices,
	}
}

// Execute runs a single action.
func (e *executor) Execute(ctx context.Context, a action.Action) error {
	switch a := a.(type) {
	case action.SaveObject:
		return e.store.SaveObject(ctx, a.Object, a.Device)

	case action.DeleteObject:
		return e.store.DeleteObject(ctx, a.ID)

	case action.SaveSlot:
		return e.store.SaveSlot(ctx, a.State)

	case action.DestroyDevice:
		if a.Handle == "" {
			return nil
		}
		return e.devices.DestroyDevice(ctx, a.Handle)

	case action.Sequence:
		return e.ExecuteAll(ctx, a.Actions)

	case action.Transaction:
		return e.store.RunInTransaction(ctx, func(tx Store) error {
			return (&executor{store: tx, devices: e.devices}).ExecuteAll(ctx, a.Actions)
		})

	default:
		return fmt.Errorf("unknown action type: %T", a)
	}
}

// ExecuteAll runs multiple actions, stopping on first error.
func (e *executor) ExecuteAll(ctx context.Context, actions []action.Action) error {
	for _, a := range actions {
		if err := e.Execute(ctx, a); err != nil {
			return err
		}
	}
	return nil
}
