package manager

import (
	"errors"
	"log/slog"
)

// undoStack holds compensating actions for the effects of a mutation
// that happen outside the store transaction, such as a materialised
// device. They run newest first when a later step fails.
type undoStack []func() error

func (u *undoStack) push(fn func() error) {
	*u = append(*u, fn)
}

// rollback runs every compensating action in reverse order and joins
// their errors. It keeps going after a failure.
func (u undoStack) rollback(logger *slog.Logger) error {
	var errs []error
	for i := len(u) - 1; i >= 0; i-- {
		if err := u[i](); err != nil {
			logger.Error("rollback step failed", "step", i, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
