// Package lock serialises hostifd instances on one runtime directory
// with flock(2).
//
// Only one process may own a switch's object database. The daemon runs
// its whole lifetime under Run; a second daemon pointed at the same
// runtime directory waits, or gives up when its context is done.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// ErrHeld is returned by TryRun when another process holds the lock.
var ErrHeld = errors.New("lock held by another process")

// Scope is proof that the caller holds the writer lock. It can only be
// obtained inside Run or TryRun, or from Hold.
type Scope interface {
	// Path is the lock file.
	Path() string
	// FD is the lock file descriptor, for diagnostics.
	FD() int

	scopeMarker()
}

type scope struct {
	f *os.File
}

func (*scope) scopeMarker()     {}
func (s *scope) Path() string { return s.f.Name() }
func (s *scope) FD() int      { return int(s.f.Fd()) }

// Run acquires the lock at path, executes fn, then releases it. It
// retries with exponential backoff until the lock is free or ctx is
// done.
func Run(ctx context.Context, path string, fn func(context.Context, Scope) error) error {
	f, err := acquire(ctx, path, true)
	if err != nil {
		return err
	}
	defer f.Close()
	return fn(ctx, &scope{f: f})
}

// TryRun is Run without waiting: it fails with ErrHeld if the lock is
// taken.
func TryRun(ctx context.Context, path string, fn func(context.Context, Scope) error) error {
	f, err := acquire(ctx, path, false)
	if err != nil {
		return err
	}
	defer f.Close()
	return fn(ctx, &scope{f: f})
}

// Held is a lock taken by Hold. It stays held until Close.
type Held struct {
	scope
}

// Close releases the lock.
func (h *Held) Close() error {
	if h == nil || h.f == nil {
		return nil
	}
	return h.f.Close()
}

// Hold acquires the lock at path without waiting and keeps it until the
// returned Held is closed. Local clients use it to own the database for
// as long as they are open.
func Hold(ctx context.Context, path string) (*Held, error) {
	f, err := acquire(ctx, path, false)
	if err != nil {
		return nil, err
	}
	return &Held{scope{f: f}}, nil
}

func acquire(ctx context.Context, path string, wait bool) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|unix.O_CLOEXEC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	backoff := 25 * time.Millisecond
	const maxBackoff = 500 * time.Millisecond

	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, unix.EWOULDBLOCK) {
			f.Close()
			return nil, fmt.Errorf("flock %s: %w", path, err)
		}
		if !wait {
			f.Close()
			return nil, fmt.Errorf("%s: %w", path, ErrHeld)
		}

		select {
		case <-ctx.Done():
			f.Close()
			return nil, ctx.Err()
		case <-time.After(backoff):
		}

		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}
