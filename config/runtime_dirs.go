package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// RuntimeDirs holds the runtime paths hostifd uses:
//
//	{base}/           runtime root
//	{base}/db/        database directory
//	{base}/.lock      writer lock
//	{base}-sock/      control socket directory
//
// The socket directory sits beside the root so it can be mounted on
// its own. Use NewRuntimeDirs to construct one.
type RuntimeDirs struct {
	base string
	db   string
	sock string
	lock string
}

// DefaultRuntimeDirs returns RuntimeDirs rooted at /run/hostif.
func DefaultRuntimeDirs() RuntimeDirs {
	dirs, err := NewRuntimeDirs("/run/hostif")
	if err != nil {
		panic(fmt.Sprintf("DefaultRuntimeDirs: %v", err))
	}
	return dirs
}

// NewRuntimeDirs derives every runtime path from base, which must be
// absolute.
func NewRuntimeDirs(base string) (RuntimeDirs, error) {
	if base == "" {
		return RuntimeDirs{}, fmt.Errorf("base path cannot be empty")
	}
	if !filepath.IsAbs(base) {
		return RuntimeDirs{}, fmt.Errorf("base path must be absolute, got %q", base)
	}
	base = filepath.Clean(base)
	return RuntimeDirs{
		base: base,
		db:   filepath.Join(base, "db"),
		sock: base + "-sock",
		lock: filepath.Join(base, ".lock"),
	}, nil
}

func (d RuntimeDirs) Base() string { return d.base }
func (d RuntimeDirs) DB() string   { return d.db }
func (d RuntimeDirs) Sock() string { return d.sock }
func (d RuntimeDirs) Lock() string { return d.lock }

// SocketPath is the control API's unix socket.
func (d RuntimeDirs) SocketPath() string {
	return filepath.Join(d.sock, "hostif.sock")
}

// DBPath is the SQLite database file.
func (d RuntimeDirs) DBPath() string {
	return filepath.Join(d.db, "store.db")
}

// EnsureDirectories creates the root, database and socket directories.
func (d RuntimeDirs) EnsureDirectories() error {
	for _, dir := range []string{d.base, d.db, d.sock} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
