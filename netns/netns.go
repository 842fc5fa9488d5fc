// Package netns runs functions inside a network namespace.
package netns

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"syscall"

	"golang.org/x/sys/unix"
)

// NamedDir is where iproute2 bind-mounts named network namespaces.
const NamedDir = "/var/run/netns"

// Path resolves a namespace reference to a path. A bare name refers to
// an iproute2 named namespace; anything containing a slash is used as
// is. The empty string means the current namespace.
func Path(ref string) string {
	if ref == "" || filepath.IsAbs(ref) || filepath.Base(ref) != ref {
		return ref
	}
	return filepath.Join(NamedDir, ref)
}

// Inode returns the inode number identifying the namespace at path, or
// the current namespace when path is empty.
func Inode(path string) (uint64, error) {
	if path == "" {
		path = "/proc/self/ns/net"
	}
	var stat syscall.Stat_t
	if err := syscall.Stat(path, &stat); err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	return stat.Ino, nil
}

// Run executes fn in the network namespace at path, or in the current
// namespace when path is empty. The calling thread is locked for the
// duration and switched back afterwards, even if fn panics.
func Run(path string, fn func() error) error {
	if path == "" {
		return fn()
	}

	runtime.LockOSThread()

	originalNS, err := os.Open("/proc/self/ns/net")
	if err != nil {
		runtime.UnlockOSThread()
		return fmt.Errorf("open current netns: %w", err)
	}
	defer originalNS.Close()

	targetNS, err := os.Open(path)
	if err != nil {
		runtime.UnlockOSThread()
		return fmt.Errorf("open target netns %s: %w", path, err)
	}
	defer targetNS.Close()

	if err := unix.Setns(int(targetNS.Fd()), unix.CLONE_NEWNET); err != nil {
		runtime.UnlockOSThread()
		return fmt.Errorf("setns to %s: %w", path, err)
	}
	defer func() {
		// If restoring fails the thread stays locked and is discarded
		// by the runtime when the goroutine exits.
		if err := unix.Setns(int(originalNS.Fd()), unix.CLONE_NEWNET); err == nil {
			runtime.UnlockOSThread()
		}
	}()

	return fn()
}
