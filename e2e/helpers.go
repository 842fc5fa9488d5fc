//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vishvananda/netlink"

	"github.com/frobware/go-hostif"
	"github.com/frobware/go-hostif/client"
	"github.com/frobware/go-hostif/config"
	"github.com/frobware/go-hostif/logging"
)

// TestEnv provides an isolated test environment for e2e tests. Each
// test gets its own runtime directory, database and socket, so tests
// may run in parallel. Devices are materialised in the current network
// namespace.
type TestEnv struct {
	T      *testing.T
	Dirs   config.RuntimeDirs
	Client client.Client
	cfg    config.Config
	logger *slog.Logger
}

// NewTestEnv creates an isolated environment with a local client that
// materialises devices. It is cleaned up via t.Cleanup().
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	baseDir := filepath.Join(os.TempDir(), fmt.Sprintf("hostif-e2e-%d-%s", os.Getpid(), sanitizeTestName(t.Name())))
	dirs, err := config.NewRuntimeDirs(baseDir)
	require.NoError(t, err)

	// HOSTIF_LOG=debug or HOSTIF_LOG=info,netdev=debug enables output.
	logger := slog.New(slog.DiscardHandler)
	if envSpec := os.Getenv(logging.EnvVar); envSpec != "" {
		logger, err = logging.New(logging.Options{
			EnvSpec: envSpec,
			Format:  logging.FormatText,
			Output:  os.Stderr,
		})
		if err != nil {
			t.Fatalf("invalid %s spec: %v", logging.EnvVar, err)
		}
	}

	cfg := config.DefaultConfig()
	cfg.Switch.MaterializeDevices = true

	env := &TestEnv{T: t, Dirs: dirs, cfg: cfg, logger: logger}
	env.Reopen()
	t.Cleanup(env.cleanup)
	return env
}

// Reopen closes the current client, if any, and opens a new one on the
// same runtime directory.
func (e *TestEnv) Reopen() {
	e.T.Helper()
	if e.Client != nil {
		require.NoError(e.T, e.Client.Close())
	}
	c, err := client.Open(context.Background(),
		client.WithRuntimeDir(e.Dirs.Base()),
		client.WithLogger(e.logger),
		client.WithConfig(e.cfg),
	)
	require.NoError(e.T, err, "failed to create client")
	e.Client = c
}

func (e *TestEnv) cleanup() {
	if e.Client != nil {
		e.Client.Close()
	}
	if err := os.RemoveAll(e.Dirs.Base()); err != nil {
		e.T.Logf("warning: failed to remove %s: %v", e.Dirs.Base(), err)
	}
	if err := os.RemoveAll(e.Dirs.Sock()); err != nil {
		e.T.Logf("warning: failed to remove %s: %v", e.Dirs.Sock(), err)
	}
}

// AssertHostInterfaceCount verifies the number of host interfaces.
func (e *TestEnv) AssertHostInterfaceCount(expected int) {
	e.T.Helper()
	objs, err := e.Client.List(context.Background(), hostif.ObjectTypeHostInterface)
	require.NoError(e.T, err, "failed to list host interfaces")
	require.Len(e.T, objs, expected, "unexpected host interface count")
}

// Port registers a port to bind host interfaces to.
func (e *TestEnv) Port(label string) hostif.ObjectID {
	e.T.Helper()
	p, err := e.Client.CreateExternal(context.Background(), hostif.ObjectTypePort, label)
	require.NoError(e.T, err)
	return p.ID
}

var tapSeq atomic.Uint32

// TapName returns a netdev name unique to this process and call. The
// result fits in the kernel's 15 character limit.
func TapName() string {
	return fmt.Sprintf("hife%d%02d", os.Getpid()%100000, tapSeq.Add(1)%100)
}

// DeleteLinkOnCleanup removes the named link when the test ends, in
// case the test fails before the engine does.
func DeleteLinkOnCleanup(t *testing.T, name string) {
	t.Cleanup(func() {
		if link, err := netlink.LinkByName(name); err == nil {
			netlink.LinkDel(link)
		}
	})
}

// RequireRoot fails the test if not running as root.
func RequireRoot(t *testing.T) {
	t.Helper()
	if os.Geteuid() != 0 {
		t.Fatal("test requires root privileges")
	}
}

// sanitizeTestName converts a test name to a safe directory name.
func sanitizeTestName(name string) string {
	name = strings.ReplaceAll(name, "/", "-")
	name = strings.ReplaceAll(name, " ", "_")
	if len(name) > 50 {
		name = name[:50]
	}
	return name
}

// cleanupStaleTestDirs removes directories left by runs whose process
// has gone.
func cleanupStaleTestDirs() {
	matches, err := filepath.Glob(filepath.Join(os.TempDir(), "hostif-e2e-*"))
	if err != nil {
		return
	}
	for _, path := range matches {
		parts := strings.Split(filepath.Base(path), "-")
		if len(parts) >= 3 {
			if pid, err := strconv.Atoi(parts[2]); err == nil {
				if _, err := os.Stat(fmt.Sprintf("/proc/%d", pid)); err == nil {
					continue
				}
			}
		}
		os.RemoveAll(path)
		os.RemoveAll(path + "-sock")
	}
}
