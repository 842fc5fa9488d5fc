package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"

	"google.golang.org/grpc"

	"github.com/frobware/go-hostif/config"
	"github.com/frobware/go-hostif/lock"
	"github.com/frobware/go-hostif/server"
)

// ephemeralClient runs an in-process server over the runtime
// directory's database and talks to it through a remote client on a
// private socket, so local commands take the same code path as remote
// ones.
type ephemeralClient struct {
	*remoteClient

	held       *lock.Held
	env        *server.Env
	grpcServer *grpc.Server
	socketDir  string
	wg         sync.WaitGroup
	logger     *slog.Logger
}

func newEphemeral(ctx context.Context, dirs config.RuntimeDirs, cfg config.Config, logger *slog.Logger) (_ *ephemeralClient, err error) {
	e := &ephemeralClient{logger: logger}
	defer func() {
		if err != nil {
			e.Close()
		}
	}()

	if err := dirs.EnsureDirectories(); err != nil {
		return nil, err
	}
	if e.held, err = lock.Hold(ctx, dirs.Lock()); err != nil {
		return nil, fmt.Errorf("runtime directory %s is in use: %w", dirs.Base(), err)
	}
	if e.env, err = server.OpenEnv(ctx, dirs, cfg, logger, nil); err != nil {
		return nil, fmt.Errorf("setup runtime: %w", err)
	}

	if e.socketDir, err = os.MkdirTemp("", "hostif-ephemeral-"); err != nil {
		return nil, err
	}
	socketPath := filepath.Join(e.socketDir, "hostif.sock")
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen on socket %s: %w", socketPath, err)
	}

	e.grpcServer = server.New(e.env.Manager, logger, server.WithInspection(e.env.Store, e.env.Devices)).NewGRPCServer()
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Error("ephemeral server failed", "error", err)
		}
	}()

	if e.remoteClient, err = newRemote(socketPath, logger); err != nil {
		return nil, fmt.Errorf("connect to ephemeral server: %w", err)
	}
	return e, nil
}

// Close shuts down the in-process server and releases the database
// and the lock.
func (e *ephemeralClient) Close() error {
	var errs []error
	if e.remoteClient != nil {
		errs = append(errs, e.remoteClient.Close())
	}
	if e.grpcServer != nil {
		e.grpcServer.GracefulStop()
	}
	e.wg.Wait()
	if e.env != nil {
		errs = append(errs, e.env.Close())
	}
	if e.socketDir != "" {
		if err := os.RemoveAll(e.socketDir); err != nil {
			e.logger.Warn("failed to remove socket directory", "path", e.socketDir, "error", err)
		}
	}
	errs = append(errs, e.held.Close())
	return errors.Join(errs...)
}
