package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/frobware/go-hostif/config"
	"github.com/frobware/go-hostif/interpreter"
	"github.com/frobware/go-hostif/interpreter/netdev"
	"github.com/frobware/go-hostif/interpreter/store/sqlite"
	"github.com/frobware/go-hostif/manager"
	"github.com/frobware/go-hostif/metrics"
	"github.com/frobware/go-hostif/netns"
)

// Env is an opened runtime: the store, a manager restored from it and
// the netlink adapter used to materialise and probe devices.
type Env struct {
	Store   interpreter.Store
	Manager *manager.Manager
	Devices *netdev.Adapter
}

// OpenEnv opens the database under dirs and restores a manager from
// it. Devices are materialised only when the configuration asks for
// it. reg may be nil, in which case no metrics are recorded.
//
// The caller must hold the runtime directory's writer lock.
func OpenEnv(ctx context.Context, dirs config.RuntimeDirs, cfg config.Config, logger *slog.Logger, reg prometheus.Registerer) (*Env, error) {
	if err := dirs.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("runtime directory setup failed: %w", err)
	}
	st, err := sqlite.New(ctx, dirs.DBPath(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", dirs.DBPath(), err)
	}

	adapter := netdev.New(
		netdev.WithLogger(logger),
		netdev.WithNetns(netns.Path(cfg.Switch.Netns)),
	)
	var devices interpreter.DeviceOperations = interpreter.NoDevices{}
	if cfg.Switch.MaterializeDevices {
		devices = adapter
		logger.InfoContext(ctx, "device materialisation enabled", "netns", cfg.Switch.Netns)
	}

	opts := []manager.Option{
		manager.WithPriorityRange(cfg.Switch.MinPriority, cfg.Switch.MaxPriority),
	}
	if reg != nil {
		opts = append(opts, manager.WithMetrics(metrics.New(reg)))
	}
	mgr, err := manager.New(ctx, st, devices, logger, opts...)
	if err != nil {
		st.Close()
		return nil, err
	}
	return &Env{Store: st, Manager: mgr, Devices: adapter}, nil
}

// Close closes the store.
func (e *Env) Close() error {
	return e.Store.Close()
}
