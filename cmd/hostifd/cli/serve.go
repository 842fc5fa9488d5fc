package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/frobware/go-hostif/server"
)

// ServeCmd starts the gRPC daemon.
type ServeCmd struct {
	TCPAddress string `name:"tcp-address" help:"Optional TCP address for the gRPC server, e.g. '[::]:50051'."`
}

// Run executes the serve command.
func (c *ServeCmd) Run(cli *CLI) error {
	logger, err := cli.LoggerFromConfig()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	appConfig, err := cli.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	dirs, err := cli.RuntimeDirs()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return server.Run(ctx, server.RunConfig{
		Dirs:       dirs,
		TCPAddress: c.TCPAddress,
		Config:     appConfig,
		Logger:     logger,
	})
}
