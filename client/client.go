// Package client provides access to the host interface engine through
// the hostif.API method table.
//
// Use Dial to connect to a running hostifd:
//
//	c, err := client.Dial(client.DefaultSocketPath())
//	c, err := client.Dial("localhost:50051")
//
// Use Open to work on a runtime directory directly, without a daemon:
//
//	c, err := client.Open(ctx)
//	c, err := client.Open(ctx, client.WithRuntimeDir("/tmp/hostif"))
//
// Both return a Client that can be used identically.
package client

import (
	"context"
	"io"

	"github.com/frobware/go-hostif"
	"github.com/frobware/go-hostif/inspect"
	"github.com/frobware/go-hostif/resolver"
)

// Client is a transport-agnostic handle on the engine. Commands use it
// and remain unaware of whether they are operating locally or
// remotely.
type Client interface {
	hostif.API
	io.Closer

	// Stats returns the resolver's lookup counters.
	Stats(ctx context.Context) (resolver.Stats, error)
	// Inspect correlates stored host interfaces with their devices.
	Inspect(ctx context.Context) (*inspect.World, error)
}
