package client

import (
	"context"
	"io"
	"log/slog"

	"github.com/frobware/go-hostif/config"
)

// DefaultSocketPath returns the unix socket of a hostifd using the
// default runtime directories.
func DefaultSocketPath() string {
	return config.DefaultRuntimeDirs().SocketPath()
}

// Option configures client behaviour.
type Option interface {
	applyDial(*dialOptions)
	applyOpen(*openOptions)
}

type dialOptions struct {
	logger *slog.Logger
}

type openOptions struct {
	logger *slog.Logger
	path   string
	config config.Config
}

type funcOption struct {
	dial func(*dialOptions)
	open func(*openOptions)
}

func (f *funcOption) applyDial(o *dialOptions) {
	if f.dial != nil {
		f.dial(o)
	}
}

func (f *funcOption) applyOpen(o *openOptions) {
	if f.open != nil {
		f.open(o)
	}
}

// WithLogger sets the logger for client operations. Without it output
// is discarded.
func WithLogger(l *slog.Logger) Option {
	return &funcOption{
		dial: func(o *dialOptions) { o.logger = l },
		open: func(o *openOptions) { o.logger = l },
	}
}

// WithRuntimeDir sets the runtime directory Open works on. The default
// is /run/hostif. It has no effect on Dial.
func WithRuntimeDir(path string) Option {
	return &funcOption{
		open: func(o *openOptions) { o.path = path },
	}
}

// WithConfig sets the configuration for Open. Without it the embedded
// defaults are used. It has no effect on Dial.
func WithConfig(cfg config.Config) Option {
	return &funcOption{
		open: func(o *openOptions) { o.config = cfg },
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Dial connects to hostifd at address, which is one of:
//   - "host:port" for TCP
//   - "unix:///path/to/socket"
//   - "/path/to/socket", shorthand for the above
//
// The returned client must be closed when no longer needed.
func Dial(address string, opts ...Option) (Client, error) {
	o := &dialOptions{logger: discardLogger()}
	for _, opt := range opts {
		opt.applyDial(o)
	}
	c, err := newRemote(address, o.logger)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Open creates a client that owns the runtime directory's database for
// as long as it is open. It fails if a daemon or another local client
// holds the directory.
//
// The returned client must be closed when no longer needed.
func Open(ctx context.Context, opts ...Option) (Client, error) {
	o := &openOptions{
		logger: discardLogger(),
		config: config.DefaultConfig(),
	}
	for _, opt := range opts {
		opt.applyOpen(o)
	}

	dirs := config.DefaultRuntimeDirs()
	if o.path != "" {
		var err error
		dirs, err = config.NewRuntimeDirs(o.path)
		if err != nil {
			return nil, err
		}
	}
	c, err := newEphemeral(ctx, dirs, o.config, o.logger)
	if err != nil {
		return nil, err
	}
	return c, nil
}
