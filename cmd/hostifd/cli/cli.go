// Package cli implements the hostifd command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"reflect"

	"github.com/alecthomas/kong"

	"github.com/frobware/go-hostif"
	"github.com/frobware/go-hostif/client"
	"github.com/frobware/go-hostif/config"
	"github.com/frobware/go-hostif/logging"
)

// CLI is the root command structure for hostifd.
type CLI struct {
	Out io.Writer `kong:"-"`

	RuntimeDir string `name:"runtime-dir" help:"Runtime directory for local mode." default:"${default_runtime_dir}"`
	Config     string `name:"config" help:"Config file path." default:"${default_config_path}"`
	Log        string `name:"log" help:"Log spec (e.g., 'info,manager=debug')." env:"HOSTIF_LOG"`
	Remote     string `name:"remote" short:"r" help:"Remote endpoint (unix:///path or host:port). Connects via gRPC instead of opening the runtime directory."`

	Serve    ServeCmd    `cmd:"" help:"Start the gRPC daemon."`
	Create   CreateCmd   `cmd:"" help:"Create an object."`
	Remove   RemoveCmd   `cmd:"" help:"Remove an object by handle."`
	Set      SetCmd      `cmd:"" help:"Update attributes of an object."`
	Get      GetCmd      `cmd:"" help:"Show an object by handle."`
	List     ListCmd     `cmd:"" help:"List objects of one type."`
	Resolve  ResolveCmd  `cmd:"" help:"Show the table entry governing a trap on an attachment point."`
	Dispatch DispatchCmd `cmd:"" help:"Show the delivery decision for a punted packet."`
	Stats    StatsCmd    `cmd:"" help:"Show resolver lookup counters."`
	Apply    ApplyCmd    `cmd:"" help:"Create the objects described in a YAML file."`
	Inspect  InspectCmd  `cmd:"" help:"Check that stored host interfaces still have their devices."`
}

// KongOptions returns the Kong configuration options for the CLI.
func KongOptions() []kong.Option {
	return []kong.Option{
		kong.Name("hostifd"),
		kong.Description("Host interface trap and table entry manager."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.TypeMapper(reflect.TypeOf(Assignment{}), assignmentMapper()),
		kong.TypeMapper(reflect.TypeOf(hostif.ObjectID(0)), textMapper[hostif.ObjectID]("handle")),
		kong.TypeMapper(reflect.TypeOf(hostif.ObjectType(0)), textMapper[hostif.ObjectType]("object-type")),
		kong.TypeMapper(reflect.TypeOf(hostif.TrapType(0)), textMapper[hostif.TrapType]("trap-type")),
		kong.TypeMapper(reflect.TypeOf(hostif.PacketAction(0)), textMapper[hostif.PacketAction]("packet-action")),
		kong.TypeMapper(reflect.TypeOf(hostif.HostifType(0)), textMapper[hostif.HostifType]("hostif-type")),
		kong.TypeMapper(reflect.TypeOf(hostif.RouterInterfaceType(0)), textMapper[hostif.RouterInterfaceType]("rif-type")),
		kong.TypeMapper(reflect.TypeOf(hostif.TableEntryType(0)), textMapper[hostif.TableEntryType]("entry-type")),
		kong.TypeMapper(reflect.TypeOf(hostif.ChannelType(0)), textMapper[hostif.ChannelType]("channel")),
		kong.Vars{
			"default_runtime_dir": config.DefaultRuntimeDirs().Base(),
			"default_config_path": config.DefaultConfigPath,
		},
	}
}

// LoadConfig loads the configuration from the config file path.
func (c *CLI) LoadConfig() (config.Config, error) {
	return config.Load(c.Config)
}

// RuntimeDirs returns the runtime directories for --runtime-dir.
func (c *CLI) RuntimeDirs() (config.RuntimeDirs, error) {
	return config.NewRuntimeDirs(c.RuntimeDir)
}

// Logger creates a logger for short-lived commands. They default to
// warn unless --log is given.
func (c *CLI) Logger() (*slog.Logger, error) {
	spec := c.Log
	if spec == "" {
		spec = "warn"
	}
	return c.newLogger(spec, os.Stderr)
}

// LoggerFromConfig creates a logger for serve, using the config file's
// level unless --log or HOSTIF_LOG overrides it. Output goes to stdout
// for log collection.
func (c *CLI) LoggerFromConfig() (*slog.Logger, error) {
	return c.newLogger(c.Log, os.Stdout)
}

func (c *CLI) newLogger(cliSpec string, out io.Writer) (*slog.Logger, error) {
	cfg, err := c.LoadConfig()
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Options{
		CLISpec:    cliSpec,
		ConfigSpec: cfg.Logging.ToSpec(),
		Format:     format,
		Output:     out,
	})
}

// Client returns a client for the configured transport: a remote
// client when --remote is set, otherwise a local client that owns the
// runtime directory. The returned client must be closed when no longer
// needed.
func (c *CLI) Client(ctx context.Context) (client.Client, error) {
	logger, err := c.Logger()
	if err != nil {
		return nil, err
	}
	if c.Remote != "" {
		return client.Dial(c.Remote, client.WithLogger(logger))
	}
	cfg, err := c.LoadConfig()
	if err != nil {
		return nil, err
	}
	return client.Open(ctx,
		client.WithRuntimeDir(c.RuntimeDir),
		client.WithConfig(cfg),
		client.WithLogger(logger),
	)
}

// WriteOut writes p to the command output. A short write is an error.
func (c *CLI) WriteOut(p []byte) error {
	out := c.Out
	if out == nil {
		out = os.Stdout
	}
	n, err := out.Write(p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return io.ErrShortWrite
	}
	return nil
}

// PrintOut writes s to the command output.
func (c *CLI) PrintOut(s string) error {
	return c.WriteOut([]byte(s))
}

// PrintOutf formats to the command output.
func (c *CLI) PrintOutf(format string, args ...any) error {
	return c.PrintOut(fmt.Sprintf(format, args...))
}
