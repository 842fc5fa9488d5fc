// Package config loads hostifd configuration.
//
// Values are layered: the embedded default.toml first, then the
// configuration file if it exists, then command line flags and
// environment variables applied by the caller. A file that exists but
// does not parse is an error.
package config

import (
	_ "embed"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed default.toml
var defaultConfigTOML string

// DefaultConfigPath is read when no path is given.
const DefaultConfigPath = "/etc/hostif/hostif.toml"

// Config is the top-level configuration.
type Config struct {
	Logging LoggingConfig `toml:"logging"`
	Switch  SwitchConfig  `toml:"switch"`
	Server  ServerConfig  `toml:"server"`
}

// LoggingConfig controls logging.
type LoggingConfig struct {
	// Level is a log spec such as "info" or "info,manager=debug".
	Level  string `toml:"level"`
	Format string `toml:"format"`
	// Components sets per-component levels on top of Level.
	Components map[string]string `toml:"components"`
}

// ToSpec returns the log spec the section describes.
func (c *LoggingConfig) ToSpec() string {
	parts := []string{c.Level}
	if c.Level == "" {
		parts[0] = "info"
	}
	for _, name := range slices.Sorted(maps.Keys(c.Components)) {
		parts = append(parts, name+"="+c.Components[name])
	}
	return strings.Join(parts, ",")
}

// SwitchConfig describes the switch the engine manages.
type SwitchConfig struct {
	MinPriority        uint32 `toml:"acl_entry_minimum_priority"`
	MaxPriority        uint32 `toml:"acl_entry_maximum_priority"`
	MaterializeDevices bool   `toml:"materialize_devices"`
	Netns              string `toml:"netns"`
}

// ServerConfig controls the daemon's listeners.
type ServerConfig struct {
	MetricsAddress string `toml:"metrics_address"`
}

// DefaultConfig returns the embedded defaults.
func DefaultConfig() Config {
	var cfg Config
	if _, err := toml.Decode(defaultConfigTOML, &cfg); err != nil {
		panic(fmt.Sprintf("embedded default.toml: %v", err))
	}
	return cfg
}

// Load reads path over the defaults. A missing file yields the
// defaults. The empty path means DefaultConfigPath.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("config file %s: unknown key %s", path, undecoded[0])
	}
	return cfg, cfg.Validate()
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Switch.MinPriority > c.Switch.MaxPriority {
		return fmt.Errorf("switch: acl_entry_minimum_priority %d exceeds acl_entry_maximum_priority %d",
			c.Switch.MinPriority, c.Switch.MaxPriority)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging: unknown format %q", c.Logging.Format)
	}
	return nil
}
