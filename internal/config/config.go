// Package config holds process configuration. Values come from defaults,
// then an optional YAML file, then command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"

	SchemeSequence = "sequence"
	SchemeUUID     = "uuid"

	TransportMCP  = "mcp"
	TransportHTTP = "http"
)

// Config is the top-level configuration.
type Config struct {
	// Listen is the address of the keep-alive and API web server.
	Listen string `yaml:"listen"`

	// Transport selects how room events arrive: over MCP stdio or only
	// through the HTTP API.
	Transport string `yaml:"transport"`

	Store StoreConfig `yaml:"store"`
	IDs   IDConfig    `yaml:"ids"`
	Bot   BotConfig   `yaml:"bot"`

	Verbose bool `yaml:"verbose"`
}

// StoreConfig selects the request store backend.
type StoreConfig struct {
	Backend string `yaml:"backend"`
	DSN     string `yaml:"dsn"`
}

// IDConfig selects the request id scheme.
type IDConfig struct {
	Scheme string `yaml:"scheme"`
}

// BotConfig holds user-facing settings of the room gateway.
type BotConfig struct {
	Name string `yaml:"name"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Listen:    ":8080",
		Transport: TransportMCP,
		Store: StoreConfig{
			Backend: BackendMemory,
			DSN:     ":memory:",
		},
		IDs: IDConfig{Scheme: SchemeSequence},
		Bot: BotConfig{Name: "File Request Bot"},
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Listen != "" {
		c.Listen = source.Listen
	}
	if source.Transport != "" {
		c.Transport = source.Transport
	}
	if source.Store.Backend != "" {
		c.Store.Backend = source.Store.Backend
	}
	if source.Store.DSN != "" {
		c.Store.DSN = source.Store.DSN
	}
	if source.IDs.Scheme != "" {
		c.IDs.Scheme = source.IDs.Scheme
	}
	if source.Bot.Name != "" {
		c.Bot.Name = source.Bot.Name
	}
	if source.Verbose {
		c.Verbose = true
	}
}

// Load reads a YAML file and merges it over the defaults. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.Merge(&file)
	return cfg, nil
}

// Validate rejects unknown backends, schemes and transports.
func (c *Config) Validate() error {
	var errs []error
	if c.Listen == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	switch c.Transport {
	case TransportMCP, TransportHTTP:
	default:
		errs = append(errs, fmt.Errorf("unknown transport %q", c.Transport))
	}
	switch c.Store.Backend {
	case BackendMemory, BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}
	switch c.IDs.Scheme {
	case SchemeSequence, SchemeUUID:
	default:
		errs = append(errs, fmt.Errorf("unknown id scheme %q", c.IDs.Scheme))
	}
	return errors.Join(errs...)
}

// Flags holds command-line overrides. Zero values leave the file or
// default value in place.
type Flags struct {
	ConfigFile string
	Overrides  Config
}

// BindFlags registers the command-line flags on fs.
func BindFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVarP(&f.ConfigFile, "config", "c", os.Getenv("FILEREQUEST_CONFIG"), "path to YAML config file")
	fs.StringVar(&f.Overrides.Listen, "listen", "", "keep-alive and API listen address (default :8080)")
	fs.StringVar(&f.Overrides.Transport, "transport", "", "event transport: mcp or http")
	fs.StringVar(&f.Overrides.Store.Backend, "store", "", "request store backend: memory or sqlite")
	fs.StringVar(&f.Overrides.Store.DSN, "dsn", "", "sqlite DSN for the sqlite backend")
	fs.StringVar(&f.Overrides.IDs.Scheme, "id-scheme", "", "request id scheme: sequence or uuid")
	fs.StringVar(&f.Overrides.Bot.Name, "name", "", "bot display name used in help text")
	fs.BoolVarP(&f.Overrides.Verbose, "verbose", "v", false, "enable debug logging")
	return f
}

// Resolve loads the config file named by the flags and applies the flag
// overrides on top.
func (f *Flags) Resolve() (Config, error) {
	cfg, err := Load(f.ConfigFile)
	if err != nil {
		return Config{}, err
	}
	cfg.Merge(&f.Overrides)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
