package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/hookbus/internal/config/loader"
	"github.com/dshills/hookbus/internal/hook"
	"github.com/dshills/hookbus/internal/logging"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "HOOKBUS_"

// DefaultWatchDebounce is the default delay before a changed script is reloaded.
const DefaultWatchDebounce = 200 * time.Millisecond

// Config is the complete hookbus configuration.
type Config struct {
	Log      LogConfig      `toml:"log" yaml:"log"`
	Registry RegistryConfig `toml:"registry" yaml:"registry"`
	Scripts  ScriptsConfig  `toml:"scripts" yaml:"scripts"`

	// Source is the config file that was read, empty if none was found.
	Source string `toml:"-" yaml:"-"`
}

// LogConfig configures the logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level" yaml:"level"`
	// Format is text or json.
	Format string `toml:"format" yaml:"format"`
}

// RegistryConfig configures the hook registry.
type RegistryConfig struct {
	// IDFormat selects generated handler ids: xid or uuid.
	IDFormat string `toml:"id_format" yaml:"id_format"`
	// DefaultPriority applies to handlers registered without a priority.
	DefaultPriority int `toml:"default_priority" yaml:"default_priority"`
}

// ScriptsConfig locates Lua handler scripts.
type ScriptsConfig struct {
	// Manifest is an HCL file declaring scripts and their hooks.
	Manifest string `toml:"manifest" yaml:"manifest"`
	// Paths are scripts loaded without a manifest.
	Paths []string `toml:"paths" yaml:"paths"`
	// WatchDebounce coalesces rapid writes before a reload.
	WatchDebounce Duration `toml:"watch_debounce" yaml:"watch_debounce"`
}

// Duration is a time.Duration read from strings such as "200ms".
type Duration time.Duration

// UnmarshalText parses a duration string. Both the TOML and YAML decoders use it.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: logging.FormatText,
		},
		Registry: RegistryConfig{
			IDFormat:        "xid",
			DefaultPriority: hook.DefaultPriority,
		},
		Scripts: ScriptsConfig{
			WatchDebounce: Duration(DefaultWatchDebounce),
		},
	}
}

// Option configures Load.
type Option func(*options)

type options struct {
	fs     loader.FileSystem
	env    *loader.EnvLoader
	dotenv bool
}

// WithFileSystem reads config files from fsys.
func WithFileSystem(fsys loader.FileSystem) Option {
	return func(o *options) {
		o.fs = fsys
	}
}

// WithEnvLoader replaces the environment variable source.
func WithEnvLoader(l *loader.EnvLoader) Option {
	return func(o *options) {
		o.env = l
	}
}

// WithDotEnv controls whether a .env file next to the config file is read.
func WithDotEnv(enable bool) Option {
	return func(o *options) {
		o.dotenv = enable
	}
}

// Load builds a Config from defaults, the file at path, a sibling .env file
// and HOOKBUS_* variables, then validates it. An empty path skips the file
// layers. A path that does not exist is not an error.
func Load(path string, opts ...Option) (*Config, error) {
	o := options{
		fs:     loader.DefaultFS(),
		env:    loader.NewEnvLoader(EnvPrefix),
		dotenv: true,
	}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := Default()

	if path != "" {
		found, err := loader.NewFileLoaderWithFS(o.fs).LoadInto(path, cfg)
		if err != nil {
			return nil, err
		}
		if found {
			cfg.Source = path
		}

		if o.dotenv {
			if err := loader.LoadDotEnv(o.fs, filepath.Join(filepath.Dir(path), ".env")); err != nil {
				return nil, err
			}
		}
	}

	if err := cfg.ApplyEnv(o.env.Load()); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays values keyed by setting path, as returned by
// loader.EnvLoader.Load. Paths that name no setting are skipped, so other
// HOOKBUS_ variables (such as ones read by a manifest) can share the prefix.
func (c *Config) ApplyEnv(values map[string]string) error {
	for path, value := range values {
		err := c.set(path, value)
		if errors.Is(err, ErrUnknownSetting) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, envName(path), err)
		}
	}
	return nil
}

func (c *Config) set(path, value string) error {
	switch path {
	case "log.level":
		c.Log.Level = value
	case "log.format":
		c.Log.Format = value
	case "registry.id_format":
		c.Registry.IDFormat = value
	case "registry.default_priority":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.Registry.DefaultPriority = n
	case "scripts.manifest":
		c.Scripts.Manifest = value
	case "scripts.paths":
		c.Scripts.Paths = loader.ParseList(value)
	case "scripts.watch_debounce":
		return c.Scripts.WatchDebounce.UnmarshalText([]byte(value))
	default:
		return ErrUnknownSetting
	}
	return nil
}

// Validate checks every setting, returning all failures joined.
func (c *Config) Validate() error {
	var errs []error

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, &ValidationError{Path: "log.level", Value: c.Log.Level, Message: "must be debug, info, warn or error"})
	}
	if !logging.ValidFormat(c.Log.Format) {
		errs = append(errs, &ValidationError{Path: "log.format", Value: c.Log.Format, Message: "must be text or json"})
	}
	if _, err := hook.NewIDGenerator(c.Registry.IDFormat); err != nil {
		errs = append(errs, &ValidationError{Path: "registry.id_format", Value: c.Registry.IDFormat, Message: "must be xid or uuid"})
	}
	if c.Scripts.WatchDebounce <= 0 {
		errs = append(errs, &ValidationError{Path: "scripts.watch_debounce", Value: c.Scripts.WatchDebounce.Std(), Message: "must be positive"})
	}

	return errors.Join(errs...)
}

// Resolve returns p relative to the config file's directory. Absolute paths
// and configs not read from a file are returned unchanged.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Source == "" {
		return p
	}
	return filepath.Join(filepath.Dir(c.Source), p)
}

// ScriptPaths returns Scripts.Paths resolved against the config file.
func (c *Config) ScriptPaths() []string {
	out := make([]string, 0, len(c.Scripts.Paths))
	for _, p := range c.Scripts.Paths {
		out = append(out, c.Resolve(p))
	}
	return out
}

// ManifestPath returns Scripts.Manifest resolved against the config file.
func (c *Config) ManifestPath() string {
	return c.Resolve(c.Scripts.Manifest)
}

// LoggingOptions returns the logger options described by the config.
func (c *Config) LoggingOptions() logging.Options {
	opts := logging.DefaultOptions()
	opts.Level = c.Log.Level
	opts.Format = c.Log.Format
	return opts
}

// IDGenerator returns the handler id generator selected by registry.id_format.
func (c *Config) IDGenerator() (hook.IDGenerator, error) {
	return hook.NewIDGenerator(c.Registry.IDFormat)
}

func envName(path string) string {
	return strings.ToUpper(strings.ReplaceAll(path, ".", "_"))
}
