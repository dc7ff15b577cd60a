package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/hookbus/internal/config/loader"
	"github.com/dshills/hookbus/internal/hook"
)

// emptyEnv returns a loader that sees no environment variables.
func emptyEnv() *loader.EnvLoader {
	return loader.NewEnvLoader("HOOKBUS_CONFIG_TEST_UNUSED_")
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want text", cfg.Log.Format)
	}
	if cfg.Registry.IDFormat != "xid" {
		t.Errorf("Registry.IDFormat = %q, want xid", cfg.Registry.IDFormat)
	}
	if cfg.Registry.DefaultPriority != hook.DefaultPriority {
		t.Errorf("Registry.DefaultPriority = %d, want %d", cfg.Registry.DefaultPriority, hook.DefaultPriority)
	}
	if cfg.Scripts.WatchDebounce.Std() != DefaultWatchDebounce {
		t.Errorf("Scripts.WatchDebounce = %v, want %v", cfg.Scripts.WatchDebounce.Std(), DefaultWatchDebounce)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("", WithEnvLoader(emptyEnv()))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "hookbus.toml"), WithEnvLoader(emptyEnv()))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source != "" {
		t.Errorf("Source = %q, want empty", cfg.Source)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
}

func TestLoad_TOML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "hookbus.toml", `
[log]
level = "debug"
format = "json"

[registry]
id_format = "uuid"
default_priority = 5

[scripts]
manifest = "hooks.hcl"
paths = ["a.lua", "/abs/b.lua"]
watch_debounce = "1s"
`)

	cfg, err := Load(path, WithEnvLoader(emptyEnv()))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := &Config{
		Log:      LogConfig{Level: "debug", Format: "json"},
		Registry: RegistryConfig{IDFormat: "uuid", DefaultPriority: 5},
		Scripts: ScriptsConfig{
			Manifest:      "hooks.hcl",
			Paths:         []string{"a.lua", "/abs/b.lua"},
			WatchDebounce: Duration(time.Second),
		},
		Source: path,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}

	if got := cfg.ManifestPath(); got != filepath.Join(dir, "hooks.hcl") {
		t.Errorf("ManifestPath() = %q", got)
	}
	if diff := cmp.Diff([]string{filepath.Join(dir, "a.lua"), "/abs/b.lua"}, cfg.ScriptPaths()); diff != "" {
		t.Errorf("ScriptPaths() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "hookbus.yaml", `
log:
  level: warn
scripts:
  paths:
    - x.lua
  watch_debounce: 50ms
`)

	cfg, err := Load(path, WithEnvLoader(emptyEnv()))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want warn", cfg.Log.Level)
	}
	// Unset keys keep their defaults.
	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want text", cfg.Log.Format)
	}
	if cfg.Scripts.WatchDebounce.Std() != 50*time.Millisecond {
		t.Errorf("Scripts.WatchDebounce = %v, want 50ms", cfg.Scripts.WatchDebounce.Std())
	}
}

func TestLoad_ParseError(t *testing.T) {
	path := writeFile(t, t.TempDir(), "hookbus.toml", "[log\n")

	_, err := Load(path, WithEnvLoader(emptyEnv()))
	var perr *loader.ParseError
	if !errors.As(err, &perr) {
		t.Errorf("Load() error = %v, want ParseError", err)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "hookbus.toml", "[log]\nlevel = \"debug\"\n")

	t.Setenv("HOOKBUS_LOG_LEVEL", "error")
	t.Setenv("HOOKBUS_SCRIPTS_PATHS", "one.lua, two.lua")
	t.Setenv("HOOKBUS_REGISTRY_DEFAULT_PRIORITY", "20")

	cfg, err := Load(path, WithDotEnv(false))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Log.Level != "error" {
		t.Errorf("Log.Level = %q, want error", cfg.Log.Level)
	}
	if diff := cmp.Diff([]string{"one.lua", "two.lua"}, cfg.Scripts.Paths); diff != "" {
		t.Errorf("Scripts.Paths mismatch (-want +got):\n%s", diff)
	}
	if cfg.Registry.DefaultPriority != 20 {
		t.Errorf("Registry.DefaultPriority = %d, want 20", cfg.Registry.DefaultPriority)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "hookbus.toml", "")
	writeFile(t, dir, ".env", "HOOKBUS_LOG_FORMAT=json\nHOOKBUS_REGISTRY_ID_FORMAT=uuid\n")

	t.Setenv("HOOKBUS_REGISTRY_ID_FORMAT", "xid")
	t.Cleanup(func() { os.Unsetenv("HOOKBUS_LOG_FORMAT") })

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want json from .env", cfg.Log.Format)
	}
	if cfg.Registry.IDFormat != "xid" {
		t.Errorf("Registry.IDFormat = %q, want xid: the real environment wins over .env", cfg.Registry.IDFormat)
	}
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("HOOKBUS_REGISTRY_DEFAULT_PRIORITY", "high")

	_, err := Load("", WithDotEnv(false))
	if err == nil {
		t.Fatal("expected error for a non-numeric priority")
	}
	if !strings.Contains(err.Error(), "HOOKBUS_REGISTRY_DEFAULT_PRIORITY") {
		t.Errorf("error %q does not name the variable", err)
	}
}

func TestLoad_IgnoresOtherPrefixedVariables(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "hookbus.toml", "")
	writeFile(t, dir, ".env", "HOOKBUS_SITE_NAME=blog\n")

	t.Setenv("HOOKBUS_HOME", "/srv/hookbus")
	t.Cleanup(func() { os.Unsetenv("HOOKBUS_SITE_NAME") })

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
}

func TestApplyEnv_Unknown(t *testing.T) {
	cfg := Default()

	err := cfg.ApplyEnv(map[string]string{"log.colour": "red", "home": "/srv", "log.level": "warn"})
	if err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want warn", cfg.Log.Level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		paths  []string
	}{
		{"valid", func(*Config) {}, nil},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, []string{"log.level"}},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, []string{"log.format"}},
		{"bad id format", func(c *Config) { c.Registry.IDFormat = "ulid" }, []string{"registry.id_format"}},
		{"negative debounce", func(c *Config) { c.Scripts.WatchDebounce = Duration(-time.Second) }, []string{"scripts.watch_debounce"}},
		{"zero debounce", func(c *Config) { c.Scripts.WatchDebounce = 0 }, []string{"scripts.watch_debounce"}},
		{"several", func(c *Config) {
			c.Log.Level = "loud"
			c.Log.Format = "xml"
		}, []string{"log.level", "log.format"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()

			if tt.paths == nil {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, ErrValidationFailed) {
				t.Fatalf("Validate() error = %v, want ErrValidationFailed", err)
			}
			for _, p := range tt.paths {
				if !strings.Contains(err.Error(), p) {
					t.Errorf("error %q does not mention %s", err, p)
				}
			}
		})
	}
}

func TestLoad_ZeroDebounce(t *testing.T) {
	path := writeFile(t, t.TempDir(), "hookbus.toml", "[scripts]\nwatch_debounce = \"0s\"\n")

	_, err := Load(path, WithEnvLoader(emptyEnv()))
	if !errors.Is(err, ErrValidationFailed) {
		t.Errorf("Load() error = %v, want ErrValidationFailed", err)
	}
}

func TestConfig_IDGenerator(t *testing.T) {
	cfg := Default()
	cfg.Registry.IDFormat = "uuid"

	gen, err := cfg.IDGenerator()
	if err != nil {
		t.Fatalf("IDGenerator() error = %v", err)
	}
	if _, ok := gen.(hook.UUIDGenerator); !ok {
		t.Errorf("IDGenerator() = %T, want hook.UUIDGenerator", gen)
	}
}

func TestConfig_LoggingOptions(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "debug"
	cfg.Log.Format = "json"

	opts := cfg.LoggingOptions()
	if opts.Level != "debug" || opts.Format != "json" {
		t.Errorf("LoggingOptions() = %+v", opts)
	}
}

func TestLoad_WithFileSystem(t *testing.T) {
	fsys := stubFS{"/etc/hookbus.toml": "[log]\nlevel = \"warn\"\n"}

	cfg, err := Load("/etc/hookbus.toml", WithFileSystem(fsys), WithEnvLoader(emptyEnv()))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want warn", cfg.Log.Level)
	}
}

type stubFS map[string]string

func (s stubFS) ReadFile(path string) ([]byte, error) {
	if data, ok := s[path]; ok {
		return []byte(data), nil
	}
	return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
}

func (s stubFS) Stat(path string) (fs.FileInfo, error) {
	return nil, &fs.PathError{Op: "stat", Path: path, Err: fs.ErrNotExist}
}
