// Package app wires hookbus together: configuration, logging, the hook
// registry, Lua scripts and the manifest that binds them.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dshills/hookbus/internal/config"
	"github.com/dshills/hookbus/internal/hook"
	"github.com/dshills/hookbus/internal/logging"
	"github.com/dshills/hookbus/internal/manifest"
	"github.com/dshills/hookbus/internal/script"
)

// Application owns one registry and the scripts attached to it.
//
// Lua scripts are not goroutine-safe, so an Application that has loaded
// scripts must be driven from a single goroutine.
type Application struct {
	config   *config.Config
	logger   *slog.Logger
	registry *hook.Registry
	scripts  *script.Manager
	manifest *manifest.Manifest
	metrics  *Metrics

	closed atomic.Bool
	opts   Options
}

// Options configures the application. Non-empty fields override the
// corresponding configuration settings.
type Options struct {
	// ConfigPath is the path to the configuration file.
	ConfigPath string

	// ManifestPath overrides scripts.manifest.
	ManifestPath string

	// Scripts are loaded in addition to scripts.paths.
	Scripts []string

	// LogLevel overrides log.level.
	LogLevel string

	// LogFormat overrides log.format.
	LogFormat string

	// LogOutput receives log records. Defaults to os.Stderr.
	LogOutput io.Writer

	// SkipScripts builds the registry without loading any script.
	SkipScripts bool
}

// New creates an Application with the given options.
func New(ctx context.Context, opts Options) (*Application, error) {
	app := &Application{
		opts:    opts,
		metrics: NewMetrics(),
	}

	if err := newBootstrapper(app, opts).bootstrap(ctx); err != nil {
		return nil, err
	}
	return app, nil
}

// Config returns the effective configuration.
func (app *Application) Config() *config.Config {
	return app.config
}

// Logger returns the application's logger.
func (app *Application) Logger() *slog.Logger {
	return app.logger
}

// Registry returns the hook registry.
func (app *Application) Registry() *hook.Registry {
	return app.registry
}

// Scripts returns the script manager.
func (app *Application) Scripts() *script.Manager {
	return app.scripts
}

// Manifest returns the applied manifest, or nil if none was configured.
func (app *Application) Manifest() *manifest.Manifest {
	return app.manifest
}

// Metrics returns the application's dispatch metrics.
func (app *Application) Metrics() *Metrics {
	return app.metrics
}

// Context returns ctx carrying the application logger.
func (app *Application) Context(ctx context.Context) context.Context {
	return logging.WithLogger(ctx, app.logger)
}

// DoAction dispatches an action and records its timing.
func (app *Application) DoAction(ctx context.Context, name string, args ...any) error {
	if app.closed.Load() {
		return ErrClosed
	}

	start := time.Now()
	err := app.registry.DoAction(app.Context(ctx), name, args...)
	app.metrics.RecordDispatch(hook.KindAction, time.Since(start), err)

	if err != nil {
		return NewOperationError("do_action", name, err)
	}
	return nil
}

// ApplyFilters runs value through a filter hook and records its timing.
func (app *Application) ApplyFilters(ctx context.Context, name string, value any, args ...any) (any, error) {
	if app.closed.Load() {
		return value, ErrClosed
	}

	start := time.Now()
	out, err := app.registry.ApplyFilters(app.Context(ctx), name, value, args...)
	app.metrics.RecordDispatch(hook.KindFilter, time.Since(start), err)

	if err != nil {
		return out, NewOperationError("apply_filters", name, err)
	}
	return out, nil
}

// ScriptPaths returns the files of every loaded script, sorted.
func (app *Application) ScriptPaths() []string {
	return app.scripts.Paths()
}

// ReloadPath reloads the script loaded from path.
func (app *Application) ReloadPath(ctx context.Context, path string) error {
	h, ok := app.scripts.Lookup(path)
	if !ok {
		return NewOperationError("reload", path, script.ErrScriptNotFound)
	}

	err := app.scripts.Reload(app.Context(ctx), h.Name())
	app.metrics.RecordReload(err)
	if err != nil {
		return NewOperationError("reload", h.Name(), err)
	}
	return nil
}

// Close unloads every script. It is safe to call more than once.
func (app *Application) Close() error {
	if !app.closed.CompareAndSwap(false, true) {
		return nil
	}
	if app.scripts != nil {
		app.scripts.Close()
	}
	app.logger.Debug("application closed")
	return nil
}

// InitError represents an initialization error.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("failed to initialize %s: %v", e.Component, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}
