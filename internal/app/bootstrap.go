package app

import (
	"context"
	"log/slog"

	"github.com/dshills/hookbus/internal/config"
	"github.com/dshills/hookbus/internal/hook"
	"github.com/dshills/hookbus/internal/logging"
	"github.com/dshills/hookbus/internal/manifest"
	"github.com/dshills/hookbus/internal/script"
)

// bootstrapper handles component initialization with proper cleanup on failure.
type bootstrapper struct {
	app  *Application
	opts Options
}

// newBootstrapper creates a new bootstrapper for the application.
func newBootstrapper(app *Application, opts Options) *bootstrapper {
	return &bootstrapper{
		app:  app,
		opts: opts,
	}
}

// bootstrap initializes all components in dependency order.
// On failure, it cleans up already-initialized components.
func (b *bootstrapper) bootstrap(ctx context.Context) error {
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"config", b.initConfig},
		{"logger", b.initLogger},
		{"registry", b.initRegistry},
		{"scripts", b.initScripts},
		{"manifest", b.initManifest},
	}

	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			b.cleanup()
			return &InitError{Component: step.name, Err: err}
		}
	}

	b.app.logger.Debug("application initialized",
		slog.String("config", b.app.config.Source),
		slog.Int("scripts", len(b.app.scripts.Names())),
		slog.Int("actions", b.app.registry.Count(hook.KindAction)),
		slog.Int("filters", b.app.registry.Count(hook.KindFilter)))
	return nil
}

// cleanup releases components in reverse order. A step that failed part
// way may have left state behind, so components are released whenever they
// exist, not only when their step completed.
func (b *bootstrapper) cleanup() {
	if b.app.scripts != nil {
		b.app.scripts.Close()
	}
	if b.app.registry != nil {
		b.app.registry.ClearAll()
	}
}

// initConfig loads the config file and applies option overrides.
func (b *bootstrapper) initConfig(context.Context) error {
	cfg, err := config.Load(b.opts.ConfigPath)
	if err != nil {
		return err
	}

	if b.opts.ManifestPath != "" {
		cfg.Scripts.Manifest = b.opts.ManifestPath
	}
	if b.opts.LogLevel != "" {
		cfg.Log.Level = b.opts.LogLevel
	}
	if b.opts.LogFormat != "" {
		cfg.Log.Format = b.opts.LogFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	b.app.config = cfg
	return nil
}

func (b *bootstrapper) initLogger(context.Context) error {
	logger, err := logging.New(b.opts.LogOutput, b.app.config.LoggingOptions())
	if err != nil {
		return err
	}
	b.app.logger = logger
	return nil
}

func (b *bootstrapper) initRegistry(context.Context) error {
	gen, err := b.app.config.IDGenerator()
	if err != nil {
		return err
	}

	b.app.registry = hook.NewRegistry(
		hook.WithLogger(b.app.logger.With(slog.String("component", "hook"))),
		hook.WithIDGenerator(gen),
		hook.WithDefaultPriority(b.app.config.Registry.DefaultPriority),
	)
	return nil
}

// initScripts loads scripts.paths plus any scripts given as options.
func (b *bootstrapper) initScripts(ctx context.Context) error {
	b.app.scripts = script.NewManager(b.app.registry, b.app.logger.With(slog.String("component", "script")))
	if b.opts.SkipScripts {
		return nil
	}

	paths := append(b.app.config.ScriptPaths(), b.opts.Scripts...)
	return b.app.scripts.LoadPaths(b.app.Context(ctx), paths)
}

// initManifest applies the manifest, if one is configured. A path given as
// an option is used as is; a configured one is relative to the config file.
func (b *bootstrapper) initManifest(ctx context.Context) error {
	path := b.app.config.ManifestPath()
	if path == "" || b.opts.SkipScripts {
		return nil
	}
	if b.opts.ManifestPath != "" {
		path = b.opts.ManifestPath
	}

	m, err := manifest.Load(path)
	if err != nil {
		return err
	}
	if err := m.Apply(b.app.Context(ctx), b.app.scripts); err != nil {
		return err
	}

	b.app.manifest = m
	return nil
}
