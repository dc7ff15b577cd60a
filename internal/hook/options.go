package hook

import "log/slog"

// Option configures a handler at registration.
type Option func(*handlerConfig)

// handlerConfig contains per-handler registration settings.
type handlerConfig struct {
	priority    int
	hasPriority bool
	receiver    any
	once        bool
	id          string
}

// WithPriority sets the handler priority. Lower values run first.
func WithPriority(p int) Option {
	return func(c *handlerConfig) {
		c.priority = p
		c.hasPriority = true
	}
}

// WithReceiver binds a value that is passed to the handler as
// Invocation.Receiver.
func WithReceiver(v any) Option {
	return func(c *handlerConfig) {
		c.receiver = v
	}
}

// WithOnce removes the action after its first invocation.
// It is rejected by AddFilter.
func WithOnce() Option {
	return func(c *handlerConfig) {
		c.once = true
	}
}

// WithID registers the handler under a caller-chosen id instead of a
// generated one. The id must be unique for the hook name and kind.
func WithID(id string) Option {
	return func(c *handlerConfig) {
		c.id = id
	}
}

// RegistryOption configures a Registry.
type RegistryOption func(*registryConfig)

// registryConfig contains configuration for a registry.
type registryConfig struct {
	logger          *slog.Logger
	ids             IDGenerator
	defaultPriority int
}

// defaultRegistryConfig returns the default registry configuration.
func defaultRegistryConfig() registryConfig {
	return registryConfig{
		logger:          slog.New(slog.DiscardHandler),
		ids:             XIDGenerator{},
		defaultPriority: DefaultPriority,
	}
}

// WithLogger sets the logger used for registration diagnostics.
func WithLogger(l *slog.Logger) RegistryOption {
	return func(c *registryConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithIDGenerator sets the generator for handler ids.
func WithIDGenerator(g IDGenerator) RegistryOption {
	return func(c *registryConfig) {
		if g != nil {
			c.ids = g
		}
	}
}

// WithDefaultPriority changes the priority used when a handler is
// registered without WithPriority.
func WithDefaultPriority(p int) RegistryOption {
	return func(c *registryConfig) {
		c.defaultPriority = p
	}
}
