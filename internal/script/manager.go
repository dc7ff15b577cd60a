package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"github.com/dshills/hookbus/internal/hook"
)

// Manager owns the named script hosts attached to one registry.
//
// The Manager's own bookkeeping is safe for concurrent use, but loading,
// reloading and dispatching to a script must stay on one goroutine.
type Manager struct {
	mu     sync.Mutex
	reg    *hook.Registry
	logger *slog.Logger
	opts   []StateOption
	hosts  map[string]*Host
}

// NewManager creates a manager registering handlers in reg.
func NewManager(reg *hook.Registry, logger *slog.Logger, opts ...StateOption) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		reg:    reg,
		logger: logger,
		opts:   opts,
		hosts:  make(map[string]*Host),
	}
}

// Registry returns the registry scripts register into.
func (m *Manager) Registry() *hook.Registry {
	return m.reg
}

// Load runs the script at path under name.
func (m *Manager) Load(ctx context.Context, name, path string) (*Host, error) {
	m.mu.Lock()
	if _, exists := m.hosts[name]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrScriptExists, name)
	}
	h := NewHost(m.reg, name, path, m.logger, m.opts...)
	m.hosts[name] = h
	m.mu.Unlock()

	if err := h.Load(ctx); err != nil {
		m.mu.Lock()
		delete(m.hosts, name)
		m.mu.Unlock()
		return nil, err
	}
	return h, nil
}

// LoadPaths loads each path, naming the script after its file name without
// extension. Every path is attempted; the errors are joined.
func (m *Manager) LoadPaths(ctx context.Context, paths []string) error {
	var errs []error
	for _, p := range paths {
		if _, err := m.Load(ctx, ScriptName(p), p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Reload unloads the named script, runs it again and replays its bindings.
func (m *Manager) Reload(ctx context.Context, name string) error {
	h, ok := m.Get(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrScriptNotFound, name)
	}

	bindings := h.Bindings()
	h.bindings = nil
	h.Unload()

	if err := h.Load(ctx); err != nil {
		h.bindings = bindings
		return err
	}

	var errs []error
	for _, b := range bindings {
		if _, err := h.Bind(b); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	m.logger.Info("script reloaded", slog.String("script", name), slog.Int("handlers", len(h.handlers)))
	return nil
}

// Unload removes the named script and its handlers.
func (m *Manager) Unload(name string) bool {
	m.mu.Lock()
	h, ok := m.hosts[name]
	delete(m.hosts, name)
	m.mu.Unlock()

	if !ok {
		return false
	}
	h.Unload()
	return true
}

// Get returns the named host.
func (m *Manager) Get(name string) (*Host, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hosts[name]
	return h, ok
}

// Lookup returns the host running the script at path.
func (m *Manager) Lookup(path string) (*Host, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.hosts {
		if h.path == abs {
			return h, true
		}
	}
	return nil, false
}

// Names returns the loaded script names, sorted.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.hosts))
	for name := range m.hosts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Paths returns the script paths of all loaded hosts, sorted.
func (m *Manager) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	paths := make([]string, 0, len(m.hosts))
	for _, h := range m.hosts {
		paths = append(paths, h.path)
	}
	sort.Strings(paths)
	return paths
}

// Close unloads every script.
func (m *Manager) Close() {
	m.mu.Lock()
	hosts := m.hosts
	m.hosts = make(map[string]*Host)
	m.mu.Unlock()

	for _, h := range hosts {
		h.Unload()
	}
}

// ScriptName derives a script name from its path: "hooks/seo.lua" is "seo".
func ScriptName(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}
