package script

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/dshills/hookbus/internal/hook"
)

// Binding attaches a global Lua function to a hook. The manifest declares
// bindings, and Manager.Reload replays them.
type Binding struct {
	Kind     hook.Kind
	Hook     string
	Function string
	Priority *int
	Once     bool
}

func (b Binding) options() []hook.Option {
	var opts []hook.Option
	if b.Priority != nil {
		opts = append(opts, hook.WithPriority(*b.Priority))
	}
	if b.Once {
		opts = append(opts, hook.WithOnce())
	}
	return opts
}

// owned identifies one handler a host registered.
type owned struct {
	kind hook.Kind
	hook string
}

// Host runs one script file against a registry and tracks every handler the
// script registers so that Unload can remove them.
type Host struct {
	name string
	path string

	reg    *hook.Registry
	logger *slog.Logger
	opts   []StateOption

	state   *State
	module  *hooksModule
	loadCtx context.Context

	handlers map[string]owned
	bindings []Binding
}

// NewHost creates a host for the script at path. Nothing runs until Load.
func NewHost(reg *hook.Registry, name, path string, logger *slog.Logger, opts ...StateOption) *Host {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return &Host{
		name:     name,
		path:     path,
		reg:      reg,
		logger:   logger.With(slog.String("script", name)),
		opts:     opts,
		handlers: make(map[string]owned),
	}
}

// Name returns the script name.
func (h *Host) Name() string {
	return h.name
}

// Path returns the absolute script path.
func (h *Host) Path() string {
	return h.path
}

// Loaded reports whether the script has been loaded and not unloaded.
func (h *Host) Loaded() bool {
	return h.state != nil && !h.state.IsClosed()
}

// Load creates the Lua state, installs the hooks and json modules and runs
// the script. Handlers the script registered before failing are removed.
func (h *Host) Load(ctx context.Context) error {
	if h.Loaded() {
		return nil
	}

	opts := append([]StateOption{WithStateLogger(h.logger)}, h.opts...)
	h.state = NewState(opts...)
	h.module = newHooksModule(h)
	h.module.install()
	installJSON(h.state)

	h.loadCtx = ctx
	err := h.state.DoFile(ctx, h.path)
	h.loadCtx = nil

	if err != nil {
		h.Unload()
		return fmt.Errorf("loading script %s: %w", h.name, err)
	}

	h.logger.Debug("script loaded", slog.String("path", h.path), slog.Int("handlers", len(h.handlers)))
	return nil
}

// Bind registers the global function b.Function for b.Hook.
func (h *Host) Bind(b Binding) (string, error) {
	if !h.Loaded() {
		return "", ErrNotLoaded
	}

	fn, err := h.state.Function(b.Function)
	if err != nil {
		return "", fmt.Errorf("script %s: %w", h.name, err)
	}

	var id string
	switch b.Kind {
	case hook.KindAction:
		id, err = h.add(b.Kind, b.Hook, h.module.action(fn), nil, b.options())
	case hook.KindFilter:
		id, err = h.add(b.Kind, b.Hook, nil, h.module.filter(fn), b.options())
	default:
		err = &hook.KindError{Value: b.Kind.String()}
	}
	if err != nil {
		return "", fmt.Errorf("script %s: binding %s to %s: %w", h.name, b.Function, b.Hook, err)
	}

	h.bindings = append(h.bindings, b)
	return id, nil
}

// Bindings returns the bindings applied with Bind.
func (h *Host) Bindings() []Binding {
	return append([]Binding(nil), h.bindings...)
}

// HandlerIDs returns the ids of handlers registered by this host, sorted.
func (h *Host) HandlerIDs() []string {
	ids := make([]string, 0, len(h.handlers))
	for id := range h.handlers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Unload removes every handler the script registered and closes its state.
// It returns the number of handlers removed; handlers already removed
// elsewhere, such as fired once actions, are not counted.
func (h *Host) Unload() int {
	removed := 0
	for id, o := range h.handlers {
		if h.reg.Remove(o.kind, o.hook, id) {
			removed++
		}
	}
	h.handlers = make(map[string]owned)

	if h.state != nil {
		h.state.Close()
	}
	h.module = nil

	h.logger.Debug("script unloaded", slog.Int("removed", removed))
	return removed
}

func (h *Host) add(kind hook.Kind, name string, a hook.Action, f hook.Filter, opts []hook.Option) (string, error) {
	var (
		id  string
		err error
	)
	if kind == hook.KindFilter {
		id, err = h.reg.AddFilter(name, f, opts...)
	} else {
		id, err = h.reg.AddAction(name, a, opts...)
	}
	if err != nil {
		return "", err
	}
	h.handlers[id] = owned{kind: kind, hook: name}
	return id, nil
}

func (h *Host) remove(kind hook.Kind, name, id string) bool {
	if !h.reg.Remove(kind, name, id) {
		return false
	}
	delete(h.handlers, id)
	return true
}

// ctx is the context for dispatches started outside any handler call, which
// only happens while the script body runs.
func (h *Host) ctx() context.Context {
	if h.loadCtx != nil {
		return h.loadCtx
	}
	return context.Background()
}
