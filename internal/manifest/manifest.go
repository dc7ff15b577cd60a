// Package manifest reads HCL files that declare Lua scripts and bind their
// functions to hooks.
//
//	script "seo" {
//	  path = "${env.HOOKBUS_HOME}/scripts/seo.lua"
//	}
//
//	action "init" {
//	  script   = "seo"
//	  function = "on_init"
//	  priority = 5
//	  once     = true
//	}
//
//	filter "the_title" {
//	  script   = "seo"
//	  function = "title"
//	}
//
// Expressions can read environment variables through the env object and
// call upper, lower, join and coalesce. Relative script paths are resolved
// against the manifest's directory.
package manifest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"

	"github.com/dshills/hookbus/internal/hook"
	"github.com/dshills/hookbus/internal/logging"
	"github.com/dshills/hookbus/internal/script"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid manifest")

// Manifest is a decoded manifest file.
type Manifest struct {
	// Path is the file the manifest was read from.
	Path string

	Scripts  []Script
	Bindings []Binding
}

// Script declares a Lua script.
type Script struct {
	Name    string
	Path    string
	Enabled bool
}

// Binding attaches a script function to a hook.
type Binding struct {
	Kind     hook.Kind
	Hook     string
	Script   string
	Function string
	Priority *int
	Once     bool
}

// hclFile is the top-level structure of a manifest for decoding.
type hclFile struct {
	Scripts []*hclScript `hcl:"script,block"`
	Actions []*hclAction `hcl:"action,block"`
	Filters []*hclFilter `hcl:"filter,block"`
}

type hclScript struct {
	Name    string `hcl:"name,label"`
	Path    string `hcl:"path"`
	Enabled *bool  `hcl:"enabled,optional"`
}

type hclAction struct {
	Hook     string `hcl:"hook,label"`
	Script   string `hcl:"script"`
	Function string `hcl:"function"`
	Priority *int   `hcl:"priority,optional"`
	Once     *bool  `hcl:"once,optional"`
}

type hclFilter struct {
	Hook     string `hcl:"hook,label"`
	Script   string `hcl:"script"`
	Function string `hcl:"function"`
	Priority *int   `hcl:"priority,optional"`
}

// Option configures Parse.
type Option func(*parseOptions)

type parseOptions struct {
	env map[string]string
}

// WithEnv replaces the process environment exposed as env.
func WithEnv(env map[string]string) Option {
	return func(o *parseOptions) {
		o.env = env
	}
}

// Load reads and validates the manifest at path.
func Load(path string, opts ...Option) (*Manifest, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return Parse(src, path, opts...)
}

// Parse decodes and validates manifest source. filename is used in
// diagnostics and to resolve relative script paths.
func Parse(src []byte, filename string, opts ...Option) (*Manifest, error) {
	o := parseOptions{env: environ()}
	for _, opt := range opts {
		opt(&o)
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", filename, diags)
	}

	var parsed hclFile
	diags = gohcl.DecodeBody(file.Body, evalContext(o.env), &parsed)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode manifest %s: %w", filename, diags)
	}

	m := &Manifest{Path: filename}
	dir := filepath.Dir(filename)

	for _, s := range parsed.Scripts {
		path := s.Path
		if path != "" && !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		m.Scripts = append(m.Scripts, Script{
			Name:    s.Name,
			Path:    path,
			Enabled: s.Enabled == nil || *s.Enabled,
		})
	}
	for _, a := range parsed.Actions {
		m.Bindings = append(m.Bindings, Binding{
			Kind:     hook.KindAction,
			Hook:     a.Hook,
			Script:   a.Script,
			Function: a.Function,
			Priority: a.Priority,
			Once:     a.Once != nil && *a.Once,
		})
	}
	for _, f := range parsed.Filters {
		m.Bindings = append(m.Bindings, Binding{
			Kind:     hook.KindFilter,
			Hook:     f.Hook,
			Script:   f.Script,
			Function: f.Function,
			Priority: f.Priority,
		})
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks script names and binding references, returning every
// problem found.
func (m *Manifest) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w %s: %s", ErrInvalid, m.Path, fmt.Sprintf(format, args...)))
	}

	scripts := make(map[string]bool, len(m.Scripts))
	for _, s := range m.Scripts {
		if scripts[s.Name] {
			fail("duplicate script %q", s.Name)
		}
		scripts[s.Name] = true
		if s.Path == "" {
			fail("script %q has an empty path", s.Name)
		}
	}

	for _, b := range m.Bindings {
		if strings.TrimSpace(b.Hook) == "" {
			fail("%s block has an empty hook name", b.Kind)
		}
		if !scripts[b.Script] {
			fail("%s %q references unknown script %q", b.Kind, b.Hook, b.Script)
		}
		if b.Function == "" {
			fail("%s %q has an empty function", b.Kind, b.Hook)
		}
	}

	return errors.Join(errs...)
}

// Script returns the named script declaration.
func (m *Manifest) Script(name string) (Script, bool) {
	for _, s := range m.Scripts {
		if s.Name == name {
			return s, true
		}
	}
	return Script{}, false
}

// ScriptPaths returns the paths of enabled scripts.
func (m *Manifest) ScriptPaths() []string {
	var paths []string
	for _, s := range m.Scripts {
		if s.Enabled {
			paths = append(paths, s.Path)
		}
	}
	return paths
}

// Apply loads every enabled script into mgr and performs the bindings.
// Bindings to disabled scripts are skipped. It stops at the first error.
func (m *Manifest) Apply(ctx context.Context, mgr *script.Manager) error {
	logger := logging.FromContext(ctx)

	hosts := make(map[string]*script.Host)
	for _, s := range m.Scripts {
		if !s.Enabled {
			logger.Debug("script disabled", slog.String("script", s.Name))
			continue
		}
		h, err := mgr.Load(ctx, s.Name, s.Path)
		if err != nil {
			return err
		}
		hosts[s.Name] = h
	}

	for _, b := range m.Bindings {
		h, ok := hosts[b.Script]
		if !ok {
			continue
		}
		id, err := h.Bind(script.Binding{
			Kind:     b.Kind,
			Hook:     b.Hook,
			Function: b.Function,
			Priority: b.Priority,
			Once:     b.Once,
		})
		if err != nil {
			return err
		}
		logger.Debug("hook bound",
			slog.String("kind", b.Kind.String()),
			slog.String("hook", b.Hook),
			slog.String("script", b.Script),
			slog.String("function", b.Function),
			slog.String("id", id))
	}

	return nil
}

// evalContext exposes env and a few string functions to expressions.
func evalContext(env map[string]string) *hcl.EvalContext {
	vars := make(map[string]cty.Value, len(env))
	for k, v := range env {
		vars[k] = cty.StringVal(v)
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(vars),
		},
		Functions: map[string]function.Function{
			"upper":    stdlib.UpperFunc,
			"lower":    stdlib.LowerFunc,
			"join":     stdlib.JoinFunc,
			"coalesce": stdlib.CoalesceFunc,
		},
	}
}

func environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}
