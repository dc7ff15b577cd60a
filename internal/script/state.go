package script

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// DefaultLoadTimeout bounds the top-level execution of a script file.
const DefaultLoadTimeout = 5 * time.Second

// removedGlobals are base library functions that load code from outside the
// script or reach the module system.
var removedGlobals = []string{
	"dofile",
	"loadfile",
	"load",
	"loadstring",
	"require",
	"module",
}

// State wraps a sandboxed gopher-lua state.
//
// A State is not goroutine-safe and has no lock: Lua handlers can dispatch
// hooks that call back into the same State, so every call must come from
// the goroutine that owns it.
type State struct {
	L      *lua.LState
	bridge *Bridge

	logger      *slog.Logger
	loadTimeout time.Duration
	closed      bool
}

// StateOption configures a State.
type StateOption func(*State)

// WithStateLogger sets the logger that receives print output.
func WithStateLogger(l *slog.Logger) StateOption {
	return func(s *State) {
		s.logger = l
	}
}

// WithLoadTimeout bounds DoFile and DoString. Zero disables the limit.
func WithLoadTimeout(d time.Duration) StateOption {
	return func(s *State) {
		s.loadTimeout = d
	}
}

// NewState creates a new sandboxed Lua state.
func NewState(opts ...StateOption) *State {
	s := &State{
		logger:      slog.New(slog.DiscardHandler),
		loadTimeout: DefaultLoadTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	L := lua.NewState(lua.Options{
		SkipOpenLibs: true, // opened selectively below
	})
	s.L = L
	s.bridge = NewBridge(L)

	openSafeLibraries(L)
	for _, name := range removedGlobals {
		L.SetGlobal(name, lua.LNil)
	}
	L.SetGlobal("print", L.NewFunction(s.print))

	return s
}

// openSafeLibraries opens only safe Lua standard libraries. io, os, debug
// and package are never opened.
func openSafeLibraries(L *lua.LState) {
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
}

// print logs its arguments, tab separated, at info level.
func (s *State) print(L *lua.LState) int {
	n := L.GetTop()
	parts := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	s.logger.Info(strings.Join(parts, "\t"))
	return 0
}

// Bridge returns the value converter for this state.
func (s *State) Bridge() *Bridge {
	return s.bridge
}

// DoFile executes a Lua file.
func (s *State) DoFile(ctx context.Context, path string) error {
	return s.run(ctx, func() error { return s.L.DoFile(path) })
}

// DoString executes a Lua chunk.
func (s *State) DoString(ctx context.Context, code string) error {
	return s.run(ctx, func() error { return s.L.DoString(code) })
}

// run executes fn with the load timeout applied through the state's context.
func (s *State) run(ctx context.Context, fn func() error) (err error) {
	if s.closed {
		return ErrStateClosed
	}

	if s.loadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.loadTimeout)
		defer cancel()
	}
	s.L.SetContext(ctx)
	defer s.L.RemoveContext()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// Function returns the global Lua function called name.
func (s *State) Function(name string) (*lua.LFunction, error) {
	if s.closed {
		return nil, ErrStateClosed
	}
	fn, ok := s.L.GetGlobal(name).(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFunctionNotFound, name)
	}
	return fn, nil
}

// Call calls fn with the given Go arguments and returns up to nret results
// converted to Go values. Pass lua.MultRet for all results.
func (s *State) Call(fn *lua.LFunction, nret int, args ...any) ([]any, error) {
	if s.closed {
		return nil, ErrStateClosed
	}

	top := s.L.GetTop()
	s.L.Push(fn)
	s.bridge.Push(args...)

	if err := s.L.PCall(len(args), nret, nil); err != nil {
		s.L.SetTop(top)
		return nil, err
	}

	n := s.L.GetTop() - top
	results := make([]any, n)
	for i := 0; i < n; i++ {
		results[i] = s.bridge.ToGoValue(s.L.Get(top + i + 1))
	}
	s.L.SetTop(top)
	return results, nil
}

// SetGlobal sets a global variable.
func (s *State) SetGlobal(name string, value lua.LValue) {
	if s.closed {
		return
	}
	s.L.SetGlobal(name, value)
}

// IsClosed returns true if the state has been closed.
func (s *State) IsClosed() bool {
	return s.closed
}

// Close releases the Lua state. Later calls return ErrStateClosed.
func (s *State) Close() {
	if s.closed {
		return
	}
	s.L.Close()
	s.closed = true
}
