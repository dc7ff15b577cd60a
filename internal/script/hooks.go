package script

import (
	"context"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/hookbus/internal/hook"
)

// HooksModuleName is the global the hooks module is installed as.
const HooksModuleName = "hooks"

// luaAction runs a Lua function as a hook.Action.
type luaAction struct {
	m  *hooksModule
	fn *lua.LFunction
}

func (a *luaAction) Do(ctx context.Context, inv hook.Invocation) error {
	_, err := a.m.call(ctx, a.fn, 0, inv.Receiver, inv.Args)
	return err
}

// luaFilter runs a Lua function as a hook.Filter. The function's first
// result replaces the value, so a filter that returns nothing yields nil.
type luaFilter struct {
	m  *hooksModule
	fn *lua.LFunction
}

func (f *luaFilter) Apply(ctx context.Context, value any, inv hook.Invocation) (any, error) {
	args := make([]any, 0, len(inv.Args)+1)
	args = append(args, value)
	args = append(args, inv.Args...)

	results, err := f.m.call(ctx, f.fn, 1, inv.Receiver, args)
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// hooksModule exposes a hook.Registry to one Lua state.
//
// Each Lua function maps to exactly one luaAction and one luaFilter so that
// removing by function finds the handler it registered.
type hooksModule struct {
	host  *Host
	reg   *hook.Registry
	state *State

	actions map[*lua.LFunction]*luaAction
	filters map[*lua.LFunction]*luaFilter

	// ctxs holds the context of every Lua call in progress, innermost last.
	// Dispatches started from Lua continue the innermost one.
	ctxs []context.Context
}

func newHooksModule(h *Host) *hooksModule {
	return &hooksModule{
		host:    h,
		reg:     h.reg,
		state:   h.state,
		actions: make(map[*lua.LFunction]*luaAction),
		filters: make(map[*lua.LFunction]*luaFilter),
	}
}

// install registers the module as a global table.
func (m *hooksModule) install() {
	L := m.state.L
	mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"add_action":         m.addAction,
		"add_filter":         m.addFilter,
		"remove_action":      m.removeAction,
		"remove_filter":      m.removeFilter,
		"do_action":          m.doAction,
		"apply_filters":      m.applyFilters,
		"has_action":         m.hasAction,
		"has_filter":         m.hasFilter,
		"remove_all_actions": m.removeAllActions,
		"remove_all_filters": m.removeAllFilters,
		"did_action":         m.didAction,
		"did_filter":         m.didFilter,
		"current":            m.current,
		"doing":              m.doing,
	})
	L.SetField(mod, "DEFAULT_PRIORITY", lua.LNumber(hook.DefaultPriority))
	m.state.SetGlobal(HooksModuleName, mod)
}

// context returns the context of the innermost Lua call in progress.
func (m *hooksModule) context() context.Context {
	if n := len(m.ctxs); n > 0 {
		return m.ctxs[n-1]
	}
	return m.host.ctx()
}

// call invokes fn with the receiver (when set) followed by args.
func (m *hooksModule) call(ctx context.Context, fn *lua.LFunction, nret int, receiver any, args []any) ([]any, error) {
	callArgs := args
	if receiver != nil {
		callArgs = make([]any, 0, len(args)+1)
		callArgs = append(callArgs, receiver)
		callArgs = append(callArgs, args...)
	}

	m.ctxs = append(m.ctxs, ctx)
	defer func() { m.ctxs = m.ctxs[:len(m.ctxs)-1] }()

	results, err := m.state.Call(fn, nret, callArgs...)
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", m.host.Name(), err)
	}
	return results, nil
}

func (m *hooksModule) action(fn *lua.LFunction) *luaAction {
	a, ok := m.actions[fn]
	if !ok {
		a = &luaAction{m: m, fn: fn}
		m.actions[fn] = a
	}
	return a
}

func (m *hooksModule) filter(fn *lua.LFunction) *luaFilter {
	f, ok := m.filters[fn]
	if !ok {
		f = &luaFilter{m: m, fn: fn}
		m.filters[fn] = f
	}
	return f
}

// options reads the optional priority and options table at positions 3 and 4.
func (m *hooksModule) options(L *lua.LState) []hook.Option {
	var opts []hook.Option

	if L.Get(3) != lua.LNil {
		opts = append(opts, hook.WithPriority(L.CheckInt(3)))
	}

	tbl := L.OptTable(4, nil)
	if tbl == nil {
		return opts
	}
	if lua.LVAsBool(tbl.RawGetString("once")) {
		opts = append(opts, hook.WithOnce())
	}
	if id, ok := tbl.RawGetString("id").(lua.LString); ok {
		opts = append(opts, hook.WithID(string(id)))
	}
	if rv := tbl.RawGetString("context"); rv != lua.LNil {
		opts = append(opts, hook.WithReceiver(m.state.Bridge().ToGoValue(rv)))
	}
	return opts
}

// add_action(name, fn[, priority[, opts]]) -> id
func (m *hooksModule) addAction(L *lua.LState) int {
	name := L.CheckString(1)
	fn := L.CheckFunction(2)

	id, err := m.host.add(hook.KindAction, name, m.action(fn), nil, m.options(L))
	if err != nil {
		L.RaiseError("add_action: %s", err.Error())
		return 0
	}
	L.Push(lua.LString(id))
	return 1
}

// add_filter(name, fn[, priority[, opts]]) -> id
func (m *hooksModule) addFilter(L *lua.LState) int {
	name := L.CheckString(1)
	fn := L.CheckFunction(2)

	id, err := m.host.add(hook.KindFilter, name, nil, m.filter(fn), m.options(L))
	if err != nil {
		L.RaiseError("add_filter: %s", err.Error())
		return 0
	}
	L.Push(lua.LString(id))
	return 1
}

// remove_action(name, id|fn) -> bool
func (m *hooksModule) removeAction(L *lua.LState) int {
	name := L.CheckString(1)

	var removed bool
	switch v := L.Get(2).(type) {
	case lua.LString:
		removed = m.host.remove(hook.KindAction, name, string(v))
	case *lua.LFunction:
		if a, ok := m.actions[v]; ok {
			removed = m.reg.RemoveActionCallback(name, a)
		}
	default:
		L.ArgError(2, "expected handler id or function")
		return 0
	}

	L.Push(lua.LBool(removed))
	return 1
}

// remove_filter(name, id|fn) -> bool
func (m *hooksModule) removeFilter(L *lua.LState) int {
	name := L.CheckString(1)

	var removed bool
	switch v := L.Get(2).(type) {
	case lua.LString:
		removed = m.host.remove(hook.KindFilter, name, string(v))
	case *lua.LFunction:
		if f, ok := m.filters[v]; ok {
			removed = m.reg.RemoveFilterCallback(name, f)
		}
	default:
		L.ArgError(2, "expected handler id or function")
		return 0
	}

	L.Push(lua.LBool(removed))
	return 1
}

// do_action(name, ...)
func (m *hooksModule) doAction(L *lua.LState) int {
	name := L.CheckString(1)
	args := m.state.Bridge().Args(2)

	if err := m.reg.DoAction(m.context(), name, args...); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

// apply_filters(name, value, ...) -> value
func (m *hooksModule) applyFilters(L *lua.LState) int {
	name := L.CheckString(1)
	b := m.state.Bridge()
	value := b.ToGoValue(L.Get(2))
	args := b.Args(3)

	out, err := m.reg.ApplyFilters(m.context(), name, value, args...)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	L.Push(b.ToLuaValue(out))
	return 1
}

func (m *hooksModule) hasAction(L *lua.LState) int {
	L.Push(lua.LBool(m.reg.HasAction(L.CheckString(1))))
	return 1
}

func (m *hooksModule) hasFilter(L *lua.LState) int {
	L.Push(lua.LBool(m.reg.HasFilter(L.CheckString(1))))
	return 1
}

func (m *hooksModule) removeAllActions(L *lua.LState) int {
	L.Push(lua.LBool(m.reg.RemoveAllActions(L.CheckString(1))))
	return 1
}

func (m *hooksModule) removeAllFilters(L *lua.LState) int {
	L.Push(lua.LBool(m.reg.RemoveAllFilters(L.CheckString(1))))
	return 1
}

func (m *hooksModule) didAction(L *lua.LState) int {
	L.Push(lua.LNumber(m.reg.DidAction(L.CheckString(1))))
	return 1
}

func (m *hooksModule) didFilter(L *lua.LState) int {
	L.Push(lua.LNumber(m.reg.DidFilter(L.CheckString(1))))
	return 1
}

// current() -> name|nil
func (m *hooksModule) current(L *lua.LState) int {
	name, ok := hook.Current(m.context())
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(name))
	return 1
}

// doing([name]) -> bool. Without a name it reports whether any hook is
// being dispatched.
func (m *hooksModule) doing(L *lua.LState) int {
	ctx := m.context()
	if L.Get(1) == lua.LNil {
		_, ok := hook.Current(ctx)
		L.Push(lua.LBool(ok))
		return 1
	}
	L.Push(lua.LBool(hook.Doing(ctx, L.CheckString(1))))
	return 1
}
