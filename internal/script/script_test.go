package script

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/hookbus/internal/hook"
)

// writeLua writes a script into a temporary directory and returns its path.
func writeLua(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func loadHost(t *testing.T, reg *hook.Registry, body string) *Host {
	t.Helper()
	h := NewHost(reg, "test", writeLua(t, "test.lua", body), nil)
	if err := h.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	t.Cleanup(func() { h.Unload() })
	return h
}

// globals returns the string form of Lua globals, keyed by name.
func globals(s *State, names ...string) map[string]string {
	got := make(map[string]string, len(names))
	for _, name := range names {
		got[name] = s.L.GetGlobal(name).String()
	}
	return got
}

func TestHost_FilterOrder(t *testing.T) {
	reg := hook.NewRegistry()
	loadHost(t, reg, `
hooks.add_filter("title", function(v) return v .. "b" end, 20)
hooks.add_filter("title", function(v) return v .. "a" end, 5)
hooks.add_filter("title", function(v) return v .. "c" end, 20)
`)

	got, err := reg.ApplyFilters(context.Background(), "title", "x")
	if err != nil {
		t.Fatal(err)
	}
	if got != "xabc" {
		t.Errorf("ApplyFilters() = %v, want xabc", got)
	}
}

func TestHost_ActionArgs(t *testing.T) {
	reg := hook.NewRegistry()
	h := loadHost(t, reg, `
seen = {}
hooks.add_action("save", function(post, flag)
  seen.id = post.id
  seen.flag = flag
end)
`)

	if err := reg.DoAction(context.Background(), "save", map[string]any{"id": 7}, true); err != nil {
		t.Fatal(err)
	}

	seen := h.state.Bridge().ToGoValue(h.state.L.GetGlobal("seen"))
	if diff := cmp.Diff(map[string]any{"id": int64(7), "flag": true}, seen); diff != "" {
		t.Errorf("seen mismatch (-want +got):\n%s", diff)
	}
}

func TestHost_FilterExtraArgs(t *testing.T) {
	reg := hook.NewRegistry()
	loadHost(t, reg, `
hooks.add_filter("price", function(v, rate) return v * rate end)
`)

	got, err := reg.ApplyFilters(context.Background(), "price", 10, 3)
	if err != nil {
		t.Fatal(err)
	}
	if got != int64(30) {
		t.Errorf("ApplyFilters() = %v (%T), want 30", got, got)
	}
}

func TestHost_Receiver(t *testing.T) {
	reg := hook.NewRegistry()
	loadHost(t, reg, `
local counter = { n = 0, step = 2 }
function counter.bump(self, v) return v + self.step end
hooks.add_filter("num", counter.bump, nil, { context = counter })
`)

	got, err := reg.ApplyFilters(context.Background(), "num", 1)
	if err != nil {
		t.Fatal(err)
	}
	if got != int64(3) {
		t.Errorf("ApplyFilters() = %v, want 3", got)
	}
}

func TestHost_GoReceiverRoundTrip(t *testing.T) {
	type target struct{ name string }
	recv := &target{name: "go"}

	reg := hook.NewRegistry()
	h := loadHost(t, reg, `
function check(self, v) captured = self; return v end
`)

	fn, err := h.state.Function("check")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := reg.AddFilter("g", h.module.filter(fn), hook.WithReceiver(recv)); err != nil {
		t.Fatal(err)
	}

	if _, err := reg.ApplyFilters(context.Background(), "g", 1); err != nil {
		t.Fatal(err)
	}
	got, ok := h.state.Bridge().ToGoValue(h.state.L.GetGlobal("captured")).(*target)
	if !ok || got != recv {
		t.Errorf("captured receiver = %v, want the registered pointer", got)
	}
}

func TestHost_OnceAndRemove(t *testing.T) {
	reg := hook.NewRegistry()
	h := loadHost(t, reg, `
calls = 0
local function inc() calls = calls + 1 end
hooks.add_action("init", inc, 10, { once = true })

local function other() calls = calls + 100 end
hooks.add_action("init", other)
removed_fn = hooks.remove_action("init", other)

local id = hooks.add_action("init", function() calls = calls + 1000 end, 10, { id = "big" })
removed_id = hooks.remove_action("init", "big")
removed_missing = hooks.remove_action("init", "nope")
`)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := reg.DoAction(ctx, "init"); err != nil {
			t.Fatal(err)
		}
	}

	want := map[string]string{
		"calls":           "1",
		"removed_fn":      "true",
		"removed_id":      "true",
		"removed_missing": "false",
	}
	if diff := cmp.Diff(want, globals(h.state, "calls", "removed_fn", "removed_id", "removed_missing")); diff != "" {
		t.Errorf("globals mismatch (-want +got):\n%s", diff)
	}
	if reg.HasAction("init") {
		t.Error("expected no init actions left")
	}
}

func TestHost_NestedDispatch(t *testing.T) {
	reg := hook.NewRegistry()
	h := loadHost(t, reg, `
log = {}
hooks.add_action("outer", function()
  table.insert(log, "outer:" .. hooks.current())
  hooks.do_action("inner")
  table.insert(log, "after:" .. hooks.current())
end)
hooks.add_action("inner", function()
  table.insert(log, "inner:" .. hooks.current())
  table.insert(log, tostring(hooks.doing("outer")))
end)
`)

	if err := reg.DoAction(context.Background(), "outer"); err != nil {
		t.Fatal(err)
	}

	got := h.state.Bridge().ToGoValue(h.state.L.GetGlobal("log"))
	if diff := cmp.Diff([]any{"outer:outer", "inner:inner", "true", "after:outer"}, got); diff != "" {
		t.Errorf("log mismatch (-want +got):\n%s", diff)
	}
	if n := reg.DidAction("inner"); n != 1 {
		t.Errorf("DidAction(inner) = %d, want 1", n)
	}
}

func TestHost_DispatchFromScriptBody(t *testing.T) {
	reg := hook.NewRegistry()
	_, err := reg.AddFilter("greet", hook.FilterFunc(func(ctx context.Context, v any, inv hook.Invocation) (any, error) {
		return v.(string) + "!", nil
	}))
	if err != nil {
		t.Fatal(err)
	}

	h := loadHost(t, reg, `
greeting = hooks.apply_filters("greet", "hi")
has = hooks.has_filter("greet")
count = hooks.did_filter("greet")
outside = hooks.current()
busy = hooks.doing()
`)

	want := map[string]string{
		"greeting": "hi!",
		"has":      "true",
		"count":    "1",
		"outside":  "nil",
		"busy":     "false",
	}
	if diff := cmp.Diff(want, globals(h.state, "greeting", "has", "count", "outside", "busy")); diff != "" {
		t.Errorf("globals mismatch (-want +got):\n%s", diff)
	}
}

func TestHost_ErrorPropagates(t *testing.T) {
	reg := hook.NewRegistry()
	ran := false
	loadHost(t, reg, `
hooks.add_action("boom", function() error("kaput") end, 1)
`)
	_, err := reg.AddAction("boom", hook.ActionFunc(func(ctx context.Context, inv hook.Invocation) error {
		ran = true
		return nil
	}), hook.WithPriority(2))
	if err != nil {
		t.Fatal(err)
	}

	err = reg.DoAction(context.Background(), "boom")

	var herr *hook.HandlerError
	if !errors.As(err, &herr) {
		t.Fatalf("DoAction() error = %v, want HandlerError", err)
	}
	if herr.Hook != "boom" {
		t.Errorf("Hook = %q, want boom", herr.Hook)
	}
	if !strings.Contains(err.Error(), "kaput") {
		t.Errorf("error %q does not carry the Lua message", err)
	}
	if ran {
		t.Error("later handlers must not run")
	}
}

func TestHost_GoErrorRaisedInLua(t *testing.T) {
	reg := hook.NewRegistry()
	_, err := reg.AddAction("fail", hook.ActionFunc(func(ctx context.Context, inv hook.Invocation) error {
		return errors.New("go side failed")
	}))
	if err != nil {
		t.Fatal(err)
	}

	h := loadHost(t, reg, `
ok, msg = pcall(hooks.do_action, "fail")
`)

	got := globals(h.state, "ok", "msg")
	if got["ok"] != "false" {
		t.Errorf("ok = %s, want false", got["ok"])
	}
	if !strings.Contains(got["msg"], "go side failed") {
		t.Errorf("msg = %q", got["msg"])
	}
}

func TestHost_LoadErrorCleansUp(t *testing.T) {
	reg := hook.NewRegistry()
	h := NewHost(reg, "bad", writeLua(t, "bad.lua", `
hooks.add_action("init", function() end)
error("broken script")
`), nil)

	err := h.Load(context.Background())
	if err == nil || !strings.Contains(err.Error(), "broken script") {
		t.Fatalf("Load() error = %v, want the script error", err)
	}
	if reg.HasAction("init") {
		t.Error("partial registrations must be removed")
	}
	if h.Loaded() {
		t.Error("expected host to report not loaded")
	}
}

func TestHost_Unload(t *testing.T) {
	reg := hook.NewRegistry()
	_, err := reg.AddAction("init", hook.ActionFunc(func(context.Context, hook.Invocation) error { return nil }))
	if err != nil {
		t.Fatal(err)
	}

	h := NewHost(reg, "s", writeLua(t, "s.lua", `
hooks.add_action("init", function() end)
hooks.add_filter("title", function(v) return v end)
`), nil)
	if err := h.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := len(h.HandlerIDs()); n != 2 {
		t.Errorf("HandlerIDs() has %d ids, want 2", n)
	}

	if n := h.Unload(); n != 2 {
		t.Errorf("Unload() = %d, want 2", n)
	}
	if !reg.HasAction("init") {
		t.Error("handlers from other sources must stay")
	}
	if reg.HasFilter("title") {
		t.Error("expected the script's filter to be removed")
	}
	if h.Loaded() {
		t.Error("expected host to report not loaded")
	}

	if _, err := h.Bind(Binding{Kind: hook.KindAction, Hook: "x", Function: "f"}); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Bind() after Unload error = %v, want ErrNotLoaded", err)
	}
}

func TestHost_Bind(t *testing.T) {
	reg := hook.NewRegistry()
	h := loadHost(t, reg, `
function shout(v) return string.upper(v) end
not_a_function = 1
`)

	prio := 3
	id, err := h.Bind(Binding{Kind: hook.KindFilter, Hook: "title", Function: "shout", Priority: &prio})
	if err != nil {
		t.Fatalf("Bind() error = %v", err)
	}

	infos := reg.Handlers(hook.KindFilter, "title")
	if len(infos) != 1 {
		t.Fatalf("got %d title filters, want 1", len(infos))
	}
	if infos[0].ID != id || infos[0].Priority != 3 {
		t.Errorf("handler = %+v, want id %s priority 3", infos[0], id)
	}

	got, err := reg.ApplyFilters(context.Background(), "title", "hello")
	if err != nil {
		t.Fatal(err)
	}
	if got != "HELLO" {
		t.Errorf("ApplyFilters() = %v, want HELLO", got)
	}

	for _, fn := range []string{"not_a_function", "missing"} {
		if _, err := h.Bind(Binding{Kind: hook.KindAction, Hook: "x", Function: fn}); !errors.Is(err, ErrFunctionNotFound) {
			t.Errorf("Bind(%s) error = %v, want ErrFunctionNotFound", fn, err)
		}
	}

	if n := len(h.Bindings()); n != 1 {
		t.Errorf("Bindings() has %d entries, want 1", n)
	}
}

func TestHost_RegistrationErrorsRaise(t *testing.T) {
	reg := hook.NewRegistry()
	h := loadHost(t, reg, `
ok_empty, err_empty = pcall(hooks.add_action, "", function() end)
ok_once, err_once = pcall(hooks.add_filter, "f", function(v) return v end, 10, { once = true })
hooks.add_action("a", function() end, 10, { id = "dup" })
ok_dup, err_dup = pcall(hooks.add_action, "a", function() end, 10, { id = "dup" })
`)

	got := globals(h.state, "ok_empty", "ok_once", "ok_dup", "err_dup")
	for _, name := range []string{"ok_empty", "ok_once", "ok_dup"} {
		if got[name] != "false" {
			t.Errorf("%s = %s, want false", name, got[name])
		}
	}
	if !strings.Contains(got["err_dup"], "already registered") {
		t.Errorf("err_dup = %q", got["err_dup"])
	}
}

func TestState_Sandbox(t *testing.T) {
	s := NewState()
	defer s.Close()

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module", "io", "os", "debug"} {
		if v := s.L.GetGlobal(name).String(); v != "nil" {
			t.Errorf("%s = %s, want nil", name, v)
		}
	}
	for _, name := range []string{"string", "table", "math", "pairs"} {
		if v := s.L.GetGlobal(name).String(); v == "nil" {
			t.Errorf("%s is not available", name)
		}
	}
}

func TestState_PrintLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	s := NewState(WithStateLogger(logger))
	defer s.Close()

	if err := s.DoString(context.Background(), `print("hello", 42)`); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `hello\t42`) {
		t.Errorf("log output = %q", buf.String())
	}
}

func TestState_Closed(t *testing.T) {
	s := NewState()
	s.Close()
	s.Close()

	if !s.IsClosed() {
		t.Error("expected IsClosed() to be true")
	}
	if err := s.DoString(context.Background(), "x = 1"); !errors.Is(err, ErrStateClosed) {
		t.Errorf("DoString() error = %v, want ErrStateClosed", err)
	}
	if _, err := s.Function("x"); !errors.Is(err, ErrStateClosed) {
		t.Errorf("Function() error = %v, want ErrStateClosed", err)
	}
}

func TestState_LoadTimeout(t *testing.T) {
	s := NewState(WithLoadTimeout(50 * time.Millisecond))
	defer s.Close()

	if err := s.DoString(context.Background(), `while true do end`); err == nil {
		t.Error("expected the loop to be interrupted")
	}
}

func TestJSONModule(t *testing.T) {
	reg := hook.NewRegistry()
	loadHost(t, reg, `
hooks.add_filter("doc", function(doc)
  local n = json.get(doc, "user.visits")
  doc = json.set(doc, "user.visits", n + 1)
  doc = json.set(doc, "user.tags.-1", "seen")
  doc = json.set(doc, "tmp", nil)
  return json.ugly(doc)
end)
`)

	got, err := reg.ApplyFilters(context.Background(), "doc", `{"user":{"visits":1,"tags":[]},"tmp":true}`)
	if err != nil {
		t.Fatal(err)
	}
	if want := `{"user":{"visits":2,"tags":["seen"]}}`; got != want {
		t.Errorf("ApplyFilters() = %v, want %s", got, want)
	}
}

func TestJSONModule_Helpers(t *testing.T) {
	s := NewState()
	defer s.Close()
	installJSON(s)

	err := s.DoString(context.Background(), `
ok = json.valid('{"a":1}')
bad = json.valid('{"a":')
missing = json.get('{"a":1}', "b")
arr = json.get('{"a":[1,2]}', "a")
pretty = json.pretty('{"a":1}')
`)
	if err != nil {
		t.Fatal(err)
	}

	b := s.Bridge()
	got := map[string]any{
		"ok":      b.ToGoValue(s.L.GetGlobal("ok")),
		"bad":     b.ToGoValue(s.L.GetGlobal("bad")),
		"missing": b.ToGoValue(s.L.GetGlobal("missing")),
		"arr":     b.ToGoValue(s.L.GetGlobal("arr")),
	}
	want := map[string]any{
		"ok":      true,
		"bad":     false,
		"missing": nil,
		"arr":     []any{int64(1), int64(2)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("json helpers mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(s.L.GetGlobal("pretty").String(), "\n") {
		t.Error("expected pretty output to span lines")
	}
}
