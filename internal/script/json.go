package script

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
	lua "github.com/yuin/gopher-lua"
)

// JSONModuleName is the global the json module is installed as.
const JSONModuleName = "json"

// installJSON registers the json module: gjson paths for reads, sjson paths
// for writes. Documents stay strings on the Lua side.
func installJSON(s *State) {
	L := s.L
	b := s.Bridge()

	mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		// get(doc, path) -> value|nil
		"get": func(L *lua.LState) int {
			res := gjson.Get(L.CheckString(1), L.CheckString(2))
			if !res.Exists() {
				L.Push(lua.LNil)
				return 1
			}
			L.Push(b.ToLuaValue(res.Value()))
			return 1
		},

		// set(doc, path, value) -> doc
		"set": func(L *lua.LState) int {
			doc := L.CheckString(1)
			path := L.CheckString(2)

			var (
				out string
				err error
			)
			if L.Get(3) == lua.LNil {
				out, err = sjson.Delete(doc, path)
			} else {
				out, err = sjson.Set(doc, path, b.ToGoValue(L.Get(3)))
			}
			if err != nil {
				L.RaiseError("json.set: %s", err.Error())
				return 0
			}
			L.Push(lua.LString(out))
			return 1
		},

		// valid(doc) -> bool
		"valid": func(L *lua.LState) int {
			L.Push(lua.LBool(gjson.Valid(L.CheckString(1))))
			return 1
		},

		// pretty(doc) -> doc
		"pretty": func(L *lua.LState) int {
			L.Push(lua.LString(pretty.Pretty([]byte(L.CheckString(1)))))
			return 1
		},

		// ugly(doc) -> doc without insignificant whitespace
		"ugly": func(L *lua.LState) int {
			L.Push(lua.LString(pretty.Ugly([]byte(L.CheckString(1)))))
			return 1
		},
	})

	s.SetGlobal(JSONModuleName, mod)
}
