// Package script runs hook handlers written in Lua.
//
// Each script file gets its own sandboxed gopher-lua state (see State) with
// two modules preloaded as globals:
//
//	hooks   registry access: add_action, add_filter, remove_action,
//	        remove_filter, do_action, apply_filters, has_action, has_filter,
//	        remove_all_actions, remove_all_filters, did_action, did_filter,
//	        current, doing
//	json    JSON documents by path: get, set, valid, pretty
//
// A typical script:
//
//	hooks.add_filter("the_title", function(title)
//	  return title:upper()
//	end, 5)
//
//	hooks.add_action("post/save", function(post)
//	  print("saved", post.id)
//	end, 10, { once = true })
//
// Handlers registered with a context option receive it as their first
// argument, so a table method can be registered as
// hooks.add_action("init", obj.init, nil, { context = obj }).
//
// Lua states are not goroutine-safe. A Host, and every handler it registers,
// must only be dispatched from the goroutine that owns it.
package script
