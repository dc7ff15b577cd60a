// Package hook provides the hook registry for hookbus.
//
// A Registry holds two independent tables of handlers keyed by hook name:
// actions, which are invoked for their side effects, and filters, which
// thread a value through a chain of transformations.
//
// # Hook Names
//
// Hook names are opaque strings. By convention they are namespaced with
// slashes:
//
//	frontend/element_ready/global
//	document/save/before
//	panel/open_editor/widget
//
// Only exact matches are dispatched. Namespace returns the first segment
// for display purposes.
//
// # Priority Ordering
//
// Handlers run in ascending priority order. The default priority is 10.
// Handlers with equal priority run in registration order:
//
//	r := hook.NewRegistry()
//	r.AddAction("init", late, hook.WithPriority(20))
//	r.AddAction("init", early, hook.WithPriority(5))
//	r.DoAction(ctx, "init") // early, then late
//
// # Filters
//
// Each filter receives the current value and returns the next one:
//
//	r.AddFilter("the_title", hook.FilterFunc(func(ctx context.Context, v any, inv hook.Invocation) (any, error) {
//	    return strings.ToUpper(v.(string)), nil
//	}))
//	title, err := r.ApplyFilters(ctx, "the_title", "hello")
//
// ApplyFilters on a name with no handlers returns the value unchanged, and
// DoAction on a name with no handlers does nothing.
//
// # Receivers
//
// WithReceiver binds a value to the handler. It is delivered to the callback
// as Invocation.Receiver on every call.
//
// # Re-entrancy
//
// The handler list for a name is snapshotted when a dispatch starts.
// Handlers registered during the dispatch (including by the handlers
// themselves) first run on the next dispatch. Handlers added with WithOnce
// are removed from the registry immediately before they run, so a nested
// dispatch of the same name cannot run them a second time.
//
// # Errors
//
// A handler that returns an error stops the dispatch. The error is returned
// to the caller wrapped in a *HandlerError; handlers later in the order do
// not run and effects of earlier handlers are not rolled back. Panics are
// not recovered.
//
// # Thread Safety
//
// A Registry is safe for concurrent use. No lock is held while a handler
// runs, so handlers may add, remove and dispatch hooks freely.
package hook
