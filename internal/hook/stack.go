package hook

import "context"

// dispatchKey is the context key for the dispatch stack.
type dispatchKey struct{}

// frame is one entry of the dispatch stack.
type frame struct {
	kind   Kind
	name   string
	parent *frame
}

// pushDispatch returns a context whose dispatch stack has name on top.
func pushDispatch(ctx context.Context, kind Kind, name string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	parent, _ := ctx.Value(dispatchKey{}).(*frame)
	return context.WithValue(ctx, dispatchKey{}, &frame{kind: kind, name: name, parent: parent})
}

// Current returns the name of the innermost hook being dispatched in ctx.
// The second result is false outside of a handler.
func Current(ctx context.Context) (string, bool) {
	f, ok := ctx.Value(dispatchKey{}).(*frame)
	if !ok || f == nil {
		return "", false
	}
	return f.name, true
}

// CurrentKind returns the kind of the innermost dispatch in ctx.
func CurrentKind(ctx context.Context) (Kind, bool) {
	f, ok := ctx.Value(dispatchKey{}).(*frame)
	if !ok || f == nil {
		return 0, false
	}
	return f.kind, true
}

// Doing reports whether name is being dispatched anywhere in ctx's stack.
func Doing(ctx context.Context, name string) bool {
	f, _ := ctx.Value(dispatchKey{}).(*frame)
	for ; f != nil; f = f.parent {
		if f.name == name {
			return true
		}
	}
	return false
}

// Stack returns the names being dispatched in ctx, outermost first.
func Stack(ctx context.Context) []string {
	f, _ := ctx.Value(dispatchKey{}).(*frame)
	var names []string
	for ; f != nil; f = f.parent {
		names = append(names, f.name)
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return names
}
