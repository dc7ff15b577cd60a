package hook

import "context"

// DoAction invokes every action registered for name in priority order.
//
// The handler list is captured before the first handler runs; handlers added
// during the call run on the next dispatch. The first handler error stops the
// dispatch and is returned as a *HandlerError. Dispatching a name with no
// handlers is a no-op.
func (r *Registry) DoAction(ctx context.Context, name string, args ...any) error {
	snapshot := r.snapshot(KindAction, name)
	if len(snapshot) == 0 {
		return nil
	}

	ctx = pushDispatch(ctx, KindAction, name)
	for _, h := range snapshot {
		if h.once && !r.claim(h) {
			// Consumed by a nested dispatch or removed since the snapshot.
			continue
		}

		r.handlersRun.Add(1)
		if err := h.action.Do(ctx, h.invocation(args)); err != nil {
			r.handlerErrors.Add(1)
			return &HandlerError{Kind: KindAction, Hook: name, HandlerID: h.id, Err: err}
		}
	}
	return nil
}

// ApplyFilters passes value through every filter registered for name in
// priority order and returns the result of the last one.
//
// With no filters registered the value is returned unchanged. On a handler
// error the dispatch stops and the value accumulated so far is returned
// together with a *HandlerError.
func (r *Registry) ApplyFilters(ctx context.Context, name string, value any, args ...any) (any, error) {
	snapshot := r.snapshot(KindFilter, name)
	if len(snapshot) == 0 {
		return value, nil
	}

	ctx = pushDispatch(ctx, KindFilter, name)
	for _, h := range snapshot {
		r.handlersRun.Add(1)
		next, err := h.filter.Apply(ctx, value, h.invocation(args))
		if err != nil {
			r.handlerErrors.Add(1)
			return value, &HandlerError{Kind: KindFilter, Hook: name, HandlerID: h.id, Err: err}
		}
		value = next
	}
	return value, nil
}

// snapshot records a dispatch of name and returns a copy of its handler list.
func (r *Registry) snapshot(kind Kind, name string) []*handler {
	r.dispatches.Add(1)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.fired[kind][name]++

	list := r.tables[kind][name]
	if len(list) == 0 {
		return nil
	}

	result := make([]*handler, len(list))
	copy(result, list)
	return result
}
