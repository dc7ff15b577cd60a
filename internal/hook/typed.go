package hook

import (
	"context"
	"fmt"
)

// AddTypedAction registers an action whose first argument must be a T.
// Dispatches whose first argument is not a T skip the handler.
func AddTypedAction[T any](r *Registry, name string, fn func(ctx context.Context, payload T, inv Invocation) error, opts ...Option) (string, error) {
	if fn == nil {
		return "", ErrNilCallback
	}
	return r.AddAction(name, ActionFunc(func(ctx context.Context, inv Invocation) error {
		payload, ok := inv.Arg(0).(T)
		if !ok {
			return nil
		}
		return fn(ctx, payload, inv)
	}), opts...)
}

// AddTypedFilter registers a filter that only handles values of type T.
// Values of any other type pass through unchanged.
func AddTypedFilter[T any](r *Registry, name string, fn func(ctx context.Context, value T, inv Invocation) (T, error), opts ...Option) (string, error) {
	if fn == nil {
		return "", ErrNilCallback
	}
	return r.AddFilter(name, FilterFunc(func(ctx context.Context, value any, inv Invocation) (any, error) {
		v, ok := value.(T)
		if !ok {
			return value, nil
		}
		return fn(ctx, v, inv)
	}), opts...)
}

// ApplyTypedFilters runs ApplyFilters and asserts the result back to T.
func ApplyTypedFilters[T any](ctx context.Context, r *Registry, name string, value T, args ...any) (T, error) {
	out, err := r.ApplyFilters(ctx, name, value, args...)
	if err != nil {
		if v, ok := out.(T); ok {
			return v, err
		}
		return value, err
	}

	v, ok := out.(T)
	if !ok {
		return value, fmt.Errorf("filter %q returned %T, want %T: %w", name, out, value, ErrTypeMismatch)
	}
	return v, nil
}
