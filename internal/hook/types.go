package hook

import "context"

// DefaultPriority is the priority used when none is given.
const DefaultPriority = 10

// Kind identifies one of the two handler tables.
type Kind int

const (
	// KindAction handlers are invoked for side effects.
	KindAction Kind = iota

	// KindFilter handlers transform a value.
	KindFilter
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindAction:
		return "action"
	case KindFilter:
		return "filter"
	default:
		return "unknown"
	}
}

// ParseKind parses "action" or "filter".
func ParseKind(s string) (Kind, error) {
	switch s {
	case "action", "actions":
		return KindAction, nil
	case "filter", "filters":
		return KindFilter, nil
	default:
		return 0, &KindError{Value: s}
	}
}

// Invocation describes a single call of a handler.
type Invocation struct {
	// Hook is the name being dispatched.
	Hook string

	// HandlerID is the id assigned to the handler at registration.
	HandlerID string

	// Receiver is the value bound with WithReceiver, or nil.
	Receiver any

	// Args are the extra arguments passed to DoAction or ApplyFilters.
	Args []any
}

// Arg returns the i-th argument or nil if there is none.
func (inv Invocation) Arg(i int) any {
	if i < 0 || i >= len(inv.Args) {
		return nil
	}
	return inv.Args[i]
}

// Action is a handler registered on the action table.
type Action interface {
	Do(ctx context.Context, inv Invocation) error
}

// ActionFunc is a function adapter for Action.
type ActionFunc func(ctx context.Context, inv Invocation) error

// Do implements the Action interface.
func (f ActionFunc) Do(ctx context.Context, inv Invocation) error {
	return f(ctx, inv)
}

// Filter is a handler registered on the filter table.
// It returns the value handed to the next filter.
type Filter interface {
	Apply(ctx context.Context, value any, inv Invocation) (any, error)
}

// FilterFunc is a function adapter for Filter.
type FilterFunc func(ctx context.Context, value any, inv Invocation) (any, error)

// Apply implements the Filter interface.
func (f FilterFunc) Apply(ctx context.Context, value any, inv Invocation) (any, error) {
	return f(ctx, value, inv)
}

// HandlerInfo is a read-only view of a registered handler.
type HandlerInfo struct {
	ID          string
	Hook        string
	Kind        Kind
	Priority    int
	Once        bool
	HasReceiver bool

	// Seq is the registration sequence number used for tie-breaking.
	Seq uint64
}

// Stats contains registry counters.
type Stats struct {
	// Dispatches is the number of DoAction and ApplyFilters calls.
	Dispatches uint64

	// HandlersRun is the number of handler invocations.
	HandlersRun uint64

	// HandlerErrors is the number of handlers that returned an error.
	HandlerErrors uint64

	// Actions and Filters are the current handler counts per table.
	Actions int
	Filters int
}
