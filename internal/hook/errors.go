package hook

import "errors"

// Sentinel errors for the hook registry.
var (
	// ErrInvalidHookName is returned when a hook name is empty.
	ErrInvalidHookName = errors.New("invalid hook name")

	// ErrNilCallback is returned when a nil action or filter is registered.
	ErrNilCallback = errors.New("callback cannot be nil")

	// ErrDuplicateID is returned when WithID names an id already registered
	// for the same hook and kind.
	ErrDuplicateID = errors.New("handler id already registered")

	// ErrOnceFilter is returned when WithOnce is passed to AddFilter.
	ErrOnceFilter = errors.New("once is only supported for actions")

	// ErrTypeMismatch is returned by the typed helpers when a value does not
	// have the expected type.
	ErrTypeMismatch = errors.New("value has unexpected type")
)

// HandlerError wraps an error returned by a handler during dispatch.
type HandlerError struct {
	// Kind is the table the handler belongs to.
	Kind Kind

	// Hook is the name that was being dispatched.
	Hook string

	// HandlerID is the id of the failing handler.
	HandlerID string

	// Err is the error returned by the handler.
	Err error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	msg := e.Kind.String() + " " + e.Hook + " handler " + e.HandlerID
	if e.Err == nil {
		return msg
	}
	return msg + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// KindError is returned by ParseKind for an unknown kind.
type KindError struct {
	Value string
}

// Error implements the error interface.
func (e *KindError) Error() string {
	return "unknown hook kind " + `"` + e.Value + `"` + " (want action or filter)"
}
