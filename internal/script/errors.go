package script

import "errors"

// Errors for script operations.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrNotLoaded is returned when binding to a host that has not loaded its script.
	ErrNotLoaded = errors.New("script not loaded")

	// ErrFunctionNotFound is returned when a bound global is missing or not a function.
	ErrFunctionNotFound = errors.New("lua function not found")

	// ErrScriptExists is returned when loading a script under a name already in use.
	ErrScriptExists = errors.New("script already loaded")

	// ErrScriptNotFound is returned for an unknown script name.
	ErrScriptNotFound = errors.New("script not found")
)
